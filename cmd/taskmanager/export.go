package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	yaml "go.yaml.in/yaml/v3"

	"task-manager/internal/model"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every task as YAML",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "file to write, stdout when empty")
	rootCmd.AddCommand(exportCmd)
}

type exportDocument struct {
	Tasks []model.Task `yaml:"tasks"`
}

func runExport(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	tasks, err := a.repo.ListAll(cmd.Context())
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("output")
	var w io.Writer = cmd.OutOrStdout()
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create %s: %w", out, err)
		}
		defer f.Close()
		w = f
	}

	if err := writeExport(w, tasks); err != nil {
		return err
	}
	if out != "" {
		a.log.Info().Int("tasks", len(tasks)).Str("file", out).Msg("tasks exported")
	}
	return nil
}

func writeExport(w io.Writer, tasks []model.Task) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(exportDocument{Tasks: tasks}); err != nil {
		return fmt.Errorf("encode tasks: %w", err)
	}
	return enc.Close()
}
