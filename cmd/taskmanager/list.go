package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"task-manager/internal/model"
	"task-manager/internal/repository"
	"task-manager/internal/service"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the tasks of a day",
	Long: `Lists the tasks of one day, today by default. With --search and no --day the
search covers every day.`,
	RunE: runList,
}

func init() {
	listCmd.Flags().String("day", "", "day to list (YYYY-MM-DD)")
	listCmd.Flags().StringP("category", "c", "", "filter by category")
	listCmd.Flags().StringP("search", "s", "", "filter by title (case-insensitive)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	rawDay, _ := cmd.Flags().GetString("day")
	rawCategory, _ := cmd.Flags().GetString("category")
	search, _ := cmd.Flags().GetString("search")

	filter := repository.TaskFilter{Search: search}
	if rawCategory != "" {
		if filter.Category, err = model.ParseCategory(rawCategory); err != nil {
			return err
		}
	}

	tasks := service.NewTaskService(a.repo, nil, a.loc)
	var found []model.Task
	if search != "" && rawDay == "" {
		found, err = tasks.Search(cmd.Context(), search, filter.Category)
	} else {
		day, perr := parseDay(rawDay, a.loc)
		if perr != nil {
			return perr
		}
		found, err = tasks.ListDay(cmd.Context(), day, filter)
	}
	if err != nil {
		return err
	}

	printTasks(cmd.OutOrStdout(), found, a.loc)
	return nil
}

func printTasks(w io.Writer, tasks []model.Task, loc *time.Location) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "no tasks")
		return
	}
	for _, task := range tasks {
		status := "[ ]"
		if task.IsComplete {
			status = "[x]"
		}
		repeat := ""
		if task.Repeat.Recurring() {
			repeat = " (" + string(task.Repeat) + ")"
		}
		fmt.Fprintf(w, "%s %s %s %-8s %-6s %s%s\n",
			status,
			task.ShortID(),
			task.CreationDate.In(loc).Format("2006-01-02 15:04"),
			task.Category,
			task.Priority,
			task.Title,
			repeat,
		)
	}
}
