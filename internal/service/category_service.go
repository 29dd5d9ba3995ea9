package service

import (
	"context"

	"task-manager/internal/model"
	"task-manager/internal/repository"
)

// CategoryService provides helpers around categories.
type CategoryService struct {
	taskRepo *repository.TaskRepository
}

func NewCategoryService(taskRepo *repository.TaskRepository) *CategoryService {
	return &CategoryService{taskRepo: taskRepo}
}

// Summary lists every category with its number of open tasks, in the fixed
// category order. Unknown stored values are counted under the default.
func (s *CategoryService) Summary(ctx context.Context) ([]repository.CategoryCount, error) {
	rows, err := s.taskRepo.CountOpenByCategory(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[model.Category]int64, len(rows))
	for _, row := range rows {
		counts[row.Category] += row.Count
	}
	out := make([]repository.CategoryCount, 0, len(model.Categories))
	for _, c := range model.Categories {
		out = append(out, repository.CategoryCount{Category: c, Count: counts[c]})
	}
	return out, nil
}
