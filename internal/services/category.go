package services

import (
	"context"
	"strings"

	"github.com/libris-lms/apiserver/types"
)

// CategoryRepository defines persistence operations for categories.
type CategoryRepository interface {
	List(ctx context.Context, search, ordering string, offset, limit int) ([]types.Category, int, error)
	Get(ctx context.Context, id int) (types.Category, error)
	Create(ctx context.Context, category types.Category, actorID int) (types.Category, error)
	Update(ctx context.Context, category types.Category, actorID int) (types.Category, error)
	Delete(ctx context.Context, id int) error
}

// CategoryService encapsulates category use-cases.
type CategoryService struct {
	repo CategoryRepository
}

func NewCategoryService(repo CategoryRepository) *CategoryService {
	return &CategoryService{repo: repo}
}

func (s *CategoryService) List(ctx context.Context, search, ordering string, offset, limit int) ([]types.Category, int, error) {
	return s.repo.List(ctx, search, ordering, offset, limit)
}

func (s *CategoryService) Get(ctx context.Context, id int) (types.Category, error) {
	category, err := s.repo.Get(ctx, id)
	return category, translate(err, "category")
}

func (s *CategoryService) Create(ctx context.Context, actor types.User, category types.Category) (types.Category, error) {
	if err := requireAdmin(actor); err != nil {
		return types.Category{}, err
	}
	category.Name = strings.TrimSpace(category.Name)
	if err := validateName(category.Name, 50); err != nil {
		return types.Category{}, err
	}
	created, err := s.repo.Create(ctx, category, actor.ID)
	return created, translate(err, "category")
}

func (s *CategoryService) Update(ctx context.Context, actor types.User, category types.Category) (types.Category, error) {
	if err := requireAdmin(actor); err != nil {
		return types.Category{}, err
	}
	category.Name = strings.TrimSpace(category.Name)
	if err := validateName(category.Name, 50); err != nil {
		return types.Category{}, err
	}
	updated, err := s.repo.Update(ctx, category, actor.ID)
	return updated, translate(err, "category")
}

// Delete removes a category. Its books stay in the catalog without a category.
func (s *CategoryService) Delete(ctx context.Context, actor types.User, id int) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	return translate(s.repo.Delete(ctx, id), "category")
}
