package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/domain/apperr"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
)

// CategoryInput carries the editable category fields
type CategoryInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	Color       string `json:"color" validate:"omitempty,hexcolor"`
}

// CategoryService manages expense categories
type CategoryService interface {
	List(ctx context.Context, activeOnly bool) ([]*entity.Category, error)
	Create(ctx context.Context, input CategoryInput) (*entity.Category, error)
	Update(ctx context.Context, id int64, input CategoryInput) (*entity.Category, error)
	Deactivate(ctx context.Context, id int64) error
}

type categoryServiceImpl struct {
	categoryRepo port.CategoryRepository
	validator    StructValidator
	logger       Logger
}

// NewCategoryService creates a new CategoryService
func NewCategoryService(categoryRepo port.CategoryRepository, validator StructValidator, logger Logger) CategoryService {
	return &categoryServiceImpl{
		categoryRepo: categoryRepo,
		validator:    validator,
		logger:       logger,
	}
}

func (s *categoryServiceImpl) List(ctx context.Context, activeOnly bool) ([]*entity.Category, error) {
	categories, err := s.categoryRepo.List(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

func (s *categoryServiceImpl) Create(ctx context.Context, input CategoryInput) (*entity.Category, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}

	existing, err := s.categoryRepo.GetByName(ctx, input.Name)
	if err != nil {
		return nil, fmt.Errorf("check category name: %w", err)
	}
	if existing != nil {
		return nil, apperr.NotPermitted("a category named %q already exists", input.Name)
	}

	category := &entity.Category{
		Name:        input.Name,
		Description: input.Description,
		Color:       input.Color,
		Active:      true,
	}
	if category.Color == "" {
		category.Color = entity.DefaultCategoryColor
	}

	if err := s.categoryRepo.Create(ctx, category); err != nil {
		s.logger.Error("Failed to create category", "error", err, "name", input.Name)
		return nil, fmt.Errorf("create category: %w", err)
	}

	s.logger.Info("Category created", "id", category.ID, "name", category.Name)
	return category, nil
}

func (s *categoryServiceImpl) Update(ctx context.Context, id int64, input CategoryInput) (*entity.Category, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}

	category, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != category.Name {
		existing, err := s.categoryRepo.GetByName(ctx, input.Name)
		if err != nil {
			return nil, fmt.Errorf("check category name: %w", err)
		}
		if existing != nil && existing.ID != id {
			return nil, apperr.NotPermitted("a category named %q already exists", input.Name)
		}
	}

	category.Name = input.Name
	category.Description = input.Description
	if input.Color != "" {
		category.Color = input.Color
	}

	if err := s.categoryRepo.Update(ctx, category); err != nil {
		s.logger.Error("Failed to update category", "error", err, "id", id)
		return nil, fmt.Errorf("update category: %w", err)
	}
	return category, nil
}

func (s *categoryServiceImpl) Deactivate(ctx context.Context, id int64) error {
	category, err := s.get(ctx, id)
	if err != nil {
		return err
	}

	category.Active = false
	if err := s.categoryRepo.Update(ctx, category); err != nil {
		s.logger.Error("Failed to deactivate category", "error", err, "id", id)
		return fmt.Errorf("deactivate category: %w", err)
	}
	return nil
}

func (s *categoryServiceImpl) get(ctx context.Context, id int64) (*entity.Category, error) {
	category, err := s.categoryRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	if category == nil {
		return nil, apperr.NotFound("category %d not found", id)
	}
	return category, nil
}
