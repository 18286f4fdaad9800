package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/infrastructure/persistence/sqlite"
)

// CategoryRepository implements port.CategoryRepository
type CategoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCategoryRepository creates a new category repository
func NewCategoryRepository(db *sql.DB, logger *zap.Logger) port.CategoryRepository {
	return &CategoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a category and sets its ID
func (r *CategoryRepository) Create(ctx context.Context, category *entity.Category) error {
	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx,
		`INSERT INTO categories (name, description, color, active) VALUES (?, ?, ?, ?)`,
		category.Name,
		category.Description,
		category.Color,
		boolToInt(category.Active),
	)
	if err != nil {
		r.logger.Error("Failed to create category", zap.String("name", category.Name), zap.Error(err))
		return fmt.Errorf("failed to create category: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	category.ID = id
	return nil
}

// GetByID retrieves a category by ID
func (r *CategoryRepository) GetByID(ctx context.Context, id int64) (*entity.Category, error) {
	return r.getOne(ctx, `SELECT id, name, description, color, active FROM categories WHERE id = ?`, id)
}

// GetByName retrieves a category by exact name
func (r *CategoryRepository) GetByName(ctx context.Context, name string) (*entity.Category, error) {
	return r.getOne(ctx, `SELECT id, name, description, color, active FROM categories WHERE name = ?`, name)
}

// List returns categories ordered by name
func (r *CategoryRepository) List(ctx context.Context, activeOnly bool) ([]*entity.Category, error) {
	query := `SELECT id, name, description, color, active FROM categories`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY name ASC`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list categories", zap.Error(err))
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []*entity.Category{}
	for rows.Next() {
		var c entity.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Color, &c.Active); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, &c)
	}
	return categories, rows.Err()
}

// Update stores all mutable category fields
func (r *CategoryRepository) Update(ctx context.Context, category *entity.Category) error {
	if _, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx,
		`UPDATE categories SET name = ?, description = ?, color = ?, active = ? WHERE id = ?`,
		category.Name,
		category.Description,
		category.Color,
		boolToInt(category.Active),
		category.ID,
	); err != nil {
		r.logger.Error("Failed to update category", zap.Int64("id", category.ID), zap.Error(err))
		return fmt.Errorf("failed to update category: %w", err)
	}
	return nil
}

func (r *CategoryRepository) getOne(ctx context.Context, query string, arg interface{}) (*entity.Category, error) {
	var c entity.Category
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, arg).
		Scan(&c.ID, &c.Name, &c.Description, &c.Color, &c.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get category", zap.Any("key", arg), zap.Error(err))
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &c, nil
}

var _ port.CategoryRepository = (*CategoryRepository)(nil)
