package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/infrastructure/persistence/sqlite"
)

// DepartmentRepository implements port.DepartmentRepository
type DepartmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDepartmentRepository creates a new department repository
func NewDepartmentRepository(db *sql.DB, logger *zap.Logger) port.DepartmentRepository {
	return &DepartmentRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a department and sets its ID
func (r *DepartmentRepository) Create(ctx context.Context, dept *entity.Department) error {
	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx,
		`INSERT INTO departments (name, monthly_budget, annual_budget) VALUES (?, ?, ?)`,
		dept.Name,
		dept.MonthlyBudget.StringFixed(2),
		dept.AnnualBudget.StringFixed(2),
	)
	if err != nil {
		r.logger.Error("Failed to create department", zap.String("name", dept.Name), zap.Error(err))
		return fmt.Errorf("failed to create department: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	dept.ID = id
	return nil
}

// GetByID retrieves a department by ID
func (r *DepartmentRepository) GetByID(ctx context.Context, id int64) (*entity.Department, error) {
	row := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, name, monthly_budget, annual_budget FROM departments WHERE id = ?`, id)

	dept, err := scanDepartment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get department", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get department: %w", err)
	}
	return dept, nil
}

// List returns all departments ordered by name
func (r *DepartmentRepository) List(ctx context.Context) ([]*entity.Department, error) {
	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx,
		`SELECT id, name, monthly_budget, annual_budget FROM departments ORDER BY name ASC`)
	if err != nil {
		r.logger.Error("Failed to list departments", zap.Error(err))
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}
	defer rows.Close()

	depts := []*entity.Department{}
	for rows.Next() {
		dept, err := scanDepartment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan department: %w", err)
		}
		depts = append(depts, dept)
	}
	return depts, rows.Err()
}

// UpdateBudget replaces the monthly and annual budgets
func (r *DepartmentRepository) UpdateBudget(ctx context.Context, id int64, monthly, annual decimal.Decimal) error {
	if _, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx,
		`UPDATE departments SET monthly_budget = ?, annual_budget = ? WHERE id = ?`,
		monthly.StringFixed(2), annual.StringFixed(2), id,
	); err != nil {
		r.logger.Error("Failed to update department budget", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update department budget: %w", err)
	}
	return nil
}

func scanDepartment(s scanner) (*entity.Department, error) {
	var d entity.Department
	var monthly, annual string
	if err := s.Scan(&d.ID, &d.Name, &monthly, &annual); err != nil {
		return nil, err
	}

	var err error
	if d.MonthlyBudget, err = parseDecimal(monthly); err != nil {
		return nil, err
	}
	if d.AnnualBudget, err = parseDecimal(annual); err != nil {
		return nil, err
	}
	return &d, nil
}

var _ port.DepartmentRepository = (*DepartmentRepository)(nil)
