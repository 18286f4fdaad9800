package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/domain/apperr"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
)

// DepartmentService manages departments and their budgets
type DepartmentService interface {
	List(ctx context.Context) ([]*entity.Department, error)
	Get(ctx context.Context, id int64) (*entity.Department, error)
	Create(ctx context.Context, name string, monthly, annual decimal.Decimal) (*entity.Department, error)
	UpdateBudget(ctx context.Context, id int64, monthly, annual decimal.Decimal) (*entity.Department, error)
}

type departmentServiceImpl struct {
	departmentRepo port.DepartmentRepository
	logger         Logger
}

// NewDepartmentService creates a new DepartmentService
func NewDepartmentService(departmentRepo port.DepartmentRepository, logger Logger) DepartmentService {
	return &departmentServiceImpl{
		departmentRepo: departmentRepo,
		logger:         logger,
	}
}

func (s *departmentServiceImpl) List(ctx context.Context) ([]*entity.Department, error) {
	depts, err := s.departmentRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return depts, nil
}

func (s *departmentServiceImpl) Get(ctx context.Context, id int64) (*entity.Department, error) {
	dept, err := s.departmentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get department: %w", err)
	}
	if dept == nil {
		return nil, apperr.NotFound("department %d not found", id)
	}
	return dept, nil
}

func (s *departmentServiceImpl) Create(ctx context.Context, name string, monthly, annual decimal.Decimal) (*entity.Department, error) {
	if name == "" {
		return nil, apperr.Invalid("department name is required")
	}
	if err := checkBudgets(monthly, annual); err != nil {
		return nil, err
	}

	dept := &entity.Department{Name: name, MonthlyBudget: monthly, AnnualBudget: annual}
	if err := s.departmentRepo.Create(ctx, dept); err != nil {
		s.logger.Error("Failed to create department", "error", err, "name", name)
		return nil, fmt.Errorf("create department: %w", err)
	}
	return dept, nil
}

func (s *departmentServiceImpl) UpdateBudget(ctx context.Context, id int64, monthly, annual decimal.Decimal) (*entity.Department, error) {
	if err := checkBudgets(monthly, annual); err != nil {
		return nil, err
	}

	dept, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.departmentRepo.UpdateBudget(ctx, id, monthly, annual); err != nil {
		s.logger.Error("Failed to update budget", "error", err, "department_id", id)
		return nil, fmt.Errorf("update budget: %w", err)
	}

	dept.MonthlyBudget = monthly
	dept.AnnualBudget = annual
	s.logger.Info("Department budget updated", "department_id", id, "monthly", monthly.String(), "annual", annual.String())
	return dept, nil
}

func checkBudgets(monthly, annual decimal.Decimal) error {
	if monthly.IsNegative() || annual.IsNegative() {
		return apperr.Invalid("budgets cannot be negative")
	}
	return nil
}
