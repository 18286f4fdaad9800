package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/domain/apperr"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
)

// CreateUserInput carries the fields needed to register a user
type CreateUserInput struct {
	Name         string      `json:"name" validate:"required,max=100"`
	Email        string      `json:"email" validate:"required,email"`
	Password     string      `json:"password" validate:"required,min=8"`
	Role         entity.Role `json:"role" validate:"omitempty,oneof=EMPLOYEE MANAGER ADMIN"`
	DepartmentID int64       `json:"department_id" validate:"required,gt=0"`
	ManagerID    *int64      `json:"manager_id,omitempty"`
}

// UpdateAccessInput changes a user's role, manager or active flag
type UpdateAccessInput struct {
	Role      *entity.Role `json:"role,omitempty" validate:"omitempty,oneof=EMPLOYEE MANAGER ADMIN"`
	Active    *bool        `json:"active,omitempty"`
	ManagerID *int64       `json:"manager_id,omitempty"`
}

// UserService manages user accounts and credentials
type UserService interface {
	Create(ctx context.Context, input CreateUserInput) (*entity.User, error)
	Get(ctx context.Context, id int64) (*entity.User, error)
	ListTeam(ctx context.Context, managerID int64) ([]*entity.User, error)
	ListAll(ctx context.Context) ([]*entity.User, error)
	Authenticate(ctx context.Context, email, password string) (*entity.User, error)
	UpdateAccess(ctx context.Context, id int64, input UpdateAccessInput) (*entity.User, error)
}

type userServiceImpl struct {
	userRepo       port.UserRepository
	departmentRepo port.DepartmentRepository
	validator      StructValidator
	bcryptCost     int
	logger         Logger
}

// NewUserService creates a new UserService. A zero bcryptCost uses bcrypt.DefaultCost.
func NewUserService(
	userRepo port.UserRepository,
	departmentRepo port.DepartmentRepository,
	validator StructValidator,
	bcryptCost int,
	logger Logger,
) UserService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &userServiceImpl{
		userRepo:       userRepo,
		departmentRepo: departmentRepo,
		validator:      validator,
		bcryptCost:     bcryptCost,
		logger:         logger,
	}
}

func (s *userServiceImpl) Create(ctx context.Context, input CreateUserInput) (*entity.User, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if existing != nil {
		return nil, apperr.NotPermitted("email %s is already registered", input.Email)
	}

	dept, err := s.departmentRepo.GetByID(ctx, input.DepartmentID)
	if err != nil {
		return nil, fmt.Errorf("get department: %w", err)
	}
	if dept == nil {
		return nil, apperr.NotFound("department %d not found", input.DepartmentID)
	}

	if input.ManagerID != nil {
		if _, err := s.Get(ctx, *input.ManagerID); err != nil {
			return nil, err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	role := input.Role
	if role == "" {
		role = entity.RoleEmployee
	}

	user := &entity.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: string(hash),
		Role:         role,
		DepartmentID: dept.ID,
		ManagerID:    input.ManagerID,
		Active:       true,
		CreatedAt:    time.Now(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		s.logger.Error("Failed to create user", "error", err, "email", input.Email)
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("User created", "user_id", user.ID, "role", user.Role.String())
	return user, nil
}

func (s *userServiceImpl) Get(ctx context.Context, id int64) (*entity.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, apperr.NotFound("user %d not found", id)
	}
	return user, nil
}

func (s *userServiceImpl) ListTeam(ctx context.Context, managerID int64) ([]*entity.User, error) {
	users, err := s.userRepo.ListByManager(ctx, managerID)
	if err != nil {
		return nil, fmt.Errorf("list team: %w", err)
	}
	return users, nil
}

func (s *userServiceImpl) ListAll(ctx context.Context) ([]*entity.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

var errBadCredentials = apperr.AccessDenied("invalid email or password")

func (s *userServiceImpl) Authenticate(ctx context.Context, email, password string) (*entity.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil || !user.Active {
		return nil, errBadCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, errBadCredentials
		}
		return nil, fmt.Errorf("compare password: %w", err)
	}

	return user, nil
}

func (s *userServiceImpl) UpdateAccess(ctx context.Context, id int64, input UpdateAccessInput) (*entity.User, error) {
	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Role != nil {
		user.Role = *input.Role
	}
	if input.Active != nil {
		user.Active = *input.Active
	}
	if input.ManagerID != nil {
		if *input.ManagerID == id {
			return nil, apperr.NotPermitted("a user cannot manage themselves")
		}
		if _, err := s.Get(ctx, *input.ManagerID); err != nil {
			return nil, err
		}
		user.ManagerID = input.ManagerID
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		s.logger.Error("Failed to update user", "error", err, "user_id", id)
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}
