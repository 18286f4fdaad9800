package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-workflow/internal/application/service"
	"github.com/garyjia/expense-workflow/internal/domain/apperr"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/domain/policy"
)

// adminHandlers serves the reference data around expenses: categories,
// departments, users and the dashboard.
type adminHandlers struct {
	users       service.UserService
	categories  service.CategoryService
	departments service.DepartmentService
	dashboard   service.DashboardService
	logger      Logger
}

func newAdminHandlers(services Services, logger Logger) *adminHandlers {
	return &adminHandlers{
		users:       services.Users,
		categories:  services.Categories,
		departments: services.Departments,
		dashboard:   services.Dashboard,
		logger:      logger,
	}
}

// BudgetRequest is the body of PUT /api/departments/:id/budget
type BudgetRequest struct {
	MonthlyBudget decimal.Decimal `json:"monthly_budget"`
	AnnualBudget  decimal.Decimal `json:"annual_budget"`
}

// ListCategories handles GET /api/categories
func (h *adminHandlers) ListCategories(c *gin.Context) {
	h.listCategories(c, true)
}

// ListAllCategories handles GET /api/categories/all, inactive ones included
func (h *adminHandlers) ListAllCategories(c *gin.Context) {
	h.listCategories(c, false)
}

func (h *adminHandlers) listCategories(c *gin.Context, activeOnly bool) {
	categories, err := h.categories.List(c.Request.Context(), activeOnly)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, categories)
}

// CreateCategory handles POST /api/categories
func (h *adminHandlers) CreateCategory(c *gin.Context) {
	var input service.CategoryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	category, err := h.categories.Create(c.Request.Context(), input)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusCreated, category)
}

// UpdateCategory handles PUT /api/categories/:id
func (h *adminHandlers) UpdateCategory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var input service.CategoryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	category, err := h.categories.Update(c.Request.Context(), id, input)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, category)
}

// DeactivateCategory handles DELETE /api/categories/:id. Categories are never
// removed because expenses keep referencing them.
func (h *adminHandlers) DeactivateCategory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.categories.Deactivate(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListDepartments handles GET /api/departments
func (h *adminHandlers) ListDepartments(c *gin.Context) {
	departments, err := h.departments.List(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, departments)
}

// GetDepartment handles GET /api/departments/:id
func (h *adminHandlers) GetDepartment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	dept, err := h.departments.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, dept)
}

// UpdateBudget handles PUT /api/departments/:id/budget
func (h *adminHandlers) UpdateBudget(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req BudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	dept, err := h.departments.UpdateBudget(c.Request.Context(), id, req.MonthlyBudget, req.AnnualBudget)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, dept)
}

// CreateUser handles POST /api/users
func (h *adminHandlers) CreateUser(c *gin.Context) {
	var input service.CreateUserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	user, err := h.users.Create(c.Request.Context(), input)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusCreated, user)
}

// GetUser handles GET /api/users/:id. Users see themselves, managers their
// reports and admins everyone.
func (h *adminHandlers) GetUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	user, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := policy.AuthorizeView(actorFrom(c), policy.OwnerOf(user)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, user)
}

// ListTeam handles GET /api/users/:id/team
func (h *adminHandlers) ListTeam(c *gin.Context) {
	managerID, ok := pathID(c, "id")
	if !ok {
		return
	}

	actor := actorFrom(c)
	if actor.Role != entity.RoleAdmin && actor.ID != managerID {
		respondError(c, h.logger, apperr.AccessDenied("user %d may not list the team of user %d", actor.ID, managerID))
		return
	}

	team, err := h.users.ListTeam(c.Request.Context(), managerID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, team)
}

// ListUsers handles GET /api/admin/users
func (h *adminHandlers) ListUsers(c *gin.Context) {
	users, err := h.users.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, users)
}

// UpdateUser handles PUT /api/admin/users/:id
func (h *adminHandlers) UpdateUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var input service.UpdateAccessInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	user, err := h.users.UpdateAccess(c.Request.Context(), id, input)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, user)
}

// Dashboard handles GET /api/dashboard?user_id=
func (h *adminHandlers) Dashboard(c *gin.Context) {
	userID, err := optionalID("user_id", c.Query("user_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	dashboard, err := h.dashboard.Build(c.Request.Context(), actorFrom(c), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, dashboard)
}
