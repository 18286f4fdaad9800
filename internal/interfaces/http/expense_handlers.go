package http

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/application/query"
	"github.com/garyjia/expense-workflow/internal/application/workflow"
	"github.com/garyjia/expense-workflow/internal/domain/apperr"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/expense-workflow/internal/domain/workflow"
	"github.com/garyjia/expense-workflow/internal/infrastructure/export"
)

type expenseHandlers struct {
	engine         workflow.Engine
	exporter       port.ExpenseExporter
	maxUploadBytes int64
	logger         Logger
}

func newExpenseHandlers(engine workflow.Engine, exporter port.ExpenseExporter, maxUploadBytes int64, logger Logger) *expenseHandlers {
	return &expenseHandlers{
		engine:         engine,
		exporter:       exporter,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// RejectRequest is the body of PUT /api/expenses/:id/reject
type RejectRequest struct {
	Comment string `json:"comment"`
}

// BatchDeleteResponse reports how many expenses a batch delete removed
type BatchDeleteResponse struct {
	Deleted int `json:"deleted"`
}

// filterRequest holds the search query parameters as sent
type filterRequest struct {
	Status       string `form:"status"`
	OwnerID      string `form:"owner_id"`
	DepartmentID string `form:"department_id"`
	CategoryID   string `form:"category_id"`
	DateFrom     string `form:"date_from"`
	DateTo       string `form:"date_to"`
	AmountMin    string `form:"amount_min"`
	AmountMax    string `form:"amount_max"`
	Text         string `form:"q"`
}

func (r filterRequest) toFilter() (query.Filter, error) {
	var f query.Filter
	var err error

	if r.Status != "" {
		status := domainwf.State(strings.ToUpper(r.Status))
		if !status.IsValid() {
			return f, apperr.Invalid("unknown status %q", r.Status)
		}
		f.Status = &status
	}
	if f.OwnerID, err = optionalID("owner_id", r.OwnerID); err != nil {
		return f, err
	}
	if f.DepartmentID, err = optionalID("department_id", r.DepartmentID); err != nil {
		return f, err
	}
	if f.CategoryID, err = optionalID("category_id", r.CategoryID); err != nil {
		return f, err
	}
	if f.DateFrom, err = optionalDate("date_from", r.DateFrom); err != nil {
		return f, err
	}
	if f.DateTo, err = optionalDate("date_to", r.DateTo); err != nil {
		return f, err
	}
	if f.AmountMin, err = optionalAmount("amount_min", r.AmountMin); err != nil {
		return f, err
	}
	if f.AmountMax, err = optionalAmount("amount_max", r.AmountMax); err != nil {
		return f, err
	}
	f.Text = r.Text
	return f, nil
}

func optionalID(name, raw string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, apperr.Invalid("%s must be a positive integer", name)
	}
	return &id, nil
}

func optionalDate(name, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(query.DateLayout, raw)
	if err != nil {
		return nil, apperr.Invalid("%s must be formatted as %s", name, query.DateLayout)
	}
	return &t, nil
}

func optionalAmount(name, raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, apperr.Invalid("%s must be a decimal number", name)
	}
	return &d, nil
}

func (h *expenseHandlers) filter(c *gin.Context) (query.Filter, bool) {
	var req filterRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "invalid query parameters")
		return query.Filter{}, false
	}
	f, err := req.toFilter()
	if err != nil {
		respondError(c, h.logger, err)
		return query.Filter{}, false
	}
	return f, true
}

// Create handles POST /api/expenses
func (h *expenseHandlers) Create(c *gin.Context) {
	var input workflow.CreateExpenseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	expense, err := h.engine.Create(c.Request.Context(), actorFrom(c), input)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusCreated, expense)
}

// Search handles GET /api/expenses
func (h *expenseHandlers) Search(c *gin.Context) {
	f, ok := h.filter(c)
	if !ok {
		return
	}

	views, err := h.engine.Search(c.Request.Context(), actorFrom(c), f)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, views)
}

// ListAll handles GET /api/expenses/all
func (h *expenseHandlers) ListAll(c *gin.Context) {
	views, err := h.engine.ListAll(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, views)
}

// ListByOwner handles GET /api/expenses/user/:userId
func (h *expenseHandlers) ListByOwner(c *gin.Context) {
	ownerID, ok := pathID(c, "userId")
	if !ok {
		return
	}

	views, err := h.engine.ListByOwner(c.Request.Context(), actorFrom(c), ownerID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, views)
}

// ListByTeam handles GET /api/expenses/team/:managerId
func (h *expenseHandlers) ListByTeam(c *gin.Context) {
	managerID, ok := pathID(c, "managerId")
	if !ok {
		return
	}

	views, err := h.engine.ListByTeam(c.Request.Context(), actorFrom(c), managerID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, views)
}

// Get handles GET /api/expenses/:id
func (h *expenseHandlers) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	view, err := h.engine.Get(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, view)
}

// History handles GET /api/expenses/:id/history
func (h *expenseHandlers) History(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	entries, err := h.engine.History(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, entries)
}

// Submit handles PUT /api/expenses/:id/submit
func (h *expenseHandlers) Submit(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	expense, err := h.engine.SubmitForReview(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, expense)
}

// Approve handles PUT /api/expenses/:id/approve
func (h *expenseHandlers) Approve(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	expense, err := h.engine.Approve(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, expense)
}

// Reject handles PUT /api/expenses/:id/reject
func (h *expenseHandlers) Reject(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	expense, err := h.engine.Reject(c.Request.Context(), id, actorFrom(c), req.Comment)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, expense)
}

// Delete handles DELETE /api/expenses/:id. Only the owner or an admin may delete.
func (h *expenseHandlers) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	actor := actorFrom(c)
	if err := h.authorizeDelete(c, actor, id); err != nil {
		respondError(c, h.logger, err)
		return
	}

	if err := h.engine.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteBatch handles POST /api/expenses/delete-batch with a JSON array of ids.
// Ids that do not exist are skipped.
func (h *expenseHandlers) DeleteBatch(c *gin.Context) {
	var ids []int64
	if err := c.ShouldBindJSON(&ids); err != nil {
		badRequest(c, "request body must be an array of expense ids")
		return
	}

	actor := actorFrom(c)
	for _, id := range ids {
		err := h.authorizeDelete(c, actor, id)
		if apperr.IsNotFound(err) {
			continue
		}
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
	}

	deleted, err := h.engine.DeleteBatch(c.Request.Context(), ids)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, BatchDeleteResponse{Deleted: deleted})
}

func (h *expenseHandlers) authorizeDelete(c *gin.Context, actor entity.Actor, id int64) error {
	view, err := h.engine.Get(c.Request.Context(), id, actor)
	if err != nil {
		return err
	}
	if actor.Role != entity.RoleAdmin && view.OwnerID != actor.ID {
		return apperr.AccessDenied("only the owner or an admin can delete expense %d", id)
	}
	return nil
}

// AttachReceipt handles POST /api/expenses/:id/receipt (multipart field "file")
func (h *expenseHandlers) AttachReceipt(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "multipart field \"file\" is required")
		return
	}
	if header.Size > h.maxUploadBytes {
		badRequest(c, fmt.Sprintf("receipt exceeds %d bytes", h.maxUploadBytes))
		return
	}

	file, err := header.Open()
	if err != nil {
		respondError(c, h.logger, fmt.Errorf("open upload: %w", err))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		respondError(c, h.logger, fmt.Errorf("read upload: %w", err))
		return
	}

	expense, err := h.engine.AttachReceipt(c.Request.Context(), id, actorFrom(c), workflow.ReceiptUpload{
		FileName: header.Filename,
		Content:  content,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, expense)
}

// Export handles GET /api/expenses/export, streaming the filtered expenses as xlsx
func (h *expenseHandlers) Export(c *gin.Context) {
	if h.exporter == nil {
		respondError(c, h.logger, apperr.NotPermitted("export is not configured"))
		return
	}

	f, ok := h.filter(c)
	if !ok {
		return
	}

	views, err := h.engine.Search(c.Request.Context(), actorFrom(c), f)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var buf bytes.Buffer
	if err := h.exporter.Export(c.Request.Context(), views, &buf); err != nil {
		respondError(c, h.logger, fmt.Errorf("export expenses: %w", err))
		return
	}

	filename := fmt.Sprintf("expenses-%s.xlsx", time.Now().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}
