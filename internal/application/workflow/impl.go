package workflow

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/expense-workflow/internal/application/dispatcher"
	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/application/query"
	"github.com/garyjia/expense-workflow/internal/application/service"
	"github.com/garyjia/expense-workflow/internal/domain/apperr"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/domain/event"
	"github.com/garyjia/expense-workflow/internal/domain/policy"
	domainwf "github.com/garyjia/expense-workflow/internal/domain/workflow"
)

// MaxReceiptSize is the largest accepted receipt upload in bytes
const MaxReceiptSize = 10 << 20

var receiptExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".pdf":  true,
}

// Dependencies groups the collaborators the engine cannot run without
type Dependencies struct {
	Expenses   port.ExpenseRepository
	Audits     port.AuditRepository
	Users      port.UserRepository
	Categories port.CategoryRepository
	Audit      service.AuditService
	TxManager  port.TransactionManager
	Rates      port.RateResolver
	Validator  service.StructValidator
	Logger     service.Logger
}

// engineImpl is the concrete implementation of Engine
type engineImpl struct {
	Dependencies

	dispatcher dispatcher.Dispatcher
	storage    port.FileStorage
	now        func() time.Time
}

// EngineOption configures the lifecycle engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events after commit
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithReceiptStorage enables receipt uploads
func WithReceiptStorage(storage port.FileStorage) EngineOption {
	return func(e *engineImpl) {
		e.storage = storage
	}
}

// WithNow overrides the creation timestamp source
func WithNow(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new lifecycle engine
func NewEngine(deps Dependencies, opts ...EngineOption) Engine {
	e := &engineImpl{
		Dependencies: deps,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *engineImpl) Create(ctx context.Context, actor entity.Actor, input CreateExpenseInput) (*entity.Expense, error) {
	input.Description = strings.TrimSpace(input.Description)
	input.Currency = strings.ToUpper(strings.TrimSpace(input.Currency))
	if err := e.Validator.Validate(input); err != nil {
		return nil, err
	}

	expenseDate, err := time.Parse(query.DateLayout, input.ExpenseDate)
	if err != nil {
		return nil, apperr.Invalid("expense_date must be a date in %s format", query.DateLayout)
	}

	owner, err := e.Users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load owner: %w", err)
	}
	if owner == nil {
		return nil, apperr.NotFound("user %d not found", actor.ID)
	}

	if input.CategoryID != nil {
		category, err := e.Categories.GetByID(ctx, *input.CategoryID)
		if err != nil {
			return nil, fmt.Errorf("failed to load category: %w", err)
		}
		if category == nil {
			return nil, apperr.NotFound("category %d not found", *input.CategoryID)
		}
	}

	amount := input.Amount.Round(2)
	rate := e.Rates.RateToReference(ctx, input.Currency)

	expense := &entity.Expense{
		Description:      input.Description,
		OriginalAmount:   amount,
		OriginalCurrency: input.Currency,
		ReferenceAmount:  amount.Mul(rate).Round(2),
		ConversionRate:   rate,
		ExpenseDate:      expenseDate,
		CreatedAt:        e.now().UTC(),
		CategoryID:       input.CategoryID,
		OwnerID:          owner.ID,
		DepartmentID:     owner.DepartmentID,
		Status:           domainwf.StateDraft,
	}

	if err := e.Expenses.Create(ctx, expense); err != nil {
		e.Logger.Error("Failed to create expense", "error", err, "owner_id", owner.ID)
		return nil, fmt.Errorf("failed to create expense: %w", err)
	}

	e.Logger.Info("Expense created",
		"expense_id", expense.ID,
		"owner_id", owner.ID,
		"currency", expense.OriginalCurrency,
		"reference_amount", expense.ReferenceAmount.StringFixed(2))

	e.emit(ctx, event.NewEvent(event.TypeExpenseCreated, expense.ID, actor.ID, map[string]interface{}{
		event.KeyOwnerID: owner.ID,
		event.KeyTo:      expense.Status.String(),
	}))

	return expense, nil
}

func (e *engineImpl) SubmitForReview(ctx context.Context, expenseID int64, actor entity.Actor) (*entity.Expense, error) {
	return e.transition(ctx, expenseID, actor, domainwf.TriggerSubmit, entity.CommentSubmitted,
		func(view *entity.ExpenseView) error {
			return policy.AuthorizeSubmit(actor, view.OwnerID)
		})
}

func (e *engineImpl) Approve(ctx context.Context, expenseID int64, actor entity.Actor) (*entity.Expense, error) {
	return e.transition(ctx, expenseID, actor, domainwf.TriggerApprove, entity.CommentApproved,
		func(view *entity.ExpenseView) error {
			return policy.AuthorizeDecision(actor, ownerOf(view))
		})
}

func (e *engineImpl) Reject(ctx context.Context, expenseID int64, actor entity.Actor, comment string) (*entity.Expense, error) {
	if strings.TrimSpace(comment) == "" {
		return nil, apperr.NotPermitted("a comment is required to reject an expense")
	}

	return e.transition(ctx, expenseID, actor, domainwf.TriggerReject, comment,
		func(view *entity.ExpenseView) error {
			return policy.AuthorizeDecision(actor, ownerOf(view))
		})
}

// transition loads, authorizes, moves and audits one expense in a single
// transaction. The status update is conditional on the version that was read.
func (e *engineImpl) transition(
	ctx context.Context,
	expenseID int64,
	actor entity.Actor,
	trigger domainwf.Trigger,
	comment string,
	authorize func(view *entity.ExpenseView) error,
) (*entity.Expense, error) {
	var (
		updated *entity.Expense
		moved   domainwf.Transition
	)

	err := e.TxManager.WithTransaction(ctx, func(txCtx context.Context) error {
		view, err := e.loadView(txCtx, expenseID)
		if err != nil {
			return err
		}

		if err := authorize(view); err != nil {
			return err
		}

		machine := domainwf.NewExpenseStateMachine(view.Status)
		moved, err = machine.Fire(txCtx, trigger)
		if err != nil {
			return apperr.NotPermitted("cannot %s expense %d in status %s",
				strings.ToLower(trigger.String()), expenseID, view.Status)
		}

		if err := e.Expenses.UpdateStatus(txCtx, expenseID, moved.To, view.Version); err != nil {
			return err
		}

		if _, err := e.Audit.RecordTransition(txCtx, expenseID, moved.From, moved.To, actor.ID, comment); err != nil {
			return err
		}

		expense := view.Expense
		expense.Status = moved.To
		expense.Version = view.Version + 1
		updated = &expense
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.Logger.Info("Expense status changed",
		"expense_id", expenseID,
		"actor_id", actor.ID,
		"from", moved.From,
		"to", moved.To)

	e.emit(ctx, event.NewEvent(event.TypeStatusChanged, expenseID, actor.ID, map[string]interface{}{
		event.KeyFrom:    moved.From.String(),
		event.KeyTo:      moved.To.String(),
		event.KeyComment: comment,
		event.KeyOwnerID: updated.OwnerID,
	}))

	return updated, nil
}

func (e *engineImpl) Delete(ctx context.Context, expenseID int64) error {
	err := e.TxManager.WithTransaction(ctx, func(txCtx context.Context) error {
		removed, err := e.deleteOne(txCtx, expenseID)
		if err != nil {
			return err
		}
		if !removed {
			return apperr.NotFound("expense %d not found", expenseID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.Logger.Info("Expense deleted", "expense_id", expenseID)
	e.emit(ctx, event.NewEvent(event.TypeExpenseDeleted, expenseID, 0, nil))
	return nil
}

// DeleteBatch runs in one transaction. Unknown ids are skipped.
func (e *engineImpl) DeleteBatch(ctx context.Context, ids []int64) (int, error) {
	var removedIDs []int64
	seen := make(map[int64]bool, len(ids))

	err := e.TxManager.WithTransaction(ctx, func(txCtx context.Context) error {
		removedIDs = removedIDs[:0]
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true

			removed, err := e.deleteOne(txCtx, id)
			if err != nil {
				return err
			}
			if removed {
				removedIDs = append(removedIDs, id)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	e.Logger.Info("Expenses deleted", "requested", len(ids), "removed", len(removedIDs))
	for _, id := range removedIDs {
		e.emit(ctx, event.NewEvent(event.TypeExpenseDeleted, id, 0, nil))
	}
	return len(removedIDs), nil
}

// deleteOne removes the audit rows first, then the expense
func (e *engineImpl) deleteOne(ctx context.Context, expenseID int64) (bool, error) {
	expense, err := e.Expenses.GetByID(ctx, expenseID)
	if err != nil {
		return false, fmt.Errorf("failed to load expense %d: %w", expenseID, err)
	}
	if expense == nil {
		return false, nil
	}

	if _, err := e.Audits.DeleteByExpense(ctx, expenseID); err != nil {
		return false, fmt.Errorf("failed to delete audit entries of expense %d: %w", expenseID, err)
	}

	removed, err := e.Expenses.Delete(ctx, expenseID)
	if err != nil {
		return false, fmt.Errorf("failed to delete expense %d: %w", expenseID, err)
	}
	return removed, nil
}

func (e *engineImpl) Get(ctx context.Context, expenseID int64, actor entity.Actor) (*entity.ExpenseView, error) {
	view, err := e.loadView(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if err := policy.AuthorizeView(actor, ownerOf(view)); err != nil {
		return nil, err
	}
	return view, nil
}

func (e *engineImpl) Search(ctx context.Context, actor entity.Actor, filter query.Filter) ([]*entity.ExpenseView, error) {
	return e.search(ctx, query.Build(query.Scope{Actor: actor}, filter))
}

func (e *engineImpl) ListAll(ctx context.Context, actor entity.Actor) ([]*entity.ExpenseView, error) {
	if err := policy.RequireRole(actor, entity.RoleAdmin); err != nil {
		return nil, err
	}
	return e.search(ctx, []query.Predicate{query.ScopePredicate(actor)})
}

func (e *engineImpl) ListByOwner(ctx context.Context, actor entity.Actor, ownerID int64) ([]*entity.ExpenseView, error) {
	owner, err := e.Users.GetByID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if owner == nil {
		return nil, apperr.NotFound("user %d not found", ownerID)
	}
	if err := policy.AuthorizeView(actor, policy.OwnerOf(owner)); err != nil {
		return nil, err
	}
	return e.search(ctx, []query.Predicate{query.OwnedBy(ownerID)})
}

func (e *engineImpl) ListByTeam(ctx context.Context, actor entity.Actor, managerID int64) ([]*entity.ExpenseView, error) {
	if actor.Role != entity.RoleAdmin && !(actor.Role == entity.RoleManager && actor.ID == managerID) {
		return nil, apperr.AccessDenied("user %d may not list the team of user %d", actor.ID, managerID)
	}
	return e.search(ctx, []query.Predicate{query.ReportsTo(managerID)})
}

func (e *engineImpl) History(ctx context.Context, expenseID int64, actor entity.Actor) ([]*entity.AuditEntryView, error) {
	if _, err := e.Get(ctx, expenseID, actor); err != nil {
		return nil, err
	}
	return e.Audit.GetHistory(ctx, expenseID)
}

func (e *engineImpl) AttachReceipt(ctx context.Context, expenseID int64, actor entity.Actor, upload ReceiptUpload) (*entity.Expense, error) {
	if e.storage == nil {
		return nil, apperr.NotPermitted("receipt storage is not configured")
	}
	if len(upload.Content) == 0 {
		return nil, apperr.Invalid("receipt file is empty")
	}
	if len(upload.Content) > MaxReceiptSize {
		return nil, apperr.Invalid("receipt file exceeds %d bytes", MaxReceiptSize)
	}
	ext := strings.ToLower(filepath.Ext(upload.FileName))
	if !receiptExtensions[ext] {
		return nil, apperr.Invalid("unsupported receipt file type %q", ext)
	}

	view, err := e.loadView(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if err := policy.AuthorizeSubmit(actor, view.OwnerID); err != nil {
		return nil, err
	}
	if view.Status != domainwf.StateDraft {
		return nil, apperr.NotPermitted("receipts can only be attached to DRAFT expenses, expense %d is %s", expenseID, view.Status)
	}

	key := fmt.Sprintf("receipts/%d/%s%s", expenseID, uuid.New().String(), ext)
	if err := e.storage.Save(ctx, key, upload.Content); err != nil {
		e.Logger.Error("Failed to store receipt", "error", err, "expense_id", expenseID)
		return nil, fmt.Errorf("failed to store receipt: %w", err)
	}

	if err := e.Expenses.SetReceipt(ctx, expenseID, key); err != nil {
		if delErr := e.storage.Delete(ctx, key); delErr != nil {
			e.Logger.Error("Failed to remove orphaned receipt", "error", delErr, "key", key)
		}
		return nil, fmt.Errorf("failed to set receipt: %w", err)
	}

	e.Logger.Info("Receipt attached", "expense_id", expenseID, "key", key, "size", len(upload.Content))
	e.emit(ctx, event.NewEvent(event.TypeReceiptAttached, expenseID, actor.ID, map[string]interface{}{
		"receipt_ref": key,
	}))

	expense := view.Expense
	expense.ReceiptRef = key
	return &expense, nil
}

func (e *engineImpl) RecordAnalysis(ctx context.Context, expenseID int64, analysis entity.AIAnalysis) error {
	if analysis.Confidence < 0 || analysis.Confidence > 1 {
		return apperr.Invalid("confidence must be between 0 and 1, got %v", analysis.Confidence)
	}

	expense, err := e.Expenses.GetByID(ctx, expenseID)
	if err != nil {
		return fmt.Errorf("failed to load expense: %w", err)
	}
	if expense == nil {
		return apperr.NotFound("expense %d not found", expenseID)
	}

	if err := e.Expenses.SetAIAnalysis(ctx, expenseID, analysis); err != nil {
		return fmt.Errorf("failed to store analysis: %w", err)
	}

	e.emit(ctx, event.NewEvent(event.TypeAnalysisCompleted, expenseID, 0, map[string]interface{}{
		"confidence": analysis.Confidence,
		"flagged":    analysis.Flagged,
	}))
	return nil
}

func (e *engineImpl) loadView(ctx context.Context, expenseID int64) (*entity.ExpenseView, error) {
	view, err := e.Expenses.GetView(ctx, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load expense: %w", err)
	}
	if view == nil {
		return nil, apperr.NotFound("expense %d not found", expenseID)
	}
	return view, nil
}

func (e *engineImpl) search(ctx context.Context, preds []query.Predicate) ([]*entity.ExpenseView, error) {
	views, err := e.Expenses.Search(ctx, preds)
	if err != nil {
		e.Logger.Error("Failed to search expenses", "error", err)
		return nil, fmt.Errorf("failed to search expenses: %w", err)
	}
	return views, nil
}

func (e *engineImpl) emit(ctx context.Context, evt *event.Event) {
	if e.dispatcher != nil {
		e.dispatcher.DispatchAsync(ctx, evt)
	}
}

func ownerOf(view *entity.ExpenseView) policy.Owner {
	return policy.Owner{ID: view.OwnerID, ManagerID: view.OwnerManagerID}
}
