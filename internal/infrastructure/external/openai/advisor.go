package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
)

// Config holds OpenAI connection settings
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Advisor implements port.ExpenseAdvisor with a chat completion that returns
// a JSON verdict.
type Advisor struct {
	client  *openai.Client
	model   string
	prompts *PromptConfig
	logger  *zap.Logger
}

// NewAdvisor creates a new OpenAI advisor
func NewAdvisor(cfg Config, prompts *PromptConfig, logger *zap.Logger) *Advisor {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	return &Advisor{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   model,
		prompts: prompts,
		logger:  logger,
	}
}

type promptData struct {
	Description       string
	Amount            string
	Currency          string
	ReferenceAmount   string
	ReferenceCurrency string
	ExpenseDate       string
	CreatedAt         string
	HasReceipt        bool
}

type verdict struct {
	Confidence float64 `json:"confidence"`
	Flagged    bool    `json:"flagged"`
	Reasoning  string  `json:"reasoning"`
}

// Analyze asks the model for an advisory verdict on expense
func (a *Advisor) Analyze(ctx context.Context, expense *entity.Expense) (*entity.AIAnalysis, error) {
	p := a.prompts.ExpenseReview

	prompt, err := renderTemplate(p.UserTemplate, promptData{
		Description:       expense.Description,
		Amount:            expense.OriginalAmount.StringFixed(2),
		Currency:          expense.OriginalCurrency,
		ReferenceAmount:   expense.ReferenceAmount.StringFixed(2),
		ReferenceCurrency: entity.ReferenceCurrency,
		ExpenseDate:       expense.ExpenseDate.Format("2006-01-02"),
		CreatedAt:         expense.CreatedAt.Format("2006-01-02"),
		HasReceipt:        expense.ReceiptRef != "",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render prompt: %w", err)
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		a.logger.Error("OpenAI API call failed", zap.Int64("expense_id", expense.ID), zap.Error(err))
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	content := resp.Choices[0].Message.Content
	var v verdict
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		// Some models still wrap the object in a markdown fence
		jsonStr := extractJSON(content)
		if jsonStr == "" || json.Unmarshal([]byte(jsonStr), &v) != nil {
			a.logger.Error("Failed to parse OpenAI response", zap.Error(err), zap.String("content", content))
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
	}

	analysis := &entity.AIAnalysis{
		Confidence: clamp(v.Confidence),
		Flagged:    v.Flagged,
		Reasoning:  strings.TrimSpace(v.Reasoning),
	}

	a.logger.Info("Expense review completed",
		zap.Int64("expense_id", expense.ID),
		zap.Float64("confidence", analysis.Confidence),
		zap.Bool("flagged", analysis.Flagged))

	return analysis, nil
}

// extractJSON returns the outermost {...} in content, or ""
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return ""
	}
	return content[start : end+1]
}

func clamp(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

var _ port.ExpenseAdvisor = (*Advisor)(nil)
