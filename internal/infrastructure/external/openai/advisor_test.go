package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/expense-workflow/internal/domain/entity"
)

func completionServer(t *testing.T, content string, captured *map[string]interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		if captured != nil {
			_ = json.Unmarshal(body, captured)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]interface{}{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func sampleExpense() *entity.Expense {
	return &entity.Expense{
		ID:               3,
		Description:      "Team dinner",
		OriginalAmount:   decimal.RequireFromString("120"),
		OriginalCurrency: "USD",
		ReferenceAmount:  decimal.RequireFromString("110.40"),
		ExpenseDate:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:        time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC),
	}
}

func newAdvisor(t *testing.T, srv *httptest.Server) *Advisor {
	t.Helper()
	prompts, err := LoadPrompts("")
	require.NoError(t, err)
	return NewAdvisor(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1"}, prompts, zap.NewNop())
}

func TestAdvisor_Analyze(t *testing.T) {
	var req map[string]interface{}
	srv := completionServer(t, `{"confidence":0.82,"flagged":false,"reasoning":" Plausible team meal. "}`, &req)

	analysis, err := newAdvisor(t, srv).Analyze(context.Background(), sampleExpense())
	require.NoError(t, err)

	assert.InDelta(t, 0.82, analysis.Confidence, 1e-9)
	assert.False(t, analysis.Flagged)
	assert.Equal(t, "Plausible team meal.", analysis.Reasoning)

	assert.Equal(t, "gpt-4o-mini", req["model"])
	format := req["response_format"].(map[string]interface{})
	assert.Equal(t, "json_object", format["type"])
	messages := req["messages"].([]interface{})
	require.Len(t, messages, 2)
	user := messages[1].(map[string]interface{})["content"].(string)
	assert.Contains(t, user, "Team dinner")
	assert.Contains(t, user, "120.00 USD (110.40 EUR)")
}

func TestAdvisor_ParsesFencedJSONAndClamps(t *testing.T) {
	srv := completionServer(t, "```json\n{\"confidence\": 1.7, \"flagged\": true, \"reasoning\": \"x\"}\n```", nil)

	analysis, err := newAdvisor(t, srv).Analyze(context.Background(), sampleExpense())
	require.NoError(t, err)
	assert.Equal(t, 1.0, analysis.Confidence)
	assert.True(t, analysis.Flagged)
}

func TestAdvisor_UnparseableResponse(t *testing.T) {
	srv := completionServer(t, "I cannot help with that.", nil)

	_, err := newAdvisor(t, srv).Analyze(context.Background(), sampleExpense())
	assert.Error(t, err)
}

func TestLoadPrompts(t *testing.T) {
	prompts, err := LoadPrompts("")
	require.NoError(t, err)
	assert.NotEmpty(t, prompts.ExpenseReview.System)
	assert.Equal(t, 400, prompts.ExpenseReview.MaxTokens)

	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("expense_review:\n  temperature: 0.5\n"), 0644))
	_, err = LoadPrompts(path)
	assert.Error(t, err, "system and user_template are required")

	_, err = LoadPrompts(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
