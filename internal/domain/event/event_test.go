package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      bool
	}{
		{"created", TypeExpenseCreated, true},
		{"status changed", TypeStatusChanged, true},
		{"deleted", TypeExpenseDeleted, true},
		{"unknown", Type("expense.archived"), false},
		{"empty", Type(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.eventType.IsValid())
		})
	}
}

func TestNewEvent(t *testing.T) {
	evt := NewEvent(TypeStatusChanged, 42, 7, map[string]interface{}{KeyFrom: "DRAFT"})

	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, evt.ID, evt.CorrelationID)
	assert.Equal(t, int64(42), evt.ExpenseID)
	assert.Equal(t, int64(7), evt.ActorID)
	assert.False(t, evt.Timestamp.IsZero())
	assert.Equal(t, "DRAFT", evt.GetPayloadString(KeyFrom))

	other := NewEvent(TypeStatusChanged, 42, 7, nil)
	assert.NotEqual(t, evt.ID, other.ID)
	assert.NotNil(t, other.Payload)
}

func TestNewEventWithCorrelation(t *testing.T) {
	parent := NewEvent(TypeStatusChanged, 1, 1, nil)
	child := NewEventWithCorrelation(TypeAnalysisCompleted, 1, 0, nil, parent.CorrelationID)

	assert.Equal(t, parent.CorrelationID, child.CorrelationID)
	assert.NotEqual(t, parent.ID, child.ID)
}

func TestWithPayload_DoesNotMutateOriginal(t *testing.T) {
	evt := NewEvent(TypeStatusChanged, 1, 1, map[string]interface{}{KeyTo: "APPROVED"})
	updated := evt.WithPayload(KeyComment, "ok")

	assert.Equal(t, "ok", updated.GetPayloadString(KeyComment))
	assert.Empty(t, evt.GetPayloadString(KeyComment))
	assert.Equal(t, evt.ID, updated.ID)
}

func TestGetPayloadInt(t *testing.T) {
	evt := NewEvent(TypeStatusChanged, 1, 1, map[string]interface{}{
		"int":    3,
		"int64":  int64(4),
		"float":  5.0,
		"string": "6",
	})

	assert.Equal(t, int64(3), evt.GetPayloadInt("int"))
	assert.Equal(t, int64(4), evt.GetPayloadInt("int64"))
	assert.Equal(t, int64(5), evt.GetPayloadInt("float"))
	assert.Equal(t, int64(0), evt.GetPayloadInt("string"))
	assert.Equal(t, int64(0), evt.GetPayloadInt("missing"))
}
