package expression

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Evaluate(t *testing.T) {
	e := NewEngine()

	tests := []struct {
		name     string
		expr     string
		env      map[string]interface{}
		expected interface{}
	}{
		{"Simple Math", "1 + 1", map[string]interface{}{}, 2},
		{"Variable Access", "budget > 10000", map[string]interface{}{"budget": 25000.0}, true},
		{"Nested Access", "customer.name", map[string]interface{}{"customer": map[string]interface{}{"name": "Acme"}}, "Acme"},
		{"Ternary", "pax > 100 ? 'large' : 'small'", map[string]interface{}{"pax": 150}, "large"},
		{"Upper", "UPPER(source)", map[string]interface{}{"source": "referral"}, "REFERRAL"},
		{"Contains", "CONTAINS(event_type, 'wed')", map[string]interface{}{"event_type": "Wedding"}, true},
		{"If", "IF(has_email, 5, 0)", map[string]interface{}{"has_email": true}, 5},
		{"Round", "ROUND(10.456, 2)", map[string]interface{}{}, 10.46},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(tt.expr, tt.env)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestEngine_Today(t *testing.T) {
	e := NewEngine()
	e.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	got, err := e.Evaluate("TODAY()", map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", got)
}

func TestEngine_EvaluateBool(t *testing.T) {
	e := NewEngine()
	ok, err := e.EvaluateBool("source == 'referral'", map[string]interface{}{"source": "referral"})
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = e.EvaluateBool("budget * 2", map[string]interface{}{"budget": 10.0})
	assert.Error(t, err)
}

func TestEngine_Validate(t *testing.T) {
	e := NewEngine()
	env := map[string]interface{}{"budget": 0.0, "source": ""}
	assert.NoError(t, e.Validate("budget > 5000 && source == 'ads'", env))
	assert.Error(t, e.Validate("budget >", env))
	assert.Error(t, e.Validate("unknown_field > 1", env))
	assert.Error(t, e.Validate("   ", env))
}

func TestEngine_Substitute(t *testing.T) {
	e := NewEngine()
	env := map[string]interface{}{
		"customer":  map[string]interface{}{"name": "Budi"},
		"quotation": map[string]interface{}{"number": "QUO-2026-0007", "total": 1500000.0},
	}

	out := e.Substitute("Dear {{ customer.name }}, quotation {{quotation.number}} totals {{ quotation.total }}.{{ missing.value }}", env)
	assert.Equal(t, "Dear Budi, quotation QUO-2026-0007 totals 1500000.", out)

	assert.Equal(t, "no placeholders", e.Substitute("no placeholders", env))
}
