package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/expression"
	appErrors "github.com/tfxTanoli/nextperience-crm-sub001/pkg/errors"
)

func newTestScoringService() *ScoringService {
	s := NewScoringService(nil, expression.NewEngine(), nil, zap.NewNop())
	s.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	return s
}

func TestScoringService_Score(t *testing.T) {
	s := newTestScoringService()
	lead := &models.Lead{Budget: 50000000, EstimatedPax: 250, Source: "referral", Email: "a@b.co"}

	tests := []struct {
		name  string
		rules []*models.LeadScoringRule
		want  int
	}{
		{
			name: "sums matching rules",
			rules: []*models.LeadScoringRule{
				{ID: "r1", Expression: "budget >= 10000000", Points: 30, IsActive: true},
				{ID: "r2", Expression: `source == "referral"`, Points: 20, IsActive: true},
				{ID: "r3", Expression: "estimated_pax < 100", Points: 25, IsActive: true},
			},
			want: 50,
		},
		{
			name: "skips inactive rules",
			rules: []*models.LeadScoringRule{
				{ID: "r1", Expression: "has_email", Points: 40, IsActive: false},
				{ID: "r2", Expression: "has_email", Points: 10, IsActive: true},
			},
			want: 10,
		},
		{
			name: "clamps to 100",
			rules: []*models.LeadScoringRule{
				{ID: "r1", Expression: "budget > 0", Points: 80, IsActive: true},
				{ID: "r2", Expression: "estimated_pax > 0", Points: 80, IsActive: true},
			},
			want: 100,
		},
		{
			name: "clamps to zero",
			rules: []*models.LeadScoringRule{
				{ID: "r1", Expression: "has_email", Points: -60, IsActive: true},
			},
			want: 0,
		},
		{
			name: "non boolean rule counts as false",
			rules: []*models.LeadScoringRule{
				{ID: "r1", Expression: "budget", Points: 50, IsActive: true},
				{ID: "r2", Expression: "has_email", Points: 5, IsActive: true},
			},
			want: 5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.score(tt.rules, lead))
		})
	}
}

func TestScoringService_ValidateRule(t *testing.T) {
	s := newTestScoringService()

	assert.NoError(t, s.validateRule(&models.LeadScoringRule{Name: "Big budget", Expression: "budget > 1000", Points: 10}))

	tests := []struct {
		name string
		rule models.LeadScoringRule
	}{
		{"missing name", models.LeadScoringRule{Expression: "budget > 1", Points: 1}},
		{"points out of range", models.LeadScoringRule{Name: "x", Expression: "budget > 1", Points: 101}},
		{"unknown field", models.LeadScoringRule{Name: "x", Expression: "salary > 1", Points: 1}},
		{"not boolean", models.LeadScoringRule{Name: "x", Expression: "budget * 2", Points: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := tt.rule
			assert.True(t, appErrors.IsValidation(s.validateRule(&rule)))
		})
	}
}
