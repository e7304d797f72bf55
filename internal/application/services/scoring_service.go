package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/persistence"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/auth"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
	appErrors "github.com/tfxTanoli/nextperience-crm-sub001/pkg/errors"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/expression"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/utils"
)

const (
	minLeadScore = 0
	maxLeadScore = 100
)

// ScoringService manages lead scoring rules and scores leads against them.
type ScoringService struct {
	rules  *persistence.ScoringRuleRepository
	engine *expression.Engine
	access *AccessService
	logger *zap.Logger
	now    func() time.Time
}

func NewScoringService(rules *persistence.ScoringRuleRepository, engine *expression.Engine,
	access *AccessService, logger *zap.Logger) *ScoringService {
	return &ScoringService{rules: rules, engine: engine, access: access, logger: logger, now: time.Now}
}

// Score evaluates the company's active rules against the lead.
func (s *ScoringService) Score(ctx context.Context, lead *models.Lead) (int, error) {
	rules, err := s.rules.List(ctx, lead.CompanyID, true)
	if err != nil {
		return 0, err
	}
	return s.score(rules, lead), nil
}

// score sums the points of every rule that evaluates to true, clamped to 0..100.
// A rule that fails at runtime counts as false.
func (s *ScoringService) score(rules []*models.LeadScoringRule, lead *models.Lead) int {
	env := lead.ScoringEnv(s.now())
	total := 0
	for _, r := range rules {
		if !r.IsActive {
			continue
		}
		ok, err := s.engine.EvaluateBool(r.Expression, env)
		if err != nil {
			s.logger.Debug("scoring rule failed", zap.String("rule_id", r.ID), zap.Error(err))
			continue
		}
		if ok {
			total += r.Points
		}
	}
	if total < minLeadScore {
		return minLeadScore
	}
	if total > maxLeadScore {
		return maxLeadScore
	}
	return total
}

// validateRule compiles the expression against a sample lead and requires a boolean result.
func (s *ScoringService) validateRule(rule *models.LeadScoringRule) error {
	if strings.TrimSpace(rule.Name) == "" {
		return appErrors.NewValidationError("name", "name is required")
	}
	if rule.Points < -maxLeadScore || rule.Points > maxLeadScore {
		return appErrors.NewValidationError("points", "points must be between -100 and 100")
	}
	sample := (&models.Lead{}).ScoringEnv(s.now())
	if err := s.engine.Validate(rule.Expression, sample); err != nil {
		return appErrors.NewValidationError("expression", err.Error())
	}
	if _, err := s.engine.EvaluateBool(rule.Expression, sample); err != nil {
		return appErrors.NewValidationError("expression", err.Error())
	}
	return nil
}

func (s *ScoringService) ListRules(ctx context.Context, user *auth.UserSession) ([]*models.LeadScoringRule, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceLeads, constants.PermRead)
	if err != nil {
		return nil, err
	}
	return s.rules.List(ctx, scope.CompanyID, false)
}

func (s *ScoringService) CreateRule(ctx context.Context, user *auth.UserSession, input models.LeadScoringRule) (*models.LeadScoringRule, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceSettings, constants.PermUpdate)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	rule := &models.LeadScoringRule{
		ID:         utils.GenerateID(),
		CompanyID:  scope.CompanyID,
		Name:       strings.TrimSpace(input.Name),
		Expression: strings.TrimSpace(input.Expression),
		Points:     input.Points,
		IsActive:   input.IsActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.validateRule(rule); err != nil {
		return nil, err
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *ScoringService) UpdateRule(ctx context.Context, user *auth.UserSession, id string, input models.LeadScoringRule) (*models.LeadScoringRule, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceSettings, constants.PermUpdate)
	if err != nil {
		return nil, err
	}
	rule, err := s.rules.Get(ctx, scope.CompanyID, id)
	if err != nil {
		return nil, notFoundOr(err, "scoring rule", id)
	}
	rule.Name = strings.TrimSpace(input.Name)
	rule.Expression = strings.TrimSpace(input.Expression)
	rule.Points = input.Points
	rule.IsActive = input.IsActive
	rule.UpdatedAt = time.Now().UTC()
	if err := s.validateRule(rule); err != nil {
		return nil, err
	}
	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, notFoundOr(err, "scoring rule", id)
	}
	return rule, nil
}

func (s *ScoringService) DeleteRule(ctx context.Context, user *auth.UserSession, id string) error {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceSettings, constants.PermUpdate)
	if err != nil {
		return err
	}
	return notFoundOr(s.rules.Delete(ctx, scope.CompanyID, id), "scoring rule", id)
}
