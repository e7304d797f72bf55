package services

import (
	"context"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/persistence"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/auth"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
	appErrors "github.com/tfxTanoli/nextperience-crm-sub001/pkg/errors"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/utils"
)

const (
	defaultDashboardDays = 30
	upcomingEventDays    = 30
	upcomingEventLimit   = 10
	reportQueryTimeout   = 15 * time.Second
)

type ReportService struct {
	reports     *persistence.ReportRepository
	eventOrders *persistence.EventOrderRepository
	validator   *QueryValidator
	access      *AccessService
	logger      *zap.Logger
	now         func() time.Time
}

func NewReportService(reports *persistence.ReportRepository, eventOrders *persistence.EventOrderRepository,
	validator *QueryValidator, access *AccessService, logger *zap.Logger) *ReportService {
	return &ReportService{
		reports:     reports,
		eventOrders: eventOrders,
		validator:   validator,
		access:      access,
		logger:      logger,
		now:         time.Now,
	}
}

// Dashboard summarises pipeline and revenue in [from, to). Nil bounds default to the last 30 days.
func (s *ReportService) Dashboard(ctx context.Context, user *auth.UserSession, from, to *time.Time) (*models.Dashboard, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceReports, constants.PermRead)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	end := now
	if to != nil {
		end = to.UTC()
	}
	start := end.AddDate(0, 0, -defaultDashboardDays)
	if from != nil {
		start = from.UTC()
	}
	if !start.Before(end) {
		return nil, appErrors.NewValidationError("from", "from must be before to")
	}

	d := &models.Dashboard{From: start, To: end}
	if d.LeadsByStatus, err = s.reports.LeadsByStatus(ctx, scope, start, end); err != nil {
		return nil, err
	}
	if d.QuotationsByStatus, err = s.reports.QuotationsByStatus(ctx, scope, start, end); err != nil {
		return nil, err
	}
	if d.RevenueCollected, err = s.reports.RevenueCollected(ctx, scope, start, end); err != nil {
		return nil, err
	}
	d.ConversionRate = conversionRate(d.LeadsByStatus)

	today := startOfDay(now, time.UTC)
	if d.UpcomingEvents, err = s.eventOrders.Upcoming(ctx, scope, today, today.AddDate(0, 0, upcomingEventDays), upcomingEventLimit); err != nil {
		return nil, err
	}
	return d, nil
}

// conversionRate is the percentage of leads in the period that were won.
func conversionRate(byStatus []models.StatusTotal) float64 {
	total := lo.SumBy(byStatus, func(s models.StatusTotal) int { return s.Count })
	if total == 0 {
		return 0
	}
	won := lo.SumBy(byStatus, func(s models.StatusTotal) int {
		if s.Status == constants.LeadStatusWon {
			return s.Count
		}
		return 0
	})
	return utils.RoundMoney(float64(won) * 100 / float64(total))
}

// RunQuery executes an ad-hoc SELECT limited to the caller's rows.
func (s *ReportService) RunQuery(ctx context.Context, user *auth.UserSession, query string) (*models.QueryResult, error) {
	if _, err := s.access.Authorize(ctx, user, constants.ResourceReports, constants.PermRead); err != nil {
		return nil, err
	}
	rewritten, err := s.validator.ValidateAndRewrite(query, func(resource string) (domain.Scope, error) {
		return s.access.Authorize(ctx, user, resource, constants.PermRead)
	})
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, reportQueryTimeout)
	defer cancel()
	result, err := s.reports.RunQuery(queryCtx, rewritten, nil, constants.ReportMaxRows)
	if err != nil {
		s.logger.Warn("Report query failed", zap.String("user_id", user.ID), zap.Error(err))
		return nil, appErrors.NewValidationError("query", err.Error())
	}
	return result, nil
}
