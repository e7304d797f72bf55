package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/events"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/ports"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/cache"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/google"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/persistence"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/auth"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/crypto"
	appErrors "github.com/tfxTanoli/nextperience-crm-sub001/pkg/errors"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/utils"
)

const (
	tokenRefreshMargin   = time.Minute
	refreshAheadWindow   = 10 * time.Minute
	refreshBatchSize     = 100
	oauthStateTokenBytes = 32
)

// IntegrationService connects users' Google accounts and mirrors event orders to their calendars.
type IntegrationService struct {
	integrations *persistence.IntegrationRepository
	eventOrders  *persistence.EventOrderRepository
	companies    *persistence.CompanyRepository
	google       ports.GoogleProvider
	states       ports.OAuthStateStore
	sealer       *crypto.Sealer
	access       *AccessService
	logger       *zap.Logger
	now          func() time.Time
}

func NewIntegrationService(integrations *persistence.IntegrationRepository, eventOrders *persistence.EventOrderRepository,
	companies *persistence.CompanyRepository, googleProvider ports.GoogleProvider, states ports.OAuthStateStore,
	sealer *crypto.Sealer, access *AccessService, logger *zap.Logger) *IntegrationService {
	return &IntegrationService{
		integrations: integrations,
		eventOrders:  eventOrders,
		companies:    companies,
		google:       googleProvider,
		states:       states,
		sealer:       sealer,
		access:       access,
		logger:       logger,
		now:          time.Now,
	}
}

// RegisterHandlers subscribes the calendar sync to event order changes.
func (s *IntegrationService) RegisterHandlers(bus ports.EventPublisher) {
	for _, t := range []events.EventType{events.EventOrderConfirmed, events.EventOrderUpdated, events.EventOrderCancelled} {
		bus.Subscribe(t, s.SyncEventOrderToCalendar)
	}
}

func (s *IntegrationService) enabled() error {
	if s.google == nil || !s.google.Enabled() {
		return appErrors.NewExternalServiceError("google", http.StatusServiceUnavailable, "google integration is not configured")
	}
	return nil
}

// GoogleAuthURL starts the consent flow. The state is single use and bound to the caller.
func (s *IntegrationService) GoogleAuthURL(ctx context.Context, user *auth.UserSession) (string, error) {
	if _, err := s.access.Authorize(ctx, user, constants.ResourceIntegrations, constants.PermCreate); err != nil {
		return "", err
	}
	if err := s.enabled(); err != nil {
		return "", err
	}
	state, err := utils.RandomToken(oauthStateTokenBytes)
	if err != nil {
		return "", appErrors.NewInternalError("failed to generate oauth state", err)
	}
	if err := s.states.Save(ctx, state, cache.OAuthState{
		UserID:    user.ID,
		CompanyID: user.CompanyID,
		Provider:  constants.ProviderGoogle,
	}); err != nil {
		return "", err
	}
	return s.google.AuthCodeURL(state), nil
}

// GoogleCallback completes the consent flow and stores the sealed tokens.
func (s *IntegrationService) GoogleCallback(ctx context.Context, state, code string) (*models.IntegrationStatus, error) {
	if err := s.enabled(); err != nil {
		return nil, err
	}
	if state == "" || code == "" {
		return nil, appErrors.NewValidationError("state", "state and code are required")
	}
	bound, err := s.states.Consume(ctx, state)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, appErrors.NewUnauthorizedError("invalid or expired oauth state")
		}
		return nil, err
	}
	if bound.Provider != constants.ProviderGoogle {
		return nil, appErrors.NewUnauthorizedError("invalid or expired oauth state")
	}

	token, err := s.google.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	email, err := s.google.UserEmail(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	integration := &models.Integration{
		ID:             utils.GenerateID(),
		CompanyID:      bound.CompanyID,
		UserID:         bound.UserID,
		Provider:       constants.ProviderGoogle,
		AccountEmail:   email,
		TokenExpiresAt: token.ExpiresAt,
		Scopes:         token.Scope,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if integration.AccessToken, err = s.sealer.Seal(token.AccessToken); err != nil {
		return nil, appErrors.NewInternalError("failed to seal access token", err)
	}
	if token.RefreshToken != "" {
		if integration.RefreshToken, err = s.sealer.Seal(token.RefreshToken); err != nil {
			return nil, appErrors.NewInternalError("failed to seal refresh token", err)
		}
	} else if existing, err := s.integrations.Get(ctx, bound.UserID, constants.ProviderGoogle); err == nil {
		integration.RefreshToken = existing.RefreshToken
	}
	if err := s.integrations.Upsert(ctx, integration); err != nil {
		return nil, err
	}

	s.logger.Info("Google account connected", zap.String("user_id", bound.UserID), zap.String("account", email))
	return integrationStatus(integration), nil
}

func integrationStatus(i *models.Integration) *models.IntegrationStatus {
	if i == nil {
		return &models.IntegrationStatus{Provider: constants.ProviderGoogle}
	}
	expires := i.TokenExpiresAt
	return &models.IntegrationStatus{
		Provider:     i.Provider,
		Connected:    true,
		AccountEmail: i.AccountEmail,
		ExpiresAt:    &expires,
	}
}

func (s *IntegrationService) GoogleStatus(ctx context.Context, user *auth.UserSession) (*models.IntegrationStatus, error) {
	if _, err := s.access.Authorize(ctx, user, constants.ResourceIntegrations, constants.PermRead); err != nil {
		return nil, err
	}
	integration, err := s.integrations.Get(ctx, user.ID, constants.ProviderGoogle)
	if errors.Is(err, sql.ErrNoRows) {
		return integrationStatus(nil), nil
	}
	if err != nil {
		return nil, err
	}
	return integrationStatus(integration), nil
}

// DisconnectGoogle revokes the grant at Google and forgets the tokens. A failed revoke is logged only.
func (s *IntegrationService) DisconnectGoogle(ctx context.Context, user *auth.UserSession) error {
	if _, err := s.access.Authorize(ctx, user, constants.ResourceIntegrations, constants.PermDelete); err != nil {
		return err
	}
	integration, err := s.integrations.Get(ctx, user.ID, constants.ProviderGoogle)
	if err != nil {
		return notFoundOr(err, "integration", constants.ProviderGoogle)
	}

	if s.google != nil && s.google.Enabled() {
		sealed := integration.RefreshToken
		if sealed == "" {
			sealed = integration.AccessToken
		}
		if token, err := s.sealer.Open(sealed); err == nil {
			if err := s.google.Revoke(ctx, token); err != nil {
				s.logger.Warn("Google token revoke failed", zap.String("user_id", user.ID), zap.Error(err))
			}
		}
	}
	return notFoundOr(s.integrations.Delete(ctx, user.ID, constants.ProviderGoogle), "integration", constants.ProviderGoogle)
}

// ValidAccessToken returns a usable access token, refreshing it when it expires within a minute.
func (s *IntegrationService) ValidAccessToken(ctx context.Context, integration *models.Integration) (string, error) {
	if integration.TokenExpiresAt.After(s.now().Add(tokenRefreshMargin)) {
		token, err := s.sealer.Open(integration.AccessToken)
		if err != nil {
			return "", appErrors.NewInternalError("failed to open access token", err)
		}
		return token, nil
	}
	return s.refresh(ctx, integration)
}

func (s *IntegrationService) refresh(ctx context.Context, integration *models.Integration) (string, error) {
	if err := s.enabled(); err != nil {
		return "", err
	}
	if integration.RefreshToken == "" {
		return "", appErrors.NewUnauthorizedError("google connection has no refresh token, reconnect the account")
	}
	refreshToken, err := s.sealer.Open(integration.RefreshToken)
	if err != nil {
		return "", appErrors.NewInternalError("failed to open refresh token", err)
	}
	token, err := s.google.Refresh(ctx, refreshToken)
	if err != nil {
		return "", err
	}
	sealed, err := s.sealer.Seal(token.AccessToken)
	if err != nil {
		return "", appErrors.NewInternalError("failed to seal access token", err)
	}
	if err := s.integrations.UpdateTokens(ctx, integration.ID, sealed, token.ExpiresAt); err != nil {
		return "", err
	}
	integration.AccessToken = sealed
	integration.TokenExpiresAt = token.ExpiresAt
	return token.AccessToken, nil
}

// RefreshExpiring refreshes tokens that expire soon so calendar syncs do not stall on a refresh.
func (s *IntegrationService) RefreshExpiring(ctx context.Context) (int, error) {
	if s.google == nil || !s.google.Enabled() {
		return 0, nil
	}
	expiring, err := s.integrations.ListExpiring(ctx, constants.ProviderGoogle, s.now().UTC().Add(refreshAheadWindow), refreshBatchSize)
	if err != nil {
		return 0, err
	}
	refreshed := 0
	for _, integration := range expiring {
		if integration.RefreshToken == "" {
			continue
		}
		if _, err := s.refresh(ctx, integration); err != nil {
			s.logger.Warn("Google token refresh failed", zap.String("user_id", integration.UserID), zap.Error(err))
			continue
		}
		refreshed++
	}
	return refreshed, nil
}

// SyncEventOrderToCalendar mirrors an event order onto its owner's primary calendar.
// Owners without a Google connection are skipped.
func (s *IntegrationService) SyncEventOrderToCalendar(ctx context.Context, payload events.Payload) error {
	if s.google == nil || !s.google.Enabled() {
		return nil
	}
	order, err := s.eventOrders.Get(ctx, domain.CompanyScope(payload.CompanyID), payload.EntityID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	integration, err := s.integrations.Get(ctx, order.OwnerID, constants.ProviderGoogle)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	accessToken, err := s.ValidAccessToken(ctx, integration)
	if err != nil {
		return err
	}

	if order.Status == constants.EventOrderStatusCancelled {
		if order.CalendarEventID == "" {
			return nil
		}
		if err := s.google.DeleteCalendarEvent(ctx, accessToken, order.CalendarEventID); err != nil {
			return err
		}
		return s.eventOrders.SetCalendarEventID(ctx, order.CompanyID, order.ID, "")
	}

	timezone := constants.DefaultTimezone
	if company, err := s.companies.GetByID(ctx, order.CompanyID); err == nil {
		timezone = company.Timezone
	}
	calendarID, err := s.google.UpsertCalendarEvent(ctx, accessToken, order.CalendarEventID, google.CalendarEvent{
		Summary:     fmt.Sprintf("%s %s", order.Number, order.Title),
		Description: calendarDescription(order),
		Location:    order.Venue,
		Date:        order.EventDate,
		StartTime:   order.StartTime,
		EndTime:     order.EndTime,
		TimeZone:    timezone,
	})
	if err != nil {
		return err
	}
	if calendarID != order.CalendarEventID {
		if err := s.eventOrders.SetCalendarEventID(ctx, order.CompanyID, order.ID, calendarID); err != nil {
			return err
		}
	}
	s.logger.Debug("Event order synced to calendar", zap.String("event_order_id", order.ID), zap.String("calendar_event_id", calendarID))
	return nil
}

func calendarDescription(order *models.EventOrder) string {
	desc := fmt.Sprintf("Event order %s\nType: %s\nPax: %d", order.Number, order.EventType, order.Pax)
	if order.Notes != "" {
		desc += "\n\n" + order.Notes
	}
	return desc
}
