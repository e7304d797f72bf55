package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/events"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/ports"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/persistence"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/auth"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
	appErrors "github.com/tfxTanoli/nextperience-crm-sub001/pkg/errors"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/utils"
)

// LeadService runs the lead pipeline, activities and lead to customer conversion.
type LeadService struct {
	leads     *persistence.LeadRepository
	customers *persistence.CustomerRepository
	users     *UserService
	scoring   *ScoringService
	access    *AccessService
	outbox    ports.EventEnqueuer
	txManager *persistence.TransactionManager
	pipeline  *domain.StateMachine
	logger    *zap.Logger
}

func NewLeadService(leads *persistence.LeadRepository, customers *persistence.CustomerRepository, users *UserService,
	scoring *ScoringService, access *AccessService, outbox ports.EventEnqueuer, txManager *persistence.TransactionManager,
	logger *zap.Logger) *LeadService {
	return &LeadService{
		leads:     leads,
		customers: customers,
		users:     users,
		scoring:   scoring,
		access:    access,
		outbox:    outbox,
		txManager: txManager,
		pipeline:  domain.NewLeadPipeline(),
		logger:    logger,
	}
}

// resolveOwner returns the owner for a row the caller creates or reassigns.
// Callers limited to their own rows can only name themselves.
func resolveOwner(ctx context.Context, users *UserService, scope domain.Scope, user *auth.UserSession, resource, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if requested == "" || requested == user.ID {
		return user.ID, nil
	}
	if scope.IsOwnOnly() {
		return "", appErrors.NewPermissionError("assign", resource)
	}
	if err := users.EnsureAssignable(ctx, scope.CompanyID, requested); err != nil {
		return "", err
	}
	return requested, nil
}

func (s *LeadService) CreateLead(ctx context.Context, user *auth.UserSession, input models.LeadInput) (*models.Lead, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceLeads, constants.PermCreate)
	if err != nil {
		return nil, err
	}
	ownerID, err := resolveOwner(ctx, s.users, scope, user, constants.ResourceLeads, utils.Deref(input.OwnerID))
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	lead := &models.Lead{
		ID:        utils.GenerateID(),
		CompanyID: scope.CompanyID,
		OwnerID:   ownerID,
		Status:    constants.LeadStatusNew,
		Source:    constants.LeadSourceOther,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyLeadInput(lead, input)
	if err := validateLead(lead); err != nil {
		return nil, err
	}
	if lead.Score, err = s.scoring.Score(ctx, lead); err != nil {
		return nil, err
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.leads.Create(txCtx, lead); err != nil {
			return err
		}
		return s.outbox.Enqueue(txCtx, events.LeadCreated, eventPayload(lead.CompanyID, lead.ID, user.ID,
			map[string]interface{}{"owner_id": lead.OwnerID, "source": lead.Source, "score": lead.Score}))
	})
	if err != nil {
		return nil, err
	}
	return lead, nil
}

func (s *LeadService) GetLead(ctx context.Context, user *auth.UserSession, id string) (*models.Lead, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceLeads, constants.PermRead)
	if err != nil {
		return nil, err
	}
	lead, err := s.leads.Get(ctx, scope, id)
	if err != nil {
		return nil, notFoundOr(err, "lead", id)
	}
	return lead, nil
}

func (s *LeadService) ListLeads(ctx context.Context, user *auth.UserSession, filter models.LeadFilter) ([]*models.Lead, int, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceLeads, constants.PermRead)
	if err != nil {
		return nil, 0, err
	}
	return s.leads.List(ctx, scope, filter)
}

// UpdateLead applies the non-nil fields and recomputes the score. Won leads are frozen.
func (s *LeadService) UpdateLead(ctx context.Context, user *auth.UserSession, id string, input models.LeadInput) (*models.Lead, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceLeads, constants.PermUpdate)
	if err != nil {
		return nil, err
	}

	var lead *models.Lead
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		if lead, err = s.lockOpenLead(txCtx, scope, id, "update"); err != nil {
			return err
		}
		if input.OwnerID != nil && *input.OwnerID != lead.OwnerID {
			if lead.OwnerID, err = resolveOwner(txCtx, s.users, scope, user, constants.ResourceLeads, *input.OwnerID); err != nil {
				return err
			}
		}
		applyLeadInput(lead, input)
		if err := validateLead(lead); err != nil {
			return err
		}
		if lead.Score, err = s.scoring.Score(txCtx, lead); err != nil {
			return err
		}
		lead.UpdatedAt = time.Now().UTC()
		return notFoundOr(s.leads.Update(txCtx, scope, lead), "lead", id)
	})
	if err != nil {
		return nil, err
	}
	return lead, nil
}

// lockOpenLead locks the lead row and rejects leads that were already converted.
// Must run inside a transaction.
func (s *LeadService) lockOpenLead(ctx context.Context, scope domain.Scope, id, op string) (*models.Lead, error) {
	lead, err := s.leads.GetForUpdate(ctx, scope, id)
	if err != nil {
		return nil, notFoundOr(err, "lead", id)
	}
	if lead.Status == constants.LeadStatusWon || lead.ConvertedCustomerID != nil {
		return nil, appErrors.NewInvalidStateError("lead", lead.Status, op)
	}
	return lead, nil
}

func (s *LeadService) DeleteLead(ctx context.Context, user *auth.UserSession, id string) error {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceLeads, constants.PermDelete)
	if err != nil {
		return err
	}
	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return notFoundOr(s.leads.Delete(txCtx, scope, id), "lead", id)
	})
}

// AssignLead moves a lead to another active user of the company.
func (s *LeadService) AssignLead(ctx context.Context, user *auth.UserSession, id, ownerID string) (*models.Lead, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceLeads, constants.PermUpdate)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(ownerID) == "" {
		return nil, appErrors.NewValidationError("owner_id", "owner is required")
	}
	var lead *models.Lead
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		if lead, err = s.leads.GetForUpdate(txCtx, scope, id); err != nil {
			return notFoundOr(err, "lead", id)
		}
		if ownerID != user.ID {
			if scope.IsOwnOnly() {
				return appErrors.NewPermissionError("assign", constants.ResourceLeads)
			}
			if err := s.users.EnsureAssignable(txCtx, scope.CompanyID, ownerID); err != nil {
				return err
			}
		}
		lead.OwnerID = ownerID
		lead.UpdatedAt = time.Now().UTC()
		return notFoundOr(s.leads.Update(txCtx, scope, lead), "lead", id)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("lead assigned", zap.String("lead_id", id), zap.String("owner_id", ownerID))
	return lead, nil
}

// ChangeStatus moves a lead along the pipeline. "won" is only reachable through ConvertLead.
func (s *LeadService) ChangeStatus(ctx context.Context, user *auth.UserSession, id, status, lostReason string) (*models.Lead, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceLeads, constants.PermUpdate)
	if err != nil {
		return nil, err
	}
	if status == constants.LeadStatusWon {
		return nil, appErrors.NewValidationError("status", "leads are won by converting them")
	}

	var lead *models.Lead
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		if lead, err = s.lockOpenLead(txCtx, scope, id, "move to "+status); err != nil {
			return err
		}
		next, err := s.pipeline.Transition(lead.Status, domain.Action(status))
		if err != nil {
			return appErrors.NewInvalidStateError("lead", lead.Status, "move to "+status)
		}
		if next == constants.LeadStatusLost {
			if lead.LostReason = strings.TrimSpace(lostReason); lead.LostReason == "" {
				return appErrors.NewValidationError("lost_reason", "a reason is required to mark a lead lost")
			}
		} else {
			lead.LostReason = ""
		}
		lead.Status = next
		if lead.Score, err = s.scoring.Score(txCtx, lead); err != nil {
			return err
		}
		lead.UpdatedAt = time.Now().UTC()
		return notFoundOr(s.leads.Update(txCtx, scope, lead), "lead", id)
	})
	if err != nil {
		return nil, err
	}
	return lead, nil
}

func (s *LeadService) AddActivity(ctx context.Context, user *auth.UserSession, leadID string, input models.LeadActivity) (*models.LeadActivity, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceLeads, constants.PermUpdate)
	if err != nil {
		return nil, err
	}
	if _, err := s.leads.Get(ctx, scope, leadID); err != nil {
		return nil, notFoundOr(err, "lead", leadID)
	}
	if !constants.IsValidActivityKind(input.Kind) {
		return nil, appErrors.NewValidationError("kind", "kind must be note, call, email or meeting")
	}
	desc := strings.TrimSpace(input.Description)
	if desc == "" {
		return nil, appErrors.NewValidationError("description", "description is required")
	}
	now := time.Now().UTC()
	activity := &models.LeadActivity{
		ID:          utils.GenerateID(),
		CompanyID:   scope.CompanyID,
		LeadID:      leadID,
		UserID:      user.ID,
		Kind:        input.Kind,
		Description: desc,
		OccurredAt:  input.OccurredAt,
		CreatedAt:   now,
	}
	if activity.OccurredAt.IsZero() {
		activity.OccurredAt = now
	}
	if err := s.leads.AddActivity(ctx, activity); err != nil {
		return nil, err
	}
	return activity, nil
}

func (s *LeadService) ListActivities(ctx context.Context, user *auth.UserSession, leadID string) ([]*models.LeadActivity, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceLeads, constants.PermRead)
	if err != nil {
		return nil, err
	}
	if _, err := s.leads.Get(ctx, scope, leadID); err != nil {
		return nil, notFoundOr(err, "lead", leadID)
	}
	return s.leads.ListActivities(ctx, scope.CompanyID, leadID)
}

// ConvertLead creates a customer from the lead and marks the lead won, atomically.
func (s *LeadService) ConvertLead(ctx context.Context, user *auth.UserSession, id string) (*models.ConvertLeadResult, error) {
	scope, err := s.access.Authorize(ctx, user, constants.ResourceLeads, constants.PermUpdate)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.Authorize(ctx, user, constants.ResourceCustomers, constants.PermCreate); err != nil {
		return nil, err
	}

	var result models.ConvertLeadResult
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		lead, err := s.leads.GetForUpdate(txCtx, scope, id)
		if err != nil {
			return notFoundOr(err, "lead", id)
		}
		if lead.ConvertedCustomerID != nil {
			return appErrors.NewConflictReason("lead", "lead has already been converted")
		}
		next, err := s.pipeline.Transition(lead.Status, domain.ActionConvert)
		if err != nil {
			return appErrors.NewInvalidStateError("lead", lead.Status, "convert")
		}

		now := time.Now().UTC()
		customer := &models.Customer{
			ID:           utils.GenerateID(),
			CompanyID:    lead.CompanyID,
			OwnerID:      lead.OwnerID,
			Name:         lead.Name,
			Email:        lead.Email,
			Phone:        lead.Phone,
			Organization: lead.Organization,
			Notes:        lead.Notes,
			SourceLeadID: &lead.ID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.customers.Create(txCtx, customer); err != nil {
			return err
		}

		lead.Status = next
		lead.ConvertedCustomerID = &customer.ID
		lead.ConvertedAt = &now
		lead.UpdatedAt = now
		if err := s.leads.Update(txCtx, scope, lead); err != nil {
			return err
		}
		result = models.ConvertLeadResult{Lead: lead, Customer: customer}
		return s.outbox.Enqueue(txCtx, events.LeadConverted, eventPayload(lead.CompanyID, lead.ID, user.ID,
			map[string]interface{}{"customer_id": customer.ID}))
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("lead converted", zap.String("lead_id", id), zap.String("customer_id", result.Customer.ID))
	return &result, nil
}

func applyLeadInput(l *models.Lead, in models.LeadInput) {
	if in.Name != nil {
		l.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		l.Email = auth.NormalizeEmail(*in.Email)
	}
	if in.Phone != nil {
		l.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Organization != nil {
		l.Organization = strings.TrimSpace(*in.Organization)
	}
	if in.Source != nil {
		l.Source = strings.TrimSpace(*in.Source)
	}
	if in.EventType != nil {
		l.EventType = strings.TrimSpace(*in.EventType)
	}
	if in.EventDate != nil {
		d := in.EventDate.UTC()
		l.EventDate = &d
	}
	if in.EstimatedPax != nil {
		l.EstimatedPax = *in.EstimatedPax
	}
	if in.Budget != nil {
		l.Budget = utils.RoundMoney(*in.Budget)
	}
	if in.Notes != nil {
		l.Notes = strings.TrimSpace(*in.Notes)
	}
}

func validateLead(l *models.Lead) error {
	if l.Name == "" {
		return appErrors.NewValidationError("name", "name is required")
	}
	if l.Email == "" && l.Phone == "" {
		return appErrors.NewValidationError("email", "email or phone is required")
	}
	if l.Email != "" && !auth.IsValidEmail(l.Email) {
		return appErrors.NewValidationError("email", "invalid email format")
	}
	if !constants.IsValidLeadSource(l.Source) {
		return appErrors.NewValidationError("source", "unknown lead source")
	}
	if l.EstimatedPax < 0 {
		return appErrors.NewValidationError("estimated_pax", "must not be negative")
	}
	if l.Budget < 0 {
		return appErrors.NewValidationError("budget", "must not be negative")
	}
	return nil
}
