package services

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/events"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/persistence"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/auth"
	appErrors "github.com/tfxTanoli/nextperience-crm-sub001/pkg/errors"
)

// notFoundOr maps sql.ErrNoRows to a NotFoundError and passes other errors through.
func notFoundOr(err error, resource, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.NewNotFoundError(resource, id)
	}
	return err
}

// duplicateOr maps a unique key violation to a ConflictError.
func duplicateOr(err error, resource, field, value string) error {
	if persistence.IsDuplicateKey(err) {
		return appErrors.NewConflictError(resource, field, value)
	}
	return err
}

func requireUser(user *auth.UserSession) error {
	if user == nil || user.ID == "" {
		return appErrors.NewUnauthorizedError("authentication required")
	}
	return nil
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func eventPayload(companyID, entityID, actorID string, data map[string]interface{}) events.Payload {
	return events.Payload{
		CompanyID:  companyID,
		EntityID:   entityID,
		ActorID:    actorID,
		OccurredAt: time.Now().Unix(),
		Data:       data,
	}
}

// startOfDay truncates t to midnight in loc.
func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func companyLocation(tz string) *time.Location {
	if loc, err := time.LoadLocation(tz); err == nil {
		return loc
	}
	return time.UTC
}
