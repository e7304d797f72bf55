package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/utils"
)

// OutboxEvent is a persisted domain event awaiting delivery.
type OutboxEvent struct {
	ID           string
	EventType    string
	Payload      string
	Status       string
	RetryCount   int
	ErrorMessage string
	CreatedAt    time.Time
	ProcessedAt  sql.NullTime
}

// OutboxRepository backs the transactional outbox. Enqueue joins the caller's
// transaction so an event is stored iff the business change commits.
type OutboxRepository struct {
	repo
}

func NewOutboxRepository(db *sql.DB) *OutboxRepository {
	return &OutboxRepository{repo{db: db}}
}

// Enqueue inserts a pending event and returns its id.
func (r *OutboxRepository) Enqueue(ctx context.Context, eventType string, payload interface{}) (string, error) {
	id := utils.GenerateID()

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event payload: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, event_type, payload, status, retry_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)
	`, constants.TableOutboxEvent)

	now := time.Now().UTC()
	if _, err := r.exec(ctx).ExecContext(ctx, query, id, eventType, payloadJSON, constants.OutboxStatusPending, now, now); err != nil {
		return "", fmt.Errorf("failed to enqueue event: %w", err)
	}
	return id, nil
}

// GetPendingEvents returns pending events, oldest first.
func (r *OutboxRepository) GetPendingEvents(ctx context.Context, limit int) ([]OutboxEvent, error) {
	query := fmt.Sprintf(`
		SELECT id, event_type, payload, retry_count, created_at
		FROM %s
		WHERE status = ?
		ORDER BY created_at ASC
		LIMIT ?
	`, constants.TableOutboxEvent)

	rows, err := r.exec(ctx).QueryContext(ctx, query, constants.OutboxStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending events: %w", err)
	}
	defer rows.Close()

	var events []OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.EventType, &e.Payload, &e.RetryCount, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Status = constants.OutboxStatusPending
		events = append(events, e)
	}
	return events, rows.Err()
}

// ClaimEvent locks a pending event. An empty id means another worker holds it.
func (r *OutboxRepository) ClaimEvent(ctx context.Context, id string) (string, error) {
	query := fmt.Sprintf(`
		SELECT id FROM %s
		WHERE id = ? AND status = ?
		FOR UPDATE SKIP LOCKED
	`, constants.TableOutboxEvent)

	var claimedID string
	err := r.exec(ctx).QueryRowContext(ctx, query, id, constants.OutboxStatusPending).Scan(&claimedID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return claimedID, nil
}

// UpdateStatus marks an event processed or failed.
func (r *OutboxRepository) UpdateStatus(ctx context.Context, id, status, errMessage string) error {
	now := time.Now().UTC()
	var query string
	var args []interface{}

	switch status {
	case constants.OutboxStatusProcessed:
		query = fmt.Sprintf("UPDATE %s SET status = ?, processed_at = ?, updated_at = ? WHERE id = ?", constants.TableOutboxEvent)
		args = []interface{}{status, now, now, id}
	case constants.OutboxStatusFailed:
		query = fmt.Sprintf("UPDATE %s SET status = ?, error_message = ?, updated_at = ? WHERE id = ?", constants.TableOutboxEvent)
		args = []interface{}{status, errMessage, now, id}
	default:
		return fmt.Errorf("unsupported status update: %s", status)
	}

	_, err := r.exec(ctx).ExecContext(ctx, query, args...)
	return err
}

// IncrementRetry records a failed attempt.
func (r *OutboxRepository) IncrementRetry(ctx context.Context, id string, newCount int, errMessage string) error {
	query := fmt.Sprintf("UPDATE %s SET retry_count = ?, error_message = ?, updated_at = ? WHERE id = ?", constants.TableOutboxEvent)
	_, err := r.exec(ctx).ExecContext(ctx, query, newCount, errMessage, time.Now().UTC(), id)
	return err
}

// CleanupProcessed deletes processed events older than cutoff.
func (r *OutboxRepository) CleanupProcessed(ctx context.Context, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE status = ? AND processed_at < ?", constants.TableOutboxEvent)
	result, err := r.exec(ctx).ExecContext(ctx, query, constants.OutboxStatusProcessed, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
