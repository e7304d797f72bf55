package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/events"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/ports"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/messaging"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/persistence"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/metrics"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
)

const outboxBatchSize = 100

// OutboxService handles transactional event storage and async publishing.
// Events are delivered at least once: first to in-process subscribers, then to the broker.
type OutboxService struct {
	repo      *persistence.OutboxRepository
	eventBus  *EventBus
	publisher messaging.Publisher
	txManager *persistence.TransactionManager
	logger    *zap.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

var _ ports.EventEnqueuer = (*OutboxService)(nil)

// NewOutboxService creates a new OutboxService. A nil publisher keeps delivery in-process.
func NewOutboxService(repo *persistence.OutboxRepository, eventBus *EventBus, publisher messaging.Publisher,
	txManager *persistence.TransactionManager, logger *zap.Logger) *OutboxService {
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	return &OutboxService{
		repo:      repo,
		eventBus:  eventBus,
		publisher: publisher,
		txManager: txManager,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

// Enqueue stores an event in the outbox. When ctx carries a transaction the insert joins it,
// so the event exists iff the business change commits.
func (s *OutboxService) Enqueue(ctx context.Context, eventType events.EventType, payload events.Payload) error {
	if payload.OccurredAt == 0 {
		payload.OccurredAt = time.Now().Unix()
	}
	id, err := s.repo.Enqueue(ctx, eventType.String(), payload)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", eventType, err)
	}
	s.logger.Debug("outbox event enqueued", zap.String("event_id", id), zap.String("event_type", eventType.String()))
	return nil
}

// StartWorker starts the background worker that processes pending outbox events.
func (s *OutboxService) StartWorker(interval time.Duration) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		s.logger.Info("outbox worker started", zap.Duration("interval", interval))
		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				if err := s.ProcessOutbox(context.Background()); err != nil {
					s.logger.Warn("outbox worker error", zap.Error(err))
				}
			}
		}
	}()
}

// StopWorker stops the background worker gracefully
func (s *OutboxService) StopWorker() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
	s.logger.Info("outbox worker stopped")
}

// ProcessOutbox delivers one batch of pending events. Each event is claimed and
// settled in its own transaction.
func (s *OutboxService) ProcessOutbox(ctx context.Context) error {
	pending, err := s.repo.GetPendingEvents(ctx, outboxBatchSize)
	if err != nil {
		return err
	}

	for _, e := range pending {
		if err := s.processEventAtomic(ctx, e); err != nil {
			s.logger.Warn("failed to process outbox event", zap.String("event_id", e.ID), zap.Error(err))
		}
	}
	return nil
}

func (s *OutboxService) processEventAtomic(ctx context.Context, e persistence.OutboxEvent) error {
	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		claimedID, err := s.repo.ClaimEvent(txCtx, e.ID)
		if err != nil {
			return fmt.Errorf("failed to claim event: %w", err)
		}
		if claimedID == "" {
			return nil
		}

		var payload events.Payload
		if err := json.Unmarshal([]byte(e.Payload), &payload); err != nil {
			metrics.RecordOutboxEvent(e.EventType, constants.OutboxStatusFailed)
			return s.repo.UpdateStatus(txCtx, e.ID, constants.OutboxStatusFailed, fmt.Sprintf("invalid payload: %v", err))
		}

		if err := s.deliver(txCtx, e, payload); err != nil {
			retries := e.RetryCount + 1
			if retries >= constants.OutboxMaxRetries {
				s.logger.Error("outbox event failed permanently",
					zap.String("event_id", e.ID), zap.String("event_type", e.EventType), zap.Error(err))
				metrics.RecordOutboxEvent(e.EventType, constants.OutboxStatusFailed)
				return s.repo.UpdateStatus(txCtx, e.ID, constants.OutboxStatusFailed, fmt.Sprintf("max retries exceeded: %v", err))
			}
			s.logger.Warn("outbox event delivery failed",
				zap.String("event_id", e.ID), zap.Int("attempt", retries), zap.Error(err))
			metrics.RecordOutboxEvent(e.EventType, "retry")
			return s.repo.IncrementRetry(txCtx, e.ID, retries, err.Error())
		}

		metrics.RecordOutboxEvent(e.EventType, constants.OutboxStatusProcessed)
		return s.repo.UpdateStatus(txCtx, e.ID, constants.OutboxStatusProcessed, "")
	})
}

// deliver runs local subscribers on a context without the claim transaction, then publishes to the broker.
func (s *OutboxService) deliver(ctx context.Context, e persistence.OutboxEvent, payload events.Payload) error {
	handlerCtx := persistence.InjectTx(ctx, nil)
	if err := s.eventBus.Publish(handlerCtx, events.EventType(e.EventType), payload); err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, e.EventType, body)
}

// CleanupProcessed removes processed events older than olderThan.
func (s *OutboxService) CleanupProcessed(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.repo.CleanupProcessed(ctx, time.Now().UTC().Add(-olderThan))
}
