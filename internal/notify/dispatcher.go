package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/comunidadednb/billing-service/internal/mailer"
)

// Dispatcher drains the notification ledger and hands entries to the
// mailer. Send failures are retried with backoff; they never roll back the
// subscription write that enqueued them.
type Dispatcher struct {
	db           *gorm.DB
	mailer       mailer.Mailer
	logger       *zap.Logger
	pollInterval time.Duration
	batchSize    int
	maxAttempts  int
}

func NewDispatcher(db *gorm.DB, m mailer.Mailer, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		db:           db,
		mailer:       m,
		logger:       logger.Named("notify.dispatcher"),
		pollInterval: 5 * time.Second,
		batchSize:    10,
		maxAttempts:  8,
	}
}

// Run polls the ledger until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	if err := d.processBatch(ctx); err != nil {
		d.logger.Error("notification_initial_poll_failed", zap.Error(err))
	}

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.processBatch(ctx); err != nil {
				d.logger.Error("notification_poll_failed", zap.Error(err))
			}
		}
	}
}

func (d *Dispatcher) processBatch(ctx context.Context) error {
	events, err := d.fetchAndLockPending(ctx)
	if err != nil {
		return err
	}

	for _, event := range events {
		if err := d.processEvent(ctx, event); err != nil {
			d.logger.Error("notification_send_failed",
				zap.Error(err),
				zap.Int64("event_id", event.ID),
				zap.String("email_type", event.EmailType),
			)
		}
	}
	return nil
}

func (d *Dispatcher) fetchAndLockPending(ctx context.Context) ([]Event, error) {
	var events []Event
	now := time.Now().UTC()

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Raw(
			`SELECT * FROM notification_events
			 WHERE status IN (?, ?)
			   AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
			   AND attempts < ?
			 ORDER BY created_at ASC
			 LIMIT ?
			 FOR UPDATE SKIP LOCKED`,
			StatusPending,
			StatusFailed,
			now,
			d.maxAttempts,
			d.batchSize,
		).Scan(&events).Error; err != nil {
			return err
		}

		if len(events) == 0 {
			return nil
		}

		ids := make([]int64, 0, len(events))
		for i := range events {
			ids = append(ids, events[i].ID)
			events[i].Attempts++
		}

		return tx.Model(&Event{}).
			Where("id IN ?", ids).
			Updates(map[string]any{
				"status":     StatusProcessing,
				"attempts":   gorm.Expr("attempts + 1"),
				"locked_at":  now,
				"updated_at": now,
				"last_error": nil,
			}).Error
	})

	return events, err
}

func (d *Dispatcher) processEvent(ctx context.Context, event Event) error {
	var data map[string]string
	if event.Payload != "" {
		if err := json.Unmarshal([]byte(event.Payload), &data); err != nil {
			// A malformed payload never becomes sendable; park it as failed
			// at max attempts.
			return d.markFailed(ctx, event, fmt.Errorf("decode payload: %w", err))
		}
	}

	msg := mailer.Message{
		To:   event.Recipient,
		Type: mailer.EmailType(event.EmailType),
		Data: data,
	}
	if err := d.mailer.Send(ctx, msg); err != nil {
		return d.markFailed(ctx, event, err)
	}
	return d.markCompleted(ctx, event.ID)
}

func (d *Dispatcher) markCompleted(ctx context.Context, eventID int64) error {
	now := time.Now().UTC()
	return d.db.WithContext(ctx).Model(&Event{}).
		Where("id = ? AND status = ?", eventID, StatusProcessing).
		Updates(map[string]any{
			"status":       StatusCompleted,
			"processed_at": now,
			"updated_at":   now,
			"last_error":   nil,
		}).Error
}

func (d *Dispatcher) markFailed(ctx context.Context, event Event, err error) error {
	now := time.Now().UTC()
	nextAttempt := now.Add(backoffDuration(event.Attempts))

	updateErr := d.db.WithContext(ctx).Model(&Event{}).
		Where("id = ?", event.ID).
		Updates(map[string]any{
			"status":          StatusFailed,
			"last_error":      err.Error(),
			"next_attempt_at": nextAttempt,
			"updated_at":      now,
		}).Error
	if updateErr != nil {
		return fmt.Errorf("mark event failed: %w (original error: %v)", updateErr, err)
	}
	return err
}

func backoffDuration(attempt int) time.Duration {
	if attempt <= 1 {
		return 10 * time.Second
	}

	maxBackoff := 5 * time.Minute
	base := 10 * time.Second
	shift := attempt - 1
	if shift > 6 {
		shift = 6
	}

	d := base * time.Duration(1<<shift)
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
