package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/comunidadednb/billing-service/internal/mailer"
	"github.com/comunidadednb/billing-service/pkg/snowflake"
)

// Ledger enqueues notification entries inside the same database as the
// subscription state, so an email is recorded iff its triggering write
// committed.
type Ledger struct {
	db     *gorm.DB
	node   *snowflake.Node
	logger *zap.Logger
}

func NewLedger(db *gorm.DB, node *snowflake.Node, logger *zap.Logger) *Ledger {
	return &Ledger{db: db, node: node, logger: logger.Named("notify")}
}

// Enqueue records an email to be sent. Duplicate (providerEventID, type)
// pairs are dropped silently: a replayed webhook enqueues nothing new.
func (l *Ledger) Enqueue(ctx context.Context, providerEventID string, emailType mailer.EmailType, recipient string, data map[string]string) error {
	if !emailType.Valid() {
		return fmt.Errorf("unknown email type %q", emailType)
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode notification payload: %w", err)
	}

	now := time.Now().UTC()
	event := Event{
		ID:              l.node.GenerateID(),
		ProviderEventID: providerEventID,
		EmailType:       string(emailType),
		Recipient:       recipient,
		Payload:         string(payload),
		Status:          string(StatusPending),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	result := l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_event_id"}, {Name: "email_type"}},
		DoNothing: true,
	}).Create(&event)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		l.logger.Debug("notification already enqueued",
			zap.String("provider_event_id", providerEventID),
			zap.String("email_type", string(emailType)),
		)
	}
	return nil
}
