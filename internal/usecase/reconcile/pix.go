package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/comunidadednb/billing-service/internal/domain/payment"
	"github.com/comunidadednb/billing-service/internal/domain/plan"
	"github.com/comunidadednb/billing-service/internal/domain/subscriber"
	"github.com/comunidadednb/billing-service/internal/mailer"
)

// PixEvent is the instant-transfer provider's settlement callback payload.
type PixEvent struct {
	Status      string `json:"status"`
	TxID        string `json:"txid"`
	ChargeID    string `json:"id"`
	AmountCents int64  `json:"amount"`
	ReceiptName string `json:"receipt_name"`
	ReceiptDoc  string `json:"receipt_cpf_cnpj"`
	EndToEndID  string `json:"pix_end2end_id"`
}

func (e PixEvent) paid() bool {
	s := strings.ToUpper(e.Status)
	return s == "PAID" || s == "COMPLETED"
}

// PixUseCase applies instant-transfer settlement events to the local
// payment row and, on settlement, to the subscriber record.
type PixUseCase struct {
	subscribers subscriber.Repository
	payments    payment.Repository
	notifier    Notifier
	logger      *zap.Logger
	now         func() time.Time
}

func NewPixUseCase(subscribers subscriber.Repository, payments payment.Repository, notifier Notifier, logger *zap.Logger) *PixUseCase {
	return &PixUseCase{
		subscribers: subscribers,
		payments:    payments,
		notifier:    notifier,
		logger:      logger.Named("reconcile.pix"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ApplyPixEvent converges state for one settlement callback. An event for a
// transaction this service never created returns payment.ErrNotFound so the
// handler can answer 404 without touching any state.
func (uc *PixUseCase) ApplyPixEvent(ctx context.Context, event PixEvent) error {
	txid := event.TxID
	if txid == "" {
		txid = event.ChargeID
	}

	record, err := uc.payments.FindByTxID(ctx, txid)
	if err != nil {
		return err
	}

	if err := uc.payments.UpdateStatus(ctx, txid, strings.ToLower(event.Status),
		event.ReceiptName, event.ReceiptDoc, event.EndToEndID); err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}

	if !event.paid() {
		// Non-paid terminal statuses only land on the tracking row.
		uc.logger.Info("pix_status_recorded",
			zap.String("txid", txid),
			zap.String("status", event.Status),
		)
		return nil
	}

	return uc.applyPaid(ctx, txid, record)
}

func (uc *PixUseCase) applyPaid(ctx context.Context, txid string, record *payment.Payment) error {
	def, ok := plan.Lookup(record.PlanSlug)
	if !ok {
		return fmt.Errorf("payment %s references unknown plan %q", txid, record.PlanSlug)
	}

	sub, err := uc.subscribers.FindByEmail(ctx, record.Email)
	if err != nil {
		return fmt.Errorf("load subscriber: %w", err)
	}
	if sub == nil {
		sub = subscriber.New(record.UserID, record.Email, record.ReceiptName)
	}
	if sub.UserID == "" {
		sub.UserID = record.UserID
	}

	sub.Activate(def.Slug, uc.now().Add(def.PeriodDuration()))

	if err := uc.subscribers.UpsertByEmail(ctx, sub); err != nil {
		return fmt.Errorf("upsert subscriber: %w", err)
	}

	uc.logger.Info("pix_payment_applied",
		zap.String("txid", txid),
		zap.String("plan", def.Slug),
		zap.String("intent", string(record.Intent)),
	)

	emailType := mailer.TypeUpgrade
	if record.Intent == payment.IntentNewSubscription {
		emailType = mailer.TypeSubscriptionConfirmed
	}
	data := map[string]string{
		"name": sub.DisplayName,
		"plan": def.Tier,
	}
	if sub.SubscriptionEnd != nil {
		data["date"] = sub.SubscriptionEnd.Format("02/01/2006")
	}
	if err := uc.notifier.Enqueue(ctx, "pix:"+txid, emailType, sub.Email, data); err != nil {
		uc.logger.Error("notification_enqueue_failed",
			zap.String("txid", txid),
			zap.Error(err),
		)
	}
	return nil
}
