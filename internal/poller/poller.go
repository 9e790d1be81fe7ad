package poller

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/comunidadednb/billing-service/internal/domain/billing"
)

// DefaultInterval matches the client-side QR polling cadence.
const DefaultInterval = 5 * time.Second

// Poller watches one instant-transfer charge until it settles. Transient
// status-check failures are swallowed and retried on the next tick; the
// only stop conditions are a paid status or context cancellation.
type Poller struct {
	pix      billing.InstantTransfer
	logger   *zap.Logger
	interval time.Duration
}

func New(pix billing.InstantTransfer, logger *zap.Logger) *Poller {
	return &Poller{
		pix:      pix,
		logger:   logger.Named("poller"),
		interval: DefaultInterval,
	}
}

// Watch polls the charge and invokes onPaid exactly once when a paid
// status is observed, then returns. Cancelling ctx stops the poll without
// the callback firing.
func (p *Poller) Watch(ctx context.Context, chargeID string, onPaid func()) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			charge, err := p.pix.ChargeStatus(ctx, chargeID)
			if err != nil {
				// Retried on the next tick.
				p.logger.Debug("charge status check failed",
					zap.String("charge_id", chargeID),
					zap.Error(err),
				)
				continue
			}
			if charge.Status == billing.PixPaid {
				p.logger.Info("charge_paid",
					zap.String("charge_id", chargeID),
				)
				onPaid()
				return
			}
		}
	}
}
