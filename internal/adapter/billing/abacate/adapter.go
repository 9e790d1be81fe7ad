package abacate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/comunidadednb/billing-service/internal/domain/billing"
	"github.com/comunidadednb/billing-service/pkg/pixclient"
)

// Charge expiry matches the checkout page countdown.
const chargeExpiry = 30 * time.Minute

// Adapter implements billing.InstantTransfer over the PIX provider API.
type Adapter struct {
	client *pixclient.Client
	logger *zap.Logger
}

func NewAdapter(client *pixclient.Client, logger *zap.Logger) *Adapter {
	return &Adapter{client: client, logger: logger.Named("pix")}
}

func (a *Adapter) CreateCharge(ctx context.Context, params billing.PixChargeParams) (*billing.PixCharge, error) {
	req := pixclient.CreateQRCodeRequest{
		Amount:      params.AmountCents,
		ExpiresIn:   int(chargeExpiry.Seconds()),
		Description: params.Description,
		Metadata:    params.Metadata,
	}
	if params.CustomerName != "" || params.CustomerEmail != "" {
		req.Customer = &pixclient.CustomerInfo{
			Name:  params.CustomerName,
			Email: params.CustomerEmail,
		}
	}

	qr, err := a.client.CreateQRCode(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create pix charge: %w", err)
	}

	a.logger.Info("pix charge created",
		zap.String("charge_id", qr.ID),
		zap.Int64("amount_cents", qr.Amount))

	return toCharge(qr), nil
}

func (a *Adapter) ChargeStatus(ctx context.Context, chargeID string) (*billing.PixCharge, error) {
	status, err := a.client.CheckQRCode(ctx, chargeID)
	if err != nil {
		return nil, fmt.Errorf("check pix charge: %w", err)
	}
	return &billing.PixCharge{ID: chargeID, Status: mapStatus(status)}, nil
}

func toCharge(qr *pixclient.QRCode) *billing.PixCharge {
	return &billing.PixCharge{
		ID:           qr.ID,
		BRCode:       qr.BRCode,
		QRCodeBase64: qr.QRCodeBase64,
		AmountCents:  qr.Amount,
		Status:       mapStatus(qr.Status),
		ExpiresAt:    qr.ExpiresAt,
	}
}

func mapStatus(s string) billing.PixStatus {
	switch s {
	case pixclient.StatusPaid, pixclient.StatusCompleted:
		return billing.PixPaid
	case pixclient.StatusExpired:
		return billing.PixExpired
	case pixclient.StatusRefunded:
		return billing.PixRefunded
	default:
		return billing.PixPending
	}
}
