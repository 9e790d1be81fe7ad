package pixclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

// QRCode statuses reported by the provider.
const (
	StatusPending   = "PENDING"
	StatusPaid      = "PAID"
	StatusCompleted = "COMPLETED"
	StatusExpired   = "EXPIRED"
	StatusRefunded  = "REFUNDED"
)

type QRCode struct {
	ID           string `json:"id"`
	BRCode       string `json:"brCode"`
	QRCodeBase64 string `json:"qrCodeBase64"`
	Amount       int64  `json:"amount"`
	Status       string `json:"status"`
	ExpiresAt    string `json:"expiresAt"`
}

type CustomerInfo struct {
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Cellphone string `json:"cellphone,omitempty"`
	TaxID     string `json:"taxId,omitempty"`
}

type CreateQRCodeRequest struct {
	Amount         int64             `json:"amount"`
	ExpiresIn      int               `json:"expiresIn"`
	Description    string            `json:"description"`
	Customer       *CustomerInfo     `json:"customer,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	IdempotencyKey string            `json:"idempotencyKey,omitempty"`
}

type qrCodeResponse struct {
	Data QRCode `json:"data"`
}

type qrCodeStatusResponse struct {
	Data struct {
		Status    string `json:"status"`
		ExpiresAt string `json:"expiresAt"`
	} `json:"data"`
}

// CreateQRCode creates a one-shot PIX charge. Not retried: the provider
// treats each create as a new charge, so a network error surfaces to the
// caller and the user retries manually.
func (c *Client) CreateQRCode(ctx context.Context, req CreateQRCodeRequest) (*QRCode, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("pix qrcode amount must be positive, got %d", req.Amount)
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.NewString()
	}

	var resp qrCodeResponse
	if err := c.doRequest(ctx, http.MethodPost, "/pixQrCode/create", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to create pix qrcode: %w", err)
	}
	return &resp.Data, nil
}

// CheckQRCode returns the provider-side status of a charge. Safe to retry
// and briefly cached, since clients poll this on a fixed interval.
func (c *Client) CheckQRCode(ctx context.Context, id string) (string, error) {
	if status, ok := c.cache.Get(id); ok {
		return status, nil
	}

	path := "/pixQrCode/check?id=" + url.QueryEscape(id)

	var resp qrCodeStatusResponse
	err := c.retry.Do(ctx, true, func() error {
		return c.doRequest(ctx, http.MethodGet, path, nil, &resp)
	})
	if err != nil {
		return "", fmt.Errorf("failed to check pix qrcode: %w", err)
	}

	c.cache.Put(id, resp.Data.Status)
	return resp.Data.Status, nil
}
