package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/comunidadednb/billing-service/internal/config"
)

// ResendMailer sends messages through the Resend HTTP API.
type ResendMailer struct {
	baseURL string
	apiKey  string
	from    string
	http    *http.Client
	logger  *zap.Logger
}

func NewResendMailer(cfg *config.Config, logger *zap.Logger) *ResendMailer {
	return &ResendMailer{
		baseURL: cfg.ResendBaseURL,
		apiKey:  cfg.ResendAPIKey,
		from:    fmt.Sprintf("%s <%s>", cfg.EmailSenderName, cfg.EmailSender),
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger.Named("mailer"),
	}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (m *ResendMailer) Send(ctx context.Context, msg Message) error {
	subject, html, err := Render(msg)
	if err != nil {
		return err
	}

	body, err := json.Marshal(resendRequest{
		From:    m.from,
		To:      []string{msg.To},
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/emails", bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("send email: %s: %s", resp.Status, string(respBody))
	}

	m.logger.Info("email_sent",
		zap.String("type", string(msg.Type)),
		zap.String("to", msg.To),
	)
	return nil
}
