package testhelper

import (
	"context"
	"fmt"

	"github.com/comunidadednb/billing-service/internal/mailer"
)

// MockMailer is a mock implementation of mailer.Mailer for testing
type MockMailer struct {
	SentMessages []mailer.Message
	ShouldFail   bool
}

func (m *MockMailer) Send(ctx context.Context, msg mailer.Message) error {
	if m.ShouldFail {
		return fmt.Errorf("mock mailer: send failed")
	}
	m.SentMessages = append(m.SentMessages, msg)
	return nil
}

// EnqueuedEmail records one notification handed to the ledger.
type EnqueuedEmail struct {
	ProviderEventID string
	Type            mailer.EmailType
	Recipient       string
	Data            map[string]string
}

// MockNotifier is an in-memory notification ledger for testing. It applies
// the same (provider event id, email type) dedup the real ledger enforces.
type MockNotifier struct {
	Enqueued   []EnqueuedEmail
	seen       map[string]bool
	ShouldFail bool
}

func (m *MockNotifier) Enqueue(ctx context.Context, providerEventID string, emailType mailer.EmailType, recipient string, data map[string]string) error {
	if m.ShouldFail {
		return fmt.Errorf("mock notifier: enqueue failed")
	}
	if m.seen == nil {
		m.seen = map[string]bool{}
	}
	key := providerEventID + "|" + string(emailType)
	if m.seen[key] {
		return nil
	}
	m.seen[key] = true
	m.Enqueued = append(m.Enqueued, EnqueuedEmail{
		ProviderEventID: providerEventID,
		Type:            emailType,
		Recipient:       recipient,
		Data:            data,
	})
	return nil
}
