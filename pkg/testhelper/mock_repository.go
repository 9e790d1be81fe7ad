package testhelper

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/comunidadednb/billing-service/internal/domain/payment"
	"github.com/comunidadednb/billing-service/internal/domain/plan"
	"github.com/comunidadednb/billing-service/internal/domain/subscriber"
)

// MockSubscriberRepository is an in-memory subscriber.Repository for testing
type MockSubscriberRepository struct {
	mu      sync.Mutex
	byEmail map[string]*subscriber.Subscriber
	nextID  int64

	SaveCalls   int
	UpsertCalls int
	ShouldFail  bool
}

func NewMockSubscriberRepository() *MockSubscriberRepository {
	return &MockSubscriberRepository{byEmail: map[string]*subscriber.Subscriber{}}
}

// Seed stores a subscriber directly, bypassing version bookkeeping.
func (m *MockSubscriberRepository) Seed(sub *subscriber.Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub.ID == 0 {
		m.nextID++
		sub.ID = m.nextID
	}
	if sub.Version == 0 {
		sub.Version = 1
	}
	m.byEmail[sub.Email] = clone(sub)
}

func (m *MockSubscriberRepository) FindByUserID(ctx context.Context, userID string) (*subscriber.Subscriber, error) {
	if m.ShouldFail {
		return nil, fmt.Errorf("mock subscriber repo: find failed")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.byEmail {
		if sub.UserID == userID {
			return clone(sub), nil
		}
	}
	return nil, nil
}

func (m *MockSubscriberRepository) FindByEmail(ctx context.Context, email string) (*subscriber.Subscriber, error) {
	if m.ShouldFail {
		return nil, fmt.Errorf("mock subscriber repo: find failed")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub, ok := m.byEmail[email]; ok {
		return clone(sub), nil
	}
	return nil, nil
}

func (m *MockSubscriberRepository) FindByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*subscriber.Subscriber, error) {
	if m.ShouldFail {
		return nil, fmt.Errorf("mock subscriber repo: find failed")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.byEmail {
		if sub.StripeSubscriptionID == subscriptionID {
			return clone(sub), nil
		}
	}
	return nil, nil
}

func (m *MockSubscriberRepository) Save(ctx context.Context, sub *subscriber.Subscriber) error {
	if m.ShouldFail {
		return fmt.Errorf("mock subscriber repo: save failed")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++

	if sub.ID == 0 {
		m.nextID++
		sub.ID = m.nextID
		sub.Version = 1
		m.byEmail[sub.Email] = clone(sub)
		return nil
	}
	stored, ok := m.byEmail[sub.Email]
	if ok && stored.Version != sub.Version {
		return subscriber.ErrVersionConflict
	}
	sub.Version++
	m.byEmail[sub.Email] = clone(sub)
	return nil
}

func (m *MockSubscriberRepository) UpsertByEmail(ctx context.Context, sub *subscriber.Subscriber) error {
	if m.ShouldFail {
		return fmt.Errorf("mock subscriber repo: upsert failed")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCalls++
	if sub.ID == 0 {
		if stored, ok := m.byEmail[sub.Email]; ok {
			sub.ID = stored.ID
		} else {
			m.nextID++
			sub.ID = m.nextID
		}
	}
	m.byEmail[sub.Email] = clone(sub)
	return nil
}

func clone(sub *subscriber.Subscriber) *subscriber.Subscriber {
	out := *sub
	if sub.SubscriptionEnd != nil {
		end := *sub.SubscriptionEnd
		out.SubscriptionEnd = &end
	}
	if sub.PendingDowngradeDate != nil {
		at := *sub.PendingDowngradeDate
		out.PendingDowngradeDate = &at
	}
	return &out
}

// MockPaymentRepository is an in-memory payment.Repository for testing
type MockPaymentRepository struct {
	mu     sync.Mutex
	byTxID map[string]*payment.Payment
	nextID int64

	CreateCalls []payment.Payment
	UpdateCalls []string
	ShouldFail  bool
}

func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{byTxID: map[string]*payment.Payment{}}
}

func (m *MockPaymentRepository) Seed(p *payment.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == 0 {
		m.nextID++
		p.ID = m.nextID
	}
	cp := *p
	m.byTxID[p.TxID] = &cp
}

func (m *MockPaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	if m.ShouldFail {
		return fmt.Errorf("mock payment repo: create failed")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = m.nextID
	cp := *p
	m.byTxID[p.TxID] = &cp
	m.CreateCalls = append(m.CreateCalls, cp)
	return nil
}

func (m *MockPaymentRepository) FindByTxID(ctx context.Context, txid string) (*payment.Payment, error) {
	if m.ShouldFail {
		return nil, fmt.Errorf("mock payment repo: find failed")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.byTxID[txid]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, payment.ErrNotFound
}

func (m *MockPaymentRepository) UpdateStatus(ctx context.Context, txid, status, receiptName, receiptDoc, endToEndID string) error {
	if m.ShouldFail {
		return fmt.Errorf("mock payment repo: update failed")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byTxID[txid]
	if !ok {
		return payment.ErrNotFound
	}
	m.UpdateCalls = append(m.UpdateCalls, txid)
	p.Status = status
	if receiptName != "" {
		p.ReceiptName = receiptName
	}
	if receiptDoc != "" {
		p.ReceiptDoc = receiptDoc
	}
	if endToEndID != "" {
		p.EndToEndID = endToEndID
	}
	return nil
}

// MockPlanRepository is an in-memory plan.Repository for testing
type MockPlanRepository struct {
	mu      sync.Mutex
	records map[string]*plan.Record

	ShouldFail bool
}

func NewMockPlanRepository() *MockPlanRepository {
	return &MockPlanRepository{records: map[string]*plan.Record{}}
}

func (m *MockPlanRepository) Seed(rec *plan.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.records[rec.Slug] = &cp
}

func (m *MockPlanRepository) List(ctx context.Context) ([]plan.Record, error) {
	if m.ShouldFail {
		return nil, fmt.Errorf("mock plan repo: list failed")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]plan.Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (m *MockPlanRepository) FindBySlug(ctx context.Context, slug string) (*plan.Record, error) {
	if m.ShouldFail {
		return nil, fmt.Errorf("mock plan repo: find failed")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[slug]; ok {
		cp := *rec
		return &cp, nil
	}
	return nil, nil
}

func (m *MockPlanRepository) Save(ctx context.Context, rec *plan.Record) error {
	if m.ShouldFail {
		return fmt.Errorf("mock plan repo: save failed")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.records[rec.Slug] = &cp
	return nil
}
