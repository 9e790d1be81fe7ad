package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/comunidadednb/billing-service/internal/domain/payment"
	"github.com/comunidadednb/billing-service/pkg/snowflake"
)

// PaymentModel is the database DTO with Gorm tags.
type PaymentModel struct {
	ID               int64  `gorm:"primaryKey"`
	TxID             string `gorm:"type:varchar(255);uniqueIndex"`
	ProviderChargeID string `gorm:"type:varchar(255)"`
	UserID           string `gorm:"type:varchar(64);index"`
	Email            string `gorm:"type:varchar(255)"`
	AmountCents      int64
	Status           string `gorm:"type:varchar(32)"`
	Intent           string `gorm:"type:varchar(32)"`
	PlanSlug         string `gorm:"type:varchar(64)"`
	PreviousPlanSlug string `gorm:"type:varchar(64)"`
	ReceiptName      string `gorm:"type:varchar(255)"`
	ReceiptDoc       string `gorm:"type:varchar(32)"`
	EndToEndID       string `gorm:"type:varchar(64)"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (PaymentModel) TableName() string {
	return "payments"
}

type PaymentRepository struct {
	db   *gorm.DB
	node *snowflake.Node
}

func NewPaymentRepository(db *gorm.DB, node *snowflake.Node) *PaymentRepository {
	return &PaymentRepository{db: db, node: node}
}

func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	model := paymentToModel(p)
	if model.ID == 0 {
		model.ID = r.node.GenerateID()
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return err
	}
	p.ID = model.ID
	return nil
}

func (r *PaymentRepository) FindByTxID(ctx context.Context, txid string) (*payment.Payment, error) {
	var model PaymentModel
	if err := r.db.WithContext(ctx).Where("tx_id = ?", txid).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, payment.ErrNotFound
		}
		return nil, err
	}
	return paymentToDomain(model), nil
}

func (r *PaymentRepository) UpdateStatus(ctx context.Context, txid, status, receiptName, receiptDoc, endToEndID string) error {
	updates := map[string]any{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	// Receipt fields arrive only on settlement; blanks never overwrite
	// what the bank already reported.
	if receiptName != "" {
		updates["receipt_name"] = receiptName
	}
	if receiptDoc != "" {
		updates["receipt_doc"] = receiptDoc
	}
	if endToEndID != "" {
		updates["end_to_end_id"] = endToEndID
	}

	result := r.db.WithContext(ctx).Model(&PaymentModel{}).
		Where("tx_id = ?", txid).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return payment.ErrNotFound
	}
	return nil
}

func paymentToDomain(m PaymentModel) *payment.Payment {
	return &payment.Payment{
		ID:               m.ID,
		TxID:             m.TxID,
		ProviderChargeID: m.ProviderChargeID,
		UserID:           m.UserID,
		Email:            m.Email,
		AmountCents:      m.AmountCents,
		Status:           m.Status,
		Intent:           payment.Intent(m.Intent),
		PlanSlug:         m.PlanSlug,
		PreviousPlanSlug: m.PreviousPlanSlug,
		ReceiptName:      m.ReceiptName,
		ReceiptDoc:       m.ReceiptDoc,
		EndToEndID:       m.EndToEndID,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func paymentToModel(d *payment.Payment) PaymentModel {
	return PaymentModel{
		ID:               d.ID,
		TxID:             d.TxID,
		ProviderChargeID: d.ProviderChargeID,
		UserID:           d.UserID,
		Email:            d.Email,
		AmountCents:      d.AmountCents,
		Status:           d.Status,
		Intent:           string(d.Intent),
		PlanSlug:         d.PlanSlug,
		PreviousPlanSlug: d.PreviousPlanSlug,
		ReceiptName:      d.ReceiptName,
		ReceiptDoc:       d.ReceiptDoc,
		EndToEndID:       d.EndToEndID,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}
