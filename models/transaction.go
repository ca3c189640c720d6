package models

import (
	"context"
	"time"

	"bitbucket.org/ostrovlabs/loyalty_backend/config"
	"bitbucket.org/ostrovlabs/loyalty_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	TransactionStatusOpen    = 1
	TransactionStatusClosed  = 2
	TransactionStatusDeleted = 3
)

// Transaction is a POS receipt. ClientRef and SpotRef are weak links: a
// transaction referencing a client or spot not yet synced lands with a nil
// ref and is healed on a later run.
type Transaction struct {
	ID              int                    `gorm:"primary_key" json:"id"`
	TransactionID   int64                  `gorm:"uniqueIndex;not null" json:"transaction_id" validate:"required,gt=0"`
	ClientRef       *int64                 `gorm:"index" json:"client_ref"`
	SpotRef         *int64                 `gorm:"index" json:"spot_ref"`
	DateStart       *time.Time             `json:"date_start"`
	DateClose       *time.Time             `gorm:"index" json:"date_close"`
	Sum             decimal.Decimal        `gorm:"type:decimal(20,4);default:0" json:"sum"`
	PayedSum        decimal.Decimal        `gorm:"type:decimal(20,4);default:0" json:"payed_sum"`
	PayedCash       decimal.Decimal        `gorm:"type:decimal(20,4);default:0" json:"payed_cash"`
	PayedCard       decimal.Decimal        `gorm:"type:decimal(20,4);default:0" json:"payed_card"`
	PayedCert       decimal.Decimal        `gorm:"type:decimal(20,4);default:0" json:"payed_cert"`
	PayedBonus      decimal.Decimal        `gorm:"type:decimal(20,4);default:0" json:"payed_bonus"`
	PayedThirdParty decimal.Decimal        `gorm:"type:decimal(20,4);default:0" json:"payed_third_party"`
	RoundSum        decimal.Decimal        `gorm:"type:decimal(20,4);default:0" json:"round_sum"`
	TipSum          decimal.Decimal        `gorm:"type:decimal(20,4);default:0" json:"tip_sum"`
	PayType         int                    `gorm:"default:0" json:"pay_type"`
	Discount        decimal.Decimal        `gorm:"type:decimal(20,4);default:0" json:"discount"`
	Bonus           decimal.Decimal        `gorm:"type:decimal(20,4);default:0" json:"bonus"`
	BonusAccrued    decimal.Decimal        `gorm:"type:decimal(20,4);default:0" json:"bonus_accrued"`
	PrintFiscal     int                    `gorm:"default:0" json:"print_fiscal"`
	Status          int                    `gorm:"default:0" json:"status"`
	RawData         []byte                 `gorm:"type:json" json:"raw_data"`
	SourceUpdatedAt *time.Time             `json:"source_updated_at"`
	LastSyncedAt    *time.Time             `json:"last_synced_at"`
	LineItems       []*TransactionLineItem `gorm:"foreignKey:TransactionID;references:TransactionID" json:"line_items"`
	CreatedAt       time.Time              `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time              `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t *Transaction) ExternalId() int64 {
	return t.TransactionID
}

func (t *Transaction) SourceTime() *time.Time {
	return t.SourceUpdatedAt
}

func (t *Transaction) Validate() error {
	return utils.ValidateStruct(t)
}

func (t *Transaction) IsClosed() bool {
	return t.Status == TransactionStatusClosed && t.DateClose != nil
}

// TransactionLineItem is one receipt position. Rows are replaced wholesale
// whenever the parent transaction is re-synced, so there is no per-row
// external id.
type TransactionLineItem struct {
	ID            int             `gorm:"primary_key" json:"id"`
	TransactionID int64           `gorm:"index:idx_line_item_transaction;not null" json:"transaction_id"`
	Position      int             `gorm:"default:0" json:"position"`
	PosProductID  int64           `gorm:"index;default:0" json:"pos_product_id"`
	ProductRef    *int64          `gorm:"index" json:"product_ref"`
	ProductName   string          `gorm:"size:255" json:"product_name"`
	Count         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"count"`
	Price         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	Sum           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sum"`
	Discount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount"`
	Bonus         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"bonus"`
	BonusAccrued  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"bonus_accrued"`
	TaxID         int64           `gorm:"default:0" json:"tax_id"`
	TaxValue      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_value"`
	TaxSum        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_sum"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func GetTransactionByExternalId(ctx context.Context, transactionId int64) (*Transaction, error) {
	db := config.GetDB()
	var transaction Transaction
	if err := db.WithContext(ctx).Where("transaction_id = ?", transactionId).
		Preload("LineItems").First(&transaction).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &transaction, nil
}

// ReplaceLineItems swaps the full line-item set of a transaction inside the
// caller's db transaction.
func ReplaceLineItems(tx *gorm.DB, transactionId int64, items []*TransactionLineItem) error {
	if err := tx.Where("transaction_id = ?", transactionId).
		Delete(&TransactionLineItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for _, item := range items {
		item.ID = 0
		item.TransactionID = transactionId
	}
	return tx.CreateInBatches(items, 200).Error
}
