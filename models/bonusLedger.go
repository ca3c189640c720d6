package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/ostrovlabs/loyalty_backend/config"
	"bitbucket.org/ostrovlabs/loyalty_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	BonusOperationEarn   = "EARN"
	BonusOperationSpend  = "SPEND"
	BonusOperationAdjust = "ADJUST"
)

// BonusLedgerEntry is append-only. The invariant is that a client's cached
// Bonus always equals the sum of their ledger amounts; keeping both writes
// inside ApplyLedgerEntry is what holds it.
type BonusLedgerEntry struct {
	ID             int             `gorm:"primary_key" json:"id"`
	ClientID       int64           `gorm:"index;not null" json:"client_id"`
	TransactionID  *int64          `gorm:"index" json:"transaction_id"`
	OperationType  string          `gorm:"size:10;not null" json:"operation_type"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	BalanceBefore  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance_before"`
	BalanceAfter   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance_after"`
	Description    string          `gorm:"size:255" json:"description"`
	BonusPercent   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"bonus_percent"`
	TransactionSum decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"transaction_sum"`
	ProcessedAt    time.Time       `gorm:"autoCreateTime" json:"processed_at"`
}

// OperationTypeForAmount maps a signed delta to its ledger operation.
func OperationTypeForAmount(amount decimal.Decimal) string {
	switch {
	case amount.IsPositive():
		return BonusOperationEarn
	case amount.IsNegative():
		return BonusOperationSpend
	default:
		return BonusOperationAdjust
	}
}

// ApplyLedgerEntry posts one ledger entry and moves the client's cached
// balance in the same db transaction. It is the only writer of Client.Bonus.
// The client row is locked so concurrent postings serialize.
func ApplyLedgerEntry(tx *gorm.DB, entry *BonusLedgerEntry) error {
	if entry == nil {
		return errors.New("ledger entry is nil")
	}
	if entry.Amount.IsZero() && entry.OperationType != BonusOperationAdjust {
		return errors.New("ledger entry amount is zero")
	}

	var client Client
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("client_id = ?", entry.ClientID).First(&client).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorRecordNotFound
		}
		return err
	}

	entry.BalanceBefore = client.Bonus
	entry.BalanceAfter = client.Bonus.Add(entry.Amount)
	if entry.OperationType == "" {
		entry.OperationType = OperationTypeForAmount(entry.Amount)
	}

	if err := tx.Create(entry).Error; err != nil {
		return err
	}
	return tx.Model(&Client{}).Where("client_id = ?", entry.ClientID).
		Update("bonus", entry.BalanceAfter).Error
}

// LedgerSumForTransaction returns the net amount already posted for one
// transaction, across all its prior syncs.
func LedgerSumForTransaction(tx *gorm.DB, transactionId int64) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	if err := tx.Model(&BonusLedgerEntry{}).
		Where("transaction_id = ?", transactionId).
		Select("SUM(amount)").Scan(&sum).Error; err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

// AdjustClientBonus posts a manual ADJUST entry. Balances are never edited
// directly; an operator correction is itself a ledger event.
func AdjustClientBonus(ctx context.Context, clientId int64, amount decimal.Decimal, description string) (*BonusLedgerEntry, error) {
	if amount.IsZero() {
		return nil, errors.New("adjustment amount must be non-zero")
	}
	db := config.GetDB()
	entry := BonusLedgerEntry{
		ClientID:      clientId,
		OperationType: BonusOperationAdjust,
		Amount:        amount,
		Description:   description,
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return ApplyLedgerEntry(tx, &entry)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
