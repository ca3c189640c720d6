package postersync

import (
	"fmt"

	"bitbucket.org/ostrovlabs/loyalty_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var oneHundred = decimal.NewFromInt(100)

type lineAggregate struct {
	Sum      decimal.Decimal
	Discount decimal.Decimal
	Accrued  decimal.Decimal
}

// aggregateLineItems folds the line items into the derived transaction
// columns. Line-level accruals, when the POS provides them, take priority
// over the percent-based figure.
func aggregateLineItems(items []*models.TransactionLineItem) lineAggregate {
	agg := lineAggregate{
		Sum:      decimal.Zero,
		Discount: decimal.Zero,
		Accrued:  decimal.Zero,
	}
	for _, item := range items {
		agg.Sum = agg.Sum.Add(item.Sum)
		agg.Discount = agg.Discount.Add(item.Discount)
		agg.Accrued = agg.Accrued.Add(item.BonusAccrued)
	}
	return agg
}

// earnedBonus is the POS accrual rule: percent of the transaction sum,
// rounded to cents.
func earnedBonus(sum, percent decimal.Decimal) decimal.Decimal {
	if sum.IsZero() || percent.IsZero() {
		return decimal.Zero
	}
	return sum.Mul(percent).Div(oneHundred).Round(2)
}

// targetNetBonus is the net ledger amount one transaction should have
// contributed in total: what it accrued minus what was paid with bonus.
// Open, deleted or unlinked transactions contribute nothing.
func targetNetBonus(t *models.Transaction) decimal.Decimal {
	if t == nil || t.ClientRef == nil || !t.IsClosed() {
		return decimal.Zero
	}
	return t.BonusAccrued.Sub(t.PayedBonus)
}

// ledgerDelta is what still needs posting given what prior runs already
// posted. A re-sync of an unchanged transaction yields zero.
func ledgerDelta(target, posted decimal.Decimal) decimal.Decimal {
	return target.Sub(posted)
}

// recomputeTransaction brings one transaction's derived columns and its
// ledger contribution up to date inside the caller's db transaction. It is
// idempotent across re-syncs: only the difference between the target net
// amount and the already-posted sum is ever posted, as a single entry.
func recomputeTransaction(tx *gorm.DB, transaction *models.Transaction, items []*models.TransactionLineItem) error {
	agg := aggregateLineItems(items)

	accrued := agg.Accrued
	if accrued.IsZero() {
		accrued = earnedBonus(transaction.Sum, transaction.Bonus)
	}
	transaction.Discount = agg.Discount
	transaction.BonusAccrued = accrued

	if err := tx.Model(&models.Transaction{}).
		Where("transaction_id = ?", transaction.TransactionID).
		Updates(map[string]interface{}{
			"discount":      agg.Discount,
			"bonus_accrued": accrued,
		}).Error; err != nil {
		return err
	}

	posted, err := models.LedgerSumForTransaction(tx, transaction.TransactionID)
	if err != nil {
		return err
	}

	target := targetNetBonus(transaction)
	delta := ledgerDelta(target, posted)
	if delta.IsZero() {
		return nil
	}

	clientId, err := clientIdForLedger(tx, transaction, posted)
	if err != nil {
		return err
	}
	if clientId == 0 {
		return nil
	}

	transactionId := transaction.TransactionID
	entry := models.BonusLedgerEntry{
		ClientID:       clientId,
		TransactionID:  &transactionId,
		OperationType:  models.OperationTypeForAmount(delta),
		Amount:         delta,
		Description:    fmt.Sprintf("sync of transaction %d", transactionId),
		BonusPercent:   transaction.Bonus,
		TransactionSum: transaction.Sum,
	}
	return models.ApplyLedgerEntry(tx, &entry)
}

// clientIdForLedger picks who the delta belongs to. When the client link is
// gone but prior entries exist (a voided or unlinked transaction being
// reversed), the original entries name the client.
func clientIdForLedger(tx *gorm.DB, transaction *models.Transaction, posted decimal.Decimal) (int64, error) {
	if transaction.ClientRef != nil {
		return *transaction.ClientRef, nil
	}
	if posted.IsZero() {
		return 0, nil
	}
	// All entries of one transaction share a client.
	var clientIds []int64
	err := tx.Model(&models.BonusLedgerEntry{}).
		Where("transaction_id = ?", transaction.TransactionID).
		Limit(1).
		Pluck("client_id", &clientIds).Error
	if err != nil {
		return 0, err
	}
	if len(clientIds) == 0 {
		return 0, nil
	}
	return clientIds[0], nil
}
