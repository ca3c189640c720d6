package postersync

import (
	"testing"
	"time"

	"bitbucket.org/ostrovlabs/loyalty_backend/models"
	"github.com/shopspring/decimal"
)

func TestEarnedBonus(t *testing.T) {
	cases := []struct {
		sum      string
		percent  string
		expected string
	}{
		{"150.00", "10", "15"},
		{"150.00", "0", "0"},
		{"0", "10", "0"},
		{"33.33", "7.5", "2.5"},
		{"99.99", "1", "1"},
		{"100", "2.25", "2.25"},
	}
	for _, tc := range cases {
		got := earnedBonus(decimal.RequireFromString(tc.sum), decimal.RequireFromString(tc.percent))
		if got.String() != tc.expected {
			t.Fatalf("earnedBonus(%s, %s) expected %s, got %s", tc.sum, tc.percent, tc.expected, got.String())
		}
	}
}

func TestAggregateLineItems(t *testing.T) {
	items := []*models.TransactionLineItem{
		{
			Sum:          decimal.RequireFromString("100.50"),
			Discount:     decimal.RequireFromString("5"),
			BonusAccrued: decimal.RequireFromString("10.05"),
		},
		{
			Sum:          decimal.RequireFromString("49.50"),
			Discount:     decimal.Zero,
			BonusAccrued: decimal.RequireFromString("4.95"),
		},
	}
	agg := aggregateLineItems(items)
	if agg.Sum.String() != "150" {
		t.Fatalf("expected sum 150, got %s", agg.Sum.String())
	}
	if agg.Discount.String() != "5" {
		t.Fatalf("expected discount 5, got %s", agg.Discount.String())
	}
	if agg.Accrued.String() != "15" {
		t.Fatalf("expected accrued 15, got %s", agg.Accrued.String())
	}

	empty := aggregateLineItems(nil)
	if !empty.Sum.IsZero() || !empty.Discount.IsZero() || !empty.Accrued.IsZero() {
		t.Fatalf("expected zero aggregate for no items, got %+v", empty)
	}
}

func TestTargetNetBonus(t *testing.T) {
	clientId := int64(42)
	closedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	closed := &models.Transaction{
		TransactionID: 1,
		ClientRef:     &clientId,
		Status:        models.TransactionStatusClosed,
		DateClose:     &closedAt,
		BonusAccrued:  decimal.RequireFromString("15"),
		PayedBonus:    decimal.RequireFromString("4"),
	}
	if got := targetNetBonus(closed); got.String() != "11" {
		t.Fatalf("closed linked transaction expected 11, got %s", got.String())
	}

	open := &models.Transaction{
		TransactionID: 2,
		ClientRef:     &clientId,
		Status:        models.TransactionStatusOpen,
		BonusAccrued:  decimal.RequireFromString("15"),
	}
	if got := targetNetBonus(open); !got.IsZero() {
		t.Fatalf("open transaction expected 0, got %s", got.String())
	}

	unlinked := &models.Transaction{
		TransactionID: 3,
		Status:        models.TransactionStatusClosed,
		DateClose:     &closedAt,
		BonusAccrued:  decimal.RequireFromString("15"),
	}
	if got := targetNetBonus(unlinked); !got.IsZero() {
		t.Fatalf("unlinked transaction expected 0, got %s", got.String())
	}

	deleted := &models.Transaction{
		TransactionID: 4,
		ClientRef:     &clientId,
		Status:        models.TransactionStatusDeleted,
		DateClose:     &closedAt,
		BonusAccrued:  decimal.RequireFromString("15"),
	}
	if got := targetNetBonus(deleted); !got.IsZero() {
		t.Fatalf("deleted transaction expected 0, got %s", got.String())
	}
}

func TestLedgerDeltaIsIdempotentAcrossResyncs(t *testing.T) {
	target := decimal.RequireFromString("11")

	first := ledgerDelta(target, decimal.Zero)
	if first.String() != "11" {
		t.Fatalf("first sync expected delta 11, got %s", first.String())
	}

	// Second sync of an unchanged transaction: everything already posted.
	second := ledgerDelta(target, first)
	if !second.IsZero() {
		t.Fatalf("re-sync expected delta 0, got %s", second.String())
	}

	// The transaction loses its accrual (voided): the delta reverses it.
	reversal := ledgerDelta(decimal.Zero, first)
	if reversal.String() != "-11" {
		t.Fatalf("void expected delta -11, got %s", reversal.String())
	}
}

func TestOperationTypeForAmount(t *testing.T) {
	if got := models.OperationTypeForAmount(decimal.RequireFromString("5")); got != models.BonusOperationEarn {
		t.Fatalf("positive amount expected %s, got %s", models.BonusOperationEarn, got)
	}
	if got := models.OperationTypeForAmount(decimal.RequireFromString("-5")); got != models.BonusOperationSpend {
		t.Fatalf("negative amount expected %s, got %s", models.BonusOperationSpend, got)
	}
}
