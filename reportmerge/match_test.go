package reportmerge

import (
	"testing"

	"bitbucket.org/ostrovlabs/loyalty_backend/models"
	"github.com/shopspring/decimal"
)

func saleRow(code, receipt, quantity string) *models.FiscalLineItem {
	return &models.FiscalLineItem{
		ProductCode:   code,
		ReceiptNumber: receipt,
		Quantity:      decimal.RequireFromString(quantity),
	}
}

func TestMatchPaymentTierCascade(t *testing.T) {
	idx := buildSaleIndexes([]*models.FiscalLineItem{
		saleRow("A1", "100", "2"),
		saleRow("A1", "100", "1"),
		saleRow("B2", "100", "1"),
		saleRow("C3", "200", "1"),
	})

	// Full key: exactly one row.
	sales, tier := matchPayment(idx, parsedRow{
		ProductCode:   "A1",
		ReceiptNumber: "100",
		Quantity:      decimal.RequireFromString("2"),
	})
	if tier != matchTierPrimary || len(sales) != 1 {
		t.Fatalf("expected tier 1 single match, got tier=%d sales=%d", tier, len(sales))
	}

	// Quantity mismatch relaxes to code+receipt: both A1 rows.
	sales, tier = matchPayment(idx, parsedRow{
		ProductCode:   "A1",
		ReceiptNumber: "100",
		Quantity:      decimal.RequireFromString("5"),
	})
	if tier != matchTierSecondary || len(sales) != 2 {
		t.Fatalf("expected tier 2 with 2 rows, got tier=%d sales=%d", tier, len(sales))
	}

	// A product the receipt never sold must not be attributed to its rows.
	sales, tier = matchPayment(idx, parsedRow{
		ProductCode:   "Z9",
		ReceiptNumber: "100",
		Quantity:      decimal.RequireFromString("1"),
	})
	if tier != matchTierNone || sales != nil {
		t.Fatalf("unrelated product must stay unmatched, got tier=%d sales=%d", tier, len(sales))
	}

	// A row with no product code is receipt-level: every position on the
	// receipt.
	sales, tier = matchPayment(idx, parsedRow{ReceiptNumber: "100"})
	if tier != matchTierReceipt || len(sales) != 3 {
		t.Fatalf("expected tier 3 fan-out to 3 rows, got tier=%d sales=%d", tier, len(sales))
	}

	// Unknown receipt matches nothing.
	sales, tier = matchPayment(idx, parsedRow{
		ProductCode:   "A1",
		ReceiptNumber: "999",
	})
	if tier != matchTierNone || sales != nil {
		t.Fatalf("expected no match, got tier=%d sales=%d", tier, len(sales))
	}
}

func TestMatchPaymentEmptyReceipt(t *testing.T) {
	idx := buildSaleIndexes([]*models.FiscalLineItem{saleRow("A1", "", "1")})

	sales, tier := matchPayment(idx, parsedRow{ProductCode: "A1"})
	if tier != matchTierNone || sales != nil {
		t.Fatalf("empty receipt must never match, got tier=%d sales=%d", tier, len(sales))
	}
}
