package reportmerge

import (
	"bitbucket.org/ostrovlabs/loyalty_backend/models"
)

const (
	matchTierNone = 0
	// receipt + product code + quantity
	matchTierPrimary = 1
	// receipt + product code
	matchTierSecondary = 2
	// receipt only
	matchTierReceipt = 3
)

type primaryKey struct {
	ProductCode string
	Receipt     string
	Quantity    string
}

type secondaryKey struct {
	ProductCode string
	Receipt     string
}

// saleIndexes holds the three lookup maps a payments merge matches against,
// from most to least specific.
type saleIndexes struct {
	primary   map[primaryKey][]*models.FiscalLineItem
	secondary map[secondaryKey][]*models.FiscalLineItem
	receipt   map[string][]*models.FiscalLineItem
}

func buildSaleIndexes(sales []*models.FiscalLineItem) saleIndexes {
	idx := saleIndexes{
		primary:   make(map[primaryKey][]*models.FiscalLineItem),
		secondary: make(map[secondaryKey][]*models.FiscalLineItem),
		receipt:   make(map[string][]*models.FiscalLineItem),
	}
	for _, sale := range sales {
		pk := primaryKey{
			ProductCode: sale.ProductCode,
			Receipt:     sale.ReceiptNumber,
			Quantity:    sale.Quantity.String(),
		}
		sk := secondaryKey{ProductCode: sale.ProductCode, Receipt: sale.ReceiptNumber}
		idx.primary[pk] = append(idx.primary[pk], sale)
		idx.secondary[sk] = append(idx.secondary[sk], sale)
		idx.receipt[sale.ReceiptNumber] = append(idx.receipt[sale.ReceiptNumber], sale)
	}
	return idx
}

// matchPayment finds the goods rows one payment row belongs to, relaxing the
// key one field at a time. All rows under the matched key are returned: a
// receipt-level match legitimately fans out to every position on the receipt.
// The receipt-only tier applies only to rows that carry no product code at
// all; a row naming a product that is not on the receipt stays unmatched
// instead of being attributed to the wrong positions.
func matchPayment(idx saleIndexes, row parsedRow) ([]*models.FiscalLineItem, int) {
	if row.ReceiptNumber == "" {
		return nil, matchTierNone
	}

	if row.ProductCode != "" {
		pk := primaryKey{
			ProductCode: row.ProductCode,
			Receipt:     row.ReceiptNumber,
			Quantity:    row.Quantity.String(),
		}
		if sales, ok := idx.primary[pk]; ok && len(sales) > 0 {
			return sales, matchTierPrimary
		}

		sk := secondaryKey{ProductCode: row.ProductCode, Receipt: row.ReceiptNumber}
		if sales, ok := idx.secondary[sk]; ok && len(sales) > 0 {
			return sales, matchTierSecondary
		}
		return nil, matchTierNone
	}

	if sales, ok := idx.receipt[row.ReceiptNumber]; ok && len(sales) > 0 {
		return sales, matchTierReceipt
	}
	return nil, matchTierNone
}
