package reportmerge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"bitbucket.org/ostrovlabs/loyalty_backend/config"
	"bitbucket.org/ostrovlabs/loyalty_backend/models"
	"bitbucket.org/ostrovlabs/loyalty_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type MergeStats struct {
	Created      int `json:"created"`
	Updated      int `json:"updated"`
	Skipped      int `json:"skipped"`
	MatchedTier1 int `json:"matched_tier1"`
	MatchedTier2 int `json:"matched_tier2"`
	MatchedTier3 int `json:"matched_tier3"`
	Unmatched    int `json:"unmatched"`
	Errors       int `json:"errors"`
}

var ErrUnknownReportType = errors.New("could not detect report type")

// ProcessReportFile lands one fiscal export file: parse, classify, merge.
// A file whose name, hash and row count match an already completed batch is
// a re-upload and short-circuits without touching the sales rows.
func ProcessReportFile(ctx context.Context, filename string, data []byte) (*models.ReportBatch, MergeStats, error) {
	logger := config.GetLogger()
	db := config.GetDB().WithContext(ctx)

	sum := sha256.Sum256(data)
	fileHash := hex.EncodeToString(sum[:])

	table, err := ParseReportFile(filename, data)
	if err != nil {
		return nil, MergeStats{}, err
	}
	rowsCount := len(table.Rows)

	existing, err := models.FindCompletedReportBatch(ctx, filename, fileHash, rowsCount)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, MergeStats{}, err
	}
	if existing != nil {
		logger.WithFields(logrus.Fields{
			"filename":  filename,
			"file_hash": fileHash,
			"batch_id":  existing.ID,
		}).Info("report file already processed, skipping")
		return existing, MergeStats{Skipped: rowsCount}, nil
	}

	reportType := DetectReportType(table.Columns)

	batch := models.ReportBatch{
		Filename:         filename,
		FileHash:         fileHash,
		RowsCount:        rowsCount,
		ReportType:       reportType,
		ProcessingStatus: models.ReportStatusPending,
	}
	if err := db.Create(&batch).Error; err != nil {
		return nil, MergeStats{}, err
	}

	if reportType == models.ReportTypeUnknown {
		_ = failBatch(db, &batch, ErrUnknownReportType.Error())
		return &batch, MergeStats{}, ErrUnknownReportType
	}

	if err := db.Model(&batch).
		Update("processing_status", models.ReportStatusProcessing).Error; err != nil {
		return &batch, MergeStats{}, err
	}

	startedAt := time.Now()
	var stats MergeStats
	err = db.Transaction(func(tx *gorm.DB) error {
		switch reportType {
		case models.ReportTypeGoods:
			stats = mergeGoodsRows(tx, batch.ID, table.Rows)
		case models.ReportTypePayments:
			stats = mergePaymentRows(tx, table.Rows)
		}
		return nil
	})
	if err != nil {
		_ = failBatch(db, &batch, err.Error())
		return &batch, stats, err
	}

	processingMs := time.Since(startedAt).Milliseconds()
	metadata, _ := json.Marshal(stats)
	now := time.Now()
	if err := db.Model(&batch).Updates(map[string]interface{}{
		"processing_status":  models.ReportStatusCompleted,
		"processing_time_ms": processingMs,
		"metadata_json":      metadata,
		"processed_at":       now,
	}).Error; err != nil {
		return &batch, stats, err
	}

	logger.WithFields(logrus.Fields{
		"filename":    filename,
		"batch_id":    batch.ID,
		"report_type": reportType,
		"rows":        rowsCount,
		"created":     stats.Created,
		"updated":     stats.Updated,
		"unmatched":   stats.Unmatched,
		"errors":      stats.Errors,
	}).Info("report file merged")

	return &batch, stats, nil
}

func failBatch(db *gorm.DB, batch *models.ReportBatch, message string) error {
	return db.Model(batch).Updates(map[string]interface{}{
		"processing_status": models.ReportStatusFailed,
		"error_message":     message,
	}).Error
}

// mergeGoodsRows upserts goods rows into the sales table. A row matching an
// earlier one (same receipt and product code, narrowed by sale date,
// quantity and total where present) fills in the fields the earlier row
// left empty and never overwrites what it set.
func mergeGoodsRows(tx *gorm.DB, batchID int, rows []map[string]string) MergeStats {
	var stats MergeStats

	receipts := make([]string, 0, len(rows))
	parsedRows := make([]parsedRow, 0, len(rows))
	for _, raw := range rows {
		parsed := parseRowData(raw, models.ReportTypeGoods)
		parsedRows = append(parsedRows, parsed)
		if parsed.ReceiptNumber != "" {
			receipts = append(receipts, parsed.ReceiptNumber)
		}
	}
	transactionRefs := resolveTransactionRefs(tx, receipts)

	for _, parsed := range parsedRows {
		if parsed.ReceiptNumber == "" && parsed.ProductCode == "" {
			stats.Skipped++
			continue
		}

		existing, err := findGoodsRow(tx, parsed)
		if err != nil {
			stats.Errors++
			continue
		}

		if existing != nil {
			updates := goodsFillUpdates(existing, parsed)
			if len(updates) == 0 {
				stats.Skipped++
				continue
			}
			if err := tx.Model(existing).Updates(updates).Error; err != nil {
				stats.Errors++
				continue
			}
			stats.Updated++
			continue
		}

		sale := models.FiscalLineItem{
			ReportID:        batchID,
			ProductCode:     parsed.ProductCode,
			ProductName:     parsed.ProductName,
			UktZedCode:      parsed.UktZedCode,
			Barcode:         parsed.Barcode,
			ReceiptNumber:   parsed.ReceiptNumber,
			OperationType:   parsed.OperationType,
			Price:           parsed.Price,
			Quantity:        parsed.Quantity,
			Amount:          parsed.Amount,
			ReceiptsCount:   parsed.ReceiptsCount,
			TaxName:         parsed.TaxName,
			TaxRate:         parsed.TaxRate,
			AdditionalFee:   parsed.AdditionalFee,
			DiscountAmount:  parsed.DiscountAmount,
			MarkupAmount:    parsed.MarkupAmount,
			TotalAmount:     parsed.TotalAmount,
			SaleDate:        parsed.SaleDate,
			SaleDatetime:    parsed.SaleDatetime,
			FiscalNumber:    parsed.FiscalNumber,
			RegisterAddress: parsed.RegisterAddress,
			ExciseStamp:     parsed.ExciseStamp,
			ShiftNumber:     parsed.ShiftNumber,
			PaymentType:     parsed.PaymentType,
			IsReturn:        parsed.IsReturn,
			TransactionRef:  transactionRefs[parsed.ReceiptNumber],
		}
		if err := tx.Create(&sale).Error; err != nil {
			if utils.IsDuplicateKeyError(err) {
				stats.Skipped++
			} else {
				stats.Errors++
			}
			continue
		}
		stats.Created++
	}
	return stats
}

func findGoodsRow(tx *gorm.DB, parsed parsedRow) (*models.FiscalLineItem, error) {
	query := tx.Where("receipt_number = ? AND product_code = ?", parsed.ReceiptNumber, parsed.ProductCode)
	if parsed.SaleDate != "" {
		query = query.Where("sale_date = ?", parsed.SaleDate)
	}
	if !parsed.Quantity.IsZero() {
		query = query.Where("quantity = ?", parsed.Quantity)
	}
	if !parsed.TotalAmount.IsZero() {
		query = query.Where("total_amount = ?", parsed.TotalAmount)
	}

	var sale models.FiscalLineItem
	if err := query.Take(&sale).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sale, nil
}

// goodsFillUpdates is first-write-wins: only columns the stored row has
// empty are taken from the new row.
func goodsFillUpdates(existing *models.FiscalLineItem, parsed parsedRow) map[string]interface{} {
	updates := map[string]interface{}{}

	fillString := func(column, current, incoming string) {
		if incoming != "" && current == "" {
			updates[column] = incoming
		}
	}
	fillString("product_name", existing.ProductName, parsed.ProductName)
	fillString("ukt_zed_code", existing.UktZedCode, parsed.UktZedCode)
	fillString("barcode", existing.Barcode, parsed.Barcode)
	fillString("operation_type", existing.OperationType, parsed.OperationType)
	fillString("tax_name", existing.TaxName, parsed.TaxName)
	fillString("fiscal_number", existing.FiscalNumber, parsed.FiscalNumber)
	fillString("register_address", existing.RegisterAddress, parsed.RegisterAddress)
	fillString("excise_stamp", existing.ExciseStamp, parsed.ExciseStamp)

	if existing.Price.IsZero() && !parsed.Price.IsZero() {
		updates["price"] = parsed.Price
	}
	if existing.Amount.IsZero() && !parsed.Amount.IsZero() {
		updates["amount"] = parsed.Amount
	}
	if existing.TaxRate.IsZero() && !parsed.TaxRate.IsZero() {
		updates["tax_rate"] = parsed.TaxRate
	}
	if existing.AdditionalFee.IsZero() && !parsed.AdditionalFee.IsZero() {
		updates["additional_fee"] = parsed.AdditionalFee
	}
	if existing.DiscountAmount.IsZero() && !parsed.DiscountAmount.IsZero() {
		updates["discount_amount"] = parsed.DiscountAmount
	}
	if existing.MarkupAmount.IsZero() && !parsed.MarkupAmount.IsZero() {
		updates["markup_amount"] = parsed.MarkupAmount
	}
	if existing.ReceiptsCount == 0 && parsed.ReceiptsCount != 0 {
		updates["receipts_count"] = parsed.ReceiptsCount
	}
	return updates
}

// mergePaymentRows fills the payment side of goods rows matched by the
// tiered receipt keys. Payment rows with no goods counterpart are counted
// and dropped, never stored on their own.
func mergePaymentRows(tx *gorm.DB, rows []map[string]string) MergeStats {
	var stats MergeStats

	parsedRows := make([]parsedRow, 0, len(rows))
	receipts := make([]string, 0, len(rows))
	for _, raw := range rows {
		parsed := parseRowData(raw, models.ReportTypePayments)
		parsedRows = append(parsedRows, parsed)
		if parsed.ReceiptNumber != "" {
			receipts = append(receipts, parsed.ReceiptNumber)
		}
	}
	if len(receipts) == 0 {
		stats.Unmatched = len(parsedRows)
		return stats
	}

	var candidates []*models.FiscalLineItem
	if err := tx.Where("receipt_number IN ?", receipts).Find(&candidates).Error; err != nil {
		stats.Errors = len(parsedRows)
		return stats
	}
	idx := buildSaleIndexes(candidates)

	for _, parsed := range parsedRows {
		if parsed.ReceiptNumber == "" {
			stats.Unmatched++
			continue
		}

		sales, tier := matchPayment(idx, parsed)
		switch tier {
		case matchTierPrimary:
			stats.MatchedTier1++
		case matchTierSecondary:
			stats.MatchedTier2++
		case matchTierReceipt:
			stats.MatchedTier3++
		default:
			stats.Unmatched++
			continue
		}

		for _, sale := range sales {
			updates := paymentFillUpdates(sale, parsed)
			if len(updates) == 0 {
				stats.Skipped++
				continue
			}
			if err := tx.Model(sale).Updates(updates).Error; err != nil {
				stats.Errors++
				continue
			}
			stats.Updated++
		}
	}
	return stats
}

func paymentFillUpdates(existing *models.FiscalLineItem, parsed parsedRow) map[string]interface{} {
	updates := map[string]interface{}{}

	if parsed.ShiftNumber != "" && existing.ShiftNumber == "" {
		updates["shift_number"] = parsed.ShiftNumber
	}
	if parsed.PaymentType != "" && existing.PaymentType == "" {
		updates["payment_type"] = parsed.PaymentType
	}
	if parsed.CheckLink != "" && existing.CheckLink == "" {
		updates["check_link"] = parsed.CheckLink
	}
	if parsed.SaleDatetime != nil && existing.SaleDatetime == nil {
		updates["sale_datetime"] = parsed.SaleDatetime
		updates["shift_closed_at"] = parsed.SaleDatetime
	}
	if parsed.IsReturn != existing.IsReturn {
		updates["is_return"] = parsed.IsReturn
	}
	return updates
}

// resolveTransactionRefs links numeric receipt numbers to synced POS
// transactions when they exist. Non-numeric receipts and unknown ids stay
// unlinked.
func resolveTransactionRefs(tx *gorm.DB, receipts []string) map[string]*int64 {
	refs := make(map[string]*int64)
	numeric := make([]int64, 0, len(receipts))
	byID := make(map[int64][]string)
	for _, receipt := range receipts {
		id, err := strconv.ParseInt(receipt, 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		if _, seen := byID[id]; !seen {
			numeric = append(numeric, id)
		}
		byID[id] = append(byID[id], receipt)
	}
	if len(numeric) == 0 {
		return refs
	}

	var found []int64
	if err := tx.Model(&models.Transaction{}).
		Where("transaction_id IN ?", numeric).
		Pluck("transaction_id", &found).Error; err != nil {
		return refs
	}
	for _, id := range found {
		for _, receipt := range byID[id] {
			ref := id
			refs[receipt] = &ref
		}
	}
	return refs
}

// ReportSummary is the list view of processed batches.
type ReportSummary struct {
	ID               int     `json:"id"`
	Filename         string  `json:"filename"`
	ReportType       string  `json:"reportType"`
	ProcessingStatus string  `json:"processingStatus"`
	RowsCount        int     `json:"rowsCount"`
	ErrorMessage     string  `json:"errorMessage,omitempty"`
	ProcessedAt      *string `json:"processedAt"`
}

func mapBatchToSummary(batch models.ReportBatch) ReportSummary {
	summary := ReportSummary{
		ID:               batch.ID,
		Filename:         batch.Filename,
		ReportType:       batch.ReportType,
		ProcessingStatus: batch.ProcessingStatus,
		RowsCount:        batch.RowsCount,
		ErrorMessage:     batch.ErrorMessage,
	}
	if batch.ProcessedAt != nil {
		s := batch.ProcessedAt.UTC().Format(time.RFC3339)
		summary.ProcessedAt = &s
	}
	return summary
}
