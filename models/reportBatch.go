package models

import (
	"context"
	"time"

	"bitbucket.org/ostrovlabs/loyalty_backend/config"
	"github.com/shopspring/decimal"
)

const (
	ReportTypeGoods    = "goods"
	ReportTypePayments = "payments"
	ReportTypeUnknown  = "unknown"
)

const (
	ReportStatusPending    = "pending"
	ReportStatusProcessing = "processing"
	ReportStatusCompleted  = "completed"
	ReportStatusFailed     = "failed"
)

// ReportBatch tracks one uploaded fiscal export file. Filename, FileHash and
// row count together identify a file already merged, so re-uploads
// short-circuit.
type ReportBatch struct {
	ID               int        `gorm:"primary_key" json:"id"`
	Filename         string     `gorm:"size:255;not null" json:"filename"`
	FileHash         string     `gorm:"size:64;index;not null" json:"file_hash"`
	RowsCount        int        `gorm:"default:0" json:"rows_count"`
	ReportType       string     `gorm:"size:20;not null;default:'unknown'" json:"report_type"`
	ProcessingStatus string     `gorm:"size:20;not null;default:'pending'" json:"processing_status"`
	ErrorMessage     string     `gorm:"type:text" json:"error_message"`
	ProcessingTimeMs int64      `gorm:"default:0" json:"processing_time_ms"`
	MetadataJSON     []byte     `gorm:"type:json" json:"metadata"`
	ProcessedAt      *time.Time `json:"processed_at"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// FindCompletedReportBatch reports whether this exact file has already been
// merged. The key is filename plus hash plus row count; the same content
// uploaded under a different name is treated as a new file.
func FindCompletedReportBatch(ctx context.Context, filename, fileHash string, rowsCount int) (*ReportBatch, error) {
	db := config.GetDB()
	var batch ReportBatch
	err := db.WithContext(ctx).
		Where("filename = ? AND file_hash = ? AND rows_count = ? AND processing_status = ?",
			filename, fileHash, rowsCount, ReportStatusCompleted).
		First(&batch).Error
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

// FiscalLineItem is the merged logical sales row both fiscal export files
// land in. Goods exports create rows; payments exports fill in the payment
// side of rows they match. TransactionRef is a weak link to the POS
// transaction with the same receipt number, when one exists.
type FiscalLineItem struct {
	ID              int             `gorm:"primary_key" json:"id"`
	ReportID        int             `gorm:"index;not null" json:"report_id"`
	ProductCode     string          `gorm:"size:100;index" json:"product_code"`
	ProductName     string          `gorm:"size:500" json:"product_name"`
	UktZedCode      string          `gorm:"size:50" json:"ukt_zed_code"`
	Barcode         string          `gorm:"size:100" json:"barcode"`
	ReceiptNumber   string          `gorm:"size:100;index" json:"receipt_number"`
	OperationType   string          `gorm:"size:50" json:"operation_type"`
	Price           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	Quantity        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	ReceiptsCount   int             `gorm:"default:0" json:"receipts_count"`
	TaxName         string          `gorm:"size:100" json:"tax_name"`
	TaxRate         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_rate"`
	AdditionalFee   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"additional_fee"`
	DiscountAmount  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount_amount"`
	MarkupAmount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"markup_amount"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	SaleDate        string          `gorm:"size:20" json:"sale_date"`
	SaleDatetime    *time.Time      `json:"sale_datetime"`
	FiscalNumber    string          `gorm:"size:100" json:"fiscal_number"`
	RegisterAddress string          `gorm:"size:500" json:"register_address"`
	ExciseStamp     string          `gorm:"size:100" json:"excise_stamp"`
	ShiftNumber     string          `gorm:"size:50" json:"shift_number"`
	ShiftClosedAt   *time.Time      `json:"shift_closed_at"`
	PaymentType     string          `gorm:"size:50" json:"payment_type"`
	CheckLink       string          `gorm:"size:500" json:"check_link"`
	IsReturn        bool            `gorm:"default:false" json:"is_return"`
	TransactionRef  *int64          `gorm:"index" json:"transaction_ref"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
