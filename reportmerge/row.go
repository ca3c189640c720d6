package reportmerge

import (
	"strings"
	"time"

	"bitbucket.org/ostrovlabs/loyalty_backend/models"
	"bitbucket.org/ostrovlabs/loyalty_backend/utils"
	"github.com/shopspring/decimal"
)

// parsedRow is one export row with the columns already coerced. Both report
// types share the identification fields; the rest depends on the type.
type parsedRow struct {
	ProductCode   string
	Barcode       string
	FiscalNumber  string
	ReceiptNumber string
	Quantity      decimal.Decimal
	TotalAmount   decimal.Decimal
	IsReturn      bool
	ShiftNumber   string
	PaymentType   string
	SaleDate      string
	SaleDatetime  *time.Time

	// goods report
	ProductName     string
	UktZedCode      string
	OperationType   string
	TaxName         string
	TaxRate         decimal.Decimal
	RegisterAddress string
	ExciseStamp     string
	Price           decimal.Decimal
	Amount          decimal.Decimal
	ReceiptsCount   int
	AdditionalFee   decimal.Decimal
	DiscountAmount  decimal.Decimal
	MarkupAmount    decimal.Decimal

	// payments report
	CheckLink string
}

// parseRowData coerces one raw row. The receipt and datetime columns carry
// different names depending on which cabinet produced the file, so both
// spellings are tried.
func parseRowData(row map[string]string, reportType string) parsedRow {
	parsed := parsedRow{
		ProductCode:  row["Код товару"],
		Barcode:      row["Штрих-код"],
		FiscalNumber: row["Фіскальний номер ПРРО"],
		Quantity:     utils.DecimalFromDelimited(row["Кількість"]),
		TotalAmount:  utils.DecimalFromDelimited(row["Загальна сума"]),
		IsReturn:     parseBool(row["Повернення"]),
		ShiftNumber:  row["Номер зміни"],
		PaymentType:  row["Тип оплати"],
	}

	if v, ok := row["Фіскальні номери чеків"]; ok && v != "" {
		parsed.ReceiptNumber = v
	} else {
		parsed.ReceiptNumber = row["Фіскальний номер"]
	}

	parsed.SaleDate = normalizeReportDate(row["Дата продажу"])

	if v, ok := row["Дата та час закриття зміни"]; ok && v != "" {
		parsed.SaleDatetime = parseReportDatetime(v)
	} else if v := row["Дата/Час"]; v != "" {
		parsed.SaleDatetime = parseReportDatetime(v)
	}

	switch reportType {
	case models.ReportTypeGoods:
		parsed.ProductName = row["Найменування"]
		parsed.UktZedCode = row["УКТ ЗЕД"]
		parsed.OperationType = row["Вид операції"]
		parsed.TaxName = row["Назва податку"]
		parsed.TaxRate = utils.DecimalFromDelimited(row["Податок"])
		parsed.RegisterAddress = row["Адреса каси"]
		parsed.ExciseStamp = row["Акцизна марка"]
		parsed.Price = utils.DecimalFromDelimited(row["Вартість"])
		parsed.Amount = utils.DecimalFromDelimited(row["Сума"])
		parsed.ReceiptsCount = int(utils.DecimalFromDelimited(row["Чеків з товаром"]).IntPart())
		parsed.AdditionalFee = utils.DecimalFromDelimited(row["Дод. збір"])
		parsed.DiscountAmount = utils.DecimalFromDelimited(row["Сума знижок"])
		parsed.MarkupAmount = utils.DecimalFromDelimited(row["Сума націнок"])
	case models.ReportTypePayments:
		parsed.CheckLink = row["Посилання"]
		if parsed.TotalAmount.IsZero() {
			parsed.TotalAmount = utils.DecimalFromDelimited(row["Сума (грн)"])
		}
	}

	return parsed
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "так", "yes", "+":
		return true
	default:
		return false
	}
}

var reportDateLayouts = []string{"2006-01-02", "02.01.2006", "02.01.06"}

var reportDatetimeLayouts = []string{
	"2006-01-02 15:04:05",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	time.RFC3339,
}

func normalizeReportDate(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	for _, layout := range reportDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("2006-01-02")
		}
	}
	// Some exports put a full datetime in the date column.
	if t := parseReportDatetime(value); t != nil {
		return t.Format("2006-01-02")
	}
	return value
}

func parseReportDatetime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range reportDatetimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}
