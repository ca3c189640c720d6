package reportmerge

import (
	"testing"

	"bitbucket.org/ostrovlabs/loyalty_backend/models"
)

func TestParseRowDataGoods(t *testing.T) {
	row := map[string]string{
		"Код товару":             "SKU-1",
		"Найменування":           "Вода мінеральна",
		"УКТ ЗЕД":                "2201",
		"Фіскальні номери чеків": "12345",
		"Вартість":               "25,50",
		"Кількість":              "2",
		"Сума":                   "51,00",
		"Загальна сума":          "51,00",
		"Дата продажу":           "15.08.2026",
		"Чеків з товаром":        "1",
	}

	parsed := parseRowData(row, models.ReportTypeGoods)

	if parsed.ProductCode != "SKU-1" || parsed.ProductName != "Вода мінеральна" {
		t.Fatalf("unexpected identity fields: %+v", parsed)
	}
	if parsed.ReceiptNumber != "12345" {
		t.Fatalf("expected receipt 12345, got %q", parsed.ReceiptNumber)
	}
	if parsed.Price.String() != "25.5" {
		t.Fatalf("comma decimal not parsed, got %s", parsed.Price.String())
	}
	if parsed.TotalAmount.String() != "51" {
		t.Fatalf("expected total 51, got %s", parsed.TotalAmount.String())
	}
	if parsed.SaleDate != "2026-08-15" {
		t.Fatalf("expected normalized date 2026-08-15, got %q", parsed.SaleDate)
	}
	if parsed.ReceiptsCount != 1 {
		t.Fatalf("expected receipts count 1, got %d", parsed.ReceiptsCount)
	}
}

func TestParseRowDataReceiptFallback(t *testing.T) {
	parsed := parseRowData(map[string]string{"Фіскальний номер": "777"}, models.ReportTypePayments)
	if parsed.ReceiptNumber != "777" {
		t.Fatalf("expected fallback receipt column, got %q", parsed.ReceiptNumber)
	}

	parsed = parseRowData(map[string]string{
		"Фіскальні номери чеків": "111",
		"Фіскальний номер":       "777",
	}, models.ReportTypePayments)
	if parsed.ReceiptNumber != "111" {
		t.Fatalf("primary receipt column must win, got %q", parsed.ReceiptNumber)
	}
}

func TestParseRowDataPayments(t *testing.T) {
	row := map[string]string{
		"Фіскальний номер":           "888",
		"Тип оплати":                 "Картка",
		"Номер зміни":                "14",
		"Повернення":                 "так",
		"Сума (грн)":                 "120,00",
		"Дата та час закриття зміни": "15.08.2026 22:10:05",
		"Посилання":                  "https://check.example/888",
	}

	parsed := parseRowData(row, models.ReportTypePayments)

	if parsed.PaymentType != "Картка" || parsed.ShiftNumber != "14" {
		t.Fatalf("unexpected payment fields: %+v", parsed)
	}
	if !parsed.IsReturn {
		t.Fatal("expected return flag from ukrainian yes")
	}
	if parsed.TotalAmount.String() != "120" {
		t.Fatalf("expected total from hryvnia column, got %s", parsed.TotalAmount.String())
	}
	if parsed.CheckLink != "https://check.example/888" {
		t.Fatalf("unexpected check link %q", parsed.CheckLink)
	}
	if parsed.SaleDatetime == nil {
		t.Fatal("expected shift close datetime to parse")
	}
	if got := parsed.SaleDatetime.Format("2006-01-02 15:04:05"); got != "2026-08-15 22:10:05" {
		t.Fatalf("unexpected datetime %s", got)
	}
}

func TestParseRowDataDatetimeFallback(t *testing.T) {
	parsed := parseRowData(map[string]string{"Дата/Час": "2026-08-15 10:00:00"}, models.ReportTypePayments)
	if parsed.SaleDatetime == nil {
		t.Fatal("expected fallback datetime column to parse")
	}
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"1", "true", "так", "Так", "yes", "+"} {
		if !parseBool(v) {
			t.Fatalf("expected %q to be true", v)
		}
	}
	for _, v := range []string{"", "0", "ні", "no", "-"} {
		if parseBool(v) {
			t.Fatalf("expected %q to be false", v)
		}
	}
}
