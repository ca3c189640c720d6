package reportmerge

import (
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

func buildXLSX(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write xlsx: %v", err)
	}
	return buf.Bytes()
}

func TestParseReportFileXLSX(t *testing.T) {
	data := buildXLSX(t, [][]interface{}{
		{"Код товару", "Найменування", "Кількість"},
		{"SKU-1", "Вода", "2"},
		{"SKU-2", "Хліб", "1"},
	})

	table, err := ParseReportFile("export.xlsx", data)
	if err != nil {
		t.Fatalf("ParseReportFile: %v", err)
	}
	if len(table.Columns) != 3 || table.Columns[0] != "Код товару" {
		t.Fatalf("unexpected columns: %v", table.Columns)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(table.Rows))
	}
	if table.Rows[0]["Найменування"] != "Вода" {
		t.Fatalf("unexpected first row: %v", table.Rows[0])
	}
}

func TestParseReportFileXLSXPromotesHeader(t *testing.T) {
	data := buildXLSX(t, [][]interface{}{
		{"Звіт по товарах"},
		{"Період: 01.08.2026 - 31.08.2026"},
		{"Код товару", "Найменування", "Сума"},
		{"SKU-1", "Вода", "25,50"},
	})

	table, err := ParseReportFile("export.xlsx", data)
	if err != nil {
		t.Fatalf("ParseReportFile: %v", err)
	}
	if len(table.Columns) != 3 || table.Columns[1] != "Найменування" {
		t.Fatalf("header row not promoted, columns: %v", table.Columns)
	}
	if len(table.Rows) != 1 || table.Rows[0]["Код товару"] != "SKU-1" {
		t.Fatalf("unexpected rows after promotion: %v", table.Rows)
	}
}

func TestParseReportFileCSVSemicolon(t *testing.T) {
	csvText := "Код товару;Найменування;Кількість\nSKU-1;Вода;2\n\nSKU-2;Хліб;1\n"

	table, err := ParseReportFile("export.csv", []byte(csvText))
	if err != nil {
		t.Fatalf("ParseReportFile: %v", err)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("expected empty line skipped, got %d rows", len(table.Rows))
	}
	if table.Rows[1]["Найменування"] != "Хліб" {
		t.Fatalf("unexpected row: %v", table.Rows[1])
	}
}

func TestParseReportFileCSVWindows1251(t *testing.T) {
	csvText := "Код товару,Найменування\nSKU-1,Вода мінеральна\n"
	encoded, err := charmap.Windows1251.NewEncoder().Bytes([]byte(csvText))
	if err != nil {
		t.Fatalf("encode cp1251: %v", err)
	}

	table, err := ParseReportFile("export.csv", encoded)
	if err != nil {
		t.Fatalf("ParseReportFile: %v", err)
	}
	if len(table.Rows) != 1 || table.Rows[0]["Найменування"] != "Вода мінеральна" {
		t.Fatalf("cp1251 content not decoded: %v", table.Rows)
	}
}

func TestParseReportFileCSVWithBOM(t *testing.T) {
	csvText := "\uFEFFКод товару,Кількість\nSKU-1,2\n"

	table, err := ParseReportFile("export.csv", []byte(csvText))
	if err != nil {
		t.Fatalf("ParseReportFile: %v", err)
	}
	if table.Columns[0] != "Код товару" {
		t.Fatalf("BOM not stripped from header: %q", table.Columns[0])
	}
}

func TestParseReportFileUnsupportedExtension(t *testing.T) {
	_, err := ParseReportFile("export.pdf", []byte("whatever"))
	if err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
}
