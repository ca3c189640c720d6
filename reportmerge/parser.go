package reportmerge

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// knownColumnNames is the fiscal registrar export vocabulary, used both for
// header-row promotion and for report-type detection.
var knownColumnNames = []string{
	"Код товару",
	"Найменування",
	"УКТ ЗЕД",
	"Фіскальні номери чеків",
	"Вид операції",
	"Вартість",
	"Кількість",
	"Сума",
	"Чеків з товаром",
	"Назва податку",
	"Податок",
	"Дод. збір",
	"Сума знижок",
	"Сума націнок",
	"Загальна сума",
	"Дата продажу",
	"Фіскальний номер ПРРО",
	"Адреса каси",
	"Акцизна марка",
	"Штрих-код",
	"Тип оплати",
	"Номер зміни",
	"Дата та час закриття зміни",
}

// ReportTable is one parsed export file: trimmed column names and rows keyed
// by them.
type ReportTable struct {
	Columns []string
	Rows    []map[string]string
}

var ErrUnsupportedFormat = errors.New("unsupported report file format")

// ParseReportFile parses an uploaded fiscal export by extension. The
// registrar serves xlsx; older cabinets export semicolon- or comma-separated
// CSV in assorted encodings.
func ParseReportFile(filename string, data []byte) (*ReportTable, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return parseXLSX(data)
	case ".csv":
		return parseCSV(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}
}

func parseXLSX(data []byte) (*ReportTable, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("xlsx has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return tableFromRows(rows), nil
}

func parseCSV(data []byte) (*ReportTable, error) {
	decoded, err := decodeCSVBytes(data)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.Comma = detectDelimiter(decoded)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return tableFromRows(rows), nil
}

// decodeCSVBytes probes the encodings these exports actually arrive in.
// Valid UTF-8 passes through; otherwise windows-1251 is the overwhelmingly
// common case, with latin-1 as the lossless last resort.
func decodeCSVBytes(data []byte) ([]byte, error) {
	if utf8.Valid(data) {
		return bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF}), nil
	}
	if decoded, err := charmap.Windows1251.NewDecoder().Bytes(data); err == nil {
		return decoded, nil
	}
	return charmap.ISO8859_1.NewDecoder().Bytes(data)
}

func detectDelimiter(data []byte) rune {
	head := data
	if idx := bytes.IndexByte(head, '\n'); idx > 0 {
		head = head[:idx]
	}
	if bytes.Count(head, []byte{';'}) > bytes.Count(head, []byte{','}) {
		return ';'
	}
	return ','
}

// tableFromRows turns raw rows into a keyed table. When the first row is not
// a recognizable header (exports often carry a title block first), the
// header row is found by vocabulary overlap in the first five rows.
func tableFromRows(rows [][]string) *ReportTable {
	rows = promoteHeaderRow(rows)
	if len(rows) == 0 {
		return &ReportTable{}
	}

	columns := make([]string, len(rows[0]))
	for i, col := range rows[0] {
		columns[i] = strings.TrimSpace(col)
	}

	table := &ReportTable{Columns: columns}
	for _, row := range rows[1:] {
		if isEmptyRow(row) {
			continue
		}
		mapped := make(map[string]string, len(columns))
		for i, col := range columns {
			if col == "" {
				continue
			}
			if i < len(row) {
				mapped[col] = strings.TrimSpace(row[i])
			} else {
				mapped[col] = ""
			}
		}
		table.Rows = append(table.Rows, mapped)
	}
	return table
}

// promoteHeaderRow scans the first five rows for the row that looks most
// like the export header and drops everything above it. A score below two
// means no row qualifies and the table is left untouched.
func promoteHeaderRow(rows [][]string) [][]string {
	if len(rows) == 0 {
		return rows
	}
	if headerScore(rows[0]) >= 2 {
		return rows
	}

	bestRow := -1
	bestScore := 0
	limit := len(rows)
	if limit > 5 {
		limit = 5
	}
	for i := 0; i < limit; i++ {
		if score := headerScore(rows[i]); score > bestScore {
			bestScore = score
			bestRow = i
		}
	}
	if bestRow < 0 || bestScore < 2 {
		return rows
	}
	return rows[bestRow:]
}

func headerScore(row []string) int {
	present := make(map[string]struct{}, len(row))
	for _, cell := range row {
		present[strings.TrimSpace(cell)] = struct{}{}
	}
	score := 0
	for _, name := range knownColumnNames {
		if _, ok := present[name]; ok {
			score++
		}
	}
	return score
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
