package reportmerge

import (
	"testing"

	"bitbucket.org/ostrovlabs/loyalty_backend/models"
)

func TestDetectReportType(t *testing.T) {
	cases := []struct {
		name     string
		columns  []string
		expected string
	}{
		{
			name: "goods export",
			columns: []string{
				"Код товару", "Найменування", "УКТ ЗЕД", "Штрих-код",
				"Вартість", "Кількість", "Сума", "Дата продажу",
			},
			expected: models.ReportTypeGoods,
		},
		{
			name: "payments export",
			columns: []string{
				"Тип оплати", "Номер зміни", "Дата та час закриття зміни",
				"Повернення", "Фіскальний номер", "Сума (грн)",
			},
			expected: models.ReportTypePayments,
		},
		{
			name:     "tie broken by payment type column",
			columns:  []string{"Тип оплати", "Найменування"},
			expected: models.ReportTypePayments,
		},
		{
			name:     "single goods column",
			columns:  []string{"Найменування", "Вартість", "Сума"},
			expected: models.ReportTypeGoods,
		},
		{
			name:     "no indicators",
			columns:  []string{"Колонка 1", "Колонка 2"},
			expected: models.ReportTypeUnknown,
		},
		{
			name:     "empty header",
			columns:  nil,
			expected: models.ReportTypeUnknown,
		},
	}
	for _, tc := range cases {
		if got := DetectReportType(tc.columns); got != tc.expected {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.expected, got)
		}
	}
}
