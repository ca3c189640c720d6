package reportmerge

import "bitbucket.org/ostrovlabs/loyalty_backend/models"

var paymentIndicators = []string{
	"Тип оплати",
	"Номер зміни",
	"Дата та час закриття зміни",
	"Повернення",
	"ID чека",
	"Дата/Час",
	"Фіскальний номер",
	"Сума (грн)",
}

var goodsIndicators = []string{
	"УКТ ЗЕД",
	"Акцизна марка",
	"Штрих-код",
	"Найменування",
}

// DetectReportType classifies an export by its column set: the indicator
// vocabulary with the larger overlap wins, with decisive columns breaking a
// tie. Files matching neither vocabulary are unknown and rejected upstream.
func DetectReportType(columns []string) string {
	present := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		present[col] = struct{}{}
	}

	paymentCount := countPresent(present, paymentIndicators)
	goodsCount := countPresent(present, goodsIndicators)

	switch {
	case paymentCount > goodsCount:
		return models.ReportTypePayments
	case goodsCount > paymentCount:
		return models.ReportTypeGoods
	}

	if _, ok := present["Тип оплати"]; ok {
		return models.ReportTypePayments
	}
	if _, ok := present["УКТ ЗЕД"]; ok {
		return models.ReportTypeGoods
	}
	if _, ok := present["Найменування"]; ok {
		return models.ReportTypeGoods
	}
	return models.ReportTypeUnknown
}

func countPresent(present map[string]struct{}, indicators []string) int {
	count := 0
	for _, name := range indicators {
		if _, ok := present[name]; ok {
			count++
		}
	}
	return count
}
