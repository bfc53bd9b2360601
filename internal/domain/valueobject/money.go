package valueobject

import (
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/translation-kpi/internal/pkg/apperror"
)

// RoundMoney округляет сумму до копеек (half away from zero).
func RoundMoney(amount float64) float64 {
	return decimal.NewFromFloat(amount).Round(2).InexactFloat64()
}

// RoundRatio округляет коэффициент до четырёх знаков.
func RoundRatio(ratio float64) float64 {
	return decimal.NewFromFloat(ratio).Round(4).InexactFloat64()
}

// NewAmount проверяет сумму проекта.
func NewAmount(amount float64) (float64, error) {
	if amount < 0 {
		return 0, apperror.New(apperror.ErrCodeValidation, "сумма не может быть отрицательной")
	}
	return RoundMoney(amount), nil
}

// NewRatio проверяет, что коэффициент лежит в диапазоне [0, 1].
func NewRatio(name string, ratio float64) (float64, error) {
	if ratio < 0 || ratio > 1 {
		return 0, apperror.Validation("коэффициент %s должен быть в диапазоне от 0 до 1", name)
	}
	return ratio, nil
}
