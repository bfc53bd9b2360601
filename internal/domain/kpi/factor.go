// Package kpi содержит чистые функции расчёта KPI участников проекта.
package kpi

import (
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/translation-kpi/internal/domain/entity"
)

const (
	revisionPenalty  = 0.05
	delayMultiplier  = 0.9
	complaintPenalty = 0.8
)

// CompletionFactor коэффициент выполнения:
// base × (1 − 0.05 × правки) × 0.9 при просрочке × 0.8 при жалобе, не меньше нуля.
func CompletionFactor(base float64, q entity.Quality) float64 {
	return completionFactor(base, q, true)
}

// SalesCommissionFactor вариант для комиссии продаж: жалоба не учитывается.
func SalesCommissionFactor(base float64, q entity.Quality) float64 {
	return completionFactor(base, q, false)
}

func completionFactor(base float64, q entity.Quality, withComplaint bool) float64 {
	f := decimal.NewFromFloat(base).Mul(revisionMultiplier(q.RevisionCount))
	if q.IsDelayed {
		f = f.Mul(decimal.NewFromFloat(delayMultiplier))
	}
	if withComplaint && q.HasComplaint {
		f = f.Mul(decimal.NewFromFloat(complaintPenalty))
	}
	if f.IsNegative() {
		return 0
	}
	return f.InexactFloat64()
}

func revisionMultiplier(revisions int) decimal.Decimal {
	if revisions < 0 {
		revisions = 0
	}
	return decimal.NewFromInt(1).Sub(decimal.NewFromFloat(revisionPenalty).Mul(decimal.NewFromInt(int64(revisions))))
}
