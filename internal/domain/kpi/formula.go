package kpi

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ignatzorin/translation-kpi/internal/domain/entity"
	"github.com/ignatzorin/translation-kpi/internal/domain/valueobject"
	"github.com/ignatzorin/translation-kpi/internal/pkg/apperror"
)

// Input всё, что нужно формуле роли. Поля, не относящиеся к роли, игнорируются.
type Input struct {
	Role              valueobject.Role
	TranslatorType    valueobject.TranslatorType
	Amount            float64
	WorkloadRatio     float64
	PartTimeFee       *float64
	ReceivedAmount    *float64
	PaymentStatus     valueobject.PaymentStatus
	CompanyReceivable *float64
	CompanyTotal      float64
	EvaluationLevel   *valueobject.EvaluationLevel
	Ratios            entity.LockedRatios
	Quality           entity.Quality
}

// Result значение KPI, строка формулы для аудита и детали расчёта.
type Result struct {
	Value   float64                `json:"value"`
	Formula string                 `json:"formula"`
	Details map[string]interface{} `json:"details"`
}

// InputForMember собирает вход формулы из проекта и участника.
// Используются коэффициенты, зафиксированные в строке участника.
func InputForMember(p *entity.Project, m *entity.ProjectMember) Input {
	return Input{
		Role:              m.Role,
		TranslatorType:    m.TranslatorType,
		Amount:            p.Amount,
		WorkloadRatio:     m.WorkloadRatio,
		PartTimeFee:       m.PartTimeFee,
		ReceivedAmount:    p.Payment.ReceivedAmount,
		PaymentStatus:     p.Payment.Status,
		CompanyReceivable: p.CompanyReceivable,
		Ratios:            m.LockedRatios,
		Quality:           p.Quality,
	}
}

// Calculate считает KPI роли. Для ролей без своей формулы работает общая.
func Calculate(in Input) (Result, error) {
	if in.WorkloadRatio == 0 {
		in.WorkloadRatio = 1
	}

	switch in.Role {
	case valueobject.RoleTranslator:
		return translator(in), nil
	case valueobject.RoleReviewer:
		return reviewer(in), nil
	case valueobject.RoleProjectManager:
		return projectManager(in), nil
	case valueobject.RoleSales:
		return sales(in), nil
	case valueobject.RolePartTimeSales:
		return partTimeSales(in), nil
	case valueobject.RoleAdminStaff, valueobject.RoleFinance:
		return pooled(in), nil
	}

	if in.Role.IsFeeBased() {
		return feeBased(in)
	}
	return generic(in), nil
}

func translator(in Input) Result {
	factor := CompletionFactor(in.Ratios.CompletionBase, in.Quality)
	ratio := in.Ratios.TranslatorRatio(in.TranslatorType)
	value := product(in.Amount, ratio, in.WorkloadRatio, factor)

	return Result{
		Value: value,
		Formula: fmt.Sprintf("Перевод (%s): %s × %s × %s × %s = %s",
			in.TranslatorType, money(in.Amount), rate(ratio), rate(in.WorkloadRatio), rate(factor), money(value)),
		Details: map[string]interface{}{
			"amount":            in.Amount,
			"translator_type":   in.TranslatorType,
			"ratio":             ratio,
			"workload_ratio":    in.WorkloadRatio,
			"completion_factor": factor,
		},
	}
}

func reviewer(in Input) Result {
	factor := CompletionFactor(in.Ratios.CompletionBase, in.Quality)
	ratio := in.Ratios.Reviewer
	value := product(in.Amount, ratio, in.WorkloadRatio, factor)

	return Result{
		Value: value,
		Formula: fmt.Sprintf("Редактура: %s × %s × %s × %s = %s",
			money(in.Amount), rate(ratio), rate(in.WorkloadRatio), rate(factor), money(value)),
		Details: map[string]interface{}{
			"amount":            in.Amount,
			"ratio":             ratio,
			"occupancy_share":   in.WorkloadRatio,
			"completion_factor": factor,
		},
	}
}

func projectManager(in Input) Result {
	factor := CompletionFactor(in.Ratios.CompletionBase, in.Quality)
	ratio := in.Ratios.ProjectManager
	value := product(in.Amount, ratio, factor)

	return Result{
		Value: value,
		Formula: fmt.Sprintf("Менеджер проекта: %s × %s × %s = %s",
			money(in.Amount), rate(ratio), rate(factor), money(value)),
		Details: map[string]interface{}{
			"amount":            in.Amount,
			"ratio":             ratio,
			"completion_factor": factor,
		},
	}
}

// sales: бонус от суммы проекта без скидки, комиссия от полученной оплаты
// с коэффициентом выполнения без штрафа за жалобу.
func sales(in Input) Result {
	factor := SalesCommissionFactor(in.Ratios.CompletionBase, in.Quality)
	base := commissionBase(in)

	bonus := product(in.Amount, in.Ratios.SalesBonus)
	commission := product(base, in.Ratios.SalesCommission, factor)
	total := sum(bonus, commission)

	return Result{
		Value: total,
		Formula: fmt.Sprintf("Продажи: бонус %s × %s = %s; комиссия %s × %s × %s = %s; итого %s",
			money(in.Amount), rate(in.Ratios.SalesBonus), money(bonus),
			money(base), rate(in.Ratios.SalesCommission), rate(factor), money(commission),
			money(total)),
		Details: map[string]interface{}{
			"amount":            in.Amount,
			"bonus_ratio":       in.Ratios.SalesBonus,
			"bonus":             bonus,
			"commission_base":   base,
			"commission_ratio":  in.Ratios.SalesCommission,
			"commission_factor": factor,
			"commission":        commission,
		},
	}
}

func commissionBase(in Input) float64 {
	if in.ReceivedAmount == nil || in.PaymentStatus == valueobject.PaymentPaid {
		return in.Amount
	}
	return *in.ReceivedAmount
}

// partTimeSales не зависит от коэффициента выполнения.
func partTimeSales(in Input) Result {
	receivable := 0.0
	if in.CompanyReceivable != nil {
		receivable = *in.CompanyReceivable
	}
	tax := in.Ratios.PartTimeSalesTax

	net := decimal.NewFromFloat(in.Amount).Sub(decimal.NewFromFloat(receivable))
	value := net.Mul(decimal.NewFromInt(1).Sub(decimal.NewFromFloat(tax)))
	if value.IsNegative() {
		value = decimal.Zero
	}
	rounded := value.Round(2).InexactFloat64()

	return Result{
		Value: rounded,
		Formula: fmt.Sprintf("Внештатные продажи: max(0, (%s − %s) × (1 − %s)) = %s",
			money(in.Amount), money(receivable), rate(tax), money(rounded)),
		Details: map[string]interface{}{
			"amount":             in.Amount,
			"company_receivable": receivable,
			"tax_rate":           tax,
		},
	}
}

func feeBased(in Input) (Result, error) {
	if in.PartTimeFee == nil {
		return Result{}, apperror.Validation("для роли %s не указан гонорар", in.Role)
	}
	fee := valueobject.RoundMoney(*in.PartTimeFee)

	return Result{
		Value:   fee,
		Formula: fmt.Sprintf("Гонорар (%s): %s", in.Role, money(fee)),
		Details: map[string]interface{}{
			"part_time_fee": fee,
		},
	}, nil
}

func pooled(in Input) Result {
	return CalculatePooled(in.Role, in.CompanyTotal, in.Ratios.ForRole(in.Role), in.EvaluationLevel)
}

// CalculatePooled KPI сотрудника пула от оборота компании за месяц. Без оценки
// руководителя используется medium и результат помечается как оценочный.
func CalculatePooled(role valueobject.Role, companyTotal, ratio float64, level *valueobject.EvaluationLevel) Result {
	factor := valueobject.EvaluationMedium.Factor()
	estimated := level == nil
	if !estimated {
		factor = level.Factor()
	}
	value := product(companyTotal, ratio, factor)

	formula := fmt.Sprintf("Пул (%s): %s × %s × %s = %s",
		role, money(companyTotal), rate(ratio), rate(factor), money(value))
	if estimated {
		formula += " (оценка не выставлена)"
	}

	details := map[string]interface{}{
		"company_total":    companyTotal,
		"ratio":            ratio,
		"evaluator_factor": factor,
		"estimated":        estimated,
	}
	if !estimated {
		details["evaluation_level"] = *level
	}

	return Result{Value: value, Formula: formula, Details: details}
}

func generic(in Input) Result {
	factor := CompletionFactor(in.Ratios.CompletionBase, in.Quality)
	ratio := in.Ratios.ForRole(in.Role)

	parts := []string{money(in.Amount), rate(ratio)}
	values := []float64{in.Amount, ratio}
	if in.WorkloadRatio != 1 {
		parts = append(parts, rate(in.WorkloadRatio))
		values = append(values, in.WorkloadRatio)
	}
	parts = append(parts, rate(factor))
	values = append(values, factor)
	value := product(values...)

	return Result{
		Value:   value,
		Formula: fmt.Sprintf("%s: %s = %s", in.Role, strings.Join(parts, " × "), money(value)),
		Details: map[string]interface{}{
			"amount":            in.Amount,
			"ratio":             ratio,
			"workload_ratio":    in.WorkloadRatio,
			"completion_factor": factor,
		},
	}
}

func product(values ...float64) float64 {
	p := decimal.NewFromInt(1)
	for _, v := range values {
		p = p.Mul(decimal.NewFromFloat(v))
	}
	return p.Round(2).InexactFloat64()
}

func sum(values ...float64) float64 {
	s := decimal.Zero
	for _, v := range values {
		s = s.Add(decimal.NewFromFloat(v))
	}
	return s.Round(2).InexactFloat64()
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func rate(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(4)
}
