package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/translation-kpi/internal/domain/valueobject"
	"github.com/ignatzorin/translation-kpi/internal/pkg/apperror"
)

// LockedRatios набор коэффициентов. Проект получает собственную копию при
// создании и больше не читает действующий реестр.
type LockedRatios struct {
	MTPE             float64            `json:"mtpe"`
	DeepEdit         float64            `json:"deepedit"`
	Reviewer         float64            `json:"reviewer"`
	ProjectManager   float64            `json:"project_manager"`
	SalesBonus       float64            `json:"sales_bonus"`
	SalesCommission  float64            `json:"sales_commission"`
	AdminStaff       float64            `json:"admin_staff"`
	Finance          float64            `json:"finance"`
	PartTimeSalesTax float64            `json:"part_time_sales_tax"`
	CompletionBase   float64            `json:"completion_base"`
	Extra            map[string]float64 `json:"extra,omitempty"`
}

// DefaultRatios коэффициенты, с которыми стартует пустой реестр.
func DefaultRatios() LockedRatios {
	return LockedRatios{
		MTPE:             0.12,
		DeepEdit:         0.18,
		Reviewer:         0.05,
		ProjectManager:   0.03,
		SalesBonus:       0.02,
		SalesCommission:  0.10,
		AdminStaff:       0.005,
		Finance:          0.005,
		PartTimeSalesTax: 0.10,
		CompletionBase:   1.0,
	}
}

// Clone возвращает независимую копию, включая карту дополнительных ставок.
func (r LockedRatios) Clone() LockedRatios {
	out := r
	if r.Extra != nil {
		out.Extra = make(map[string]float64, len(r.Extra))
		for k, v := range r.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// ForRole возвращает ставку роли, у которой нет подтипов.
func (r LockedRatios) ForRole(role valueobject.Role) float64 {
	switch role {
	case valueobject.RoleReviewer:
		return r.Reviewer
	case valueobject.RoleProjectManager:
		return r.ProjectManager
	case valueobject.RoleAdminStaff:
		return r.AdminStaff
	case valueobject.RoleFinance:
		return r.Finance
	}
	return r.Extra[string(role)]
}

// TranslatorRatio возвращает ставку для подтипа перевода.
func (r LockedRatios) TranslatorRatio(t valueobject.TranslatorType) float64 {
	if t == valueobject.TranslatorDeepEdit {
		return r.DeepEdit
	}
	return r.MTPE
}

func (r LockedRatios) Validate() error {
	named := map[string]float64{
		"mtpe":                r.MTPE,
		"deepedit":            r.DeepEdit,
		"reviewer":            r.Reviewer,
		"project_manager":     r.ProjectManager,
		"sales_bonus":         r.SalesBonus,
		"sales_commission":    r.SalesCommission,
		"admin_staff":         r.AdminStaff,
		"finance":             r.Finance,
		"part_time_sales_tax": r.PartTimeSalesTax,
	}
	for name, v := range r.Extra {
		named[name] = v
	}
	for name, v := range named {
		if _, err := valueobject.NewRatio(name, v); err != nil {
			return err
		}
	}
	if r.CompletionBase <= 0 || r.CompletionBase > 2 {
		return apperror.New(apperror.ErrCodeValidation, "базовый коэффициент выполнения должен быть в диапазоне (0, 2]")
	}
	return nil
}

// CoefficientRegistry действующие ставки компании.
type CoefficientRegistry struct {
	Ratios    LockedRatios
	UpdatedBy *uuid.UUID
	UpdatedAt time.Time
}

// CoefficientChange запись журнала изменений реестра. Журнал только дополняется.
type CoefficientChange struct {
	ID        uuid.UUID
	OldRatios LockedRatios
	NewRatios LockedRatios
	Reason    string
	ChangedBy uuid.UUID
	CreatedAt time.Time
}
