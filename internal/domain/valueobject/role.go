package valueobject

import "github.com/ignatzorin/translation-kpi/internal/pkg/apperror"

// Role код роли участника проекта.
type Role string

const (
	RoleTranslator         Role = "translator"
	RoleReviewer           Role = "reviewer"
	RoleLayout             Role = "layout"
	RolePartTimeTranslator Role = "part_time_translator"
	RolePartTimeLayout     Role = "part_time_layout"
	RoleProjectManager     Role = "project_manager"
	RoleSales              Role = "sales"
	RolePartTimeSales      Role = "part_time_sales"
	RoleAdminStaff         Role = "admin_staff"
	RoleFinance            Role = "finance"
)

// IsProduction сообщает, требует ли роль явного принятия назначения.
func (r Role) IsProduction() bool {
	switch r {
	case RoleTranslator, RoleReviewer, RoleLayout, RolePartTimeTranslator:
		return true
	}
	return false
}

// IsPooled сообщает, считается ли KPI роли от общего оборота компании.
func (r Role) IsPooled() bool {
	return r == RoleAdminStaff || r == RoleFinance
}

// IsFeeBased сообщает, что KPI роли равен вручную введённому гонорару.
func (r Role) IsFeeBased() bool {
	switch r {
	case RolePartTimeTranslator, RoleLayout, RolePartTimeLayout:
		return true
	}
	return false
}

// NewRole разбирает код роли. Неизвестные, но непустые коды допускаются:
// для них работает общая формула.
func NewRole(role string) (Role, error) {
	if role == "" {
		return "", apperror.New(apperror.ErrCodeValidation, "роль обязательна")
	}
	if len(role) > 64 {
		return "", apperror.New(apperror.ErrCodeValidation, "код роли слишком длинный")
	}
	return Role(role), nil
}

// TranslatorType подтип работы переводчика.
type TranslatorType string

const (
	TranslatorMTPE     TranslatorType = "mtpe"
	TranslatorDeepEdit TranslatorType = "deepedit"
)

func NewTranslatorType(t string) (TranslatorType, error) {
	tt := TranslatorType(t)
	switch tt {
	case TranslatorMTPE, TranslatorDeepEdit:
		return tt, nil
	}
	return "", apperror.New(apperror.ErrCodeValidation, "тип перевода должен быть mtpe или deepedit")
}
