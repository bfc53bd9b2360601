package entity

import (
	"github.com/google/uuid"

	"github.com/ignatzorin/translation-kpi/internal/domain/valueobject"
)

// Права, которые приходят от внешней системы авторизации.
const (
	PermProjectCreate     = "project.create"
	PermProjectManage     = "project.manage"
	PermKPIGenerate       = "kpi.generate"
	PermKPIReview         = "kpi.review"
	PermKPIEvaluate       = "kpi.evaluate"
	PermKPIViewAll        = "kpi.view_all"
	PermCoefficientManage = "coefficient.manage"
)

// Actor аутентифицированный пользователь и выбранная им роль.
type Actor struct {
	UserID      uuid.UUID
	Role        valueobject.Role
	Permissions []string
}

func (a Actor) Can(permission string) bool {
	for _, p := range a.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

func (a Actor) IsAdmin() bool {
	return a.Can(PermProjectManage)
}
