package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/translation-kpi/internal/domain/valueobject"
	"github.com/ignatzorin/translation-kpi/internal/pkg/apperror"
)

// RecordKey естественный ключ записи KPI.
type RecordKey struct {
	UserID    uuid.UUID
	ProjectID uuid.UUID
	Role      valueobject.Role
	Month     valueobject.Month
}

// KPIRecord сохранённый результат расчёта по участнику проекта за месяц.
type KPIRecord struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	ProjectID    uuid.UUID
	Role         valueobject.Role
	Month        valueobject.Month
	Value        float64
	Formula      string
	Inputs       map[string]interface{}
	ReviewStatus valueobject.ReviewStatus
	ReviewedBy   *uuid.UUID
	ReviewedAt   *time.Time
	CreatedAt    time.Time
}

func (r *KPIRecord) Key() RecordKey {
	return RecordKey{UserID: r.UserID, ProjectID: r.ProjectID, Role: r.Role, Month: r.Month}
}

// Approve утверждает запись. Повторное утверждение запрещено.
func (r *KPIRecord) Approve(reviewer uuid.UUID, now time.Time) error {
	if r.ReviewStatus == valueobject.ReviewApproved {
		return apperror.Conflict("запись KPI уже утверждена")
	}
	r.ReviewStatus = valueobject.ReviewApproved
	r.ReviewedBy = &reviewer
	r.ReviewedAt = &now
	return nil
}

type MonthlyRoleKey struct {
	UserID uuid.UUID
	Month  valueobject.Month
	Role   valueobject.Role
}

// MonthlyRoleKPI запись KPI сотрудника пула, посчитанная от оборота компании за месяц.
type MonthlyRoleKPI struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	Month           valueobject.Month
	Role            valueobject.Role
	CompanyTotal    float64
	Ratio           float64
	EvaluationLevel *valueobject.EvaluationLevel
	EvaluatedBy     *uuid.UUID
	EvaluatedAt     *time.Time
	Value           float64
	Formula         string
	ReviewStatus    valueobject.ReviewStatus
	ReviewedBy      *uuid.UUID
	ReviewedAt      *time.Time
	CreatedAt       time.Time
}

func (r *MonthlyRoleKPI) Key() MonthlyRoleKey {
	return MonthlyRoleKey{UserID: r.UserID, Month: r.Month, Role: r.Role}
}

// Estimated сообщает, что значение посчитано без оценки руководителя.
func (r *MonthlyRoleKPI) Estimated() bool {
	return r.EvaluationLevel == nil
}

// EvaluatorFactor коэффициент оценки; до оценки считается medium.
func (r *MonthlyRoleKPI) EvaluatorFactor() float64 {
	if r.EvaluationLevel == nil {
		return valueobject.EvaluationMedium.Factor()
	}
	return r.EvaluationLevel.Factor()
}

// Evaluate сохраняет оценку. Утверждённые записи не пересчитываются.
func (r *MonthlyRoleKPI) Evaluate(level valueobject.EvaluationLevel, evaluator uuid.UUID, now time.Time) error {
	if r.ReviewStatus == valueobject.ReviewApproved {
		return apperror.Conflict("месячная запись KPI уже утверждена")
	}
	r.EvaluationLevel = &level
	r.EvaluatedBy = &evaluator
	r.EvaluatedAt = &now
	return nil
}

func (r *MonthlyRoleKPI) Approve(reviewer uuid.UUID, now time.Time) error {
	if r.ReviewStatus == valueobject.ReviewApproved {
		return apperror.Conflict("месячная запись KPI уже утверждена")
	}
	r.ReviewStatus = valueobject.ReviewApproved
	r.ReviewedBy = &reviewer
	r.ReviewedAt = &now
	return nil
}

// Notification сохранённое уведомление пользователя.
type Notification struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	IsRead    bool            `db:"is_read" json:"is_read"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
