package valueobject

import "github.com/ignatzorin/translation-kpi/internal/pkg/apperror"

type ProjectStatus string

const (
	ProjectStatusPending         ProjectStatus = "pending"
	ProjectStatusScheduled       ProjectStatus = "scheduled"
	ProjectStatusInProgress      ProjectStatus = "in_progress"
	ProjectStatusTranslationDone ProjectStatus = "translation_done"
	ProjectStatusReviewDone      ProjectStatus = "review_done"
	ProjectStatusLayoutDone      ProjectStatus = "layout_done"
	ProjectStatusCompleted       ProjectStatus = "completed"
	ProjectStatusCancelled       ProjectStatus = "cancelled"
)

// projectStatusOrder задаёт порядок статусов; cancelled в порядок не входит.
var projectStatusOrder = []ProjectStatus{
	ProjectStatusPending,
	ProjectStatusScheduled,
	ProjectStatusInProgress,
	ProjectStatusTranslationDone,
	ProjectStatusReviewDone,
	ProjectStatusLayoutDone,
	ProjectStatusCompleted,
}

func (s ProjectStatus) IsValid() bool {
	return s == ProjectStatusCancelled || s.Position() >= 0
}

// Position возвращает позицию статуса в упорядоченном списке или -1.
func (s ProjectStatus) Position() int {
	for i, status := range projectStatusOrder {
		if status == s {
			return i
		}
	}
	return -1
}

func (s ProjectStatus) IsTerminal() bool {
	return s == ProjectStatusCompleted || s == ProjectStatusCancelled
}

// IsManualTarget сообщает, можно ли перевести проект в статус вручную.
func (s ProjectStatus) IsManualTarget() bool {
	switch s {
	case ProjectStatusTranslationDone, ProjectStatusReviewDone, ProjectStatusLayoutDone:
		return true
	}
	return false
}

// StageRoles возвращает роли, участники с которыми могут выставить этот статус.
// Штатная и внештатная роль одного этапа равноправны.
func (s ProjectStatus) StageRoles() []Role {
	switch s {
	case ProjectStatusTranslationDone:
		return []Role{RoleTranslator, RolePartTimeTranslator}
	case ProjectStatusReviewDone:
		return []Role{RoleReviewer}
	case ProjectStatusLayoutDone:
		return []Role{RoleLayout, RolePartTimeLayout}
	}
	return nil
}

func NewProjectStatus(status string) (ProjectStatus, error) {
	s := ProjectStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус проекта")
	}
	return s, nil
}

type AcceptanceStatus string

const (
	AcceptancePending  AcceptanceStatus = "pending"
	AcceptanceAccepted AcceptanceStatus = "accepted"
	AcceptanceRejected AcceptanceStatus = "rejected"
)

func (s AcceptanceStatus) IsValid() bool {
	switch s {
	case AcceptancePending, AcceptanceAccepted, AcceptanceRejected:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentUnpaid, PaymentPartial, PaymentPaid:
		return true
	}
	return false
}

func NewPaymentStatus(status string) (PaymentStatus, error) {
	if status == "" {
		return PaymentUnpaid, nil
	}
	s := PaymentStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус оплаты")
	}
	return s, nil
}

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
)

// EvaluationLevel оценка руководителя для сотрудников пулов.
type EvaluationLevel string

const (
	EvaluationGood   EvaluationLevel = "good"
	EvaluationMedium EvaluationLevel = "medium"
	EvaluationPoor   EvaluationLevel = "poor"
)

// Factor возвращает коэффициент выполнения для уровня оценки.
func (l EvaluationLevel) Factor() float64 {
	switch l {
	case EvaluationGood:
		return 1.1
	case EvaluationPoor:
		return 0.8
	}
	return 1.0
}

func NewEvaluationLevel(level string) (EvaluationLevel, error) {
	l := EvaluationLevel(level)
	switch l {
	case EvaluationGood, EvaluationMedium, EvaluationPoor:
		return l, nil
	}
	return "", apperror.New(apperror.ErrCodeValidation, "оценка должна быть good, medium или poor")
}
