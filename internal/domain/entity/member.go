package entity

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ignatzorin/translation-kpi/internal/domain/valueobject"
	"github.com/ignatzorin/translation-kpi/internal/pkg/apperror"
)

// ProjectMember участник проекта в конкретной роли. Уникален по (project, user, role).
type ProjectMember struct {
	ID              uuid.UUID
	ProjectID       uuid.UUID
	UserID          uuid.UUID
	Role            valueobject.Role
	TranslatorType  valueobject.TranslatorType
	WorkloadRatio   float64
	PartTimeFee     *float64
	LockedRatios    LockedRatios
	Acceptance      valueobject.AcceptanceStatus
	AcceptanceAt    *time.Time
	RejectionReason string
	CreatedAt       time.Time
}

type NewMemberInput struct {
	UserID         uuid.UUID
	Role           valueobject.Role
	TranslatorType string
	WorkloadRatio  *float64
	PartTimeFee    *float64
}

// NewProjectMember создаёт участника с копией коэффициентов проекта.
// Производственные роли ждут подтверждения, остальные принимаются сразу.
func NewProjectMember(project *Project, in NewMemberInput, now time.Time) (*ProjectMember, error) {
	if in.UserID == uuid.Nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "пользователь обязателен")
	}
	role, err := valueobject.NewRole(string(in.Role))
	if err != nil {
		return nil, err
	}

	m := &ProjectMember{
		ID:            uuid.New(),
		ProjectID:     project.ID,
		UserID:        in.UserID,
		Role:          role,
		WorkloadRatio: 1,
		LockedRatios:  project.LockedRatios.Clone(),
		CreatedAt:     now,
	}

	if role == valueobject.RoleTranslator {
		tt, err := valueobject.NewTranslatorType(in.TranslatorType)
		if err != nil {
			return nil, err
		}
		m.TranslatorType = tt
	}

	if in.WorkloadRatio != nil {
		w := *in.WorkloadRatio
		if w <= 0 || w > 1 {
			return nil, apperror.New(apperror.ErrCodeValidation, "доля нагрузки должна быть в диапазоне (0, 1]")
		}
		m.WorkloadRatio = valueobject.RoundRatio(w)
	}

	if role.IsFeeBased() {
		if in.PartTimeFee == nil {
			return nil, apperror.Validation("для роли %s нужно указать гонорар", role)
		}
		fee, err := valueobject.NewAmount(*in.PartTimeFee)
		if err != nil {
			return nil, err
		}
		m.PartTimeFee = &fee
	}

	if role.IsProduction() {
		m.Acceptance = valueobject.AcceptancePending
	} else {
		m.Acceptance = valueobject.AcceptanceAccepted
		accepted := now
		m.AcceptanceAt = &accepted
	}

	return m, nil
}

func (m *ProjectMember) IsPending() bool {
	return m.Acceptance == valueobject.AcceptancePending
}

func (m *ProjectMember) accept(now time.Time) error {
	if !m.IsPending() {
		return apperror.ErrAssignmentResolved
	}
	m.Acceptance = valueobject.AcceptanceAccepted
	m.AcceptanceAt = &now
	return nil
}

func (m *ProjectMember) reject(reason string, maxReason int, now time.Time) error {
	if !m.IsPending() {
		return apperror.ErrAssignmentResolved
	}
	m.Acceptance = valueobject.AcceptanceRejected
	m.AcceptanceAt = &now
	m.RejectionReason = truncateRunes(strings.TrimSpace(reason), maxReason)
	return nil
}

func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
