package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/translation-kpi/internal/domain/valueobject"
	"github.com/ignatzorin/translation-kpi/internal/pkg/apperror"
)

// Quality флаги качества, из которых считается коэффициент выполнения.
type Quality struct {
	RevisionCount int
	IsDelayed     bool
	HasComplaint  bool
}

type Payment struct {
	ReceivedAmount *float64
	Status         valueobject.PaymentStatus
}

// AcceptanceSummary счётчики принятия назначений по проекту.
type AcceptanceSummary struct {
	Pending  int
	Accepted int
	Rejected int
}

func (s AcceptanceSummary) AllConfirmed() bool {
	return s.Pending == 0 && s.Rejected == 0 && s.Accepted > 0
}

type Project struct {
	ID                uuid.UUID
	Name              string
	ClientName        string
	Amount            float64
	Status            valueobject.ProjectStatus
	DeadlineAt        *time.Time
	StartedAt         *time.Time
	CompletedAt       *time.Time
	Quality           Quality
	Payment           Payment
	CompanyReceivable *float64
	Acceptance        AcceptanceSummary
	LockedRatios      LockedRatios
	CreatedBy         uuid.UUID
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// StatusChange переход статуса для журнала.
type StatusChange struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	From      valueobject.ProjectStatus
	To        valueobject.ProjectStatus
	ActorID   *uuid.UUID
	CreatedAt time.Time
}

func NewProject(createdBy uuid.UUID, name, clientName string, amount float64, deadline *time.Time, ratios LockedRatios, now time.Time) (*Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "название проекта обязательно")
	}

	validAmount, err := valueobject.NewAmount(amount)
	if err != nil {
		return nil, err
	}

	if deadline != nil && deadline.Before(now) {
		return nil, apperror.New(apperror.ErrCodeValidation, "дедлайн не может быть в прошлом")
	}

	return &Project{
		ID:           uuid.New(),
		Name:         name,
		ClientName:   strings.TrimSpace(clientName),
		Amount:       validAmount,
		Status:       valueobject.ProjectStatusPending,
		DeadlineAt:   deadline,
		Payment:      Payment{Status: valueobject.PaymentUnpaid},
		LockedRatios: ratios.Clone(),
		CreatedBy:    createdBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (p *Project) IsCreatedBy(userID uuid.UUID) bool {
	return p.CreatedBy == userID
}

func (p *Project) ensureEditable() error {
	if p.Status.IsTerminal() {
		return apperror.ErrProjectTerminal
	}
	return nil
}

// UpdateInput изменяемые поля проекта; nil означает "не менять".
type UpdateInput struct {
	Name              *string
	Amount            *float64
	DeadlineAt        *time.Time
	RevisionCount     *int
	HasComplaint      *bool
	ReceivedAmount    *float64
	PaymentStatus     *valueobject.PaymentStatus
	CompanyReceivable *float64
}

func (p *Project) Update(in UpdateInput, now time.Time) error {
	if err := p.ensureEditable(); err != nil {
		return err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return apperror.New(apperror.ErrCodeValidation, "название проекта обязательно")
		}
		p.Name = name
	}
	if in.Amount != nil {
		amount, err := valueobject.NewAmount(*in.Amount)
		if err != nil {
			return err
		}
		p.Amount = amount
	}
	if in.DeadlineAt != nil {
		p.DeadlineAt = in.DeadlineAt
	}
	if in.RevisionCount != nil {
		if *in.RevisionCount < 0 {
			return apperror.New(apperror.ErrCodeValidation, "количество правок не может быть отрицательным")
		}
		p.Quality.RevisionCount = *in.RevisionCount
	}
	if in.HasComplaint != nil {
		p.Quality.HasComplaint = *in.HasComplaint
	}
	if in.ReceivedAmount != nil {
		received, err := valueobject.NewAmount(*in.ReceivedAmount)
		if err != nil {
			return err
		}
		p.Payment.ReceivedAmount = &received
	}
	if in.PaymentStatus != nil {
		p.Payment.Status = *in.PaymentStatus
	}
	if in.CompanyReceivable != nil {
		receivable, err := valueobject.NewAmount(*in.CompanyReceivable)
		if err != nil {
			return err
		}
		p.CompanyReceivable = &receivable
	}

	p.UpdatedAt = now
	return nil
}

// AddMember учитывает нового участника в счётчиках. Производственная роль
// переводит ожидающий проект в scheduled.
func (p *Project) AddMember(m *ProjectMember, now time.Time) error {
	if err := p.ensureEditable(); err != nil {
		return err
	}

	switch m.Acceptance {
	case valueobject.AcceptancePending:
		p.Acceptance.Pending++
	case valueobject.AcceptanceAccepted:
		p.Acceptance.Accepted++
	}

	if m.Role.IsProduction() && p.Status == valueobject.ProjectStatusPending {
		p.Status = valueobject.ProjectStatusScheduled
	}
	p.UpdatedAt = now
	return nil
}

// RemoveMember снимает участника со счётчиков.
func (p *Project) RemoveMember(m *ProjectMember, now time.Time) error {
	if err := p.ensureEditable(); err != nil {
		return err
	}

	switch m.Acceptance {
	case valueobject.AcceptancePending:
		p.Acceptance.Pending = decrement(p.Acceptance.Pending)
	case valueobject.AcceptanceAccepted:
		p.Acceptance.Accepted = decrement(p.Acceptance.Accepted)
	case valueobject.AcceptanceRejected:
		p.Acceptance.Rejected = decrement(p.Acceptance.Rejected)
	}
	p.UpdatedAt = now
	return nil
}

// AcceptMember фиксирует принятие назначения.
func (p *Project) AcceptMember(m *ProjectMember, now time.Time) error {
	if err := p.ensureEditable(); err != nil {
		return err
	}
	if err := m.accept(now); err != nil {
		return err
	}
	p.Acceptance.Pending = decrement(p.Acceptance.Pending)
	p.Acceptance.Accepted++
	p.UpdatedAt = now
	return nil
}

// RejectMember фиксирует отказ и всегда возвращает проект в scheduled.
func (p *Project) RejectMember(m *ProjectMember, reason string, maxReason int, now time.Time) error {
	if err := p.ensureEditable(); err != nil {
		return err
	}
	if err := m.reject(reason, maxReason, now); err != nil {
		return err
	}
	p.Acceptance.Pending = decrement(p.Acceptance.Pending)
	p.Acceptance.Rejected++
	p.Status = valueobject.ProjectStatusScheduled
	p.UpdatedAt = now
	return nil
}

// ReevaluateAcceptance автоматический переход scheduled <-> in_progress.
// Проект в работе только если каждая когда-либо назначенная производственная
// роль закрыта непринятыми отказами и все её участники приняли назначение.
func (p *Project) ReevaluateAcceptance(members []*ProjectMember, now time.Time) {
	if p.Status != valueobject.ProjectStatusScheduled && p.Status != valueobject.ProjectStatusInProgress {
		return
	}

	if acceptanceSatisfied(members) && p.Acceptance.Pending == 0 {
		p.Status = valueobject.ProjectStatusInProgress
		if p.StartedAt == nil {
			started := now
			p.StartedAt = &started
		}
	} else {
		p.Status = valueobject.ProjectStatusScheduled
	}
	p.UpdatedAt = now
}

func acceptanceSatisfied(members []*ProjectMember) bool {
	type roleState struct {
		active      int
		allAccepted bool
	}
	roles := make(map[valueobject.Role]*roleState)

	for _, m := range members {
		if !m.Role.IsProduction() {
			continue
		}
		st, ok := roles[m.Role]
		if !ok {
			st = &roleState{allAccepted: true}
			roles[m.Role] = st
		}
		if m.Acceptance == valueobject.AcceptanceRejected {
			continue
		}
		st.active++
		if m.Acceptance != valueobject.AcceptanceAccepted {
			st.allAccepted = false
		}
	}

	if len(roles) == 0 {
		return false
	}
	for _, st := range roles {
		if st.active == 0 || !st.allAccepted {
			return false
		}
	}
	return true
}

// Start ручной запуск проекта создателем. Нужен хотя бы один менеджер проекта.
func (p *Project) Start(members []*ProjectMember, now time.Time) error {
	if err := p.ensureEditable(); err != nil {
		return err
	}
	if p.Status != valueobject.ProjectStatusPending {
		return apperror.New(apperror.ErrCodeValidation, "проект уже запущен")
	}
	if !hasRole(members, valueobject.RoleProjectManager) {
		return apperror.New(apperror.ErrCodeValidation, "для запуска проекта нужен менеджер проекта")
	}
	p.Status = valueobject.ProjectStatusScheduled
	p.UpdatedAt = now
	return nil
}

// AdvanceTo ручной переход по производственным этапам. Переходы только вперёд.
func (p *Project) AdvanceTo(target valueobject.ProjectStatus, now time.Time) error {
	if err := p.ensureEditable(); err != nil {
		return err
	}
	if !target.IsValid() || target.Position() < 0 {
		return apperror.New(apperror.ErrCodeValidation, "неподдерживаемый переход статуса")
	}
	if target.Position() < p.Status.Position() {
		return apperror.ErrStatusRollback
	}
	if !target.IsManualTarget() {
		return apperror.New(apperror.ErrCodeValidation, "неподдерживаемый переход статуса")
	}
	if p.Status.Position() < valueobject.ProjectStatusInProgress.Position() {
		return apperror.New(apperror.ErrCodeValidation, "проект ещё не в работе")
	}
	p.Status = target
	p.UpdatedAt = now
	return nil
}

// Complete завершает проект и отмечает просрочку относительно дедлайна.
func (p *Project) Complete(memberCount int, now time.Time) error {
	if err := p.ensureEditable(); err != nil {
		return err
	}
	if memberCount == 0 {
		return apperror.New(apperror.ErrCodeValidation, "нельзя завершить проект без участников")
	}
	if p.Amount <= 0 {
		return apperror.New(apperror.ErrCodeValidation, "нельзя завершить проект с нулевой суммой")
	}
	completed := now
	p.CompletedAt = &completed
	if p.DeadlineAt != nil && completed.After(*p.DeadlineAt) {
		p.Quality.IsDelayed = true
	}
	p.Status = valueobject.ProjectStatusCompleted
	p.UpdatedAt = now
	return nil
}

func (p *Project) Cancel(now time.Time) error {
	if err := p.ensureEditable(); err != nil {
		return err
	}
	p.Status = valueobject.ProjectStatusCancelled
	p.UpdatedAt = now
	return nil
}

// CommissionBase сумма, от которой считается комиссия продаж: полученная
// оплата, либо сумма проекта, если оплата не указана или проект оплачен полностью.
func (p *Project) CommissionBase() float64 {
	if p.Payment.ReceivedAmount == nil || p.Payment.Status == valueobject.PaymentPaid {
		return p.Amount
	}
	return *p.Payment.ReceivedAmount
}

func hasRole(members []*ProjectMember, role valueobject.Role) bool {
	for _, m := range members {
		if m.Role == role && m.Acceptance != valueobject.AcceptanceRejected {
			return true
		}
	}
	return false
}

func decrement(n int) int {
	if n > 0 {
		return n - 1
	}
	return 0
}
