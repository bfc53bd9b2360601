package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/translation-kpi/internal/domain/entity"
	"github.com/ignatzorin/translation-kpi/internal/domain/valueobject"
	"github.com/ignatzorin/translation-kpi/internal/pkg/apperror"
	"github.com/ignatzorin/translation-kpi/internal/usecase/project"
)

type MemberRequest struct {
	UserID         string   `json:"user_id" binding:"required"`
	Role           string   `json:"role" binding:"required"`
	TranslatorType string   `json:"translator_type"`
	WorkloadRatio  *float64 `json:"workload_ratio"`
	PartTimeFee    *float64 `json:"part_time_fee"`
}

type CreateProjectRequest struct {
	Name       string          `json:"name" binding:"required"`
	ClientName string          `json:"client_name"`
	Amount     float64         `json:"amount" binding:"gte=0"`
	DeadlineAt *string         `json:"deadline_at"`
	Members    []MemberRequest `json:"members" binding:"dive"`
}

type UpdateProjectRequest struct {
	Name              *string  `json:"name"`
	Amount            *float64 `json:"amount"`
	DeadlineAt        *string  `json:"deadline_at"`
	RevisionCount     *int     `json:"revision_count"`
	HasComplaint      *bool    `json:"has_complaint"`
	ReceivedAmount    *float64 `json:"received_amount"`
	PaymentStatus     *string  `json:"payment_status"`
	CompanyReceivable *float64 `json:"company_receivable"`
}

type AdvanceStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type RejectAssignmentRequest struct {
	Reason string `json:"reason"`
}

type QualityResponse struct {
	RevisionCount int  `json:"revision_count"`
	IsDelayed     bool `json:"is_delayed"`
	HasComplaint  bool `json:"has_complaint"`
}

type AcceptanceResponse struct {
	Pending  int `json:"pending"`
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

type ProjectResponse struct {
	ID                uuid.UUID           `json:"id"`
	Name              string              `json:"name"`
	ClientName        string              `json:"client_name"`
	Amount            float64             `json:"amount"`
	Status            string              `json:"status"`
	DeadlineAt        *time.Time          `json:"deadline_at"`
	StartedAt         *time.Time          `json:"started_at"`
	CompletedAt       *time.Time          `json:"completed_at"`
	Quality           QualityResponse     `json:"quality"`
	ReceivedAmount    *float64            `json:"received_amount"`
	PaymentStatus     string              `json:"payment_status"`
	CompanyReceivable *float64            `json:"company_receivable"`
	Acceptance        AcceptanceResponse  `json:"acceptance"`
	LockedRatios      entity.LockedRatios `json:"locked_ratios"`
	CreatedBy         uuid.UUID           `json:"created_by"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
	Members           []MemberResponse    `json:"members,omitempty"`
}

type MemberResponse struct {
	ID              uuid.UUID  `json:"id"`
	ProjectID       uuid.UUID  `json:"project_id"`
	UserID          uuid.UUID  `json:"user_id"`
	Role            string     `json:"role"`
	TranslatorType  string     `json:"translator_type,omitempty"`
	WorkloadRatio   float64    `json:"workload_ratio"`
	PartTimeFee     *float64   `json:"part_time_fee,omitempty"`
	Acceptance      string     `json:"acceptance"`
	AcceptanceAt    *time.Time `json:"acceptance_at"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type StatusChangeResponse struct {
	From      string     `json:"from"`
	To        string     `json:"to"`
	ActorID   *uuid.UUID `json:"actor_id"`
	CreatedAt time.Time  `json:"created_at"`
}

func ToProjectResponse(p *entity.Project) ProjectResponse {
	return ProjectResponse{
		ID:          p.ID,
		Name:        p.Name,
		ClientName:  p.ClientName,
		Amount:      p.Amount,
		Status:      string(p.Status),
		DeadlineAt:  p.DeadlineAt,
		StartedAt:   p.StartedAt,
		CompletedAt: p.CompletedAt,
		Quality: QualityResponse{
			RevisionCount: p.Quality.RevisionCount,
			IsDelayed:     p.Quality.IsDelayed,
			HasComplaint:  p.Quality.HasComplaint,
		},
		ReceivedAmount:    p.Payment.ReceivedAmount,
		PaymentStatus:     string(p.Payment.Status),
		CompanyReceivable: p.CompanyReceivable,
		Acceptance: AcceptanceResponse{
			Pending:  p.Acceptance.Pending,
			Accepted: p.Acceptance.Accepted,
			Rejected: p.Acceptance.Rejected,
		},
		LockedRatios: p.LockedRatios,
		CreatedBy:    p.CreatedBy,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func ToProjectResponses(projects []*entity.Project) []ProjectResponse {
	responses := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		responses = append(responses, ToProjectResponse(p))
	}
	return responses
}

// ToDetailsResponse проект вместе с участниками.
func ToDetailsResponse(d *project.Details) ProjectResponse {
	resp := ToProjectResponse(d.Project)
	resp.Members = ToMemberResponses(d.Members)
	return resp
}

func ToMemberResponse(m *entity.ProjectMember) MemberResponse {
	return MemberResponse{
		ID:              m.ID,
		ProjectID:       m.ProjectID,
		UserID:          m.UserID,
		Role:            string(m.Role),
		TranslatorType:  string(m.TranslatorType),
		WorkloadRatio:   m.WorkloadRatio,
		PartTimeFee:     m.PartTimeFee,
		Acceptance:      string(m.Acceptance),
		AcceptanceAt:    m.AcceptanceAt,
		RejectionReason: m.RejectionReason,
		CreatedAt:       m.CreatedAt,
	}
}

func ToMemberResponses(members []*entity.ProjectMember) []MemberResponse {
	responses := make([]MemberResponse, 0, len(members))
	for _, m := range members {
		responses = append(responses, ToMemberResponse(m))
	}
	return responses
}

func ToStatusChangeResponses(changes []*entity.StatusChange) []StatusChangeResponse {
	responses := make([]StatusChangeResponse, 0, len(changes))
	for _, ch := range changes {
		responses = append(responses, StatusChangeResponse{
			From:      string(ch.From),
			To:        string(ch.To),
			ActorID:   ch.ActorID,
			CreatedAt: ch.CreatedAt,
		})
	}
	return responses
}

func ParseDeadline(deadlineStr *string) (*time.Time, error) {
	if deadlineStr == nil || *deadlineStr == "" {
		return nil, nil
	}

	deadline, err := time.Parse(time.RFC3339, *deadlineStr)
	if err != nil {
		return nil, err
	}

	return &deadline, nil
}

func ParseUUIDs(uuidStrs []string) ([]uuid.UUID, error) {
	uuids := make([]uuid.UUID, 0, len(uuidStrs))
	for _, str := range uuidStrs {
		id, err := uuid.Parse(str)
		if err != nil {
			return nil, err
		}
		uuids = append(uuids, id)
	}
	return uuids, nil
}

// ToNewMemberInput переводит запрос в вход доменной модели.
func (r MemberRequest) ToNewMemberInput() (entity.NewMemberInput, error) {
	userID, err := uuid.Parse(r.UserID)
	if err != nil {
		return entity.NewMemberInput{}, err
	}
	return entity.NewMemberInput{
		UserID:         userID,
		Role:           valueobject.Role(r.Role),
		TranslatorType: r.TranslatorType,
		WorkloadRatio:  r.WorkloadRatio,
		PartTimeFee:    r.PartTimeFee,
	}, nil
}

// ToUpdateInput проверяет статус оплаты и дедлайн, остальное передаётся как есть.
func (r UpdateProjectRequest) ToUpdateInput() (entity.UpdateInput, error) {
	in := entity.UpdateInput{
		Name:              r.Name,
		Amount:            r.Amount,
		RevisionCount:     r.RevisionCount,
		HasComplaint:      r.HasComplaint,
		ReceivedAmount:    r.ReceivedAmount,
		CompanyReceivable: r.CompanyReceivable,
	}

	deadline, err := ParseDeadline(r.DeadlineAt)
	if err != nil {
		return entity.UpdateInput{}, apperror.New(apperror.ErrCodeValidation, "некорректный формат дедлайна")
	}
	in.DeadlineAt = deadline

	if r.PaymentStatus != nil {
		status, err := valueobject.NewPaymentStatus(*r.PaymentStatus)
		if err != nil {
			return entity.UpdateInput{}, err
		}
		in.PaymentStatus = &status
	}
	return in, nil
}
