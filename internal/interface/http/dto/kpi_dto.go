package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/translation-kpi/internal/domain/entity"
	"github.com/ignatzorin/translation-kpi/internal/domain/kpi"
	"github.com/ignatzorin/translation-kpi/internal/domain/valueobject"
	"github.com/ignatzorin/translation-kpi/internal/pkg/apperror"
)

type QualityRequest struct {
	RevisionCount int  `json:"revision_count" binding:"gte=0"`
	IsDelayed     bool `json:"is_delayed"`
	HasComplaint  bool `json:"has_complaint"`
}

// CalculateRequest вход одиночного расчёта. Без ratios берутся действующие коэффициенты.
type CalculateRequest struct {
	Role              string               `json:"role" binding:"required"`
	TranslatorType    string               `json:"translator_type"`
	Amount            float64              `json:"amount" binding:"gte=0"`
	WorkloadRatio     *float64             `json:"workload_ratio"`
	PartTimeFee       *float64             `json:"part_time_fee"`
	ReceivedAmount    *float64             `json:"received_amount"`
	PaymentStatus     string               `json:"payment_status"`
	CompanyReceivable *float64             `json:"company_receivable"`
	CompanyTotal      float64              `json:"company_total"`
	EvaluationLevel   *string              `json:"evaluation_level"`
	Quality           QualityRequest       `json:"quality"`
	Ratios            *entity.LockedRatios `json:"ratios"`
}

// ToInput собирает вход формулы; ratios подставляются вызывающим.
func (r CalculateRequest) ToInput(ratios entity.LockedRatios) (kpi.Input, error) {
	in := kpi.Input{
		Role:              valueobject.Role(r.Role),
		Amount:            r.Amount,
		PartTimeFee:       r.PartTimeFee,
		ReceivedAmount:    r.ReceivedAmount,
		CompanyReceivable: r.CompanyReceivable,
		CompanyTotal:      r.CompanyTotal,
		Ratios:            ratios,
		Quality: entity.Quality{
			RevisionCount: r.Quality.RevisionCount,
			IsDelayed:     r.Quality.IsDelayed,
			HasComplaint:  r.Quality.HasComplaint,
		},
	}

	if in.Role == valueobject.RoleTranslator {
		tt, err := valueobject.NewTranslatorType(r.TranslatorType)
		if err != nil {
			return kpi.Input{}, err
		}
		in.TranslatorType = tt
	}

	// Те же границы, что и у участника проекта; без значения берётся 1.
	if r.WorkloadRatio != nil {
		w := *r.WorkloadRatio
		if w <= 0 || w > 1 {
			return kpi.Input{}, apperror.New(apperror.ErrCodeValidation, "доля нагрузки должна быть в диапазоне (0, 1]")
		}
		in.WorkloadRatio = valueobject.RoundRatio(w)
	}
	if r.Quality.RevisionCount < 0 {
		return kpi.Input{}, apperror.New(apperror.ErrCodeValidation, "количество правок не может быть отрицательным")
	}

	status, err := valueobject.NewPaymentStatus(r.PaymentStatus)
	if err != nil {
		return kpi.Input{}, err
	}
	in.PaymentStatus = status

	if r.EvaluationLevel != nil {
		level, err := valueobject.NewEvaluationLevel(*r.EvaluationLevel)
		if err != nil {
			return kpi.Input{}, err
		}
		in.EvaluationLevel = &level
	}
	return in, nil
}

type GenerateMonthRequest struct {
	Month string `json:"month" binding:"required"`
}

type EvaluateMonthlyRequest struct {
	Level string `json:"level" binding:"required"`
}

type PreviewBatchRequest struct {
	ProjectIDs []string `json:"project_ids" binding:"required,min=1,max=100"`
}

type KPIRecordResponse struct {
	ID           uuid.UUID              `json:"id"`
	UserID       uuid.UUID              `json:"user_id"`
	ProjectID    uuid.UUID              `json:"project_id"`
	Role         string                 `json:"role"`
	Month        string                 `json:"month"`
	Value        float64                `json:"value"`
	Formula      string                 `json:"formula"`
	Inputs       map[string]interface{} `json:"inputs"`
	ReviewStatus string                 `json:"review_status"`
	ReviewedBy   *uuid.UUID             `json:"reviewed_by"`
	ReviewedAt   *time.Time             `json:"reviewed_at"`
	CreatedAt    time.Time              `json:"created_at"`
}

type MonthlyRoleKPIResponse struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	Month           string     `json:"month"`
	Role            string     `json:"role"`
	CompanyTotal    float64    `json:"company_total"`
	Ratio           float64    `json:"ratio"`
	EvaluationLevel *string    `json:"evaluation_level"`
	Estimated       bool       `json:"estimated"`
	EvaluatedBy     *uuid.UUID `json:"evaluated_by"`
	EvaluatedAt     *time.Time `json:"evaluated_at"`
	Value           float64    `json:"value"`
	Formula         string     `json:"formula"`
	ReviewStatus    string     `json:"review_status"`
	ReviewedBy      *uuid.UUID `json:"reviewed_by"`
	ReviewedAt      *time.Time `json:"reviewed_at"`
	CreatedAt       time.Time  `json:"created_at"`
}

func ToKPIRecordResponse(r *entity.KPIRecord) KPIRecordResponse {
	return KPIRecordResponse{
		ID:           r.ID,
		UserID:       r.UserID,
		ProjectID:    r.ProjectID,
		Role:         string(r.Role),
		Month:        r.Month.String(),
		Value:        r.Value,
		Formula:      r.Formula,
		Inputs:       r.Inputs,
		ReviewStatus: string(r.ReviewStatus),
		ReviewedBy:   r.ReviewedBy,
		ReviewedAt:   r.ReviewedAt,
		CreatedAt:    r.CreatedAt,
	}
}

func ToKPIRecordResponses(records []*entity.KPIRecord) []KPIRecordResponse {
	responses := make([]KPIRecordResponse, 0, len(records))
	for _, r := range records {
		responses = append(responses, ToKPIRecordResponse(r))
	}
	return responses
}

func ToMonthlyRoleKPIResponse(r *entity.MonthlyRoleKPI) MonthlyRoleKPIResponse {
	resp := MonthlyRoleKPIResponse{
		ID:           r.ID,
		UserID:       r.UserID,
		Month:        r.Month.String(),
		Role:         string(r.Role),
		CompanyTotal: r.CompanyTotal,
		Ratio:        r.Ratio,
		Estimated:    r.Estimated(),
		EvaluatedBy:  r.EvaluatedBy,
		EvaluatedAt:  r.EvaluatedAt,
		Value:        r.Value,
		Formula:      r.Formula,
		ReviewStatus: string(r.ReviewStatus),
		ReviewedBy:   r.ReviewedBy,
		ReviewedAt:   r.ReviewedAt,
		CreatedAt:    r.CreatedAt,
	}
	if r.EvaluationLevel != nil {
		level := string(*r.EvaluationLevel)
		resp.EvaluationLevel = &level
	}
	return resp
}

func ToMonthlyRoleKPIResponses(records []*entity.MonthlyRoleKPI) []MonthlyRoleKPIResponse {
	responses := make([]MonthlyRoleKPIResponse, 0, len(records))
	for _, r := range records {
		responses = append(responses, ToMonthlyRoleKPIResponse(r))
	}
	return responses
}
