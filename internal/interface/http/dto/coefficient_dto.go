package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/translation-kpi/internal/domain/entity"
)

type UpdateCoefficientsRequest struct {
	Ratios entity.LockedRatios `json:"ratios"`
	Reason string              `json:"reason" binding:"required"`
}

type CoefficientRegistryResponse struct {
	Ratios    entity.LockedRatios `json:"ratios"`
	UpdatedBy *uuid.UUID          `json:"updated_by"`
	UpdatedAt time.Time           `json:"updated_at"`
}

type CoefficientChangeResponse struct {
	ID        uuid.UUID           `json:"id"`
	OldRatios entity.LockedRatios `json:"old_ratios"`
	NewRatios entity.LockedRatios `json:"new_ratios"`
	Reason    string              `json:"reason"`
	ChangedBy uuid.UUID           `json:"changed_by"`
	CreatedAt time.Time           `json:"created_at"`
}

func ToCoefficientRegistryResponse(r *entity.CoefficientRegistry) CoefficientRegistryResponse {
	return CoefficientRegistryResponse{
		Ratios:    r.Ratios,
		UpdatedBy: r.UpdatedBy,
		UpdatedAt: r.UpdatedAt,
	}
}

func ToCoefficientChangeResponses(changes []*entity.CoefficientChange) []CoefficientChangeResponse {
	responses := make([]CoefficientChangeResponse, 0, len(changes))
	for _, ch := range changes {
		responses = append(responses, CoefficientChangeResponse{
			ID:        ch.ID,
			OldRatios: ch.OldRatios,
			NewRatios: ch.NewRatios,
			Reason:    ch.Reason,
			ChangedBy: ch.ChangedBy,
			CreatedAt: ch.CreatedAt,
		})
	}
	return responses
}
