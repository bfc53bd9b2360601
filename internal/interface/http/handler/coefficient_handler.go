package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/translation-kpi/internal/interface/http/dto"
	"github.com/ignatzorin/translation-kpi/internal/interface/http/response"
	"github.com/ignatzorin/translation-kpi/internal/service"
)

// CoefficientHandler реестр коэффициентов компании.
type CoefficientHandler struct {
	coefficients *service.CoefficientService
}

func NewCoefficientHandler(coefficients *service.CoefficientService) *CoefficientHandler {
	return &CoefficientHandler{coefficients: coefficients}
}

func (h *CoefficientHandler) GetActive(c *gin.Context) {
	if _, ok := requireActor(c); !ok {
		return
	}

	registry, err := h.coefficients.GetActive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToCoefficientRegistryResponse(registry))
}

func (h *CoefficientHandler) Update(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req dto.UpdateCoefficientsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}

	registry, err := h.coefficients.Update(c.Request.Context(), actor, req.Ratios, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToCoefficientRegistryResponse(registry))
}

func (h *CoefficientHandler) ListHistory(c *gin.Context) {
	if _, ok := requireActor(c); !ok {
		return
	}

	limit, offset := pagination(c, 20, 100)
	changes, total, err := h.coefficients.ListHistory(c.Request.Context(), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, dto.ToCoefficientChangeResponses(changes), total, limit, offset)
}
