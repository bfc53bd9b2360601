package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/translation-kpi/internal/domain/kpi"
	"github.com/ignatzorin/translation-kpi/internal/domain/repository"
	"github.com/ignatzorin/translation-kpi/internal/domain/valueobject"
	"github.com/ignatzorin/translation-kpi/internal/interface/http/dto"
	"github.com/ignatzorin/translation-kpi/internal/interface/http/response"
	"github.com/ignatzorin/translation-kpi/internal/service"
)

type KPIHandler struct {
	coefficients *service.CoefficientService
	generation   *service.KPIGenerationService
	review       *service.KPIReviewService
	preview      *service.KPIPreviewService
}

func NewKPIHandler(
	coefficients *service.CoefficientService,
	generation *service.KPIGenerationService,
	review *service.KPIReviewService,
	preview *service.KPIPreviewService,
) *KPIHandler {
	return &KPIHandler{
		coefficients: coefficients,
		generation:   generation,
		review:       review,
		preview:      preview,
	}
}

// Calculate обрабатывает POST /kpi/calculate: одиночный расчёт без сохранения.
func (h *KPIHandler) Calculate(c *gin.Context) {
	if _, ok := requireActor(c); !ok {
		return
	}

	var req dto.CalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}

	ratios := req.Ratios
	if ratios == nil {
		active, err := h.coefficients.ActiveRatios(c.Request.Context())
		if err != nil {
			response.Error(c, err)
			return
		}
		ratios = &active
	} else if err := ratios.Validate(); err != nil {
		response.Error(c, err)
		return
	}

	input, err := req.ToInput(*ratios)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := kpi.Calculate(input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GenerateMonth обрабатывает POST /kpi/generate.
func (h *KPIHandler) GenerateMonth(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req dto.GenerateMonthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}

	report, err := h.generation.GenerateMonth(c.Request.Context(), actor, req.Month)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, report)
}

func (h *KPIHandler) recordFilter(c *gin.Context, defaultLimit, maxLimit int) (repository.RecordFilter, bool) {
	limit, offset := pagination(c, defaultLimit, maxLimit)
	filter := repository.RecordFilter{
		Role:   valueobject.Role(c.Query("role")),
		Limit:  limit,
		Offset: offset,
	}

	if raw := c.Query("month"); raw != "" {
		month, err := valueobject.ParseMonth(raw)
		if err != nil {
			response.Error(c, err)
			return filter, false
		}
		filter.Month = month
	}
	if raw := c.Query("user_id"); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "некорректный ID пользователя")
			return filter, false
		}
		filter.UserID = &userID
	}
	if raw := c.Query("project_id"); raw != "" {
		projectID, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "некорректный ID проекта")
			return filter, false
		}
		filter.ProjectID = &projectID
	}
	return filter, true
}

func (h *KPIHandler) ListRecords(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	filter, ok := h.recordFilter(c, 50, 200)
	if !ok {
		return
	}

	records, total, err := h.review.ListRecords(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, dto.ToKPIRecordResponses(records), total, filter.Limit, filter.Offset)
}

func (h *KPIHandler) ApproveRecord(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id", "некорректный ID записи")
	if !ok {
		return
	}

	record, err := h.review.ApproveRecord(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToKPIRecordResponse(record))
}

func (h *KPIHandler) RejectRecord(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id", "некорректный ID записи")
	if !ok {
		return
	}

	if err := h.review.RejectRecord(c.Request.Context(), actor, id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "запись KPI отклонена"})
}

func (h *KPIHandler) ListMonthly(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	filter, ok := h.recordFilter(c, 50, 200)
	if !ok {
		return
	}

	records, err := h.review.ListMonthly(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToMonthlyRoleKPIResponses(records))
}

func (h *KPIHandler) EvaluateMonthly(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id", "некорректный ID записи")
	if !ok {
		return
	}

	var req dto.EvaluateMonthlyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}

	record, err := h.review.EvaluateMonthly(c.Request.Context(), actor, id, req.Level)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToMonthlyRoleKPIResponse(record))
}

func (h *KPIHandler) ApproveMonthly(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id", "некорректный ID записи")
	if !ok {
		return
	}

	record, err := h.review.ApproveMonthly(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToMonthlyRoleKPIResponse(record))
}

func (h *KPIHandler) RejectMonthly(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id", "некорректный ID записи")
	if !ok {
		return
	}

	if err := h.review.RejectMonthly(c.Request.Context(), actor, id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "месячная запись KPI отклонена"})
}

// PreviewProject обрабатывает GET /projects/:id/kpi-preview.
func (h *KPIHandler) PreviewProject(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	projectID, ok := parseUUIDParam(c, "id", "некорректный ID проекта")
	if !ok {
		return
	}

	previews, err := h.preview.PreviewProject(c.Request.Context(), actor, projectID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, previews)
}

func (h *KPIHandler) PreviewBatch(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req dto.PreviewBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}
	ids, err := dto.ParseUUIDs(req.ProjectIDs)
	if err != nil {
		response.BadRequest(c, "некорректный формат ID проектов")
		return
	}

	previews, err := h.preview.PreviewBatch(c.Request.Context(), actor, ids)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, previews)
}

// Dashboard обрабатывает GET /kpi/dashboard?month=YYYY-MM.
func (h *KPIHandler) Dashboard(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	dashboard, err := h.preview.PreviewDashboard(c.Request.Context(), actor, c.Query("month"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dashboard)
}
