package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/translation-kpi/internal/domain/entity"
	"github.com/ignatzorin/translation-kpi/internal/interface/http/dto"
	"github.com/ignatzorin/translation-kpi/internal/interface/http/response"
	"github.com/ignatzorin/translation-kpi/internal/usecase/project"
)

type ProjectHandler struct {
	createProjectUC    *project.CreateProjectUseCase
	getProjectUC       *project.GetProjectUseCase
	listProjectsUC     *project.ListProjectsUseCase
	updateProjectUC    *project.UpdateProjectUseCase
	historyUC          *project.ProjectHistoryUseCase
	addMemberUC        *project.AddMemberUseCase
	removeMemberUC     *project.RemoveMemberUseCase
	acceptAssignmentUC *project.AcceptAssignmentUseCase
	rejectAssignmentUC *project.RejectAssignmentUseCase
	startProjectUC     *project.StartProjectUseCase
	advanceStatusUC    *project.AdvanceStatusUseCase
	completeProjectUC  *project.CompleteProjectUseCase
	cancelProjectUC    *project.CancelProjectUseCase
}

// ProjectUseCases набор сценариев, которые обслуживает ProjectHandler.
type ProjectUseCases struct {
	Create           *project.CreateProjectUseCase
	Get              *project.GetProjectUseCase
	List             *project.ListProjectsUseCase
	Update           *project.UpdateProjectUseCase
	History          *project.ProjectHistoryUseCase
	AddMember        *project.AddMemberUseCase
	RemoveMember     *project.RemoveMemberUseCase
	AcceptAssignment *project.AcceptAssignmentUseCase
	RejectAssignment *project.RejectAssignmentUseCase
	Start            *project.StartProjectUseCase
	Advance          *project.AdvanceStatusUseCase
	Complete         *project.CompleteProjectUseCase
	Cancel           *project.CancelProjectUseCase
}

func NewProjectHandler(uc ProjectUseCases) *ProjectHandler {
	return &ProjectHandler{
		createProjectUC:    uc.Create,
		getProjectUC:       uc.Get,
		listProjectsUC:     uc.List,
		updateProjectUC:    uc.Update,
		historyUC:          uc.History,
		addMemberUC:        uc.AddMember,
		removeMemberUC:     uc.RemoveMember,
		acceptAssignmentUC: uc.AcceptAssignment,
		rejectAssignmentUC: uc.RejectAssignment,
		startProjectUC:     uc.Start,
		advanceStatusUC:    uc.Advance,
		completeProjectUC:  uc.Complete,
		cancelProjectUC:    uc.Cancel,
	}
}

func (h *ProjectHandler) CreateProject(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req dto.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}

	deadline, err := dto.ParseDeadline(req.DeadlineAt)
	if err != nil {
		response.BadRequest(c, "некорректный формат дедлайна")
		return
	}

	members := make([]entity.NewMemberInput, 0, len(req.Members))
	for _, m := range req.Members {
		input, err := m.ToNewMemberInput()
		if err != nil {
			response.BadRequest(c, "некорректный ID участника")
			return
		}
		members = append(members, input)
	}

	details, err := h.createProjectUC.Execute(c.Request.Context(), actor, project.CreateProjectInput{
		Name:       req.Name,
		ClientName: req.ClientName,
		Amount:     req.Amount,
		DeadlineAt: deadline,
		Members:    members,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToDetailsResponse(details))
}

func (h *ProjectHandler) GetProject(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	projectID, ok := parseUUIDParam(c, "id", "некорректный ID проекта")
	if !ok {
		return
	}

	details, err := h.getProjectUC.Execute(c.Request.Context(), actor, projectID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToDetailsResponse(details))
}

func (h *ProjectHandler) ListProjects(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	limit, offset := pagination(c, 20, 100)

	projects, total, err := h.listProjectsUC.Execute(c.Request.Context(), actor, project.ListProjectsInput{
		Status: c.Query("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, dto.ToProjectResponses(projects), total, limit, offset)
}

func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	projectID, ok := parseUUIDParam(c, "id", "некорректный ID проекта")
	if !ok {
		return
	}

	var req dto.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}

	input, err := req.ToUpdateInput()
	if err != nil {
		response.Error(c, err)
		return
	}

	updated, err := h.updateProjectUC.Execute(c.Request.Context(), actor, projectID, input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToProjectResponse(updated))
}

func (h *ProjectHandler) GetHistory(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	projectID, ok := parseUUIDParam(c, "id", "некорректный ID проекта")
	if !ok {
		return
	}

	changes, err := h.historyUC.Execute(c.Request.Context(), actor, projectID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToStatusChangeResponses(changes))
}

func (h *ProjectHandler) AddMember(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	projectID, ok := parseUUIDParam(c, "id", "некорректный ID проекта")
	if !ok {
		return
	}

	var req dto.MemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}
	input, err := req.ToNewMemberInput()
	if err != nil {
		response.BadRequest(c, "некорректный ID участника")
		return
	}

	member, err := h.addMemberUC.Execute(c.Request.Context(), actor, projectID, input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToMemberResponse(member))
}

func (h *ProjectHandler) RemoveMember(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	projectID, ok := parseUUIDParam(c, "id", "некорректный ID проекта")
	if !ok {
		return
	}
	memberID, ok := parseUUIDParam(c, "memberId", "некорректный ID участника")
	if !ok {
		return
	}

	updated, err := h.removeMemberUC.Execute(c.Request.Context(), actor, projectID, memberID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToProjectResponse(updated))
}

// AcceptAssignment обрабатывает POST /assignments/:memberId/accept.
func (h *ProjectHandler) AcceptAssignment(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	memberID, ok := parseUUIDParam(c, "memberId", "некорректный ID назначения")
	if !ok {
		return
	}

	details, err := h.acceptAssignmentUC.Execute(c.Request.Context(), actor, memberID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToDetailsResponse(details))
}

// RejectAssignment обрабатывает POST /assignments/:memberId/reject. Тело необязательно.
func (h *ProjectHandler) RejectAssignment(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	memberID, ok := parseUUIDParam(c, "memberId", "некорректный ID назначения")
	if !ok {
		return
	}

	var req dto.RejectAssignmentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "некорректные данные запроса")
			return
		}
	}

	details, err := h.rejectAssignmentUC.Execute(c.Request.Context(), actor, memberID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToDetailsResponse(details))
}

func (h *ProjectHandler) StartProject(c *gin.Context) {
	h.runTransition(c, h.startProjectUC.Execute)
}

func (h *ProjectHandler) CompleteProject(c *gin.Context) {
	h.runTransition(c, h.completeProjectUC.Execute)
}

func (h *ProjectHandler) CancelProject(c *gin.Context) {
	h.runTransition(c, h.cancelProjectUC.Execute)
}

func (h *ProjectHandler) AdvanceStatus(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	projectID, ok := parseUUIDParam(c, "id", "некорректный ID проекта")
	if !ok {
		return
	}

	var req dto.AdvanceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}

	details, err := h.advanceStatusUC.Execute(c.Request.Context(), actor, projectID, req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToDetailsResponse(details))
}

type transitionFunc func(ctx context.Context, actor entity.Actor, projectID uuid.UUID) (*project.Details, error)

func (h *ProjectHandler) runTransition(c *gin.Context, execute transitionFunc) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	projectID, ok := parseUUIDParam(c, "id", "некорректный ID проекта")
	if !ok {
		return
	}

	details, err := execute(c.Request.Context(), actor, projectID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToDetailsResponse(details))
}
