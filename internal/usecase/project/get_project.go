package project

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/translation-kpi/internal/domain/entity"
	"github.com/ignatzorin/translation-kpi/internal/domain/repository"
	"github.com/ignatzorin/translation-kpi/internal/pkg/apperror"
)

type GetProjectUseCase struct {
	projectRepo repository.ProjectRepository
}

func NewGetProjectUseCase(projectRepo repository.ProjectRepository) *GetProjectUseCase {
	return &GetProjectUseCase{projectRepo: projectRepo}
}

// Execute проект с участниками. Доступен участникам, создателю и тем, кто видит все KPI.
func (uc *GetProjectUseCase) Execute(ctx context.Context, actor entity.Actor, projectID uuid.UUID) (*Details, error) {
	project, err := uc.projectRepo.FindByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	members, err := uc.projectRepo.FindMembers(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !canView(actor, project, members) {
		return nil, apperror.ErrForbidden
	}
	return &Details{Project: project, Members: members}, nil
}

func canView(actor entity.Actor, p *entity.Project, members []*entity.ProjectMember) bool {
	if actor.IsAdmin() || actor.Can(entity.PermKPIViewAll) || p.IsCreatedBy(actor.UserID) {
		return true
	}
	for _, m := range members {
		if m.UserID == actor.UserID {
			return true
		}
	}
	return false
}

type ListProjectsInput struct {
	Status string
	Limit  int
	Offset int
}

type ListProjectsUseCase struct {
	projectRepo repository.ProjectRepository
}

func NewListProjectsUseCase(projectRepo repository.ProjectRepository) *ListProjectsUseCase {
	return &ListProjectsUseCase{projectRepo: projectRepo}
}

// Execute без прав администратора возвращает только свои проекты и проекты, где пользователь участник.
func (uc *ListProjectsUseCase) Execute(ctx context.Context, actor entity.Actor, input ListProjectsInput) ([]*entity.Project, int, error) {
	if input.Limit <= 0 || input.Limit > 100 {
		input.Limit = 20
	}
	if input.Offset < 0 {
		input.Offset = 0
	}

	filter := repository.ProjectFilter{
		Status: input.Status,
		Limit:  input.Limit,
		Offset: input.Offset,
	}
	if !actor.IsAdmin() && !actor.Can(entity.PermKPIViewAll) {
		userID := actor.UserID
		filter.CreatedBy = &userID
		filter.MemberID = &userID
	}
	return uc.projectRepo.List(ctx, filter)
}

type ProjectHistoryUseCase struct {
	projectRepo repository.ProjectRepository
}

func NewProjectHistoryUseCase(projectRepo repository.ProjectRepository) *ProjectHistoryUseCase {
	return &ProjectHistoryUseCase{projectRepo: projectRepo}
}

func (uc *ProjectHistoryUseCase) Execute(ctx context.Context, actor entity.Actor, projectID uuid.UUID) ([]*entity.StatusChange, error) {
	project, err := uc.projectRepo.FindByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	members, err := uc.projectRepo.FindMembers(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !canView(actor, project, members) {
		return nil, apperror.ErrForbidden
	}
	return uc.projectRepo.ListStatusHistory(ctx, projectID)
}
