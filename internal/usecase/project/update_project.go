package project

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/translation-kpi/internal/domain/entity"
	"github.com/ignatzorin/translation-kpi/internal/domain/repository"
	"github.com/ignatzorin/translation-kpi/internal/pkg/apperror"
)

type UpdateProjectUseCase struct {
	projectRepo repository.ProjectRepository
	cache       PreviewInvalidator
}

func NewUpdateProjectUseCase(projectRepo repository.ProjectRepository, cache PreviewInvalidator) *UpdateProjectUseCase {
	return &UpdateProjectUseCase{projectRepo: projectRepo, cache: cache}
}

// Execute меняет сумму, дедлайн, флаги качества и оплату. Завершённые и
// отменённые проекты не редактируются.
func (uc *UpdateProjectUseCase) Execute(ctx context.Context, actor entity.Actor, projectID uuid.UUID, input entity.UpdateInput) (*entity.Project, error) {
	var updated *entity.Project

	err := uc.projectRepo.WithLock(ctx, projectID, func(ctx context.Context, store repository.ProjectStore) error {
		project, err := store.Project(ctx)
		if err != nil {
			return err
		}
		members, err := store.Members(ctx)
		if err != nil {
			return err
		}
		if !canManage(actor, project, members) {
			return apperror.ErrForbidden
		}
		if err := project.Update(input, nowFn()); err != nil {
			return err
		}
		if err := store.Update(ctx, project); err != nil {
			return err
		}
		updated = project
		return nil
	})
	if err != nil {
		return nil, err
	}

	invalidate(uc.cache)
	return updated, nil
}
