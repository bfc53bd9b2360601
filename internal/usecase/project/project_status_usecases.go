package project

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/translation-kpi/internal/domain/entity"
	"github.com/ignatzorin/translation-kpi/internal/domain/repository"
	"github.com/ignatzorin/translation-kpi/internal/domain/valueobject"
	"github.com/ignatzorin/translation-kpi/internal/goroutine"
	"github.com/ignatzorin/translation-kpi/internal/logger"
	"github.com/ignatzorin/translation-kpi/internal/pkg/apperror"
)

// transition общий шаг перехода: загрузить под блокировкой, проверить доступ,
// применить переход, сохранить и записать журнал.
func transition(
	ctx context.Context,
	repo repository.ProjectRepository,
	actor entity.Actor,
	projectID uuid.UUID,
	apply func(p *entity.Project, members []*entity.ProjectMember) error,
) (*Details, error) {
	var details Details

	err := repo.WithLock(ctx, projectID, func(ctx context.Context, store repository.ProjectStore) error {
		project, err := store.Project(ctx)
		if err != nil {
			return err
		}
		members, err := store.Members(ctx)
		if err != nil {
			return err
		}

		from := project.Status
		if err := apply(project, members); err != nil {
			return err
		}
		if err := store.Update(ctx, project); err != nil {
			return err
		}
		if err := recordTransition(ctx, store, project, from, actor.UserID, project.UpdatedAt); err != nil {
			return err
		}
		details = Details{Project: project, Members: members}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &details, nil
}

type StartProjectUseCase struct {
	projectRepo repository.ProjectRepository
	cache       PreviewInvalidator
}

func NewStartProjectUseCase(projectRepo repository.ProjectRepository, cache PreviewInvalidator) *StartProjectUseCase {
	return &StartProjectUseCase{projectRepo: projectRepo, cache: cache}
}

// Execute запуск проекта создателем: pending -> scheduled.
func (uc *StartProjectUseCase) Execute(ctx context.Context, actor entity.Actor, projectID uuid.UUID) (*Details, error) {
	details, err := transition(ctx, uc.projectRepo, actor, projectID, func(p *entity.Project, members []*entity.ProjectMember) error {
		if !p.IsCreatedBy(actor.UserID) {
			return apperror.ErrForbidden
		}
		if err := p.Start(members, nowFn()); err != nil {
			return err
		}
		p.ReevaluateAcceptance(members, p.UpdatedAt)
		return nil
	})
	if err != nil {
		return nil, err
	}
	invalidate(uc.cache)
	return details, nil
}

type AdvanceStatusUseCase struct {
	projectRepo repository.ProjectRepository
	cache       PreviewInvalidator
}

func NewAdvanceStatusUseCase(projectRepo repository.ProjectRepository, cache PreviewInvalidator) *AdvanceStatusUseCase {
	return &AdvanceStatusUseCase{projectRepo: projectRepo, cache: cache}
}

// Execute ручной переход по этапам производства. Выставить этап может
// администратор, менеджер проекта или участник с соответствующей ролью.
func (uc *AdvanceStatusUseCase) Execute(ctx context.Context, actor entity.Actor, projectID uuid.UUID, rawStatus string) (*Details, error) {
	target, err := valueobject.NewProjectStatus(rawStatus)
	if err != nil {
		return nil, err
	}

	details, err := transition(ctx, uc.projectRepo, actor, projectID, func(p *entity.Project, members []*entity.ProjectMember) error {
		if !canAdvance(actor, target, members) {
			return apperror.ErrForbidden
		}
		return p.AdvanceTo(target, nowFn())
	})
	if err != nil {
		return nil, err
	}
	invalidate(uc.cache)
	return details, nil
}

func canAdvance(actor entity.Actor, target valueobject.ProjectStatus, members []*entity.ProjectMember) bool {
	if actor.IsAdmin() || isActiveMember(members, actor.UserID, valueobject.RoleProjectManager) {
		return true
	}
	for _, role := range target.StageRoles() {
		if isActiveMember(members, actor.UserID, role) {
			return true
		}
	}
	return false
}

type CompleteProjectUseCase struct {
	projectRepo repository.ProjectRepository
	generator   KPIGenerator
	notifier    Notifier
	cache       PreviewInvalidator
}

func NewCompleteProjectUseCase(projectRepo repository.ProjectRepository, generator KPIGenerator, notifier Notifier, cache PreviewInvalidator) *CompleteProjectUseCase {
	return &CompleteProjectUseCase{projectRepo: projectRepo, generator: generator, notifier: notifier, cache: cache}
}

// Execute завершает проект и сразу генерирует его KPI. Сбой генерации только
// логируется: записи досоздаст ежемесячная генерация.
func (uc *CompleteProjectUseCase) Execute(ctx context.Context, actor entity.Actor, projectID uuid.UUID) (*Details, error) {
	details, err := transition(ctx, uc.projectRepo, actor, projectID, func(p *entity.Project, members []*entity.ProjectMember) error {
		if !canManage(actor, p, members) {
			return apperror.ErrForbidden
		}
		active := 0
		for _, m := range members {
			if m.Acceptance != valueobject.AcceptanceRejected {
				active++
			}
		}
		return p.Complete(active, nowFn())
	})
	if err != nil {
		return nil, err
	}

	project := details.Project
	log := logger.WithProject(project.ID)

	if uc.generator != nil {
		report, err := uc.generator.GenerateForProject(goroutine.Detached(ctx), project.ID)
		if err != nil {
			log.WithError(err).Error("не удалось сгенерировать KPI при завершении проекта")
		} else if len(report.Errors) > 0 {
			log.WithField("errors", len(report.Errors)).Warn("KPI проекта сгенерированы с ошибками")
		}
	}

	invalidate(uc.cache)

	recipients := []uuid.UUID{project.CreatedBy}
	seen := map[uuid.UUID]struct{}{project.CreatedBy: {}}
	for _, m := range details.Members {
		if _, ok := seen[m.UserID]; ok || m.Acceptance == valueobject.AcceptanceRejected {
			continue
		}
		seen[m.UserID] = struct{}{}
		recipients = append(recipients, m.UserID)
	}
	notifyAsync(uc.notifier, recipients, EventProjectCompleted, map[string]interface{}{
		"project_id":   project.ID,
		"project_name": project.Name,
		"completed_at": project.CompletedAt,
		"is_delayed":   project.Quality.IsDelayed,
	})

	log.WithFields(logrus.Fields{
		"user_id":    actor.UserID,
		"is_delayed": project.Quality.IsDelayed,
	}).Info("проект завершён")
	return details, nil
}

type CancelProjectUseCase struct {
	projectRepo repository.ProjectRepository
	cache       PreviewInvalidator
}

func NewCancelProjectUseCase(projectRepo repository.ProjectRepository, cache PreviewInvalidator) *CancelProjectUseCase {
	return &CancelProjectUseCase{projectRepo: projectRepo, cache: cache}
}

func (uc *CancelProjectUseCase) Execute(ctx context.Context, actor entity.Actor, projectID uuid.UUID) (*Details, error) {
	details, err := transition(ctx, uc.projectRepo, actor, projectID, func(p *entity.Project, _ []*entity.ProjectMember) error {
		if !actor.IsAdmin() && !p.IsCreatedBy(actor.UserID) {
			return apperror.ErrForbidden
		}
		return p.Cancel(nowFn())
	})
	if err != nil {
		return nil, err
	}
	invalidate(uc.cache)
	return details, nil
}
