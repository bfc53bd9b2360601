package project

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/translation-kpi/internal/domain/entity"
	"github.com/ignatzorin/translation-kpi/internal/domain/repository"
	"github.com/ignatzorin/translation-kpi/internal/domain/valueobject"
	"github.com/ignatzorin/translation-kpi/internal/logger"
	"github.com/ignatzorin/translation-kpi/internal/pkg/apperror"
)

type CreateProjectInput struct {
	Name       string
	ClientName string
	Amount     float64
	DeadlineAt *time.Time
	Members    []entity.NewMemberInput
}

type CreateProjectUseCase struct {
	projectRepo repository.ProjectRepository
	ratios      RatiosSource
	notifier    Notifier
	cache       PreviewInvalidator
}

func NewCreateProjectUseCase(projectRepo repository.ProjectRepository, ratios RatiosSource, notifier Notifier, cache PreviewInvalidator) *CreateProjectUseCase {
	return &CreateProjectUseCase{projectRepo: projectRepo, ratios: ratios, notifier: notifier, cache: cache}
}

// Execute создаёт проект со снимком действующих коэффициентов. Если создатель
// работает в роли продаж, он сразу становится участником-продавцом.
func (uc *CreateProjectUseCase) Execute(ctx context.Context, actor entity.Actor, input CreateProjectInput) (*Details, error) {
	if !actor.Can(entity.PermProjectCreate) {
		return nil, apperror.ErrForbidden
	}

	ratios, err := uc.ratios.ActiveRatios(ctx)
	if err != nil {
		return nil, err
	}

	now := nowFn()
	project, err := entity.NewProject(actor.UserID, input.Name, input.ClientName, input.Amount, input.DeadlineAt, ratios, now)
	if err != nil {
		return nil, err
	}

	inputs := input.Members
	if actor.Role == valueobject.RoleSales {
		inputs = append([]entity.NewMemberInput{{UserID: actor.UserID, Role: valueobject.RoleSales}}, inputs...)
	}

	type memberKey struct {
		userID uuid.UUID
		role   valueobject.Role
	}
	seen := make(map[memberKey]struct{}, len(inputs))
	members := make([]*entity.ProjectMember, 0, len(inputs))
	for _, in := range inputs {
		key := memberKey{userID: in.UserID, role: in.Role}
		if _, ok := seen[key]; ok {
			if in.UserID == actor.UserID && in.Role == valueobject.RoleSales {
				continue
			}
			return nil, apperror.ErrDuplicateMember
		}
		seen[key] = struct{}{}

		member, err := entity.NewProjectMember(project, in, now)
		if err != nil {
			return nil, err
		}
		if err := project.AddMember(member, now); err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	project.ReevaluateAcceptance(members, now)

	if err := uc.projectRepo.Create(ctx, project, members); err != nil {
		return nil, err
	}

	logger.WithProject(project.ID).WithField("user_id", actor.UserID).Info("проект создан")
	invalidate(uc.cache)

	for _, m := range members {
		if m.UserID != actor.UserID {
			notifyAsync(uc.notifier, []uuid.UUID{m.UserID}, EventMemberAssigned, memberPayload(project, m))
		}
	}

	return &Details{Project: project, Members: members}, nil
}
