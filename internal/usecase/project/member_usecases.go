package project

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/translation-kpi/internal/domain/entity"
	"github.com/ignatzorin/translation-kpi/internal/domain/repository"
	"github.com/ignatzorin/translation-kpi/internal/logger"
	"github.com/ignatzorin/translation-kpi/internal/pkg/apperror"
)

type AddMemberUseCase struct {
	projectRepo repository.ProjectRepository
	notifier    Notifier
	cache       PreviewInvalidator
}

func NewAddMemberUseCase(projectRepo repository.ProjectRepository, notifier Notifier, cache PreviewInvalidator) *AddMemberUseCase {
	return &AddMemberUseCase{projectRepo: projectRepo, notifier: notifier, cache: cache}
}

// Execute назначает участника и пересчитывает состояние принятия.
func (uc *AddMemberUseCase) Execute(ctx context.Context, actor entity.Actor, projectID uuid.UUID, input entity.NewMemberInput) (*entity.ProjectMember, error) {
	var (
		project *entity.Project
		member  *entity.ProjectMember
	)

	err := uc.projectRepo.WithLock(ctx, projectID, func(ctx context.Context, store repository.ProjectStore) error {
		var err error
		project, err = store.Project(ctx)
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

		now := nowFn()
		member, err = entity.NewProjectMember(project, input, now)
		if err != nil {
			return err
		}
		for _, m := range members {
			if m.UserID == member.UserID && m.Role == member.Role {
				return apperror.ErrDuplicateMember
			}
		}

		from := project.Status
		if err := project.AddMember(member, now); err != nil {
			return err
		}
		if err := store.AddMember(ctx, member); err != nil {
			return err
		}
		project.ReevaluateAcceptance(append(members, member), now)
		if err := store.Update(ctx, project); err != nil {
			return err
		}
		return recordTransition(ctx, store, project, from, actor.UserID, now)
	})
	if err != nil {
		return nil, err
	}

	logger.WithProject(projectID).WithFields(logrus.Fields{
		"user_id": member.UserID,
		"role":    member.Role,
	}).Info("участник назначен")

	invalidate(uc.cache)
	notifyAsync(uc.notifier, []uuid.UUID{member.UserID}, EventMemberAssigned, memberPayload(project, member))
	return member, nil
}

type RemoveMemberUseCase struct {
	projectRepo repository.ProjectRepository
	cache       PreviewInvalidator
}

func NewRemoveMemberUseCase(projectRepo repository.ProjectRepository, cache PreviewInvalidator) *RemoveMemberUseCase {
	return &RemoveMemberUseCase{projectRepo: projectRepo, cache: cache}
}

// Execute снимает участника. Так же убирается отказавшийся исполнитель,
// после чего проект может снова перейти в работу.
func (uc *RemoveMemberUseCase) Execute(ctx context.Context, actor entity.Actor, projectID, memberID uuid.UUID) (*entity.Project, error) {
	var project *entity.Project

	err := uc.projectRepo.WithLock(ctx, projectID, func(ctx context.Context, store repository.ProjectStore) error {
		var err error
		project, err = store.Project(ctx)
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

		member := findMember(members, memberID)
		if member == nil {
			return apperror.ErrMemberNotFound
		}

		now := nowFn()
		from := project.Status
		if err := project.RemoveMember(member, now); err != nil {
			return err
		}
		if err := store.DeleteMember(ctx, memberID); err != nil {
			return err
		}

		remaining := make([]*entity.ProjectMember, 0, len(members)-1)
		for _, m := range members {
			if m.ID != memberID {
				remaining = append(remaining, m)
			}
		}
		project.ReevaluateAcceptance(remaining, now)
		if err := store.Update(ctx, project); err != nil {
			return err
		}
		return recordTransition(ctx, store, project, from, actor.UserID, now)
	})
	if err != nil {
		return nil, err
	}

	invalidate(uc.cache)
	return project, nil
}

// AcceptAssignmentUseCase подтверждение назначения исполнителем.
type AcceptAssignmentUseCase struct {
	projectRepo repository.ProjectRepository
	notifier    Notifier
	cache       PreviewInvalidator
}

func NewAcceptAssignmentUseCase(projectRepo repository.ProjectRepository, notifier Notifier, cache PreviewInvalidator) *AcceptAssignmentUseCase {
	return &AcceptAssignmentUseCase{projectRepo: projectRepo, notifier: notifier, cache: cache}
}

func (uc *AcceptAssignmentUseCase) Execute(ctx context.Context, actor entity.Actor, memberID uuid.UUID) (*Details, error) {
	found, err := uc.projectRepo.FindMemberByID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if found.UserID != actor.UserID {
		return nil, apperror.ErrForbidden
	}

	var (
		project *entity.Project
		members []*entity.ProjectMember
		member  *entity.ProjectMember
	)
	err = uc.projectRepo.WithLock(ctx, found.ProjectID, func(ctx context.Context, store repository.ProjectStore) error {
		var err error
		project, err = store.Project(ctx)
		if err != nil {
			return err
		}
		members, err = store.Members(ctx)
		if err != nil {
			return err
		}
		member = findMember(members, memberID)
		if member == nil {
			return apperror.ErrMemberNotFound
		}

		now := nowFn()
		from := project.Status
		if err := project.AcceptMember(member, now); err != nil {
			return err
		}
		if err := store.UpdateMember(ctx, member); err != nil {
			return err
		}
		project.ReevaluateAcceptance(members, now)
		if err := store.Update(ctx, project); err != nil {
			return err
		}
		return recordTransition(ctx, store, project, from, actor.UserID, now)
	})
	if err != nil {
		return nil, err
	}

	logger.WithProject(project.ID).WithFields(logrus.Fields{
		"user_id": actor.UserID,
		"role":    member.Role,
		"status":  project.Status,
	}).Info("назначение принято")

	invalidate(uc.cache)
	notifyAsync(uc.notifier, managersAndCreator(project, members, actor.UserID), EventMemberAccepted, memberPayload(project, member))
	return &Details{Project: project, Members: members}, nil
}

// RejectAssignmentUseCase отказ исполнителя от назначения.
type RejectAssignmentUseCase struct {
	projectRepo repository.ProjectRepository
	notifier    Notifier
	cache       PreviewInvalidator
	maxReason   int
}

func NewRejectAssignmentUseCase(projectRepo repository.ProjectRepository, notifier Notifier, cache PreviewInvalidator, maxReason int) *RejectAssignmentUseCase {
	return &RejectAssignmentUseCase{projectRepo: projectRepo, notifier: notifier, cache: cache, maxReason: maxReason}
}

func (uc *RejectAssignmentUseCase) Execute(ctx context.Context, actor entity.Actor, memberID uuid.UUID, reason string) (*Details, error) {
	found, err := uc.projectRepo.FindMemberByID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if found.UserID != actor.UserID {
		return nil, apperror.ErrForbidden
	}

	var (
		project *entity.Project
		members []*entity.ProjectMember
		member  *entity.ProjectMember
	)
	err = uc.projectRepo.WithLock(ctx, found.ProjectID, func(ctx context.Context, store repository.ProjectStore) error {
		var err error
		project, err = store.Project(ctx)
		if err != nil {
			return err
		}
		members, err = store.Members(ctx)
		if err != nil {
			return err
		}
		member = findMember(members, memberID)
		if member == nil {
			return apperror.ErrMemberNotFound
		}

		now := nowFn()
		from := project.Status
		if err := project.RejectMember(member, reason, uc.maxReason, now); err != nil {
			return err
		}
		if err := store.UpdateMember(ctx, member); err != nil {
			return err
		}
		if err := store.Update(ctx, project); err != nil {
			return err
		}
		return recordTransition(ctx, store, project, from, actor.UserID, now)
	})
	if err != nil {
		return nil, err
	}

	logger.WithProject(project.ID).WithFields(logrus.Fields{
		"user_id": actor.UserID,
		"role":    member.Role,
	}).Warn("назначение отклонено")

	invalidate(uc.cache)
	notifyAsync(uc.notifier, managersAndCreator(project, members, actor.UserID), EventMemberRejected, memberPayload(project, member))
	return &Details{Project: project, Members: members}, nil
}
