package project_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/translation-kpi/internal/domain/entity"
	"github.com/ignatzorin/translation-kpi/internal/domain/valueobject"
	"github.com/ignatzorin/translation-kpi/internal/pkg/apperror"
	"github.com/ignatzorin/translation-kpi/internal/usecase/project"
)

type fixture struct {
	repo      *mockProjectRepository
	notifier  *mockNotifier
	cache     *mockCache
	generator *mockGenerator
	creator   entity.Actor
}

func newFixture() *fixture {
	return &fixture{
		repo:      newMockProjectRepository(),
		notifier:  &mockNotifier{},
		cache:     &mockCache{},
		generator: &mockGenerator{},
		creator: entity.Actor{
			UserID:      uuid.New(),
			Role:        valueobject.RoleSales,
			Permissions: []string{entity.PermProjectCreate},
		},
	}
}

func memberActor(userID uuid.UUID, role valueobject.Role) entity.Actor {
	return entity.Actor{UserID: userID, Role: role}
}

func (f *fixture) create(t *testing.T, members ...entity.NewMemberInput) *project.Details {
	t.Helper()
	uc := project.NewCreateProjectUseCase(f.repo, mockRatios{}, f.notifier, f.cache)
	details, err := uc.Execute(context.Background(), f.creator, project.CreateProjectInput{
		Name:       "Руководство пользователя",
		ClientName: "ООО Ромашка",
		Amount:     10000,
		Members:    members,
	})
	require.NoError(t, err)
	return details
}

func translatorInput(userID uuid.UUID) entity.NewMemberInput {
	return entity.NewMemberInput{UserID: userID, Role: valueobject.RoleTranslator, TranslatorType: "mtpe"}
}

func memberOf(details *project.Details, userID uuid.UUID, role valueobject.Role) *entity.ProjectMember {
	for _, m := range details.Members {
		if m.UserID == userID && m.Role == role {
			return m
		}
	}
	return nil
}

func TestCreateProject_RequiresPermission(t *testing.T) {
	f := newFixture()
	uc := project.NewCreateProjectUseCase(f.repo, mockRatios{}, f.notifier, f.cache)

	_, err := uc.Execute(context.Background(), memberActor(uuid.New(), valueobject.RoleTranslator), project.CreateProjectInput{
		Name:   "Договор",
		Amount: 100,
	})
	assert.True(t, apperror.IsForbidden(err))
}

func TestCreateProject_SalesCreatorBecomesMember(t *testing.T) {
	f := newFixture()
	details := f.create(t)

	assert.Equal(t, valueobject.ProjectStatusPending, details.Project.Status)
	require.Len(t, details.Members, 1)
	sales := details.Members[0]
	assert.Equal(t, f.creator.UserID, sales.UserID)
	assert.Equal(t, valueobject.RoleSales, sales.Role)
	assert.Equal(t, valueobject.AcceptanceAccepted, sales.Acceptance)
	assert.Equal(t, 1, details.Project.Acceptance.Accepted)
	assert.Equal(t, entity.DefaultRatios(), details.Project.LockedRatios)
}

func TestCreateProject_ProductionMemberSchedulesAndNotifies(t *testing.T) {
	f := newFixture()
	translator := uuid.New()
	details := f.create(t, translatorInput(translator))

	assert.Equal(t, valueobject.ProjectStatusScheduled, details.Project.Status)
	assert.Equal(t, 1, details.Project.Acceptance.Pending)
	assert.Eventually(t, func() bool {
		return f.notifier.received(translator, project.EventMemberAssigned)
	}, time.Second, 10*time.Millisecond)
}

func TestCreateProject_DuplicateMember(t *testing.T) {
	f := newFixture()
	uc := project.NewCreateProjectUseCase(f.repo, mockRatios{}, f.notifier, f.cache)
	translator := uuid.New()

	_, err := uc.Execute(context.Background(), f.creator, project.CreateProjectInput{
		Name:    "Договор",
		Amount:  100,
		Members: []entity.NewMemberInput{translatorInput(translator), translatorInput(translator)},
	})
	assert.True(t, apperror.IsConflict(err))
}

func TestAddMember_DuplicateIsConflict(t *testing.T) {
	f := newFixture()
	translator := uuid.New()
	details := f.create(t, translatorInput(translator))

	uc := project.NewAddMemberUseCase(f.repo, f.notifier, f.cache)
	_, err := uc.Execute(context.Background(), f.creator, details.Project.ID, translatorInput(translator))
	assert.True(t, apperror.IsConflict(err))
}

func TestAddMember_OnlyManagers(t *testing.T) {
	f := newFixture()
	details := f.create(t)

	uc := project.NewAddMemberUseCase(f.repo, f.notifier, f.cache)
	stranger := memberActor(uuid.New(), valueobject.RoleTranslator)
	_, err := uc.Execute(context.Background(), stranger, details.Project.ID, translatorInput(uuid.New()))
	assert.True(t, apperror.IsForbidden(err))
}

func TestAcceptAssignment_AllAcceptedMovesToInProgress(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	details := f.create(t)

	translator := uuid.New()
	add := project.NewAddMemberUseCase(f.repo, f.notifier, f.cache)
	member, err := add.Execute(ctx, f.creator, details.Project.ID, translatorInput(translator))
	require.NoError(t, err)

	stored, err := f.repo.FindByID(ctx, details.Project.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.ProjectStatusScheduled, stored.Status)

	accept := project.NewAcceptAssignmentUseCase(f.repo, f.notifier, f.cache)
	result, err := accept.Execute(ctx, memberActor(translator, valueobject.RoleTranslator), member.ID)
	require.NoError(t, err)

	assert.Equal(t, valueobject.ProjectStatusInProgress, result.Project.Status)
	assert.Equal(t, 0, result.Project.Acceptance.Pending)
	assert.Equal(t, 2, result.Project.Acceptance.Accepted)
	require.NotNil(t, result.Project.StartedAt)

	history, err := project.NewProjectHistoryUseCase(f.repo).Execute(ctx, f.creator, details.Project.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, valueobject.ProjectStatusPending, history[0].From)
	assert.Equal(t, valueobject.ProjectStatusScheduled, history[0].To)
	assert.Equal(t, valueobject.ProjectStatusInProgress, history[1].To)
	require.NotNil(t, history[1].ActorID)
	assert.Equal(t, translator, *history[1].ActorID)

	assert.Eventually(t, func() bool {
		return f.notifier.received(f.creator.UserID, project.EventMemberAccepted)
	}, time.Second, 10*time.Millisecond)
}

func TestAcceptAssignment_OnlyAssignee(t *testing.T) {
	f := newFixture()
	translator := uuid.New()
	details := f.create(t, translatorInput(translator))
	member := memberOf(details, translator, valueobject.RoleTranslator)

	accept := project.NewAcceptAssignmentUseCase(f.repo, f.notifier, f.cache)
	_, err := accept.Execute(context.Background(), memberActor(uuid.New(), valueobject.RoleTranslator), member.ID)
	assert.True(t, apperror.IsForbidden(err))
}

func TestAcceptAssignment_ResolvedIsNotFound(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	translator := uuid.New()
	details := f.create(t, translatorInput(translator))
	member := memberOf(details, translator, valueobject.RoleTranslator)
	actor := memberActor(translator, valueobject.RoleTranslator)

	accept := project.NewAcceptAssignmentUseCase(f.repo, f.notifier, f.cache)
	_, err := accept.Execute(ctx, actor, member.ID)
	require.NoError(t, err)

	_, err = accept.Execute(ctx, actor, member.ID)
	assert.True(t, apperror.IsNotFound(err))

	reject := project.NewRejectAssignmentUseCase(f.repo, f.notifier, f.cache, 500)
	_, err = reject.Execute(ctx, actor, member.ID, "передумал")
	assert.True(t, apperror.IsNotFound(err))
}

func TestRejectAssignment_ForcesScheduledAndNotifiesManagers(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	first, second, pm := uuid.New(), uuid.New(), uuid.New()
	details := f.create(t,
		translatorInput(first),
		translatorInput(second),
		entity.NewMemberInput{UserID: pm, Role: valueobject.RoleProjectManager},
	)

	accept := project.NewAcceptAssignmentUseCase(f.repo, f.notifier, f.cache)
	_, err := accept.Execute(ctx, memberActor(first, valueobject.RoleTranslator), memberOf(details, first, valueobject.RoleTranslator).ID)
	require.NoError(t, err)

	reject := project.NewRejectAssignmentUseCase(f.repo, f.notifier, f.cache, 11)
	rejected := memberOf(details, second, valueobject.RoleTranslator)
	result, err := reject.Execute(ctx, memberActor(second, valueobject.RoleTranslator), rejected.ID, "  нет времени на этот проект  ")
	require.NoError(t, err)

	assert.Equal(t, valueobject.ProjectStatusScheduled, result.Project.Status)
	assert.Equal(t, 1, result.Project.Acceptance.Rejected)
	assert.Equal(t, 0, result.Project.Acceptance.Pending)

	members, err := f.repo.FindMembers(ctx, details.Project.ID)
	require.NoError(t, err)
	for _, m := range members {
		if m.ID == rejected.ID {
			assert.Equal(t, valueobject.AcceptanceRejected, m.Acceptance)
			assert.Equal(t, "нет времени", m.RejectionReason)
		}
	}

	assert.Eventually(t, func() bool {
		return f.notifier.received(pm, project.EventMemberRejected) &&
			f.notifier.received(f.creator.UserID, project.EventMemberRejected)
	}, time.Second, 10*time.Millisecond)

	// Снятие отказавшегося исполнителя возвращает проект в работу.
	remove := project.NewRemoveMemberUseCase(f.repo, f.cache)
	updated, err := remove.Execute(ctx, f.creator, details.Project.ID, rejected.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.ProjectStatusInProgress, updated.Status)
	assert.Equal(t, 0, updated.Acceptance.Rejected)
}

func TestAcceptAssignment_ConcurrentAcceptsKeepCounters(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	const translators = 12
	inputs := make([]entity.NewMemberInput, 0, translators)
	for i := 0; i < translators; i++ {
		inputs = append(inputs, translatorInput(uuid.New()))
	}
	details := f.create(t, inputs...)

	accept := project.NewAcceptAssignmentUseCase(f.repo, f.notifier, f.cache)
	var wg sync.WaitGroup
	errs := make(chan error, translators)
	for _, m := range details.Members {
		if m.Role != valueobject.RoleTranslator {
			continue
		}
		wg.Add(1)
		go func(m *entity.ProjectMember) {
			defer wg.Done()
			_, err := accept.Execute(ctx, memberActor(m.UserID, m.Role), m.ID)
			errs <- err
		}(m)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := f.repo.FindByID(ctx, details.Project.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Acceptance.Pending)
	assert.Equal(t, translators+1, stored.Acceptance.Accepted)
	assert.Equal(t, valueobject.ProjectStatusInProgress, stored.Status)
}

func TestStartProject(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	details := f.create(t)
	start := project.NewStartProjectUseCase(f.repo, f.cache)

	_, err := start.Execute(ctx, f.creator, details.Project.ID)
	assert.True(t, apperror.IsValidation(err), "без менеджера проекта запуск невозможен")

	pm := uuid.New()
	add := project.NewAddMemberUseCase(f.repo, f.notifier, f.cache)
	_, err = add.Execute(ctx, f.creator, details.Project.ID, entity.NewMemberInput{UserID: pm, Role: valueobject.RoleProjectManager})
	require.NoError(t, err)

	_, err = start.Execute(ctx, memberActor(pm, valueobject.RoleProjectManager), details.Project.ID)
	assert.True(t, apperror.IsForbidden(err))

	result, err := start.Execute(ctx, f.creator, details.Project.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.ProjectStatusScheduled, result.Project.Status)
}

func inProgressProject(t *testing.T, f *fixture, members ...entity.NewMemberInput) *project.Details {
	t.Helper()
	details := f.create(t, members...)
	accept := project.NewAcceptAssignmentUseCase(f.repo, f.notifier, f.cache)
	var last *project.Details
	for _, m := range details.Members {
		if !m.IsPending() {
			continue
		}
		var err error
		last, err = accept.Execute(context.Background(), memberActor(m.UserID, m.Role), m.ID)
		require.NoError(t, err)
	}
	require.NotNil(t, last)
	require.Equal(t, valueobject.ProjectStatusInProgress, last.Project.Status)
	return last
}

func TestAdvanceStatus_Permissions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	translator, reviewer := uuid.New(), uuid.New()
	details := inProgressProject(t, f,
		translatorInput(translator),
		entity.NewMemberInput{UserID: reviewer, Role: valueobject.RoleReviewer},
	)
	advance := project.NewAdvanceStatusUseCase(f.repo, f.cache)

	_, err := advance.Execute(ctx, memberActor(reviewer, valueobject.RoleReviewer), details.Project.ID, "translation_done")
	assert.True(t, apperror.IsForbidden(err))

	result, err := advance.Execute(ctx, memberActor(translator, valueobject.RoleTranslator), details.Project.ID, "translation_done")
	require.NoError(t, err)
	assert.Equal(t, valueobject.ProjectStatusTranslationDone, result.Project.Status)

	result, err = advance.Execute(ctx, memberActor(reviewer, valueobject.RoleReviewer), details.Project.ID, "review_done")
	require.NoError(t, err)
	assert.Equal(t, valueobject.ProjectStatusReviewDone, result.Project.Status)
}

func TestAdvanceStatus_PartTimeLayoutMarksLayoutDone(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	translator, layout := uuid.New(), uuid.New()
	fee := 3000.0
	details := inProgressProject(t, f,
		translatorInput(translator),
		entity.NewMemberInput{UserID: layout, Role: valueobject.RolePartTimeLayout, PartTimeFee: &fee},
	)
	advance := project.NewAdvanceStatusUseCase(f.repo, f.cache)

	_, err := advance.Execute(ctx, memberActor(layout, valueobject.RolePartTimeLayout), details.Project.ID, "review_done")
	assert.True(t, apperror.IsForbidden(err))

	result, err := advance.Execute(ctx, memberActor(layout, valueobject.RolePartTimeLayout), details.Project.ID, "layout_done")
	require.NoError(t, err)
	assert.Equal(t, valueobject.ProjectStatusLayoutDone, result.Project.Status)
}

func TestAdvanceStatus_RollbackRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	translator := uuid.New()
	details := inProgressProject(t, f, translatorInput(translator))
	advance := project.NewAdvanceStatusUseCase(f.repo, f.cache)
	admin := entity.Actor{UserID: uuid.New(), Permissions: []string{entity.PermProjectManage}}

	_, err := advance.Execute(ctx, admin, details.Project.ID, "layout_done")
	require.NoError(t, err)

	_, err = advance.Execute(ctx, admin, details.Project.ID, "translation_done")
	assert.ErrorIs(t, err, apperror.ErrStatusRollback)
	assert.True(t, apperror.IsValidation(err))

	_, err = advance.Execute(ctx, admin, details.Project.ID, "scheduled")
	assert.True(t, apperror.IsValidation(err))
}

func TestAdvanceStatus_BeforeInProgress(t *testing.T) {
	f := newFixture()
	translator := uuid.New()
	details := f.create(t, translatorInput(translator))
	advance := project.NewAdvanceStatusUseCase(f.repo, f.cache)

	_, err := advance.Execute(context.Background(), f.creator, details.Project.ID, "translation_done")
	assert.True(t, apperror.IsForbidden(err))

	admin := entity.Actor{UserID: uuid.New(), Permissions: []string{entity.PermProjectManage}}
	_, err = advance.Execute(context.Background(), admin, details.Project.ID, "translation_done")
	assert.True(t, apperror.IsValidation(err))
}

func TestCompleteProject_GeneratesKPIAndNotifies(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	translator := uuid.New()
	details := inProgressProject(t, f, translatorInput(translator))

	complete := project.NewCompleteProjectUseCase(f.repo, f.generator, f.notifier, f.cache)
	result, err := complete.Execute(ctx, f.creator, details.Project.ID)
	require.NoError(t, err)

	assert.Equal(t, valueobject.ProjectStatusCompleted, result.Project.Status)
	require.NotNil(t, result.Project.CompletedAt)
	assert.False(t, result.Project.Quality.IsDelayed)
	assert.Equal(t, []uuid.UUID{details.Project.ID}, f.generator.calls)

	assert.Eventually(t, func() bool {
		return f.notifier.received(translator, project.EventProjectCompleted) &&
			f.notifier.received(f.creator.UserID, project.EventProjectCompleted)
	}, time.Second, 10*time.Millisecond)

	update := project.NewUpdateProjectUseCase(f.repo, f.cache)
	name := "Новое название"
	_, err = update.Execute(ctx, f.creator, details.Project.ID, entity.UpdateInput{Name: &name})
	assert.True(t, apperror.IsConflict(err))

	cancel := project.NewCancelProjectUseCase(f.repo, f.cache)
	_, err = cancel.Execute(ctx, f.creator, details.Project.ID)
	assert.True(t, apperror.IsConflict(err))
}

func TestCompleteProject_GenerationFailureIsNotReturned(t *testing.T) {
	f := newFixture()
	f.generator.fail = true
	details := inProgressProject(t, f, translatorInput(uuid.New()))

	complete := project.NewCompleteProjectUseCase(f.repo, f.generator, f.notifier, f.cache)
	result, err := complete.Execute(context.Background(), f.creator, details.Project.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.ProjectStatusCompleted, result.Project.Status)
}

func TestCancelProject(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	translator := uuid.New()
	details := f.create(t, translatorInput(translator))
	cancel := project.NewCancelProjectUseCase(f.repo, f.cache)

	_, err := cancel.Execute(ctx, memberActor(translator, valueobject.RoleTranslator), details.Project.ID)
	assert.True(t, apperror.IsForbidden(err))

	result, err := cancel.Execute(ctx, f.creator, details.Project.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.ProjectStatusCancelled, result.Project.Status)

	accept := project.NewAcceptAssignmentUseCase(f.repo, f.notifier, f.cache)
	member := memberOf(details, translator, valueobject.RoleTranslator)
	_, err = accept.Execute(ctx, memberActor(translator, valueobject.RoleTranslator), member.ID)
	assert.True(t, apperror.IsConflict(err))
}

func TestUpdateProject_QualityFlags(t *testing.T) {
	f := newFixture()
	details := f.create(t)
	update := project.NewUpdateProjectUseCase(f.repo, f.cache)

	revisions := 2
	complaint := true
	result, err := update.Execute(context.Background(), f.creator, details.Project.ID, entity.UpdateInput{
		RevisionCount: &revisions,
		HasComplaint:  &complaint,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Quality.RevisionCount)
	assert.True(t, result.Quality.HasComplaint)
	assert.Positive(t, f.cache.invalidations.Load())
}

func TestGetProject_Visibility(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	translator := uuid.New()
	details := f.create(t, translatorInput(translator))
	get := project.NewGetProjectUseCase(f.repo)

	got, err := get.Execute(ctx, memberActor(translator, valueobject.RoleTranslator), details.Project.ID)
	require.NoError(t, err)
	assert.Len(t, got.Members, 2)

	_, err = get.Execute(ctx, memberActor(uuid.New(), valueobject.RoleTranslator), details.Project.ID)
	assert.True(t, apperror.IsForbidden(err))

	_, err = get.Execute(ctx, f.creator, uuid.New())
	assert.True(t, apperror.IsNotFound(err))
}

func TestListProjects_ScopedToParticipant(t *testing.T) {
	f := newFixture()
	translator := uuid.New()
	f.create(t, translatorInput(translator))
	f.create(t)

	list := project.NewListProjectsUseCase(f.repo)
	projects, total, err := list.Execute(context.Background(), memberActor(translator, valueobject.RoleTranslator), project.ListProjectsInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, projects, 1)
	assert.True(t, strings.HasPrefix(projects[0].Name, "Руководство"))

	projects, _, err = list.Execute(context.Background(), f.creator, project.ListProjectsInput{})
	require.NoError(t, err)
	assert.Len(t, projects, 2)
}
