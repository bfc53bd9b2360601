package entity_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/translation-kpi/internal/domain/entity"
	"github.com/ignatzorin/translation-kpi/internal/domain/valueobject"
	"github.com/ignatzorin/translation-kpi/internal/pkg/apperror"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newProject(t *testing.T) *entity.Project {
	t.Helper()
	p, err := entity.NewProject(uuid.New(), "Руководство пользователя", "ООО Альфа", 10000, nil, entity.DefaultRatios(), now)
	require.NoError(t, err)
	return p
}

func addMember(t *testing.T, p *entity.Project, role valueobject.Role) *entity.ProjectMember {
	t.Helper()
	in := entity.NewMemberInput{UserID: uuid.New(), Role: role}
	if role == valueobject.RoleTranslator {
		in.TranslatorType = "mtpe"
	}
	if role.IsFeeBased() {
		fee := 500.0
		in.PartTimeFee = &fee
	}
	m, err := entity.NewProjectMember(p, in, now)
	require.NoError(t, err)
	require.NoError(t, p.AddMember(m, now))
	return m
}

func TestNewProject_Validation(t *testing.T) {
	past := now.Add(-time.Hour)

	_, err := entity.NewProject(uuid.New(), "  ", "", 100, nil, entity.DefaultRatios(), now)
	assert.True(t, apperror.IsValidation(err))

	_, err = entity.NewProject(uuid.New(), "Проект", "", -1, nil, entity.DefaultRatios(), now)
	assert.True(t, apperror.IsValidation(err))

	_, err = entity.NewProject(uuid.New(), "Проект", "", 100, &past, entity.DefaultRatios(), now)
	assert.True(t, apperror.IsValidation(err))
}

func TestNewProject_SnapshotIsIndependent(t *testing.T) {
	ratios := entity.DefaultRatios()
	ratios.Extra = map[string]float64{"consultant": 0.01}

	p, err := entity.NewProject(uuid.New(), "Проект", "", 100, nil, ratios, now)
	require.NoError(t, err)

	ratios.MTPE = 0.5
	ratios.Extra["consultant"] = 0.9

	assert.Equal(t, 0.12, p.LockedRatios.MTPE)
	assert.Equal(t, 0.01, p.LockedRatios.Extra["consultant"])
}

func TestAddMember_ProductionRoleSchedulesProject(t *testing.T) {
	p := newProject(t)

	pm := addMember(t, p, valueobject.RoleProjectManager)
	assert.Equal(t, valueobject.AcceptanceAccepted, pm.Acceptance)
	assert.Equal(t, valueobject.ProjectStatusPending, p.Status)

	tr := addMember(t, p, valueobject.RoleTranslator)
	assert.Equal(t, valueobject.AcceptancePending, tr.Acceptance)
	assert.Equal(t, valueobject.ProjectStatusScheduled, p.Status)
	assert.Equal(t, entity.AcceptanceSummary{Pending: 1, Accepted: 1}, p.Acceptance)
}

func TestNewProjectMember_Validation(t *testing.T) {
	p := newProject(t)
	zero := 0.0

	_, err := entity.NewProjectMember(p, entity.NewMemberInput{UserID: uuid.New(), Role: valueobject.RoleTranslator}, now)
	assert.True(t, apperror.IsValidation(err), "переводчику нужен тип")

	_, err = entity.NewProjectMember(p, entity.NewMemberInput{UserID: uuid.New(), Role: valueobject.RoleReviewer, WorkloadRatio: &zero}, now)
	assert.True(t, apperror.IsValidation(err), "нулевая нагрузка")

	_, err = entity.NewProjectMember(p, entity.NewMemberInput{UserID: uuid.New(), Role: valueobject.RolePartTimeLayout}, now)
	assert.True(t, apperror.IsValidation(err), "гонорар обязателен")
}

func TestReevaluateAcceptance_PendingMemberBlocksInProgress(t *testing.T) {
	p := newProject(t)
	tr := addMember(t, p, valueobject.RoleTranslator)
	rv := addMember(t, p, valueobject.RoleReviewer)
	members := []*entity.ProjectMember{tr, rv}

	require.NoError(t, p.AcceptMember(tr, now))
	p.ReevaluateAcceptance(members, now)
	assert.Equal(t, valueobject.ProjectStatusScheduled, p.Status)
	assert.Nil(t, p.StartedAt)

	later := now.Add(time.Hour)
	require.NoError(t, p.AcceptMember(rv, later))
	p.ReevaluateAcceptance(members, later)
	assert.Equal(t, valueobject.ProjectStatusInProgress, p.Status)
	require.NotNil(t, p.StartedAt)
	assert.Equal(t, later, *p.StartedAt)

	p.ReevaluateAcceptance(members, later.Add(time.Hour))
	assert.Equal(t, later, *p.StartedAt, "время старта фиксируется один раз")
}

func TestRejectMember_ForcesScheduled(t *testing.T) {
	p := newProject(t)
	tr := addMember(t, p, valueobject.RoleTranslator)
	tr2 := addMember(t, p, valueobject.RoleTranslator)
	rv := addMember(t, p, valueobject.RoleReviewer)
	members := []*entity.ProjectMember{tr, tr2, rv}

	require.NoError(t, p.AcceptMember(tr, now))
	require.NoError(t, p.AcceptMember(rv, now))

	require.NoError(t, p.RejectMember(tr2, "нет времени", 500, now))
	assert.Equal(t, valueobject.ProjectStatusScheduled, p.Status)
	assert.Equal(t, entity.AcceptanceSummary{Accepted: 2, Rejected: 1}, p.Acceptance)

	// отклонённый участник исключён из проверки, роль закрыта принятым переводчиком
	p.ReevaluateAcceptance(members, now)
	assert.Equal(t, valueobject.ProjectStatusInProgress, p.Status)
}

func TestRejectMember_RoleWithOnlyRejectedMembersIsUnsatisfied(t *testing.T) {
	p := newProject(t)
	tr := addMember(t, p, valueobject.RoleTranslator)
	rv := addMember(t, p, valueobject.RoleReviewer)
	members := []*entity.ProjectMember{tr, rv}

	require.NoError(t, p.AcceptMember(tr, now))
	require.NoError(t, p.RejectMember(rv, "", 500, now))
	p.ReevaluateAcceptance(members, now)

	assert.Equal(t, valueobject.ProjectStatusScheduled, p.Status)
}

func TestRejectMember_TruncatesReason(t *testing.T) {
	p := newProject(t)
	tr := addMember(t, p, valueobject.RoleTranslator)

	require.NoError(t, p.RejectMember(tr, "слишком длинная причина", 7, now))
	assert.Equal(t, "слишком", tr.RejectionReason)
}

func TestAcceptMember_ResolvedAssignment(t *testing.T) {
	p := newProject(t)
	tr := addMember(t, p, valueobject.RoleTranslator)
	require.NoError(t, p.AcceptMember(tr, now))

	err := p.AcceptMember(tr, now)
	assert.True(t, apperror.IsNotFound(err))

	err = p.RejectMember(tr, "", 500, now)
	assert.True(t, apperror.IsNotFound(err))
}

func TestStart_RequiresProjectManager(t *testing.T) {
	p := newProject(t)

	err := p.Start(nil, now)
	assert.True(t, apperror.IsValidation(err))

	pm := addMember(t, p, valueobject.RoleProjectManager)
	require.NoError(t, p.Start([]*entity.ProjectMember{pm}, now))
	assert.Equal(t, valueobject.ProjectStatusScheduled, p.Status)
}

func TestAdvanceTo(t *testing.T) {
	p := newProject(t)
	tr := addMember(t, p, valueobject.RoleTranslator)

	err := p.AdvanceTo(valueobject.ProjectStatusTranslationDone, now)
	assert.True(t, apperror.IsValidation(err), "проект ещё не в работе")

	require.NoError(t, p.AcceptMember(tr, now))
	p.ReevaluateAcceptance([]*entity.ProjectMember{tr}, now)
	require.Equal(t, valueobject.ProjectStatusInProgress, p.Status)

	require.NoError(t, p.AdvanceTo(valueobject.ProjectStatusTranslationDone, now))
	require.NoError(t, p.AdvanceTo(valueobject.ProjectStatusLayoutDone, now))

	err = p.AdvanceTo(valueobject.ProjectStatusReviewDone, now)
	assert.ErrorIs(t, err, apperror.ErrStatusRollback)

	err = p.AdvanceTo(valueobject.ProjectStatusCompleted, now)
	assert.True(t, apperror.IsValidation(err), "завершение только через Complete")
}

func TestAdvanceTo_RollbackToScheduled(t *testing.T) {
	p := newProject(t)
	p.Status = valueobject.ProjectStatusTranslationDone

	err := p.AdvanceTo(valueobject.ProjectStatusScheduled, now)

	assert.ErrorIs(t, err, apperror.ErrStatusRollback)
	assert.True(t, apperror.IsValidation(err))
	assert.Equal(t, valueobject.ProjectStatusTranslationDone, p.Status)
}

func TestReevaluateAcceptance_DoesNotTouchManualStages(t *testing.T) {
	p := newProject(t)
	tr := addMember(t, p, valueobject.RoleTranslator)
	p.Status = valueobject.ProjectStatusReviewDone

	p.ReevaluateAcceptance([]*entity.ProjectMember{tr}, now)

	assert.Equal(t, valueobject.ProjectStatusReviewDone, p.Status)
}

func TestComplete(t *testing.T) {
	deadline := now.Add(24 * time.Hour)
	p, err := entity.NewProject(uuid.New(), "Проект", "", 10000, &deadline, entity.DefaultRatios(), now)
	require.NoError(t, err)

	err = p.Complete(0, now)
	assert.True(t, apperror.IsValidation(err))

	completedAt := deadline.Add(time.Hour)
	require.NoError(t, p.Complete(1, completedAt))
	assert.Equal(t, valueobject.ProjectStatusCompleted, p.Status)
	assert.True(t, p.Quality.IsDelayed)
	assert.Equal(t, completedAt, *p.CompletedAt)
}

func TestComplete_ZeroAmount(t *testing.T) {
	p, err := entity.NewProject(uuid.New(), "Проект", "", 0, nil, entity.DefaultRatios(), now)
	require.NoError(t, err)

	err = p.Complete(1, now)
	assert.True(t, apperror.IsValidation(err))
}

func TestTerminalProjectRejectsTransitions(t *testing.T) {
	p := newProject(t)
	require.NoError(t, p.Cancel(now))

	assert.True(t, apperror.IsConflict(p.Cancel(now)))
	assert.True(t, apperror.IsConflict(p.Complete(1, now)))
	assert.True(t, apperror.IsConflict(p.AdvanceTo(valueobject.ProjectStatusReviewDone, now)))

	name := "Новое имя"
	assert.True(t, apperror.IsConflict(p.Update(entity.UpdateInput{Name: &name}, now)))
}
