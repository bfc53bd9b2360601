package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/translation-kpi/internal/domain/entity"
	"github.com/ignatzorin/translation-kpi/internal/domain/repository"
	"github.com/ignatzorin/translation-kpi/internal/domain/valueobject"
	"github.com/ignatzorin/translation-kpi/internal/pkg/apperror"
)

var reviewer = entity.Actor{
	UserID:      uuid.New(),
	Role:        valueobject.RoleFinance,
	Permissions: []string{entity.PermKPIReview, entity.PermKPIEvaluate, entity.PermKPIViewAll},
}

func seedRecord(t *testing.T, kpis *memKPIRepo, userID uuid.UUID, role valueobject.Role) *entity.KPIRecord {
	t.Helper()
	rec := &entity.KPIRecord{
		ID:           uuid.New(),
		UserID:       userID,
		ProjectID:    uuid.New(),
		Role:         role,
		Month:        "2025-03",
		Value:        1200,
		Formula:      "Перевод (mtpe): 10000.00 × 0.1200 × 1.0000 × 1.0000 = 1200.00",
		ReviewStatus: valueobject.ReviewPending,
	}
	_, err := kpis.InsertRecord(context.Background(), rec)
	require.NoError(t, err)
	return rec
}

func seedMonthly(t *testing.T, kpis *memKPIRepo) *entity.MonthlyRoleKPI {
	t.Helper()
	rec := &entity.MonthlyRoleKPI{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		Month:        "2025-03",
		Role:         valueobject.RoleAdminStaff,
		CompanyTotal: 100000,
		Ratio:        0.005,
		Value:        500,
		ReviewStatus: valueobject.ReviewPending,
	}
	_, err := kpis.InsertMonthly(context.Background(), rec)
	require.NoError(t, err)
	return rec
}

func TestKPIReview_ApproveRecord(t *testing.T) {
	kpis := newMemKPIRepo()
	svc := NewKPIReviewService(kpis)
	rec := seedRecord(t, kpis, uuid.New(), valueobject.RoleTranslator)

	_, err := svc.ApproveRecord(context.Background(), entity.Actor{UserID: uuid.New()}, rec.ID)
	assert.True(t, apperror.IsForbidden(err))

	approved, err := svc.ApproveRecord(context.Background(), reviewer, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.ReviewApproved, approved.ReviewStatus)
	require.NotNil(t, approved.ReviewedBy)
	assert.Equal(t, reviewer.UserID, *approved.ReviewedBy)

	_, err = svc.ApproveRecord(context.Background(), reviewer, rec.ID)
	assert.True(t, apperror.IsConflict(err))

	err = svc.RejectRecord(context.Background(), reviewer, rec.ID)
	assert.True(t, apperror.IsConflict(err))
}

func TestKPIReview_RejectRecordDeletes(t *testing.T) {
	kpis := newMemKPIRepo()
	svc := NewKPIReviewService(kpis)
	rec := seedRecord(t, kpis, uuid.New(), valueobject.RoleReviewer)

	require.NoError(t, svc.RejectRecord(context.Background(), reviewer, rec.ID))

	_, err := kpis.FindRecordByID(context.Background(), rec.ID)
	assert.True(t, apperror.IsNotFound(err))

	err = svc.RejectRecord(context.Background(), reviewer, rec.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestKPIReview_ListRecordsScopedToSelectedRole(t *testing.T) {
	kpis := newMemKPIRepo()
	svc := NewKPIReviewService(kpis)
	userID := uuid.New()
	seedRecord(t, kpis, userID, valueobject.RoleTranslator)
	seedRecord(t, kpis, userID, valueobject.RoleReviewer)
	seedRecord(t, kpis, uuid.New(), valueobject.RoleTranslator)

	own := entity.Actor{UserID: userID, Role: valueobject.RoleTranslator}
	records, total, err := svc.ListRecords(context.Background(), own, repository.RecordFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, records, 1)
	assert.Equal(t, valueobject.RoleTranslator, records[0].Role)
	require.NotNil(t, kpis.lastFilter.UserID)
	assert.Equal(t, userID, *kpis.lastFilter.UserID)
	assert.Equal(t, 50, kpis.lastFilter.Limit)

	// Чужой user_id в фильтре не расширяет видимость.
	other := uuid.New()
	_, _, err = svc.ListRecords(context.Background(), own, repository.RecordFilter{UserID: &other})
	require.NoError(t, err)
	assert.Equal(t, userID, *kpis.lastFilter.UserID)

	all, total, err := svc.ListRecords(context.Background(), reviewer, repository.RecordFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, all, 3)
}

func TestKPIReview_EvaluateMonthlyRecomputes(t *testing.T) {
	kpis := newMemKPIRepo()
	svc := NewKPIReviewService(kpis)
	rec := seedMonthly(t, kpis)

	_, err := svc.EvaluateMonthly(context.Background(), entity.Actor{UserID: uuid.New(), Permissions: []string{entity.PermKPIReview}}, rec.ID, "good")
	assert.True(t, apperror.IsForbidden(err))

	_, err = svc.EvaluateMonthly(context.Background(), reviewer, rec.ID, "excellent")
	assert.True(t, apperror.IsValidation(err))

	evaluated, err := svc.EvaluateMonthly(context.Background(), reviewer, rec.ID, "good")
	require.NoError(t, err)
	assert.Equal(t, 550.0, evaluated.Value)
	assert.False(t, evaluated.Estimated())
	assert.Contains(t, evaluated.Formula, "1.1000")

	evaluated, err = svc.EvaluateMonthly(context.Background(), reviewer, rec.ID, "poor")
	require.NoError(t, err)
	assert.Equal(t, 400.0, evaluated.Value)

	_, err = svc.ApproveMonthly(context.Background(), reviewer, rec.ID)
	require.NoError(t, err)

	_, err = svc.EvaluateMonthly(context.Background(), reviewer, rec.ID, "medium")
	assert.True(t, apperror.IsConflict(err))

	err = svc.RejectMonthly(context.Background(), reviewer, rec.ID)
	assert.True(t, apperror.IsConflict(err))
}

func TestKPIReview_RejectMonthly(t *testing.T) {
	kpis := newMemKPIRepo()
	svc := NewKPIReviewService(kpis)
	rec := seedMonthly(t, kpis)

	require.NoError(t, svc.RejectMonthly(context.Background(), reviewer, rec.ID))
	_, err := kpis.FindMonthlyByID(context.Background(), rec.ID)
	assert.True(t, apperror.IsNotFound(err))
}
