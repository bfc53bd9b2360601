package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/translation-kpi/internal/domain/entity"
	"github.com/ignatzorin/translation-kpi/internal/domain/kpi"
	"github.com/ignatzorin/translation-kpi/internal/domain/repository"
	"github.com/ignatzorin/translation-kpi/internal/domain/valueobject"
	"github.com/ignatzorin/translation-kpi/internal/logger"
	"github.com/ignatzorin/translation-kpi/internal/pkg/apperror"
)

// KPIReviewService проверка сохранённых записей KPI. Работает только со строками
// журнала и не запускает расчёт по проекту заново.
type KPIReviewService struct {
	kpis repository.KPIRepository
}

func NewKPIReviewService(kpis repository.KPIRepository) *KPIReviewService {
	return &KPIReviewService{kpis: kpis}
}

// scopeFilter без права kpi.view_all пользователь видит только свои записи в выбранной роли.
func scopeFilter(actor entity.Actor, filter repository.RecordFilter) repository.RecordFilter {
	if actor.Can(entity.PermKPIViewAll) {
		return filter
	}
	userID := actor.UserID
	filter.UserID = &userID
	filter.Role = actor.Role
	return filter
}

func (s *KPIReviewService) ListRecords(ctx context.Context, actor entity.Actor, filter repository.RecordFilter) ([]*entity.KPIRecord, int, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	return s.kpis.ListRecords(ctx, scopeFilter(actor, filter))
}

func (s *KPIReviewService) ApproveRecord(ctx context.Context, actor entity.Actor, id uuid.UUID) (*entity.KPIRecord, error) {
	if !actor.Can(entity.PermKPIReview) {
		return nil, apperror.ErrForbidden
	}
	record, err := s.kpis.FindRecordByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := record.Approve(actor.UserID, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := s.kpis.UpdateRecordReview(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// RejectRecord удаляет запись, чтобы отклонённая выплата не попала в выгрузку.
func (s *KPIReviewService) RejectRecord(ctx context.Context, actor entity.Actor, id uuid.UUID) error {
	if !actor.Can(entity.PermKPIReview) {
		return apperror.ErrForbidden
	}
	record, err := s.kpis.FindRecordByID(ctx, id)
	if err != nil {
		return err
	}
	if record.ReviewStatus == valueobject.ReviewApproved {
		return apperror.Conflict("утверждённую запись KPI нельзя отклонить")
	}
	if err := s.kpis.DeleteRecord(ctx, id); err != nil {
		return err
	}

	logger.WithProject(record.ProjectID).WithFields(logrus.Fields{
		"user_id":  record.UserID,
		"role":     record.Role,
		"month":    record.Month.String(),
		"reviewer": actor.UserID,
	}).Info("запись KPI отклонена и удалена")
	return nil
}

func (s *KPIReviewService) ListMonthly(ctx context.Context, actor entity.Actor, filter repository.RecordFilter) ([]*entity.MonthlyRoleKPI, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	return s.kpis.ListMonthly(ctx, scopeFilter(actor, filter))
}

// EvaluateMonthly выставляет оценку сотруднику пула и явно пересчитывает значение
// из сохранённых оборота и коэффициента.
func (s *KPIReviewService) EvaluateMonthly(ctx context.Context, actor entity.Actor, id uuid.UUID, rawLevel string) (*entity.MonthlyRoleKPI, error) {
	if !actor.Can(entity.PermKPIEvaluate) {
		return nil, apperror.ErrForbidden
	}
	level, err := valueobject.NewEvaluationLevel(rawLevel)
	if err != nil {
		return nil, err
	}

	record, err := s.kpis.FindMonthlyByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := record.Evaluate(level, actor.UserID, time.Now().UTC()); err != nil {
		return nil, err
	}

	result := kpi.CalculatePooled(record.Role, record.CompanyTotal, record.Ratio, record.EvaluationLevel)
	record.Value = result.Value
	record.Formula = result.Formula

	if err := s.kpis.UpdateMonthly(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *KPIReviewService) ApproveMonthly(ctx context.Context, actor entity.Actor, id uuid.UUID) (*entity.MonthlyRoleKPI, error) {
	if !actor.Can(entity.PermKPIReview) {
		return nil, apperror.ErrForbidden
	}
	record, err := s.kpis.FindMonthlyByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := record.Approve(actor.UserID, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := s.kpis.UpdateMonthly(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *KPIReviewService) RejectMonthly(ctx context.Context, actor entity.Actor, id uuid.UUID) error {
	if !actor.Can(entity.PermKPIReview) {
		return apperror.ErrForbidden
	}
	record, err := s.kpis.FindMonthlyByID(ctx, id)
	if err != nil {
		return err
	}
	if record.ReviewStatus == valueobject.ReviewApproved {
		return apperror.Conflict("утверждённую месячную запись KPI нельзя отклонить")
	}
	return s.kpis.DeleteMonthly(ctx, id)
}
