package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/translation-kpi/internal/domain/entity"
	"github.com/ignatzorin/translation-kpi/internal/domain/repository"
	"github.com/ignatzorin/translation-kpi/internal/logger"
	"github.com/ignatzorin/translation-kpi/internal/pkg/apperror"
)

// CoefficientService действующий реестр коэффициентов и журнал его изменений.
type CoefficientService struct {
	repo repository.CoefficientRepository
}

func NewCoefficientService(repo repository.CoefficientRepository) *CoefficientService {
	return &CoefficientService{repo: repo}
}

// GetActive возвращает действующий реестр; пока он не сохранялся, действуют значения по умолчанию.
func (s *CoefficientService) GetActive(ctx context.Context) (*entity.CoefficientRegistry, error) {
	registry, err := s.repo.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	if registry == nil {
		return &entity.CoefficientRegistry{Ratios: entity.DefaultRatios()}, nil
	}
	return registry, nil
}

// ActiveRatios копия действующих коэффициентов для снимка проекта.
func (s *CoefficientService) ActiveRatios(ctx context.Context) (entity.LockedRatios, error) {
	registry, err := s.GetActive(ctx)
	if err != nil {
		return entity.LockedRatios{}, err
	}
	return registry.Ratios.Clone(), nil
}

// Update заменяет реестр и пишет журнал. Уже созданные проекты не затрагиваются.
func (s *CoefficientService) Update(ctx context.Context, actor entity.Actor, ratios entity.LockedRatios, reason string) (*entity.CoefficientRegistry, error) {
	if !actor.Can(entity.PermCoefficientManage) {
		return nil, apperror.ErrForbidden
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "укажите причину изменения коэффициентов")
	}
	if err := ratios.Validate(); err != nil {
		return nil, err
	}

	current, err := s.GetActive(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	updatedBy := actor.UserID
	registry := &entity.CoefficientRegistry{
		Ratios:    ratios.Clone(),
		UpdatedBy: &updatedBy,
		UpdatedAt: now,
	}
	change := &entity.CoefficientChange{
		ID:        uuid.New(),
		OldRatios: current.Ratios.Clone(),
		NewRatios: ratios.Clone(),
		Reason:    reason,
		ChangedBy: actor.UserID,
		CreatedAt: now,
	}

	if err := s.repo.Replace(ctx, registry, change); err != nil {
		return nil, err
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id": actor.UserID,
		"reason":  reason,
	}).Info("реестр коэффициентов обновлён")

	return registry, nil
}

func (s *CoefficientService) ListHistory(ctx context.Context, limit, offset int) ([]*entity.CoefficientChange, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListHistory(ctx, limit, offset)
}
