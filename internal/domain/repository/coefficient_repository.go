package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/translation-kpi/internal/domain/entity"
)

type CoefficientRepository interface {
	// GetActive возвращает текущий реестр; если он ещё не сохранялся, nil без ошибки.
	GetActive(ctx context.Context) (*entity.CoefficientRegistry, error)
	// Replace заменяет реестр и дописывает запись в журнал в одной транзакции.
	Replace(ctx context.Context, registry *entity.CoefficientRegistry, change *entity.CoefficientChange) error
	ListHistory(ctx context.Context, limit, offset int) ([]*entity.CoefficientChange, int, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, notification *entity.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Notification, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]entity.Notification, error)
	MarkAsRead(ctx context.Context, id uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}
