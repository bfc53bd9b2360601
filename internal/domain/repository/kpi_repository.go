package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/translation-kpi/internal/domain/entity"
	"github.com/ignatzorin/translation-kpi/internal/domain/valueobject"
)

// KPIRepository хранилище записей KPI. Insert-методы не перезаписывают
// существующие записи и возвращают false, если ключ уже занят.
type KPIRepository interface {
	ExistingRecordKeys(ctx context.Context, month valueobject.Month) (map[entity.RecordKey]struct{}, error)
	InsertRecord(ctx context.Context, record *entity.KPIRecord) (bool, error)
	FindRecordByID(ctx context.Context, id uuid.UUID) (*entity.KPIRecord, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]*entity.KPIRecord, int, error)
	UpdateRecordReview(ctx context.Context, record *entity.KPIRecord) error
	DeleteRecord(ctx context.Context, id uuid.UUID) error

	ExistingMonthlyKeys(ctx context.Context, month valueobject.Month) (map[entity.MonthlyRoleKey]struct{}, error)
	InsertMonthly(ctx context.Context, record *entity.MonthlyRoleKPI) (bool, error)
	FindMonthlyByID(ctx context.Context, id uuid.UUID) (*entity.MonthlyRoleKPI, error)
	ListMonthly(ctx context.Context, filter RecordFilter) ([]*entity.MonthlyRoleKPI, error)
	UpdateMonthly(ctx context.Context, record *entity.MonthlyRoleKPI) error
	DeleteMonthly(ctx context.Context, id uuid.UUID) error
}

type RecordFilter struct {
	UserID    *uuid.UUID
	ProjectID *uuid.UUID
	Role      valueobject.Role
	Month     valueobject.Month
	Limit     int
	Offset    int
}

// StaffDirectory внешний справочник сотрудников по ролям.
type StaffDirectory interface {
	ListActiveUsers(ctx context.Context, role valueobject.Role) ([]uuid.UUID, error)
}
