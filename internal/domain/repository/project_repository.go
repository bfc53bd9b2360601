package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/translation-kpi/internal/domain/entity"
	"github.com/ignatzorin/translation-kpi/internal/domain/valueobject"
)

// ProjectStore операции над одним проектом внутри блокировки.
type ProjectStore interface {
	Project(ctx context.Context) (*entity.Project, error)
	Members(ctx context.Context) ([]*entity.ProjectMember, error)
	Update(ctx context.Context, project *entity.Project) error
	AddMember(ctx context.Context, member *entity.ProjectMember) error
	UpdateMember(ctx context.Context, member *entity.ProjectMember) error
	DeleteMember(ctx context.Context, memberID uuid.UUID) error
	AppendStatusChange(ctx context.Context, change *entity.StatusChange) error
}

type ProjectRepository interface {
	Create(ctx context.Context, project *entity.Project, members []*entity.ProjectMember) error
	// WithLock выполняет fn под эксклюзивной блокировкой проекта.
	// Ошибка fn откатывает все изменения.
	WithLock(ctx context.Context, projectID uuid.UUID, fn func(ctx context.Context, store ProjectStore) error) error

	FindByID(ctx context.Context, id uuid.UUID) (*entity.Project, error)
	FindMembers(ctx context.Context, projectID uuid.UUID) ([]*entity.ProjectMember, error)
	FindMemberByID(ctx context.Context, memberID uuid.UUID) (*entity.ProjectMember, error)
	List(ctx context.Context, filter ProjectFilter) ([]*entity.Project, int, error)

	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Project, error)
	FindMembersByProjectIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]*entity.ProjectMember, error)
	// FindCompletedBetween возвращает проекты, завершённые в [from, to).
	FindCompletedBetween(ctx context.Context, from, to time.Time) ([]*entity.Project, error)
	ListProjectIDsForMember(ctx context.Context, userID uuid.UUID, role valueobject.Role) ([]uuid.UUID, error)

	ListStatusHistory(ctx context.Context, projectID uuid.UUID) ([]*entity.StatusChange, error)
}

type ProjectFilter struct {
	Status    string
	CreatedBy *uuid.UUID
	MemberID  *uuid.UUID
	Limit     int
	Offset    int
}
