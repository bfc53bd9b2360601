package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/translation-kpi/internal/domain/entity"
	"github.com/ignatzorin/translation-kpi/internal/domain/repository"
	"github.com/ignatzorin/translation-kpi/internal/domain/valueobject"
	"github.com/ignatzorin/translation-kpi/internal/pkg/apperror"
)

var errBatchUnavailable = errors.New("пакетный запрос недоступен")

// memProjectRepo хранилище проектов только для чтения.
type memProjectRepo struct {
	mu             sync.Mutex
	projects       map[uuid.UUID]*entity.Project
	members        map[uuid.UUID][]*entity.ProjectMember
	failBatch      bool
	completedCalls int
	batchCalls     int
	singleLookups  int
}

func newMemProjectRepo() *memProjectRepo {
	return &memProjectRepo{
		projects: make(map[uuid.UUID]*entity.Project),
		members:  make(map[uuid.UUID][]*entity.ProjectMember),
	}
}

func (r *memProjectRepo) add(p *entity.Project, members ...*entity.ProjectMember) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projects[p.ID] = p
	for _, m := range members {
		m.ProjectID = p.ID
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		if m.LockedRatios.CompletionBase == 0 {
			m.LockedRatios = p.LockedRatios.Clone()
		}
		if m.WorkloadRatio == 0 {
			m.WorkloadRatio = 1
		}
		if m.Acceptance == "" {
			m.Acceptance = valueobject.AcceptanceAccepted
		}
		r.members[p.ID] = append(r.members[p.ID], m)
	}
}

func (r *memProjectRepo) Create(ctx context.Context, p *entity.Project, members []*entity.ProjectMember) error {
	r.add(p, members...)
	return nil
}

func (r *memProjectRepo) WithLock(ctx context.Context, projectID uuid.UUID, fn func(ctx context.Context, store repository.ProjectStore) error) error {
	return errors.New("не используется в тестах сервисов")
}

func (r *memProjectRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.singleLookups++
	p, ok := r.projects[id]
	if !ok {
		return nil, apperror.ErrProjectNotFound
	}
	return p, nil
}

func (r *memProjectRepo) FindMembers(ctx context.Context, projectID uuid.UUID) ([]*entity.ProjectMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*entity.ProjectMember(nil), r.members[projectID]...), nil
}

func (r *memProjectRepo) FindMemberByID(ctx context.Context, memberID uuid.UUID) (*entity.ProjectMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, members := range r.members {
		for _, m := range members {
			if m.ID == memberID {
				return m, nil
			}
		}
	}
	return nil, apperror.ErrMemberNotFound
}

func (r *memProjectRepo) List(ctx context.Context, filter repository.ProjectFilter) ([]*entity.Project, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Project
	for _, p := range r.projects {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (r *memProjectRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batchCalls++
	if r.failBatch {
		return nil, errBatchUnavailable
	}
	var out []*entity.Project
	for _, id := range ids {
		if p, ok := r.projects[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memProjectRepo) FindMembersByProjectIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]*entity.ProjectMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uuid.UUID][]*entity.ProjectMember, len(ids))
	for _, id := range ids {
		out[id] = append([]*entity.ProjectMember(nil), r.members[id]...)
	}
	return out, nil
}

func (r *memProjectRepo) FindCompletedBetween(ctx context.Context, from, to time.Time) ([]*entity.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completedCalls++
	var out []*entity.Project
	for _, p := range r.projects {
		if p.Status == valueobject.ProjectStatusCompleted && p.CompletedAt != nil &&
			!p.CompletedAt.Before(from) && p.CompletedAt.Before(to) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memProjectRepo) ListProjectIDsForMember(ctx context.Context, userID uuid.UUID, role valueobject.Role) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uuid.UUID
	for projectID, members := range r.members {
		for _, m := range members {
			if m.UserID == userID && m.Role == role && m.Acceptance != valueobject.AcceptanceRejected {
				ids = append(ids, projectID)
				break
			}
		}
	}
	return ids, nil
}

func (r *memProjectRepo) ListStatusHistory(ctx context.Context, projectID uuid.UUID) ([]*entity.StatusChange, error) {
	return nil, nil
}

// memKPIRepo журнал KPI в памяти. beforeScan позволяет задержать генерацию.
type memKPIRepo struct {
	mu         sync.Mutex
	records    map[uuid.UUID]*entity.KPIRecord
	monthly    map[uuid.UUID]*entity.MonthlyRoleKPI
	lastFilter repository.RecordFilter
	beforeScan func()
}

func newMemKPIRepo() *memKPIRepo {
	return &memKPIRepo{
		records: make(map[uuid.UUID]*entity.KPIRecord),
		monthly: make(map[uuid.UUID]*entity.MonthlyRoleKPI),
	}
}

func (r *memKPIRepo) ExistingRecordKeys(ctx context.Context, month valueobject.Month) (map[entity.RecordKey]struct{}, error) {
	if r.beforeScan != nil {
		r.beforeScan()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make(map[entity.RecordKey]struct{})
	for _, rec := range r.records {
		if rec.Month == month {
			keys[rec.Key()] = struct{}{}
		}
	}
	return keys, nil
}

func (r *memKPIRepo) InsertRecord(ctx context.Context, record *entity.KPIRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.Key() == record.Key() {
			return false, nil
		}
	}
	cp := *record
	r.records[record.ID] = &cp
	return true, nil
}

func (r *memKPIRepo) FindRecordByID(ctx context.Context, id uuid.UUID) (*entity.KPIRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, apperror.ErrKPIRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *memKPIRepo) ListRecords(ctx context.Context, filter repository.RecordFilter) ([]*entity.KPIRecord, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastFilter = filter
	var out []*entity.KPIRecord
	for _, rec := range r.records {
		if filter.UserID != nil && rec.UserID != *filter.UserID {
			continue
		}
		if filter.Role != "" && rec.Role != filter.Role {
			continue
		}
		if filter.Month != "" && rec.Month != filter.Month {
			continue
		}
		out = append(out, rec)
	}
	return out, len(out), nil
}

func (r *memKPIRepo) UpdateRecordReview(ctx context.Context, record *entity.KPIRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *record
	r.records[record.ID] = &cp
	return nil
}

func (r *memKPIRepo) DeleteRecord(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, id)
	return nil
}

func (r *memKPIRepo) ExistingMonthlyKeys(ctx context.Context, month valueobject.Month) (map[entity.MonthlyRoleKey]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make(map[entity.MonthlyRoleKey]struct{})
	for _, rec := range r.monthly {
		if rec.Month == month {
			keys[rec.Key()] = struct{}{}
		}
	}
	return keys, nil
}

func (r *memKPIRepo) InsertMonthly(ctx context.Context, record *entity.MonthlyRoleKPI) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.monthly {
		if rec.Key() == record.Key() {
			return false, nil
		}
	}
	cp := *record
	r.monthly[record.ID] = &cp
	return true, nil
}

func (r *memKPIRepo) FindMonthlyByID(ctx context.Context, id uuid.UUID) (*entity.MonthlyRoleKPI, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.monthly[id]
	if !ok {
		return nil, apperror.ErrMonthlyRoleKPINotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *memKPIRepo) ListMonthly(ctx context.Context, filter repository.RecordFilter) ([]*entity.MonthlyRoleKPI, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastFilter = filter
	var out []*entity.MonthlyRoleKPI
	for _, rec := range r.monthly {
		if filter.UserID != nil && rec.UserID != *filter.UserID {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *memKPIRepo) UpdateMonthly(ctx context.Context, record *entity.MonthlyRoleKPI) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *record
	r.monthly[record.ID] = &cp
	return nil
}

func (r *memKPIRepo) DeleteMonthly(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.monthly, id)
	return nil
}

func (r *memKPIRepo) recordsFor(role valueobject.Role) []*entity.KPIRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.KPIRecord
	for _, rec := range r.records {
		if rec.Role == role {
			out = append(out, rec)
		}
	}
	return out
}

type mockStaffDirectory struct {
	mock.Mock
}

func (m *mockStaffDirectory) ListActiveUsers(ctx context.Context, role valueobject.Role) ([]uuid.UUID, error) {
	args := m.Called(ctx, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

type mockCoefficientRepo struct {
	mock.Mock
}

func (m *mockCoefficientRepo) GetActive(ctx context.Context) (*entity.CoefficientRegistry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.CoefficientRegistry), args.Error(1)
}

func (m *mockCoefficientRepo) Replace(ctx context.Context, registry *entity.CoefficientRegistry, change *entity.CoefficientChange) error {
	args := m.Called(ctx, registry, change)
	return args.Error(0)
}

func (m *mockCoefficientRepo) ListHistory(ctx context.Context, limit, offset int) ([]*entity.CoefficientChange, int, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]*entity.CoefficientChange), args.Int(1), args.Error(2)
}

// staticRatios действующие коэффициенты по умолчанию.
type staticRatios struct{}

func (staticRatios) GetActive(ctx context.Context) (*entity.CoefficientRegistry, error) {
	return &entity.CoefficientRegistry{Ratios: entity.DefaultRatios()}, nil
}

func completedProject(amount float64, completedAt time.Time) *entity.Project {
	done := completedAt
	return &entity.Project{
		ID:           uuid.New(),
		Name:         "Проект " + completedAt.Format("2006-01-02"),
		Amount:       amount,
		Status:       valueobject.ProjectStatusCompleted,
		CompletedAt:  &done,
		Payment:      entity.Payment{Status: valueobject.PaymentPaid},
		LockedRatios: entity.DefaultRatios(),
		CreatedBy:    uuid.New(),
	}
}

func activeProject(amount float64) *entity.Project {
	return &entity.Project{
		ID:           uuid.New(),
		Name:         "Активный проект",
		Amount:       amount,
		Status:       valueobject.ProjectStatusInProgress,
		Payment:      entity.Payment{Status: valueobject.PaymentUnpaid},
		LockedRatios: entity.DefaultRatios(),
		CreatedBy:    uuid.New(),
	}
}

func member(userID uuid.UUID, role valueobject.Role) *entity.ProjectMember {
	m := &entity.ProjectMember{UserID: userID, Role: role}
	if role == valueobject.RoleTranslator {
		m.TranslatorType = valueobject.TranslatorMTPE
	}
	return m
}
