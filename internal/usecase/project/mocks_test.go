package project_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/translation-kpi/internal/domain/entity"
	"github.com/ignatzorin/translation-kpi/internal/domain/repository"
	"github.com/ignatzorin/translation-kpi/internal/domain/valueobject"
	"github.com/ignatzorin/translation-kpi/internal/pkg/apperror"
	"github.com/ignatzorin/translation-kpi/internal/service"
)

type mockProjectRepository struct {
	mu       sync.Mutex
	locks    map[uuid.UUID]*sync.Mutex
	projects map[uuid.UUID]*entity.Project
	members  map[uuid.UUID][]*entity.ProjectMember
	history  map[uuid.UUID][]*entity.StatusChange
}

func newMockProjectRepository() *mockProjectRepository {
	return &mockProjectRepository{
		locks:    make(map[uuid.UUID]*sync.Mutex),
		projects: make(map[uuid.UUID]*entity.Project),
		members:  make(map[uuid.UUID][]*entity.ProjectMember),
		history:  make(map[uuid.UUID][]*entity.StatusChange),
	}
}

func copyProject(p *entity.Project) *entity.Project {
	cp := *p
	cp.LockedRatios = p.LockedRatios.Clone()
	return &cp
}

func copyMember(m *entity.ProjectMember) *entity.ProjectMember {
	cp := *m
	return &cp
}

func (m *mockProjectRepository) projectLock(id uuid.UUID) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

func (m *mockProjectRepository) Create(ctx context.Context, p *entity.Project, members []*entity.ProjectMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = copyProject(p)
	for _, mem := range members {
		m.members[p.ID] = append(m.members[p.ID], copyMember(mem))
	}
	return nil
}

func (m *mockProjectRepository) WithLock(ctx context.Context, projectID uuid.UUID, fn func(ctx context.Context, store repository.ProjectStore) error) error {
	l := m.projectLock(projectID)
	l.Lock()
	defer l.Unlock()

	store := &mockProjectStore{repo: m, projectID: projectID}
	if err := fn(ctx, store); err != nil {
		return err
	}
	store.commit()
	return nil
}

func (m *mockProjectRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, apperror.ErrProjectNotFound
	}
	return copyProject(p), nil
}

func (m *mockProjectRepository) FindMembers(ctx context.Context, projectID uuid.UUID) ([]*entity.ProjectMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.ProjectMember, 0, len(m.members[projectID]))
	for _, mem := range m.members[projectID] {
		out = append(out, copyMember(mem))
	}
	return out, nil
}

func (m *mockProjectRepository) FindMemberByID(ctx context.Context, memberID uuid.UUID) (*entity.ProjectMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, members := range m.members {
		for _, mem := range members {
			if mem.ID == memberID {
				return copyMember(mem), nil
			}
		}
	}
	return nil, apperror.ErrMemberNotFound
}

func (m *mockProjectRepository) List(ctx context.Context, filter repository.ProjectFilter) ([]*entity.Project, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*entity.Project
	for _, p := range m.projects {
		if filter.Status != "" && string(p.Status) != filter.Status {
			continue
		}
		if filter.CreatedBy != nil && p.CreatedBy != *filter.CreatedBy && !(filter.MemberID != nil && m.hasMember(p.ID, *filter.MemberID)) {
			continue
		}
		result = append(result, copyProject(p))
	}
	return result, len(result), nil
}

func (m *mockProjectRepository) hasMember(projectID, userID uuid.UUID) bool {
	for _, mem := range m.members[projectID] {
		if mem.UserID == userID {
			return true
		}
	}
	return false
}

func (m *mockProjectRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Project, error) {
	var result []*entity.Project
	for _, id := range ids {
		p, err := m.FindByID(ctx, id)
		if err == nil {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *mockProjectRepository) FindMembersByProjectIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]*entity.ProjectMember, error) {
	result := make(map[uuid.UUID][]*entity.ProjectMember, len(ids))
	for _, id := range ids {
		members, _ := m.FindMembers(ctx, id)
		result[id] = members
	}
	return result, nil
}

func (m *mockProjectRepository) FindCompletedBetween(ctx context.Context, from, to time.Time) ([]*entity.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*entity.Project
	for _, p := range m.projects {
		if p.Status == valueobject.ProjectStatusCompleted && p.CompletedAt != nil &&
			!p.CompletedAt.Before(from) && p.CompletedAt.Before(to) {
			result = append(result, copyProject(p))
		}
	}
	return result, nil
}

func (m *mockProjectRepository) ListProjectIDsForMember(ctx context.Context, userID uuid.UUID, role valueobject.Role) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for projectID, members := range m.members {
		for _, mem := range members {
			if mem.UserID == userID && mem.Role == role {
				ids = append(ids, projectID)
				break
			}
		}
	}
	return ids, nil
}

func (m *mockProjectRepository) ListStatusHistory(ctx context.Context, projectID uuid.UUID) ([]*entity.StatusChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entity.StatusChange(nil), m.history[projectID]...), nil
}

// mockProjectStore копит изменения и применяет их только при успехе fn.
type mockProjectStore struct {
	repo      *mockProjectRepository
	projectID uuid.UUID
	project   *entity.Project
	upserts   []*entity.ProjectMember
	deletes   []uuid.UUID
	changes   []*entity.StatusChange
}

func (s *mockProjectStore) Project(ctx context.Context) (*entity.Project, error) {
	return s.repo.FindByID(ctx, s.projectID)
}

func (s *mockProjectStore) Members(ctx context.Context) ([]*entity.ProjectMember, error) {
	return s.repo.FindMembers(ctx, s.projectID)
}

func (s *mockProjectStore) Update(ctx context.Context, p *entity.Project) error {
	s.project = copyProject(p)
	return nil
}

func (s *mockProjectStore) AddMember(ctx context.Context, member *entity.ProjectMember) error {
	s.upserts = append(s.upserts, copyMember(member))
	return nil
}

func (s *mockProjectStore) UpdateMember(ctx context.Context, member *entity.ProjectMember) error {
	s.upserts = append(s.upserts, copyMember(member))
	return nil
}

func (s *mockProjectStore) DeleteMember(ctx context.Context, memberID uuid.UUID) error {
	s.deletes = append(s.deletes, memberID)
	return nil
}

func (s *mockProjectStore) AppendStatusChange(ctx context.Context, change *entity.StatusChange) error {
	s.changes = append(s.changes, change)
	return nil
}

func (s *mockProjectStore) commit() {
	r := s.repo
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.project != nil {
		r.projects[s.projectID] = s.project
	}
	members := r.members[s.projectID]
	for _, up := range s.upserts {
		replaced := false
		for i, existing := range members {
			if existing.ID == up.ID {
				members[i] = up
				replaced = true
				break
			}
		}
		if !replaced {
			members = append(members, up)
		}
	}
	for _, id := range s.deletes {
		for i, existing := range members {
			if existing.ID == id {
				members = append(members[:i], members[i+1:]...)
				break
			}
		}
	}
	r.members[s.projectID] = members
	r.history[s.projectID] = append(r.history[s.projectID], s.changes...)
}

type sentNotification struct {
	UserID uuid.UUID
	Event  string
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *mockNotifier) BroadcastToUser(userID uuid.UUID, event string, data interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{UserID: userID, Event: event})
	return nil
}

func (n *mockNotifier) received(userID uuid.UUID, event string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, s := range n.sent {
		if s.UserID == userID && s.Event == event {
			return true
		}
	}
	return false
}

type mockRatios struct{}

func (mockRatios) ActiveRatios(ctx context.Context) (entity.LockedRatios, error) {
	return entity.DefaultRatios(), nil
}

type mockCache struct {
	invalidations atomic.Int32
}

func (c *mockCache) InvalidatePreviews() {
	c.invalidations.Add(1)
}

type mockGenerator struct {
	mu    sync.Mutex
	calls []uuid.UUID
	fail  bool
}

func (g *mockGenerator) GenerateForProject(ctx context.Context, projectID uuid.UUID) (*service.GenerationReport, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, projectID)
	if g.fail {
		return nil, errors.New("база недоступна")
	}
	return &service.GenerationReport{ProjectsScanned: 1}, nil
}
