package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ignatzorin/translation-kpi/internal/domain/entity"
	"github.com/ignatzorin/translation-kpi/internal/domain/kpi"
	"github.com/ignatzorin/translation-kpi/internal/domain/repository"
	"github.com/ignatzorin/translation-kpi/internal/domain/valueobject"
	"github.com/ignatzorin/translation-kpi/internal/logger"
	"github.com/ignatzorin/translation-kpi/internal/pkg/apperror"
)

// MemberPreview предварительный KPI участника, не сохраняется.
type MemberPreview struct {
	ProjectID uuid.UUID        `json:"project_id"`
	MemberID  uuid.UUID        `json:"member_id"`
	UserID    uuid.UUID        `json:"user_id"`
	Role      valueobject.Role `json:"role"`
	kpi.Result
	Error string `json:"error,omitempty"`
}

type DashboardItem struct {
	ProjectID   uuid.UUID                 `json:"project_id"`
	ProjectName string                    `json:"project_name"`
	Status      valueobject.ProjectStatus `json:"status"`
	kpi.Result
}

// Dashboard сводка KPI пользователя в выбранной роли за месяц.
type Dashboard struct {
	Month     valueobject.Month `json:"month"`
	Role      valueobject.Role  `json:"role"`
	Items     []DashboardItem   `json:"items"`
	Total     float64           `json:"total"`
	Estimated bool              `json:"estimated"`
}

// KPIPreviewService считает KPI на лету для дашбордов и оценок до завершения.
type KPIPreviewService struct {
	projects repository.ProjectRepository
	ratios   RatiosProvider
	cache    *CacheService
	cacheTTL time.Duration
	loc      *time.Location
}

func NewKPIPreviewService(projects repository.ProjectRepository, ratios RatiosProvider, cache *CacheService, cacheTTL time.Duration, loc *time.Location) *KPIPreviewService {
	if loc == nil {
		loc = time.UTC
	}
	return &KPIPreviewService{projects: projects, ratios: ratios, cache: cache, cacheTTL: cacheTTL, loc: loc}
}

// PreviewProject KPI всех участников проекта по текущим флагам качества.
// Без kpi.view_all возвращаются только строки самого пользователя.
func (s *KPIPreviewService) PreviewProject(ctx context.Context, actor entity.Actor, projectID uuid.UUID) ([]MemberPreview, error) {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	members, err := s.projects.FindMembers(ctx, projectID)
	if err != nil {
		return nil, err
	}

	viewAll := actor.Can(entity.PermKPIViewAll) || actor.IsAdmin() || project.IsCreatedBy(actor.UserID)
	rows := previewMembers(project, members, actor, viewAll)
	if !viewAll && len(rows) == 0 {
		return nil, apperror.ErrForbidden
	}
	return rows, nil
}

// PreviewBatch считает KPI набора проектов двумя запросами вместо запроса на
// каждый проект; при ошибке пакетной выборки переходит на выборку по одному.
func (s *KPIPreviewService) PreviewBatch(ctx context.Context, actor entity.Actor, projectIDs []uuid.UUID) (map[uuid.UUID][]MemberPreview, error) {
	ids := uniqueIDs(projectIDs)
	if len(ids) == 0 {
		return map[uuid.UUID][]MemberPreview{}, nil
	}

	projects, membersByProject, err := s.loadBatch(ctx, ids)
	if err != nil {
		logger.Log.WithError(err).WithField("projects", len(ids)).Warn("пакетная выборка не удалась, считаем по одному проекту")
		projects, membersByProject, err = s.loadOneByOne(ctx, ids)
		if err != nil {
			return nil, err
		}
	}

	viewAll := actor.Can(entity.PermKPIViewAll) || actor.IsAdmin()
	result := make(map[uuid.UUID][]MemberPreview, len(projects))
	for _, p := range projects {
		rows := previewMembers(p, membersByProject[p.ID], actor, viewAll || p.IsCreatedBy(actor.UserID))
		if len(rows) > 0 {
			result[p.ID] = rows
		}
	}
	return result, nil
}

func (s *KPIPreviewService) loadBatch(ctx context.Context, ids []uuid.UUID) ([]*entity.Project, map[uuid.UUID][]*entity.ProjectMember, error) {
	var (
		projects []*entity.Project
		members  map[uuid.UUID][]*entity.ProjectMember
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		projects, err = s.projects.FindByIDs(gctx, ids)
		return err
	})
	g.Go(func() error {
		var err error
		members, err = s.projects.FindMembersByProjectIDs(gctx, ids)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return projects, members, nil
}

func (s *KPIPreviewService) loadOneByOne(ctx context.Context, ids []uuid.UUID) ([]*entity.Project, map[uuid.UUID][]*entity.ProjectMember, error) {
	projects := make([]*entity.Project, 0, len(ids))
	members := make(map[uuid.UUID][]*entity.ProjectMember, len(ids))

	for _, id := range ids {
		p, err := s.projects.FindByID(ctx, id)
		if err != nil {
			if apperror.IsNotFound(err) {
				continue
			}
			return nil, nil, err
		}
		ms, err := s.projects.FindMembers(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		projects = append(projects, p)
		members[id] = ms
	}
	return projects, members, nil
}

// PreviewDashboard KPI пользователя в выбранной роли за месяц. Для ролей пула
// берётся оборот компании за месяц и коэффициент оценки 1.0 с пометкой estimated.
func (s *KPIPreviewService) PreviewDashboard(ctx context.Context, actor entity.Actor, rawMonth string) (*Dashboard, error) {
	month, err := valueobject.ParseMonth(rawMonth)
	if err != nil {
		return nil, err
	}
	if actor.Role == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "не выбрана роль")
	}

	key := PreviewDashboardCacheKey(actor.UserID, actor.Role, month, false)
	value, err := s.cache.GetOrSet(ctx, key, s.cacheTTL, func() (interface{}, error) {
		if actor.Role.IsPooled() {
			return s.pooledDashboard(ctx, actor, month)
		}
		return s.projectDashboard(ctx, actor, month)
	})
	if err != nil {
		return nil, err
	}
	return value.(*Dashboard), nil
}

func (s *KPIPreviewService) pooledDashboard(ctx context.Context, actor entity.Actor, month valueobject.Month) (*Dashboard, error) {
	from, to := month.Window(s.loc)
	projects, err := s.projects.FindCompletedBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, p := range projects {
		total = total.Add(decimal.NewFromFloat(p.Amount))
	}

	registry, err := s.ratios.GetActive(ctx)
	if err != nil {
		return nil, err
	}

	result := kpi.CalculatePooled(actor.Role, total.Round(2).InexactFloat64(), registry.Ratios.ForRole(actor.Role), nil)
	return &Dashboard{
		Month:     month,
		Role:      actor.Role,
		Items:     []DashboardItem{{Result: result}},
		Total:     result.Value,
		Estimated: true,
	}, nil
}

func (s *KPIPreviewService) projectDashboard(ctx context.Context, actor entity.Actor, month valueobject.Month) (*Dashboard, error) {
	ids, err := s.projects.ListProjectIDsForMember(ctx, actor.UserID, actor.Role)
	if err != nil {
		return nil, err
	}

	dashboard := &Dashboard{Month: month, Role: actor.Role, Items: []DashboardItem{}}
	if len(ids) == 0 {
		return dashboard, nil
	}

	projects, membersByProject, err := s.loadBatch(ctx, ids)
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", actor.UserID).Warn("пакетная выборка дашборда не удалась, считаем по одному проекту")
		projects, membersByProject, err = s.loadOneByOne(ctx, ids)
		if err != nil {
			return nil, err
		}
	}

	total := decimal.Zero
	for _, p := range projects {
		if !s.inDashboardMonth(p, month) {
			continue
		}
		for _, m := range membersByProject[p.ID] {
			if m.UserID != actor.UserID || m.Role != actor.Role || m.Acceptance == valueobject.AcceptanceRejected {
				continue
			}
			result, err := kpi.Calculate(kpi.InputForMember(p, m))
			if err != nil {
				continue
			}
			dashboard.Items = append(dashboard.Items, DashboardItem{
				ProjectID:   p.ID,
				ProjectName: p.Name,
				Status:      p.Status,
				Result:      result,
			})
			total = total.Add(decimal.NewFromFloat(result.Value))
			if p.Status != valueobject.ProjectStatusCompleted {
				dashboard.Estimated = true
			}
		}
	}
	dashboard.Total = total.Round(2).InexactFloat64()
	return dashboard, nil
}

// inDashboardMonth: завершённые проекты попадают в месяц завершения, активные в текущую сводку.
func (s *KPIPreviewService) inDashboardMonth(p *entity.Project, month valueobject.Month) bool {
	switch p.Status {
	case valueobject.ProjectStatusCancelled:
		return false
	case valueobject.ProjectStatusCompleted:
		return p.CompletedAt != nil && valueobject.MonthOf(*p.CompletedAt, s.loc) == month
	}
	return true
}

func previewMembers(p *entity.Project, members []*entity.ProjectMember, actor entity.Actor, viewAll bool) []MemberPreview {
	rows := make([]MemberPreview, 0, len(members))
	for _, m := range members {
		if !viewAll && m.UserID != actor.UserID {
			continue
		}
		row := MemberPreview{ProjectID: p.ID, MemberID: m.ID, UserID: m.UserID, Role: m.Role}
		if m.Role.IsPooled() {
			row.Error = "KPI роли пула считается по обороту компании за месяц"
			rows = append(rows, row)
			continue
		}
		result, err := kpi.Calculate(kpi.InputForMember(p, m))
		if err != nil {
			row.Error = err.Error()
		} else {
			row.Result = result
		}
		rows = append(rows, row)
	}
	return rows
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == uuid.Nil {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
