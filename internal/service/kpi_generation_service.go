package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/translation-kpi/internal/domain/entity"
	"github.com/ignatzorin/translation-kpi/internal/domain/kpi"
	"github.com/ignatzorin/translation-kpi/internal/domain/repository"
	"github.com/ignatzorin/translation-kpi/internal/domain/valueobject"
	"github.com/ignatzorin/translation-kpi/internal/infrastructure/lock"
	"github.com/ignatzorin/translation-kpi/internal/logger"
	"github.com/ignatzorin/translation-kpi/internal/pkg/apperror"
)

// GenerationLocker эксклюзивная метка "генерация месяца уже идёт".
type GenerationLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (lock.ReleaseFunc, error)
}

// RatiosProvider источник действующих коэффициентов.
type RatiosProvider interface {
	GetActive(ctx context.Context) (*entity.CoefficientRegistry, error)
}

// GenerationReport итог генерации. Ошибки по отдельным участникам не прерывают батч.
type GenerationReport struct {
	Month           valueobject.Month `json:"month"`
	ProjectsScanned int               `json:"projects_scanned"`
	CompanyTotal    float64           `json:"company_total"`
	Created         int               `json:"created"`
	Skipped         int               `json:"skipped"`
	PooledCreated   int               `json:"pooled_created"`
	PooledSkipped   int               `json:"pooled_skipped"`
	Errors          []GenerationError `json:"errors"`
}

type GenerationError struct {
	ProjectID *uuid.UUID       `json:"project_id,omitempty"`
	UserID    uuid.UUID        `json:"user_id"`
	Role      valueobject.Role `json:"role"`
	Message   string           `json:"message"`
}

func (r *GenerationReport) addError(projectID *uuid.UUID, userID uuid.UUID, role valueobject.Role, err error) {
	r.Errors = append(r.Errors, GenerationError{ProjectID: projectID, UserID: userID, Role: role, Message: err.Error()})
}

var pooledRoles = []valueobject.Role{valueobject.RoleAdminStaff, valueobject.RoleFinance}

// KPIGenerationService материализует записи KPI за месяц.
type KPIGenerationService struct {
	projects repository.ProjectRepository
	kpis     repository.KPIRepository
	staff    repository.StaffDirectory
	ratios   RatiosProvider
	locker   GenerationLocker
	loc      *time.Location
	lockTTL  time.Duration
}

func NewKPIGenerationService(
	projects repository.ProjectRepository,
	kpis repository.KPIRepository,
	staff repository.StaffDirectory,
	ratios RatiosProvider,
	locker GenerationLocker,
	loc *time.Location,
	lockTTL time.Duration,
) *KPIGenerationService {
	if loc == nil {
		loc = time.UTC
	}
	if lockTTL <= 0 {
		lockTTL = 30 * time.Minute
	}
	return &KPIGenerationService{
		projects: projects,
		kpis:     kpis,
		staff:    staff,
		ratios:   ratios,
		locker:   locker,
		loc:      loc,
		lockTTL:  lockTTL,
	}
}

func generationLockKey(month valueobject.Month) string {
	return "kpi:generate:" + month.String()
}

// GenerateMonth создаёт недостающие записи KPI за месяц. Существующие записи
// не перезаписываются; повторный запуск ничего не дублирует.
func (s *KPIGenerationService) GenerateMonth(ctx context.Context, actor entity.Actor, rawMonth string) (*GenerationReport, error) {
	if !actor.Can(entity.PermKPIGenerate) {
		return nil, apperror.ErrForbidden
	}
	month, err := valueobject.ParseMonth(rawMonth)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, generationLockKey(month), s.lockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	log := logger.WithMonth(month.String()).WithField("user_id", actor.UserID)
	log.Info("генерация KPI за месяц запущена")

	from, to := month.Window(s.loc)
	projects, err := s.projects.FindCompletedBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(projects))
	total := decimal.Zero
	for _, p := range projects {
		ids = append(ids, p.ID)
		total = total.Add(decimal.NewFromFloat(p.Amount))
	}

	membersByProject, err := s.projects.FindMembersByProjectIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	existing, err := s.kpis.ExistingRecordKeys(ctx, month)
	if err != nil {
		return nil, err
	}

	report := &GenerationReport{
		Month:           month,
		ProjectsScanned: len(projects),
		CompanyTotal:    total.Round(2).InexactFloat64(),
		Errors:          []GenerationError{},
	}

	pooledMembers := make(map[valueobject.Role]map[uuid.UUID]struct{})
	for _, p := range projects {
		members := membersByProject[p.ID]
		for _, m := range members {
			if m.Role.IsPooled() && m.Acceptance != valueobject.AcceptanceRejected {
				if pooledMembers[m.Role] == nil {
					pooledMembers[m.Role] = make(map[uuid.UUID]struct{})
				}
				pooledMembers[m.Role][m.UserID] = struct{}{}
			}
		}
		s.generateProject(ctx, p, members, month, existing, report)
	}

	if err := s.generatePooled(ctx, month, report.CompanyTotal, pooledMembers, report); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"projects":       report.ProjectsScanned,
		"created":        report.Created,
		"skipped":        report.Skipped,
		"pooled_created": report.PooledCreated,
		"errors":         len(report.Errors),
	}).Info("генерация KPI за месяц завершена")

	return report, nil
}

// GenerateForProject создаёт записи KPI завершённого проекта за месяц его завершения.
// Роли пула здесь не считаются: им нужен оборот за весь месяц.
func (s *KPIGenerationService) GenerateForProject(ctx context.Context, projectID uuid.UUID) (*GenerationReport, error) {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.Status != valueobject.ProjectStatusCompleted || project.CompletedAt == nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "KPI считается только для завершённых проектов")
	}

	members, err := s.projects.FindMembers(ctx, projectID)
	if err != nil {
		return nil, err
	}

	month := valueobject.MonthOf(*project.CompletedAt, s.loc)
	existing, err := s.kpis.ExistingRecordKeys(ctx, month)
	if err != nil {
		return nil, err
	}

	report := &GenerationReport{Month: month, ProjectsScanned: 1, Errors: []GenerationError{}}
	s.generateProject(ctx, project, members, month, existing, report)

	logger.WithProject(projectID).WithFields(logrus.Fields{
		"month":   month.String(),
		"created": report.Created,
		"skipped": report.Skipped,
		"errors":  len(report.Errors),
	}).Info("KPI проекта сгенерированы")

	return report, nil
}

// generateProject обрабатывает участников проекта последовательно.
func (s *KPIGenerationService) generateProject(
	ctx context.Context,
	project *entity.Project,
	members []*entity.ProjectMember,
	month valueobject.Month,
	existing map[entity.RecordKey]struct{},
	report *GenerationReport,
) {
	projectID := project.ID
	now := time.Now().UTC()

	for _, m := range members {
		if m.Role.IsPooled() || m.Acceptance == valueobject.AcceptanceRejected {
			continue
		}

		key := entity.RecordKey{UserID: m.UserID, ProjectID: projectID, Role: m.Role, Month: month}
		if _, ok := existing[key]; ok {
			report.Skipped++
			continue
		}

		input := kpi.InputForMember(project, m)
		result, err := kpi.Calculate(input)
		if err != nil {
			report.addError(&projectID, m.UserID, m.Role, err)
			continue
		}

		record := &entity.KPIRecord{
			ID:           uuid.New(),
			UserID:       m.UserID,
			ProjectID:    projectID,
			Role:         m.Role,
			Month:        month,
			Value:        result.Value,
			Formula:      result.Formula,
			Inputs:       result.Details,
			ReviewStatus: valueobject.ReviewPending,
			CreatedAt:    now,
		}

		created, err := s.kpis.InsertRecord(ctx, record)
		if err != nil {
			report.addError(&projectID, m.UserID, m.Role, err)
			continue
		}
		existing[key] = struct{}{}
		if created {
			report.Created++
		} else {
			report.Skipped++
		}
	}
}

func (s *KPIGenerationService) generatePooled(
	ctx context.Context,
	month valueobject.Month,
	companyTotal float64,
	fromProjects map[valueobject.Role]map[uuid.UUID]struct{},
	report *GenerationReport,
) error {
	registry, err := s.ratios.GetActive(ctx)
	if err != nil {
		return err
	}
	existing, err := s.kpis.ExistingMonthlyKeys(ctx, month)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, role := range pooledRoles {
		users, err := s.pooledStaff(ctx, role, fromProjects[role])
		if err != nil {
			report.addError(nil, uuid.Nil, role, fmt.Errorf("справочник сотрудников: %w", err))
			continue
		}

		ratio := registry.Ratios.ForRole(role)
		for _, userID := range users {
			key := entity.MonthlyRoleKey{UserID: userID, Month: month, Role: role}
			if _, ok := existing[key]; ok {
				report.PooledSkipped++
				continue
			}

			result := kpi.CalculatePooled(role, companyTotal, ratio, nil)
			record := &entity.MonthlyRoleKPI{
				ID:           uuid.New(),
				UserID:       userID,
				Month:        month,
				Role:         role,
				CompanyTotal: companyTotal,
				Ratio:        ratio,
				Value:        result.Value,
				Formula:      result.Formula,
				ReviewStatus: valueobject.ReviewPending,
				CreatedAt:    now,
			}

			created, err := s.kpis.InsertMonthly(ctx, record)
			if err != nil {
				report.addError(nil, userID, role, err)
				continue
			}
			existing[key] = struct{}{}
			if created {
				report.PooledCreated++
			} else {
				report.PooledSkipped++
			}
		}
	}
	return nil
}

// pooledStaff объединяет справочник и участников проектов в роли пула.
func (s *KPIGenerationService) pooledStaff(ctx context.Context, role valueobject.Role, fromProjects map[uuid.UUID]struct{}) ([]uuid.UUID, error) {
	directory, err := s.staff.ListActiveUsers(ctx, role)
	if err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]struct{}, len(directory)+len(fromProjects))
	users := make([]uuid.UUID, 0, len(directory)+len(fromProjects))
	for _, id := range directory {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			users = append(users, id)
		}
	}
	for id := range fromProjects {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			users = append(users, id)
		}
	}

	sort.Slice(users, func(i, j int) bool { return users[i].String() < users[j].String() })
	return users, nil
}
