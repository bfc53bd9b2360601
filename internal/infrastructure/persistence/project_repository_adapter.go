package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/translation-kpi/internal/db"
	"github.com/ignatzorin/translation-kpi/internal/domain/entity"
	"github.com/ignatzorin/translation-kpi/internal/domain/repository"
	"github.com/ignatzorin/translation-kpi/internal/domain/valueobject"
	"github.com/ignatzorin/translation-kpi/internal/pkg/apperror"
	"github.com/ignatzorin/translation-kpi/internal/repository/common"
)

const projectColumns = `id, name, client_name, amount, status, deadline_at, started_at, completed_at,
	revision_count, is_delayed, has_complaint, received_amount, payment_status, company_receivable,
	pending_count, accepted_count, rejected_count, locked_ratios, created_by, created_at, updated_at`

const memberColumns = `id, project_id, user_id, role, translator_type, workload_ratio, part_time_fee,
	locked_ratios, acceptance_status, acceptance_at, rejection_reason, created_at`

type projectRow struct {
	ID                uuid.UUID  `db:"id"`
	Name              string     `db:"name"`
	ClientName        string     `db:"client_name"`
	Amount            float64    `db:"amount"`
	Status            string     `db:"status"`
	DeadlineAt        *time.Time `db:"deadline_at"`
	StartedAt         *time.Time `db:"started_at"`
	CompletedAt       *time.Time `db:"completed_at"`
	RevisionCount     int        `db:"revision_count"`
	IsDelayed         bool       `db:"is_delayed"`
	HasComplaint      bool       `db:"has_complaint"`
	ReceivedAmount    *float64   `db:"received_amount"`
	PaymentStatus     string     `db:"payment_status"`
	CompanyReceivable *float64   `db:"company_receivable"`
	PendingCount      int        `db:"pending_count"`
	AcceptedCount     int        `db:"accepted_count"`
	RejectedCount     int        `db:"rejected_count"`
	LockedRatios      []byte     `db:"locked_ratios"`
	CreatedBy         uuid.UUID  `db:"created_by"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

func (r projectRow) toEntity() (*entity.Project, error) {
	var ratios entity.LockedRatios
	if err := json.Unmarshal(r.LockedRatios, &ratios); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "повреждены коэффициенты проекта")
	}

	return &entity.Project{
		ID:          r.ID,
		Name:        r.Name,
		ClientName:  r.ClientName,
		Amount:      r.Amount,
		Status:      valueobject.ProjectStatus(r.Status),
		DeadlineAt:  r.DeadlineAt,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		Quality: entity.Quality{
			RevisionCount: r.RevisionCount,
			IsDelayed:     r.IsDelayed,
			HasComplaint:  r.HasComplaint,
		},
		Payment: entity.Payment{
			ReceivedAmount: r.ReceivedAmount,
			Status:         valueobject.PaymentStatus(r.PaymentStatus),
		},
		CompanyReceivable: r.CompanyReceivable,
		Acceptance: entity.AcceptanceSummary{
			Pending:  r.PendingCount,
			Accepted: r.AcceptedCount,
			Rejected: r.RejectedCount,
		},
		LockedRatios: ratios,
		CreatedBy:    r.CreatedBy,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}, nil
}

type memberRow struct {
	ID               uuid.UUID  `db:"id"`
	ProjectID        uuid.UUID  `db:"project_id"`
	UserID           uuid.UUID  `db:"user_id"`
	Role             string     `db:"role"`
	TranslatorType   *string    `db:"translator_type"`
	WorkloadRatio    float64    `db:"workload_ratio"`
	PartTimeFee      *float64   `db:"part_time_fee"`
	LockedRatios     []byte     `db:"locked_ratios"`
	AcceptanceStatus string     `db:"acceptance_status"`
	AcceptanceAt     *time.Time `db:"acceptance_at"`
	RejectionReason  *string    `db:"rejection_reason"`
	CreatedAt        time.Time  `db:"created_at"`
}

func (r memberRow) toEntity() (*entity.ProjectMember, error) {
	var ratios entity.LockedRatios
	if err := json.Unmarshal(r.LockedRatios, &ratios); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "повреждены коэффициенты участника")
	}

	m := &entity.ProjectMember{
		ID:            r.ID,
		ProjectID:     r.ProjectID,
		UserID:        r.UserID,
		Role:          valueobject.Role(r.Role),
		WorkloadRatio: r.WorkloadRatio,
		PartTimeFee:   r.PartTimeFee,
		LockedRatios:  ratios,
		Acceptance:    valueobject.AcceptanceStatus(r.AcceptanceStatus),
		AcceptanceAt:  r.AcceptanceAt,
		CreatedAt:     r.CreatedAt,
	}
	if r.TranslatorType != nil {
		m.TranslatorType = valueobject.TranslatorType(*r.TranslatorType)
	}
	if r.RejectionReason != nil {
		m.RejectionReason = *r.RejectionReason
	}
	return m, nil
}

type ProjectRepositoryAdapter struct {
	db *sqlx.DB
}

func NewProjectRepositoryAdapter(db *sqlx.DB) *ProjectRepositoryAdapter {
	return &ProjectRepositoryAdapter{db: db}
}

func (r *ProjectRepositoryAdapter) Create(ctx context.Context, project *entity.Project, members []*entity.ProjectMember) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		ratios, err := json.Marshal(project.LockedRatios)
		if err != nil {
			return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сериализовать коэффициенты")
		}

		query := `INSERT INTO projects (` + projectColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`
		_, err = tx.ExecContext(ctx, query,
			project.ID, project.Name, project.ClientName, project.Amount, string(project.Status),
			project.DeadlineAt, project.StartedAt, project.CompletedAt,
			project.Quality.RevisionCount, project.Quality.IsDelayed, project.Quality.HasComplaint,
			project.Payment.ReceivedAmount, string(project.Payment.Status), project.CompanyReceivable,
			project.Acceptance.Pending, project.Acceptance.Accepted, project.Acceptance.Rejected,
			ratios, project.CreatedBy, project.CreatedAt, project.UpdatedAt,
		)
		if err != nil {
			return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать проект")
		}

		if len(members) == 0 {
			return nil
		}

		inserter := common.NewBatchInserter(tx, `INSERT INTO project_members (`+memberColumns+`)`, "", 12, 50)
		for _, m := range members {
			args, err := memberArgs(m)
			if err != nil {
				return err
			}
			if err := inserter.Add(ctx, args...); err != nil {
				return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось добавить участников проекта")
			}
		}
		if err := inserter.Flush(ctx); err != nil {
			return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось добавить участников проекта")
		}
		return nil
	})
}

func (r *ProjectRepositoryAdapter) WithLock(ctx context.Context, projectID uuid.UUID, fn func(ctx context.Context, store repository.ProjectStore) error) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var locked uuid.UUID
		err := tx.GetContext(ctx, &locked, `SELECT id FROM projects WHERE id = $1 FOR UPDATE`, projectID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.ErrProjectNotFound
		}
		if err != nil {
			return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось заблокировать проект")
		}

		return fn(ctx, &projectStore{q: tx, projectID: projectID})
	})
}

func (r *ProjectRepositoryAdapter) FindByID(ctx context.Context, id uuid.UUID) (*entity.Project, error) {
	return findProject(ctx, r.db, id)
}

func (r *ProjectRepositoryAdapter) FindMembers(ctx context.Context, projectID uuid.UUID) ([]*entity.ProjectMember, error) {
	return findMembers(ctx, r.db, projectID)
}

func (r *ProjectRepositoryAdapter) FindMemberByID(ctx context.Context, memberID uuid.UUID) (*entity.ProjectMember, error) {
	var row memberRow
	err := r.db.GetContext(ctx, &row, `SELECT `+memberColumns+` FROM project_members WHERE id = $1`, memberID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrMemberNotFound
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить участника проекта")
	}
	return row.toEntity()
}

func (r *ProjectRepositoryAdapter) List(ctx context.Context, filter repository.ProjectFilter) ([]*entity.Project, int, error) {
	where := " WHERE 1 = 1"
	args := []interface{}{}
	argIndex := 1

	if filter.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, filter.Status)
		argIndex++
	}
	if filter.CreatedBy != nil && filter.MemberID != nil {
		where += fmt.Sprintf(" AND (created_by = $%d OR id IN (SELECT project_id FROM project_members WHERE user_id = $%d))", argIndex, argIndex+1)
		args = append(args, *filter.CreatedBy, *filter.MemberID)
		argIndex += 2
	} else if filter.CreatedBy != nil {
		where += fmt.Sprintf(" AND created_by = $%d", argIndex)
		args = append(args, *filter.CreatedBy)
		argIndex++
	} else if filter.MemberID != nil {
		where += fmt.Sprintf(" AND id IN (SELECT project_id FROM project_members WHERE user_id = $%d)", argIndex)
		args = append(args, *filter.MemberID)
		argIndex++
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM projects`+where, args...); err != nil {
		return nil, 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось посчитать проекты")
	}

	query := `SELECT ` + projectColumns + ` FROM projects` + where + ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filter.Limit)
		argIndex++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, filter.Offset)
	}

	projects, err := selectProjects(ctx, r.db, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return projects, total, nil
}

func (r *ProjectRepositoryAdapter) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Project, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = ANY($1)`
	return selectProjects(ctx, r.db, query, pq.Array(uuidStrings(ids)))
}

func (r *ProjectRepositoryAdapter) FindMembersByProjectIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]*entity.ProjectMember, error) {
	result := make(map[uuid.UUID][]*entity.ProjectMember, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := `SELECT ` + memberColumns + ` FROM project_members WHERE project_id = ANY($1) ORDER BY created_at, id`
	members, err := selectMembers(ctx, r.db, query, pq.Array(uuidStrings(ids)))
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		result[m.ProjectID] = append(result[m.ProjectID], m)
	}
	return result, nil
}

func (r *ProjectRepositoryAdapter) FindCompletedBetween(ctx context.Context, from, to time.Time) ([]*entity.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects
		WHERE status = 'completed' AND completed_at >= $1 AND completed_at < $2
		ORDER BY completed_at, id`
	return selectProjects(ctx, r.db, query, from, to)
}

func (r *ProjectRepositoryAdapter) ListProjectIDsForMember(ctx context.Context, userID uuid.UUID, role valueobject.Role) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := `SELECT DISTINCT project_id FROM project_members
		WHERE user_id = $1 AND role = $2 AND acceptance_status <> 'rejected'`
	if err := r.db.SelectContext(ctx, &ids, query, userID, string(role)); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить проекты участника")
	}
	return ids, nil
}

func (r *ProjectRepositoryAdapter) ListStatusHistory(ctx context.Context, projectID uuid.UUID) ([]*entity.StatusChange, error) {
	var rows []struct {
		ID        uuid.UUID  `db:"id"`
		ProjectID uuid.UUID  `db:"project_id"`
		From      string     `db:"from_status"`
		To        string     `db:"to_status"`
		ActorID   *uuid.UUID `db:"actor_id"`
		CreatedAt time.Time  `db:"created_at"`
	}
	query := `SELECT id, project_id, from_status, to_status, actor_id, created_at
		FROM project_status_history WHERE project_id = $1 ORDER BY created_at, id`
	if err := r.db.SelectContext(ctx, &rows, query, projectID); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить историю статусов")
	}

	history := make([]*entity.StatusChange, 0, len(rows))
	for _, row := range rows {
		history = append(history, &entity.StatusChange{
			ID:        row.ID,
			ProjectID: row.ProjectID,
			From:      valueobject.ProjectStatus(row.From),
			To:        valueobject.ProjectStatus(row.To),
			ActorID:   row.ActorID,
			CreatedAt: row.CreatedAt,
		})
	}
	return history, nil
}

// projectStore работает внутри транзакции, открытой WithLock.
type projectStore struct {
	q         sqlx.ExtContext
	projectID uuid.UUID
}

func (s *projectStore) Project(ctx context.Context) (*entity.Project, error) {
	return findProject(ctx, s.q, s.projectID)
}

func (s *projectStore) Members(ctx context.Context) ([]*entity.ProjectMember, error) {
	return findMembers(ctx, s.q, s.projectID)
}

func (s *projectStore) Update(ctx context.Context, p *entity.Project) error {
	query := `UPDATE projects SET
		name = $2, amount = $3, status = $4, deadline_at = $5, started_at = $6, completed_at = $7,
		revision_count = $8, is_delayed = $9, has_complaint = $10, received_amount = $11,
		payment_status = $12, company_receivable = $13, pending_count = $14, accepted_count = $15,
		rejected_count = $16, updated_at = $17
		WHERE id = $1`

	_, err := s.q.ExecContext(ctx, query,
		p.ID, p.Name, p.Amount, string(p.Status), p.DeadlineAt, p.StartedAt, p.CompletedAt,
		p.Quality.RevisionCount, p.Quality.IsDelayed, p.Quality.HasComplaint, p.Payment.ReceivedAmount,
		string(p.Payment.Status), p.CompanyReceivable, p.Acceptance.Pending, p.Acceptance.Accepted,
		p.Acceptance.Rejected, p.UpdatedAt,
	)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить проект")
	}
	return nil
}

func (s *projectStore) AddMember(ctx context.Context, m *entity.ProjectMember) error {
	args, err := memberArgs(m)
	if err != nil {
		return err
	}

	query := `INSERT INTO project_members (` + memberColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	if _, err := s.q.ExecContext(ctx, query, args...); err != nil {
		if db.IsUniqueViolation(err) {
			return apperror.ErrDuplicateMember
		}
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось добавить участника")
	}
	return nil
}

func (s *projectStore) UpdateMember(ctx context.Context, m *entity.ProjectMember) error {
	query := `UPDATE project_members
		SET acceptance_status = $2, acceptance_at = $3, rejection_reason = $4
		WHERE id = $1 AND project_id = $5`

	res, err := s.q.ExecContext(ctx, query, m.ID, string(m.Acceptance), m.AcceptanceAt, nullableString(m.RejectionReason), s.projectID)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить участника")
	}
	return expectAffected(res, apperror.ErrMemberNotFound)
}

func (s *projectStore) DeleteMember(ctx context.Context, memberID uuid.UUID) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM project_members WHERE id = $1 AND project_id = $2`, memberID, s.projectID)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось удалить участника")
	}
	return expectAffected(res, apperror.ErrMemberNotFound)
}

func (s *projectStore) AppendStatusChange(ctx context.Context, c *entity.StatusChange) error {
	query := `INSERT INTO project_status_history (id, project_id, from_status, to_status, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := s.q.ExecContext(ctx, query, c.ID, c.ProjectID, string(c.From), string(c.To), c.ActorID, c.CreatedAt); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось записать историю статусов")
	}
	return nil
}

func findProject(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (*entity.Project, error) {
	var row projectRow
	err := sqlx.GetContext(ctx, q, &row, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrProjectNotFound
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить проект")
	}
	return row.toEntity()
}

func findMembers(ctx context.Context, q sqlx.QueryerContext, projectID uuid.UUID) ([]*entity.ProjectMember, error) {
	query := `SELECT ` + memberColumns + ` FROM project_members WHERE project_id = $1 ORDER BY created_at, id`
	return selectMembers(ctx, q, query, projectID)
}

func selectProjects(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) ([]*entity.Project, error) {
	var rows []projectRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить проекты")
	}

	projects := make([]*entity.Project, 0, len(rows))
	for _, row := range rows {
		p, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, nil
}

func selectMembers(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) ([]*entity.ProjectMember, error) {
	var rows []memberRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить участников проекта")
	}

	members := make([]*entity.ProjectMember, 0, len(rows))
	for _, row := range rows {
		m, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, nil
}

func memberArgs(m *entity.ProjectMember) ([]interface{}, error) {
	ratios, err := json.Marshal(m.LockedRatios)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сериализовать коэффициенты")
	}
	return []interface{}{
		m.ID, m.ProjectID, m.UserID, string(m.Role), nullableString(string(m.TranslatorType)),
		m.WorkloadRatio, m.PartTimeFee, ratios, string(m.Acceptance), m.AcceptanceAt,
		nullableString(m.RejectionReason), m.CreatedAt,
	}, nil
}
