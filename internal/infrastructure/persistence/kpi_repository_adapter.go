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

	"github.com/ignatzorin/translation-kpi/internal/domain/entity"
	"github.com/ignatzorin/translation-kpi/internal/domain/repository"
	"github.com/ignatzorin/translation-kpi/internal/domain/valueobject"
	"github.com/ignatzorin/translation-kpi/internal/pkg/apperror"
)

const recordColumns = `id, user_id, project_id, role, month, value, formula, inputs,
	review_status, reviewed_by, reviewed_at, created_at`

const monthlyColumns = `id, user_id, month, role, company_total, ratio, evaluation_level, evaluated_by,
	evaluated_at, value, formula, review_status, reviewed_by, reviewed_at, created_at`

type recordRow struct {
	ID           uuid.UUID  `db:"id"`
	UserID       uuid.UUID  `db:"user_id"`
	ProjectID    uuid.UUID  `db:"project_id"`
	Role         string     `db:"role"`
	Month        string     `db:"month"`
	Value        float64    `db:"value"`
	Formula      string     `db:"formula"`
	Inputs       []byte     `db:"inputs"`
	ReviewStatus string     `db:"review_status"`
	ReviewedBy   *uuid.UUID `db:"reviewed_by"`
	ReviewedAt   *time.Time `db:"reviewed_at"`
	CreatedAt    time.Time  `db:"created_at"`
}

func (r recordRow) toEntity() *entity.KPIRecord {
	var inputs map[string]interface{}
	_ = json.Unmarshal(r.Inputs, &inputs)

	return &entity.KPIRecord{
		ID:           r.ID,
		UserID:       r.UserID,
		ProjectID:    r.ProjectID,
		Role:         valueobject.Role(r.Role),
		Month:        valueobject.Month(r.Month),
		Value:        r.Value,
		Formula:      r.Formula,
		Inputs:       inputs,
		ReviewStatus: valueobject.ReviewStatus(r.ReviewStatus),
		ReviewedBy:   r.ReviewedBy,
		ReviewedAt:   r.ReviewedAt,
		CreatedAt:    r.CreatedAt,
	}
}

type monthlyRow struct {
	ID              uuid.UUID  `db:"id"`
	UserID          uuid.UUID  `db:"user_id"`
	Month           string     `db:"month"`
	Role            string     `db:"role"`
	CompanyTotal    float64    `db:"company_total"`
	Ratio           float64    `db:"ratio"`
	EvaluationLevel *string    `db:"evaluation_level"`
	EvaluatedBy     *uuid.UUID `db:"evaluated_by"`
	EvaluatedAt     *time.Time `db:"evaluated_at"`
	Value           float64    `db:"value"`
	Formula         string     `db:"formula"`
	ReviewStatus    string     `db:"review_status"`
	ReviewedBy      *uuid.UUID `db:"reviewed_by"`
	ReviewedAt      *time.Time `db:"reviewed_at"`
	CreatedAt       time.Time  `db:"created_at"`
}

func (r monthlyRow) toEntity() *entity.MonthlyRoleKPI {
	m := &entity.MonthlyRoleKPI{
		ID:           r.ID,
		UserID:       r.UserID,
		Month:        valueobject.Month(r.Month),
		Role:         valueobject.Role(r.Role),
		CompanyTotal: r.CompanyTotal,
		Ratio:        r.Ratio,
		EvaluatedBy:  r.EvaluatedBy,
		EvaluatedAt:  r.EvaluatedAt,
		Value:        r.Value,
		Formula:      r.Formula,
		ReviewStatus: valueobject.ReviewStatus(r.ReviewStatus),
		ReviewedBy:   r.ReviewedBy,
		ReviewedAt:   r.ReviewedAt,
		CreatedAt:    r.CreatedAt,
	}
	if r.EvaluationLevel != nil {
		level := valueobject.EvaluationLevel(*r.EvaluationLevel)
		m.EvaluationLevel = &level
	}
	return m
}

type KPIRepositoryAdapter struct {
	db *sqlx.DB
}

func NewKPIRepositoryAdapter(db *sqlx.DB) *KPIRepositoryAdapter {
	return &KPIRepositoryAdapter{db: db}
}

func (r *KPIRepositoryAdapter) ExistingRecordKeys(ctx context.Context, month valueobject.Month) (map[entity.RecordKey]struct{}, error) {
	var rows []struct {
		UserID    uuid.UUID `db:"user_id"`
		ProjectID uuid.UUID `db:"project_id"`
		Role      string    `db:"role"`
	}
	query := `SELECT user_id, project_id, role FROM kpi_records WHERE month = $1`
	if err := r.db.SelectContext(ctx, &rows, query, month.String()); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить существующие записи KPI")
	}

	keys := make(map[entity.RecordKey]struct{}, len(rows))
	for _, row := range rows {
		keys[entity.RecordKey{UserID: row.UserID, ProjectID: row.ProjectID, Role: valueobject.Role(row.Role), Month: month}] = struct{}{}
	}
	return keys, nil
}

func (r *KPIRepositoryAdapter) InsertRecord(ctx context.Context, rec *entity.KPIRecord) (bool, error) {
	inputs, err := json.Marshal(rec.Inputs)
	if err != nil {
		return false, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сериализовать входные данные KPI")
	}

	query := `INSERT INTO kpi_records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_id, project_id, role, month) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.UserID, rec.ProjectID, string(rec.Role), rec.Month.String(), rec.Value, rec.Formula,
		inputs, string(rec.ReviewStatus), rec.ReviewedBy, rec.ReviewedAt, rec.CreatedAt,
	)
	if err != nil {
		return false, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось сохранить запись KPI")
	}
	return inserted(res)
}

func (r *KPIRepositoryAdapter) FindRecordByID(ctx context.Context, id uuid.UUID) (*entity.KPIRecord, error) {
	var row recordRow
	err := r.db.GetContext(ctx, &row, `SELECT `+recordColumns+` FROM kpi_records WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrKPIRecordNotFound
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить запись KPI")
	}
	return row.toEntity(), nil
}

func (r *KPIRepositoryAdapter) ListRecords(ctx context.Context, filter repository.RecordFilter) ([]*entity.KPIRecord, int, error) {
	where, args := recordWhere(filter, true)

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM kpi_records`+where, args...); err != nil {
		return nil, 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось посчитать записи KPI")
	}

	query := `SELECT ` + recordColumns + ` FROM kpi_records` + where + ` ORDER BY month DESC, created_at DESC`
	query, args = paginate(query, args, filter.Limit, filter.Offset)

	var rows []recordRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить записи KPI")
	}

	records := make([]*entity.KPIRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toEntity())
	}
	return records, total, nil
}

func (r *KPIRepositoryAdapter) UpdateRecordReview(ctx context.Context, rec *entity.KPIRecord) error {
	query := `UPDATE kpi_records SET review_status = $2, reviewed_by = $3, reviewed_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, rec.ID, string(rec.ReviewStatus), rec.ReviewedBy, rec.ReviewedAt)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить запись KPI")
	}
	return expectAffected(res, apperror.ErrKPIRecordNotFound)
}

func (r *KPIRepositoryAdapter) DeleteRecord(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM kpi_records WHERE id = $1`, id)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось удалить запись KPI")
	}
	return expectAffected(res, apperror.ErrKPIRecordNotFound)
}

func (r *KPIRepositoryAdapter) ExistingMonthlyKeys(ctx context.Context, month valueobject.Month) (map[entity.MonthlyRoleKey]struct{}, error) {
	var rows []struct {
		UserID uuid.UUID `db:"user_id"`
		Role   string    `db:"role"`
	}
	query := `SELECT user_id, role FROM monthly_role_kpis WHERE month = $1`
	if err := r.db.SelectContext(ctx, &rows, query, month.String()); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить месячные записи KPI")
	}

	keys := make(map[entity.MonthlyRoleKey]struct{}, len(rows))
	for _, row := range rows {
		keys[entity.MonthlyRoleKey{UserID: row.UserID, Month: month, Role: valueobject.Role(row.Role)}] = struct{}{}
	}
	return keys, nil
}

func (r *KPIRepositoryAdapter) InsertMonthly(ctx context.Context, rec *entity.MonthlyRoleKPI) (bool, error) {
	query := `INSERT INTO monthly_role_kpis (` + monthlyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (user_id, month, role) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, monthlyArgs(rec)...)
	if err != nil {
		return false, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось сохранить месячную запись KPI")
	}
	return inserted(res)
}

func (r *KPIRepositoryAdapter) FindMonthlyByID(ctx context.Context, id uuid.UUID) (*entity.MonthlyRoleKPI, error) {
	var row monthlyRow
	err := r.db.GetContext(ctx, &row, `SELECT `+monthlyColumns+` FROM monthly_role_kpis WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrMonthlyRoleKPINotFound
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить месячную запись KPI")
	}
	return row.toEntity(), nil
}

func (r *KPIRepositoryAdapter) ListMonthly(ctx context.Context, filter repository.RecordFilter) ([]*entity.MonthlyRoleKPI, error) {
	where, args := recordWhere(filter, false)
	query := `SELECT ` + monthlyColumns + ` FROM monthly_role_kpis` + where + ` ORDER BY month DESC, role, user_id`
	query, args = paginate(query, args, filter.Limit, filter.Offset)

	var rows []monthlyRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить месячные записи KPI")
	}

	records := make([]*entity.MonthlyRoleKPI, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toEntity())
	}
	return records, nil
}

func (r *KPIRepositoryAdapter) UpdateMonthly(ctx context.Context, rec *entity.MonthlyRoleKPI) error {
	query := `UPDATE monthly_role_kpis SET evaluation_level = $2, evaluated_by = $3, evaluated_at = $4,
		value = $5, formula = $6, review_status = $7, reviewed_by = $8, reviewed_at = $9
		WHERE id = $1`

	var level *string
	if rec.EvaluationLevel != nil {
		s := string(*rec.EvaluationLevel)
		level = &s
	}
	res, err := r.db.ExecContext(ctx, query, rec.ID, level, rec.EvaluatedBy, rec.EvaluatedAt,
		rec.Value, rec.Formula, string(rec.ReviewStatus), rec.ReviewedBy, rec.ReviewedAt)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить месячную запись KPI")
	}
	return expectAffected(res, apperror.ErrMonthlyRoleKPINotFound)
}

func (r *KPIRepositoryAdapter) DeleteMonthly(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM monthly_role_kpis WHERE id = $1`, id)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось удалить месячную запись KPI")
	}
	return expectAffected(res, apperror.ErrMonthlyRoleKPINotFound)
}

func monthlyArgs(rec *entity.MonthlyRoleKPI) []interface{} {
	var level *string
	if rec.EvaluationLevel != nil {
		s := string(*rec.EvaluationLevel)
		level = &s
	}
	return []interface{}{
		rec.ID, rec.UserID, rec.Month.String(), string(rec.Role), rec.CompanyTotal, rec.Ratio,
		level, rec.EvaluatedBy, rec.EvaluatedAt, rec.Value, rec.Formula, string(rec.ReviewStatus),
		rec.ReviewedBy, rec.ReviewedAt, rec.CreatedAt,
	}
}

func recordWhere(filter repository.RecordFilter, withProject bool) (string, []interface{}) {
	where := " WHERE 1 = 1"
	args := []interface{}{}
	argIndex := 1

	if filter.UserID != nil {
		where += fmt.Sprintf(" AND user_id = $%d", argIndex)
		args = append(args, *filter.UserID)
		argIndex++
	}
	if withProject && filter.ProjectID != nil {
		where += fmt.Sprintf(" AND project_id = $%d", argIndex)
		args = append(args, *filter.ProjectID)
		argIndex++
	}
	if filter.Role != "" {
		where += fmt.Sprintf(" AND role = $%d", argIndex)
		args = append(args, string(filter.Role))
		argIndex++
	}
	if filter.Month != "" {
		where += fmt.Sprintf(" AND month = $%d", argIndex)
		args = append(args, filter.Month.String())
	}
	return where, args
}

func paginate(query string, args []interface{}, limit, offset int) (string, []interface{}) {
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}

func inserted(res sql.Result) (bool, error) {
	rows, err := res.RowsAffected()
	if err != nil {
		return false, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось проверить результат вставки")
	}
	return rows > 0, nil
}

// StaffDirectoryAdapter читает справочник сотрудников, который ведёт внешняя система.
type StaffDirectoryAdapter struct {
	db *sqlx.DB
}

func NewStaffDirectoryAdapter(db *sqlx.DB) *StaffDirectoryAdapter {
	return &StaffDirectoryAdapter{db: db}
}

func (r *StaffDirectoryAdapter) ListActiveUsers(ctx context.Context, role valueobject.Role) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := `SELECT user_id FROM user_roles WHERE role = $1 AND active ORDER BY user_id`
	if err := r.db.SelectContext(ctx, &ids, query, string(role)); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить сотрудников роли")
	}
	return ids, nil
}
