package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/translation-kpi/internal/domain/entity"
	"github.com/ignatzorin/translation-kpi/internal/pkg/apperror"
	"github.com/ignatzorin/translation-kpi/internal/repository/common"
)

type CoefficientRepositoryAdapter struct {
	db *sqlx.DB
}

func NewCoefficientRepositoryAdapter(db *sqlx.DB) *CoefficientRepositoryAdapter {
	return &CoefficientRepositoryAdapter{db: db}
}

func (r *CoefficientRepositoryAdapter) GetActive(ctx context.Context) (*entity.CoefficientRegistry, error) {
	var row struct {
		Ratios    []byte     `db:"ratios"`
		UpdatedBy *uuid.UUID `db:"updated_by"`
		UpdatedAt time.Time  `db:"updated_at"`
	}
	err := r.db.GetContext(ctx, &row, `SELECT ratios, updated_by, updated_at FROM coefficient_registry WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить коэффициенты")
	}

	var ratios entity.LockedRatios
	if err := json.Unmarshal(row.Ratios, &ratios); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "повреждён реестр коэффициентов")
	}
	return &entity.CoefficientRegistry{Ratios: ratios, UpdatedBy: row.UpdatedBy, UpdatedAt: row.UpdatedAt}, nil
}

func (r *CoefficientRepositoryAdapter) Replace(ctx context.Context, registry *entity.CoefficientRegistry, change *entity.CoefficientChange) error {
	newRatios, err := json.Marshal(registry.Ratios)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сериализовать коэффициенты")
	}
	oldRatios, err := json.Marshal(change.OldRatios)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сериализовать коэффициенты")
	}

	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		upsert := `INSERT INTO coefficient_registry (id, ratios, updated_by, updated_at)
			VALUES (1, $1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET ratios = EXCLUDED.ratios, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`
		if _, err := tx.ExecContext(ctx, upsert, newRatios, registry.UpdatedBy, registry.UpdatedAt); err != nil {
			return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить коэффициенты")
		}

		history := `INSERT INTO coefficient_history (id, old_ratios, new_ratios, reason, changed_by, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`
		if _, err := tx.ExecContext(ctx, history, change.ID, oldRatios, newRatios, change.Reason, change.ChangedBy, change.CreatedAt); err != nil {
			return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось записать историю коэффициентов")
		}
		return nil
	})
}

func (r *CoefficientRepositoryAdapter) ListHistory(ctx context.Context, limit, offset int) ([]*entity.CoefficientChange, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM coefficient_history`); err != nil {
		return nil, 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось посчитать историю коэффициентов")
	}

	var rows []struct {
		ID        uuid.UUID `db:"id"`
		OldRatios []byte    `db:"old_ratios"`
		NewRatios []byte    `db:"new_ratios"`
		Reason    string    `db:"reason"`
		ChangedBy uuid.UUID `db:"changed_by"`
		CreatedAt time.Time `db:"created_at"`
	}
	query, args := paginate(`SELECT id, old_ratios, new_ratios, reason, changed_by, created_at
		FROM coefficient_history ORDER BY created_at DESC`, nil, limit, offset)
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить историю коэффициентов")
	}

	history := make([]*entity.CoefficientChange, 0, len(rows))
	for _, row := range rows {
		change := &entity.CoefficientChange{
			ID:        row.ID,
			Reason:    row.Reason,
			ChangedBy: row.ChangedBy,
			CreatedAt: row.CreatedAt,
		}
		if err := json.Unmarshal(row.OldRatios, &change.OldRatios); err != nil {
			return nil, 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "повреждена история коэффициентов")
		}
		if err := json.Unmarshal(row.NewRatios, &change.NewRatios); err != nil {
			return nil, 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "повреждена история коэффициентов")
		}
		history = append(history, change)
	}
	return history, total, nil
}
