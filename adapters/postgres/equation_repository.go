package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"orcacast/domain/behavior"
)

// EquationRepository reads and writes behavior equations in PostgreSQL
type EquationRepository struct {
	db *sqlx.DB
}

// NewEquationRepository creates a new PostgreSQL equation repository
func NewEquationRepository(db *sqlx.DB) *EquationRepository {
	return &EquationRepository{db: db}
}

type equationRow struct {
	Label            string  `db:"behavior_label"`
	KeyFactors       []byte  `db:"key_factors"`
	Coefficients     []byte  `db:"coefficients"`
	Intercept        float64 `db:"intercept"`
	UncertaintyScale float64 `db:"uncertainty_scale"`
}

// Describe names the source
func (r *EquationRepository) Describe() string {
	return "postgres:behavior_equations"
}

// FetchEquations returns every active equation ordered by label
func (r *EquationRepository) FetchEquations(ctx context.Context) ([]behavior.Equation, error) {
	var rows []equationRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT behavior_label, key_factors, coefficients, intercept, uncertainty_scale
		FROM behavior_equations
		WHERE active
		ORDER BY behavior_label`)
	if err != nil {
		return nil, fmt.Errorf("failed to query behavior equations: %w", err)
	}

	equations := make([]behavior.Equation, 0, len(rows))
	for _, row := range rows {
		eq := behavior.Equation{
			Label:            row.Label,
			Intercept:        row.Intercept,
			UncertaintyScale: row.UncertaintyScale,
		}
		if err := json.Unmarshal(row.KeyFactors, &eq.KeyFactors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal key_factors for %s: %w", row.Label, err)
		}
		if err := json.Unmarshal(row.Coefficients, &eq.Coefficients); err != nil {
			return nil, fmt.Errorf("failed to unmarshal coefficients for %s: %w", row.Label, err)
		}
		equations = append(equations, eq)
	}
	return equations, nil
}

// ReplaceEquations deactivates every stored equation and upserts the given set as active,
// in one transaction, so readers never observe a partially imported set.
func (r *EquationRepository) ReplaceEquations(ctx context.Context, equations []behavior.Equation) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE behavior_equations SET active = false, updated_at = NOW()`); err != nil {
		return fmt.Errorf("failed to deactivate equations: %w", err)
	}

	for _, eq := range equations {
		factorsJSON, err := json.Marshal(eq.KeyFactors)
		if err != nil {
			return err
		}
		coefficientsJSON, err := json.Marshal(eq.Coefficients)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO behavior_equations (behavior_label, key_factors, coefficients, intercept, uncertainty_scale, active)
			VALUES ($1, $2, $3, $4, $5, true)
			ON CONFLICT (behavior_label) DO UPDATE SET
				key_factors = EXCLUDED.key_factors,
				coefficients = EXCLUDED.coefficients,
				intercept = EXCLUDED.intercept,
				uncertainty_scale = EXCLUDED.uncertainty_scale,
				active = true,
				updated_at = NOW()`,
			eq.Label, factorsJSON, coefficientsJSON, eq.Intercept, eq.UncertaintyScale)
		if err != nil {
			return fmt.Errorf("failed to upsert equation %s: %w", eq.Label, err)
		}
	}

	return tx.Commit()
}
