package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mkleiva/byggklima/internal/core/domain"
)

type DatasetRepository struct {
	db *sql.DB
}

func NewDatasetRepository(db *sql.DB) *DatasetRepository {
	return &DatasetRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DatasetRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS datasets (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	filename TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	status TEXT NOT NULL,
	error_message TEXT,
	total_rows INTEGER NOT NULL DEFAULT 0,
	mapped_rows INTEGER NOT NULL DEFAULT 0,
	total_gwp DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS dataset_rows (
	dataset_id TEXT NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
	row_id INTEGER NOT NULL,
	category TEXT NOT NULL,
	construction_a DOUBLE PRECISION NOT NULL DEFAULT 0,
	operation_b DOUBLE PRECISION NOT NULL DEFAULT 0,
	end_of_life_c DOUBLE PRECISION NOT NULL DEFAULT 0,
	weighting DOUBLE PRECISION NOT NULL DEFAULT 100,
	total_gwp_base DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_gwp DOUBLE PRECISION NOT NULL DEFAULT 0,
	suggested JSONB NOT NULL DEFAULT '{}'::jsonb,
	mapped_scenario TEXT NOT NULL DEFAULT '',
	mapped_discipline TEXT NOT NULL DEFAULT '',
	mapped_mmi_code TEXT NOT NULL DEFAULT '',
	is_summary BOOLEAN NOT NULL DEFAULT FALSE,
	excluded BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (dataset_id, row_id)
);

CREATE TABLE IF NOT EXISTS dataset_snapshots (
	dataset_id TEXT NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
	scenario TEXT NOT NULL,
	summary JSONB NOT NULL,
	PRIMARY KEY (dataset_id, scenario)
);

CREATE INDEX IF NOT EXISTS idx_datasets_status ON datasets(status);
CREATE INDEX IF NOT EXISTS idx_datasets_created_at ON datasets(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DatasetRepository) Create(ctx context.Context, ds *domain.Dataset, rows []domain.LineItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO datasets (
	id, name, description, filename, storage_path, status, error_message, total_rows, mapped_rows, total_gwp, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`,
		ds.ID, ds.Name, ds.Description, ds.Filename, ds.StoragePath, string(ds.Status), ds.Error,
		ds.TotalRows, ds.MappedRows, ds.TotalGWP, ds.CreatedAt, ds.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert dataset: %w", err)
	}

	for i := range rows {
		if err := insertRow(ctx, tx, ds.ID, &rows[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create tx: %w", err)
	}
	return nil
}

func insertRow(ctx context.Context, tx *sql.Tx, datasetID string, row *domain.LineItem) error {
	suggestedJSON, err := json.Marshal(row.Suggested)
	if err != nil {
		return fmt.Errorf("marshal suggestion: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO dataset_rows (
	dataset_id, row_id, category, construction_a, operation_b, end_of_life_c,
	weighting, total_gwp_base, total_gwp, suggested,
	mapped_scenario, mapped_discipline, mapped_mmi_code, is_summary, excluded
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
`,
		datasetID, row.RowID, row.Category, row.ConstructionA, row.OperationB, row.EndOfLifeC,
		row.Weighting, row.TotalGWPBase, row.TotalGWP, suggestedJSON,
		string(row.Mapped.Scenario), string(row.Mapped.Discipline), string(row.Mapped.MMICode),
		row.IsSummary, row.Excluded,
	)
	if err != nil {
		return fmt.Errorf("insert row %d: %w", row.RowID, err)
	}
	return nil
}

func (r *DatasetRepository) GetByID(ctx context.Context, id string) (*domain.Dataset, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, description, filename, storage_path, status, error_message, total_rows, mapped_rows, total_gwp, created_at, updated_at
FROM datasets
WHERE id = $1
`, id)

	var ds domain.Dataset
	var status string

	err := row.Scan(
		&ds.ID, &ds.Name, &ds.Description, &ds.Filename, &ds.StoragePath, &status, &ds.Error,
		&ds.TotalRows, &ds.MappedRows, &ds.TotalGWP, &ds.CreatedAt, &ds.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get dataset %s: %w", id, domain.ErrDatasetNotFound)
		}
		return nil, fmt.Errorf("scan dataset: %w", err)
	}
	ds.Status = domain.DatasetStatus(status)
	return &ds, nil
}

func (r *DatasetRepository) ListRows(ctx context.Context, datasetID string) ([]domain.LineItem, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT row_id, category, construction_a, operation_b, end_of_life_c,
	weighting, total_gwp_base, total_gwp, suggested,
	mapped_scenario, mapped_discipline, mapped_mmi_code, is_summary, excluded
FROM dataset_rows
WHERE dataset_id = $1
ORDER BY row_id
`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	var items []domain.LineItem
	for rows.Next() {
		var item domain.LineItem
		var suggestedRaw []byte
		var scenario, discipline, mmi string

		err := rows.Scan(
			&item.RowID, &item.Category, &item.ConstructionA, &item.OperationB, &item.EndOfLifeC,
			&item.Weighting, &item.TotalGWPBase, &item.TotalGWP, &suggestedRaw,
			&scenario, &discipline, &mmi, &item.IsSummary, &item.Excluded,
		)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if err := json.Unmarshal(suggestedRaw, &item.Suggested); err != nil {
			return nil, fmt.Errorf("unmarshal suggestion: %w", err)
		}
		item.Mapped = domain.Mapping{
			Scenario:   domain.Scenario(scenario),
			Discipline: domain.Discipline(discipline),
			MMICode:    domain.MMICode(mmi),
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return items, nil
}

func (r *DatasetRepository) ApplyMappingEdits(ctx context.Context, datasetID string, edits []domain.MappingEdit) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin edit tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	for i := range edits {
		edit := &edits[i]
		_, err := tx.ExecContext(ctx, `
UPDATE dataset_rows
SET mapped_scenario = COALESCE($3, mapped_scenario),
	mapped_discipline = COALESCE($4, mapped_discipline),
	mapped_mmi_code = COALESCE($5, mapped_mmi_code),
	excluded = COALESCE($6, excluded)
WHERE dataset_id = $1 AND row_id = $2
`,
			datasetID, edit.RowID,
			scenarioArg(edit.Scenario), disciplineArg(edit.Discipline), mmiArg(edit.MMICode), edit.Excluded,
		)
		if err != nil {
			return fmt.Errorf("apply edit for row %d: %w", edit.RowID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE datasets SET updated_at = $2 WHERE id = $1`, datasetID, now); err != nil {
		return fmt.Errorf("touch dataset: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit edit tx: %w", err)
	}
	return nil
}

// COALESCE needs NULL for untouched fields, so pointers pass through as
// nullable strings.
func scenarioArg(s *domain.Scenario) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}

func disciplineArg(d *domain.Discipline) *string {
	if d == nil {
		return nil
	}
	v := string(*d)
	return &v
}

func mmiArg(c *domain.MMICode) *string {
	if c == nil {
		return nil
	}
	v := string(*c)
	return &v
}

func (r *DatasetRepository) UpdateStatus(ctx context.Context, id string, status domain.DatasetStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE datasets
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update dataset status: %w", err)
	}
	return requireDataset(res, id)
}

func (r *DatasetRepository) UpdateMappingCounts(ctx context.Context, id string, mappedRows int, totalGWP float64) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE datasets
SET mapped_rows = $2, total_gwp = $3, updated_at = $4
WHERE id = $1
`, id, mappedRows, totalGWP, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update mapping counts: %w", err)
	}
	return requireDataset(res, id)
}

func requireDataset(res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("dataset %s: %w", id, domain.ErrDatasetNotFound)
	}
	return nil
}

func (r *DatasetRepository) SaveSnapshots(ctx context.Context, datasetID string, snapshots []domain.ScenarioSnapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM dataset_snapshots WHERE dataset_id = $1`, datasetID); err != nil {
		return fmt.Errorf("clear snapshots: %w", err)
	}

	for i := range snapshots {
		snap := &snapshots[i]
		summaryJSON, err := json.Marshal(snap.Summary)
		if err != nil {
			return fmt.Errorf("marshal snapshot: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO dataset_snapshots (dataset_id, scenario, summary) VALUES ($1,$2,$3)
`, datasetID, string(snap.Scenario), summaryJSON)
		if err != nil {
			return fmt.Errorf("insert snapshot %s: %w", snap.Scenario, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot tx: %w", err)
	}
	return nil
}
