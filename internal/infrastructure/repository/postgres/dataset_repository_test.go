package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/mkleiva/byggklima/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*DatasetRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &DatasetRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, name, description, filename").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDatasetNotFound) {
		t.Fatalf("expected ErrDatasetNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatusReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE datasets").
		WithArgs("missing", string(domain.DatasetProcessing), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", domain.DatasetProcessing, "")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDatasetNotFound) {
		t.Fatalf("expected ErrDatasetNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateInsertsDatasetAndRowsInOneTx(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	ds := &domain.Dataset{
		ID: "ds-1", Name: "Skolebygg", Filename: "eksport.xlsx", StoragePath: "ds-1_eksport.xlsx",
		Status: domain.DatasetUploaded, TotalRows: 1, CreatedAt: now, UpdatedAt: now,
	}
	row := domain.LineItem{RowID: 0, Category: "A - ARK MMI 300", ConstructionA: 100, Weighting: 100}
	row.RecomputeTotals()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO datasets").
		WithArgs(ds.ID, ds.Name, "", ds.Filename, ds.StoragePath, "uploaded", "", 1, 0, float64(0), now, now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO dataset_rows").
		WithArgs(ds.ID, 0, row.Category, float64(100), float64(0), float64(0),
			float64(100), float64(100), float64(100), sqlmock.AnyArg(),
			"", "", "", false, false).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := repo.Create(context.Background(), ds, []domain.LineItem{row}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListRowsRestoresMappingAndSuggestion(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	suggested, _ := json.Marshal(domain.Suggestion{
		Scenario: domain.ScenarioA, Discipline: domain.DisciplineARK, MMICode: domain.MMINew, MMILabel: "NY",
	})
	cols := []string{
		"row_id", "category", "construction_a", "operation_b", "end_of_life_c",
		"weighting", "total_gwp_base", "total_gwp", "suggested",
		"mapped_scenario", "mapped_discipline", "mapped_mmi_code", "is_summary", "excluded",
	}
	mock.ExpectQuery("SELECT row_id, category").
		WithArgs("ds-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(0, "A - ARK MMI 300", 100.0, 20.0, 10.0, 100.0, 130.0, 130.0, suggested, "A", "ARK", "300", false, false))

	items, err := repo.ListRows(context.Background(), "ds-1")
	if err != nil {
		t.Fatalf("ListRows() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d", len(items))
	}
	item := items[0]
	if item.Suggested.Scenario != domain.ScenarioA || item.Suggested.MMILabel != "NY" {
		t.Fatalf("suggestion = %+v", item.Suggested)
	}
	if item.Mapped.MMICode != domain.MMINew || !item.Mapped.Complete() {
		t.Fatalf("mapping = %+v", item.Mapped)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestApplyMappingEditsPassesNullsForUntouchedFields(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	scenario := domain.ScenarioC
	excluded := true
	edits := []domain.MappingEdit{
		{RowID: 3, Scenario: &scenario},
		{RowID: 7, Excluded: &excluded},
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE dataset_rows").
		WithArgs("ds-1", 3, "C", nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE dataset_rows").
		WithArgs("ds-1", 7, nil, nil, nil, true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE datasets SET updated_at").
		WithArgs("ds-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.ApplyMappingEdits(context.Background(), "ds-1", edits); err != nil {
		t.Fatalf("ApplyMappingEdits() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveSnapshotsReplacesExisting(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	snapshots := []domain.ScenarioSnapshot{
		{Scenario: domain.ScenarioA, Summary: domain.Summary{TotalGWP: 130, Count: 1}},
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM dataset_snapshots").
		WithArgs("ds-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO dataset_snapshots").
		WithArgs("ds-1", "A", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := repo.SaveSnapshots(context.Background(), "ds-1", snapshots); err != nil {
		t.Fatalf("SaveSnapshots() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
