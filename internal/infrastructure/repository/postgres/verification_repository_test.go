package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/mkleiva/byggklima/internal/core/domain"
)

func newVerificationRepoWithMock(t *testing.T) (*VerificationRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &VerificationRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestCreateRunStoresWholeResult(t *testing.T) {
	repo, mock, done := newVerificationRepoWithMock(t)
	defer done()

	result := &domain.VerificationResult{
		RunID: "run-1",
		State: domain.VerificationComputed,
		Overall: domain.VerificationOverall{
			TotalQtyA: 120, TotalQtyC: 120, TolerancePct: 5, Pass: true,
		},
	}

	mock.ExpectExec("INSERT INTO verification_runs").
		WithArgs("run-1", "computed", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.CreateRun(context.Background(), result); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetRunRoundTrips(t *testing.T) {
	repo, mock, done := newVerificationRepoWithMock(t)
	defer done()

	stored := &domain.VerificationResult{
		RunID: "run-2",
		State: domain.VerificationRejected,
		Errors: []string{
			"inconsistent units for object types: Wall",
		},
	}
	payload, _ := json.Marshal(stored)

	mock.ExpectQuery("SELECT result FROM verification_runs").
		WithArgs("run-2").
		WillReturnRows(sqlmock.NewRows([]string{"result"}).AddRow(payload))

	result, err := repo.GetRun(context.Background(), "run-2")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if !result.Rejected() || len(result.Errors) != 1 {
		t.Fatalf("round trip = %+v", result)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetRunReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newVerificationRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT result FROM verification_runs").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetRun(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
