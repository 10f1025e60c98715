package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mkleiva/byggklima/internal/core/domain"
)

type stubIngest struct {
	dataset *domain.Dataset
	err     error
}

func (s *stubIngest) Upload(_ context.Context, name, _, filename string, body io.Reader) (*domain.Dataset, error) {
	if s.err != nil {
		return nil, s.err
	}
	_, _ = io.Copy(io.Discard, body)
	ds := *s.dataset
	if ds.Name == "" {
		ds.Name = name
	}
	ds.Filename = filename
	return &ds, nil
}

type stubEditor struct {
	stats domain.MappingStats
	err   error
}

func (s *stubEditor) ApplyEdits(context.Context, string, []domain.MappingEdit) (domain.MappingStats, error) {
	return s.stats, s.err
}

func (s *stubEditor) AcceptSuggestions(context.Context, string, []int, bool) (domain.MappingStats, error) {
	return s.stats, s.err
}

func (s *stubEditor) ExcludeRows(context.Context, string, []int) (domain.MappingStats, error) {
	return s.stats, s.err
}

type stubAnalyst struct {
	tree *domain.AggregateTree
	err  error
}

func (s *stubAnalyst) Aggregate(context.Context, string) (*domain.AggregateTree, error) {
	return s.tree, s.err
}

func (s *stubAnalyst) Compare(_ context.Context, _ string, base, target domain.Scenario) (*domain.ScenarioComparison, []domain.DisciplineDelta, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	return &domain.ScenarioComparison{Base: base, Target: target}, nil, nil
}

func (s *stubAnalyst) Contributions(_ context.Context, _ string, scenario domain.Scenario) ([]domain.DisciplineContribution, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []domain.DisciplineContribution{{Discipline: domain.DisciplineARK, TotalGWP: 100, SharePct: 100}}, nil
}

func (s *stubAnalyst) Diagnostics(context.Context, string) (*domain.MMIDiagnostics, error) {
	return &domain.MMIDiagnostics{}, s.err
}

type stubVerifier struct {
	result       *domain.VerificationResult
	err          error
	gotTolerance float64
}

func (s *stubVerifier) Verify(_ context.Context, _ []domain.TakeoffRecord, tolerancePct float64) (*domain.VerificationResult, error) {
	s.gotTolerance = tolerancePct
	return s.result, s.err
}

type stubDatasetRepo struct {
	dataset *domain.Dataset
	rows    []domain.LineItem
}

func (s *stubDatasetRepo) Create(context.Context, *domain.Dataset, []domain.LineItem) error {
	return nil
}

func (s *stubDatasetRepo) GetByID(_ context.Context, id string) (*domain.Dataset, error) {
	if s.dataset == nil || s.dataset.ID != id {
		return nil, fmt.Errorf("get dataset %s: %w", id, domain.ErrDatasetNotFound)
	}
	return s.dataset, nil
}

func (s *stubDatasetRepo) ListRows(context.Context, string) ([]domain.LineItem, error) {
	return s.rows, nil
}

func (s *stubDatasetRepo) ApplyMappingEdits(context.Context, string, []domain.MappingEdit) error {
	return nil
}

func (s *stubDatasetRepo) UpdateStatus(context.Context, string, domain.DatasetStatus, string) error {
	return nil
}

func (s *stubDatasetRepo) UpdateMappingCounts(context.Context, string, int, float64) error {
	return nil
}

func (s *stubDatasetRepo) SaveSnapshots(context.Context, string, []domain.ScenarioSnapshot) error {
	return nil
}

type stubRunRepo struct {
	run *domain.VerificationResult
}

func (s *stubRunRepo) CreateRun(context.Context, *domain.VerificationResult) error { return nil }

func (s *stubRunRepo) GetRun(_ context.Context, id string) (*domain.VerificationResult, error) {
	if s.run == nil || s.run.RunID != id {
		return nil, fmt.Errorf("get verification run %s: %w", id, domain.ErrRunNotFound)
	}
	return s.run, nil
}

type stubTakeoffReader struct {
	records []domain.TakeoffRecord
	err     error
}

func (s *stubTakeoffReader) ReadTakeoff(io.Reader, string) ([]domain.TakeoffRecord, error) {
	return s.records, s.err
}

type stubReportWriter struct{}

func (s *stubReportWriter) WriteVerificationReport(w io.Writer, result *domain.VerificationResult) error {
	if result.Rejected() {
		return fmt.Errorf("cannot export report: verification run was rejected")
	}
	_, err := w.Write([]byte("xlsx-bytes"))
	return err
}

type testRouterDeps struct {
	ingest   *stubIngest
	editor   *stubEditor
	analyst  *stubAnalyst
	verifier *stubVerifier
	datasets *stubDatasetRepo
	runs     *stubRunRepo
	takeoffs *stubTakeoffReader
}

func newTestRouter(deps testRouterDeps) http.Handler {
	if deps.ingest == nil {
		deps.ingest = &stubIngest{dataset: &domain.Dataset{ID: "ds-1", Status: domain.DatasetUploaded}}
	}
	if deps.editor == nil {
		deps.editor = &stubEditor{}
	}
	if deps.analyst == nil {
		deps.analyst = &stubAnalyst{tree: domain.NewAggregateTree()}
	}
	if deps.verifier == nil {
		deps.verifier = &stubVerifier{result: &domain.VerificationResult{RunID: "run-1", State: domain.VerificationComputed}}
	}
	if deps.datasets == nil {
		deps.datasets = &stubDatasetRepo{}
	}
	if deps.runs == nil {
		deps.runs = &stubRunRepo{}
	}
	if deps.takeoffs == nil {
		deps.takeoffs = &stubTakeoffReader{}
	}
	rt := NewRouter(
		deps.ingest, deps.editor, deps.analyst, deps.verifier,
		deps.datasets, deps.runs, deps.takeoffs, &stubReportWriter{},
		nil, Options{},
	)
	return rt.Handler()
}

func multipartUpload(t *testing.T, field, filename, content string, extra map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	for k, v := range extra {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestHealthz(t *testing.T) {
	handler := newTestRouter(testRouterDeps{})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("healthz = %d", res.Code)
	}
	if res.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestUploadDatasetAccepted(t *testing.T) {
	handler := newTestRouter(testRouterDeps{})
	body, contentType := multipartUpload(t, "file", "eksport.xlsx", "payload", map[string]string{"name": "Skolebygg"})

	req := httptest.NewRequest(http.MethodPost, "/v1/datasets", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("upload = %d, body %s", res.Code, res.Body.String())
	}
	var ds domain.Dataset
	if err := json.NewDecoder(res.Body).Decode(&ds); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ds.ID != "ds-1" || ds.Filename != "eksport.xlsx" {
		t.Fatalf("dataset = %+v", ds)
	}
}

func TestUploadDatasetRequiresFile(t *testing.T) {
	handler := newTestRouter(testRouterDeps{})
	req := httptest.NewRequest(http.MethodPost, "/v1/datasets", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("upload without file = %d", res.Code)
	}
}

func TestUploadDatasetInvalidInputIsBadRequest(t *testing.T) {
	handler := newTestRouter(testRouterDeps{
		ingest: &stubIngest{err: domain.WrapError(domain.ErrInvalidInput, "parse gwp export", fmt.Errorf("no data rows"))},
	})
	body, contentType := multipartUpload(t, "file", "tom.xlsx", "x", nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/datasets", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("invalid upload = %d", res.Code)
	}
}

func TestGetDatasetNotFound(t *testing.T) {
	handler := newTestRouter(testRouterDeps{})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/datasets/missing", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("missing dataset = %d", res.Code)
	}
}

func TestListRowsReturnsDatasetRows(t *testing.T) {
	handler := newTestRouter(testRouterDeps{
		datasets: &stubDatasetRepo{
			dataset: &domain.Dataset{ID: "ds-1"},
			rows:    []domain.LineItem{{RowID: 0, Category: "A - ARK"}},
		},
	})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/datasets/ds-1/rows", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("rows = %d", res.Code)
	}
	var payload struct {
		DatasetID string            `json:"dataset_id"`
		Rows      []domain.LineItem `json:"rows"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.DatasetID != "ds-1" || len(payload.Rows) != 1 {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestApplyMappingsRejectsEmptyBatch(t *testing.T) {
	handler := newTestRouter(testRouterDeps{})
	req := httptest.NewRequest(http.MethodPatch, "/v1/datasets/ds-1/mappings", strings.NewReader(`{"edits":[]}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("empty edits = %d", res.Code)
	}
}

func TestApplyMappingsReturnsStats(t *testing.T) {
	handler := newTestRouter(testRouterDeps{
		editor: &stubEditor{stats: domain.MappingStats{TotalRows: 10, FullyMapped: 7, ActiveRows: 9, CompletenessPct: 77.8}},
	})
	body := `{"edits":[{"row_id":3,"scenario":"C"}]}`
	req := httptest.NewRequest(http.MethodPatch, "/v1/datasets/ds-1/mappings", strings.NewReader(body))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("apply edits = %d, body %s", res.Code, res.Body.String())
	}
	var stats domain.MappingStats
	if err := json.NewDecoder(res.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.FullyMapped != 7 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestApplyMappingsValidationErrorIs422(t *testing.T) {
	handler := newTestRouter(testRouterDeps{
		editor: &stubEditor{err: domain.WrapError(domain.ErrValidation, "apply edits", fmt.Errorf("invalid scenario X"))},
	})
	body := `{"edits":[{"row_id":3,"scenario":"X"}]}`
	req := httptest.NewRequest(http.MethodPatch, "/v1/datasets/ds-1/mappings", strings.NewReader(body))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid edit = %d", res.Code)
	}
}

func TestCompareDefaultsToAVersusC(t *testing.T) {
	handler := newTestRouter(testRouterDeps{})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/datasets/ds-1/compare", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("compare = %d", res.Code)
	}
	var payload struct {
		Comparison domain.ScenarioComparison `json:"comparison"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Comparison.Base != domain.ScenarioA || payload.Comparison.Target != domain.ScenarioC {
		t.Fatalf("default pair = %s vs %s", payload.Comparison.Base, payload.Comparison.Target)
	}
}

func TestContributionsDefaultsToScenarioC(t *testing.T) {
	handler := newTestRouter(testRouterDeps{})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/datasets/ds-1/contributions", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("contributions = %d", res.Code)
	}
	var payload struct {
		Scenario      domain.Scenario                 `json:"scenario"`
		Contributions []domain.DisciplineContribution `json:"contributions"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Scenario != domain.ScenarioC {
		t.Fatalf("scenario = %s, want C", payload.Scenario)
	}
	if len(payload.Contributions) != 1 || payload.Contributions[0].Discipline != domain.DisciplineARK {
		t.Fatalf("contributions = %+v", payload.Contributions)
	}
}

func TestRunVerificationReturnsResult(t *testing.T) {
	handler := newTestRouter(testRouterDeps{
		verifier: &stubVerifier{result: &domain.VerificationResult{
			RunID: "run-9",
			State: domain.VerificationComputed,
			Overall: domain.VerificationOverall{
				TolerancePct: 5, Pass: true,
			},
		}},
	})
	body, contentType := multipartUpload(t, "file", "takeoff.csv", "Object Type,...", map[string]string{"tolerance_pct": "5"})

	req := httptest.NewRequest(http.MethodPost, "/v1/verifications", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("verification = %d, body %s", res.Code, res.Body.String())
	}
	var result domain.VerificationResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.RunID != "run-9" || !result.Overall.Pass {
		t.Fatalf("result = %+v", result)
	}
}

func TestRunVerificationRejectedIsUnprocessable(t *testing.T) {
	handler := newTestRouter(testRouterDeps{
		verifier: &stubVerifier{result: &domain.VerificationResult{
			RunID:  "run-3",
			State:  domain.VerificationRejected,
			Errors: []string{"both scenarios A and C are required"},
		}},
	})
	body, contentType := multipartUpload(t, "file", "takeoff.csv", "x", nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/verifications", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("rejected run = %d", res.Code)
	}
	var result domain.VerificationResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.RunID != "run-3" || len(result.Errors) != 1 {
		t.Fatalf("result = %+v", result)
	}
}

func TestRunVerificationFallsBackToDefaultTolerance(t *testing.T) {
	verifier := &stubVerifier{result: &domain.VerificationResult{RunID: "run-1", State: domain.VerificationComputed}}
	rt := NewRouter(
		&stubIngest{dataset: &domain.Dataset{ID: "ds-1"}}, &stubEditor{}, &stubAnalyst{}, verifier,
		&stubDatasetRepo{}, &stubRunRepo{}, &stubTakeoffReader{}, &stubReportWriter{},
		nil, Options{DefaultTolerancePct: 3},
	)
	handler := rt.Handler()

	body, contentType := multipartUpload(t, "file", "takeoff.csv", "x", nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/verifications", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("verification = %d, body %s", res.Code, res.Body.String())
	}
	if verifier.gotTolerance != 3 {
		t.Fatalf("tolerance = %v, want 3", verifier.gotTolerance)
	}

	body, contentType = multipartUpload(t, "file", "takeoff.csv", "x", map[string]string{"tolerance_pct": "2"})
	req = httptest.NewRequest(http.MethodPost, "/v1/verifications", body)
	req.Header.Set("Content-Type", contentType)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if verifier.gotTolerance != 2 {
		t.Fatalf("explicit tolerance = %v, want 2", verifier.gotTolerance)
	}
}

func TestRunVerificationRejectsBadTolerance(t *testing.T) {
	handler := newTestRouter(testRouterDeps{})
	body, contentType := multipartUpload(t, "file", "takeoff.csv", "x", map[string]string{"tolerance_pct": "-1"})

	req := httptest.NewRequest(http.MethodPost, "/v1/verifications", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("negative tolerance = %d", res.Code)
	}
}

func TestDownloadReportForComputedRun(t *testing.T) {
	handler := newTestRouter(testRouterDeps{
		runs: &stubRunRepo{run: &domain.VerificationResult{RunID: "run-1", State: domain.VerificationComputed}},
	})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/verifications/run-1/report", nil))

	if res.Code != http.StatusOK {
		t.Fatalf("report = %d", res.Code)
	}
	if ct := res.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Fatalf("content type = %q", ct)
	}
	if cd := res.Header().Get("Content-Disposition"); !strings.Contains(cd, "verification_run-1.xlsx") {
		t.Fatalf("content disposition = %q", cd)
	}
	if res.Body.String() != "xlsx-bytes" {
		t.Fatalf("body = %q", res.Body.String())
	}
}

func TestDownloadReportForRejectedRunIsConflict(t *testing.T) {
	handler := newTestRouter(testRouterDeps{
		runs: &stubRunRepo{run: &domain.VerificationResult{
			RunID:  "run-2",
			State:  domain.VerificationRejected,
			Errors: []string{"inconsistent units for object types: Wall"},
		}},
	})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/verifications/run-2/report", nil))
	if res.Code != http.StatusConflict {
		t.Fatalf("rejected report = %d", res.Code)
	}
}

func TestGetVerificationNotFound(t *testing.T) {
	handler := newTestRouter(testRouterDeps{})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/verifications/missing", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("missing run = %d", res.Code)
	}
}
