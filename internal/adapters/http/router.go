package httpadapter

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mkleiva/byggklima/internal/core/domain"
	"github.com/mkleiva/byggklima/internal/core/ports"
	"github.com/mkleiva/byggklima/internal/observability/metrics"
)

// Options tune the traffic controls in front of the API.
type Options struct {
	ServiceName    string
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
	MaxQueueWait   time.Duration

	// DefaultTolerancePct applies when a verification request does not
	// carry its own tolerance_pct form value.
	DefaultTolerancePct float64
}

type Router struct {
	ingest   ports.DatasetIngestor
	editor   ports.MappingEditor
	analyst  ports.DatasetAnalyst
	verifier ports.TakeoffVerifier

	datasets ports.DatasetRepository
	runs     ports.VerificationRepository
	takeoffs ports.TakeoffReader
	reports  ports.ReportWriter

	metrics *metrics.HTTPServerMetrics
	opts    Options
}

func NewRouter(
	ingest ports.DatasetIngestor,
	editor ports.MappingEditor,
	analyst ports.DatasetAnalyst,
	verifier ports.TakeoffVerifier,
	datasets ports.DatasetRepository,
	runs ports.VerificationRepository,
	takeoffs ports.TakeoffReader,
	reports ports.ReportWriter,
	m *metrics.HTTPServerMetrics,
	opts Options,
) *Router {
	if opts.ServiceName == "" {
		opts.ServiceName = "api"
	}
	return &Router{
		ingest:   ingest,
		editor:   editor,
		analyst:  analyst,
		verifier: verifier,
		datasets: datasets,
		runs:     runs,
		takeoffs: takeoffs,
		reports:  reports,
		metrics:  m,
		opts:     opts,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("POST /v1/datasets", rt.uploadDataset)
	mux.HandleFunc("GET /v1/datasets/{id}", rt.getDataset)
	mux.HandleFunc("GET /v1/datasets/{id}/rows", rt.listRows)
	mux.HandleFunc("PATCH /v1/datasets/{id}/mappings", rt.applyMappings)
	mux.HandleFunc("POST /v1/datasets/{id}/mappings/accept", rt.acceptSuggestions)
	mux.HandleFunc("POST /v1/datasets/{id}/mappings/exclude", rt.excludeRows)
	mux.HandleFunc("GET /v1/datasets/{id}/aggregate", rt.aggregate)
	mux.HandleFunc("GET /v1/datasets/{id}/compare", rt.compare)
	mux.HandleFunc("GET /v1/datasets/{id}/contributions", rt.contributions)
	mux.HandleFunc("GET /v1/datasets/{id}/diagnostics", rt.diagnostics)

	mux.HandleFunc("POST /v1/verifications", rt.runVerification)
	mux.HandleFunc("GET /v1/verifications/{id}", rt.getVerification)
	mux.HandleFunc("GET /v1/verifications/{id}/report", rt.downloadReport)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.opts.MaxInFlight, rt.opts.MaxQueueWait)
	handler = rateLimitMiddleware(handler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.opts.ServiceName, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDataset(w http.ResponseWriter, r *http.Request) {
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	ds, err := rt.ingest.Upload(
		r.Context(),
		r.FormValue("name"),
		r.FormValue("description"),
		fileHeader.Filename,
		file,
	)
	if err != nil {
		rt.recordUpload("rejected", 0)
		writeError(w, err)
		return
	}

	rt.recordUpload("accepted", ds.TotalRows)
	rt.recordClassifiedRows(ds)
	writeJSON(w, http.StatusAccepted, ds)
}

func (rt *Router) getDataset(w http.ResponseWriter, r *http.Request) {
	ds, err := rt.datasets.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (rt *Router) listRows(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := rt.datasets.GetByID(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	rows, err := rt.datasets.ListRows(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"dataset_id": id,
		"rows":       rows,
	})
}

func (rt *Router) applyMappings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Edits []domain.MappingEdit `json:"edits"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.Edits) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "edits must not be empty"})
		return
	}

	stats, err := rt.editor.ApplyEdits(r.Context(), r.PathValue("id"), req.Edits)
	if err != nil {
		writeError(w, err)
		return
	}
	rt.recordEdits("edit", len(req.Edits))
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) acceptSuggestions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RowIDs       []int `json:"row_ids"`
		OnlyUnmapped bool  `json:"only_unmapped"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	stats, err := rt.editor.AcceptSuggestions(r.Context(), r.PathValue("id"), req.RowIDs, req.OnlyUnmapped)
	if err != nil {
		writeError(w, err)
		return
	}
	rt.recordEdits("accept", len(req.RowIDs))
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) excludeRows(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RowIDs []int `json:"row_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.RowIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "row_ids must not be empty"})
		return
	}

	stats, err := rt.editor.ExcludeRows(r.Context(), r.PathValue("id"), req.RowIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	rt.recordEdits("exclude", len(req.RowIDs))
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) aggregate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	tree, err := rt.analyst.Aggregate(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordAggregateBuild(rt.opts.ServiceName, time.Since(start))
	}
	writeJSON(w, http.StatusOK, tree)
}

func (rt *Router) compare(w http.ResponseWriter, r *http.Request) {
	base := domain.Scenario(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("base"))))
	target := domain.Scenario(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("target"))))
	if base == "" {
		base = domain.ScenarioA
	}
	if target == "" {
		target = domain.ScenarioC
	}

	comparison, disciplines, err := rt.analyst.Compare(r.Context(), r.PathValue("id"), base, target)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordComparison(rt.opts.ServiceName, string(base), string(target))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"comparison":  comparison,
		"disciplines": disciplines,
	})
}

func (rt *Router) contributions(w http.ResponseWriter, r *http.Request) {
	scenario := domain.Scenario(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("scenario"))))
	if scenario == "" {
		scenario = domain.ScenarioC
	}

	contributions, err := rt.analyst.Contributions(r.Context(), r.PathValue("id"), scenario)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scenario":      scenario,
		"contributions": contributions,
	})
}

func (rt *Router) diagnostics(w http.ResponseWriter, r *http.Request) {
	diag, err := rt.analyst.Diagnostics(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, diag)
}

func (rt *Router) runVerification(w http.ResponseWriter, r *http.Request) {
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	tolerancePct := rt.opts.DefaultTolerancePct
	if raw := strings.TrimSpace(r.FormValue("tolerance_pct")); raw != "" {
		tolerancePct, err = strconv.ParseFloat(raw, 64)
		if err != nil || tolerancePct < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tolerance_pct must be a non-negative number"})
			return
		}
	}

	records, err := rt.takeoffs.ReadTakeoff(file, fileHeader.Filename)
	if err != nil {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "parse takeoff", err))
		return
	}

	result, err := rt.verifier.Verify(r.Context(), records, tolerancePct)
	if err != nil {
		writeError(w, err)
		return
	}

	rt.recordVerification(result)
	if result.Rejected() {
		writeJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (rt *Router) getVerification(w http.ResponseWriter, r *http.Request) {
	result, err := rt.runs.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) downloadReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	result, err := rt.runs.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if result.Rejected() {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":  "verification run was rejected, no report available",
			"errors": result.Errors,
		})
		return
	}

	var buf bytes.Buffer
	if err := rt.reports.WriteVerificationReport(&buf, result); err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="verification_`+id+`.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}

func (rt *Router) recordUpload(status string, rows int) {
	if rt.metrics != nil {
		rt.metrics.RecordUpload(rt.opts.ServiceName, status, rows)
	}
}

func (rt *Router) recordClassifiedRows(ds *domain.Dataset) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordClassifiedRows(rt.opts.ServiceName, "complete", ds.MappedRows)
	rt.metrics.RecordClassifiedRows(rt.opts.ServiceName, "incomplete", ds.TotalRows-ds.MappedRows)
}

func (rt *Router) recordEdits(kind string, count int) {
	if rt.metrics != nil {
		rt.metrics.RecordMappingEdits(rt.opts.ServiceName, kind, count)
	}
}

func (rt *Router) recordVerification(result *domain.VerificationResult) {
	if rt.metrics == nil {
		return
	}
	verdict := "rejected"
	if !result.Rejected() {
		verdict = "fail"
		if result.Overall.Pass {
			verdict = "pass"
		}
	}
	rt.metrics.RecordVerificationRun(rt.opts.ServiceName, verdict, result.Overall.OverallDeviationPct)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
