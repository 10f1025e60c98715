package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkleiva/byggklima/internal/core/domain"
	"github.com/mkleiva/byggklima/internal/core/ports"
)

// Category substrings that mark rows as stale model copies; such rows are
// auto-excluded at load (still kept, never deleted).
var autoExcludeTokens = []string{"utdatert", "copy", "kopi"}

// IngestDatasetUseCase turns an uploaded GWP export into a stored,
// classified dataset and hands it to the worker for aggregation.
type IngestDatasetUseCase struct {
	repo       ports.DatasetRepository
	storage    ports.ObjectStorage
	queue      ports.MessageQueue
	reader     ports.ExportReader
	classifier ports.RowClassifier
}

func NewIngestDatasetUseCase(
	repo ports.DatasetRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	reader ports.ExportReader,
	classifier ports.RowClassifier,
) *IngestDatasetUseCase {
	return &IngestDatasetUseCase{
		repo:       repo,
		storage:    storage,
		queue:      queue,
		reader:     reader,
		classifier: classifier,
	}
}

func (uc *IngestDatasetUseCase) Upload(
	ctx context.Context,
	name, description, filename string,
	body io.Reader,
) (*domain.Dataset, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read upload body: %w", err)
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("archive upload: %w", err)
	}

	rows, err := uc.reader.ReadGWPExport(bytes.NewReader(raw))
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse gwp export", err)
	}
	if len(rows) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse gwp export", fmt.Errorf("no data rows in %q", filename))
	}

	PrepareRows(rows, uc.classifier)

	stats := ComputeMappingStats(rows)
	totalGWP := 0.0
	for i := range rows {
		totalGWP += rows[i].TotalGWP
	}

	dataset := &domain.Dataset{
		ID:          id,
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		Filename:    filename,
		StoragePath: storageKey,
		Status:      domain.DatasetUploaded,
		TotalRows:   stats.TotalRows,
		MappedRows:  stats.FullyMapped,
		TotalGWP:    totalGWP,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if dataset.Name == "" {
		dataset.Name = filename
	}

	if err := uc.repo.Create(ctx, dataset, rows); err != nil {
		return nil, fmt.Errorf("create dataset: %w", err)
	}

	if err := uc.queue.PublishDatasetIngested(ctx, dataset.ID); err != nil {
		return nil, fmt.Errorf("publish ingestion event: %w", err)
	}

	return dataset, nil
}

// PrepareRows runs load-time hygiene over freshly parsed rows: sequential
// row ids, classifier suggestions, the one-time suggestion→mapping seed,
// summary/stale auto-exclusion and total recomputation. It runs exactly
// once per upload; mappings are never re-seeded afterwards.
func PrepareRows(rows []domain.LineItem, classifier ports.RowClassifier) {
	for i := range rows {
		row := &rows[i]
		row.RowID = i

		suggestion := classifier.Classify(row.Category)
		row.Suggested = suggestion
		row.IsSummary = suggestion.IsSummary
		row.Mapped = domain.Mapping{
			Scenario:   suggestion.Scenario,
			Discipline: suggestion.Discipline,
			MMICode:    suggestion.MMICode,
		}

		row.Excluded = suggestion.IsSummary || hasAutoExcludeToken(row.Category)

		if row.Weighting == 0 {
			row.Weighting = 100
		}
		row.RecomputeTotals()
	}
}

func hasAutoExcludeToken(category string) bool {
	lower := strings.ToLower(category)
	for _, token := range autoExcludeTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == ".." {
		return "dataset.xlsx"
	}
	return base
}
