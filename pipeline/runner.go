package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	classifier "github.com/FrenchMajesty/ethnicity-classifier"
	"github.com/FrenchMajesty/ethnicity-classifier/internal/logging"
)

// DefaultWorkers is the number of batches classified concurrently
const DefaultWorkers = 4

// Output column names appended to the table
const (
	ColumnEthnicity  = "ethnicity"
	ColumnConfidence = "confidence"
	ColumnMethod     = "method"
)

// NameClassifier is the slice of the classification orchestrator the
// runner needs
type NameClassifier interface {
	ClassifyBatch(ctx context.Context, names []string, opts ...classifier.Option) []classifier.Result
	GetMetrics() classifier.Metrics
}

// RunnerConfig configures a Runner
type RunnerConfig struct {
	// Classifier labels the names. Required.
	Classifier NameClassifier
	// Detector resolves the name column. Nil means heuristics only.
	Detector *ColumnDetector
	// BatchSize is how many rows go into one classification batch.
	// Zero means classifier.DefaultBatchSize.
	BatchSize int
	// Workers bounds concurrent batch classification. Zero means
	// DefaultWorkers.
	Workers int
	// Logger for run progress. Nil gets a default.
	Logger *slog.Logger
}

func (c *RunnerConfig) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = classifier.DefaultBatchSize
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.Detector == nil {
		c.Detector = &ColumnDetector{}
	}
	if c.Logger == nil {
		c.Logger = logging.New("pipeline")
	}
}

// Runner classifies every row of a CSV file and writes the result
// columns back out, saving a checkpoint after each completed batch so
// an interrupted run keeps the work already done.
type Runner struct {
	config RunnerConfig

	// guards the table and the checkpoint file across batch workers
	mu sync.Mutex
}

// NewRunner creates a Runner
func NewRunner(config RunnerConfig) (*Runner, error) {
	if config.Classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	config.applyDefaults()
	return &Runner{config: config}, nil
}

// RunSummary reports what a pipeline run did
type RunSummary struct {
	RunID        string
	Rows         int
	Batches      int
	Detection    ColumnDetection
	Distribution map[string]int
	Metrics      classifier.Metrics
}

// batch is one contiguous chunk of table rows
type batch struct {
	number int
	start  int
	names  []string
}

// Run classifies the names in inPath and writes outPath. An empty
// column triggers automatic name-column detection. On cancellation the
// already-completed batches are flushed to outPath and the context
// error is returned alongside the partial summary.
func (r *Runner) Run(ctx context.Context, inPath, outPath, column string) (*RunSummary, error) {
	runID := uuid.New().String()[:8]
	logger := r.config.Logger.With("run_id", runID)

	table, err := ReadTable(inPath)
	if err != nil {
		return nil, err
	}
	logger.Info("loaded input", "path", inPath, "rows", len(table.Rows))

	detection, err := r.config.Detector.Detect(ctx, table, column)
	if err != nil {
		return nil, err
	}
	nameIdx, _ := table.ColumnIndex(detection.Column)

	ethnicityIdx := table.EnsureColumn(ColumnEthnicity)
	confidenceIdx := table.EnsureColumn(ColumnConfidence)
	methodIdx := table.EnsureColumn(ColumnMethod)

	batches := chunkRows(table, nameIdx, r.config.BatchSize)
	logger.Info("starting classification",
		"column", detection.Column, "batches", len(batches), "batch_size", r.config.BatchSize,
		"workers", r.config.Workers)

	completed := 0
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Workers)
	for _, b := range batches {
		b := b // per-iteration copy; required under the go 1.21 directive
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			results := r.config.Classifier.ClassifyBatch(gctx, b.names)
			if len(results) != len(b.names) {
				logger.Warn("result count mismatch, skipping batch",
					"batch", b.number, "expected", len(b.names), "got", len(results))
				return nil
			}
			// A cancellation mid-call degrades the whole batch; drop it
			// rather than checkpoint junk rows.
			if err := gctx.Err(); err != nil {
				return err
			}

			r.mu.Lock()
			defer r.mu.Unlock()
			for i, res := range results {
				row := table.Rows[b.start+i]
				row[ethnicityIdx] = res.PredictedEthnicity
				row[confidenceIdx] = strconv.FormatFloat(res.Confidence, 'f', 2, 64)
				row[methodIdx] = string(res.Method)
			}
			if err := table.WriteFile(outPath); err != nil {
				return fmt.Errorf("checkpoint save failed: %w", err)
			}
			completed++
			logger.Info("batch classified", "batch", b.number, "names", len(b.names))
			return nil
		})
	}
	runErr := g.Wait()

	// Final save covers the zero-batch case and doubles as a flush
	// after cancellation.
	r.mu.Lock()
	saveErr := table.WriteFile(outPath)
	completedBatches := completed
	r.mu.Unlock()
	if runErr == nil {
		runErr = saveErr
	}

	summary := &RunSummary{
		RunID:        runID,
		Rows:         len(table.Rows),
		Batches:      completedBatches,
		Detection:    detection,
		Distribution: labelDistribution(table, ethnicityIdx),
		Metrics:      r.config.Classifier.GetMetrics(),
	}

	logger.Info("classification finished",
		"rows", summary.Rows, "batches", summary.Batches, "distribution", summary.Distribution,
		"cache_hit_rate", fmt.Sprintf("%.1f%%", summary.Metrics.CacheHitRate))
	if runErr != nil {
		logger.Warn("run incomplete, partial results saved", "path", outPath, "error", runErr)
	}

	return summary, runErr
}

func chunkRows(t *Table, nameIdx int, batchSize int) []batch {
	var batches []batch
	for start := 0; start < len(t.Rows); start += batchSize {
		end := start + batchSize
		if end > len(t.Rows) {
			end = len(t.Rows)
		}
		names := make([]string, 0, end-start)
		for _, row := range t.Rows[start:end] {
			names = append(names, row[nameIdx])
		}
		batches = append(batches, batch{number: len(batches) + 1, start: start, names: names})
	}
	return batches
}

// labelDistribution counts predicted labels over the whole table
func labelDistribution(t *Table, ethnicityIdx int) map[string]int {
	distribution := make(map[string]int)
	for _, row := range t.Rows {
		if label := row[ethnicityIdx]; label != "" {
			distribution[label]++
		}
	}
	return distribution
}
