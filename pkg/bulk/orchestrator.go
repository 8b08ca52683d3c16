// Package bulk drives the vendor client over lists of service tags in
// fixed-size batches with intra-batch fan-out, inter-batch pacing, and
// progress reporting.
package bulk

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/hwsync/dell-warranty-client/pkg/client"
	"github.com/hwsync/dell-warranty-client/pkg/warranty"
)

var (
	batchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dellapi_bulk_batches_total",
		Help: "Total bulk batches processed",
	})

	lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dellapi_bulk_lookups_total",
		Help: "Total bulk lookups by result",
	}, []string{"result"})
)

// DefaultBatchSize is the number of lookups issued concurrently per batch.
const DefaultBatchSize = 5

// DefaultPacing is the delay inserted between batches to stay under vendor
// burst limits, independent of the client-side rate limiter.
const DefaultPacing = 1 * time.Second

// ErrNoInput is returned when Process is called with an empty identifier
// list.
var ErrNoInput = errors.New("no service tags provided")

// Lookuper is the single-asset lookup the orchestrator fans out over.
// *client.Client implements it.
type Lookuper interface {
	GetAssetInfo(ctx context.Context, identifier string) (*warranty.AssetRecord, error)
}

// Result is the per-identifier outcome of a bulk run. Order matches the
// deduplicated input order.
type Result struct {
	ServiceTag string                `json:"serviceTag"`
	Success    bool                  `json:"success"`
	Data       *warranty.AssetRecord `json:"data,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// Progress is delivered to the progress sink after each batch completes.
type Progress struct {
	Processed          int      `json:"processed"`
	Total              int      `json:"total"`
	Percentage         int      `json:"percentage"`
	LatestBatchResults []Result `json:"latestBatchResults"`
}

// ProgressFunc receives batch-boundary progress. It is invoked
// synchronously; a slow sink delays the next batch.
type ProgressFunc func(Progress)

// Summary aggregates a finished bulk run.
type Summary struct {
	Total       int `json:"total"`
	Succeeded   int `json:"succeeded"`
	Failed      int `json:"failed"`
	SuccessRate int `json:"successRate"`
}

// Orchestrator serializes batches of concurrent lookups.
type Orchestrator struct {
	client    Lookuper
	batchSize int
	pacing    time.Duration
	logger    zerolog.Logger
}

// New creates an orchestrator with the default batch size and pacing.
func New(lookuper Lookuper, logger zerolog.Logger) *Orchestrator {
	return NewWithOptions(lookuper, DefaultBatchSize, DefaultPacing, logger)
}

// NewWithOptions creates an orchestrator with explicit batch size and
// pacing. Non-positive values fall back to the defaults.
func NewWithOptions(lookuper Lookuper, batchSize int, pacing time.Duration, logger zerolog.Logger) *Orchestrator {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	if pacing < 0 {
		pacing = DefaultPacing
	}
	return &Orchestrator{
		client:    lookuper,
		batchSize: batchSize,
		pacing:    pacing,
		logger:    logger.With().Str("component", "bulk-orchestrator").Logger(),
	}
}

// row is one deduplicated unit of work. Identifiers that fail shape
// validation carry their error and are never dispatched.
type row struct {
	tag     string
	invalid string
}

// Process looks up every identifier and returns one Result per unique
// identifier, in input order. A failed lookup never aborts the batch or the
// run; the only error returns are empty input and context cancellation.
// Cancellation is honored at every batch boundary and during pacing, with
// the results collected so far returned alongside ctx.Err().
func (o *Orchestrator) Process(ctx context.Context, identifiers []string, onProgress ProgressFunc) ([]Result, error) {
	if len(identifiers) == 0 {
		return nil, ErrNoInput
	}

	rows := dedupe(identifiers)
	total := len(rows)

	o.logger.Info().
		Int("unique_tags", total).
		Int("batch_size", o.batchSize).
		Msg("Starting bulk processing")

	results := make([]Result, 0, total)

	for start := 0; start < total; start += o.batchSize {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		end := start + o.batchSize
		if end > total {
			end = total
		}

		batchResults := o.processBatch(ctx, rows[start:end])
		results = append(results, batchResults...)
		batchesTotal.Inc()

		if onProgress != nil {
			onProgress(Progress{
				Processed:          len(results),
				Total:              total,
				Percentage:         int(math.Round(float64(len(results)) / float64(total) * 100)),
				LatestBatchResults: batchResults,
			})
		}

		// Pace between batches, but not after the final one.
		if end < total {
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			case <-time.After(o.pacing):
			}
		}
	}

	o.logger.Info().
		Int("total", total).
		Int("succeeded", Summarize(results).Succeeded).
		Msg("Bulk processing complete")

	return results, nil
}

// processBatch fans out one batch concurrently and joins all results before
// returning. Output order matches the batch's input order.
func (o *Orchestrator) processBatch(ctx context.Context, batch []row) []Result {
	results := make([]Result, len(batch))
	var wg sync.WaitGroup

	for i, r := range batch {
		if r.invalid != "" {
			results[i] = Result{ServiceTag: r.tag, Error: r.invalid}
			lookupsTotal.WithLabelValues("failure").Inc()
			continue
		}

		wg.Add(1)
		go func(i int, tag string) {
			defer wg.Done()

			record, err := o.client.GetAssetInfo(ctx, tag)
			if err != nil {
				o.logger.Debug().Err(err).Str("service_tag", tag).Msg("Bulk lookup failed")
				results[i] = Result{ServiceTag: tag, Error: err.Error()}
				lookupsTotal.WithLabelValues("failure").Inc()
				return
			}
			results[i] = Result{ServiceTag: tag, Success: true, Data: record}
			lookupsTotal.WithLabelValues("success").Inc()
		}(i, r.tag)
	}

	wg.Wait()
	return results
}

// dedupe normalizes identifiers and removes duplicates while preserving
// first-occurrence order. Shape-invalid identifiers are kept as failed rows
// so the caller sees every input accounted for.
func dedupe(identifiers []string) []row {
	seen := make(map[string]struct{}, len(identifiers))
	rows := make([]row, 0, len(identifiers))

	for _, id := range identifiers {
		tag, err := client.NormalizeServiceTag(id)
		if err != nil {
			key := "!" + id
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			rows = append(rows, row{tag: id, invalid: err.Error()})
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		rows = append(rows, row{tag: tag})
	}
	return rows
}

// Summarize aggregates success and failure counts for a finished run.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.Success {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	if s.Total > 0 {
		s.SuccessRate = int(math.Round(float64(s.Succeeded) / float64(s.Total) * 100))
	}
	return s
}
