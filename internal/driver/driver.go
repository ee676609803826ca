// Package driver runs the scrape pipeline over a batch of company names.
package driver

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tkummer/hrfetch/internal/cache"
	"github.com/tkummer/hrfetch/internal/config"
	"github.com/tkummer/hrfetch/internal/extract"
	"github.com/tkummer/hrfetch/internal/model"
	"github.com/tkummer/hrfetch/internal/reconcile"
	"github.com/tkummer/hrfetch/internal/session"
	"github.com/tkummer/hrfetch/internal/store"
)

// Outcome is the per-company result of one batch entry.
type Outcome struct {
	Company string
	Err     error
}

// errSkipped marks entries never attempted because the run aborted early.
var errSkipped = errors.New("skipped: run aborted")

// Driver fans company names out over a bounded worker pool. Each name gets
// its own navigator and session; the store is the only shared sink and
// serializes its own writes.
type Driver struct {
	cfg       *config.Config
	store     *store.RegistryStore
	cache     *cache.Cache // nil disables caching and the fetch log
	transport session.Transport
	logger    *slog.Logger

	mu  sync.Mutex // guards out and the progress counter
	out io.Writer
}

// New creates a driver. out receives progress and per-company lines.
func New(cfg *config.Config, st *store.RegistryStore, ca *cache.Cache, logger *slog.Logger, out io.Writer) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	if out == nil {
		out = os.Stdout
	}
	return &Driver{
		cfg:       cfg,
		store:     st,
		cache:     ca,
		transport: session.NewHTTPTransport(cfg.Timeout),
		logger:    logger,
		out:       out,
	}
}

// SetTransport swaps the HTTP transport. Tests inject a fake here.
func (d *Driver) SetTransport(t session.Transport) { d.transport = t }

// Run processes every company name and returns one outcome per input, in
// input order. A failing name is reported and never aborts the batch; a
// corrupt store does, since there is no safe partial-write fallback.
func (d *Driver) Run(ctx context.Context, names []string, mode model.MatchMode, cacheMode session.CacheMode) []Outcome {
	outcomes := make([]Outcome, len(names))
	for i, name := range names {
		outcomes[i] = Outcome{Company: name, Err: errSkipped}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type job struct {
		idx  int
		name string
	}
	jobs := make(chan job)

	var done int
	var wg sync.WaitGroup
	for w := 0; w < d.cfg.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				err := d.processOne(ctx, j.name, mode, cacheMode)
				outcomes[j.idx] = Outcome{Company: j.name, Err: err}

				// Store corruption has no safe partial-write fallback;
				// stop handing out work.
				if errors.Is(err, model.ErrCorruptStore) {
					cancel()
				}

				d.mu.Lock()
				done++
				fmt.Fprintf(d.out, "[%d/%d] %s: %s\n", done, len(names), j.name, outcomeText(err))
				d.mu.Unlock()
			}
		}()
	}

dispatch:
	for i, name := range names {
		select {
		case jobs <- job{idx: i, name: name}:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	return outcomes
}

// processOne runs the full walk-extract-merge-upsert pipeline for one name.
func (d *Driver) processOne(ctx context.Context, name string, mode model.MatchMode, cacheMode session.CacheMode) error {
	start := time.Now()
	err := d.scrape(ctx, name, mode, cacheMode)
	d.logFetch(ctx, name, mode, start, err)
	return err
}

func (d *Driver) scrape(ctx context.Context, name string, mode model.MatchMode, cacheMode session.CacheMode) error {
	var rc session.ResponseCache
	if d.cache != nil {
		rc = d.cache
	}

	nav := session.New(d.transport, rc, d.cfg.BaseURL, d.logger)

	query := model.SearchQuery{Keywords: name, Mode: mode}
	res, err := nav.RunQuery(ctx, query, cacheMode)
	if err != nil {
		return err
	}

	listings, err := extract.ExtractRows(res.ResultsHTML)
	if err != nil {
		return err
	}
	if len(listings) == 0 {
		return model.ErrNoResults
	}

	docs, err := extract.ExtractAllFields(res.DocumentBytes)
	if err != nil {
		// An unparseable export degrades to null document fields rather
		// than failing the listing side of the pipeline.
		d.logger.Warn("document export unparseable", "company", name, "error", err)
		docs = nil
	}
	if len(docs) == 0 {
		docs = []model.DocumentRecord{{}}
	}

	// Exports sometimes bundle several person records. Each one is merged
	// against the full listing set, one reconciled row per person.
	var merged []model.MergedRecord
	for _, doc := range docs {
		entity := make([]model.DocumentRecord, len(listings))
		for i := range entity {
			entity[i] = doc
		}
		merged = append(merged, reconcile.Merge(listings, entity)...)
	}

	return d.store.Upsert(listings, merged)
}

func (d *Driver) logFetch(ctx context.Context, name string, mode model.MatchMode, start time.Time, err error) {
	if d.cache == nil {
		return
	}

	rec := cache.FetchRecord{
		Keywords: name,
		Mode:     string(mode),
		Status:   "ok",
		Duration: time.Since(start).Milliseconds(),
	}
	if err != nil {
		rec.Status = "failed"
		rec.Error = err.Error()
	}
	if logErr := d.cache.LogFetch(ctx, rec); logErr != nil {
		d.logger.Debug("fetch log write failed", "error", logErr)
	}
}

func outcomeText(err error) string {
	switch {
	case err == nil:
		return "OK"
	case errors.Is(err, model.ErrNoResults):
		return "NO RESULTS"
	default:
		return "FAIL: " + err.Error()
	}
}

// ReadNames loads company names from the first column of a CSV file,
// skipping the header row and blank cells.
func ReadNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var names []string
	first := true
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if first {
			first = false // header row
			continue
		}
		if len(record) == 0 {
			continue
		}
		if name := strings.TrimSpace(record[0]); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}
