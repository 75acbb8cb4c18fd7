package worker

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"sjsage522/flooringscraper/internal/catalog"
	"sjsage522/flooringscraper/internal/crawler"
	"sjsage522/flooringscraper/logger"
	"sjsage522/flooringscraper/pkg/errors"
	"sjsage522/flooringscraper/services/publisher"
	"sjsage522/flooringscraper/services/store"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// ErrNoVendors is returned when none of the requested vendors could be resolved
var ErrNoVendors = stderrors.New("no vendors to run")

// AdapterResolver picks the adapter for a vendor
type AdapterResolver interface {
	ForVendor(vendor catalog.Vendor) (crawler.Adapter, error)
}

// Worker runs each vendor's adapter in turn and records the outcome
type Worker struct {
	store     store.Store
	publisher publisher.Publisher
	resolver  AdapterResolver

	// fallback supplies vendors when the registry is unusable
	fallback func() []catalog.Vendor
	now      func() time.Time
	newRunID func() string
	log      *logger.Logger
}

// NewWorker creates a new worker
func NewWorker(st store.Store, pub publisher.Publisher, resolver AdapterResolver) *Worker {
	if pub == nil {
		pub = publisher.NoopPublisher{}
	}
	return &Worker{
		store:     st,
		publisher: pub,
		resolver:  resolver,
		fallback:  crawler.DefaultVendors,
		now:       time.Now,
		newRunID:  uuid.NewString,
		log:       logger.ForWorker(),
	}
}

// Report is the result of one invocation
type Report struct {
	RunID    string
	Outcomes []catalog.RunOutcome
	// Skipped holds configuration errors for vendors that were never run
	Skipped []error
}

// Failed counts vendors whose run ended in error
func (r *Report) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.Succeeded() {
			n++
		}
	}
	return n
}

// Run scrapes the vendors named by keys, or every enabled registry vendor when
// keys is empty. A vendor failure is recorded in its outcome and never stops the
// batch; the returned error is reserved for having nothing to run.
func (w *Worker) Run(ctx context.Context, keys []string) (*Report, error) {
	vendors, skipped, err := w.Resolve(ctx, keys)
	if err != nil {
		return nil, err
	}

	report := &Report{RunID: w.newRunID(), Skipped: skipped}
	w.log.Info().Str("run_id", report.RunID).Int("vendors", len(vendors)).Msg("Starting run")

	for _, vendor := range vendors {
		if ctx.Err() != nil {
			break
		}

		adapter, err := w.resolver.ForVendor(vendor)
		if err != nil {
			w.log.Error().Err(err).Str("vendor", vendor.Key).Msg("Skipping vendor")
			report.Skipped = append(report.Skipped, err)
			continue
		}

		outcome := w.runVendor(ctx, report.RunID, vendor, adapter)
		report.Outcomes = append(report.Outcomes, outcome)
	}

	if err := w.publisher.TrimStreams(ctx); err != nil {
		logger.LogError("publisher", err, "Failed to trim streams")
	}

	w.log.Info().
		Str("run_id", report.RunID).
		Int("succeeded", len(report.Outcomes)-report.Failed()).
		Int("failed", report.Failed()).
		Int("skipped", len(report.Skipped)).
		Msg("Run finished")
	return report, ctx.Err()
}

// Resolve turns the invocation arguments into the vendors to run.
//
// With no keys the registry's enabled rows are used; an unreachable or empty
// registry falls back to the built-in list. An explicit key uses its enabled
// registry row when present, and otherwise the built-in vendor. A key whose
// only match is a disabled row is skipped.
func (w *Worker) Resolve(ctx context.Context, keys []string) ([]catalog.Vendor, []error, error) {
	registry, err := w.store.ListSuppliers(ctx)
	if err != nil {
		w.log.Warn().Err(err).Msg("Supplier registry unavailable, using built-in vendors")
		registry = nil
	}

	if len(keys) == 0 {
		if len(registry) == 0 {
			if err == nil {
				w.log.Warn().Msg("Supplier registry is empty, using built-in vendors")
			}
			return w.fallback(), nil, nil
		}
		enabled := store.EnabledOnly(registry)
		if len(enabled) == 0 {
			w.log.Warn().Int("registered", len(registry)).Msg("No enabled suppliers")
		}
		return enabled, nil, nil
	}

	byKey := make(map[string]catalog.Vendor, len(registry))
	disabled := make(map[string]struct{})
	for _, v := range registry {
		if !v.Enabled {
			disabled[v.Key] = struct{}{}
			continue
		}
		byKey[v.Key] = v
	}
	builtIn := make(map[string]catalog.Vendor)
	for _, v := range w.fallback() {
		builtIn[v.Key] = v
	}

	var (
		vendors []catalog.Vendor
		skipped []error
		seen    = make(map[string]struct{})
	)
	for _, key := range keys {
		key = strings.ToLower(strings.TrimSpace(key))
		if _, dup := seen[key]; dup || key == "" {
			continue
		}
		seen[key] = struct{}{}

		if v, ok := byKey[key]; ok {
			vendors = append(vendors, v)
			continue
		}
		if v, ok := builtIn[key]; ok {
			vendors = append(vendors, v)
			continue
		}
		reason := "unknown vendor"
		if _, off := disabled[key]; off {
			reason = "vendor is disabled"
		}
		cfgErr := errors.NewConfiguration(key, reason, nil)
		w.log.Error().Err(cfgErr).Msg("Skipping vendor")
		skipped = append(skipped, cfgErr)
	}

	if len(vendors) == 0 {
		return nil, skipped, ErrNoVendors
	}
	return vendors, skipped, nil
}

func (w *Worker) runVendor(ctx context.Context, runID string, vendor catalog.Vendor, adapter crawler.Adapter) catalog.RunOutcome {
	log := w.log.WithFields(logger.Fields{"vendor": vendor.Key, "adapter": adapter.Name()})
	outcome := catalog.RunOutcome{
		RunID:     runID,
		Source:    vendor.Key,
		StartedAt: w.now(),
	}

	log.Info().Str("url", vendor.BaseURL).Msg("Scraping vendor")
	products, err := scrape(ctx, adapter, vendor)
	if err == nil {
		err = w.store.ReplaceVendorCatalog(ctx, vendor.Key, products)
	}

	outcome.FinishedAt = w.now()
	if err != nil {
		outcome.Status = catalog.ErrorStatus(err)
		var scrapeErr *errors.ScrapeError
		retryable := stderrors.As(err, &scrapeErr) && scrapeErr.IsRetryable()
		log.Error().
			Err(err).
			Bool("retryable", retryable).
			Dur("elapsed", outcome.FinishedAt.Sub(outcome.StartedAt)).
			Msg("Vendor failed")
	} else {
		outcome.Status = catalog.StatusSuccess
		outcome.ProductCount = len(products)
		outcome.ProductsWithPrice = catalog.CountPriced(products)
		log.Info().
			Str("products", humanize.Comma(int64(outcome.ProductCount))).
			Str("priced", humanize.Comma(int64(outcome.ProductsWithPrice))).
			Dur("elapsed", outcome.FinishedAt.Sub(outcome.StartedAt)).
			Msg("Vendor saved")
	}

	// the outcome is written even when the run is being canceled
	recordCtx := context.WithoutCancel(ctx)
	if err := w.store.RecordRunOutcome(recordCtx, outcome); err != nil {
		logger.LogError("store", err, "Failed to record outcome for %s", vendor.Key)
	}
	w.publish(recordCtx, outcome)
	return outcome
}

func (w *Worker) publish(ctx context.Context, outcome catalog.RunOutcome) {
	data, err := json.Marshal(outcome)
	if err != nil {
		logger.LogError("publisher", err, "Failed to encode outcome for %s", outcome.Source)
		return
	}
	if err := w.publisher.Publish(ctx, outcome.Source, data); err != nil {
		logger.LogError("publisher", errors.NewPublisher(outcome.Source, "publish outcome", err), "Failed to publish outcome")
	}
}

// scrape runs the adapter and converts a panic into an error
func scrape(ctx context.Context, adapter crawler.Adapter, vendor catalog.Vendor) (products []catalog.Product, err error) {
	defer func() {
		if r := recover(); r != nil {
			products, err = nil, fmt.Errorf("adapter panic: %v", r)
		}
	}()
	return adapter.Fetch(ctx, vendor)
}
