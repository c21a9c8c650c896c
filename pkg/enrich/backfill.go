package enrich

import (
	"context"
	"sync"
	"time"

	"github.com/Sternrassler/cas-client/pkg/lookup"
	"github.com/Sternrassler/cas-client/pkg/reference"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Prometheus metrics for enrichment.
var casEnrichmentFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cas_enrichment_fetches_total",
	Help: "Total enrichment item fetches by kind and result",
}, []string{"kind", "result"})

// ItemFetcher fetches a single entity by endpoint.
type ItemFetcher interface {
	FetchItem(ctx context.Context, endpoint string) (reference.Record, error)
}

// Config holds backfiller configuration.
type Config struct {
	// MaxConcurrency bounds parallel item fetches per job
	MaxConcurrency int

	// Timeout applies to each item fetch
	Timeout time.Duration
}

// DefaultConfig returns the default backfiller configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        10 * time.Second,
	}
}

// Backfiller resolves missing reference labels by fetching single entities.
type Backfiller struct {
	fetcher ItemFetcher
	store   Store
	config  Config
	logger  zerolog.Logger
}

// NewBackfiller creates a backfiller. A nil store uses a fresh MemoryStore.
func NewBackfiller(fetcher ItemFetcher, store Store, config Config) *Backfiller {
	if store == nil {
		store = NewMemoryStore()
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	return &Backfiller{
		fetcher: fetcher,
		store:   store,
		config:  config,
		logger:  log.With().Str("component", "enrich").Logger(),
	}
}

// Store returns the label store.
func (b *Backfiller) Store() Store {
	return b.store
}

// Cached returns the labels learned so far for each target kind. Store
// errors are logged and yield an empty map.
func (b *Backfiller) Cached(ctx context.Context, targets []Target) map[string]lookup.Map {
	out := make(map[string]lookup.Map, len(targets))
	for _, t := range targets {
		if _, ok := out[t.Kind]; ok {
			continue
		}
		labels, err := b.store.Labels(ctx, t.Kind)
		if err != nil {
			b.logger.Warn().Err(err).Str("kind", t.Kind).Msg("Label store read failed")
			labels = lookup.Map{}
		}
		out[t.Kind] = labels
	}
	return out
}

// Missing returns the references that have an id but no embedded label, no
// lookup hit and no cached label, deduplicated per (kind, id) in record order.
func (b *Backfiller) Missing(ctx context.Context, records []reference.Record, targets []Target, lookups map[string]lookup.Map) []Request {
	cached := b.Cached(ctx, targets)
	seen := make(map[[2]string]bool)
	var out []Request

	for _, rec := range records {
		for _, t := range targets {
			for _, r := range reference.NormalizeAll(rec.Ref(t.Field), lookups[t.Lookup], cached[t.Kind]) {
				if !r.Unresolved() {
					continue
				}
				key := [2]string{t.Kind, r.ID}
				if seen[key] {
					continue
				}
				seen[key] = true
				out = append(out, Request{Target: t, ID: r.ID})
			}
		}
	}
	return out
}

// Result summarizes a finished job.
type Result struct {
	// Requested is the number of distinct missing references found.
	Requested int

	// Resolved is the number of labels learned.
	Resolved int

	// Missed is the number of failed fetches.
	Missed int

	// Skipped is the number of ids already claimed earlier in the session.
	Skipped int

	// Abandoned is the number of claims released because the job was
	// cancelled before their fetch finished.
	Abandoned int
}

// Job is a running backfill.
type Job struct {
	done   chan struct{}
	cancel context.CancelFunc
	result Result
}

// Done is closed when the job has finished.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job finishes and returns its result.
func (j *Job) Wait() Result {
	<-j.done
	return j.result
}

// Cancel stops outstanding fetches; Wait still returns.
func (j *Job) Cancel() {
	j.cancel()
}

// Start finds missing references and fetches them in the background. It
// returns immediately. onUpdate (optional) is called for every learned label,
// possibly from several goroutines.
func (b *Backfiller) Start(ctx context.Context, records []reference.Record, targets []Target, lookups map[string]lookup.Map, onUpdate func(Update)) *Job {
	jobCtx, cancel := context.WithCancel(ctx)
	job := &Job{done: make(chan struct{}), cancel: cancel}

	go func() {
		defer close(job.done)
		defer cancel()
		job.result = b.run(jobCtx, b.Missing(jobCtx, records, targets, lookups), onUpdate)
	}()

	return job
}

// run claims and fetches every request with bounded concurrency.
func (b *Backfiller) run(ctx context.Context, requests []Request, onUpdate func(Update)) Result {
	var (
		mu     sync.Mutex
		result = Result{Requested: len(requests)}
	)
	count := func(field *int) {
		mu.Lock()
		*field++
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(b.config.MaxConcurrency)

	// Store writes outlive cancellation so a finished fetch is never lost.
	storeCtx := context.WithoutCancel(ctx)

	for _, req := range requests {
		if ctx.Err() != nil {
			break
		}

		claimed, err := b.store.Claim(ctx, req.Target.Kind, req.ID)
		if err != nil {
			if ctx.Err() != nil {
				// The claim may have landed before the context error.
				_ = b.store.Release(storeCtx, req.Target.Kind, req.ID)
				break
			}
			b.miss(&Miss{Kind: req.Target.Kind, ID: req.ID, Err: err})
			count(&result.Missed)
			continue
		}
		if !claimed {
			casEnrichmentFetchesTotal.WithLabelValues(req.Target.Kind, "skipped").Inc()
			count(&result.Skipped)
			continue
		}

		g.Go(func() error {
			label, err := b.fetch(ctx, req)
			if err != nil && ctx.Err() != nil {
				b.release(storeCtx, req)
				count(&result.Abandoned)
				return nil
			}
			if err != nil {
				b.miss(&Miss{Kind: req.Target.Kind, ID: req.ID, Err: err})
				count(&result.Missed)
				return nil
			}

			if err := b.store.Put(storeCtx, req.Target.Kind, req.ID, label); err != nil {
				b.logger.Warn().Err(err).Str("kind", req.Target.Kind).Str("id", req.ID).Msg("Label store write failed")
			}
			casEnrichmentFetchesTotal.WithLabelValues(req.Target.Kind, "resolved").Inc()
			count(&result.Resolved)

			if onUpdate != nil {
				onUpdate(Update{Kind: req.Target.Kind, ID: req.ID, Label: label})
			}
			return nil
		})
	}

	_ = g.Wait()

	b.logger.Debug().
		Int("requested", result.Requested).
		Int("resolved", result.Resolved).
		Int("missed", result.Missed).
		Int("skipped", result.Skipped).
		Int("abandoned", result.Abandoned).
		Msg("Backfill complete")

	return result
}

// fetch loads one entity and derives its label.
func (b *Backfiller) fetch(ctx context.Context, req Request) (string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, b.config.Timeout)
	defer cancel()

	rec, err := b.fetcher.FetchItem(fetchCtx, req.Target.URL(req.ID))
	if err != nil {
		return "", err
	}

	label := req.Target.label(rec)
	if label == "" {
		return "", errNoLabel
	}
	return label, nil
}

// release gives up the claim on an abandoned fetch so the next job retries it.
func (b *Backfiller) release(ctx context.Context, req Request) {
	casEnrichmentFetchesTotal.WithLabelValues(req.Target.Kind, "abandoned").Inc()
	if err := b.store.Release(ctx, req.Target.Kind, req.ID); err != nil {
		b.logger.Warn().Err(err).Str("kind", req.Target.Kind).Str("id", req.ID).Msg("Claim release failed")
	}
}

// miss logs and counts a failed fetch. The reference keeps its raw id.
func (b *Backfiller) miss(m *Miss) {
	casEnrichmentFetchesTotal.WithLabelValues(m.Kind, "miss").Inc()
	b.logger.Debug().Err(m).Msg("Enrichment miss")
}
