package pagination

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/Sternrassler/cas-client/pkg/reference"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Prometheus metrics for drains.
var (
	casPagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cas_pages_fetched_total",
		Help: "Total collection pages fetched by response shape",
	}, []string{"shape"})

	casDrainsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cas_drains_total",
		Help: "Total collection drains by result",
	}, []string{"result"})

	casDrainDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cas_drain_duration_seconds",
		Help:    "Duration of complete collection drains in seconds",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	})
)

var (
	// ErrCursorLoop is returned when a next link points at an already fetched page.
	ErrCursorLoop = errors.New("pagination cursor loop")

	// ErrTooManyPages is returned when a drain exceeds Config.MaxPages.
	ErrTooManyPages = errors.New("pagination page budget exceeded")
)

// Config holds drainer configuration.
type Config struct {
	// MaxPages bounds the number of pages in one drain
	MaxPages int

	// PageTimeout applies to each page fetch
	PageTimeout time.Duration
}

// DefaultConfig returns the default drainer configuration.
func DefaultConfig() Config {
	return Config{
		MaxPages:    1000,
		PageTimeout: 15 * time.Second,
	}
}

// PageFetcher fetches the raw body of one collection page. Implementations
// return an error for any non-success status.
type PageFetcher interface {
	FetchPage(ctx context.Context, pageURL string) ([]byte, error)
}

// Drainer follows next links until a collection is exhausted.
type Drainer struct {
	fetcher PageFetcher
	config  Config
	logger  zerolog.Logger
}

// NewDrainer creates a new drainer.
func NewDrainer(fetcher PageFetcher, config Config) *Drainer {
	if config.MaxPages <= 0 {
		config.MaxPages = 1000
	}
	if config.PageTimeout <= 0 {
		config.PageTimeout = 15 * time.Second
	}

	return &Drainer{
		fetcher: fetcher,
		config:  config,
		logger:  log.With().Str("component", "pagination").Logger(),
	}
}

// Drain fetches start and every following page and returns all records in
// server order. On any error nothing is returned but the error.
func (d *Drainer) Drain(ctx context.Context, start string) ([]reference.Record, error) {
	begin := time.Now()
	defer func() {
		casDrainDuration.Observe(time.Since(begin).Seconds())
	}()

	var all []reference.Record
	visited := make(map[string]bool)
	next := start

	for pages := 0; next != ""; pages++ {
		if pages >= d.config.MaxPages {
			casDrainsTotal.WithLabelValues("page_budget").Inc()
			d.logger.Warn().
				Str("start", start).
				Int("max_pages", d.config.MaxPages).
				Msg("Drain aborted: page budget exceeded")
			return nil, fmt.Errorf("drain %s: %w (%d pages)", start, ErrTooManyPages, d.config.MaxPages)
		}

		if visited[next] {
			casDrainsTotal.WithLabelValues("cursor_loop").Inc()
			d.logger.Warn().
				Str("start", start).
				Str("next", next).
				Msg("Drain aborted: next link revisits a fetched page")
			return nil, fmt.Errorf("drain %s: %w at %s", start, ErrCursorLoop, next)
		}
		visited[next] = true

		page, err := d.fetch(ctx, next)
		if err != nil {
			casDrainsTotal.WithLabelValues("error").Inc()
			d.logger.Warn().
				Err(err).
				Str("start", start).
				Int("pages_fetched", pages).
				Msg("Drain failed - discarding accumulated records")
			return nil, err
		}

		all = append(all, page.Records...)

		if page.Last() {
			break
		}

		resolved, err := resolveNext(next, page.Next)
		if err != nil {
			casDrainsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("drain %s: %w", start, err)
		}
		next = resolved
	}

	casDrainsTotal.WithLabelValues("ok").Inc()
	d.logger.Debug().
		Str("start", start).
		Int("records", len(all)).
		Dur("duration", time.Since(begin)).
		Msg("Drain complete")

	if all == nil {
		all = []reference.Record{}
	}
	return all, nil
}

// fetch loads and decodes one page under the per-page timeout.
func (d *Drainer) fetch(ctx context.Context, pageURL string) (Page, error) {
	pageCtx, cancel := context.WithTimeout(ctx, d.config.PageTimeout)
	defer cancel()

	data, err := d.fetcher.FetchPage(pageCtx, pageURL)
	if err != nil {
		return Page{}, err
	}

	page, err := DecodePage(data)
	if err != nil {
		return Page{}, fmt.Errorf("decode %s: %w", pageURL, err)
	}

	casPagesFetchedTotal.WithLabelValues(page.Shape.String()).Inc()
	d.logger.Debug().
		Str("url", pageURL).
		Str("shape", page.Shape.String()).
		Int("records", len(page.Records)).
		Bool("last", page.Last()).
		Msg("Page fetched")

	return page, nil
}

// resolveNext resolves a possibly relative next link against the current page.
func resolveNext(current, next string) (string, error) {
	ref, err := url.Parse(next)
	if err != nil {
		return "", fmt.Errorf("parse next link %q: %w", next, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}

	base, err := url.Parse(current)
	if err != nil {
		return "", fmt.Errorf("parse page url %q: %w", current, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// DrainAll drains several independent collections concurrently. The result is
// keyed like starts. The first failure cancels the remaining drains and fails
// the whole join.
func (d *Drainer) DrainAll(ctx context.Context, starts map[string]string) (map[string][]reference.Record, error) {
	results := make(map[string][]reference.Record, len(starts))
	collected := make([][]reference.Record, len(starts))
	names := make([]string, 0, len(starts))
	for name := range starts {
		names = append(names, name)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		i, start := i, starts[name]
		g.Go(func() error {
			records, err := d.Drain(gctx, start)
			if err != nil {
				return err
			}
			collected[i] = records
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, name := range names {
		results[name] = collected[i]
	}
	return results, nil
}
