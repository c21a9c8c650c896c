// Package view drives the data lifecycle of one dashboard page: draining the
// primary collection and its lookup collections, publishing rows, starting
// the enrichment backfill and rendering snapshots through the reference
// normalizer.
//
// A page moves Idle -> Loading -> Loaded or Failed. Failed is terminal until
// Load is called again. While Loaded, Enriching reports whether a backfill
// job is still running; its labels appear in later snapshots.
package view

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/cas-client/pkg/enrich"
	"github.com/Sternrassler/cas-client/pkg/lookup"
	"github.com/Sternrassler/cas-client/pkg/pagination"
	"github.com/Sternrassler/cas-client/pkg/reference"
	"github.com/Sternrassler/cas-client/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for page loads.
var casPageLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cas_page_loads_total",
	Help: "Total dashboard page loads by page and result",
}, []string{"page", "result"})

// ErrLoadInProgress is returned when Load is called while a load is running.
var ErrLoadInProgress = errors.New("page load already in progress")

// Phase is the lifecycle state of a page.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseLoaded
	PhaseFailed
)

// String implements fmt.Stringer.
func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseLoaded:
		return "loaded"
	case PhaseFailed:
		return "failed"
	default:
		return "idle"
	}
}

// MarshalText renders the phase by name in JSON snapshots.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Resolver turns endpoints into absolute URLs.
type Resolver interface {
	Resolve(endpoint string) (string, error)
}

// Deps are the collaborators of a page. Drainer is required; Backfiller and
// Resolver are optional.
type Deps struct {
	Drainer    *pagination.Drainer
	Backfiller *enrich.Backfiller
	Resolver   Resolver
}

// Page holds the data of one dashboard page for one session.
type Page struct {
	def    Definition
	deps   Deps
	sess   session.Session
	logger zerolog.Logger

	mu       sync.RWMutex
	phase    Phase
	err      error
	records  []reference.Record
	lookups  map[string]lookup.Map
	job      *enrich.Job
	loadedAt time.Time
	updates  int
}

// New creates an idle page.
func New(def Definition, deps Deps, sess session.Session) *Page {
	return &Page{
		def:  def,
		deps: deps,
		sess: sess,
		logger: log.With().
			Str("component", "view").
			Str("page", def.Name).
			Logger(),
	}
}

// Definition returns the page definition.
func (p *Page) Definition() Definition {
	return p.def
}

// Phase returns the current lifecycle phase.
func (p *Page) Phase() Phase {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.phase
}

// Err returns the failure of the last load, if any.
func (p *Page) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.err
}

// Enriching reports whether a backfill job is still running.
func (p *Page) Enriching() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enrichingLocked()
}

func (p *Page) enrichingLocked() bool {
	if p.job == nil {
		return false
	}
	select {
	case <-p.job.Done():
		return false
	default:
		return true
	}
}

// Load drains the primary collection and the lookup collections
// concurrently, publishes the rows and starts enrichment without waiting for
// it. A primary failure moves the page to Failed with no rows; lookup
// failures leave the affected map empty.
func (p *Page) Load(ctx context.Context) error {
	p.mu.Lock()
	if p.phase == PhaseLoading {
		p.mu.Unlock()
		return ErrLoadInProgress
	}
	if p.job != nil {
		p.job.Cancel()
		p.job = nil
	}
	p.phase = PhaseLoading
	p.err = nil
	p.records = nil
	p.updates = 0
	p.mu.Unlock()

	start := time.Now()

	var (
		wg         sync.WaitGroup
		records    []reference.Record
		primaryErr error
		lookups    = make(map[string]lookup.Map, len(p.def.Lookups))
		lookupsMu  sync.Mutex
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		records, primaryErr = p.drain(ctx, p.def.StartURL(p.sess))
	}()

	for _, src := range p.def.Lookups {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m := p.loadLookup(ctx, src)
			lookupsMu.Lock()
			lookups[src.Name] = m
			lookupsMu.Unlock()
		}()
	}

	wg.Wait()

	if primaryErr != nil {
		casPageLoadsTotal.WithLabelValues(p.def.Name, "failed").Inc()
		p.logger.Warn().Err(primaryErr).Msg("Page load failed")

		p.mu.Lock()
		p.phase = PhaseFailed
		p.err = primaryErr
		p.records = nil
		p.lookups = nil
		p.mu.Unlock()
		return primaryErr
	}

	records = p.filter(records)
	p.sortRecords(records)

	// The job is set under the same lock that publishes the rows, so a
	// later Load always sees and cancels it.
	p.mu.Lock()
	p.records = records
	p.lookups = lookups
	p.phase = PhaseLoaded
	p.loadedAt = time.Now()
	p.job = p.startEnrichment(ctx, records, lookups)
	p.mu.Unlock()

	casPageLoadsTotal.WithLabelValues(p.def.Name, "loaded").Inc()
	p.logger.Info().
		Int("rows", len(records)).
		Dur("duration", time.Since(start)).
		Msg("Page loaded")

	return nil
}

// drain resolves the endpoint and drains it.
func (p *Page) drain(ctx context.Context, endpoint string) ([]reference.Record, error) {
	target := endpoint
	if p.deps.Resolver != nil {
		resolved, err := p.deps.Resolver.Resolve(endpoint)
		if err != nil {
			return nil, err
		}
		target = resolved
	}
	return p.deps.Drainer.Drain(ctx, target)
}

// loadLookup drains one secondary collection into a map. Failures are
// swallowed and yield an empty map.
func (p *Page) loadLookup(ctx context.Context, src LookupSource) lookup.Map {
	records, err := p.drain(ctx, src.Endpoint)
	if err != nil {
		p.logger.Warn().Err(err).Str("lookup", src.Name).Msg("Lookup load failed - continuing without it")
		return lookup.Map{}
	}

	if src.Exclude != nil {
		kept := make([]reference.Record, 0, len(records))
		for _, rec := range records {
			if !src.Exclude(rec) {
				kept = append(kept, rec)
			}
		}
		records = kept
	}
	return lookup.Build(records, src.Label)
}

func (p *Page) filter(records []reference.Record) []reference.Record {
	if p.def.Keep == nil {
		return records
	}
	kept := make([]reference.Record, 0, len(records))
	for _, rec := range records {
		if p.def.Keep(p.sess, rec) {
			kept = append(kept, rec)
		}
	}
	return kept
}

func (p *Page) sortRecords(records []reference.Record) {
	if p.def.SortField == "" {
		return
	}
	field, desc := p.def.SortField, p.def.SortDesc
	sort.SliceStable(records, func(i, j int) bool {
		if desc {
			return less(records[j][field], records[i][field])
		}
		return less(records[i][field], records[j][field])
	})
}

// less orders numbers numerically and everything else case-insensitively.
// Missing values sort last.
func less(a, b any) bool {
	as, aok := reference.Stringify(a)
	bs, bok := reference.Stringify(b)
	switch {
	case !aok:
		return false
	case !bok:
		return true
	}

	af, aerr := strconv.ParseFloat(as, 64)
	bf, berr := strconv.ParseFloat(bs, 64)
	if aerr == nil && berr == nil {
		return af < bf
	}
	return strings.ToLower(as) < strings.ToLower(bs)
}

// startEnrichment launches the backfill for the published rows. The job is
// detached from ctx's cancellation so it outlives the triggering request.
// Start returns at once and updates arrive later, so it is safe to call with
// p.mu held.
func (p *Page) startEnrichment(ctx context.Context, records []reference.Record, lookups map[string]lookup.Map) *enrich.Job {
	if p.deps.Backfiller == nil || len(p.def.Enrich) == 0 || len(records) == 0 {
		return nil
	}

	return p.deps.Backfiller.Start(context.WithoutCancel(ctx), records, p.def.Enrich, lookups, func(u enrich.Update) {
		p.mu.Lock()
		p.updates++
		p.mu.Unlock()
	})
}

// Wait blocks until the running enrichment job (if any) finishes or ctx is done.
func (p *Page) Wait(ctx context.Context) error {
	p.mu.RLock()
	job := p.job
	p.mu.RUnlock()

	if job == nil {
		return nil
	}
	select {
	case <-job.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels a running enrichment job and waits until it has released
// its unfinished claims.
func (p *Page) Stop() {
	p.mu.Lock()
	job := p.job
	p.job = nil
	p.mu.Unlock()

	if job != nil {
		job.Cancel()
		job.Wait()
	}
}

// Close cancels a running enrichment job.
func (p *Page) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.job != nil {
		p.job.Cancel()
	}
}

// Snapshot renders the current rows. Enrichment labels learned so far are
// applied after the lookup maps; embedded labels always win.
func (p *Page) Snapshot(ctx context.Context) Snapshot {
	p.mu.RLock()
	snap := Snapshot{
		Page:      p.def.Name,
		Title:     p.def.Title,
		Phase:     p.phase,
		Enriching: p.enrichingLocked(),
		LoadedAt:  p.loadedAt,
		Updates:   p.updates,
	}
	err := p.err
	records := p.records
	lookups := p.lookups
	p.mu.RUnlock()

	for _, col := range p.def.Columns {
		snap.Columns = append(snap.Columns, col.Name)
	}

	if err != nil {
		snap.Error = err.Error()
		snap.StatusCode = statusCode(err)
	}

	var cached map[string]lookup.Map
	if p.deps.Backfiller != nil && len(p.def.Enrich) > 0 {
		cached = p.deps.Backfiller.Cached(ctx, p.def.Enrich)
	}

	snap.Rows = make([]Row, 0, len(records))
	for _, rec := range records {
		snap.Rows = append(snap.Rows, renderRow(rec, p.def.Columns, lookups, cached))
	}
	return snap
}

func renderRow(rec reference.Record, columns []Column, lookups, cached map[string]lookup.Map) Row {
	row := Row{ID: rec.ID(), Cells: make([]Cell, 0, len(columns))}
	for _, col := range columns {
		row.Cells = append(row.Cells, renderCell(rec, col, lookups, cached))
	}
	return row
}

func renderCell(rec reference.Record, col Column, lookups, cached map[string]lookup.Map) Cell {
	if col.Label != nil {
		if text := col.Label(rec); text != "" {
			return Cell{Text: text}
		}
		if !col.reference() {
			return Cell{Text: reference.Placeholder}
		}
	}

	if !col.reference() {
		if text, ok := reference.Stringify(rec[col.Field]); ok {
			return Cell{Text: text}
		}
		return Cell{Text: reference.Placeholder}
	}

	var sources []reference.Lookup
	if col.Lookup != "" {
		sources = append(sources, lookups[col.Lookup])
	}
	if col.Kind != "" {
		sources = append(sources, cached[col.Kind])
	}

	if col.Multi {
		refs := reference.NormalizeAll(rec.Ref(col.Field), sources...)
		if len(refs) == 0 {
			return Cell{Text: reference.Placeholder}
		}
		return Cell{Text: strings.Join(reference.Labels(refs), ", "), Refs: refs}
	}

	r := reference.Normalize(rec.Ref(col.Field), sources...)
	return Cell{Text: r.Label, Refs: []reference.Resolved{r}}
}

// String renders a one-line summary of the page state.
func (p *Page) String() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return fmt.Sprintf("%s: %s (%d rows)", p.def.Name, p.phase, len(p.records))
}
