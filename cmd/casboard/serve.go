package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Sternrassler/cas-client/pkg/client"
	"github.com/Sternrassler/cas-client/pkg/config"
	"github.com/Sternrassler/cas-client/pkg/enrich"
	"github.com/Sternrassler/cas-client/pkg/logging"
	"github.com/Sternrassler/cas-client/pkg/metrics"
	"github.com/Sternrassler/cas-client/pkg/session"
	"github.com/Sternrassler/cas-client/pkg/view"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve dashboard pages as JSON snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}

			c, err := a.newClient()
			if err != nil {
				return err
			}

			rdb := a.newRedis()
			if rdb != nil {
				defer rdb.Close()
				if err := rdb.Ping(cmd.Context()).Err(); err != nil {
					return fmt.Errorf("connect to redis at %s: %w", a.cfg.Redis.Addr, err)
				}
				a.logger.Info().Str("addr", a.cfg.Redis.Addr).Msg("Connected to Redis")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return newServer(c, a.cfg, rdb).run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config and "+config.EnvListenAddr+")")
	return cmd
}

// server serves the catalog pages, one set of pages per bearer token.
type server struct {
	client *client.Client
	cfg    config.Config
	redis  redis.UniversalClient
	logger zerolog.Logger
	now    func() time.Time

	mu         sync.Mutex
	dashboards map[string]*dashboard
}

// dashboard is the page state of one session.
type dashboard struct {
	sess     session.Session
	store    enrich.Store
	lastSeen time.Time

	mu    sync.Mutex
	pages map[string]*view.Page
}

// close cancels the enrichment jobs of every page.
func (d *dashboard) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.pages {
		p.Close()
	}
}

func newServer(c *client.Client, cfg config.Config, rdb redis.UniversalClient) *server {
	return &server{
		client:     c,
		cfg:        cfg,
		redis:      rdb,
		logger:     logging.NewLogger("casboard"),
		now:        time.Now,
		dashboards: make(map[string]*dashboard),
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /views", s.handleCatalog)
	mux.HandleFunc("GET /views/{page}", s.handleView)
	return mux
}

// run serves until ctx is done, then shuts down gracefully.
func (s *server) run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.sweepEvery(ctx, time.Minute)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", srv.Addr).Str("api", s.cfg.API.BaseURL).Msg("Starting casboard server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down casboard server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.close()
	return err
}

// close cancels every running enrichment job.
func (s *server) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.dashboards {
		d.close()
	}
}

func (s *server) dashboard(sess session.Session) *dashboard {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.evictLocked(now)

	d, ok := s.dashboards[sess.Token]
	if !ok {
		d = &dashboard{
			sess:  sess,
			store: labelStore(s.redis, s.cfg),
			pages: make(map[string]*view.Page),
		}
		s.dashboards[sess.Token] = d
	}
	d.lastSeen = now
	return d
}

// sweep drops the dashboards of expired or idle sessions.
func (s *server) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked(s.now())
}

func (s *server) sweepEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *server) evictLocked(now time.Time) {
	idle := s.cfg.Server.IdleTimeout
	for token, d := range s.dashboards {
		expired := d.sess.Require(now) != nil
		if !expired && (idle <= 0 || now.Sub(d.lastSeen) <= idle) {
			continue
		}
		d.close()
		delete(s.dashboards, token)
		s.logger.Debug().Bool("expired", expired).Msg("Dashboard evicted")
	}
}

func (s *server) page(d *dashboard, def view.Definition) *view.Page {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.pages[def.Name]
	if !ok {
		p = view.New(def, deps(s.client, s.cfg, d.sess, d.store), d.sess)
		d.pages[def.Name] = p
	}
	return p
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

type pageInfo struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

func (s *server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	catalog := view.Catalog()
	out := make([]pageInfo, 0, len(catalog))
	for _, name := range view.Names() {
		out = append(out, pageInfo{Name: name, Title: catalog[name].Title})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleView renders one page. The page loads on first access; refresh=1
// clears the session's enrichment labels and reloads; q filters rows.
func (s *server) handleView(w http.ResponseWriter, r *http.Request) {
	sess, err := session.FromToken(r.Header.Get("Authorization"))
	if err == nil {
		err = sess.Require(time.Now())
	}
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return
	}

	def, err := pageDefinition(r.PathValue("page"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}

	d := s.dashboard(sess)
	p := s.page(d, def)

	refresh := r.URL.Query().Get("refresh") == "1"
	if refresh {
		// A running job must give up its claims before the store is cleared,
		// or it would claim ids again behind the reset.
		p.Stop()
		if err := d.store.Reset(r.Context()); err != nil {
			s.logger.Warn().Err(err).Msg("Label store reset failed")
		}
	}

	if refresh || p.Phase() == view.PhaseIdle {
		// Failures are part of the snapshot; a concurrent load is already
		// filling the page.
		if err := p.Load(r.Context()); err != nil && !errors.Is(err, view.ErrLoadInProgress) {
			s.logger.Debug().Err(err).Str("page", def.Name).Msg("Page load failed")
		}
	}

	snap := p.Snapshot(r.Context()).Search(r.URL.Query().Get("q"))

	status := http.StatusOK
	if snap.Phase == view.PhaseFailed {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, snap)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := logging.NewLogger("casboard")
		logger.Warn().Err(err).Msg("Failed to write response")
	}
}
