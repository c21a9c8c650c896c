package casapi

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/cas-client/pkg/client"
	"github.com/Sternrassler/cas-client/pkg/pagination"
	"github.com/Sternrassler/cas-client/pkg/reference"
	"github.com/Sternrassler/cas-client/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for write operations.
var (
	casActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cas_actions_total",
		Help: "Total CAS write operations by action and result",
	}, []string{"action", "result"})

	casActionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cas_action_duration_seconds",
		Help:    "CAS write operation duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})
)

// Service exposes the CAS resources for one client.
type Service struct {
	client *client.Client
	pages  pagination.Config
	logger zerolog.Logger
}

// New creates a service. pages configures the drains behind List.
func New(c *client.Client, pages pagination.Config) *Service {
	if c == nil {
		panic("casapi: client must not be nil")
	}
	return &Service{
		client: c,
		pages:  pages,
		logger: log.With().Str("component", "casapi").Logger(),
	}
}

// Client returns the underlying client.
func (s *Service) Client() *client.Client {
	return s.client
}

// Drainer returns a drainer bound to the session.
func (s *Service) Drainer(sess session.Session) *pagination.Drainer {
	return pagination.NewDrainer(s.client.Pages(sess), s.pages)
}

// List drains a whole collection. query adds server-side filters.
func (s *Service) List(ctx context.Context, sess session.Session, res Resource, query url.Values) ([]reference.Record, error) {
	endpoint := res.Path()
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	start, err := s.client.Resolve(endpoint)
	if err != nil {
		return nil, err
	}
	return s.Drainer(sess).Drain(ctx, start)
}

// Get fetches one entity.
func (s *Service) Get(ctx context.Context, sess session.Session, res Resource, id string) (reference.Record, error) {
	if err := requireID("id", id); err != nil {
		return nil, err
	}
	return s.client.Items(sess).FetchItem(ctx, res.ItemPath(id))
}

// Create posts a new entity and returns the created record.
func (s *Service) Create(ctx context.Context, sess session.Session, res Resource, body any) (reference.Record, error) {
	return s.send(ctx, sess, "create_"+string(res), "POST", res.Path(), body)
}

// Update patches an entity and returns the updated record.
func (s *Service) Update(ctx context.Context, sess session.Session, res Resource, id string, body any) (reference.Record, error) {
	if err := requireID("id", id); err != nil {
		return nil, err
	}
	return s.send(ctx, sess, "update_"+string(res), "PATCH", res.ItemPath(id), body)
}

// Delete removes an entity.
func (s *Service) Delete(ctx context.Context, sess session.Session, res Resource, id string) error {
	if err := requireID("id", id); err != nil {
		return err
	}
	_, err := s.send(ctx, sess, "delete_"+string(res), "DELETE", res.ItemPath(id), nil)
	return err
}

// send performs a JSON write and decodes the response record, if any.
func (s *Service) send(ctx context.Context, sess session.Session, action, method, endpoint string, body any) (reference.Record, error) {
	start := time.Now()
	data, err := s.client.Send(ctx, sess, method, endpoint, body)
	return s.finish(action, endpoint, start, data, err)
}

// sendForm performs a multipart write and decodes the response record.
func (s *Service) sendForm(ctx context.Context, sess session.Session, action, endpoint string, form client.Form) (reference.Record, error) {
	start := time.Now()
	data, err := s.client.SendMultipart(ctx, sess, "POST", endpoint, form)
	return s.finish(action, endpoint, start, data, err)
}

func (s *Service) finish(action, endpoint string, start time.Time, data []byte, err error) (reference.Record, error) {
	casActionDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())

	if err != nil {
		casActionsTotal.WithLabelValues(action, "error").Inc()
		s.logger.Warn().Err(err).Str("action", action).Msg("Action failed")
		return nil, err
	}
	casActionsTotal.WithLabelValues(action, "ok").Inc()
	s.logger.Info().Str("action", action).Str("endpoint", endpoint).Msg("Action completed")

	if len(data) == 0 {
		return nil, nil
	}
	// Some actions answer with a bare string or list.
	rec, decodeErr := reference.DecodeRecord(data)
	if decodeErr != nil {
		s.logger.Debug().Err(decodeErr).Str("action", action).Msg("Response is not a record")
		return nil, nil
	}
	return rec, nil
}

// requireID rejects empty ids and ids that would escape their path segment.
func requireID(field, id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return client.Invalid(field, "is required")
	case strings.ContainsAny(id, "/?#"):
		return client.Invalid(field, "must be a single path segment")
	}
	return nil
}
