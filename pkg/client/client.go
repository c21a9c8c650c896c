// Package client provides the HTTP client for the case-management REST API
// with bearer authentication, error classification and request metrics.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/cas-client/pkg/reference"
	"github.com/Sternrassler/cas-client/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for API client operations.
var (
	casRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cas_requests_total",
		Help: "Total CAS API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	casRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cas_request_duration_seconds",
		Help:    "CAS API request duration in seconds by method",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"method"})

	casErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cas_errors_total",
		Help: "Total CAS API errors by class",
	}, []string{"class"})
)

// Client is the CAS API client. It is safe for concurrent use; identity is
// passed per call as a session.Session.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	config     Config
	logger     zerolog.Logger
	now        func() time.Time
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API root, e.g. "https://cas.example.org/api/"
	BaseURL string

	// User-Agent header sent with every request
	UserAgent string

	// Timeout for a single request
	Timeout time.Duration

	// Connection pooling
	MaxIdleConns    int
	IdleConnTimeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:         baseURL,
		UserAgent:       "cas-client/1.0",
		Timeout:         30 * time.Second,
		MaxIdleConns:    20,
		IdleConnTimeout: 90 * time.Second,
	}
}

// New creates a new API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" || base.Host == "" {
		return nil, fmt.Errorf("base url must be an absolute http(s) url (got %q)", cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.MaxIdleConns > 0 {
		transport.MaxIdleConns = cfg.MaxIdleConns
		transport.MaxIdleConnsPerHost = cfg.MaxIdleConns
	}
	if cfg.IdleConnTimeout > 0 {
		transport.IdleConnTimeout = cfg.IdleConnTimeout
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		baseURL: base,
		config:  cfg,
		logger:  log.With().Str("component", "cas-client").Logger(),
		now:     time.Now,
	}, nil
}

// Resolve turns an endpoint into an absolute URL. Absolute URLs (such as
// next links) pass through; paths resolve against the base URL.
func (c *Client) Resolve(endpoint string) (string, error) {
	ref, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}

	// Endpoints are written as "/cases/"; keep the base path prefix.
	ref.Path = strings.TrimPrefix(ref.Path, "/")
	return c.baseURL.ResolveReference(ref).String(), nil
}

// Do executes req with the session's credential. Any status is returned to
// the caller; transport failures yield a *FetchFailure.
func (c *Client) Do(sess session.Session, req *http.Request) (*http.Response, error) {
	endpoint := endpointLabel(req.URL.Path)

	startTime := time.Now()
	defer func() {
		casRequestDuration.WithLabelValues(req.Method).Observe(time.Since(startTime).Seconds())
	}()

	sess.Apply(req)
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Msg("Executing CAS request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		casErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		casRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, &FetchFailure{
			URL:    req.URL.String(),
			Method: req.Method,
			Class:  ErrorClassNetwork,
			Err:    err,
		}
	}

	casRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
	return resp, nil
}

// Fetch performs a GET and returns the response body. Any non-2xx status
// yields a *FetchFailure.
func (c *Client) Fetch(ctx context.Context, sess session.Session, endpoint string) ([]byte, error) {
	target, err := c.Resolve(endpoint)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	return c.roundTrip(sess, req)
}

// Send performs a write with an optional JSON body. A 204 or empty response
// returns a nil body.
func (c *Client) Send(ctx context.Context, sess session.Session, method, endpoint string, body any) ([]byte, error) {
	if err := c.preflight(sess); err != nil {
		return nil, err
	}

	target, err := c.Resolve(endpoint)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &ValidationFailure{Field: "body", Reason: "not serializable", Err: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.roundTrip(sess, req)
}

// File is one file part of a multipart form.
type File struct {
	Field string
	Name  string
	Data  []byte
}

// Form is a multipart/form-data body. Multi holds repeated fields.
type Form struct {
	Fields map[string]string
	Multi  map[string][]string
	Files  []File
}

// encode writes the form and returns the body and its content type.
func (f Form) encode() (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	for name, value := range f.Fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}
	for name, values := range f.Multi {
		for _, value := range values {
			if err := w.WriteField(name, value); err != nil {
				return nil, "", err
			}
		}
	}
	for _, file := range f.Files {
		part, err := w.CreateFormFile(file.Field, file.Name)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

// SendMultipart performs a write with a multipart/form-data body.
func (c *Client) SendMultipart(ctx context.Context, sess session.Session, method, endpoint string, form Form) ([]byte, error) {
	if err := c.preflight(sess); err != nil {
		return nil, err
	}

	target, err := c.Resolve(endpoint)
	if err != nil {
		return nil, err
	}

	body, contentType, err := form.encode()
	if err != nil {
		return nil, &ValidationFailure{Field: "form", Reason: "encoding failed", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	return c.roundTrip(sess, req)
}

// preflight checks the credential before a write is sent.
func (c *Client) preflight(sess session.Session) error {
	if err := sess.Require(c.now()); err != nil {
		return &ValidationFailure{Field: "session", Reason: "credential required", Err: err}
	}
	return nil
}

// roundTrip executes req and reads the body, turning non-2xx into a FetchFailure.
func (c *Client) roundTrip(sess session.Session, req *http.Request) ([]byte, error) {
	resp, err := c.Do(sess, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		casErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &FetchFailure{
			StatusCode: resp.StatusCode,
			URL:        req.URL.String(),
			Method:     req.Method,
			Class:      ErrorClassNetwork,
			Message:    "reading response body",
			Err:        err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		class := classify(resp.StatusCode, nil)
		casErrorsTotal.WithLabelValues(string(class)).Inc()

		c.logger.Warn().
			Str("url", req.URL.String()).
			Str("method", req.Method).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("CAS request error")

		return nil, &FetchFailure{
			StatusCode: resp.StatusCode,
			URL:        req.URL.String(),
			Method:     req.Method,
			Class:      class,
			Message:    failureMessage(resp.StatusCode, data),
		}
	}

	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	return data, nil
}

// Pages binds sess to the client as a page source for drains.
func (c *Client) Pages(sess session.Session) *SessionFetcher {
	return &SessionFetcher{client: c, session: sess}
}

// Items binds sess to the client as an item source for enrichment.
func (c *Client) Items(sess session.Session) *SessionFetcher {
	return &SessionFetcher{client: c, session: sess}
}

// SessionFetcher performs reads on behalf of one session.
type SessionFetcher struct {
	client  *Client
	session session.Session
}

// FetchPage returns the raw body of one collection page.
func (f *SessionFetcher) FetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	return f.client.Fetch(ctx, f.session, pageURL)
}

// FetchItem fetches and decodes a single entity.
func (f *SessionFetcher) FetchItem(ctx context.Context, endpoint string) (reference.Record, error) {
	data, err := f.client.Fetch(ctx, f.session, endpoint)
	if err != nil {
		return nil, err
	}
	rec, err := reference.DecodeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return rec, nil
}

// endpointLabel collapses numeric path segments so metric labels stay bounded.
func endpointLabel(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if _, err := strconv.ParseInt(seg, 10, 64); err == nil {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
