package city

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/loci-cities/internal/types"
)

// DefaultBaseURL is where the city store listens in local development.
const DefaultBaseURL = "http://localhost:8000"

var _ Repository = (*HTTPRepository)(nil)

// Repository is the remote collection store the session reads and writes through.
type Repository interface {
	ListCities(ctx context.Context) ([]types.City, error)
	GetCity(ctx context.Context, id types.CityID) (types.City, error)
	CreateCity(ctx context.Context, city types.NewCity) (types.City, error)
	DeleteCity(ctx context.Context, id types.CityID) error
}

// StatusError is returned when the store answers with a non-success status.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("network response was not ok (%s %s: status %d)", e.Method, e.Path, e.StatusCode)
}

// HTTPRepository talks to the store over its resource API.
type HTTPRepository struct {
	logger  *slog.Logger
	baseURL *url.URL
	client  *http.Client
	limiter *rate.Limiter
	timeout time.Duration
}

// RepositoryOption configures an HTTPRepository.
type RepositoryOption func(*HTTPRepository)

// WithHTTPClient replaces the default client. Its transport is used as-is.
func WithHTTPClient(c *http.Client) RepositoryOption {
	return func(r *HTTPRepository) {
		r.client = c
	}
}

// WithTimeout bounds each request of the default client. A client supplied
// through WithHTTPClient keeps its own timeout.
func WithTimeout(d time.Duration) RepositoryOption {
	return func(r *HTTPRepository) {
		r.timeout = d
	}
}

// WithRateLimit caps outbound requests per second. rps <= 0 disables the cap.
func WithRateLimit(rps float64, burst int) RepositoryOption {
	return func(r *HTTPRepository) {
		if rps <= 0 {
			r.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewHTTPRepository builds a repository rooted at baseURL.
func NewHTTPRepository(baseURL string, logger *slog.Logger, opts ...RepositoryOption) (*HTTPRepository, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", baseURL)
	}

	r := &HTTPRepository{
		logger:  logger,
		baseURL: u,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		timeout := 30 * time.Second
		if r.timeout > 0 {
			timeout = r.timeout
		}
		r.client = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		}
	}
	return r, nil
}

// ListCities fetches the full collection.
func (r *HTTPRepository) ListCities(ctx context.Context) ([]types.City, error) {
	var cities []types.City
	if err := r.do(ctx, http.MethodGet, "/cities", nil, &cities); err != nil {
		return nil, err
	}
	if cities == nil {
		cities = []types.City{}
	}
	return cities, nil
}

// GetCity fetches one city by id.
func (r *HTTPRepository) GetCity(ctx context.Context, id types.CityID) (types.City, error) {
	var c types.City
	if err := r.do(ctx, http.MethodGet, cityPath(id), nil, &c); err != nil {
		return types.City{}, err
	}
	return c, nil
}

// CreateCity posts a new city and returns the stored record with its id.
func (r *HTTPRepository) CreateCity(ctx context.Context, city types.NewCity) (types.City, error) {
	body, err := json.Marshal(city)
	if err != nil {
		return types.City{}, fmt.Errorf("failed to encode city: %w", err)
	}
	var created types.City
	if err := r.do(ctx, http.MethodPost, "/cities", body, &created); err != nil {
		return types.City{}, err
	}
	if created.ID == "" {
		return types.City{}, fmt.Errorf("store returned a city without an id")
	}
	return created, nil
}

// DeleteCity removes a city by id. The response body is ignored.
func (r *HTTPRepository) DeleteCity(ctx context.Context, id types.CityID) error {
	return r.do(ctx, http.MethodDelete, cityPath(id), nil, nil)
}

func (r *HTTPRepository) do(ctx context.Context, method, path string, body []byte, out any) error {
	ctx, span := otel.Tracer("CityRepository").Start(ctx, method+" "+path, trace.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", method), slog.String("path", path))

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "rate limiter wait failed")
			return err
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		// surface cancellation untouched so callers can tell it apart
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		l.DebugContext(ctx, "Request to city store failed", slog.Any("error", err))
		return fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		statusErr := &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode}
		span.RecordError(statusErr)
		span.SetStatus(codes.Error, "non-success status")
		return statusErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		span.SetStatus(codes.Ok, "")
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed response")
		return fmt.Errorf("malformed response from %s %s: %w", method, path, err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

func cityPath(id types.CityID) string {
	return "/cities/" + url.PathEscape(id.String())
}
