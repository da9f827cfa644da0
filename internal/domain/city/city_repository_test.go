package city

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/loci-cities/internal/types"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newTestRepository(t *testing.T, h http.Handler) *HTTPRepository {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	repo, err := NewHTTPRepository(srv.URL, newTestLogger())
	require.NoError(t, err)
	return repo
}

func TestNewHTTPRepository_InvalidBaseURL(t *testing.T) {
	_, err := NewHTTPRepository("ftp://example.com", newTestLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheme")

	repo, err := NewHTTPRepository("", newTestLogger())
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, repo.baseURL.String())
}

func TestHTTPRepository_ListCities(t *testing.T) {
	t.Run("decodes the collection", func(t *testing.T) {
		repo := newTestRepository(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/cities", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(testCities())
		}))

		cities, err := repo.ListCities(context.Background())
		require.NoError(t, err)
		assert.Equal(t, testCities(), cities)
	})

	t.Run("null body gives an empty list", func(t *testing.T) {
		repo := newTestRepository(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("null"))
		}))

		cities, err := repo.ListCities(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, cities)
		assert.Empty(t, cities)
	})

	t.Run("non-success status", func(t *testing.T) {
		repo := newTestRepository(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusBadGateway)
		}))

		_, err := repo.ListCities(context.Background())
		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
		assert.Contains(t, err.Error(), "network response was not ok")
	})

	t.Run("malformed body", func(t *testing.T) {
		repo := newTestRepository(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"cities":`))
		}))

		_, err := repo.ListCities(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "malformed response")
	})

	t.Run("cancellation is returned as the context error", func(t *testing.T) {
		release := make(chan struct{})
		repo := newTestRepository(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer close(release)

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()
		_, err := repo.ListCities(ctx)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestHTTPRepository_GetCity(t *testing.T) {
	want := testCities()[1]
	repo := newTestRepository(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cities/2" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(want)
	}))

	got, err := repo.GetCity(context.Background(), "2")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = repo.GetCity(context.Background(), "99")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestHTTPRepository_CreateCity(t *testing.T) {
	payload := types.NewCity{
		CityName: "Rome",
		Country:  "Italy",
		Emoji:    "🇮🇹",
		Date:     "2027-05-01T10:00:00Z",
		Notes:    "Pasta",
		Position: types.Position{Lat: 41.9, Lng: 12.5},
	}

	t.Run("posts JSON and returns the stored record", func(t *testing.T) {
		repo := newTestRepository(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			var got types.NewCity
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			assert.Equal(t, payload, got)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(got.WithID("42"))
		}))

		created, err := repo.CreateCity(context.Background(), payload)
		require.NoError(t, err)
		assert.Equal(t, payload.WithID("42"), created)
	})

	t.Run("missing id is an error", func(t *testing.T) {
		repo := newTestRepository(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(payload)
		}))

		_, err := repo.CreateCity(context.Background(), payload)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "without an id")
	})
}

func TestHTTPRepository_DeleteCity(t *testing.T) {
	var deleted atomic.Value
	repo := newTestRepository(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		deleted.Store(r.URL.Path)
		if r.URL.Path == "/cities/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("{}"))
	}))

	require.NoError(t, repo.DeleteCity(context.Background(), "7"))
	assert.Equal(t, "/cities/7", deleted.Load())

	err := repo.DeleteCity(context.Background(), "missing")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.MethodDelete, statusErr.Method)
}

func TestHTTPRepository_RateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("[]"))
	}))
	t.Cleanup(srv.Close)

	repo, err := NewHTTPRepository(srv.URL, newTestLogger(), WithRateLimit(0.001, 1))
	require.NoError(t, err)

	_, err = repo.ListCities(context.Background())
	require.NoError(t, err)

	// the single token is spent, a short deadline cannot wait for the next one
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = repo.ListCities(ctx)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewHTTPRepository_Timeout(t *testing.T) {
	t.Run("applies to the default client", func(t *testing.T) {
		r, err := NewHTTPRepository("", newTestLogger(), WithTimeout(3*time.Second))
		require.NoError(t, err)
		assert.Equal(t, 3*time.Second, r.client.Timeout)
	})

	t.Run("default timeout", func(t *testing.T) {
		r, err := NewHTTPRepository("", newTestLogger())
		require.NoError(t, err)
		assert.Equal(t, 30*time.Second, r.client.Timeout)
	})

	t.Run("leaves a supplied client untouched in any order", func(t *testing.T) {
		for name, opts := range map[string][]RepositoryOption{
			"client first":  {WithHTTPClient(&http.Client{}), WithTimeout(3 * time.Second)},
			"timeout first": {WithTimeout(3 * time.Second), WithHTTPClient(&http.Client{})},
		} {
			t.Run(name, func(t *testing.T) {
				r, err := NewHTTPRepository("", newTestLogger(), opts...)
				require.NoError(t, err)
				assert.Zero(t, r.client.Timeout)
			})
		}
	})
}
