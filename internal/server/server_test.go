package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pngx/internal/formatter"
	"github.com/desertthunder/pngx/internal/models"
	"github.com/desertthunder/pngx/internal/repositories"
	"github.com/desertthunder/pngx/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepo(t *testing.T) *repositories.ImageRepository {
	t.Helper()
	db, err := shared.OpenDatabase(shared.DatabaseConfig{Path: ":memory:", MaxOpenConns: 1, MaxIdleConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := repositories.NewImageRepository(db)
	for _, img := range []*models.ImageRecord{
		models.NewImageRecord("/art/harbor.png", "a lighthouse at dusk", map[string]string{"width": "640"}),
		models.NewImageRecord("/art/meadow.png", "cows in a field", map[string]string{"width": "320"}),
	} {
		require.NoError(t, repo.Create(img))
	}
	return repo
}

func quietLogger() *log.Logger { return log.New(io.Discard) }

func do(t *testing.T, h http.Handler, method, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAPI(t *testing.T) {
	repo := setupRepo(t)
	api := NewAPI(repo, quietLogger())

	t.Run("health", func(t *testing.T) {
		rec := do(t, api, http.MethodGet, "/healthz", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Status string `json:"status"`
			Images int    `json:"images"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ok", body.Status)
		assert.Equal(t, 2, body.Images)
	})

	t.Run("search as json", func(t *testing.T) {
		rec := do(t, api, http.MethodGet, "/images/search?q=LIGHTHOUSE", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.NotEmpty(t, rec.Header().Get(CorrelationHeader))

		var entries []formatter.Entry
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
		require.Len(t, entries, 1)
		assert.Equal(t, "harbor.png", entries[0].FileName)
	})

	t.Run("search any keyword with fields and limit", func(t *testing.T) {
		rec := do(t, api, http.MethodGet, "/images/search?q=cows,lighthouse&mode=3&fields=description&limit=5", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var entries []formatter.Entry
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
		assert.Len(t, entries, 2)
	})

	t.Run("search with no matches is an empty array", func(t *testing.T) {
		rec := do(t, api, http.MethodGet, "/images/search?q=zebra", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
	})

	t.Run("search as csv", func(t *testing.T) {
		rec := do(t, api, http.MethodGet, "/images/search?q=field&format=csv", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), "meadow.png,/art/meadow.png,cows in a field")
	})

	t.Run("correlation id is echoed in errors", func(t *testing.T) {
		rec := do(t, api, http.MethodGet, "/images/search", http.Header{CorrelationHeader: {"req-7"}})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "req-7", rec.Header().Get(CorrelationHeader))

		body := decodeError(t, rec)
		assert.Equal(t, "req-7", body["correlation_id"])
		assert.Contains(t, body["error"], shared.ErrMissingArgument.Error())
	})

	t.Run("bad requests", func(t *testing.T) {
		for _, target := range []string{
			"/images/search?q=a&mode=abc",
			"/images/search?q=a&mode=9",
			"/images/search?q=a&limit=-1",
			"/images/search?q=a&format=xml",
			"/images/search?q=a&mode=2&fields=owner",
			"/images/search?q=a&mode=2",
		} {
			t.Run(target, func(t *testing.T) {
				rec := do(t, api, http.MethodGet, target, nil)
				assert.Equal(t, http.StatusBadRequest, rec.Code)
			})
		}
	})

	t.Run("get by id", func(t *testing.T) {
		stored, err := repo.GetByPath("/art/meadow.png")
		require.NoError(t, err)

		rec := do(t, api, http.MethodGet, "/images/"+stored.ID(), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var entry formatter.Entry
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
		assert.Equal(t, stored.ID(), entry.ID)
		assert.Equal(t, "320", entry.Metadata["width"])
	})

	t.Run("unknown id", func(t *testing.T) {
		rec := do(t, api, http.MethodGet, "/images/nope", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, decodeError(t, rec)["error"], shared.ErrImageNotFound.Error())
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := do(t, api, http.MethodPost, "/images/search?q=a", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("recoverer and logger", func(t *testing.T) {
		var logs strings.Builder
		logger := log.New(&logs)

		router := NewBasicRouter()
		router.Use(Correlate(), RequestLogger(logger), Recoverer(logger))
		router.Handle(http.MethodGet, "/boom", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("kaboom")
		}))

		rec := do(t, router, http.MethodGet, "/boom", http.Header{CorrelationHeader: {"cid-1"}})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "cid-1", decodeError(t, rec)["correlation_id"])
		assert.Contains(t, logs.String(), "handler panicked")
		assert.Contains(t, logs.String(), "status=500")
		assert.Contains(t, logs.String(), "cid=cid-1")
	})

	t.Run("order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mark("first"), mark("second"))
		router.Handle(http.MethodGet, "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}))

		do(t, router, http.MethodGet, "/", nil)
		assert.Equal(t, []string{"first", "second", "handler"}, order)
	})
}

func TestServe(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	api := NewAPI(setupRepo(t), quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, l, api, quietLogger())
	}()

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + l.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}
