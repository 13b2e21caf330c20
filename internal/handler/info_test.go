package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mmeshcher/shortlinks/internal/models"
)

func TestHomeHandler(t *testing.T) {
	type want struct {
		notice string
	}

	tests := []struct {
		name string
		path string
		want want
	}{
		{name: "plain", path: "/"},
		{name: "expired notice", path: "/?expired=promo", want: want{notice: "Short URL 'promo' has expired"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.create(t, models.ShortenRequest{LongURL: "https://example.com", Shortcode: "promo"})
			env.router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/promo", nil))

			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			require.Equal(t, http.StatusOK, w.Code)

			var resp models.HomeResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, models.HomeResponse{
				Service:     "shortlinks",
				TotalURLs:   1,
				TotalClicks: 1,
				Notice:      tt.want.notice,
			}, resp)
		})
	}
}

func TestStatsHandler(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, models.ShortenRequest{LongURL: "https://example.com/docs", Shortcode: "docs", Validity: 1})
	env.create(t, models.ShortenRequest{LongURL: "https://golang.org", Shortcode: "gopher"})

	env.router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/docs", nil))
	env.router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/docs", nil))
	env.clock.Advance(5 * time.Minute)

	type want struct {
		codes []string
	}

	tests := []struct {
		name string
		path string
		want want
	}{
		{name: "all", path: "/stats", want: want{codes: []string{"docs", "gopher"}}},
		{name: "filtered", path: "/stats?q=GOLANG", want: want{codes: []string{"gopher"}}},
		{name: "no match", path: "/stats?q=missing", want: want{codes: []string{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var stats models.Stats
			require.NoError(t, json.NewDecoder(w.Body).Decode(&stats))
			assert.Equal(t, 2, stats.TotalURLs)
			assert.Equal(t, 2, stats.TotalClicks)

			codes := []string{}
			for _, u := range stats.URLs {
				codes = append(codes, u.Shortcode)
				if u.Shortcode == "docs" {
					assert.True(t, u.Expired)
					assert.Equal(t, 2, u.TotalClicks)
					assert.Len(t, u.Clicks, 2)
				}
			}
			assert.Equal(t, tt.want.codes, codes)
		})
	}
}

func TestURLInfoHandler(t *testing.T) {
	env := newTestEnv(t)
	created := env.create(t, models.ShortenRequest{LongURL: "https://example.com", Shortcode: "promo", Validity: 1})
	env.clock.Advance(time.Hour)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/urls/promo", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var rec models.ShortenedURL
	require.NoError(t, json.NewDecoder(w.Body).Decode(&rec))
	assert.Equal(t, created.LongURL, rec.LongURL)
	assert.True(t, created.Expiry.Equal(rec.Expiry))

	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/urls/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPingHandler(t *testing.T) {
	env := newTestEnv(t)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouterLogsRecoveredPanics(t *testing.T) {
	env := newTestEnv(t)
	core, logs := observer.New(zapcore.InfoLevel)

	router := NewHandler(env.svc, zap.New(core)).SetupRouter()
	router.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	assert.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
	served := logs.FilterMessage("Request served").All()
	require.Len(t, served, 1)
	assert.Equal(t, int64(http.StatusInternalServerError), served[0].ContextMap()["status"])
}
