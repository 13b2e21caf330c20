package handler

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/shortlinks/internal/models"
	"github.com/mmeshcher/shortlinks/internal/repository"
	"github.com/mmeshcher/shortlinks/internal/service"
)

const testBaseURL = "http://localhost:8080"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	router http.Handler
	svc    *service.ShortenerService
	repo   *repository.MemoryRepository
	clock  *testClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := repository.NewMemoryRepository()
	clock := &testClock{now: time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC)}
	svc := service.NewShortenerService(repo, testBaseURL, zap.NewNop(), service.WithClock(clock.Now))

	return &testEnv{
		router: NewHandler(svc, zap.NewNop()).SetupRouter(),
		svc:    svc,
		repo:   repo,
		clock:  clock,
	}
}

func (e *testEnv) create(t *testing.T, req models.ShortenRequest) models.ShortenedURL {
	t.Helper()
	rec, err := e.svc.CreateShortURL(context.Background(), req)
	require.NoError(t, err)
	return rec
}
