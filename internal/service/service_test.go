package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/shortlinks/internal/models"
	"github.com/mmeshcher/shortlinks/internal/repository"
	"github.com/mmeshcher/shortlinks/internal/shortcode"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingRemote struct {
	mu      sync.Mutex
	entries []string
}

func (r *recordingRemote) Log(_ context.Context, level, pkg, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, level+"|"+pkg+"|"+message)
	return nil
}

type failingRepo struct {
	*repository.MemoryRepository
}

func (f failingRepo) SaveURL(context.Context, models.ShortenedURL) error {
	return errors.New("disk full")
}

// flakyRepo fails only the save with the given 1-based index.
type flakyRepo struct {
	*repository.MemoryRepository
	failOn int
	saves  int
}

func (f *flakyRepo) SaveURL(ctx context.Context, rec models.ShortenedURL) error {
	f.saves++
	if f.saves == f.failOn {
		return errors.New("disk full")
	}
	return f.MemoryRepository.SaveURL(ctx, rec)
}

type brokenCodesRepo struct {
	*repository.MemoryRepository
}

func (b brokenCodesRepo) Shortcodes(context.Context) (map[string]struct{}, error) {
	return nil, errors.New("connection refused")
}

func newTestService(t *testing.T, repo repository.Repository) (*ShortenerService, *fakeClock, *recordingRemote) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC)}
	remote := &recordingRemote{}
	svc := NewShortenerService(repo, "http://localhost:8080/", zap.NewNop(),
		WithClock(clock.Now),
		WithRemoteLogger(remote),
		WithGenerator(shortcode.NewSeededGenerator(1, 2, clock.Now)),
	)
	return svc, clock, remote
}

func TestShortenBatch(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	svc, clock, remote := newTestService(t, repo)

	existing := models.ShortenedURL{
		LongURL:   "https://old.example",
		Validity:  30,
		Shortcode: "promo",
		ShortURL:  "http://localhost:8080/promo",
		Expiry:    clock.Now().Add(30 * time.Minute),
	}
	require.NoError(t, repo.SaveURL(ctx, existing))

	resp, err := svc.ShortenBatch(ctx, []models.ShortenRequest{
		{LongURL: "https://example.com", Validity: 1},
		{LongURL: "not-a-url"},
		{LongURL: "https://example.org", Shortcode: "promo"},
		{LongURL: "https://example.net", Shortcode: "launch2025"},
		{LongURL: "https://example.com/stats", Shortcode: "stats"},
	})
	require.NoError(t, err)

	require.Len(t, resp.Results, 5)
	assert.Equal(t, 2, resp.Created)

	first := resp.Results[0]
	require.NotNil(t, first.Record)
	assert.Nil(t, first.Error)
	assert.Equal(t, clock.Now().Add(time.Minute), first.Record.Expiry)
	assert.Equal(t, 1, first.Record.Validity)
	assert.Equal(t, "http://localhost:8080/"+first.Record.Shortcode, first.Record.ShortURL)
	assert.NotEqual(t, "promo", first.Record.Shortcode)

	assert.Equal(t, "INVALID_URL", resp.Results[1].Error.Code)
	assert.Equal(t, "SHORTCODE_TAKEN", resp.Results[2].Error.Code)
	assert.Nil(t, resp.Results[2].Record)

	fourth := resp.Results[3]
	require.NotNil(t, fourth.Record)
	assert.Equal(t, "launch2025", fourth.Record.Shortcode)
	assert.Equal(t, 30, fourth.Record.Validity)
	assert.Equal(t, clock.Now().Add(30*time.Minute), fourth.Record.Expiry)

	assert.Equal(t, "SHORTCODE_TAKEN", resp.Results[4].Error.Code)

	stored, err := repo.GetURL(ctx, "promo")
	require.NoError(t, err)
	assert.Equal(t, "https://old.example", stored.LongURL, "custom code collision must not overwrite")

	codes, err := repo.Shortcodes(ctx)
	require.NoError(t, err)
	assert.Len(t, codes, 3)

	assert.Contains(t, remote.entries, "error|service|Invalid URL at row 2")
	assert.Contains(t, remote.entries, "error|service|Shortcode collision: promo")
	assert.Contains(t, remote.entries, "info|service|Created short URL: launch2025 → https://example.net")
}

func TestShortenBatchUniqueAcrossBatches(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, repository.NewMemoryRepository())

	seen := make(map[string]struct{})
	for i := 0; i < 20; i++ {
		resp, err := svc.ShortenBatch(ctx, []models.ShortenRequest{
			{LongURL: "https://example.com/a"},
			{LongURL: "https://example.com/b"},
			{LongURL: "https://example.com/c"},
		})
		require.NoError(t, err)
		for _, r := range resp.Results {
			require.NotNil(t, r.Record)
			_, dup := seen[r.Record.Shortcode]
			require.False(t, dup, "duplicate shortcode %s", r.Record.Shortcode)
			seen[r.Record.Shortcode] = struct{}{}
		}
	}
	assert.Len(t, seen, 60)
}

func TestShortenBatchErrors(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, repository.NewMemoryRepository())

	_, err := svc.ShortenBatch(ctx, nil)
	assert.ErrorIs(t, err, shortcode.ErrEmptyBatch)

	_, err = svc.ShortenBatch(ctx, make([]models.ShortenRequest, 6))
	assert.ErrorIs(t, err, shortcode.ErrBatchTooLarge)

	broken, _, _ := newTestService(t, brokenCodesRepo{repository.NewMemoryRepository()})
	_, err = broken.ShortenBatch(ctx, []models.ShortenRequest{{LongURL: "https://example.com"}})
	assert.ErrorContains(t, err, "connection refused")

	full, _, _ := newTestService(t, failingRepo{repository.NewMemoryRepository()})
	resp, err := full.ShortenBatch(ctx, []models.ShortenRequest{{LongURL: "https://example.com"}})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Created)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "INTERNAL_ERROR", resp.Results[0].Error.Code)

	_, err = full.CreateShortURL(ctx, models.ShortenRequest{LongURL: "https://example.com"})
	assert.ErrorContains(t, err, "disk full")
}

func TestShortenBatchStorageFailureIsPerRow(t *testing.T) {
	ctx := context.Background()
	repo := &flakyRepo{MemoryRepository: repository.NewMemoryRepository(), failOn: 2}
	svc, _, remote := newTestService(t, repo)

	resp, err := svc.ShortenBatch(ctx, []models.ShortenRequest{
		{LongURL: "https://a.example", Shortcode: "first"},
		{LongURL: "https://b.example", Shortcode: "second"},
		{LongURL: "https://c.example", Shortcode: "third"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, 2, resp.Created)

	require.NotNil(t, resp.Results[0].Record)
	assert.Equal(t, "first", resp.Results[0].Record.Shortcode)

	assert.Nil(t, resp.Results[1].Record)
	require.NotNil(t, resp.Results[1].Error)
	assert.Equal(t, "INTERNAL_ERROR", resp.Results[1].Error.Code)

	require.NotNil(t, resp.Results[2].Record)
	assert.Equal(t, "third", resp.Results[2].Record.Shortcode)

	_, err = repo.GetURL(ctx, "second")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NotContains(t, remote.entries, "info|service|Created short URL: second → https://b.example")
	assert.Contains(t, remote.entries, "error|service|Failed to save row 2")

	again, err := svc.CreateShortURL(ctx, models.ShortenRequest{LongURL: "https://b.example", Shortcode: "second"})
	require.NoError(t, err)
	assert.Equal(t, "second", again.Shortcode)
}

func TestCreateShortURL(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, repository.NewMemoryRepository())

	rec, err := svc.CreateShortURL(ctx, models.ShortenRequest{LongURL: "https://example.com", Shortcode: "mine"})
	require.NoError(t, err)
	assert.Equal(t, "mine", rec.Shortcode)

	_, err = svc.CreateShortURL(ctx, models.ShortenRequest{LongURL: "https://example.org", Shortcode: "mine"})
	assert.ErrorIs(t, err, shortcode.ErrShortcodeTaken)

	_, err = svc.CreateShortURL(ctx, models.ShortenRequest{LongURL: "https://example.org", Shortcode: "x"})
	assert.ErrorIs(t, err, shortcode.ErrInvalidShortcode)
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	svc, clock, remote := newTestService(t, repo)

	rec, err := svc.CreateShortURL(ctx, models.ShortenRequest{LongURL: "https://example.com", Validity: 1})
	require.NoError(t, err)

	got, err := svc.Resolve(ctx, rec.Shortcode, "")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", got.LongURL)

	clock.Advance(30 * time.Second)
	_, err = svc.Resolve(ctx, rec.Shortcode, "https://news.example")
	require.NoError(t, err)

	clicks, err := repo.Clicks(ctx)
	require.NoError(t, err)
	require.Len(t, clicks[rec.Shortcode], 2)
	assert.Equal(t, models.ClickEvent{
		Timestamp: time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC),
		Source:    "direct",
		Location:  "unknown",
	}, clicks[rec.Shortcode][0])
	assert.Equal(t, "https://news.example", clicks[rec.Shortcode][1].Source)
	assert.Contains(t, remote.entries, "info|service|Redirected from shortcode: "+rec.Shortcode)

	clock.Advance(90 * time.Second)
	_, err = svc.Resolve(ctx, rec.Shortcode, "")
	assert.ErrorIs(t, err, ErrExpired)

	clicks, err = repo.Clicks(ctx)
	require.NoError(t, err)
	assert.Len(t, clicks[rec.Shortcode], 2, "expired redirect must not record a click")

	_, err = svc.Resolve(ctx, "nothere", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveExpiredAfterTwoMinutes(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	svc, clock, _ := newTestService(t, repo)

	rec, err := svc.CreateShortURL(ctx, models.ShortenRequest{LongURL: "https://example.com", Validity: 1})
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(time.Minute), rec.Expiry)

	clock.Advance(2 * time.Minute)
	_, err = svc.Resolve(ctx, rec.Shortcode, "")
	assert.ErrorIs(t, err, ErrExpired)

	clicks, err := repo.Clicks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, clicks.Total())
}

func TestLookup(t *testing.T) {
	ctx := context.Background()
	svc, clock, _ := newTestService(t, repository.NewMemoryRepository())

	rec, err := svc.CreateShortURL(ctx, models.ShortenRequest{LongURL: "https://example.com", Validity: 1})
	require.NoError(t, err)

	clock.Advance(time.Hour)
	got, err := svc.Lookup(ctx, rec.Shortcode)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	_, err = svc.Lookup(ctx, "unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	svc, clock, _ := newTestService(t, repository.NewMemoryRepository())

	resp, err := svc.ShortenBatch(ctx, []models.ShortenRequest{
		{LongURL: "https://Example.com/Docs", Shortcode: "docs", Validity: 10},
		{LongURL: "https://golang.org", Shortcode: "gopher", Validity: 120},
	})
	require.NoError(t, err)
	require.Equal(t, 2, resp.Created)

	for i := 0; i < 3; i++ {
		_, err := svc.Resolve(ctx, "docs", "")
		require.NoError(t, err)
	}
	_, err = svc.Resolve(ctx, "gopher", "https://ref.example")
	require.NoError(t, err)

	clock.Advance(30 * time.Minute)

	stats, err := svc.Stats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalURLs)
	assert.Equal(t, 4, stats.TotalClicks)
	require.Len(t, stats.URLs, 2)

	docs := stats.URLs[0]
	assert.Equal(t, "docs", docs.Shortcode)
	assert.Equal(t, 3, docs.TotalClicks)
	assert.True(t, docs.Expired)
	assert.Equal(t, time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC), docs.CreatedAt)

	gopher := stats.URLs[1]
	assert.False(t, gopher.Expired)
	assert.Equal(t, 1, gopher.TotalClicks)

	type want struct {
		codes []string
	}
	tests := []struct {
		filter string
		want   want
	}{
		{filter: "example.COM", want: want{codes: []string{"docs"}}},
		{filter: "GOPHER", want: want{codes: []string{"gopher"}}},
		{filter: "localhost:8080", want: want{codes: []string{"docs", "gopher"}}},
		{filter: "nothing", want: want{codes: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			stats, err := svc.Stats(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, 2, stats.TotalURLs)
			assert.Equal(t, 4, stats.TotalClicks)

			var codes []string
			for _, u := range stats.URLs {
				codes = append(codes, u.Shortcode)
			}
			assert.Equal(t, tt.want.codes, codes)
		})
	}
}
