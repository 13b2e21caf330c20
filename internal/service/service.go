package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/shortlinks/internal/models"
	"github.com/mmeshcher/shortlinks/internal/remotelog"
	"github.com/mmeshcher/shortlinks/internal/repository"
	"github.com/mmeshcher/shortlinks/internal/shortcode"
)

var (
	ErrNotFound = errors.New("short url not found")
	ErrExpired  = errors.New("short url expired")
)

const logPackage = "service"

// Shortcodes that would shadow a route are treated as already taken.
var reservedShortcodes = []string{"api", "ping", "stats"}

type Option func(*ShortenerService)

func WithClock(now func() time.Time) Option {
	return func(s *ShortenerService) { s.nowFunc = now }
}

func WithGenerator(gen shortcode.Generator) Option {
	return func(s *ShortenerService) { s.gen = gen }
}

func WithRemoteLogger(l remotelog.Logger) Option {
	return func(s *ShortenerService) { s.remote = l }
}

func WithDefaultValidity(minutes int) Option {
	return func(s *ShortenerService) { s.defaultValidity = minutes }
}

type ShortenerService struct {
	// mu serialises allocation so two batches never see the same free code.
	mu sync.Mutex

	repo            repository.Repository
	gen             shortcode.Generator
	allocator       *shortcode.Allocator
	remote          remotelog.Logger
	baseURL         string
	defaultValidity int
	logger          *zap.Logger
	nowFunc         func() time.Time
}

func NewShortenerService(repo repository.Repository, baseURL string, logger *zap.Logger, opts ...Option) *ShortenerService {
	s := &ShortenerService{
		repo:            repo,
		remote:          remotelog.Nop{},
		baseURL:         strings.TrimRight(baseURL, "/"),
		defaultValidity: shortcode.DefaultValidity,
		logger:          logger,
		nowFunc:         time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.gen == nil {
		s.gen = shortcode.NewRandomGenerator()
	}
	s.allocator = shortcode.NewAllocator(s.gen, s.defaultValidity)

	return s
}

type outcome struct {
	row     int
	longURL string
	record  *models.ShortenedURL
	err     error
}

// ShortenBatch shortens up to five URLs. Rows fail independently, storage failures
// included; the returned error is only set for a bad batch or when existing codes
// cannot be loaded.
func (s *ShortenerService) ShortenBatch(ctx context.Context, batch []models.ShortenRequest) (models.BatchResponse, error) {
	outcomes, err := s.shorten(ctx, batch)
	if err != nil {
		return models.BatchResponse{}, err
	}

	resp := models.BatchResponse{Results: make([]models.RowResult, 0, len(outcomes))}
	for _, o := range outcomes {
		result := models.RowResult{Row: o.row, LongURL: o.longURL, Record: o.record}
		if o.err != nil {
			result.Error = RowError(o.err)
		} else {
			resp.Created++
		}
		resp.Results = append(resp.Results, result)
	}

	return resp, nil
}

// CreateShortURL shortens a single URL and returns the row error as is.
func (s *ShortenerService) CreateShortURL(ctx context.Context, req models.ShortenRequest) (models.ShortenedURL, error) {
	outcomes, err := s.shorten(ctx, []models.ShortenRequest{req})
	if err != nil {
		return models.ShortenedURL{}, err
	}
	if outcomes[0].err != nil {
		return models.ShortenedURL{}, outcomes[0].err
	}
	return *outcomes[0].record, nil
}

func (s *ShortenerService) shorten(ctx context.Context, batch []models.ShortenRequest) ([]outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.repo.Shortcodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load shortcodes: %w", err)
	}
	for _, code := range reservedShortcodes {
		existing[code] = struct{}{}
	}

	res, err := s.allocator.Allocate(s.nowFunc(), batch, existing)
	if err != nil {
		return nil, err
	}

	outcomes := make([]outcome, len(batch))
	for i, req := range batch {
		outcomes[i] = outcome{row: i + 1, longURL: req.LongURL}
	}

	for _, r := range res.Rejected {
		outcomes[r.Row-1].err = r.Err
		s.logRejection(ctx, r)
	}

	for _, a := range res.Assigned {
		rec := models.ShortenedURL{
			LongURL:   a.Request.LongURL,
			Validity:  a.Validity,
			Shortcode: a.Code,
			ShortURL:  s.baseURL + "/" + a.Code,
			Expiry:    a.Expiry.UTC(),
		}

		if err := s.repo.SaveURL(ctx, rec); err != nil {
			if errors.Is(err, repository.ErrShortcodeTaken) {
				outcomes[a.Row-1].err = shortcode.ErrShortcodeTaken
				s.logRejection(ctx, shortcode.Rejection{Row: a.Row, Request: a.Request, Err: shortcode.ErrShortcodeTaken})
				continue
			}
			s.logger.Error("Failed to save short URL", zap.String("shortcode", rec.Shortcode), zap.Error(err))
			outcomes[a.Row-1].err = fmt.Errorf("save url: %w", err)
			s.remoteLog(ctx, remotelog.LevelError, fmt.Sprintf("Failed to save row %d", a.Row))
			continue
		}

		outcomes[a.Row-1].record = &rec
		s.logger.Info("Short URL created",
			zap.String("shortcode", rec.Shortcode),
			zap.String("longUrl", rec.LongURL),
			zap.Time("expiry", rec.Expiry))
		s.remoteLog(ctx, remotelog.LevelInfo, fmt.Sprintf("Created short URL: %s → %s", rec.Shortcode, rec.LongURL))
	}

	return outcomes, nil
}

func (s *ShortenerService) logRejection(ctx context.Context, r shortcode.Rejection) {
	s.logger.Warn("Shorten request rejected",
		zap.Int("row", r.Row),
		zap.String("longUrl", r.Request.LongURL),
		zap.String("shortcode", r.Request.Shortcode),
		zap.Error(r.Err))

	var msg string
	switch {
	case errors.Is(r.Err, shortcode.ErrInvalidURL):
		msg = fmt.Sprintf("Invalid URL at row %d", r.Row)
	case errors.Is(r.Err, shortcode.ErrShortcodeTaken):
		msg = fmt.Sprintf("Shortcode collision: %s", r.Request.Shortcode)
	case errors.Is(r.Err, shortcode.ErrInvalidShortcode):
		msg = fmt.Sprintf("Invalid shortcode at row %d", r.Row)
	default:
		msg = fmt.Sprintf("Failed to shorten row %d: %v", r.Row, r.Err)
	}
	s.remoteLog(ctx, remotelog.LevelError, msg)
}

// Resolve returns the record for a redirect. Expired records give ErrExpired along with
// the record and no click is stored; otherwise exactly one click is appended.
func (s *ShortenerService) Resolve(ctx context.Context, code, source string) (models.ShortenedURL, error) {
	rec, err := s.repo.GetURL(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.ShortenedURL{}, ErrNotFound
		}
		return models.ShortenedURL{}, fmt.Errorf("get url: %w", err)
	}

	now := s.nowFunc()
	if rec.ExpiredAt(now) {
		s.logger.Info("Short URL expired", zap.String("shortcode", code), zap.Time("expiry", rec.Expiry))
		s.remoteLog(ctx, remotelog.LevelWarn, fmt.Sprintf("Expired shortcode accessed: %s", code))
		return rec, ErrExpired
	}

	if source == "" {
		source = models.SourceDirect
	}
	ev := models.ClickEvent{
		Timestamp: now.UTC(),
		Source:    source,
		Location:  models.LocationUnknown,
	}
	if err := s.repo.AppendClick(ctx, code, ev); err != nil {
		return models.ShortenedURL{}, fmt.Errorf("append click: %w", err)
	}

	s.remoteLog(ctx, remotelog.LevelInfo, fmt.Sprintf("Redirected from shortcode: %s", code))
	return rec, nil
}

// Lookup returns the record whether or not it has expired.
func (s *ShortenerService) Lookup(ctx context.Context, code string) (models.ShortenedURL, error) {
	rec, err := s.repo.GetURL(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.ShortenedURL{}, ErrNotFound
		}
		return models.ShortenedURL{}, fmt.Errorf("get url: %w", err)
	}
	return rec, nil
}

// Stats aggregates click analytics. Totals cover everything stored; filter narrows the
// per-URL list by a case-insensitive match on the long or short URL.
func (s *ShortenerService) Stats(ctx context.Context, filter string) (models.Stats, error) {
	urls, err := s.repo.ListURLs(ctx)
	if err != nil {
		return models.Stats{}, fmt.Errorf("list urls: %w", err)
	}
	clicks, err := s.repo.Clicks(ctx)
	if err != nil {
		return models.Stats{}, fmt.Errorf("list clicks: %w", err)
	}

	stats := models.Stats{
		TotalURLs:   len(urls),
		TotalClicks: clicks.Total(),
		URLs:        make([]models.URLStats, 0, len(urls)),
	}

	now := s.nowFunc()
	needle := strings.ToLower(filter)
	for _, u := range urls {
		if needle != "" &&
			!strings.Contains(strings.ToLower(u.LongURL), needle) &&
			!strings.Contains(strings.ToLower(u.ShortURL), needle) {
			continue
		}

		events := clicks[u.Shortcode]
		if events == nil {
			events = []models.ClickEvent{}
		}
		stats.URLs = append(stats.URLs, models.URLStats{
			Shortcode:   u.Shortcode,
			ShortURL:    u.ShortURL,
			LongURL:     u.LongURL,
			CreatedAt:   u.CreatedAt(),
			Expiry:      u.Expiry,
			Expired:     u.ExpiredAt(now),
			TotalClicks: len(events),
			Clicks:      events,
		})
	}

	return stats, nil
}

func (s *ShortenerService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *ShortenerService) remoteLog(ctx context.Context, level, msg string) {
	if err := s.remote.Log(ctx, level, logPackage, msg); err != nil {
		s.logger.Debug("Remote log not queued", zap.Error(err))
	}
}

// RowError maps a per-row failure to its wire form.
func RowError(err error) *models.RowError {
	code := "INTERNAL_ERROR"
	switch {
	case errors.Is(err, shortcode.ErrInvalidURL):
		code = "INVALID_URL"
	case errors.Is(err, shortcode.ErrInvalidShortcode):
		code = "INVALID_SHORTCODE"
	case errors.Is(err, shortcode.ErrShortcodeTaken):
		code = "SHORTCODE_TAKEN"
	case errors.Is(err, shortcode.ErrShortcodeExhausted):
		code = "SHORTCODE_EXHAUSTED"
	}
	return &models.RowError{Code: code, Message: err.Error()}
}
