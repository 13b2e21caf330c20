package repository

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/shortlinks/internal/models"
)

var (
	ErrNotFound       = errors.New("shortcode not found")
	ErrShortcodeTaken = errors.New("shortcode already exists")
)

// Local storage key names, kept for the backends that store whole documents.
const (
	urlsKey   = "shortened_urls"
	clicksKey = "shortened_clicks"
)

// Repository keeps shortened URLs and the click log keyed by shortcode.
type Repository interface {
	Shortcodes(ctx context.Context) (map[string]struct{}, error)
	SaveURL(ctx context.Context, rec models.ShortenedURL) error
	GetURL(ctx context.Context, shortcode string) (models.ShortenedURL, error)
	ListURLs(ctx context.Context) ([]models.ShortenedURL, error)
	AppendClick(ctx context.Context, shortcode string, ev models.ClickEvent) error
	Clicks(ctx context.Context) (models.ClickLog, error)
	Ping(ctx context.Context) error
	Close() error
}

type Options struct {
	DatabaseDSN     string
	SQLitePath      string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	FileStoragePath string
}

// Open picks the backend by precedence: postgres, sqlite, redis, file, memory.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (Repository, error) {
	switch {
	case opts.DatabaseDSN != "":
		repo, err := NewPostgresRepository(ctx, opts.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres repository: %w", err)
		}
		logger.Info("Using PostgreSQL repository")
		return repo, nil

	case opts.SQLitePath != "":
		repo, err := NewSQLiteRepository(ctx, opts.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite repository: %w", err)
		}
		logger.Info("Using SQLite repository", zap.String("path", opts.SQLitePath))
		return repo, nil

	case opts.RedisAddr != "":
		repo, err := NewRedisRepository(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("redis repository: %w", err)
		}
		logger.Info("Using Redis repository", zap.String("addr", opts.RedisAddr))
		return repo, nil

	case opts.FileStoragePath != "":
		repo, err := NewFileRepository(opts.FileStoragePath, logger)
		if err != nil {
			return nil, fmt.Errorf("file repository: %w", err)
		}
		logger.Info("Using file repository", zap.String("path", opts.FileStoragePath))
		return repo, nil
	}

	logger.Info("Using in-memory repository")
	return NewMemoryRepository(), nil
}

// document is the whole-state layout shared by the file and redis backends.
type document struct {
	ID     string                `json:"id,omitempty"`
	URLs   []models.ShortenedURL `json:"shortened_urls"`
	Clicks models.ClickLog       `json:"shortened_clicks"`
}

func (d *document) find(shortcode string) (models.ShortenedURL, bool) {
	for _, u := range d.URLs {
		if u.Shortcode == shortcode {
			return u, true
		}
	}
	return models.ShortenedURL{}, false
}

func (d *document) add(rec models.ShortenedURL) error {
	if _, exists := d.find(rec.Shortcode); exists {
		return ErrShortcodeTaken
	}
	d.URLs = append(d.URLs, rec)
	return nil
}

func (d *document) appendClick(shortcode string, ev models.ClickEvent) {
	if d.Clicks == nil {
		d.Clicks = make(models.ClickLog)
	}
	d.Clicks[shortcode] = append(d.Clicks[shortcode], ev)
}

func shortcodeSet(urls []models.ShortenedURL) map[string]struct{} {
	set := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		set[u.Shortcode] = struct{}{}
	}
	return set
}

func copyClicks(src models.ClickLog) models.ClickLog {
	dst := make(models.ClickLog, len(src))
	for code, events := range src {
		dst[code] = append([]models.ClickEvent(nil), events...)
	}
	return dst
}
