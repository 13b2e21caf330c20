package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/shortlinks/internal/models"
)

// FileRepository keeps the whole state in one JSON file. Every mutation reads the
// file, changes it and writes it back in full.
type FileRepository struct {
	mu     sync.Mutex
	path   string
	id     string
	logger *zap.Logger
}

func NewFileRepository(path string, logger *zap.Logger) (*FileRepository, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	r := &FileRepository{path: path, logger: logger}

	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	if doc.ID == "" {
		doc.ID = uuid.New().String()
		if err := r.save(doc); err != nil {
			return nil, err
		}
	}
	r.id = doc.ID

	logger.Debug("Storage file loaded",
		zap.String("path", path),
		zap.String("storageID", r.id),
		zap.Int("urls", len(doc.URLs)),
		zap.Int("clicks", doc.Clicks.Total()))

	return r, nil
}

func (r *FileRepository) Shortcodes(_ context.Context) (map[string]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	return shortcodeSet(doc.URLs), nil
}

func (r *FileRepository) SaveURL(_ context.Context, rec models.ShortenedURL) error {
	return r.update(func(doc *document) error {
		return doc.add(rec)
	})
}

func (r *FileRepository) GetURL(_ context.Context, shortcode string) (models.ShortenedURL, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return models.ShortenedURL{}, err
	}
	rec, ok := doc.find(shortcode)
	if !ok {
		return models.ShortenedURL{}, ErrNotFound
	}
	return rec, nil
}

func (r *FileRepository) ListURLs(_ context.Context) ([]models.ShortenedURL, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	return doc.URLs, nil
}

func (r *FileRepository) AppendClick(_ context.Context, shortcode string, ev models.ClickEvent) error {
	return r.update(func(doc *document) error {
		doc.appendClick(shortcode, ev)
		return nil
	})
}

func (r *FileRepository) Clicks(_ context.Context) (models.ClickLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	return doc.Clicks, nil
}

func (r *FileRepository) Ping(_ context.Context) error {
	_, err := os.Stat(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (r *FileRepository) Close() error {
	return nil
}

func (r *FileRepository) update(fn func(doc *document) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return err
	}
	if err := fn(&doc); err != nil {
		return err
	}
	return r.save(doc)
}

func (r *FileRepository) load() (document, error) {
	doc := document{Clicks: make(models.ClickLog)}

	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("read storage file: %w", err)
	}
	if len(data) == 0 {
		return doc, nil
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		r.logger.Error("Failed to parse storage file", zap.String("path", r.path), zap.Error(err))
		return doc, fmt.Errorf("parse storage file: %w", err)
	}
	if doc.Clicks == nil {
		doc.Clicks = make(models.ClickLog)
	}
	return doc, nil
}

// ID identifies the storage file across restarts.
func (r *FileRepository) ID() string {
	return r.id
}

func (r *FileRepository) save(doc document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal storage file: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write storage file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace storage file: %w", err)
	}
	return nil
}
