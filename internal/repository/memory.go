package repository

import (
	"context"
	"sync"

	"github.com/mmeshcher/shortlinks/internal/models"
)

type MemoryRepository struct {
	mu  sync.RWMutex
	doc document
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		doc: document{Clicks: make(models.ClickLog)},
	}
}

func (m *MemoryRepository) Shortcodes(_ context.Context) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return shortcodeSet(m.doc.URLs), nil
}

func (m *MemoryRepository) SaveURL(_ context.Context, rec models.ShortenedURL) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.add(rec)
}

func (m *MemoryRepository) GetURL(_ context.Context, shortcode string) (models.ShortenedURL, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.doc.find(shortcode)
	if !ok {
		return models.ShortenedURL{}, ErrNotFound
	}
	return rec, nil
}

func (m *MemoryRepository) ListURLs(_ context.Context) ([]models.ShortenedURL, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.ShortenedURL(nil), m.doc.URLs...), nil
}

func (m *MemoryRepository) AppendClick(_ context.Context, shortcode string, ev models.ClickEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc.appendClick(shortcode, ev)
	return nil
}

func (m *MemoryRepository) Clicks(_ context.Context) (models.ClickLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyClicks(m.doc.Clicks), nil
}

func (m *MemoryRepository) Ping(_ context.Context) error {
	return nil
}

func (m *MemoryRepository) Close() error {
	return nil
}
