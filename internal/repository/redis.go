package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mmeshcher/shortlinks/internal/models"
)

const redisMaxRetries = 10

// RedisRepository stores two JSON values under the shortened_urls and shortened_clicks
// keys. Writes are read-modify-write inside WATCH transactions.
type RedisRepository struct {
	client *redis.Client
}

func NewRedisRepository(ctx context.Context, addr, password string, db int) (*RedisRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisRepository{client: client}, nil
}

func (r *RedisRepository) Shortcodes(ctx context.Context) (map[string]struct{}, error) {
	urls, err := readURLs(ctx, r.client)
	if err != nil {
		return nil, err
	}
	return shortcodeSet(urls), nil
}

func (r *RedisRepository) SaveURL(ctx context.Context, rec models.ShortenedURL) error {
	return r.watch(ctx, urlsKey, func(tx *redis.Tx) error {
		urls, err := readURLs(ctx, tx)
		if err != nil {
			return err
		}

		doc := document{URLs: urls}
		if err := doc.add(rec); err != nil {
			return err
		}

		data, err := json.Marshal(doc.URLs)
		if err != nil {
			return fmt.Errorf("marshal urls: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, urlsKey, data, 0)
			return nil
		})
		return err
	})
}

func (r *RedisRepository) GetURL(ctx context.Context, shortcode string) (models.ShortenedURL, error) {
	urls, err := readURLs(ctx, r.client)
	if err != nil {
		return models.ShortenedURL{}, err
	}

	doc := document{URLs: urls}
	rec, ok := doc.find(shortcode)
	if !ok {
		return models.ShortenedURL{}, ErrNotFound
	}
	return rec, nil
}

func (r *RedisRepository) ListURLs(ctx context.Context) ([]models.ShortenedURL, error) {
	return readURLs(ctx, r.client)
}

func (r *RedisRepository) AppendClick(ctx context.Context, shortcode string, ev models.ClickEvent) error {
	return r.watch(ctx, clicksKey, func(tx *redis.Tx) error {
		clicks, err := readClicks(ctx, tx)
		if err != nil {
			return err
		}

		doc := document{Clicks: clicks}
		doc.appendClick(shortcode, ev)

		data, err := json.Marshal(doc.Clicks)
		if err != nil {
			return fmt.Errorf("marshal clicks: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, clicksKey, data, 0)
			return nil
		})
		return err
	})
}

func (r *RedisRepository) Clicks(ctx context.Context) (models.ClickLog, error) {
	return readClicks(ctx, r.client)
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// watch retries fn while another client changes key between the read and the write.
func (r *RedisRepository) watch(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	for i := 0; i < redisMaxRetries; i++ {
		err := r.client.Watch(ctx, fn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update %s: too many concurrent writers", key)
}

func readURLs(ctx context.Context, c getter) ([]models.ShortenedURL, error) {
	raw, err := c.Get(ctx, urlsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return []models.ShortenedURL{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", urlsKey, err)
	}

	var urls []models.ShortenedURL
	if err := json.Unmarshal(raw, &urls); err != nil {
		return nil, fmt.Errorf("decode %s: %w", urlsKey, err)
	}
	return urls, nil
}

func readClicks(ctx context.Context, c getter) (models.ClickLog, error) {
	raw, err := c.Get(ctx, clicksKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return make(models.ClickLog), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", clicksKey, err)
	}

	clicks := make(models.ClickLog)
	if err := json.Unmarshal(raw, &clicks); err != nil {
		return nil, fmt.Errorf("decode %s: %w", clicksKey, err)
	}
	return clicks, nil
}
