package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mmeshcher/shortlinks/internal/models"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
	sb   squirrel.StatementBuilderType
}

func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := runMigrations("pgx", dsn, dialectPostgres); err != nil {
		return nil, fmt.Errorf("migrations failed: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresRepository{
		pool: pool,
		sb:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

func (p *PostgresRepository) Shortcodes(ctx context.Context) (map[string]struct{}, error) {
	query, args, err := p.sb.Select("shortcode").From("short_urls").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query shortcodes: %w", err)
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		set[code] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return set, nil
}

func (p *PostgresRepository) SaveURL(ctx context.Context, rec models.ShortenedURL) error {
	query, args, err := p.sb.
		Insert("short_urls").
		Columns("shortcode", "long_url", "short_url", "validity_minutes", "expiry").
		Values(rec.Shortcode, rec.LongURL, rec.ShortURL, rec.Validity, rec.Expiry.UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := p.pool.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrShortcodeTaken
		}
		return fmt.Errorf("execute query: %w", err)
	}
	return nil
}

func (p *PostgresRepository) GetURL(ctx context.Context, shortcode string) (models.ShortenedURL, error) {
	query, args, err := p.sb.
		Select("shortcode", "long_url", "short_url", "validity_minutes", "expiry").
		From("short_urls").
		Where(squirrel.Eq{"shortcode": shortcode}).
		ToSql()
	if err != nil {
		return models.ShortenedURL{}, fmt.Errorf("build query: %w", err)
	}

	var rec models.ShortenedURL
	err = p.pool.QueryRow(ctx, query, args...).
		Scan(&rec.Shortcode, &rec.LongURL, &rec.ShortURL, &rec.Validity, &rec.Expiry)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ShortenedURL{}, ErrNotFound
		}
		return models.ShortenedURL{}, fmt.Errorf("query row: %w", err)
	}

	rec.Expiry = rec.Expiry.UTC()
	return rec, nil
}

func (p *PostgresRepository) ListURLs(ctx context.Context) ([]models.ShortenedURL, error) {
	query, args, err := p.sb.
		Select("shortcode", "long_url", "short_url", "validity_minutes", "expiry").
		From("short_urls").
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query urls: %w", err)
	}
	defer rows.Close()

	urls := make([]models.ShortenedURL, 0)
	for rows.Next() {
		var rec models.ShortenedURL
		if err := rows.Scan(&rec.Shortcode, &rec.LongURL, &rec.ShortURL, &rec.Validity, &rec.Expiry); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec.Expiry = rec.Expiry.UTC()
		urls = append(urls, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return urls, nil
}

func (p *PostgresRepository) AppendClick(ctx context.Context, shortcode string, ev models.ClickEvent) error {
	query, args, err := p.sb.
		Insert("click_events").
		Columns("shortcode", "clicked_at", "source", "location").
		Values(shortcode, ev.Timestamp.UTC(), ev.Source, ev.Location).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := p.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("execute query: %w", err)
	}
	return nil
}

func (p *PostgresRepository) Clicks(ctx context.Context) (models.ClickLog, error) {
	query, args, err := p.sb.
		Select("shortcode", "clicked_at", "source", "location").
		From("click_events").
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query clicks: %w", err)
	}
	defer rows.Close()

	clicks := make(models.ClickLog)
	for rows.Next() {
		var (
			code string
			ev   models.ClickEvent
		)
		if err := rows.Scan(&code, &ev.Timestamp, &ev.Source, &ev.Location); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		ev.Timestamp = ev.Timestamp.UTC()
		clicks[code] = append(clicks[code], ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return clicks, nil
}

func (p *PostgresRepository) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresRepository) Close() error {
	p.pool.Close()
	return nil
}
