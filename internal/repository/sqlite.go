package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/mattn/go-sqlite3"

	"github.com/mmeshcher/shortlinks/internal/models"
)

type SQLiteRepository struct {
	db *sql.DB
	sb squirrel.StatementBuilderType
}

func NewSQLiteRepository(ctx context.Context, path string) (*SQLiteRepository, error) {
	dsn := path + "?_busy_timeout=5000&_journal_mode=WAL"

	if err := runMigrations("sqlite3", dsn, dialectSQLite); err != nil {
		return nil, fmt.Errorf("migrations failed: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

func (s *SQLiteRepository) Shortcodes(ctx context.Context) (map[string]struct{}, error) {
	query, args, err := s.sb.Select("shortcode").From("short_urls").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
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

func (s *SQLiteRepository) SaveURL(ctx context.Context, rec models.ShortenedURL) error {
	query, args, err := s.sb.
		Insert("short_urls").
		Columns("shortcode", "long_url", "short_url", "validity_minutes", "expiry").
		Values(rec.Shortcode, rec.LongURL, rec.ShortURL, rec.Validity, rec.Expiry.UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) &&
			(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
				sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
			return ErrShortcodeTaken
		}
		return fmt.Errorf("execute query: %w", err)
	}
	return nil
}

func (s *SQLiteRepository) GetURL(ctx context.Context, shortcode string) (models.ShortenedURL, error) {
	query, args, err := s.sb.
		Select("shortcode", "long_url", "short_url", "validity_minutes", "expiry").
		From("short_urls").
		Where(squirrel.Eq{"shortcode": shortcode}).
		ToSql()
	if err != nil {
		return models.ShortenedURL{}, fmt.Errorf("build query: %w", err)
	}

	var rec models.ShortenedURL
	err = s.db.QueryRowContext(ctx, query, args...).
		Scan(&rec.Shortcode, &rec.LongURL, &rec.ShortURL, &rec.Validity, &rec.Expiry)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ShortenedURL{}, ErrNotFound
		}
		return models.ShortenedURL{}, fmt.Errorf("query row: %w", err)
	}

	rec.Expiry = rec.Expiry.UTC()
	return rec, nil
}

func (s *SQLiteRepository) ListURLs(ctx context.Context) ([]models.ShortenedURL, error) {
	query, args, err := s.sb.
		Select("shortcode", "long_url", "short_url", "validity_minutes", "expiry").
		From("short_urls").
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
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

func (s *SQLiteRepository) AppendClick(ctx context.Context, shortcode string, ev models.ClickEvent) error {
	query, args, err := s.sb.
		Insert("click_events").
		Columns("shortcode", "clicked_at", "source", "location").
		Values(shortcode, ev.Timestamp.UTC(), ev.Source, ev.Location).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("execute query: %w", err)
	}
	return nil
}

func (s *SQLiteRepository) Clicks(ctx context.Context) (models.ClickLog, error) {
	query, args, err := s.sb.
		Select("shortcode", "clicked_at", "source", "location").
		From("click_events").
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
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

func (s *SQLiteRepository) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteRepository) Close() error {
	return s.db.Close()
}
