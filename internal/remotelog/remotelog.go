// Package remotelog ships application events to the external evaluation log service.
// Sending is fire-and-forget: entries are queued, posted by background workers and
// dropped on any failure.
package remotelog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultEndpoint = "http://20.244.56.144/evaluation-service/logs"

const (
	StackBackend  = "backend"
	StackFrontend = "frontend"
)

const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
	LevelFatal = "fatal"
)

var (
	ErrInvalidStack = errors.New("invalid log stack")
	ErrInvalidLevel = errors.New("invalid log level")
	ErrEmptyPackage = errors.New("empty log package")
	ErrQueueFull    = errors.New("log queue is full")
	ErrClosed       = errors.New("log client closed")
)

// Logger is what the rest of the application depends on.
type Logger interface {
	Log(ctx context.Context, level, pkg, message string) error
}

type Entry struct {
	Stack   string `json:"stack"`
	Level   string `json:"level"`
	Package string `json:"package"`
	Message string `json:"message"`
}

type Config struct {
	Endpoint    string
	AccessToken string
	Stack       string
	Workers     int
	QueueSize   int
	Timeout     time.Duration
}

type Client struct {
	endpoint string
	token    string
	stack    string
	http     *http.Client
	logger   *zap.Logger

	entries  chan Entry
	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
	warnOnce sync.Once
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Stack == "" {
		cfg.Stack = StackBackend
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	c := &Client{
		endpoint: cfg.Endpoint,
		token:    cfg.AccessToken,
		stack:    cfg.Stack,
		http:     &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
		entries:  make(chan Entry, cfg.QueueSize),
	}

	for i := 0; i < cfg.Workers; i++ {
		c.wg.Add(1)
		go c.worker(i)
	}

	return c
}

// Log validates and queues an entry. A missing access token skips the call. The
// returned error only reports validation and queueing problems, never delivery.
func (c *Client) Log(_ context.Context, level, pkg, message string) error {
	entry := Entry{Stack: c.stack, Level: level, Package: pkg, Message: message}
	if err := entry.Validate(); err != nil {
		return err
	}

	if c.token == "" {
		c.warnOnce.Do(func() {
			c.logger.Warn("Access token missing, remote logging disabled")
		})
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}

	select {
	case c.entries <- entry:
		return nil
	default:
		c.logger.Debug("Remote log queue full, entry dropped", zap.String("package", pkg))
		return ErrQueueFull
	}
}

// Close stops accepting entries and waits until the queued ones are sent.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.entries)
	c.mu.Unlock()

	c.wg.Wait()
	c.logger.Debug("Remote log workers stopped")
}

func (c *Client) worker(id int) {
	defer c.wg.Done()

	for entry := range c.entries {
		ctx, cancel := context.WithTimeout(context.Background(), c.http.Timeout)
		if err := c.send(ctx, entry); err != nil {
			c.logger.Debug("Failed to send log",
				zap.Int("workerID", id),
				zap.String("package", entry.Package),
				zap.Error(err))
		}
		cancel()
	}
}

func (c *Client) send(ctx context.Context, entry Entry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post log: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post log: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (e Entry) Validate() error {
	switch e.Stack {
	case StackBackend, StackFrontend:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStack, e.Stack)
	}

	switch e.Level {
	case LevelDebug, LevelInfo, LevelWarn, LevelError, LevelFatal:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLevel, e.Level)
	}

	if e.Package == "" {
		return ErrEmptyPackage
	}
	return nil
}

// Nop discards every entry.
type Nop struct{}

func (Nop) Log(context.Context, string, string, string) error { return nil }
