package shortcode

import (
	"errors"
	"net/url"
	"regexp"
	"time"

	"github.com/mmeshcher/shortlinks/internal/models"
)

const (
	MaxBatchSize    = 5
	DefaultValidity = 30
	maxRegenerate   = 5
)

var (
	ErrEmptyBatch         = errors.New("empty batch")
	ErrBatchTooLarge      = errors.New("batch exceeds 5 urls")
	ErrInvalidURL         = errors.New("invalid url")
	ErrInvalidShortcode   = errors.New("shortcode must be 3-15 alphanumeric characters")
	ErrShortcodeTaken     = errors.New("shortcode already taken")
	ErrShortcodeExhausted = errors.New("failed to generate unique shortcode")
)

var codeRe = regexp.MustCompile(`^[A-Za-z0-9]{3,15}$`)

func ValidCode(code string) bool {
	return codeRe.MatchString(code)
}

// ValidURL accepts absolute http(s) URLs with a host.
func ValidURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

type Assignment struct {
	Row      int
	Request  models.ShortenRequest
	Code     string
	Validity int
	Expiry   time.Time
}

type Rejection struct {
	Row     int
	Request models.ShortenRequest
	Err     error
}

type Result struct {
	Assigned []Assignment
	Rejected []Rejection
}

type Allocator struct {
	gen             Generator
	defaultValidity int
}

func NewAllocator(gen Generator, defaultValidity int) *Allocator {
	if defaultValidity <= 0 {
		defaultValidity = DefaultValidity
	}
	return &Allocator{gen: gen, defaultValidity: defaultValidity}
}

// Allocate walks the batch in order. Accepted codes are added to existing right away,
// so later rows in the same batch cannot reuse them. Rows are numbered from 1.
func (a *Allocator) Allocate(now time.Time, batch []models.ShortenRequest, existing map[string]struct{}) (Result, error) {
	if len(batch) == 0 {
		return Result{}, ErrEmptyBatch
	}
	if len(batch) > MaxBatchSize {
		return Result{}, ErrBatchTooLarge
	}

	var res Result
	for i, req := range batch {
		row := i + 1

		if !ValidURL(req.LongURL) {
			res.Rejected = append(res.Rejected, Rejection{Row: row, Request: req, Err: ErrInvalidURL})
			continue
		}

		code, err := a.pick(req.Shortcode, existing)
		if err != nil {
			res.Rejected = append(res.Rejected, Rejection{Row: row, Request: req, Err: err})
			continue
		}

		existing[code] = struct{}{}

		validity := a.validity(req.Validity)
		res.Assigned = append(res.Assigned, Assignment{
			Row:      row,
			Request:  req,
			Code:     code,
			Validity: validity,
			Expiry:   now.Add(time.Duration(validity) * time.Minute),
		})
	}

	return res, nil
}

func (a *Allocator) pick(custom string, existing map[string]struct{}) (string, error) {
	if custom != "" {
		if !ValidCode(custom) {
			return "", ErrInvalidShortcode
		}
		if _, taken := existing[custom]; taken {
			return "", ErrShortcodeTaken
		}
		return custom, nil
	}

	code := a.gen.Generate()
	for attempts := 0; ; attempts++ {
		if _, taken := existing[code]; !taken {
			return code, nil
		}
		if attempts == maxRegenerate {
			return "", ErrShortcodeExhausted
		}
		code = a.gen.Generate()
	}
}

func (a *Allocator) validity(minutes int) int {
	if minutes > 0 {
		return minutes
	}
	return a.defaultValidity
}
