package models

import "time"

const (
	SourceDirect    = "direct"
	LocationUnknown = "unknown"
)

type ShortenRequest struct {
	LongURL   string `json:"longUrl"`
	Validity  int    `json:"validity,omitempty"`
	Shortcode string `json:"shortcode,omitempty"`
}

// ShortenedURL is immutable once stored. Expiry is only checked when the code is accessed.
type ShortenedURL struct {
	LongURL   string    `json:"longUrl"`
	Validity  int       `json:"validity"`
	Shortcode string    `json:"shortcode"`
	ShortURL  string    `json:"shortUrl"`
	Expiry    time.Time `json:"expiry"`
}

// CreatedAt is derived from the expiry and validity, nothing else is stored.
func (u ShortenedURL) CreatedAt() time.Time {
	return u.Expiry.Add(-time.Duration(u.Validity) * time.Minute)
}

func (u ShortenedURL) ExpiredAt(now time.Time) bool {
	return u.Expiry.Before(now)
}

type ClickEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Location  string    `json:"location"`
}

// ClickLog maps a shortcode to its clicks in the order they happened.
type ClickLog map[string][]ClickEvent

func (l ClickLog) Total() int {
	total := 0
	for _, events := range l {
		total += len(events)
	}
	return total
}

type RowError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RowResult struct {
	Row     int           `json:"row"`
	LongURL string        `json:"longUrl"`
	Record  *ShortenedURL `json:"record,omitempty"`
	Error   *RowError     `json:"error,omitempty"`
}

type BatchResponse struct {
	Results []RowResult `json:"results"`
	Created int         `json:"created"`
}

type URLStats struct {
	Shortcode   string       `json:"shortcode"`
	ShortURL    string       `json:"shortUrl"`
	LongURL     string       `json:"longUrl"`
	CreatedAt   time.Time    `json:"createdAt"`
	Expiry      time.Time    `json:"expiry"`
	Expired     bool         `json:"expired"`
	TotalClicks int          `json:"totalClicks"`
	Clicks      []ClickEvent `json:"clicks"`
}

type Stats struct {
	TotalURLs   int        `json:"totalUrls"`
	TotalClicks int        `json:"totalClicks"`
	URLs        []URLStats `json:"urls"`
}

type HomeResponse struct {
	Service     string `json:"service"`
	TotalURLs   int    `json:"totalUrls"`
	TotalClicks int    `json:"totalClicks"`
	Notice      string `json:"notice,omitempty"`
}
