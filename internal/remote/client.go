// Package remote implements the HTTPS client against the lyrics API,
// grounded on the teacher's lrclib.Client (request shape, field names,
// User-Agent, JSON decode) merged with its musicbrainz.Client's
// rate-limit/retry idiom (waitForRateLimit + doRequestWithRetry), extended
// with jittered backoff and Retry-After handling.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

const (
	userAgent = "lyricsync/0.1 (https://github.com/corvidae/lyricsync)"

	baseRetryDelay = 500 * time.Millisecond
	maxRetryDelay  = 8 * time.Second
	maxAttempts    = 4
	maxRetryAfter  = 60 * time.Second

	attemptTimeout = 15 * time.Second
)

// ErrNotFound is returned by GetSigned when the exact-signature lookup has
// no match; it is not a transport error.
var ErrNotFound = errors.New("remote: no signed match")

// Result mirrors the wire schema §6 lists: id, trackName, artistName,
// albumName, duration, syncedLyrics, plainLyrics, instrumental.
type Result struct {
	ID           int64   `json:"id"`
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"`
	SyncedLyrics string  `json:"syncedLyrics"`
	PlainLyrics  string  `json:"plainLyrics"`
	Instrumental bool    `json:"instrumental"`
}

func (r Result) HasSynced() bool { return r.SyncedLyrics != "" }
func (r Result) HasPlain() bool  { return r.PlainLyrics != "" }

// Client is the process-wide lyrics API client. One Client instance's rate
// limiter serializes outgoing requests across every caller, matching §5's
// "both share the Remote Client via a process-wide token-bucket limiter".
type Client struct {
	httpClient *http.Client
	baseURL    string

	mu        sync.Mutex
	lastSent  time.Time
	interval  time.Duration // 1/RPS
}

// New creates a client against baseURL with outgoing requests capped to
// rps requests/second (default 4 if rps <= 0).
func New(baseURL string, rps int) *Client {
	if rps <= 0 {
		rps = 4
	}
	return &Client{
		httpClient: &http.Client{Timeout: attemptTimeout},
		baseURL:    baseURL,
		interval:   time.Second / time.Duration(rps),
	}
}

// waitForRateLimit blocks the caller until the token-bucket interval has
// elapsed since the last outgoing request, the same mutex+time.Since shape
// the teacher uses for MusicBrainz's fixed 1 req/s limit.
func (c *Client) waitForRateLimit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := time.Since(c.lastSent)
	if wait := c.interval - elapsed; wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.lastSent = time.Now()
	return nil
}

// GetSigned performs the exact-signature lookup (§4.6 get_signed).
func (c *Client) GetSigned(ctx context.Context, title, artist, album string, duration float64) (*Result, error) {
	params := url.Values{}
	params.Set("track_name", title)
	params.Set("artist_name", artist)
	if album != "" {
		params.Set("album_name", album)
	}
	if duration > 0 {
		params.Set("duration", strconv.FormatFloat(duration, 'f', 0, 64))
	}

	resp, err := c.doGET(ctx, "/get", params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("remote: decode get response: %w", err)
	}
	return &result, nil
}

// Search performs the fallback fuzzy search (§4.6 search).
func (c *Client) Search(ctx context.Context, title, artist, album string) ([]Result, error) {
	params := url.Values{}
	params.Set("track_name", title)
	if artist != "" {
		params.Set("artist_name", artist)
	}
	if album != "" {
		params.Set("album_name", album)
	}

	resp, err := c.doGET(ctx, "/search", params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var results []Result
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("remote: decode search response: %w", err)
	}
	return results, nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<12))
	return fmt.Errorf("remote: unexpected status %s: %s", resp.Status, body)
}

// doGET builds the request and runs it through the retry/backoff/rate-limit
// pipeline. 4xx responses are returned to the caller untouched (terminal
// per §4.6); 5xx and network errors retry with jittered exponential
// backoff; 429 honors Retry-After.
func (c *Client) doGET(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	reqURL := c.baseURL + path + "?" + params.Encode()

	delay := baseRetryDelay
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, jitter(delay)); err != nil {
				return nil, err
			}
			delay = min(delay*2, maxRetryDelay)
		}

		if err := c.waitForRateLimit(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("remote: build request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("remote: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := retryAfter(resp.Header.Get("Retry-After"))
			resp.Body.Close()
			lastErr = fmt.Errorf("remote: rate limited")
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("remote: server status %d", resp.StatusCode)
			continue
		}

		// Success or a terminal 4xx: hand back to the caller as-is.
		return resp, nil
	}

	return nil, fmt.Errorf("remote: exhausted %d attempts: %w", maxAttempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// jitter adds up to +/-20% noise to d so retrying workers don't synchronize.
func jitter(d time.Duration) time.Duration {
	spread := float64(d) * 0.2
	delta := (rand.Float64()*2 - 1) * spread
	return d + time.Duration(delta)
}

// retryAfter parses a Retry-After header value (seconds form), capped at
// maxRetryAfter. An unparseable or absent header falls back to the base
// retry delay.
func retryAfter(header string) time.Duration {
	if header == "" {
		return baseRetryDelay
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 {
		return baseRetryDelay
	}
	d := time.Duration(secs) * time.Second
	if d > maxRetryAfter {
		return maxRetryAfter
	}
	return d
}
