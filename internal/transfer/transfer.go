// Package transfer implements single-file streamed downloads with retry,
// rate-limit backoff, per-chunk progress reporting, and cooperative
// cancellation, plus the page/JSON fetch helpers the crawl drivers use.
package transfer

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/killerciao/CoomerDLEnhanced/internal/session"
	"github.com/killerciao/CoomerDLEnhanced/utils"
)

// Status is the terminal classification of one transfer.
type Status int

const (
	StatusCompleted Status = iota
	StatusSkipped
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Options tune a Client. Zero values fall back to sane defaults.
type Options struct {
	UserAgent   string
	Referer     string
	Headers     map[string]string
	Cookies     []*http.Cookie
	MaxAttempts int
	RetryDelay  time.Duration // fixed wait between attempts on transient errors
	BackoffBase time.Duration // first wait after a 429; doubles on each repeat
	ChunkSize   int
	Timeout     time.Duration
	PageRate    rate.Limit // page/API fetches per second, 0 = no limit
	HTTPClient  *http.Client
}

type Client struct {
	http        *http.Client
	limiter     *rate.Limiter
	userAgent   string
	referer     string
	headers     map[string]string
	cookies     []*http.Cookie
	maxAttempts int
	retryDelay  time.Duration
	backoffBase time.Duration
	chunkSize   int
}

func New(opts Options) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = utils.GetRandomUserAgent()
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 3 * time.Second
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = time.Second
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = utils.DefaultBufferSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Minute
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = utils.CreateHTTPClient(opts.Timeout, 90*time.Second, "")
	}
	var limiter *rate.Limiter
	if opts.PageRate > 0 {
		limiter = rate.NewLimiter(opts.PageRate, 1)
	}
	return &Client{
		http:        httpClient,
		limiter:     limiter,
		userAgent:   opts.UserAgent,
		referer:     opts.Referer,
		headers:     opts.Headers,
		cookies:     opts.Cookies,
		maxAttempts: opts.MaxAttempts,
		retryDelay:  opts.RetryDelay,
		backoffBase: opts.BackoffBase,
		chunkSize:   opts.ChunkSize,
	}
}

func (c *Client) newRequest(method, url, referer string) (*http.Request, error) {
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	if referer == "" {
		referer = c.referer
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	return req, nil
}

// Download streams one file to task.Dest, resolving the task into the session
// as completed, skipped, failed, or cancelled. Per-file errors are absorbed
// here: they are logged and recorded, never propagated.
func (c *Client) Download(sess *session.Session, task session.Task) Status {
	log := utils.GetLogger("transfer")
	if sess.Cancelled() {
		return StatusCancelled
	}

	// Deterministic names make this check the resume mechanism: a file that
	// already exists is classified skipped with zero network requests.
	if _, err := os.Stat(task.Dest); err == nil {
		sess.Log(fmt.Sprintf("File already exists, skipping: %s", filepath.Base(task.Dest)))
		sess.MarkSkipped(task.Dest)
		return StatusSkipped
	}
	if err := os.MkdirAll(filepath.Dir(task.Dest), 0755); err != nil {
		log.Error().Err(err).Str("dest", task.Dest).Msg("Cannot create destination directory")
		sess.MarkFailed(task.Dest)
		return StatusFailed
	}

	backoff := c.backoffBase
	rateLimited := 0
	var lastErr error
	var highWater int64
	for attempt := 1; attempt <= c.maxAttempts; {
		if sess.Cancelled() {
			return StatusCancelled
		}
		status, err := c.tryDownload(sess, task, &highWater)
		switch status {
		case StatusCompleted:
			sess.Log(fmt.Sprintf("Downloaded: %s", filepath.Base(task.Dest)))
			sess.MarkCompleted(task.Dest)
			return StatusCompleted
		case StatusCancelled:
			return StatusCancelled
		}
		lastErr = err
		if isRateLimited(err) {
			// A 429 does not consume an attempt, but the repeat budget is
			// still bounded: waits grow 1s, 2s, 4s... then the task fails.
			rateLimited++
			if rateLimited >= c.maxAttempts {
				break
			}
			log.Warn().Str("url", task.URL).Dur("wait", backoff).Msg("Rate limited, backing off")
			time.Sleep(backoff)
			backoff *= 2
			continue
		}
		log.Warn().Err(err).Str("url", task.URL).Int("attempt", attempt).Int("maxAttempts", c.maxAttempts).Msg("Transfer attempt failed")
		attempt++
		if attempt <= c.maxAttempts {
			time.Sleep(c.retryDelay)
		}
	}
	log.Error().Err(lastErr).Str("url", task.URL).Msg("Transfer failed, retries exhausted")
	sess.Log(fmt.Sprintf("Failed to download %s: %v", task.URL, lastErr))
	sess.MarkFailed(task.Dest)
	return StatusFailed
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.code)
}

func isRateLimited(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.code == http.StatusTooManyRequests
}

// tryDownload performs one streamed GET. The partial file is written beside
// the destination and renamed only on success, so a crash or cancellation
// never leaves a truncated file at the destination path. highWater is the
// largest byte count already reported for this task; a retried attempt that
// restarts from zero clamps its progress events to it so observers never see
// the count go backwards.
func (c *Client) tryDownload(sess *session.Session, task session.Task, highWater *int64) (Status, error) {
	req, err := c.newRequest(http.MethodGet, task.URL, task.Referer)
	if err != nil {
		return StatusFailed, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return StatusFailed, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return StatusFailed, &statusError{code: resp.StatusCode}
	}

	total := resp.ContentLength
	if total <= 0 {
		total = task.Size
	}
	partPath := task.Dest + ".part"
	out, err := os.OpenFile(partPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return StatusFailed, err
	}

	start := time.Now()
	var downloaded int64
	buffer := make([]byte, c.chunkSize)
	for {
		n, readErr := resp.Body.Read(buffer)
		if n > 0 {
			if _, writeErr := out.Write(buffer[:n]); writeErr != nil {
				out.Close()
				os.Remove(partPath)
				return StatusFailed, fmt.Errorf("writing %s: %w", partPath, writeErr)
			}
			downloaded += int64(n)
			ev := progressEvent(task, downloaded, total, start)
			if downloaded < *highWater {
				ev.Downloaded = *highWater
			} else {
				*highWater = downloaded
			}
			sess.Progress(ev)
		}
		// Cancellation is polled at chunk boundaries; a chunk mid-read
		// completes before the flag is honored.
		if sess.Cancelled() {
			out.Close()
			os.Remove(partPath)
			sess.Log(fmt.Sprintf("Cancelled mid-transfer, partial file removed: %s", filepath.Base(task.Dest)))
			return StatusCancelled, nil
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			out.Close()
			os.Remove(partPath)
			return StatusFailed, fmt.Errorf("reading response body: %w", readErr)
		}
	}
	if err := out.Close(); err != nil {
		os.Remove(partPath)
		return StatusFailed, err
	}
	if err := os.Rename(partPath, task.Dest); err != nil {
		os.Remove(partPath)
		return StatusFailed, err
	}
	return StatusCompleted, nil
}

func progressEvent(task session.Task, downloaded, total int64, start time.Time) session.ProgressEvent {
	elapsed := time.Since(start).Seconds()
	var speed float64
	if elapsed > 0 {
		speed = float64(downloaded) / elapsed
	}
	eta := time.Duration(-1)
	if speed > 0 && total > 0 && downloaded <= total {
		eta = time.Duration(float64(total-downloaded)/speed) * time.Second
	}
	return session.ProgressEvent{
		FileID:     task.FileID,
		Path:       task.Dest,
		Downloaded: downloaded,
		Total:      total,
		Speed:      speed,
		ETA:        eta,
	}
}
