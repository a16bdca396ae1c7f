package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/killerciao/CoomerDLEnhanced/utils"
)

// fetch issues one driver-level GET with the same retry and backoff policy as
// file transfers. Page fetches go through the rate limiter so paginated
// crawls stay polite.
func (c *Client) fetch(rawURL string) (*http.Response, error) {
	log := utils.GetLogger("fetch")
	backoff := c.backoffBase
	rateLimited := 0
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; {
		if c.limiter != nil {
			if err := c.limiter.Wait(context.Background()); err != nil {
				return nil, err
			}
		}
		req, err := c.newRequest(http.MethodGet, rawURL, "")
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			log.Warn().Err(err).Str("url", rawURL).Int("attempt", attempt).Msg("Page fetch failed")
			attempt++
			if attempt <= c.maxAttempts {
				time.Sleep(c.retryDelay)
			}
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			rateLimited++
			if rateLimited >= c.maxAttempts {
				return nil, &statusError{code: resp.StatusCode}
			}
			log.Warn().Str("url", rawURL).Dur("wait", backoff).Msg("Rate limited on page fetch, backing off")
			time.Sleep(backoff)
			backoff *= 2
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			lastErr = &statusError{code: resp.StatusCode}
			attempt++
			if attempt <= c.maxAttempts {
				time.Sleep(c.retryDelay)
			}
			continue
		}
		return resp, nil
	}
	return nil, fmt.Errorf("fetching %s: %w", rawURL, lastErr)
}

// FetchDocument retrieves a page and parses it for discovery, returning the
// parsed document together with the response URL (after redirects) so
// relative links resolve against the right base.
func (c *Client) FetchDocument(rawURL string) (*goquery.Document, *url.URL, error) {
	resp, err := c.fetch(rawURL)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", rawURL, err)
	}
	return doc, resp.Request.URL, nil
}

// FetchJSON retrieves an API endpoint and decodes the response into v.
func (c *Client) FetchJSON(rawURL string, v any) error {
	resp, err := c.fetch(rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", rawURL, err)
	}
	return nil
}

// PostJSON issues a POST with an empty body and decodes the JSON response.
// Hosts that hand out guest tokens use this.
func (c *Client) PostJSON(rawURL string, v any) error {
	req, err := http.NewRequest(http.MethodPost, rawURL, strings.NewReader(""))
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", rawURL, err)
	}
	return nil
}

// FetchBody returns a page body as a string, for endpoints that are neither
// HTML to crawl nor JSON (token scraping from scripts).
func (c *Client) FetchBody(rawURL string) (string, error) {
	resp, err := c.fetch(rawURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SetHeader adds or replaces a default header on every subsequent request.
func (c *Client) SetHeader(key, value string) {
	if c.headers == nil {
		c.headers = map[string]string{}
	}
	c.headers[key] = value
}

// AddCookie attaches a cookie to every subsequent request.
func (c *Client) AddCookie(ck *http.Cookie) {
	c.cookies = append(c.cookies, ck)
}
