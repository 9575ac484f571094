// Package lookup fetches book metadata by ISBN from the Google Books API.
package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"biblioteca/internal/models"
)

// DefaultBaseURL is the public Google Books API endpoint
const DefaultBaseURL = "https://www.googleapis.com/books/v1"

// errNoMatch marks a successful response without any volume
var errNoMatch = errors.New("no volume matches the ISBN")

// Client queries the volumes endpoint with a bounded total timeout
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	retries    uint64
	interval   time.Duration
	logger     *zap.Logger
}

// NewClient creates a lookup client. timeout bounds the whole call including
// retries; retries is the number of extra attempts after a transient failure.
func NewClient(baseURL string, timeout time.Duration, retries int, logger *zap.Logger) *Client {
	if retries < 0 {
		retries = 0
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    timeout,
		retries:    uint64(retries),
		interval:   200 * time.Millisecond,
		logger:     logger,
	}
}

type volumesResponse struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		VolumeInfo struct {
			Title         string   `json:"title"`
			Subtitle      string   `json:"subtitle"`
			Authors       []string `json:"authors"`
			Publisher     string   `json:"publisher"`
			PublishedDate string   `json:"publishedDate"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

// Lookup returns the metadata of isbn. Every failure, including timeouts
// and missing matches, wraps models.ErrExternalLookupUnavailable.
func (c *Client) Lookup(ctx context.Context, isbn string) (models.Book, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var result volumesResponse
	operation := func() error {
		return c.fetch(ctx, isbn, &result)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.interval
	policy.MaxInterval = 2 * time.Second
	b := backoff.WithContext(backoff.WithMaxRetries(policy, c.retries), ctx)

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("ISBN lookup attempt failed", zap.String("isbn", isbn), zap.Error(err), zap.Duration("retry_in", wait))
	}
	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		c.logger.Warn("ISBN lookup unavailable", zap.String("isbn", isbn), zap.Error(err))
		return models.Book{}, fmt.Errorf("lookup %s: %v: %w", isbn, err, models.ErrExternalLookupUnavailable)
	}

	if result.TotalItems == 0 || len(result.Items) == 0 {
		return models.Book{}, fmt.Errorf("lookup %s: %v: %w", isbn, errNoMatch, models.ErrExternalLookupUnavailable)
	}

	info := result.Items[0].VolumeInfo
	title := info.Title
	if info.Subtitle != "" {
		title += ": " + info.Subtitle
	}
	return models.Book{
		ISBN:      isbn,
		Title:     title,
		Author:    strings.Join(info.Authors, ", "),
		Publisher: info.Publisher,
		Year:      parseYear(info.PublishedDate),
	}, nil
}

// fetch performs one request; client errors are permanent, server errors
// and network failures are retried
func (c *Client) fetch(ctx context.Context, isbn string, out *volumesResponse) error {
	query := url.Values{"q": {"isbn:" + digits(isbn)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/volumes?"+query.Encode(), nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("lookup service returned %s", resp.Status)
	case resp.StatusCode != http.StatusOK:
		return backoff.Permanent(fmt.Errorf("lookup service returned %s", resp.Status))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return backoff.Permanent(fmt.Errorf("failed to decode lookup response: %w", err))
	}
	return nil
}

// digits keeps the characters that make up the ISBN itself
func digits(isbn string) string {
	return strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == 'X' || r == 'x' {
			return r
		}
		return -1
	}, isbn)
}

// parseYear reads the year prefix of dates like 2018, 2018-01 or 2018-01-06
func parseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}
