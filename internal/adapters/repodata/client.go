// Package repodata keeps local channel indices in sync with their remote
// side: conditional fetches, hash-verified incremental patches, and full
// downloads as the fallback.
package repodata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.trai.ch/keg/internal/core/domain"
	"go.trai.ch/keg/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	indexFilename   = "repodata.json"
	patchesFilename = "repodata_patches.json"

	defaultRequestTimeout = 30 * time.Second
	defaultMaxAttempts    = 4
)

var _ ports.Fetcher = (*Client)(nil)

// Client implements ports.Fetcher over HTTP. Transient failures (transport
// errors and 5xx responses) are retried with exponential backoff; client
// errors are surfaced immediately. Exhausted retries come back as
// domain.ErrChannelFetch.
type Client struct {
	http        *http.Client
	log         ports.Logger
	maxAttempts int
	backoff     BackoffConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// NewClient creates a Client with default timeout and retry policy.
func NewClient(log ports.Logger) *Client {
	return &Client{
		http:        &http.Client{Timeout: defaultRequestTimeout},
		log:         log,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff(),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // Jitter does not need crypto randomness
	}
}

// indexDocument is the wire form of a full index download.
type indexDocument struct {
	ContentHash string                 `json:"content_hash"`
	Records     []domain.PackageRecord `json:"records"`
}

// FetchIndex downloads the index document, sending the prior sync state as
// conditional-request validators. A 304 answer is reported as Unchanged.
func (c *Client) FetchIndex(ctx context.Context, channel domain.Channel, subdir string, prior domain.SyncState) (*domain.IndexDocument, error) {
	u, err := channelURL(channel, subdir, indexFilename)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	if prior.ETag != "" {
		headers.Set("If-None-Match", prior.ETag)
	}
	if prior.LastModified != "" {
		headers.Set("If-Modified-Since", prior.LastModified)
	}

	resp, err := c.get(ctx, u, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck // Best effort close in defer

	if resp.StatusCode == http.StatusNotModified {
		return &domain.IndexDocument{Unchanged: true}, nil
	}

	var doc indexDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to decode index document"), "url", u)
	}
	return &domain.IndexDocument{
		Hash:    doc.ContentHash,
		Records: doc.Records,
		State: domain.SyncState{
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			FetchedAt:    time.Now().UTC(),
		},
	}, nil
}

// FetchPatches downloads the channel's incremental patch document.
func (c *Client) FetchPatches(ctx context.Context, channel domain.Channel, subdir string) (*domain.PatchSet, error) {
	u, err := channelURL(channel, subdir, patchesFilename)
	if err != nil {
		return nil, err
	}

	resp, err := c.get(ctx, u, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck // Best effort close in defer

	var ps domain.PatchSet
	if err := json.NewDecoder(resp.Body).Decode(&ps); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to decode patch document"), "url", u)
	}
	return &ps, nil
}

// FetchArchive streams the record's package archive into dst.
func (c *Client) FetchArchive(ctx context.Context, channel domain.Channel, record *domain.PackageRecord, dst io.Writer) (int64, error) {
	u, err := channelURL(channel, record.Subdir, record.Filename())
	if err != nil {
		return 0, err
	}

	resp, err := c.get(ctx, u, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close() //nolint:errcheck // Best effort close in defer

	n, err := io.Copy(dst, resp.Body)
	if err != nil {
		return n, zerr.With(zerr.Wrap(domain.ErrChannelFetch, err.Error()), "url", u)
	}
	return n, nil
}

// get issues a GET with bounded retries. Responses other than 2xx/304 are
// errors; only transport failures and 5xx answers are retried.
func (c *Client) get(ctx context.Context, u string, headers http.Header) (*http.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.delay(attempt)
			select {
			case <-ctx.Done():
				return nil, zerr.With(zerr.Wrap(domain.ErrChannelFetch, ctx.Err().Error()), "url", u)
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, zerr.Wrap(err, "failed to build request")
		}
		for k, vs := range headers {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			c.log.Warn(fmt.Sprintf("fetch attempt %d/%d failed: %v", attempt, c.maxAttempts, err))
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300,
			resp.StatusCode == http.StatusNotModified:
			return resp, nil
		case resp.StatusCode >= 500:
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("server answered %s", resp.Status)
			c.log.Warn(fmt.Sprintf("fetch attempt %d/%d failed: %v", attempt, c.maxAttempts, lastErr))
			continue
		default:
			_ = resp.Body.Close()
			return nil, zerr.With(zerr.With(zerr.Wrap(domain.ErrChannelFetch, "server rejected the request"), "status", resp.Status), "url", u)
		}
	}
	return nil, zerr.With(zerr.With(zerr.Wrap(domain.ErrChannelFetch, "retries exhausted"), "cause", lastErr.Error()), "url", u)
}

func (c *Client) delay(attempt int) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return nextBackoffDelay(c.backoff, attempt, c.rng)
}

func channelURL(channel domain.Channel, subdir, filename string) (string, error) {
	joined, err := url.JoinPath(channel.URL, subdir, filename)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to build channel url"), "channel", channel.Name)
	}
	return joined, nil
}
