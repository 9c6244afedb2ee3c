// Package vocabulary provides the read-only client for the upstream
// concept-lookup service.
package vocabulary

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/openfolio/archivesync/internal/config"
	"github.com/openfolio/archivesync/internal/logger"
)

// Client fetches a concept's same-as equivalents from the vocabulary
// service. Lookups are cached per process; the cache is never treated as
// authoritative across service restarts since the upstream vocabulary can
// change.
type Client struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	cache   *Cache
	logger  logger.Logger
}

type conceptResponse struct {
	Concept struct {
		URI    string   `json:"uri"`
		SameAs []string `json:"same_as"`
	} `json:"concept"`
}

// NewClient creates a vocabulary client with a bounded LRU cache.
func NewClient(cfg *config.VocabularyConfig, log logger.Logger) (*Client, error) {
	cache, err := NewCache(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create vocabulary cache: %w", err)
	}

	return &Client{
		baseURL: cfg.URL,
		timeout: cfg.Timeout,
		client:  &http.Client{Timeout: cfg.Timeout},
		cache:   cache,
		logger:  log,
	}, nil
}

// SameAs returns the same-as equivalent URIs for a concept. A lookup
// failure is returned as an error, never as an empty result: silently
// dropping a concept would silently drop a contributor downstream.
func (c *Client) SameAs(ctx context.Context, conceptURI string) ([]string, error) {
	if cached, ok := c.cache.Get(conceptURI); ok {
		return cached, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/api/v1/concepts?uri=%s", c.baseURL, url.QueryEscape(conceptURI))
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.Warn("Failed to fetch concept from vocabulary service",
			logger.String("uri", conceptURI),
			logger.Duration("duration", duration),
			logger.Error(err),
		)
		return nil, fmt.Errorf("fetch concept %q: %w", conceptURI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Vocabulary service returned non-OK status",
			logger.String("uri", conceptURI),
			logger.Int("status_code", resp.StatusCode),
			logger.Duration("duration", duration),
		)
		return nil, fmt.Errorf("vocabulary service returned status %d for %q", resp.StatusCode, conceptURI)
	}

	var concept conceptResponse
	if err = json.NewDecoder(resp.Body).Decode(&concept); err != nil {
		return nil, fmt.Errorf("decode concept response: %w", err)
	}

	sameAs := concept.Concept.SameAs
	if sameAs == nil {
		sameAs = []string{}
	}
	c.cache.Add(conceptURI, sameAs)

	c.logger.Debug("Fetched concept from vocabulary service",
		logger.String("uri", conceptURI),
		logger.Int("same_as_count", len(sameAs)),
		logger.Duration("duration", duration),
	)

	return sameAs, nil
}
