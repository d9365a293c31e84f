package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"authkit/pkg/jwt"
)

const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultMetadataCacheTTL is the default TTL for cached discovery
	// metadata and key sets. A 30-minute TTL balances caching efficiency
	// with timely key rotation updates.
	DefaultMetadataCacheTTL = 30 * time.Minute
)

// metadataCacheEntry holds cached metadata with its timestamp.
type metadataCacheEntry struct {
	metadata  *Metadata
	fetchedAt time.Time
}

// keySetCacheEntry holds a cached JWKS with its timestamp.
type keySetCacheEntry struct {
	keySet    *jwt.KeySet
	fetchedAt time.Time
}

// Client performs OAuth/OIDC server discovery: well-known metadata and JWKS
// fetches, cached with a TTL and deduplicated with singleflight. The caches
// are read-only after load; entries are only ever replaced wholesale.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger

	cacheMu       sync.RWMutex
	metadataCache map[string]*metadataCacheEntry
	keySetCache   map[string]*keySetCacheEntry
	cacheTTL      time.Duration

	// singleflight groups deduplicate concurrent fetches per issuer/URI.
	metadataGroup singleflight.Group
	keySetGroup   singleflight.Group
}

// ClientOption configures the discovery client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetadataCacheTTL sets the cache TTL.
func WithMetadataCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.cacheTTL = ttl
	}
}

// NewClient creates a new discovery client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:    &http.Client{Timeout: DefaultHTTPTimeout},
		logger:        slog.Default(),
		metadataCache: make(map[string]*metadataCacheEntry),
		keySetCache:   make(map[string]*keySetCacheEntry),
		cacheTTL:      DefaultMetadataCacheTTL,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// DiscoverMetadata fetches server metadata from the issuer's well-known
// endpoint. It tries OpenID Connect (/.well-known/openid-configuration)
// first, then falls back to RFC 8414 (/.well-known/oauth-authorization-server).
//
// Results are cached with a TTL to reduce network requests.
func (c *Client) DiscoverMetadata(ctx context.Context, issuer string) (*Metadata, error) {
	issuer = strings.TrimSuffix(issuer, "/")

	c.cacheMu.RLock()
	if entry, ok := c.metadataCache[issuer]; ok {
		if time.Since(entry.fetchedAt) < c.cacheTTL {
			c.cacheMu.RUnlock()
			return entry.metadata, nil
		}
	}
	c.cacheMu.RUnlock()

	result, err, _ := c.metadataGroup.Do(issuer, func() (interface{}, error) {
		// Double-check cache after acquiring the singleflight lock.
		c.cacheMu.RLock()
		if entry, ok := c.metadataCache[issuer]; ok {
			if time.Since(entry.fetchedAt) < c.cacheTTL {
				c.cacheMu.RUnlock()
				return entry.metadata, nil
			}
		}
		c.cacheMu.RUnlock()

		return c.doDiscoverMetadata(ctx, issuer)
	})

	if err != nil {
		return nil, err
	}

	return result.(*Metadata), nil
}

// doDiscoverMetadata performs the actual HTTP fetch for server metadata.
func (c *Client) doDiscoverMetadata(ctx context.Context, issuer string) (*Metadata, error) {
	wellKnownURL := issuer + "/.well-known/openid-configuration"
	metadata, err := c.fetchMetadata(ctx, wellKnownURL)
	if err == nil {
		c.cacheMetadata(issuer, metadata)
		return metadata, nil
	}

	c.logger.Debug("OIDC metadata fetch failed, trying RFC 8414",
		"issuer", issuer,
		"error", err)

	wellKnownURL = issuer + "/.well-known/oauth-authorization-server"
	metadata, err = c.fetchMetadata(ctx, wellKnownURL)
	if err == nil {
		c.cacheMetadata(issuer, metadata)
		return metadata, nil
	}

	return nil, fmt.Errorf("failed to discover metadata for %s: %w", issuer, err)
}

// fetchMetadata fetches metadata from a specific URL.
func (c *Client) fetchMetadata(ctx context.Context, metadataURL string) (*Metadata, error) {
	body, err := c.get(ctx, metadataURL)
	if err != nil {
		return nil, err
	}

	var metadata Metadata
	if err := json.Unmarshal(body, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}

	return &metadata, nil
}

// cacheMetadata stores metadata in the cache.
func (c *Client) cacheMetadata(issuer string, metadata *Metadata) {
	c.cacheMu.Lock()
	c.metadataCache[issuer] = &metadataCacheEntry{
		metadata:  metadata,
		fetchedAt: time.Now(),
	}
	c.cacheMu.Unlock()

	c.logger.Debug("Cached server metadata",
		"issuer", issuer,
		"authorization_endpoint", metadata.AuthorizationEndpoint,
		"token_endpoint", metadata.TokenEndpoint)
}

// FetchKeySet fetches the issuer's JSON Web Key Set by following the
// jwks_uri from its discovery metadata, with the same caching discipline as
// DiscoverMetadata. The result can be fed to a jwt.Verifier via
// jwt.WithKeySetFetcher to avoid repeated network fetches.
func (c *Client) FetchKeySet(ctx context.Context, issuer string) (*jwt.KeySet, error) {
	issuer = strings.TrimSuffix(issuer, "/")

	c.cacheMu.RLock()
	if entry, ok := c.keySetCache[issuer]; ok {
		if time.Since(entry.fetchedAt) < c.cacheTTL {
			c.cacheMu.RUnlock()
			return entry.keySet, nil
		}
	}
	c.cacheMu.RUnlock()

	result, err, _ := c.keySetGroup.Do(issuer, func() (interface{}, error) {
		c.cacheMu.RLock()
		if entry, ok := c.keySetCache[issuer]; ok {
			if time.Since(entry.fetchedAt) < c.cacheTTL {
				c.cacheMu.RUnlock()
				return entry.keySet, nil
			}
		}
		c.cacheMu.RUnlock()

		return c.doFetchKeySet(ctx, issuer)
	})

	if err != nil {
		return nil, err
	}

	return result.(*jwt.KeySet), nil
}

// doFetchKeySet resolves the jwks_uri and fetches the key set.
func (c *Client) doFetchKeySet(ctx context.Context, issuer string) (*jwt.KeySet, error) {
	metadata, err := c.DiscoverMetadata(ctx, issuer)
	if err != nil {
		return nil, err
	}
	if metadata.JwksURI == "" {
		return nil, fmt.Errorf("metadata for %s has no jwks_uri", issuer)
	}

	body, err := c.get(ctx, metadata.JwksURI)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch key set: %w", err)
	}

	var keySet jwt.KeySet
	if err := json.Unmarshal(body, &keySet); err != nil {
		return nil, fmt.Errorf("failed to parse key set: %w", err)
	}

	c.cacheMu.Lock()
	c.keySetCache[issuer] = &keySetCacheEntry{
		keySet:    &keySet,
		fetchedAt: time.Now(),
	}
	c.cacheMu.Unlock()

	c.logger.Debug("Cached key set",
		"issuer", issuer,
		"jwks_uri", metadata.JwksURI,
		"keys", len(keySet.Keys))

	return &keySet, nil
}

// get performs a GET request and returns the body for 200 responses.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// ClearCache clears the metadata and key set caches. Useful for testing or
// when server configuration must be re-read immediately.
func (c *Client) ClearCache() {
	c.cacheMu.Lock()
	c.metadataCache = make(map[string]*metadataCacheEntry)
	c.keySetCache = make(map[string]*keySetCacheEntry)
	c.cacheMu.Unlock()
}
