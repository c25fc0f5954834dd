package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jellydator/ttlcache/v3"
	apperrors "github.com/jrsteele09/go-module-shell/internal/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	registryCacheKey = "registry"
	maxDocumentBytes = 1 << 20
)

// FetchError reports why the registry document could not be obtained.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("[Registry Fetch] %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("[Registry Fetch] %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	return target == apperrors.ErrRegistryFetch
}

// Client fetches the registry document once per process and memoizes it.
type Client struct {
	url        string
	httpClient *http.Client
	cache      *ttlcache.Cache[string, RemoteRegistry]
	group      singleflight.Group
}

type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// NewClient creates a client for the registry document at url.
func NewClient(url string, opts ...ClientOption) *Client {
	c := &Client{
		url:        url,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		cache: ttlcache.New(
			ttlcache.WithTTL[string, RemoteRegistry](ttlcache.NoTTL),
			ttlcache.WithDisableTouchOnHit[string, RemoteRegistry](),
		),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the registry document location.
func (c *Client) URL() string {
	return c.url
}

// FetchRegistry returns the memoized registry, fetching it on first use.
// Concurrent first callers share a single request. Failures are not
// memoized and are not retried.
func (c *Client) FetchRegistry(ctx context.Context) (RemoteRegistry, error) {
	if item := c.cache.Get(registryCacheKey); item != nil {
		return item.Value().Clone(), nil
	}

	v, err, _ := c.group.Do(registryCacheKey, func() (interface{}, error) {
		if item := c.cache.Get(registryCacheKey); item != nil {
			return item.Value(), nil
		}
		reg, err := c.fetch(ctx)
		if err != nil {
			return RemoteRegistry{}, err
		}
		c.cache.Set(registryCacheKey, reg, ttlcache.NoTTL)
		log.Debug().Str("url", c.url).Int("remotes", len(reg.Remotes)).Msg("registry loaded")
		return reg, nil
	})
	if err != nil {
		return RemoteRegistry{}, err
	}
	return v.(RemoteRegistry).Clone(), nil
}

// Cached reports whether a registry has been memoized.
func (c *Client) Cached() bool {
	return c.cache.Has(registryCacheKey)
}

func (c *Client) fetch(ctx context.Context) (RemoteRegistry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return RemoteRegistry{}, &FetchError{URL: c.url, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return RemoteRegistry{}, &FetchError{URL: c.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return RemoteRegistry{}, &FetchError{URL: c.url, StatusCode: resp.StatusCode}
	}

	reg, err := Decode(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return RemoteRegistry{}, &FetchError{URL: c.url, Err: err}
	}
	return reg, nil
}

// Decode parses a registry document.
func Decode(r io.Reader) (RemoteRegistry, error) {
	var doc struct {
		Remotes map[string]RemoteEntry `json:"remotes"`
	}
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return RemoteRegistry{}, apperrors.Wrapf(apperrors.ErrRegistryDecode, "decode: %v", err)
	}
	if doc.Remotes == nil {
		return RemoteRegistry{}, apperrors.Wrapf(apperrors.ErrRegistryDecode, "missing remotes")
	}
	return RemoteRegistry{Remotes: doc.Remotes}.Clone(), nil
}
