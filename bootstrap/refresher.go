// Package bootstrap restores a session silently at shell startup.
package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-module-shell/internal/errors"
	"github.com/jrsteele09/go-module-shell/session"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/oauth2"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

const maxRefreshBody = 1 << 20

// Result is a successful silent refresh.
type Result struct {
	Token *oauth2.Token
	User  *session.User
}

// Refresher performs a single cookie-credentialed refresh call.
type Refresher interface {
	Refresh(ctx context.Context) (Result, error)
}

type refreshResponse struct {
	AccessToken string        `json:"accessToken"`
	TokenType   string        `json:"tokenType,omitempty"`
	ExpiresIn   int64         `json:"expiresIn,omitempty"`
	User        *session.User `json:"user,omitempty"`
}

// HTTPRefresher calls the backend refresh endpoint with the cookies held
// in its jar.
type HTTPRefresher struct {
	url    string
	client *http.Client
}

type RefresherOption func(*HTTPRefresher)

// WithHTTPClient uses a copy of c. A client without a jar gets the
// refresher's jar; c itself is left untouched.
func WithHTTPClient(c *http.Client) RefresherOption {
	return func(r *HTTPRefresher) {
		if c != nil {
			cp := *c
			r.client = &cp
		}
	}
}

// NewHTTPRefresher targets apiURL+path, e.g. https://api.example.com
// and /auth/refresh.
func NewHTTPRefresher(apiURL, path string, timeout time.Duration, opts ...RefresherOption) (*HTTPRefresher, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("[HTTPRefresher New] cookie jar: %w", err)
	}
	r := &HTTPRefresher{
		url:    strings.TrimSuffix(apiURL, "/") + "/" + strings.TrimPrefix(path, "/"),
		client: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.client.Jar == nil {
		r.client.Jar = jar
	}
	return r, nil
}

func (r *HTTPRefresher) URL() string {
	return r.url
}

// Jar holds the refresh cookie.
func (r *HTTPRefresher) Jar() http.CookieJar {
	return r.client.Jar
}

// SeedCookies stores cookies in the jar for the refresh endpoint. Cookies
// without a path apply to the whole API origin.
func (r *HTTPRefresher) SeedCookies(cookies []*http.Cookie) error {
	u, err := url.Parse(r.url)
	if err != nil {
		return fmt.Errorf("[HTTPRefresher SeedCookies] %w", err)
	}
	seeded := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		if c == nil {
			continue
		}
		cp := *c
		if cp.Path == "" {
			cp.Path = "/"
		}
		seeded = append(seeded, &cp)
	}
	r.client.Jar.SetCookies(u, seeded)
	return nil
}

// Refresh issues exactly one request. Any transport failure, non-2xx
// status, unreadable body or missing token wraps ErrRefreshFailed.
func (r *HTTPRefresher) Refresh(ctx context.Context) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, http.NoBody)
	if err != nil {
		return Result{}, apperrors.Wrapf(apperrors.ErrRefreshFailed, "[HTTPRefresher Refresh] %v", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return Result{}, apperrors.Wrapf(apperrors.ErrRefreshFailed, "[HTTPRefresher Refresh] %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, apperrors.Wrapf(apperrors.ErrRefreshFailed, "[HTTPRefresher Refresh] status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRefreshBody))
	if err != nil {
		return Result{}, apperrors.Wrapf(apperrors.ErrRefreshFailed, "[HTTPRefresher Refresh] read body: %v", err)
	}

	var payload refreshResponse
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			return Result{}, apperrors.Wrapf(apperrors.ErrRefreshFailed, "[HTTPRefresher Refresh] decode: %v", err)
		}
	}

	access := strings.TrimSpace(payload.AccessToken)
	if access == "" {
		access = bearerToken(resp.Header.Get("Authorization"))
	}
	if access == "" {
		return Result{}, apperrors.Wrapf(apperrors.ErrRefreshFailed, "[HTTPRefresher Refresh] no access token")
	}

	tokenType := payload.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return Result{
		Token: &oauth2.Token{
			AccessToken: access,
			TokenType:   tokenType,
			Expiry:      expiry(access, payload.ExpiresIn),
		},
		User: payload.User,
	}, nil
}

func bearerToken(header string) string {
	const prefix = "bearer "
	header = strings.TrimSpace(header)
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// expiry prefers expiresIn; otherwise it reads the exp claim without
// verifying the token. The backend verifies, the shell only schedules.
func expiry(accessToken string, expiresIn int64) time.Time {
	if expiresIn > 0 {
		return NowTimeFunc().Add(time.Duration(expiresIn) * time.Second)
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
