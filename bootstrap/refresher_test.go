package bootstrap_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-module-shell/bootstrap"
	apperrors "github.com/jrsteele09/go-module-shell/internal/errors"
	"github.com/stretchr/testify/require"
)

func newRefresher(t *testing.T, srv *httptest.Server) *bootstrap.HTTPRefresher {
	t.Helper()
	r, err := bootstrap.NewHTTPRefresher(srv.URL, "/auth/refresh", time.Second)
	require.NoError(t, err)
	return r
}

func TestHTTPRefresher_Success(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	orig := bootstrap.NowTimeFunc
	bootstrap.NowTimeFunc = func() time.Time { return fixed }
	defer func() { bootstrap.NowTimeFunc = orig }()

	var gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/refresh", r.URL.Path)
		if c, err := r.Cookie("refresh_token"); err == nil {
			gotCookie = c.Value
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"accessToken":"tok-1","expiresIn":900,"user":{"id":"u1","email":"a@b.c"}}`))
	}))
	defer srv.Close()

	r := newRefresher(t, srv)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	r.Jar().SetCookies(u, []*http.Cookie{{Name: "refresh_token", Value: "rt-cookie", Path: "/"}})

	res, err := r.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, "rt-cookie", gotCookie)
	require.Equal(t, "tok-1", res.Token.AccessToken)
	require.Equal(t, "Bearer", res.Token.TokenType)
	require.Equal(t, fixed.Add(900*time.Second), res.Token.Expiry)
	require.Equal(t, "u1", res.User.ID)
	require.Equal(t, "a@b.c", res.User.Email)
}

func TestHTTPRefresher_TokenFromHeaderWithJWTExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": exp.Unix(),
	}).SignedString([]byte("irrelevant"))
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Authorization", "Bearer "+signed)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res, err := newRefresher(t, srv).Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, signed, res.Token.AccessToken)
	require.True(t, exp.Equal(res.Token.Expiry))
	require.Nil(t, res.User)
}

func TestHTTPRefresher_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"accessToken":`))
			},
		},
		{
			name: "user without token",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"user":{"id":"u1"}}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits int
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits++
				tt.handler(w, r)
			}))
			defer srv.Close()

			_, err := newRefresher(t, srv).Refresh(context.Background())
			require.Error(t, err)
			require.True(t, apperrors.Is(err, apperrors.ErrRefreshFailed))
			require.Equal(t, 1, hits, "refresh must not retry")
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()

		_, err := newRefresher(t, srv).Refresh(context.Background())
		require.True(t, apperrors.Is(err, apperrors.ErrRefreshFailed))
	})
}

func TestNewHTTPRefresher_URL(t *testing.T) {
	r, err := bootstrap.NewHTTPRefresher("https://api.example.com/", "auth/refresh", time.Second)
	require.NoError(t, err)
	require.Equal(t, "https://api.example.com/auth/refresh", r.URL())
	require.NotNil(t, r.Jar())
}

func TestHTTPRefresher_SeedCookies(t *testing.T) {
	var gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("refresh_token"); err == nil {
			gotCookie = c.Value
		}
		_, _ = w.Write([]byte(`{"accessToken":"tok-2"}`))
	}))
	defer srv.Close()

	r := newRefresher(t, srv)
	cookies, err := http.ParseCookie("refresh_token=rt-seeded")
	require.NoError(t, err)
	require.NoError(t, r.SeedCookies(cookies))

	res, err := r.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, "rt-seeded", gotCookie)
	require.Equal(t, "tok-2", res.Token.AccessToken)
}

func TestWithHTTPClient_LeavesCallerClientUntouched(t *testing.T) {
	client := &http.Client{Timeout: 3 * time.Second}
	r, err := bootstrap.NewHTTPRefresher("https://api.example.com", "/auth/refresh", time.Second,
		bootstrap.WithHTTPClient(client))
	require.NoError(t, err)

	require.Nil(t, client.Jar)
	require.NotNil(t, r.Jar())
}
