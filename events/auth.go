package events

import (
	"context"
	"time"

	apperrors "github.com/jrsteele09/go-module-shell/internal/errors"
	"github.com/jrsteele09/go-module-shell/session"
)

// Authentication channels.
const (
	UserLoggedIn   Name = "AUTH.USER_LOGGED_IN"
	UserLoggedOut  Name = "AUTH.USER_LOGGED_OUT"
	TokenRefreshed Name = "AUTH.TOKEN_REFRESHED"
)

// AuthEventPayload is carried by every authentication event.
type AuthEventPayload struct {
	UserID      string        `json:"userId"`
	AccessToken string        `json:"accessToken"`
	ExpiresAt   time.Time     `json:"expiresAt"`
	User        *session.User `json:"user,omitempty"`
}

// IsAuthEvent reports whether name is one of the authentication channels.
func IsAuthEvent(name Name) bool {
	switch name {
	case UserLoggedIn, UserLoggedOut, TokenRefreshed:
		return true
	}
	return false
}

// ParseAuthName validates a channel name coming from outside the process.
func ParseAuthName(raw string) (Name, error) {
	name := Name(raw)
	if !IsAuthEvent(name) {
		return "", apperrors.Wrapf(apperrors.ErrUnknownEvent, "%q", raw)
	}
	return name, nil
}

// PublishAuth publishes an authentication event.
func PublishAuth(ctx context.Context, bus Bus, name Name, payload AuthEventPayload) int {
	return bus.Publish(ctx, name, payload)
}

// SubscribeAuth subscribes to an authentication channel. Events whose
// payload is not an AuthEventPayload are ignored.
func SubscribeAuth(bus Bus, name Name, handler func(ctx context.Context, p AuthEventPayload)) Unsubscribe {
	return bus.Subscribe(name, func(ctx context.Context, e Event) {
		switch p := e.Payload.(type) {
		case AuthEventPayload:
			handler(ctx, p)
		case *AuthEventPayload:
			if p != nil {
				handler(ctx, *p)
			}
		}
	})
}
