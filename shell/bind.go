package shell

import (
	"context"

	"github.com/jrsteele09/go-module-shell/events"
	"github.com/jrsteele09/go-module-shell/session"
)

// BindSession subscribes store to the authentication channels: logins
// and refreshes set the session, logouts clear it.
func BindSession(bus events.Bus, store *session.Store) (unbind func()) {
	setAuth := func(_ context.Context, p events.AuthEventPayload) {
		store.SetAuth(p.AccessToken, p.User, p.UserID)
	}

	subs := []events.Unsubscribe{
		events.SubscribeAuth(bus, events.UserLoggedIn, setAuth),
		events.SubscribeAuth(bus, events.TokenRefreshed, setAuth),
		events.SubscribeAuth(bus, events.UserLoggedOut, func(context.Context, events.AuthEventPayload) {
			store.ClearAuth()
		}),
	}
	return func() {
		for _, unsubscribe := range subs {
			unsubscribe()
		}
	}
}
