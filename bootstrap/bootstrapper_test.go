package bootstrap_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-module-shell/bootstrap"
	"github.com/jrsteele09/go-module-shell/events"
	"github.com/jrsteele09/go-module-shell/session"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type refresherFunc func(ctx context.Context) (bootstrap.Result, error)

func (f refresherFunc) Refresh(ctx context.Context) (bootstrap.Result, error) {
	return f(ctx)
}

func okRefresher(calls *atomic.Int32, user *session.User) bootstrap.Refresher {
	return refresherFunc(func(ctx context.Context) (bootstrap.Result, error) {
		calls.Add(1)
		return bootstrap.Result{Token: &oauth2.Token{AccessToken: "fresh"}, User: user}, nil
	})
}

func TestBootstrapper_Restores(t *testing.T) {
	store := session.NewStore()
	bus := events.NewLocalBus()
	var calls atomic.Int32

	var published []events.AuthEventPayload
	events.SubscribeAuth(bus, events.TokenRefreshed, func(_ context.Context, p events.AuthEventPayload) {
		published = append(published, p)
	})

	b := bootstrap.New(store, bus, okRefresher(&calls, &session.User{ID: "u1", Name: "Ahmad"}))
	require.Equal(t, bootstrap.OutcomeRestored, b.Run(context.Background()))

	require.True(t, store.IsAuthenticated())
	require.False(t, store.IsHydrating())
	require.Equal(t, "fresh", store.AccessToken())
	require.Equal(t, "Ahmad", store.User().Name)
	require.Len(t, published, 1)
	require.Equal(t, "u1", published[0].UserID)
	require.Equal(t, "fresh", published[0].AccessToken)

	require.Equal(t, bootstrap.OutcomeAlreadyRan, b.Run(context.Background()))
	require.EqualValues(t, 1, calls.Load())

	outcome, done := b.Outcome()
	require.True(t, done)
	require.Equal(t, bootstrap.OutcomeRestored, outcome)
}

func TestBootstrapper_KeepsKnownUserWhenNoneReturned(t *testing.T) {
	store := session.NewStore()
	store.SetAuth("", &session.User{ID: "u9", Email: "known@example.com"}, "")
	var calls atomic.Int32

	b := bootstrap.New(store, nil, okRefresher(&calls, nil))
	require.Equal(t, bootstrap.OutcomeRestored, b.Run(context.Background()))
	require.Equal(t, "known@example.com", store.User().Email)
	require.Equal(t, "u9", store.User().ID)
}

func TestBootstrapper_AlreadyAuthenticated(t *testing.T) {
	store := session.NewStore()
	store.SetAuth("existing", &session.User{ID: "u1"}, "")
	var calls atomic.Int32

	b := bootstrap.New(store, nil, okRefresher(&calls, nil))
	require.Equal(t, bootstrap.OutcomeSkipped, b.Run(context.Background()))
	require.Zero(t, calls.Load())
	require.Equal(t, "existing", store.AccessToken())
	require.False(t, store.IsHydrating())
}

func TestBootstrapper_FailureClears(t *testing.T) {
	store := session.NewStore()
	var calls atomic.Int32
	refresher := refresherFunc(func(ctx context.Context) (bootstrap.Result, error) {
		calls.Add(1)
		return bootstrap.Result{}, errors.New("401")
	})

	var hydrationChanges int
	store.Watch(func(s session.Snapshot) {
		if !s.IsHydrating {
			hydrationChanges++
		}
	})

	b := bootstrap.New(store, events.NewLocalBus(), refresher)
	require.Equal(t, bootstrap.OutcomeCleared, b.Run(context.Background()))
	require.False(t, store.IsAuthenticated())
	require.Nil(t, store.User())
	require.False(t, store.IsHydrating())
	require.EqualValues(t, 1, calls.Load())
	require.GreaterOrEqual(t, hydrationChanges, 1)

	require.Equal(t, bootstrap.OutcomeAlreadyRan, b.Run(context.Background()))
	require.EqualValues(t, 1, calls.Load())
}

func TestBootstrapper_NilOrPanickingRefresher(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		store := session.NewStore()
		require.Equal(t, bootstrap.OutcomeCleared, bootstrap.New(store, nil, nil).Run(context.Background()))
		require.False(t, store.IsHydrating())
	})

	t.Run("panic", func(t *testing.T) {
		store := session.NewStore()
		b := bootstrap.New(store, nil, refresherFunc(func(context.Context) (bootstrap.Result, error) {
			panic("boom")
		}))
		require.NotPanics(t, func() {
			require.Equal(t, bootstrap.OutcomeCleared, b.Run(context.Background()))
		})
	})

	t.Run("empty token", func(t *testing.T) {
		store := session.NewStore()
		b := bootstrap.New(store, nil, refresherFunc(func(context.Context) (bootstrap.Result, error) {
			return bootstrap.Result{Token: &oauth2.Token{}}, nil
		}))
		require.Equal(t, bootstrap.OutcomeCleared, b.Run(context.Background()))
		require.False(t, store.IsAuthenticated())
	})
}

func TestBootstrapper_StopBeforeCompletion(t *testing.T) {
	store := session.NewStore()
	bus := events.NewLocalBus()
	release := make(chan struct{})
	started := make(chan struct{})

	refresher := refresherFunc(func(ctx context.Context) (bootstrap.Result, error) {
		close(started)
		<-release
		return bootstrap.Result{Token: &oauth2.Token{AccessToken: "late"}}, nil
	})

	var published atomic.Int32
	events.SubscribeAuth(bus, events.TokenRefreshed, func(context.Context, events.AuthEventPayload) {
		published.Add(1)
	})

	b := bootstrap.New(store, bus, refresher)
	stop := b.Start(context.Background())
	<-started
	stop()
	stop()
	close(release)

	select {
	case <-b.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("bootstrapper did not finish")
	}

	outcome, _ := b.Outcome()
	require.Equal(t, bootstrap.OutcomeCancelled, outcome)
	require.False(t, store.IsAuthenticated())
	require.True(t, store.IsHydrating(), "cancelled run must not mutate the store")
	require.Zero(t, published.Load())
}
