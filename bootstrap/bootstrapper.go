package bootstrap

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jrsteele09/go-module-shell/events"
	"github.com/jrsteele09/go-module-shell/session"
	"github.com/rs/zerolog/log"
)

type Outcome int

const (
	OutcomeRestored Outcome = iota
	OutcomeCleared
	OutcomeSkipped
	OutcomeCancelled
	OutcomeAlreadyRan
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRestored:
		return "restored"
	case OutcomeCleared:
		return "cleared"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "already-ran"
	}
}

// Bootstrapper runs the one-shot silent refresh. A failed refresh leaves
// the session unauthenticated; it is never retried.
type Bootstrapper struct {
	store     *session.Store
	bus       events.Bus
	refresher Refresher

	ran       atomic.Bool
	cancelled atomic.Bool
	done      chan struct{}
	doneOnce  sync.Once
	outcome   atomic.Int32
}

// New creates a bootstrapper. bus may be nil.
func New(store *session.Store, bus events.Bus, refresher Refresher) *Bootstrapper {
	return &Bootstrapper{
		store:     store,
		bus:       bus,
		refresher: refresher,
		done:      make(chan struct{}),
	}
}

// Run performs the refresh. Only the first call does anything.
func (b *Bootstrapper) Run(ctx context.Context) Outcome {
	if !b.ran.CompareAndSwap(false, true) {
		return OutcomeAlreadyRan
	}
	outcome := b.run(ctx)
	b.outcome.Store(int32(outcome))
	b.doneOnce.Do(func() { close(b.done) })
	return outcome
}

func (b *Bootstrapper) run(ctx context.Context) Outcome {
	if b.store.IsAuthenticated() {
		b.store.MarkHydrated()
		return OutcomeSkipped
	}

	result, err := b.refresh(ctx)

	if b.isCancelled(ctx) {
		log.Debug().Msg("session bootstrap cancelled, discarding refresh result")
		return OutcomeCancelled
	}

	if err != nil {
		log.Debug().Err(err).Msg("silent refresh failed, session stays unauthenticated")
		b.store.ClearAuth()
		b.store.MarkHydrated()
		return OutcomeCleared
	}

	user := result.User
	if user == nil {
		user = b.store.User()
	}
	b.store.SetAuth(result.Token.AccessToken, user, "")
	b.store.MarkHydrated()

	if b.bus != nil {
		merged := b.store.User()
		payload := events.AuthEventPayload{
			AccessToken: result.Token.AccessToken,
			ExpiresAt:   result.Token.Expiry,
			User:        merged,
		}
		if merged != nil {
			payload.UserID = merged.ID
		}
		events.PublishAuth(ctx, b.bus, events.TokenRefreshed, payload)
	}
	log.Info().Msg("session restored by silent refresh")
	return OutcomeRestored
}

func (b *Bootstrapper) refresh(ctx context.Context) (res Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Msg("refresher panicked")
			res, err = Result{}, errRefresherPanic
		}
	}()
	if b.refresher == nil {
		return Result{}, errNoRefresher
	}
	res, err = b.refresher.Refresh(ctx)
	if err == nil && (res.Token == nil || res.Token.AccessToken == "") {
		err = errNoToken
	}
	return res, err
}

func (b *Bootstrapper) isCancelled(ctx context.Context) bool {
	return b.cancelled.Load() || ctx.Err() != nil
}

// Cancel marks the owning scope as gone. A refresh still in flight
// completes without touching the store or the bus.
func (b *Bootstrapper) Cancel() {
	b.cancelled.Store(true)
}

// Start runs the bootstrapper in the background. stop cancels it and is
// safe to call more than once.
func (b *Bootstrapper) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	go b.Run(ctx)
	return func() {
		b.Cancel()
		cancel()
	}
}

// Done is closed once Run has finished.
func (b *Bootstrapper) Done() <-chan struct{} {
	return b.done
}

// Outcome reports the result of the finished run.
func (b *Bootstrapper) Outcome() (Outcome, bool) {
	select {
	case <-b.done:
		return Outcome(b.outcome.Load()), true
	default:
		return 0, false
	}
}
