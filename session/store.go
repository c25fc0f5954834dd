// Package session holds the process-wide authentication state.
//
// The access token lives only in memory: it is excluded from JSON and
// never written to disk, cookies, or logs.
package session

import (
	"sync"

	"github.com/google/uuid"
)

// Snapshot is a point-in-time copy of the session.
type Snapshot struct {
	AccessToken     string `json:"-"`
	User            *User  `json:"user"`
	IsAuthenticated bool   `json:"isAuthenticated"`
	IsHydrating     bool   `json:"isHydrating"`
}

// Store is mutated only through SetAuth, ClearAuth and, once, by the
// session bootstrapper through MarkHydrated.
//
// Watchers run in mutation order. A watcher must not mutate the store.
type Store struct {
	// notifyMu spans a mutation and the notification of its snapshot.
	notifyMu        sync.Mutex
	mu              sync.RWMutex
	accessToken     string
	user            *User
	isAuthenticated bool
	isHydrating     bool
	hydrated        sync.Once
	watchers        map[string]func(Snapshot)
	watchOrder      []string
}

// NewStore returns a store in its startup state: hydrating, no user.
func NewStore() *Store {
	return &Store{
		isHydrating: true,
		watchers:    make(map[string]func(Snapshot)),
	}
}

var (
	defaultStore     *Store
	defaultStoreOnce sync.Once
)

// Default returns the process-wide store.
func Default() *Store {
	defaultStoreOnce.Do(func() {
		defaultStore = NewStore()
	})
	return defaultStore
}

// SetAuth records an authenticated session. The incoming user is merged
// with the known one using MergeUser; payloadUserID is the event-level id
// used when the user carries none. An empty token keeps the current one.
func (s *Store) SetAuth(token string, incoming *User, payloadUserID string) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if token != "" {
		s.accessToken = token
	}
	merged := MergeUser(s.user, incoming, payloadUserID)
	s.user = &merged
	s.isAuthenticated = s.accessToken != ""
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// ClearAuth drops the token and user.
func (s *Store) ClearAuth() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.accessToken = ""
	s.user = nil
	s.isAuthenticated = false
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// MarkHydrated ends the hydration phase. Only the first call has an
// effect.
func (s *Store) MarkHydrated() {
	s.hydrated.Do(func() {
		s.notifyMu.Lock()
		defer s.notifyMu.Unlock()

		s.mu.Lock()
		s.isHydrating = false
		snap := s.snapshotLocked()
		s.mu.Unlock()

		s.notify(snap)
	})
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isAuthenticated
}

func (s *Store) IsHydrating() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isHydrating
}

// User returns a copy of the current user, or nil.
func (s *Store) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyUser(s.user)
}

func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Watch calls fn after every mutation with the resulting snapshot. The
// returned cancel func is idempotent.
func (s *Store) Watch(fn func(Snapshot)) (cancel func()) {
	id := uuid.New().String()

	s.mu.Lock()
	s.watchers[id] = fn
	s.watchOrder = append(s.watchOrder, id)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.watchers, id)
			for i, w := range s.watchOrder {
				if w == id {
					s.watchOrder = append(s.watchOrder[:i:i], s.watchOrder[i+1:]...)
					break
				}
			}
		})
	}
}

func (s *Store) notify(snap Snapshot) {
	s.mu.RLock()
	fns := make([]func(Snapshot), 0, len(s.watchOrder))
	for _, id := range s.watchOrder {
		fns = append(fns, s.watchers[id])
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		AccessToken:     s.accessToken,
		User:            copyUser(s.user),
		IsAuthenticated: s.isAuthenticated,
		IsHydrating:     s.isHydrating,
	}
}

func copyUser(u *User) *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
