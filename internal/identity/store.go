// Package identity holds the logged-in user state for the lifetime of the
// process. The store is the single owner of the authenticated identity:
// workflows read it, only login/logout write it.
package identity

import "sync"

type Identity struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	Admin     bool
	Token     string
}

type Store struct {
	mu       sync.Mutex
	identity Identity
	logged   bool
	subs     map[int64]chan bool
	nextSub  int64
}

func NewStore() *Store {
	return &Store{subs: make(map[int64]chan bool)}
}

// LogIn replaces the current identity wholesale and notifies observers.
func (s *Store) LogIn(identity Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = identity
	s.logged = true
	s.notifyLocked()
}

func (s *Store) LogOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = Identity{}
	s.logged = false
	s.notifyLocked()
}

func (s *Store) IsLogged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logged
}

func (s *Store) Current() (Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity, s.logged
}

// Observe returns a channel of logged-in state and a cancel function. The
// current value is delivered immediately, so a late subscriber never misses
// the state it joined in. Each channel carries latest-value semantics: an
// undrained stale value is replaced rather than queued.
func (s *Store) Observe() (<-chan bool, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subs == nil {
		s.subs = make(map[int64]chan bool)
	}
	id := s.nextSub
	s.nextSub++
	ch := make(chan bool, 1)
	s.subs[id] = ch
	push(ch, s.logged)

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (s *Store) notifyLocked() {
	for _, ch := range s.subs {
		push(ch, s.logged)
	}
}

func push(ch chan bool, value bool) {
	select {
	case <-ch:
	default:
	}
	ch <- value
}
