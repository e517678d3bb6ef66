package session

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/gemeos/tenant-auth/pkg/auth"
)

// Entry holds the most recent fetch result and when it was stamped.
// A nil session is a valid cached result (nobody logged in).
type Entry struct {
	clock clockwork.Clock
	ttl   time.Duration

	mu        sync.RWMutex
	session   *auth.Session
	stampedAt time.Time
	stamped   bool
}

// NewEntry creates an empty entry that expires ttl after each Set
func NewEntry(clock clockwork.Clock, ttl time.Duration) *Entry {
	return &Entry{clock: clock, ttl: ttl}
}

// Get returns the cached session and whether it is still fresh
func (e *Entry) Get() (*auth.Session, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.session, e.freshLocked()
}

// Set stores s and stamps it with the current time
func (e *Entry) Set(s *auth.Session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session = s
	e.stampedAt = e.clock.Now()
	e.stamped = true
}

// Clear drops the session and its timestamp
func (e *Entry) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session = nil
	e.stampedAt = time.Time{}
	e.stamped = false
}

// IsStale reports whether the entry is empty or older than the TTL
func (e *Entry) IsStale() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.freshLocked()
}

func (e *Entry) freshLocked() bool {
	return e.stamped && e.clock.Since(e.stampedAt) < e.ttl
}

// LastGood retains the most recent successfully built session. It outlives
// the Entry TTL and is only dropped by Clear.
type LastGood struct {
	mu      sync.RWMutex
	session *auth.Session
}

// Get returns the retained session, or nil
func (l *LastGood) Get() *auth.Session {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.session
}

// Set retains s
func (l *LastGood) Set(s *auth.Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.session = s
}

// Clear drops the retained session
func (l *LastGood) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.session = nil
}
