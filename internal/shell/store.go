// ABOUTME: In-memory session store keyed by session id with idle expiry.
// ABOUTME: Expired sessions are closed so their view timers stop.

package shell

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"
)

type storeEntry struct {
	shell    *Shell
	lastSeen time.Time
}

// Store holds the live shells of a server
type Store struct {
	newShell func() *Shell
	ttl      time.Duration
	clock    clock.WithTicker
	logger   *logrus.Logger

	mutex   sync.Mutex
	entries map[string]*storeEntry

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewStore creates a store and starts its idle sweep
func NewStore(newShell func() *Shell, ttl time.Duration, clk clock.WithTicker, logger *logrus.Logger) *Store {
	if clk == nil {
		clk = clock.RealClock{}
	}
	s := &Store{
		newShell: newShell,
		ttl:      ttl,
		clock:    clk,
		logger:   logger,
		entries:  make(map[string]*storeEntry),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	go s.startCleanup(interval)

	return s
}

// Create starts a new session
func (s *Store) Create() *Shell {
	sh := s.newShell()

	s.mutex.Lock()
	s.entries[sh.Session().ID] = &storeEntry{shell: sh, lastSeen: s.clock.Now()}
	count := len(s.entries)
	s.mutex.Unlock()

	s.logger.WithFields(logrus.Fields{
		"session":  sh.Session().ID,
		"sessions": count,
	}).Debug("Session created")
	return sh
}

// Get returns a live session and refreshes its idle timer
func (s *Store) Get(id string) (*Shell, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	entry.lastSeen = s.clock.Now()
	return entry.shell, true
}

// GetOrCreate returns the session for id, creating a new one when id is unknown
func (s *Store) GetOrCreate(id string) (sh *Shell, created bool) {
	if sh, ok := s.Get(id); ok {
		return sh, false
	}
	return s.Create(), true
}

// Remove closes and forgets a session
func (s *Store) Remove(id string) {
	s.mutex.Lock()
	entry, ok := s.entries[id]
	delete(s.entries, id)
	s.mutex.Unlock()

	if ok {
		entry.shell.Close()
	}
}

// Sessions snapshots every live session
func (s *Store) Sessions() []Session {
	s.mutex.Lock()
	shells := make([]*Shell, 0, len(s.entries))
	for _, e := range s.entries {
		shells = append(shells, e.shell)
	}
	s.mutex.Unlock()

	out := make([]Session, 0, len(shells))
	for _, sh := range shells {
		out = append(out, sh.Session())
	}
	return out
}

// Len returns the number of live sessions
func (s *Store) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.entries)
}

// Sweep closes sessions idle for longer than the TTL and returns how many it removed
func (s *Store) Sweep() int {
	now := s.clock.Now()

	s.mutex.Lock()
	var expired []*Shell
	for id, e := range s.entries {
		if now.Sub(e.lastSeen) > s.ttl {
			expired = append(expired, e.shell)
			delete(s.entries, id)
		}
	}
	s.mutex.Unlock()

	for _, sh := range expired {
		sh.Close()
	}
	if len(expired) > 0 {
		s.logger.WithField("expired", len(expired)).Debug("Idle sessions closed")
	}
	return len(expired)
}

func (s *Store) startCleanup(interval time.Duration) {
	defer close(s.done)
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C():
			s.Sweep()
		case <-s.stop:
			return
		}
	}
}

// Close stops the sweep and closes every session
func (s *Store) Close() {
	s.once.Do(func() {
		close(s.stop)
		<-s.done

		s.mutex.Lock()
		entries := s.entries
		s.entries = make(map[string]*storeEntry)
		s.mutex.Unlock()

		for _, e := range entries {
			e.shell.Close()
		}
	})
}
