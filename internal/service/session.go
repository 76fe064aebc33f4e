package service

import (
	"context"
	"sort"
	"sync"

	"ragreader/internal/domain"
	"ragreader/internal/logger"
)

// DefaultSession is used when a caller does not name a session.
const DefaultSession = "default"

// servedIndex is a Ready index plus the readers currently using it.
type servedIndex struct {
	index  domain.Index
	status BuildStatus
	inUse  sync.WaitGroup
}

func (s *servedIndex) release() { s.inUse.Done() }

// retire closes the index once every reader has released it. wg tracks the
// pending close.
func (s *servedIndex) retire(wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.inUse.Wait()
		if err := s.index.Close(); err != nil {
			logger.Warn("closing retired index: %v", err)
		}
	}()
}

// Session holds the served index and build state of one session. At most
// one build runs per session.
type Session struct {
	name     string
	retiring *sync.WaitGroup

	mu       sync.RWMutex
	current  *servedIndex
	building bool
	last     *BuildStatus
}

// acquire returns the served index with a reader registered, or nil.
func (s *Session) acquire() *servedIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	s.current.inUse.Add(1)
	return s.current
}

// begin claims the session for a build.
func (s *Session) begin(st BuildStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.building {
		return false
	}
	s.building = true
	s.last = &st
	return true
}

// finish records the outcome of a build. A successful build replaces the
// served index; a failed one leaves it in place.
func (s *Session) finish(st BuildStatus, idx domain.Index) {
	s.mu.Lock()
	var old *servedIndex
	if st.State == StateReady {
		old = s.current
		s.current = &servedIndex{index: idx, status: st}
	}
	s.building = false
	s.last = &st
	s.mu.Unlock()

	if old != nil {
		old.retire(s.retiring)
	}
}

func (s *Session) snapshot() SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := SessionStatus{Name: s.name, Building: s.building}
	if s.current != nil {
		cur := s.current.status
		out.Ready = true
		out.Current = &cur
	}
	if s.last != nil {
		last := *s.last
		out.Last = &last
	}
	return out
}

// notReadyError explains why a session has nothing to query.
func (s *Session) notReadyError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.current != nil:
		return nil
	case s.building:
		return domain.ErrIndexNotReady
	case s.last != nil && s.last.State == StateFailed:
		return &buildFailedError{cause: s.last.Err}
	default:
		return domain.ErrNoIndex
	}
}

type buildFailedError struct{ cause error }

func (e *buildFailedError) Error() string {
	if e.cause == nil {
		return domain.ErrBuildFailed.Error()
	}
	return domain.ErrBuildFailed.Error() + ": " + e.cause.Error()
}

func (e *buildFailedError) Is(target error) bool { return target == domain.ErrBuildFailed }

func (e *buildFailedError) Unwrap() error { return e.cause }

// SessionStore maps session names to sessions. Sessions are created on first
// build and live until cleared.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	retiring sync.WaitGroup
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

func (st *SessionStore) Get(name string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[name]
	return s, ok
}

// begin claims a session, creating it if needed, for a new build.
func (st *SessionStore) begin(name string, status BuildStatus) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[name]
	if !ok {
		s = &Session{name: name, retiring: &st.retiring}
		st.sessions[name] = s
	}
	return s, s.begin(status)
}

// Remove drops an idle session and retires its index. It fails with
// ErrBuildInProgress while the session is building.
func (st *SessionStore) Remove(name string) (bool, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[name]
	if !ok {
		return false, nil
	}
	s.mu.Lock()
	if s.building {
		s.mu.Unlock()
		return false, domain.ErrBuildInProgress
	}
	cur := s.current
	s.current = nil
	s.mu.Unlock()

	delete(st.sessions, name)
	if cur != nil {
		cur.retire(&st.retiring)
	}
	return true, nil
}

// WaitRetired blocks until every retired index is closed or ctx is done.
func (st *SessionStore) WaitRetired(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		st.retiring.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Names lists sessions in lexical order.
func (st *SessionStore) Names() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	names := make([]string, 0, len(st.sessions))
	for n := range st.sessions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
