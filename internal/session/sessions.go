package session

import (
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
)

// Session is one connected client.
type Session struct {
	// Token uniquely identifies the session. UUIDv7, so tokens sort by
	// creation time when listed.
	Token string

	mu          sync.Mutex
	submissions int
	conn        io.Closer
}

// Attach records the session's transport connection so a server shutdown
// can close it and unblock the read loop.
func (s *Session) Attach(conn io.Closer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = conn
}

func (s *Session) closeConn() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// NextName returns name unchanged when non-empty, otherwise a
// per-session generated label for an unnamed submission.
func (s *Session) NextName(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions++
	if name != "" {
		return name
	}
	return fmt.Sprintf("submission-%d", s.submissions)
}

// Key returns the registry key for a submission in this session.
func (s *Session) Key(name string) string {
	return fmt.Sprintf("session://%s/%s", s.Token, name)
}

// Store tracks active sessions.
// Thread-safe: sessions come and go on connection goroutines.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create registers a new session with a fresh token.
func (s *Store) Create() *Session {
	sess := &Session{Token: uuid.Must(uuid.NewV7()).String()}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.Token] = sess
	return sess
}

// Get returns the session for a token, if it is still active.
func (s *Store) Get(token string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	return sess, ok
}

// Destroy removes a session. Destroying an unknown token is a no-op.
func (s *Store) Destroy(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// CloseAll closes the transport of every active session.
// http.Server.Shutdown never touches hijacked connections, so server
// shutdown calls this to unblock the handler read loops.
func (s *Store) CloseAll() {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.closeConn()
	}
}

// Len returns the number of active sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
