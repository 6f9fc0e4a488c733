// Package session implements the streaming session endpoint.
//
// Clients connect over WebSocket at /v1alpha/session and stream rule
// source submissions. Every submission is routed through the compiler
// front end before acceptance: the reply carries the parsed package path
// or the positioned failure. Accepted submissions are recorded in the
// registry under a session-scoped key, so the rest of the system sees
// them the same way it sees watched files.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lavignes/roolz/internal/compiler"
	"github.com/lavignes/roolz/internal/registry"
)

// Path is the WebSocket endpoint path for rule sessions.
const Path = "/v1alpha/session"

// Server accepts rule-submission sessions.
type Server struct {
	reg      *registry.Registry
	sessions *Store
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a session server recording accepted submissions in
// reg. A nil logger defaults to slog.Default().
func NewServer(reg *registry.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		reg:      reg,
		sessions: NewStore(),
		log:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// Sessions returns the active session store.
func (s *Server) Sessions() *Store {
	return s.sessions
}

// Handler returns the HTTP handler serving the session endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.handleSession)
	return mux
}

// ListenAndServe serves the session endpoint on addr until ctx is
// cancelled, then shuts the listener down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		// Hijacked WebSocket connections are invisible to Shutdown;
		// close them so handler goroutines do not linger.
		s.sessions.CloseAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("session upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	sess := s.sessions.Create()
	sess.Attach(conn)
	defer s.sessions.Destroy(sess.Token)

	s.log.Info("session opened", "session", sess.Token, "remote", r.RemoteAddr)
	defer s.log.Info("session closed", "session", sess.Token)

	if err := conn.WriteJSON(Hello{Type: TypeHello, Session: sess.Token}); err != nil {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("session read failed", "session", sess.Token, "error", err)
			}
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			if err := conn.WriteJSON(ProtocolError{Type: TypeError, Message: "malformed frame: " + err.Error()}); err != nil {
				return
			}
			continue
		}

		switch req.Type {
		case TypeSubmit:
			result := s.submit(r.Context(), sess, req)
			if err := conn.WriteJSON(result); err != nil {
				return
			}
		default:
			if err := conn.WriteJSON(ProtocolError{Type: TypeError, Message: "unknown request type " + strconv.Quote(req.Type)}); err != nil {
				return
			}
		}
	}
}

// submit parses one submission and records the outcome.
func (s *Server) submit(ctx context.Context, sess *Session, req Request) Result {
	name := sess.NextName(req.Name)

	pkg, parseErr := compiler.Parse(strings.NewReader(req.Source))

	result := Result{Type: TypeResult, Name: name}
	var pkgPath string
	if parseErr != nil {
		result.Error = errorDetail(parseErr)
	} else {
		result.OK = true
		result.Package = pkg.Path
		pkgPath = pkg.Path
	}

	if _, err := s.reg.Record(ctx, sess.Key(name), pkgPath, parseErr); err != nil {
		s.log.Error("failed to record submission", "session", sess.Token, "name", name, "error", err)
	}

	return result
}
