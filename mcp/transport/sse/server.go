package sse

import (
	"net/http"
	"sync"

	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/infohub", "sse")

// ConnectHandler is invoked once per new SSE session, before the stream is
// announced to the client. It typically attaches a protocol server to the
// transport.
type ConnectHandler func(t *ServerTransport) error

// SessionRouter tracks live SSE sessions: GET on the stream path opens a
// session, POST on the message endpoint delivers messages addressed by
// session id.
type SessionRouter struct {
	messageEndpoint string
	onConnect       ConnectHandler

	mu       sync.RWMutex
	sessions map[string]*ServerTransport
}

// NewSessionRouter creates a router whose sessions announce the given message
// endpoint to clients.
func NewSessionRouter(messageEndpoint string, onConnect ConnectHandler) *SessionRouter {
	return &SessionRouter{
		messageEndpoint: messageEndpoint,
		onConnect:       onConnect,
		sessions:        make(map[string]*ServerTransport),
	}
}

// HandleSSE opens a session stream and blocks until the client disconnects.
func (s *SessionRouter) HandleSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	t, err := NewServerTransport(s.messageEndpoint, w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	s.sessions[t.SessionID()] = t
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.sessions, t.SessionID())
		s.mu.Unlock()
		_ = t.Close()
	}()

	logger.ContextKV(r.Context(), xlog.DEBUG, "session", t.SessionID(), "status", "connected")

	if err := s.onConnect(t); err != nil {
		logger.ContextKV(r.Context(), xlog.ERROR, "session", t.SessionID(), "err", err.Error())
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	<-r.Context().Done()
	logger.KV(xlog.DEBUG, "session", t.SessionID(), "status", "disconnected")
}

// HandleMessage delivers one posted message to the session named in the query
// string.
func (s *SessionRouter) HandleMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")

	s.mu.RLock()
	t := s.sessions[sessionID]
	s.mu.RUnlock()

	if t == nil {
		http.Error(w, "unknown session", http.StatusBadRequest)
		return
	}

	if err := t.HandlePostMessage(r); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
