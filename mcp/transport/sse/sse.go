// Package sse implements the server-sent-events transport: a long-lived GET
// carries server-to-client frames while clients post JSON-RPC messages to a
// session-scoped endpoint.
package sse

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/infohub/mcp/transport"
	"github.com/google/uuid"
)

const maxMessageSize = 4 * 1024 * 1024 // 4MB

// ServerTransport streams messages to one connected client. Inbound messages
// arrive via HandlePostMessage, dispatched by the session router.
type ServerTransport struct {
	endpoint  string
	sessionID string
	writer    http.ResponseWriter
	flusher   http.Flusher
	done      chan struct{}

	mu             sync.Mutex
	started        bool
	closed         bool
	messageHandler func(ctx context.Context, message *transport.BaseJsonRpcMessage)
	errorHandler   func(error)
	closeHandler   func()
}

// NewServerTransport creates an SSE transport writing to the given response
// writer. The endpoint is the path clients post session messages to.
func NewServerTransport(endpoint string, w http.ResponseWriter) (*ServerTransport, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming not supported")
	}

	return &ServerTransport{
		endpoint:  endpoint,
		sessionID: uuid.NewString(),
		writer:    w,
		flusher:   flusher,
		done:      make(chan struct{}),
	}, nil
}

// SessionID returns the identifier clients use to address this stream.
func (t *ServerTransport) SessionID() string {
	return t.sessionID
}

// Start writes the SSE preamble and announces the session endpoint to the
// client.
func (t *ServerTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return errors.New("already started")
	}
	t.started = true

	h := t.writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")

	fmt.Fprintf(t.writer, "event: endpoint\ndata: %s?session=%s\n\n", t.endpoint, t.sessionID)
	t.flusher.Flush()

	// releases when the transport is closed, not only when ctx ends
	go func() {
		select {
		case <-ctx.Done():
			_ = t.Close()
		case <-t.done:
		}
	}()

	return nil
}

// Send writes one message frame to the stream.
func (t *ServerTransport) Send(ctx context.Context, message *transport.BaseJsonRpcMessage) error {
	jsonData, err := message.MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "failed to marshal message")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started || t.closed {
		return errors.New("not connected")
	}

	fmt.Fprintf(t.writer, "event: message\ndata: %s\n\n", jsonData)
	t.flusher.Flush()
	return nil
}

// HandlePostMessage consumes one client-to-server message posted to the
// session endpoint.
func (t *ServerTransport) HandlePostMessage(r *http.Request) error {
	if r.Method != http.MethodPost {
		return errors.Errorf("method not allowed: %s", r.Method)
	}

	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || ct != "application/json" {
		return errors.Errorf("unsupported Content type: %s", r.Header.Get("Content-Type"))
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageSize))
	if err != nil {
		err = errors.Wrap(err, "failed to read request body")
		t.reportError(err)
		return err
	}

	message, err := transport.ParseJsonRpcMessage(body)
	if err != nil {
		t.reportError(err)
		return err
	}

	t.mu.Lock()
	handler := t.messageHandler
	t.mu.Unlock()

	if handler != nil {
		handler(r.Context(), message)
	}
	return nil
}

// Close is idempotent; the close handler fires once.
func (t *ServerTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.done)
	handler := t.closeHandler
	t.mu.Unlock()

	if handler != nil {
		handler()
	}
	return nil
}

func (t *ServerTransport) SetCloseHandler(handler func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeHandler = handler
}

func (t *ServerTransport) SetErrorHandler(handler func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errorHandler = handler
}

func (t *ServerTransport) SetMessageHandler(handler func(ctx context.Context, message *transport.BaseJsonRpcMessage)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messageHandler = handler
}

func (t *ServerTransport) reportError(err error) {
	t.mu.Lock()
	handler := t.errorHandler
	t.mu.Unlock()

	if handler != nil {
		handler(err)
	}
}
