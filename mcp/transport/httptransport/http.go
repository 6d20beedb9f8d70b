// Package httptransport serves JSON-RPC over plain HTTP: each POST carries one
// message and the connection is held open until the correlated response is
// ready.
package httptransport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/infohub/mcp/transport"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/infohub", "httptransport")

const maxMessageSize = 4 * 1024 * 1024 // 4MB

// HTTPTransport is a stateless server transport: inbound request ids are
// remapped to internal keys so concurrent posts from different clients cannot
// collide, and each waiting POST is released by the response carrying its key.
type HTTPTransport struct {
	endpoint string
	addr     string
	server   *http.Server

	mu             sync.RWMutex
	messageHandler func(ctx context.Context, message *transport.BaseJsonRpcMessage)
	errorHandler   func(error)
	closeHandler   func()
	responseMap    map[int64]chan *transport.BaseJsonRpcMessage
	atomicCounter  int64
}

// New creates an HTTP transport serving the given endpoint path. Without
// WithAddr the transport does not listen by itself; mount it as an
// http.Handler instead.
func New(endpoint string) *HTTPTransport {
	return &HTTPTransport{
		endpoint:    endpoint,
		responseMap: make(map[int64]chan *transport.BaseJsonRpcMessage),
	}
}

// WithAddr sets the address Start listens on.
func (t *HTTPTransport) WithAddr(addr string) *HTTPTransport {
	t.addr = addr
	return t
}

// Start listens on the configured address. When no address is set the
// transport is expected to be mounted on an existing server and Start is a
// no-op.
func (t *HTTPTransport) Start(ctx context.Context) error {
	if t.addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(t.endpoint, t)

	t.server = &http.Server{
		Addr:    t.addr,
		Handler: mux,
	}
	return t.server.ListenAndServe()
}

// Send releases the POST waiting on the message's key. Notifications have no
// waiting POST and are dropped.
func (t *HTTPTransport) Send(ctx context.Context, message *transport.BaseJsonRpcMessage) error {
	if message.Type == transport.BaseMessageTypeJSONRPCNotificationType {
		logger.ContextKV(ctx, xlog.DEBUG, "reason", "notification dropped on request/response transport")
		return nil
	}

	key := int64(message.MessageID())

	t.mu.RLock()
	responseChannel := t.responseMap[key]
	t.mu.RUnlock()

	if responseChannel == nil {
		return errors.Errorf("no response channel found for key: %d", key)
	}
	responseChannel <- message
	return nil
}

func (t *HTTPTransport) Close() error {
	if t.server != nil {
		if err := t.server.Close(); err != nil {
			return err
		}
	}
	if t.closeHandler != nil {
		t.closeHandler()
	}
	return nil
}

func (t *HTTPTransport) SetCloseHandler(handler func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeHandler = handler
}

func (t *HTTPTransport) SetErrorHandler(handler func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errorHandler = handler
}

func (t *HTTPTransport) SetMessageHandler(handler func(ctx context.Context, message *transport.BaseJsonRpcMessage)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messageHandler = handler
}

// ServeHTTP handles one POST: it dispatches the message and blocks until the
// response for it has been produced.
func (t *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageSize))
	if err != nil {
		t.reportError(errors.Wrap(err, "failed to read request body"))
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	response, err := t.handleMessage(r.Context(), body)
	if err != nil {
		t.reportError(err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if response == nil {
		// notification: nothing to return
		w.WriteHeader(http.StatusAccepted)
		return
	}

	jsonData, err := json.Marshal(response)
	if err != nil {
		t.reportError(errors.Wrap(err, "failed to marshal response"))
		http.Error(w, "failed to marshal response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(jsonData)
}

func (t *HTTPTransport) handleMessage(ctx context.Context, body []byte) (*transport.BaseJsonRpcMessage, error) {
	message, err := transport.ParseJsonRpcMessage(body)
	if err != nil {
		return nil, err
	}

	t.mu.RLock()
	handler := t.messageHandler
	t.mu.RUnlock()

	if message.Type != transport.BaseMessageTypeJSONRPCRequestType {
		if handler != nil {
			handler(ctx, message)
		}
		return nil, nil
	}

	key := atomic.AddInt64(&t.atomicCounter, 1)
	ch := make(chan *transport.BaseJsonRpcMessage, 1)
	t.mu.Lock()
	t.responseMap[key] = ch
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.responseMap, key)
		t.mu.Unlock()
	}()

	originalID := message.JsonRpcRequest.Id
	message.JsonRpcRequest.Id = transport.RequestId(key)

	if handler != nil {
		handler(ctx, message)
	}

	select {
	case response := <-ch:
		// restore the caller's id before replying
		switch response.Type {
		case transport.BaseMessageTypeJSONRPCResponseType:
			response.JsonRpcResponse.Id = originalID
		case transport.BaseMessageTypeJSONRPCErrorType:
			response.JsonRpcError.Id = originalID
		}
		return response, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *HTTPTransport) reportError(err error) {
	t.mu.RLock()
	handler := t.errorHandler
	t.mu.RUnlock()

	if handler != nil {
		handler(err)
	}
}
