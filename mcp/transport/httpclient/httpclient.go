// Package httpclient implements the client side of the HTTP transport: every
// Send posts one JSON-RPC message and feeds the body of the reply, if any,
// back into the message handler.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/infohub/mcp/transport"
)

// Transport is a stateless client transport over net/http.
type Transport struct {
	baseURL    string
	httpClient *http.Client
	headers    map[string]string

	mu             sync.RWMutex
	messageHandler func(ctx context.Context, message *transport.BaseJsonRpcMessage)
	errorHandler   func(error)
	closeHandler   func()
}

// New creates a client transport posting to the given URL.
func New(baseURL string) *Transport {
	return &Transport{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		headers:    make(map[string]string),
	}
}

// WithHTTPClient overrides the HTTP client used for requests.
func (t *Transport) WithHTTPClient(client *http.Client) *Transport {
	t.httpClient = client
	return t
}

// WithHeader adds a header to every request.
func (t *Transport) WithHeader(key, value string) *Transport {
	t.headers[key] = value
	return t
}

func (t *Transport) Start(ctx context.Context) error {
	// stateless; nothing to set up
	return nil
}

// Send posts the message and dispatches the correlated reply to the message
// handler.
func (t *Transport) Send(ctx context.Context, message *transport.BaseJsonRpcMessage) error {
	jsonData, err := json.Marshal(message)
	if err != nil {
		return errors.Wrap(err, "failed to marshal message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL, bytes.NewReader(jsonData))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		return errors.Errorf("server returned error: %s: %s", resp.Status, string(body))
	}
	if len(body) == 0 {
		// notifications are accepted without a body
		return nil
	}

	reply, err := transport.ParseJsonRpcMessage(body)
	if err != nil {
		return errors.WithMessage(err, "received invalid response")
	}

	t.mu.RLock()
	handler := t.messageHandler
	t.mu.RUnlock()

	if handler != nil {
		handler(ctx, reply)
	}
	return nil
}

func (t *Transport) Close() error {
	if t.closeHandler != nil {
		t.closeHandler()
	}
	return nil
}

func (t *Transport) SetCloseHandler(handler func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeHandler = handler
}

func (t *Transport) SetErrorHandler(handler func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errorHandler = handler
}

func (t *Transport) SetMessageHandler(handler func(ctx context.Context, message *transport.BaseJsonRpcMessage)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messageHandler = handler
}
