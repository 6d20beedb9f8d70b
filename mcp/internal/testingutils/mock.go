// Package testingutils provides an in-memory transport for protocol tests.
package testingutils

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/infohub/mcp/transport"
)

// MockTransport records outbound messages and lets tests inject inbound ones.
type MockTransport struct {
	mu             sync.Mutex
	started        bool
	messages       []*transport.BaseJsonRpcMessage
	outbound       chan *transport.BaseJsonRpcMessage
	messageHandler func(ctx context.Context, message *transport.BaseJsonRpcMessage)
	errorHandler   func(error)
	closeHandler   func()
}

func NewMockTransport() *MockTransport {
	return &MockTransport{
		outbound: make(chan *transport.BaseJsonRpcMessage, 16),
	}
}

func (t *MockTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return errors.New("already started")
	}
	t.started = true
	return nil
}

func (t *MockTransport) Send(ctx context.Context, message *transport.BaseJsonRpcMessage) error {
	t.mu.Lock()
	t.messages = append(t.messages, message)
	t.mu.Unlock()

	t.outbound <- message
	return nil
}

func (t *MockTransport) Close() error {
	if t.closeHandler != nil {
		t.closeHandler()
	}
	return nil
}

func (t *MockTransport) SetCloseHandler(handler func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeHandler = handler
}

func (t *MockTransport) SetErrorHandler(handler func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errorHandler = handler
}

func (t *MockTransport) SetMessageHandler(handler func(ctx context.Context, message *transport.BaseJsonRpcMessage)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messageHandler = handler
}

// Receive injects an inbound message, as if the peer had sent it.
func (t *MockTransport) Receive(ctx context.Context, message *transport.BaseJsonRpcMessage) {
	t.mu.Lock()
	handler := t.messageHandler
	t.mu.Unlock()

	if handler != nil {
		handler(ctx, message)
	}
}

// GetMessages returns all messages sent so far.
func (t *MockTransport) GetMessages() []*transport.BaseJsonRpcMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*transport.BaseJsonRpcMessage(nil), t.messages...)
}

// WaitMessage blocks until the next outbound message or the timeout.
func (t *MockTransport) WaitMessage(timeout time.Duration) (*transport.BaseJsonRpcMessage, error) {
	select {
	case msg := <-t.outbound:
		return msg, nil
	case <-time.After(timeout):
		return nil, errors.New("timed out waiting for message")
	}
}
