package protocol_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/effective-security/infohub/mcp/internal/protocol"
	"github.com/effective-security/infohub/mcp/internal/testingutils"
	"github.com/effective-security/infohub/mcp/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopTransport answers every outgoing request with a canned response, as a
// remote peer would.
type loopTransport struct {
	mu             sync.Mutex
	result         json.RawMessage
	silent         bool
	messageHandler func(ctx context.Context, message *transport.BaseJsonRpcMessage)
}

func (t *loopTransport) Start(ctx context.Context) error { return nil }
func (t *loopTransport) Close() error                    { return nil }
func (t *loopTransport) SetCloseHandler(func())          {}
func (t *loopTransport) SetErrorHandler(func(error))     {}

func (t *loopTransport) SetMessageHandler(handler func(ctx context.Context, message *transport.BaseJsonRpcMessage)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messageHandler = handler
}

func (t *loopTransport) Send(ctx context.Context, message *transport.BaseJsonRpcMessage) error {
	if t.silent || message.Type != transport.BaseMessageTypeJSONRPCRequestType {
		return nil
	}

	t.mu.Lock()
	handler := t.messageHandler
	t.mu.Unlock()

	handler(ctx, transport.NewBaseMessageResponse(&transport.BaseJSONRPCResponse{
		Jsonrpc: "2.0",
		Id:      message.JsonRpcRequest.Id,
		Result:  t.result,
	}))
	return nil
}

func TestRequestResponseRoundTrip(t *testing.T) {
	tr := &loopTransport{result: []byte(`{"answer":42}`)}
	p := protocol.New()
	require.NoError(t, p.Connect(tr))

	raw, err := p.Request(context.Background(), "test/method", map[string]any{"q": "x"}, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"answer":42}`, string(raw))
}

func TestRequestTimeout(t *testing.T) {
	tr := &loopTransport{silent: true}
	p := protocol.New()
	require.NoError(t, p.Connect(tr))

	_, err := p.Request(context.Background(), "test/method", nil, &protocol.RequestOptions{
		Timeout: 20 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request timeout")
}

func TestRequestContextCancelled(t *testing.T) {
	tr := &loopTransport{silent: true}
	p := protocol.New()
	require.NoError(t, p.Connect(tr))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Request(ctx, "test/method", nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRequestNotConnected(t *testing.T) {
	p := protocol.New()
	_, err := p.Request(context.Background(), "test/method", nil, nil)
	assert.EqualError(t, err, "not connected")
}

func TestInboundRequestDispatch(t *testing.T) {
	mt := testingutils.NewMockTransport()
	p := protocol.New()

	p.SetRequestHandler("echo", func(ctx context.Context, request *transport.BaseJSONRPCRequest) (transport.JsonRpcBody, error) {
		var params map[string]any
		require.NoError(t, json.Unmarshal(request.Params, &params))
		return params, nil
	})
	require.NoError(t, p.Connect(mt))

	mt.Receive(context.Background(), transport.NewBaseMessageRequest(&transport.BaseJSONRPCRequest{
		Jsonrpc: "2.0",
		Method:  "echo",
		Id:      transport.RequestId(5),
		Params:  []byte(`{"hello":"world"}`),
	}))

	msg, err := mt.WaitMessage(time.Second)
	require.NoError(t, err)
	require.Equal(t, transport.BaseMessageTypeJSONRPCResponseType, msg.Type)
	assert.Equal(t, transport.RequestId(5), msg.JsonRpcResponse.Id)
	assert.JSONEq(t, `{"hello":"world"}`, string(msg.JsonRpcResponse.Result))
}

func TestInboundUnknownMethod(t *testing.T) {
	mt := testingutils.NewMockTransport()
	p := protocol.New()
	require.NoError(t, p.Connect(mt))

	mt.Receive(context.Background(), transport.NewBaseMessageRequest(&transport.BaseJSONRPCRequest{
		Jsonrpc: "2.0",
		Method:  "no/such/method",
		Id:      transport.RequestId(8),
	}))

	msg, err := mt.WaitMessage(time.Second)
	require.NoError(t, err)
	require.Equal(t, transport.BaseMessageTypeJSONRPCErrorType, msg.Type)
	assert.Equal(t, transport.RequestId(8), msg.JsonRpcError.Id)
	assert.Equal(t, -32000, msg.JsonRpcError.Error.Code)
	assert.Contains(t, msg.JsonRpcError.Error.Message, "method not found")
}

func TestNotificationDispatch(t *testing.T) {
	mt := testingutils.NewMockTransport()
	p := protocol.New()

	received := make(chan string, 1)
	p.SetNotificationHandler("notifications/test", func(notification *transport.BaseJSONRPCNotification) error {
		received <- notification.Method
		return nil
	})
	require.NoError(t, p.Connect(mt))

	mt.Receive(context.Background(), transport.NewBaseMessageNotification(&transport.BaseJSONRPCNotification{
		Jsonrpc: "2.0",
		Method:  "notifications/test",
	}))

	select {
	case method := <-received:
		assert.Equal(t, "notifications/test", method)
	case <-time.After(time.Second):
		t.Fatal("notification handler was not invoked")
	}
}

func TestNotification(t *testing.T) {
	mt := testingutils.NewMockTransport()
	p := protocol.New()
	require.NoError(t, p.Connect(mt))

	require.NoError(t, p.Notification("notifications/test", map[string]any{"k": "v"}))

	msg, err := mt.WaitMessage(time.Second)
	require.NoError(t, err)
	require.Equal(t, transport.BaseMessageTypeJSONRPCNotificationType, msg.Type)
	assert.Equal(t, "notifications/test", msg.JsonRpcNotification.Method)
	assert.JSONEq(t, `{"k":"v"}`, string(msg.JsonRpcNotification.Params))
}
