// Package transport defines the JSON-RPC 2.0 message framing shared by all
// gateway transports, and the Transport contract the protocol layer runs on.
package transport

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// RequestId is a JSON-RPC request identifier.
type RequestId int64

// JsonRpcBody is the result payload of a response.
type JsonRpcBody any

// BaseJSONRPCRequest is a request that expects a response.
type BaseJSONRPCRequest struct {
	Jsonrpc string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	Id      RequestId       `json:"id"`
}

// UnmarshalJSON requires both method and id, so that requests are
// distinguishable from notifications and responses.
func (r *BaseJSONRPCRequest) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if _, ok := probe["method"]; !ok {
		return errors.New("request must have a method")
	}
	if _, ok := probe["id"]; !ok {
		return errors.New("request must have an id")
	}

	type alias BaseJSONRPCRequest
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = BaseJSONRPCRequest(a)
	return nil
}

// BaseJSONRPCNotification is a one-way message without an id.
type BaseJSONRPCNotification struct {
	Jsonrpc string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

func (n *BaseJSONRPCNotification) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if _, ok := probe["method"]; !ok {
		return errors.New("notification must have a method")
	}
	if _, ok := probe["id"]; ok {
		return errors.New("notification must not have an id")
	}

	type alias BaseJSONRPCNotification
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*n = BaseJSONRPCNotification(a)
	return nil
}

// BaseJSONRPCResponse is a successful response to a request.
type BaseJSONRPCResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Id      RequestId       `json:"id"`
}

func (r *BaseJSONRPCResponse) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if _, ok := probe["id"]; !ok {
		return errors.New("response must have an id")
	}
	if _, ok := probe["result"]; !ok {
		return errors.New("response must have a result")
	}

	type alias BaseJSONRPCResponse
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = BaseJSONRPCResponse(a)
	return nil
}

// BaseJSONRPCErrorInner carries the error code and message.
type BaseJSONRPCErrorInner struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// BaseJSONRPCError is an error response to a request.
type BaseJSONRPCError struct {
	Jsonrpc string                `json:"jsonrpc"`
	Id      RequestId             `json:"id"`
	Error   BaseJSONRPCErrorInner `json:"error"`
}

func (e *BaseJSONRPCError) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if _, ok := probe["id"]; !ok {
		return errors.New("error response must have an id")
	}
	if _, ok := probe["error"]; !ok {
		return errors.New("error response must have an error")
	}

	type alias BaseJSONRPCError
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*e = BaseJSONRPCError(a)
	return nil
}

// BaseMessageType discriminates the message variants.
type BaseMessageType string

const (
	BaseMessageTypeJSONRPCRequestType      BaseMessageType = "request"
	BaseMessageTypeJSONRPCNotificationType BaseMessageType = "notification"
	BaseMessageTypeJSONRPCResponseType     BaseMessageType = "response"
	BaseMessageTypeJSONRPCErrorType        BaseMessageType = "error"
)

// BaseJsonRpcMessage is a tagged union over the four JSON-RPC message kinds.
type BaseJsonRpcMessage struct {
	Type                BaseMessageType
	JsonRpcRequest      *BaseJSONRPCRequest
	JsonRpcNotification *BaseJSONRPCNotification
	JsonRpcResponse     *BaseJSONRPCResponse
	JsonRpcError        *BaseJSONRPCError
}

// MarshalJSON emits the inner message without the union envelope.
func (m *BaseJsonRpcMessage) MarshalJSON() ([]byte, error) {
	switch m.Type {
	case BaseMessageTypeJSONRPCRequestType:
		return json.Marshal(m.JsonRpcRequest)
	case BaseMessageTypeJSONRPCNotificationType:
		return json.Marshal(m.JsonRpcNotification)
	case BaseMessageTypeJSONRPCResponseType:
		return json.Marshal(m.JsonRpcResponse)
	case BaseMessageTypeJSONRPCErrorType:
		return json.Marshal(m.JsonRpcError)
	}
	return nil, errors.Errorf("unknown message type: %s", m.Type)
}

// MessageID returns the request id the message correlates to, or 0 for
// notifications.
func (m *BaseJsonRpcMessage) MessageID() RequestId {
	switch m.Type {
	case BaseMessageTypeJSONRPCRequestType:
		return m.JsonRpcRequest.Id
	case BaseMessageTypeJSONRPCResponseType:
		return m.JsonRpcResponse.Id
	case BaseMessageTypeJSONRPCErrorType:
		return m.JsonRpcError.Id
	}
	return 0
}

func NewBaseMessageRequest(request *BaseJSONRPCRequest) *BaseJsonRpcMessage {
	return &BaseJsonRpcMessage{
		Type:           BaseMessageTypeJSONRPCRequestType,
		JsonRpcRequest: request,
	}
}

func NewBaseMessageNotification(notification *BaseJSONRPCNotification) *BaseJsonRpcMessage {
	return &BaseJsonRpcMessage{
		Type:                BaseMessageTypeJSONRPCNotificationType,
		JsonRpcNotification: notification,
	}
}

func NewBaseMessageResponse(response *BaseJSONRPCResponse) *BaseJsonRpcMessage {
	return &BaseJsonRpcMessage{
		Type:            BaseMessageTypeJSONRPCResponseType,
		JsonRpcResponse: response,
	}
}

func NewBaseMessageError(errResp *BaseJSONRPCError) *BaseJsonRpcMessage {
	return &BaseJsonRpcMessage{
		Type:         BaseMessageTypeJSONRPCErrorType,
		JsonRpcError: errResp,
	}
}

// ParseJsonRpcMessage deserializes a wire message, trying the variants in
// order: request, notification, response, error.
func ParseJsonRpcMessage(body []byte) (*BaseJsonRpcMessage, error) {
	var request BaseJSONRPCRequest
	if err := json.Unmarshal(body, &request); err == nil {
		return NewBaseMessageRequest(&request), nil
	}

	var notification BaseJSONRPCNotification
	if err := json.Unmarshal(body, &notification); err == nil {
		return NewBaseMessageNotification(&notification), nil
	}

	var response BaseJSONRPCResponse
	if err := json.Unmarshal(body, &response); err == nil {
		return NewBaseMessageResponse(&response), nil
	}

	var errResp BaseJSONRPCError
	if err := json.Unmarshal(body, &errResp); err == nil {
		return NewBaseMessageError(&errResp), nil
	}

	return nil, errors.New("invalid JSON-RPC message")
}

// Transport carries JSON-RPC messages between the protocol layer and a peer.
type Transport interface {
	// Start begins processing messages, including any connection setup.
	Start(ctx context.Context) error
	// Send delivers a message to the peer.
	Send(ctx context.Context, message *BaseJsonRpcMessage) error
	// Close terminates the connection.
	Close() error

	// SetCloseHandler is invoked when the connection is closed for any reason.
	SetCloseHandler(handler func())
	// SetErrorHandler is invoked for errors not attributable to a request.
	SetErrorHandler(handler func(err error))
	// SetMessageHandler is invoked for every inbound message.
	SetMessageHandler(handler func(ctx context.Context, message *BaseJsonRpcMessage))
}
