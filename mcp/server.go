// Package mcp exposes the invocation gateway over JSON-RPC transports and
// provides the matching client.
package mcp

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/infohub/gateway"
	"github.com/effective-security/infohub/mcp/internal/protocol"
	"github.com/effective-security/infohub/mcp/transport"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/infohub", "mcp")

// ProtocolVersion is the wire protocol revision advertised in the handshake.
const ProtocolVersion = "2024-11-05"

// ToolResult statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ServerInfo identifies an endpoint in the initialize handshake.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResponse is the result of the initialize handshake.
type InitializeResponse struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
}

// ToolsResponse lists the advertised tool catalog.
type ToolsResponse struct {
	Tools []gateway.ToolDefinition `json:"tools"`
}

// ToolResult is the wire form of one invocation outcome. Status is "success"
// with Value set, or "error" with Kind and Message set.
type ToolResult struct {
	Status  string          `json:"status"`
	Value   json.RawMessage `json:"value,omitempty"`
	Kind    string          `json:"kind,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Server serves gateway invocations over one transport connection.
type Server struct {
	protocol  *protocol.Protocol
	transport transport.Transport
	gateway   *gateway.Gateway
	info      ServerInfo
}

func NewServer(tr transport.Transport, gw *gateway.Gateway) *Server {
	return &Server{
		protocol:  protocol.New(),
		transport: tr,
		gateway:   gw,
		info: ServerInfo{
			Name:    "infohub",
			Version: "1.0.0",
		},
	}
}

// WithInfo overrides the identity advertised in the handshake.
func (s *Server) WithInfo(name, version string) *Server {
	s.info = ServerInfo{Name: name, Version: version}
	return s
}

// Serve registers the method handlers and starts the transport.
func (s *Server) Serve() error {
	s.protocol.SetRequestHandler("initialize", s.handleInitialize)
	s.protocol.SetRequestHandler("ping", s.handlePing)
	s.protocol.SetRequestHandler("tools/list", s.handleListTools)
	s.protocol.SetRequestHandler("tools/call", s.handleToolCall)

	return s.protocol.Connect(s.transport)
}

// Close shuts down the transport.
func (s *Server) Close() error {
	return s.protocol.Close()
}

// AnnounceCatalog notifies the peer of the current tool catalog. Used by
// streaming transports on connect.
func (s *Server) AnnounceCatalog() error {
	return s.protocol.Notification("notifications/tools/catalog", ToolsResponse{
		Tools: s.gateway.Catalog(),
	})
}

func (s *Server) handleInitialize(ctx context.Context, request *transport.BaseJSONRPCRequest) (transport.JsonRpcBody, error) {
	logger.ContextKV(ctx, xlog.DEBUG, "method", request.Method)
	return InitializeResponse{
		ProtocolVersion: ProtocolVersion,
		Capabilities: map[string]any{
			"tools": map[string]any{},
		},
		ServerInfo: s.info,
	}, nil
}

func (s *Server) handlePing(ctx context.Context, request *transport.BaseJSONRPCRequest) (transport.JsonRpcBody, error) {
	return map[string]any{}, nil
}

func (s *Server) handleListTools(ctx context.Context, request *transport.BaseJSONRPCRequest) (transport.JsonRpcBody, error) {
	return ToolsResponse{
		Tools: s.gateway.Catalog(),
	}, nil
}

func (s *Server) handleToolCall(ctx context.Context, request *transport.BaseJSONRPCRequest) (transport.JsonRpcBody, error) {
	var req gateway.Request
	if len(request.Params) > 0 {
		if err := json.Unmarshal(request.Params, &req); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal arguments")
		}
	}
	if req.Name == "" {
		return nil, errors.New("missing tool name")
	}

	res := s.gateway.Invoke(ctx, &req)
	if res.Success() {
		return ToolResult{
			Status: StatusSuccess,
			Value:  res.Value,
		}, nil
	}
	return ToolResult{
		Status:  StatusError,
		Kind:    string(res.Failure.Kind),
		Message: res.Failure.Message,
	}, nil
}
