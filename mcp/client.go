package mcp

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/infohub/mcp/internal/protocol"
	"github.com/effective-security/infohub/mcp/transport"
)

// Client calls a gateway server over a transport.
type Client struct {
	protocol    *protocol.Protocol
	transport   transport.Transport
	info        ServerInfo
	initialized bool
}

func NewClient(tr transport.Transport) *Client {
	return &Client{
		protocol:  protocol.New(),
		transport: tr,
		info: ServerInfo{
			Name:    "infohub-client",
			Version: "1.0.0",
		},
	}
}

// WithInfo overrides the identity sent in the handshake.
func (c *Client) WithInfo(name, version string) *Client {
	c.info = ServerInfo{Name: name, Version: version}
	return c
}

// Initialize connects the transport and performs the handshake. It must be
// called before any other request.
func (c *Client) Initialize(ctx context.Context) (*InitializeResponse, error) {
	if c.initialized {
		return nil, errors.New("already initialized")
	}
	if err := c.protocol.Connect(c.transport); err != nil {
		return nil, errors.Wrap(err, "failed to connect transport")
	}

	params := map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo":      c.info,
	}
	raw, err := c.protocol.Request(ctx, "initialize", params, nil)
	if err != nil {
		return nil, err
	}

	var resp InitializeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal initialize response")
	}
	c.initialized = true
	return &resp, nil
}

// Ping checks that the server is responsive.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.checkInitialized(); err != nil {
		return err
	}
	_, err := c.protocol.Request(ctx, "ping", map[string]any{}, nil)
	return err
}

// ListTools fetches the advertised tool catalog.
func (c *Client) ListTools(ctx context.Context) (*ToolsResponse, error) {
	if err := c.checkInitialized(); err != nil {
		return nil, err
	}

	raw, err := c.protocol.Request(ctx, "tools/list", map[string]any{}, nil)
	if err != nil {
		return nil, err
	}

	var resp ToolsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal tools response")
	}
	return &resp, nil
}

// CallTool invokes one tool by name. Failures of the tool itself come back in
// the result, not as an error.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (*ToolResult, error) {
	if err := c.checkInitialized(); err != nil {
		return nil, err
	}

	params := map[string]any{
		"name":      name,
		"arguments": arguments,
	}
	raw, err := c.protocol.Request(ctx, "tools/call", params, nil)
	if err != nil {
		return nil, err
	}

	var res ToolResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal tool result")
	}
	return &res, nil
}

// Close shuts down the transport.
func (c *Client) Close() error {
	return c.protocol.Close()
}

func (c *Client) checkInitialized() error {
	if !c.initialized {
		return errors.New("client not initialized")
	}
	return nil
}
