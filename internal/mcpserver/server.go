// Package mcpserver exposes the assistant's tools over the Model Context Protocol so
// other agents can call the knowledge base, news and financial-data lookups directly.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"finbot/internal/logging"
	"finbot/internal/port"
)

const (
	serverName    = "finbot"
	serverVersion = "0.1.0"
)

// New registers every tool on a fresh MCP server. Tool failures are returned as tool
// errors, never as protocol errors.
func New(tools []port.Tool, logger *zap.Logger) *server.MCPServer {
	srv := server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false))
	for _, t := range tools {
		spec := t.Spec()
		srv.AddTool(mcp.NewToolWithRawSchema(spec.Name, spec.Description, spec.Parameters), handler(t, logger))
	}
	return srv
}

func handler(t port.Tool, logger *zap.Logger) server.ToolHandlerFunc {
	logger = logging.OrNop(logger)
	name := t.Spec().Name
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := json.Marshal(request.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		out, err := t.Invoke(ctx, args)
		if err != nil {
			logger.Warn("mcp tool failed", zap.String("tool", name), zap.Error(err))
			return mcp.NewToolResultError(err.Error()), nil
		}

		logger.Debug("mcp tool called", zap.String("tool", name), zap.Int("output_len", len(out)))
		return mcp.NewToolResultText(out), nil
	}
}

// ServeStdio serves srv on stdin/stdout until the input closes.
func ServeStdio(srv *server.MCPServer) error {
	return server.ServeStdio(srv)
}
