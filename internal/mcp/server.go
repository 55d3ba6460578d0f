// Copyright (c) 2021-2026 Rustam Gilyazov and Contributors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package mcp

// In this file: MCP server construction and transport management.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpsrv "github.com/mark3labs/mcp-go/server"

	"github.com/rusq/slackmcp/internal/observe"
)

const serverName = "slackmcp"

// Endpoints of the HTTP transport.
const (
	EndpointMCP     = "/mcp"
	EndpointHealth  = "/healthcheck"
	EndpointMetrics = "/metrics"
)

const shutdownTimeout = 10 * time.Second

// Server wraps an MCP server and the tool registry.
type Server struct {
	mcp    *mcpsrv.MCPServer
	reg    *Registry
	bridge *Bridge
	logger *slog.Logger

	version   string
	workspace string
	observer  *observe.Observer
	metrics   http.Handler
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger.  A nil logger falls back to slog.Default().
func WithLogger(lg *slog.Logger) Option {
	return func(s *Server) {
		if lg != nil {
			s.logger = lg
		}
	}
}

// WithObserver sets the invocation observer.
func WithObserver(o *observe.Observer) Option {
	return func(s *Server) {
		s.observer = o
	}
}

// WithVersion sets the server version reported to the clients.
func WithVersion(v string) Option {
	return func(s *Server) {
		if v != "" {
			s.version = v
		}
	}
}

// WithWorkspace sets the workspace name mentioned in the instructions.
func WithWorkspace(name string) Option {
	return func(s *Server) {
		s.workspace = name
	}
}

// WithMetricsHandler serves h on the metrics endpoint of the HTTP
// transport.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// New creates a new MCP server with all tools of the registry.  The server
// does not start listening until one of the Serve* methods is called.
func New(reg *Registry, opts ...Option) *Server {
	s := &Server{
		reg:     reg,
		logger:  slog.Default(),
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.bridge = NewBridge(reg, s.logger, s.observer)

	s.mcp = mcpsrv.NewMCPServer(
		serverName,
		s.version,
		mcpsrv.WithInstructions(instructions(s.workspace, reg)),
		mcpsrv.WithToolCapabilities(false),
	)
	for _, tool := range reg.Tools() {
		s.mcp.AddTool(tool, s.handleCall)
	}
	return s
}

// handleCall is the mcp-go handler for all tools.  Failures are returned
// as results with IsError set, never as protocol errors.
func (s *Server) handleCall(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	return s.bridge.Invoke(ctx, req.Params.Name, req.GetArguments()), nil
}

// Invoke runs the tool directly, bypassing the transport.
func (s *Server) Invoke(ctx context.Context, name string, args map[string]any) *mcplib.CallToolResult {
	return s.bridge.Invoke(ctx, name, args)
}

// Tools returns the tool definitions in registration order.
func (s *Server) Tools() []mcplib.Tool {
	return s.reg.Tools()
}

// instructions returns the server instructions that describe the available
// tools to the connecting agent.
func instructions(workspace string, reg *Registry) string {
	var buf strings.Builder
	buf.WriteString("You are connected to a Slack MCP server")
	if workspace != "" {
		fmt.Fprintf(&buf, " for the %q workspace", workspace)
	}
	buf.WriteString(".\n\nAvailable tools:\n")
	for _, t := range reg.Tools() {
		fmt.Fprintf(&buf, "- %s: %s\n", t.Name, t.Description)
	}
	buf.WriteString(`
Results are JSON documents with "success": true.  Failed calls return an error
result starting with "Tool execution failed:".  Timestamps use Slack's format
(Unix epoch as decimal string, e.g. "1609459200.000001").
`)
	return buf.String()
}

// ServeStdio runs the MCP server over stdin/stdout until ctx is cancelled.
// This is the standard transport used by local agent integrations.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.serveStdio(ctx, os.Stdin, os.Stdout)
}

func (s *Server) serveStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	srv := mcpsrv.NewStdioServer(s.mcp)
	srv.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	s.logger.InfoContext(ctx, "mcp server listening on stdio", "tools", s.reg.Len())

	w := &lockedWriter{w: out}
	pr, pw := io.Pipe()
	defer pr.Close()
	go s.filterStdio(ctx, in, pw, w)

	if err := srv.Listen(ctx, pr, w); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("mcp stdio server error: %w", err)
	}
	return nil
}

// Handler returns the HTTP handler of the Streamable HTTP transport.  The MCP
// endpoint is mounted at /mcp, next to /healthcheck and, if configured,
// /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(EndpointMCP, s.interceptUnknown(mcpsrv.NewStreamableHTTPServer(s.mcp,
		mcpsrv.WithEndpointPath(EndpointMCP),
	)))
	mux.HandleFunc("GET "+EndpointHealth, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok\n")
	})
	if s.metrics != nil {
		mux.Handle("GET "+EndpointMetrics, s.metrics)
	}

	logFmt := &middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(s.logger.Handler(), slog.LevelDebug),
		NoColor: true,
	}
	return middleware.RequestID(
		middleware.RequestLogger(logFmt)(
			middleware.Recoverer(mux),
		),
	)
}

// ServeHTTP runs the MCP server as a Streamable HTTP server on addr until
// ctx is cancelled.  addr should be a host:port string such as "127.0.0.1:8080".
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.InfoContext(ctx, "mcp server listening on http", "addr", addr, "endpoint", EndpointMCP, "tools", s.reg.Len())

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("mcp http server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.InfoContext(ctx, "mcp server shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(sctx); err != nil {
			return fmt.Errorf("mcp http server shutdown error: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}
