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

// In this file: the dispatch bridge.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/rusq/slackmcp/internal/observe"
)

// failurePrefix prefixes the message of every failed invocation.
const failurePrefix = "Tool execution failed: "

// errPanic is returned if the tool handler panics.
var errPanic = errors.New("tool handler panicked")

// Bridge dispatches tool invocations to the registry.  It is safe for
// concurrent use.
type Bridge struct {
	reg      *Registry
	logger   *slog.Logger
	observer *observe.Observer
}

// NewBridge creates a bridge for the registry.  lg and obs may be nil.
func NewBridge(reg *Registry, lg *slog.Logger, obs *observe.Observer) *Bridge {
	if lg == nil {
		lg = slog.Default()
	}
	return &Bridge{reg: reg, logger: lg, observer: obs}
}

// Invoke runs the tool name with the arguments.  It always returns a result:
// on failure the result has IsError set and a single text block with the
// message "Tool execution failed: <message>".
func (b *Bridge) Invoke(ctx context.Context, name string, args map[string]any) *mcplib.CallToolResult {
	reqID := uuid.NewString()
	lg := b.logger.With("tool", name, "request_id", reqID)
	ctx, done := b.observer.Start(ctx, name, reqID)

	start := time.Now()
	v, err := b.call(ctx, name, args)
	if err == nil {
		var res *mcplib.CallToolResult
		if res, err = resultJSON(v); err == nil {
			done(nil)
			lg.DebugContext(ctx, "tool executed", "duration", time.Since(start))
			return res
		}
	}
	done(err)
	lg.WarnContext(ctx, "tool execution failed", "error", err, "duration", time.Since(start))
	return resultErr(err)
}

// call looks up the tool, validates the arguments against the input schema
// and runs the handler, converting a panic to an error.
func (b *Bridge) call(ctx context.Context, name string, args map[string]any) (v any, err error) {
	c, ok := b.reg.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCapability, name)
	}
	if err := c.validate(args); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			b.logger.ErrorContext(ctx, "tool handler panicked", "tool", name, "panic", r, "stack", string(debug.Stack()))
			v, err = nil, fmt.Errorf("%w: %v", errPanic, r)
		}
	}()
	return c.Handler(ctx, args)
}

// resultJSON serialises v to indented JSON and returns it as a single text
// block.
func resultJSON(v any) (*mcplib.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcplib.NewToolResultText(string(b)), nil
}

// resultErr wraps an error in a CallToolResult with IsError=true.
func resultErr(err error) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(failurePrefix + err.Error())},
		IsError: true,
	}
}
