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

// In this file: tools/call requests for tools that are not registered.
//
// mcp-go answers a call to an unregistered tool with a JSON-RPC
// "invalid params" error before any handler runs.  The transports below
// intercept such calls and pass them to the Bridge, so that the client gets
// the same failure result as for any other failed call.

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"sync"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpsrv "github.com/mark3labs/mcp-go/server"
)

// maxRequestBody is the maximum size of the HTTP request body that is
// inspected.
const maxRequestBody = 4 << 20

// unknownToolCall returns the encoded JSON-RPC response for a tools/call
// request naming a tool that is not in the registry.  ok is false for any
// other message, which must be handled by the MCP server.
func (s *Server) unknownToolCall(ctx context.Context, raw []byte) (resp []byte, ok bool) {
	var req struct {
		ID     mcplib.RequestId `json:"id"`
		Method string           `json:"method"`
		Params struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments"`
		} `json:"params"`
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, false
	}
	if req.Method != string(mcplib.MethodToolsCall) || req.ID.IsNil() {
		return nil, false
	}
	if _, found := s.reg.Lookup(req.Params.Name); found {
		return nil, false
	}
	res := s.bridge.Invoke(ctx, req.Params.Name, req.Params.Arguments)
	b, err := json.Marshal(mcplib.NewJSONRPCResultResponse(req.ID, res))
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to encode response", "error", err)
		return nil, false
	}
	return b, true
}

// lockedWriter serialises writes to w.  Each Write must carry a complete
// message.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}

// filterStdio copies newline delimited messages from in to pw, answering
// calls to unknown tools directly on out.  It closes pw when in is
// exhausted.
func (s *Server) filterStdio(ctx context.Context, in io.Reader, pw *io.PipeWriter, out io.Writer) {
	rd := bufio.NewReader(in)
	for {
		line, err := rd.ReadBytes('\n')
		if len(line) > 0 {
			if resp, ok := s.unknownToolCall(ctx, bytes.TrimSpace(line)); ok {
				if _, werr := out.Write(append(resp, '\n')); werr != nil {
					pw.CloseWithError(werr)
					return
				}
			} else if _, werr := pw.Write(line); werr != nil {
				return // reader side is closed
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				pw.Close()
			} else {
				pw.CloseWithError(err)
			}
			return
		}
	}
}

// interceptUnknown is the HTTP middleware that answers POSTed calls to
// unknown tools.  All other requests are passed to next with the body
// restored.
func (s *Server) interceptUnknown(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}
		if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mt != "application/json" {
			next.ServeHTTP(w, r)
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusRequestEntityTooLarge)
			return
		}
		if resp, ok := s.unknownToolCall(r.Context(), body); ok {
			if sid := r.Header.Get(mcpsrv.HeaderKeySessionID); sid != "" {
				w.Header().Set(mcpsrv.HeaderKeySessionID, sid)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(resp)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}
