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

// Package mcp implements a Model Context Protocol (MCP) server for a Slack
// workspace.  It exposes Slack Web API operations as MCP tools: sending
// messages, listing channels and users, reading channel history, creating
// channels, inviting users and searching messages.  Optional digest tools
// read a fixed channel for the previous workday.
//
// Every call goes through the Bridge, which looks the tool up in the
// Registry, validates the arguments against the tool input schema and runs
// the handler.  Handler failures never reach the transport as protocol
// errors: they are returned as results with IsError set.
//
// Transport: the server supports two transports selectable at runtime:
//   - stdio  – standard MCP stdio transport (default); suitable for local
//     agent integration.
//   - http   – Streamable HTTP transport; suitable for remote agents or when
//     multiple concurrent clients are needed.
package mcp
