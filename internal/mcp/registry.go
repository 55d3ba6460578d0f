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

// In this file: the capability registry.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/rusq/slackmcp/internal/client"
	"github.com/rusq/slackmcp/internal/config"
)

var (
	// ErrUnknownCapability is returned when the requested tool is not
	// registered.
	ErrUnknownCapability = errors.New("unknown tool")
	// ErrInvalidArguments is returned when the tool arguments fail
	// validation.
	ErrInvalidArguments = errors.New("invalid arguments")
	// ErrDuplicateCapability is returned by the registry constructors if two
	// tools share a name.
	ErrDuplicateCapability = errors.New("duplicate tool name")
)

// HandlerFunc executes a tool with the raw arguments and returns a JSON
// serialisable result.
type HandlerFunc func(ctx context.Context, args map[string]any) (any, error)

// Capability is a tool definition and its handler.
type Capability struct {
	Tool    mcplib.Tool
	Handler HandlerFunc

	schema *jsonschema.Schema
}

// validate checks the arguments against the tool input schema.
func (c *Capability) validate(args map[string]any) error {
	if c.schema == nil {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}
	// the schema validator only accepts the types produced by encoding/json.
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidArguments, err)
	}
	var v map[string]any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidArguments, err)
	}
	// null means "not set", the handler keeps the default value.
	for k, val := range v {
		if val == nil {
			delete(v, k)
		}
	}
	if err := c.schema.Validate(any(v)); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidArguments, schemaErrorText(err))
	}
	return nil
}

// Registry is an ordered, read-only collection of capabilities.
type Registry struct {
	caps  []*Capability
	index map[string]*Capability
}

type registryOptions struct {
	digests []config.Digest
	loc     *time.Location
	now     func() time.Time
	logger  *slog.Logger
}

// RegistryOption configures NewRegistry.
type RegistryOption func(*registryOptions)

// WithDigests adds a digest tool for each digest, in order.
func WithDigests(digests ...config.Digest) RegistryOption {
	return func(o *registryOptions) {
		o.digests = append(o.digests, digests...)
	}
}

// WithLocation sets the time zone for workday windows and readable times.
func WithLocation(loc *time.Location) RegistryOption {
	return func(o *registryOptions) {
		if loc != nil {
			o.loc = loc
		}
	}
}

// WithClock sets the clock function.
func WithClock(now func() time.Time) RegistryOption {
	return func(o *registryOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRegistryLogger sets the logger for the tool handlers.
func WithRegistryLogger(lg *slog.Logger) RegistryOption {
	return func(o *registryOptions) {
		if lg != nil {
			o.logger = lg
		}
	}
}

// NewRegistry creates the registry with all Slack tools followed by the
// digest tools.  Handlers call the Slack API through cl.
func NewRegistry(cl client.Slack, opts ...RegistryOption) (*Registry, error) {
	o := registryOptions{
		loc:    time.Local,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	st := &slackTools{cl: cl, lg: o.logger}
	caps := st.capabilities()
	for _, d := range o.digests {
		dt := &digestTool{
			d:   d,
			cl:  cl,
			lg:  o.logger.With("digest", d.Name),
			loc: o.loc,
			now: o.now,
		}
		caps = append(caps, dt.capability())
	}
	return RegistryOf(caps...)
}

// RegistryOf creates a registry from the capabilities.  The input schema of
// each capability is compiled; an invalid schema or a duplicate name is an
// error.
func RegistryOf(caps ...Capability) (*Registry, error) {
	r := &Registry{
		caps:  make([]*Capability, 0, len(caps)),
		index: make(map[string]*Capability, len(caps)),
	}
	for i := range caps {
		c := caps[i]
		if c.Tool.Name == "" {
			return nil, fmt.Errorf("tool #%d has no name", i)
		}
		if c.Handler == nil {
			return nil, fmt.Errorf("tool %q has no handler", c.Tool.Name)
		}
		if _, ok := r.index[c.Tool.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCapability, c.Tool.Name)
		}
		schema, err := compileSchema(c.Tool)
		if err != nil {
			return nil, fmt.Errorf("tool %q: %w", c.Tool.Name, err)
		}
		c.schema = schema
		r.caps = append(r.caps, &c)
		r.index[c.Tool.Name] = &c
	}
	return r, nil
}

// Tools returns the tool definitions in registration order.
func (r *Registry) Tools() []mcplib.Tool {
	tools := make([]mcplib.Tool, len(r.caps))
	for i, c := range r.caps {
		tools[i] = c.Tool
	}
	return tools
}

// Lookup returns the capability with the given name.
func (r *Registry) Lookup(name string) (*Capability, bool) {
	c, ok := r.index[name]
	return c, ok
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	return len(r.caps)
}

// compileSchema compiles the input schema of the tool as it is advertised to
// the clients.
func compileSchema(tool mcplib.Tool) (*jsonschema.Schema, error) {
	b, err := json.Marshal(tool)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool: %w", err)
	}
	var wire struct {
		InputSchema json.RawMessage `json:"inputSchema"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tool: %w", err)
	}
	if len(wire.InputSchema) == 0 {
		return nil, nil
	}
	url := "mem://tools/" + tool.Name + ".json"
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(url, bytes.NewReader(wire.InputSchema)); err != nil {
		return nil, fmt.Errorf("invalid input schema: %w", err)
	}
	schema, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("invalid input schema: %w", err)
	}
	return schema, nil
}

// schemaErrorText returns the leaf messages of a schema validation error,
// prefixed with the argument name.
func schemaErrorText(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	var msgs []string
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := strings.TrimPrefix(e.InstanceLocation, "/")
			if loc == "" {
				loc = "arguments"
			}
			msgs = append(msgs, loc+": "+e.Message)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	if len(msgs) == 0 {
		return ve.Error()
	}
	return strings.Join(msgs, "; ")
}
