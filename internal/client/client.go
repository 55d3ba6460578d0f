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

// Package client provides the Slack Web API client used by the MCP tools.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rusq/slack"
)

//go:generate mockgen -destination mock_client/mock_client.go . Slack

// Slack is the subset of the Slack Web API that the tools call.  Every method
// returns an error if the API responds with "ok": false; the error message is
// the Slack error code, e.g. "channel_not_found".
type Slack interface {
	AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	GetConversationsContext(ctx context.Context, params *slack.GetConversationsParameters) (channels []slack.Channel, nextCursor string, err error)
	GetUsersPageContext(ctx context.Context, limit int) ([]slack.User, error)
	GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
	CreateConversationContext(ctx context.Context, params slack.CreateConversationParams) (*slack.Channel, error)
	InviteUsersToConversationContext(ctx context.Context, channelID string, users ...string) (*slack.Channel, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
	SearchMessagesContext(ctx context.Context, query string, params slack.SearchParameters) (*slack.SearchMessages, error)
}

// ErrNoToken is returned by New if the token is empty.
var ErrNoToken = errors.New("slack token is empty")

var _ Slack = (*Client)(nil)

// Client wraps *slack.Client.  All Slack interface methods are promoted from
// the embedded client, except those that Client overrides.
type Client struct {
	*slack.Client
	wi *slack.AuthTestResponse
}

// Wrap wraps a *slack.Client and returns a *Client that implements the Slack
// interface.  Intended for testing.
func Wrap(cl *slack.Client) *Client {
	return &Client{Client: cl}
}

type options struct {
	httpClient *http.Client
	apiURL     string
	debug      bool
}

// Option configures the Client.
type Option func(*options)

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(cl *http.Client) Option {
	return func(o *options) {
		o.httpClient = cl
	}
}

// WithAPIURL overrides the Slack API URL, i.e. for tests.  The URL must end
// with a slash.
func WithAPIURL(url string) Option {
	return func(o *options) {
		o.apiURL = url
	}
}

// WithDebug enables the debug output of the underlying Slack library.
func WithDebug(debug bool) Option {
	return func(o *options) {
		o.debug = debug
	}
}

// New creates a new Client with the bot token and checks that the token is
// valid by calling auth.test.
func New(ctx context.Context, token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	var opt = options{httpClient: http.DefaultClient}
	for _, o := range opts {
		o(&opt)
	}

	sopts := []slack.Option{
		slack.OptionHTTPClient(opt.httpClient),
		slack.OptionDebug(opt.debug),
	}
	if opt.apiURL != "" {
		sopts = append(sopts, slack.OptionAPIURL(opt.apiURL))
	}
	c := &Client{Client: slack.New(token, sopts...)}
	if _, err := c.AuthTestContext(ctx); err != nil {
		return nil, fmt.Errorf("auth test: %w", err)
	}
	return c, nil
}

// AuthTestContext returns the cached workspace information that was captured
// on initialisation.  If the cache is empty it calls the API.
func (c *Client) AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error) {
	if c.wi == nil {
		wi, err := c.Client.AuthTestContext(ctx)
		if err != nil {
			return nil, err
		}
		c.wi = wi
	}
	return c.wi, nil
}

// GetUsersPageContext returns a single page of at most limit workspace
// members.  It does not follow the pagination cursor.
func (c *Client) GetUsersPageContext(ctx context.Context, limit int) ([]slack.User, error) {
	p := c.Client.GetUsersPaginated(slack.GetUsersOptionLimit(limit))
	p, err := p.Next(ctx)
	if err != nil {
		return nil, err
	}
	return p.Users, nil
}

// WorkspaceInfo returns the cached auth.test response, or nil if the client
// was created with Wrap and AuthTestContext was never called.
func (c *Client) WorkspaceInfo() *slack.AuthTestResponse {
	return c.wi
}
