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

// In this file: Slack tool definitions and handler implementations.

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/rusq/slack"

	"github.com/rusq/slackmcp/internal/client"
)

// Tool names.
const (
	ToolSendMessage       = "slack_send_message"
	ToolGetChannels       = "slack_get_channels"
	ToolGetUsers          = "slack_get_users"
	ToolGetChannelHistory = "slack_get_channel_history"
	ToolCreateChannel     = "slack_create_channel"
	ToolInviteToChannel   = "slack_invite_to_channel"
	ToolSearchMessages    = "slack_search_messages"
)

const defaultChannelTypes = "public_channel,private_channel"

// slackTools holds the dependencies of the Slack tool handlers.
type slackTools struct {
	cl client.Slack
	lg *slog.Logger
}

// capabilities returns the Slack tools in registration order.
func (t *slackTools) capabilities() []Capability {
	return []Capability{
		t.toolSendMessage(),
		t.toolGetChannels(),
		t.toolGetUsers(),
		t.toolGetChannelHistory(),
		t.toolCreateChannel(),
		t.toolInviteToChannel(),
		t.toolSearchMessages(),
	}
}

// ─── slack_send_message ──────────────────────────────────────────────────────

type sendMessageArgs struct {
	Channel  string `json:"channel" validate:"required"`
	Text     string `json:"text" validate:"required"`
	ThreadTS string `json:"thread_ts"`
}

type sendMessageResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Channel   string `json:"channel"`
}

func (t *slackTools) toolSendMessage() Capability {
	tool := mcplib.NewTool(ToolSendMessage,
		mcplib.WithDescription("Send a message to a Slack channel or user"),
		mcplib.WithString("channel",
			mcplib.Description("Channel ID or name (e.g. #general) or user ID"),
			mcplib.Required(),
		),
		mcplib.WithString("text",
			mcplib.Description("Message content to send"),
			mcplib.Required(),
		),
		mcplib.WithString("thread_ts",
			mcplib.Description("Timestamp of the message to reply to (optional)"),
		),
		mcplib.WithDestructiveHintAnnotation(false),
		mcplib.WithOpenWorldHintAnnotation(true),
	)
	return Capability{Tool: tool, Handler: bind(sendMessageArgs{}, t.handleSendMessage)}
}

func (t *slackTools) handleSendMessage(ctx context.Context, args sendMessageArgs) (any, error) {
	opts := []slack.MsgOption{slack.MsgOptionText(args.Text, false)}
	if args.ThreadTS != "" {
		opts = append(opts, slack.MsgOptionTS(args.ThreadTS))
	}
	channel, ts, err := t.cl.PostMessageContext(ctx, args.Channel, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	t.lg.DebugContext(ctx, "message sent", "channel", channel, "ts", ts)
	return sendMessageResult{
		Success:   true,
		Message:   "Message sent successfully",
		Timestamp: ts,
		Channel:   channel,
	}, nil
}

// ─── slack_get_channels ──────────────────────────────────────────────────────

type getChannelsArgs struct {
	Limit           int    `json:"limit" validate:"gte=1,lte=1000"`
	ExcludeArchived bool   `json:"exclude_archived"`
	Types           string `json:"types"`
}

// channelSummary is a JSON-serialisable summary of a Slack channel.
type channelSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsPrivate   bool   `json:"is_private"`
	IsArchived  bool   `json:"is_archived"`
	MemberCount int    `json:"member_count"`
	Purpose     string `json:"purpose"`
	Topic       string `json:"topic"`
}

type getChannelsResult struct {
	Success  bool             `json:"success"`
	Channels []channelSummary `json:"channels"`
	Total    int              `json:"total"`
}

func (t *slackTools) toolGetChannels() Capability {
	tool := mcplib.NewTool(ToolGetChannels,
		mcplib.WithDescription("Get a list of channels in the Slack workspace"),
		mcplib.WithNumber("limit",
			mcplib.Description("Limit the number of channels returned (default 100)"),
			mcplib.DefaultNumber(100),
			mcplib.Min(1),
			mcplib.Max(1000),
		),
		mcplib.WithBoolean("exclude_archived",
			mcplib.Description("Whether to exclude archived channels (default true)"),
			mcplib.DefaultBool(true),
		),
		mcplib.WithString("types",
			mcplib.Description("Channel types to filter (e.g. public_channel,private_channel)"),
			mcplib.DefaultString(defaultChannelTypes),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	defaults := getChannelsArgs{Limit: 100, ExcludeArchived: true, Types: defaultChannelTypes}
	return Capability{Tool: tool, Handler: bind(defaults, t.handleGetChannels)}
}

func (t *slackTools) handleGetChannels(ctx context.Context, args getChannelsArgs) (any, error) {
	types := splitList(args.Types)
	if len(types) == 0 {
		types = splitList(defaultChannelTypes)
	}
	channels, _, err := t.cl.GetConversationsContext(ctx, &slack.GetConversationsParameters{
		ExcludeArchived: args.ExcludeArchived,
		Limit:           args.Limit,
		Types:           types,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get channel list: %w", err)
	}

	summaries := make([]channelSummary, 0, len(channels))
	for _, c := range channels {
		summaries = append(summaries, channelSummary{
			ID:          c.ID,
			Name:        c.Name,
			IsPrivate:   c.IsPrivate,
			IsArchived:  c.IsArchived,
			MemberCount: c.NumMembers,
			Purpose:     c.Purpose.Value,
			Topic:       c.Topic.Value,
		})
	}
	return getChannelsResult{Success: true, Channels: summaries, Total: len(summaries)}, nil
}

// ─── slack_get_users ─────────────────────────────────────────────────────────

type getUsersArgs struct {
	Limit int `json:"limit" validate:"gte=1,lte=1000"`
}

// userSummary is a JSON-serialisable summary of a Slack user.
type userSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	RealName    string `json:"real_name"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	IsBot       bool   `json:"is_bot"`
	IsAdmin     bool   `json:"is_admin"`
	IsOwner     bool   `json:"is_owner"`
	Deleted     bool   `json:"deleted"`
	Status      string `json:"status"`
}

type getUsersResult struct {
	Success bool          `json:"success"`
	Users   []userSummary `json:"users"`
	Total   int           `json:"total"`
}

func (t *slackTools) toolGetUsers() Capability {
	tool := mcplib.NewTool(ToolGetUsers,
		mcplib.WithDescription("Get a list of users in the Slack workspace"),
		mcplib.WithNumber("limit",
			mcplib.Description("Limit the number of users returned (default 100)"),
			mcplib.DefaultNumber(100),
			mcplib.Min(1),
			mcplib.Max(1000),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	return Capability{Tool: tool, Handler: bind(getUsersArgs{Limit: 100}, t.handleGetUsers)}
}

func (t *slackTools) handleGetUsers(ctx context.Context, args getUsersArgs) (any, error) {
	users, err := t.cl.GetUsersPageContext(ctx, args.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get user list: %w", err)
	}

	summaries := make([]userSummary, 0, len(users))
	for _, u := range users {
		s := userSummary{
			ID:          u.ID,
			Name:        u.Name,
			RealName:    u.RealName,
			DisplayName: u.Profile.DisplayName,
			Email:       u.Profile.Email,
			IsBot:       u.IsBot,
			IsAdmin:     u.IsAdmin,
			IsOwner:     u.IsOwner,
			Deleted:     u.Deleted,
			Status:      u.Profile.StatusText,
		}
		if s.Deleted {
			continue
		}
		summaries = append(summaries, s)
	}
	return getUsersResult{Success: true, Users: summaries, Total: len(summaries)}, nil
}

// ─── slack_get_channel_history ───────────────────────────────────────────────

type channelHistoryArgs struct {
	Channel string `json:"channel" validate:"required"`
	Limit   int    `json:"limit" validate:"gte=1,lte=1000"`
	Oldest  string `json:"oldest"`
	Latest  string `json:"latest"`
}

type reactionSummary struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// messageSummary is a JSON-serialisable summary of a Slack message.
type messageSummary struct {
	TS         string            `json:"ts"`
	User       string            `json:"user,omitempty"`
	Text       string            `json:"text"`
	Type       string            `json:"type"`
	Subtype    string            `json:"subtype,omitempty"`
	ThreadTS   string            `json:"thread_ts,omitempty"`
	ReplyCount int               `json:"reply_count,omitempty"`
	Reactions  []reactionSummary `json:"reactions,omitempty"`
}

type channelHistoryResult struct {
	Success  bool             `json:"success"`
	Messages []messageSummary `json:"messages"`
	Total    int              `json:"total"`
	Channel  string           `json:"channel"`
}

func (t *slackTools) toolGetChannelHistory() Capability {
	tool := mcplib.NewTool(ToolGetChannelHistory,
		mcplib.WithDescription("Get message history from a Slack channel"),
		mcplib.WithString("channel",
			mcplib.Description("Channel ID or name"),
			mcplib.Required(),
		),
		mcplib.WithNumber("limit",
			mcplib.Description("Limit the number of messages returned (default 50)"),
			mcplib.DefaultNumber(50),
			mcplib.Min(1),
			mcplib.Max(1000),
		),
		mcplib.WithString("oldest",
			mcplib.Description("Timestamp of the oldest message (optional)"),
		),
		mcplib.WithString("latest",
			mcplib.Description("Timestamp of the latest message (optional)"),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	return Capability{Tool: tool, Handler: bind(channelHistoryArgs{Limit: 50}, t.handleGetChannelHistory)}
}

func (t *slackTools) handleGetChannelHistory(ctx context.Context, args channelHistoryArgs) (any, error) {
	resp, err := t.cl.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: args.Channel,
		Limit:     args.Limit,
		Oldest:    args.Oldest,
		Latest:    args.Latest,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get channel history: %w", err)
	}

	messages := make([]messageSummary, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ms := messageSummary{
			TS:         m.Timestamp,
			User:       m.User,
			Text:       m.Text,
			Type:       m.Type,
			Subtype:    m.SubType,
			ThreadTS:   m.ThreadTimestamp,
			ReplyCount: m.ReplyCount,
		}
		for _, r := range m.Reactions {
			ms.Reactions = append(ms.Reactions, reactionSummary{Name: r.Name, Count: r.Count})
		}
		messages = append(messages, ms)
	}
	return channelHistoryResult{
		Success:  true,
		Messages: messages,
		Total:    len(messages),
		Channel:  args.Channel,
	}, nil
}

// ─── slack_create_channel ────────────────────────────────────────────────────

type createChannelArgs struct {
	Name      string `json:"name" validate:"required,channelname"`
	IsPrivate bool   `json:"is_private"`
}

type createdChannel struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsPrivate bool   `json:"is_private"`
	Created   int64  `json:"created"`
}

type createChannelResult struct {
	Success bool           `json:"success"`
	Channel createdChannel `json:"channel"`
	Message string         `json:"message"`
}

func (t *slackTools) toolCreateChannel() Capability {
	tool := mcplib.NewTool(ToolCreateChannel,
		mcplib.WithDescription("Create a new Slack channel"),
		mcplib.WithString("name",
			mcplib.Description("Channel name (must be lowercase, can contain hyphens and underscores)"),
			mcplib.Required(),
		),
		mcplib.WithBoolean("is_private",
			mcplib.Description("Whether this is a private channel (default false)"),
			mcplib.DefaultBool(false),
		),
		mcplib.WithDestructiveHintAnnotation(false),
	)
	return Capability{Tool: tool, Handler: bind(createChannelArgs{}, t.handleCreateChannel)}
}

func (t *slackTools) handleCreateChannel(ctx context.Context, args createChannelArgs) (any, error) {
	ch, err := t.cl.CreateConversationContext(ctx, slack.CreateConversationParams{
		ChannelName: args.Name,
		IsPrivate:   args.IsPrivate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}
	t.lg.InfoContext(ctx, "channel created", "channel_id", ch.ID, "name", ch.Name)
	return createChannelResult{
		Success: true,
		Channel: createdChannel{
			ID:        ch.ID,
			Name:      ch.Name,
			IsPrivate: ch.IsPrivate,
			Created:   int64(ch.Created),
		},
		Message: fmt.Sprintf("Channel #%s created successfully", args.Name),
	}, nil
}

// ─── slack_invite_to_channel ─────────────────────────────────────────────────

type inviteArgs struct {
	Channel string `json:"channel" validate:"required"`
	Users   string `json:"users" validate:"required"`
}

type inviteResult struct {
	Success      bool     `json:"success"`
	Channel      string   `json:"channel"`
	InvitedUsers []string `json:"invited_users"`
	Message      string   `json:"message"`
}

func (t *slackTools) toolInviteToChannel() Capability {
	tool := mcplib.NewTool(ToolInviteToChannel,
		mcplib.WithDescription("Invite users to join a Slack channel"),
		mcplib.WithString("channel",
			mcplib.Description("Channel ID or name"),
			mcplib.Required(),
		),
		mcplib.WithString("users",
			mcplib.Description("User IDs, separated by commas for multiple users"),
			mcplib.Required(),
		),
		mcplib.WithDestructiveHintAnnotation(false),
	)
	return Capability{Tool: tool, Handler: bind(inviteArgs{}, t.handleInviteToChannel)}
}

func (t *slackTools) handleInviteToChannel(ctx context.Context, args inviteArgs) (any, error) {
	userIDs := splitList(args.Users)
	if len(userIDs) == 0 {
		return nil, fmt.Errorf("%w: users must contain at least one user ID", ErrInvalidArguments)
	}
	ch, err := t.cl.InviteUsersToConversationContext(ctx, args.Channel, userIDs...)
	if err != nil {
		return nil, fmt.Errorf("failed to invite users: %w", err)
	}
	return inviteResult{
		Success:      true,
		Channel:      ch.ID,
		InvitedUsers: userIDs,
		Message:      fmt.Sprintf("Successfully invited %d user(s) to channel", len(userIDs)),
	}, nil
}

// ─── slack_search_messages ───────────────────────────────────────────────────

type searchArgs struct {
	Query string `json:"query" validate:"required"`
	Count int    `json:"count" validate:"gte=1,lte=100"`
	Page  int    `json:"page" validate:"gte=1"`
}

type searchChannel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type searchMatch struct {
	Text      string        `json:"text"`
	User      string        `json:"user"`
	Username  string        `json:"username"`
	TS        string        `json:"ts"`
	Channel   searchChannel `json:"channel"`
	Permalink string        `json:"permalink"`
}

type searchResult struct {
	Success   bool          `json:"success"`
	Query     string        `json:"query"`
	Messages  []searchMatch `json:"messages"`
	Total     int           `json:"total"`
	Page      int           `json:"page"`
	PageCount int           `json:"page_count"`
}

func (t *slackTools) toolSearchMessages() Capability {
	tool := mcplib.NewTool(ToolSearchMessages,
		mcplib.WithDescription("Search for messages in the Slack workspace"),
		mcplib.WithString("query",
			mcplib.Description("Search keywords or query expression"),
			mcplib.Required(),
		),
		mcplib.WithNumber("count",
			mcplib.Description("Number of results to return (default 20)"),
			mcplib.DefaultNumber(20),
			mcplib.Min(1),
			mcplib.Max(100),
		),
		mcplib.WithNumber("page",
			mcplib.Description("Page number of results (default 1)"),
			mcplib.DefaultNumber(1),
			mcplib.Min(1),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	return Capability{Tool: tool, Handler: bind(searchArgs{Count: 20, Page: 1}, t.handleSearchMessages)}
}

func (t *slackTools) handleSearchMessages(ctx context.Context, args searchArgs) (any, error) {
	params := slack.NewSearchParameters()
	params.Count = args.Count
	params.Page = args.Page
	resp, err := t.cl.SearchMessagesContext(ctx, args.Query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}

	matches := make([]searchMatch, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		matches = append(matches, searchMatch{
			Text:      m.Text,
			User:      m.User,
			Username:  m.Username,
			TS:        m.Timestamp,
			Channel:   searchChannel{ID: m.Channel.ID, Name: m.Channel.Name},
			Permalink: m.Permalink,
		})
	}
	return searchResult{
		Success:   true,
		Query:     args.Query,
		Messages:  matches,
		Total:     resp.Total,
		Page:      args.Page,
		PageCount: pageCount(resp.Total, args.Count),
	}, nil
}

// pageCount returns the number of pages of size count needed for total
// results.  It returns 0 if count is not positive.
func pageCount(total, count int) int {
	if count <= 0 || total <= 0 {
		return 0
	}
	return (total + count - 1) / count
}

// splitList splits a comma separated list and trims the items.  Empty items
// are dropped.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
