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

// In this file: workday digest tools for configured channels.

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/rusq/slack"

	"github.com/rusq/slackmcp/internal/client"
	"github.com/rusq/slackmcp/internal/config"
	"github.com/rusq/slackmcp/internal/slackts"
	"github.com/rusq/slackmcp/internal/workday"
)

const (
	// readableLayout mimics the en-US locale date and time.
	readableLayout = "1/2/2006, 3:04:05 PM"
	unknownTime    = "Unknown time"
	allTimeRange   = "All time"
)

// digestTool reads the messages of the previous workday from a fixed
// channel.  If the digest has a user, only the messages of that user are
// returned, newest first.
type digestTool struct {
	d   config.Digest
	cl  client.Slack
	lg  *slog.Logger
	loc *time.Location
	now func() time.Time
}

type digestArgs struct {
	Limit           int    `json:"limit" validate:"gte=1,lte=1000"`
	IncludeUserInfo bool   `json:"include_user_info"`
	ManualDate      string `json:"manual_date" validate:"omitempty,datetime=2006-01-02"`
	AllTime         bool   `json:"all_time"`
	MaxResults      int    `json:"max_results" validate:"gte=0,lte=1000"`
}

// userProfile is the poster information attached to digest messages.
type userProfile struct {
	RealName    string `json:"real_name"`
	DisplayName string `json:"display_name"`
	Name        string `json:"name"`
}

type digestMessage struct {
	TS            string       `json:"ts"`
	User          string       `json:"user,omitempty"`
	Text          string       `json:"text"`
	Type          string       `json:"type"`
	Subtype       string       `json:"subtype,omitempty"`
	ThreadTS      string       `json:"thread_ts,omitempty"`
	ReplyCount    int          `json:"reply_count,omitempty"`
	ReadableTime  string       `json:"readable_time"`
	Age           string       `json:"age,omitempty"`
	UserInfo      *userProfile `json:"user_info,omitempty"`
	UserInfoError string       `json:"user_info_error,omitempty"`
}

type timeRange struct {
	Oldest string `json:"oldest"`
	Latest string `json:"latest"`
}

type digestResult struct {
	Success              bool            `json:"success"`
	Channel              string          `json:"channel"`
	ChannelID            string          `json:"channel_id"`
	TargetUser           string          `json:"target_user,omitempty"`
	TargetDate           string          `json:"target_date"`
	TimeRange            any             `json:"time_range"` // timeRange or "All time"
	Messages             []digestMessage `json:"messages"`
	Total                int             `json:"total"`
	TotalChannelMessages int             `json:"total_channel_messages"`
	Message              string          `json:"message"`
}

func (t *digestTool) maxResults() int {
	if t.d.MaxResults > 0 {
		return t.d.MaxResults
	}
	return config.DefaultMaxResults
}

// targetUser returns the user label as "Label (ID)".
func (t *digestTool) targetUser() string {
	if !t.d.IsUserDigest() {
		return ""
	}
	if t.d.UserLabel == "" {
		return t.d.User
	}
	return fmt.Sprintf("%s (%s)", t.d.UserLabel, t.d.User)
}

func (t *digestTool) description() string {
	if t.d.Description != "" {
		return t.d.Description
	}
	if t.d.IsUserDigest() {
		return fmt.Sprintf("Read latest messages from %s in the %s channel for the previous workday", t.targetUser(), t.d.DisplayTitle())
	}
	return fmt.Sprintf("Read messages from the %s channel for the previous workday", t.d.DisplayTitle())
}

func (t *digestTool) capability() Capability {
	opts := []mcplib.ToolOption{
		mcplib.WithDescription(t.description()),
		mcplib.WithNumber("limit",
			mcplib.Description("Number of messages to retrieve from the channel (default 100)"),
			mcplib.DefaultNumber(100),
			mcplib.Min(1),
			mcplib.Max(1000),
		),
		mcplib.WithBoolean("include_user_info",
			mcplib.Description("Include user information for messages (default true)"),
			mcplib.DefaultBool(true),
		),
		mcplib.WithString("manual_date",
			mcplib.Description("Manual date override in YYYY-MM-DD format (optional)"),
		),
		mcplib.WithBoolean("all_time",
			mcplib.Description("Search all time instead of just the previous workday (default false)"),
			mcplib.DefaultBool(false),
		),
	}
	if t.d.IsUserDigest() {
		opts = append(opts, mcplib.WithNumber("max_results",
			mcplib.Description(fmt.Sprintf("Maximum number of messages from %s to return (default %d)", t.d.DisplayUser(), t.maxResults())),
			mcplib.DefaultNumber(float64(t.maxResults())),
			mcplib.Min(1),
			mcplib.Max(1000),
		))
	}
	opts = append(opts, mcplib.WithReadOnlyHintAnnotation(true))

	defaults := digestArgs{Limit: 100, IncludeUserInfo: true}
	if t.d.IsUserDigest() {
		defaults.MaxResults = t.maxResults()
	}
	return Capability{
		Tool:    mcplib.NewTool(t.d.Name, opts...),
		Handler: bind(defaults, t.handle),
	}
}

func (t *digestTool) handle(ctx context.Context, args digestArgs) (any, error) {
	now := t.now().In(t.loc)
	w, err := workday.Resolve(now, workday.Options{AllTime: args.AllTime, Date: args.ManualDate})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArguments, err)
	}
	t.lg.DebugContext(ctx, "reading digest", "window", w.Label, "oldest", w.Oldest, "latest", w.Latest)

	resp, err := t.cl.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: t.d.Channel,
		Limit:     args.Limit,
		Oldest:    w.Oldest,
		Latest:    w.Latest,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s messages: %w", t.d.DisplayTitle(), err)
	}

	msgs := resp.Messages
	if t.d.IsUserDigest() {
		msgs = newestFirst(filterUser(msgs, t.d.User))
		if n := args.MaxResults; n > 0 && len(msgs) > n {
			msgs = msgs[:n]
		}
	}

	var uc *userCache
	if args.IncludeUserInfo {
		uc = newUserCache(t.cl, t.lg)
	}
	out := make([]digestMessage, 0, len(msgs))
	for _, m := range msgs {
		dm := t.digestMessage(m, now)
		if uc != nil && m.User != "" {
			if p, err := uc.lookup(ctx, m.User); err != nil {
				dm.UserInfoError = err.Error()
			} else {
				dm.UserInfo = p
			}
		}
		out = append(out, dm)
	}

	res := digestResult{
		Success:              true,
		Channel:              t.d.DisplayTitle(),
		ChannelID:            t.d.Channel,
		TargetUser:           t.targetUser(),
		TargetDate:           w.Label,
		TimeRange:            allTimeRange,
		Messages:             out,
		Total:                len(out),
		TotalChannelMessages: len(resp.Messages),
	}
	if w.Bounded() {
		res.TimeRange = timeRange{
			Oldest: w.From.Format(readableLayout),
			Latest: w.To.Format(readableLayout),
		}
	}
	if t.d.IsUserDigest() {
		res.Message = fmt.Sprintf("Successfully retrieved %d messages from %s in %s for %s", len(out), t.d.DisplayUser(), t.d.DisplayTitle(), w.Label)
	} else {
		res.Message = fmt.Sprintf("Successfully retrieved %d messages from %s for %s", len(out), t.d.DisplayTitle(), w.Label)
	}
	return res, nil
}

func (t *digestTool) digestMessage(m slack.Message, now time.Time) digestMessage {
	dm := digestMessage{
		TS:           m.Timestamp,
		User:         m.User,
		Text:         m.Text,
		Type:         m.Type,
		Subtype:      m.SubType,
		ThreadTS:     m.ThreadTimestamp,
		ReplyCount:   m.ReplyCount,
		ReadableTime: unknownTime,
	}
	if ts, err := slackts.Time(m.Timestamp); err == nil {
		dm.ReadableTime = ts.In(t.loc).Format(readableLayout)
		dm.Age = humanize.RelTime(ts, now, "ago", "from now")
	}
	return dm
}

// filterUser returns the messages posted by the user.
func filterUser(msgs []slack.Message, user string) []slack.Message {
	var out []slack.Message
	for _, m := range msgs {
		if m.User == user {
			out = append(out, m)
		}
	}
	return out
}

// newestFirst sorts msgs in place by the numeric value of the timestamp,
// newest first.
func newestFirst(msgs []slack.Message) []slack.Message {
	sort.SliceStable(msgs, func(i, j int) bool {
		return slackts.Compare(msgs[i].Timestamp, msgs[j].Timestamp) > 0
	})
	return msgs
}

// userCache caches user profile lookups for the duration of a single
// invocation.  Failed lookups are cached as well, so that each distinct user
// is requested at most once.
type userCache struct {
	cl client.Slack
	lg *slog.Logger
	m  map[string]userLookup
}

type userLookup struct {
	profile *userProfile
	err     error
}

func newUserCache(cl client.Slack, lg *slog.Logger) *userCache {
	return &userCache{cl: cl, lg: lg, m: make(map[string]userLookup)}
}

func (c *userCache) lookup(ctx context.Context, userID string) (*userProfile, error) {
	if l, ok := c.m[userID]; ok {
		return l.profile, l.err
	}
	var l userLookup
	u, err := c.cl.GetUserInfoContext(ctx, userID)
	if err != nil {
		c.lg.WarnContext(ctx, "failed to get user info", "user", userID, "error", err)
		l.err = fmt.Errorf("user info unavailable: %w", err)
	} else {
		l.profile = &userProfile{
			RealName:    u.RealName,
			DisplayName: u.Profile.DisplayName,
			Name:        u.Name,
		}
	}
	c.m[userID] = l
	return l.profile, l.err
}
