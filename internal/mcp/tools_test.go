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

import (
	"context"
	"errors"
	"testing"

	"github.com/rusq/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"
)

func fixtureChannel(id, name string, members int) slack.Channel {
	var ch slack.Channel
	ch.ID = id
	ch.Name = name
	ch.NumMembers = members
	ch.Purpose.Value = "purpose of " + name
	ch.Topic.Value = "topic of " + name
	return ch
}

func fixtureUser(id, name string, deleted bool) slack.User {
	return slack.User{
		ID:       id,
		Name:     name,
		RealName: "Real " + name,
		Deleted:  deleted,
		IsAdmin:  name == "admin",
		Profile: slack.UserProfile{
			DisplayName: name + "_dn",
			Email:       name + "@example.com",
			StatusText:  "working",
		},
	}
}

func fixtureMessage(ts, user, text string) slack.Message {
	return slack.Message{Msg: slack.Msg{Type: "message", Timestamp: ts, User: user, Text: text}}
}

// ─── slack_send_message ──────────────────────────────────────────────────────

func TestSendMessage(t *testing.T) {
	t.Run("message", func(t *testing.T) {
		b, m := newTestBridge(t)
		m.EXPECT().
			PostMessageContext(gomock.Any(), "C0123ABCD", gomock.Any()).
			Return("C0123ABCD", "1792123200.000100", nil)

		res := b.Invoke(context.Background(), ToolSendMessage, map[string]any{
			"channel": "C0123ABCD",
			"text":    "hello",
		})
		got := decode[sendMessageResult](t, res)
		assert.Equal(t, sendMessageResult{
			Success:   true,
			Message:   "Message sent successfully",
			Timestamp: "1792123200.000100",
			Channel:   "C0123ABCD",
		}, got)
	})
	t.Run("thread reply", func(t *testing.T) {
		b, m := newTestBridge(t)
		// text and thread_ts options.
		m.EXPECT().
			PostMessageContext(gomock.Any(), "C0123ABCD", gomock.Any(), gomock.Any()).
			Return("C0123ABCD", "1792123300.000200", nil)

		res := b.Invoke(context.Background(), ToolSendMessage, map[string]any{
			"channel":   "C0123ABCD",
			"text":      "reply",
			"thread_ts": "1792123200.000100",
		})
		got := decode[sendMessageResult](t, res)
		assert.Equal(t, "1792123300.000200", got.Timestamp)
	})
	t.Run("api error", func(t *testing.T) {
		b, m := newTestBridge(t)
		m.EXPECT().
			PostMessageContext(gomock.Any(), "C404", gomock.Any()).
			Return("", "", errors.New("channel_not_found"))

		res := b.Invoke(context.Background(), ToolSendMessage, map[string]any{"channel": "C404", "text": "x"})
		assert.Equal(t, "Tool execution failed: failed to send message: channel_not_found", failure(t, res))
	})
	t.Run("empty text", func(t *testing.T) {
		b, _ := newTestBridge(t)
		res := b.Invoke(context.Background(), ToolSendMessage, map[string]any{"channel": "C1", "text": ""})
		assert.Contains(t, failure(t, res), "text is a required field")
	})
}

// ─── slack_get_channels ──────────────────────────────────────────────────────

func TestGetChannels(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		b, m := newTestBridge(t)
		m.EXPECT().
			GetConversationsContext(gomock.Any(), &slack.GetConversationsParameters{
				ExcludeArchived: true,
				Limit:           100,
				Types:           []string{"public_channel", "private_channel"},
			}).
			Return([]slack.Channel{
				fixtureChannel("C1", "general", 10),
				fixtureChannel("C2", "random", 3),
			}, "next", nil)

		got := decode[getChannelsResult](t, b.Invoke(context.Background(), ToolGetChannels, nil))
		assert.True(t, got.Success)
		assert.Equal(t, 2, got.Total)
		assert.Equal(t, channelSummary{
			ID:          "C1",
			Name:        "general",
			MemberCount: 10,
			Purpose:     "purpose of general",
			Topic:       "topic of general",
		}, got.Channels[0])
	})
	t.Run("explicit", func(t *testing.T) {
		b, m := newTestBridge(t)
		m.EXPECT().
			GetConversationsContext(gomock.Any(), &slack.GetConversationsParameters{
				ExcludeArchived: false,
				Limit:           5,
				Types:           []string{"im", "mpim"},
			}).
			Return(nil, "", nil)

		got := decode[getChannelsResult](t, b.Invoke(context.Background(), ToolGetChannels, map[string]any{
			"limit":            5,
			"exclude_archived": false,
			"types":            "im, mpim",
		}))
		assert.Equal(t, 0, got.Total)
		assert.NotNil(t, got.Channels)
	})
	t.Run("api error", func(t *testing.T) {
		b, m := newTestBridge(t)
		m.EXPECT().GetConversationsContext(gomock.Any(), gomock.Any()).Return(nil, "", errors.New("invalid_auth"))
		assert.Equal(t,
			"Tool execution failed: failed to get channel list: invalid_auth",
			failure(t, b.Invoke(context.Background(), ToolGetChannels, nil)),
		)
	})
}

// ─── slack_get_users ─────────────────────────────────────────────────────────

func TestGetUsers(t *testing.T) {
	b, m := newTestBridge(t)
	m.EXPECT().GetUsersPageContext(gomock.Any(), 3).Return([]slack.User{
		fixtureUser("U1", "alice", false),
		fixtureUser("U2", "ghost", true),
		fixtureUser("U3", "admin", false),
	}, nil)

	got := decode[getUsersResult](t, b.Invoke(context.Background(), ToolGetUsers, map[string]any{"limit": 3}))
	require.Len(t, got.Users, 2)
	assert.Equal(t, 2, got.Total)
	assert.Equal(t, userSummary{
		ID:          "U1",
		Name:        "alice",
		RealName:    "Real alice",
		DisplayName: "alice_dn",
		Email:       "alice@example.com",
		Status:      "working",
	}, got.Users[0])
	assert.Equal(t, "U3", got.Users[1].ID)
	assert.True(t, got.Users[1].IsAdmin)
	for _, u := range got.Users {
		assert.False(t, u.Deleted)
	}
}

func TestGetUsers_defaultLimit(t *testing.T) {
	b, m := newTestBridge(t)
	m.EXPECT().GetUsersPageContext(gomock.Any(), 100).Return(nil, errors.New("missing_scope"))
	assert.Equal(t,
		"Tool execution failed: failed to get user list: missing_scope",
		failure(t, b.Invoke(context.Background(), ToolGetUsers, nil)),
	)
}

// ─── slack_get_channel_history ───────────────────────────────────────────────

func TestGetChannelHistory(t *testing.T) {
	b, m := newTestBridge(t)
	reply := fixtureMessage("1792123200.000100", "U1", "parent")
	reply.ThreadTimestamp = "1792123200.000100"
	reply.ReplyCount = 2
	reply.Reactions = []slack.ItemReaction{{Name: "tada", Count: 3, Users: []string{"U2"}}}
	joined := fixtureMessage("1792123100.000000", "U2", "joined")
	joined.SubType = "channel_join"

	m.EXPECT().
		GetConversationHistoryContext(gomock.Any(), &slack.GetConversationHistoryParameters{
			ChannelID: "C1",
			Limit:     50,
			Oldest:    "1792080000",
		}).
		Return(&slack.GetConversationHistoryResponse{Messages: []slack.Message{reply, joined}}, nil)

	got := decode[channelHistoryResult](t, b.Invoke(context.Background(), ToolGetChannelHistory, map[string]any{
		"channel": "C1",
		"oldest":  "1792080000",
	}))
	assert.Equal(t, channelHistoryResult{
		Success: true,
		Messages: []messageSummary{
			{
				TS:         "1792123200.000100",
				User:       "U1",
				Text:       "parent",
				Type:       "message",
				ThreadTS:   "1792123200.000100",
				ReplyCount: 2,
				Reactions:  []reactionSummary{{Name: "tada", Count: 3}},
			},
			{
				TS:      "1792123100.000000",
				User:    "U2",
				Text:    "joined",
				Type:    "message",
				Subtype: "channel_join",
			},
		},
		Total:   2,
		Channel: "C1",
	}, got)
}

// ─── slack_create_channel ────────────────────────────────────────────────────

func TestCreateChannel(t *testing.T) {
	t.Run("invalid name is rejected locally", func(t *testing.T) {
		for _, name := range []string{"Valid-Name", "with space", "#general", "ünïcode"} {
			b, _ := newTestBridge(t) // no client calls expected
			text := failure(t, b.Invoke(context.Background(), ToolCreateChannel, map[string]any{"name": name}))
			assert.Contains(t, text, "Channel name can only contain lowercase letters, numbers, hyphens and underscores", name)
		}
	})
	t.Run("valid name", func(t *testing.T) {
		b, m := newTestBridge(t)
		ch := fixtureChannel("C9", "valid-name_2", 1)
		ch.Created = slack.JSONTime(1792123200)
		m.EXPECT().
			CreateConversationContext(gomock.Any(), slack.CreateConversationParams{ChannelName: "valid-name_2"}).
			Return(&ch, nil)

		got := decode[createChannelResult](t, b.Invoke(context.Background(), ToolCreateChannel, map[string]any{"name": "valid-name_2"}))
		assert.Equal(t, createChannelResult{
			Success: true,
			Channel: createdChannel{ID: "C9", Name: "valid-name_2", Created: 1792123200},
			Message: "Channel #valid-name_2 created successfully",
		}, got)
	})
	t.Run("private", func(t *testing.T) {
		b, m := newTestBridge(t)
		ch := fixtureChannel("G1", "secret", 1)
		ch.IsPrivate = true
		m.EXPECT().
			CreateConversationContext(gomock.Any(), slack.CreateConversationParams{ChannelName: "secret", IsPrivate: true}).
			Return(&ch, nil)
		got := decode[createChannelResult](t, b.Invoke(context.Background(), ToolCreateChannel, map[string]any{"name": "secret", "is_private": true}))
		assert.True(t, got.Channel.IsPrivate)
	})
	t.Run("api error", func(t *testing.T) {
		b, m := newTestBridge(t)
		m.EXPECT().CreateConversationContext(gomock.Any(), gomock.Any()).Return(nil, errors.New("name_taken"))
		assert.Equal(t,
			"Tool execution failed: failed to create channel: name_taken",
			failure(t, b.Invoke(context.Background(), ToolCreateChannel, map[string]any{"name": "general"})),
		)
	})
}

// ─── slack_invite_to_channel ─────────────────────────────────────────────────

func TestInviteToChannel(t *testing.T) {
	t.Run("trims ids", func(t *testing.T) {
		b, m := newTestBridge(t)
		ch := fixtureChannel("C1", "general", 3)
		m.EXPECT().InviteUsersToConversationContext(gomock.Any(), "C1", "U1", "U2", "U3").Return(&ch, nil)

		got := decode[inviteResult](t, b.Invoke(context.Background(), ToolInviteToChannel, map[string]any{
			"channel": "C1",
			"users":   "U1, U2 ,U3",
		}))
		assert.Equal(t, inviteResult{
			Success:      true,
			Channel:      "C1",
			InvitedUsers: []string{"U1", "U2", "U3"},
			Message:      "Successfully invited 3 user(s) to channel",
		}, got)
	})
	t.Run("no ids", func(t *testing.T) {
		b, _ := newTestBridge(t)
		text := failure(t, b.Invoke(context.Background(), ToolInviteToChannel, map[string]any{"channel": "C1", "users": " , "}))
		assert.Contains(t, text, "at least one user ID")
	})
	t.Run("api error", func(t *testing.T) {
		b, m := newTestBridge(t)
		m.EXPECT().InviteUsersToConversationContext(gomock.Any(), "C1", "U1").Return(nil, errors.New("already_in_channel"))
		assert.Equal(t,
			"Tool execution failed: failed to invite users: already_in_channel",
			failure(t, b.Invoke(context.Background(), ToolInviteToChannel, map[string]any{"channel": "C1", "users": "U1"})),
		)
	})
}

// ─── slack_search_messages ───────────────────────────────────────────────────

func TestSearchMessages(t *testing.T) {
	b, m := newTestBridge(t)
	m.EXPECT().
		SearchMessagesContext(gomock.Any(), "deploy", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, p slack.SearchParameters) (*slack.SearchMessages, error) {
			assert.Equal(t, 20, p.Count)
			assert.Equal(t, 2, p.Page)
			return &slack.SearchMessages{
				Matches: []slack.SearchMessage{{
					Type:      "message",
					Channel:   slack.CtxChannel{ID: "C1", Name: "general"},
					User:      "U1",
					Username:  "alice",
					Timestamp: "1792123200.000100",
					Text:      "deploy done",
					Permalink: "https://acme.slack.com/archives/C1/p1792123200000100",
				}},
				Total: 45,
			}, nil
		})

	got := decode[searchResult](t, b.Invoke(context.Background(), ToolSearchMessages, map[string]any{"query": "deploy", "page": 2}))
	assert.Equal(t, searchResult{
		Success: true,
		Query:   "deploy",
		Messages: []searchMatch{{
			Text:      "deploy done",
			User:      "U1",
			Username:  "alice",
			TS:        "1792123200.000100",
			Channel:   searchChannel{ID: "C1", Name: "general"},
			Permalink: "https://acme.slack.com/archives/C1/p1792123200000100",
		}},
		Total:     45,
		Page:      2,
		PageCount: 3,
	}, got)
}

func TestSearchMessages_zeroCount(t *testing.T) {
	b, _ := newTestBridge(t)
	text := failure(t, b.Invoke(context.Background(), ToolSearchMessages, map[string]any{"query": "x", "count": 0}))
	assert.Contains(t, text, "count")
}

func TestPageCount(t *testing.T) {
	tests := []struct {
		total, count, want int
	}{
		{45, 20, 3},
		{40, 20, 2},
		{1, 20, 1},
		{0, 20, 0},
		{45, 0, 0},
		{45, -1, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, pageCount(tt.total, tt.count), "pageCount(%d, %d)", tt.total, tt.count)
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b ,"))
	assert.Nil(t, splitList(""))
}
