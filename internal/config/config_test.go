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
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "slackmcp.toml")
	require.NoError(t, os.WriteFile(name, []byte(content), 0o644))
	return name
}

func TestLoad(t *testing.T) {
	t.Run("digests and defaults", func(t *testing.T) {
		name := writeFile(t, `
timezone = "Asia/Singapore"

[[digest]]
name = "standup_digest"
title = "#standup"
channel = "C0123ABCD"

[[digest]]
name = "alice_updates"
channel = "C0123ABCD"
user = "U0456EFGH"
user_label = "Alice"
max_results = 3
`)
		cfg, err := Load(name)
		require.NoError(t, err)
		assert.Equal(t, TransportStdio, cfg.Transport)
		assert.Equal(t, DefaultListen, cfg.Listen)
		assert.Equal(t, DefaultMaxResults, cfg.MaxResults)
		assert.Equal(t, "Asia/Singapore", cfg.TZ)
		require.Len(t, cfg.Digests, 2)
		assert.Equal(t, "standup_digest", cfg.Digests[0].Name)
		assert.False(t, cfg.Digests[0].IsUserDigest())
		assert.True(t, cfg.Digests[1].IsUserDigest())
		assert.Equal(t, "Alice", cfg.Digests[1].DisplayUser())
		assert.Equal(t, 3, cfg.DigestMaxResults(cfg.Digests[1]))
		assert.Equal(t, DefaultMaxResults, cfg.DigestMaxResults(cfg.Digests[0]))
	})
	t.Run("unknown key", func(t *testing.T) {
		name := writeFile(t, "transprot = \"http\"\n")
		_, err := Load(name)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalid)
		assert.Contains(t, err.Error(), "transprot")
	})
	t.Run("token is not read from file", func(t *testing.T) {
		name := writeFile(t, "Token = \"xoxb-nope\"\n")
		_, err := Load(name)
		require.Error(t, err)
	})
	t.Run("syntax error", func(t *testing.T) {
		name := writeFile(t, "transport = \n")
		_, err := Load(name)
		require.Error(t, err)
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
		require.Error(t, err)
	})
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		c := Default()
		c.Token = "xoxb-test"
		return c
	}
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr error
		wantMsg string
	}{
		{
			name:   "defaults with token",
			modify: func(c *Config) {},
		},
		{
			name:    "no token",
			modify:  func(c *Config) { c.Token = "" },
			wantErr: ErrNoToken,
		},
		{
			name:    "bad transport",
			modify:  func(c *Config) { c.Transport = "grpc" },
			wantErr: ErrInvalid,
			wantMsg: "transport",
		},
		{
			name: "http without listen",
			modify: func(c *Config) {
				c.Transport = TransportHTTP
				c.Listen = ""
			},
			wantErr: ErrInvalid,
			wantMsg: "listen",
		},
		{
			name:    "bad time zone",
			modify:  func(c *Config) { c.TZ = "Mars/Olympus_Mons" },
			wantErr: ErrInvalid,
			wantMsg: "timezone",
		},
		{
			name: "digest without channel",
			modify: func(c *Config) {
				c.Digests = []Digest{{Name: "digest"}}
			},
			wantErr: ErrInvalid,
			wantMsg: "channel",
		},
		{
			name: "digest with bad name",
			modify: func(c *Config) {
				c.Digests = []Digest{{Name: "my digest!", Channel: "C0123ABCD"}}
			},
			wantErr: ErrInvalid,
			wantMsg: "name must contain only letters",
		},
		{
			name: "digest with bad channel id",
			modify: func(c *Config) {
				c.Digests = []Digest{{Name: "digest", Channel: "#general"}}
			},
			wantErr: ErrInvalid,
			wantMsg: "channel must be a Slack ID",
		},
		{
			name: "duplicate digest names",
			modify: func(c *Config) {
				c.Digests = []Digest{
					{Name: "digest", Channel: "C0123ABCD"},
					{Name: "digest", Channel: "C0456EFGH"},
				}
			},
			wantErr: ErrInvalid,
			wantMsg: "digest",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.modify(&c)
			err := c.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestConfig_Location(t *testing.T) {
	c := Default()
	loc, err := c.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	c.TZ = "Asia/Singapore"
	loc, err = c.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Singapore", loc.String())

	c.TZ = "Nowhere/Special"
	_, err = c.Location()
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestDigest_Display(t *testing.T) {
	d := Digest{Channel: "C0123ABCD", User: "U0456EFGH"}
	assert.Equal(t, "C0123ABCD", d.DisplayTitle())
	assert.Equal(t, "U0456EFGH", d.DisplayUser())
	d.Title, d.UserLabel = "#general", "Bob"
	assert.Equal(t, "#general", d.DisplayTitle())
	assert.Equal(t, "Bob", d.DisplayUser())
}
