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

// Package config contains the server configuration: the Slack token, the
// transport, the time zone used for workday windows and the digest tool
// definitions.  The configuration can be loaded from a TOML file and is
// then overridden by command line flags and environment variables.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	_ "time/tzdata" // zone database for containers without one

	"github.com/BurntSushi/toml"
)

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

const (
	DefaultListen     = "127.0.0.1:8080"
	DefaultMaxResults = 5
)

var (
	// ErrNoToken is returned by Validate if the bot token is not set.
	ErrNoToken = errors.New("slack bot token is not set, use -token flag or SLACK_BOT_TOKEN environment variable")
	// ErrInvalid is returned if the configuration fails validation.
	ErrInvalid = errors.New("configuration is invalid")
)

// Config is the server configuration.
type Config struct {
	// Token is the Slack bot token.  It is never read from the config file.
	Token string `toml:"-"`
	// Transport is either "stdio" or "http".
	Transport string `toml:"transport" validate:"oneof=stdio http"`
	// Listen is the address for the HTTP transport.
	Listen string `toml:"listen" validate:"required_if=Transport http,omitempty,hostname_port"`
	// TZ is the IANA time zone name for workday windows.  Empty means local
	// time.
	TZ string `toml:"timezone" validate:"omitempty,timezone"`
	// MaxResults is the default number of messages returned by user digests.
	MaxResults int `toml:"max_results" validate:"gte=1,lte=1000"`
	// OTELEndpoint is the OTLP/HTTP endpoint for trace export.
	OTELEndpoint string `toml:"otel_endpoint" validate:"omitempty,url"`
	// Digests are the digest tool definitions, in declaration order.
	Digests []Digest `toml:"digest" validate:"unique=Name,dive"`
}

// Digest defines a digest tool for a fixed channel.  If User is set, the
// digest contains only messages of that user.
type Digest struct {
	Name        string `toml:"name" validate:"required,toolname"`
	Title       string `toml:"title"`
	Channel     string `toml:"channel" validate:"required,slackid"`
	User        string `toml:"user" validate:"omitempty,slackid"`
	UserLabel   string `toml:"user_label"`
	Description string `toml:"description"`
	MaxResults  int    `toml:"max_results" validate:"omitempty,gte=1,lte=1000"`
}

// IsUserDigest returns true if the digest is filtered to a single user.
func (d Digest) IsUserDigest() bool {
	return d.User != ""
}

// DisplayTitle returns the title of the digest channel, falling back to the
// channel ID.
func (d Digest) DisplayTitle() string {
	if d.Title != "" {
		return d.Title
	}
	return d.Channel
}

// DisplayUser returns the label of the digest user, falling back to the user
// ID.
func (d Digest) DisplayUser() string {
	if d.UserLabel != "" {
		return d.UserLabel
	}
	return d.User
}

// Default returns the configuration with default values.
func Default() Config {
	return Config{
		Transport:  TransportStdio,
		Listen:     DefaultListen,
		MaxResults: DefaultMaxResults,
	}
}

// Load reads the TOML configuration file on top of the default
// configuration.  Unknown keys are treated as an error.
func Load(filename string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(filename, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		keys := make([]string, 0, len(undec))
		for _, k := range undec {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("%w: unknown keys in %s: %s", ErrInvalid, filename, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// Validate checks the configuration.  It returns ErrNoToken if the token is
// empty, and an error wrapping ErrInvalid with the human readable problems
// otherwise.
func (c *Config) Validate() error {
	if c.Token == "" {
		return ErrNoToken
	}
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, validation.Translate(err))
	}
	return nil
}

// Location returns the time zone for workday windows.
func (c *Config) Location() (*time.Location, error) {
	if c.TZ == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TZ)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid time zone %q: %s", ErrInvalid, c.TZ, err)
	}
	return loc, nil
}

// DigestMaxResults returns the maximum number of results for the digest d,
// falling back to the configuration default.
func (c *Config) DigestMaxResults(d Digest) int {
	if d.MaxResults > 0 {
		return d.MaxResults
	}
	if c.MaxResults > 0 {
		return c.MaxResults
	}
	return DefaultMaxResults
}
