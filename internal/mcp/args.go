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

// In this file: typed argument binding.

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/rusq/slackmcp/internal/config"
)

// reChannelName is the Slack channel naming rule.
var reChannelName = regexp.MustCompile(`^[a-z0-9_-]+$`)

// argValidation validates the typed tool arguments.  Errors name the fields
// as the client sees them.
var argValidation = config.NewValidation("json")

func init() {
	if err := argValidation.RegisterPattern("channelname", reChannelName,
		"Channel name can only contain lowercase letters, numbers, hyphens and underscores",
	); err != nil {
		panic(err)
	}
}

// bind returns the HandlerFunc that decodes the raw arguments into the value
// of type A, starting from defaults, validates it and calls fn.  Absent and
// null arguments keep their default values.
func bind[A any](defaults A, fn func(ctx context.Context, args A) (any, error)) HandlerFunc {
	return func(ctx context.Context, raw map[string]any) (any, error) {
		args := defaults
		if len(raw) > 0 {
			b, err := json.Marshal(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %s", ErrInvalidArguments, err)
			}
			if err := json.Unmarshal(b, &args); err != nil {
				return nil, fmt.Errorf("%w: %s", ErrInvalidArguments, err)
			}
		}
		if err := argValidation.Struct(args); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidArguments, argValidation.Translate(err))
		}
		return fn(ctx, args)
	}
}
