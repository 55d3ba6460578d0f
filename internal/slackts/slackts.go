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

// Package slackts converts between Slack message timestamps and time.Time.
//
// Slack timestamps are decimal strings: Unix seconds, a dot, and a
// microsecond part, e.g. "1609459200.000001".  They are unique per channel
// and are compared numerically.
package slackts

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrNotATimestamp is returned when the string is not a Slack timestamp.
var ErrNotATimestamp = errors.New("not a slack timestamp")

const fracDigits = 6

// Int converts a Slack timestamp to the number of microseconds since the
// epoch.  The fractional part may be shorter than six digits, and may be
// missing altogether.  Empty string converts to 0.
func Int(ts string) (int64, error) {
	if ts == "" {
		return 0, nil
	}
	hi, lo, _ := strings.Cut(ts, ".")
	if hi == "" || len(lo) > fracDigits {
		return 0, fmt.Errorf("%w: %q", ErrNotATimestamp, ts)
	}
	sec, err := strconv.ParseInt(hi, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotATimestamp, ts)
	}
	var usec int64
	if lo != "" {
		usec, err = strconv.ParseInt(lo+strings.Repeat("0", fracDigits-len(lo)), 10, 64)
		if err != nil || usec < 0 {
			return 0, fmt.Errorf("%w: %q", ErrNotATimestamp, ts)
		}
	}
	return sec*1_000_000 + usec, nil
}

// Time parses the Slack timestamp and returns the time in UTC.
func Time(ts string) (time.Time, error) {
	if ts == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrNotATimestamp)
	}
	n, err := Int(ts)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMicro(n).UTC(), nil
}

// Compare compares two Slack timestamps numerically and returns -1, 0 or
// +1.  Timestamps that fail to parse compare as zero.
func Compare(a, b string) int {
	x, _ := Int(a)
	y, _ := Int(b)
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

// Epoch formats t as Unix seconds with a millisecond fraction, omitting
// trailing zeroes: "1609459200" or "1609545599.999".  This is the format
// accepted by the oldest and latest parameters of conversations.history.
func Epoch(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixMilli())/1000, 'f', -1, 64)
}
