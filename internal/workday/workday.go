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

// Package workday resolves the time window of "the previous business day",
// or of an explicitly requested calendar day.  All functions are pure: the
// current time is always passed in by the caller.
package workday

import (
	"errors"
	"fmt"
	"time"

	"github.com/rusq/slackmcp/internal/slackts"
)

const (
	// DateLayout is the layout of the explicit date override.
	DateLayout = "2006-01-02"
	// AllTimeLabel is the label of the unbounded window.
	AllTimeLabel = "all time"

	// labelLayout mimics the en-US short date form, i.e. 10/16/2026.
	labelLayout = "1/2/2006"
)

// ErrInvalidDate is returned when the date override can't be parsed.
var ErrInvalidDate = errors.New("invalid date")

// Window is the time window of a single calendar day.  Oldest and Latest
// are epoch seconds, as accepted by conversations.history.  Empty Oldest
// and Latest mean that the window is unbounded.
type Window struct {
	Oldest string
	Latest string
	Label  string

	From time.Time // zero for unbounded window
	To   time.Time // zero for unbounded window
}

// Bounded returns true if the window has both bounds set.
func (w Window) Bounded() bool {
	return w.Oldest != "" && w.Latest != ""
}

// DaysBack returns the number of calendar days to step back from the
// weekday wd to land on the previous business day.  Weekends and Monday
// land on Friday.
func DaysBack(wd time.Weekday) int {
	switch wd {
	case time.Monday:
		return 3
	case time.Sunday:
		return 2
	default: // Saturday and Tuesday to Friday
		return 1
	}
}

// Previous returns the window of the business day preceding now, in the
// location of now.  The label is the weekday name of the target day.
func Previous(now time.Time) Window {
	target := now.AddDate(0, 0, -DaysBack(now.Weekday()))
	w := day(target)
	w.Label = target.Weekday().String()
	return w
}

// ForDate returns the window of the calendar day given as YYYY-MM-DD in the
// location loc.  If loc is nil, time.Local is used.
func ForDate(date string, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %q, expected YYYY-MM-DD", ErrInvalidDate, date)
	}
	w := day(t)
	w.Label = t.Format(labelLayout)
	return w, nil
}

// AllTime returns the unbounded window.
func AllTime() Window {
	return Window{Label: AllTimeLabel}
}

// Options control Resolve.
type Options struct {
	// AllTime requests the unbounded window, and takes precedence over
	// Date.
	AllTime bool
	// Date is an optional explicit day in YYYY-MM-DD format, interpreted
	// in the location of now.
	Date string
}

// Resolve picks the window according to opt: unbounded if AllTime is set,
// the day given by Date if it is not empty, otherwise the previous business
// day relative to now.
func Resolve(now time.Time, opt Options) (Window, error) {
	switch {
	case opt.AllTime:
		return AllTime(), nil
	case opt.Date != "":
		return ForDate(opt.Date, now.Location())
	default:
		return Previous(now), nil
	}
}

// day returns the window spanning [00:00:00.000, 23:59:59.999] of the
// calendar day of t, in t's location.
func day(t time.Time) Window {
	y, m, d := t.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	to := time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
	return Window{
		Oldest: slackts.Epoch(from),
		Latest: slackts.Epoch(to),
		From:   from,
		To:     to,
	}
}
