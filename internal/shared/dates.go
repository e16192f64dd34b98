package shared

import (
	"fmt"
	"strings"
	"time"
)

// DateTimeLayout is the layout of start_date and end_date in fetch requests.
const DateTimeLayout = "2006-01-02 15:04:05"

// DefaultTimezone is used when upstream.timezone is not set.
const DefaultTimezone = "Asia/Kolkata"

// Window is a closed reporting range in epoch seconds.
type Window struct {
	Start int64
	End   int64
}

// ParseWindow parses start and end in loc and converts them to epoch seconds.
//
// Both values are required and end must not be before start.
func ParseWindow(start, end string, loc *time.Location) (Window, error) {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start == "" || end == "" {
		return Window{}, fmt.Errorf("%w: start_date and end_date are required", ErrMissingArgument)
	}
	if loc == nil {
		loc = time.UTC
	}

	from, err := time.ParseInLocation(DateTimeLayout, start, loc)
	if err != nil {
		return Window{}, fmt.Errorf("%w: start_date must be formatted as YYYY-MM-DD HH:MM:SS", ErrInvalidInput)
	}
	to, err := time.ParseInLocation(DateTimeLayout, end, loc)
	if err != nil {
		return Window{}, fmt.Errorf("%w: end_date must be formatted as YYYY-MM-DD HH:MM:SS", ErrInvalidInput)
	}
	if to.Before(from) {
		return Window{}, fmt.Errorf("%w: end_date is before start_date", ErrInvalidInput)
	}

	return Window{Start: from.Unix(), End: to.Unix()}, nil
}

// WindowEndingAt returns the window of length lookback ending at now, truncated to the second.
func WindowEndingAt(now time.Time, lookback time.Duration) Window {
	end := now.Truncate(time.Second)
	return Window{Start: end.Add(-lookback).Unix(), End: end.Unix()}
}

// Format renders both bounds in loc using [DateTimeLayout].
func (w Window) Format(loc *time.Location) (start, end string) {
	if loc == nil {
		loc = time.UTC
	}
	return time.Unix(w.Start, 0).In(loc).Format(DateTimeLayout), time.Unix(w.End, 0).In(loc).Format(DateTimeLayout)
}
