package syncer

import (
	"fmt"
	"time"
)

// Window is the inclusive [Since, Until] interval a sync run covers.
// Timestamps from the API are compared against it directly; the
// filter here is authoritative regardless of what the server was
// asked for.
type Window struct {
	Since time.Time
	Until time.Time
}

// DefaultWindow covers the trailing lookback period ending now.
func DefaultWindow(lookbackDays int) Window {
	now := time.Now().UTC()
	return Window{
		Since: now.AddDate(0, 0, -lookbackDays),
		Until: now,
	}
}

// NewWindow builds a window from explicit dates, normalizing the end
// to the last instant of its day.
func NewWindow(since, until time.Time) (Window, error) {
	if until.Before(since) {
		return Window{}, fmt.Errorf("window end %s is before start %s",
			until.Format("2006-01-02"), since.Format("2006-01-02"))
	}
	return Window{Since: since, Until: until}, nil
}

// ParseWindow parses YYYY-MM-DD bounds, as given on the command line.
func ParseWindow(since, until string) (Window, error) {
	start, err := time.Parse("2006-01-02", since)
	if err != nil {
		return Window{}, fmt.Errorf("invalid start date %q: %w", since, err)
	}
	end, err := time.Parse("2006-01-02", until)
	if err != nil {
		return Window{}, fmt.Errorf("invalid end date %q: %w", until, err)
	}
	end = end.Add(24*time.Hour - time.Second)
	return NewWindow(start.UTC(), end.UTC())
}

// Contains reports whether a timestamp falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Since) && !t.After(w.Until)
}

// Before reports whether a timestamp precedes the window entirely.
func (w Window) Before(t time.Time) bool {
	return t.Before(w.Since)
}

func (w Window) String() string {
	return fmt.Sprintf("%s..%s", w.Since.Format("2006-01-02"), w.Until.Format("2006-01-02"))
}
