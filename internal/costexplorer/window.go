package costexplorer

import (
	"fmt"
	"time"

	"github.com/wescmx/aws/internal/clock"
)

const isoDate = "2006-01-02"

// Window is the half-open reporting period [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) StartDate() string { return w.Start.Format(isoDate) }
func (w Window) EndDate() string   { return w.End.Format(isoDate) }

// PreviousMonth returns the previous calendar month relative to the clock:
// [first day of previous month, first day of current month).
func PreviousMonth(c clock.Clock) Window {
	now := c.Now()
	currentMonthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Window{
		Start: currentMonthStart.AddDate(0, -1, 0),
		End:   currentMonthStart,
	}
}

// ParseWindow builds a window from explicit ISO dates. Both bounds must be
// set and start must precede end.
func ParseWindow(start, end string) (Window, error) {
	s, err := time.ParseInLocation(isoDate, start, time.UTC)
	if err != nil {
		return Window{}, fmt.Errorf("invalid window start %q: %w", start, err)
	}
	e, err := time.ParseInLocation(isoDate, end, time.UTC)
	if err != nil {
		return Window{}, fmt.Errorf("invalid window end %q: %w", end, err)
	}
	if !s.Before(e) {
		return Window{}, fmt.Errorf("window start %s must precede end %s", start, end)
	}
	return Window{Start: s, End: e}, nil
}

// ResolveWindow picks the explicit override when configured, falling back
// to the previous calendar month.
func ResolveWindow(start, end string, c clock.Clock) (Window, error) {
	if start == "" && end == "" {
		return PreviousMonth(c), nil
	}
	return ParseWindow(start, end)
}
