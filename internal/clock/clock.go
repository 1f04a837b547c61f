package clock

import (
	"fmt"
	"time"
)

// DayFormat is the calendar-day key format used by the activity ledger.
const DayFormat = "2006-01-02"

// Clock supplies the current time and the calendar day in the service's
// configured time zone. The ledger itself never converts time zones; it
// trusts the day key handed to it.
type Clock interface {
	Now() time.Time
	Today() string
}

type systemClock struct {
	loc *time.Location
}

// New returns a Clock pinned to the named time zone, e.g. "UTC" or
// "Asia/Karachi".
func New(timeZone string) (Clock, error) {
	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", timeZone, err)
	}
	return &systemClock{loc: loc}, nil
}

func (c *systemClock) Now() time.Time { return time.Now().In(c.loc) }

func (c *systemClock) Today() string { return c.Now().Format(DayFormat) }

// Fixed is a Clock frozen at a single instant, for tests.
type Fixed struct {
	T time.Time
}

func (f Fixed) Now() time.Time { return f.T }

func (f Fixed) Today() string { return f.T.Format(DayFormat) }
