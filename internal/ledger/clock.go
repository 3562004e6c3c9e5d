package ledger

import "time"

// DateLayout is the calendar date format written into sections.
const DateLayout = "2006-01-02"

// Clock yields the local calendar date used for section dates. Dates are
// taken in Location, never in UTC, so a late-evening send is not recorded
// on the following day.
type Clock struct {
	Now      func() time.Time
	Location *time.Location
}

// NewClock returns a wall clock in loc.
func NewClock(loc *time.Location) Clock {
	return Clock{Now: time.Now, Location: loc}
}

// Time returns the current instant.
func (c Clock) Time() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// Today returns the current date in the clock's location.
func (c Clock) Today() string {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	return c.Time().In(loc).Format(DateLayout)
}
