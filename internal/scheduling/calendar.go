package scheduling

import (
	"fmt"
	"time"
)

// Window labels assigned to one-time orders.
const (
	WindowMorning   = "morning"
	WindowAfternoon = "afternoon"
)

const (
	maxBusinessDayScan = 60
	subscriptionScan   = 7
	monthlyHorizonDays = 35
	weeksPerMonth      = 4.33
)

// Calendar answers whether a date is a business day.
type Calendar struct {
	businessDays map[time.Weekday]bool
	holidays     map[string]bool
}

// DefaultBusinessDays is Monday through Friday.
func DefaultBusinessDays() []time.Weekday {
	return []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
}

// NewCalendar builds a calendar. An empty weekday list means Monday-Friday.
// Holidays are YYYY-MM-DD strings; malformed entries never match any date.
func NewCalendar(businessDays []time.Weekday, holidays []string) Calendar {
	if len(businessDays) == 0 {
		businessDays = DefaultBusinessDays()
	}
	cal := Calendar{
		businessDays: make(map[time.Weekday]bool, len(businessDays)),
		holidays:     make(map[string]bool, len(holidays)),
	}
	for _, d := range businessDays {
		cal.businessDays[d] = true
	}
	for _, h := range holidays {
		cal.holidays[h] = true
	}
	return cal
}

func (c Calendar) IsHoliday(d time.Time) bool {
	return c.holidays[d.Format(time.DateOnly)]
}

func (c Calendar) IsBusinessDay(d time.Time) bool {
	days := c.businessDays
	if len(days) == 0 {
		return d.Weekday() != time.Saturday && d.Weekday() != time.Sunday && !c.IsHoliday(d)
	}
	return days[d.Weekday()] && !c.IsHoliday(d)
}

// BusinessDays lists the configured business weekdays from Sunday onward.
func (c Calendar) BusinessDays() []time.Weekday {
	if len(c.businessDays) == 0 {
		return DefaultBusinessDays()
	}
	var out []time.Weekday
	for d := time.Sunday; d <= time.Saturday; d++ {
		if c.businessDays[d] {
			out = append(out, d)
		}
	}
	return out
}

// Day truncates t to midnight in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ParseClock converts HH:MM into minutes after midnight.
func ParseClock(value string) (int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", value, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
