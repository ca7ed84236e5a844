package scheduling

import (
	"math"
	"strings"
	"time"

	"github.com/angelmondragon/hydrofarm-backend/pkg/enums"
)

// Counts holds the configured monthly delivery count per frequency.
type Counts struct {
	Daily    int
	Weekly   int
	Biweekly int
	Monthly  int
}

func DefaultCounts() Counts {
	return Counts{Daily: 20, Weekly: 4, Biweekly: 2, Monthly: 1}
}

// Settings is the snapshot of configuration the calculator needs.
type Settings struct {
	CutoffMinutes int
	Calendar      Calendar
	Counts        Counts
	Location      *time.Location
	Windows       map[string]string
}

// DefaultSettings mirrors the defaults of the settings store.
func DefaultSettings() Settings {
	return Settings{
		CutoffMinutes: 12 * 60,
		Calendar:      NewCalendar(nil, nil),
		Counts:        DefaultCounts(),
		Location:      time.UTC,
		Windows: map[string]string{
			WindowMorning:   "08:00-12:00",
			WindowAfternoon: "13:00-18:00",
		},
	}
}

func (s Settings) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// KnownWindow reports whether w names a configured window or is an HH:MM-HH:MM
// range inside one. With no windows configured every value is known.
func (s Settings) KnownWindow(w string) bool {
	if len(s.Windows) == 0 {
		return true
	}
	if _, ok := s.Windows[w]; ok {
		return true
	}
	from, to, ok := parseRange(w)
	if !ok {
		return false
	}
	for _, r := range s.Windows {
		if start, end, ok := parseRange(r); ok && from >= start && to <= end {
			return true
		}
	}
	return false
}

func parseRange(value string) (int, int, bool) {
	from, to, ok := strings.Cut(strings.TrimSpace(value), "-")
	if !ok {
		return 0, 0, false
	}
	start, err := ParseClock(strings.TrimSpace(from))
	if err != nil {
		return 0, 0, false
	}
	end, err := ParseClock(strings.TrimSpace(to))
	if err != nil || end <= start {
		return 0, 0, false
	}
	return start, end, true
}

// NextBusinessDay returns the first date on or after date that is a business
// day. The scan is bounded; on exhaustion the input day is returned.
func NextBusinessDay(date time.Time, cal Calendar) time.Time {
	start := Day(date)
	d := start
	for i := 0; i < maxBusinessDayScan; i++ {
		if cal.IsBusinessDay(d) {
			return d
		}
		d = d.AddDate(0, 0, 1)
	}
	return start
}

// OrderDeliveryDate picks the delivery day and window of a one-time order.
// Confirmations at or before the cutoff land on the same day in the
// afternoon, later ones on the next day in the morning; both are then moved
// to a business day. A non-empty supplied window is kept as is.
func OrderDeliveryDate(confirmedAt time.Time, s Settings, suppliedWindow string) (time.Time, string) {
	local := confirmedAt.In(s.location())
	minute := local.Hour()*60 + local.Minute()

	candidate, window := Day(local), WindowAfternoon
	if minute > s.CutoffMinutes {
		candidate, window = candidate.AddDate(0, 0, 1), WindowMorning
	}
	if w := strings.TrimSpace(suppliedWindow); w != "" {
		window = w
	}
	return NextBusinessDay(candidate, s.Calendar), window
}

// TargetWeekdays resolves the weekdays a subscription delivers on: the custom
// set when it names at least one day, else the single weekday, else Monday.
func TargetWeekdays(weekday string, custom []string) []time.Weekday {
	if days := ParseWeekdays(custom); len(days) > 0 {
		return days
	}
	if day, ok := ParseWeekday(weekday); ok {
		return []time.Weekday{day}
	}
	return []time.Weekday{time.Monday}
}

// DeliveryTargets is TargetWeekdays with one extra rule: a daily subscription
// without a custom set delivers on every business weekday.
func DeliveryTargets(freq *enums.Frequency, weekday string, custom []string, cal Calendar) []time.Weekday {
	if freq != nil && *freq == enums.FrequencyDaily && len(ParseWeekdays(custom)) == 0 {
		return cal.BusinessDays()
	}
	return TargetWeekdays(weekday, custom)
}

// NextSubscriptionDeliveryDate returns the first target weekday after today
// within a week, or today + 7 days.
func NextSubscriptionDeliveryDate(now time.Time, weekday string, custom []string) time.Time {
	return nextMatching(now, TargetWeekdays(weekday, custom))
}

// MonthlyDeliveryDates collects up to count target weekdays from tomorrow
// within a 35-day horizon.
func MonthlyDeliveryDates(now time.Time, weekday string, custom []string, count int) []time.Time {
	return datesMatching(now, TargetWeekdays(weekday, custom), count)
}

// MonthlyDeliveryCount returns how many deliveries one billing cycle covers.
func MonthlyDeliveryCount(freq *enums.Frequency, custom []string, counts Counts) int {
	if days := ParseWeekdays(custom); len(days) > 0 {
		return int(math.Round(float64(len(days)) * weeksPerMonth))
	}
	if freq == nil {
		return 1
	}
	switch *freq {
	case enums.FrequencyDaily:
		return counts.Daily
	case enums.FrequencyWeekly:
		return counts.Weekly
	case enums.FrequencyBiweekly:
		return counts.Biweekly
	case enums.FrequencyMonthly:
		return counts.Monthly
	}
	return 1
}

func nextMatching(now time.Time, targets []time.Weekday) time.Time {
	today := Day(now)
	for i := 1; i <= subscriptionScan; i++ {
		d := today.AddDate(0, 0, i)
		if containsWeekday(targets, d.Weekday()) {
			return d
		}
	}
	return today.AddDate(0, 0, subscriptionScan)
}

func datesMatching(now time.Time, targets []time.Weekday, count int) []time.Time {
	if count <= 0 {
		return nil
	}
	today := Day(now)
	out := make([]time.Time, 0, count)
	for i := 1; i <= monthlyHorizonDays && len(out) < count; i++ {
		d := today.AddDate(0, 0, i)
		if containsWeekday(targets, d.Weekday()) {
			out = append(out, d)
		}
	}
	return out
}

func containsWeekday(days []time.Weekday, d time.Weekday) bool {
	for _, candidate := range days {
		if candidate == d {
			return true
		}
	}
	return false
}
