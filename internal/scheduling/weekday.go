package scheduling

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/angelmondragon/hydrofarm-backend/pkg/enums"
)

var weekdayNames = map[string]time.Weekday{
	"domingo": time.Sunday, "dom": time.Sunday, "sunday": time.Sunday, "sun": time.Sunday,
	"segunda": time.Monday, "seg": time.Monday, "monday": time.Monday, "mon": time.Monday,
	"terca": time.Tuesday, "ter": time.Tuesday, "tuesday": time.Tuesday, "tue": time.Tuesday,
	"quarta": time.Wednesday, "qua": time.Wednesday, "wednesday": time.Wednesday, "wed": time.Wednesday,
	"quinta": time.Thursday, "qui": time.Thursday, "thursday": time.Thursday, "thu": time.Thursday,
	"sexta": time.Friday, "sex": time.Friday, "friday": time.Friday, "fri": time.Friday,
	"sabado": time.Saturday, "sab": time.Saturday, "saturday": time.Saturday, "sat": time.Saturday,
}

var frequencyNames = map[string]enums.Frequency{
	"diaria": enums.FrequencyDaily, "diario": enums.FrequencyDaily, "daily": enums.FrequencyDaily,
	"semanal": enums.FrequencyWeekly, "weekly": enums.FrequencyWeekly,
	"quinzenal": enums.FrequencyBiweekly, "biweekly": enums.FrequencyBiweekly,
	"mensal": enums.FrequencyMonthly, "monthly": enums.FrequencyMonthly,
}

// fold lowercases s and strips diacritics, so "Terça" and "terca" compare equal.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// ParseWeekday accepts Portuguese names (with or without accents and the
// "-feira" suffix) and English names.
func ParseWeekday(name string) (time.Weekday, bool) {
	key := fold(name)
	key = strings.TrimSuffix(key, "-feira")
	key = strings.TrimSuffix(key, " feira")
	day, ok := weekdayNames[strings.TrimSpace(key)]
	return day, ok
}

// ParseWeekdays resolves names in order, dropping unknown and repeated days.
func ParseWeekdays(names []string) []time.Weekday {
	var out []time.Weekday
	seen := map[time.Weekday]bool{}
	for _, name := range names {
		day, ok := ParseWeekday(name)
		if !ok || seen[day] {
			continue
		}
		seen[day] = true
		out = append(out, day)
	}
	return out
}

// ParseFrequency maps localized or canonical cadence names to a Frequency.
func ParseFrequency(name string) (enums.Frequency, bool) {
	f, ok := frequencyNames[fold(name)]
	return f, ok
}
