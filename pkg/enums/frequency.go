package enums

// Frequency is the canonical delivery cadence of a recurring subscription.
type Frequency string

const (
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiweekly Frequency = "biweekly"
	FrequencyMonthly  Frequency = "monthly"
)

var validFrequencyValues = []Frequency{
	FrequencyDaily,
	FrequencyWeekly,
	FrequencyBiweekly,
	FrequencyMonthly,
}

func (v Frequency) String() string { return string(v) }

// IsValid reports whether v is a known frequency.
func (v Frequency) IsValid() bool { return contains(validFrequencyValues, v) }

// ParseFrequency converts raw input into a Frequency.
func ParseFrequency(value string) (Frequency, error) {
	return parse(validFrequencyValues, "frequency", value)
}
