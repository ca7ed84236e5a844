package enums

// RecurrenceStatus tracks the automatic-charge authorization granted by the payer's bank.
type RecurrenceStatus string

const (
	RecurrenceAwaitingAuthorization RecurrenceStatus = "awaiting_authorization"
	RecurrenceActive                RecurrenceStatus = "active"
	RecurrenceRejected              RecurrenceStatus = "rejected"
	RecurrenceCancelled             RecurrenceStatus = "cancelled"
	RecurrenceChargeFailed          RecurrenceStatus = "charge_failed"
)

var validRecurrenceStatusValues = []RecurrenceStatus{
	RecurrenceAwaitingAuthorization,
	RecurrenceActive,
	RecurrenceRejected,
	RecurrenceCancelled,
	RecurrenceChargeFailed,
}

func (v RecurrenceStatus) String() string { return string(v) }

// IsValid reports whether v is a known recurrence status.
func (v RecurrenceStatus) IsValid() bool { return contains(validRecurrenceStatusValues, v) }

// ParseRecurrenceStatus converts raw input into a RecurrenceStatus.
func ParseRecurrenceStatus(value string) (RecurrenceStatus, error) {
	return parse(validRecurrenceStatusValues, "recurrence status", value)
}
