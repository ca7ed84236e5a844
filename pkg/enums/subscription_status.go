package enums

// SubscriptionStatus is the main subscription lifecycle. New subscriptions start paused.
type SubscriptionStatus string

const (
	SubscriptionStatusPaused    SubscriptionStatus = "paused"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

var validSubscriptionStatusValues = []SubscriptionStatus{
	SubscriptionStatusPaused,
	SubscriptionStatusActive,
	SubscriptionStatusCancelled,
}

func (v SubscriptionStatus) String() string { return string(v) }

// IsValid reports whether v is a known subscription status.
func (v SubscriptionStatus) IsValid() bool { return contains(validSubscriptionStatusValues, v) }

// ParseSubscriptionStatus converts raw input into a SubscriptionStatus.
func ParseSubscriptionStatus(value string) (SubscriptionStatus, error) {
	return parse(validSubscriptionStatusValues, "subscription status", value)
}
