package reconcile

import (
	"github.com/angelmondragon/hydrofarm-backend/internal/payments"
	"github.com/angelmondragon/hydrofarm-backend/pkg/enums"
)

// NextRecurrenceOnAuthorization returns the recurrence fields implied by an
// authorization state. Created and unknown states never change anything; an
// expired authorization is recorded as cancelled.
func NextRecurrenceOnAuthorization(current enums.RecurrenceStatus, authorized bool, state payments.AuthState) (enums.RecurrenceStatus, bool, bool) {
	var (
		next      enums.RecurrenceStatus
		authorize bool
	)
	switch state {
	case payments.AuthApproved:
		next, authorize = enums.RecurrenceActive, true
	case payments.AuthRejected:
		next = enums.RecurrenceRejected
	case payments.AuthCancelled, payments.AuthExpired:
		next = enums.RecurrenceCancelled
	default:
		return current, authorized, false
	}
	return next, authorize, next != current || authorize != authorized
}

// NextOnRecurringCharge maps a recurring charge outcome to the subscription
// status, the recurrence status, and whether a delivery cycle is generated.
// An empty status means no change.
func NextOnRecurringCharge(state payments.ChargeState) (enums.SubscriptionStatus, enums.RecurrenceStatus, bool) {
	switch state {
	case payments.ChargeSettled:
		return enums.SubscriptionStatusActive, enums.RecurrenceActive, true
	case payments.ChargeFailed:
		return enums.SubscriptionStatusPaused, enums.RecurrenceChargeFailed, false
	default:
		return "", "", false
	}
}

func recurrenceOf(p *enums.RecurrenceStatus) enums.RecurrenceStatus {
	if p == nil {
		return ""
	}
	return *p
}
