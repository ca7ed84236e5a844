package payments

import "github.com/angelmondragon/hydrofarm-backend/pkg/pix"

// ChargeState is the normalized state of a single charge.
type ChargeState string

const (
	ChargePending            ChargeState = "pending"
	ChargeSettled            ChargeState = "settled"
	ChargeRemovedByPayee     ChargeState = "removed_by_payee"
	ChargeRemovedByProcessor ChargeState = "removed_by_processor"
	ChargeFailed             ChargeState = "failed"
	ChargeUnknown            ChargeState = "unknown"
)

// Removed reports whether the charge can no longer be paid.
func (s ChargeState) Removed() bool {
	return s == ChargeRemovedByPayee || s == ChargeRemovedByProcessor
}

// AuthState is the normalized state of a recurring-payment authorization.
type AuthState string

const (
	AuthCreated   AuthState = "created"
	AuthApproved  AuthState = "approved"
	AuthRejected  AuthState = "rejected"
	AuthCancelled AuthState = "cancelled"
	AuthExpired   AuthState = "expired"
	AuthUnknown   AuthState = "unknown"
)

// ChargeStateFromPix maps an immediate charge status.
func ChargeStateFromPix(status string) ChargeState {
	switch status {
	case pix.ChargeStatusActive:
		return ChargePending
	case pix.ChargeStatusCompleted:
		return ChargeSettled
	case pix.ChargeStatusRemovedByPayee:
		return ChargeRemovedByPayee
	case pix.ChargeStatusRemovedByPSP:
		return ChargeRemovedByProcessor
	default:
		return ChargeUnknown
	}
}

// AuthStateFromPix maps a recurrence authorization status.
func AuthStateFromPix(status string) AuthState {
	switch status {
	case pix.RecurrenceStatusCreated:
		return AuthCreated
	case pix.RecurrenceStatusApproved:
		return AuthApproved
	case pix.RecurrenceStatusRejected:
		return AuthRejected
	case pix.RecurrenceStatusCancelled:
		return AuthCancelled
	case pix.RecurrenceStatusExpired:
		return AuthExpired
	default:
		return AuthUnknown
	}
}

// RecurringChargeStateFromPix maps the status of a charge issued under a
// recurrence. Rejected, cancelled and expired all collapse to failed.
func RecurringChargeStateFromPix(status string) ChargeState {
	switch status {
	case pix.RecurrenceStatusCreated, pix.ChargeStatusActive:
		return ChargePending
	case pix.ChargeStatusCompleted:
		return ChargeSettled
	case pix.RecurrenceStatusRejected, pix.RecurrenceStatusCancelled, pix.RecurrenceStatusExpired:
		return ChargeFailed
	default:
		return ChargeUnknown
	}
}

// ParseAuthState accepts either a normalized or a provider status.
func ParseAuthState(raw string) AuthState {
	switch s := AuthState(raw); s {
	case AuthCreated, AuthApproved, AuthRejected, AuthCancelled, AuthExpired:
		return s
	}
	return AuthStateFromPix(raw)
}
