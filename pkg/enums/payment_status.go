package enums

// PaymentStatus is the payment axis of an order or a generated delivery.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusDeclined  PaymentStatus = "declined"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

var validPaymentStatusValues = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusConfirmed,
	PaymentStatusDeclined,
	PaymentStatusCancelled,
}

func (v PaymentStatus) String() string { return string(v) }

// IsValid reports whether v is a known payment status.
func (v PaymentStatus) IsValid() bool { return contains(validPaymentStatusValues, v) }

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	return parse(validPaymentStatusValues, "payment status", value)
}
