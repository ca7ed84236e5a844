package enums

// DeliveryStatus is the fulfilment axis, moved by operators after payment.
type DeliveryStatus string

const (
	DeliveryStatusAwaiting  DeliveryStatus = "awaiting"
	DeliveryStatusEnRoute   DeliveryStatus = "en_route"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusCancelled DeliveryStatus = "cancelled"
)

var validDeliveryStatusValues = []DeliveryStatus{
	DeliveryStatusAwaiting,
	DeliveryStatusEnRoute,
	DeliveryStatusDelivered,
	DeliveryStatusCancelled,
}

func (v DeliveryStatus) String() string { return string(v) }

// IsValid reports whether v is a known delivery status.
func (v DeliveryStatus) IsValid() bool { return contains(validDeliveryStatusValues, v) }

// ParseDeliveryStatus converts raw input into a DeliveryStatus.
func ParseDeliveryStatus(value string) (DeliveryStatus, error) {
	return parse(validDeliveryStatusValues, "delivery status", value)
}
