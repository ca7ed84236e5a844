package enums

// PaymentMethod selects which provider rail settles an order or subscription.
type PaymentMethod string

const (
	PaymentMethodInstant PaymentMethod = "instant_payment"
	PaymentMethodCard    PaymentMethod = "card"
)

var validPaymentMethodValues = []PaymentMethod{
	PaymentMethodInstant,
	PaymentMethodCard,
}

func (v PaymentMethod) String() string { return string(v) }

// IsValid reports whether v is a known payment method.
func (v PaymentMethod) IsValid() bool { return contains(validPaymentMethodValues, v) }

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return parse(validPaymentMethodValues, "payment method", value)
}
