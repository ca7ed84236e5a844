package enums

// EntityType discriminates the payable aggregates.
type EntityType string

const (
	EntityOrder        EntityType = "order"
	EntitySubscription EntityType = "subscription"
)

var validEntityTypeValues = []EntityType{
	EntityOrder,
	EntitySubscription,
}

func (v EntityType) String() string { return string(v) }

// IsValid reports whether v is a known entity type.
func (v EntityType) IsValid() bool { return contains(validEntityTypeValues, v) }

// ParseEntityType converts raw input into a EntityType.
func ParseEntityType(value string) (EntityType, error) {
	return parse(validEntityTypeValues, "entity type", value)
}
