package enums

// Provider names the payment rail that produced an event.
type Provider string

const (
	ProviderPix    Provider = "pix"
	ProviderStripe Provider = "stripe"
	ProviderSystem Provider = "system"
)

var validProviderValues = []Provider{
	ProviderPix,
	ProviderStripe,
	ProviderSystem,
}

func (v Provider) String() string { return string(v) }

// IsValid reports whether v is a known provider.
func (v Provider) IsValid() bool { return contains(validProviderValues, v) }

// ParseProvider converts raw input into a Provider.
func ParseProvider(value string) (Provider, error) {
	return parse(validProviderValues, "provider", value)
}
