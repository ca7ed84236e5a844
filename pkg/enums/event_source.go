package enums

// EventSource records which entry point triggered a reconciliation.
type EventSource string

const (
	SourceWebhook     EventSource = "webhook"
	SourcePoll        EventSource = "poll"
	SourceStatusCheck EventSource = "status_check"
)

var validEventSourceValues = []EventSource{
	SourceWebhook,
	SourcePoll,
	SourceStatusCheck,
}

func (v EventSource) String() string { return string(v) }

// IsValid reports whether v is a known event source.
func (v EventSource) IsValid() bool { return contains(validEventSourceValues, v) }

// ParseEventSource converts raw input into a EventSource.
func ParseEventSource(value string) (EventSource, error) {
	return parse(validEventSourceValues, "event source", value)
}
