package enums

// TransitionSource names the path that drove an order status change. It is
// carried on logs, metrics and outbox events.
type TransitionSource string

const (
	SourceCheckout TransitionSource = "checkout"
	SourceWebhook  TransitionSource = "webhook"
	SourcePoll     TransitionSource = "poll"
	SourceSweep    TransitionSource = "sweep"
	SourceUser     TransitionSource = "user"
)

// String implements fmt.Stringer.
func (s TransitionSource) String() string {
	return string(s)
}
