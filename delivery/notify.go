package delivery

// Decision is the notification gate output for one materialized batch.
type Decision struct {
	PlaySound bool
	ShowBadge bool
}

// Notifier surfaces alert side effects decided by the gate.
type Notifier interface {
	Notify(sender string, decision Decision)
}

// Decide is the notification gate: a stateless policy evaluated once per
// materializer invocation. A brand-new contact always alerts; a known
// contact alerts only for genuinely new messages while its conversation is
// not the focused one.
func Decide(conversationActive bool, result Result) Decision {
	if result.CreatedContact {
		return Decision{PlaySound: true, ShowBadge: true}
	}
	if result.NewMessages > 0 && !conversationActive {
		return Decision{PlaySound: true, ShowBadge: true}
	}
	return Decision{}
}
