package models

// Contact is the materialized view of one conversation partner, owned by a
// single local identity. IsRealUser becomes true once any inbound envelope
// has been attributed to the contact; contacts without it are simulated and
// answered by the reply generator instead of the shared log.
type Contact struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Username   string        `json:"username"`
	Avatar     string        `json:"avatar"`
	Status     string        `json:"status"`
	Bio        string        `json:"bio"`
	IsRealUser bool          `json:"isRealUser"`
	Messages   []ChatMessage `json:"messages"`
	IsBlocked  bool          `json:"isBlocked"`
}

// SeenMessageIDs returns the set of envelope ids already present in the
// contact history. This is the deduplication primitive shared by every
// merge path.
func (c *Contact) SeenMessageIDs() map[string]struct{} {
	seen := make(map[string]struct{}, len(c.Messages))
	for _, msg := range c.Messages {
		if msg.ID != "" {
			seen[msg.ID] = struct{}{}
		}
	}
	return seen
}
