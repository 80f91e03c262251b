package models

import "chatrelay/bus"

// Group is a local group conversation. Admins is always a subset of
// Members; membership changes keep the two sets consistent in one update.
type Group struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Members  []string      `json:"members"`
	Admins   []string      `json:"admins"`
	Messages []ChatMessage `json:"messages"`
}

// IsMember reports whether identity is currently a group member.
func (g *Group) IsMember(identity string) bool {
	return containsIdentity(g.Members, identity)
}

// IsAdmin reports whether identity is currently a group admin.
func (g *Group) IsAdmin(identity string) bool {
	return containsIdentity(g.Admins, identity)
}

// AddMember adds identity to the member set. No-op if already present.
func (g *Group) AddMember(identity string) {
	if !g.IsMember(identity) {
		g.Members = append(g.Members, identity)
	}
}

// RemoveMember removes identity from both Members and Admins in the same
// update, so a leaver never lingers in the admin set.
func (g *Group) RemoveMember(identity string) {
	g.Members = removeIdentity(g.Members, identity)
	g.Admins = removeIdentity(g.Admins, identity)
}

func containsIdentity(identities []string, identity string) bool {
	key := bus.Canonicalize(identity)
	for _, candidate := range identities {
		if bus.Canonicalize(candidate) == key {
			return true
		}
	}
	return false
}

func removeIdentity(identities []string, identity string) []string {
	key := bus.Canonicalize(identity)
	kept := identities[:0]
	for _, candidate := range identities {
		if bus.Canonicalize(candidate) != key {
			kept = append(kept, candidate)
		}
	}
	return kept
}
