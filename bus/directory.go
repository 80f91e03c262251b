package bus

import (
	"fmt"
	"net/url"
	"time"
)

// AnonymousIdentity is the placeholder identity before a user signs in.
// It is never seeded into the directory and never receives deliveries.
const AnonymousIdentity = "guest"

// DirectoryEntry is the shared public profile for one identity.
//
// Entries are created once when an identity first becomes active and are
// never overwritten by this core; they may be stale.
type DirectoryEntry struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar"`
	LastActive  int64  `json:"lastActive"`
}

// Registry is the shared lookup of public profile metadata by identity.
type Registry interface {
	// LookupUser returns the entry for a username, matching canonically.
	LookupUser(username string) (*DirectoryEntry, error)

	// UpsertUser seeds an entry. If the username already exists the call is
	// a no-op, so concurrent first-writes resolve to first-write-wins.
	UpsertUser(entry DirectoryEntry) error
}

// PlaceholderAvatar returns a deterministic avatar URI for an identity with
// no registered profile.
func PlaceholderAvatar(identity string) string {
	return "https://api.dicebear.com/9.x/initials/svg?seed=" + url.QueryEscape(Canonicalize(identity))
}

// SeedIdentity registers an identity in the directory right after it is
// first established locally. Missing profile fields are synthesized: the
// display name falls back to the username and the avatar to a deterministic
// placeholder. Re-seeding an existing identity is a no-op.
func SeedIdentity(registry Registry, username, displayName, avatar string) error {
	if Canonicalize(username) == "" {
		return fmt.Errorf("seed identity: username is required")
	}
	if displayName == "" {
		displayName = username
	}
	if avatar == "" {
		avatar = PlaceholderAvatar(username)
	}

	entry := DirectoryEntry{
		Username:    username,
		DisplayName: displayName,
		Avatar:      avatar,
		LastActive:  time.Now().UnixMilli(),
	}
	if err := registry.UpsertUser(entry); err != nil {
		return fmt.Errorf("seed identity %q: %w", username, err)
	}
	return nil
}
