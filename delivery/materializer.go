package delivery

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"chatrelay/bus"
	"chatrelay/models"
)

// ContactStore is the per-identity contact persistence collaborator. Loads
// and saves are read-modify-write consistent from the perspective of the
// one identity that owns the list.
type ContactStore interface {
	LoadContacts(owner string) ([]models.Contact, error)
	SaveContacts(owner string, contacts []models.Contact) error
}

// Result describes what one materialized batch changed, as input for the
// notification gate.
type Result struct {
	Sender         string
	NewMessages    int
	CreatedContact bool
}

// Materializer folds batches of inbound envelopes into the contact list of
// one local identity. Applying the same batch twice changes nothing:
// messages deduplicate on envelope id and contacts on canonical identity.
type Materializer struct {
	contacts ContactStore
	registry bus.Registry
	locks    *bus.SessionLocks
}

// NewMaterializer creates a materializer over the given collaborators.
// Locks must be the instance shared with every other contact-list writer
// for the same identity; nil creates a private set.
func NewMaterializer(contacts ContactStore, registry bus.Registry, locks *bus.SessionLocks) *Materializer {
	if locks == nil {
		locks = bus.NewSessionLocks()
	}
	return &Materializer{contacts: contacts, registry: registry, locks: locks}
}

// Apply merges one sender's batch into the contact list owned by owner.
//
// The merge holds the owner's session lock across the whole cycle, so a
// concurrent send for the same identity cannot interleave its own
// load-modify-save and lose either side's append.
func (m *Materializer) Apply(owner, sender string, batch []bus.Envelope) (Result, error) {
	result := Result{Sender: sender}
	if len(batch) == 0 {
		return result, nil
	}

	unlock := m.locks.Acquire(owner)
	defer unlock()

	contacts, err := m.contacts.LoadContacts(owner)
	if err != nil {
		return result, fmt.Errorf("load contacts for %q: %w", owner, err)
	}

	key := bus.Canonicalize(sender)
	index := findContact(contacts, key)

	if index >= 0 {
		contact := &contacts[index]
		unique := dedupEnvelopes(batch, contact.SeenMessageIDs())
		if len(unique) == 0 {
			return result, nil
		}

		contact.Messages = append(contact.Messages, toChatMessages(unique)...)
		contact.IsRealUser = true
		if err := m.contacts.SaveContacts(owner, contacts); err != nil {
			return result, fmt.Errorf("save contacts for %q: %w", owner, err)
		}

		result.NewMessages = len(unique)
		return result, nil
	}

	contact := m.bootstrapContact(sender)
	unique := dedupEnvelopes(batch, nil)
	contact.Messages = toChatMessages(unique)
	contacts = append(contacts, contact)
	if err := m.contacts.SaveContacts(owner, contacts); err != nil {
		return result, fmt.Errorf("save contacts for %q: %w", owner, err)
	}

	result.NewMessages = len(unique)
	result.CreatedContact = true
	return result, nil
}

// bootstrapContact synthesizes a contact for a sender with no existing
// record, enriched from the directory when a profile exists there.
func (m *Materializer) bootstrapContact(sender string) models.Contact {
	contact := models.Contact{
		ID:         uuid.NewString(),
		Name:       sender,
		Username:   sender,
		Avatar:     bus.PlaceholderAvatar(sender),
		IsRealUser: true,
	}

	// A missing entry and an unreadable directory get the same fallback:
	// the raw sender id with a placeholder avatar.
	entry, err := m.registry.LookupUser(sender)
	if err != nil || entry == nil {
		return contact
	}

	if entry.DisplayName != "" {
		contact.Name = entry.DisplayName
	}
	if entry.Avatar != "" {
		contact.Avatar = entry.Avatar
	}
	return contact
}

// findContact locates a contact whose username or name matches the
// canonical key. Two distinct senders collapsing to one key merge into the
// same contact; that is inherited behavior, kept as-is.
func findContact(contacts []models.Contact, key string) int {
	for i := range contacts {
		if bus.Canonicalize(contacts[i].Username) == key || bus.Canonicalize(contacts[i].Name) == key {
			return i
		}
	}
	return -1
}

// dedupEnvelopes drops envelopes whose id is already seen, including
// repeats inside the batch itself, and re-sorts the survivors by timestamp
// so history stays time-ordered even when scans deliver out of order.
func dedupEnvelopes(batch []bus.Envelope, seen map[string]struct{}) []bus.Envelope {
	if seen == nil {
		seen = make(map[string]struct{}, len(batch))
	}

	unique := make([]bus.Envelope, 0, len(batch))
	for _, env := range batch {
		if _, dup := seen[env.ID]; dup {
			continue
		}
		seen[env.ID] = struct{}{}
		unique = append(unique, env)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].Timestamp < unique[j].Timestamp
	})
	return unique
}

func toChatMessages(envelopes []bus.Envelope) []models.ChatMessage {
	messages := make([]models.ChatMessage, 0, len(envelopes))
	for _, env := range envelopes {
		msg := models.ChatMessage{
			ID:        env.ID,
			Role:      models.RoleModel,
			Timestamp: env.Timestamp,
		}
		switch env.Type {
		case bus.TypeImage, bus.TypeAudio:
			msg.Attachment = &models.Attachment{Type: env.Type, Data: env.Content}
		default:
			msg.Content = env.Content
		}
		messages = append(messages, msg)
	}
	return messages
}
