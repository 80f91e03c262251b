package delivery

import (
	"encoding/json"
	"sync"
	"testing"

	"chatrelay/bus"
	"chatrelay/models"
	"chatrelay/storage"
)

// memContacts is an in-memory ContactStore. Lists round-trip through JSON
// so callers never share backing slices with the "persisted" state.
type memContacts struct {
	lists   map[string][]models.Contact
	loadErr error
	saves   int
}

func newMemContacts() *memContacts {
	return &memContacts{lists: make(map[string][]models.Contact)}
}

func (m *memContacts) LoadContacts(owner string) ([]models.Contact, error) {
	if m.loadErr != nil {
		return []models.Contact{}, m.loadErr
	}
	return cloneList(m.lists[bus.Canonicalize(owner)]), nil
}

func (m *memContacts) SaveContacts(owner string, contacts []models.Contact) error {
	m.saves++
	m.lists[bus.Canonicalize(owner)] = cloneList(contacts)
	return nil
}

func cloneList(contacts []models.Contact) []models.Contact {
	payload, err := json.Marshal(contacts)
	if err != nil {
		panic(err)
	}
	cloned := []models.Contact{}
	if err := json.Unmarshal(payload, &cloned); err != nil {
		panic(err)
	}
	return cloned
}

// memRegistry is an in-memory bus.Registry with first-write-wins upserts.
type memRegistry struct {
	entries map[string]bus.DirectoryEntry
}

func newMemRegistry() *memRegistry {
	return &memRegistry{entries: make(map[string]bus.DirectoryEntry)}
}

func (m *memRegistry) LookupUser(username string) (*bus.DirectoryEntry, error) {
	entry, ok := m.entries[bus.Canonicalize(username)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &entry, nil
}

func (m *memRegistry) UpsertUser(entry bus.DirectoryEntry) error {
	key := bus.Canonicalize(entry.Username)
	if _, exists := m.entries[key]; !exists {
		m.entries[key] = entry
	}
	return nil
}

// memLog is an in-memory bus.Log. The mutex keeps it safe for tests that
// read counters while a poller goroutine scans.
type memLog struct {
	mu        sync.Mutex
	envelopes []bus.Envelope
	scanErr   error
	scans     int
}

func (m *memLog) AppendEnvelope(env bus.Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.envelopes {
		if existing.ID == env.ID {
			return nil
		}
	}
	m.envelopes = append(m.envelopes, env)
	return nil
}

func (m *memLog) ScanEnvelopes(key string) ([]bus.Envelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.scans++
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	matched := make([]bus.Envelope, 0)
	for _, env := range m.envelopes {
		if bus.Canonicalize(env.To) == key {
			matched = append(matched, env)
		}
	}
	return matched, nil
}

func (m *memLog) scanCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scans
}

type recordedAlert struct {
	sender   string
	decision Decision
}

type memNotifier struct {
	alerts []recordedAlert
}

func (m *memNotifier) Notify(sender string, decision Decision) {
	m.alerts = append(m.alerts, recordedAlert{sender: sender, decision: decision})
}

func textEnvelope(id, from, to, content string, timestamp int64) bus.Envelope {
	return bus.Envelope{
		ID:        id,
		From:      from,
		To:        to,
		Content:   content,
		Timestamp: timestamp,
		Type:      bus.TypeText,
	}
}

func messageIDs(t *testing.T, contact models.Contact) []string {
	t.Helper()

	ids := make([]string, 0, len(contact.Messages))
	for _, msg := range contact.Messages {
		ids = append(ids, msg.ID)
	}
	return ids
}
