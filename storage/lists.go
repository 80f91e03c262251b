package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"chatrelay/bus"
	"chatrelay/models"
)

// Contact and group lists are owned by exactly one identity: only the
// instance running as that identity ever reads or writes its row, so a
// plain read-modify-write over the JSON payload is race-free.

// LoadContacts returns the contact list owned by identity. An absent row is
// an empty list; a corrupt payload is returned as an empty list together
// with an ErrCorruptPayload-wrapped error.
func (s *Store) LoadContacts(owner string) ([]models.Contact, error) {
	var contacts []models.Contact
	err := s.loadList("contact_lists", owner, &contacts)
	if contacts == nil {
		contacts = []models.Contact{}
	}
	return contacts, err
}

// SaveContacts replaces the contact list owned by identity.
func (s *Store) SaveContacts(owner string, contacts []models.Contact) error {
	return s.saveList("contact_lists", owner, contacts)
}

// LoadGroups returns the group list owned by identity, with the same
// absent/corrupt semantics as LoadContacts.
func (s *Store) LoadGroups(owner string) ([]models.Group, error) {
	var groups []models.Group
	err := s.loadList("group_lists", owner, &groups)
	if groups == nil {
		groups = []models.Group{}
	}
	return groups, err
}

// SaveGroups replaces the group list owned by identity.
func (s *Store) SaveGroups(owner string, groups []models.Group) error {
	return s.saveList("group_lists", owner, groups)
}

func (s *Store) loadList(table, owner string, out any) error {
	key := bus.Canonicalize(owner)
	if key == "" {
		return errors.New("owner is required")
	}

	var payload string
	err := s.db.QueryRow(
		`SELECT payload FROM `+table+` WHERE owner = ?`, key,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("load %s for %q: %w", table, owner, err)
	}

	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("parse %s for %q: %w: %v", table, owner, ErrCorruptPayload, err)
	}

	return nil
}

func (s *Store) saveList(table, owner string, list any) error {
	key := bus.Canonicalize(owner)
	if key == "" {
		return errors.New("owner is required")
	}

	payload, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("marshal %s for %q: %w", table, owner, err)
	}

	_, err = s.db.Exec(
		`INSERT INTO `+table+` (owner, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(owner) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		key,
		string(payload),
		nowUnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save %s for %q: %w", table, owner, err)
	}

	return nil
}
