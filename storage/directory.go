package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"chatrelay/bus"
)

// LookupUser fetches a directory entry by identity, matching canonically.
func (s *Store) LookupUser(username string) (*bus.DirectoryEntry, error) {
	key := bus.Canonicalize(username)
	if key == "" {
		return nil, errors.New("username is required")
	}

	var entry bus.DirectoryEntry
	err := s.db.QueryRow(
		`SELECT
			username,
			display_name,
			avatar,
			last_active
		FROM directory
		WHERE username = ?`,
		key,
	).Scan(
		&entry.Username,
		&entry.DisplayName,
		&entry.Avatar,
		&entry.LastActive,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup user %q: %w", username, err)
	}

	return &entry, nil
}

// UpsertUser seeds a directory entry, keyed by the canonical identity.
//
// An existing entry is left untouched: concurrent first-writes racing for
// the same new identity resolve to first-write-wins, and profile content is
// never mutated by this core afterwards.
func (s *Store) UpsertUser(entry bus.DirectoryEntry) error {
	key := bus.Canonicalize(entry.Username)
	if key == "" {
		return errors.New("username is required")
	}
	if entry.LastActive == 0 {
		entry.LastActive = nowUnixMilli()
	}

	_, err := s.db.Exec(
		`INSERT INTO directory (
			username,
			display_name,
			avatar,
			last_active
		) VALUES (?, ?, ?, ?)
		ON CONFLICT(username) DO NOTHING`,
		key,
		entry.DisplayName,
		entry.Avatar,
		entry.LastActive,
	)
	if err != nil {
		return fmt.Errorf("upsert user %q: %w", entry.Username, err)
	}

	return nil
}
