package storage

import (
	"errors"
	"fmt"

	"chatrelay/bus"
)

// AppendEnvelope durably records one envelope in the shared log.
//
// A re-append of an already stored id is a no-op: envelopes are immutable,
// so the stored row is never replaced. Storage failures propagate to the
// caller.
func (s *Store) AppendEnvelope(env bus.Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}
	if env.Timestamp == 0 {
		env.Timestamp = nowUnixMilli()
	}

	_, err := s.db.Exec(
		`INSERT INTO envelopes (
			id,
			from_user,
			to_user,
			to_key,
			content,
			content_type,
			timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		env.ID,
		env.From,
		env.To,
		bus.Canonicalize(env.To),
		env.Content,
		env.Type,
		env.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append envelope %q: %w", env.ID, err)
	}

	return nil
}

// ScanEnvelopes returns all envelopes addressed to the canonical recipient
// key. Rows that no longer fit the envelope shape are skipped so one bad
// record cannot poison a whole batch.
func (s *Store) ScanEnvelopes(key string) ([]bus.Envelope, error) {
	if key == "" {
		return nil, errors.New("recipient key is required")
	}

	rows, err := s.db.Query(
		`SELECT
			id,
			from_user,
			to_user,
			content,
			content_type,
			timestamp
		FROM envelopes
		WHERE to_key = ?`,
		key,
	)
	if err != nil {
		return nil, fmt.Errorf("scan envelopes for %q: %w", key, err)
	}
	defer rows.Close()

	envelopes := make([]bus.Envelope, 0)
	for rows.Next() {
		var env bus.Envelope
		if err := rows.Scan(
			&env.ID,
			&env.From,
			&env.To,
			&env.Content,
			&env.Type,
			&env.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan envelope row: %w", err)
		}
		if env.Validate() != nil {
			continue
		}
		envelopes = append(envelopes, env)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate envelope rows: %w", err)
	}

	return envelopes, nil
}

// CountEnvelopes returns the total number of stored envelopes.
func (s *Store) CountEnvelopes() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM envelopes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count envelopes: %w", err)
	}
	return count, nil
}
