package storage

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested row does not exist.
	ErrNotFound = errors.New("storage: record not found")
	// ErrCorruptPayload indicates a stored list payload that no longer
	// parses. Callers receive an empty collection alongside this error and
	// may recover by rewriting the list.
	ErrCorruptPayload = errors.New("storage: corrupt payload")
)

func nowUnixMilli() int64 {
	return time.Now().UnixMilli()
}
