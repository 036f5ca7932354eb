// Package storage provides the two key/value scopes the identity store works
// against, mirroring a browser profile:
//
//   - the durable scope (SQLiteScope) lives in an SQLite file shared by every
//     process that opens it, like localStorage is shared by all tabs;
//   - the tab-local scope (MemoryScope) lives in process memory and is gone
//     when the process exits, like sessionStorage.
//
// All failures of the underlying medium are reported wrapped so that
// errors.Is(err, common.ErrStorageUnavailable) holds.
package storage

import "context"

// UpdateFunc receives the current value of a key (nil when absent) and
// returns the value to store. Returning a nil value deletes the key;
// returning an error aborts the update and leaves storage untouched.
type UpdateFunc func(current []byte) ([]byte, error)

// Scope is a key/value storage scope.
type Scope interface {
	// Get returns the stored value, or (nil, nil) when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Update performs an atomic read-modify-write of key.
	Update(ctx context.Context, key string, fn UpdateFunc) error
}
