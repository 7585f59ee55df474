package gisdb

import (
	"errors"
	"fmt"

	"github.com/hupe1980/gisdb/internal/format"
	"github.com/hupe1980/gisdb/internal/keymap"
)

var (
	// ErrNoItems is returned by Build when no item was added.
	ErrNoItems = errors.New("gisdb: no items to build")

	// ErrDuplicateName is returned by AddItem when an item with the same name
	// was already added and the duplicate policy is DuplicateReject.
	ErrDuplicateName = errors.New("gisdb: duplicate item name")

	// ErrCapacityExceeded is returned when the item count exceeds the largest
	// key map size or the file would not be addressable with int32 offsets.
	ErrCapacityExceeded = errors.New("gisdb: capacity exceeded")

	// ErrSchemaMismatch is returned when an item does not belong to the
	// builder's schema, or a file's record size does not match its schema.
	ErrSchemaMismatch = errors.New("gisdb: schema mismatch")

	// ErrUnknownSchema is returned by Open when no registered schema matches
	// the file's schema identifier.
	ErrUnknownSchema = errors.New("gisdb: unknown schema")

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("gisdb: k must be positive")

	// ErrClosed is returned by queries on a closed DB.
	ErrClosed = errors.New("gisdb: database is closed")

	// ErrCorrupt is matched by every structural error found in a file.
	ErrCorrupt = format.ErrCorrupt
)

// CorruptError describes a structural inconsistency in a database file:
// truncated sections, out-of-range offsets, non-terminating probe chains.
// It matches ErrCorrupt with errors.Is.
type CorruptError = format.CorruptError

// ErrUnknownSchemaID is returned when a file names a schema that is not
// registered. It matches ErrUnknownSchema.
type ErrUnknownSchemaID struct {
	ID string
}

func (e *ErrUnknownSchemaID) Error() string {
	return fmt.Sprintf("gisdb: unknown schema %q", e.ID)
}

func (e *ErrUnknownSchemaID) Unwrap() error { return ErrUnknownSchema }

// ErrItemType reports an item whose concrete type a schema cannot encode.
// It matches ErrSchemaMismatch.
type ErrItemType struct {
	Schema string
	Item   Item
}

func (e *ErrItemType) Error() string {
	return fmt.Sprintf("gisdb: schema %s cannot encode %T", e.Schema, e.Item)
}

func (e *ErrItemType) Unwrap() error { return ErrSchemaMismatch }

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, keymap.ErrCapacity) {
		return fmt.Errorf("%w: %w", ErrCapacityExceeded, err)
	}
	return err
}
