// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crosstalk Contributors

// Package record provides transactional document storage for the
// authorization engine. A Store maps string keys to JSON-shaped records;
// every mutation happens either through the auto-committed Store methods or
// inside a scoped transaction acquired with Update.
package record

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Record is a JSON-shaped document: values are strings, bools, numbers,
// []any, or nested map[string]any.
type Record = map[string]any

// Tx exposes read/modify/write access to a single store. Inside
// Store.Update the receiver is transaction-scoped; writes become visible to
// other callers only after the transaction commits.
type Tx interface {
	// Has reports whether a record exists under key.
	Has(ctx context.Context, key string) (bool, error)

	// Get retrieves the record under key. Returns ErrNotFound if absent.
	Get(ctx context.Context, key string) (Record, error)

	// Set stores rec under key, replacing any existing record.
	Set(ctx context.Context, key string, rec Record) error

	// Delete removes the record under key. Returns ErrNotFound if absent.
	Delete(ctx context.Context, key string) error

	// Len returns the number of records in the store.
	Len(ctx context.Context) (int, error)
}

// Store is a transactional record store. The non-transactional methods
// commit immediately; Update acquires exclusive access for the duration of
// fn and commits on nil return, rolling back otherwise.
type Store interface {
	Tx

	// Update runs fn inside a scoped transaction. The transaction is
	// released on every exit path; a non-nil error from fn discards all
	// writes and is returned unchanged.
	Update(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Marshal converts a struct into a Record via its JSON form.
func Marshal(v any) (Record, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, oops.Code("RECORD_MARSHAL_FAILED").Wrap(err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, oops.Code("RECORD_MARSHAL_FAILED").Wrap(err)
	}
	return rec, nil
}

// Unmarshal decodes a Record into v via its JSON form.
func Unmarshal(rec Record, v any) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return oops.Code("RECORD_UNMARSHAL_FAILED").Wrap(err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return oops.Code("RECORD_UNMARSHAL_FAILED").Wrap(err)
	}
	return nil
}

// Strings extracts a []string from a record value that may have been
// decoded from JSON as []any. Unknown shapes yield nil.
func Strings(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
