// Package store persists user records in a single flat collection keyed by
// record ID, with a unique constraint on email.
package store

import (
	"context"
	"regexp"

	"github.com/google/uuid"

	"github.com/corvohq/simple-identity/pkg/domain"
)

// Well-known field names addressable in a partial update. Any other name
// addresses an extension field in the profile document. A nil value clears
// the field.
const (
	FieldUsername         = "username"
	FieldPasswordHash     = "password_hash"
	FieldProvider         = "provider"
	FieldResetTokenHash   = "reset_token_hash"
	FieldResetTokenExpiry = "reset_token_expiry"
)

// Fields is a partial update: field name to new value. Each Update call is
// all-or-nothing for the fields given.
type Fields map[string]any

// Store is the record persistence contract.
//
// Insert is conditional on email uniqueness: it fails with
// domain.ErrDuplicateEmail if any record already holds the email, so a
// concurrent duplicate registration loses at the store rather than slipping
// past a scan-then-insert check.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*domain.Record, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Record, error)
	Insert(ctx context.Context, rec *domain.Record) error
	Update(ctx context.Context, id uuid.UUID, fields Fields) error
	Delete(ctx context.Context, id uuid.UUID) error
}

var collectionNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateCollectionName rejects names that are not plain SQL identifiers.
// An invalid collection name is a configuration error, surfaced once at
// store construction rather than per call.
func ValidateCollectionName(name string) error {
	if !collectionNameRe.MatchString(name) {
		return domain.ErrInvalidCollection
	}
	return nil
}
