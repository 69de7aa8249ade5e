package domain

import (
	"time"

	"github.com/google/uuid"
)

// Record is the persistent user record. Email is unique across all records;
// ID is generated server-side and never changes.
type Record struct {
	ID         uuid.UUID
	Username   string
	Email      string
	Credential Credential
	Reset      *PendingReset
	Profile    map[string]string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Credential is the authentication mode of a record. It is fixed at creation:
// a record is either a password account or an OAuth account, never both.
type Credential interface {
	authMode() string
}

// PasswordCredential marks a password account. Hash is an encoded one-way
// digest and is never returned to callers.
type PasswordCredential struct {
	Hash string
}

func (PasswordCredential) authMode() string { return "password" }

// OAuthCredential marks an account owned by an external identity provider.
type OAuthCredential struct {
	Provider string
}

func (OAuthCredential) authMode() string { return "oauth" }

// PendingReset exists only between reset-token issuance and its consumption
// or expiry. TokenHash and ExpiresAt are always set together.
type PendingReset struct {
	TokenHash string
	ExpiresAt time.Time
}

// Provider returns the owning provider name for OAuth accounts, or "" for
// password accounts.
func (r *Record) Provider() string {
	if c, ok := r.Credential.(OAuthCredential); ok {
		return c.Provider
	}
	return ""
}

// IsOAuth reports whether the record is an OAuth account.
func (r *Record) IsOAuth() bool {
	_, ok := r.Credential.(OAuthCredential)
	return ok
}

// PasswordHash returns the stored password digest, or "" for OAuth accounts.
func (r *Record) PasswordHash() string {
	if c, ok := r.Credential.(PasswordCredential); ok {
		return c.Hash
	}
	return ""
}

// HasPendingReset reports whether a reset window is open. Expiry is checked
// by the engine, not here.
func (r *Record) HasPendingReset() bool {
	return r.Reset != nil && r.Reset.TokenHash != ""
}
