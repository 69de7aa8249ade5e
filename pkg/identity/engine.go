// Package identity implements the credential-lifecycle rules for user
// accounts: registration, authentication, OAuth sign-in, profile access,
// password change, and the token-based password reset protocol.
package identity

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/corvohq/simple-identity/pkg/domain"
	"github.com/corvohq/simple-identity/pkg/hash"
	"github.com/corvohq/simple-identity/pkg/store"
)

// identityFields are always retrievable, regardless of configuration.
var identityFields = []string{"user_id", "username", "email", "provider"}

// Config is the engine's immutable configuration, fixed at construction.
type Config struct {
	// MutableFields is the allow-list for SetProfile keys, matched
	// case-insensitively. Defaults to just "username".
	MutableFields []string

	// ResetTokenTTL is the reset-token validity window (default 1 hour).
	ResetTokenTTL time.Duration

	// AppBaseURL, when set, turns reset emails into links instead of raw
	// codes.
	AppBaseURL string
}

// Engine is the identity state machine. All methods resolve to exactly one
// terminal *domain.Error kind per call.
type Engine struct {
	store    store.Store
	hasher   *hash.Hasher
	notifier Notifier

	mutable     map[string]bool
	retrievable map[string]bool
	resetTTL    time.Duration
	baseURL     string

	now func() time.Time
}

// NewEngine creates an engine over the given store, hasher, and notifier.
func NewEngine(st store.Store, hasher *hash.Hasher, notifier Notifier, cfg Config) *Engine {
	mutableFields := cfg.MutableFields
	if len(mutableFields) == 0 {
		mutableFields = []string{store.FieldUsername}
	}

	mutable := make(map[string]bool, len(mutableFields))
	for _, f := range mutableFields {
		mutable[strings.ToLower(f)] = true
	}

	// The retrievable list is the mutable list plus the identity fields.
	retrievable := make(map[string]bool, len(mutable)+len(identityFields))
	for f := range mutable {
		retrievable[f] = true
	}
	for _, f := range identityFields {
		retrievable[f] = true
	}

	resetTTL := cfg.ResetTokenTTL
	if resetTTL <= 0 {
		resetTTL = time.Hour
	}

	return &Engine{
		store:       st,
		hasher:      hasher,
		notifier:    notifier,
		mutable:     mutable,
		retrievable: retrievable,
		resetTTL:    resetTTL,
		baseURL:     cfg.AppBaseURL,
		now:         time.Now,
	}
}

// RegisterResult is the payload returned by a successful registration.
type RegisterResult struct {
	UserID   uuid.UUID
	Username string
	Email    string
}

// Register creates a new password account.
func (e *Engine) Register(ctx context.Context, username, password, email string) (*RegisterResult, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, domain.InvalidInput("%v", err)
	}
	if password == "" {
		return nil, domain.InvalidInput("password is required")
	}
	email = NormalizeEmail(email)

	existing, err := e.store.FindByEmail(ctx, email)
	if err == nil {
		if existing.IsOAuth() {
			return nil, domain.Conflict("account already exists; sign in with %s", existing.Provider())
		}
		return nil, domain.Conflict("account already exists")
	}
	if !errors.Is(err, domain.ErrRecordNotFound) {
		return nil, domain.Internal("failed to look up account", err)
	}

	digest, err := e.hasher.Hash(password)
	if err != nil {
		return nil, domain.Internal("failed to hash password", err)
	}

	rec := &domain.Record{
		ID:         uuid.New(),
		Username:   username,
		Email:      email,
		Credential: domain.PasswordCredential{Hash: digest},
	}
	if err := e.store.Insert(ctx, rec); err != nil {
		// A concurrent registration can win between the lookup and the
		// insert; the store's uniqueness guarantee catches it here.
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, domain.Conflict("account already exists")
		}
		return nil, domain.Internal("failed to create account", err)
	}

	return &RegisterResult{UserID: rec.ID, Username: rec.Username, Email: rec.Email}, nil
}

// Authenticate verifies email and password and returns the account's ID.
// Unknown emails and wrong passwords fail identically so callers cannot
// probe for account existence.
func (e *Engine) Authenticate(ctx context.Context, email, password string) (uuid.UUID, error) {
	rec, err := e.store.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return uuid.Nil, domain.InvalidCredentials()
		}
		return uuid.Nil, domain.Internal("failed to look up account", err)
	}

	if rec.IsOAuth() {
		return uuid.Nil, domain.WrongProvider(rec.Provider())
	}

	if e.hasher.Verify(password, rec.PasswordHash()) {
		return rec.ID, nil
	}
	return uuid.Nil, domain.InvalidCredentials()
}

// AuthenticateOrRegisterOAuth signs in an OAuth account, creating it on
// first sign-in. The first provider to claim an email wins; later attempts
// with a different provider are rejected.
func (e *Engine) AuthenticateOrRegisterOAuth(ctx context.Context, username, provider, email string) (uuid.UUID, error) {
	if provider == "" {
		return uuid.Nil, domain.InvalidInput("provider is required")
	}
	if err := ValidateEmail(email); err != nil {
		return uuid.Nil, domain.InvalidInput("%v", err)
	}
	email = NormalizeEmail(email)

	rec, err := e.store.FindByEmail(ctx, email)
	if err == nil {
		if !rec.IsOAuth() {
			return uuid.Nil, domain.WrongMethod()
		}
		if rec.Provider() != provider {
			return uuid.Nil, domain.WrongProvider(rec.Provider())
		}
		// Idempotent sign-in.
		return rec.ID, nil
	}
	if !errors.Is(err, domain.ErrRecordNotFound) {
		return uuid.Nil, domain.Internal("failed to look up account", err)
	}

	newRec := &domain.Record{
		ID:         uuid.New(),
		Username:   username,
		Email:      email,
		Credential: domain.OAuthCredential{Provider: provider},
	}
	if err := e.store.Insert(ctx, newRec); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return uuid.Nil, domain.Conflict("account already exists")
		}
		return uuid.Nil, domain.Internal("failed to create account", err)
	}
	return newRec.ID, nil
}

// SetProfile updates allow-listed profile fields. The whole map is validated
// before anything is written; one disallowed key rejects the entire update.
func (e *Engine) SetProfile(ctx context.Context, userID uuid.UUID, fields map[string]string) error {
	if len(fields) == 0 {
		return domain.InvalidInput("no fields to update")
	}

	update := make(store.Fields, len(fields))
	for name, value := range fields {
		key := strings.ToLower(name)
		if !e.mutable[key] {
			return domain.InvalidInput("field %q is not updatable", name)
		}
		update[key] = value
	}

	if err := e.store.Update(ctx, userID, update); err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return domain.InvalidInput("unknown user")
		}
		return domain.Internal("failed to update profile", err)
	}
	return nil
}

// GetProfile reads the requested allow-listed fields. Requesting only fields
// that are unset on the record is an error naming those fields.
func (e *Engine) GetProfile(ctx context.Context, userID uuid.UUID, fields []string) (map[string]string, error) {
	if len(fields) == 0 {
		return nil, domain.InvalidInput("no fields requested")
	}

	keys := make([]string, 0, len(fields))
	for _, name := range fields {
		key := strings.ToLower(name)
		if !e.retrievable[key] {
			return nil, domain.InvalidInput("field %q is not readable", name)
		}
		keys = append(keys, key)
	}

	rec, err := e.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, domain.InvalidInput("unknown user")
		}
		return nil, domain.Internal("failed to read profile", err)
	}

	out := make(map[string]string, len(keys))
	var unset []string
	for _, key := range keys {
		if value := fieldValue(rec, key); value != "" {
			out[key] = value
		} else {
			unset = append(unset, key)
		}
	}
	if len(out) == 0 {
		sort.Strings(unset)
		return nil, domain.InvalidInput("fields not set: %s", strings.Join(unset, ", "))
	}
	return out, nil
}

func fieldValue(rec *domain.Record, key string) string {
	switch key {
	case "user_id":
		return rec.ID.String()
	case "username":
		return rec.Username
	case "email":
		return rec.Email
	case "provider":
		return rec.Provider()
	default:
		return rec.Profile[key]
	}
}

// ChangePassword re-authenticates with the old password and stores a hash of
// the new one.
func (e *Engine) ChangePassword(ctx context.Context, email, oldPassword, newPassword string) error {
	if newPassword == "" {
		return domain.InvalidInput("new password is required")
	}
	if newPassword == oldPassword {
		return domain.InvalidInput("new password must differ from the current password")
	}

	userID, err := e.Authenticate(ctx, email, oldPassword)
	if err != nil {
		if domain.KindOf(err) == domain.KindWrongProvider {
			return domain.Forbidden("password cannot be changed on an account managed by an identity provider")
		}
		return err
	}

	digest, err := e.hasher.Hash(newPassword)
	if err != nil {
		return domain.Internal("failed to hash password", err)
	}
	if err := e.store.Update(ctx, userID, store.Fields{store.FieldPasswordHash: digest}); err != nil {
		return domain.Internal("failed to update password", err)
	}
	return nil
}

// DeleteUser hard-deletes the record.
func (e *Engine) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	if err := e.store.Delete(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return domain.InvalidInput("unknown user")
		}
		return domain.Internal("failed to delete account", err)
	}
	return nil
}

// IssueResetToken opens a one-hour reset window for a password account and
// emails the single-use token. The token hash is durably stored before the
// email is sent, so a crash between the two costs a missed email, never an
// orphaned usable token. The plaintext token is returned to the direct
// caller only; the transport layer must never echo it.
func (e *Engine) IssueResetToken(ctx context.Context, email string) (string, error) {
	if err := ValidateEmail(email); err != nil {
		return "", domain.InvalidInput("%v", err)
	}

	rec, err := e.store.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return "", domain.InvalidInput("unknown email address")
		}
		return "", domain.Internal("failed to look up account", err)
	}
	if rec.IsOAuth() {
		return "", domain.Forbidden("account is managed by %s; it has no password to reset", rec.Provider())
	}

	token, err := generateResetToken()
	if err != nil {
		return "", domain.Internal("failed to generate reset token", err)
	}
	tokenHash, err := e.hasher.Hash(token)
	if err != nil {
		return "", domain.Internal("failed to hash reset token", err)
	}

	err = e.store.Update(ctx, rec.ID, store.Fields{
		store.FieldResetTokenHash:   tokenHash,
		store.FieldResetTokenExpiry: e.now().Add(e.resetTTL),
	})
	if err != nil {
		return "", domain.Internal("failed to store reset token", err)
	}

	subject, body := resetEmail(e.baseURL, token)
	if err := e.notifier.Send(rec.Email, subject, body); err != nil {
		return "", domain.Internal("failed to send reset email", err)
	}
	return token, nil
}

// ResetPassword consumes a reset token and replaces the account's password.
// An expired token is cleared as a side effect of the failed attempt; a
// merely wrong token leaves the pending reset in place.
func (e *Engine) ResetPassword(ctx context.Context, email, token, newPassword string) error {
	if err := ValidateEmail(email); err != nil {
		return domain.InvalidInput("%v", err)
	}
	if newPassword == "" {
		return domain.InvalidInput("new password is required")
	}

	rec, err := e.store.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return domain.InvalidInput("invalid or expired reset token")
		}
		return domain.Internal("failed to look up account", err)
	}
	if rec.IsOAuth() {
		return domain.Forbidden("account is managed by %s; it has no password to reset", rec.Provider())
	}

	if e.hasher.Verify(newPassword, rec.PasswordHash()) {
		return domain.InvalidInput("new password must differ from the current password")
	}

	if !rec.HasPendingReset() {
		return domain.InvalidInput("invalid or expired reset token")
	}

	if !e.now().Before(rec.Reset.ExpiresAt) {
		if err := e.clearReset(ctx, rec.ID); err != nil {
			return err
		}
		return domain.InvalidInput("invalid or expired reset token")
	}

	if !e.hasher.Verify(token, rec.Reset.TokenHash) {
		return domain.InvalidInput("invalid or expired reset token")
	}

	digest, err := e.hasher.Hash(newPassword)
	if err != nil {
		return domain.Internal("failed to hash password", err)
	}

	// New hash and reset-field clear are one logical update.
	err = e.store.Update(ctx, rec.ID, store.Fields{
		store.FieldPasswordHash:     digest,
		store.FieldResetTokenHash:   nil,
		store.FieldResetTokenExpiry: nil,
	})
	if err != nil {
		return domain.Internal("failed to update password", err)
	}

	// Notification failure fails the call even though the password is
	// already changed; callers rely on this coupling.
	subject, body := passwordChangedEmail()
	if err := e.notifier.Send(rec.Email, subject, body); err != nil {
		return domain.Internal("failed to send password changed notification", err)
	}
	return nil
}

func (e *Engine) clearReset(ctx context.Context, userID uuid.UUID) error {
	err := e.store.Update(ctx, userID, store.Fields{
		store.FieldResetTokenHash:   nil,
		store.FieldResetTokenExpiry: nil,
	})
	if err != nil {
		return domain.Internal("failed to invalidate reset token", err)
	}
	return nil
}
