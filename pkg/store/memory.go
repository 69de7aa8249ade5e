package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/corvohq/simple-identity/pkg/domain"
)

// Memory is an in-process store used by tests and dev mode. It keeps an
// email index under the same mutex as the records, so Insert gives the same
// conditional-insert guarantee as the Postgres unique constraint.
type Memory struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*domain.Record
	byEmail map[string]uuid.UUID
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		records: make(map[uuid.UUID]*domain.Record),
		byEmail: make(map[string]uuid.UUID),
	}
}

// FindByEmail retrieves a record by email.
func (s *Memory) FindByEmail(ctx context.Context, email string) (*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return copyRecord(s.records[id]), nil
}

// FindByID retrieves a record by ID.
func (s *Memory) FindByID(ctx context.Context, id uuid.UUID) (*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return copyRecord(rec), nil
}

// Insert creates a new record, failing with domain.ErrDuplicateEmail if the
// email is already taken.
func (s *Memory) Insert(ctx context.Context, rec *domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[rec.Email]; taken {
		return domain.ErrDuplicateEmail
	}

	stored := copyRecord(rec)
	now := time.Now()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.records[stored.ID] = stored
	s.byEmail[stored.Email] = stored.ID
	return nil
}

// Update applies a partial update with the same field semantics as the
// Postgres adapter: well-known names address record fields, anything else
// the profile document, and nil clears.
func (s *Memory) Update(ctx context.Context, id uuid.UUID, fields Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return domain.ErrRecordNotFound
	}

	resetHash := ""
	var resetExpiry time.Time
	if rec.Reset != nil {
		resetHash = rec.Reset.TokenHash
		resetExpiry = rec.Reset.ExpiresAt
	}

	for name, value := range fields {
		switch name {
		case FieldUsername:
			rec.Username = stringValue(value)
		case FieldPasswordHash:
			rec.Credential = domain.PasswordCredential{Hash: stringValue(value)}
		case FieldProvider:
			rec.Credential = domain.OAuthCredential{Provider: stringValue(value)}
		case FieldResetTokenHash:
			resetHash = stringValue(value)
		case FieldResetTokenExpiry:
			if value == nil {
				resetExpiry = time.Time{}
			} else {
				resetExpiry = value.(time.Time)
			}
		default:
			if rec.Profile == nil {
				rec.Profile = make(map[string]string)
			}
			if value == nil {
				delete(rec.Profile, name)
			} else {
				rec.Profile[name] = fmt.Sprint(value)
			}
		}
	}

	if resetHash != "" {
		rec.Reset = &domain.PendingReset{TokenHash: resetHash, ExpiresAt: resetExpiry}
	} else {
		rec.Reset = nil
	}
	rec.UpdatedAt = time.Now()
	return nil
}

// Delete removes a record.
func (s *Memory) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return domain.ErrRecordNotFound
	}
	delete(s.byEmail, rec.Email)
	delete(s.records, id)
	return nil
}

func stringValue(value any) string {
	if value == nil {
		return ""
	}
	return fmt.Sprint(value)
}

func copyRecord(rec *domain.Record) *domain.Record {
	dup := *rec
	if rec.Reset != nil {
		reset := *rec.Reset
		dup.Reset = &reset
	}
	dup.Profile = make(map[string]string, len(rec.Profile))
	for k, v := range rec.Profile {
		dup.Profile[k] = v
	}
	return &dup
}
