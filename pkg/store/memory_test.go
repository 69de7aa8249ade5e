package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/corvohq/simple-identity/pkg/domain"
)

func newPasswordRecord(email string) *domain.Record {
	return &domain.Record{
		ID:         uuid.New(),
		Username:   "alice",
		Email:      email,
		Credential: domain.PasswordCredential{Hash: "$argon2id$stub"},
	}
}

func TestMemory_InsertAndFind(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	rec := newPasswordRecord("a@x.com")
	if err := s.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	byEmail, err := s.FindByEmail(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("FindByEmail failed: %v", err)
	}
	if byEmail.ID != rec.ID {
		t.Errorf("FindByEmail ID = %v, want %v", byEmail.ID, rec.ID)
	}

	byID, err := s.FindByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if byID.Email != "a@x.com" {
		t.Errorf("FindByID email = %q, want %q", byID.Email, "a@x.com")
	}
	if byID.PasswordHash() != "$argon2id$stub" {
		t.Errorf("password hash not preserved")
	}
}

func TestMemory_Insert_DuplicateEmail(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	if err := s.Insert(ctx, newPasswordRecord("a@x.com")); err != nil {
		t.Fatalf("first Insert failed: %v", err)
	}
	err := s.Insert(ctx, newPasswordRecord("a@x.com"))
	if !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Errorf("second Insert error = %v, want ErrDuplicateEmail", err)
	}
}

func TestMemory_FindMissing(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	if _, err := s.FindByEmail(ctx, "nobody@x.com"); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Errorf("FindByEmail error = %v, want ErrRecordNotFound", err)
	}
	if _, err := s.FindByID(ctx, uuid.New()); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Errorf("FindByID error = %v, want ErrRecordNotFound", err)
	}
}

func TestMemory_Update(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	rec := newPasswordRecord("a@x.com")
	if err := s.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	expiry := time.Now().Add(time.Hour)
	err := s.Update(ctx, rec.ID, Fields{
		FieldUsername:         "alice2",
		FieldResetTokenHash:   "tokenhash",
		FieldResetTokenExpiry: expiry,
		"display_color":       "teal",
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := s.FindByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if got.Username != "alice2" {
		t.Errorf("Username = %q, want %q", got.Username, "alice2")
	}
	if got.Reset == nil || got.Reset.TokenHash != "tokenhash" || !got.Reset.ExpiresAt.Equal(expiry) {
		t.Errorf("Reset = %+v, want pending reset", got.Reset)
	}
	if got.Profile["display_color"] != "teal" {
		t.Errorf("Profile = %v, want display_color=teal", got.Profile)
	}

	// Clearing both reset fields drops the pending reset entirely.
	err = s.Update(ctx, rec.ID, Fields{
		FieldResetTokenHash:   nil,
		FieldResetTokenExpiry: nil,
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	got, _ = s.FindByID(ctx, rec.ID)
	if got.Reset != nil {
		t.Errorf("Reset = %+v, want nil after clear", got.Reset)
	}
}

func TestMemory_Update_NotFound(t *testing.T) {
	s := NewMemory()
	err := s.Update(context.Background(), uuid.New(), Fields{FieldUsername: "x"})
	if !errors.Is(err, domain.ErrRecordNotFound) {
		t.Errorf("Update error = %v, want ErrRecordNotFound", err)
	}
}

func TestMemory_Delete(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	rec := newPasswordRecord("a@x.com")
	if err := s.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := s.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.FindByEmail(ctx, "a@x.com"); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Errorf("record still findable by email after delete")
	}
	if err := s.Delete(ctx, rec.ID); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Errorf("second Delete error = %v, want ErrRecordNotFound", err)
	}

	// Email is free for reuse after a hard delete.
	if err := s.Insert(ctx, newPasswordRecord("a@x.com")); err != nil {
		t.Errorf("Insert after delete failed: %v", err)
	}
}

func TestMemory_CopiesAreIsolated(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	rec := newPasswordRecord("a@x.com")
	rec.Profile = map[string]string{"bio": "hello"}
	if err := s.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, _ := s.FindByID(ctx, rec.ID)
	got.Profile["bio"] = "mutated"
	got.Username = "mutated"

	again, _ := s.FindByID(ctx, rec.ID)
	if again.Profile["bio"] != "hello" || again.Username != "alice" {
		t.Error("caller mutation leaked into the store")
	}
}

func TestValidateCollectionName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"users", true},
		{"user_records", true},
		{"Users2", true},
		{"_private", true},
		{"", false},
		{"2users", false},
		{"users; drop table users", false},
		{"user-records", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCollectionName(tt.name)
			if tt.valid && err != nil {
				t.Errorf("ValidateCollectionName(%q) = %v, want nil", tt.name, err)
			}
			if !tt.valid && !errors.Is(err, domain.ErrInvalidCollection) {
				t.Errorf("ValidateCollectionName(%q) = %v, want ErrInvalidCollection", tt.name, err)
			}
		})
	}
}
