package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/corvohq/simple-identity/pkg/domain"
)

// uniqueViolation is the Postgres error code raised by the unique index on
// email, which makes Insert conditional without a pre-scan.
const uniqueViolation = "23505"

// Postgres stores records in a single Postgres table. Email lookups go
// through the table's unique email index.
type Postgres struct {
	db    *sql.DB
	table string
}

// NewPostgres creates a Postgres store over the named table.
func NewPostgres(db *sql.DB, table string) (*Postgres, error) {
	if err := ValidateCollectionName(table); err != nil {
		return nil, fmt.Errorf("%w: %q", err, table)
	}
	return &Postgres{db: db, table: table}, nil
}

func (s *Postgres) selectQuery(where string) string {
	return fmt.Sprintf(`
		SELECT id, username, email, password_hash, provider,
		       reset_token_hash, reset_token_expiry, profile, created_at, updated_at
		FROM %s
		WHERE %s
	`, s.table, where)
}

// FindByEmail retrieves a record by email.
func (s *Postgres) FindByEmail(ctx context.Context, email string) (*domain.Record, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, s.selectQuery("email = $1"), email))
}

// FindByID retrieves a record by ID.
func (s *Postgres) FindByID(ctx context.Context, id uuid.UUID) (*domain.Record, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, s.selectQuery("id = $1"), id))
}

// Insert creates a new record. It fails with domain.ErrDuplicateEmail if the
// email is already taken.
func (s *Postgres) Insert(ctx context.Context, rec *domain.Record) error {
	profile, err := json.Marshal(nonNilProfile(rec.Profile))
	if err != nil {
		return err
	}

	var passwordHash, provider sql.NullString
	switch c := rec.Credential.(type) {
	case domain.PasswordCredential:
		passwordHash = sql.NullString{String: c.Hash, Valid: true}
	case domain.OAuthCredential:
		provider = sql.NullString{String: c.Provider, Valid: true}
	}

	var resetHash sql.NullString
	var resetExpiry sql.NullTime
	if rec.Reset != nil {
		resetHash = sql.NullString{String: rec.Reset.TokenHash, Valid: true}
		resetExpiry = sql.NullTime{Time: rec.Reset.ExpiresAt, Valid: true}
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, username, email, password_hash, provider,
		                reset_token_hash, reset_token_expiry, profile, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`, s.table)
	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.Username, rec.Email, passwordHash, provider,
		resetHash, resetExpiry, profile,
	)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return domain.ErrDuplicateEmail
	}
	return err
}

// Update applies a partial update to the record's named fields in one
// statement. Well-known fields map to columns; anything else is merged into
// the profile document. A nil value clears the field.
func (s *Postgres) Update(ctx context.Context, id uuid.UUID, fields Fields) error {
	set := []string{"updated_at = NOW()"}
	args := []any{id}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	ext := make(map[string]any)
	var extClear []string
	for _, name := range names {
		value := fields[name]
		switch name {
		case FieldUsername, FieldPasswordHash, FieldProvider, FieldResetTokenHash, FieldResetTokenExpiry:
			args = append(args, value)
			set = append(set, fmt.Sprintf("%s = $%d", name, len(args)))
		default:
			if value == nil {
				extClear = append(extClear, name)
			} else {
				ext[name] = value
			}
		}
	}

	if len(ext) > 0 || len(extClear) > 0 {
		expr := "profile"
		for _, name := range extClear {
			args = append(args, name)
			expr = fmt.Sprintf("(%s - $%d::text)", expr, len(args))
		}
		if len(ext) > 0 {
			merged, err := json.Marshal(ext)
			if err != nil {
				return err
			}
			args = append(args, merged)
			expr = fmt.Sprintf("%s || $%d::jsonb", expr, len(args))
		}
		set = append(set, "profile = "+expr)
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $1", s.table, strings.Join(set, ", "))
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

// Delete permanently removes a record. Hard delete, no tombstone.
func (s *Postgres) Delete(ctx context.Context, id uuid.UUID) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.table)
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

func (s *Postgres) scanOne(row *sql.Row) (*domain.Record, error) {
	rec := &domain.Record{}
	var passwordHash, provider, resetHash sql.NullString
	var resetExpiry sql.NullTime
	var profile []byte

	err := row.Scan(
		&rec.ID, &rec.Username, &rec.Email, &passwordHash, &provider,
		&resetHash, &resetExpiry, &profile, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	switch {
	case passwordHash.Valid:
		rec.Credential = domain.PasswordCredential{Hash: passwordHash.String}
	case provider.Valid:
		rec.Credential = domain.OAuthCredential{Provider: provider.String}
	}

	if resetHash.Valid && resetHash.String != "" && resetExpiry.Valid {
		rec.Reset = &domain.PendingReset{TokenHash: resetHash.String, ExpiresAt: resetExpiry.Time}
	}

	if len(profile) > 0 {
		if err := json.Unmarshal(profile, &rec.Profile); err != nil {
			return nil, err
		}
	}
	if rec.Profile == nil {
		rec.Profile = map[string]string{}
	}
	return rec, nil
}

func nonNilProfile(p map[string]string) map[string]string {
	if p == nil {
		return map[string]string{}
	}
	return p
}
