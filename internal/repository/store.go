// Package repository provides a SQL implementation of the byte store that
// works against both PostgreSQL and SQLite.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/atinyakov/TagLock/internal/models"
	"github.com/atinyakov/TagLock/internal/persist"
)

const profilesCollection = "profiles"

// SQLStore persists profiles and scalars in SQL tables.
type SQLStore struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
}

var _ persist.ByteStore = (*SQLStore)(nil)

// NewSQLStore creates a new SQLStore using the provided *sql.DB.
// db must already carry the schema created by db.Init.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{DB: db}
}

// LoadProfiles returns all profiles in their saved order. The boolean is false
// when the collection has never been saved.
func (s *SQLStore) LoadProfiles(ctx context.Context) ([]models.Profile, bool, error) {
	var saved bool
	err := s.DB.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM collections WHERE name = $1)`, profilesCollection,
	).Scan(&saved)
	if err != nil {
		return nil, false, fmt.Errorf("LoadProfiles: %w", err)
	}
	if !saved {
		return nil, false, nil
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, name, selection FROM profiles ORDER BY position
	`)
	if err != nil {
		return nil, false, fmt.Errorf("LoadProfiles: %w", err)
	}
	defer rows.Close()

	profiles := make([]models.Profile, 0)
	for rows.Next() {
		var (
			id        string
			p         models.Profile
			selection []byte
		)
		if err := rows.Scan(&id, &p.Name, &selection); err != nil {
			return nil, false, fmt.Errorf("scan: %w", err)
		}
		p.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, false, fmt.Errorf("profile id %q: %w", id, err)
		}
		if len(selection) > 0 {
			p.Selection = models.Selection(selection)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("rows: %w", err)
	}
	return profiles, true, nil
}

// SaveProfiles replaces the stored collection within a transaction.
func (s *SQLStore) SaveProfiles(ctx context.Context, profiles []models.Profile) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM profiles`); err != nil {
		return fmt.Errorf("clear profiles: %w", err)
	}
	for i, p := range profiles {
		selection := []byte(p.Selection)
		if selection == nil {
			selection = []byte{}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO profiles (id, position, name, selection)
			VALUES ($1, $2, $3, $4)
		`, p.ID.String(), i, p.Name, selection)
		if err != nil {
			return fmt.Errorf("insert profile: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO collections (name) VALUES ($1) ON CONFLICT DO NOTHING`, profilesCollection,
	); err != nil {
		return fmt.Errorf("mark collection: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadScalar returns the value stored under key.
func (s *SQLStore) LoadScalar(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.DB.QueryRowContext(ctx, `SELECT value FROM scalars WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("LoadScalar %s: %w", key, err)
	}
	return value, true, nil
}

// SaveScalars upserts or deletes every value in one transaction.
func (s *SQLStore) SaveScalars(ctx context.Context, values ...persist.Scalar) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, v := range values {
		if v.Value == nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM scalars WHERE key = $1`, v.Key); err != nil {
				return fmt.Errorf("delete %s: %w", v.Key, err)
			}
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO scalars (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
		`, v.Key, *v.Value)
		if err != nil {
			return fmt.Errorf("upsert %s: %w", v.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
