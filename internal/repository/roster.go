package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"raceadmin/internal/domain"

	"github.com/rs/zerolog"
)

type RosterRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewRosterRepository(db *sql.DB, logger zerolog.Logger) *RosterRepository {
	return &RosterRepository{db: db, logger: logger}
}

func (r *RosterRepository) EnsureClub(ctx context.Context, name string) (int, error) {
	var id int
	err := r.db.QueryRowContext(ctx, `SELECT id FROM clubs WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to look up club %q: %w", name, err)
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO clubs (name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("failed to create club %q: %w", name, err)
	}
	last, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	r.logger.Info().Str("club", name).Int64("id", last).Msg("club created")
	return int(last), nil
}

const rosterColumns = `id, club_id, name, gender, dob, status, renewal_date, expiration_date, created_at, updated_at`

func (r *RosterRepository) Create(ctx context.Context, e *domain.RosterEntry) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO roster_entries (club_id, name, gender, dob, status, renewal_date, expiration_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ClubID, e.Name, e.Gender, e.DOB, e.Status, e.RenewalDate, e.ExpirationDate, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create roster entry %q: %w", e.Name, err)
	}
	last, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = int(last)
	e.CreatedAt, e.UpdatedAt = now, now
	return nil
}

func (r *RosterRepository) Update(ctx context.Context, e *domain.RosterEntry) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE roster_entries SET
			name = ?, gender = ?, dob = ?, status = ?, renewal_date = ?, expiration_date = ?, updated_at = ?
		WHERE id = ?`,
		e.Name, e.Gender, e.DOB, e.Status, e.RenewalDate, e.ExpirationDate, now, e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update roster entry %d: %w", e.ID, err)
	}
	return checkAffectedRows(res, ErrRosterEntryNotFound)
}

func (r *RosterRepository) GetByID(ctx context.Context, id int) (*domain.RosterEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+rosterColumns+` FROM roster_entries WHERE id = ?`, id)
	return scanRosterEntry(row)
}

// GetByIdentity finds an entry by the (name, dob, gender) identity the roster
// import collapses on. Name comparison is case-insensitive.
func (r *RosterRepository) GetByIdentity(ctx context.Context, clubID int, name string, dob *time.Time, gender domain.Gender) (*domain.RosterEntry, error) {
	query := `SELECT ` + rosterColumns + ` FROM roster_entries
		WHERE club_id = ? AND name = ? COLLATE NOCASE AND gender = ?`
	args := []any{clubID, name, gender}
	if dob != nil {
		query += ` AND dob = ?`
		args = append(args, *dob)
	} else {
		query += ` AND dob IS NULL`
	}
	row := r.db.QueryRowContext(ctx, query, args...)
	return scanRosterEntry(row)
}

func (r *RosterRepository) ListByClub(ctx context.Context, clubID int) ([]*domain.RosterEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+rosterColumns+` FROM roster_entries WHERE club_id = ? ORDER BY id`, clubID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roster for club %d: %w", clubID, err)
	}
	defer rows.Close()

	var entries []*domain.RosterEntry
	for rows.Next() {
		e, err := scanRosterEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type rowScanner interface{ Scan(dest ...any) error }

func scanRosterEntry(s rowScanner) (*domain.RosterEntry, error) {
	var e domain.RosterEntry
	var dob, renewal, expiration sql.NullTime
	err := s.Scan(&e.ID, &e.ClubID, &e.Name, &e.Gender, &dob, &e.Status, &renewal, &expiration, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRosterEntryNotFound
		}
		return nil, fmt.Errorf("failed to scan roster entry: %w", err)
	}
	if dob.Valid {
		e.DOB = &dob.Time
	}
	if renewal.Valid {
		e.RenewalDate = &renewal.Time
	}
	if expiration.Valid {
		e.ExpirationDate = &expiration.Time
	}
	return &e, nil
}

func checkAffectedRows(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
