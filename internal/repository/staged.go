package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"raceadmin/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type StagedResultRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewStagedResultRepository(db *sql.DB, logger zerolog.Logger) *StagedResultRepository {
	return &StagedResultRepository{db: db, logger: logger}
}

const stagedColumns = `id, ref, race_id, entry_id, disposition, confirmed, place, name, gender, age, hometown, affiliation, time_sec, created_at, updated_at`

func (r *StagedResultRepository) Create(ctx context.Context, s *domain.StagedResult) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.Ref == "" {
		ref, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate nanoid: %w", err)
		}
		s.Ref = ref
	}
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO staged_results
			(ref, race_id, entry_id, disposition, confirmed, place, name, gender, age, hometown, affiliation, time_sec, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Ref, s.RaceID, s.EntryID, s.Disposition, s.Confirmed, s.Place,
		s.Name, s.Gender, s.Age, s.Hometown, s.Affiliation, s.TimeSec, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to stage result %q: %w", s.Name, err)
	}
	last, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = int(last)
	s.CreatedAt, s.UpdatedAt = now, now
	return nil
}

func (r *StagedResultRepository) Update(ctx context.Context, s *domain.StagedResult) error {
	if err := s.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE staged_results SET
			entry_id = ?, disposition = ?, confirmed = ?, place = ?, name = ?,
			gender = ?, age = ?, hometown = ?, affiliation = ?, time_sec = ?, updated_at = ?
		WHERE id = ?`,
		s.EntryID, s.Disposition, s.Confirmed, s.Place, s.Name,
		s.Gender, s.Age, s.Hometown, s.Affiliation, s.TimeSec, now, s.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update staged result %d: %w", s.ID, err)
	}
	s.UpdatedAt = now
	return checkAffectedRows(res, ErrStagedResultNotFound)
}

func (r *StagedResultRepository) GetByID(ctx context.Context, id int) (*domain.StagedResult, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+stagedColumns+` FROM staged_results WHERE id = ?`, id)
	return scanStagedResult(row)
}

func (r *StagedResultRepository) GetByRef(ctx context.Context, ref string) (*domain.StagedResult, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+stagedColumns+` FROM staged_results WHERE ref = ?`, ref)
	return scanStagedResult(row)
}

func (r *StagedResultRepository) ListByRace(ctx context.Context, raceID int) ([]*domain.StagedResult, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+stagedColumns+` FROM staged_results WHERE race_id = ? ORDER BY id`, raceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list staged results for race %d: %w", raceID, err)
	}
	defer rows.Close()

	var results []*domain.StagedResult
	for rows.Next() {
		s, err := scanStagedResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, s)
	}
	return results, rows.Err()
}

// LatestPriorAge returns the age recorded on the entry's most recent result
// in a race before the given date. Used to sanity-check exact matches with
// unknown date of birth.
func (r *StagedResultRepository) LatestPriorAge(ctx context.Context, entryID int, before time.Time) (int, time.Time, error) {
	var age int
	var raceDate time.Time
	err := r.db.QueryRowContext(ctx, `
		SELECT sr.age, ra.date
		FROM staged_results sr
		JOIN races ra ON ra.id = sr.race_id
		WHERE sr.entry_id = ? AND ra.date < ?
		ORDER BY ra.date DESC
		LIMIT 1`,
		entryID, before,
	).Scan(&age, &raceDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, time.Time{}, ErrNoPriorResult
		}
		return 0, time.Time{}, fmt.Errorf("failed to find prior result for entry %d: %w", entryID, err)
	}
	return age, raceDate, nil
}

func scanStagedResult(s rowScanner) (*domain.StagedResult, error) {
	var sr domain.StagedResult
	var entryID sql.NullInt64
	var place sql.NullInt64
	err := s.Scan(&sr.ID, &sr.Ref, &sr.RaceID, &entryID, &sr.Disposition, &sr.Confirmed,
		&place, &sr.Name, &sr.Gender, &sr.Age, &sr.Hometown, &sr.Affiliation,
		&sr.TimeSec, &sr.CreatedAt, &sr.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStagedResultNotFound
		}
		return nil, fmt.Errorf("failed to scan staged result: %w", err)
	}
	if entryID.Valid {
		id := int(entryID.Int64)
		sr.EntryID = &id
	}
	if place.Valid {
		p := int(place.Int64)
		sr.Place = &p
	}
	return &sr, nil
}
