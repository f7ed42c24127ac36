package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"raceadmin/internal/domain"

	"github.com/rs/zerolog"
)

type RaceRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewRaceRepository(db *sql.DB, logger zerolog.Logger) *RaceRepository {
	return &RaceRepository{db: db, logger: logger}
}

const raceColumns = `id, club_id, name, date, distance_km, surface, members_only, needs_tabulation`

func (r *RaceRepository) Create(ctx context.Context, race *domain.Race) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO races (club_id, name, date, distance_km, surface, members_only, needs_tabulation)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		race.ClubID, race.Name, race.Date, race.DistanceKM, race.Surface, race.MembersOnly, race.NeedsTabulation,
	)
	if err != nil {
		return fmt.Errorf("failed to create race %q: %w", race.Name, err)
	}
	last, err := res.LastInsertId()
	if err != nil {
		return err
	}
	race.ID = int(last)
	return nil
}

func (r *RaceRepository) GetByID(ctx context.Context, id int) (*domain.Race, error) {
	var race domain.Race
	err := r.db.QueryRowContext(ctx,
		`SELECT `+raceColumns+` FROM races WHERE id = ?`, id,
	).Scan(&race.ID, &race.ClubID, &race.Name, &race.Date, &race.DistanceKM,
		&race.Surface, &race.MembersOnly, &race.NeedsTabulation)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRaceNotFound
		}
		return nil, fmt.Errorf("failed to get race %d: %w", id, err)
	}
	return &race, nil
}

func (r *RaceRepository) SetNeedsTabulation(ctx context.Context, raceID int, needs bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE races SET needs_tabulation = ? WHERE id = ?`, needs, raceID)
	if err != nil {
		return fmt.Errorf("failed to flag race %d: %w", raceID, err)
	}
	return checkAffectedRows(res, ErrRaceNotFound)
}

// ListNeedingTabulation feeds the nightly sweep.
func (r *RaceRepository) ListNeedingTabulation(ctx context.Context) ([]*domain.Race, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+raceColumns+` FROM races WHERE needs_tabulation = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list races needing tabulation: %w", err)
	}
	defer rows.Close()

	var races []*domain.Race
	for rows.Next() {
		var race domain.Race
		if err := rows.Scan(&race.ID, &race.ClubID, &race.Name, &race.Date, &race.DistanceKM,
			&race.Surface, &race.MembersOnly, &race.NeedsTabulation); err != nil {
			return nil, err
		}
		races = append(races, &race)
	}
	return races, rows.Err()
}
