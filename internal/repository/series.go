package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"raceadmin/internal/domain"

	"github.com/rs/zerolog"
)

type SeriesRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewSeriesRepository(db *sql.DB, logger zerolog.Logger) *SeriesRepository {
	return &SeriesRepository{db: db, logger: logger}
}

const seriesColumns = `id, club_id, name, year, order_by, descending, members_only, divisions_enabled, tie_policy`

func (r *SeriesRepository) Create(ctx context.Context, s *domain.SeriesConfig) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO series_configs (club_id, name, year, order_by, descending, members_only, divisions_enabled, tie_policy)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ClubID, s.Name, s.Year, s.OrderBy, s.Descending, s.MembersOnly, s.DivisionsEnabled, s.TiePolicy,
	)
	if err != nil {
		return fmt.Errorf("failed to create series %q: %w", s.Name, err)
	}
	last, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = int(last)
	return nil
}

func (r *SeriesRepository) GetByID(ctx context.Context, id int) (*domain.SeriesConfig, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+seriesColumns+` FROM series_configs WHERE id = ?`, id)
	return scanSeries(row)
}

// ListByRace returns the series a race scores toward.
func (r *SeriesRepository) ListByRace(ctx context.Context, raceID int) ([]*domain.SeriesConfig, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sc.id, sc.club_id, sc.name, sc.year, sc.order_by, sc.descending, sc.members_only, sc.divisions_enabled, sc.tie_policy
		FROM series_configs sc
		JOIN race_series rs ON rs.series_id = sc.id
		WHERE rs.race_id = ?
		ORDER BY sc.id`, raceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list series for race %d: %w", raceID, err)
	}
	defer rows.Close()

	var out []*domain.SeriesConfig
	for rows.Next() {
		s, err := scanSeries(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SeriesRepository) AttachRace(ctx context.Context, raceID, seriesID int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO race_series (race_id, series_id) VALUES (?, ?)`, raceID, seriesID)
	if err != nil {
		return fmt.Errorf("failed to attach race %d to series %d: %w", raceID, seriesID, err)
	}
	return nil
}

func (r *SeriesRepository) CreateDivision(ctx context.Context, d *domain.DivisionConfig) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO division_configs (series_id, year, low_age, high_age) VALUES (?, ?, ?, ?)`,
		d.SeriesID, d.Year, d.LowAge, d.HighAge,
	)
	if err != nil {
		return fmt.Errorf("failed to create division %s: %w", d.Label(), err)
	}
	last, err := res.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = int(last)
	return nil
}

func (r *SeriesRepository) ListDivisions(ctx context.Context, seriesID, year int) ([]domain.DivisionConfig, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, series_id, year, low_age, high_age
		FROM division_configs
		WHERE series_id = ? AND year = ?
		ORDER BY low_age`, seriesID, year)
	if err != nil {
		return nil, fmt.Errorf("failed to list divisions for series %d: %w", seriesID, err)
	}
	defer rows.Close()

	var out []domain.DivisionConfig
	for rows.Next() {
		var d domain.DivisionConfig
		if err := rows.Scan(&d.ID, &d.SeriesID, &d.Year, &d.LowAge, &d.HighAge); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanSeries(s rowScanner) (*domain.SeriesConfig, error) {
	var sc domain.SeriesConfig
	err := s.Scan(&sc.ID, &sc.ClubID, &sc.Name, &sc.Year, &sc.OrderBy,
		&sc.Descending, &sc.MembersOnly, &sc.DivisionsEnabled, &sc.TiePolicy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeriesNotFound
		}
		return nil, fmt.Errorf("failed to scan series: %w", err)
	}
	return &sc, nil
}
