package repository

import (
	"context"
	"database/sql"
	"fmt"

	"raceadmin/internal/domain"

	"github.com/rs/zerolog"
)

type RankedResultRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewRankedResultRepository(db *sql.DB, logger zerolog.Logger) *RankedResultRepository {
	return &RankedResultRepository{db: db, logger: logger}
}

// ReplaceForRaceSeries atomically swaps the tabulation for one race/series
// pair: the prior set is deleted and the new one inserted in a single
// transaction, so a failure (or cancellation before commit) leaves the prior
// tabulation untouched.
func (r *RankedResultRepository) ReplaceForRaceSeries(ctx context.Context, raceID, seriesID int, ranked []domain.RankedResult) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM ranked_results WHERE race_id = ? AND series_id = ?`, raceID, seriesID); err != nil {
		return fmt.Errorf("failed to clear prior tabulation: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ranked_results
			(series_id, race_id, staged_id, entry_id, overall_place, gender_place, division_label, division_place, ag_time_sec, ag_percent, ag_place)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rr := range ranked {
		if _, err := stmt.ExecContext(ctx,
			rr.SeriesID, rr.RaceID, rr.StagedID, rr.EntryID,
			rr.OverallPlace, rr.GenderPlace, rr.DivisionLabel, rr.DivisionPlace,
			rr.AGTimeSec, rr.AGPercent, rr.AGPlace,
		); err != nil {
			return fmt.Errorf("failed to insert ranked result for staged %d: %w", rr.StagedID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tabulation: %w", err)
	}
	r.logger.Info().
		Int("race_id", raceID).
		Int("series_id", seriesID).
		Int("rows", len(ranked)).
		Msg("tabulation replaced")
	return nil
}

func (r *RankedResultRepository) ListByRaceSeries(ctx context.Context, raceID, seriesID int) ([]domain.RankedResult, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, series_id, race_id, staged_id, entry_id, overall_place, gender_place,
		       division_label, division_place, ag_time_sec, ag_percent, ag_place
		FROM ranked_results
		WHERE race_id = ? AND series_id = ?
		ORDER BY staged_id`, raceID, seriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ranked results: %w", err)
	}
	defer rows.Close()

	var out []domain.RankedResult
	for rows.Next() {
		var rr domain.RankedResult
		var overall, gender, divPlace, agTime, agPct, agPlace sql.NullFloat64
		var divLabel sql.NullString
		if err := rows.Scan(&rr.ID, &rr.SeriesID, &rr.RaceID, &rr.StagedID, &rr.EntryID,
			&overall, &gender, &divLabel, &divPlace, &agTime, &agPct, &agPlace); err != nil {
			return nil, err
		}
		rr.OverallPlace = nullFloat(overall)
		rr.GenderPlace = nullFloat(gender)
		rr.DivisionPlace = nullFloat(divPlace)
		rr.AGTimeSec = nullFloat(agTime)
		rr.AGPercent = nullFloat(agPct)
		rr.AGPlace = nullFloat(agPlace)
		if divLabel.Valid {
			rr.DivisionLabel = &divLabel.String
		}
		out = append(out, rr)
	}
	return out, rows.Err()
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
