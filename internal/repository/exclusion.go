package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// ExclusionRepository is the persisted exclusion ledger: set semantics over
// (club, result name, entry) triples. Add and Remove are idempotent; names
// are stored case-folded so lookups match however the result file cased them.
type ExclusionRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewExclusionRepository(db *sql.DB, logger zerolog.Logger) *ExclusionRepository {
	return &ExclusionRepository{db: db, logger: logger}
}

func foldName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func (r *ExclusionRepository) IsExcluded(ctx context.Context, clubID int, resultName string, entryID int) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM exclusions WHERE club_id = ? AND result_name = ? AND entry_id = ?`,
		clubID, foldName(resultName), entryID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check exclusion: %w", err)
	}
	return true, nil
}

func (r *ExclusionRepository) Add(ctx context.Context, clubID int, resultName string, entryID int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO exclusions (club_id, result_name, entry_id) VALUES (?, ?, ?)`,
		clubID, foldName(resultName), entryID,
	)
	if err != nil {
		return fmt.Errorf("failed to add exclusion (%q, %d): %w", resultName, entryID, err)
	}
	r.logger.Debug().
		Int("club_id", clubID).
		Str("result_name", resultName).
		Int("entry_id", entryID).
		Msg("exclusion recorded")
	return nil
}

func (r *ExclusionRepository) Remove(ctx context.Context, clubID int, resultName string, entryID int) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM exclusions WHERE club_id = ? AND result_name = ? AND entry_id = ?`,
		clubID, foldName(resultName), entryID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove exclusion (%q, %d): %w", resultName, entryID, err)
	}
	return nil
}

// ExcludedEntries returns the entry IDs excluded for one result name,
// loaded up front so the resolver's ledger lookup needs no query per check.
func (r *ExclusionRepository) ExcludedEntries(ctx context.Context, clubID int, resultName string) (map[int]bool, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT entry_id FROM exclusions WHERE club_id = ? AND result_name = ?`,
		clubID, foldName(resultName),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list exclusions for %q: %w", resultName, err)
	}
	defer rows.Close()

	out := make(map[int]bool)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}
