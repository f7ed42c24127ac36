package service

import (
	"context"
	"fmt"

	"raceadmin/internal/api"
	"raceadmin/internal/config"
	"raceadmin/internal/domain"
	"raceadmin/internal/match"
	"raceadmin/internal/repository"
	"raceadmin/internal/tasks"

	"github.com/rs/zerolog"
)

// ImportService reconciles raw finisher rows against the club roster and
// stages the outcome. Imports run as background tasks: parsing a large file
// and scoring every roster member per row takes long enough that callers
// poll for progress instead of waiting.
type ImportService struct {
	cfg           *config.Config
	raceRepo      *repository.RaceRepository
	rosterRepo    *repository.RosterRepository
	stagedRepo    *repository.StagedResultRepository
	exclusionRepo *repository.ExclusionRepository
	seriesRepo    *repository.SeriesRepository
	feed          *api.FeedClient
	tasks         *tasks.Manager
	logger        zerolog.Logger
}

func NewImportService(
	cfg *config.Config,
	raceRepo *repository.RaceRepository,
	rosterRepo *repository.RosterRepository,
	stagedRepo *repository.StagedResultRepository,
	exclusionRepo *repository.ExclusionRepository,
	seriesRepo *repository.SeriesRepository,
	feed *api.FeedClient,
	taskManager *tasks.Manager,
	logger zerolog.Logger,
) *ImportService {
	return &ImportService{
		cfg:           cfg,
		raceRepo:      raceRepo,
		rosterRepo:    rosterRepo,
		stagedRepo:    stagedRepo,
		exclusionRepo: exclusionRepo,
		seriesRepo:    seriesRepo,
		feed:          feed,
		tasks:         taskManager,
		logger:        logger,
	}
}

type ImportSummary struct {
	Staged    int                 `json:"staged"`
	RowErrors []domain.FieldError `json:"row_errors,omitempty"`
}

// ImportResults validates the race configuration synchronously, then stages
// the rows in a background task and returns its ID for polling.
func (s *ImportService) ImportResults(ctx context.Context, raceID int, records []domain.ResultRecord) (string, error) {
	race, err := s.raceRepo.GetByID(ctx, raceID)
	if err != nil {
		return "", err
	}
	series, err := s.seriesRepo.ListByRace(ctx, raceID)
	if err != nil {
		return "", err
	}
	if len(series) == 0 {
		return "", fmt.Errorf("race %q: %w", race.Name, ErrRaceHasNoSeries)
	}

	taskID := s.tasks.Start(ctx, "import", func(ctx context.Context, report func(tasks.Progress)) (any, error) {
		return s.runImport(ctx, race, records, report)
	})
	return taskID, nil
}

// ImportFromFeed pulls the rows from the external results service, then
// stages them exactly like a file import.
func (s *ImportService) ImportFromFeed(ctx context.Context, raceID int, raceKey string) (string, error) {
	records, err := s.feed.FetchResults(ctx, raceKey)
	if err != nil {
		return "", err
	}
	s.logger.Info().Int("race_id", raceID).Str("race_key", raceKey).Int("rows", len(records)).Msg("fetched results from feed")
	return s.ImportResults(ctx, raceID, records)
}

func (s *ImportService) runImport(ctx context.Context, race *domain.Race, records []domain.ResultRecord, report func(tasks.Progress)) (*ImportSummary, error) {
	entries, err := s.rosterRepo.ListByClub(ctx, race.ClubID)
	if err != nil {
		return nil, err
	}
	index := match.NewIndex(entries, race.Date, race.MembersOnly, s.cfg.SimilarityThreshold)

	summary := &ImportSummary{}
	progress := tasks.Progress{Total: len(records)}

	for i, rec := range records {
		// Cooperative cancellation between rows.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, rowErrs := rec.Normalize(i + 1)
		if len(rowErrs) > 0 {
			summary.RowErrors = append(summary.RowErrors, rowErrs...)
			progress.Processed = i + 1
			report(progress)
			continue
		}

		resolution, err := s.resolve(ctx, race, index, raw)
		if err != nil {
			return nil, fmt.Errorf("row %d (%s): %w", i+1, raw.Name, err)
		}

		staged := &domain.StagedResult{
			RaceID:      race.ID,
			EntryID:     resolution.EntryID,
			Disposition: resolution.Disposition,
			Confirmed:   resolution.Confirmed,
			Place:       raw.Place,
			Name:        raw.Name,
			Gender:      raw.Gender,
			Age:         raw.Age,
			Hometown:    raw.Hometown,
			Affiliation: raw.Club,
			TimeSec:     raw.TimeSec,
		}
		if err := s.stagedRepo.Create(ctx, staged); err != nil {
			return nil, fmt.Errorf("row %d (%s): %w", i+1, raw.Name, err)
		}
		summary.Staged++

		s.logger.Debug().
			Str("name", raw.Name).
			Str("disposition", string(resolution.Disposition)).
			Bool("confirmed", resolution.Confirmed).
			Msg("result staged")

		progress.Processed = i + 1
		progress.LastName = raw.Name
		report(progress)
	}

	if err := s.raceRepo.SetNeedsTabulation(ctx, race.ID, true); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int("race_id", race.ID).
		Int("staged", summary.Staged).
		Int("row_errors", len(summary.RowErrors)).
		Msg("import finished")
	return summary, nil
}

// resolve wires the repositories into the pure decision procedure.
func (s *ImportService) resolve(ctx context.Context, race *domain.Race, index *match.Index, raw domain.RawResult) (match.Resolution, error) {
	excluded, err := s.exclusionRepo.ExcludedEntries(ctx, race.ClubID, raw.Name)
	if err != nil {
		return match.Resolution{}, err
	}

	in := match.ResolveInput{
		Result: raw,
		Race:   *race,
		Index:  index,
		Ledger: func(_ string, entryID int) bool { return excluded[entryID] },
		Prior: func(entryID int) (match.PriorResult, bool) {
			age, raceDate, err := s.stagedRepo.LatestPriorAge(ctx, entryID, race.Date)
			if err != nil {
				return match.PriorResult{}, false
			}
			return match.PriorResult{Age: age, RaceDate: raceDate}, true
		},
		CloseAgeMaxDelta: s.cfg.CloseAgeMaxDelta,
		JoinGraceDays:    s.cfg.JoinGraceDays,
	}
	return match.Resolve(in), nil
}
