package service

import (
	"context"
	"fmt"
	"sync"

	"raceadmin/internal/domain"
	"raceadmin/internal/repository"
	"raceadmin/internal/standings"
	"raceadmin/internal/tasks"

	"github.com/rs/zerolog"
)

// StandingsService drives tabulation. Each race tabulates under its own
// mutex: tie detection and average ranks need the complete sorted bucket
// before any rank is final, so a race's result set is never partitioned
// across writers. Different races tabulate concurrently.
type StandingsService struct {
	raceRepo   *repository.RaceRepository
	seriesRepo *repository.SeriesRepository
	stagedRepo *repository.StagedResultRepository
	rosterRepo *repository.RosterRepository
	rankedRepo *repository.RankedResultRepository
	tabulator  *standings.Tabulator
	tasks      *tasks.Manager
	logger     zerolog.Logger

	mu        sync.Mutex
	raceLocks map[int]*sync.Mutex
}

func NewStandingsService(
	raceRepo *repository.RaceRepository,
	seriesRepo *repository.SeriesRepository,
	stagedRepo *repository.StagedResultRepository,
	rosterRepo *repository.RosterRepository,
	rankedRepo *repository.RankedResultRepository,
	tabulator *standings.Tabulator,
	taskManager *tasks.Manager,
	logger zerolog.Logger,
) *StandingsService {
	return &StandingsService{
		raceRepo:   raceRepo,
		seriesRepo: seriesRepo,
		stagedRepo: stagedRepo,
		rosterRepo: rosterRepo,
		rankedRepo: rankedRepo,
		tabulator:  tabulator,
		tasks:      taskManager,
		logger:     logger,
		raceLocks:  make(map[int]*sync.Mutex),
	}
}

func (s *StandingsService) raceLock(raceID int) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.raceLocks[raceID]
	if !ok {
		lock = &sync.Mutex{}
		s.raceLocks[raceID] = lock
	}
	return lock
}

// TabulateRace starts a background tabulation of every series the race
// scores toward and returns the task ID for polling.
func (s *StandingsService) TabulateRace(ctx context.Context, raceID int) (string, error) {
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

	taskID := s.tasks.Start(ctx, "tabulate", func(ctx context.Context, report func(tasks.Progress)) (any, error) {
		return nil, s.TabulateRaceSync(ctx, race, series, report)
	})
	return taskID, nil
}

// TabulateRaceSync runs the whole tabulation under the race's mutex. Ranks
// for one series are persisted as a single destructive replace, so a
// cancellation between series leaves every already-replaced series complete
// and every later series on its prior tabulation — never a partial set.
func (s *StandingsService) TabulateRaceSync(ctx context.Context, race *domain.Race, series []*domain.SeriesConfig, report func(tasks.Progress)) error {
	lock := s.raceLock(race.ID)
	lock.Lock()
	defer lock.Unlock()

	entrants, err := s.loadEntrants(ctx, race)
	if err != nil {
		return err
	}

	progress := tasks.Progress{Total: len(series)}
	for i, sc := range series {
		if err := ctx.Err(); err != nil {
			return err
		}

		divisions, err := s.seriesRepo.ListDivisions(ctx, sc.ID, race.Year())
		if err != nil {
			return err
		}

		ranked, err := s.tabulator.Tabulate(*race, *sc, divisions, entrants)
		if err != nil {
			return err
		}
		if err := s.rankedRepo.ReplaceForRaceSeries(ctx, race.ID, sc.ID, ranked); err != nil {
			return err
		}

		if report != nil {
			progress.Processed = i + 1
			progress.LastName = sc.Name
			report(progress)
		}
	}

	if err := s.raceRepo.SetNeedsTabulation(ctx, race.ID, false); err != nil {
		return err
	}
	s.logger.Info().Int("race_id", race.ID).Int("series", len(series)).Msg("race tabulated")
	return nil
}

// loadEntrants collects the race's linked staged results paired with their
// roster entries. Cancellation is checked per row; roster entries are
// fetched once and joined in memory.
func (s *StandingsService) loadEntrants(ctx context.Context, race *domain.Race) ([]standings.Entrant, error) {
	staged, err := s.stagedRepo.ListByRace(ctx, race.ID)
	if err != nil {
		return nil, err
	}
	entries, err := s.rosterRepo.ListByClub(ctx, race.ClubID)
	if err != nil {
		return nil, err
	}
	byID := make(map[int]*domain.RosterEntry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}

	var entrants []standings.Entrant
	for _, sr := range staged {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// Every linked result tabulates, confirmed or not; rows with no
		// candidate (MISSED, NOTUSED, CLOSEAGE) never rank.
		if sr.EntryID == nil {
			continue
		}
		entry, ok := byID[*sr.EntryID]
		if !ok {
			s.logger.Warn().Int("staged_id", sr.ID).Int("entry_id", *sr.EntryID).Msg("staged result links unknown roster entry")
			continue
		}
		entrants = append(entrants, standings.Entrant{Staged: sr, Entry: entry})
	}
	return entrants, nil
}

// SweepDirtyRaces re-tabulates every race whose staged results changed since
// its last tabulation. Called by the cron scheduler.
func (s *StandingsService) SweepDirtyRaces(ctx context.Context) error {
	races, err := s.raceRepo.ListNeedingTabulation(ctx)
	if err != nil {
		return err
	}
	for _, race := range races {
		series, err := s.seriesRepo.ListByRace(ctx, race.ID)
		if err != nil {
			return err
		}
		if len(series) == 0 {
			s.logger.Warn().Int("race_id", race.ID).Msg("dirty race has no series, skipping")
			continue
		}
		if err := s.TabulateRaceSync(ctx, race, series, nil); err != nil {
			return fmt.Errorf("sweep race %d: %w", race.ID, err)
		}
	}
	return nil
}

// Standings returns the persisted tabulation for one race/series pair.
func (s *StandingsService) Standings(ctx context.Context, raceID, seriesID int) ([]domain.RankedResult, error) {
	return s.rankedRepo.ListByRaceSeries(ctx, raceID, seriesID)
}
