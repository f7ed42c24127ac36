package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"raceadmin/internal/api"
	"raceadmin/internal/config"
	"raceadmin/internal/constants"
	"raceadmin/internal/database"
	"raceadmin/internal/domain"
	"raceadmin/internal/repository"
	"raceadmin/internal/tasks"

	"github.com/rs/zerolog"
)

// env wires the repositories and services against a throwaway SQLite file.
type env struct {
	db         *sql.DB
	cfg        *config.Config
	roster     *repository.RosterRepository
	races      *repository.RaceRepository
	staged     *repository.StagedResultRepository
	exclusions *repository.ExclusionRepository
	series     *repository.SeriesRepository
	ranked     *repository.RankedResultRepository
	tasks      *tasks.Manager
}

func newEnv(t *testing.T) *env {
	t.Helper()
	cfg := &config.Config{
		DBPath:              filepath.Join(t.TempDir(), "test.db"),
		SimilarityThreshold: constants.DefaultSimilarityThreshold,
		CloseAgeMaxDelta:    constants.DefaultCloseAgeMaxDelta,
		JoinGraceDays:       constants.DefaultJoinGraceDays,
	}
	db, err := database.New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	nop := zerolog.Nop()
	return &env{
		db:         db,
		cfg:        cfg,
		roster:     repository.NewRosterRepository(db, nop),
		races:      repository.NewRaceRepository(db, nop),
		staged:     repository.NewStagedResultRepository(db, nop),
		exclusions: repository.NewExclusionRepository(db, nop),
		series:     repository.NewSeriesRepository(db, nop),
		ranked:     repository.NewRankedResultRepository(db, nop),
		tasks:      tasks.NewManager(nop),
	}
}

func (e *env) importService() *ImportService {
	return NewImportService(e.cfg, e.races, e.roster, e.staged, e.exclusions, e.series,
		api.NewFeedClient(e.cfg), e.tasks, zerolog.Nop())
}

func (e *env) confirmService() *ConfirmService {
	return NewConfirmService(e.cfg, e.races, e.roster, e.staged, e.exclusions, zerolog.Nop())
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (e *env) seedClub(t *testing.T) int {
	t.Helper()
	clubID, err := e.roster.EnsureClub(context.Background(), "Test Striders")
	if err != nil {
		t.Fatal(err)
	}
	return clubID
}

func (e *env) seedMember(t *testing.T, clubID int, name string, dob *time.Time) int {
	t.Helper()
	entry := &domain.RosterEntry{ClubID: clubID, Name: name, Gender: domain.GenderFemale, DOB: dob, Status: domain.StatusMember}
	if err := e.roster.Create(context.Background(), entry); err != nil {
		t.Fatal(err)
	}
	return entry.ID
}

func (e *env) seedRace(t *testing.T, clubID int, raceDate time.Time, membersOnly bool) *domain.Race {
	t.Helper()
	race := &domain.Race{ClubID: clubID, Name: "Club 10K", Date: raceDate, DistanceKM: 10, Surface: domain.SurfaceRoad, MembersOnly: membersOnly}
	if err := e.races.Create(context.Background(), race); err != nil {
		t.Fatal(err)
	}
	return race
}

func (e *env) seedSeriesFor(t *testing.T, clubID, raceID int, orderBy domain.OrderBy) *domain.SeriesConfig {
	t.Helper()
	sc := &domain.SeriesConfig{ClubID: clubID, Name: "Grand Prix", Year: 2025, OrderBy: orderBy, TiePolicy: domain.TieShare}
	if err := e.series.Create(context.Background(), sc); err != nil {
		t.Fatal(err)
	}
	if err := e.series.AttachRace(context.Background(), raceID, sc.ID); err != nil {
		t.Fatal(err)
	}
	return sc
}

func waitTask(t *testing.T, m *tasks.Manager, id string) tasks.Snapshot {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		snap, ok := m.Get(id)
		if !ok {
			t.Fatalf("task %s unknown", id)
		}
		if snap.State.Terminal() {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s never finished", id)
	return tasks.Snapshot{}
}
