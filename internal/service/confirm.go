package service

import (
	"context"
	"fmt"

	"raceadmin/internal/config"
	"raceadmin/internal/domain"
	"raceadmin/internal/match"
	"raceadmin/internal/repository"

	"github.com/rs/zerolog"
)

// ConfirmService applies administrator decisions to staged results. The
// exclusion side effects make manual disambiguation permanent: confirming a
// result writes every alternative candidate offered for its name into the
// ledger, and reversing the confirmation removes them again, so the same
// question is never re-asked on a future import.
type ConfirmService struct {
	cfg           *config.Config
	raceRepo      *repository.RaceRepository
	rosterRepo    *repository.RosterRepository
	stagedRepo    *repository.StagedResultRepository
	exclusionRepo *repository.ExclusionRepository
	logger        zerolog.Logger
}

func NewConfirmService(
	cfg *config.Config,
	raceRepo *repository.RaceRepository,
	rosterRepo *repository.RosterRepository,
	stagedRepo *repository.StagedResultRepository,
	exclusionRepo *repository.ExclusionRepository,
	logger zerolog.Logger,
) *ConfirmService {
	return &ConfirmService{
		cfg:           cfg,
		raceRepo:      raceRepo,
		rosterRepo:    rosterRepo,
		stagedRepo:    stagedRepo,
		exclusionRepo: exclusionRepo,
		logger:        logger,
	}
}

// Confirm links a staged result to the chosen roster entry and marks it
// MATCH/confirmed. All other candidates offered for the name are excluded.
func (s *ConfirmService) Confirm(ctx context.Context, ref string, entryID int) error {
	staged, race, err := s.load(ctx, ref)
	if err != nil {
		return err
	}
	if staged.Confirmed {
		return fmt.Errorf("result %s: %w", ref, ErrNotConfirmable)
	}

	entry, err := s.rosterRepo.GetByID(ctx, entryID)
	if err != nil {
		return err
	}
	if entry.ClubID != race.ClubID {
		return fmt.Errorf("entry %d belongs to another club", entryID)
	}

	staged.EntryID = &entryID
	staged.Disposition = domain.DispositionMatch
	staged.Confirmed = true
	if err := s.stagedRepo.Update(ctx, staged); err != nil {
		return err
	}

	if err := s.excludeAlternatives(ctx, race, staged.Name, &entryID, true); err != nil {
		return err
	}
	s.logger.Info().Str("ref", ref).Int("entry_id", entryID).Msg("result confirmed")
	return s.raceRepo.SetNeedsTabulation(ctx, race.ID, true)
}

// Unconfirm reverses a confirmation, removing the exclusions it created so
// the previously-suppressed candidates are offered again.
func (s *ConfirmService) Unconfirm(ctx context.Context, ref string) error {
	staged, race, err := s.load(ctx, ref)
	if err != nil {
		return err
	}
	if !staged.Confirmed {
		return fmt.Errorf("result %s: %w", ref, ErrNotUnconfirmable)
	}

	if err := s.excludeAlternatives(ctx, race, staged.Name, staged.EntryID, false); err != nil {
		return err
	}

	staged.Confirmed = false
	if staged.EntryID != nil {
		staged.Disposition = domain.DispositionClose
	} else {
		staged.Disposition = domain.DispositionMissed
	}
	if err := s.stagedRepo.Update(ctx, staged); err != nil {
		return err
	}
	s.logger.Info().Str("ref", ref).Msg("result unconfirmed")
	return s.raceRepo.SetNeedsTabulation(ctx, race.ID, true)
}

// RegisterNonMember creates a brand-new non-member roster entry for a MISSED
// result and confirms the link. Only valid for races open to non-members.
func (s *ConfirmService) RegisterNonMember(ctx context.Context, ref string) error {
	staged, race, err := s.load(ctx, ref)
	if err != nil {
		return err
	}
	if race.MembersOnly {
		return ErrMembersOnlyRace
	}
	if staged.Confirmed || staged.Disposition == domain.DispositionMatch {
		return fmt.Errorf("result %s: %w", ref, ErrNotConfirmable)
	}

	entry := &domain.RosterEntry{
		ClubID: race.ClubID,
		Name:   staged.Name,
		Gender: staged.Gender,
		Status: domain.StatusNonMember,
	}
	if err := s.rosterRepo.Create(ctx, entry); err != nil {
		return err
	}

	staged.EntryID = &entry.ID
	staged.Disposition = domain.DispositionMatch
	staged.Confirmed = true
	if err := s.stagedRepo.Update(ctx, staged); err != nil {
		return err
	}

	if err := s.excludeAlternatives(ctx, race, staged.Name, &entry.ID, true); err != nil {
		return err
	}
	s.logger.Info().Str("ref", ref).Int("entry_id", entry.ID).Msg("non-member registered and confirmed")
	return s.raceRepo.SetNeedsTabulation(ctx, race.ID, true)
}

// MarkNotUsed excludes the result from standings. Every candidate offered
// for the name becomes an exclusion, since none of them was this runner.
func (s *ConfirmService) MarkNotUsed(ctx context.Context, ref string) error {
	staged, race, err := s.load(ctx, ref)
	if err != nil {
		return err
	}
	if staged.Confirmed {
		return fmt.Errorf("result %s: %w", ref, ErrNotConfirmable)
	}

	staged.EntryID = nil
	staged.Disposition = domain.DispositionNotUsed
	staged.Confirmed = true
	if err := s.stagedRepo.Update(ctx, staged); err != nil {
		return err
	}

	if err := s.excludeAlternatives(ctx, race, staged.Name, nil, true); err != nil {
		return err
	}
	s.logger.Info().Str("ref", ref).Msg("result marked not used")
	return s.raceRepo.SetNeedsTabulation(ctx, race.ID, true)
}

func (s *ConfirmService) load(ctx context.Context, ref string) (*domain.StagedResult, *domain.Race, error) {
	staged, err := s.stagedRepo.GetByRef(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	race, err := s.raceRepo.GetByID(ctx, staged.RaceID)
	if err != nil {
		return nil, nil, err
	}
	return staged, race, nil
}

// excludeAlternatives recomputes the candidates that would be offered for
// the name and adds (or removes, on unconfirm) ledger records for everyone
// except the chosen entry.
func (s *ConfirmService) excludeAlternatives(ctx context.Context, race *domain.Race, name string, chosen *int, add bool) error {
	entries, err := s.rosterRepo.ListByClub(ctx, race.ClubID)
	if err != nil {
		return err
	}
	index := match.NewIndex(entries, race.Date, race.MembersOnly, s.cfg.SimilarityThreshold)

	for _, c := range index.FindNearMatches(name) {
		if chosen != nil && c.Entry.ID == *chosen {
			continue
		}
		if add {
			err = s.exclusionRepo.Add(ctx, race.ClubID, name, c.Entry.ID)
		} else {
			err = s.exclusionRepo.Remove(ctx, race.ClubID, name, c.Entry.ID)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
