package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"raceadmin/internal/domain"
	"raceadmin/internal/repository"

	"github.com/rs/zerolog"
)

// RosterImportService ingests membership files. Multiple membership records
// for the same (name, dob, gender) are collapsed: per distinct expiration
// date the earliest renewal wins ("first renewal for that membership term"),
// and the entry keeps the term with the latest expiration.
type RosterImportService struct {
	rosterRepo *repository.RosterRepository
	logger     zerolog.Logger
}

func NewRosterImportService(rosterRepo *repository.RosterRepository, logger zerolog.Logger) *RosterImportService {
	return &RosterImportService{rosterRepo: rosterRepo, logger: logger}
}

type RosterImportSummary struct {
	Created   int                 `json:"created"`
	Updated   int                 `json:"updated"`
	RowErrors []domain.FieldError `json:"row_errors,omitempty"`
}

func (s *RosterImportService) ImportRoster(ctx context.Context, clubName string, records []domain.RosterRecord) (*RosterImportSummary, error) {
	clubID, err := s.rosterRepo.EnsureClub(ctx, clubName)
	if err != nil {
		return nil, err
	}

	summary := &RosterImportSummary{}

	type identity struct {
		name   string
		dob    time.Time
		gender domain.Gender
	}
	type member struct {
		entry domain.RosterEntry
		// earliest renewal per distinct expiration date
		renewalByExpiration map[time.Time]time.Time
	}
	members := make(map[identity]*member)
	var order []identity

	for i, rec := range records {
		entry, errs := rec.Normalize(i + 1)
		if len(errs) > 0 {
			summary.RowErrors = append(summary.RowErrors, errs...)
			continue
		}
		id := identity{name: entry.Name, dob: *entry.DOB, gender: entry.Gender}
		m, ok := members[id]
		if !ok {
			m = &member{entry: entry, renewalByExpiration: make(map[time.Time]time.Time)}
			members[id] = m
			order = append(order, id)
		}
		exp, ren := *entry.ExpirationDate, *entry.RenewalDate
		if existing, ok := m.renewalByExpiration[exp]; !ok || ren.Before(existing) {
			m.renewalByExpiration[exp] = ren
		}
	}

	for _, id := range order {
		m := members[id]

		var latest time.Time
		for exp := range m.renewalByExpiration {
			if exp.After(latest) {
				latest = exp
			}
		}
		renewal := m.renewalByExpiration[latest]
		m.entry.RenewalDate = &renewal
		m.entry.ExpirationDate = &latest
		m.entry.ClubID = clubID

		existing, err := s.rosterRepo.GetByIdentity(ctx, clubID, m.entry.Name, m.entry.DOB, m.entry.Gender)
		switch {
		case err == nil:
			existing.Status = domain.StatusMember
			existing.RenewalDate = m.entry.RenewalDate
			existing.ExpirationDate = m.entry.ExpirationDate
			if err := s.rosterRepo.Update(ctx, existing); err != nil {
				return nil, fmt.Errorf("roster import: %w", err)
			}
			summary.Updated++
		case errors.Is(err, repository.ErrRosterEntryNotFound):
			if err := s.rosterRepo.Create(ctx, &m.entry); err != nil {
				return nil, fmt.Errorf("roster import: %w", err)
			}
			summary.Created++
		default:
			return nil, fmt.Errorf("roster import: %w", err)
		}
	}

	s.logger.Info().
		Str("club", clubName).
		Int("created", summary.Created).
		Int("updated", summary.Updated).
		Int("row_errors", len(summary.RowErrors)).
		Msg("roster imported")
	return summary, nil
}
