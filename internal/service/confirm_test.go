package service

import (
	"context"
	"errors"
	"testing"

	"raceadmin/internal/domain"
)

// stageClose stages one unconfirmed CLOSE result linked to a candidate.
func (e *env) stageClose(t *testing.T, raceID int, name string, entryID int) *domain.StagedResult {
	t.Helper()
	sr := &domain.StagedResult{
		RaceID: raceID, EntryID: &entryID,
		Disposition: domain.DispositionClose,
		Name:        name, Gender: domain.GenderMale, Age: 35, TimeSec: 2580,
	}
	if err := e.staged.Create(context.Background(), sr); err != nil {
		t.Fatal(err)
	}
	return sr
}

func TestConfirmExcludesAlternatives(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	clubID := e.seedClub(t)
	smithID := e.seedMember(t, clubID, "John Smith", nil)
	joanID := e.seedMember(t, clubID, "Joan Smith", nil)
	race := e.seedRace(t, clubID, date(2025, 6, 1), false)
	sr := e.stageClose(t, race.ID, "Jon Smith", smithID)

	if err := e.confirmService().Confirm(ctx, sr.Ref, smithID); err != nil {
		t.Fatal(err)
	}

	got, err := e.staged.GetByRef(ctx, sr.Ref)
	if err != nil {
		t.Fatal(err)
	}
	if got.Disposition != domain.DispositionMatch || !got.Confirmed || *got.EntryID != smithID {
		t.Fatalf("confirmed result = %+v", got)
	}

	// The rejected alternative is now excluded for this result name, the
	// chosen entry is not.
	excluded, err := e.exclusions.IsExcluded(ctx, clubID, "Jon Smith", joanID)
	if err != nil {
		t.Fatal(err)
	}
	if !excluded {
		t.Error("rejected candidate not excluded")
	}
	excluded, err = e.exclusions.IsExcluded(ctx, clubID, "Jon Smith", smithID)
	if err != nil {
		t.Fatal(err)
	}
	if excluded {
		t.Error("chosen candidate must not be excluded")
	}

	updatedRace, err := e.races.GetByID(ctx, race.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !updatedRace.NeedsTabulation {
		t.Error("confirmation must flag the race for tabulation")
	}

	// Confirming twice is rejected.
	if err := e.confirmService().Confirm(ctx, sr.Ref, smithID); !errors.Is(err, ErrNotConfirmable) {
		t.Errorf("second confirm returned %v", err)
	}
}

func TestUnconfirmRestoresAlternatives(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	clubID := e.seedClub(t)
	smithID := e.seedMember(t, clubID, "John Smith", nil)
	joanID := e.seedMember(t, clubID, "Joan Smith", nil)
	race := e.seedRace(t, clubID, date(2025, 6, 1), false)
	sr := e.stageClose(t, race.ID, "Jon Smith", smithID)

	svc := e.confirmService()
	if err := svc.Confirm(ctx, sr.Ref, smithID); err != nil {
		t.Fatal(err)
	}
	if err := svc.Unconfirm(ctx, sr.Ref); err != nil {
		t.Fatal(err)
	}

	got, err := e.staged.GetByRef(ctx, sr.Ref)
	if err != nil {
		t.Fatal(err)
	}
	if got.Confirmed || got.Disposition != domain.DispositionClose {
		t.Fatalf("unconfirmed result = %+v", got)
	}

	excluded, err := e.exclusions.IsExcluded(ctx, clubID, "Jon Smith", joanID)
	if err != nil {
		t.Fatal(err)
	}
	if excluded {
		t.Error("unconfirm must lift the exclusions the confirmation created")
	}

	if err := svc.Unconfirm(ctx, sr.Ref); !errors.Is(err, ErrNotUnconfirmable) {
		t.Errorf("unconfirming an unconfirmed result returned %v", err)
	}
}

func TestMarkNotUsedExcludesAllCandidates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	clubID := e.seedClub(t)
	smithID := e.seedMember(t, clubID, "John Smith", nil)
	joanID := e.seedMember(t, clubID, "Joan Smith", nil)
	race := e.seedRace(t, clubID, date(2025, 6, 1), false)
	sr := e.stageClose(t, race.ID, "Jon Smith", smithID)

	if err := e.confirmService().MarkNotUsed(ctx, sr.Ref); err != nil {
		t.Fatal(err)
	}

	got, err := e.staged.GetByRef(ctx, sr.Ref)
	if err != nil {
		t.Fatal(err)
	}
	if got.Disposition != domain.DispositionNotUsed || !got.Confirmed || got.EntryID != nil {
		t.Fatalf("notused result = %+v", got)
	}

	for _, id := range []int{smithID, joanID} {
		excluded, err := e.exclusions.IsExcluded(ctx, clubID, "Jon Smith", id)
		if err != nil {
			t.Fatal(err)
		}
		if !excluded {
			t.Errorf("entry %d not excluded after notused", id)
		}
	}
}

func TestRegisterNonMember(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	clubID := e.seedClub(t)

	t.Run("open race creates and confirms", func(t *testing.T) {
		race := e.seedRace(t, clubID, date(2025, 6, 1), false)
		sr := &domain.StagedResult{
			RaceID: race.ID, Disposition: domain.DispositionMissed,
			Name: "Sam Wu", Gender: domain.GenderMale, Age: 28, TimeSec: 2640,
		}
		if err := e.staged.Create(ctx, sr); err != nil {
			t.Fatal(err)
		}

		if err := e.confirmService().RegisterNonMember(ctx, sr.Ref); err != nil {
			t.Fatal(err)
		}

		got, err := e.staged.GetByRef(ctx, sr.Ref)
		if err != nil {
			t.Fatal(err)
		}
		if got.Disposition != domain.DispositionMatch || !got.Confirmed || got.EntryID == nil {
			t.Fatalf("registered result = %+v", got)
		}
		entry, err := e.roster.GetByID(ctx, *got.EntryID)
		if err != nil {
			t.Fatal(err)
		}
		if entry.Status != domain.StatusNonMember || entry.Name != "Sam Wu" || entry.DOB != nil {
			t.Fatalf("created entry = %+v", entry)
		}
	})

	t.Run("members-only race refuses", func(t *testing.T) {
		race := e.seedRace(t, clubID, date(2025, 7, 1), true)
		sr := &domain.StagedResult{
			RaceID: race.ID, Disposition: domain.DispositionNotUsed, Confirmed: true,
			Name: "Alex Po", Gender: domain.GenderMale, Age: 30, TimeSec: 2700,
		}
		if err := e.staged.Create(ctx, sr); err != nil {
			t.Fatal(err)
		}
		if err := e.confirmService().RegisterNonMember(ctx, sr.Ref); !errors.Is(err, ErrMembersOnlyRace) {
			t.Fatalf("expected ErrMembersOnlyRace, got %v", err)
		}
	})
}
