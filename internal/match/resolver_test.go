package match

import (
	"testing"
	"time"

	"raceadmin/internal/domain"

	"github.com/google/go-cmp/cmp"
)

const (
	testThreshold = 0.7
	testAgeDelta  = 3
	testGraceDays = 7
)

func openRace(raceDate time.Time) domain.Race {
	return domain.Race{ID: 10, ClubID: 1, Name: "Spring 10K", Date: raceDate, DistanceKM: 10, Surface: domain.SurfaceRoad}
}

func resolveInput(race domain.Race, entries []*domain.RosterEntry, result domain.RawResult) ResolveInput {
	return ResolveInput{
		Result:           result,
		Race:             race,
		Index:            NewIndex(entries, race.Date, race.MembersOnly, testThreshold),
		CloseAgeMaxDelta: testAgeDelta,
		JoinGraceDays:    testGraceDays,
	}
}

func TestResolveExactMatchWithDOB(t *testing.T) {
	dob := date(1985, 3, 15)
	entries := []*domain.RosterEntry{
		{ID: 1, Name: "Jane Doe", Gender: domain.GenderFemale, DOB: &dob, Status: domain.StatusMember},
	}
	in := resolveInput(openRace(date(2025, 6, 1)), entries, domain.RawResult{Name: "Jane Doe", Age: 40, TimeSec: 2400})

	got := Resolve(in)
	if got.Disposition != domain.DispositionMatch || !got.Confirmed {
		t.Fatalf("expected confirmed MATCH, got %+v", got)
	}
	if got.EntryID == nil || *got.EntryID != 1 {
		t.Fatalf("expected entry 1, got %v", got.EntryID)
	}
}

func TestResolveExactMatchUnknownDOB(t *testing.T) {
	entries := []*domain.RosterEntry{
		{ID: 1, Name: "Jane Doe", Gender: domain.GenderFemale, Status: domain.StatusMember},
	}
	race := openRace(date(2025, 6, 1))
	priorDate := date(2024, 6, 1)

	tests := []struct {
		name      string
		priorAge  int
		statedAge int
		want      domain.Disposition
	}{
		{"consistent prior age", 40, 41, domain.DispositionMatch},
		{"one year slack", 40, 42, domain.DispositionMatch},
		{"inconsistent prior age", 40, 50, domain.DispositionCloseAge},
		{"unknown stated age passes", 40, 0, domain.DispositionMatch},
		{"unknown prior age passes", 0, 41, domain.DispositionMatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := resolveInput(race, entries, domain.RawResult{Name: "Jane Doe", Age: tt.statedAge, TimeSec: 2400})
			in.Prior = func(entryID int) (PriorResult, bool) {
				return PriorResult{Age: tt.priorAge, RaceDate: priorDate}, true
			}
			got := Resolve(in)
			if got.Disposition != tt.want {
				t.Fatalf("got %s, want %s", got.Disposition, tt.want)
			}
		})
	}
}

func TestResolveExactMatchNoPriorResult(t *testing.T) {
	entries := []*domain.RosterEntry{
		{ID: 1, Name: "Jane Doe", Gender: domain.GenderFemale, Status: domain.StatusMember},
	}
	in := resolveInput(openRace(date(2025, 6, 1)), entries, domain.RawResult{Name: "Jane Doe", Age: 40, TimeSec: 2400})
	in.Prior = func(entryID int) (PriorResult, bool) { return PriorResult{}, false }

	got := Resolve(in)
	if got.Disposition != domain.DispositionMatch || !got.Confirmed {
		t.Fatalf("a first-timer with no prior result must match, got %+v", got)
	}
}

func TestResolveCloseMatch(t *testing.T) {
	entries := []*domain.RosterEntry{
		{ID: 1, Name: "John Smith", Gender: domain.GenderMale, Status: domain.StatusMember},
	}
	in := resolveInput(openRace(date(2025, 6, 1)), entries, domain.RawResult{Name: "Jon Smith", Age: 35, TimeSec: 2400})

	got := Resolve(in)
	if got.Disposition != domain.DispositionClose || got.Confirmed {
		t.Fatalf("expected unconfirmed CLOSE, got %+v", got)
	}
	if got.EntryID == nil || *got.EntryID != 1 {
		t.Fatalf("expected candidate entry 1, got %v", got.EntryID)
	}
	if len(got.NearMatches) != 1 {
		t.Fatalf("expected the candidate in near matches, got %d", len(got.NearMatches))
	}
}

func TestResolveExcludedCandidate(t *testing.T) {
	entries := []*domain.RosterEntry{
		{ID: 1, Name: "John Smith", Gender: domain.GenderMale, Status: domain.StatusMember},
	}

	t.Run("open race becomes MISSED", func(t *testing.T) {
		in := resolveInput(openRace(date(2025, 6, 1)), entries, domain.RawResult{Name: "Jon Smith", Age: 35, TimeSec: 2400})
		in.Ledger = func(_ string, entryID int) bool { return entryID == 1 }

		got := Resolve(in)
		if got.Disposition != domain.DispositionMissed || got.EntryID != nil {
			t.Fatalf("expected MISSED with no entry, got %+v", got)
		}
	})

	t.Run("members-only race becomes NOTUSED", func(t *testing.T) {
		race := openRace(date(2025, 6, 1))
		race.MembersOnly = true
		in := resolveInput(race, entries, domain.RawResult{Name: "Jon Smith", Age: 35, TimeSec: 2400})
		in.Ledger = func(_ string, entryID int) bool { return entryID == 1 }

		got := Resolve(in)
		if got.Disposition != domain.DispositionNotUsed || !got.Confirmed {
			t.Fatalf("expected confirmed NOTUSED, got %+v", got)
		}
	})
}

func TestResolveUnknownRunner(t *testing.T) {
	entries := []*domain.RosterEntry{
		{ID: 1, Name: "Pat Garcia", Gender: domain.GenderFemale, Status: domain.StatusMember},
	}

	t.Run("open race", func(t *testing.T) {
		in := resolveInput(openRace(date(2025, 6, 1)), entries, domain.RawResult{Name: "Sam Wu", Age: 28, TimeSec: 2400})
		got := Resolve(in)
		if got.Disposition != domain.DispositionMissed {
			t.Fatalf("expected MISSED, got %+v", got)
		}
	})

	t.Run("members-only race", func(t *testing.T) {
		race := openRace(date(2025, 6, 1))
		race.MembersOnly = true
		in := resolveInput(race, entries, domain.RawResult{Name: "Sam Wu", Age: 28, TimeSec: 2400})
		got := Resolve(in)
		if got.Disposition != domain.DispositionNotUsed || !got.Confirmed {
			t.Fatalf("expected confirmed NOTUSED, got %+v", got)
		}
	})
}

func TestResolveJoinGraceOnMembersOnlyRace(t *testing.T) {
	race := openRace(date(2025, 6, 1))
	race.MembersOnly = true
	dob := date(1985, 3, 15)

	t.Run("joined within grace still matches", func(t *testing.T) {
		renewal := date(2025, 6, 5) // 4 days after the race
		entries := []*domain.RosterEntry{
			{ID: 1, Name: "Jane Doe", Gender: domain.GenderFemale, DOB: &dob, Status: domain.StatusMember, RenewalDate: &renewal},
		}
		in := resolveInput(race, entries, domain.RawResult{Name: "Jane Doe", Age: 40, TimeSec: 2400})
		got := Resolve(in)
		if got.Disposition != domain.DispositionMatch {
			t.Fatalf("a join within the grace period must still match, got %+v", got)
		}
	})

	t.Run("joined after grace is not auto-matched", func(t *testing.T) {
		renewal := date(2025, 6, 20) // well past race date + grace
		entries := []*domain.RosterEntry{
			{ID: 1, Name: "Jane Doe", Gender: domain.GenderFemale, DOB: &dob, Status: domain.StatusMember, RenewalDate: &renewal},
		}
		in := resolveInput(race, entries, domain.RawResult{Name: "Jane Doe", Age: 40, TimeSec: 2400})
		got := Resolve(in)
		if got.Disposition == domain.DispositionMatch {
			t.Fatalf("a member who joined after the race must not auto-match, got %+v", got)
		}
	})
}

func TestResolveNearMatchAgeFilter(t *testing.T) {
	// The best candidate is excluded, so resolution falls through to the
	// near-match set, where the age filter applies to the remaining entry.
	race := openRace(date(2025, 6, 1))
	excludedLedger := func(_ string, entryID int) bool { return entryID == 1 }

	t.Run("age too far off drops the candidate", func(t *testing.T) {
		dob := date(1980, 1, 1) // 45 at the race
		entries := []*domain.RosterEntry{
			{ID: 1, Name: "John Smith", Gender: domain.GenderMale, Status: domain.StatusMember},
			{ID: 2, Name: "Joan Smith", Gender: domain.GenderFemale, DOB: &dob, Status: domain.StatusMember},
		}
		in := resolveInput(race, entries, domain.RawResult{Name: "Jon Smith", Age: 30, TimeSec: 2400})
		in.Ledger = excludedLedger

		got := Resolve(in)
		if got.Disposition != domain.DispositionMissed {
			t.Fatalf("expected MISSED after the age filter emptied the near matches, got %+v", got)
		}
	})

	t.Run("age within delta keeps the candidate", func(t *testing.T) {
		dob := date(1993, 1, 1) // 32 at the race, 2 off the stated 30
		entries := []*domain.RosterEntry{
			{ID: 1, Name: "John Smith", Gender: domain.GenderMale, Status: domain.StatusMember},
			{ID: 2, Name: "Joan Smith", Gender: domain.GenderFemale, DOB: &dob, Status: domain.StatusMember},
		}
		in := resolveInput(race, entries, domain.RawResult{Name: "Jon Smith", Age: 30, TimeSec: 2400})
		in.Ledger = excludedLedger

		got := Resolve(in)
		if got.Disposition != domain.DispositionCloseAge {
			t.Fatalf("expected CLOSEAGE, got %+v", got)
		}
		if len(got.NearMatches) != 1 || got.NearMatches[0].Entry.ID != 2 {
			t.Fatalf("expected only entry 2 offered, got %+v", got.NearMatches)
		}
	})
}

func TestResolveDeterministic(t *testing.T) {
	dob := date(1990, 7, 1)
	entries := []*domain.RosterEntry{
		{ID: 1, Name: "John Smith", Gender: domain.GenderMale, DOB: &dob, Status: domain.StatusMember},
		{ID: 2, Name: "Joan Smith", Gender: domain.GenderFemale, DOB: &dob, Status: domain.StatusMember},
	}
	in := resolveInput(openRace(date(2025, 6, 1)), entries, domain.RawResult{Name: "Jon Smith", Age: 35, TimeSec: 2400})

	first := Resolve(in)
	second := Resolve(in)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("resolution is not deterministic (-first +second):\n%s", diff)
	}
}
