package match

import (
	"time"

	"raceadmin/internal/domain"
)

// PriorResult is the age recorded on a roster entry's most recent earlier
// result, used to sanity-check exact matches whose date of birth is unknown.
type PriorResult struct {
	Age      int
	RaceDate time.Time
}

// ResolveInput carries everything one resolution needs. Ledger and Prior are
// lookups so the decision procedure itself stays pure: same input, same
// resolution.
type ResolveInput struct {
	Result domain.RawResult
	Race   domain.Race
	Index  *Index

	// Ledger reports whether the administrator has excluded this
	// (result name, entry) pair.
	Ledger func(resultName string, entryID int) bool

	// Prior returns the entry's most recent prior result, false when none.
	Prior func(entryID int) (PriorResult, bool)

	CloseAgeMaxDelta int
	JoinGraceDays    int
}

// Resolution is the outcome of reconciling one result against the roster.
// NearMatches holds the candidates offered to the administrator for CLOSE and
// CLOSEAGE dispositions; the confirmation flow later turns the rejected ones
// into exclusion records.
type Resolution struct {
	Disposition domain.Disposition
	EntryID     *int
	Confirmed   bool
	NearMatches []Candidate
}

// Resolve classifies one raw finisher record. Branches are evaluated in
// order; the first satisfied one wins:
//
//  1. best-match lookup,
//  2. members-only races discard candidates who joined after the race date
//     plus the grace period,
//  3. exact name match confirms directly (DOB-unknown candidates must agree
//     with the age on their most recent prior result),
//  4. a non-exact candidate not in the exclusion ledger is offered as CLOSE,
//  5. otherwise near matches become CLOSEAGE, an open race becomes MISSED,
//     and a members-only race becomes NOTUSED.
func Resolve(in ResolveInput) Resolution {
	candidate := in.Index.FindBestMatch(in.Result.Name)

	if candidate != nil && in.Race.MembersOnly && joinedAfterGrace(candidate.Entry, in.Race.Date, in.JoinGraceDays) {
		candidate = nil
	}

	if candidate != nil && candidate.Exact {
		if candidate.Entry.DOB != nil {
			return matched(candidate)
		}
		if in.priorAgeConsistent(candidate.Entry.ID) {
			return matched(candidate)
		}
		candidate = nil
	}

	if candidate != nil {
		if in.Ledger == nil || !in.Ledger(in.Result.Name, candidate.Entry.ID) {
			id := candidate.Entry.ID
			return Resolution{
				Disposition: domain.DispositionClose,
				EntryID:     &id,
				Confirmed:   false,
				NearMatches: []Candidate{*candidate},
			}
		}
	}

	near := in.filteredNearMatches()
	switch {
	case len(near) > 0:
		return Resolution{Disposition: domain.DispositionCloseAge, NearMatches: near}
	case !in.Race.MembersOnly:
		return Resolution{Disposition: domain.DispositionMissed}
	default:
		return Resolution{Disposition: domain.DispositionNotUsed, Confirmed: true}
	}
}

func matched(c *Candidate) Resolution {
	id := c.Entry.ID
	return Resolution{
		Disposition: domain.DispositionMatch,
		EntryID:     &id,
		Confirmed:   true,
		NearMatches: []Candidate{*c},
	}
}

// joinedAfterGrace reports whether membership began after the race date plus
// the one-week (configurable) join grace period. Entries without a renewal
// date are never discarded here.
func joinedAfterGrace(e *domain.RosterEntry, raceDate time.Time, graceDays int) bool {
	if e.RenewalDate == nil {
		return false
	}
	return e.RenewalDate.After(raceDate.AddDate(0, 0, graceDays))
}

// priorAgeConsistent checks a DOB-unknown candidate: the age recorded on
// their most recent prior result, advanced by the elapsed time between the
// two races, must agree with this result's stated age within one year.
// A candidate with no prior result has nothing to contradict and passes.
func (in ResolveInput) priorAgeConsistent(entryID int) bool {
	if in.Prior == nil {
		return true
	}
	prior, ok := in.Prior(entryID)
	if !ok {
		return true
	}
	if in.Result.Age == 0 || prior.Age == 0 {
		return true
	}
	expected := prior.Age + domain.YearsBetween(prior.RaceDate, in.Race.Date)
	delta := in.Result.Age - expected
	if delta < 0 {
		delta = -delta
	}
	return delta <= 1
}

// filteredNearMatches drops near matches whose implied age is further from
// the stated result age than the configured delta, and any the administrator
// has excluded for this result name. Entries without a computable implied age
// are kept so a human can still consider them.
func (in ResolveInput) filteredNearMatches() []Candidate {
	all := in.Index.FindNearMatches(in.Result.Name)
	out := all[:0:0]
	for _, c := range all {
		if in.Ledger != nil && in.Ledger(in.Result.Name, c.Entry.ID) {
			continue
		}
		if in.Result.Age != 0 {
			if implied, ok := c.Entry.AgeAt(in.Race.Date); ok {
				delta := in.Result.Age - implied
				if delta < 0 {
					delta = -delta
				}
				if delta > in.CloseAgeMaxDelta {
					continue
				}
			}
		}
		out = append(out, c)
	}
	return out
}
