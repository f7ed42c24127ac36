package match

import (
	"sort"
	"time"

	"raceadmin/internal/domain"
)

// Candidate is one roster entry proposed for a result name, with its
// similarity score. Exact marks a case-insensitive name equality.
type Candidate struct {
	Entry *domain.RosterEntry
	Score float64
	Exact bool
}

// Index is a queryable view of a club's roster as of a reference date.
// Build one per reconciliation pass; it is immutable afterwards and safe for
// concurrent readers.
type Index struct {
	threshold float64
	asOf      time.Time
	entries   []*domain.RosterEntry
	byFolded  map[string][]*domain.RosterEntry
}

// NewIndex indexes the entries that are active as of asOf. An entry whose
// membership expired before asOf is indexed with inactive status so that tie
// breaking prefers current members. membersOnly drops non-member entries
// entirely.
func NewIndex(entries []*domain.RosterEntry, asOf time.Time, membersOnly bool, threshold float64) *Index {
	idx := &Index{
		threshold: threshold,
		asOf:      asOf,
		byFolded:  make(map[string][]*domain.RosterEntry),
	}
	for _, e := range entries {
		eff := effectiveStatus(e, asOf)
		if membersOnly && eff == domain.StatusNonMember {
			continue
		}
		// Work on a copy so status demotion never mutates the caller's slice.
		c := *e
		c.Status = eff
		idx.entries = append(idx.entries, &c)
		key := foldName(c.Name)
		idx.byFolded[key] = append(idx.byFolded[key], &c)
	}
	return idx
}

func effectiveStatus(e *domain.RosterEntry, asOf time.Time) domain.MemberStatus {
	if e.Status == domain.StatusMember && e.ExpirationDate != nil && e.ExpirationDate.Before(asOf) {
		return domain.StatusInactive
	}
	return e.Status
}

// FindBestMatch returns the single best candidate for a result name: an
// exact case-insensitive match if one exists, otherwise the
// highest-similarity fuzzy match at or above the threshold. Similarity ties
// are broken by member status (member > inactive > non-member), then entry ID
// for determinism. Returns nil when nothing clears the threshold.
func (idx *Index) FindBestMatch(name string) *Candidate {
	if exact, ok := idx.byFolded[foldName(name)]; ok {
		best := exact[0]
		for _, e := range exact[1:] {
			if better(e, best) {
				best = e
			}
		}
		return &Candidate{Entry: best, Score: 1, Exact: true}
	}

	var best *Candidate
	for _, e := range idx.entries {
		score := Similarity(name, e.Name)
		if score < idx.threshold {
			continue
		}
		if best == nil || score > best.Score || (score == best.Score && better(e, best.Entry)) {
			best = &Candidate{Entry: e, Score: score}
		}
	}
	return best
}

// FindNearMatches returns every entry scoring at or above the threshold,
// highest score first, for human disambiguation.
func (idx *Index) FindNearMatches(name string) []Candidate {
	var out []Candidate
	for _, e := range idx.entries {
		score := Similarity(name, e.Name)
		if score < idx.threshold {
			continue
		}
		out = append(out, Candidate{Entry: e, Score: score, Exact: foldName(name) == foldName(e.Name)})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Entry.Status.Precedence() != b.Entry.Status.Precedence() {
			return a.Entry.Status.Precedence() < b.Entry.Status.Precedence()
		}
		return a.Entry.ID < b.Entry.ID
	})
	return out
}

func better(a, b *domain.RosterEntry) bool {
	if a.Status.Precedence() != b.Status.Precedence() {
		return a.Status.Precedence() < b.Status.Precedence()
	}
	return a.ID < b.ID
}
