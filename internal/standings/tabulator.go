package standings

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"raceadmin/internal/agegrade"
	"raceadmin/internal/domain"

	"github.com/rs/zerolog"
)

var (
	// ErrNoDivisions is a configuration error: the series wants divisions
	// but none are configured for its year. Tabulation fails rather than
	// silently degrading.
	ErrNoDivisions = errors.New("series has divisions enabled but no division brackets configured")
)

// Entrant pairs a linked staged result with its roster entry. Only results
// with a linked entry are tabulated.
type Entrant struct {
	Staged *domain.StagedResult
	Entry  *domain.RosterEntry
}

// Tabulator computes the ranked result set for one race/series pair. It is
// pure: persistence of the output (and the destructive replace of the prior
// tabulation) is the standings service's job.
type Tabulator struct {
	grader    agegrade.Grader
	precision agegrade.PrecisionResolver
	logger    zerolog.Logger
}

func New(grader agegrade.Grader, precision agegrade.PrecisionResolver, logger zerolog.Logger) *Tabulator {
	return &Tabulator{grader: grader, precision: precision, logger: logger}
}

// row is one entrant's in-progress ranked result.
type row struct {
	ent         Entrant
	out         domain.RankedResult
	gradeAge    int
	divisionAge int
	division    *domain.DivisionConfig
}

// Tabulate ranks the entrants for one series. The returned slice is sorted
// by staged-result ID so repeated runs over unchanged input are identical.
func (t *Tabulator) Tabulate(
	race domain.Race,
	series domain.SeriesConfig,
	divisions []domain.DivisionConfig,
	entrants []Entrant,
) ([]domain.RankedResult, error) {
	if series.DivisionsEnabled {
		if len(divisions) == 0 {
			return nil, fmt.Errorf("series %q year %d: %w", series.Name, series.Year, ErrNoDivisions)
		}
		if err := ValidateBrackets(divisions); err != nil {
			return nil, fmt.Errorf("series %q year %d: %w", series.Name, series.Year, err)
		}
	}

	rows := t.buildRows(race, series, divisions, entrants)

	prec := t.precision.Precision(race.DistanceKM, race.Surface)

	// Overall, then per gender, then gender x division, then the age-graded
	// pass per gender when the series orders by an age-graded metric. Every
	// pass needs its complete bucket sorted before any rank is final.
	metric := t.orderingMetric(series.OrderBy)

	rankPass(rows, metric, series.Descending, prec, series.TiePolicy,
		func(r *row, rank float64) { r.out.OverallPlace = &rank })

	for _, gender := range []domain.Gender{domain.GenderFemale, domain.GenderMale} {
		bucket := filterRows(rows, func(r *row) bool { return r.ent.Staged.Gender == gender })
		rankPass(bucket, metric, series.Descending, prec, series.TiePolicy,
			func(r *row, rank float64) { r.out.GenderPlace = &rank })

		if series.DivisionsEnabled {
			for i := range divisions {
				div := &divisions[i]
				sub := filterRows(bucket, func(r *row) bool { return r.division != nil && r.division.ID == div.ID })
				rankPass(sub, metric, series.Descending, prec, series.TiePolicy,
					func(r *row, rank float64) { r.out.DivisionPlace = &rank })
			}
		}

		if series.OrderBy == domain.OrderByAGTime || series.OrderBy == domain.OrderByAGPercent {
			rankPass(bucket, metric, series.Descending, prec, series.TiePolicy,
				func(r *row, rank float64) { r.out.AGPlace = &rank })
		}
	}

	out := make([]domain.RankedResult, len(rows))
	for i, r := range rows {
		out[i] = r.out
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StagedID < out[j].StagedID })
	return out, nil
}

func (t *Tabulator) buildRows(
	race domain.Race,
	series domain.SeriesConfig,
	divisions []domain.DivisionConfig,
	entrants []Entrant,
) []*row {
	var rows []*row
	for _, ent := range entrants {
		if ent.Staged.EntryID == nil || ent.Entry == nil {
			continue
		}
		if series.MembersOnly && ent.Entry.Status != domain.StatusMember {
			continue
		}
		r := &row{
			ent: ent,
			out: domain.RankedResult{
				SeriesID: series.ID,
				RaceID:   race.ID,
				StagedID: ent.Staged.ID,
				EntryID:  ent.Entry.ID,
			},
		}

		r.gradeAge = GradeAge(ent.Entry, ent.Staged.Age, race.Date)
		if r.gradeAge > 0 {
			grade, err := t.grader.Grade(r.gradeAge, ent.Staged.Gender, race.DistanceKM, ent.Staged.TimeSec)
			if err != nil {
				t.logger.Warn().Err(err).
					Str("name", ent.Staged.Name).
					Int("staged_id", ent.Staged.ID).
					Msg("age grade not computable")
			} else {
				agTime, agPct := grade.EquivalentTimeSec, grade.Percent
				r.out.AGTimeSec = &agTime
				r.out.AGPercent = &agPct
			}
		}

		if series.DivisionsEnabled && ent.Entry.DOB != nil {
			r.divisionAge = DivisionAge(*ent.Entry.DOB, race.Year())
			if div := AssignDivision(divisions, r.divisionAge); div != nil {
				r.division = div
				label := div.Label()
				r.out.DivisionLabel = &label
			}
		}

		rows = append(rows, r)
	}
	return rows
}

// orderingMetric extracts the series' ordering value from a row; false marks
// the value not applicable, which drops the row from that ranking pass.
func (t *Tabulator) orderingMetric(by domain.OrderBy) func(*row) (float64, bool) {
	switch by {
	case domain.OrderByAGTime:
		return func(r *row) (float64, bool) {
			if r.out.AGTimeSec == nil {
				return 0, false
			}
			return *r.out.AGTimeSec, true
		}
	case domain.OrderByAGPercent:
		return func(r *row) (float64, bool) {
			if r.out.AGPercent == nil {
				return 0, false
			}
			return *r.out.AGPercent, true
		}
	case domain.OrderByOverall:
		return func(r *row) (float64, bool) {
			if r.ent.Staged.Place == nil {
				return 0, false
			}
			return float64(*r.ent.Staged.Place), true
		}
	default:
		return func(r *row) (float64, bool) { return r.ent.Staged.TimeSec, true }
	}
}

func filterRows(rows []*row, keep func(*row) bool) []*row {
	var out []*row
	for _, r := range rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// rankPass sorts one bucket by the metric and assigns ranks. Ties are
// detected on the value rendered at the given precision, so results that
// display identically share a rank regardless of sub-precision differences.
// A maximal tied run from position p through q (1-based) gets rank p under
// the share policy and (p+q)/2 under the average policy.
func rankPass(
	bucket []*row,
	metric func(*row) (float64, bool),
	descending bool,
	precision int,
	policy domain.TiePolicy,
	assign func(*row, float64),
) {
	type scored struct {
		r        *row
		value    float64
		rendered string
	}
	var items []scored
	for _, r := range bucket {
		v, ok := metric(r)
		if !ok {
			continue
		}
		items = append(items, scored{r: r, value: v, rendered: strconv.FormatFloat(v, 'f', precision, 64)})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].value != items[j].value {
			if descending {
				return items[i].value > items[j].value
			}
			return items[i].value < items[j].value
		}
		return items[i].r.out.StagedID < items[j].r.out.StagedID
	})

	for start := 0; start < len(items); {
		end := start
		for end+1 < len(items) && items[end+1].rendered == items[start].rendered {
			end++
		}
		p, q := float64(start+1), float64(end+1)
		rank := p
		if policy == domain.TieAverage {
			rank = (p + q) / 2
		}
		for i := start; i <= end; i++ {
			assign(items[i].r, rank)
		}
		start = end + 1
	}
}
