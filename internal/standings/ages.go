package standings

import (
	"time"

	"raceadmin/internal/domain"
)

// The two age computations below are intentionally different and must stay
// separate: divisions group runners by "age this calendar year", age grading
// reflects fitness on the exact race day. Conflating them has been a source
// of defects in systems like this.

// DivisionAge is the runner's age as of January 1 of the competition year.
func DivisionAge(dob time.Time, year int) int {
	jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return domain.YearsBetween(dob, jan1)
}

// GradeAge is the age used for age grading: calendar age on race day when the
// date of birth is known, otherwise the age stated on the result (0 when that
// too is unknown).
func GradeAge(entry *domain.RosterEntry, statedAge int, raceDate time.Time) int {
	if entry != nil {
		if age, ok := entry.AgeAt(raceDate); ok {
			return age
		}
	}
	return statedAge
}
