package domain

import (
	"fmt"
	"strings"
	"time"
)

type Gender string

const (
	GenderFemale Gender = "F"
	GenderMale   Gender = "M"
)

// ParseGender folds a free-form gender token ("f", "Female", "M") down to the
// single-letter code used everywhere else.
func ParseGender(s string) (Gender, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("gender is required")
	}
	switch strings.ToUpper(s[:1]) {
	case "F", "W":
		return GenderFemale, nil
	case "M":
		return GenderMale, nil
	}
	return "", fmt.Errorf("unrecognized gender %q", s)
}

type MemberStatus string

const (
	StatusMember    MemberStatus = "member"
	StatusInactive  MemberStatus = "inactive"
	StatusNonMember MemberStatus = "nonmember"
)

// Precedence used to break similarity ties: members first, then inactive
// members, then non-members.
func (s MemberStatus) Precedence() int {
	switch s {
	case StatusMember:
		return 0
	case StatusInactive:
		return 1
	default:
		return 2
	}
}

// RosterEntry is a club member or a non-member created by a prior import.
type RosterEntry struct {
	ID             int          `json:"id"`
	ClubID         int          `json:"club_id"`
	Name           string       `json:"name"`
	Gender         Gender       `json:"gender"`
	DOB            *time.Time   `json:"dob,omitempty"` // nil means unknown
	Status         MemberStatus `json:"status"`
	RenewalDate    *time.Time   `json:"renewal_date,omitempty"`
	ExpirationDate *time.Time   `json:"expiration_date,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// AgeAt returns the entry's age on the given date, false when DOB is unknown.
func (e *RosterEntry) AgeAt(on time.Time) (int, bool) {
	if e.DOB == nil {
		return 0, false
	}
	return YearsBetween(*e.DOB, on), true
}

// YearsBetween is calendar age: whole years from dob to on.
func YearsBetween(dob, on time.Time) int {
	years := on.Year() - dob.Year()
	anniversary := time.Date(on.Year(), dob.Month(), dob.Day(), 0, 0, 0, 0, time.UTC)
	if on.Before(anniversary) {
		years--
	}
	return years
}

type Club struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Surface string

const (
	SurfaceRoad  Surface = "road"
	SurfaceTrack Surface = "track"
	SurfaceTrail Surface = "trail"
)

type Race struct {
	ID          int       `json:"id"`
	ClubID      int       `json:"club_id"`
	Name        string    `json:"name"`
	Date        time.Time `json:"date"`
	DistanceKM  float64   `json:"distance_km"`
	Surface     Surface   `json:"surface"`
	MembersOnly bool      `json:"members_only"`
	// Set when staged results change after the last tabulation; cleared by
	// the standings service, swept nightly by the scheduler.
	NeedsTabulation bool `json:"needs_tabulation"`
}

// Year is the competition year divisions are scoped to.
func (r *Race) Year() int { return r.Date.Year() }

// RawResult is one normalized finisher row. Immutable once ingested.
type RawResult struct {
	Place    *int    `json:"place,omitempty"`
	Name     string  `json:"name"`
	Gender   Gender  `json:"gender"`
	Age      int     `json:"age"` // 0 means unknown
	Hometown string  `json:"hometown,omitempty"`
	Club     string  `json:"club,omitempty"` // free-text affiliation
	TimeSec  float64 `json:"time_sec"`
}

type Disposition string

const (
	DispositionMatch    Disposition = "match"
	DispositionClose    Disposition = "close"
	DispositionCloseAge Disposition = "closeage"
	DispositionMissed   Disposition = "missed"
	DispositionNotUsed  Disposition = "notused"
)

// StagedResult is one finisher attached to a race, awaiting or past
// administrator confirmation.
type StagedResult struct {
	ID          int         `json:"id"`
	Ref         string      `json:"ref"` // external identifier, nanoid
	RaceID      int         `json:"race_id"`
	EntryID     *int        `json:"entry_id,omitempty"`
	Disposition Disposition `json:"disposition"`
	Confirmed   bool        `json:"confirmed"`
	Place       *int        `json:"place,omitempty"`
	Name        string      `json:"name"`
	Gender      Gender      `json:"gender"`
	Age         int         `json:"age"`
	Hometown    string      `json:"hometown,omitempty"`
	Affiliation string      `json:"affiliation,omitempty"`
	TimeSec     float64     `json:"time_sec"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Validate enforces the staged-result invariants: confirmed rows must be
// MATCH or NOTUSED, and NOTUSED rows carry no linked entry.
func (s *StagedResult) Validate() error {
	if s.Confirmed && s.Disposition != DispositionMatch && s.Disposition != DispositionNotUsed {
		return fmt.Errorf("confirmed result %q has disposition %s", s.Name, s.Disposition)
	}
	if s.Disposition == DispositionNotUsed && s.EntryID != nil {
		return fmt.Errorf("notused result %q links entry %d", s.Name, *s.EntryID)
	}
	return nil
}

// ExclusionRecord pins an administrator decision: this result name must never
// again be auto-linked to this roster entry.
type ExclusionRecord struct {
	ID         int    `json:"id"`
	ClubID     int    `json:"club_id"`
	ResultName string `json:"result_name"`
	EntryID    int    `json:"entry_id"`
}

type OrderBy string

const (
	OrderByTime      OrderBy = "time"
	OrderByAGTime    OrderBy = "agtime"
	OrderByAGPercent OrderBy = "agpercent"
	OrderByOverall   OrderBy = "overall"
)

type TiePolicy string

const (
	TieShare   TiePolicy = "share"
	TieAverage TiePolicy = "average"
)

// SeriesConfig is one competition scoring configuration for a year.
type SeriesConfig struct {
	ID               int       `json:"id"`
	ClubID           int       `json:"club_id"`
	Name             string    `json:"name"`
	Year             int       `json:"year"`
	OrderBy          OrderBy   `json:"order_by"`
	Descending       bool      `json:"descending"`
	MembersOnly      bool      `json:"members_only"`
	DivisionsEnabled bool      `json:"divisions_enabled"`
	TiePolicy        TiePolicy `json:"tie_policy"`
}

// DivisionConfig is one age bracket within a series for a competition year.
// Brackets within one series/year must not overlap; they need not be
// contiguous.
type DivisionConfig struct {
	ID       int `json:"id"`
	SeriesID int `json:"series_id"`
	Year     int `json:"year"`
	LowAge   int `json:"low_age"`
	HighAge  int `json:"high_age"`
}

func (d DivisionConfig) Label() string {
	return fmt.Sprintf("%d-%d", d.LowAge, d.HighAge)
}

func (d DivisionConfig) Contains(age int) bool {
	return age >= d.LowAge && age <= d.HighAge
}

// RankedResult is the per-series tabulation output for one staged result.
// Places are float64 because the average tie policy produces halves.
type RankedResult struct {
	ID            int      `json:"id"`
	SeriesID      int      `json:"series_id"`
	RaceID        int      `json:"race_id"`
	StagedID      int      `json:"staged_id"`
	EntryID       int      `json:"entry_id"`
	OverallPlace  *float64 `json:"overall_place,omitempty"`
	GenderPlace   *float64 `json:"gender_place,omitempty"`
	DivisionLabel *string  `json:"division,omitempty"`
	DivisionPlace *float64 `json:"division_place,omitempty"`
	AGTimeSec     *float64 `json:"ag_time_sec,omitempty"`
	AGPercent     *float64 `json:"ag_percent,omitempty"`
	AGPlace       *float64 `json:"ag_place,omitempty"`
}
