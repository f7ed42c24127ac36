package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FieldError is one field-level problem on an ingested row. Rows with field
// errors are reported back and never staged.
type FieldError struct {
	Row   int    `json:"row"`
	Field string `json:"field"`
	Value string `json:"value"`
	Msg   string `json:"msg"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("row %d field %s (%q): %s", e.Row, e.Field, e.Value, e.Msg)
}

// ResultRecord is one finisher row as received from a file or the results
// feed, before validation. Either Name or FName+LName must be present, and
// either Hometown or City+State.
type ResultRecord struct {
	Place    string `json:"place"`
	Name     string `json:"name"`
	FName    string `json:"fname"`
	LName    string `json:"lname"`
	Gender   string `json:"gender"`
	Age      string `json:"age"`
	City     string `json:"city"`
	State    string `json:"state"`
	Hometown string `json:"hometown"`
	Club     string `json:"club"`
	Time     string `json:"time"`
}

// Normalize validates the record and synthesizes the derived fields: name
// from fname+lname (and vice versa), hometown from city+state. Field errors
// are collected, not short-circuited, so the caller can report them all.
func (r ResultRecord) Normalize(row int) (RawResult, []FieldError) {
	var errs []FieldError
	out := RawResult{Club: strings.TrimSpace(r.Club)}

	name := strings.TrimSpace(r.Name)
	if name == "" {
		name = strings.TrimSpace(strings.TrimSpace(r.FName) + " " + strings.TrimSpace(r.LName))
	}
	if name == "" {
		errs = append(errs, FieldError{Row: row, Field: "name", Msg: "name or fname/lname required"})
	}
	out.Name = name

	gender, err := ParseGender(r.Gender)
	if err != nil {
		errs = append(errs, FieldError{Row: row, Field: "gender", Value: r.Gender, Msg: err.Error()})
	}
	out.Gender = gender

	if age := strings.TrimSpace(r.Age); age != "" {
		n, err := strconv.Atoi(age)
		if err != nil || n < 0 {
			errs = append(errs, FieldError{Row: row, Field: "age", Value: r.Age, Msg: "age must be a non-negative integer"})
		} else {
			out.Age = n
		}
	}

	if place := strings.TrimSpace(r.Place); place != "" {
		n, err := strconv.Atoi(place)
		if err != nil || n <= 0 {
			errs = append(errs, FieldError{Row: row, Field: "place", Value: r.Place, Msg: "place must be a positive integer"})
		} else {
			out.Place = &n
		}
	}

	hometown := strings.TrimSpace(r.Hometown)
	if hometown == "" {
		city, state := strings.TrimSpace(r.City), strings.TrimSpace(r.State)
		switch {
		case city != "" && state != "":
			hometown = city + ", " + state
		case city != "":
			hometown = city
		case state != "":
			hometown = state
		}
	}
	out.Hometown = hometown

	secs, err := ParseFinishTime(r.Time)
	if err != nil {
		errs = append(errs, FieldError{Row: row, Field: "time", Value: r.Time, Msg: err.Error()})
	}
	out.TimeSec = secs

	return out, errs
}

// ParseFinishTime accepts plain seconds ("1234.5") or clock formats
// ("mm:ss", "h:mm:ss", fractional seconds allowed).
func ParseFinishTime(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("time is required")
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("malformed time %q", s)
	}
	var total float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("malformed time %q", s)
		}
		total = total*60 + v
	}
	if total <= 0 {
		return 0, fmt.Errorf("time must be positive, got %q", s)
	}
	return total, nil
}

// RosterRecord is one membership row from a roster import file.
type RosterRecord struct {
	FamilyName string `json:"family_name"`
	GivenName  string `json:"given_name"`
	Gender     string `json:"gender"`
	DOB        string `json:"dob"`        // 2006-01-02
	Renewal    string `json:"renewal"`    // 2006-01-02
	Expiration string `json:"expiration"` // 2006-01-02
}

const dateLayout = "2006-01-02"

func (r RosterRecord) Normalize(row int) (RosterEntry, []FieldError) {
	var errs []FieldError
	entry := RosterEntry{Status: StatusMember}

	family, given := strings.TrimSpace(r.FamilyName), strings.TrimSpace(r.GivenName)
	if family == "" || given == "" {
		errs = append(errs, FieldError{Row: row, Field: "name", Msg: "family and given name required"})
	}
	entry.Name = strings.TrimSpace(given + " " + family)

	gender, err := ParseGender(r.Gender)
	if err != nil {
		errs = append(errs, FieldError{Row: row, Field: "gender", Value: r.Gender, Msg: err.Error()})
	}
	entry.Gender = gender

	dob, err := time.Parse(dateLayout, strings.TrimSpace(r.DOB))
	if err != nil {
		errs = append(errs, FieldError{Row: row, Field: "dob", Value: r.DOB, Msg: "date of birth must be YYYY-MM-DD"})
	} else {
		entry.DOB = &dob
	}

	renewal, err := time.Parse(dateLayout, strings.TrimSpace(r.Renewal))
	if err != nil {
		errs = append(errs, FieldError{Row: row, Field: "renewal", Value: r.Renewal, Msg: "renewal date must be YYYY-MM-DD"})
	} else {
		entry.RenewalDate = &renewal
	}

	expiration, err := time.Parse(dateLayout, strings.TrimSpace(r.Expiration))
	if err != nil {
		errs = append(errs, FieldError{Row: row, Field: "expiration", Value: r.Expiration, Msg: "expiration date must be YYYY-MM-DD"})
	} else {
		entry.ExpirationDate = &expiration
	}

	return entry, errs
}
