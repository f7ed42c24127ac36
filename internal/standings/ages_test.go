package standings

import (
	"testing"

	"raceadmin/internal/domain"
)

func TestDivisionAge(t *testing.T) {
	dob := date(1985, 2, 1)
	// On January 1 the February birthday has not happened yet.
	if got := DivisionAge(dob, 2025); got != 39 {
		t.Errorf("DivisionAge = %d, want 39", got)
	}
	janDob := date(1985, 1, 1)
	if got := DivisionAge(janDob, 2025); got != 40 {
		t.Errorf("DivisionAge for Jan 1 birthday = %d, want 40", got)
	}
}

func TestGradeAge(t *testing.T) {
	raceDate := date(2025, 3, 10)
	dob := date(1985, 2, 1)

	entry := &domain.RosterEntry{DOB: &dob}
	if got := GradeAge(entry, 99, raceDate); got != 40 {
		t.Errorf("GradeAge with DOB = %d, want 40 (stated age ignored)", got)
	}

	noDOB := &domain.RosterEntry{}
	if got := GradeAge(noDOB, 37, raceDate); got != 37 {
		t.Errorf("GradeAge without DOB = %d, want stated 37", got)
	}
	if got := GradeAge(nil, 0, raceDate); got != 0 {
		t.Errorf("GradeAge with nothing known = %d, want 0", got)
	}
}

func TestValidateBrackets(t *testing.T) {
	ok := []domain.DivisionConfig{
		{LowAge: 40, HighAge: 49},
		{LowAge: 20, HighAge: 29},
		{LowAge: 30, HighAge: 39},
	}
	if err := ValidateBrackets(ok); err != nil {
		t.Errorf("contiguous brackets rejected: %v", err)
	}

	gapped := []domain.DivisionConfig{
		{LowAge: 20, HighAge: 29},
		{LowAge: 50, HighAge: 59},
	}
	if err := ValidateBrackets(gapped); err != nil {
		t.Errorf("gapped brackets are allowed, got: %v", err)
	}

	overlapping := []domain.DivisionConfig{
		{LowAge: 20, HighAge: 30},
		{LowAge: 30, HighAge: 39},
	}
	if err := ValidateBrackets(overlapping); err == nil {
		t.Error("overlapping brackets accepted")
	}
}

func TestAssignDivision(t *testing.T) {
	divisions := []domain.DivisionConfig{
		{ID: 1, LowAge: 20, HighAge: 29},
		{ID: 2, LowAge: 40, HighAge: 49},
	}
	if d := AssignDivision(divisions, 45); d == nil || d.ID != 2 {
		t.Errorf("age 45 assigned to %+v, want bracket 2", d)
	}
	if d := AssignDivision(divisions, 35); d != nil {
		t.Errorf("age 35 falls in a gap, got %+v", d)
	}
}
