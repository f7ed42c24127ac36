package service

import (
	"context"
	"testing"

	"raceadmin/internal/domain"

	"github.com/rs/zerolog"
)

func TestImportRosterCollapsesDuplicateMemberships(t *testing.T) {
	e := newEnv(t)
	svc := NewRosterImportService(e.roster, zerolog.Nop())
	ctx := context.Background()

	// Three records for the same person: two renewals of the same term
	// (earliest renewal wins) plus an older expired term (dropped in favor
	// of the latest expiration).
	records := []domain.RosterRecord{
		{FamilyName: "Doe", GivenName: "Jane", Gender: "F", DOB: "1985-03-15", Renewal: "2025-01-10", Expiration: "2025-12-31"},
		{FamilyName: "Doe", GivenName: "Jane", Gender: "F", DOB: "1985-03-15", Renewal: "2024-11-01", Expiration: "2025-12-31"},
		{FamilyName: "Doe", GivenName: "Jane", Gender: "F", DOB: "1985-03-15", Renewal: "2024-01-05", Expiration: "2024-12-31"},
		{FamilyName: "Smith", GivenName: "John", Gender: "M", DOB: "1990-07-01", Renewal: "2025-02-01", Expiration: "2025-12-31"},
	}

	summary, err := svc.ImportRoster(ctx, "Test Striders", records)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Created != 2 || summary.Updated != 0 {
		t.Fatalf("summary = %+v, want 2 created", summary)
	}

	clubID, err := e.roster.EnsureClub(ctx, "Test Striders")
	if err != nil {
		t.Fatal(err)
	}
	dob := date(1985, 3, 15)
	jane, err := e.roster.GetByIdentity(ctx, clubID, "Jane Doe", &dob, domain.GenderFemale)
	if err != nil {
		t.Fatal(err)
	}
	if jane.ExpirationDate == nil || !jane.ExpirationDate.Equal(date(2025, 12, 31)) {
		t.Errorf("expiration = %v, want the latest term", jane.ExpirationDate)
	}
	if jane.RenewalDate == nil || !jane.RenewalDate.Equal(date(2024, 11, 1)) {
		t.Errorf("renewal = %v, want the earliest renewal of the kept term", jane.RenewalDate)
	}
}

func TestImportRosterUpdatesExistingEntries(t *testing.T) {
	e := newEnv(t)
	svc := NewRosterImportService(e.roster, zerolog.Nop())
	ctx := context.Background()

	records := []domain.RosterRecord{
		{FamilyName: "Doe", GivenName: "Jane", Gender: "F", DOB: "1985-03-15", Renewal: "2024-01-10", Expiration: "2024-12-31"},
	}
	if _, err := svc.ImportRoster(ctx, "Test Striders", records); err != nil {
		t.Fatal(err)
	}

	renewed := []domain.RosterRecord{
		{FamilyName: "Doe", GivenName: "Jane", Gender: "F", DOB: "1985-03-15", Renewal: "2025-01-10", Expiration: "2025-12-31"},
	}
	summary, err := svc.ImportRoster(ctx, "Test Striders", renewed)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Created != 0 || summary.Updated != 1 {
		t.Fatalf("summary = %+v, want 1 updated", summary)
	}
}

func TestImportRosterReportsRowErrors(t *testing.T) {
	e := newEnv(t)
	svc := NewRosterImportService(e.roster, zerolog.Nop())

	records := []domain.RosterRecord{
		{FamilyName: "Doe", GivenName: "Jane", Gender: "F", DOB: "not-a-date", Renewal: "2025-01-10", Expiration: "2025-12-31"},
		{FamilyName: "Smith", GivenName: "John", Gender: "M", DOB: "1990-07-01", Renewal: "2025-02-01", Expiration: "2025-12-31"},
	}
	summary, err := svc.ImportRoster(context.Background(), "Test Striders", records)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Created != 1 {
		t.Errorf("created = %d, want the valid row only", summary.Created)
	}
	if len(summary.RowErrors) != 1 || summary.RowErrors[0].Field != "dob" {
		t.Errorf("row errors = %+v", summary.RowErrors)
	}
}
