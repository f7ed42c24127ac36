package repository

import "errors"

var (
	ErrClubNotFound         = errors.New("club not found")
	ErrRosterEntryNotFound  = errors.New("roster entry not found")
	ErrRaceNotFound         = errors.New("race not found")
	ErrStagedResultNotFound = errors.New("staged result not found")
	ErrSeriesNotFound       = errors.New("series not found")
	ErrNoPriorResult        = errors.New("no prior result for entry")
)
