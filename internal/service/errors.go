package service

import "errors"

// Configuration errors are fatal to the operation that hits them and are
// reported with their specific cause, never silently degraded.
var (
	ErrRaceHasNoSeries  = errors.New("race has no series configured; results cannot be imported or tabulated")
	ErrNotConfirmable   = errors.New("result is not in a confirmable state")
	ErrNotUnconfirmable = errors.New("result is not confirmed")
	ErrMembersOnlyRace  = errors.New("cannot register a non-member for a members-only race")
)
