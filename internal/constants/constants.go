package constants

import "time"

// Reconciliation defaults. All three are overridable through config.
const (
	DefaultSimilarityThreshold = 0.7
	DefaultCloseAgeMaxDelta    = 3 // years
	DefaultJoinGraceDays       = 7
)

// Tolerance when checking a DOB-unknown candidate's age against the age
// recorded on their most recent prior result, after accounting for elapsed
// time between the two races.
const PriorResultAgeTolerance = 1

const (
	ResultsFeedTimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
	DBBatchSize       = 100
)

const (
	ShutdownTimeout = 5 * time.Second
	SweepTimeout    = 10 * time.Minute
)

// How many finished tasks the task manager keeps for polling before pruning
// the oldest.
const TaskRetention = 256
