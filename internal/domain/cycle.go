package domain

import "time"

// CyclePhase is the state of one optimization cycle:
// idle -> building -> published -> awaiting_answer -> idle (with outcome applied or rejected).
type CyclePhase string

const (
	PhaseIdle           CyclePhase = "idle"
	PhaseBuilding       CyclePhase = "building"
	PhasePublished      CyclePhase = "published"
	PhaseAwaitingAnswer CyclePhase = "awaiting_answer"
)

type CycleOutcome string

const (
	OutcomeNone     CycleOutcome = ""
	OutcomeApplied  CycleOutcome = "applied"
	OutcomeRejected CycleOutcome = "rejected"
)

// CycleStatus describes the most recent optimization cycle.
type CycleStatus struct {
	ID         string
	Phase      CyclePhase
	Generation uint64
	Size       int
	Partial    bool
	Outcome    CycleOutcome
	Reason     string
	UpdatedAt  time.Time
}
