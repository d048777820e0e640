package models

import "time"

// EscalationLevel is a rung on the escalation ladder.
type EscalationLevel string

const (
	EscalationLevel1        EscalationLevel = "level-1"
	EscalationLevel2        EscalationLevel = "level-2"
	EscalationLevel3        EscalationLevel = "level-3"
	EscalationLevelCritical EscalationLevel = "critical"
)

// EscalationLadder lists every level from lowest to highest.
var EscalationLadder = []EscalationLevel{
	EscalationLevel1,
	EscalationLevel2,
	EscalationLevel3,
	EscalationLevelCritical,
}

// ParseEscalationLevel returns the level named by s and whether it is valid.
func ParseEscalationLevel(s string) (EscalationLevel, bool) {
	l := EscalationLevel(s)
	return l, l.Rank() > 0
}

// Rank orders levels: level-1 < level-2 < level-3 < critical. Unknown levels rank 0.
func (l EscalationLevel) Rank() int {
	for i, lvl := range EscalationLadder {
		if lvl == l {
			return i + 1
		}
	}
	return 0
}

// Next returns the following rung, staying at critical once reached.
func (l EscalationLevel) Next() EscalationLevel {
	r := l.Rank()
	if r == 0 {
		return EscalationLevel1
	}
	if r >= len(EscalationLadder) {
		return EscalationLevelCritical
	}
	return EscalationLadder[r]
}

// AndAbove returns l followed by every higher level.
func (l EscalationLevel) AndAbove() []EscalationLevel {
	r := l.Rank()
	if r == 0 {
		return nil
	}
	out := make([]EscalationLevel, 0, len(EscalationLadder)-r+1)
	return append(out, EscalationLadder[r-1:]...)
}

// EscalationStatus is the lifecycle state of an escalation record.
type EscalationStatus string

const (
	EscalationStatusActive     EscalationStatus = "active"
	EscalationStatusInProgress EscalationStatus = "in-progress"
	EscalationStatusCompleted  EscalationStatus = "completed"
	EscalationStatusFailed     EscalationStatus = "failed"
)

// CanTransitionTo reports whether an escalation may move from s to next.
// completed and failed are terminal.
func (s EscalationStatus) CanTransitionTo(next EscalationStatus) bool {
	switch s {
	case EscalationStatusActive:
		return next == EscalationStatusInProgress || next == EscalationStatusCompleted || next == EscalationStatusFailed
	case EscalationStatusInProgress:
		return next == EscalationStatusCompleted || next == EscalationStatusFailed
	default:
		return false
	}
}

// IsOpen is true for escalations still awaiting an outcome.
func (s EscalationStatus) IsOpen() bool {
	return s == EscalationStatusActive || s == EscalationStatusInProgress
}

// EscalationProtocol is one escalation cycle raised against an episode.
type EscalationProtocol struct {
	EscalationID         string           `json:"escalationId"`
	EpisodeID            string           `json:"episodeId"`
	EscalationLevel      EscalationLevel  `json:"escalationLevel"`
	Reason               string           `json:"reason"`
	TargetLevel          EscalationLevel  `json:"targetLevel,omitempty"`
	UrgentResponse       bool             `json:"urgentResponse"`
	CreatedAt            time.Time        `json:"createdAt"`
	Status               EscalationStatus `json:"status"`
	AssignedSupervisors  []string         `json:"assignedSupervisors"`
	EscalationPath       [][]string       `json:"escalationPath"`
	TimeoutMinutes       int              `json:"timeoutMinutes"`
	CompletedAt          *time.Time       `json:"completedAt,omitempty"`
	FailureReason        string           `json:"failureReason,omitempty"`
	PreviousEscalationID string           `json:"previousEscalationId,omitempty"`
}

// Deadline is the instant after which the escalation counts as timed out.
func (e EscalationProtocol) Deadline() time.Time {
	return e.CreatedAt.Add(time.Duration(e.TimeoutMinutes) * time.Minute)
}

// HighestLevel returns the highest level among open escalations, or "" if none are open.
func HighestLevel(escalations []EscalationProtocol) EscalationLevel {
	var best EscalationLevel
	for _, e := range escalations {
		if !e.Status.IsOpen() {
			continue
		}
		if e.EscalationLevel.Rank() > best.Rank() {
			best = e.EscalationLevel
		}
	}
	return best
}

// EscalationAssessment is the advisory result of assessing an episode.
type EscalationAssessment struct {
	Required       bool            `json:"required"`
	Reason         string          `json:"reason"`
	TargetLevel    EscalationLevel `json:"targetLevel,omitempty"`
	UrgentResponse bool            `json:"urgentResponse"`
	TimeoutMinutes int             `json:"timeoutMinutes"`
}
