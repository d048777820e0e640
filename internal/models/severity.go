package models

import "strings"

// Severity is the urgency class of an emergency alert.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
)

// DefaultSeverity is applied when a caller omits the severity.
const DefaultSeverity = SeverityHigh

// ParseSeverity normalizes caller input. Empty input yields DefaultSeverity and
// anything unrecognized is treated as medium.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultSeverity
	case SeverityCritical:
		return SeverityCritical
	case SeverityHigh:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// Rank orders severities: critical > high > medium.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	default:
		return 1
	}
}

// SupervisorCount is how many members of the supervisor pool an alert of this
// severity is assigned to. A count of 0 means the whole pool.
func (s Severity) SupervisorCount() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 2
	default:
		return 1
	}
}

// ResponseTargetMinutes is the response-time estimate returned to callers.
func (s Severity) ResponseTargetMinutes() int {
	switch s {
	case SeverityCritical:
		return 2
	case SeverityHigh:
		return 5
	default:
		return 10
	}
}

// UrgencyLevel is the triage classification assigned at intake.
type UrgencyLevel string

const (
	UrgencyRoutine   UrgencyLevel = "ROUTINE"
	UrgencyUrgent    UrgencyLevel = "URGENT"
	UrgencyEmergency UrgencyLevel = "EMERGENCY"
)

// MaxWaitMinutes is the longest tolerated wait before an episode of this
// urgency should be escalated.
func (u UrgencyLevel) MaxWaitMinutes() int {
	switch u {
	case UrgencyEmergency:
		return 5
	case UrgencyUrgent:
		return 30
	default:
		return 120
	}
}
