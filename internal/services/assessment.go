package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/carecall/carecall/internal/models"
	"github.com/carecall/carecall/internal/utils"
)

// CriticalSeverityThreshold is the symptom severity from which keywords count as critical.
const CriticalSeverityThreshold = 8

// CriticalKeywords mark symptoms that need immediate senior attention.
var CriticalKeywords = []string{
	"chest pain",
	"difficulty breathing",
	"shortness of breath",
	"unconscious",
	"unresponsive",
	"severe bleeding",
	"stroke",
	"seizure",
	"heart attack",
	"suicidal",
	"overdose",
	"anaphylaxis",
	"choking",
	"paralysis",
}

// HasCriticalSymptoms reports whether the symptoms combine a high severity
// with a critical keyword in the complaint or associated symptoms.
func HasCriticalSymptoms(s models.Symptoms) (string, bool) {
	if s.Severity < CriticalSeverityThreshold {
		return "", false
	}
	text := s.PrimaryComplaint + " " + strings.Join(s.AssociatedSymptoms, " ")
	return utils.ContainsAnyFold(text, CriticalKeywords)
}

// EpisodeWaitMinutes measures the wait from the latest alert, or from
// episode creation when none was raised.
func EpisodeWaitMinutes(ep *models.Episode, now time.Time) int {
	since := ep.CreatedAt
	if ep.EmergencyStatus != nil && ep.EmergencyStatus.LastAlertAt != nil {
		since = *ep.EmergencyStatus.LastAlertAt
	}
	return models.WholeMinutesBetween(since, now)
}

// AssessEscalationNeed decides, without side effects, whether an episode
// should be escalated and to which level.
func AssessEscalationNeed(ep *models.Episode, roster models.Roster, now time.Time) models.EscalationAssessment {
	var reasons []string

	keyword, critical := HasCriticalSymptoms(ep.Symptoms)
	if critical {
		reasons = append(reasons, fmt.Sprintf("Critical symptoms detected (%s, severity %d/10)", keyword, ep.Symptoms.Severity))
	}

	wait := EpisodeWaitMinutes(ep, now)
	maxWait := ep.UrgencyLevel.MaxWaitMinutes()
	overdue := wait > maxWait
	if overdue {
		reasons = append(reasons, fmt.Sprintf("Wait time %d minutes exceeds %d minute limit for %s", wait, maxWait, urgencyLabel(ep.UrgencyLevel)))
	}

	a := models.EscalationAssessment{Reason: strings.Join(reasons, "; ")}
	switch {
	case critical && overdue:
		a.Required, a.TargetLevel, a.UrgentResponse = true, models.EscalationLevelCritical, true
	case critical:
		a.Required, a.TargetLevel, a.UrgentResponse = true, models.EscalationLevel2, true
	case overdue:
		a.Required, a.TargetLevel = true, models.EscalationLevel1
	default:
		a.Reason = "No escalation criteria met"
		return a
	}
	a.TimeoutMinutes = roster.TimeoutMinutes(a.TargetLevel, a.UrgentResponse)
	return a
}

func urgencyLabel(u models.UrgencyLevel) string {
	if u == "" {
		return string(models.UrgencyRoutine)
	}
	return string(u)
}
