package notify

import (
	"fmt"
	"strings"

	"github.com/carecall/carecall/internal/models"
	"github.com/carecall/carecall/internal/utils"
)

// AlertUrgency maps alert severity to message urgency.
func AlertUrgency(s models.Severity) models.NotificationUrgency {
	switch s {
	case models.SeverityCritical:
		return models.UrgencyCritical
	case models.SeverityHigh:
		return models.UrgencyHigh
	default:
		return models.UrgencyNormal
	}
}

// EscalationUrgency is critical for urgent or critical-level escalations.
func EscalationUrgency(e models.EscalationProtocol) models.NotificationUrgency {
	if e.UrgentResponse || e.EscalationLevel == models.EscalationLevelCritical {
		return models.UrgencyCritical
	}
	return models.UrgencyHigh
}

// UrgencyEmoji returns an emoji for the given urgency level
func UrgencyEmoji(u models.NotificationUrgency) string {
	switch u {
	case models.UrgencyCritical:
		return "🔴"
	case models.UrgencyHigh:
		return "🟠"
	case models.UrgencyNormal:
		return "🟡"
	case models.UrgencyLow:
		return "🟢"
	default:
		return "⚠️"
	}
}

// notePreviewLength caps free text copied into notification bodies.
const notePreviewLength = 280

func patientLabel(ep *models.Episode) string {
	if ep.PatientID == "" {
		return "episode " + ep.EpisodeID
	}
	return "patient " + ep.PatientID
}

func immediateAlertContent(ep *models.Episode, a models.EmergencyAlert) (string, string) {
	subject := fmt.Sprintf("%s emergency alert for %s", strings.ToUpper(string(a.Severity)), patientLabel(ep))

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Alert type: %s\n", a.AlertType))
	sb.WriteString(fmt.Sprintf("Symptoms: %s\n", ep.Symptoms.Summary()))
	sb.WriteString(fmt.Sprintf("Assigned: %s\n", utils.JoinOrNone(a.AssignedSupervisors)))
	sb.WriteString(fmt.Sprintf("Respond within %s", utils.FormatMinutes(a.Severity.ResponseTargetMinutes())))
	if a.AdditionalInfo != "" {
		sb.WriteString("\nNotes: " + utils.TruncateText(a.AdditionalInfo, notePreviewLength))
	}
	return subject, sb.String()
}

func escalationContent(ep *models.Episode, e models.EscalationProtocol) (string, string) {
	subject := fmt.Sprintf("Escalation to %s for %s", e.EscalationLevel, patientLabel(ep))
	if e.UrgentResponse {
		subject = "URGENT " + subject
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Reason: %s\n", e.Reason))
	sb.WriteString(fmt.Sprintf("Symptoms: %s\n", ep.Symptoms.Summary()))
	sb.WriteString(fmt.Sprintf("Assigned: %s\n", utils.JoinOrNone(e.AssignedSupervisors)))
	sb.WriteString(fmt.Sprintf("Respond within %s\n", utils.FormatMinutes(e.TimeoutMinutes)))
	sb.WriteString("Path: " + FormatPath(e.EscalationLevel, e.EscalationPath))
	return subject, sb.String()
}

// FormatPath renders an escalation path as "level-1 (a, b) > level-2 (c)".
func FormatPath(from models.EscalationLevel, path [][]string) string {
	levels := from.AndAbove()
	parts := make([]string, 0, len(path))
	for i, pool := range path {
		name := fmt.Sprintf("step %d", i+1)
		if i < len(levels) {
			name = string(levels[i])
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", name, utils.JoinOrNone(pool)))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " > ")
}

func responseContent(ep *models.Episode, ev models.ResponseEvent) (string, string) {
	subject := fmt.Sprintf("%s recorded %s for %s", ev.SupervisorID, ev.Action, patientLabel(ep))
	body := fmt.Sprintf("Action: %s\nAt: %s", ev.Action, ev.Timestamp.UTC().Format("15:04 MST"))
	if ev.Notes != "" {
		body += "\nNotes: " + utils.TruncateText(ev.Notes, notePreviewLength)
	}
	return subject, body
}

func timeoutWarningContent(ep *models.Episode, a models.EmergencyAlert, minutes int) (string, string) {
	subject := fmt.Sprintf("Response target for %s elapses in %s", patientLabel(ep), utils.FormatMinutes(minutes))
	body := fmt.Sprintf("Alert %s (%s) is still unacknowledged.\nAssigned: %s",
		a.AlertID, a.Severity, utils.JoinOrNone(a.AssignedSupervisors))
	return subject, body
}

func statusUpdateContent(s models.EmergencyStats) (string, string) {
	subject := fmt.Sprintf("Emergency status: %d active, %d critical", s.ActiveAlerts, s.CriticalAlerts)
	body := fmt.Sprintf("Active alerts: %d\nCritical alerts: %d\nOverdue alerts: %d\nAverage response: %.1f minutes",
		s.ActiveAlerts, s.CriticalAlerts, s.OverdueAlerts, s.AverageResponseTime)
	return subject, body
}

// FormatForSlack renders a message as Slack mrkdwn.
func FormatForSlack(msg models.NotificationMessage) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s *%s*\n", UrgencyEmoji(msg.Urgency), msg.Subject))
	if msg.Body != "" {
		for _, line := range strings.Split(msg.Body, "\n") {
			if k, v, ok := strings.Cut(line, ": "); ok {
				sb.WriteString(fmt.Sprintf("\n*%s*: %s", k, v))
				continue
			}
			sb.WriteString("\n" + line)
		}
	}
	if msg.EpisodeID != "" {
		sb.WriteString(fmt.Sprintf("\n\n_episode %s_", msg.EpisodeID))
	}
	return sb.String()
}
