package services

import (
	"sort"
	"time"

	"github.com/carecall/carecall/internal/models"
)

// EscalationTimeout is one episode's re-escalation decision from a sweep.
type EscalationTimeout struct {
	EpisodeID string
	// Expired are the episode's open escalations past their deadline.
	Expired   []models.EscalationProtocol
	NextLevel models.EscalationLevel
	Urgent    bool
}

// DetectEscalationTimeouts is the pure half of the timeout sweep: it groups
// open escalations past their deadline by episode and picks the level to
// re-escalate to. Results are ordered by episode id.
func DetectEscalationTimeouts(now time.Time, escalations []models.EscalationProtocol) []EscalationTimeout {
	byEpisode := map[string]*EscalationTimeout{}
	var order []string

	for _, e := range escalations {
		if !e.Status.IsOpen() || !now.After(e.Deadline()) {
			continue
		}
		t, ok := byEpisode[e.EpisodeID]
		if !ok {
			t = &EscalationTimeout{EpisodeID: e.EpisodeID}
			byEpisode[e.EpisodeID] = t
			order = append(order, e.EpisodeID)
		}
		t.Expired = append(t.Expired, e)
	}

	sort.Strings(order)
	out := make([]EscalationTimeout, 0, len(order))
	for _, id := range order {
		t := byEpisode[id]
		sort.SliceStable(t.Expired, func(i, j int) bool {
			return t.Expired[i].CreatedAt.Before(t.Expired[j].CreatedAt)
		})
		top := t.Expired[0]
		for _, e := range t.Expired[1:] {
			if e.EscalationLevel.Rank() > top.EscalationLevel.Rank() {
				top = e
			}
		}
		if top.EscalationLevel == models.EscalationLevelCritical {
			t.NextLevel, t.Urgent = models.EscalationLevelCritical, true
		} else {
			t.NextLevel, t.Urgent = top.EscalationLevel.Next(), top.UrgentResponse
		}
		out = append(out, *t)
	}
	return out
}

// SweepReport summarizes one timeout sweep.
type SweepReport struct {
	Scanned          int      `json:"scanned"`
	TimedOut         int      `json:"timedOut"`
	Escalated        int      `json:"escalated"`
	Failed           int      `json:"failed"`
	NewEscalationIDs []string `json:"newEscalationIds"`
	Errors           []string `json:"errors,omitempty"`
}
