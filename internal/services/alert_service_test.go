package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/carecall/carecall/internal/models"
	"github.com/carecall/carecall/internal/testhelpers"
)

type fixture struct {
	env         *testhelpers.TestEnv
	notifier    *testhelpers.RecordingNotifier
	alerts      *AlertService
	escalations *EscalationService
}

func newFixture(t *testing.T, withSubTables bool) *fixture {
	t.Helper()
	env := testhelpers.NewTestEnv(t, withSubTables)
	notifier := testhelpers.NewRecordingNotifier()
	deps := Deps{
		Episodes: env.Episodes,
		Records:  env.Records,
		Roster:   models.DefaultRoster(),
		Notifier: notifier,
		Logger:   env.Logger,
		Now:      env.Clock.Now,
		NewID:    testhelpers.SequentialIDs("id"),
	}
	return &fixture{
		env:         env,
		notifier:    notifier,
		alerts:      NewAlertService(deps),
		escalations: NewEscalationService(deps),
	}
}

// storageModes runs fn against the dedicated-table and the embedded fallback paths.
func storageModes(t *testing.T, fn func(t *testing.T, f *fixture)) {
	for _, mode := range []struct {
		name          string
		withSubTables bool
	}{
		{"dedicated tables", true},
		{"episode fallback", false},
	} {
		t.Run(mode.name, func(t *testing.T) {
			fn(t, newFixture(t, mode.withSubTables))
		})
	}
}

func (f *fixture) raise(t *testing.T, episodeID, severity string) *AlertResult {
	t.Helper()
	res, err := f.alerts.ProcessEmergencyAlert(context.Background(), AlertRequest{
		EpisodeID: episodeID,
		AlertType: "symptom_emergency",
		Severity:  severity,
	})
	if err != nil {
		t.Fatalf("ProcessEmergencyAlert(%s, %s): %v", episodeID, severity, err)
	}
	return res
}

// --- ProcessEmergencyAlert ---

func TestProcessEmergencyAlert_CriticalAssignsWholePool(t *testing.T) {
	storageModes(t, func(t *testing.T, f *fixture) {
		f.env.SeedEpisode(testhelpers.NewEpisodeBuilder("ep-1").Build())

		res, err := f.alerts.ProcessEmergencyAlert(context.Background(), AlertRequest{
			EpisodeID: "ep-1",
			AlertType: "cardiac_emergency",
			Severity:  "critical",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		testhelpers.AssertSliceLen(t, res.Alert.AssignedSupervisors, 3, "assigned supervisors")
		if res.EstimatedResponseTime != 2 {
			t.Errorf("expected estimatedResponseTime 2, got %d", res.EstimatedResponseTime)
		}
		if res.NotificationsSent != 3 {
			t.Errorf("expected notificationsSent 3, got %d", res.NotificationsSent)
		}
		if res.Alert.Status != models.AlertStatusActive {
			t.Errorf("expected active alert, got %s", res.Alert.Status)
		}
	})
}

func TestProcessEmergencyAlert_SeverityPolicy(t *testing.T) {
	pool := []string{"supervisor-1", "supervisor-2", "supervisor-3"}
	tests := []struct {
		severity    string
		wantSev     models.Severity
		supervisors int
		eta         int
	}{
		{"critical", models.SeverityCritical, 3, 2},
		{"high", models.SeverityHigh, 2, 5},
		{"", models.SeverityHigh, 2, 5},
		{"medium", models.SeverityMedium, 1, 10},
		{"catastrophic", models.SeverityMedium, 1, 10},
	}

	for _, tt := range tests {
		t.Run("severity="+tt.severity, func(t *testing.T) {
			f := newFixture(t, true)
			f.env.SeedEpisode(testhelpers.NewEpisodeBuilder("ep-1").Build())

			res := f.raise(t, "ep-1", tt.severity)

			if res.Severity != tt.wantSev {
				t.Errorf("expected severity %s, got %s", tt.wantSev, res.Severity)
			}
			testhelpers.AssertSliceEqual(t, res.Alert.AssignedSupervisors, pool[:tt.supervisors], "supervisor prefix")
			if res.EstimatedResponseTime != tt.eta {
				t.Errorf("expected eta %d, got %d", tt.eta, res.EstimatedResponseTime)
			}
		})
	}
}

func TestProcessEmergencyAlert_MissingEpisode(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.alerts.ProcessEmergencyAlert(context.Background(), AlertRequest{
		EpisodeID: "missing-ep",
		AlertType: "x",
		Severity:  "high",
	})

	if !IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if !strings.Contains(err.Error(), "missing-ep") {
		t.Errorf("expected error to mention missing-ep, got %q", err.Error())
	}
	if err.Error() != "Episode missing-ep not found" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if len(f.notifier.Calls()) != 0 {
		t.Error("expected no notifications for a missing episode")
	}
}

func TestProcessEmergencyAlert_FlagsEpisodeAndNotifies(t *testing.T) {
	storageModes(t, func(t *testing.T, f *fixture) {
		f.env.SeedEpisode(testhelpers.NewEpisodeBuilder("ep-1").Build())
		f.env.Clock.Advance(time.Minute)

		res := f.raise(t, "ep-1", "high")

		ep := f.env.Episode("ep-1")
		if !ep.HasActiveEmergency {
			t.Error("expected hasActiveEmergency")
		}
		if ep.EmergencyStatus == nil || ep.EmergencyStatus.LastAlertID != res.AlertID {
			t.Fatalf("expected snapshot to reference %s, got %+v", res.AlertID, ep.EmergencyStatus)
		}
		if ep.EmergencyStatus.ResponseStatus != models.ResponseStatusPending {
			t.Errorf("expected pending snapshot, got %s", ep.EmergencyStatus.ResponseStatus)
		}
		if !ep.UpdatedAt.Equal(f.env.Clock.Now()) {
			t.Errorf("expected updatedAt %v, got %v", f.env.Clock.Now(), ep.UpdatedAt)
		}

		calls := f.notifier.CallsOf(models.NotificationImmediateAlert)
		if len(calls) != 1 || calls[0].Alert.AlertID != res.AlertID {
			t.Errorf("expected one immediate alert for %s, got %+v", res.AlertID, calls)
		}
	})
}

func TestProcessEmergencyAlert_SanitizesAdditionalInfo(t *testing.T) {
	f := newFixture(t, true)
	f.env.SeedEpisode(testhelpers.NewEpisodeBuilder("ep-1").Build())

	res, err := f.alerts.ProcessEmergencyAlert(context.Background(), AlertRequest{
		EpisodeID:      "ep-1",
		AlertType:      "fall",
		AdditionalInfo: "  patient\x00 fell  ",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.ContainsRune(res.Alert.AdditionalInfo, 0) {
		t.Errorf("expected control characters stripped, got %q", res.Alert.AdditionalInfo)
	}
}

func TestProcessEmergencyAlert_ConcurrentTriggersAllRecorded(t *testing.T) {
	storageModes(t, func(t *testing.T, f *fixture) {
		f.env.SeedEpisode(testhelpers.NewEpisodeBuilder("ep-1").Build())

		testhelpers.ConcurrentTest(t, 4, func(int) {
			if _, err := f.alerts.ProcessEmergencyAlert(context.Background(), AlertRequest{
				EpisodeID: "ep-1",
				AlertType: "symptom_emergency",
				Severity:  "high",
			}); err != nil {
				t.Errorf("ProcessEmergencyAlert: %v", err)
			}
		})

		status, err := f.alerts.GetEmergencyStatus(context.Background(), "ep-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		testhelpers.AssertSliceLen(t, status.ActiveAlerts, 4, "active alerts")
		seen := map[string]bool{}
		for _, a := range status.ActiveAlerts {
			if seen[a.AlertID] {
				t.Errorf("duplicate alert id %s", a.AlertID)
			}
			seen[a.AlertID] = true
		}
	})
}

// --- GetEmergencyStatus ---

func TestGetEmergencyStatus_RoutineWithoutAlerts(t *testing.T) {
	storageModes(t, func(t *testing.T, f *fixture) {
		f.env.SeedEpisode(testhelpers.NewEpisodeBuilder("ep-1").WithUrgency(models.UrgencyRoutine).Build())

		status, err := f.alerts.GetEmergencyStatus(context.Background(), "ep-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status.IsEmergency {
			t.Error("expected isEmergency false")
		}
		if status.ActiveAlerts == nil || len(status.ActiveAlerts) != 0 {
			t.Errorf("expected empty non-nil activeAlerts, got %#v", status.ActiveAlerts)
		}
		if status.ResponseStatus != models.ResponseStatusResolved {
			t.Errorf("expected resolved with no alerts, got %s", status.ResponseStatus)
		}
		if status.AssignedSupervisors == nil || len(status.AssignedSupervisors) != 0 {
			t.Errorf("expected empty supervisors, got %#v", status.AssignedSupervisors)
		}
		if status.EstimatedResponseTime != 0 {
			t.Errorf("expected 0 eta, got %d", status.EstimatedResponseTime)
		}
	})
}

func TestGetEmergencyStatus_EmergencyTriageWithoutAlerts(t *testing.T) {
	f := newFixture(t, true)
	f.env.SeedEpisode(testhelpers.NewEpisodeBuilder("ep-1").AsEmergency().Build())

	status, err := f.alerts.GetEmergencyStatus(context.Background(), "ep-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.IsEmergency {
		t.Error("expected EMERGENCY triage to count as emergency")
	}
}

func TestGetEmergencyStatus_ActiveAlertMakesEmergency(t *testing.T) {
	storageModes(t, func(t *testing.T, f *fixture) {
		f.env.SeedEpisode(testhelpers.NewEpisodeBuilder("ep-1").WithUrgency(models.UrgencyRoutine).Build())
		f.raise(t, "ep-1", "medium")
		f.env.Clock.Advance(time.Minute)
		latest := f.raise(t, "ep-1", "critical")

		status, err := f.alerts.GetEmergencyStatus(context.Background(), "ep-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !status.IsEmergency {
			t.Error("expected an active alert to mark the episode as emergency")
		}
		if status.ResponseStatus != models.ResponseStatusPending {
			t.Errorf("expected pending, got %s", status.ResponseStatus)
		}
		testhelpers.AssertSliceEqual(t, status.AssignedSupervisors, latest.Alert.AssignedSupervisors, "latest alert supervisors")
		if status.EstimatedResponseTime != 2 {
			t.Errorf("expected latest alert eta 2, got %d", status.EstimatedResponseTime)
		}
	})
}

func TestGetEmergencyStatus_MissingEpisode(t *testing.T) {
	f := newFixture(t, true)

	if _, err := f.alerts.GetEmergencyStatus(context.Background(), "nope"); !IsNotFound(err) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

// --- GetEmergencyQueue ---

func TestGetEmergencyQueue_SeverityBeatsAge(t *testing.T) {
	tests := []struct {
		name  string
		order []string
	}{
		{"critical raised first", []string{"critical", "high"}},
		{"critical raised later", []string{"high", "critical"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true)
			f.env.SeedEpisode(testhelpers.NewEpisodeBuilder("ep-1").Build())
			f.raise(t, "ep-1", tt.order[0])
			f.env.Clock.Advance(time.Hour)
			f.raise(t, "ep-1", tt.order[1])
			f.env.Clock.Advance(time.Minute)

			queue, err := f.alerts.GetEmergencyQueue(context.Background(), "", 0)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(queue) != 2 {
				t.Fatalf("expected 2 items, got %d", len(queue))
			}
			if queue[0].Severity != models.SeverityCritical {
				t.Errorf("expected critical first, got %s", queue[0].Severity)
			}
		})
	}
}

func TestGetEmergencyQueue_LongerWaitFirstWithinSeverity(t *testing.T) {
	storageModes(t, func(t *testing.T, f *fixture) {
		f.env.SeedEpisode(testhelpers.NewEpisodeBuilder("ep-old").Build())
		f.env.SeedEpisode(testhelpers.NewEpisodeBuilder("ep-new").Build())
		f.raise(t, "ep-old", "high")
		f.env.Clock.Advance(10 * time.Minute)
		f.raise(t, "ep-new", "high")
		f.env.Clock.Advance(10 * time.Minute)

		queue, err := f.alerts.GetEmergencyQueue(context.Background(), "", 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(queue) != 2 {
			t.Fatalf("expected 2 items, got %d", len(queue))
		}
		if queue[0].EpisodeID != "ep-old" || queue[0].WaitTime != 20 {
			t.Errorf("expected ep-old waiting 20 minutes first, got %s (%d)", queue[0].EpisodeID, queue[0].WaitTime)
		}
		if queue[1].WaitTime != 10 {
			t.Errorf("expected second wait 10, got %d", queue[1].WaitTime)
		}
		if queue[0].SymptomSummary != "headache (severity 4/10)" {
			t.Errorf("unexpected summary %q", queue[0].SymptomSummary)
		}
	})
}

func TestGetEmergencyQueue_LimitAndSupervisorFilter(t *testing.T) {
	f := newFixture(t, true)
	for _, id := range []string{"ep-1", "ep-2", "ep-3"} {
		f.env.SeedEpisode(testhelpers.NewEpisodeBuilder(id).Build())
		f.raise(t, id, "medium")
		f.raise(t, id, "critical")
		f.env.Clock.Advance(time.Minute)
	}
	ctx := context.Background()

	tests := []struct {
		name       string
		supervisor string
		limit      int
		want       int
	}{
		{"limit truncates", "", 2, 2},
		{"default limit", "", 0, 6},
		{"supervisor-1 sees every alert", "supervisor-1", 10, 6},
		{"supervisor-3 sees critical only", "supervisor-3", 10, 3},
		{"unknown supervisor", "nobody", 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue, err := f.alerts.GetEmergencyQueue(ctx, tt.supervisor, tt.limit)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(queue) != tt.want {
				t.Fatalf("expected %d items, got %d", tt.want, len(queue))
			}
			for i := 1; i < len(queue); i++ {
				if queue[i-1].Severity.Rank() < queue[i].Severity.Rank() {
					t.Errorf("queue out of severity order at %d", i)
				}
			}
			for _, item := range queue {
				if tt.supervisor == "supervisor-3" && item.Severity != models.SeverityCritical {
					t.Errorf("supervisor-3 got a %s alert", item.Severity)
				}
			}
		})
	}
}

func TestGetEmergencyQueue_ExcludesResolved(t *testing.T) {
	f := newFixture(t, true)
	f.env.SeedEpisode(testhelpers.NewEpisodeBuilder("ep-1").Build())
	f.raise(t, "ep-1", "high")
	ctx := context.Background()

	if _, err := f.alerts.UpdateEmergencyResponse(ctx, ResponseRequest{EpisodeID: "ep-1", SupervisorID: "supervisor-1", Action: ActionResolve}); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	queue, err := f.alerts.GetEmergencyQueue(ctx, "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(queue) != 0 {
		t.Errorf("expected empty queue after resolve, got %d", len(queue))
	}
}

func TestSortQueue(t *testing.T) {
	queue := []models.EmergencyQueueItem{
		{AlertID: "m-old", Severity: models.SeverityMedium, WaitTime: 90},
		{AlertID: "h-new", Severity: models.SeverityHigh, WaitTime: 1},
		{AlertID: "c", Severity: models.SeverityCritical, WaitTime: 0},
		{AlertID: "h-old", Severity: models.SeverityHigh, WaitTime: 30},
	}

	SortQueue(queue)

	var got []string
	for _, q := range queue {
		got = append(got, q.AlertID)
	}
	testhelpers.AssertSliceEqual(t, got, []string{"c", "h-old", "h-new", "m-old"}, "queue order")
}

// --- UpdateEmergencyResponse ---

func TestUpdateEmergencyResponse_Acknowledge(t *testing.T) {
	storageModes(t, func(t *testing.T, f *fixture) {
		f.env.SeedEpisode(testhelpers.NewEpisodeBuilder("ep-1").Build())
		f.raise(t, "ep-1", "high")
		f.env.Clock.Advance(3 * time.Minute)
		ctx := context.Background()

		res, err := f.alerts.UpdateEmergencyResponse(ctx, ResponseRequest{
			EpisodeID:    "ep-1",
			SupervisorID: "supervisor-2",
			Action:       ActionAcknowledge,
			Notes:        "on my way",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.AlertsUpdated != 1 {
			t.Errorf("expected 1 alert updated, got %d", res.AlertsUpdated)
		}

		status, err := f.alerts.GetEmergencyStatus(ctx, "ep-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status.ResponseStatus != models.ResponseStatusAcknowledged {
			t.Errorf("expected acknowledged, got %s", status.ResponseStatus)
		}
		a := status.ActiveAlerts[0]
		if a.ResponseTime == nil || *a.ResponseTime != 3 {
			t.Errorf("expected response time 3, got %v", a.ResponseTime)
		}
		if a.AcknowledgedAt == nil {
			t.Error("expected acknowledgedAt to be stamped")
		}

		ep := f.env.Episode("ep-1")
		if len(ep.EmergencyResponses) != 1 || ep.EmergencyResponses[0].Notes != "on my way" {
			t.Errorf("expected the response event recorded, got %+v", ep.EmergencyResponses)
		}
		if !ep.HasActiveEmergency {
			t.Error("acknowledged alerts keep the emergency active")
		}
		if len(f.notifier.CallsOf(models.NotificationResponseConfirmation)) != 1 {
			t.Error("expected a response confirmation")
		}
	})
}

func TestUpdateEmergencyResponse_Resolve(t *testing.T) {
	storageModes(t, func(t *testing.T, f *fixture) {
		f.env.SeedEpisode(testhelpers.NewEpisodeBuilder("ep-1").Build())
		f.raise(t, "ep-1", "high")
		f.raise(t, "ep-1", "critical")
		ctx := context.Background()

		if _, err := f.alerts.UpdateEmergencyResponse(ctx, ResponseRequest{EpisodeID: "ep-1", SupervisorID: "supervisor-1", Action: ActionAcknowledge}); err != nil {
			t.Fatalf("acknowledge: %v", err)
		}
		res, err := f.alerts.UpdateEmergencyResponse(ctx, ResponseRequest{EpisodeID: "ep-1", SupervisorID: "supervisor-1", Action: ActionResolve})
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if res.AlertsUpdated != 2 {
			t.Errorf("expected 2 alerts resolved, got %d", res.AlertsUpdated)
		}

		status, err := f.alerts.GetEmergencyStatus(ctx, "ep-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status.ResponseStatus != models.ResponseStatusResolved {
			t.Errorf("expected resolved, got %s", status.ResponseStatus)
		}

		ep := f.env.Episode("ep-1")
		if ep.HasActiveEmergency {
			t.Error("expected the emergency flag cleared")
		}
		if ep.EmergencyStatus == nil || ep.EmergencyStatus.ResolvedBy != "supervisor-1" || ep.EmergencyStatus.ResolvedAt == nil {
			t.Errorf("expected resolved snapshot, got %+v", ep.EmergencyStatus)
		}
		if len(ep.EmergencyResponses) != 2 {
			t.Errorf("expected 2 response events, got %d", len(ep.EmergencyResponses))
		}
	})
}

func TestUpdateEmergencyResponse_InformationalActions(t *testing.T) {
	for _, action := range []string{ActionRespond, ActionEscalate, "called family"} {
		t.Run(action, func(t *testing.T) {
			f := newFixture(t, true)
			f.env.SeedEpisode(testhelpers.NewEpisodeBuilder("ep-1").Build())
			f.raise(t, "ep-1", "high")
			ctx := context.Background()

			res, err := f.alerts.UpdateEmergencyResponse(ctx, ResponseRequest{EpisodeID: "ep-1", SupervisorID: "supervisor-1", Action: action})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.AlertsUpdated != 0 {
				t.Errorf("expected no alert changes, got %d", res.AlertsUpdated)
			}

			status, _ := f.alerts.GetEmergencyStatus(ctx, "ep-1")
			if status.ResponseStatus != models.ResponseStatusPending {
				t.Errorf("expected pending, got %s", status.ResponseStatus)
			}
			if got := f.env.Episode("ep-1").EmergencyResponses; len(got) != 1 || got[0].Action != action {
				t.Errorf("expected %q recorded, got %+v", action, got)
			}
		})
	}
}

func TestUpdateEmergencyResponse_MissingEpisode(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.alerts.UpdateEmergencyResponse(context.Background(), ResponseRequest{EpisodeID: "ghost", SupervisorID: "s", Action: ActionResolve})
	if !IsNotFound(err) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

// --- TransitionAlert ---

func TestTransitionAlert(t *testing.T) {
	now := testhelpers.BaseTime.Add(4 * time.Minute)
	tests := []struct {
		name    string
		from    models.AlertStatus
		to      models.AlertStatus
		wantErr bool
	}{
		{"active to acknowledged", models.AlertStatusActive, models.AlertStatusAcknowledged, false},
		{"active to resolved", models.AlertStatusActive, models.AlertStatusResolved, false},
		{"acknowledged to resolved", models.AlertStatusAcknowledged, models.AlertStatusResolved, false},
		{"acknowledged to active", models.AlertStatusAcknowledged, models.AlertStatusActive, true},
		{"resolved to acknowledged", models.AlertStatusResolved, models.AlertStatusAcknowledged, true},
		{"resolved to active", models.AlertStatusResolved, models.AlertStatusActive, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := testhelpers.NewAlertBuilder("a-1", "ep-1").WithStatus(tt.from).Build()

			got, err := TransitionAlert(a, tt.to, now)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("expected ErrInvalidTransition, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Status != tt.to {
				t.Errorf("expected %s, got %s", tt.to, got.Status)
			}
			if got.ResponseTime == nil || *got.ResponseTime != 4 {
				t.Errorf("expected response time 4, got %v", got.ResponseTime)
			}
		})
	}
}

func TestTransitionAlert_KeepsFirstResponseTime(t *testing.T) {
	a := testhelpers.NewAlertBuilder("a-1", "ep-1").
		WithStatus(models.AlertStatusAcknowledged).
		WithResponseTime(2).
		Build()

	got, err := TransitionAlert(a, models.AlertStatusResolved, testhelpers.BaseTime.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *got.ResponseTime != 2 {
		t.Errorf("expected response time to stay 2, got %d", *got.ResponseTime)
	}
	if got.ResolvedAt == nil {
		t.Error("expected resolvedAt")
	}
}

// --- Stats and warnings ---

func TestEmergencyStats(t *testing.T) {
	f := newFixture(t, true)
	f.env.SeedEpisode(testhelpers.NewEpisodeBuilder("ep-crit").Build())
	f.env.SeedEpisode(testhelpers.NewEpisodeBuilder("ep-high").Build())
	f.raise(t, "ep-crit", "critical")
	f.raise(t, "ep-high", "high")
	f.env.Clock.Advance(3 * time.Minute)
	ctx := context.Background()

	if _, err := f.alerts.UpdateEmergencyResponse(ctx, ResponseRequest{EpisodeID: "ep-high", SupervisorID: "supervisor-1", Action: ActionAcknowledge}); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}

	stats, err := f.alerts.EmergencyStats(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.ActiveAlerts != 2 {
		t.Errorf("expected 2 active alerts, got %d", stats.ActiveAlerts)
	}
	if stats.CriticalAlerts != 1 {
		t.Errorf("expected 1 critical alert, got %d", stats.CriticalAlerts)
	}
	if stats.AverageResponseTime != 3 {
		t.Errorf("expected average response 3, got %v", stats.AverageResponseTime)
	}
	if stats.OverdueAlerts != 1 {
		t.Errorf("expected the critical alert overdue, got %d", stats.OverdueAlerts)
	}
	if !stats.GeneratedAt.Equal(f.env.Clock.Now()) {
		t.Errorf("expected generatedAt %v, got %v", f.env.Clock.Now(), stats.GeneratedAt)
	}
}

func TestSendTimeoutWarnings(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		ack     bool
		want    int
		minutes int
	}{
		{"inside lead", 4*time.Minute + 30*time.Second, false, 1, 1},
		{"before lead", 3 * time.Minute, false, 0, 0},
		{"already past target", 6 * time.Minute, false, 0, 0},
		{"acknowledged", 4*time.Minute + 30*time.Second, true, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true)
			f.env.SeedEpisode(testhelpers.NewEpisodeBuilder("ep-1").Build())
			f.raise(t, "ep-1", "high")
			ctx := context.Background()
			if tt.ack {
				if _, err := f.alerts.UpdateEmergencyResponse(ctx, ResponseRequest{EpisodeID: "ep-1", SupervisorID: "supervisor-1", Action: ActionAcknowledge}); err != nil {
					t.Fatalf("acknowledge: %v", err)
				}
			}
			f.env.Clock.Advance(tt.elapsed)

			sent, err := f.alerts.SendTimeoutWarnings(ctx, time.Minute)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if sent != tt.want {
				t.Fatalf("expected %d warnings, got %d", tt.want, sent)
			}
			warnings := f.notifier.CallsOf(models.NotificationTimeoutWarning)
			if len(warnings) != tt.want {
				t.Fatalf("expected %d recorded warnings, got %d", tt.want, len(warnings))
			}
			if tt.want > 0 && warnings[0].MinutesRemaining != tt.minutes {
				t.Errorf("expected %d minutes remaining, got %d", tt.minutes, warnings[0].MinutesRemaining)
			}
		})
	}
}

func TestSendTimeoutWarnings_WarnsEachAlertOnce(t *testing.T) {
	storageModes(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		f.env.SeedEpisode(testhelpers.NewEpisodeBuilder("ep-1").Build())
		raised := f.raise(t, "ep-1", "high")

		// three ticks inside a lead longer than the tick interval
		f.env.Clock.Advance(2*time.Minute + 30*time.Second)
		warnedAt := f.env.Clock.Now()
		for tick := 0; tick < 3; tick++ {
			sent, err := f.alerts.SendTimeoutWarnings(ctx, 3*time.Minute)
			if err != nil {
				t.Fatalf("tick %d: %v", tick, err)
			}
			want := 0
			if tick == 0 {
				want = 1
			}
			if sent != want {
				t.Errorf("tick %d: expected %d warnings, got %d", tick, want, sent)
			}
			f.env.Clock.Advance(30 * time.Second)
		}
		testhelpers.AssertSliceLen(t, f.notifier.CallsOf(models.NotificationTimeoutWarning), 1, "timeout warnings")

		alerts, err := f.env.Records.Alerts(ctx, "ep-1", true)
		if err != nil || len(alerts) != 1 {
			t.Fatalf("Alerts = %+v, %v", alerts, err)
		}
		if alerts[0].AlertID != raised.AlertID || alerts[0].TimeoutWarnedAt == nil || !alerts[0].TimeoutWarnedAt.Equal(warnedAt) {
			t.Errorf("expected %s stamped at %v, got %+v", raised.AlertID, warnedAt, alerts[0])
		}
	})
}
