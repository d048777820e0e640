package models

// LevelPolicy is the supervisor pool and timeout for one escalation level.
type LevelPolicy struct {
	Supervisors    []string `yaml:"supervisors" json:"supervisors"`
	TimeoutMinutes int      `yaml:"timeoutMinutes" json:"timeoutMinutes"`
}

// Roster holds the responder identities the engines assign work to.
type Roster struct {
	// Supervisors is the ordered pool emergency alerts draw from.
	Supervisors []string                        `yaml:"supervisors"`
	Levels      map[EscalationLevel]LevelPolicy `yaml:"levels"`
}

// DefaultRoster returns the built-in supervisor pool and escalation roster.
func DefaultRoster() Roster {
	return Roster{
		Supervisors: []string{"supervisor-1", "supervisor-2", "supervisor-3"},
		Levels: map[EscalationLevel]LevelPolicy{
			EscalationLevel1:        {Supervisors: []string{"charge-nurse-1", "charge-nurse-2"}, TimeoutMinutes: 15},
			EscalationLevel2:        {Supervisors: []string{"attending-physician-1", "attending-physician-2"}, TimeoutMinutes: 10},
			EscalationLevel3:        {Supervisors: []string{"department-head"}, TimeoutMinutes: 5},
			EscalationLevelCritical: {Supervisors: []string{"medical-director", "chief-medical-officer"}, TimeoutMinutes: 3},
		},
	}
}

// SupervisorsFor returns the pool prefix assigned to an alert of the given severity.
// The result is a copy and never shares backing storage with the roster.
func (r Roster) SupervisorsFor(sev Severity) []string {
	n := sev.SupervisorCount()
	if n == 0 || n > len(r.Supervisors) {
		n = len(r.Supervisors)
	}
	out := make([]string, n)
	copy(out, r.Supervisors[:n])
	return out
}

// Policy returns the level's policy, falling back to the default roster for
// levels the configured roster leaves out.
func (r Roster) Policy(level EscalationLevel) LevelPolicy {
	if p, ok := r.Levels[level]; ok && len(p.Supervisors) > 0 && p.TimeoutMinutes > 0 {
		return p
	}
	return DefaultRoster().Levels[level]
}

// TimeoutMinutes is the level timeout, halved (minimum 1) for urgent responses.
func (r Roster) TimeoutMinutes(level EscalationLevel, urgent bool) int {
	t := r.Policy(level).TimeoutMinutes
	if urgent {
		t /= 2
	}
	if t < 1 {
		t = 1
	}
	return t
}

// Path returns the supervisor pools from level up to critical, in ladder order.
func (r Roster) Path(level EscalationLevel) [][]string {
	levels := level.AndAbove()
	path := make([][]string, 0, len(levels))
	for _, l := range levels {
		pool := r.Policy(l).Supervisors
		cp := make([]string, len(pool))
		copy(cp, pool)
		path = append(path, cp)
	}
	return path
}
