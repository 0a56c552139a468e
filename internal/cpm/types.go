package cpm

// Schedule holds the complete critical path method analysis for a graph.
type Schedule struct {
	Tasks         map[string]*TaskSchedule
	CriticalPath  []string // critical tasks in topological order
	TotalDuration float64  // hours, assuming unlimited parallelism
	Waves         []Wave   // parallelizable groups
	TopoOrder     []string
}

// TaskSchedule holds the scheduling window for a single task.
type TaskSchedule struct {
	TaskID     string
	ES, EF     float64 // earliest start/finish (hours from project start)
	LS, LF     float64 // latest start/finish without delaying the project
	Slack      float64
	IsCritical bool
	Wave       int
}

// Wave is a group of tasks whose dependencies are all satisfied at the
// same earliest start time, so they can run in parallel.
type Wave struct {
	Index      int
	TaskIDs    []string
	IsCritical bool // true if the wave contains critical path tasks
}

// ScoreWeights tunes the blocking-score heuristic. The shape of the score
// (direct impact + cascading impact + duration + critical-path bonus) is
// fixed; the constants are a planning preference, not a contract.
type ScoreWeights struct {
	Direct        float64 `yaml:"direct"`
	Transitive    float64 `yaml:"transitive"`
	Duration      float64 `yaml:"duration"`
	CriticalBonus float64 `yaml:"critical_bonus"`
}

// DefaultScoreWeights mirror the tuning the planner reports were built
// around: cascading impact matters almost as much as direct impact, and
// critical path membership doubles the bonus term.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		Direct:        2.0,
		Transitive:    1.5,
		Duration:      1.0,
		CriticalBonus: 3.0,
	}
}
