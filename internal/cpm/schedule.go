package cpm

import (
	"sort"

	"github.com/rlanders/taskmesh/internal/graph"
)

// slackEpsilon guards the float comparison that decides criticality; two
// schedules that differ by less than this are the same schedule.
const slackEpsilon = 1e-9

// Analyze performs full critical path method analysis over the graph:
// forward pass for earliest start/finish, backward pass for latest
// start/finish, slack per task, and the waves of tasks whose dependencies
// are satisfied at the same earliest start. Returns an error on cyclic
// graphs.
func Analyze(g *graph.Graph) (*Schedule, error) {
	order, err := TopoSort(g)
	if err != nil {
		return nil, err
	}

	sched := &Schedule{
		Tasks:     make(map[string]*TaskSchedule, len(order)),
		TopoOrder: order,
	}
	for _, id := range order {
		sched.Tasks[id] = &TaskSchedule{TaskID: id}
	}

	// Forward pass: ES = max(EF of all dependencies).
	for _, id := range order {
		ts := sched.Tasks[id]
		es := 0.0
		for _, dep := range g.Dependencies(id) {
			if depTS := sched.Tasks[dep]; depTS.EF > es {
				es = depTS.EF
			}
		}
		ts.ES = es
		ts.EF = es + g.Weight(id)
	}

	for _, ts := range sched.Tasks {
		if ts.EF > sched.TotalDuration {
			sched.TotalDuration = ts.EF
		}
	}

	// Backward pass in reverse topological order. Leaves finish at the
	// project end; everything else must finish before its earliest
	// dependent starts.
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		ts := sched.Tasks[id]

		dependents := g.Dependents(id)
		if len(dependents) == 0 {
			ts.LF = sched.TotalDuration
		} else {
			minLS := sched.TotalDuration
			for _, dep := range dependents {
				if depTS := sched.Tasks[dep]; depTS.LS < minLS {
					minLS = depTS.LS
				}
			}
			ts.LF = minLS
		}
		ts.LS = ts.LF - g.Weight(id)
		ts.Slack = ts.LS - ts.ES
		ts.IsCritical = ts.Slack < slackEpsilon
	}

	// Critical tasks in topological order.
	for _, id := range order {
		if sched.Tasks[id].IsCritical {
			sched.CriticalPath = append(sched.CriticalPath, id)
		}
	}

	sched.Waves = computeWaves(sched)
	return sched, nil
}

// computeWaves groups tasks by earliest start time. Within a wave,
// critical tasks sort first so the display leads with what matters.
func computeWaves(sched *Schedule) []Wave {
	esGroups := make(map[float64][]string)
	for _, id := range sched.TopoOrder {
		es := sched.Tasks[id].ES
		esGroups[es] = append(esGroups[es], id)
	}

	esValues := make([]float64, 0, len(esGroups))
	for es := range esGroups {
		esValues = append(esValues, es)
	}
	sort.Float64s(esValues)

	waves := make([]Wave, len(esValues))
	for i, es := range esValues {
		taskIDs := esGroups[es]
		sort.Strings(taskIDs)

		hasCritical := false
		for _, id := range taskIDs {
			sched.Tasks[id].Wave = i
			if sched.Tasks[id].IsCritical {
				hasCritical = true
			}
		}

		sort.SliceStable(taskIDs, func(a, b int) bool {
			aCrit := sched.Tasks[taskIDs[a]].IsCritical
			bCrit := sched.Tasks[taskIDs[b]].IsCritical
			if aCrit != bCrit {
				return aCrit
			}
			return false
		})

		waves[i] = Wave{
			Index:      i,
			TaskIDs:    taskIDs,
			IsCritical: hasCritical,
		}
	}
	return waves
}
