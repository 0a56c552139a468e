// Package report renders tasks, schedules, and blocking rankings for the
// terminal, plus machine-readable JSON and Graphviz DOT exports.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/rlanders/taskmesh/internal/cpm"
	"github.com/rlanders/taskmesh/internal/graph"
	"github.com/rlanders/taskmesh/internal/store"
	"github.com/rlanders/taskmesh/internal/task"
	"github.com/rlanders/taskmesh/internal/ui"
)

// PrintTaskTable writes a terminal-friendly task listing.
func PrintTaskTable(w io.Writer, recs []*task.Record) {
	if len(recs) == 0 {
		fmt.Fprintln(w, ui.Dim("no tasks"))
		return
	}
	for _, rec := range recs {
		icon := ui.StatusIcon(string(rec.Status))

		title := rec.Title
		if len(title) > 40 {
			title = title[:37] + "..."
		}

		deps := ""
		if len(rec.DependsOn) > 0 {
			deps = ui.Dim(fmt.Sprintf("deps: %s", strings.Join(rec.DependsOn, ", ")))
		}

		assignee := ""
		if rec.Assignee != "" {
			assignee = ui.Cyan("@" + rec.Assignee)
		}

		fmt.Fprintf(w, "  %s %s %-40s %-12s %s\n",
			icon, ui.BoldMagenta(rec.ID), title, assignee, deps)
	}
}

// PrintTaskDetail writes the full record for one task.
func PrintTaskDetail(w io.Writer, rec *task.Record) {
	fmt.Fprintf(w, "%s %s\n", ui.BoldMagenta(rec.ID), ui.Bold(rec.Title))
	fmt.Fprintf(w, "Status:     %s %s\n", ui.StatusIcon(string(rec.Status)), rec.Status)
	fmt.Fprintf(w, "Priority:   %d\n", rec.Priority)
	if rec.Assignee != "" {
		fmt.Fprintf(w, "Assignee:   %s\n", rec.Assignee)
	}
	fmt.Fprintf(w, "Created by: %s at %s\n", rec.CreatedBy, rec.CreatedAt.Format("2006-01-02 15:04"))
	if rec.Description != "" {
		fmt.Fprintf(w, "\n%s\n", rec.Description)
	}
	if len(rec.DependsOn) > 0 {
		fmt.Fprintf(w, "Depends on: %s\n", strings.Join(rec.DependsOn, ", "))
	}
	if rec.EstimatedHours != nil {
		fmt.Fprintf(w, "Estimate:   %gh\n", *rec.EstimatedHours)
	}
	if rec.Status == task.StatusCompleted {
		if rec.CompletedAt != nil {
			fmt.Fprintf(w, "Completed:  %s\n", rec.CompletedAt.Format("2006-01-02 15:04"))
		}
		if rec.ActualHours != nil {
			fmt.Fprintf(w, "Actual:     %gh\n", *rec.ActualHours)
		}
		if rec.CompletionSummary != "" {
			fmt.Fprintf(w, "Summary:    %s\n", rec.CompletionSummary)
		}
	}
}

// PrintPlan writes the critical path analysis: total duration, the critical
// path itself, then a per-wave breakdown with scheduling windows.
func PrintPlan(w io.Writer, snap task.Snapshot, sched *cpm.Schedule) {
	fmt.Fprintf(w, "%s  %s total (critical path)\n",
		ui.BoldCyan("Plan"), ui.Bold(fmt.Sprintf("%gh", sched.TotalDuration)))

	if len(sched.CriticalPath) > 0 {
		fmt.Fprintf(w, "%s %s\n\n", ui.BoldYellow("⚡"), strings.Join(sched.CriticalPath, " → "))
	}

	for _, wave := range sched.Waves {
		label := fmt.Sprintf("%s %d", ui.BoldWhite("WAVE"), wave.Index+1)
		crit := ""
		if wave.IsCritical {
			crit = ui.BoldYellow(" ⚡")
		}
		fmt.Fprintf(w, "  🌊 %s (%d tasks, %s)%s\n",
			label, len(wave.TaskIDs), ui.WaveStatus(waveReady(snap, wave)), crit)

		for _, id := range wave.TaskIDs {
			ts := sched.Tasks[id]
			printWaveTask(w, id, snap, ts)
		}
		fmt.Fprintln(w)
	}
}

// waveReady reports whether every task in the wave can start now, meaning
// none of them still sits blocked behind an incomplete dependency.
func waveReady(snap task.Snapshot, wave cpm.Wave) bool {
	for _, id := range wave.TaskIDs {
		if rec, ok := snap[id]; ok && rec.Status == task.StatusBlocked {
			return false
		}
	}
	return true
}

func printWaveTask(w io.Writer, id string, snap task.Snapshot, ts *cpm.TaskSchedule) {
	title := id
	status := ""
	if rec, ok := snap[id]; ok {
		title = rec.Title
		status = string(rec.Status)
	}
	if len(title) > 32 {
		title = title[:29] + "..."
	}

	critical := " "
	if ts.IsCritical {
		critical = ui.BoldYellow("⚡")
	}

	window := ui.Dim(fmt.Sprintf("[%g→%g, slack %g]", ts.ES, ts.EF, ts.Slack))
	fmt.Fprintf(w, "    %s %s %-32s %s %s\n",
		ui.StatusIcon(status), ui.BoldMagenta(id), title, critical, window)
}

// PlanJSON returns the schedule as machine-readable JSON.
func PlanJSON(snap task.Snapshot, sched *cpm.Schedule) ([]byte, error) {
	type taskPlan struct {
		TaskID      string  `json:"task_id"`
		Title       string  `json:"title"`
		EarlyStart  float64 `json:"early_start"`
		EarlyFinish float64 `json:"early_finish"`
		LateStart   float64 `json:"late_start"`
		LateFinish  float64 `json:"late_finish"`
		Slack       float64 `json:"slack"`
		IsCritical  bool    `json:"is_critical"`
		Wave        int     `json:"wave"`
	}
	type output struct {
		TotalDuration float64    `json:"total_duration"`
		CriticalPath  []string   `json:"critical_path"`
		TotalWaves    int        `json:"total_waves"`
		Tasks         []taskPlan `json:"tasks"`
	}

	o := output{
		TotalDuration: sched.TotalDuration,
		CriticalPath:  sched.CriticalPath,
		TotalWaves:    len(sched.Waves),
	}
	for _, id := range sched.TopoOrder {
		ts := sched.Tasks[id]
		tp := taskPlan{
			TaskID:      id,
			EarlyStart:  ts.ES,
			EarlyFinish: ts.EF,
			LateStart:   ts.LS,
			LateFinish:  ts.LF,
			Slack:       ts.Slack,
			IsCritical:  ts.IsCritical,
			Wave:        ts.Wave,
		}
		if rec, ok := snap[id]; ok {
			tp.Title = rec.Title
		}
		o.Tasks = append(o.Tasks, tp)
	}
	return json.MarshalIndent(o, "", "  ")
}

// BlockingRow pairs a task with its blocking score for ranked display.
type BlockingRow struct {
	TaskID     string  `json:"task_id"`
	Title      string  `json:"title"`
	Score      float64 `json:"score"`
	Dependents int     `json:"dependents"`
	IsCritical bool    `json:"is_critical"`
}

// RankBlocking orders tasks by blocking score, highest first, ties broken
// by task id for stable output.
func RankBlocking(snap task.Snapshot, g *graph.Graph, scores map[string]float64, sched *cpm.Schedule) []BlockingRow {
	rows := make([]BlockingRow, 0, len(scores))
	for id, score := range scores {
		row := BlockingRow{
			TaskID:     id,
			Score:      score,
			Dependents: len(g.Dependents(id)),
		}
		if rec, ok := snap[id]; ok {
			row.Title = rec.Title
		}
		if sched != nil {
			if ts, ok := sched.Tasks[id]; ok {
				row.IsCritical = ts.IsCritical
			}
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].TaskID < rows[j].TaskID
	})
	return rows
}

// PrintBlocking writes the ranked blocking report.
func PrintBlocking(w io.Writer, rows []BlockingRow, limit int) {
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, ui.Dim("no tasks"))
		return
	}
	fmt.Fprintf(w, "%s\n", ui.BoldCyan("Most blocking tasks"))
	for i, row := range rows {
		critical := " "
		if row.IsCritical {
			critical = ui.BoldYellow("⚡")
		}
		title := row.Title
		if len(title) > 36 {
			title = title[:33] + "..."
		}
		fmt.Fprintf(w, "  %2d. %s %-36s %s score %s  %s\n",
			i+1, ui.BoldMagenta(row.TaskID), title, critical,
			ui.Bold(fmt.Sprintf("%.1f", row.Score)),
			ui.Dim(fmt.Sprintf("(%d direct dependents)", row.Dependents)))
	}
}

// PrintNotifications writes the notification feed, one line per message,
// with the task prefix colored per task so an agent scanning the feed can
// pick out its own entries.
func PrintNotifications(w io.Writer, notes []store.Notification) {
	if len(notes) == 0 {
		fmt.Fprintln(w, ui.Dim("no notifications"))
		return
	}
	for _, n := range notes {
		marker := ui.BoldCyan("●")
		if n.Read {
			marker = ui.Dim("○")
		}
		fmt.Fprintf(w, "  %s %s %s %s\n",
			marker, ui.Dim("#"+strconv.FormatInt(n.ID, 10)), ui.TaskPrefix(n.TaskID), n.Message)
	}
}

// DOT exports the dependency graph in Graphviz format. Node labels carry
// the task weight in hours; edges point from a task to its dependency.
func DOT(g *graph.Graph) string {
	var b strings.Builder
	b.WriteString("digraph dependencies {\n")
	b.WriteString("  rankdir=TB;\n")
	b.WriteString("  node [shape=box];\n")

	for _, node := range g.Nodes() {
		fmt.Fprintf(&b, "  %q [label=\"%s\\n(%gh)\"];\n", node, node, g.Weight(node))
	}
	for _, node := range g.Nodes() {
		for _, dep := range g.Dependencies(node) {
			fmt.Fprintf(&b, "  %q -> %q;\n", node, dep)
		}
	}

	b.WriteString("}")
	return b.String()
}
