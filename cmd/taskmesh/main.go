package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/rlanders/taskmesh/internal/claude"
	"github.com/rlanders/taskmesh/internal/config"
	"github.com/rlanders/taskmesh/internal/cpm"
	"github.com/rlanders/taskmesh/internal/graph"
	"github.com/rlanders/taskmesh/internal/lifecycle"
	"github.com/rlanders/taskmesh/internal/report"
	"github.com/rlanders/taskmesh/internal/store"
	"github.com/rlanders/taskmesh/internal/task"
	"github.com/rlanders/taskmesh/internal/ui"
)

var (
	flagDB      string
	flagConfig  string
	flagAgent   string
	flagJSON    bool
	flagVerbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "taskmesh",
		Short: "Dependency-aware task tracking for multi-agent work",
		Long: `Taskmesh tracks tasks and the dependencies between them in a local
SQLite database. It validates every new dependency against the committed
graph, computes critical paths and parallelizable waves, and unblocks
dependent tasks automatically when their prerequisites complete.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "Database path (default from config)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path")
	rootCmd.PersistentFlags().StringVar(&flagAgent, "agent", "", "Agent identity (default $TASKMESH_AGENT or $USER)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Machine-readable JSON output")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(updateCmd())
	rootCmd.AddCommand(completeCmd())
	rootCmd.AddCommand(depCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(blockingCmd())
	rootCmd.AddCommand(graphCmd())
	rootCmd.AddCommand(notificationsCmd())
	rootCmd.AddCommand(inferDepsCmd())
	rootCmd.AddCommand(doctorCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	if flagConfig != "" {
		return config.LoadFile(flagConfig)
	}
	return config.Load()
}

func newLogger(cfg config.Config) *log.Logger {
	level := log.InfoLevel
	if flagVerbose {
		level = log.DebugLevel
	} else if parsed, err := log.ParseLevel(cfg.LogLevel); err == nil {
		level = parsed
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

func agentName() string {
	if flagAgent != "" {
		return flagAgent
	}
	if a := os.Getenv("TASKMESH_AGENT"); a != "" {
		return a
	}
	return os.Getenv("USER")
}

// openStore resolves config and opens the database. Callers must Close.
func openStore() (*store.Store, config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, cfg, err
	}

	path := cfg.Database.Path
	if flagDB != "" {
		path = flagDB
	}

	s, err := store.Open(store.Config{
		Path:   path,
		Agent:  agentName(),
		Logger: newLogger(cfg),
	})
	if err != nil {
		return nil, cfg, fmt.Errorf("open database: %w", err)
	}
	return s, cfg, nil
}

func addCmd() *cobra.Command {
	var (
		flagDesc     string
		flagPriority int
		flagAssignee string
		flagDeps     []string
		flagEstimate float64
	)

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			nt := store.NewTask{
				Title:       args[0],
				Description: flagDesc,
				Priority:    flagPriority,
				Assignee:    flagAssignee,
				DependsOn:   flagDeps,
			}
			if cmd.Flags().Changed("estimate") {
				nt.EstimatedHours = task.Estimate(flagEstimate)
			}

			rec, err := s.CreateTask(cmd.Context(), nt)
			if err != nil {
				return err
			}

			if flagJSON {
				return outputJSON(rec)
			}
			fmt.Printf("%s %s %s (%s)\n",
				ui.Green("✓"), ui.BoldMagenta(rec.ID), rec.Title, statusLabel(rec.Status))
			return nil
		},
	}

	cmd.Flags().StringVarP(&flagDesc, "desc", "d", "", "Task description")
	cmd.Flags().IntVarP(&flagPriority, "priority", "p", 2, "Priority (0 = highest)")
	cmd.Flags().StringVarP(&flagAssignee, "assignee", "a", "", "Assignee")
	cmd.Flags().StringSliceVar(&flagDeps, "deps", nil, "Dependency task ids (comma-separated)")
	cmd.Flags().Float64VarP(&flagEstimate, "estimate", "e", 0, "Estimated hours")

	return cmd
}

func listCmd() *cobra.Command {
	var flagStatus string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			var filter task.Status
			if flagStatus != "" {
				filter = task.Status(flagStatus)
				if !filter.Valid() {
					return fmt.Errorf("unknown status %q", flagStatus)
				}
			}

			recs, err := s.List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			if flagJSON {
				return outputJSON(recs)
			}
			report.PrintTaskTable(os.Stdout, recs)
			return nil
		},
	}

	cmd.Flags().StringVarP(&flagStatus, "status", "s", "", "Filter by status (pending, in_progress, blocked, completed)")

	return cmd
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one task in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			rec, err := s.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if flagJSON {
				return outputJSON(rec)
			}
			report.PrintTaskDetail(os.Stdout, rec)
			return nil
		},
	}
}

func updateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update <id> <status>",
		Short: "Set a task's status (pending, in_progress, blocked)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			status := task.Status(args[1])
			if err := s.UpdateStatus(cmd.Context(), args[0], status); err != nil {
				return err
			}
			fmt.Printf("%s %s → %s\n", ui.Green("✓"), ui.BoldMagenta(args[0]), statusLabel(status))
			return nil
		},
	}
}

func completeCmd() *cobra.Command {
	var (
		flagSummary string
		flagHours   float64
	)

	cmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Complete a task and unblock its dependents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			var hours *float64
			if cmd.Flags().Changed("hours") {
				hours = task.Estimate(flagHours)
			}

			res, err := s.Complete(cmd.Context(), args[0], flagSummary, hours)
			if err != nil {
				return err
			}

			if flagJSON {
				return outputJSON(res)
			}

			fmt.Printf("%s %s completed\n", ui.Green("✓"), ui.BoldMagenta(args[0]))
			for _, id := range res.Unblocked {
				fmt.Printf("  %s %s is now unblocked\n", ui.Cyan("→"), ui.BoldMagenta(id))
			}
			for _, w := range res.Warnings {
				fmt.Printf("  %s %s\n", ui.Yellow("⚠"), w)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&flagSummary, "summary", "m", "", "Completion summary")
	cmd.Flags().Float64Var(&flagHours, "hours", 0, "Actual hours spent")

	return cmd
}

func depCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dep",
		Short: "Manage dependencies between tasks",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <task> <depends-on>",
		Short: "Record that a task depends on another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.AddDependency(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("%s %s now depends on %s\n",
				ui.Green("✓"), ui.BoldMagenta(args[0]), ui.BoldMagenta(args[1]))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <task> <depends-on>",
		Short: "Remove a dependency",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.RemoveDependency(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("%s %s no longer depends on %s\n",
				ui.Green("✓"), ui.BoldMagenta(args[0]), ui.BoldMagenta(args[1]))
			return nil
		},
	})

	return cmd
}

// buildSchedule is shared by plan, blocking, and graph.
func buildSchedule(ctx context.Context, s *store.Store) (task.Snapshot, *graph.Graph, *cpm.Schedule, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(snap) == 0 {
		return nil, nil, nil, fmt.Errorf("no tasks found")
	}

	g := graph.FromSnapshot(snap)
	sched, err := cpm.Analyze(g)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("schedule analysis: %w", err)
	}
	return snap, g, sched, nil
}

func planCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Compute the critical path and parallelizable waves",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			snap, _, sched, err := buildSchedule(cmd.Context(), s)
			if err != nil {
				return err
			}

			if flagJSON {
				data, err := report.PlanJSON(snap, sched)
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}
			report.PrintPlan(os.Stdout, snap, sched)
			return nil
		},
	}
}

func blockingCmd() *cobra.Command {
	var flagLimit int

	cmd := &cobra.Command{
		Use:   "blocking",
		Short: "Rank tasks by how much work they block",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, cfg, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			snap, g, sched, err := buildSchedule(cmd.Context(), s)
			if err != nil {
				return err
			}

			scores := cpm.BlockingScores(g, cfg.Scoring)
			rows := report.RankBlocking(snap, g, scores, sched)

			if flagJSON {
				return outputJSON(rows)
			}
			report.PrintBlocking(os.Stdout, rows, flagLimit)
			return nil
		},
	}

	cmd.Flags().IntVarP(&flagLimit, "limit", "n", 10, "Show the top N tasks (0 for all)")

	return cmd
}

func graphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Export the dependency graph as Graphviz DOT",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			snap, err := s.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(report.DOT(graph.FromSnapshot(snap)))
			return nil
		},
	}
}

func notificationsCmd() *cobra.Command {
	var (
		flagAll      bool
		flagMarkRead bool
	)

	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Show unblock notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			notes, err := s.Notifications(cmd.Context(), !flagAll)
			if err != nil {
				return err
			}

			if flagJSON {
				if notes == nil {
					notes = []store.Notification{}
				}
				if err := outputJSON(notes); err != nil {
					return err
				}
			} else {
				report.PrintNotifications(os.Stdout, notes)
			}

			if flagMarkRead && len(notes) > 0 {
				ids := make([]int64, len(notes))
				for i, n := range notes {
					ids[i] = n.ID
				}
				if err := s.MarkRead(cmd.Context(), ids...); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&flagAll, "all", false, "Include already-read notifications")
	cmd.Flags().BoolVar(&flagMarkRead, "mark-read", false, "Mark listed notifications as read")

	return cmd
}

func inferDepsCmd() *cobra.Command {
	var (
		flagApply    bool
		flagModel    string
		flagFromFile string
	)

	cmd := &cobra.Command{
		Use:   "infer-deps",
		Short: "Use Claude to infer task dependencies from titles",
		Long: `Sends open task titles to Claude and infers dependency edges.
By default runs in dry-run mode — use --apply to write the dependencies.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, cfg, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			if !cfg.Features.Inference {
				return fmt.Errorf("dependency inference is disabled in config")
			}

			snap, err := s.Snapshot(cmd.Context())
			if err != nil {
				return err
			}

			var summaries []claude.TaskSummary
			for _, rec := range snap {
				if rec.Status == task.StatusCompleted {
					continue
				}
				summaries = append(summaries, claude.TaskSummary{
					ID:       rec.ID,
					Title:    rec.Title,
					Priority: rec.Priority,
					Status:   string(rec.Status),
				})
			}
			if len(summaries) == 0 {
				return fmt.Errorf("no open tasks found")
			}

			var result *claude.InferDepsResult
			if flagFromFile != "" {
				data, err := os.ReadFile(flagFromFile)
				if err != nil {
					return fmt.Errorf("read from-file: %w", err)
				}
				result = &claude.InferDepsResult{}
				if err := json.Unmarshal(data, result); err != nil {
					return fmt.Errorf("parse from-file: %w", err)
				}
			} else {
				fmt.Printf("🔍 Sending %s tasks to Claude for dependency inference...\n",
					ui.Bold(strconv.Itoa(len(summaries))))

				client, err := claude.NewClient("", firstNonEmpty(flagModel, cfg.Claude.Model))
				if err != nil {
					return err
				}
				result, err = client.InferDeps(cmd.Context(), summaries)
				if err != nil {
					return fmt.Errorf("infer deps: %w", err)
				}
			}

			// Greedily accept edges against the committed graph plus the
			// edges accepted so far, so --apply only attempts writes that
			// will succeed and the accepted set stays jointly acyclic.
			g := lifecycle.New(snap).Graph()
			var accepted []claude.DepEdge
			for _, e := range result.Edges {
				if err := g.ValidateNewEdge(e.BlockedID, e.BlockerID); err != nil {
					fmt.Printf("  %s %s -> %s: %v\n", ui.Yellow("⏭ SKIP:"), e.BlockedID, e.BlockerID, err)
					continue
				}
				g.AddEdge(e.BlockedID, e.BlockerID)
				accepted = append(accepted, e)
			}

			if flagJSON {
				out := struct {
					Edges   []claude.DepEdge `json:"edges"`
					Summary string           `json:"summary"`
				}{Edges: accepted, Summary: result.Summary}
				return outputJSON(out)
			}

			fmt.Printf("\n🔗 Inferred %s dependencies (%d suggested, %d after validation):\n\n",
				ui.Bold(strconv.Itoa(len(accepted))), len(result.Edges), len(accepted))
			for _, e := range accepted {
				fmt.Printf("  %s %s depends on %s  — %s\n",
					ui.Cyan("→"), ui.BoldMagenta(e.BlockedID), ui.BoldMagenta(e.BlockerID), ui.Dim(e.Reason))
			}
			if result.Summary != "" {
				fmt.Printf("\n💡 %s %s\n", ui.BoldWhite("Summary:"), result.Summary)
			}

			if !flagApply {
				fmt.Printf("\n🎯 %s\n", ui.Yellow("Dry run — use --apply to write these dependencies."))
				return nil
			}

			applied := 0
			for _, e := range accepted {
				if err := s.AddDependency(cmd.Context(), e.BlockedID, e.BlockerID); err != nil {
					fmt.Printf("  %s dep add %s %s: %v\n", ui.Red("✗"), e.BlockedID, e.BlockerID, err)
					continue
				}
				applied++
				fmt.Printf("  %s %s depends on %s\n", ui.Green("✓"), ui.BoldMagenta(e.BlockedID), ui.BoldMagenta(e.BlockerID))
			}
			fmt.Printf("\n🏁 Applied %s/%d dependencies.\n", ui.BoldGreen(strconv.Itoa(applied)), len(accepted))
			return nil
		},
	}

	cmd.Flags().BoolVar(&flagApply, "apply", false, "Write inferred deps (default: dry-run)")
	cmd.Flags().StringVar(&flagModel, "model", "", "Claude model to use (default from config)")
	cmd.Flags().StringVar(&flagFromFile, "from-file", "", "Load inferred deps from a JSON file instead of calling Claude")

	return cmd
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the graph for cycles, self-loops, and unresolvable dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			snap, err := s.Snapshot(cmd.Context())
			if err != nil {
				return err
			}

			ctrl := lifecycle.New(snap)
			g := ctrl.Graph()

			healthy := true
			if cycle := g.DetectCycle(); len(cycle) > 0 {
				healthy = false
				fmt.Printf("%s cycle: %s\n", ui.Red("✗"), strings.Join(cycle, " → "))
			}
			for _, id := range g.SelfLoops() {
				healthy = false
				fmt.Printf("%s self-dependency: %s\n", ui.Red("✗"), ui.BoldMagenta(id))
			}
			for _, w := range ctrl.Unresolved() {
				healthy = false
				fmt.Printf("%s %s\n", ui.Yellow("⚠"), w)
			}

			if healthy {
				fmt.Printf("%s %d tasks, no graph problems found\n", ui.Green("✓"), len(snap))
				return nil
			}
			return fmt.Errorf("graph problems found")
		},
	}
}

// --- Output helpers ---

func outputJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func statusLabel(s task.Status) string {
	return ui.StatusIcon(string(s)) + " " + string(s)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
