package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/freight-triage/internal/monitoring"
	"github.com/sells-group/freight-triage/internal/pipeline"
	"github.com/sells-group/freight-triage/internal/replay"
)

var replayCmd = &cobra.Command{
	Use:   "replay <file|dir>...",
	Short: "Run recorded email threads through the tracker",
	Long: "Loads thread fixtures (YAML or JSON), processes every turn in order and prints " +
		"one JSON decision per line. Threads run concurrently up to pipeline.max_concurrent_threads.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		memory, _ := cmd.Flags().GetBool("memory")
		if memory {
			cfg.Store.Driver = "memory"
		}
		if err := cfg.Validate("process"); err != nil {
			return err
		}

		threads, err := replay.LoadPaths(args)
		if err != nil {
			return eris.Wrap(err, "replay")
		}

		st, err := initStore(ctx, memory)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		reg := prometheus.NewRegistry()
		metrics := monitoring.NewMetrics(reg)
		tracker := pipeline.NewTrackerFromConfig(st, cfg, pipeline.WithObserver(metrics))

		results, err := tracker.Replay(ctx, threads)
		if werr := writeDecisions(cmd.OutOrStdout(), results); werr != nil {
			return eris.Wrap(werr, "replay: write decisions")
		}
		if err != nil {
			return err
		}

		exposition, _ := cmd.Flags().GetBool("metrics")
		if err := reportMetrics(cmd.ErrOrStderr(), reg, exposition); err != nil {
			return err
		}
		return replayOutcome(cmd.ErrOrStderr(), results)
	},
}

// writeDecisions prints every decision as a JSON line, threads in input order.
func writeDecisions(w io.Writer, results []pipeline.ThreadResult) error {
	enc := json.NewEncoder(w)
	for _, res := range results {
		for _, d := range res.Decisions {
			if err := enc.Encode(d); err != nil {
				return err
			}
		}
	}
	return nil
}

// reportMetrics logs decision and missing-tag totals gathered during the run and, when
// exposition is set, writes every family to w in text exposition format.
func reportMetrics(w io.Writer, g prometheus.Gatherer, exposition bool) error {
	actions, err := monitoring.CounterTotals(g, "triage_decisions_total", "action")
	if err != nil {
		return eris.Wrap(err, "replay: metrics")
	}
	tags, err := monitoring.CounterTotals(g, "triage_missing_tags_total", "tag")
	if err != nil {
		return eris.Wrap(err, "replay: metrics")
	}
	fields := make([]zap.Field, 0, len(actions))
	for _, action := range monitoring.SortedKeys(actions) {
		fields = append(fields, zap.Float64(action, actions[action]))
	}
	missing := make([]string, 0, len(tags))
	for _, tag := range monitoring.SortedKeys(tags) {
		missing = append(missing, fmt.Sprintf("%s=%g", tag, tags[tag]))
	}
	fields = append(fields, zap.Strings("missing_tags", missing))
	zap.L().Info("replay: decisions by action", fields...)

	if !exposition {
		return nil
	}
	if err := monitoring.WriteText(w, g); err != nil {
		return eris.Wrap(err, "replay: metrics")
	}
	return nil
}

// replayOutcome reports failed threads and returns an error when any failed.
func replayOutcome(w io.Writer, results []pipeline.ThreadResult) error {
	failed := 0
	for _, res := range results {
		if res.Err == nil {
			continue
		}
		failed++
		fmt.Fprintf(w, "thread %s failed after %d turns: %v\n", res.ThreadID, len(res.Decisions), res.Err)
	}
	if failed > 0 {
		return eris.Errorf("replay: %d of %d threads failed", failed, len(results))
	}

	zap.L().Info("replay: done", zap.Int("threads", len(results)))
	return nil
}

func init() {
	replayCmd.Flags().Bool("memory", false, "use an in-memory store instead of the configured one")
	replayCmd.Flags().Bool("metrics", false, "write gathered metrics to stderr in Prometheus text format")
	rootCmd.AddCommand(replayCmd)
}
