package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/freight-triage/internal/model"
	"github.com/sells-group/freight-triage/internal/monitoring"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize completeness across stored threads",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("inspect"); err != nil {
			return err
		}

		st, err := initStore(ctx, false)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		lookback, _ := cmd.Flags().GetInt("lookback-hours")
		snap, err := monitoring.NewCollector(st).Collect(ctx, lookback)
		if err != nil {
			return eris.Wrap(err, "stats")
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}
		formatSnapshot(os.Stdout, snap)
		return nil
	},
}

// formatSnapshot writes a snapshot as aligned text.
func formatSnapshot(w io.Writer, snap *monitoring.Snapshot) {
	window := "all time"
	if snap.LookbackHours > 0 {
		window = fmt.Sprintf("last %dh", snap.LookbackHours)
	}
	fmt.Fprintf(w, "Threads (%s): %d\n", window, snap.Threads)
	fmt.Fprintf(w, "  Complete:   %d\n", snap.Complete)
	fmt.Fprintf(w, "  Incomplete: %d\n", snap.Incomplete)
	fmt.Fprintf(w, "  Undecided:  %d\n", snap.Undecided)
	fmt.Fprintf(w, "Avg version:  %.1f\n", snap.AvgVersion)
	fmt.Fprintf(w, "Avg rounds:   %.1f\n", snap.AvgClarificationRounds)

	if len(snap.Actions) > 0 {
		actions := make([]model.NextAction, 0, len(snap.Actions))
		for a := range snap.Actions {
			actions = append(actions, a)
		}
		sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })

		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ACTION\tTHREADS")
		for _, a := range actions {
			fmt.Fprintf(tw, "%s\t%d\n", a, snap.Actions[a])
		}
		tw.Flush() //nolint:errcheck
	}

	if len(snap.MissingTags) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "MISSING\tTHREADS")
		for _, tc := range snap.MissingTags {
			fmt.Fprintf(tw, "%s\t%d\n", tc.Tag, tc.Count)
		}
		tw.Flush() //nolint:errcheck
	}
}

func init() {
	statsCmd.Flags().Int("lookback-hours", 24, "only count threads updated within this window (0 for all)")
	statsCmd.Flags().Bool("json", false, "print the snapshot as JSON")
	rootCmd.AddCommand(statsCmd)
}
