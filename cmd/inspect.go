package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/freight-triage/internal/model"
	"github.com/sells-group/freight-triage/internal/store"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <thread-id>",
	Short: "Show the stored state and merge history of a thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("inspect"); err != nil {
			return err
		}

		st, err := initStore(ctx, false)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		thread, err := st.LoadThread(ctx, args[0])
		if errors.Is(err, store.ErrNotFound) {
			return eris.Errorf("inspect: thread %s not found", args[0])
		}
		if err != nil {
			return eris.Wrap(err, "inspect")
		}

		events, err := st.ListEvents(ctx, thread.ID)
		if err != nil {
			return eris.Wrap(err, "inspect")
		}

		format, _ := cmd.Flags().GetString("format")
		switch format {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(inspectDocument{Thread: thread, Events: events})
		case "text":
			formatThread(os.Stdout, thread, events)
			return nil
		default:
			return eris.Errorf("inspect: unknown format %q", format)
		}
	},
}

type inspectDocument struct {
	Thread *model.Thread           `json:"thread"`
	Events []model.ExtractionEvent `json:"events"`
}

// formatThread writes a human-readable summary of a thread and its events.
func formatThread(w io.Writer, th *model.Thread, events []model.ExtractionEvent) {
	fmt.Fprintf(w, "Thread:     %s\n", th.ID)
	fmt.Fprintf(w, "Version:    %d\n", th.State.ExtractionVersion)
	fmt.Fprintf(w, "Messages:   %d\n", len(th.Messages))
	fmt.Fprintf(w, "Rounds:     %d\n", th.ClarificationRounds)
	fmt.Fprintf(w, "Updated:    %s\n", th.UpdatedAt.Format("2006-01-02 15:04:05"))
	if d := th.LastDecision; d != nil {
		fmt.Fprintf(w, "Action:     %s\n", d.Action)
		fmt.Fprintf(w, "Reason:     %s\n", d.Reason)
		if len(d.Missing) > 0 {
			fmt.Fprintf(w, "Missing:    %s\n", strings.Join(d.Missing, ", "))
		}
	}

	if len(events) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tMESSAGE\tSOURCE\tCOMPLETE\tMISSING\tCREATED")
	for _, ev := range events {
		source := string(ev.Source)
		if source == "" {
			source = "-"
		}
		msg := ev.MessageID
		if msg == "" {
			msg = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%s\t%s\n",
			ev.Version, msg, source, ev.Complete,
			strings.Join(ev.Missing, ","),
			ev.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	tw.Flush() //nolint:errcheck
}

func init() {
	inspectCmd.Flags().String("format", "json", "output format: json or text")
	rootCmd.AddCommand(inspectCmd)
}
