package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/freight-triage/internal/completeness"
	"github.com/sells-group/freight-triage/internal/model"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <state.json>",
	Short: "Check a cumulative state for quote readiness",
	Long: "Evaluates a cumulative state JSON file, or a thread exported by inspect, and prints " +
		"the completeness result. --text files are added to the thread texts used by keyword fallbacks.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "evaluate: read state")
		}
		state, texts, err := parseEvaluationInput(data)
		if err != nil {
			return err
		}

		textFiles, _ := cmd.Flags().GetStringArray("text")
		for _, path := range textFiles {
			b, err := os.ReadFile(path)
			if err != nil {
				return eris.Wrapf(err, "evaluate: read text %s", path)
			}
			texts = append(texts, string(b))
		}

		matcher, _ := cmd.Flags().GetString("matcher")
		if matcher == "" {
			matcher = cfg.Completeness.Matcher
		}
		ev := completeness.New(completeness.WithMatcher(completeness.NewMatcher(matcher)))
		res := ev.Evaluate(state, texts)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(evaluationOutput{
			Complete:          res.Complete,
			Missing:           res.Missing,
			Blocking:          res.Blocking(),
			ExtractionVersion: state.ExtractionVersion,
		})
	},
}

type evaluationOutput struct {
	Complete          bool     `json:"complete"`
	Missing           []string `json:"missing"`
	Blocking          []string `json:"blocking"`
	ExtractionVersion int      `json:"extraction_version"`
}

// parseEvaluationInput accepts a bare cumulative state or an inspect
// document. For the latter the thread's message bodies become texts.
func parseEvaluationInput(data []byte) (model.CumulativeState, []string, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return model.CumulativeState{}, nil, eris.Wrap(err, "evaluate: decode state")
	}

	if raw, ok := envelope["thread"]; ok {
		var th model.Thread
		if err := json.Unmarshal(raw, &th); err != nil {
			return model.CumulativeState{}, nil, eris.Wrap(err, "evaluate: decode thread")
		}
		return th.State, th.Context(nil).Texts(), nil
	}

	var state model.CumulativeState
	if err := json.Unmarshal(data, &state); err != nil {
		return model.CumulativeState{}, nil, eris.Wrap(err, "evaluate: decode state")
	}
	return state, nil, nil
}

func init() {
	evaluateCmd.Flags().StringArray("text", nil, "message body file to search for keywords (repeatable)")
	evaluateCmd.Flags().String("matcher", "", "text matcher: substring or word (default from config)")
	rootCmd.AddCommand(evaluateCmd)
}
