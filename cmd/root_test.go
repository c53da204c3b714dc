package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	// Verify expected subcommands are registered.
	expected := []string{"replay", "evaluate", "inspect", "stats", "migrate"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "freight-triage", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	for _, name := range []string{"replay", "evaluate", "inspect", "stats", "migrate"} {
		assert.Contains(t, rootCmd.Long, name)
	}
}

func TestReplayCommand_Flags(t *testing.T) {
	flag := replayCmd.Flags().Lookup("memory")
	require.NotNil(t, flag, "replay command should have --memory flag")
	assert.Equal(t, "false", flag.DefValue)

	flag = replayCmd.Flags().Lookup("metrics")
	require.NotNil(t, flag, "replay command should have --metrics flag")
	assert.Equal(t, "false", flag.DefValue)
}

func TestEvaluateCommand_Flags(t *testing.T) {
	for _, name := range []string{"text", "matcher"} {
		assert.NotNil(t, evaluateCmd.Flags().Lookup(name), "evaluate should have --%s flag", name)
	}
}

func TestInspectCommand_Flags(t *testing.T) {
	flag := inspectCmd.Flags().Lookup("format")
	require.NotNil(t, flag, "inspect command should have --format flag")
	assert.Equal(t, "json", flag.DefValue)
}

func TestStatsCommand_Flags(t *testing.T) {
	flag := statsCmd.Flags().Lookup("lookback-hours")
	require.NotNil(t, flag, "stats command should have --lookback-hours flag")
	assert.Equal(t, "24", flag.DefValue)

	assert.NotNil(t, statsCmd.Flags().Lookup("json"))
}
