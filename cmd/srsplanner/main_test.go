package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"srs-planner/internal/model"
	"srs-planner/internal/service"
	"srs-planner/internal/srs"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf("database:\n  url: %s\nlog:\n  level: error\n", filepath.Join(dir, "cli.db"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommandHasSubcommands(t *testing.T) {
	cmd := newRootCommand()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "scan", "prune", "add", "due", "timeline", "review"} {
		assert.Contains(t, names, want)
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("debug"))
}

func TestCardCommands(t *testing.T) {
	cfgPath := writeConfig(t)

	out, err := run(t, cfgPath, "add", "hola", "hello", "--owner", "u1", "--deck", "Spanish")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "created "), out)
	id := strings.TrimSpace(strings.TrimPrefix(out, "created "))

	out, err = run(t, cfgPath, "due", "--owner", "u1", "--deck", "Spanish", "--tz", "Europe/Berlin")
	require.NoError(t, err)
	assert.Contains(t, out, "1 due")
	assert.Contains(t, out, id)
	assert.Contains(t, out, "hola")

	_, err = run(t, cfgPath, "due", "--owner", "u1", "--deck", "French")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `deck "French" not found`)

	_, err = run(t, cfgPath, "review", id, "maybe", "--owner", "u1")
	require.ErrorIs(t, err, srs.ErrInvalidOutcome)

	out, err = run(t, cfgPath, "review", id, "good", "--owner", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "step 1, next review in 1 week")

	out, err = run(t, cfgPath, "due", "--owner", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing is due.")

	out, err = run(t, cfgPath, "timeline", "--owner", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "due 0, upcoming 1")
	assert.Contains(t, out, "1_week")
}

func TestCommandsRequireOwner(t *testing.T) {
	cfgPath := writeConfig(t)
	_, err := run(t, cfgPath, "due")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "owner")
}

func TestScanAndPruneCommands(t *testing.T) {
	cfgPath := writeConfig(t)

	out, err := run(t, cfgPath, "scan", "--at", "2025-06-02T08:00:00Z")
	require.NoError(t, err)
	assert.Contains(t, out, "Dispatch scan at 2025-06-02T08:00:00Z")
	assert.Contains(t, out, "total")

	_, err = run(t, cfgPath, "scan", "--at", "tomorrow")
	require.Error(t, err)

	out, err = run(t, cfgPath, "prune")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 0 dispatch log entries")
}

func TestInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: loud\n"), 0o600))

	_, err := run(t, path, "due", "--owner", "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestPrintScanReport(t *testing.T) {
	color.NoColor = true
	report := service.ScanReport{
		KindReport: service.KindReport{Evaluated: 3, Sent: 1, Failed: 1, Skipped: 1},
		ByKind: map[model.TriggerKind]service.KindReport{
			model.TriggerMorningFlashcard: {Evaluated: 2, Sent: 1, Failed: 1},
			model.TriggerEveningPractice:  {Evaluated: 1, Skipped: 1},
		},
		Duration: 1500 * time.Microsecond,
	}

	var out bytes.Buffer
	printScanReport(&out, time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC), report)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "(2ms)")
	assert.Contains(t, lines[1], "evening_practice")
	assert.Contains(t, lines[2], "morning_flashcards")
	assert.Contains(t, lines[2], "sent 1  failed 1  errors 0  skipped 0")
	assert.Contains(t, lines[3], "total")
}
