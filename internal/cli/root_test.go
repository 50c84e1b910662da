package cli

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootInvalidFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--format", "xml", "validate", "somewhere"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRootListsSubcommands(t *testing.T) {
	cmd := NewRootCommand()

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{
		"compile", "validate", "simulate", "fit",
		"diagnose", "summarize", "recover", "study", "test",
	} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestConfigureLogging(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)
	ctx := context.Background()

	configureLogging(false)
	assert.True(t, slog.Default().Enabled(ctx, slog.LevelInfo))
	assert.False(t, slog.Default().Enabled(ctx, slog.LevelDebug))

	configureLogging(true)
	assert.True(t, slog.Default().Enabled(ctx, slog.LevelDebug))
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitFailure, GetExitCode(NewExitError(ExitFailure, "failed")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad input")))

	wrapped := WrapExitError(ExitCommandError, "outer", errors.New("inner"))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.Contains(t, wrapped.Error(), "inner")
}

func TestParseBinaries(t *testing.T) {
	binaries, err := parseBinaries([]string{"rasch=./stan/rasch", "gpcm=./stan/gpcm"})
	require.NoError(t, err)
	assert.Len(t, binaries, 2)
	assert.Equal(t, "./stan/rasch", binaries["rasch"])

	_, err = parseBinaries([]string{"rasch"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected family=path")

	_, err = parseBinaries([]string{"weibull=./stan/weibull"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown family")

	binaries, err = parseBinaries(nil)
	require.NoError(t, err)
	assert.Nil(t, binaries)
}
