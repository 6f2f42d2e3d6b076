package env

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"0":       zerolog.FatalLevel,
		"1":       zerolog.ErrorLevel,
		"2":       zerolog.InfoLevel,
		"3":       zerolog.DebugLevel,
		"4":       zerolog.TraceLevel,
		"12":      zerolog.DebugLevel,
		"-1":      zerolog.DebugLevel,
		"":        zerolog.DebugLevel,
		"info":    zerolog.InfoLevel,
		" WARN ":  zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"verbose": zerolog.DebugLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}

func TestLogOutput(t *testing.T) {
	t.Run("keeps the default output in PROD", func(t *testing.T) {
		out, err := logOutput("PROD", &bytes.Buffer{}, false, "")
		require.NoError(t, err)
		assert.Nil(t, out)
	})

	t.Run("console in DEV", func(t *testing.T) {
		var buf bytes.Buffer
		out, err := logOutput("DEV", &buf, false, "")
		require.NoError(t, err)
		require.NotNil(t, out)
		zerolog.New(out).Info().Str("context", "test").Msg("console_line")
		assert.Contains(t, buf.String(), "console_line")
	})

	t.Run("console and file", func(t *testing.T) {
		var buf bytes.Buffer
		file := filepath.Join(t.TempDir(), "framemixer.log")
		out, err := logOutput("PROD", &buf, true, file)
		require.NoError(t, err)
		zerolog.New(out).Info().Msg("both_lines")
		assert.Contains(t, buf.String(), "both_lines")
		assert.FileExists(t, file)
	})

	t.Run("unwritable file keeps the console", func(t *testing.T) {
		var buf bytes.Buffer
		file := filepath.Join(t.TempDir(), "missing", "framemixer.log")
		out, err := logOutput("DEV", &buf, false, file)
		assert.Error(t, err)
		require.NotNil(t, out)
	})
}
