package env

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// numeric levels, kept for existing .env files
var numericLevels = []zerolog.Level{
	zerolog.FatalLevel,
	zerolog.ErrorLevel,
	zerolog.InfoLevel,
	zerolog.DebugLevel,
	zerolog.TraceLevel,
}

// parseLevel reads FRAMEMIXER_LOG_LEVEL: 0..4 or a zerolog level name,
// anything else is debug
func parseLevel(s string) zerolog.Level {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n >= 0 && n < len(numericLevels) {
			return numericLevels[n]
		}
		return zerolog.DebugLevel
	}
	if s == "" {
		return zerolog.DebugLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.DebugLevel
	}
	return level
}

// logOutput returns nil when zerolog's default stderr JSON output is kept.
// The console writer is on in DEV mode or when asked for, the file writer
// when a path is set.
func logOutput(mode string, stdout io.Writer, toStdout bool, file string) (io.Writer, error) {
	var writers []io.Writer
	if mode == "DEV" || toStdout {
		writers = append(writers, zerolog.ConsoleWriter{Out: stdout, TimeFormat: TimeFormat})
	}
	var fileErr error
	if file != "" {
		f, err := os.OpenFile(file, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0666)
		if err != nil {
			fileErr = err
		} else {
			writers = append(writers, f)
		}
	}
	switch len(writers) {
	case 0:
		return nil, fileErr
	case 1:
		return writers[0], fileErr
	default:
		return zerolog.MultiLevelWriter(writers...), fileErr
	}
}

// level is passed explicitly: init order makes LogLevel unreliable here
func configureGlobalLogger(level zerolog.Level) {
	zerolog.TimeFieldFormat = TimeFormat
	if Mode == "DEV" {
		log.Logger = log.With().Caller().Logger()
	}
	out, err := logOutput(Mode, os.Stdout, LogStdout, LogFile)
	if out != nil {
		log.Logger = log.Output(out)
	}
	if err != nil {
		log.Error().Str("context", "init").Err(err).Str("file", LogFile).Msg("log_file_failed")
	}
	zerolog.SetGlobalLevel(level)
}
