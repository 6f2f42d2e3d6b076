package env

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	TimeFormat = "20060102-150405.000"
)

var GeneratePlots, LogStdout, NoGST bool
var LogLevel zerolog.Level
var ConfigRoot, LogFile, Mode, OutputDir, Port, TestLogin, TestPassword, WebPrefix string
var AllowedWSOrigins []string

func getenvOr(key, fallback string) string {
	value := os.Getenv(key)
	if len(value) == 0 {
		return fallback
	}
	return value
}

func isTrue(key string) bool {
	return strings.ToLower(os.Getenv(key)) == "true"
}

func init() {
	Mode = getenvOr("FRAMEMIXER_MODE", "PROD")
	// CAUTION: other init functions may run before this one
	if Mode == "DEV" {
		if err := godotenv.Load(".env"); err != nil {
			log.Fatal().Err(err).Msg("app_crashed")
		}
	}

	// bools
	GeneratePlots = isTrue("FRAMEMIXER_GENERATE_PLOTS")
	LogStdout = isTrue("FRAMEMIXER_LOG_STDOUT")
	NoGST = isTrue("FRAMEMIXER_NO_GST")

	// levels
	LogLevel = parseLevel(os.Getenv("FRAMEMIXER_LOG_LEVEL"))

	// strings
	LogFile = os.Getenv("FRAMEMIXER_LOG_FILE")
	Port = os.Getenv("FRAMEMIXER_PORT")
	if len(Port) < 2 {
		Port = "8100"
	}
	OutputDir = getenvOr("FRAMEMIXER_OUTPUT_DIR", "data")
	ConfigRoot = getenvOr("FRAMEMIXER_CONFIG_ROOT", ".")
	// for instance "/path" if the server is reachable at https://host/path
	WebPrefix = getenvOr("FRAMEMIXER_WEB_PREFIX", "")
	// basic auth for the control page
	TestLogin = getenvOr("FRAMEMIXER_TEST_LOGIN", "framemixer")
	TestPassword = getenvOr("FRAMEMIXER_TEST_PASSWORD", "framemixer")
	// origins
	originsUnsplit := os.Getenv("FRAMEMIXER_ALLOWED_WS_ORIGINS")
	if len(originsUnsplit) > 0 {
		AllowedWSOrigins = append(AllowedWSOrigins, strings.Split(originsUnsplit, ",")...)
	}
	if Mode == "DEV" {
		AllowedWSOrigins = append(AllowedWSOrigins, "http://localhost:"+Port)
	}

	// other global configuration
	configureGlobalLogger(LogLevel)
}
