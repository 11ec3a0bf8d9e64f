// Package logging configures the process-wide logrus logger, following
// the teacher's internal/logging package: a single InitLogger entry
// point driven by resolved configuration, plus an env-var fallback for
// code paths (tests, early init) that run before configuration loads.
package logging

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// InitLogger sets the log level and format based on the resolved level.
func InitLogger(level string) {
	setLogLevel(level)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
}

// InitFromEnv initializes logging from the VAULT_LOG_LEVEL environment
// variable, for code that runs before configuration is loaded.
func InitFromEnv() {
	setLogLevel(strings.ToLower(os.Getenv("VAULT_LOG_LEVEL")))
}

func setLogLevel(level string) {
	switch level {
	case "trace":
		log.SetLevel(log.TraceLevel)
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	default:
		log.SetLevel(log.ErrorLevel)
	}
}

func init() {
	InitFromEnv()
}
