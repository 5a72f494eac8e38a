package logger

import (
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	globalLogger *Logger
	mu           sync.RWMutex
)

// GetLogger returns the global logger instance, creating a JSON logger
// on first use. DEBUG=true or LOG_LEVEL override the default level.
func GetLogger() *Logger {
	mu.RLock()
	l := globalLogger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if globalLogger == nil {
		level := "info"
		if os.Getenv("DEBUG") == "true" {
			level = "debug"
		} else if os.Getenv("LOG_LEVEL") != "" {
			level = os.Getenv("LOG_LEVEL")
		}

		globalLogger = New(Config{
			Level:  level,
			Format: "json",
			Output: "stdout",
		})
	}
	return globalLogger
}

// SetLogger replaces the global logger instance and zerolog's package
// logger. Components capture their logger at construction, so call this
// before building them.
func SetLogger(logger *Logger) {
	mu.Lock()
	defer mu.Unlock()
	globalLogger = logger
	log.Logger = logger.logger
}
