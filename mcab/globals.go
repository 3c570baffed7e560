package internal

import (
	"log"
	"os"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog"
)

var (
	// DefaultAppName is used for config lookup and log fields
	DefaultAppName          = "mcab"
	DefaultConfigPath       = filepath.Join(getHomeDir(), ".config", DefaultAppName)
	DefaultGlobalConfigFile = filepath.Join(DefaultConfigPath, "config.yaml")
	DefaultIgnoreFile       = "." + DefaultAppName + "ignore"

	// Default pipeline sizing
	DefaultLoadThreads    = 1
	DefaultProcessThreads = runtime.NumCPU()
	DefaultWriteThreads   = 4
	DefaultMaxLoadedFiles = DefaultProcessThreads + DefaultProcessThreads/2

	DefaultLogLevel = "info"
)

func getHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			log.Printf("Unable to get home or working directory, using /tmp: %v", err)
			return "/tmp"
		}
		log.Printf("Unable to get home directory, using current working directory: %v", err)
		return cwd
	}
	return homeDir
}

// GetLogger returns a properly configured zerolog logger instance
func GetLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// GetLeveledLogger returns GetLogger filtered at the named level. Unknown
// level names fall back to info.
func GetLeveledLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return GetLogger().Level(lvl)
}
