package repomon

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/skaphos/repomon/internal/engine"
	"github.com/skaphos/repomon/internal/logging"
)

const (
	envPrefix = "REPOMON"

	settingLogLevel    = "log-level"
	settingLogFormat   = "log-format"
	settingTimeout     = "timeout"
	settingConcurrency = "concurrency"
	settingBuffer      = "buffer"
	settingMinInterval = "min-interval"
)

// settings resolves runtime options: flag, then REPOMON_* environment, then default.
var settings = viper.New()

// runtimeSettings are the options that shape logging and engine behavior but
// are not part of the monitored repository set.
type runtimeSettings struct {
	LogLevel    logging.Level
	LogFormat   logging.Format
	Timeout     time.Duration
	Concurrency int
	Buffer      int
	MinInterval time.Duration
}

func addSettingsFlags(flags *pflag.FlagSet) {
	flags.String(settingLogLevel, string(logging.LevelWarn), "log level: debug, info, warn, error")
	flags.String(settingLogFormat, string(logging.FormatConsole), "log format: console, json")
	flags.Duration(settingTimeout, 0, "bound each fetch (0 disables)")
	flags.Int(settingConcurrency, 4, "repositories checked in parallel by check")
	flags.Int(settingBuffer, 64, "status messages buffered by watch before the oldest is dropped")
	flags.Duration(settingMinInterval, engine.DefaultMinInterval, "shortest interval watch re-arms a branch with")
}

func bindSettings(v *viper.Viper, flags *pflag.FlagSet) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for _, name := range []string{settingLogLevel, settingLogFormat, settingTimeout, settingConcurrency, settingBuffer, settingMinInterval} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}
}

func loadSettings(v *viper.Viper) (runtimeSettings, error) {
	s := runtimeSettings{
		LogLevel:    logging.Level(strings.ToLower(strings.TrimSpace(v.GetString(settingLogLevel)))),
		LogFormat:   logging.Format(strings.ToLower(strings.TrimSpace(v.GetString(settingLogFormat)))),
		Timeout:     v.GetDuration(settingTimeout),
		Concurrency: v.GetInt(settingConcurrency),
		Buffer:      v.GetInt(settingBuffer),
		MinInterval: v.GetDuration(settingMinInterval),
	}
	if flagVerbose > 1 {
		s.LogLevel = logging.LevelDebug
	} else if flagVerbose == 1 && s.LogLevel != logging.LevelDebug {
		s.LogLevel = logging.LevelInfo
	}
	switch {
	case s.Timeout < 0:
		return s, fmt.Errorf("--%s must not be negative", settingTimeout)
	case s.Concurrency < 1:
		return s, fmt.Errorf("--%s must be at least 1", settingConcurrency)
	case s.Buffer < 1:
		return s, fmt.Errorf("--%s must be at least 1", settingBuffer)
	case s.MinInterval <= 0:
		return s, fmt.Errorf("--%s must be positive", settingMinInterval)
	}
	return s, nil
}
