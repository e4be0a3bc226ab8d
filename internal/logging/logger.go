package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"gmo-trading-bot/config"
)

// New builds the process logger. Components receive derived loggers via
// With().Str("component", ...), so everything shares one sink and level.
func New(cfg config.LoggingConfig) zerolog.Logger {
	// ParseLevel maps "" to NoLevel without error, which would mute
	// every leveled event.
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	}

	ctx := zerolog.New(out).Level(level).With().Timestamp()
	if cfg.IncludeCaller {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}
