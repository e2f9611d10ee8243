package config

import (
	"fmt"
	"io"
	"strings"

	izerolog "github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/rs/zerolog"
)

const (
	FormatJSON    = `json`
	FormatConsole = `console`
	FormatStumpy  = `stumpy`
)

var levels = map[string]logiface.Level{
	`disabled`: logiface.LevelDisabled,
	`emerg`:    logiface.LevelEmergency,
	`alert`:    logiface.LevelAlert,
	`crit`:     logiface.LevelCritical,
	`err`:      logiface.LevelError,
	`error`:    logiface.LevelError,
	`warning`:  logiface.LevelWarning,
	`warn`:     logiface.LevelWarning,
	`notice`:   logiface.LevelNotice,
	`info`:     logiface.LevelInformational,
	`debug`:    logiface.LevelDebug,
	`trace`:    logiface.LevelTrace,
}

// ParseLevel parses the syslog keyword of a level (as formatted by
// logiface.Level.String), or one of the aliases "error" and "warn".
func ParseLevel(s string) (logiface.Level, error) {
	if level, ok := levels[strings.ToLower(strings.TrimSpace(s))]; ok {
		return level, nil
	}
	return logiface.LevelDisabled, fmt.Errorf("unknown log level: %q", s)
}

// NewLogger builds a logger writing to w, per cfg.
func NewLogger(w io.Writer, cfg LogConfig) (*logiface.Logger[logiface.Event], error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	limits := RateMap(cfg.RateLimits)

	switch cfg.Format {
	case FormatJSON, FormatConsole:
		if cfg.Format == FormatConsole {
			w = zerolog.ConsoleWriter{Out: w}
		}
		options := []logiface.Option[*izerolog.Event]{
			izerolog.L.WithZerolog(zerolog.New(w).With().Timestamp().Logger()),
			izerolog.L.WithLevel(level),
		}
		if limits != nil {
			options = append(options, izerolog.L.WithCategoryRateLimits(limits))
		}
		return izerolog.L.New(options...).Logger(), nil

	case FormatStumpy:
		options := []logiface.Option[*stumpy.Event]{
			stumpy.L.WithStumpy(stumpy.WithWriter(w)),
			stumpy.L.WithLevel(level),
		}
		if limits != nil {
			options = append(options, stumpy.L.WithCategoryRateLimits(limits))
		}
		return stumpy.L.New(options...).Logger(), nil

	default:
		return nil, fmt.Errorf("unknown log format: %q", cfg.Format)
	}
}
