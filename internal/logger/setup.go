package logger

import (
	"errors"
	"fmt"
	"os"
)

var (
	// errUnknownLevel is returned by Setup for unsupported level names.
	errUnknownLevel = errors.New("unknown log level")
	// errUnknownFormat is returned by Setup for unsupported format names.
	errUnknownFormat = errors.New("unknown log format")
)

// Setup replaces the global logger according to the CLI flags.
func Setup(level, format string) error {
	lvl, ok := ParseLogLevel(level)
	if !ok {
		return fmt.Errorf("%w: %q", errUnknownLevel, level)
	}

	f, ok := ParseFormat(format)
	if !ok {
		return fmt.Errorf("%w: %q", errUnknownFormat, format)
	}

	SetLogger(NewWithFormat(os.Stdout, f, defaultLevel))
	SetLevel(lvl)

	return nil
}
