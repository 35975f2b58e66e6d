package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// floorCore drops entries below floor. It never lets through an entry the
// wrapped core would drop, so it can only raise the threshold.
type floorCore struct {
	zapcore.Core

	// floor is the lowest level written through this core.
	floor zapcore.Level
}

func (c *floorCore) Enabled(l zapcore.Level) bool {
	return l >= c.floor && c.Core.Enabled(l)
}

//nolint:gocritic // AddCore requires ent to be passed by value.
func (c *floorCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(ent.Level) {
		return ce
	}

	return ce.AddCore(ent, c)
}

//nolint:ireturn // zap wraps cores through the interface.
func (c *floorCore) With(fields []zapcore.Field) zapcore.Core {
	return &floorCore{Core: c.Core.With(fields), floor: c.floor}
}

// WithLevel raises the threshold of a derived logger to lvl. Library loggers
// such as paho's use it to stay quieter than the process level.
//
//nolint:ireturn // zap.Option is an interface.
func WithLevel(lvl zapcore.Level) zap.Option {
	return zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &floorCore{Core: core, floor: lvl}
	})
}
