package mqtt

import (
	"context"
	"fmt"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/home-alarm-central/internal/logger"
)

// pahoLogger adapts a sugared logger to paho's Logger interface.
type pahoLogger struct {
	// log writes the messages.
	log *zap.SugaredLogger
	// level is the level every message is logged at.
	level zapcore.Level
}

func (l pahoLogger) Println(v ...any) {
	l.log.Log(l.level, strings.TrimSpace(fmt.Sprintln(v...)))
}

func (l pahoLogger) Printf(format string, v ...any) {
	l.log.Log(l.level, strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// RouteLibraryLogs sends paho's internal logs to the logger in ctx. Library
// debug output is only kept when minLevel is zapcore.DebugLevel.
func RouteLibraryLogs(ctx context.Context, minLevel zapcore.Level) {
	base := logger.FromContext(logger.WithName(ctx, "paho")).
		WithOptions(logger.WithLevel(minLevel))

	paho.ERROR = pahoLogger{log: base, level: zapcore.ErrorLevel}
	paho.CRITICAL = pahoLogger{log: base, level: zapcore.ErrorLevel}
	paho.WARN = pahoLogger{log: base, level: zapcore.WarnLevel}
	paho.DEBUG = pahoLogger{log: base, level: zapcore.DebugLevel}
}
