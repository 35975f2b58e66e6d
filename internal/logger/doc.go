// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with console or JSON encoding,
//   - context helpers (ToContext/FromContext/WithName/WithKV/WithFields),
//   - level and format parsing utilities,
//   - convenience functions (Infof, ErrorKV, etc.).
//
// Every component of the alarm central accepts a context and extracts the
// logger from it, so log lines carry the component name and device id.
package logger
