package logger

import "log/slog"

// StyledLogger decorates the handful of log call sites the driver cares
// about - endpoint selection, endpoint health transitions, and session
// unpinning - so callers don't have to repeat the same attribute shape at
// every call site. General messages fall back to the plain slog methods.
type StyledLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	InfoEndpointSelected(endpoint string, sessionID string)
	WarnEndpointUnhealthy(endpoint string, reason error)
	InfoEndpointRecovered(endpoint string)
	WarnSessionUnpinned(sessionID, endpoint string)

	With(args ...any) StyledLogger
	Underlying() *slog.Logger
}

// PlainStyledLogger implements StyledLogger with no colour, suitable for
// JSON/file output or non-TTY stdout.
type PlainStyledLogger struct {
	logger *slog.Logger
}

func NewPlainStyledLogger(logger *slog.Logger) *PlainStyledLogger {
	return &PlainStyledLogger{logger: logger}
}

func (sl *PlainStyledLogger) Debug(msg string, args ...any) { sl.logger.Debug(msg, args...) }
func (sl *PlainStyledLogger) Info(msg string, args ...any)  { sl.logger.Info(msg, args...) }
func (sl *PlainStyledLogger) Warn(msg string, args ...any)  { sl.logger.Warn(msg, args...) }
func (sl *PlainStyledLogger) Error(msg string, args ...any) { sl.logger.Error(msg, args...) }

func (sl *PlainStyledLogger) InfoEndpointSelected(endpoint string, sessionID string) {
	sl.logger.Info("endpoint selected", "endpoint", endpoint, "session", sessionID)
}

func (sl *PlainStyledLogger) WarnEndpointUnhealthy(endpoint string, reason error) {
	sl.logger.Warn("endpoint marked unhealthy", "endpoint", endpoint, "reason", reason)
}

func (sl *PlainStyledLogger) InfoEndpointRecovered(endpoint string) {
	sl.logger.Info("endpoint recovered", "endpoint", endpoint)
}

func (sl *PlainStyledLogger) WarnSessionUnpinned(sessionID, endpoint string) {
	sl.logger.Warn("session unpinned from unhealthy endpoint", "session", sessionID, "endpoint", endpoint)
}

func (sl *PlainStyledLogger) With(args ...any) StyledLogger {
	return &PlainStyledLogger{logger: sl.logger.With(args...)}
}

func (sl *PlainStyledLogger) Underlying() *slog.Logger { return sl.logger }
