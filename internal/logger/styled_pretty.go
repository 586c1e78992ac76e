package logger

import (
	"fmt"
	"log/slog"

	"github.com/charmbracelet/lipgloss"
)

var (
	styleEndpoint  = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	styleUnhealthy = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleRecovered = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	styleSession   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// PrettyStyledLogger colourises the endpoint/session helper messages when
// stdout is a real terminal. It's selected automatically by New when
// Config.Pretty is set and stdout is a TTY.
type PrettyStyledLogger struct {
	logger *slog.Logger
}

func NewPrettyStyledLogger(logger *slog.Logger) *PrettyStyledLogger {
	return &PrettyStyledLogger{logger: logger}
}

func (sl *PrettyStyledLogger) Debug(msg string, args ...any) { sl.logger.Debug(msg, args...) }
func (sl *PrettyStyledLogger) Info(msg string, args ...any)  { sl.logger.Info(msg, args...) }
func (sl *PrettyStyledLogger) Warn(msg string, args ...any)  { sl.logger.Warn(msg, args...) }
func (sl *PrettyStyledLogger) Error(msg string, args ...any) { sl.logger.Error(msg, args...) }

func (sl *PrettyStyledLogger) InfoEndpointSelected(endpoint string, sessionID string) {
	msg := fmt.Sprintf("routed to %s", styleEndpoint.Render(endpoint))
	if sessionID != "" {
		msg += fmt.Sprintf(" (session %s)", styleSession.Render(sessionID))
	}
	sl.logger.Info(msg, "endpoint", endpoint, "session", sessionID)
}

func (sl *PrettyStyledLogger) WarnEndpointUnhealthy(endpoint string, reason error) {
	sl.logger.Warn(fmt.Sprintf("%s marked unhealthy: %v", styleUnhealthy.Render(endpoint), reason),
		"endpoint", endpoint, "reason", reason)
}

func (sl *PrettyStyledLogger) InfoEndpointRecovered(endpoint string) {
	sl.logger.Info(fmt.Sprintf("%s recovered", styleRecovered.Render(endpoint)), "endpoint", endpoint)
}

func (sl *PrettyStyledLogger) WarnSessionUnpinned(sessionID, endpoint string) {
	sl.logger.Warn(fmt.Sprintf("session %s unpinned from %s", styleSession.Render(sessionID), endpoint),
		"session", sessionID, "endpoint", endpoint)
}

func (sl *PrettyStyledLogger) With(args ...any) StyledLogger {
	return &PrettyStyledLogger{logger: sl.logger.With(args...)}
}

func (sl *PrettyStyledLogger) Underlying() *slog.Logger { return sl.logger }
