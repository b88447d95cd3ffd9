package glpi

import (
	"github.com/rs/zerolog"
)

// restyLogger forwards resty's internal warnings to zerolog.
type restyLogger struct {
	logger zerolog.Logger
}

func newRestyLogger(logger zerolog.Logger) *restyLogger {
	return &restyLogger{logger: logger.With().Str("component", "resty").Logger()}
}

func (l *restyLogger) Errorf(format string, v ...any) {
	l.logger.Error().Msgf(format, v...)
}

func (l *restyLogger) Warnf(format string, v ...any) {
	l.logger.Warn().Msgf(format, v...)
}

func (l *restyLogger) Debugf(format string, v ...any) {
	l.logger.Debug().Msgf(format, v...)
}
