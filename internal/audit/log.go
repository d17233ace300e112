package audit

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Log records structural mutations with a fresh operation id per call.
type Log struct {
	logger zerolog.Logger
}

// New builds a Log writing through logger, tagged with the audit component.
func New(logger zerolog.Logger) *Log {
	return &Log{logger: logger.With().Str("component", "audit").Logger()}
}

// Begin starts recording one operation, logging its arguments and returning
// the operation id to attach to the eventual outcome via End.
func (l *Log) Begin(operation string, fields map[string]any) string {
	id := uuid.NewString()
	evt := l.logger.Info().Str("operation_id", id).Str("operation", operation)
	for k, v := range fields {
		evt = evt.Interface(k, v)
	}
	evt.Msg("operation started")
	return id
}

// End records the outcome of the operation started under id. err is nil on
// success.
func (l *Log) End(id, operation string, err error) {
	if err != nil {
		l.logger.Warn().Str("operation_id", id).Str("operation", operation).Err(err).Msg("operation failed")
		return
	}
	l.logger.Info().Str("operation_id", id).Str("operation", operation).Msg("operation completed")
}
