package infra

import (
	"go.uber.org/zap"

	"github.com/pars5555/tailbridge/internal/domain"
)

// ZapDiagnosticSink implements domain.DiagnosticSink on named zap loggers,
// one per topic, so query results can be filtered the same way the rest of
// the daemon's logs are.
type ZapDiagnosticSink struct {
	logger *zap.Logger
}

// NewZapDiagnosticSink creates a sink on top of the given logger.
func NewZapDiagnosticSink(logger *zap.Logger) domain.DiagnosticSink {
	return &ZapDiagnosticSink{logger: logger}
}

// Emit logs the message under a named sub-logger for the topic.
func (s *ZapDiagnosticSink) Emit(topic, message string) {
	s.logger.Named(topic).Info(message)
}

// Ensure ZapDiagnosticSink implements domain.DiagnosticSink.
var _ domain.DiagnosticSink = (*ZapDiagnosticSink)(nil)
