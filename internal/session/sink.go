// internal/session/sink.go
package session

import (
	"go.uber.org/zap"

	"dive-service/internal/model"
)

// EventSink receives session telemetry synchronously, in emission order. A
// slow sink stalls the download.
type EventSink interface {
	OnEvent(event model.SessionEvent)
}

// EventSinkFunc adapts a function to EventSink
type EventSinkFunc func(event model.SessionEvent)

// OnEvent calls f(event)
func (f EventSinkFunc) OnEvent(event model.SessionEvent) { f(event) }

// MultiSink delivers each event to every sink in order
type MultiSink []EventSink

// OnEvent implements EventSink
func (m MultiSink) OnEvent(event model.SessionEvent) {
	for _, sink := range m {
		if sink != nil {
			sink.OnEvent(event)
		}
	}
}

// LoggingSink writes one log line per event
type LoggingSink struct {
	logger *zap.Logger
}

// NewLoggingSink creates a sink logging through logger
func NewLoggingSink(logger *zap.Logger) *LoggingSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingSink{logger: logger}
}

// OnEvent implements EventSink
func (s *LoggingSink) OnEvent(event model.SessionEvent) {
	fields := []zap.Field{zap.String("event", string(event.Kind()))}
	if _, ok := event.(model.ProgressEvent); ok {
		s.logger.Debug(event.String(), fields...)
		return
	}
	s.logger.Info(event.String(), fields...)
}

type nopSink struct{}

func (nopSink) OnEvent(model.SessionEvent) {}
