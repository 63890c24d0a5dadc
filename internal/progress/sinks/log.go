// Package sinks provides the progress sink implementations the crawl wires
// into the hub.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/campuscrawl/campuscrawl/internal/progress"
)

// LogSink emits structured logs for progress streams. Useful during
// development or when operating without the durable run history.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunID),
			zap.String("stage", string(evt.Stage)),
			zap.Time("ts", evt.TS),
		}
		if evt.Site != "" {
			fields = append(fields, zap.String("site", evt.Site))
		}
		if evt.URL != "" {
			fields = append(fields, zap.String("url", evt.URL))
		}
		if evt.Stage == progress.StagePageDone {
			fields = append(fields,
				zap.Int64("bytes", evt.Bytes),
				zap.Int("words", evt.Words),
				zap.String("status_class", string(evt.StatusClass)),
			)
		}
		if evt.Reason != "" {
			fields = append(fields, zap.String("reason", evt.Reason))
		}
		s.logger.Debug("progress event", fields...)
	}
	return nil
}

// Close satisfies the Sink interface; loggers are closed by their owner.
func (s *LogSink) Close(context.Context) error {
	return nil
}
