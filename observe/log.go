package observe

import (
	"context"
	"log/slog"
)

// LogExporter writes each span as one structured log record.
type LogExporter struct {
	logger *slog.Logger
}

// NewLogExporter creates a LogExporter writing to logger (default
// slog.Default()).
func NewLogExporter(logger *slog.Logger) *LogExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogExporter{logger: logger}
}

// Export implements SpanExporter.
func (e *LogExporter) Export(ctx context.Context, spans []Span) error {
	for _, s := range spans {
		attrs := []slog.Attr{
			slog.String("id", s.ID),
			slog.String("backend", s.Backend),
			slog.String("kind", s.Kind),
			slog.String("query_hash", s.QueryHash),
			slog.Time("start", s.StartTime),
			slog.Duration("duration", s.EndTime.Sub(s.StartTime)),
			slog.String("status", string(s.Status)),
		}
		if s.Error != "" {
			attrs = append(attrs, slog.String("error", s.Error))
		}
		e.logger.LogAttrs(ctx, slog.LevelInfo, "span", attrs...)
	}
	return nil
}

// Name implements SpanExporter.
func (e *LogExporter) Name() string {
	return "log"
}

var _ SpanExporter = (*LogExporter)(nil)
