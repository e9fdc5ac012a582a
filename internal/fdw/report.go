package fdw

import "log/slog"

// LogReporter writes adapter diagnostics to a structured logger.
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter returns a Reporter backed by logger.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogReporter{logger: logger}
}

// PageFetched logs pagination progress.
func (r *LogReporter) PageFetched(page, pageRecords, totalRecords int) {
	r.logger.Info("page fetched", "page", page, "page_records", pageRecords, "total_records", totalRecords)
}

// Info logs an informational message.
func (r *LogReporter) Info(msg string, args ...any) {
	r.logger.Info(msg, args...)
}
