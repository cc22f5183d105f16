package obs

import (
	"context"
	"log/slog"
	"sync"

	"github.com/contestra/ai-ranker-v2-sub003/core"
)

// TelemetrySink consumes one flat telemetry row per orchestrated request.
// Implementations own any persistence; the core never stores rows itself.
type TelemetrySink interface {
	Record(ctx context.Context, record core.TelemetryRecord) error
	Shutdown(ctx context.Context) error
}

// SlogSink writes telemetry rows as structured log lines.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink constructs a SlogSink; a nil logger uses slog.Default.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Record(ctx context.Context, record core.TelemetryRecord) error {
	s.logger.LogAttrs(ctx, slog.LevelInfo, "request telemetry",
		slog.String("request_id", record.RequestID),
		slog.String("provider", record.Provider),
		slog.String("model_original", record.ModelOriginal),
		slog.String("model_effective", record.ModelEffective),
		slog.String("grounding_mode", string(record.GroundingModeRequested)),
		slog.Bool("grounded_effective", record.GroundedEffective),
		slog.Int("tool_call_count", record.ToolCallCount),
		slog.Int("anchored_citations", record.AnchoredCitationsCount),
		slog.Int("unlinked_sources", record.UnlinkedSourcesCount),
		slog.String("why_not_grounded", record.WhyNotGrounded),
		slog.Bool("als_present", record.ALSPresent),
		slog.String("als_country", record.ALSCountry),
		slog.Int64("response_time_ms", record.ResponseTimeMS),
		slog.Bool("success", record.Success),
		slog.String("error_code", record.ErrorCode),
	)
	return nil
}

func (s *SlogSink) Shutdown(context.Context) error { return nil }

// MemorySink buffers telemetry rows in memory. For tests and local runs.
type MemorySink struct {
	mu      sync.Mutex
	records []core.TelemetryRecord
}

// NewMemorySink constructs an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) Record(_ context.Context, record core.TelemetryRecord) error {
	m.mu.Lock()
	m.records = append(m.records, record)
	m.mu.Unlock()
	return nil
}

func (m *MemorySink) Shutdown(context.Context) error { return nil }

// Records returns a copy of the buffered rows.
func (m *MemorySink) Records() []core.TelemetryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.TelemetryRecord(nil), m.records...)
}
