package audit

import (
	"context"

	"github.com/rs/zerolog"
)

// Sink accepts decision events for recording. Implementations must serialize
// their own writes; callers may Record from many goroutines.
type Sink interface {
	Record(ctx context.Context, event Event) error
}

// NopSink discards all events. Use when no audit backend is configured.
type NopSink struct{}

// Record discards the event.
func (NopSink) Record(context.Context, Event) error { return nil }

// MultiSink fans an event out to several backends. Per-backend failures are
// logged and counted through the optional onError hook; they never propagate,
// so an audit outage cannot alter a decision already made.
type MultiSink struct {
	backends []Sink
	logger   zerolog.Logger
	onError  func()
}

// NewMultiSink composes sinks behind a single Record call.
func NewMultiSink(logger zerolog.Logger, onError func(), backends ...Sink) *MultiSink {
	return &MultiSink{backends: backends, logger: logger, onError: onError}
}

// Record forwards the event to every backend.
func (m *MultiSink) Record(ctx context.Context, event Event) error {
	for _, b := range m.backends {
		if err := b.Record(ctx, event); err != nil {
			m.logger.Error().Err(err).Str("request_id", event.RequestID).Msg("audit record failed")
			if m.onError != nil {
				m.onError()
			}
		}
	}
	return nil
}
