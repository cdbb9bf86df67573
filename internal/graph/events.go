package graph

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/loom/pkg/types"
)

// EventSink receives committed events in commit order. Sinks run after the
// commit and cannot fail it.
type EventSink interface {
	Emit(ctx context.Context, ev types.Event)
}

// LogSink writes every event to a zap logger at info level.
type LogSink struct {
	log *zap.Logger
}

// NewLogSink returns a sink logging to log.
func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log}
}

// Emit implements EventSink.
func (s *LogSink) Emit(_ context.Context, ev types.Event) {
	fields := []zap.Field{
		zap.String("event_id", ev.EventID),
		zap.String("caller", ev.Caller.Hex()),
	}
	if ev.CharacterID != 0 {
		fields = append(fields, zap.Uint64("character_id", ev.CharacterID))
	}
	if ev.Handle != "" {
		fields = append(fields, zap.String("handle", ev.Handle))
	}
	if !ev.Target.IsZero() {
		fields = append(fields,
			zap.Stringer("target_kind", ev.Target.Kind),
			zap.String("target_key", ev.Target.Key.Hex()),
		)
	}
	if ev.LinklistID != 0 {
		fields = append(fields,
			zap.Uint64("linklist_id", ev.LinklistID),
			zap.Stringer("link_type", ev.LinkType),
		)
	}
	if ev.NoteID != 0 {
		fields = append(fields, zap.Uint64("note_id", ev.NoteID))
	}
	if ev.TokenID != 0 {
		fields = append(fields,
			zap.String("mint_nft", ev.MintNFT.Hex()),
			zap.Uint64("token_id", ev.TokenID),
		)
	}
	s.log.Info(string(ev.Kind), fields...)
}

// Recorder keeps every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []types.Event
}

// Emit implements EventSink.
func (r *Recorder) Emit(_ context.Context, ev types.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Event(nil), r.events...)
}

// Kinds returns the kinds of the recorded events in order.
func (r *Recorder) Kinds() []types.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]types.EventKind, len(r.events))
	for i, ev := range r.events {
		kinds[i] = ev.Kind
	}
	return kinds
}
