package engine

import (
	"context"
	"log/slog"

	"github.com/efreitasn/bidengine/internal/domain"
)

// Emitter receives domain events after the state change that produced them
// has been persisted. Implementations must not block the caller on network
// I/O.
type Emitter interface {
	Emit(ctx context.Context, event domain.Event)
}

// Emitters fans each event out to every emitter in order.
type Emitters []Emitter

func (es Emitters) Emit(ctx context.Context, event domain.Event) {
	for _, e := range es {
		e.Emit(ctx, event)
	}
}

// LogEmitter writes every event as a structured log line.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter creates a LogEmitter. A nil logger uses slog.Default().
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger}
}

func (l *LogEmitter) Emit(ctx context.Context, event domain.Event) {
	l.logger.InfoContext(ctx, "event",
		"type", event.Type(),
		"auction_id", event.AuctionRef(),
		"recipients", event.Recipients(),
		"at", event.At(),
	)
}
