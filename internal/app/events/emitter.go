package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/pkg/logger"
)

// Emitter stamps events and swallows publish errors after logging them.
type Emitter struct {
	pub Publisher
	log *logger.Logger
}

func NewEmitter(pub Publisher, log *logger.Logger) *Emitter {
	if pub == nil {
		pub = Noop{}
	}
	if log == nil {
		log = logger.NewDefault("events")
	}
	return &Emitter{pub: pub, log: log}
}

func (e *Emitter) Emit(ctx context.Context, eventType string, data map[string]any) {
	if e == nil {
		return
	}
	evt := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		TraceID:    logger.GetTraceID(ctx),
		Data:       data,
	}
	if err := e.pub.Publish(ctx, evt); err != nil {
		e.log.FromContext(ctx).WithError(err).WithField("event", eventType).Warn("publish event")
	}
}
