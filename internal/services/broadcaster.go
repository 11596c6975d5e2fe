package services

import (
	"context"

	"github.com/urbanwatch/urbanwatch-backend/internal/platform/logger"
	"github.com/urbanwatch/urbanwatch-backend/internal/realtime"
	"github.com/urbanwatch/urbanwatch-backend/internal/realtime/bus"
)

// Broadcaster is the services' outlet to realtime clients. Publishing is
// best effort post-commit: a delivery failure is logged and never unwinds
// the transaction that preceded it.
type Broadcaster interface {
	Publish(ctx context.Context, channel string, event realtime.SSEEvent, data any)
}

type busBroadcaster struct {
	log *logger.Logger
	bus bus.Bus
	hub *realtime.SSEHub
}

// NewBroadcaster publishes through the Redis bus so every node's hub sees the
// event. Without a bus it delivers straight to the local hub, which keeps
// single-node deployments streaming.
func NewBroadcaster(log *logger.Logger, b bus.Bus, hub *realtime.SSEHub) Broadcaster {
	return &busBroadcaster{
		log: log.With("service", "Broadcaster"),
		bus: b,
		hub: hub,
	}
}

func (bb *busBroadcaster) Publish(ctx context.Context, channel string, event realtime.SSEEvent, data any) {
	msg := realtime.SSEMessage{Channel: channel, Event: event, Data: data}
	if bb.bus == nil {
		if bb.hub != nil {
			bb.hub.Broadcast(msg)
		}
		return
	}
	if err := bb.bus.Publish(ctx, msg); err != nil {
		bb.log.Warn("Broadcast failed", "channel", channel, "event", string(event), "error", err)
	}
}
