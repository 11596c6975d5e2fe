package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/urbanwatch/urbanwatch-backend/internal/platform/logger"
	"github.com/urbanwatch/urbanwatch-backend/internal/realtime"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func TestBroadcasterFallsBackToLocalHub(t *testing.T) {
	log := testLogger(t)
	hub := realtime.NewSSEHub(log)
	client := hub.NewSSEClient(uuid.New())
	hub.AddChannel(client, realtime.ChannelAccidents)

	// No Redis bus: events must still reach clients on this node.
	bb := NewBroadcaster(log, nil, hub)
	bb.Publish(context.Background(), realtime.ChannelAccidents, realtime.SSEEventAccidentDetected, map[string]any{"id": "a"})

	select {
	case msg := <-client.Outbound:
		if msg.Event != realtime.SSEEventAccidentDetected || msg.Channel != realtime.ChannelAccidents {
			t.Fatalf("message = %+v", msg)
		}
	default:
		t.Fatal("event did not reach the local hub")
	}
}

func TestBroadcasterWithoutBusOrHubIsNoop(t *testing.T) {
	bb := NewBroadcaster(testLogger(t), nil, nil)
	// Must not panic.
	bb.Publish(context.Background(), realtime.ChannelFalseAlarms, realtime.SSEEventFalseAlarmDetected, nil)
}
