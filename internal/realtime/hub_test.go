package realtime

import (
	"testing"

	"github.com/google/uuid"

	"github.com/urbanwatch/urbanwatch-backend/internal/platform/logger"
)

func newTestHub(t *testing.T) *SSEHub {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewSSEHub(log)
}

func TestHubBroadcastReachesSubscribers(t *testing.T) {
	hub := newTestHub(t)
	a := hub.NewSSEClient(uuid.New())
	b := hub.NewSSEClient(uuid.New())
	hub.AddChannel(a, ChannelAccidents)
	hub.AddChannel(b, ChannelFalseAlarms)

	hub.Broadcast(SSEMessage{Channel: ChannelAccidents, Event: SSEEventAccidentDetected, Data: "x"})

	select {
	case msg := <-a.Outbound:
		if msg.Event != SSEEventAccidentDetected {
			t.Fatalf("event = %q", msg.Event)
		}
	default:
		t.Fatal("subscriber did not receive the broadcast")
	}
	select {
	case msg := <-b.Outbound:
		t.Fatalf("unsubscribed client received %v", msg)
	default:
	}
}

func TestHubRemoveChannelStopsDelivery(t *testing.T) {
	hub := newTestHub(t)
	c := hub.NewSSEClient(uuid.New())
	hub.AddChannel(c, ChannelAccidents)
	hub.RemoveChannel(c, ChannelAccidents)

	hub.Broadcast(SSEMessage{Channel: ChannelAccidents, Event: SSEEventAccidentDetected})
	select {
	case msg := <-c.Outbound:
		t.Fatalf("removed client received %v", msg)
	default:
	}
	if c.Channels[ChannelAccidents] {
		t.Fatal("channel should be gone from the client's set")
	}
}

func TestHubRemoveClientClearsAllSubscriptions(t *testing.T) {
	hub := newTestHub(t)
	userID := uuid.New()
	c := hub.NewSSEClient(userID)
	hub.AddChannel(c, ChannelAccidents)
	hub.AddChannel(c, ChannelCitizen(userID))
	hub.RemoveClient(c)

	if len(c.Channels) != 0 {
		t.Fatalf("client still holds %d channels", len(c.Channels))
	}
	hub.Broadcast(SSEMessage{Channel: ChannelCitizen(userID), Event: SSEEventConcernStatusUpdated})
	select {
	case msg := <-c.Outbound:
		t.Fatalf("removed client received %v", msg)
	default:
	}
}

func TestHubBroadcastDropsWhenBufferFull(t *testing.T) {
	hub := newTestHub(t)
	c := hub.NewSSEClient(uuid.New())
	hub.AddChannel(c, ChannelAccidents)

	// Fill the outbound buffer; the overflow broadcast must not block.
	for i := 0; i < cap(c.Outbound)+5; i++ {
		hub.Broadcast(SSEMessage{Channel: ChannelAccidents, Event: SSEEventAccidentDetected})
	}
	if len(c.Outbound) != cap(c.Outbound) {
		t.Fatalf("buffer holds %d, want %d", len(c.Outbound), cap(c.Outbound))
	}
}

func TestHubBroadcastAfterCloseClient(t *testing.T) {
	hub := newTestHub(t)
	c := hub.NewSSEClient(uuid.New())
	hub.AddChannel(c, ChannelAccidents)
	hub.CloseClient(c)

	// A subscribe request can race the stream's teardown and re-offer the
	// closed client; it must stay unregistered.
	hub.AddChannel(c, ChannelAccidents)

	hub.Broadcast(SSEMessage{Channel: ChannelAccidents, Event: SSEEventAccidentDetected})
	select {
	case msg := <-c.Outbound:
		t.Fatalf("closed client received %v", msg)
	default:
	}
	if len(c.Channels) != 0 {
		t.Fatalf("closed client still holds %d channels", len(c.Channels))
	}
	select {
	case <-c.done:
	default:
		t.Fatal("done should be closed")
	}

	// Closing twice must not panic.
	hub.CloseClient(c)
}

func TestPrivateChannelNames(t *testing.T) {
	id := uuid.MustParse("4a3f9c1e-0000-0000-0000-000000000001")
	if got := ChannelCitizen(id); got != "citizen.4a3f9c1e-0000-0000-0000-000000000001" {
		t.Errorf("ChannelCitizen = %q", got)
	}
	if got := ChannelPurokLeader(id); got != "purok-leader.4a3f9c1e-0000-0000-0000-000000000001" {
		t.Errorf("ChannelPurokLeader = %q", got)
	}
}
