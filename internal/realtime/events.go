package realtime

import (
	"fmt"

	"github.com/google/uuid"
)

type SSEEvent string

const (
	SSEEventAccidentDetected       SSEEvent = "accident.detected"
	SSEEventAccidentStatusUpdated  SSEEvent = "accident.status.updated"
	SSEEventFalseAlarmDetected     SSEEvent = "false-alarm.detected"
	SSEEventConcernAssigned        SSEEvent = "concern.assigned"
	SSEEventConcernStatusUpdated   SSEEvent = "concern.status.updated"
	SSEEventConcernTranscribed     SSEEvent = "concern.transcribed"
	SSEEventConcernCategoryUpdated SSEEvent = "concern.ai.category.updated"
)

// Public channels: any authenticated client may subscribe.
const (
	ChannelAccidents       = "accidents"
	ChannelActiveAccidents = "active-accidents"
	ChannelFalseAlarms     = "false-alarms"
)

// Private channels carry per-user traffic. Only the owning user (or an
// operator) may subscribe.
func ChannelCitizen(userID uuid.UUID) string {
	return fmt.Sprintf("citizen.%s", userID)
}

func ChannelPurokLeader(userID uuid.UUID) string {
	return fmt.Sprintf("purok-leader.%s", userID)
}

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}
