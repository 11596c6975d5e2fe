package handlers

import (
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
	"github.com/urbanwatch/urbanwatch-backend/internal/http/response"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/apierr"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/ctxutil"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/logger"
	"github.com/urbanwatch/urbanwatch-backend/internal/realtime"
)

type SSEHandler struct {
	log *logger.Logger
	hub *realtime.SSEHub

	mu      sync.Mutex
	clients map[uuid.UUID]*realtime.SSEClient
}

func NewSSEHandler(log *logger.Logger, hub *realtime.SSEHub) *SSEHandler {
	return &SSEHandler{
		log:     log.With("handler", "SSEHandler"),
		hub:     hub,
		clients: make(map[uuid.UUID]*realtime.SSEClient),
	}
}

// Stream opens the event stream. Initial channels come from
// ?channels=a,b,c; later changes go through Subscribe/Unsubscribe with the
// client id announced in the first event.
func (sh *SSEHandler) Stream(c *gin.Context) {
	rd := requestData(c)
	client := sh.hub.NewSSEClient(rd.UserID)

	for _, channel := range splitChannels(c.Query("channels")) {
		if err := authorizeChannel(rd, channel); err != nil {
			response.Error(c, err)
			return
		}
		sh.hub.AddChannel(client, channel)
	}

	sh.mu.Lock()
	sh.clients[client.ID] = client
	sh.mu.Unlock()

	defer func() {
		sh.mu.Lock()
		delete(sh.clients, client.ID)
		sh.mu.Unlock()
		sh.hub.CloseClient(client)
	}()

	// Announce the client id so the frontend can manage subscriptions.
	client.Outbound <- realtime.SSEMessage{
		Channel: "system",
		Event:   "connected",
		Data:    gin.H{"client_id": client.ID},
	}

	sh.hub.ServeHTTP(c.Writer, c.Request, client)
}

func (sh *SSEHandler) Subscribe(c *gin.Context) {
	sh.changeSubscription(c, true)
}

func (sh *SSEHandler) Unsubscribe(c *gin.Context) {
	sh.changeSubscription(c, false)
}

func (sh *SSEHandler) changeSubscription(c *gin.Context, add bool) {
	var req struct {
		ClientID uuid.UUID `json:"client_id"`
		Channel  string    `json:"channel"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Channel == "" {
		response.BadRequest(c, "Invalid request body.")
		return
	}

	rd := requestData(c)
	sh.mu.Lock()
	client := sh.clients[req.ClientID]
	sh.mu.Unlock()
	if client == nil || client.UserID != rd.UserID {
		response.Error(c, apierr.NotFound("Stream not found."))
		return
	}

	if add {
		if err := authorizeChannel(rd, req.Channel); err != nil {
			response.Error(c, err)
			return
		}
		sh.hub.AddChannel(client, req.Channel)
		response.OK(c, "Subscribed.", nil)
		return
	}
	sh.hub.RemoveChannel(client, req.Channel)
	response.OK(c, "Unsubscribed.", nil)
}

// authorizeChannel enforces private channel ownership: a citizen channel
// belongs to its user, a purok-leader channel to its official; operators may
// watch any channel.
func authorizeChannel(rd *ctxutil.RequestData, channel string) error {
	switch channel {
	case realtime.ChannelAccidents, realtime.ChannelActiveAccidents, realtime.ChannelFalseAlarms:
		return nil
	}
	if rd.Role == types.RoleOperator {
		return nil
	}
	if channel == realtime.ChannelCitizen(rd.UserID) {
		return nil
	}
	if rd.Role == types.RolePurokLeader && channel == realtime.ChannelPurokLeader(rd.UserID) {
		return nil
	}
	return apierr.Forbidden("You cannot subscribe to this channel.")
}

func splitChannels(raw string) []string {
	var out []string
	for _, ch := range strings.Split(raw, ",") {
		if ch = strings.TrimSpace(ch); ch != "" {
			out = append(out, ch)
		}
	}
	return out
}
