package handlers

import (
	"context"
	"fmt"

	"github.com/urbanwatch/urbanwatch-backend/internal/clients/gcp"
	"github.com/urbanwatch/urbanwatch-backend/internal/clients/gemini"
	"github.com/urbanwatch/urbanwatch-backend/internal/clients/sendgrid"
	"github.com/urbanwatch/urbanwatch-backend/internal/clients/twilio"
	"github.com/urbanwatch/urbanwatch-backend/internal/data/repos"
	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
	jobrt "github.com/urbanwatch/urbanwatch-backend/internal/jobs/runtime"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/logger"
	"github.com/urbanwatch/urbanwatch-backend/internal/realtime"
	"github.com/urbanwatch/urbanwatch-backend/internal/realtime/bus"
)

// Deps carries everything the background handlers touch. Optional clients
// may be nil; the handlers that need them fail permanently with a clear
// configuration error instead of burning retries.
type Deps struct {
	Log *logger.Logger

	Concerns      repos.ConcernRepo
	Media         repos.IncidentMediaRepo
	Users         repos.UserRepo
	Distributions repos.DistributionRepo

	Verifier gemini.Verifier
	Speech   gcp.Speech
	Storage  gcp.BucketService
	Email    sendgrid.Client
	SMS      twilio.Client

	Bus bus.Bus
}

// RegisterAll wires every job type into the registry.
func RegisterAll(reg *jobrt.Registry, d Deps) error {
	if reg == nil {
		return fmt.Errorf("handlers: nil registry")
	}
	if d.Log == nil {
		return fmt.Errorf("handlers: logger required")
	}
	if d.Concerns == nil || d.Media == nil || d.Users == nil || d.Distributions == nil {
		return fmt.Errorf("handlers: missing repos")
	}

	if err := reg.Register(types.JobProcessManualConcern, newProcessManualConcern(d)); err != nil {
		return err
	}
	if err := reg.Register(types.JobProcessVoiceConcern, newProcessVoiceConcern(d)); err != nil {
		return err
	}
	if err := reg.Register(types.JobNotifyEmail, newNotifyEmail(d)); err != nil {
		return err
	}
	if err := reg.Register(types.JobNotifySMS, newNotifySMS(d)); err != nil {
		return err
	}
	return reg.Register(types.JobNotifyAssignment, newNotifyAssignment(d))
}

// broadcast is best-effort: a realtime delivery miss never fails the job.
func (d Deps) broadcast(ctx context.Context, msg realtime.SSEMessage) {
	if d.Bus == nil {
		return
	}
	if err := d.Bus.Publish(ctx, msg); err != nil {
		d.Log.Warn("Broadcast failed", "channel", msg.Channel, "event", string(msg.Event), "error", err)
	}
}
