package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/urbanwatch/urbanwatch-backend/internal/clients/gcp"
	"github.com/urbanwatch/urbanwatch-backend/internal/clients/gemini"
	"github.com/urbanwatch/urbanwatch-backend/internal/data/repos"
	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
	"github.com/urbanwatch/urbanwatch-backend/internal/jobs"
	pkgerrors "github.com/urbanwatch/urbanwatch-backend/internal/pkg/errors"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/apierr"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/config"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/logger"
	"github.com/urbanwatch/urbanwatch-backend/internal/realtime"
)

// DetectionInput is one YOLO detection pushed by a camera, held in memory
// only for the duration of the request.
type DetectionInput struct {
	DeviceIdentifier string
	DeviceAPIKey     string
	Snapshot         []byte
	SnapshotMime     string
	DetectedObjects  []string
	YOLOConfidence   float64
	CapturedAt       time.Time
}

// DetectionOutcome reports which branch the verdict took.
type DetectionOutcome struct {
	Accepted   bool              `json:"accepted"`
	Verdict    *gemini.Verdict   `json:"verdict"`
	Accident   *types.Accident   `json:"accident,omitempty"`
	FalseAlarm *types.FalseAlarm `json:"false_alarm,omitempty"`
}

type VerificationService interface {
	HandleDetection(ctx context.Context, in DetectionInput) (*DetectionOutcome, error)
}

type verificationService struct {
	db          *gorm.DB
	log         *logger.Logger
	cfg         *config.Config
	verifier    gemini.Verifier
	devices     repos.DeviceRepo
	accidents   repos.AccidentRepo
	media       repos.IncidentMediaRepo
	users       repos.UserRepo
	falseAlarms FalseAlarmService
	storage     MediaService
	enqueuer    jobs.Enqueuer
	broadcast   Broadcaster
}

func NewVerificationService(
	db *gorm.DB,
	log *logger.Logger,
	cfg *config.Config,
	verifier gemini.Verifier,
	devices repos.DeviceRepo,
	accidents repos.AccidentRepo,
	media repos.IncidentMediaRepo,
	users repos.UserRepo,
	falseAlarms FalseAlarmService,
	storage MediaService,
	enqueuer jobs.Enqueuer,
	broadcast Broadcaster,
) VerificationService {
	return &verificationService{
		db:          db,
		log:         log.With("service", "VerificationService"),
		cfg:         cfg,
		verifier:    verifier,
		devices:     devices,
		accidents:   accidents,
		media:       media,
		users:       users,
		falseAlarms: falseAlarms,
		storage:     storage,
		enqueuer:    enqueuer,
		broadcast:   broadcast,
	}
}

// HandleDetection runs the intake pipeline in strict order: authenticate the
// device, get the model's verdict, then either record a false alarm or store
// media and create the accident atomically before broadcasting.
func (vs *verificationService) HandleDetection(ctx context.Context, in DetectionInput) (*DetectionOutcome, error) {
	if len(in.Snapshot) == 0 {
		return nil, apierr.Validation(fmt.Errorf("snapshot is required"))
	}

	device, err := vs.authenticateDevice(ctx, in.DeviceIdentifier, in.DeviceAPIKey)
	if err != nil {
		return nil, err
	}

	capturedAt := in.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}

	verdict, err := vs.verifier.VerifyDetection(ctx, gemini.VerifyRequest{
		Snapshot:        in.Snapshot,
		SnapshotMime:    in.SnapshotMime,
		DetectedObjects: in.DetectedObjects,
		YOLOConfidence:  in.YOLOConfidence,
		DeviceName:      device.Name,
		Purok:           device.Purok,
	})
	if err != nil {
		return nil, apierr.Upstream(err)
	}

	outcome := &DetectionOutcome{Verdict: verdict, Accepted: vs.accept(verdict)}
	deviceID := device.ID

	if !outcome.Accepted {
		alarm, err := vs.falseAlarms.Record(ctx, &deviceID, verdict, in.DetectedObjects, capturedAt)
		if err != nil {
			return nil, err
		}
		outcome.FalseAlarm = alarm
		return outcome, nil
	}

	accident, err := vs.createAccident(ctx, device, verdict, in, capturedAt)
	if err != nil {
		return nil, err
	}
	outcome.Accident = accident

	vs.broadcast.Publish(ctx, realtime.ChannelAccidents, realtime.SSEEventAccidentDetected, accident)
	vs.broadcast.Publish(ctx, realtime.ChannelActiveAccidents, realtime.SSEEventAccidentDetected, accident)
	vs.notifyResponders(ctx, device, accident)

	return outcome, nil
}

// accept applies the confidence thresholds around the model's boolean: very
// confident detections are accepted even when the verdict text hedges, and
// low-confidence ones are rejected outright.
func (vs *verificationService) accept(v *gemini.Verdict) bool {
	if v.Confidence >= vs.cfg.Verification.AutoAcceptConfidence {
		return true
	}
	if v.Confidence < vs.cfg.Verification.RejectConfidence {
		return false
	}
	return v.IsRealIncident
}

func (vs *verificationService) authenticateDevice(ctx context.Context, identifier, apiKey string) (*types.Device, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || strings.TrimSpace(apiKey) == "" {
		return nil, apierr.Unauthorized("Device credentials required.")
	}
	device, err := vs.devices.GetByIdentifier(ctx, nil, identifier)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, apierr.Unauthorized("Unknown device.")
	}
	if err != nil {
		return nil, err
	}
	if !device.Active {
		return nil, apierr.Forbidden("This device has been deactivated.")
	}
	if bcrypt.CompareHashAndPassword([]byte(device.APIKeyHash), []byte(apiKey)) != nil {
		return nil, apierr.Unauthorized("Invalid device credentials.")
	}
	return device, nil
}

// createAccident stores the snapshot first, then writes the accident and its
// media rows in one transaction so a partial failure leaves neither behind.
func (vs *verificationService) createAccident(ctx context.Context, device *types.Device, verdict *gemini.Verdict, in DetectionInput, capturedAt time.Time) (*types.Accident, error) {
	file := UploadFile{
		Filename: fmt.Sprintf("%s-%d.jpg", device.Identifier, capturedAt.Unix()),
		MimeType: in.SnapshotMime,
		Data:     in.Snapshot,
	}
	if file.MimeType == "" {
		file.MimeType = "image/jpeg"
	}
	obj, err := vs.storage.Store(ctx, gcp.BucketCategoryMedia, "accident", file)
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("store snapshot: %w", err))
	}

	objects, _ := json.Marshal(in.DetectedObjects)
	deviceID := device.ID
	accident := &types.Accident{
		DeviceID:        &deviceID,
		Title:           accidentTitle(verdict, device),
		Description:     verdict.Reasoning,
		Category:        verdict.Category,
		Severity:        verdict.Severity,
		Status:          types.AccidentStatusPending,
		Latitude:        device.Latitude,
		Longitude:       device.Longitude,
		Confidence:      verdict.Confidence,
		Reasoning:       verdict.Reasoning,
		DetectedObjects: objects,
		DetectedAt:      capturedAt,
	}

	err = vs.db.Transaction(func(tx *gorm.DB) error {
		created, err := vs.accidents.Create(ctx, tx, []*types.Accident{accident})
		if err != nil {
			return err
		}
		accident = created[0]

		row := &types.IncidentMedia{
			SourceKind: types.SourceAccident,
			SourceID:   accident.ID,
			URL:        obj.URL,
			StorageKey: obj.Key,
			Filename:   obj.Filename,
			MimeType:   obj.MimeType,
			SizeBytes:  obj.SizeBytes,
			CapturedAt: capturedAt,
		}
		_, err = vs.media.Create(ctx, tx, []*types.IncidentMedia{row})
		return err
	})
	if err != nil {
		if delErr := vs.storage.Delete(context.Background(), gcp.BucketCategoryMedia, obj.Key); delErr != nil {
			vs.log.Warn("Failed to clean up snapshot after rollback", "key", obj.Key, "error", delErr)
		}
		return nil, err
	}
	return accident, nil
}

// notifyResponders queues SMS/email for the purok's leader, falling back to
// any leader when the purok has none registered.
func (vs *verificationService) notifyResponders(ctx context.Context, device *types.Device, accident *types.Accident) {
	leader := vs.resolveLeader(ctx, device.Purok)
	if leader == nil {
		vs.log.Warn("No purok leader to notify for accident", "accident_id", accident.ID, "purok", device.Purok)
		return
	}

	body := fmt.Sprintf(
		"A %s %s incident was detected by camera %s in purok %s. Please check the UrbanWatch dashboard.",
		accident.Severity, accident.Category, device.Name, device.Purok,
	)
	id := accident.ID

	if strings.TrimSpace(leader.Email) != "" {
		if _, err := vs.enqueuer.Enqueue(ctx, nil, jobs.EnqueueRequest{
			JobType:    types.JobNotifyEmail,
			EntityType: "accident",
			EntityID:   &id,
			Payload: jobs.NotifyEmailPayload{
				To:      leader.Email,
				Subject: fmt.Sprintf("Incident detected: %s", accident.Title),
				Text:    body,
			},
		}); err != nil {
			vs.log.Error("Failed to enqueue accident email", "accident_id", accident.ID, "error", err)
		}
	}
	if leader.PhoneVerifiedAt != nil && strings.TrimSpace(leader.Phone) != "" {
		if _, err := vs.enqueuer.Enqueue(ctx, nil, jobs.EnqueueRequest{
			JobType:    types.JobNotifySMS,
			EntityType: "accident",
			EntityID:   &id,
			Payload:    jobs.NotifySMSPayload{To: leader.Phone, Body: body},
		}); err != nil {
			vs.log.Error("Failed to enqueue accident SMS", "accident_id", accident.ID, "error", err)
		}
	}
}

func (vs *verificationService) resolveLeader(ctx context.Context, purok string) *types.User {
	if strings.TrimSpace(purok) != "" {
		leaders, err := vs.users.ListByRoleAndPurok(ctx, nil, types.RolePurokLeader, purok)
		if err == nil && len(leaders) > 0 {
			return leaders[0]
		}
	}
	leader, err := vs.users.FirstByRole(ctx, nil, types.RolePurokLeader)
	if err != nil {
		return nil
	}
	return leader
}

func accidentTitle(v *gemini.Verdict, device *types.Device) string {
	cat := strings.ToUpper(v.Category[:1]) + v.Category[1:]
	if strings.TrimSpace(device.Purok) != "" {
		return fmt.Sprintf("%s detected in purok %s", cat, device.Purok)
	}
	return fmt.Sprintf("%s detected by %s", cat, device.Name)
}
