package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/urbanwatch/urbanwatch-backend/internal/clients/gcp"
	"github.com/urbanwatch/urbanwatch-backend/internal/data/repos"
	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
	"github.com/urbanwatch/urbanwatch-backend/internal/domain/incident"
	"github.com/urbanwatch/urbanwatch-backend/internal/jobs"
	pkgerrors "github.com/urbanwatch/urbanwatch-backend/internal/pkg/errors"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/apierr"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/logger"
	"github.com/urbanwatch/urbanwatch-backend/internal/realtime"
)

const concernNotFoundMsg = "Concern not found."
const concernNotEditableMsg = "Only pending concerns can be edited."

type CreateConcernInput struct {
	Type        string
	Title       string
	Description string
	Latitude    float64
	Longitude   float64
	Files       []UploadFile
}

// ConcernWithMedia bundles a concern and its attachments for responses.
type ConcernWithMedia struct {
	*types.Concern
	Media []*types.IncidentMedia `json:"media"`
}

type ConcernService interface {
	Create(ctx context.Context, userID uuid.UUID, in CreateConcernInput) (*ConcernWithMedia, error)
	Get(ctx context.Context, requester *types.User, concernID uuid.UUID) (*ConcernWithMedia, error)
	ListMine(ctx context.Context, userID uuid.UUID, filter repos.ConcernFilter) ([]*types.Concern, error)
	ListAll(ctx context.Context, filter repos.ConcernFilter) ([]*types.Concern, error)
	Update(ctx context.Context, userID, concernID uuid.UUID, title, description string) (*types.Concern, error)
	Delete(ctx context.Context, userID, concernID uuid.UUID) error
	UpdateStatus(ctx context.Context, concernID uuid.UUID, toStatus string) (*types.Concern, error)
}

type concernService struct {
	db          *gorm.DB
	log         *logger.Logger
	concerns    repos.ConcernRepo
	media       repos.IncidentMediaRepo
	users       repos.UserRepo
	suspensions SuspensionService
	storage     MediaService
	enqueuer    jobs.Enqueuer
	broadcast   Broadcaster
}

func NewConcernService(
	db *gorm.DB,
	log *logger.Logger,
	concerns repos.ConcernRepo,
	media repos.IncidentMediaRepo,
	users repos.UserRepo,
	suspensions SuspensionService,
	storage MediaService,
	enqueuer jobs.Enqueuer,
	broadcast Broadcaster,
) ConcernService {
	return &concernService{
		db:          db,
		log:         log.With("service", "ConcernService"),
		concerns:    concerns,
		media:       media,
		users:       users,
		suspensions: suspensions,
		storage:     storage,
		enqueuer:    enqueuer,
		broadcast:   broadcast,
	}
}

func (cs *concernService) Create(ctx context.Context, userID uuid.UUID, in CreateConcernInput) (*ConcernWithMedia, error) {
	if err := cs.suspensions.GateWrite(ctx, userID); err != nil {
		return nil, err
	}

	in.Type = strings.TrimSpace(strings.ToLower(in.Type))
	if in.Type == "" {
		in.Type = incident.ConcernTypeText
	}
	if !incident.ValidConcernType(in.Type) {
		return nil, apierr.Validation(fmt.Errorf("unknown concern type %q", in.Type))
	}

	concern := &types.Concern{
		UserID:      userID,
		Type:        in.Type,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Status:      types.ConcernStatusPending,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
	}

	switch in.Type {
	case incident.ConcernTypeVoice:
		// Voice reports get placeholders; the transcription job replaces them.
		concern.Title = incident.VoicePlaceholderTitle
		concern.Description = incident.VoicePlaceholderDescription
		if !hasAudio(in.Files) {
			return nil, apierr.Validation(fmt.Errorf("a voice concern requires an audio file"))
		}
	default:
		if concern.Title == "" {
			return nil, apierr.Validation(fmt.Errorf("title is required"))
		}
	}

	// Uploads happen before the transaction; orphaned objects are cheaper
	// than a concern row pointing at media that never made it to storage.
	stored, err := cs.storage.StoreAll(ctx, gcp.BucketCategoryMedia, "concern", in.Files)
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("store concern media: %w", err))
	}

	var mediaRows []*types.IncidentMedia
	err = cs.db.Transaction(func(tx *gorm.DB) error {
		created, err := cs.concerns.Create(ctx, tx, concern)
		if err != nil {
			return err
		}
		concern = created

		mediaRows = mediaRowsFor(types.SourceConcern, concern.ID, in.Files, stored)
		if len(mediaRows) > 0 {
			if _, err := cs.media.Create(ctx, tx, mediaRows); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		cs.cleanupStored(stored)
		return nil, err
	}

	cs.enqueueProcessing(ctx, concern)
	cs.sendAck(ctx, concern)

	return &ConcernWithMedia{Concern: concern, Media: mediaRows}, nil
}

func (cs *concernService) Get(ctx context.Context, requester *types.User, concernID uuid.UUID) (*ConcernWithMedia, error) {
	concern, err := cs.loadFor(ctx, requester, concernID)
	if err != nil {
		return nil, err
	}
	media, err := cs.media.ListBySource(ctx, nil, types.SourceConcern, concern.ID)
	if err != nil {
		return nil, err
	}
	return &ConcernWithMedia{Concern: concern, Media: media}, nil
}

func (cs *concernService) ListMine(ctx context.Context, userID uuid.UUID, filter repos.ConcernFilter) ([]*types.Concern, error) {
	return cs.concerns.ListByUser(ctx, nil, userID, filter)
}

func (cs *concernService) ListAll(ctx context.Context, filter repos.ConcernFilter) ([]*types.Concern, error) {
	return cs.concerns.ListAll(ctx, nil, filter)
}

func (cs *concernService) Update(ctx context.Context, userID, concernID uuid.UUID, title, description string) (*types.Concern, error) {
	if err := cs.suspensions.GateWrite(ctx, userID); err != nil {
		return nil, err
	}
	concern, err := cs.loadOwned(ctx, userID, concernID)
	if err != nil {
		return nil, err
	}
	if !concern.Editable() {
		return nil, apierr.DomainState(concernNotEditableMsg)
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apierr.Validation(fmt.Errorf("title is required"))
	}
	if err := cs.concerns.UpdateContent(ctx, nil, concern.ID, title, strings.TrimSpace(description)); err != nil {
		return nil, err
	}
	concern.Title = title
	concern.Description = strings.TrimSpace(description)
	return concern, nil
}

func (cs *concernService) Delete(ctx context.Context, userID, concernID uuid.UUID) error {
	if err := cs.suspensions.GateWrite(ctx, userID); err != nil {
		return err
	}
	concern, err := cs.loadOwned(ctx, userID, concernID)
	if err != nil {
		return err
	}
	if !concern.Editable() {
		return apierr.DomainState(concernNotEditableMsg)
	}

	attachments, err := cs.media.ListBySource(ctx, nil, types.SourceConcern, concern.ID)
	if err != nil {
		return err
	}

	err = cs.db.Transaction(func(tx *gorm.DB) error {
		if err := cs.media.DeleteBySource(ctx, tx, types.SourceConcern, concern.ID); err != nil {
			return err
		}
		return cs.concerns.Delete(ctx, tx, concern.ID)
	})
	if err != nil {
		return err
	}

	// Storage cleanup is best effort after the rows are gone.
	for _, m := range attachments {
		if err := cs.storage.Delete(ctx, gcp.BucketCategoryMedia, m.StorageKey); err != nil {
			cs.log.Warn("Failed to delete concern media object", "key", m.StorageKey, "error", err)
		}
	}
	return nil
}

func (cs *concernService) UpdateStatus(ctx context.Context, concernID uuid.UUID, toStatus string) (*types.Concern, error) {
	concern, err := cs.concerns.GetByID(ctx, nil, concernID)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, apierr.NotFound(concernNotFoundMsg)
	}
	if err != nil {
		return nil, err
	}

	toStatus = strings.TrimSpace(strings.ToLower(toStatus))
	if !incident.ConcernCanTransition(concern.Status, toStatus) {
		return nil, apierr.DomainState(fmt.Sprintf(
			"A concern cannot move from %s to %s.", concern.Status, toStatus,
		))
	}
	ok, err := cs.concerns.UpdateStatus(ctx, nil, concern.ID, []string{concern.Status}, toStatus)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apierr.DomainState("The concern changed while you were updating it; reload and retry.")
	}
	concern.Status = toStatus

	cs.broadcast.Publish(ctx, realtime.ChannelCitizen(concern.UserID), realtime.SSEEventConcernStatusUpdated, map[string]any{
		"concern_id": concern.ID,
		"status":     toStatus,
	})
	return concern, nil
}

func (cs *concernService) loadOwned(ctx context.Context, userID, concernID uuid.UUID) (*types.Concern, error) {
	concern, err := cs.concerns.GetByIDForUser(ctx, nil, concernID, userID)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, apierr.NotFound(concernNotFoundMsg)
	}
	if err != nil {
		return nil, err
	}
	return concern, nil
}

// loadFor honors ownership: citizens see only their own concerns; operators
// and purok leaders see everything.
func (cs *concernService) loadFor(ctx context.Context, requester *types.User, concernID uuid.UUID) (*types.Concern, error) {
	if requester != nil && requester.Role != types.RoleCitizen {
		concern, err := cs.concerns.GetByID(ctx, nil, concernID)
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return nil, apierr.NotFound(concernNotFoundMsg)
		}
		return concern, err
	}
	var userID uuid.UUID
	if requester != nil {
		userID = requester.ID
	}
	return cs.loadOwned(ctx, userID, concernID)
}

func (cs *concernService) enqueueProcessing(ctx context.Context, concern *types.Concern) {
	jobType := types.JobProcessManualConcern
	if concern.Type == incident.ConcernTypeVoice {
		jobType = types.JobProcessVoiceConcern
	}
	id := concern.ID
	if _, err := cs.enqueuer.Enqueue(ctx, nil, jobs.EnqueueRequest{
		JobType:    jobType,
		EntityType: "concern",
		EntityID:   &id,
		Payload:    jobs.ProcessConcernPayload{ConcernID: concern.ID},
		Unique:     true,
	}); err != nil {
		cs.log.Error("Failed to enqueue concern processing", "concern_id", concern.ID, "job_type", jobType, "error", err)
	}
}

func (cs *concernService) sendAck(ctx context.Context, concern *types.Concern) {
	owner, err := cs.users.GetByID(ctx, nil, concern.UserID)
	if err != nil || strings.TrimSpace(owner.Email) == "" {
		return
	}
	id := concern.ID
	if _, err := cs.enqueuer.Enqueue(ctx, nil, jobs.EnqueueRequest{
		JobType:    types.JobNotifyEmail,
		EntityType: "concern",
		EntityID:   &id,
		Payload: jobs.NotifyEmailPayload{
			To:      owner.Email,
			Subject: "We received your report",
			Text: fmt.Sprintf(
				"Hi %s, your report %q has been received and is awaiting triage. You will be notified as its status changes.",
				owner.FirstName, concern.Title,
			),
		},
	}); err != nil {
		cs.log.Warn("Failed to enqueue concern ack email", "concern_id", concern.ID, "error", err)
	}
}

func (cs *concernService) cleanupStored(stored []*StoredObject) {
	for _, obj := range stored {
		if obj == nil {
			continue
		}
		if err := cs.storage.Delete(context.Background(), gcp.BucketCategoryMedia, obj.Key); err != nil {
			cs.log.Warn("Failed to clean up stored object after rollback", "key", obj.Key, "error", err)
		}
	}
}

func hasAudio(files []UploadFile) bool {
	for _, f := range files {
		if strings.HasPrefix(strings.ToLower(f.MimeType), "audio/") {
			return true
		}
	}
	return false
}

func mediaRowsFor(kind types.SourceKind, sourceID uuid.UUID, files []UploadFile, stored []*StoredObject) []*types.IncidentMedia {
	rows := make([]*types.IncidentMedia, 0, len(stored))
	for i, obj := range stored {
		if obj == nil {
			continue
		}
		row := &types.IncidentMedia{
			SourceKind: kind,
			SourceID:   sourceID,
			URL:        obj.URL,
			StorageKey: obj.Key,
			Filename:   obj.Filename,
			MimeType:   obj.MimeType,
			SizeBytes:  obj.SizeBytes,
		}
		if i < len(files) {
			row.Filename = files[i].Filename
		}
		rows = append(rows, row)
	}
	return rows
}
