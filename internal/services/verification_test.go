package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/urbanwatch/urbanwatch-backend/internal/clients/gcp"
	"github.com/urbanwatch/urbanwatch-backend/internal/clients/gemini"
	"github.com/urbanwatch/urbanwatch-backend/internal/data/repos"
	"github.com/urbanwatch/urbanwatch-backend/internal/data/repos/testutil"
	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
	"github.com/urbanwatch/urbanwatch-backend/internal/jobs"
	pkgerrors "github.com/urbanwatch/urbanwatch-backend/internal/pkg/errors"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/apierr"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/config"
	"github.com/urbanwatch/urbanwatch-backend/internal/realtime"
)

type fakeVerifier struct {
	verdict *gemini.Verdict
	calls   int
}

func (f *fakeVerifier) VerifyDetection(ctx context.Context, req gemini.VerifyRequest) (*gemini.Verdict, error) {
	f.calls++
	return f.verdict, nil
}
func (f *fakeVerifier) ClassifyConcern(ctx context.Context, title, description string) (*gemini.Classification, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeVerifier) Close() error { return nil }

type fakeDeviceRepo struct {
	device *types.Device
}

func (f *fakeDeviceRepo) Create(ctx context.Context, tx *gorm.DB, devices []*types.Device) ([]*types.Device, error) {
	return devices, nil
}
func (f *fakeDeviceRepo) GetByID(ctx context.Context, tx *gorm.DB, deviceID uuid.UUID) (*types.Device, error) {
	return f.device, nil
}
func (f *fakeDeviceRepo) GetByIdentifier(ctx context.Context, tx *gorm.DB, identifier string) (*types.Device, error) {
	if f.device == nil || f.device.Identifier != identifier {
		return nil, pkgerrors.ErrNotFound
	}
	return f.device, nil
}
func (f *fakeDeviceRepo) List(ctx context.Context, tx *gorm.DB, activeOnly bool) ([]*types.Device, error) {
	return nil, nil
}
func (f *fakeDeviceRepo) SetActive(ctx context.Context, tx *gorm.DB, deviceID uuid.UUID, active bool) error {
	return nil
}

type trackingAccidentRepo struct {
	repos.AccidentRepo
	created int
}

func (t *trackingAccidentRepo) Create(ctx context.Context, tx *gorm.DB, accidents []*types.Accident) ([]*types.Accident, error) {
	t.created += len(accidents)
	return accidents, nil
}

type failingMediaRepo struct {
	repos.IncidentMediaRepo
}

func (f *failingMediaRepo) Create(ctx context.Context, tx *gorm.DB, media []*types.IncidentMedia) ([]*types.IncidentMedia, error) {
	return nil, errors.New("media insert failed")
}

type recordingFalseAlarms struct {
	calls     int
	deviceIDs []uuid.UUID
}

func (r *recordingFalseAlarms) Record(ctx context.Context, deviceID *uuid.UUID, verdict *gemini.Verdict, detectedObjects []string, detectedAt time.Time) (*types.FalseAlarm, error) {
	r.calls++
	if deviceID != nil {
		r.deviceIDs = append(r.deviceIDs, *deviceID)
	}
	return &types.FalseAlarm{
		ID:         uuid.New(),
		DeviceID:   deviceID,
		Category:   verdict.Category,
		Confidence: verdict.Confidence,
		Reasoning:  verdict.Reasoning,
		DetectedAt: detectedAt,
	}, nil
}
func (r *recordingFalseAlarms) List(ctx context.Context, since time.Time, limit, offset int) ([]*types.FalseAlarm, error) {
	return nil, nil
}

type fakeStorage struct {
	stores  int
	deletes []string
	lastKey string
}

func (f *fakeStorage) Store(ctx context.Context, category gcp.BucketCategory, directory string, file UploadFile) (*StoredObject, error) {
	f.stores++
	f.lastKey = buildObjectKey(directory, file.Filename)
	return &StoredObject{
		URL:       "/media/media/" + f.lastKey,
		Key:       f.lastKey,
		Filename:  file.Filename,
		MimeType:  file.MimeType,
		SizeBytes: int64(len(file.Data)),
	}, nil
}
func (f *fakeStorage) StoreAll(ctx context.Context, category gcp.BucketCategory, directory string, files []UploadFile) ([]*StoredObject, error) {
	out := make([]*StoredObject, 0, len(files))
	for _, file := range files {
		obj, err := f.Store(ctx, category, directory, file)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}
func (f *fakeStorage) Delete(ctx context.Context, category gcp.BucketCategory, key string) error {
	f.deletes = append(f.deletes, key)
	return nil
}
func (f *fakeStorage) PublicURL(category gcp.BucketCategory, key string) string {
	return "/media/media/" + key
}

type recordingBroadcaster struct {
	channels []string
	events   []realtime.SSEEvent
}

func (r *recordingBroadcaster) Publish(ctx context.Context, channel string, event realtime.SSEEvent, data any) {
	r.channels = append(r.channels, channel)
	r.events = append(r.events, event)
}

type nopEnqueuer struct {
	requests []jobs.EnqueueRequest
}

func (n *nopEnqueuer) Enqueue(ctx context.Context, tx *gorm.DB, req jobs.EnqueueRequest) (*types.JobRun, error) {
	n.requests = append(n.requests, req)
	return nil, nil
}

type leaderlessUserRepo struct {
	repos.UserRepo
}

func (leaderlessUserRepo) ListByRoleAndPurok(ctx context.Context, tx *gorm.DB, role, purok string) ([]*types.User, error) {
	return nil, pkgerrors.ErrNotFound
}
func (leaderlessUserRepo) FirstByRole(ctx context.Context, tx *gorm.DB, role string) (*types.User, error) {
	return nil, pkgerrors.ErrNotFound
}

func verificationConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Verification.AutoAcceptConfidence = 0.85
	cfg.Verification.RejectConfidence = 0.40
	return cfg
}

func testDevice(t *testing.T, apiKey string) *types.Device {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return &types.Device{
		ID:         uuid.New(),
		Identifier: "cam-01",
		Name:       "cam-01",
		Purok:      "purok-3",
		Latitude:   14.6,
		Longitude:  121.0,
		Active:     true,
		APIKeyHash: string(hash),
	}
}

func TestAcceptThresholds(t *testing.T) {
	vs := &verificationService{cfg: verificationConfig(t)}

	cases := []struct {
		confidence float64
		isReal     bool
		want       bool
	}{
		// At or above auto-accept, the confidence overrides a hedging verdict.
		{0.90, false, true},
		{0.85, false, true},
		// Below reject, even a positive verdict is discarded.
		{0.20, true, false},
		// In between, the model's boolean decides.
		{0.60, true, true},
		{0.60, false, false},
	}
	for _, tc := range cases {
		got := vs.accept(&gemini.Verdict{Confidence: tc.confidence, IsRealIncident: tc.isReal})
		if got != tc.want {
			t.Errorf("accept(confidence=%.2f, real=%v) = %v, want %v", tc.confidence, tc.isReal, got, tc.want)
		}
	}
}

func TestHandleDetectionRejectedRecordsFalseAlarmOnly(t *testing.T) {
	device := testDevice(t, "secret-key")
	verifier := &fakeVerifier{verdict: &gemini.Verdict{
		IsRealIncident: true,
		Category:       "fire",
		Severity:       "low",
		Confidence:     0.15,
		Reasoning:      "smoke from a cooking fire",
	}}
	accidents := &trackingAccidentRepo{}
	storage := &fakeStorage{}
	alarms := &recordingFalseAlarms{}

	vs := &verificationService{
		log:         testLogger(t),
		cfg:         verificationConfig(t),
		verifier:    verifier,
		devices:     &fakeDeviceRepo{device: device},
		accidents:   accidents,
		falseAlarms: alarms,
		storage:     storage,
	}

	out, err := vs.HandleDetection(context.Background(), DetectionInput{
		DeviceIdentifier: "cam-01",
		DeviceAPIKey:     "secret-key",
		Snapshot:         []byte("jpegdata"),
		SnapshotMime:     "image/jpeg",
		DetectedObjects:  []string{"smoke"},
		YOLOConfidence:   0.7,
	})
	if err != nil {
		t.Fatalf("HandleDetection: %v", err)
	}
	if out.Accepted || out.FalseAlarm == nil || out.Accident != nil {
		t.Fatalf("outcome = %+v", out)
	}
	if alarms.calls != 1 {
		t.Fatalf("false alarm recorded %d times, want 1", alarms.calls)
	}
	if len(alarms.deviceIDs) != 1 || alarms.deviceIDs[0] != device.ID {
		t.Fatalf("false alarm device ids = %v", alarms.deviceIDs)
	}
	// A rejected detection stores no media and writes no accident.
	if storage.stores != 0 {
		t.Fatalf("storage.Store called %d times", storage.stores)
	}
	if accidents.created != 0 {
		t.Fatalf("accident rows created: %d", accidents.created)
	}
}

func TestHandleDetectionRejectsBadDeviceKey(t *testing.T) {
	device := testDevice(t, "secret-key")
	verifier := &fakeVerifier{verdict: &gemini.Verdict{Confidence: 0.9, Category: "fire"}}

	vs := &verificationService{
		log:      testLogger(t),
		cfg:      verificationConfig(t),
		verifier: verifier,
		devices:  &fakeDeviceRepo{device: device},
	}

	_, err := vs.HandleDetection(context.Background(), DetectionInput{
		DeviceIdentifier: "cam-01",
		DeviceAPIKey:     "wrong-key",
		Snapshot:         []byte("jpegdata"),
	})
	if ae := apierr.From(err); ae == nil || ae.Code != "unauthorized" {
		t.Fatalf("err = %v", err)
	}
	// Authentication happens before the model ever sees the snapshot.
	if verifier.calls != 0 {
		t.Fatalf("verifier called %d times", verifier.calls)
	}
}

func TestHandleDetectionAcceptedCreatesAccidentAtomically(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	ctx := context.Background()

	device := testDevice(t, "secret-key")
	storage := &fakeStorage{}
	alarms := &recordingFalseAlarms{}
	broadcast := &recordingBroadcaster{}
	mediaRepo := repos.NewIncidentMediaRepo(db, log)

	vs := &verificationService{
		db:  tx,
		log: log,
		cfg: verificationConfig(t),
		verifier: &fakeVerifier{verdict: &gemini.Verdict{
			IsRealIncident: true,
			Category:       "fire",
			Severity:       "high",
			Confidence:     0.95,
			Reasoning:      "open flames on a rooftop",
		}},
		devices:     &fakeDeviceRepo{device: device},
		accidents:   repos.NewAccidentRepo(db, log),
		media:       mediaRepo,
		users:       leaderlessUserRepo{},
		falseAlarms: alarms,
		storage:     storage,
		enqueuer:    &nopEnqueuer{},
		broadcast:   broadcast,
	}

	out, err := vs.HandleDetection(ctx, DetectionInput{
		DeviceIdentifier: "cam-01",
		DeviceAPIKey:     "secret-key",
		Snapshot:         []byte("jpegdata"),
		SnapshotMime:     "image/jpeg",
		DetectedObjects:  []string{"fire", "smoke"},
		YOLOConfidence:   0.8,
		CapturedAt:       time.Now(),
	})
	if err != nil {
		t.Fatalf("HandleDetection: %v", err)
	}
	if !out.Accepted || out.Accident == nil || out.Accident.ID == uuid.Nil {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Accident.Status != types.AccidentStatusPending {
		t.Fatalf("status = %s", out.Accident.Status)
	}

	media, err := mediaRepo.ListBySource(ctx, tx, types.SourceAccident, out.Accident.ID)
	if err != nil {
		t.Fatalf("ListBySource: %v", err)
	}
	if len(media) != 1 || media[0].StorageKey != storage.lastKey {
		t.Fatalf("media rows = %+v", media)
	}

	if alarms.calls != 0 {
		t.Fatalf("false alarm recorded for an accepted detection")
	}
	if len(storage.deletes) != 0 {
		t.Fatalf("snapshot deleted after a successful commit: %v", storage.deletes)
	}
	if len(broadcast.channels) != 2 ||
		broadcast.channels[0] != realtime.ChannelAccidents ||
		broadcast.channels[1] != realtime.ChannelActiveAccidents {
		t.Fatalf("broadcast channels = %v", broadcast.channels)
	}
	for _, ev := range broadcast.events {
		if ev != realtime.SSEEventAccidentDetected {
			t.Fatalf("broadcast events = %v", broadcast.events)
		}
	}
}

func TestHandleDetectionRollbackDeletesStoredSnapshot(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	ctx := context.Background()

	device := testDevice(t, "secret-key")
	storage := &fakeStorage{}
	accidentRepo := repos.NewAccidentRepo(db, log)

	vs := &verificationService{
		db:  tx,
		log: log,
		cfg: verificationConfig(t),
		verifier: &fakeVerifier{verdict: &gemini.Verdict{
			IsRealIncident: true,
			Category:       "flood",
			Severity:       "medium",
			Confidence:     0.95,
			Reasoning:      "street under water",
		}},
		devices:     &fakeDeviceRepo{device: device},
		accidents:   accidentRepo,
		media:       &failingMediaRepo{},
		users:       leaderlessUserRepo{},
		falseAlarms: &recordingFalseAlarms{},
		storage:     storage,
		enqueuer:    &nopEnqueuer{},
		broadcast:   &recordingBroadcaster{},
	}

	_, err := vs.HandleDetection(ctx, DetectionInput{
		DeviceIdentifier: "cam-01",
		DeviceAPIKey:     "secret-key",
		Snapshot:         []byte("jpegdata"),
		SnapshotMime:     "image/jpeg",
	})
	if err == nil {
		t.Fatal("expected the media insert failure to surface")
	}

	// The accident insert rolled back with the media row.
	rows, listErr := accidentRepo.ListSince(ctx, tx, time.Time{})
	if listErr != nil {
		t.Fatalf("ListSince: %v", listErr)
	}
	if len(rows) != 0 {
		t.Fatalf("accident rows survived the rollback: %d", len(rows))
	}

	// The orphaned snapshot was cleaned out of storage.
	if storage.stores != 1 {
		t.Fatalf("storage.Store called %d times", storage.stores)
	}
	if len(storage.deletes) != 1 || storage.deletes[0] != storage.lastKey {
		t.Fatalf("storage deletes = %v", storage.deletes)
	}
}
