package services

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/urbanwatch/urbanwatch-backend/internal/clients/gemini"
	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
)

func TestBuildObjectKey(t *testing.T) {
	key := buildObjectKey("concern/abc", "Photo.JPG")
	if !strings.HasPrefix(key, "concern/abc/") {
		t.Fatalf("key = %q", key)
	}
	if !strings.HasSuffix(key, ".jpg") {
		t.Fatalf("extension not lowered: %q", key)
	}

	// Random names keep sibling uploads from clobbering each other.
	if buildObjectKey("concern/abc", "a.jpg") == buildObjectKey("concern/abc", "a.jpg") {
		t.Fatal("keys should be unique per call")
	}

	bare := buildObjectKey("", "clip.mp3")
	if strings.Contains(bare, "/") {
		t.Fatalf("empty directory should give a bare name: %q", bare)
	}
	trimmed := buildObjectKey(" /media/x/ ", "f.png")
	if !strings.HasPrefix(trimmed, "media/x/") {
		t.Fatalf("directory not trimmed: %q", trimmed)
	}
}

func TestHasAudio(t *testing.T) {
	if hasAudio([]UploadFile{{MimeType: "image/jpeg"}, {MimeType: "image/png"}}) {
		t.Fatal("images are not audio")
	}
	if !hasAudio([]UploadFile{{MimeType: "image/jpeg"}, {MimeType: "AUDIO/webm"}}) {
		t.Fatal("audio attachment not detected")
	}
	if hasAudio(nil) {
		t.Fatal("empty list has no audio")
	}
}

func TestMediaRowsFor(t *testing.T) {
	sourceID := uuid.New()
	files := []UploadFile{
		{Filename: "original-name.jpg", MimeType: "image/jpeg"},
	}
	stored := []*StoredObject{
		{URL: "/media/media/concern/x/1.jpg", Key: "concern/x/1.jpg", Filename: "1.jpg", MimeType: "image/jpeg", SizeBytes: 123},
		nil,
	}

	rows := mediaRowsFor(types.SourceConcern, sourceID, files, stored)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	row := rows[0]
	if row.SourceKind != types.SourceConcern || row.SourceID != sourceID {
		t.Fatalf("row source = %v/%v", row.SourceKind, row.SourceID)
	}
	// The citizen's original filename survives over the storage name.
	if row.Filename != "original-name.jpg" {
		t.Fatalf("filename = %q", row.Filename)
	}
	if row.StorageKey != "concern/x/1.jpg" || row.SizeBytes != 123 {
		t.Fatalf("row = %+v", row)
	}
}

func TestAccidentTitle(t *testing.T) {
	v := &gemini.Verdict{Category: "fire"}
	withPurok := &types.Device{Name: "cam-3", Purok: "purok-5"}
	if got := accidentTitle(v, withPurok); got != "Fire detected in purok purok-5" {
		t.Errorf("accidentTitle = %q", got)
	}
	noPurok := &types.Device{Name: "cam-3"}
	if got := accidentTitle(v, noPurok); got != "Fire detected by cam-3" {
		t.Errorf("accidentTitle = %q", got)
	}
}
