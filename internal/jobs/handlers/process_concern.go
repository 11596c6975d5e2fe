package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
	"github.com/urbanwatch/urbanwatch-backend/internal/domain/incident"
	"github.com/urbanwatch/urbanwatch-backend/internal/clients/gcp"
	jobspkg "github.com/urbanwatch/urbanwatch-backend/internal/jobs"
	jobrt "github.com/urbanwatch/urbanwatch-backend/internal/jobs/runtime"
	pkgerrors "github.com/urbanwatch/urbanwatch-backend/internal/pkg/errors"
	"github.com/urbanwatch/urbanwatch-backend/internal/realtime"
)

// newProcessManualConcern classifies a typed (text/image) concern with the
// model and broadcasts the category update to its author.
func newProcessManualConcern(d Deps) jobrt.Handler {
	return jobrt.HandlerFunc(func(ctx context.Context, job *types.JobRun) ([]byte, error) {
		concern, err := loadConcern(ctx, d, job)
		if err != nil {
			return nil, err
		}
		return classifyAndBroadcast(ctx, d, concern)
	})
}

// newProcessVoiceConcern transcribes the attached audio, swaps the
// placeholder title/description for real content, then classifies the result.
func newProcessVoiceConcern(d Deps) jobrt.Handler {
	return jobrt.HandlerFunc(func(ctx context.Context, job *types.JobRun) ([]byte, error) {
		if d.Speech == nil || d.Storage == nil {
			return nil, jobrt.Permanent(fmt.Errorf("voice processing not configured"))
		}
		concern, err := loadConcern(ctx, d, job)
		if err != nil {
			return nil, err
		}
		if concern.Type != incident.ConcernTypeVoice {
			return nil, jobrt.Permanent(fmt.Errorf("concern %s is not a voice report", concern.ID))
		}

		// Already transcribed on a previous attempt: fall through to
		// classification so a mid-job crash still converges.
		if concern.Transcript == "" {
			audio, mime, err := loadConcernAudio(ctx, d, concern)
			if err != nil {
				return nil, err
			}

			tr, err := d.Speech.TranscribeAudioBytes(ctx, audio, mime, gcp.SpeechConfig{
				EnableAutomaticPunctuation: true,
			})
			if err != nil {
				return nil, fmt.Errorf("transcribe: %w", err)
			}
			text := strings.TrimSpace(tr.PrimaryText)
			if text == "" {
				return nil, jobrt.Permanent(fmt.Errorf("empty transcript for concern %s", concern.ID))
			}

			title := titleFromTranscript(text)
			if err := d.Concerns.SetTranscript(ctx, nil, concern.ID, title, text, text); err != nil {
				return nil, err
			}
			concern.Title = title
			concern.Description = text
			concern.Transcript = text

			d.broadcast(ctx, realtime.SSEMessage{
				Channel: realtime.ChannelCitizen(concern.UserID),
				Event:   realtime.SSEEventConcernTranscribed,
				Data: map[string]any{
					"concern_id": concern.ID,
					"title":      title,
					"transcript": text,
				},
			})
		}

		return classifyAndBroadcast(ctx, d, concern)
	})
}

func loadConcern(ctx context.Context, d Deps, job *types.JobRun) (*types.Concern, error) {
	var payload jobspkg.ProcessConcernPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, jobrt.Permanent(fmt.Errorf("bad payload: %w", err))
	}
	concern, err := d.Concerns.GetByID(ctx, nil, payload.ConcernID)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		// Deleted before the worker got to it; nothing left to process.
		return nil, jobrt.Permanent(fmt.Errorf("concern %s no longer exists", payload.ConcernID))
	}
	if err != nil {
		return nil, err
	}
	return concern, nil
}

func classifyAndBroadcast(ctx context.Context, d Deps, concern *types.Concern) ([]byte, error) {
	if d.Verifier == nil {
		return nil, jobrt.Permanent(fmt.Errorf("concern classification not configured"))
	}
	cls, err := d.Verifier.ClassifyConcern(ctx, concern.Title, concern.Description)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	if err := d.Concerns.SetClassification(ctx, nil, concern.ID, cls.Category, cls.Severity); err != nil {
		return nil, err
	}

	d.broadcast(ctx, realtime.SSEMessage{
		Channel: realtime.ChannelCitizen(concern.UserID),
		Event:   realtime.SSEEventConcernCategoryUpdated,
		Data: map[string]any{
			"concern_id": concern.ID,
			"category":   cls.Category,
			"severity":   cls.Severity,
		},
	})

	return json.Marshal(cls)
}

// loadConcernAudio picks the first audio attachment and downloads it.
func loadConcernAudio(ctx context.Context, d Deps, concern *types.Concern) ([]byte, string, error) {
	attachments, err := d.Media.ListBySource(ctx, nil, types.SourceConcern, concern.ID)
	if err != nil {
		return nil, "", err
	}
	for _, m := range attachments {
		if !strings.HasPrefix(m.MimeType, "audio/") {
			continue
		}
		rc, err := d.Storage.DownloadFile(ctx, gcp.BucketCategoryMedia, m.StorageKey)
		if err != nil {
			return nil, "", fmt.Errorf("download %s: %w", m.StorageKey, err)
		}
		raw, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, "", fmt.Errorf("read %s: %w", m.StorageKey, err)
		}
		return raw, m.MimeType, nil
	}
	return nil, "", jobrt.Permanent(fmt.Errorf("concern %s has no audio attachment", concern.ID))
}

func titleFromTranscript(text string) string {
	const maxTitle = 80
	title := strings.Join(strings.Fields(text), " ")
	if len(title) <= maxTitle {
		return title
	}
	cut := strings.LastIndex(title[:maxTitle], " ")
	if cut <= 0 {
		cut = maxTitle
	}
	return title[:cut] + "…"
}
