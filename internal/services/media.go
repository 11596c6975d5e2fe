package services

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/urbanwatch/urbanwatch-backend/internal/clients/gcp"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/logger"
)

// UploadFile is one incoming binary, already read off the wire.
type UploadFile struct {
	Filename string
	MimeType string
	Data     []byte
}

// StoredObject is what the storage adapter hands back for a persisted file.
type StoredObject struct {
	URL       string `json:"url"`
	Key       string `json:"key"`
	Filename  string `json:"filename"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
}

type MediaService interface {
	Store(ctx context.Context, category gcp.BucketCategory, directory string, file UploadFile) (*StoredObject, error)
	StoreAll(ctx context.Context, category gcp.BucketCategory, directory string, files []UploadFile) ([]*StoredObject, error)
	Delete(ctx context.Context, category gcp.BucketCategory, key string) error
	PublicURL(category gcp.BucketCategory, key string) string
}

type mediaService struct {
	log      *logger.Logger
	primary  gcp.BucketService
	fallback gcp.BucketService

	mu       sync.Mutex
	degraded bool
}

// NewMediaService prefers the bucket backend and falls back to the local
// store when the bucket is unavailable. Availability beats purity here: a
// citizen's evidence upload should never fail because GCS is briefly down.
func NewMediaService(log *logger.Logger, primary, fallback gcp.BucketService) (MediaService, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if primary == nil && fallback == nil {
		return nil, fmt.Errorf("at least one storage backend required")
	}
	return &mediaService{
		log:      log.With("service", "MediaService"),
		primary:  primary,
		fallback: fallback,
	}, nil
}

func (ms *mediaService) Store(ctx context.Context, category gcp.BucketCategory, directory string, file UploadFile) (*StoredObject, error) {
	if len(file.Data) == 0 {
		return nil, fmt.Errorf("empty file %q", file.Filename)
	}

	key := buildObjectKey(directory, file.Filename)

	backend, name := ms.pickBackend()
	if backend != nil {
		if err := backend.UploadFile(ctx, category, key, bytes.NewReader(file.Data)); err == nil {
			return ms.stored(backend, category, key, file), nil
		} else if name == "bucket" && ms.fallback != nil {
			ms.log.Warn("Bucket upload failed; falling back to local storage", "key", key, "error", err)
			ms.markDegraded()
		} else {
			return nil, fmt.Errorf("store %s: %w", key, err)
		}
	}

	if ms.fallback == nil {
		return nil, fmt.Errorf("store %s: no storage backend available", key)
	}
	if err := ms.fallback.UploadFile(ctx, category, key, bytes.NewReader(file.Data)); err != nil {
		return nil, fmt.Errorf("store %s (local fallback): %w", key, err)
	}
	return ms.stored(ms.fallback, category, key, file), nil
}

// StoreAll fans the uploads out; one failure cancels the batch.
func (ms *mediaService) StoreAll(ctx context.Context, category gcp.BucketCategory, directory string, files []UploadFile) ([]*StoredObject, error) {
	if len(files) == 0 {
		return nil, nil
	}
	out := make([]*StoredObject, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, f := range files {
		g.Go(func() error {
			obj, err := ms.Store(gctx, category, directory, f)
			if err != nil {
				return err
			}
			out[i] = obj
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (ms *mediaService) Delete(ctx context.Context, category gcp.BucketCategory, key string) error {
	var firstErr error
	for _, b := range []gcp.BucketService{ms.primary, ms.fallback} {
		if b == nil {
			continue
		}
		if err := b.DeleteFile(ctx, category, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (ms *mediaService) PublicURL(category gcp.BucketCategory, key string) string {
	if b, _ := ms.pickBackend(); b != nil {
		return b.GetPublicURL(category, key)
	}
	return ""
}

func (ms *mediaService) stored(backend gcp.BucketService, category gcp.BucketCategory, key string, file UploadFile) *StoredObject {
	return &StoredObject{
		URL:       backend.GetPublicURL(category, key),
		Key:       key,
		Filename:  file.Filename,
		MimeType:  file.MimeType,
		SizeBytes: int64(len(file.Data)),
	}
}

func (ms *mediaService) pickBackend() (gcp.BucketService, string) {
	ms.mu.Lock()
	degraded := ms.degraded
	ms.mu.Unlock()
	if ms.primary != nil && !degraded {
		return ms.primary, "bucket"
	}
	if ms.fallback != nil {
		return ms.fallback, "local"
	}
	return ms.primary, "bucket"
}

func (ms *mediaService) markDegraded() {
	ms.mu.Lock()
	ms.degraded = true
	ms.mu.Unlock()

	// Probe the bucket again later instead of pinning to local forever.
	go func() {
		time.Sleep(5 * time.Minute)
		ms.mu.Lock()
		ms.degraded = false
		ms.mu.Unlock()
	}()
}

func buildObjectKey(directory, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	directory = strings.Trim(strings.TrimSpace(directory), "/")
	name := uuid.New().String() + ext
	if directory == "" {
		return name
	}
	return directory + "/" + name
}
