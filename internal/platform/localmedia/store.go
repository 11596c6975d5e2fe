package localmedia

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urbanwatch/urbanwatch-backend/internal/clients/gcp"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/envutil"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/logger"
)

// Store is a disk-backed stand-in for the GCS bucket service, used when no
// bucket is configured (single-node deployments, local development). Keys map
// to files under root/<category>/<key>.
type Store struct {
	log     *logger.Logger
	root    string
	baseURL string
}

var _ gcp.BucketService = (*Store)(nil)

func NewStore(log *logger.Logger) (*Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	root := envutil.String("LOCAL_MEDIA_ROOT", "/var/lib/urbanwatch/media")
	baseURL := strings.TrimRight(envutil.String("LOCAL_MEDIA_BASE_URL", "/media"), "/")

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create local media root: %w", err)
	}

	return &Store{
		log:     log.With("service", "LocalMediaStore"),
		root:    root,
		baseURL: baseURL,
	}, nil
}

// Root returns the directory served as static media by the HTTP server.
func (s *Store) Root() string { return s.root }

func (s *Store) path(category gcp.BucketCategory, key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if strings.Contains(clean, "..") {
		return "", fmt.Errorf("invalid media key: %s", key)
	}
	return filepath.Join(s.root, string(category), clean), nil
}

func (s *Store) UploadFile(ctx context.Context, category gcp.BucketCategory, key string, file io.Reader) error {
	p, err := s.path(category, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("mkdir media dir: %w", err)
	}

	tmp := p + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create media file: %w", err)
	}
	if _, err := io.Copy(f, file); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write media file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close media file: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("finalize media file: %w", err)
	}
	return nil
}

func (s *Store) DeleteFile(ctx context.Context, category gcp.BucketCategory, key string) error {
	p, err := s.path(category, key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete media file %q: %w", key, err)
	}
	return nil
}

func (s *Store) DownloadFile(ctx context.Context, category gcp.BucketCategory, key string) (io.ReadCloser, error) {
	p, err := s.path(category, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open media file %q: %w", key, err)
	}
	return f, nil
}

func (s *Store) ListKeys(ctx context.Context, category gcp.BucketCategory, prefix string) ([]string, error) {
	base := filepath.Join(s.root, string(category))
	out := []string{}
	err := filepath.WalkDir(base, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(base, path)
		if relErr != nil {
			return relErr
		}
		key := filepath.ToSlash(rel)
		if prefix == "" || strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) DeletePrefix(ctx context.Context, category gcp.BucketCategory, prefix string) error {
	keys, err := s.ListKeys(ctx, category, prefix)
	if err != nil {
		return err
	}
	for _, k := range keys {
		_ = s.DeleteFile(ctx, category, k)
	}
	return nil
}

func (s *Store) GetPublicURL(category gcp.BucketCategory, key string) string {
	return fmt.Sprintf("%s/%s/%s", s.baseURL, category, strings.TrimPrefix(key, "/"))
}
