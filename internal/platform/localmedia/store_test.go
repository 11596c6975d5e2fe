package localmedia

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/urbanwatch/urbanwatch-backend/internal/clients/gcp"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	t.Setenv("LOCAL_MEDIA_ROOT", t.TempDir())
	t.Setenv("LOCAL_MEDIA_BASE_URL", "/media")
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	store, err := NewStore(log)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestStoreUploadDownloadDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	payload := []byte("jpeg bytes")

	if err := store.UploadFile(ctx, gcp.BucketCategoryMedia, "concern/abc/1.jpg", bytes.NewReader(payload)); err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	rc, err := store.DownloadFile(ctx, gcp.BucketCategoryMedia, "concern/abc/1.jpg")
	if err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}
	got, err := io.ReadAll(rc)
	rc.Close()
	if err != nil || !bytes.Equal(got, payload) {
		t.Fatalf("read back %q, err %v", got, err)
	}

	if err := store.DeleteFile(ctx, gcp.BucketCategoryMedia, "concern/abc/1.jpg"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if _, err := store.DownloadFile(ctx, gcp.BucketCategoryMedia, "concern/abc/1.jpg"); err == nil {
		t.Fatal("download after delete should fail")
	}
	// Deleting a missing key is not an error.
	if err := store.DeleteFile(ctx, gcp.BucketCategoryMedia, "concern/abc/1.jpg"); err != nil {
		t.Fatalf("repeat DeleteFile: %v", err)
	}
}

func TestStoreListKeysAndDeletePrefix(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"concern/a/1.jpg", "concern/a/2.jpg", "concern/b/1.jpg"} {
		if err := store.UploadFile(ctx, gcp.BucketCategoryMedia, key, bytes.NewReader([]byte("x"))); err != nil {
			t.Fatalf("UploadFile %s: %v", key, err)
		}
	}

	keys, err := store.ListKeys(ctx, gcp.BucketCategoryMedia, "concern/a/")
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "concern/a/1.jpg" || keys[1] != "concern/a/2.jpg" {
		t.Fatalf("ListKeys = %v", keys)
	}

	if err := store.DeletePrefix(ctx, gcp.BucketCategoryMedia, "concern/a/"); err != nil {
		t.Fatalf("DeletePrefix: %v", err)
	}
	keys, err = store.ListKeys(ctx, gcp.BucketCategoryMedia, "")
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	if len(keys) != 1 || keys[0] != "concern/b/1.jpg" {
		t.Fatalf("keys after DeletePrefix = %v", keys)
	}
}

func TestStoreListKeysEmptyCategory(t *testing.T) {
	store := newTestStore(t)
	keys, err := store.ListKeys(context.Background(), gcp.BucketCategoryAvatar, "")
	if err != nil {
		t.Fatalf("ListKeys on empty category: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("keys = %v, want none", keys)
	}
}

func TestStoreConfinesTraversalKeys(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.UploadFile(ctx, gcp.BucketCategoryMedia, "../../escape.txt", bytes.NewReader([]byte("x"))); err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	// The dot segments collapse; the file stays inside the category root.
	keys, err := store.ListKeys(ctx, gcp.BucketCategoryMedia, "")
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	if len(keys) != 1 || keys[0] != "escape.txt" {
		t.Fatalf("keys = %v, want [escape.txt]", keys)
	}
	if _, err := os.Stat(filepath.Join(store.Root(), "..", "escape.txt")); !os.IsNotExist(err) {
		t.Fatal("file escaped the media root")
	}
}

func TestStorePublicURL(t *testing.T) {
	store := newTestStore(t)
	got := store.GetPublicURL(gcp.BucketCategoryMedia, "concern/a/1.jpg")
	want := "/media/" + string(gcp.BucketCategoryMedia) + "/concern/a/1.jpg"
	if got != want {
		t.Fatalf("GetPublicURL = %q, want %q", got, want)
	}
}
