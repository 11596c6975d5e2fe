package runtime

import (
	"context"
	"errors"
	"fmt"
	"testing"

	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	h := HandlerFunc(func(ctx context.Context, job *types.JobRun) ([]byte, error) {
		return []byte("ok"), nil
	})

	if err := reg.Register("classify_concern", h); err != nil {
		t.Fatalf("Register: %v", err)
	}
	got, ok := reg.Get("classify_concern")
	if !ok {
		t.Fatal("handler not found after Register")
	}
	out, err := got.Run(context.Background(), &types.JobRun{})
	if err != nil || string(out) != "ok" {
		t.Fatalf("Run = (%q, %v)", out, err)
	}

	// Lookup trims whitespace the same way registration does.
	if _, ok := reg.Get("  classify_concern  "); !ok {
		t.Fatal("trimmed lookup should find the handler")
	}
	if _, ok := reg.Get("unknown"); ok {
		t.Fatal("unknown job type should not resolve")
	}
}

func TestRegistryRejectsBadRegistrations(t *testing.T) {
	reg := NewRegistry()
	h := HandlerFunc(func(ctx context.Context, job *types.JobRun) ([]byte, error) { return nil, nil })

	if err := reg.Register("", h); err == nil {
		t.Error("empty job type should be rejected")
	}
	if err := reg.Register("x", nil); err == nil {
		t.Error("nil handler should be rejected")
	}
	if err := reg.Register("x", h); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register("x", h); err == nil {
		t.Error("duplicate registration should be rejected")
	}
}

func TestPermanent(t *testing.T) {
	if Permanent(nil) != nil {
		t.Fatal("Permanent(nil) should stay nil")
	}

	base := errors.New("concern was deleted")
	perm := Permanent(base)
	if !IsPermanent(perm) {
		t.Fatal("Permanent error should report IsPermanent")
	}
	if !errors.Is(perm, base) {
		t.Fatal("Permanent should wrap the original error")
	}
	if perm.Error() != base.Error() {
		t.Fatalf("Error() = %q, want %q", perm.Error(), base.Error())
	}

	if IsPermanent(base) {
		t.Fatal("plain error should not be permanent")
	}
	// Wrapping preserves the marker.
	wrapped := fmt.Errorf("handler: %w", perm)
	if !IsPermanent(wrapped) {
		t.Fatal("wrapped permanent error should stay permanent")
	}
}
