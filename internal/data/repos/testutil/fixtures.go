package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
	"gorm.io/gorm"
)

func SeedUser(tb testing.TB, tx *gorm.DB, role string) *types.User {
	tb.Helper()
	u := &types.User{
		Email:     fmt.Sprintf("%s-%s@example.test", role, uuid.NewString()[:8]),
		Password:  "not-a-real-hash",
		FirstName: "Test",
		LastName:  "User",
		Role:      role,
		Purok:     "purok-1",
	}
	if err := tx.Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedDevice(tb testing.TB, tx *gorm.DB) *types.Device {
	tb.Helper()
	d := &types.Device{
		Identifier: "cam-" + uuid.NewString()[:8],
		Name:       "Test Camera",
		APIKeyHash: "not-a-real-hash",
		Purok:      "purok-1",
		Latitude:   14.5995,
		Longitude:  120.9842,
		Active:     true,
	}
	if err := tx.Create(d).Error; err != nil {
		tb.Fatalf("seed device: %v", err)
	}
	return d
}

func SeedConcern(tb testing.TB, tx *gorm.DB, userID uuid.UUID, status string) *types.Concern {
	tb.Helper()
	c := &types.Concern{
		UserID:      userID,
		Type:        "text",
		Title:       "Broken streetlight",
		Description: "The light at the corner has been out for a week.",
		Status:      status,
		Latitude:    14.5995,
		Longitude:   120.9842,
	}
	if err := tx.Create(c).Error; err != nil {
		tb.Fatalf("seed concern: %v", err)
	}
	return c
}

func SeedAccident(tb testing.TB, tx *gorm.DB, deviceID *uuid.UUID, status string) *types.Accident {
	tb.Helper()
	a := &types.Accident{
		DeviceID:    deviceID,
		Title:       "Vehicle collision",
		Description: "Two vehicles collided at the intersection.",
		Category:    "accident",
		Severity:    "high",
		Status:      status,
		Latitude:    14.5995,
		Longitude:   120.9842,
		Confidence:  0.93,
		Reasoning:   "Visible collision damage and stopped traffic.",
		DetectedAt:  time.Now().UTC(),
	}
	if err := tx.Create(a).Error; err != nil {
		tb.Fatalf("seed accident: %v", err)
	}
	return a
}
