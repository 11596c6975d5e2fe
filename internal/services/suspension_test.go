package services

import (
	"strings"
	"testing"
	"time"

	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
	"github.com/urbanwatch/urbanwatch-backend/internal/domain/user"
)

func TestSuspensionMessage(t *testing.T) {
	expires := time.Date(2026, time.September, 15, 0, 0, 0, 0, time.UTC)
	timed := &types.UserSuspension{Type: user.PunishmentWarning1, ExpiresAt: &expires}
	msg := suspensionMessage(timed)
	if !strings.Contains(msg, "warning 1") {
		t.Errorf("message should name the punishment type: %q", msg)
	}
	if !strings.Contains(msg, "September 15, 2026") {
		t.Errorf("message should include the expiry date: %q", msg)
	}

	perm := &types.UserSuspension{Type: user.PunishmentSuspension, Permanent: true}
	msg = suspensionMessage(perm)
	if !strings.Contains(msg, "permanently suspended") {
		t.Errorf("permanent message: %q", msg)
	}
	if !strings.Contains(msg, "suspension") {
		t.Errorf("permanent message should name the type: %q", msg)
	}
}

func TestDefaultPunishmentDays(t *testing.T) {
	if got := defaultPunishmentDays(user.PunishmentWarning1); got != 3 {
		t.Errorf("warning_1 = %d days, want 3", got)
	}
	if got := defaultPunishmentDays(user.PunishmentWarning2); got != 7 {
		t.Errorf("warning_2 = %d days, want 7", got)
	}
	if got := defaultPunishmentDays(user.PunishmentSuspension); got != 30 {
		t.Errorf("suspension = %d days, want 30", got)
	}
}
