package user

import (
	"testing"
	"time"
)

func TestSuspensionActiveAt(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	timed := &UserSuspension{StartsAt: past, ExpiresAt: &future}
	if !timed.ActiveAt(now) {
		t.Fatal("unexpired suspension should be active")
	}
	if timed.ActiveAt(future.Add(time.Minute)) {
		t.Fatal("expired suspension should not be active")
	}

	permanent := &UserSuspension{StartsAt: past, Permanent: true}
	if !permanent.ActiveAt(now.Add(24 * 365 * time.Hour)) {
		t.Fatal("permanent suspension should stay active")
	}

	lifted := &UserSuspension{StartsAt: past, Permanent: true, LiftedAt: &past}
	if lifted.ActiveAt(now) {
		t.Fatal("lifted suspension should not be active")
	}

	notStarted := &UserSuspension{StartsAt: future, Permanent: true}
	if notStarted.ActiveAt(now) {
		t.Fatal("suspension should not be active before it starts")
	}

	var nilSuspension *UserSuspension
	if nilSuspension.ActiveAt(now) {
		t.Fatal("nil suspension should not be active")
	}
}

func TestNextPunishments(t *testing.T) {
	now := time.Now()

	if got := NextPunishments(nil, now); len(got) != 1 || got[0] != PunishmentWarning1 {
		t.Fatalf("clean history: got %v, want [%s]", got, PunishmentWarning1)
	}

	w1 := []*UserSuspension{{Type: PunishmentWarning1, StartsAt: now}}
	if got := NextPunishments(w1, now); len(got) != 1 || got[0] != PunishmentWarning2 {
		t.Fatalf("after warning_1: got %v, want [%s]", got, PunishmentWarning2)
	}

	w2 := append(w1, &UserSuspension{Type: PunishmentWarning2, StartsAt: now})
	if got := NextPunishments(w2, now); len(got) != 1 || got[0] != PunishmentSuspension {
		t.Fatalf("after warning_2: got %v, want [%s]", got, PunishmentSuspension)
	}

	// Repeat offenders stay at the suspension rung.
	susp := append(w2, &UserSuspension{Type: PunishmentSuspension, StartsAt: now})
	if got := NextPunishments(susp, now); len(got) != 1 || got[0] != PunishmentSuspension {
		t.Fatalf("after suspension: got %v, want [%s]", got, PunishmentSuspension)
	}

	perm := append(susp, &UserSuspension{Type: PunishmentSuspension, Permanent: true, StartsAt: now})
	if got := NextPunishments(perm, now); got != nil {
		t.Fatalf("after permanent suspension: got %v, want nil", got)
	}

	// A lifted permanent suspension no longer blocks the ladder.
	liftedAt := now
	liftedPerm := []*UserSuspension{
		{Type: PunishmentWarning1, StartsAt: now},
		{Type: PunishmentSuspension, Permanent: true, StartsAt: now, LiftedAt: &liftedAt},
	}
	if got := NextPunishments(liftedPerm, now); len(got) != 1 || got[0] != PunishmentSuspension {
		t.Fatalf("after lifted permanent: got %v, want [%s]", got, PunishmentSuspension)
	}

	// History order must not matter.
	reversed := []*UserSuspension{
		{Type: PunishmentWarning2, StartsAt: now},
		{Type: PunishmentWarning1, StartsAt: now},
	}
	if got := NextPunishments(reversed, now); len(got) != 1 || got[0] != PunishmentSuspension {
		t.Fatalf("unordered history: got %v, want [%s]", got, PunishmentSuspension)
	}
}
