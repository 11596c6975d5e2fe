package incident

import (
	"testing"
	"time"
)

func TestAccidentCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{AccidentStatusPending, AccidentStatusInProgress, true},
		{AccidentStatusInProgress, AccidentStatusResolved, true},
		{AccidentStatusPending, AccidentStatusArchived, true},
		{AccidentStatusInProgress, AccidentStatusArchived, true},
		{AccidentStatusPending, AccidentStatusResolved, false},
		{AccidentStatusResolved, AccidentStatusInProgress, false},
		{AccidentStatusResolved, AccidentStatusArchived, false},
		{AccidentStatusArchived, AccidentStatusPending, false},
		{AccidentStatusPending, "bogus", false},
	}
	for _, c := range cases {
		if got := AccidentCanTransition(c.from, c.to); got != c.want {
			t.Errorf("AccidentCanTransition(%q, %q) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestConcernCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{ConcernStatusPending, ConcernStatusOngoing, true},
		{ConcernStatusOngoing, ConcernStatusEscalated, true},
		{ConcernStatusOngoing, ConcernStatusResolved, true},
		{ConcernStatusEscalated, ConcernStatusResolved, true},
		{ConcernStatusPending, ConcernStatusResolved, false},
		{ConcernStatusPending, ConcernStatusEscalated, false},
		{ConcernStatusResolved, ConcernStatusOngoing, false},
		{ConcernStatusEscalated, ConcernStatusOngoing, false},
		{ConcernStatusOngoing, ConcernStatusPending, false},
	}
	for _, c := range cases {
		if got := ConcernCanTransition(c.from, c.to); got != c.want {
			t.Errorf("ConcernCanTransition(%q, %q) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestDistributionCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{DistributionStatusAssigned, DistributionStatusAcknowledged, true},
		{DistributionStatusAcknowledged, DistributionStatusInProgress, true},
		{DistributionStatusAcknowledged, DistributionStatusResolved, true},
		{DistributionStatusInProgress, DistributionStatusResolved, true},
		{DistributionStatusAssigned, DistributionStatusInProgress, false},
		{DistributionStatusAssigned, DistributionStatusResolved, false},
		{DistributionStatusResolved, DistributionStatusAssigned, false},
		{DistributionStatusInProgress, DistributionStatusAssigned, false},
	}
	for _, c := range cases {
		if got := DistributionCanTransition(c.from, c.to); got != c.want {
			t.Errorf("DistributionCanTransition(%q, %q) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestConcernEditable(t *testing.T) {
	if !(&Concern{Status: ConcernStatusPending}).Editable() {
		t.Fatal("pending concern should be editable")
	}
	for _, status := range []string{ConcernStatusOngoing, ConcernStatusEscalated, ConcernStatusResolved} {
		if (&Concern{Status: status}).Editable() {
			t.Fatalf("%s concern should not be editable", status)
		}
	}
	var nilConcern *Concern
	if nilConcern.Editable() {
		t.Fatal("nil concern should not be editable")
	}
}

func TestDistributionActive(t *testing.T) {
	for _, status := range []string{DistributionStatusAssigned, DistributionStatusAcknowledged, DistributionStatusInProgress} {
		if !(&ConcernDistribution{Status: status}).Active() {
			t.Fatalf("%s distribution should be active", status)
		}
	}
	now := time.Now()
	d := &ConcernDistribution{Status: DistributionStatusResolved, ResolvedAt: &now}
	if d.Active() {
		t.Fatal("resolved distribution should not be active")
	}
}

func TestValidCategory(t *testing.T) {
	for _, c := range []string{CategoryFire, CategoryFlood, CategoryAccident, CategoryCrime, CategoryInfra, CategoryOther} {
		if !ValidCategory(c) {
			t.Errorf("ValidCategory(%q) = false", c)
		}
	}
	if ValidCategory("earthquake") || ValidCategory("") {
		t.Error("unexpected category accepted")
	}
}

func TestValidSeverity(t *testing.T) {
	for _, s := range []string{SeverityLow, SeverityMedium, SeverityHigh} {
		if !ValidSeverity(s) {
			t.Errorf("ValidSeverity(%q) = false", s)
		}
	}
	if ValidSeverity("critical") || ValidSeverity("") {
		t.Error("unexpected severity accepted")
	}
}

func TestValidConcernType(t *testing.T) {
	for _, ct := range []string{ConcernTypeText, ConcernTypeVoice, ConcernTypeImage} {
		if !ValidConcernType(ct) {
			t.Errorf("ValidConcernType(%q) = false", ct)
		}
	}
	if ValidConcernType("video") {
		t.Error("unexpected concern type accepted")
	}
}
