package services

import (
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
)

func TestSignAndParseToken(t *testing.T) {
	as := &authService{jwtSecretKey: "test-secret"}
	u := &types.User{ID: uuid.New(), Role: types.RoleCitizen}

	now := time.Now()
	token, err := as.signToken(u, []string{types.AbilityAccessAPI}, now, time.Hour)
	if err != nil {
		t.Fatalf("signToken: %v", err)
	}

	claims, err := as.parseToken(token)
	if err != nil {
		t.Fatalf("parseToken: %v", err)
	}
	if claims.Subject != u.ID.String() {
		t.Errorf("subject = %q, want %q", claims.Subject, u.ID)
	}
	if claims.Role != types.RoleCitizen {
		t.Errorf("role = %q", claims.Role)
	}
	if !claims.HasAbility(types.AbilityAccessAPI) {
		t.Error("access ability missing")
	}
	if claims.HasAbility(types.AbilityRefreshToken) {
		t.Error("unexpected refresh ability")
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	signer := &authService{jwtSecretKey: "secret-a"}
	verifier := &authService{jwtSecretKey: "secret-b"}
	u := &types.User{ID: uuid.New(), Role: types.RoleCitizen}

	token, err := signer.signToken(u, []string{types.AbilityAccessAPI}, time.Now(), time.Hour)
	if err != nil {
		t.Fatalf("signToken: %v", err)
	}
	if _, err := verifier.parseToken(token); err == nil {
		t.Fatal("token signed with another secret should be rejected")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	as := &authService{jwtSecretKey: "test-secret"}
	u := &types.User{ID: uuid.New(), Role: types.RoleCitizen}

	token, err := as.signToken(u, []string{types.AbilityAccessAPI}, time.Now().Add(-2*time.Hour), time.Hour)
	if err != nil {
		t.Fatalf("signToken: %v", err)
	}
	if _, err := as.parseToken(token); err == nil {
		t.Fatal("expired token should be rejected")
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	as := &authService{jwtSecretKey: "test-secret"}
	for _, raw := range []string{"", "   ", "not.a.jwt"} {
		if _, err := as.parseToken(raw); err == nil {
			t.Errorf("parseToken(%q) should fail", raw)
		}
	}
}

func TestGenerateOTPCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		code, err := generateOTPCode(6)
		if err != nil {
			t.Fatalf("generateOTPCode: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("code %q has length %d", code, len(code))
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("code %q contains non-digit %q", code, r)
			}
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Fatal("codes do not vary")
	}
}
