package auth

import (
	"context"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
)

func TestAuthorize(t *testing.T) {
	admin := &Principal{UserID: "a", Roles: []model.Role{model.RoleAdmin}}
	participant := &Principal{UserID: "p", Roles: []model.Role{model.RoleParticipant}}
	both := &Principal{UserID: "b", Roles: []model.Role{model.RoleParticipant, model.RoleAdmin}}

	tests := []struct {
		name     string
		p        *Principal
		required []model.Role
		want     bool
	}{
		{"nil principal", nil, nil, false},
		{"any authenticated", participant, nil, true},
		{"admin on admin route", admin, []model.Role{model.RoleAdmin}, true},
		{"participant on admin route", participant, []model.Role{model.RoleAdmin}, false},
		{"admin on participant route", admin, []model.Role{model.RoleParticipant}, false},
		{"dual role", both, []model.Role{model.RoleParticipant}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Authorize(tt.p, tt.required...); got != tt.want {
				t.Errorf("Authorize() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatal(err)
	}
	if hash == "hunter22" {
		t.Fatal("hash equals plaintext")
	}
	if !CheckPassword(hash, "hunter22") {
		t.Error("CheckPassword rejected the right password")
	}
	if CheckPassword(hash, "hunter23") {
		t.Error("CheckPassword accepted the wrong password")
	}
}

func TestTokensRoundTrip(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	u := &model.User{ID: "user-1", Email: "a@example.com", Roles: []model.Role{model.RoleAdmin}}

	token, err := tokens.Issue(u)
	if err != nil {
		t.Fatal(err)
	}
	p, err := tokens.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if p.UserID != u.ID || p.Email != u.Email || !Authorize(p, model.RoleAdmin) {
		t.Errorf("principal = %+v", p)
	}
}

func TestTokensRejectsTampering(t *testing.T) {
	u := &model.User{ID: "user-1", Roles: []model.Role{model.RoleParticipant}}
	token, err := NewTokens("secret", time.Hour).Issue(u)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewTokens("other", time.Hour).Verify(token); err != ErrInvalidToken {
		t.Errorf("Verify with wrong secret = %v, want ErrInvalidToken", err)
	}
	if _, err := NewTokens("secret", time.Hour).Verify("not-a-token"); err != ErrInvalidToken {
		t.Errorf("Verify garbage = %v, want ErrInvalidToken", err)
	}
}

func TestTokensExpire(t *testing.T) {
	tokens := NewTokens("secret", time.Minute)
	tokens.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := tokens.Issue(&model.User{ID: "user-1"})
	if err != nil {
		t.Fatal(err)
	}
	tokens.now = time.Now
	if _, err := tokens.Verify(token); err != ErrInvalidToken {
		t.Errorf("Verify expired = %v, want ErrInvalidToken", err)
	}
}

func TestPrincipalContext(t *testing.T) {
	ctx := context.Background()
	if FromContext(ctx) != nil {
		t.Fatal("empty context returned a principal")
	}
	p := &Principal{UserID: "x"}
	if got := FromContext(WithPrincipal(ctx, p)); got != p {
		t.Errorf("FromContext = %v, want %v", got, p)
	}
}
