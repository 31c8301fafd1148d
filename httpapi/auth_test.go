package httpapi_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/kbukum/kalikit/httpapi"
)

func authConfig() httpapi.AuthConfig {
	return httpapi.AuthConfig{
		Enabled:  true,
		Secret:   "test-secret",
		Method:   "HS256",
		Issuer:   "kalikit",
		Audience: "kalikit-api",
	}
}

func TestTokens_IssueParse(t *testing.T) {
	tokens, err := httpapi.NewTokens(authConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	token, err := tokens.Issue("ci-runner", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	claims, err := tokens.Parse(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Subject != "ci-runner" {
		t.Errorf("expected subject ci-runner, got %q", claims.Subject)
	}
}

func TestTokens_Rejects(t *testing.T) {
	tokens, _ := httpapi.NewTokens(authConfig())

	other := authConfig()
	other.Secret = "other-secret"
	forged, _ := httpapi.NewTokens(other)
	token, _ := forged.Issue("mallory", time.Minute)
	if _, err := tokens.Parse(token); err == nil {
		t.Error("expected a token signed with another secret to be rejected")
	}

	other = authConfig()
	other.Audience = "someone-else"
	foreign, _ := httpapi.NewTokens(other)
	token, _ = foreign.Issue("ci-runner", time.Minute)
	if _, err := tokens.Parse(token); err == nil {
		t.Error("expected a token for another audience to be rejected")
	}

	if _, err := tokens.Parse("not.a.token"); err == nil {
		t.Error("expected garbage to be rejected")
	}
}

func TestNewTokens_Invalid(t *testing.T) {
	if _, err := httpapi.NewTokens(httpapi.AuthConfig{Method: "HS256"}); err == nil {
		t.Error("expected an error without a secret")
	}
	if _, err := httpapi.NewTokens(httpapi.AuthConfig{Secret: "s", Method: "RS256"}); err == nil {
		t.Error("expected an error for a non-HMAC method")
	}
}

func TestAuthMiddleware(t *testing.T) {
	srv := newServer(t, httpapi.Config{Auth: authConfig()})
	tokens, _ := httpapi.NewTokens(authConfig())
	valid, _ := tokens.Issue("ci-runner", time.Minute)
	expired, _ := tokens.Issue("ci-runner", -time.Minute)

	tests := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"no token", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, "TOKEN_EXPIRED"},
		{"garbage", "Bearer nope", http.StatusUnauthorized, "INVALID_TOKEN"},
		{"valid", "Bearer " + valid, http.StatusOK, ""},
		{"lowercase scheme", "bearer " + valid, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var header []string
			if tt.header != "" {
				header = []string{"Authorization", tt.header}
			}
			rec := do(t, srv, http.MethodGet, "/v1/actions", nil, header...)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if tt.code != "" {
				if got := decode[errorEnvelope](t, rec).Error.Code; got != tt.code {
					t.Errorf("expected code %s, got %s", tt.code, got)
				}
			}
		})
	}

	if rec := do(t, srv, http.MethodGet, "/health", nil); rec.Code != http.StatusOK {
		t.Errorf("expected /health to stay open, got %d", rec.Code)
	}
}
