package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/beatforge/forge-registry/internal/config"
)

// newFakeGitHub stands up a test server that plays both the OAuth token
// endpoint and the API profile endpoint, and returns a client wired to it.
func newFakeGitHub(t *testing.T, profileStatus int, profile any) *GitHubClient {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "gho_test-token",
			"token_type":   "bearer",
		})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer gho_test-token" {
			t.Errorf("profile request Authorization = %q, want the exchanged token", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(profileStatus)
		_ = json.NewEncoder(w).Encode(profile)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return NewGitHubClient(&config.GitHubConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		APIBaseURL:   server.URL,
		OAuthBaseURL: server.URL,
	})
}

func TestExchangeCode(t *testing.T) {
	name := "Seven"
	client := newFakeGitHub(t, http.StatusOK, map[string]any{
		"id":    int64(77),
		"login": "seven",
		"name":  name,
		"email": "seven@example.com",
	})

	profile, err := client.ExchangeCode(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}
	if profile.ID != 77 || profile.Login != "seven" {
		t.Errorf("profile = %+v, want id 77 login seven", profile)
	}
	if profile.Name == nil || *profile.Name != "Seven" {
		t.Errorf("Name = %v, want Seven", profile.Name)
	}
}

func TestExchangeCode_ProfileRequestFails(t *testing.T) {
	client := newFakeGitHub(t, http.StatusForbidden, map[string]any{"message": "rate limited"})

	if _, err := client.ExchangeCode(context.Background(), "auth-code"); err == nil {
		t.Error("ExchangeCode() = nil error for failing profile request, want error")
	}
}

func TestExchangeCode_IncompleteProfile(t *testing.T) {
	client := newFakeGitHub(t, http.StatusOK, map[string]any{"id": 0, "login": ""})

	if _, err := client.ExchangeCode(context.Background(), "auth-code"); err == nil {
		t.Error("ExchangeCode() = nil error for profile missing id and login, want error")
	}
}
