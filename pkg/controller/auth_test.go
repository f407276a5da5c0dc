package controller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/backendex/backendex/pkg/export"
)

func TestOAuthCredentialExchange(t *testing.T) {
	var gotGrant, gotClientID, gotBearer string

	mux := http.NewServeMux()
	mux.HandleFunc("/controller/api/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		gotGrant = r.Form.Get("grant_type")
		gotClientID = r.Form.Get("client_id")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-abc","token_type":"Bearer"}`))
	})
	mux.HandleFunc("/controller/rest/applications", func(w http.ResponseWriter, r *http.Request) {
		gotBearer = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := Config{
		BaseURL:  srv.URL,
		Account:  "acme",
		Username: "reporter",
		Password: "ignored-when-secret-set",
		Secret:   "s3cret",
	}

	client, err := NewClient(context.Background(), cfg, zerolog.Nop(), noopMetrics())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.Applications(context.Background()); err != nil {
		t.Fatal(err)
	}

	if gotGrant != "client_credentials" {
		t.Errorf("grant_type = %q", gotGrant)
	}
	if gotClientID != "reporter@acme" {
		t.Errorf("client_id = %q, want reporter@acme", gotClientID)
	}
	if gotBearer != "Bearer tok-abc" {
		t.Errorf("authorization = %q, want bearer token", gotBearer)
	}
}

func TestOAuthMissingToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token_type":"Bearer"}`))
	}))
	defer srv.Close()

	_, err := NewClient(context.Background(), Config{
		BaseURL:  srv.URL,
		Account:  "acme",
		Username: "reporter",
		Secret:   "s3cret",
	}, zerolog.Nop(), noopMetrics())

	if !export.IsAuth(err) {
		t.Errorf("expected auth error, got %v", err)
	}
}

func TestSessionLoginWithoutCSRFTokenProceeds(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/controller/auth", func(w http.ResponseWriter, r *http.Request) {
		// No anti-forgery cookie: some deployments do not require it.
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "session"})
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/controller/rest/applications", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-CSRF-TOKEN") != "" {
			t.Error("unexpected anti-forgery header")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := NewClient(context.Background(), sessionConfig(srv.URL), zerolog.Nop(), noopMetrics())
	if err != nil {
		t.Fatalf("missing anti-forgery token must not be fatal: %v", err)
	}
	if _, err := client.Applications(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestSessionLoginRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClient(context.Background(), sessionConfig(srv.URL), zerolog.Nop(), noopMetrics())
	if !export.IsAuth(err) {
		t.Errorf("expected auth error, got %v", err)
	}
}

func TestNoCredentialConfigured(t *testing.T) {
	_, err := NewClient(context.Background(), Config{
		BaseURL:  "http://controller.invalid",
		Account:  "acme",
		Username: "reporter",
	}, zerolog.Nop(), noopMetrics())

	if !export.IsConfig(err) {
		t.Errorf("expected config error, got %v", err)
	}
}
