package app

import (
	"context"
	"os"
	"testing"

	"github.com/florianilch/garmin-connect-go/internal/garmin"
)

func TestNew_InvalidConfig(t *testing.T) {
	cfg := validConfig(t)
	cfg.Garmin.Password = ""

	if _, err := New(cfg); err == nil {
		t.Fatal("New() expected error for missing password, got nil")
	}
}

func TestApp_AuthenticatedPersistsSession(t *testing.T) {
	cfg := validConfig(t)
	hs := &countingHandshake{}

	application, err := New(cfg, garmin.WithHandshake(hs))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := os.Stat(cfg.Auth.File); !os.IsNotExist(err) {
		t.Fatalf("token file exists before first use: %v", err)
	}

	client, err := application.Authenticated(context.Background())
	if err != nil {
		t.Fatalf("Authenticated() error = %v", err)
	}
	if !client.IsAuthenticated() {
		t.Error("client not authenticated")
	}
	if _, err := os.Stat(cfg.Auth.File); err != nil {
		t.Errorf("token file not written: %v", err)
	}

	// A second app restores the stored pair without logging in
	restored, err := New(cfg, garmin.WithHandshake(hs))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := restored.Authenticated(context.Background()); err != nil {
		t.Fatalf("Authenticated() error = %v", err)
	}
	if hs.calls != 1 {
		t.Errorf("handshake calls = %d, want 1", hs.calls)
	}
}
