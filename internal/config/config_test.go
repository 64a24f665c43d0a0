package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.API.BaseURL != "http://localhost:3000/api" {
		t.Fatalf("unexpected API base: %s", cfg.API.BaseURL)
	}
	if cfg.Realtime.URL != "ws://localhost:3000/ws" {
		t.Fatalf("unexpected socket URL: %s", cfg.Realtime.URL)
	}
	if cfg.Realtime.HandshakeTimeout != 20*time.Second {
		t.Fatalf("unexpected handshake timeout: %v", cfg.Realtime.HandshakeTimeout)
	}
	if cfg.Chat.PageSize != 5 {
		t.Fatalf("unexpected page size: %d", cfg.Chat.PageSize)
	}
	if cfg.Chat.TypeInterval != 20*time.Millisecond {
		t.Fatalf("unexpected type interval: %v", cfg.Chat.TypeInterval)
	}
}

func TestSocketURLDerivedFromAPIBase(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://tuyensinh.tdtu.edu.vn/api/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Realtime.URL != "wss://tuyensinh.tdtu.edu.vn/ws" {
		t.Fatalf("unexpected socket URL: %s", cfg.Realtime.URL)
	}
}

func TestSocketURLOverride(t *testing.T) {
	t.Setenv("SOCKET_URL", "ws://127.0.0.1:9000/ws")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Realtime.URL != "ws://127.0.0.1:9000/ws" {
		t.Fatalf("override ignored: %s", cfg.Realtime.URL)
	}
}

func TestInvalidPageSize(t *testing.T) {
	t.Setenv("CHAT_PAGE_SIZE", "0")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-positive page size")
	}
}

func TestInvalidDuration(t *testing.T) {
	t.Setenv("API_TIMEOUT", "soon")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed duration")
	}
}
