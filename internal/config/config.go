package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every setting the client needs.
type Config struct {
	API      APIConfig
	Realtime RealtimeConfig
	Chat     ChatConfig
	Log      LogConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	api, err := loadAPIConfig()
	if err != nil {
		return nil, err
	}

	realtime, err := loadRealtimeConfig(api.BaseURL)
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		API:      api,
		Realtime: realtime,
		Chat:     chat,
		Log:      loadLogConfig(),
	}, nil
}

// APIConfig describes the admission chatbot HTTP API.
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

func loadAPIConfig() (APIConfig, error) {
	base := strings.TrimSpace(os.Getenv("API_BASE_URL"))
	if base == "" {
		base = "http://localhost:3000/api"
	}

	timeout, err := durationEnv("API_TIMEOUT", 30*time.Second)
	if err != nil {
		return APIConfig{}, err
	}

	return APIConfig{BaseURL: base, Timeout: timeout}, nil
}

// RealtimeConfig describes the live event channel.
type RealtimeConfig struct {
	URL              string
	HandshakeTimeout time.Duration
}

func loadRealtimeConfig(apiBase string) (RealtimeConfig, error) {
	url := strings.TrimSpace(os.Getenv("SOCKET_URL"))
	if url == "" {
		url = deriveSocketURL(apiBase)
	}

	timeout, err := durationEnv("SOCKET_HANDSHAKE_TIMEOUT", 20*time.Second)
	if err != nil {
		return RealtimeConfig{}, err
	}

	return RealtimeConfig{URL: url, HandshakeTimeout: timeout}, nil
}

// deriveSocketURL maps the API base URL onto the websocket endpoint: the
// realtime server lives next to the API, one level above its /api prefix.
func deriveSocketURL(apiBase string) string {
	trimmed := strings.TrimSuffix(apiBase, "/")
	trimmed = strings.TrimSuffix(trimmed, "/api")

	switch {
	case strings.HasPrefix(trimmed, "https://"):
		return "wss://" + strings.TrimPrefix(trimmed, "https://") + "/ws"
	case strings.HasPrefix(trimmed, "http://"):
		return "ws://" + strings.TrimPrefix(trimmed, "http://") + "/ws"
	}
	return trimmed + "/ws"
}

// ChatConfig tunes the session engine.
type ChatConfig struct {
	PageSize     int
	TypeInterval time.Duration
	StatePath    string
}

func loadChatConfig() (ChatConfig, error) {
	pageSize, err := intEnv("CHAT_PAGE_SIZE", 5)
	if err != nil {
		return ChatConfig{}, err
	}
	if pageSize <= 0 {
		return ChatConfig{}, fmt.Errorf("CHAT_PAGE_SIZE must be positive, got %d", pageSize)
	}

	interval, err := durationEnv("CHAT_TYPE_INTERVAL", 20*time.Millisecond)
	if err != nil {
		return ChatConfig{}, err
	}

	return ChatConfig{
		PageSize:     pageSize,
		TypeInterval: interval,
		StatePath:    strings.TrimSpace(os.Getenv("VISITOR_STATE_PATH")),
	}, nil
}

// LogConfig describes log output.
type LogConfig struct {
	FilePath   string
	Production bool
}

func loadLogConfig() LogConfig {
	path := strings.TrimSpace(os.Getenv("LOG_FILE_PATH"))
	if path == "" {
		path = "admissionchat.log"
	}

	env := strings.ToLower(strings.TrimSpace(os.Getenv("GO_ENV")))
	return LogConfig{FilePath: path, Production: env == "production"}
}

func intEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return v, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return v, nil
}
