package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

// ServerConfig configures the reference backend.
type ServerConfig struct {
	Port         int
	MasterSecret string
	GinMode      string
	DBPath       string
	TLSCertFile  string
	TLSKeyFile   string
	TokenExpiry  time.Duration
	LogLevel     string
}

func LoadServerConfig() (ServerConfig, error) {
	return LoadServerConfigFromEnv(osEnv{})
}

func LoadServerConfigFromEnv(env Env) (ServerConfig, error) {
	cfg := ServerConfig{
		Port:        3000,
		GinMode:     "release",
		DBPath:      "kindred.db",
		TokenExpiry: 7 * 24 * time.Hour,
		LogLevel:    "info",
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return ServerConfig{}, fmt.Errorf("invalid PORT")
		}
		cfg.Port = port
	}

	cfg.MasterSecret = env.Getenv("MASTER_SECRET")
	if cfg.MasterSecret == "" {
		return ServerConfig{}, fmt.Errorf("MASTER_SECRET is required")
	}

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}
	if raw := env.Getenv("DB_PATH"); raw != "" {
		cfg.DBPath = raw
	}
	if raw := env.Getenv("LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}

	cfg.TLSCertFile = env.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = env.Getenv("TLS_KEY_FILE")

	if raw := env.Getenv("TOKEN_EXPIRY_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return ServerConfig{}, fmt.Errorf("invalid TOKEN_EXPIRY_SECONDS")
		}
		cfg.TokenExpiry = time.Duration(seconds) * time.Second
	}

	return cfg, nil
}

// ClientConfig configures the SDK and the CLI.
type ClientConfig struct {
	APIBaseURL string
	SocketURL  string
	StateDir   string
	LogLevel   string
}

func LoadClientConfig() (ClientConfig, error) {
	return LoadClientConfigFromEnv(osEnv{})
}

func LoadClientConfigFromEnv(env Env) (ClientConfig, error) {
	cfg := ClientConfig{
		APIBaseURL: "http://localhost:3000",
		SocketURL:  "ws://localhost:3000",
		LogLevel:   "info",
	}

	if raw := env.Getenv("KINDRED_API_URL"); raw != "" {
		cfg.APIBaseURL = raw
	}
	if raw := env.Getenv("KINDRED_SOCKET_URL"); raw != "" {
		cfg.SocketURL = raw
	}
	if raw := env.Getenv("LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}

	if raw := env.Getenv("KINDRED_STATE_DIR"); raw != "" {
		cfg.StateDir = raw
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return ClientConfig{}, fmt.Errorf("cannot resolve home dir: %w", err)
		}
		cfg.StateDir = filepath.Join(home, ".kindred")
	}

	return cfg, nil
}
