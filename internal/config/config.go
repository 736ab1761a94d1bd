// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// ErrMissingEncryptionKey is returned when SDBROWSER_ENCRYPTION_KEY is unset or empty.
var ErrMissingEncryptionKey = errors.New("SDBROWSER_ENCRYPTION_KEY is required")

// Key derivation modes accepted by SDBROWSER_KEY_DERIVATION.
const (
	KeyDerivationLegacy = "legacy"
	KeyDerivationHKDF   = "hkdf"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	SDAPIBase     string
	SDAppID       string
	EncryptionKey string
	KeyDerivation string
	// SDRateLimit caps outbound requests per second; 0 means unlimited.
	SDRateLimit float64
	ListenAddr  string
	DBPath      string
}

// Load reads configuration from environment variables and returns a validated Config.
// SDBROWSER_ENCRYPTION_KEY is required. Optional variables with defaults:
// SDBROWSER_SD_API_BASE (https://json.schedulesdirect.org/20141201),
// SDBROWSER_SD_APP_ID (sd-browser), SDBROWSER_KEY_DERIVATION (legacy),
// SDBROWSER_SD_RATE_LIMIT (0), SDBROWSER_LISTEN_ADDR (127.0.0.1:8080),
// SDBROWSER_DB_PATH (sdbrowser.db).
func Load() (*Config, error) {
	key := os.Getenv("SDBROWSER_ENCRYPTION_KEY")
	if key == "" {
		return nil, ErrMissingEncryptionKey
	}

	apiBase := "https://json.schedulesdirect.org/20141201"
	if v, ok := os.LookupEnv("SDBROWSER_SD_API_BASE"); ok && v != "" {
		u, err := url.Parse(v)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("SDBROWSER_SD_API_BASE must be an absolute http(s) URL, got %q", v)
		}
		apiBase = strings.TrimRight(v, "/")
	}

	appID := "sd-browser"
	if v, ok := os.LookupEnv("SDBROWSER_SD_APP_ID"); ok && v != "" {
		appID = v
	}

	derivation := KeyDerivationLegacy
	if v, ok := os.LookupEnv("SDBROWSER_KEY_DERIVATION"); ok && v != "" {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != KeyDerivationLegacy && v != KeyDerivationHKDF {
			return nil, fmt.Errorf("SDBROWSER_KEY_DERIVATION must be %q or %q, got %q", KeyDerivationLegacy, KeyDerivationHKDF, v)
		}
		derivation = v
	}

	var rateLimit float64
	if v, ok := os.LookupEnv("SDBROWSER_SD_RATE_LIMIT"); ok && v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("SDBROWSER_SD_RATE_LIMIT has invalid number %q: %w", v, err)
		}
		if parsed < 0 {
			return nil, fmt.Errorf("SDBROWSER_SD_RATE_LIMIT must not be negative, got %v", parsed)
		}
		rateLimit = parsed
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("SDBROWSER_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "sdbrowser.db"
	if v, ok := os.LookupEnv("SDBROWSER_DB_PATH"); ok {
		dbPath = v
	}

	return &Config{
		SDAPIBase:     apiBase,
		SDAppID:       appID,
		EncryptionKey: key,
		KeyDerivation: derivation,
		SDRateLimit:   rateLimit,
		ListenAddr:    listenAddr,
		DBPath:        dbPath,
	}, nil
}
