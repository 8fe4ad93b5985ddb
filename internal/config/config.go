// Package config loads ProfileFlow configuration from an optional YAML file
// with PROFILEFLOW_-prefixed environment variable overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Defaults
const (
	DefaultAPIAddr = ":8080"
	DefaultDBPath  = "/var/lib/profileflow/profileflow.db"
	DefaultLockDir = "/var/run"
	DefaultChannel = "whatsmeow"
	EnvPrefix      = "PROFILEFLOW_"
	envConfigFile  = "PROFILEFLOW_CONFIG"
)

// Config holds the resolved runtime configuration.
type Config struct {
	// Channel selects the messaging transport: "whatsmeow" or "twilio".
	Channel string `koanf:"channel"`
	// APIAddr is the listen address of the operational HTTP API.
	APIAddr string `koanf:"api_addr"`
	// DatabaseDSN is the session/submission store DSN. Postgres DSNs use the
	// Postgres store, anything else is treated as a SQLite path.
	DatabaseDSN string `koanf:"database_dsn"`
	// SchemaPath is an optional path to a YAML field schema. Empty means the
	// embedded default schema.
	SchemaPath string `koanf:"schema_path"`
	// LockDir is the directory for the process lock file.
	LockDir string `koanf:"lock_dir"`

	WhatsApp WhatsAppConfig `koanf:"whatsapp"`
	Twilio   TwilioConfig   `koanf:"twilio"`
}

// WhatsAppConfig holds whatsmeow transport settings.
type WhatsAppConfig struct {
	DBDSN       string `koanf:"db_dsn"`
	QRPath      string `koanf:"qr_path"`
	NumericCode bool   `koanf:"numeric_code"`
}

// TwilioConfig holds Twilio transport settings.
type TwilioConfig struct {
	AccountSID string `koanf:"account_sid"`
	AuthToken  string `koanf:"auth_token"`
	FromNumber string `koanf:"from_number"`
}

// Load resolves configuration from defaults, then the YAML file at path (or
// $PROFILEFLOW_CONFIG when path is empty), then PROFILEFLOW_ environment
// variables. A missing file is only an error when it was named explicitly.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := &Config{
		Channel:     DefaultChannel,
		APIAddr:     DefaultAPIAddr,
		DatabaseDSN: DefaultDBPath,
		LockDir:     DefaultLockDir,
	}

	explicit := path != ""
	if path == "" {
		path = os.Getenv(envConfigFile)
		explicit = path != ""
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if explicit || !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		} else {
			slog.Debug("Loaded config file", "path", path)
		}
	}

	// PROFILEFLOW_WHATSAPP_DB_DSN -> whatsapp.db_dsn
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		for _, section := range []string{"whatsapp_", "twilio_"} {
			if strings.HasPrefix(key, section) {
				return strings.TrimSuffix(section, "_") + "." + strings.TrimPrefix(key, section)
			}
		}
		return key
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment config: %w", err)
	}

	cfg := *defaults
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Channel != "whatsmeow" && cfg.Channel != "twilio" {
		return nil, fmt.Errorf("unknown channel %q (expected whatsmeow or twilio)", cfg.Channel)
	}
	slog.Debug("Configuration resolved", "channel", cfg.Channel, "api_addr", cfg.APIAddr, "schema_path_set", cfg.SchemaPath != "")
	return &cfg, nil
}
