package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load with defaults failed: %v", err)
	}
	if cfg.Channel != DefaultChannel {
		t.Errorf("channel = %s, want %s", cfg.Channel, DefaultChannel)
	}
	if cfg.APIAddr != DefaultAPIAddr {
		t.Errorf("api_addr = %s, want %s", cfg.APIAddr, DefaultAPIAddr)
	}
	if cfg.DatabaseDSN != DefaultDBPath {
		t.Errorf("database_dsn = %s, want %s", cfg.DatabaseDSN, DefaultDBPath)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profileflow.yaml")
	content := `
channel: twilio
api_addr: ":9090"
database_dsn: postgres://localhost/profileflow
twilio:
  account_sid: AC123
  from_number: "+15550001111"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Channel != "twilio" {
		t.Errorf("channel = %s, want twilio", cfg.Channel)
	}
	if cfg.APIAddr != ":9090" {
		t.Errorf("api_addr = %s, want :9090", cfg.APIAddr)
	}
	if cfg.Twilio.AccountSID != "AC123" {
		t.Errorf("twilio account_sid = %s, want AC123", cfg.Twilio.AccountSID)
	}
	if cfg.Twilio.FromNumber != "+15550001111" {
		t.Errorf("twilio from_number = %s", cfg.Twilio.FromNumber)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profileflow.yaml")
	if err := os.WriteFile(path, []byte("api_addr: \":9090\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PROFILEFLOW_API_ADDR", ":7070")
	t.Setenv("PROFILEFLOW_WHATSAPP_DB_DSN", "/tmp/wa.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.APIAddr != ":7070" {
		t.Errorf("api_addr = %s, want env override :7070", cfg.APIAddr)
	}
	if cfg.WhatsApp.DBDSN != "/tmp/wa.db" {
		t.Errorf("whatsapp db_dsn = %s, want env override", cfg.WhatsApp.DBDSN)
	}
}

func TestLoadRejectsUnknownChannel(t *testing.T) {
	t.Setenv("PROFILEFLOW_CHANNEL", "carrier-pigeon")
	if _, err := Load(""); err == nil {
		t.Error("unknown channel accepted")
	}
}

func TestLoadRejectsMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing explicit config file accepted")
	}
}
