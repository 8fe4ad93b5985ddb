// ProfileFlow collects driver profiles over WhatsApp through a conversational
// form and stores the finalized submissions for recruiters.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/OpenHaul/ProfileFlow/internal/api"
	"github.com/OpenHaul/ProfileFlow/internal/config"
	"github.com/OpenHaul/ProfileFlow/internal/flow"
	"github.com/OpenHaul/ProfileFlow/internal/lockfile"
	"github.com/OpenHaul/ProfileFlow/internal/messaging"
	"github.com/OpenHaul/ProfileFlow/internal/schema"
	"github.com/OpenHaul/ProfileFlow/internal/store"
	"github.com/OpenHaul/ProfileFlow/internal/twilio"
	"github.com/OpenHaul/ProfileFlow/internal/util"
	"github.com/OpenHaul/ProfileFlow/internal/whatsapp"
	"github.com/joho/godotenv"
)

// Flags holds command-line flag values. Flags override config file and
// environment settings.
type Flags struct {
	ConfigPath  string
	APIAddr     string
	DBDSN       string
	SchemaPath  string
	Channel     string
	QRPath      string
	NumericCode bool
}

func main() {
	if err := run(); err != nil {
		slog.Error("ProfileFlow exiting with error", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	initializeLogger()
	loadEnvironmentConfig()

	flags := parseFlags()
	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return err
	}
	applyFlagOverrides(cfg, flags)

	lock, err := lockfile.AcquireLock(cfg.LockDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	sch, err := loadSchema(cfg)
	if err != nil {
		return err
	}
	engine := flow.NewEngine(sch, st)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	msgService, webhook, err := buildMessagingService(cfg)
	if err != nil {
		return err
	}
	if err := msgService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start messaging service: %w", err)
	}
	defer msgService.Stop()

	handler := messaging.NewResponseHandler(engine, msgService)
	handler.Start(ctx)

	server := api.NewServer(cfg.APIAddr, engine, st, webhook)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	slog.Info("ProfileFlow running", "channel", cfg.Channel, "api_addr", cfg.APIAddr)
	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("API server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), api.DefaultShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("API server shutdown failed", "error", err)
	}
	return nil
}

// initializeLogger sets up structured logging. PROFILEFLOW_DEBUG enables
// debug-level output.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("PROFILEFLOW_DEBUG", false) {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// loadEnvironmentConfig loads a .env file when present.
func loadEnvironmentConfig() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "reason", err)
	} else {
		slog.Debug("Environment variables loaded from .env file")
	}
}

func parseFlags() Flags {
	var flags Flags
	flag.StringVar(&flags.ConfigPath, "config", "", "Path to YAML config file")
	flag.StringVar(&flags.APIAddr, "api-addr", "", "Listen address for the operational HTTP API")
	flag.StringVar(&flags.DBDSN, "db", "", "Session store DSN (Postgres URL or SQLite path)")
	flag.StringVar(&flags.SchemaPath, "schema", "", "Path to YAML field schema (default: embedded schema)")
	flag.StringVar(&flags.Channel, "channel", "", "Messaging transport: whatsmeow or twilio")
	flag.StringVar(&flags.QRPath, "qr-output", "", "Write WhatsApp login QR code to this file")
	flag.BoolVar(&flags.NumericCode, "numeric-code", false, "Print a numeric WhatsApp login code instead of a QR code")
	flag.Parse()
	return flags
}

func applyFlagOverrides(cfg *config.Config, flags Flags) {
	if flags.APIAddr != "" {
		cfg.APIAddr = flags.APIAddr
	}
	if flags.DBDSN != "" {
		cfg.DatabaseDSN = flags.DBDSN
	}
	if flags.SchemaPath != "" {
		cfg.SchemaPath = flags.SchemaPath
	}
	if flags.Channel != "" {
		cfg.Channel = flags.Channel
	}
	if flags.QRPath != "" {
		cfg.WhatsApp.QRPath = flags.QRPath
	}
	if flags.NumericCode {
		cfg.WhatsApp.NumericCode = true
	}
}

// openStore selects the session store backend from the DSN.
func openStore(cfg *config.Config) (store.Store, error) {
	if store.DetectDSNType(cfg.DatabaseDSN) == "postgres" {
		slog.Info("Using Postgres session store")
		return store.NewPostgresStore(store.WithPostgresDSN(cfg.DatabaseDSN))
	}
	slog.Info("Using SQLite session store", "path", cfg.DatabaseDSN)
	return store.NewSQLiteStore(store.WithSQLiteDSN(cfg.DatabaseDSN))
}

// loadSchema loads the field schema from the configured path, falling back to
// the embedded default.
func loadSchema(cfg *config.Config) (*schema.Schema, error) {
	if cfg.SchemaPath != "" {
		slog.Info("Loading field schema", "path", cfg.SchemaPath)
		return schema.LoadFile(cfg.SchemaPath)
	}
	return schema.Default()
}

// buildMessagingService constructs the configured transport. The returned
// webhook handler is non-nil only for the Twilio transport.
func buildMessagingService(cfg *config.Config) (messaging.Service, http.HandlerFunc, error) {
	switch cfg.Channel {
	case "twilio":
		client, err := twilio.NewClient(
			twilio.WithAccountSID(cfg.Twilio.AccountSID),
			twilio.WithAuthToken(cfg.Twilio.AuthToken),
			twilio.WithFromNumber(cfg.Twilio.FromNumber),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Twilio client: %w", err)
		}
		svc := messaging.NewTwilioService(client)
		return svc, svc.WebhookHandler(), nil
	default:
		opts := buildWhatsAppOptions(cfg)
		client, err := whatsapp.NewClient(opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create WhatsApp client: %w", err)
		}
		return messaging.NewWhatsAppService(client), nil, nil
	}
}

func buildWhatsAppOptions(cfg *config.Config) []whatsapp.Option {
	var opts []whatsapp.Option
	if cfg.WhatsApp.DBDSN != "" {
		opts = append(opts, whatsapp.WithDBDSN(cfg.WhatsApp.DBDSN))
	}
	if cfg.WhatsApp.QRPath != "" {
		opts = append(opts, whatsapp.WithQRCodeOutput(cfg.WhatsApp.QRPath))
	}
	if cfg.WhatsApp.NumericCode {
		opts = append(opts, whatsapp.WithNumericCode())
	}
	return opts
}
