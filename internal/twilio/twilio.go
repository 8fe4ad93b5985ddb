// Package twilio wraps the Twilio REST client for WhatsApp delivery through
// the Twilio Business API.
package twilio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Sender is an interface for sending messages through Twilio.
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// Opts holds configuration options for the Twilio client.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// Option defines a configuration option for the Twilio client.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) {
		o.AccountSID = sid
	}
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) {
		o.AuthToken = token
	}
}

// WithFromNumber sets the Twilio sender number.
func WithFromNumber(number string) Option {
	return func(o *Opts) {
		o.FromNumber = number
	}
}

// Client wraps the Twilio REST client.
type Client struct {
	restClient *twilio.RestClient
	fromNumber string
}

// NewClient creates a new Twilio client. Options fall back to the
// TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER environment
// variables when unset.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromNumber == "" {
		cfg.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("Twilio NewClient options resolved", "accountSID_set", cfg.AccountSID != "", "fromNumber_set", cfg.FromNumber != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("twilio credentials not set")
	}
	if cfg.FromNumber == "" {
		return nil, fmt.Errorf("twilio from number not set")
	}

	restClient := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &Client{restClient: restClient, fromNumber: cfg.FromNumber}, nil
}

// SendMessage sends a WhatsApp message through Twilio.
func (c *Client) SendMessage(ctx context.Context, to string, body string) error {
	if to == "" {
		return fmt.Errorf("recipient cannot be empty")
	}
	if body == "" {
		return fmt.Errorf("message body cannot be empty")
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(whatsAppAddress(to))
	params.SetFrom(whatsAppAddress(c.fromNumber))
	params.SetBody(body)

	slog.Debug("Sending Twilio message", "to", to, "body_length", len(body))
	if _, err := c.restClient.Api.CreateMessage(params); err != nil {
		slog.Error("Failed to send Twilio message", "error", err, "to", to)
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	return nil
}

// whatsAppAddress prefixes a phone number with the Twilio WhatsApp scheme.
func whatsAppAddress(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	if !strings.HasPrefix(number, "+") {
		number = "+" + number
	}
	return "whatsapp:" + number
}
