// Package notify forwards unresolved user questions to a human operator.
//
// This file implements the Twilio-backed notifier that pushes a message
// to the staff channel.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// messageCreator defines the minimal Twilio surface used, so tests can
// substitute a mock.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// Opts holds configuration options for the Twilio notifier.
type Opts struct {
	AccountSID string
	AuthToken  string
	From       string
	StaffTo    string
}

// Option defines a configuration option for the Twilio notifier.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFrom sets the sender number.
func WithFrom(from string) Option {
	return func(o *Opts) { o.From = from }
}

// WithStaffTo sets the staff number escalations are pushed to.
func WithStaffTo(to string) Option {
	return func(o *Opts) { o.StaffTo = to }
}

// TwilioNotifier pushes escalations to a staff number through the Twilio
// REST API.
type TwilioNotifier struct {
	api  messageCreator
	from string
	to   string
}

// NewTwilioNotifier creates a notifier, falling back to the TWILIO_*
// environment variables for unset options.
func NewTwilioNotifier(opts ...Option) (*TwilioNotifier, error) {
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
	if cfg.From == "" {
		cfg.From = os.Getenv("TWILIO_FROM_NUMBER")
	}
	if cfg.StaffTo == "" {
		cfg.StaffTo = os.Getenv("TWILIO_STAFF_NUMBER")
	}
	slog.Debug("Twilio notifier config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"From_set", cfg.From != "",
		"StaffTo_set", cfg.StaffTo != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.From == "" || cfg.StaffTo == "" {
		return nil, fmt.Errorf("from and staff numbers must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioNotifier{api: client.Api, from: cfg.From, to: cfg.StaffTo}, nil
}

// Notify pushes the user's display name and unresolved question to the
// staff number. Failures are logged, never propagated.
func (n *TwilioNotifier) Notify(ctx context.Context, displayName, question string) {
	body := fmt.Sprintf("用戶 %s 提交了回饋請求，需要工作人員處理：\n%s", displayName, question)

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(n.to)
	params.SetFrom(n.from)
	params.SetBody(body)

	if _, err := n.api.CreateMessage(params); err != nil {
		slog.Error("escalation push failed", "error", err, "display_name", displayName)
		return
	}
	slog.Info("escalation pushed to staff", "display_name", displayName)
}
