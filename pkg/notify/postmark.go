package notify

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/mrz1836/postmark"
)

// Config holds Postmark credentials and alert recipients.
// Email alerts are disabled when the server token is empty.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	From                 string `env:"ALERT_FROM"`
	To                   string `env:"ALERT_TO"`
}

// Enabled reports whether email alerts are configured.
func (c Config) Enabled() bool { return c.PostmarkServerToken != "" }

// PostmarkClient is the part of the Postmark API the notifier uses.
type PostmarkClient interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

// Postmark emails alerts to the operator.
type Postmark struct {
	client PostmarkClient
	from   string
	to     string
}

// NewPostmark validates cfg and returns an email notifier.
func NewPostmark(cfg Config) (*Postmark, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	}
	if cfg.PostmarkAccountToken == "" {
		return nil, fmt.Errorf("%w: PostmarkAccountToken is required", ErrInvalidConfig)
	}
	return NewPostmarkWithClient(postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken), cfg.From, cfg.To)
}

// NewPostmarkWithClient returns an email notifier over an existing client.
// to may list several comma-separated addresses.
func NewPostmarkWithClient(client PostmarkClient, from, to string) (*Postmark, error) {
	if _, err := mail.ParseAddress(from); err != nil {
		return nil, fmt.Errorf("%w: ALERT_FROM must be a valid email address", ErrInvalidConfig)
	}
	if strings.TrimSpace(to) == "" {
		return nil, fmt.Errorf("%w: ALERT_TO is required", ErrInvalidConfig)
	}
	if _, err := mail.ParseAddressList(to); err != nil {
		return nil, fmt.Errorf("%w: ALERT_TO must list valid email addresses", ErrInvalidConfig)
	}
	return &Postmark{client: client, from: from, to: to}, nil
}

// Notify implements Notifier.
func (p *Postmark) Notify(ctx context.Context, a Alert) error {
	resp, err := p.client.SendEmail(ctx, postmark.Email{
		From:     p.from,
		To:       p.to,
		Subject:  "[billsync] " + a.Subject,
		Tag:      "billing-alert",
		TextBody: a.Body(),
	})
	if err != nil {
		return errors.Join(ErrFailedToNotify, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrFailedToNotify, fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}
	return nil
}
