package pricemonitor

import (
	"context"
	"fmt"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/jordan-wright/email"
)

// Notifier is told about every price change the monitor detects.
type Notifier interface {
	NotifyChange(ctx context.Context, change Change) error
}

type EmailOptions struct {
	Host     string   `json:"host"`
	Port     int      `json:"port"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	From     string   `json:"from"`
	To       []string `json:"to"`
}

func (o EmailOptions) Enabled() bool {
	return o.Host != "" && len(o.To) > 0
}

// EmailNotifier sends one plain text email per price change over SMTP.
type EmailNotifier struct {
	opts EmailOptions
	send func(e *email.Email) error
}

func NewEmailNotifier(opts EmailOptions) EmailNotifier {
	if opts.Port == 0 {
		opts.Port = 587
	}
	addr := opts.Host + ":" + strconv.Itoa(opts.Port)

	var auth smtp.Auth
	if opts.Username != "" {
		auth = smtp.PlainAuth("", opts.Username, opts.Password, opts.Host)
	}

	return EmailNotifier{
		opts: opts,
		send: func(e *email.Email) error {
			return e.Send(addr, auth)
		},
	}
}

func formatPercent(pct float64) string {
	return strconv.FormatFloat(pct, 'f', 2, 64) + "%"
}

func (n EmailNotifier) NotifyChange(ctx context.Context, change Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e := email.NewEmail()
	e.From = n.opts.From
	e.To = n.opts.To
	e.Subject = fmt.Sprintf(
		"Price change: %s %s -> %s",
		change.SourceName,
		change.OldPrice,
		change.NewPrice,
	)

	var body strings.Builder
	fmt.Fprintf(&body, "Source: %s\n", change.SourceName)
	fmt.Fprintf(&body, "URL: %s\n", change.URL)
	fmt.Fprintf(&body, "Old price: %s\n", change.OldPrice)
	fmt.Fprintf(&body, "New price: %s\n", change.NewPrice)
	fmt.Fprintf(&body, "Change: %s\n", formatPercent(change.ChangePercent))
	fmt.Fprintf(&body, "Detected at: %s\n", change.DetectedAt.Format(time.DateTime))
	e.Text = []byte(body.String())

	err := n.send(e)
	if err != nil {
		return fmt.Errorf("send price change email: %w", err)
	}
	return nil
}
