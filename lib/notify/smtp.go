package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"github.com/mazen160/go-random"
)

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
	To           string `json:"to"`
}

// Smtp delivers notifications as plain-text emails. useful where a
// push channel is not available, at the cost of Dismiss doing nothing.
type Smtp struct {
	config SmtpConfig
}

func NewSmtp(config SmtpConfig) Smtp {
	return Smtp{config: config}
}

func (s Smtp) Push(ctx context.Context, notification Notification) (string, error) {
	if notification.Silent {
		// progress chatter has no business in an inbox
		return random.String(16)
	}

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("NotUyarX <%s>", s.config.EmailAddress)
	mail.To = []string{s.config.To}
	mail.Subject = notification.Title
	mail.Text = []byte(notification.Body)

	err := mail.Send(
		fmt.Sprintf("%s:%d", s.config.Server, s.config.Port),
		smtp.PlainAuth("", s.config.EmailAddress, s.config.Password, s.config.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(fmt.Sprintf("%s:%d", s.config.Server, s.config.Port), nil)
	}
	if err != nil {
		return "", err
	}
	return random.String(16)
}

func (s Smtp) Dismiss(ctx context.Context, id string) error {
	return nil
}
