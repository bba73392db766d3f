package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/mustafazeydani/NotUyarX/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"github.com/mazen160/go-random"
)

type NtfyConfig struct {
	// Endpoint defaults to the public ntfy.sh instance.
	Endpoint string `json:"endpoint"`
	Topic    string `json:"topic"`
	// Token authorizes publishing on protected topics, optional.
	Token string `json:"token"`
}

// Ntfy publishes notifications to an ntfy topic over plain HTTP.
type Ntfy struct {
	config NtfyConfig
	http   *resty.Client
}

func NewNtfy(config NtfyConfig) *Ntfy {
	if config.Endpoint == "" {
		config.Endpoint = "https://ntfy.sh"
	}

	client := resty.New()
	client.SetBaseURL(config.Endpoint)
	client.SetTimeout(time.Second * 15)
	if config.Token != "" {
		client.SetAuthToken(config.Token)
	}
	telemetry.InstrumentResty(client, "notify/ntfy")

	return &Ntfy{config: config, http: client}
}

func (n *Ntfy) Push(ctx context.Context, notification Notification) (string, error) {
	id, err := random.String(16)
	if err != nil {
		return "", err
	}

	priority := "default"
	if notification.Silent {
		priority = "min"
	}

	res, err := n.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "text/plain").
		SetHeader("Title", notification.Title).
		SetHeader("Priority", priority).
		SetBody(notification.Body).
		Post("/" + n.config.Topic)
	if err != nil {
		return "", err
	}
	if res.IsError() {
		return "", fmt.Errorf("ntfy rejected publish: %s: %s", res.Status(), res.String())
	}
	return id, nil
}

// Dismiss is a no-op: ntfy cannot retract a published message. the
// transient messages go out at min priority instead so clients keep
// them out of the way.
func (n *Ntfy) Dismiss(ctx context.Context, id string) error {
	return nil
}
