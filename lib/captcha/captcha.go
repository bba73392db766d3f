// Package captcha talks to the external captcha-solving service. the
// service is untrusted: a returned solution may simply be wrong, which
// only the portal's rejection reveals.
package captcha

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mustafazeydani/NotUyarX/lib/obscipher"
	"github.com/mustafazeydani/NotUyarX/lib/telemetry"

	"github.com/go-resty/resty/v2"
)

type Solver interface {
	Solve(ctx context.Context, image []byte) (string, error)
}

const tokenTTL = 5 * time.Second

type Config struct {
	Endpoint string `json:"endpoint"`
	Secret   string `json:"secret"`
}

type Client struct {
	http   *resty.Client
	config Config
}

func NewClient(config Config) Client {
	client := resty.New()
	client.SetTimeout(time.Second * 30)
	telemetry.InstrumentResty(client, "captcha")

	return Client{
		http:   client,
		config: config,
	}
}

type solveRequest struct {
	Image string `json:"image"`
}

type solveResponse struct {
	Solution string `json:"solution"`
}

func (c Client) Solve(ctx context.Context, image []byte) (string, error) {
	token, err := obscipher.SignSolverToken(c.config.Secret, tokenTTL)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(solveRequest{
		Image: base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return "", err
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("content-type", "application/json").
		SetAuthToken(token).
		SetBody(body).
		Post(c.config.Endpoint)
	if err != nil {
		return "", fmt.Errorf("solve captcha: %w", err)
	}
	if res.StatusCode() != 200 {
		return "", fmt.Errorf("solve captcha: unexpected status %d", res.StatusCode())
	}

	var parsed solveResponse
	err = json.Unmarshal(res.Body(), &parsed)
	if err != nil {
		return "", fmt.Errorf("solve captcha: %w", err)
	}
	if parsed.Solution == "" {
		return "", fmt.Errorf("solve captcha: empty solution")
	}
	return parsed.Solution, nil
}

// Fixed always answers with the same solution, for tests.
type Fixed struct {
	Solution string
}

func (f Fixed) Solve(ctx context.Context, image []byte) (string, error) {
	return f.Solution, nil
}
