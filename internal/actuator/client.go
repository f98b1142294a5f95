package actuator

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Versifine/teleop/internal/motion"
)

// ServoRequest is the body of one servo request.
type ServoRequest struct {
	ServoID int     `json:"servo_id"`
	Angle   float64 `json:"angle"`
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

var defaultConfig = Config{
	BaseURL: "http://127.0.0.1:5000/api",
	Timeout: 500 * time.Millisecond,
}

// Client posts control and servo commands to the remote actuator. Each call
// is a single attempt; callers decide whether to try again later.
type Client struct {
	client http.Client
	config Config
}

func NewClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = &defaultConfig
	}
	c := *cfg
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return &Client{
		client: http.Client{},
		config: c,
	}
}

func (c *Client) Config() Config {
	return c.config
}

func (c *Client) SendControl(ctx context.Context, cmd motion.Command) error {
	return c.post(ctx, "/control", cmd)
}

func (c *Client) SendServo(ctx context.Context, servoID int, angle float64) error {
	return c.post(ctx, "/servo", ServoRequest{ServoID: servoID, Angle: angle})
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return wrapTransport(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return wrapTransport(err)
	}
	if resp.StatusCode != http.StatusOK {
		slog.Debug("Actuator request rejected", "path", path, "status", resp.StatusCode, "body", string(body))
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	return nil
}

// Discard accepts every command without sending it. It stands in for the
// client when sending is switched off.
type Discard struct{}

func (Discard) SendControl(context.Context, motion.Command) error { return nil }

func (Discard) SendServo(context.Context, int, float64) error { return nil }
