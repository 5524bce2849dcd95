// Package connector posts finished transcripts to a local webhook
// listener, the integration point other desktop tools use to
// receive dictation output without going through clipboard/paste at all.
package connector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 63155
	DefaultPath = "/messages"
	defaultTimeout = 3 * time.Second
)

// Config is the user-facing connector configuration; zero values fall
// back to the defaults above.
type Config struct {
	Host string
	Port int
	Path string
}

type payload struct {
	Text string `json:"text"`
	TS int64 `json:"ts"`
}

// Client posts transcripts to the configured webhook.
type Client struct {
	cfg Config
	client *http.Client
}

func NewClient(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		client: &http.Client{Timeout: defaultTimeout},
	}
}

func normalizePath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return DefaultPath
	}
	if strings.HasPrefix(trimmed, "/") {
		return trimmed
	}
	return "/" + trimmed
}

func (c *Client) buildURL() (string, error) {
	host := strings.TrimSpace(c.cfg.Host)
	if host == "" {
		host = DefaultHost
	}
	port := c.cfg.Port
	if port == 0 {
		port = DefaultPort
	}

	u := &url.URL{
		Scheme: "http",
		Host: fmt.Sprintf("%s:%d", host, port),
		Path: normalizePath(c.cfg.Path),
	}
	return u.String(), nil
}

// Send posts text to the connector webhook with the current time as the
// epoch-ms timestamp. Empty/whitespace-only text is rejected up front.
func (c *Client) Send(text string) error {
	return c.sendAt(text, time.Now())
}

func (c *Client) sendAt(text string, now time.Time) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return fmt.Errorf("connector message is empty")
	}

	target, err := c.buildURL()
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload{Text: text, TS: now.UnixMilli()})
	if err != nil {
		return fmt.Errorf("encode connector payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build connector request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("connector request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		detail := strings.TrimSpace(string(respBody))
		if detail == "" {
			detail = "no response body"
		}
		return fmt.Errorf("connector http %d: %s", resp.StatusCode, detail)
	}
	return nil
}
