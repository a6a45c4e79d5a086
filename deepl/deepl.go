// Package deepl is a minimal client for the DeepL text translation API.
//
// Only the single-text form call used to fill PO catalogs is implemented:
// auth_key, text and target_lang are posted as a form and the first
// translation of the JSON reply is returned.
package deepl

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

const (
	// DefaultEndpoint is the DeepL free API translate URL.
	DefaultEndpoint = "https://api-free.deepl.com/v2/translate"
	// DefaultTargetLang is used when no target language is given.
	DefaultTargetLang = "FR"
	// DefaultTimeout bounds a single request.
	DefaultTimeout = 60 * time.Second
)

// ServiceError is returned when DeepL answers with a non-200 status.
// Its message is the bare HTTP reason phrase.
type ServiceError struct {
	StatusCode int
	Reason     string
}

func (e *ServiceError) Error() string {
	return e.Reason
}

// Config holds the client settings.
type Config struct {
	// Endpoint is the translate URL (default DefaultEndpoint).
	Endpoint string
	// Timeout is the per-request timeout (default DefaultTimeout).
	Timeout time.Duration
	// Proxy is an optional HTTP/HTTPS proxy URL.
	Proxy string
	// UserAgent is sent with every request when set.
	UserAgent string
}

// Client posts translation requests to DeepL.
type Client struct {
	endpoint string
	http     *resty.Client
}

// New builds a client from cfg, filling unset fields with defaults.
func New(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	h := resty.New().SetTimeout(cfg.Timeout)
	if cfg.Proxy != "" {
		h.SetProxy(cfg.Proxy)
	}
	if cfg.UserAgent != "" {
		h.SetHeader("User-Agent", cfg.UserAgent)
	}
	return &Client{endpoint: cfg.Endpoint, http: h}
}

// Endpoint returns the URL requests are sent to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Translate asks DeepL to translate text into targetLang.
//
// A 200 reply without a usable translation yields "" and a nil error. A
// non-200 reply yields a *ServiceError. Transport failures and replies that
// are not JSON are returned as plain errors.
func (c *Client) Translate(ctx context.Context, text, authKey, targetLang string) (string, error) {
	if targetLang == "" {
		targetLang = DefaultTargetLang
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"auth_key":    authKey,
			"text":        text,
			"target_lang": targetLang,
		}).
		Post(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("deepl request: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return "", &ServiceError{
			StatusCode: resp.StatusCode(),
			Reason:     reasonPhrase(resp.StatusCode(), resp.Status()),
		}
	}

	body := resp.Body()
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("deepl response is not JSON: %s", truncate(string(body), 200))
	}
	return gjson.GetBytes(body, "translations.0.text").String(), nil
}

// reasonPhrase extracts "Forbidden" from a status line like "403 Forbidden".
func reasonPhrase(code int, status string) string {
	if reason, ok := strings.CutPrefix(status, strconv.Itoa(code)); ok {
		if reason = strings.TrimSpace(reason); reason != "" {
			return reason
		}
	}
	if reason := http.StatusText(code); reason != "" {
		return reason
	}
	return status
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
