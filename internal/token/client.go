package token

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"TokenBridge/internal/metrics"
	"TokenBridge/internal/models"
)

// Client exchanges an email address for an advertising token.
type Client struct {
	BaseURL     string
	BearerToken string
	LogPayload  bool

	HTTP *http.Client
	Log  *zap.Logger
}

func NewClient(baseURL, bearer string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL:     baseURL,
		BearerToken: bearer,
		HTTP:        &http.Client{Timeout: timeout},
		Log:         logger,
	}
}

// GetToken calls {BaseURL}{email} with the bearer credential and decodes
// the JSON body. Any JSON payload is returned whatever the status code; the
// caller decides what an upstream error document means.
func (c *Client) GetToken(ctx context.Context, email string) (*models.TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+escapeEmail(c.BaseURL, email), nil)
	if err != nil {
		metrics.TokenRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: build token request: %v", models.ErrRemote, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.BearerToken)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		metrics.TokenRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: token service: %v", models.ErrRemote, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.TokenRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: read token response: %v", models.ErrRemote, err)
	}

	tok, err := models.NewTokenResponse(raw)
	if err != nil {
		metrics.TokenRequests.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("token service returned %d: %w", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.TokenRequests.WithLabelValues("upstream_error").Inc()
		c.logger().Warn("token service returned an error document", zap.Int("status", resp.StatusCode))
	} else {
		metrics.TokenRequests.WithLabelValues("success").Inc()
	}

	if c.LogPayload {
		c.logger().Info("token fetched", zap.ByteString("token_payload", raw))
	} else {
		c.logger().Debug("token fetched")
	}

	return tok, nil
}

// escapeEmail query-escapes the email when the base URL ends in a query
// parameter and path-escapes it otherwise, so "@" stays literal in paths.
func escapeEmail(baseURL, email string) string {
	if strings.Contains(baseURL, "?") {
		return url.QueryEscape(email)
	}
	return url.PathEscape(email)
}

func (c *Client) logger() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}
