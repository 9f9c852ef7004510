package page

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"TokenBridge/internal/metrics"
	"TokenBridge/internal/models"
)

// Fetcher downloads the raw demo-page template.
type Fetcher struct {
	URL  string
	HTTP *http.Client
}

func NewFetcher(url string, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Fetcher{
		URL:  url,
		HTTP: &http.Client{Timeout: timeout},
	}
}

// Fetch reads the whole document before returning it.
func (f *Fetcher) Fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		metrics.TemplateFetches.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: build template request: %v", models.ErrRemote, err)
	}

	resp, err := f.HTTP.Do(req)
	if err != nil {
		metrics.TemplateFetches.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: template service: %v", models.ErrRemote, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.TemplateFetches.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: template service returned %d", models.ErrRemote, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.TemplateFetches.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: read template: %v", models.ErrRemote, err)
	}

	metrics.TemplateFetches.WithLabelValues("success").Inc()
	return string(body), nil
}
