package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"podscribe/internal/services"
)

// HealthCheck lists models to verify the key and base URL in one request.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return services.Wrap(services.ErrConfiguration, "openai", "health", "api key required", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("openai: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("openai: health: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return classify(&httpStatusError{StatusCode: resp.StatusCode, Body: services.Snippet(string(raw))}, 1)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// IsAuthError reports whether err means the API rejected the credentials.
func IsAuthError(err error) bool {
	return errors.Is(err, services.ErrConfiguration)
}
