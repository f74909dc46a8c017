package mpesa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/levisbarua/pesaflow/internal/domain"
	"github.com/levisbarua/pesaflow/internal/metrics"

	"go.uber.org/zap"
)

const maxErrorBody = 512

// ObtainToken exchanges the consumer key/secret for a short-lived bearer token.
// It does not cache or retry; callers retry the whole payment flow if they want to.
func (c *Client) ObtainToken(ctx context.Context) (string, error) {
	start := time.Now()
	defer metrics.ObserveUpstream("oauth_token", start)

	url := fmt.Sprintf("%s/oauth/v1/generate?grant_type=client_credentials", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &domain.UpstreamAuthError{Reason: "could not build token request", Err: err}
	}
	req.SetBasicAuth(c.config.ConsumerKey, c.config.ConsumerSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("mpesa token request failed", zap.Error(err))
		return "", &domain.UpstreamAuthError{Reason: "token endpoint unreachable", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", &domain.UpstreamAuthError{StatusCode: resp.StatusCode, Reason: "could not read token response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &domain.UpstreamAuthError{
			StatusCode: resp.StatusCode,
			Reason:     c.redact(truncate(string(body), maxErrorBody)),
		}
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", &domain.UpstreamAuthError{StatusCode: resp.StatusCode, Reason: "token response is not valid json", Err: err}
	}
	if result.AccessToken == "" {
		return "", &domain.UpstreamAuthError{StatusCode: resp.StatusCode, Reason: "token response has no access_token"}
	}

	return result.AccessToken, nil
}

// redact scrubs the credentials in case the provider echoes them back.
func (c *Client) redact(s string) string {
	for _, secret := range []string{c.config.ConsumerSecret, c.config.Passkey} {
		if secret != "" {
			s = strings.ReplaceAll(s, secret, "[REDACTED]")
		}
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
