// internal/provider/mpesa/client.go
package mpesa

import (
	"net/http"
	"strings"
	"time"

	"github.com/levisbarua/pesaflow/config"

	"go.uber.org/zap"
)

const ProviderName = "mpesa"

// Client talks to the Daraja API. It holds no per-request state.
type Client struct {
	config     config.MpesaConfig
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
	logger     *zap.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default client built from the configured timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Client) {
		m.httpClient = c
	}
}

// WithClock overrides the clock used for the password timestamp.
func WithClock(now func() time.Time) Option {
	return func(m *Client) {
		m.now = now
	}
}

func NewClient(cfg config.MpesaConfig, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		config:     cfg,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string {
	return ProviderName
}
