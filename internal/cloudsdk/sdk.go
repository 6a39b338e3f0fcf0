// Package cloudsdk is a client for the asset hosting service: asset creation,
// long-running operation polling and asset delivery lookups.
package cloudsdk

import (
	"errors"
	"time"

	"github.com/imroc/req/v3"
	"github.com/runway-sync/runway/internal/version"
)

const (
	DefaultBaseURL     = "https://apis.roblox.com"
	DefaultDeliveryURL = "https://assetdelivery.roblox.com"

	HeaderAPIKey = "x-api-key"
)

var ErrNoAPIKey = errors.New("sdk: api key missing")

type Config struct {
	BaseURL     string
	DeliveryURL string
	APIKey      string
	Timeout     time.Duration
	// RetryCount applies to idempotent requests. Asset creation is never
	// retried by the client; callers decide.
	RetryCount int
	// RetryBackoffMin and RetryBackoffMax bound the exponential backoff.
	RetryBackoffMin time.Duration
	RetryBackoffMax time.Duration
}

func (c *Config) setDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.DeliveryURL == "" {
		c.DeliveryURL = DefaultDeliveryURL
	}
	if c.Timeout == 0 {
		c.Timeout = 2 * time.Minute
	}
	if c.RetryCount == 0 {
		c.RetryCount = 3
	}
	if c.RetryBackoffMin == 0 {
		c.RetryBackoffMin = time.Second
	}
	if c.RetryBackoffMax == 0 {
		c.RetryBackoffMax = 10 * time.Second
	}
}

// Client is the entry point to the API groups.
type Client struct {
	client   *req.Client
	Assets   *AssetsAPI
	Delivery *DeliveryAPI
}

func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	cfg.setDefaults()

	client := req.C().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetUserAgent(version.UserAgent()).
		SetCommonHeader(HeaderAPIKey, cfg.APIKey).
		SetCommonErrorResult(&APIError{}).
		SetCommonRetryCount(cfg.RetryCount).
		SetCommonRetryBackoffInterval(cfg.RetryBackoffMin, cfg.RetryBackoffMax).
		AddCommonRetryCondition(shouldRetry).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	return &Client{
		client:   client,
		Assets:   newAssetsAPI(client),
		Delivery: newDeliveryAPI(client, cfg.DeliveryURL),
	}, nil
}

// shouldRetry retries transport errors, throttling and server errors.
func shouldRetry(resp *req.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil || resp.Response == nil {
		return false
	}
	return resp.StatusCode == 429 || resp.StatusCode >= 500
}
