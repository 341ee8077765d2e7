package kaggle

import (
	"fmt"
	"strings"
	"time"
)

// DefaultBaseURL is the platform's public API endpoint.
const DefaultBaseURL = "https://www.kaggle.com/api/v1"

// DefaultHTTPTimeout bounds a single API request. Dataset uploads and
// output downloads can be large, so this is generous.
const DefaultHTTPTimeout = 5 * time.Minute

// Config configures the platform client.
type Config struct {
	// BaseURL is the API endpoint. Defaults to DefaultBaseURL.
	// Overridable for tests and self-hosted mirrors.
	BaseURL string

	// Credential is the resolved account credential. When nil, the
	// client resolves one via ResolveCredentials at construction.
	Credential *Credential

	// HTTPTimeout bounds a single API request. Zero uses the default.
	HTTPTimeout time.Duration

	// UserAgent is sent with every request.
	UserAgent string
}

// Validate checks config invariants that do not require network access.
func (c *Config) Validate() error {
	if c.BaseURL != "" && !strings.HasPrefix(c.BaseURL, "http") {
		return fmt.Errorf("base URL must be an http(s) endpoint: %s", c.BaseURL)
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("http timeout must not be negative")
	}
	return nil
}

func (c *Config) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return DefaultBaseURL
}

func (c *Config) httpTimeout() time.Duration {
	if c.HTTPTimeout > 0 {
		return c.HTTPTimeout
	}
	return DefaultHTTPTimeout
}

func (c *Config) userAgent() string {
	if c.UserAgent != "" {
		return c.UserAgent
	}
	return "offload"
}
