package client

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/handoff-sh/handoff/pkg/apiresponses"
	"github.com/handoff-sh/handoff/pkg/version"
)

const defaultTimeout = 30 * time.Second

// Client talks to a handoff broker over its REST and stream surfaces.
type Client struct {
	rest      *resty.Client
	baseURL   *url.URL
	userAgent string
	tlsConfig *tls.Config
}

type Option func(*Client) error

// New builds a broker client. WithServer is required.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		rest:      resty.New().SetTimeout(defaultTimeout),
		userAgent: version.UserAgent("handoff-client"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.baseURL == nil {
		return nil, errors.New("server is required")
	}
	c.rest.SetBaseURL(c.baseURL.String())
	c.rest.SetHeader("User-Agent", c.userAgent)
	c.rest.SetHeader("Accept", "application/json")
	if c.tlsConfig != nil {
		c.rest.SetTLSClientConfig(c.tlsConfig)
	}
	return c, nil
}

func WithServer(server string) Option {
	return func(c *Client) error {
		if server == "" {
			return errors.New("server is required")
		}
		parsed, err := url.Parse(server)
		if err != nil {
			return errors.Wrap(err, "invalid server")
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return errors.Errorf("unsupported server scheme %q", parsed.Scheme)
		}
		c.baseURL = parsed
		return nil
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout <= 0 {
			return errors.New("timeout must be positive")
		}
		c.rest.SetTimeout(timeout)
		return nil
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) error {
		c.userAgent = userAgent
		return nil
	}
}

// WithTLSConfig trusts the CA bundle at caFile and optionally disables
// certificate verification for test setups.
func WithTLSConfig(caFile string, insecureSkipTLSVerify bool) Option {
	return func(c *Client) error {
		tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: insecureSkipTLSVerify} // #nosec G402
		if caFile != "" {
			data, err := os.ReadFile(caFile)
			if err != nil {
				return errors.Wrap(err, "failed to read CA file")
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(data) {
				return errors.New("failed to parse CA file")
			}
			tlsConfig.RootCAs = pool
		}
		c.tlsConfig = tlsConfig
		return nil
	}
}

// HTTPError carries the broker's error envelope for non-2xx responses.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("request failed (%d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an HTTP 404 from the broker.
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == 404
}

// IsConflict reports whether err is an HTTP 409 from the broker.
func IsConflict(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == 409
}

// checkResponse converts a non-2xx resty response into an *HTTPError.
func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if !resp.IsError() {
		return nil
	}
	httpErr := &HTTPError{StatusCode: resp.StatusCode(), Message: resp.Status()}
	if apiErr, ok := resp.Error().(*apiresponses.APIError); ok && apiErr != nil && apiErr.Error != "" {
		httpErr.Message = apiErr.Error
		httpErr.Code = apiErr.Code
	}
	return httpErr
}
