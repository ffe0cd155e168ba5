// Package provider fetches model listings from third-party AI vendors and
// normalizes them through the catalog package.
package provider

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/quillscribe/portal/internal/model"
)

// Sentinel errors for provider listings.
var (
	ErrMissingAPIKey   = errors.New("provider api key not configured")
	ErrUnknownProvider = errors.New("unknown provider")
)

const (
	// DefaultTimeout bounds one full listing, including pagination.
	DefaultTimeout = 30 * time.Second
	// DialTimeout is the connection timeout.
	DialTimeout = 10 * time.Second
	// TLSHandshakeTimeout is the TLS negotiation timeout.
	TLSHandshakeTimeout = 10 * time.Second
	// ResponseHeaderTimeout is time to wait for response headers.
	ResponseHeaderTimeout = 15 * time.Second

	userAgent = "Quillscribe-Portal/1.0"
)

// Lister returns the normalized model listing of one provider.
type Lister interface {
	Provider() model.Provider
	ListModels(ctx context.Context) ([]model.AIModel, error)
}

// Config holds connection settings shared by all providers.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

func (c Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return NewHTTPClient(c.timeout())
}

// NewHTTPClient creates an HTTP client for provider APIs with bounded
// connect, handshake and header waits. Redirects are not followed.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   TLSHandshakeTimeout,
			ResponseHeaderTimeout: ResponseHeaderTimeout,
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Registry maps providers to their listers.
type Registry map[model.Provider]Lister

// NewRegistry indexes listers by the provider they serve.
func NewRegistry(listers ...Lister) Registry {
	r := make(Registry, len(listers))
	for _, l := range listers {
		r[l.Provider()] = l
	}
	return r
}

// Get returns the lister for p.
func (r Registry) Get(p model.Provider) (Lister, error) {
	l, ok := r[p]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return l, nil
}
