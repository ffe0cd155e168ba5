package notify

import (
	"net"
	"net/http"
	"time"
)

const (
	ClientTimeout         = 15 * time.Second
	DialTimeout           = 5 * time.Second
	TLSHandshakeTimeout   = 5 * time.Second
	ResponseHeaderTimeout = 10 * time.Second
)

// Header names for webhook requests.
const (
	HeaderSignature  = "X-Quillscribe-Signature"
	HeaderDeliveryID = "X-Quillscribe-Delivery-Id"
	HeaderEvent      = "X-Quillscribe-Event"
)

// NewHTTPClient returns the client used for webhook delivery. Redirects are
// returned to the caller rather than followed. Unless allowPrivate is set,
// connections to loopback, private and link-local addresses are refused at
// dial time.
func NewHTTPClient(allowPrivate bool) *http.Client {
	dialer := &net.Dialer{Timeout: DialTimeout, KeepAlive: 30 * time.Second}
	if !allowPrivate {
		dialer.Control = dialGuard
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.TLSHandshakeTimeout = TLSHandshakeTimeout
	transport.ResponseHeaderTimeout = ResponseHeaderTimeout
	transport.MaxIdleConns = 20
	transport.MaxIdleConnsPerHost = 4

	return &http.Client{
		Timeout:   ClientTimeout,
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
