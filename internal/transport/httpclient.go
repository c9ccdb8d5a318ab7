package transport

import (
	"crypto/tls"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"
)

// DefaultMaxRedirects is how many redirects NewHTTPClient follows before
// returning the last response.
const DefaultMaxRedirects = 10

// HTTPOption configures the client built by NewHTTPClient.
type HTTPOption func(*httpOptions)

type httpOptions struct {
	timeout            time.Duration
	maxRedirects       int
	userAgent          string
	siteHost           string
	cookie             string
	headers            map[string]string
	insecureSkipVerify bool
}

// WithTimeout sets http.Client.Timeout. Zero means no timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(o *httpOptions) {
		o.timeout = d
	}
}

// WithMaxRedirects sets how many redirects are followed. Zero disables
// redirects.
func WithMaxRedirects(n int) HTTPOption {
	return func(o *httpOptions) {
		o.maxRedirects = n
	}
}

// WithUserAgent sets the User-Agent header of every request.
func WithUserAgent(ua string) HTTPOption {
	return func(o *httpOptions) {
		o.userAgent = ua
	}
}

// WithSite sends cookie and headers with requests to host only. Requests
// that a redirect sends to any other host go out without them, so an onion
// site's credentials never reach a clearnet server. Hosts match
// case-insensitively.
func WithSite(host, cookie string, headers map[string]string) HTTPOption {
	return func(o *httpOptions) {
		o.siteHost = host
		o.cookie = cookie
		o.headers = headers
	}
}

// WithInsecureSkipVerify disables TLS certificate verification. Onion
// services commonly use self-signed certificates; the onion address
// already authenticates the service.
func WithInsecureSkipVerify() HTTPOption {
	return func(o *httpOptions) {
		o.insecureSkipVerify = true
	}
}

// NewHTTPClient returns an HTTP client whose connections are opened by
// svc. Every request is routed the way svc.Handle would route it.
//
// Response compression is disabled: on anonymized traffic, compressed
// sizes can leak content (CRIME/BREACH). The idle pool is small because
// each Tor connection holds a circuit.
func NewHTTPClient(svc *Service, opts ...HTTPOption) *http.Client {
	o := httpOptions{
		maxRedirects: DefaultMaxRedirects,
	}
	for _, opt := range opts {
		opt(&o)
	}

	transport := &http.Transport{
		DialContext:         svc.DialContext,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
		DisableCompression:  true,
	}
	if o.insecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // opt-in for self-signed onion services
		}
	}

	var rt http.RoundTripper = transport
	if o.userAgent != "" || o.cookie != "" || len(o.headers) > 0 {
		rt = &headerInjectingTransport{
			base:      transport,
			userAgent: o.userAgent,
			siteHost:  o.siteHost,
			cookie:    o.cookie,
			headers:   o.headers,
		}
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	maxRedirects := o.maxRedirects
	return &http.Client{
		Transport: rt,
		Timeout:   o.timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// headerInjectingTransport sets the User-Agent on every request, including
// the ones issued for redirects. The site cookie and headers are only set
// on requests to siteHost.
type headerInjectingTransport struct {
	base      http.RoundTripper
	userAgent string
	siteHost  string
	cookie    string
	headers   map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.userAgent != "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}
	if !strings.EqualFold(clone.URL.Hostname(), t.siteHost) {
		return t.base.RoundTrip(clone)
	}
	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}
	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
