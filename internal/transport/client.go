package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

const (
	// DefaultTimeout bounds a single request when no timeout is configured.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxRedirects is the number of redirects followed before a
	// request is considered failed.
	DefaultMaxRedirects = 30

	// checkProxyTimeout bounds the SOCKS5 handshake performed by CheckProxy.
	checkProxyTimeout = 2 * time.Second
)

// Credentials are the cookie and extra headers sent to one host.
type Credentials struct {
	// Cookie is a raw cookie string ("name=value; other=value").
	Cookie string

	// Headers are set on the request, replacing existing values.
	Headers map[string]string
}

// CredentialsFunc returns the credentials for a request host name
// (lower-cased, without port). Zero Credentials means none are sent.
type CredentialsFunc func(host string) Credentials

// Client builds HTTP clients shared by the source loader and the link
// verifier. All requests carry the configured User-Agent and are optionally
// routed through a SOCKS5 proxy. Cookies and headers are looked up per
// request host.
type Client struct {
	timeout      time.Duration
	userAgent    string
	credentials  CredentialsFunc
	proxyAddress string
	maxRedirects int

	// dialer is nil for direct connections.
	dialer proxy.Dialer
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithCredentials sets the lookup of the cookie and headers for each
// request host. Redirects are looked up again for their own host.
func WithCredentials(fn CredentialsFunc) Option {
	return func(c *Client) {
		c.credentials = fn
	}
}

// WithProxy routes every connection through the SOCKS5 proxy at addr
// ("host:port"). An empty address means direct connections.
func WithProxy(addr string) Option {
	return func(c *Client) {
		c.proxyAddress = addr
	}
}

// WithMaxRedirects sets how many redirects are followed.
func WithMaxRedirects(n int) Option {
	return func(c *Client) {
		c.maxRedirects = n
	}
}

// NewClient creates a Client. It validates the proxy address but does not
// contact the proxy; call CheckProxy for that.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		timeout:      DefaultTimeout,
		maxRedirects: DefaultMaxRedirects,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.proxyAddress != "" {
		if !isValidProxyAddress(c.proxyAddress) {
			return nil, ErrInvalidProxyAddress
		}
		dialer, err := proxy.SOCKS5("tcp", c.proxyAddress, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		c.dialer = dialer
	}

	return c, nil
}

// isValidProxyAddress checks that address is "host:port" with a port in 1-65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// ProxyAddress returns the configured proxy address, empty for direct connections.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}

// HTTPClient returns a new *http.Client with the configured timeout,
// redirect limit, proxy and header injection.
//
// Exceeding the redirect limit is reported as ErrTooManyRedirects so that
// the request counts as failed.
func (c *Client) HTTPClient() *http.Client {
	base := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: c.timeout,
	}
	if c.dialer != nil {
		base.Proxy = nil
		base.DialContext = c.dialContext
	}

	maxRedirects := c.maxRedirects
	return &http.Client{
		Transport: &headerInjectingTransport{
			base:        base,
			userAgent:   c.userAgent,
			credentials: c.credentials,
		},
		Timeout: c.timeout,
		// via holds every request made so far, so it has n entries before
		// the nth redirect.
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return ErrTooManyRedirects
			}
			return nil
		},
	}
}

// dialContext dials through the SOCKS5 proxy, honoring ctx when the dialer
// supports it.
func (c *Client) dialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := c.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, addr)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		conn, err := c.dialer.Dial(network, addr)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case result := <-resultCh:
		return result.conn, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SOCKS5 protocol constants.
const (
	socks5Version       = 0x05
	socks5AuthNone      = 0x00
	socks5CmdConnect    = 0x01
	socks5AddrTypeDomID = 0x03

	// socks5TestHost is the CONNECT target used to probe the proxy.
	// Only the proxy's reply matters, not whether the connection succeeds.
	socks5TestHost = "example.com"
)

// CheckProxy verifies that the configured proxy speaks SOCKS5 without
// authentication and answers CONNECT requests. It returns ProxyStatusOK
// for direct clients.
func (c *Client) CheckProxy(ctx context.Context) ProxyStatus {
	if c.proxyAddress == "" {
		return ProxyStatusOK
	}

	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.proxyAddress)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return ProxyStatusCannotConnect
	}

	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ProxyStatusCannotConnect
	}

	authResp := make([]byte, 2)
	if _, err := io.ReadFull(conn, authResp); err != nil {
		if isTimeout(err) {
			return ProxyStatusTimeout
		}
		return ProxyStatusWrongType
	}
	if authResp[0] != socks5Version || authResp[1] != socks5AuthNone {
		return ProxyStatusWrongType
	}

	connectReq := []byte{
		socks5Version,
		socks5CmdConnect,
		0x00,
		socks5AddrTypeDomID,
		byte(len(socks5TestHost)),
	}
	connectReq = append(connectReq, socks5TestHost...)
	connectReq = append(connectReq, 0x00, 0x50) // port 80

	if _, err := conn.Write(connectReq); err != nil {
		return ProxyStatusCannotConnect
	}

	// Any reply code means the proxy processed the request.
	connectResp := make([]byte, 4)
	if _, err := io.ReadFull(conn, connectResp); err != nil {
		if isTimeout(err) {
			return ProxyStatusTimeout
		}
		return ProxyStatusWrongType
	}
	if connectResp[0] != socks5Version {
		return ProxyStatusWrongType
	}

	return ProxyStatusOK
}

// isTimeout reports whether err is a network timeout.
func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// headerInjectingTransport wraps an http.RoundTripper to add the
// configured User-Agent to every request and the credentials of the
// request host, redirects included.
type headerInjectingTransport struct {
	base        http.RoundTripper
	userAgent   string
	credentials CredentialsFunc
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.userAgent != "" && clone.Header.Get("User-Agent") == "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}

	if t.credentials == nil {
		return t.base.RoundTrip(clone)
	}
	cred := t.credentials(strings.ToLower(clone.URL.Hostname()))

	if cred.Cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+cred.Cookie)
		} else {
			clone.Header.Set("Cookie", cred.Cookie)
		}
	}

	for key, value := range cred.Headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
