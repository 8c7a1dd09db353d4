package somfy

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"golang.org/x/net/http/httpguts"

	"github.com/nerrad567/gray-logic-somfy/pkg/somfy/certstore"
)

// DefaultPort is the gateway's local API port.
const DefaultPort = 8443

// maxResponseSize bounds a response body. A full setup of a large
// installation is well under this.
const maxResponseSize = 16 << 20

// Scheme selects the transport. The zero value is HTTPS.
type Scheme int

// Transport schemes. HTTP exists only for local test doubles.
const (
	SchemeHTTPS Scheme = iota
	SchemeHTTP
)

// String returns the URL scheme.
func (s Scheme) String() string {
	if s == SchemeHTTP {
		return "http"
	}
	return "https"
}

// CertPolicy selects where the gateway's trust root comes from.
// Build one with ProvidedCert or DefaultCert.
type CertPolicy struct {
	path  string
	store *certstore.Store
}

// ProvidedCert trusts the PEM certificate at path.
func ProvidedCert(path string) CertPolicy {
	return CertPolicy{path: path}
}

// DefaultCert trusts the vendor root cached by store, bootstrapping it on
// first use. A nil store means certstore.Default().
func DefaultCert(store *certstore.Store) CertPolicy {
	if store == nil {
		store = certstore.Default()
	}
	return CertPolicy{store: store}
}

// IsProvided reports whether the policy uses an explicit file.
func (p CertPolicy) IsProvided() bool {
	return p.path != ""
}

// String describes the policy without secrets.
func (p CertPolicy) String() string {
	switch {
	case p.path != "":
		return "provided:" + p.path
	case p.store != nil:
		return "default:" + p.store.Path()
	default:
		return "default"
	}
}

// resolve loads the trust certificate for one call.
func (p CertPolicy) resolve(ctx context.Context) (*x509.Certificate, error) {
	if p.path != "" {
		return certstore.LoadFile(p.path)
	}
	store := p.store
	if store == nil {
		store = certstore.Default()
	}
	return store.Ensure(ctx)
}

// Config is the connection configuration of a Client.
type Config struct {
	Scheme Scheme
	Host   string
	Port   int
	APIKey string
	Cert   CertPolicy
}

// baseURL returns scheme://host:port.
func (c Config) baseURL() string {
	return c.Scheme.String() + "://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Client executes commands against one gateway.
//
// A Client holds only immutable configuration: each call resolves the
// certificate, builds its own HTTP client and discards it afterwards, so
// a Client is safe for concurrent use.
type Client struct {
	cfg    Config
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient returns a Client for cfg. A zero Port means DefaultPort.
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}

	c := &Client{
		cfg:    cfg,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.logger.Debug("gateway client initialised",
		"scheme", cfg.Scheme.String(),
		"host", cfg.Host,
		"port", cfg.Port,
		"cert", cfg.Cert.String(),
	)
	return c
}

// NewGatewayClient returns a Client for the gateway with the given PIN,
// reached at gateway-<pin>.local over HTTPS with the default certificate.
func NewGatewayClient(gatewayID, apiKey string, opts ...Option) *Client {
	return NewClient(Config{
		Scheme: SchemeHTTPS,
		Host:   GatewayHost(gatewayID),
		Port:   DefaultPort,
		APIKey: apiKey,
		Cert:   DefaultCert(nil),
	}, opts...)
}

// GatewayHost returns the mDNS host name of a gateway PIN.
func GatewayHost(gatewayID string) string {
	return "gateway-" + gatewayID + ".local"
}

// Config returns the client's configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// Execute runs cmd against the client's gateway and decodes the response.
//
// The steps are: resolve the trust certificate, build the request from
// cmd, send it with the bearer key, classify the HTTP status, and hand the
// body to cmd.ParseResponse. The first failing step's error is returned;
// nothing is retried. Cancel ctx to abandon an in-flight call.
//
// Errors are *RequestError values matching ErrTransport, ErrStatus,
// ErrAuth, ErrNotFound, ErrInvalidRequest, ErrServer, ErrCert or ErrBody.
func Execute[R any](ctx context.Context, c *Client, cmd Command[R]) (R, error) {
	var zero R

	body, err := c.do(ctx, cmd)
	if err != nil {
		return zero, err
	}

	resp, err := cmd.ParseResponse(body)
	if err != nil {
		if _, ok := KindOf(err); !ok {
			err = BodyError(err)
		}
		if kind, _ := KindOf(err); kind == KindBody {
			c.logger.Warn("gateway response did not match API contract", "error", err)
		}
		return zero, err
	}
	return resp, nil
}

// requestSource is the untyped half of Command that do needs.
type requestSource interface {
	Request() (*RequestData, error)
}

// do performs the HTTP exchange and returns the raw body of a 2xx response.
func (c *Client) do(ctx context.Context, cmd requestSource) ([]byte, error) {
	cert, err := c.cfg.Cert.resolve(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, newError(KindTransport, "resolving certificate", ctx.Err())
		}
		return nil, newError(KindCert, "resolving certificate", err)
	}

	data, err := cmd.Request()
	if err != nil {
		if _, ok := KindOf(err); ok {
			return nil, err
		}
		return nil, newError(KindServer, "building request", err)
	}
	if data == nil {
		return nil, newError(KindServer, "building request", errors.New("command returned no request"))
	}

	req, err := c.newHTTPRequest(ctx, data)
	if err != nil {
		return nil, err
	}

	transport := newTransport(cert)
	defer transport.CloseIdleConnections()
	httpClient := &http.Client{Transport: transport}

	c.logger.Debug("sending gateway request", "method", req.Method, "path", data.Path)

	resp, err := httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, newError(KindTransport, "sending request", ctx.Err())
		}
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, newError(KindTransport, "reading response", err)
	}
	return body, nil
}

// newHTTPRequest turns RequestData into an *http.Request with the
// authorization header and the command's headers applied.
func (c *Client) newHTTPRequest(ctx context.Context, data *RequestData) (*http.Request, error) {
	authorization := "Bearer " + c.cfg.APIKey
	if !httpguts.ValidHeaderFieldValue(authorization) {
		return nil, newError(KindServer, "building authorization header", fmt.Errorf("api key contains invalid characters"))
	}

	target := c.cfg.baseURL() + data.Path
	if q := data.encodedQuery(); q != "" {
		target += "?" + q
	}

	var body io.Reader = http.NoBody
	switch data.Method {
	case http.MethodGet, http.MethodDelete:
	case http.MethodPost:
		if len(data.Body) > 0 {
			body = bytes.NewReader(data.Body)
		}
	default:
		return nil, newError(KindServer, "building request", fmt.Errorf("unsupported method %q", data.Method))
	}

	req, err := http.NewRequestWithContext(ctx, data.Method, target, body)
	if err != nil {
		return nil, newError(KindServer, "building request", err)
	}

	req.Header.Set("Authorization", authorization)
	for key, values := range data.Header {
		if http.CanonicalHeaderKey(key) == headerContentLength {
			continue
		}
		req.Header.Del(key)
		for _, v := range values {
			if !httpguts.ValidHeaderFieldValue(v) {
				return nil, newError(KindServer, "building request", fmt.Errorf("invalid value for header %s", key))
			}
			req.Header.Add(key, v)
		}
	}

	if data.Method == http.MethodPost {
		req.ContentLength = int64(data.ContentLength())
		if req.Header.Get(headerContentType) == "" {
			req.Header.Set(headerContentType, contentTypeJSON)
		}
	}

	return req, nil
}

// newTransport returns a transport that trusts only root.
func newTransport(root *x509.Certificate) *http.Transport {
	pool := x509.NewCertPool()
	pool.AddCert(root)

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		RootCAs:    pool,
		MinVersion: tls.VersionTLS12,
	}
	return transport
}
