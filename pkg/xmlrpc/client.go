package xmlrpc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// Decorator adjusts an outgoing request, typically to attach session headers.
type Decorator func(req *http.Request)

type decoratorKey struct{}

// WithDecorator returns a context whose calls are additionally decorated by d,
// after the transport's own decorator.
func WithDecorator(ctx context.Context, d Decorator) context.Context {
	return context.WithValue(ctx, decoratorKey{}, d)
}

// Transport applies Decorate, then any decorator carried by the request
// context, to each request before handing it to Base.
type Transport struct {
	Base     http.RoundTripper // nil means http.DefaultTransport
	Decorate Decorator
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.Decorate != nil {
		t.Decorate(req)
	}
	if d, ok := req.Context().Value(decoratorKey{}).(Decorator); ok && d != nil {
		d(req)
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// StatusError is returned when the endpoint answers with a non-2xx status,
// which usually means the endpoint path is wrong.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("xmlrpc: %s returned HTTP %s", e.URL, e.Status)
}

// TransportError is returned when no HTTP response could be obtained.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "xmlrpc: failed to read server's response: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client performs XML-RPC calls against a single endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a client for endpoint. A nil httpClient uses
// http.DefaultClient; wrap its transport in a *Transport to decorate calls.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: httpClient,
	}
}

// Endpoint returns the URL calls are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Call invokes method with positional args and returns the decoded result.
func (c *Client) Call(ctx context.Context, method string, args ...any) (any, error) {
	body, err := EncodeCall(method, args...)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{URL: c.endpoint, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	return DecodeResponse(resp.Body)
}
