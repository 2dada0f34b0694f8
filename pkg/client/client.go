// Package client provides a Boa API session: login and logout, the cached
// dataset catalog, job operations and job output retrieval.
package client

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/boalang/boa-client-go/internal/logging"
	"github.com/boalang/boa-client-go/pkg/apperrors"
	"github.com/boalang/boa-client-go/pkg/cache"
	"github.com/boalang/boa-client-go/pkg/models"
	"github.com/boalang/boa-client-go/pkg/xmlrpc"
)

const (
	DefaultDomain     = "boa.cs.iastate.edu"
	DefaultPath       = "/boa/?q=boa/api"
	DefaultDatasetTTL = 24 * time.Hour
)

// Config holds client configuration.
type Config struct {
	Domain     string        // Host (and optional port) of the API, no protocol or slashes
	Path       string        // Path of the API endpoint, must start with "/"
	HTTPClient *http.Client  // Used for remote calls and output downloads; nil builds one
	Timeout    time.Duration // Request timeout of the built HTTP client (0 = none)
	DatasetTTL time.Duration // How long the dataset catalog is reused
	Clock      func() time.Time

	// OutputCache, when set, keeps the output of finished jobs on disk.
	OutputCache *cache.Cache

	// Metrics receives call, login, cache and download instrumentation.
	Metrics Recorder
}

func (c Config) withDefaults() Config {
	if c.Domain == "" {
		c.Domain = DefaultDomain
	}
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.DatasetTTL == 0 {
		c.DatasetTTL = DefaultDatasetTTL
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.Metrics == nil {
		c.Metrics = nopRecorder{}
	}
	return c
}

// Validate checks the endpoint settings.
func (c Config) Validate() error {
	if strings.Contains(c.Domain, "/") {
		return apperrors.InvalidConfig("domain", "domain must not contain the protocol or any slashes")
	}
	if !strings.HasPrefix(c.Path, "/") {
		return apperrors.InvalidConfig("path", "path must start with a slash")
	}
	if c.DatasetTTL < 0 {
		return apperrors.InvalidConfig("dataset_ttl", "dataset cache ttl must not be negative")
	}
	return nil
}

// Endpoint returns the URL remote calls are posted to.
func (c Config) Endpoint() string {
	return "https://" + c.Domain + c.Path
}

// session is the state established by login or connect.
type session struct {
	cookie string
	token  string
}

// Client is one Boa API session. It is safe for concurrent use; login and
// logout are serialized.
type Client struct {
	cfg        Config
	rpc        *xmlrpc.Client
	httpClient *http.Client

	authMu   sync.Mutex // serializes Login and Logout
	mu       sync.RWMutex
	loggedIn bool
	session  session
	epoch    uint64 // bumped when the session changes or the catalog is reset

	datasets   *cache.TTL[[]models.Dataset]
	datasetsMu sync.Mutex // one catalog fetch at a time
	outputs    *cache.Cache
	metrics    Recorder
}

// New creates a client. It does not contact the server.
func New(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}

	c := &Client{
		cfg:        cfg,
		httpClient: httpClient,
		datasets:   cache.NewTTL[[]models.Dataset](cfg.DatasetTTL, cfg.Clock),
		outputs:    cfg.OutputCache,
		metrics:    cfg.Metrics,
	}

	// Remote calls carry the session; output downloads do not.
	rpcHTTP := *httpClient
	rpcHTTP.Transport = &xmlrpc.Transport{Base: httpClient.Transport, Decorate: c.decorate}
	c.rpc = xmlrpc.NewClient(cfg.Endpoint(), &rpcHTTP)
	return c, nil
}

// Endpoint returns the URL remote calls are posted to.
func (c *Client) Endpoint() string {
	return c.rpc.Endpoint()
}

// LoggedIn reports whether the client holds a session.
func (c *Client) LoggedIn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loggedIn
}

// decorate attaches the session headers to every outgoing call while logged in.
func (c *Client) decorate(req *http.Request) {
	c.mu.RLock()
	s, ok := c.session, c.loggedIn
	c.mu.RUnlock()
	if ok {
		s.apply(req)
	}
}

func (s session) apply(req *http.Request) {
	if s.cookie != "" {
		req.Header.Set("Cookie", s.cookie)
	}
	if s.token != "" {
		req.Header.Set("X-CSRF-Token", s.token)
	}
}

func (c *Client) setSession(s session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loggedIn = true
	c.session = s
	c.epoch++
}

// endSession drops the session and the dataset catalog in one step and
// returns the dropped session.
func (c *Client) endSession() session {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.session
	c.loggedIn = false
	c.session = session{}
	c.epoch++
	c.datasets.Reset()
	return s
}

func (c *Client) currentEpoch() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch
}

func (c *Client) ensureLoggedIn(op string) error {
	if !c.LoggedIn() {
		return apperrors.NotLoggedIn(op)
	}
	return nil
}

// call performs one remote call, returning transport errors and faults as is.
func (c *Client) call(ctx context.Context, extra xmlrpc.Decorator, method string, args ...any) (any, error) {
	start := time.Now()
	if extra != nil {
		ctx = xmlrpc.WithDecorator(ctx, extra)
	}
	v, err := c.rpc.Call(ctx, method, args...)
	duration := time.Since(start)

	c.metrics.RPCCall(method, err, duration)
	if err != nil {
		logging.Debug("remote call failed", logging.Method(method), logging.Duration("duration", duration), logging.Err(err))
	} else {
		logging.Debug("remote call", logging.Method(method), logging.Duration("duration", duration))
	}
	return v, err
}

// invoke is call for protected operations: it requires a session and reports
// failures as remote call errors.
func (c *Client) invoke(ctx context.Context, method string, args ...any) (any, error) {
	if err := c.ensureLoggedIn(method); err != nil {
		return nil, err
	}
	v, err := c.call(ctx, nil, method, args...)
	if err != nil {
		return nil, apperrors.Remote(method, err)
	}
	return v, nil
}

// jobArg is the form per-job procedures take their id in.
func jobArg(id int) string {
	return strconv.Itoa(id)
}
