package bpm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/florianilch/bpm-client/tokenstore"
)

// instrumentationName identifies spans emitted by this package.
const instrumentationName = "github.com/florianilch/bpm-client/bpm"

// Client sends requests to one BPM server on behalf of one logical client name.
// Safe for concurrent use; the token store is the only shared mutable state.
type Client struct {
	cfg        Config
	store      tokenstore.TokenStore
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
	editors    []RequestEditorFn
}

// Option configures a Client.
type Option func(*Client)

// WithTokenStore sets the store holding the bearer token.
// If not provided, a fresh tokenstore.MemoryStore is used.
func WithTokenStore(store tokenstore.TokenStore) Option {
	return func(c *Client) {
		c.store = store
	}
}

// WithHTTPClient sets the HTTP client used for every request.
// Timeouts configured on it apply; the Client itself imposes none.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTransport sets the round tripper of the underlying HTTP client.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient = &http.Client{Transport: transport}
	}
}

// WithLogger sets the logger for request diagnostics. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRequestEditorFn adds an editor applied to every request, including token
// requests, before per-call RequestOptions.Editors.
func WithRequestEditorFn(fn RequestEditorFn) Option {
	return func(c *Client) {
		c.editors = append(c.editors, fn)
	}
}

// WithTracerProvider sets the provider for client spans. Defaults to the global provider.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracer = provider.Tracer(instrumentationName)
	}
}

// New creates a Client. Config defaults are applied before validation.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}

	c := &Client{
		cfg:        cfg,
		store:      tokenstore.NewMemoryStore(),
		httpClient: &http.Client{},
		logger:     slog.Default(),
		tracer:     otel.GetTracerProvider().Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.store == nil {
		return nil, fmt.Errorf("missing token store")
	}
	if c.httpClient == nil {
		return nil, fmt.Errorf("missing HTTP client")
	}

	return c, nil
}

// Config returns the effective configuration, defaults applied.
func (c *Client) Config() Config {
	return c.cfg
}

// TokenKey returns the key under which this client's token is stored.
func (c *Client) TokenKey() string {
	return c.cfg.Name + "_" + tokenKeySuffix
}

// Token returns the current bearer token, or "" if none is stored. An empty
// stored value counts as none. The store is consulted on every call.
func (c *Client) Token(ctx context.Context) (string, error) {
	token, err := c.store.Get(ctx, c.TokenKey())
	if errors.Is(err, tokenstore.ErrTokenNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

// SetToken replaces the stored bearer token.
func (c *Client) SetToken(ctx context.Context, token string) error {
	return c.store.Set(ctx, c.TokenKey(), token)
}

// TokenSource exposes the stored token as an oauth2.TokenSource, e.g. for
// oauth2.NewClient. It never refreshes; Authenticate must have run first.
func (c *Client) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &storeTokenSource{ctx: ctx, client: c}
}

type storeTokenSource struct {
	ctx    context.Context
	client *Client
}

// Compile-time check to ensure storeTokenSource implements oauth2.TokenSource
var _ oauth2.TokenSource = (*storeTokenSource)(nil)

func (s *storeTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.client.Token(s.ctx)
	if err != nil {
		return nil, AsError(fmt.Errorf("reading token: %w", err))
	}
	if token == "" {
		return nil, &Error{Message: "no token stored for " + s.client.TokenKey()}
	}
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}
