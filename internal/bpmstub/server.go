// Package bpmstub is an in-memory emulation of the BPM REST API subset the
// bpm client covers. It backs `bpmctl stub serve` and end-to-end tests.
package bpmstub

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/florianilch/bpm-client/bpm"
)

// Default stub settings
const (
	DefaultAPIRoot       = "/rest/bpm/process"
	DefaultTokenEndpoint = bpm.DefaultTokenEndpoint
	DefaultClientID      = bpm.DefaultClientID
	DefaultClientSecret  = bpm.DefaultClientSecret
)

// Options configures a Server. Zero values fall back to the defaults.
type Options struct {
	APIRoot       string
	TokenEndpoint string
	ClientID      string
	ClientSecret  string

	// Users maps user names to passwords accepted by the password grant.
	// Defaults to admin/admin.
	Users map[string]string

	Definitions []Definition
	Logger      *slog.Logger
}

// Server emulates a BPM engine's REST API.
type Server struct {
	mux    *http.ServeMux
	server *http.Server
	store  *store
	opts   Options
}

// Compile-time check that Server implements http.Handler
var _ http.Handler = (*Server)(nil)

// New creates a Server with the seeded definitions deployed.
func New(opts Options) (*Server, error) {
	if opts.APIRoot == "" {
		opts.APIRoot = DefaultAPIRoot
	}
	opts.APIRoot = "/" + strings.Trim(opts.APIRoot, "/")
	if opts.APIRoot == "/" {
		return nil, fmt.Errorf("api root must not be empty")
	}
	if opts.TokenEndpoint == "" {
		opts.TokenEndpoint = DefaultTokenEndpoint
	}
	if !strings.HasPrefix(opts.TokenEndpoint, "/") {
		return nil, fmt.Errorf("invalid token endpoint %q: must start with /", opts.TokenEndpoint)
	}
	if opts.ClientID == "" {
		opts.ClientID = DefaultClientID
	}
	if opts.ClientSecret == "" {
		opts.ClientSecret = DefaultClientSecret
	}
	if len(opts.Users) == 0 {
		opts.Users = map[string]string{"admin": "admin"}
	}
	if len(opts.Definitions) == 0 {
		opts.Definitions = DefaultDefinitions
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		mux:   http.NewServeMux(),
		store: newStore(opts.APIRoot, opts.Definitions),
		opts:  opts,
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	root := s.opts.APIRoot
	logging := Logging(s.opts.Logger)
	auth := requireBearer(s.store)

	s.mux.Handle("POST "+s.opts.TokenEndpoint, applyMiddlewares(http.HandlerFunc(s.handleToken),
		logging,
		Recovery,
	))

	api := map[string]http.HandlerFunc{
		"GET " + root + "/repository/process-definitions":                    s.handleListDefinitions,
		"PUT " + root + "/repository/process-definitions/{id}":               s.handleDefinitionAction,
		"GET " + root + "/repository/process-definitions/{id}/identitylinks": s.handleIdentityLinks,
		"GET " + root + "/runtime/process-instances":                         s.handleListInstances,
		"POST " + root + "/runtime/process-instances":                        s.handleStartInstance,
		"GET " + root + "/runtime/process-instances/{id}/variables":          s.handleListVariables,
		"PUT " + root + "/runtime/process-instances/{id}/variables":          s.handleUpdateVariables,
		"POST " + root + "/query/process-instances":                          s.handleQueryInstances,
		"POST " + root + "/query/tasks":                                      s.handleQueryTasks,
		"POST " + root + "/runtime/tasks/{id}":                               s.handleTaskAction,
	}
	for pattern, handler := range api {
		s.mux.Handle(pattern, applyMiddlewares(handler,
			logging,
			Recovery,
			auth,
		))
	}
}

// ServeHTTP implements http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// APIRoot returns the path prefix of the process API.
func (s *Server) APIRoot() string {
	return s.opts.APIRoot
}

// Start starts the HTTP server in the background and returns immediately.
// Returns a channel for runtime errors and a startup error if any.
//
// Startup errors (port in use, permission denied) are returned immediately.
// Runtime errors (network failures during operation) are sent to the error channel.
//
// The caller is responsible for calling Shutdown() to stop the server.
func (s *Server) Start(ctx context.Context, address string) (<-chan error, error) {
	// Create listener synchronously to catch port-in-use errors immediately
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	return s.Serve(ctx, listener), nil
}

// Serve serves on an existing listener. See Start.
func (s *Server) Serve(ctx context.Context, listener net.Listener) <-chan error {
	s.server = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)

	go func() {
		err := s.server.Serve(listener)
		// Only report error if not from graceful shutdown
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh
}

// Shutdown performs graceful shutdown of the HTTP server.
// Returns error if shutdown fails or times out.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	if err := s.server.Shutdown(ctx); err != nil {
		// Graceful shutdown failed - force close
		_ = s.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}

// checkClient verifies the Basic client credentials of a token request.
func (s *Server) checkClient(r *http.Request) bool {
	id, secret, ok := r.BasicAuth()
	return ok &&
		subtle.ConstantTimeCompare([]byte(id), []byte(s.opts.ClientID)) == 1 &&
		subtle.ConstantTimeCompare([]byte(secret), []byte(s.opts.ClientSecret)) == 1
}
