package bpm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
)

// AuthOption configures a single Authenticate call.
type AuthOption func(*authConfig)

type authConfig struct {
	tokenEndpoint string
}

// WithTokenEndpoint overrides the token endpoint path (default "/oauth/token"),
// e.g. "/ldap/token". The path is resolved against BaseURL, not APIRoot.
func WithTokenEndpoint(endpoint string) AuthOption {
	return func(c *authConfig) {
		c.tokenEndpoint = endpoint
	}
}

// BasicAuthHeaders returns the headers of a token request authenticated with the
// client credentials. An empty locale means DefaultLocale.
func BasicAuthHeaders(clientID, clientSecret, locale string) http.Header {
	if locale == "" {
		locale = DefaultLocale
	}

	h := make(http.Header, 3)
	h.Set("Accept-Language", locale)
	h.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(clientID+":"+clientSecret)))
	h.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	return h
}

// Authenticate performs the OAuth2 password grant and stores the issued access
// token for subsequent requests. The returned token carries the full token
// response; use Token.Extra to read server-specific fields.
//
// One attempt is made; every failure is returned as *Error.
func (c *Client) Authenticate(ctx context.Context, username, password string, opts ...AuthOption) (tok *oauth2.Token, err error) {
	cfg := authConfig{tokenEndpoint: DefaultTokenEndpoint}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, span := c.tracer.Start(ctx, "bpm authenticate", trace.WithSpanKind(trace.SpanKindClient))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	tok, err = c.authenticate(ctx, username, password, cfg.tokenEndpoint)
	if err != nil {
		return nil, AsError(err)
	}
	return tok, nil
}

func (c *Client) authenticate(ctx context.Context, username, password, endpoint string) (*oauth2.Token, error) {
	form := "grant_type=password&username=" + escapeComponent(username) + "&password=" + escapeComponent(password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+endpoint, strings.NewReader(form))
	if err != nil {
		return nil, fmt.Errorf("building token request: %w", err)
	}
	if err := c.applyEditors(ctx, req, nil); err != nil {
		return nil, err
	}
	for key, values := range BasicAuthHeaders(c.cfg.ClientID, c.cfg.ClientSecret, c.cfg.Locale) {
		req.Header[key] = values
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}

	accessToken, _ := raw["access_token"].(string)
	if accessToken == "" {
		return nil, errors.New("token response has no access_token")
	}

	if err := c.SetToken(ctx, accessToken); err != nil {
		return nil, fmt.Errorf("storing token: %w", err)
	}
	c.logger.DebugContext(ctx, "authenticated", "client", c.cfg.Name, "token_key", c.TokenKey())

	return tokenFromResponse(accessToken, raw), nil
}

// tokenFromResponse maps the standard token response fields onto oauth2.Token.
func tokenFromResponse(accessToken string, raw map[string]any) *oauth2.Token {
	tok := &oauth2.Token{AccessToken: accessToken}
	tok.TokenType, _ = raw["token_type"].(string)
	tok.RefreshToken, _ = raw["refresh_token"].(string)
	if expiresIn, ok := raw["expires_in"].(float64); ok && expiresIn > 0 {
		tok.ExpiresIn = int64(expiresIn)
		tok.Expiry = time.Now().Add(time.Duration(expiresIn) * time.Second)
	}
	return tok.WithExtra(raw)
}
