package bpm_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/florianilch/bpm-client/bpm"
	"github.com/florianilch/bpm-client/tokenstore"
)

const (
	testBaseURL = "http://bpm.example"
	testAPIRoot = "/rest/bpm/process"
)

// capturedRequest is a request as seen by mockTransport, body already read.
type capturedRequest struct {
	*http.Request
	Body string
}

// mockTransport captures every request and answers with the configured response.
type mockTransport struct {
	requests []capturedRequest
	respond  func(req *http.Request) (*http.Response, error)
}

func (m *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		_ = req.Body.Close()
	}
	m.requests = append(m.requests, capturedRequest{Request: req, Body: string(body)})
	return m.respond(req)
}

func (m *mockTransport) last(t *testing.T) capturedRequest {
	t.Helper()
	require.NotEmpty(t, m.requests, "no request captured")
	return m.requests[len(m.requests)-1]
}

// respondWith returns a responder producing the given status and body.
func respondWith(status int, contentType, body string) func(*http.Request) (*http.Response, error) {
	return func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: status,
			Status:     http.StatusText(status),
			Header:     http.Header{"Content-Type": []string{contentType}},
			Body:       io.NopCloser(strings.NewReader(body)),
			Request:    req,
		}, nil
	}
}

func newTestClient(t *testing.T, transport *mockTransport, store tokenstore.TokenStore) *bpm.Client {
	t.Helper()
	opts := []bpm.Option{bpm.WithTransport(transport)}
	if store != nil {
		opts = append(opts, bpm.WithTokenStore(store))
	}
	client, err := bpm.New(bpm.Config{Name: "app", BaseURL: testBaseURL, APIRoot: testAPIRoot}, opts...)
	require.NoError(t, err)
	return client
}

func TestNewRequiresBaseURLAndAPIRoot(t *testing.T) {
	tests := []struct {
		name string
		cfg  bpm.Config
	}{
		{name: "missing base url", cfg: bpm.Config{APIRoot: testAPIRoot}},
		{name: "invalid base url", cfg: bpm.Config{BaseURL: "not a url", APIRoot: testAPIRoot}},
		{name: "missing api root", cfg: bpm.Config{BaseURL: testBaseURL}},
		{name: "relative api root", cfg: bpm.Config{BaseURL: testBaseURL, APIRoot: "rest"}},
		{name: "bare slash api root", cfg: bpm.Config{BaseURL: testBaseURL, APIRoot: "/"}},
		{name: "slashes only api root", cfg: bpm.Config{BaseURL: testBaseURL, APIRoot: "//"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := bpm.New(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	client, err := bpm.New(bpm.Config{BaseURL: testBaseURL + "/", APIRoot: testAPIRoot + "/"})
	require.NoError(t, err)

	cfg := client.Config()
	assert.Equal(t, bpm.DefaultClientID, cfg.ClientID)
	assert.Equal(t, bpm.DefaultClientSecret, cfg.ClientSecret)
	assert.Equal(t, bpm.DefaultLocale, cfg.Locale)
	assert.Equal(t, testBaseURL, cfg.BaseURL)
	assert.Equal(t, testAPIRoot, cfg.APIRoot)
	assert.Equal(t, "_jmixBpmAccessToken", client.TokenKey())
}

func TestTokenAttach(t *testing.T) {
	ctx := context.Background()

	t.Run("token present", func(t *testing.T) {
		store := tokenstore.NewMemoryStore()
		require.NoError(t, store.Set(ctx, "app_jmixBpmAccessToken", "T"))
		transport := &mockTransport{respond: respondWith(http.StatusOK, "application/json", `{}`)}
		client := newTestClient(t, transport, store)

		_, err := client.Do(ctx, http.MethodGet, "/runtime/process-instances", nil, &bpm.RequestOptions{HandleAs: bpm.HandleAsJSON})
		require.NoError(t, err)
		assert.Equal(t, "app_jmixBpmAccessToken", client.TokenKey())
		assert.Equal(t, "Bearer T", transport.last(t).Header.Get("Authorization"))
	})

	t.Run("no token", func(t *testing.T) {
		transport := &mockTransport{respond: respondWith(http.StatusOK, "application/json", `{}`)}
		client := newTestClient(t, transport, nil)

		_, err := client.Do(ctx, http.MethodGet, "/runtime/process-instances", nil, &bpm.RequestOptions{HandleAs: bpm.HandleAsJSON})
		require.NoError(t, err)
		_, ok := transport.last(t).Header["Authorization"]
		assert.False(t, ok, "Authorization header must not be set without a token")
	})

	t.Run("cleared token sends no header", func(t *testing.T) {
		fileStore, err := tokenstore.NewFileStore(filepath.Join(t.TempDir(), "tokens"))
		require.NoError(t, err)
		keyring.MockInit()
		keyringStore, err := tokenstore.NewKeyringStore("bpm-client-test")
		require.NoError(t, err)

		stores := map[string]tokenstore.TokenStore{
			"memory":  tokenstore.NewMemoryStore(),
			"file":    fileStore,
			"keyring": keyringStore,
		}
		for name, store := range stores {
			t.Run(name, func(t *testing.T) {
				transport := &mockTransport{respond: respondWith(http.StatusOK, "application/json", `{}`)}
				client := newTestClient(t, transport, store)

				require.NoError(t, client.SetToken(ctx, "T"))
				require.NoError(t, client.SetToken(ctx, ""))

				token, err := client.Token(ctx)
				require.NoError(t, err)
				assert.Empty(t, token)

				_, err = client.Do(ctx, http.MethodGet, "/runtime/process-instances", nil, &bpm.RequestOptions{HandleAs: bpm.HandleAsJSON})
				require.NoError(t, err)
				_, ok := transport.last(t).Header["Authorization"]
				assert.False(t, ok, "Authorization header must not be set after clearing the token")
			})
		}
	})

	t.Run("externally rotated token is picked up", func(t *testing.T) {
		store := tokenstore.NewMemoryStore()
		transport := &mockTransport{respond: respondWith(http.StatusOK, "text/plain", ``)}
		client := newTestClient(t, transport, store)

		require.NoError(t, store.Set(ctx, client.TokenKey(), "one"))
		_, err := client.Do(ctx, http.MethodGet, "/a", nil, &bpm.RequestOptions{HandleAs: bpm.HandleAsText})
		require.NoError(t, err)
		require.NoError(t, store.Set(ctx, client.TokenKey(), "two"))
		_, err = client.Do(ctx, http.MethodGet, "/a", nil, &bpm.RequestOptions{HandleAs: bpm.HandleAsText})
		require.NoError(t, err)

		assert.Equal(t, "Bearer one", transport.requests[0].Header.Get("Authorization"))
		assert.Equal(t, "Bearer two", transport.requests[1].Header.Get("Authorization"))
	})
}

func TestMethodBodyHandling(t *testing.T) {
	ctx := context.Background()

	t.Run("GET encodes mapping as ordered query", func(t *testing.T) {
		transport := &mockTransport{respond: respondWith(http.StatusOK, "application/json", `{}`)}
		client := newTestClient(t, transport, nil)

		params := bpm.Params{}.Add("a", "1").Add("b", "2")
		_, err := client.Do(ctx, http.MethodGet, "/runtime/process-instances", params, nil)
		require.NoError(t, err)

		req := transport.last(t)
		assert.Equal(t, testBaseURL+testAPIRoot+"/runtime/process-instances?a=1&b=2", req.URL.String())
		assert.Empty(t, req.Body)
		assert.Empty(t, req.Header.Get("Content-Type"))
	})

	t.Run("GET with empty mapping adds no query", func(t *testing.T) {
		transport := &mockTransport{respond: respondWith(http.StatusOK, "application/json", `{}`)}
		client := newTestClient(t, transport, nil)

		_, err := client.Do(ctx, http.MethodGet, "/runtime/process-instances", map[string]string{}, nil)
		require.NoError(t, err)
		assert.Equal(t, testBaseURL+testAPIRoot+"/runtime/process-instances", transport.last(t).URL.String())
	})

	t.Run("GET with map sorts keys", func(t *testing.T) {
		transport := &mockTransport{respond: respondWith(http.StatusOK, "application/json", `{}`)}
		client := newTestClient(t, transport, nil)

		_, err := client.Do(ctx, http.MethodGet, "/x", map[string]string{"z": "1", "a": "b c"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "a=b%20c&z=1", transport.last(t).URL.RawQuery)
	})

	for _, method := range []string{http.MethodPost, http.MethodPut} {
		t.Run(method+" sends body verbatim", func(t *testing.T) {
			transport := &mockTransport{respond: respondWith(http.StatusOK, "application/json", `{}`)}
			client := newTestClient(t, transport, nil)

			_, err := client.Do(ctx, method, "/query/tasks", `{"assignee":"admin"}`, nil)
			require.NoError(t, err)

			req := transport.last(t)
			assert.Equal(t, method, req.Method)
			assert.Equal(t, `{"assignee":"admin"}`, req.Body)
			assert.Equal(t, "application/json; charset=UTF-8", req.Header.Get("Content-Type"))
			assert.Empty(t, req.URL.RawQuery)
		})
	}

	t.Run("POST rejects unserialized body without sending", func(t *testing.T) {
		transport := &mockTransport{respond: respondWith(http.StatusOK, "application/json", `{}`)}
		client := newTestClient(t, transport, nil)

		_, err := client.Do(ctx, http.MethodPost, "/query/tasks", struct{ A string }{"x"}, nil)
		var bpmErr *bpm.Error
		require.ErrorAs(t, err, &bpmErr)
		assert.Empty(t, transport.requests)
	})

	t.Run("DELETE passes through", func(t *testing.T) {
		transport := &mockTransport{respond: respondWith(http.StatusNoContent, "", ``)}
		client := newTestClient(t, transport, nil)

		_, err := client.Do(ctx, http.MethodDelete, "/runtime/process-instances/1", `ignored`, nil)
		require.NoError(t, err)
		req := transport.last(t)
		assert.Empty(t, req.Body)
		assert.Empty(t, req.Header.Get("Content-Type"))
	})
}

func TestHandleAs(t *testing.T) {
	tests := []struct {
		name       string
		handleAs   bpm.HandleAs
		wantAccept string
		check      func(t *testing.T, res *bpm.Result)
	}{
		{
			name:       "text",
			handleAs:   bpm.HandleAsText,
			wantAccept: "text/html",
			check: func(t *testing.T, res *bpm.Result) {
				assert.Equal(t, `{"a":1}`, res.Text)
			},
		},
		{
			name:       "json",
			handleAs:   bpm.HandleAsJSON,
			wantAccept: "application/json",
			check: func(t *testing.T, res *bpm.Result) {
				assert.Equal(t, map[string]any{"a": float64(1)}, res.Value)
				var v struct{ A int }
				require.NoError(t, res.Decode(&v))
				assert.Equal(t, 1, v.A)
			},
		},
		{
			name:     "blob",
			handleAs: bpm.HandleAsBlob,
			check: func(t *testing.T, res *bpm.Result) {
				assert.Equal(t, []byte(`{"a":1}`), res.Blob)
			},
		},
		{
			name:     "raw",
			handleAs: bpm.HandleAsRaw,
			check: func(t *testing.T, res *bpm.Result) {
				require.NotNil(t, res.Response)
				defer res.Response.Body.Close()
				body, err := io.ReadAll(res.Response.Body)
				require.NoError(t, err)
				assert.Equal(t, `{"a":1}`, string(body))
			},
		},
		{
			name:     "unset",
			handleAs: bpm.HandleAsDefault,
			check: func(t *testing.T, res *bpm.Result) {
				assert.Equal(t, bpm.HandleAsRaw, res.HandledAs)
				require.NotNil(t, res.Response)
				_ = res.Response.Body.Close()
			},
		},
		{
			name:     "multipart form data",
			handleAs: bpm.HandleAsMultipartFormData,
			check: func(t *testing.T, res *bpm.Result) {
				require.NotNil(t, res.Response)
				_ = res.Response.Body.Close()
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &mockTransport{respond: respondWith(http.StatusOK, "application/json", `{"a":1}`)}
			client := newTestClient(t, transport, nil)

			res, err := client.Do(context.Background(), http.MethodGet, "/x", nil, &bpm.RequestOptions{HandleAs: tt.handleAs})
			require.NoError(t, err)
			assert.Equal(t, tt.wantAccept, transport.last(t).Header.Get("Accept"))
			tt.check(t, res)
		})
	}
}

func TestNoContentDecodedAsText(t *testing.T) {
	transport := &mockTransport{respond: respondWith(http.StatusNoContent, "", ``)}
	client := newTestClient(t, transport, nil)

	res, err := client.Do(context.Background(), http.MethodPut, "/runtime/process-instances/1/variables", `[]`, &bpm.RequestOptions{HandleAs: bpm.HandleAsJSON})
	require.NoError(t, err)
	assert.Equal(t, bpm.HandleAsText, res.HandledAs)
	assert.Equal(t, "", res.Text)
	assert.Nil(t, res.Value)

	var v map[string]any
	assert.NoError(t, res.Decode(&v))
	assert.Nil(t, v)
}

func TestCallerHeadersMerged(t *testing.T) {
	ctx := context.Background()
	store := tokenstore.NewMemoryStore()
	require.NoError(t, store.Set(ctx, "app_jmixBpmAccessToken", "T"))
	transport := &mockTransport{respond: respondWith(http.StatusOK, "application/json", `{}`)}
	client := newTestClient(t, transport, store)

	opts := &bpm.RequestOptions{
		HandleAs: bpm.HandleAsJSON,
		Header: http.Header{
			"X-Tenant":      []string{"acme"},
			"Accept":        []string{"text/plain"},
			"Authorization": []string{"Bearer stale"},
		},
		Editors: []bpm.RequestEditorFn{
			func(ctx context.Context, req *http.Request) error {
				req.Header.Set("X-Request-Id", "42")
				return nil
			},
		},
	}
	_, err := client.Do(ctx, http.MethodPost, "/query/tasks", `{}`, opts)
	require.NoError(t, err)

	req := transport.last(t)
	assert.Equal(t, "acme", req.Header.Get("X-Tenant"))
	assert.Equal(t, "42", req.Header.Get("X-Request-Id"))
	assert.Equal(t, []string{"application/json"}, req.Header.Values("Accept"))
	assert.Equal(t, []string{"Bearer T"}, req.Header.Values("Authorization"))
	assert.Equal(t, "application/json; charset=UTF-8", req.Header.Get("Content-Type"))
}

func TestEditorFailureNotSent(t *testing.T) {
	transport := &mockTransport{respond: respondWith(http.StatusOK, "application/json", `{}`)}
	client := newTestClient(t, transport, nil)

	editErr := errors.New("boom")
	_, err := client.Do(context.Background(), http.MethodGet, "/x", nil, &bpm.RequestOptions{
		Editors: []bpm.RequestEditorFn{func(context.Context, *http.Request) error { return editErr }},
	})

	var bpmErr *bpm.Error
	require.ErrorAs(t, err, &bpmErr)
	assert.ErrorIs(t, err, editErr)
	assert.Empty(t, transport.requests)
}

func TestStatusFailure(t *testing.T) {
	transport := &mockTransport{respond: func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Status:     "404 Not Found",
			Header:     http.Header{},
			Body:       io.NopCloser(strings.NewReader(`{"message":"no such instance"}`)),
			Request:    req,
		}, nil
	}}
	client := newTestClient(t, transport, nil)

	_, err := client.Do(context.Background(), http.MethodGet, "/runtime/process-instances/missing", nil, &bpm.RequestOptions{HandleAs: bpm.HandleAsJSON})

	var bpmErr *bpm.Error
	require.ErrorAs(t, err, &bpmErr)
	assert.Equal(t, "Not Found", bpmErr.Message)
	assert.Equal(t, http.StatusNotFound, bpmErr.StatusCode)
	assert.Equal(t, `{"message":"no such instance"}`, string(bpmErr.Body))
	require.NotNil(t, bpmErr.Response)
	body, readErr := io.ReadAll(bpmErr.Response.Body)
	require.NoError(t, readErr)
	assert.Equal(t, `{"message":"no such instance"}`, string(body))
	assert.True(t, bpm.IsStatus(err, http.StatusNotFound))
	assert.Len(t, transport.requests, 1)
}

func TestNetworkFailureNormalized(t *testing.T) {
	netErr := errors.New("connection refused")
	transport := &mockTransport{respond: func(*http.Request) (*http.Response, error) { return nil, netErr }}
	client := newTestClient(t, transport, nil)

	_, err := client.Do(context.Background(), http.MethodGet, "/x", nil, nil)

	var bpmErr *bpm.Error
	require.ErrorAs(t, err, &bpmErr)
	assert.Contains(t, bpmErr.Message, "connection refused")
	assert.Nil(t, bpmErr.Response)
	assert.ErrorIs(t, err, netErr)
	assert.Len(t, transport.requests, 1, "no retries")
}

func TestDecodeFailureNormalized(t *testing.T) {
	transport := &mockTransport{respond: respondWith(http.StatusOK, "application/json", `{"data":`)}
	client := newTestClient(t, transport, nil)

	_, err := client.Do(context.Background(), http.MethodGet, "/x", nil, &bpm.RequestOptions{HandleAs: bpm.HandleAsJSON})

	var bpmErr *bpm.Error
	require.ErrorAs(t, err, &bpmErr)
	assert.Contains(t, bpmErr.Message, "unexpected end of JSON input")
}

func TestEmptyJSONBodyIsDecodeFailure(t *testing.T) {
	transport := &mockTransport{respond: respondWith(http.StatusOK, "application/json", ``)}
	client := newTestClient(t, transport, nil)

	_, err := client.Do(context.Background(), http.MethodGet, "/x", nil, &bpm.RequestOptions{HandleAs: bpm.HandleAsJSON})

	var bpmErr *bpm.Error
	require.ErrorAs(t, err, &bpmErr)
	assert.Contains(t, bpmErr.Message, "unexpected end of JSON input")
}

func TestCancelledContext(t *testing.T) {
	transport := &mockTransport{respond: func(req *http.Request) (*http.Response, error) {
		return nil, req.Context().Err()
	}}
	client := newTestClient(t, transport, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Do(ctx, http.MethodGet, "/x", nil, nil)

	var bpmErr *bpm.Error
	require.ErrorAs(t, err, &bpmErr)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTokenSource(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, &mockTransport{}, nil)

	_, err := client.TokenSource(ctx).Token()
	require.Error(t, err)

	require.NoError(t, client.SetToken(ctx, "abc"))
	tok, err := client.TokenSource(ctx).Token()
	require.NoError(t, err)
	assert.Equal(t, "abc", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)
}

func TestClientWideEditors(t *testing.T) {
	ctx := context.Background()
	transport := &mockTransport{respond: respondWith(http.StatusOK, "application/json", `{"access_token":"X"}`)}

	var order []string
	client, err := bpm.New(bpm.Config{BaseURL: testBaseURL, APIRoot: testAPIRoot},
		bpm.WithTransport(transport),
		bpm.WithRequestEditorFn(func(_ context.Context, req *http.Request) error {
			order = append(order, "client")
			req.Header.Set("X-Request-Id", "rid")
			return nil
		}),
	)
	require.NoError(t, err)

	_, err = client.Authenticate(ctx, "admin", "admin")
	require.NoError(t, err)
	assert.Equal(t, "rid", transport.last(t).Header.Get("X-Request-Id"))
	assert.Equal(t, "application/x-www-form-urlencoded; charset=UTF-8", transport.last(t).Header.Get("Content-Type"))

	_, err = client.Do(ctx, http.MethodGet, "/x", nil, &bpm.RequestOptions{
		HandleAs: bpm.HandleAsJSON,
		Editors: []bpm.RequestEditorFn{func(context.Context, *http.Request) error {
			order = append(order, "call")
			return nil
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "rid", transport.last(t).Header.Get("X-Request-Id"))
	assert.Equal(t, []string{"client", "client", "call"}, order)
}
