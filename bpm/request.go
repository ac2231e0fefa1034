package bpm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const contentTypeJSON = "application/json; charset=UTF-8"

// HandleAs selects how a response body is decoded and which Accept header is sent.
type HandleAs string

const (
	// HandleAsDefault leaves the response undecoded, like HandleAsRaw.
	HandleAsDefault HandleAs = ""
	// HandleAsText reads the body as a string and sends Accept: text/html.
	HandleAsText HandleAs = "text"
	// HandleAsJSON parses the body as JSON and sends Accept: application/json.
	HandleAsJSON HandleAs = "json"
	// HandleAsBlob reads the body as bytes.
	HandleAsBlob HandleAs = "blob"
	// HandleAsRaw returns the *http.Response with its body unread.
	HandleAsRaw HandleAs = "raw"
	// HandleAsMultipartFormData is accepted for completeness and behaves like HandleAsRaw.
	HandleAsMultipartFormData HandleAs = "multipart-form-data"
)

// RequestEditorFn adjusts an outgoing request before the client adds its own headers.
type RequestEditorFn func(ctx context.Context, req *http.Request) error

// RequestOptions configures a single Do call.
type RequestOptions struct {
	HandleAs HandleAs

	// Header is copied onto the request. Headers the client computes
	// (Authorization, Content-Type, Accept) take precedence on conflict.
	Header http.Header

	// Editors run in order after Header and the client-wide editors are applied.
	Editors []RequestEditorFn
}

// Result is a decoded response. Which fields are populated depends on HandledAs.
type Result struct {
	StatusCode int
	Header     http.Header

	// HandledAs is the decoding actually applied. A 204 response is always
	// handled as text; HandleAsDefault and unknown modes report HandleAsRaw.
	HandledAs HandleAs

	Text  string
	Blob  []byte
	JSON  json.RawMessage
	Value any

	// Response is set for raw handling. The caller must close its body.
	Response *http.Response
}

// Decode unmarshals the JSON body into v. A 204 response leaves v untouched.
func (r *Result) Decode(v any) error {
	if len(r.JSON) == 0 {
		if r.StatusCode == http.StatusNoContent {
			return nil
		}
		return &Error{Message: fmt.Sprintf("response has no JSON body (handled as %s)", r.HandledAs)}
	}
	if err := json.Unmarshal(r.JSON, v); err != nil {
		return AsError(fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

// Do sends exactly one request to BaseURL + APIRoot + path.
//
// For POST and PUT, body is sent as-is with Content-Type application/json and
// must already be serialized (string, []byte, json.RawMessage or io.Reader).
// For GET, a non-empty Params, map[string]string or url.Values body becomes the
// query string. Bodies of other methods are ignored.
//
// Every failure is returned as *Error.
func (c *Client) Do(ctx context.Context, method, path string, body any, opts *RequestOptions) (res *Result, err error) {
	if opts == nil {
		opts = &RequestOptions{}
	}

	ctx, span := c.tracer.Start(ctx, "bpm "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("bpm.path", path),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	res, err = c.do(ctx, method, path, body, opts)
	if err != nil {
		return nil, AsError(err)
	}
	return res, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, opts *RequestOptions) (*Result, error) {
	target := c.cfg.BaseURL + c.cfg.APIRoot + path

	var reqBody io.Reader
	switch method {
	case http.MethodPost, http.MethodPut:
		r, err := bodyReader(body)
		if err != nil {
			return nil, err
		}
		reqBody = r
	case http.MethodGet:
		params, err := queryParams(body)
		if err != nil {
			return nil, err
		}
		target += EncodeQuery(params)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	for key, values := range opts.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if err := c.applyEditors(ctx, req, opts.Editors); err != nil {
		return nil, err
	}

	token, err := c.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if method == http.MethodPost || method == http.MethodPut {
		req.Header.Set("Content-Type", contentTypeJSON)
	}
	switch opts.HandleAs {
	case HandleAsText:
		req.Header.Set("Accept", "text/html")
	case HandleAsJSON:
		req.Header.Set("Accept", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	c.logger.DebugContext(ctx, "bpm request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	return decode(resp, opts.HandleAs)
}

// applyEditors runs the client-wide editors, then extra.
func (c *Client) applyEditors(ctx context.Context, req *http.Request, extra []RequestEditorFn) error {
	for _, edit := range append(c.editors[:len(c.editors):len(c.editors)], extra...) {
		if err := edit(ctx, req); err != nil {
			return fmt.Errorf("editing request: %w", err)
		}
	}
	return nil
}

// decode reads resp according to handleAs. Only raw handling leaves the body open.
func decode(resp *http.Response, handleAs HandleAs) (*Result, error) {
	// No Content never carries a parseable body
	if resp.StatusCode == http.StatusNoContent {
		handleAs = HandleAsText
	}

	res := &Result{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		HandledAs:  handleAs,
	}

	switch handleAs {
	case HandleAsText, HandleAsBlob, HandleAsJSON:
		defer func() { _ = resp.Body.Close() }()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading response body: %w", err)
		}

		switch handleAs {
		case HandleAsText:
			res.Text = string(data)
		case HandleAsBlob:
			res.Blob = data
		case HandleAsJSON:
			if err := json.Unmarshal(data, &res.Value); err != nil {
				return nil, fmt.Errorf("decoding JSON response: %w", err)
			}
			res.JSON = data
		}
	default:
		res.HandledAs = HandleAsRaw
		res.Response = resp
	}

	return res, nil
}

// bodyReader accepts only pre-serialized payloads.
func bodyReader(body any) (io.Reader, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case string:
		return strings.NewReader(b), nil
	case []byte:
		return bytes.NewReader(b), nil
	case json.RawMessage:
		return bytes.NewReader(b), nil
	case io.Reader:
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported body type %T: serialize the payload before sending", body)
	}
}

// queryParams turns a GET body into ordered parameters.
func queryParams(body any) (Params, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case Params:
		return b, nil
	case map[string]string:
		keys := make([]string, 0, len(b))
		for k := range b {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		params := make(Params, 0, len(keys))
		for _, k := range keys {
			params = append(params, Param{Key: k, Value: b[k]})
		}
		return params, nil
	case url.Values:
		keys := make([]string, 0, len(b))
		for k := range b {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var params Params
		for _, k := range keys {
			for _, v := range b[k] {
				params = append(params, Param{Key: k, Value: v})
			}
		}
		return params, nil
	default:
		return nil, fmt.Errorf("unsupported query type %T: use Params or ParamsOf", body)
	}
}
