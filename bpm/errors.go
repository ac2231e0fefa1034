package bpm

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// maxErrorBody bounds how much of a failed response is buffered into Error.Body.
const maxErrorBody = 64 << 10

// Error is the single failure kind returned by Client.
//
// Network failures, non-2xx responses and decode failures all surface as *Error.
// For non-2xx responses Message is the HTTP status text and Response is the
// original response; its body has been buffered into Body and stays readable.
type Error struct {
	Message    string
	StatusCode int
	Response   *http.Response
	Body       []byte

	cause error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("bpm: %s (HTTP %d)", e.Message, e.StatusCode)
	}
	return "bpm: " + e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// AsError converts any error to *Error.
//
//   - nil input => nil output
//   - if err is or wraps an *Error => that *Error, unchanged
//   - otherwise err becomes the cause of a new *Error carrying its message
func AsError(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	return &Error{Message: err.Error(), cause: err}
}

// IsStatus reports whether err is an *Error produced by a response with the given status.
func IsStatus(err error, status int) bool {
	var e *Error
	return errors.As(err, &e) && e.StatusCode == status
}

// checkStatus passes 2xx responses through and turns everything else into *Error.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))

	return &Error{
		Message:    statusText(resp),
		StatusCode: resp.StatusCode,
		Response:   resp,
		Body:       body,
	}
}

// statusText returns the reason phrase of resp ("Not Found" for "404 Not Found").
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}
