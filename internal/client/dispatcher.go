package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"sharkninja-client/internal/auth"
	"sharkninja-client/internal/logging"
)

// SessionGuard is the slice of the auth session the dispatcher needs: a
// validity check before sending, the bearer token, and a way to drop a
// credential the service rejected.
type SessionGuard interface {
	CheckAuth(strict bool) error
	Token() (string, error)
	Invalidate()
	HTTPClient() *http.Client
}

// Request represents an authorized HTTP request to be made
type Request struct {
	Method  string
	URL     string
	Body    interface{}
	Headers map[string]string
	Query   url.Values
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v interface{}) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to parse response body: %w", err)
	}
	return nil
}

// Err returns a StatusError when the response carries a non-2xx status.
func (r *Response) Err() error {
	if r.StatusCode >= 200 && r.StatusCode < 300 {
		return nil
	}
	return &StatusError{StatusCode: r.StatusCode, Body: r.Body}
}

// StatusError is a non-2xx service response that is not an auth failure.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("service returned status %d", e.StatusCode)
	}
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("service returned status %d: %s", e.StatusCode, body)
}

// TransportError is a network-layer failure, distinct from auth and service
// errors. It is never retried here; callers decide whether to retry.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

// Unwrap returns the underlying error
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Dispatcher attaches the session's bearer credential to outbound requests
// and classifies the outcome. Requests ride the session's pooled HTTP client.
type Dispatcher struct {
	session SessionGuard
	logger  *logrus.Entry
}

// NewDispatcher creates a dispatcher bound to one session.
func NewDispatcher(session SessionGuard, logger *logrus.Logger) (*Dispatcher, error) {
	if session == nil {
		return nil, fmt.Errorf("session is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &Dispatcher{
		session: session,
		logger:  logging.NewComponentLogger(logger, "dispatcher"),
	}, nil
}

// Send executes one authorized request. The credential is checked before
// anything goes on the wire; an unusable credential propagates
// ErrNotAuthenticated without sending. A 401 from the service invalidates the
// session and surfaces ErrTokenRejected, since the token passed local checks
// but was rejected remotely. Other non-2xx statuses are returned in the
// Response for the caller to classify.
func (d *Dispatcher) Send(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}

	if err := d.session.CheckAuth(false); err != nil {
		return nil, err
	}
	token, err := d.session.Token()
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if req.Body != nil {
		bodyBytes, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	if len(req.Query) > 0 {
		q := httpReq.URL.Query()
		for key, values := range req.Query {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		httpReq.URL.RawQuery = q.Encode()
	}

	// Caller headers are copied in, never mutated in place.
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	requestID := uuid.NewString()
	httpReq.Header.Set("X-Request-Id", requestID)

	httpResp, err := d.session.HTTPClient().Do(httpReq)
	if err != nil {
		return nil, &TransportError{Op: req.Method, URL: req.URL, Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &TransportError{Op: req.Method, URL: req.URL, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	d.logger.WithFields(logrus.Fields{
		"method":     req.Method,
		"url":        req.URL,
		"status":     httpResp.StatusCode,
		"request_id": requestID,
	}).Debug("Request completed")

	if httpResp.StatusCode == http.StatusUnauthorized {
		d.session.Invalidate()
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL, auth.ErrTokenRejected)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       respBody,
		Headers:    httpResp.Header,
	}, nil
}
