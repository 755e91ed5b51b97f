package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"homestay/internal/notify"

	"github.com/sirupsen/logrus"
)

const maxBodySize = 4 << 20

// Credentials is the session a client is bound to.
type Credentials interface {
	Token(ctx context.Context) string
	Invalidate(ctx context.Context)
}

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to the REST backend. The zero binding sends no bearer token
// and drops notifications; use For to bind a session and a sink.
type Client struct {
	baseURL  string
	timeout  time.Duration
	http     *http.Client
	log      *logrus.Logger
	creds    Credentials
	notifier notify.Notifier
}

type Request struct {
	Method string
	Path   string
	Body   any
	Query  url.Values
	// Public requests never carry a token, and a 401 on them is an ordinary
	// authentication failure rather than an expired session.
	Public bool
}

func New(cfg Config, log *logrus.Logger) *Client {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		timeout:  timeout,
		http:     httpClient,
		log:      log,
		notifier: notify.Discard,
	}
}

// For returns a copy of c bound to one session and one notification sink.
func (c *Client) For(creds Credentials, n notify.Notifier) *Client {
	bound := *c
	bound.creds = creds
	bound.notifier = n
	if bound.notifier == nil {
		bound.notifier = notify.Discard
	}
	return &bound
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path}, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

// Do sends req and decodes the unwrapped payload into out. Every failure
// is returned as *Error and, unless the caller canceled ctx, reported through
// exactly one notification.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	gerr := c.do(ctx, req, out)
	if gerr == nil {
		return nil
	}

	fields := logrus.Fields{
		"method": req.Method,
		"path":   req.Path,
		"status": gerr.Status,
		"kind":   gerr.Kind,
	}
	if gerr.Kind == KindCanceled {
		c.log.WithFields(fields).Debug("backend request canceled")
		return gerr
	}
	if gerr.Kind == KindAuthentication && !req.Public {
		if c.creds != nil {
			c.creds.Invalidate(ctx)
		}
		gerr.Redirect = LoginPath
	}
	c.log.WithFields(fields).Warn("backend request failed: " + gerr.Message)
	c.notifier.Notify(notify.Notification{Level: notify.LevelError, Message: gerr.Message})
	return gerr
}

func (c *Client) do(ctx context.Context, req Request, out any) *Error {
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	target := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return &Error{Kind: KindValidation, Code: codeFor(KindValidation), Message: MsgInvalidData, Err: err}
		}
		body = bytes.NewReader(raw)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, req.Method, target, body)
	if err != nil {
		return &Error{Kind: KindServer, Code: codeFor(KindServer), Message: MsgGeneric, Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if !req.Public && c.creds != nil {
		if token := c.creds.Token(ctx); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return transportError(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return transportError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, raw, req)
	}

	payload, message, ok := unwrap(raw)
	if !ok {
		if message == "" {
			message = MsgGeneric
		}
		return &Error{Kind: KindServer, Status: resp.StatusCode, Code: codeFor(KindServer), Message: message}
	}
	if out == nil || len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &Error{
			Kind:    KindServer,
			Status:  resp.StatusCode,
			Code:    "BAD_RESPONSE",
			Message: MsgGeneric,
			Err:     fmt.Errorf("decode %s %s: %w", req.Method, req.Path, err),
		}
	}
	return nil
}

func transportError(ctx context.Context, err error) *Error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return &Error{Kind: KindCanceled, Code: codeFor(KindCanceled), Message: "request canceled", Err: err}
	}
	return &Error{Kind: KindTransport, Code: codeFor(KindTransport), Message: MsgUnreachable, Err: err}
}

func statusError(status int, body []byte, req Request) *Error {
	message, code := errorDetails(body)

	var kind Kind
	switch {
	case status == http.StatusUnauthorized:
		kind = KindAuthentication
		if !req.Public || message == "" {
			message = MsgSessionExpired
		}
	case status == http.StatusForbidden:
		kind = KindAuthorization
		message = MsgForbidden
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		kind = KindValidation
		if message == "" {
			message = MsgInvalidData
		}
	case status == http.StatusNotFound:
		kind = KindNotFound
	case status == http.StatusConflict:
		kind = KindConflict
	default:
		kind = KindServer
	}

	if message != "" && isPriceOverflow(req.Method, req.Path, message) {
		return &Error{Kind: KindConflict, Status: status, Code: "PRICE_OVERFLOW", Message: MsgPriceOverflow}
	}
	if message == "" {
		message = MsgGeneric
	}
	if code == "" {
		code = codeFor(kind)
	}
	return &Error{Kind: kind, Status: status, Code: code, Message: message}
}
