package glpi

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const (
	headerAppToken     = "App-Token"
	headerSessionToken = "Session-Token"
)

// Credentials authenticate the initSession call. Build them with UserToken
// or BasicAuth.
type Credentials struct {
	userToken string
	username  string
	password  string
}

// UserToken authenticates with a personal API token.
func UserToken(token string) Credentials {
	return Credentials{userToken: token}
}

// BasicAuth authenticates with a GLPI login and password.
func BasicAuth(username, password string) Credentials {
	return Credentials{username: username, password: password}
}

func (c Credentials) validate() error {
	switch {
	case c.userToken != "" && c.username != "":
		return fmt.Errorf("%w: user token and username are mutually exclusive", ErrInvalidConfig)
	case c.userToken == "" && c.username == "":
		return fmt.Errorf("%w: user token or username/password is required", ErrInvalidConfig)
	}
	return nil
}

// Client is a GLPI REST API client bound to one session. It is created by New,
// which opens the session, and must be released with Close.
//
// A Client is safe for concurrent use. Requests share the server side
// session, so changing the active profile or entities affects every
// request in flight. Requests issued after Close fail with
// ErrSessionClosed.
type Client struct {
	baseURL      string
	rest         *resty.Client
	logger       zerolog.Logger
	fields       *FieldDirectory
	sessionToken string
	closed       atomic.Bool
}

// New opens a GLPI session at baseURL (the apirest.php endpoint) and returns
// a client carrying the session token.
func New(ctx context.Context, baseURL, appToken string, creds Credentials, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: glpi URL is required", ErrInvalidConfig)
	}
	if err := creds.validate(); err != nil {
		return nil, err
	}

	options := newClientOptions()
	for _, opt := range opts {
		opt(options)
	}

	var rc *resty.Client
	if options.httpClient != nil {
		rc = resty.NewWithClient(cloneHTTPClient(options.httpClient))
		if options.timeoutSet {
			rc.SetTimeout(options.timeout)
		}
	} else {
		rc = resty.New().SetTimeout(options.timeout)
	}

	rc.SetBaseURL(baseURL).
		SetRetryCount(0).
		SetLogger(newRestyLogger(options.logger)).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", options.userAgent).
		SetHeaders(options.requestHeaders)

	if appToken != "" {
		rc.SetHeader(headerAppToken, appToken)
	}
	if options.insecureSkipVerify {
		rc.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec // opt-in
	}

	c := &Client{
		baseURL: baseURL,
		rest:    rc,
		logger:  options.logger,
	}
	c.fields = NewFieldDirectory(c, options.logger)

	rc.OnAfterResponse(func(_ *resty.Client, r *resty.Response) error {
		c.logger.Debug().
			Str("method", r.Request.Method).
			Str("url", r.Request.URL).
			Int("status", r.StatusCode()).
			Dur("elapsed", r.Time()).
			Msg("GLPI API request")
		return nil
	})

	token, err := c.initSession(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("failed to open GLPI session: %w", err)
	}
	c.sessionToken = token
	rc.SetHeader(headerSessionToken, token)

	c.logger.Debug().Str("url", baseURL).Msg("GLPI session opened")

	return c, nil
}

// cloneHTTPClient copies hc and its *http.Transport so the timeout and TLS
// settings applied by New stay off the caller's client.
func cloneHTTPClient(hc *http.Client) *http.Client {
	clone := *hc
	if t, ok := hc.Transport.(*http.Transport); ok {
		clone.Transport = t.Clone()
	}
	return &clone
}

// WithSession opens a session, runs fn and always kills the session
// afterwards. An error from fn takes precedence over a Close error.
func WithSession(ctx context.Context, baseURL, appToken string, creds Credentials, fn func(*Client) error, opts ...Option) (err error) {
	c, err := New(ctx, baseURL, appToken, creds, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(c)
}

// BaseURL returns the API endpoint the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SessionToken returns the token obtained at login
func (c *Client) SessionToken() string {
	return c.sessionToken
}

// Fields returns the field directory backing symbolic field resolution.
func (c *Client) Fields() *FieldDirectory {
	return c.fields
}

// FieldID resolves a field uid such as "Entity.completename" to its search
// option id. See FieldDirectory.ResolveID.
func (c *Client) FieldID(ctx context.Context, itemtype string, field any, refresh bool) (int, error) {
	return c.fields.ResolveID(ctx, itemtype, field, refresh)
}

// FieldUID resolves a search option id to its uid. See
// FieldDirectory.ResolveUID.
func (c *Client) FieldUID(ctx context.Context, itemtype string, id int, refresh bool) (string, error) {
	return c.fields.ResolveUID(ctx, itemtype, id, refresh)
}

func (c *Client) initSession(ctx context.Context, creds Credentials) (string, error) {
	req := c.rest.R().SetContext(ctx)
	if creds.userToken != "" {
		req.SetHeader("Authorization", "user_token "+creds.userToken)
	} else {
		req.SetBasicAuth(creds.username, creds.password)
	}

	resp, err := c.send(req, http.MethodGet, "initSession")
	if err != nil {
		return "", err
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		var body struct {
			SessionToken string `json:"session_token"`
		}
		if err := decodeJSON(resp, &body); err != nil {
			return "", err
		}
		if body.SessionToken == "" {
			return "", unexpectedResponse(resp)
		}
		return body.SessionToken, nil
	case http.StatusBadRequest, http.StatusUnauthorized:
		return "", apiError(resp)
	default:
		return "", unexpectedResponse(resp)
	}
}

// Close kills the GLPI session. Calling Close more than once is a no-op.
func (c *Client) Close(ctx context.Context) error {
	if c.closed.Load() {
		return nil
	}

	resp, err := c.do(ctx, http.MethodGet, "killSession", nil)
	if err != nil {
		return err
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		c.closed.Store(true)
		c.logger.Debug().Msg("GLPI session killed")
		return nil
	case http.StatusBadRequest, http.StatusUnauthorized:
		return apiError(resp)
	default:
		return unexpectedResponse(resp)
	}
}

// do sends a request with optional query parameters.
func (c *Client) do(ctx context.Context, method, path string, params map[string]string) (*resty.Response, error) {
	req := c.rest.R().SetContext(ctx)
	if len(params) > 0 {
		req.SetQueryParams(params)
	}
	return c.send(req, method, path)
}

// doJSON sends a request with a JSON body.
func (c *Client) doJSON(ctx context.Context, method, path string, params map[string]string, body any) (*resty.Response, error) {
	req := c.rest.R().SetContext(ctx).SetBody(body)
	if len(params) > 0 {
		req.SetQueryParams(params)
	}
	return c.send(req, method, path)
}

func (c *Client) send(req *resty.Request, method, path string) (*resty.Response, error) {
	if c.closed.Load() {
		return nil, ErrSessionClosed
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, &CommunicationError{Op: method + " " + path, Err: err}
	}
	return resp, nil
}

// endpoint joins path segments, escaping each one.
func endpoint(parts ...any) string {
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		segments = append(segments, url.PathEscape(fmt.Sprint(p)))
	}
	return strings.Join(segments, "/")
}

func decodeJSON(resp *resty.Response, v any) error {
	if err := json.Unmarshal(resp.Body(), v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// decodeMultiStatus returns the second element of a 207 response, which
// holds the per item results.
func decodeMultiStatus(resp *resty.Response) ([]Item, error) {
	var parts []json.RawMessage
	if err := decodeJSON(resp, &parts); err != nil {
		return nil, err
	}
	if len(parts) < 2 {
		return nil, unexpectedResponse(resp)
	}

	var items []Item
	if err := json.Unmarshal(parts[1], &items); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return items, nil
}

// apiError decodes the [code, message] error payload GLPI sends with
// non success statuses.
func apiError(resp *resty.Response) error {
	return parseAPIError(resp.StatusCode(), resp.Status(), resp.Body())
}

func unexpectedResponse(resp *resty.Response) error {
	return newUnexpectedResponse(resp.StatusCode(), resp.Status(), resp.Body())
}

func parseAPIError(statusCode int, status string, body []byte) error {
	var payload []any
	if err := json.Unmarshal(body, &payload); err != nil || len(payload) != 2 {
		return newUnexpectedResponse(statusCode, status, body)
	}

	code, ok := payload[0].(string)
	if !ok {
		return newUnexpectedResponse(statusCode, status, body)
	}

	return &APIError{
		StatusCode: statusCode,
		Code:       code,
		Message:    fmt.Sprint(payload[1]),
	}
}

func newUnexpectedResponse(statusCode int, status string, body []byte) error {
	reason := strings.TrimSpace(strings.TrimPrefix(status, strconv.Itoa(statusCode)))
	if reason == "" {
		reason = http.StatusText(statusCode)
	}

	return &UnexpectedResponseError{
		StatusCode: statusCode,
		Reason:     reason,
		Body:       string(body),
	}
}

// queryParams renders passthrough parameters. Booleans become "true" or
// "false" as GLPI expects.
func queryParams(params map[string]any) map[string]string {
	if len(params) == 0 {
		return nil
	}

	out := make(map[string]string, len(params))
	for k, v := range params {
		out[k] = formatScalar(v)
	}
	return out
}

func formatScalar(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// IsSessionError reports whether err is GLPI rejecting the session token,
// typically because the session expired server side.
func IsSessionError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsSessionInvalid()
}
