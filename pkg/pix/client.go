package pix

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/angelmondragon/hydrofarm-backend/pkg/errors"
)

const (
	defaultTimeout       = 15 * time.Second
	tokenRefreshMargin   = 60 * time.Second
	responseBodyLimit    = 1 << 20
	errorBodyPreviewSize = 512
)

var errCredentialsRequired = errors.New("pix client id and secret are required")

// StatusError is returned for any non-2xx provider response.
type StatusError struct {
	Operation string
	Status    int
	Body      string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("pix %s: status %d: %s", e.Operation, e.Status, e.Body)
}

// Client talks to the instant-payment provider over mTLS with an OAuth
// client-credentials token.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	clientID     string
	clientSecret string
	now          func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the transport, bypassing the certificate.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithCertificate installs the mTLS client certificate.
func WithCertificate(cert tls.Certificate, timeout time.Duration) Option {
	return func(c *Client) {
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		c.httpClient = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					Certificates: []tls.Certificate{cert},
					MinVersion:   tls.VersionTLS12,
				},
			},
		}
	}
}

// WithClock overrides time.Now for token expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient builds a provider client rooted at baseURL.
func NewClient(baseURL, clientID, clientSecret string, opts ...Option) (*Client, error) {
	clientID = strings.TrimSpace(clientID)
	clientSecret = strings.TrimSpace(clientSecret)
	if clientID == "" || clientSecret == "" {
		return nil, errCredentialsRequired
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("pix base url is required")
	}

	c := &Client{
		httpClient:   &http.Client{Timeout: defaultTimeout},
		baseURL:      baseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// ObtainAccessToken returns a cached token, fetching a new one when the
// current one is within a minute of expiring.
func (c *Client) ObtainAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiresAt.Add(-tokenRefreshMargin)) {
		return c.token, nil
	}

	body := bytes.NewReader([]byte(`{"grant_type":"client_credentials"}`))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", body)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build pix token request")
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/json")

	var tok tokenResponse
	if err := c.send(req, "token", &tok); err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "pix token response missing access_token")
	}

	c.token = tok.AccessToken
	c.expiresAt = c.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return c.token, nil
}

// QueryCharge fetches an immediate charge.
func (c *Client) QueryCharge(ctx context.Context, txid string) (*Charge, error) {
	var out Charge
	if err := c.call(ctx, http.MethodGet, "/v2/cob/"+url.PathEscape(txid), "query_charge", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateCharge creates an immediate charge under the caller-chosen txid.
func (c *Client) CreateCharge(ctx context.Context, txid string, in ChargeRequest) (*Charge, error) {
	var out Charge
	if err := c.call(ctx, http.MethodPut, "/v2/cob/"+url.PathEscape(txid), "create_charge", in, &out); err != nil {
		return nil, err
	}
	if out.TxID == "" {
		out.TxID = txid
	}
	return &out, nil
}

// QueryRecurringCharge fetches a charge issued under a recurrence.
func (c *Client) QueryRecurringCharge(ctx context.Context, txid string) (*RecurringCharge, error) {
	var out RecurringCharge
	if err := c.call(ctx, http.MethodGet, "/v2/cobr/"+url.PathEscape(txid), "query_recurring_charge", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QueryAuthorization fetches a recurrence authorization.
func (c *Client) QueryAuthorization(ctx context.Context, recID string) (*Recurrence, error) {
	var out Recurrence
	if err := c.call(ctx, http.MethodGet, "/v2/rec/"+url.PathEscape(recID), "query_authorization", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) call(ctx context.Context, method, path, op string, in, out any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "pix client not configured")
	}
	token, err := c.ObtainAccessToken(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal pix "+op+" request")
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build pix "+op+" request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, op, out)
}

func (c *Client) send(req *http.Request, op string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute pix "+op+" request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyPreviewSize))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, &StatusError{
			Operation: op,
			Status:    resp.StatusCode,
			Body:      strings.TrimSpace(string(msg)),
		}, "pix "+op+" failed")
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, responseBodyLimit)).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode pix "+op+" response")
	}
	return nil
}
