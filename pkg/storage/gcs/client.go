// Package gcs reads uploaded provider certificates from Cloud Storage over the
// JSON API.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/hydrofarm-backend/pkg/config"
	"github.com/angelmondragon/hydrofarm-backend/pkg/logger"
)

const (
	apiBase        = "https://storage.googleapis.com/storage/v1"
	requestTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	// Certificate bundles are a few KB.
	maxObjectBytes = 1 << 20
)

var ErrObjectNotFound = errors.New("gcs object not found")

type Client struct {
	http   *http.Client
	api    string
	bucket string
	tokens *tokenCache
}

// NewClient authenticates with the first credential source available in gcp
// and checks that the certificate bucket is readable.
func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	bucket := strings.TrimSpace(cfg.CertBucket)
	if bucket == "" {
		return nil, errors.New("gcs certificate bucket is required")
	}

	httpClient := &http.Client{Timeout: requestTimeout}
	tokens, err := credentialsFor(httpClient, gcp)
	if err != nil {
		return nil, err
	}

	c := &Client{http: httpClient, api: apiBase, bucket: bucket, tokens: tokens}
	if err := c.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs bucket %s: %w", bucket, err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", bucket), "gcs.client.ready")
	}
	return c, nil
}

// Bucket is the bucket used when Download is given none.
func (c *Client) Bucket() string {
	if c == nil {
		return ""
	}
	return c.bucket
}

// Ping lists at most one object in the default bucket.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.tokens == nil {
		return errors.New("gcs client not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	resp, err := c.do(ctx, "/b/"+url.PathEscape(c.bucket)+"/o", url.Values{"maxResults": {"1"}})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}
	return nil
}

// Download returns the object's bytes. An empty bucket means Bucket().
func (c *Client) Download(ctx context.Context, bucket, object string) ([]byte, error) {
	if c == nil || c.tokens == nil {
		return nil, errors.New("gcs client not initialized")
	}
	if bucket == "" {
		bucket = c.bucket
	}
	object = strings.TrimLeft(strings.TrimSpace(object), "/")
	if bucket == "" || object == "" {
		return nil, errors.New("bucket and object are required")
	}

	resp, err := c.do(ctx, "/b/"+url.PathEscape(bucket)+"/o/"+url.PathEscape(object), url.Values{"alt": {"media"}})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, objectURI(bucket, object))
	case resp.StatusCode != http.StatusOK:
		return nil, responseError(resp)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxObjectBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", objectURI(bucket, object), err)
	}
	if len(data) > maxObjectBytes {
		return nil, fmt.Errorf("%s is larger than %d bytes", objectURI(bucket, object), maxObjectBytes)
	}
	return data, nil
}

func (c *Client) do(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	bearer, err := c.tokens.bearer(ctx)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.api+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	return c.http.Do(req)
}

func responseError(resp *http.Response) error {
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if msg := strings.TrimSpace(string(detail)); msg != "" {
		return fmt.Errorf("gcs %s: %s", resp.Status, msg)
	}
	return fmt.Errorf("gcs %s", resp.Status)
}

func objectURI(bucket, object string) string {
	return "gs://" + bucket + "/" + object
}
