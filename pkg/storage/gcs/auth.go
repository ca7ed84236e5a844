package gcs

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/hydrofarm-backend/pkg/config"
)

const (
	defaultTokenURI  = "https://oauth2.googleapis.com/token"
	metadataTokenURL = "http://metadata.google.internal/computeMetadata/v1/instance/service-accounts/default/token"
	readOnlyScope    = "https://www.googleapis.com/auth/devstorage.read_only"
	jwtBearerGrant   = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// Tokens are refreshed this long before they expire.
	refreshMargin = time.Minute
)

type accessToken struct {
	value     string
	expiresAt time.Time
}

type tokenFetcher func(context.Context) (accessToken, error)

// tokenCache hands out one bearer token until it is close to expiry.
type tokenCache struct {
	mu      sync.Mutex
	current accessToken
	fetch   tokenFetcher
	now     func() time.Time
}

func newTokenCache(fetch tokenFetcher) *tokenCache {
	return &tokenCache{fetch: fetch, now: time.Now}
}

func (c *tokenCache) bearer(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current.value != "" && c.current.expiresAt.Sub(c.now()) > refreshMargin {
		return c.current.value, nil
	}
	tok, err := c.fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch gcs token: %w", err)
	}
	c.current = tok
	return tok.value, nil
}

// credentialsFor picks inline service-account JSON, then a key file, then the
// metadata server.
func credentialsFor(httpClient *http.Client, gcp config.GCPConfig) (*tokenCache, error) {
	raw := strings.TrimSpace(gcp.CredentialsJSON)
	if raw == "" && gcp.ApplicationCredentials != "" {
		b, err := os.ReadFile(gcp.ApplicationCredentials)
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
		raw = string(b)
	}
	if raw == "" {
		return newTokenCache(metadataFetcher(httpClient, metadataTokenURL)), nil
	}
	fetch, err := serviceAccountFetcher(httpClient, []byte(raw))
	if err != nil {
		return nil, err
	}
	return newTokenCache(fetch), nil
}

type serviceAccountKey struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

func serviceAccountFetcher(httpClient *http.Client, raw []byte) (tokenFetcher, error) {
	var sa serviceAccountKey
	if err := json.Unmarshal(raw, &sa); err != nil {
		return nil, fmt.Errorf("decode service account: %w", err)
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" {
		return nil, errors.New("service account needs client_email and private_key")
	}
	if sa.TokenURI == "" {
		sa.TokenURI = defaultTokenURI
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(sa.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}

	return func(ctx context.Context) (accessToken, error) {
		assertion, err := signGrant(sa.ClientEmail, sa.TokenURI, key, time.Now())
		if err != nil {
			return accessToken{}, err
		}
		body := url.Values{"grant_type": {jwtBearerGrant}, "assertion": {assertion}}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, sa.TokenURI, strings.NewReader(body.Encode()))
		if err != nil {
			return accessToken{}, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return exchange(httpClient, req)
	}, nil
}

func metadataFetcher(httpClient *http.Client, endpoint string) tokenFetcher {
	return func(ctx context.Context) (accessToken, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return accessToken{}, err
		}
		req.Header.Set("Metadata-Flavor", "Google")
		return exchange(httpClient, req)
	}
}

type grantClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// signGrant builds the RS256 assertion exchanged for a read-only token.
func signGrant(email, audience string, key *rsa.PrivateKey, now time.Time) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodRS256, grantClaims{
		Scope: readOnlyScope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    email,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString(key)
}

func exchange(httpClient *http.Client, req *http.Request) (accessToken, error) {
	resp, err := httpClient.Do(req)
	if err != nil {
		return accessToken{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return accessToken{}, fmt.Errorf("token request to %s: %s", req.URL.Host, resp.Status)
	}
	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return accessToken{}, fmt.Errorf("decode token: %w", err)
	}
	if out.AccessToken == "" {
		return accessToken{}, errors.New("token response has no access_token")
	}
	return accessToken{
		value:     out.AccessToken,
		expiresAt: time.Now().Add(time.Duration(out.ExpiresIn) * time.Second),
	}, nil
}
