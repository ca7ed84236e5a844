package gcs

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/hydrofarm-backend/pkg/config"
)

func rsaKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestSignGrantVerifies(t *testing.T) {
	key := rsaKey(t)
	signed, err := signGrant("signer@example.com", "https://token.test", key, time.Now())
	require.NoError(t, err)

	claims := &grantClaims{}
	parsed, err := jwt.ParseWithClaims(signed, claims, func(*jwt.Token) (any, error) {
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	require.Equal(t, "signer@example.com", claims.Issuer)
	require.Equal(t, readOnlyScope, claims.Scope)
	require.Equal(t, jwt.ClaimStrings{"https://token.test"}, claims.Audience)
}

func TestServiceAccountDownload(t *testing.T) {
	key := rsaKey(t)
	var exchanges atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.EscapedPath() {
		case "/token":
			exchanges.Add(1)
			if err := r.ParseForm(); err != nil || r.Form.Get("grant_type") != jwtBearerGrant || r.Form.Get("assertion") == "" {
				http.Error(w, "bad grant", http.StatusBadRequest)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
		case "/storage/v1/b/certs/o/pix%2Fcert.p12":
			if r.Header.Get("Authorization") != "Bearer tok" || r.URL.Query().Get("alt") != "media" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte("bundle-bytes"))
		case "/storage/v1/b/certs/o":
			_, _ = w.Write([]byte(`{"items":[]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	pemKey := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	raw, _ := json.Marshal(serviceAccountKey{
		ClientEmail: "signer@example.com",
		PrivateKey:  string(pemKey),
		TokenURI:    srv.URL + "/token",
	})
	tokens, err := credentialsFor(srv.Client(), config.GCPConfig{CredentialsJSON: string(raw)})
	require.NoError(t, err)
	client := &Client{http: srv.Client(), api: srv.URL + "/storage/v1", bucket: "certs", tokens: tokens}

	require.NoError(t, client.Ping(context.Background()))
	data, err := client.Download(context.Background(), "", "/pix/cert.p12")
	require.NoError(t, err)
	require.Equal(t, "bundle-bytes", string(data))
	require.EqualValues(t, 1, exchanges.Load(), "token should be reused")
}

func staticTokens() *tokenCache {
	return newTokenCache(func(context.Context) (accessToken, error) {
		return accessToken{value: "tok", expiresAt: time.Now().Add(time.Hour)}, nil
	})
}

func TestDownloadErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "huge.p12") {
			_, _ = w.Write(make([]byte, maxObjectBytes+1))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := &Client{http: srv.Client(), api: srv.URL, bucket: "certs", tokens: staticTokens()}
	_, err := client.Download(context.Background(), "certs", "missing.pem")
	require.True(t, errors.Is(err, ErrObjectNotFound), "got %v", err)

	_, err = client.Download(context.Background(), "", "huge.p12")
	require.ErrorContains(t, err, "larger than")

	_, err = client.Download(context.Background(), "", "  ")
	require.Error(t, err)
}

func TestTokenCacheRefreshesNearExpiry(t *testing.T) {
	var fetched int
	cache := newTokenCache(func(context.Context) (accessToken, error) {
		fetched++
		return accessToken{value: "t", expiresAt: time.Now().Add(30 * time.Second)}, nil
	})
	for i := 0; i < 2; i++ {
		_, err := cache.bearer(context.Background())
		require.NoError(t, err)
	}
	require.Equal(t, 2, fetched, "tokens inside the refresh margin are not reused")
}

func TestMetadataFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Metadata-Flavor") != "Google" {
			http.Error(w, "missing header", http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"meta","expires_in":120}`))
	}))
	defer srv.Close()

	tok, err := metadataFetcher(srv.Client(), srv.URL)(context.Background())
	require.NoError(t, err)
	require.Equal(t, "meta", tok.value)
	require.True(t, tok.expiresAt.After(time.Now()))
}

func TestServiceAccountValidation(t *testing.T) {
	_, err := serviceAccountFetcher(http.DefaultClient, []byte(`{"client_email":"x"}`))
	require.Error(t, err)
	_, err = serviceAccountFetcher(http.DefaultClient, []byte(`{"client_email":"x","private_key":"`+strings.Repeat("a", 10)+`"}`))
	require.Error(t, err)
	_, err = credentialsFor(http.DefaultClient, config.GCPConfig{ApplicationCredentials: "/nonexistent/key.json"})
	require.Error(t, err)
}
