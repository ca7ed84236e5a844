package pix

import (
	"bytes"
	"crypto/tls"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/pkcs12"
)

var errEmptyCertificate = errors.New("pix certificate is empty")

// LoadCertificate builds the mTLS client certificate from one of three
// shapes: a single PEM holding certificate and key, a PEM certificate with a
// separate PEM key, or a password-less PKCS#12 bundle.
func LoadCertificate(certData, keyData []byte) (tls.Certificate, error) {
	certData = bytes.TrimSpace(certData)
	keyData = bytes.TrimSpace(keyData)
	if len(certData) == 0 {
		return tls.Certificate{}, errEmptyCertificate
	}

	if isPEM(certData) {
		if len(keyData) == 0 {
			keyData = certData
		}
		cert, err := tls.X509KeyPair(certData, keyData)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("parse pem key pair: %w", err)
		}
		return cert, nil
	}

	blocks, err := pkcs12.ToPEM(certData, "")
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("decode pkcs12 bundle: %w", err)
	}
	var bundle []byte
	for _, b := range blocks {
		bundle = append(bundle, pem.EncodeToMemory(b)...)
	}
	cert, err := tls.X509KeyPair(bundle, bundle)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("parse pkcs12 key pair: %w", err)
	}
	return cert, nil
}

// LoadCertificateFiles reads the certificate (and optional key) from disk.
func LoadCertificateFiles(certPath, keyPath string) (tls.Certificate, error) {
	certData, err := os.ReadFile(certPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("read pix certificate: %w", err)
	}
	var keyData []byte
	if keyPath != "" {
		keyData, err = os.ReadFile(keyPath)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("read pix key: %w", err)
		}
	}
	return LoadCertificate(certData, keyData)
}

func isPEM(data []byte) bool {
	return bytes.HasPrefix(data, []byte("-----BEGIN"))
}
