package payments

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/hydrofarm-backend/internal/settings"
	"github.com/angelmondragon/hydrofarm-backend/pkg/config"
	"github.com/angelmondragon/hydrofarm-backend/pkg/pix"
)

var errNoCertificate = errors.New("no pix certificate configured")

type objectDownloader interface {
	Download(ctx context.Context, bucket, object string) ([]byte, error)
}

type certificatePointers interface {
	PixCertificate(ctx context.Context) (settings.CertificatePointer, bool)
}

// LoadPixCertificate resolves the mTLS client certificate. Configured file
// paths win; otherwise the uploaded bundle named by the pix_certificate
// setting is downloaded from object storage.
func LoadPixCertificate(ctx context.Context, cfg config.PixConfig, pointers certificatePointers, store objectDownloader) (tls.Certificate, error) {
	if path := strings.TrimSpace(cfg.CertPath); path != "" {
		return pix.LoadCertificateFiles(path, strings.TrimSpace(cfg.KeyPath))
	}
	if pointers == nil || store == nil {
		return tls.Certificate{}, errNoCertificate
	}
	ptr, ok := pointers.PixCertificate(ctx)
	if !ok {
		return tls.Certificate{}, errNoCertificate
	}

	bucket := strings.TrimSpace(ptr.Bucket)
	certData, err := store.Download(ctx, bucket, ptr.Object)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("download pix certificate %s/%s: %w", bucket, ptr.Object, err)
	}
	var keyData []byte
	if ptr.KeyObject != "" {
		keyData, err = store.Download(ctx, bucket, ptr.KeyObject)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("download pix key %s/%s: %w", bucket, ptr.KeyObject, err)
		}
	}
	return pix.LoadCertificate(certData, keyData)
}
