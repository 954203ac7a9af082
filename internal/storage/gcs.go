// Package storage provides the object-store transports that hand page images
// to the OCR provider.
package storage

import (
	"bytes"
	"context"
	"fmt"

	"google.golang.org/api/googleapi"
	gcs "google.golang.org/api/storage/v1"

	"github.com/spherical/pdf2emails/internal/domain"
	"github.com/spherical/pdf2emails/internal/gcloud"
	"github.com/spherical/pdf2emails/internal/observability"
)

// GCSUploader writes objects through the Cloud Storage JSON API
type GCSUploader struct {
	svc    *gcs.Service
	logger *observability.Logger
}

// NewGCSUploader creates an uploader authenticated with the given credentials
func NewGCSUploader(ctx context.Context, creds gcloud.Credentials, logger *observability.Logger) (*GCSUploader, error) {
	svc, err := gcs.NewService(ctx, gcloud.ClientOptions(creds)...)
	if err != nil {
		return nil, domain.ConfigError("failed to create storage client", err)
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &GCSUploader{svc: svc, logger: logger.WithOperation("upload")}, nil
}

// Locator returns the gs:// URI of an object
func Locator(bucket, object string) string {
	return fmt.Sprintf("gs://%s/%s", bucket, object)
}

// Upload stores data under bucket/object, overwriting any previous content,
// and returns its gs:// locator
func (u *GCSUploader) Upload(ctx context.Context, bucket, object string, data []byte, contentType string) (string, error) {
	obj := &gcs.Object{
		Name:        object,
		ContentType: contentType,
	}

	_, err := u.svc.Objects.Insert(bucket, obj).
		Media(bytes.NewReader(data), googleapi.ContentType(contentType)).
		Context(ctx).
		Do()
	if err != nil {
		derr := domain.TransportError(fmt.Sprintf("failed to upload %s", Locator(bucket, object)), err)
		if gcloud.Temporary(err) {
			derr = derr.AsTemporary()
		}
		return "", derr
	}

	u.logger.Debug().
		Str("bucket", bucket).
		Str("object", object).
		Int("bytes", len(data)).
		Msg("Object uploaded")

	return Locator(bucket, object), nil
}

// Delete removes an uploaded object. A missing object is not an error.
func (u *GCSUploader) Delete(ctx context.Context, bucket, object string) error {
	err := u.svc.Objects.Delete(bucket, object).Context(ctx).Do()
	if err != nil && gcloud.StatusCode(err) != 404 {
		return domain.TransportError(fmt.Sprintf("failed to delete %s", Locator(bucket, object)), err)
	}
	return nil
}
