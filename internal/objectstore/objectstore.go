// Package objectstore uploads product media to S3-compatible object storage
// and returns the publicly resolvable URL for each object.
package objectstore

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/cartbridge/cartbridge/internal/conf"
	"github.com/cartbridge/cartbridge/internal/errors"
)

// Uploader stores an object under a caller-chosen key and returns its public URL.
type Uploader interface {
	// Upload writes the object and returns the public URL it resolves at.
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	// Configured reports whether the uploader can actually store objects.
	Configured() bool
}

// S3Store uploads to an S3-compatible bucket (AWS S3, DigitalOcean Spaces,
// MinIO with a public endpoint).
type S3Store struct {
	client     *s3.Client
	bucket     string
	endpoint   string
	configured bool
}

// NewS3Store builds an uploader from storage settings. When the settings are
// incomplete it returns a store whose Configured() is false; uploads then fail
// and callers degrade to their non-upload path.
func NewS3Store(ctx context.Context, settings *conf.StorageSettings) (*S3Store, error) {
	store := &S3Store{
		bucket:     settings.Bucket,
		endpoint:   settings.Endpoint,
		configured: settings.Configured(),
	}
	if !store.configured {
		return store, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(settings.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(settings.AccessKey, settings.SecretKey, "")),
	)
	if err != nil {
		return nil, errors.New(err).
			Component("objectstore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	store.client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String("https://" + settings.Endpoint)
	})
	return store, nil
}

// Configured reports whether uploads can succeed.
func (s *S3Store) Configured() bool {
	return s.configured
}

// Upload stores the object with public-read ACL and returns its URL following
// the https://{bucket}.{endpoint}/{key} convention.
func (s *S3Store) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	if !s.configured {
		return "", errors.Newf("object storage is not configured").
			Component("objectstore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", errors.New(err).
			Component("objectstore").
			Category(errors.CategoryImageUpload).
			Context("key", key).
			Build()
	}

	return s.PublicURL(key), nil
}

// PublicURL returns the conventional public URL for a key in this bucket.
func (s *S3Store) PublicURL(key string) string {
	return fmt.Sprintf("https://%s.%s/%s", s.bucket, s.endpoint, key)
}
