package services

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	appConfig "github.com/memorialqr/memorial-qr-api/config"
)

// BlobStore persists public objects (memorial media, QR codes) and returns their URLs
type BlobStore interface {
	// Put stores data under key with public read access and returns the public URL.
	// Writing an existing key overwrites it.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// Delete removes the object a public URL points at
	Delete(ctx context.Context, publicURL string) error
}

// S3Service implements BlobStore on AWS S3
type S3Service struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

// NewS3Service creates the S3 client from the application configuration
func NewS3Service(ctx context.Context, cfg *appConfig.Config) (*S3Service, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AWSAccessKeyID,
			cfg.AWSSecretAccessKey,
			"",
		)))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		o.UsePathStyle = false
	})

	return &S3Service{
		client:  client,
		bucket:  cfg.AWSS3Bucket,
		baseURL: cfg.S3PublicBaseURL(),
	}, nil
}

// Put uploads data to S3 as a publicly readable object
func (s *S3Service) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		ACL:          types.ObjectCannedACLPublicRead,
		CacheControl: aws.String("public, max-age=86400"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	return s.baseURL + "/" + key, nil
}

// Delete removes the object behind a public URL produced by Put
func (s *S3Service) Delete(ctx context.Context, publicURL string) error {
	key, err := KeyFromURL(s.baseURL, publicURL)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}

	return nil
}

// KeyFromURL recovers the object key from a public URL under baseURL
func KeyFromURL(baseURL, publicURL string) (string, error) {
	if publicURL == "" {
		return "", fmt.Errorf("empty object url")
	}
	if strings.HasPrefix(publicURL, baseURL+"/") {
		return strings.TrimPrefix(publicURL, baseURL+"/"), nil
	}

	parsed, err := url.Parse(publicURL)
	if err != nil {
		return "", fmt.Errorf("invalid object url %q: %w", publicURL, err)
	}
	key := strings.TrimPrefix(parsed.Path, "/")
	if key == "" {
		return "", fmt.Errorf("object url %q has no key", publicURL)
	}
	return key, nil
}
