// Package s3 implements storage.Service on Amazon S3 and S3-compatible
// services (MinIO, Localstack, Cubbit DS3) using aws-sdk-go-v2.
//
// Containers map to buckets and keys map to object keys, unchanged. Each
// Open builds a dedicated *s3.Client carrying the caller's static credentials,
// so clients are never shared between principals.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/marmos91/dittoftp/pkg/storage"
)

// DefaultMaxRetries is the retry budget used when Config.MaxRetries is zero.
// Higher than the SDK default of 3 to ride out transient 5xx from gateways.
const DefaultMaxRetries = 10

// Config contains the service-wide S3 settings. Credentials are not part of
// it: they arrive per session through Open.
type Config struct {
	// Region is the AWS region (required by the signer even for S3-compatible services).
	Region string `mapstructure:"region"`

	// Endpoint overrides the service URL (MinIO, Localstack, ...). Empty uses AWS.
	Endpoint string `mapstructure:"endpoint"`

	// ForcePathStyle selects path-style addressing. Always on when Endpoint is set.
	ForcePathStyle bool `mapstructure:"force_path_style"`

	// MaxRetries is the maximum number of attempts per request (0 = DefaultMaxRetries).
	MaxRetries int `mapstructure:"max_retries"`
}

// Service opens per-credential S3 clients.
type Service struct {
	cfg Config
}

// New creates an S3 service. No network traffic happens until Open.
func New(cfg Config) (*Service, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3 storage: region is required")
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	return &Service{cfg: cfg}, nil
}

// Name implements storage.Service.
func (s *Service) Name() string { return "s3" }

// Open builds an S3 client for creds and verifies it with ListBuckets.
func (s *Service) Open(ctx context.Context, creds storage.Credentials) (storage.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// ========================================================================
	// Step 1: Build AWS config with the session's static credentials
	// ========================================================================

	maxRetries := s.cfg.MaxRetries
	awsCfg, err := awsConfig.LoadDefaultConfig(ctx,
		awsConfig.WithRegion(s.cfg.Region),
		awsConfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			creds.AccessKeyID,
			creds.SecretAccessKey,
			"",
		)),
		awsConfig.WithRetryer(func() aws.Retryer {
			return retry.NewStandard(func(o *retry.StandardOptions) {
				o.MaxAttempts = maxRetries
			})
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// ========================================================================
	// Step 2: Create the client
	// ========================================================================

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s.cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.cfg.Endpoint)
			o.UsePathStyle = true
		}
		if s.cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	// ========================================================================
	// Step 3: Verify the credentials
	// ========================================================================

	if _, err := client.ListBuckets(ctx, &s3.ListBucketsInput{}); err != nil {
		return nil, translate(err, "open session")
	}

	return &Client{api: client, region: s.cfg.Region}, nil
}

// Client implements storage.Client over one *s3.Client.
type Client struct {
	api    *s3.Client
	region string
}

// ============================================================================
// Containers
// ============================================================================

// ListContainers returns every bucket visible to the session.
func (c *Client) ListContainers(ctx context.Context) ([]storage.Container, error) {
	out, err := c.api.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, translate(err, "list buckets")
	}

	containers := make([]storage.Container, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		containers = append(containers, storage.Container{
			Name:      aws.ToString(b.Name),
			CreatedAt: aws.ToTime(b.CreationDate),
		})
	}
	return containers, nil
}

// CreateContainer creates a bucket in the service's region.
func (c *Client) CreateContainer(ctx context.Context, name string) error {
	_, err := c.api.CreateBucket(ctx, createBucketInput(name, c.region))
	if err != nil {
		return translate(err, fmt.Sprintf("create bucket %q", name))
	}
	return nil
}

// createBucketInput builds the CreateBucket request. Outside us-east-1, S3
// rejects a request without a LocationConstraint matching the endpoint.
func createBucketInput(name, region string) *s3.CreateBucketInput {
	in := &s3.CreateBucketInput{Bucket: aws.String(name)}
	if region != "" && region != "us-east-1" {
		in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(region),
		}
	}
	return in
}

// GetContainer checks that a bucket exists and is reachable.
func (c *Client) GetContainer(ctx context.Context, name string) (*storage.Container, error) {
	_, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(name)})
	if err != nil {
		return nil, translateBucket(err, name)
	}
	return &storage.Container{Name: name}, nil
}

// DeleteContainer deletes an empty bucket.
func (c *Client) DeleteContainer(ctx context.Context, name string) error {
	_, err := c.api.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(name)})
	if err != nil {
		return translateBucket(err, name)
	}
	return nil
}

// ============================================================================
// Keys
// ============================================================================

// ListKeys returns a lazy iterator over a ListObjectsV2 paginator.
func (c *Client) ListKeys(ctx context.Context, container string, opts storage.ListOptions) (storage.KeyIterator, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(container)}
	if opts.Prefix != "" {
		input.Prefix = aws.String(opts.Prefix)
	}
	if opts.Delimiter != "" {
		input.Delimiter = aws.String(opts.Delimiter)
	}

	return &keyIterator{
		ctx:       ctx,
		container: container,
		paginator: s3.NewListObjectsV2Paginator(c.api, input),
	}, nil
}

// GetKey returns object metadata via HeadObject.
func (c *Client) GetKey(ctx context.Context, container, key string) (*storage.Object, error) {
	out, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, translateKey(err, container, key)
	}

	return &storage.Object{
		Container:    container,
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		LastModified: aws.ToTime(out.LastModified),
	}, nil
}

// DeleteKey deletes an object.
//
// S3 DeleteObject succeeds on missing keys, so existence is checked first to
// report storage.ErrKeyNotFound like the other backends.
func (c *Client) DeleteKey(ctx context.Context, container, key string) error {
	if _, err := c.GetKey(ctx, container, key); err != nil {
		return err
	}

	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(key),
	})
	if err != nil {
		return translateKey(err, container, key)
	}
	return nil
}

// Upload stores body as a single PutObject.
func (c *Client) Upload(ctx context.Context, container, key string, body io.ReadSeeker, size int64) error {
	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(container),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return translateBucket(err, container)
	}
	return nil
}

// Read streams an object body.
func (c *Client) Read(ctx context.Context, container, key string) (io.ReadCloser, error) {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, translateKey(err, container, key)
	}
	return out.Body, nil
}

// ============================================================================
// Listing iterator
// ============================================================================

// keyIterator walks ListObjectsV2 pages on demand. Each page yields its
// common prefixes first, then its objects.
type keyIterator struct {
	ctx       context.Context
	container string
	paginator *s3.ListObjectsV2Paginator

	page    []storage.ListEntry
	pos     int
	current storage.ListEntry
	err     error
}

func (it *keyIterator) Next() bool {
	for it.pos >= len(it.page) {
		if it.err != nil || !it.paginator.HasMorePages() {
			return false
		}
		if err := it.fetch(); err != nil {
			it.err = err
			return false
		}
	}

	it.current = it.page[it.pos]
	it.pos++
	return true
}

func (it *keyIterator) fetch() error {
	out, err := it.paginator.NextPage(it.ctx)
	if err != nil {
		return translateBucket(err, it.container)
	}

	page := make([]storage.ListEntry, 0, len(out.CommonPrefixes)+len(out.Contents))
	for _, p := range out.CommonPrefixes {
		page = append(page, storage.ListEntry{Name: aws.ToString(p.Prefix), IsPrefix: true})
	}
	for _, obj := range out.Contents {
		page = append(page, storage.ListEntry{
			Name:         aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			LastModified: storage.FormatTimestamp(aws.ToTime(obj.LastModified)),
		})
	}

	it.page = page
	it.pos = 0
	return nil
}

func (it *keyIterator) Entry() storage.ListEntry { return it.current }

func (it *keyIterator) Err() error { return it.err }

// ============================================================================
// Error translation
// ============================================================================

// errorCode extracts the service error code, or "" for transport failures.
func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// translate maps S3 error codes onto storage sentinels.
func translate(err error, op string) error {
	switch errorCode(err) {
	case "InvalidAccessKeyId", "SignatureDoesNotMatch", "AccessDenied", "InvalidToken", "ExpiredToken":
		return fmt.Errorf("%s: %w", op, storage.ErrInvalidCredentials)
	case "BucketAlreadyExists", "BucketAlreadyOwnedByYou":
		return fmt.Errorf("%s: %w", op, storage.ErrContainerExists)
	case "BucketNotEmpty":
		return fmt.Errorf("%s: %w", op, storage.ErrContainerNotEmpty)
	case "NoSuchBucket":
		return fmt.Errorf("%s: %w", op, storage.ErrContainerNotFound)
	case "NoSuchKey":
		return fmt.Errorf("%s: %w", op, storage.ErrKeyNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// translateBucket handles bucket-scoped calls, where a bare "NotFound"
// (HEAD responses carry no body) means the bucket is missing.
func translateBucket(err error, bucket string) error {
	if errorCode(err) == "NotFound" {
		return fmt.Errorf("bucket %q: %w", bucket, storage.ErrContainerNotFound)
	}
	return translate(err, fmt.Sprintf("bucket %q", bucket))
}

// translateKey handles key-scoped calls, where a bare "NotFound" means the key
// is missing.
func translateKey(err error, bucket, key string) error {
	if errorCode(err) == "NotFound" {
		return fmt.Errorf("object %s/%s: %w", bucket, key, storage.ErrKeyNotFound)
	}
	return translate(err, fmt.Sprintf("object %s/%s", bucket, key))
}

// compile-time checks
var (
	_ storage.Service = (*Service)(nil)
	_ storage.Client  = (*Client)(nil)
)
