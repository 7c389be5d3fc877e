package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"auditflow/internal/compliance"
	"auditflow/internal/model"
)

// s3API is the subset of the S3 client the store uses.
type s3API interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Options configures an S3Store.
type S3Options struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string // S3-compatible endpoint; empty for AWS

	// Static credentials. When empty the default AWS credential chain is used.
	AccessKeyID     string
	SecretAccessKey string
}

// S3Store keeps uploads in an S3 bucket under s3://bucket/key URLs. Uploads
// go through the multipart upload manager.
type S3Store struct {
	client   s3API
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

var _ compliance.BlobStore = (*S3Store)(nil)

// NewS3Store loads AWS configuration and creates a store for opts.Bucket.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 blob store requires a bucket")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Store(client, opts.Bucket, opts.Prefix), nil
}

func newS3Store(client s3API, bucket, prefix string) *S3Store {
	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
	}
}

// Put uploads exactly size bytes read from r.
func (s *S3Store) Put(ctx context.Context, name string, r io.Reader, size int64) (model.EvidenceFile, error) {
	key := newKey(name)
	if s.prefix != "" {
		key = path.Join(s.prefix, key)
	}

	body := &countingReader{r: r}
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		return model.EvidenceFile{}, fmt.Errorf("uploading %s: %w", key, err)
	}
	if body.n != size {
		s.deleteKey(ctx, key)
		return model.EvidenceFile{}, fmt.Errorf("size mismatch: expected %d bytes, got %d", size, body.n)
	}
	return model.EvidenceFile{URL: "s3://" + s.bucket + "/" + key, Name: name}, nil
}

// Get streams the object at url to w.
func (s *S3Store) Get(ctx context.Context, url string, w io.Writer) error {
	bucket, key, err := parseS3URL(url)
	if err != nil {
		return err
	}
	if bucket != s.bucket {
		return fmt.Errorf("%w: %q is outside bucket %s", compliance.ErrValidation, url, s.bucket)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return fmt.Errorf("%s: %w", url, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("getting %s: %w", url, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("reading %s: %w", url, err)
	}
	return nil
}

// Delete removes the object at url.
func (s *S3Store) Delete(ctx context.Context, url string) error {
	bucket, key, err := parseS3URL(url)
	if err != nil {
		return err
	}
	if bucket != s.bucket {
		return fmt.Errorf("%w: %q is outside bucket %s", compliance.ErrValidation, url, s.bucket)
	}
	if err := s.deleteKey(ctx, key); err != nil {
		return fmt.Errorf("deleting %s: %w", url, err)
	}
	return nil
}

func (s *S3Store) deleteKey(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	return err
}

func parseS3URL(url string) (bucket, key string, err error) {
	rest, err := splitURL(url, "s3")
	if err != nil {
		return "", "", err
	}
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: malformed s3 URL %q", compliance.ErrValidation, url)
	}
	return bucket, key, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
