package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 is an in-memory s3API. Multipart calls are unused for uploads below
// the manager's part size.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func objectKey(bucket, key *string) string {
	return aws.ToString(bucket) + "/" + aws.ToString(key)
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.objects[objectKey(in.Bucket, in.Key)] = data
	f.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	data, ok := f.objects[objectKey(in.Bucket, in.Key)]
	f.mu.Unlock()
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	delete(f.objects, objectKey(in.Bucket, in.Key))
	f.mu.Unlock()
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, fmt.Errorf("multipart not supported by fake")
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, fmt.Errorf("multipart not supported by fake")
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, fmt.Errorf("multipart not supported by fake")
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return &s3.AbortMultipartUploadOutput{}, nil
}

func TestS3Store(t *testing.T) {
	fake := newFakeS3()
	store := newS3Store(fake, "audit-bucket", "/evidence/")
	storeContract(t, store, "s3")

	t.Run("keys carry the prefix", func(t *testing.T) {
		f, err := store.Put(context.Background(), "a.txt", strings.NewReader("a"), 1)
		if err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		if !strings.HasPrefix(f.URL, "s3://audit-bucket/evidence/") {
			t.Errorf("URL = %q", f.URL)
		}
	})

	t.Run("size mismatch removes object", func(t *testing.T) {
		before := len(fake.objects)
		if _, err := store.Put(context.Background(), "b.txt", strings.NewReader("abc"), 1); err == nil {
			t.Fatal("Put() expected size mismatch error")
		}
		if len(fake.objects) != before {
			t.Errorf("objects = %d, want %d", len(fake.objects), before)
		}
	})

	t.Run("rejects other buckets", func(t *testing.T) {
		if err := store.Get(context.Background(), "s3://other/evidence/x", &bytes.Buffer{}); err == nil {
			t.Error("Get() from other bucket expected error")
		}
	})
}

func TestParseS3URL(t *testing.T) {
	tests := []struct {
		url     string
		bucket  string
		key     string
		wantErr bool
	}{
		{url: "s3://b/k/x.pdf", bucket: "b", key: "k/x.pdf"},
		{url: "s3://b", wantErr: true},
		{url: "s3://b/", wantErr: true},
		{url: "mem://b/k", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			bucket, key, err := parseS3URL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseS3URL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if bucket != tt.bucket || key != tt.key {
				t.Errorf("parseS3URL() = %q, %q; want %q, %q", bucket, key, tt.bucket, tt.key)
			}
		})
	}
}
