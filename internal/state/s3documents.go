package state

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/user/claimline/internal/types"
)

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3DocumentStore keeps uploaded images in an S3-compatible bucket under
// claims/<claimID>/documents/<filename>.
type S3DocumentStore struct {
	client   *minio.Client
	bucket   string
	region   string
	initOnce sync.Once
	initErr  error
	now      func() time.Time
}

func NewS3DocumentStore(cfg S3Config) (*S3DocumentStore, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3DocumentStore{client: client, bucket: bucket, region: region, now: time.Now}, nil
}

func (s *S3DocumentStore) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

func documentPrefix(claimID string) string {
	return "claims/" + claimID + "/documents/"
}

func (s *S3DocumentStore) Save(ctx context.Context, claimID, slot string, img *types.Image) (string, error) {
	if img == nil || len(img.Data) == 0 {
		return "", fmt.Errorf("save document: empty image")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket: %w", err)
	}
	name := documentName(slot, img, s.now())
	contentType := img.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	_, err := s.client.PutObject(ctx, s.bucket, documentPrefix(claimID)+name,
		bytes.NewReader(img.Data), int64(len(img.Data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put document: %w", err)
	}
	slog.Info("saved document", "claim_id", claimID, "filename", name, "bucket", s.bucket)
	return name, nil
}

func (s *S3DocumentStore) Open(ctx context.Context, claimID, filename string) ([]byte, error) {
	if !validFilename(filename) {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, filename)
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}
	obj, err := s.client.GetObject(ctx, s.bucket, documentPrefix(claimID)+filename, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		code := minio.ToErrorResponse(err).Code
		if code == "NoSuchKey" || code == "NoSuchBucket" {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, filename)
		}
		return nil, fmt.Errorf("read document: %w", err)
	}
	return data, nil
}

func (s *S3DocumentStore) List(ctx context.Context, claimID string) ([]string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}
	prefix := documentPrefix(claimID)
	names := []string{}
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if obj.Key == "" {
			continue
		}
		names = append(names, strings.TrimPrefix(obj.Key, prefix))
	}
	sort.Strings(names)
	return names, nil
}
