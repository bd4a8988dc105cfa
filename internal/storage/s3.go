package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Options configures the S3 backend.
type S3Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Secure    bool
}

// S3 serves s3:// locations through any S3-compatible endpoint.
type S3 struct {
	Endpoint string
	Client   *minio.Client
}

// NewS3 builds a client. No request is made until the first call.
func NewS3(opts S3Options) (*S3, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.Secure,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	return &S3{Endpoint: opts.Endpoint, Client: client}, nil
}

func (s *S3) List(ctx context.Context, location string) ([]string, error) {
	loc, err := s.parse(location)
	if err != nil {
		return nil, err
	}
	keys, err := s.listKeys(ctx, loc)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		names = append(names, path.Base(key))
	}
	return names, nil
}

func (s *S3) Download(ctx context.Context, location, dstDir string) ([]string, error) {
	loc, err := s.parse(location)
	if err != nil {
		return nil, err
	}
	keys, err := s.listKeys(ctx, loc)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return nil, fmt.Errorf("create destination dir: %w", err)
	}
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		name := path.Base(key)
		if err := s.Client.FGetObject(ctx, loc.Bucket, key, filepath.Join(dstDir, name), minio.GetObjectOptions{}); err != nil {
			return nil, fmt.Errorf("s3 get object %s: %w", key, err)
		}
		names = append(names, name)
	}
	return names, nil
}

func (s *S3) Upload(ctx context.Context, localFile, location string) error {
	loc, err := s.parse(location)
	if err != nil {
		return err
	}
	key := loc.Join(filepath.Base(localFile)).Key
	_, err = s.Client.FPutObject(ctx, loc.Bucket, key, localFile, minio.PutObjectOptions{
		ContentType: contentType(localFile),
	})
	if err != nil {
		return fmt.Errorf("s3 put object %s: %w", key, err)
	}
	return nil
}

func (s *S3) parse(location string) (Location, error) {
	loc, err := Parse(location)
	if err != nil {
		return Location{}, err
	}
	if loc.Scheme != SchemeS3 {
		return Location{}, fmt.Errorf("s3 storage cannot serve %s", location)
	}
	return loc, nil
}

func (s *S3) listKeys(ctx context.Context, loc Location) ([]string, error) {
	var keys []string
	for obj := range s.Client.ListObjects(ctx, loc.Bucket, minio.ListObjectsOptions{
		Prefix:    folderPrefix(loc.Key),
		Recursive: false,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("s3 list objects: %w", obj.Err)
		}
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		keys = append(keys, obj.Key)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, loc)
	}
	sort.Strings(keys)
	return keys, nil
}

func folderPrefix(key string) string {
	key = strings.Trim(key, "/")
	if key == "" {
		return ""
	}
	return key + "/"
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}
