// Package storage reads project artifacts from a MinIO or S3 bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"

	"github.com/SUBRATAxTL/ai-threat-model-app/internal/config"
	domain "github.com/SUBRATAxTL/ai-threat-model-app/internal/domain/threatmodel"
)

type Store struct {
	client     *minio.Client
	bucketName string
	limits     domain.Limits
	log        logrus.FieldLogger
}

var _ domain.ArtifactSource = (*Store)(nil)

// New connects to the bucket described by cfg and fails when it does not exist.
func New(ctx context.Context, cfg config.Minio, limits domain.Limits, log logrus.FieldLogger) (*Store, error) {
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	s := &Store{client: cli, bucketName: cfg.BucketName, limits: limits, log: log}
	if err := s.Ping(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Name identifies the store in health reports.
func (s *Store) Name() string { return "minio" }

// Ping checks that the bucket is reachable and exists.
func (s *Store) Ping(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucketName, err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", s.bucketName)
	}
	return nil
}

// Collect reads every object under prefix as an artifact named by its key.
// Folder markers are ignored; any object breaking the limits fails the call.
func (s *Store) Collect(ctx context.Context, prefix string) ([]domain.ArtifactRecord, error) {
	var out []domain.ArtifactRecord
	for obj := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", s.bucketName, prefix, obj.Err)
		}
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		if err := s.limits.CheckCount(len(out) + 1); err != nil {
			return nil, err
		}
		if s.limits.MaxArtifactBytes > 0 && obj.Size > s.limits.MaxArtifactBytes {
			return nil, domain.Invalid("artifact %q is %d bytes (max %d)", obj.Key, obj.Size, s.limits.MaxArtifactBytes)
		}

		content, err := s.read(ctx, obj.Key)
		if err != nil {
			return nil, err
		}
		if err := s.limits.CheckArtifact(obj.Key, content); err != nil {
			return nil, err
		}
		out = append(out, domain.ArtifactRecord{Name: obj.Key, Content: string(content)})
	}

	if err := s.limits.CheckCount(len(out)); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"bucket": s.bucketName, "prefix": prefix, "artifacts": len(out)}).
		Debug("collected bucket artifacts")
	return out, nil
}

func (s *Store) read(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer obj.Close()

	r := io.Reader(obj)
	if s.limits.MaxArtifactBytes > 0 {
		r = io.LimitReader(obj, s.limits.MaxArtifactBytes+1)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return content, nil
}
