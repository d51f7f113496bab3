package report

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Store persists a written bundle directory and returns a URL-ish location
// a human can follow from the published status.
type Store interface {
	Persist(ctx context.Context, runID, dir string) (string, error)
}

// DirStore keeps bundles under a local reports root keyed by run ID. The
// orchestrator writes the bundle straight into its final location, so
// Persist only has to resolve the address.
type DirStore struct {
	Root string
}

// Dir returns the bundle directory for runID.
func (s *DirStore) Dir(runID string) string {
	return filepath.Join(s.Root, runID)
}

// Persist resolves the absolute location of the bundle.
func (s *DirStore) Persist(_ context.Context, runID, dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve report dir: %w", err)
	}
	return "file://" + abs, nil
}

// S3Store uploads bundle files under <prefix>/<runID>/ in the configured
// bucket. Credentials and region come from the ambient AWS environment.
type S3Store struct {
	bucket   string
	prefix   string
	uploader *manager.Uploader
}

// NewS3Store creates an S3Store for bucket/prefix.
func NewS3Store(ctx context.Context, bucket, prefix string) (*S3Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket required")
	}
	cfg, err := awsConfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Store{
		bucket:   bucket,
		prefix:   prefix,
		uploader: manager.NewUploader(client),
	}, nil
}

// Persist uploads every regular file in dir and returns the s3:// location
// of the run's report prefix.
func (s *S3Store) Persist(ctx context.Context, runID, dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read report dir %q: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		f, err := os.Open(filepath.Join(dir, entry.Name()))
		if err != nil {
			return "", fmt.Errorf("open report file %q: %w", entry.Name(), err)
		}
		key := path.Join(s.prefix, runID, entry.Name())
		_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   f,
		})
		f.Close()
		if err != nil {
			return "", fmt.Errorf("upload %q: %w", key, err)
		}
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, path.Join(s.prefix, runID)), nil
}
