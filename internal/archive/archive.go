// Package archive ships completed-item transcripts to object storage.
// The orchestrator never replays these transcripts into model context; they
// exist for backward review only, so every call here is best-effort.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrNotFound is returned when the requested transcript does not exist.
var ErrNotFound = errors.New("archive: transcript not found")

type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Archive stores transcripts under project/<id>/item-<index>.txt keys.
type Archive struct {
	client     *minio.Client
	bucketName string
	region     string
	initOnce   sync.Once
	initErr    error
}

func New(cfg Config) (*Archive, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("archive endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("archive access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
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
		return nil, fmt.Errorf("init archive client: %w", err)
	}
	return &Archive{client: client, bucketName: bucket, region: region}, nil
}

func (a *Archive) ensureBucket(ctx context.Context) error {
	if a == nil || a.client == nil {
		return fmt.Errorf("archive is nil")
	}
	a.initOnce.Do(func() {
		exists, err := a.client.BucketExists(ctx, a.bucketName)
		if err != nil {
			a.initErr = err
			return
		}
		if exists {
			return
		}
		a.initErr = a.client.MakeBucket(ctx, a.bucketName, minio.MakeBucketOptions{Region: a.region})
	})
	return a.initErr
}

// PutTranscript archives the full transcript of a completed item.
func (a *Archive) PutTranscript(ctx context.Context, projectID string, index int, transcript string) error {
	if a == nil {
		return fmt.Errorf("archive is nil")
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return fmt.Errorf("project_id is required")
	}
	if index < 0 {
		return fmt.Errorf("index must be non-negative")
	}
	if err := a.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	content := []byte(transcript)
	key := transcriptKey(projectID, index)
	_, err := a.client.PutObject(ctx, a.bucketName, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: "text/plain",
	})
	return err
}

// GetTranscript fetches an archived transcript for review.
func (a *Archive) GetTranscript(ctx context.Context, projectID string, index int) (string, error) {
	if a == nil {
		return "", fmt.Errorf("archive is nil")
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return "", fmt.Errorf("project_id is required")
	}
	if err := a.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket: %w", err)
	}
	obj, err := a.client.GetObject(ctx, a.bucketName, transcriptKey(projectID, index), minio.GetObjectOptions{})
	if err != nil {
		return "", err
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket" {
			return "", ErrNotFound
		}
		return "", err
	}
	return string(data), nil
}

// List returns the archived item keys for a project, sorted.
func (a *Archive) List(ctx context.Context, projectID string) ([]string, error) {
	if a == nil {
		return nil, fmt.Errorf("archive is nil")
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, fmt.Errorf("project_id is required")
	}
	if err := a.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}
	prefix := "project/" + projectID + "/"
	keys := make([]string, 0, 16)
	for obj := range a.client.ListObjects(ctx, a.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if obj.Key == "" {
			continue
		}
		keys = append(keys, strings.TrimPrefix(obj.Key, prefix))
	}
	sort.Strings(keys)
	return keys, nil
}

func transcriptKey(projectID string, index int) string {
	return fmt.Sprintf("project/%s/item-%d.txt", projectID, index)
}
