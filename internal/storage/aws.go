package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/spark-tracker/internal/domain"
)

// LoadAWSConfig loads the default AWS config for region, optionally pinned to
// a shared-config profile.
func LoadAWSConfig(ctx context.Context, region, profile string) (aws.Config, error) {
	var cfg aws.Config
	var err error

	if profile != "" {
		cfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(region),
			config.WithSharedConfigProfile(profile),
		)
	} else {
		cfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(region),
		)
	}
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return cfg, nil
}

// S3API is the subset of the S3 client used by the archiver.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Archiver writes final snapshots of expired Sparks to S3 as JSON.
type Archiver struct {
	client S3API
	bucket string
	prefix string
}

// NewArchiver creates an archiver. prefix is prepended verbatim to every key.
func NewArchiver(client S3API, bucket, prefix string) *Archiver {
	return &Archiver{client: client, bucket: bucket, prefix: prefix}
}

// Key returns the object key for a record: {prefix}{owner}/{yyyy}/{mm}/{id}.json,
// partitioned by creation month.
func (a *Archiver) Key(rec *domain.EngagementRecord) string {
	owner := strings.ReplaceAll(rec.OwnerID, "/", "_")
	return fmt.Sprintf("%s%s/%s/%s.json", a.prefix, owner, rec.CreatedAt.UTC().Format("2006/01"), rec.ID)
}

// Archive stores rec and returns its key.
func (a *Archiver) Archive(ctx context.Context, rec *domain.EngagementRecord) (string, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling spark: %w", err)
	}

	key := a.Key(rec)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("putting object to S3: %w", err)
	}
	return key, nil
}

// Load reads an archived record back.
func (a *Archiver) Load(ctx context.Context, key string) (*domain.EngagementRecord, error) {
	result, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("getting object from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("reading S3 object body: %w", err)
	}
	rec := &domain.EngagementRecord{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("unmarshaling S3 data: %w", err)
	}
	return rec, nil
}
