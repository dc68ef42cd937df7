package webhook

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/byronwade/thorbis-payments/pkg/types"
)

// s3API is the subset of the S3 client the archiver depends on.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver stores raw webhook payloads to S3 after verification, keyed by
// company, processor, and receipt time, so disputes can be replayed against
// the exact bytes the processor delivered.
type Archiver struct {
	client s3API
	bucket string
}

// NewArchiver creates an archiver writing to the given bucket.
func NewArchiver(client s3API, bucket string) *Archiver {
	return &Archiver{client: client, bucket: bucket}
}

// Archive writes payload and returns the object key.
func (a *Archiver) Archive(ctx context.Context, companyID string, kind types.ProcessorKind, payload []byte) (string, error) {
	if a == nil || a.client == nil {
		return "", fmt.Errorf("archiver is not configured")
	}

	key := fmt.Sprintf("webhooks/%s/%s/%s/%s.json",
		companyID, kind, time.Now().UTC().Format("2006/01/02"), uuid.NewString())

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("archive webhook payload: %w", err)
	}
	return key, nil
}
