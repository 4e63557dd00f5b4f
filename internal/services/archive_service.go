// internal/services/archive_service.go
package services

import (
	"bytes"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"

	"github.com/sellgate/checkout-backend/internal/config"
)

// ArchiveService copies raw webhook payloads to S3 for replay and
// debugging. Archival is best-effort and off the request path; the
// database WebhookLogEntry remains the operational source either way.
type ArchiveService struct {
	s3Client *s3.S3
	config   *config.Config
}

func NewArchiveService(config *config.Config) (*ArchiveService, error) {
	if config.AWS.AccessKeyID == "" {
		// Return service without S3 for local development
		return &ArchiveService{config: config}, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(config.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			config.AWS.AccessKeyID,
			config.AWS.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &ArchiveService{
		s3Client: s3.New(sess),
		config:   config,
	}, nil
}

// Enabled reports whether S3 archival is configured.
func (s *ArchiveService) Enabled() bool {
	return s != nil && s.s3Client != nil
}

// ArchivePayload stores the raw body under a date-partitioned key derived
// from the webhook log id and returns the key.
func (s *ArchiveService) ArchivePayload(logID uuid.UUID, payload []byte, contentType string) (string, error) {
	if s.s3Client == nil {
		return "", nil
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := fmt.Sprintf("webhooks/%s/%s.raw", time.Now().UTC().Format("2006/01/02"), logID)

	_, err := s.s3Client.PutObject(&s3.PutObjectInput{
		Bucket:        aws.String(s.config.AWS.S3Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(payload),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(payload))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive payload: %w", err)
	}

	return key, nil
}
