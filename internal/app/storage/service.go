/*
Package storage mints and resolves attachment references.

A message never carries file bytes over the websocket. The client first asks
the REST layer for an upload ticket, pushes the bytes straight to the
S3-compatible bucket with the presigned URL, and then sends the returned
opaque reference inside message:send. Readers resolve the reference back to
a short-lived download URL the same way.
*/
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ServiceConfig holds the configuration required to connect to the storage service.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// UploadTicket is what a client needs to push one attachment: the presigned
// PUT URL and the reference it must echo back in message:send.
type UploadTicket struct {
	Ref       string    `json:"ref"`
	UploadURL string    `json:"uploadUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ObjectInfo describes a stored attachment.
type ObjectInfo struct {
	ContentType   string `json:"contentType"`
	ContentLength int64  `json:"contentLength"`
}

// ErrNotFound is returned when a reference points at no stored object.
var ErrNotFound = errors.New("attachment not found")

// StorageService defines the public interface for the attachment storage service.
type StorageService interface {
	// PresignUpload mints a fresh reference under the project's prefix and
	// returns a ticket for uploading the file bytes.
	PresignUpload(
		ctx context.Context,
		projectID string,
		mimeType string,
		fileSize int64,
		duration time.Duration,
	) (UploadTicket, error)

	// PresignDownload resolves a reference to a short-lived download URL.
	PresignDownload(ctx context.Context, ref string, duration time.Duration) (string, error)

	// Stat reports metadata for a stored attachment, or ErrNotFound.
	Stat(ctx context.Context, ref string) (ObjectInfo, error)
}

// NewStorageService is the factory function for StorageService.
// It initializes and returns a concrete implementation based on the provided configuration.
func NewStorageService(cfg ServiceConfig) (StorageService, error) {
	// Currently, only S3 compatible implementations are supported.
	return newS3Client(cfg)
}

// refPrefix namespaces every attachment key inside the bucket.
const refPrefix = "projects/"

// mintRef builds the object key for a new attachment.
func mintRef(projectID string) string {
	return fmt.Sprintf("%s%s/attachments/%s", refPrefix, projectID, uuid.NewString())
}

// ValidateRef rejects references that could not have been minted here,
// before any of them reaches the bucket as an object key.
func ValidateRef(ref string) error {
	if !strings.HasPrefix(ref, refPrefix) || strings.Contains(ref, "..") {
		return fmt.Errorf("malformed attachment reference %q", ref)
	}
	return nil
}
