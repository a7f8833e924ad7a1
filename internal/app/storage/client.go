package storage

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"lexcollab/internal/pkg/logx"
)

// s3Client implements the StorageService interface against any
// S3-compatible endpoint.
type s3Client struct {
	cfg      ServiceConfig
	s3Client *s3.Client
	presign  *s3.PresignClient
}

// newS3Client initializes the S3 client using a custom configuration that supports S3-compatible endpoints.
func newS3Client(cfg ServiceConfig) (*s3Client, error) {
	sdkCfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKeyID,
			cfg.S3SecretAccessKey,
			"",
		)),
		config.WithRegion("auto"),
	)
	if err != nil {
		logx.Error(err, "Failed to load AWS SDK config")
		return nil, errors.New("failed to initialize S3 client configuration")
	}

	client := s3.NewFromConfig(sdkCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		o.UsePathStyle = true
	})

	return &s3Client{
		cfg:      cfg,
		s3Client: client,
		presign:  s3.NewPresignClient(client),
	}, nil
}

// PresignUpload mints a new attachment reference and generates a presigned
// URL for uploading the file bytes against it.
func (c *s3Client) PresignUpload(
	ctx context.Context,
	projectID string,
	mimeType string,
	fileSize int64,
	duration time.Duration,
) (UploadTicket, error) {
	ref := mintRef(projectID)

	presignInput := &s3.PutObjectInput{
		Bucket:        &c.cfg.S3BucketName,
		Key:           &ref,
		ContentType:   &mimeType,
		ContentLength: &fileSize,
	}

	resp, err := c.presign.PresignPutObject(ctx, presignInput, s3.WithPresignExpires(duration))
	if err != nil {
		logx.Error(err, "Failed to generate presigned upload URL", "ref", ref)
		return UploadTicket{}, errors.New("failed to generate presigned upload URL")
	}

	return UploadTicket{
		Ref:       ref,
		UploadURL: resp.URL,
		ExpiresAt: time.Now().Add(duration),
	}, nil
}

// PresignDownload generates a presigned URL for downloading the attachment
// behind the given reference.
func (c *s3Client) PresignDownload(ctx context.Context, ref string, duration time.Duration) (string, error) {
	if err := ValidateRef(ref); err != nil {
		return "", err
	}

	presignInput := &s3.GetObjectInput{
		Bucket: &c.cfg.S3BucketName,
		Key:    &ref,
	}

	resp, err := c.presign.PresignGetObject(ctx, presignInput, s3.WithPresignExpires(duration))
	if err != nil {
		logx.Error(err, "Failed to generate presigned download URL", "ref", ref)
		return "", errors.New("failed to generate presigned download URL")
	}

	return resp.URL, nil
}

// Stat reports the stored attachment's content type and size.
func (c *s3Client) Stat(ctx context.Context, ref string) (ObjectInfo, error) {
	if err := ValidateRef(ref); err != nil {
		return ObjectInfo{}, err
	}

	resp, err := c.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &c.cfg.S3BucketName,
		Key:    &ref,
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return ObjectInfo{}, ErrNotFound
		}
		logx.Error(err, "Failed to get S3 object metadata", "ref", ref)
		return ObjectInfo{}, errors.New("failed to fetch attachment metadata")
	}

	info := ObjectInfo{}
	if resp.ContentType != nil {
		info.ContentType = *resp.ContentType
	}
	if resp.ContentLength != nil {
		info.ContentLength = *resp.ContentLength
	}
	return info, nil
}
