package media

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/acm19/normalise/internal/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Client is the subset of the S3 API used by the archiver.
type S3Client interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver keeps a copy of an original before it is deleted.
type Archiver interface {
	// Archive uploads localPath under key. An existing object with the same
	// content is left alone; one with different content makes the archiver
	// store a copy under a content-suffixed key instead.
	Archive(ctx context.Context, localPath, key string) error
}

// s3Archiver implements the Archiver interface
type s3Archiver struct {
	client S3Client
	bucket string
	prefix string
}

// NewS3Archiver creates an Archiver using the default AWS configuration chain.
func NewS3Archiver(ctx context.Context, bucket, prefix string) (Archiver, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewS3ArchiverWithClient(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// NewS3ArchiverWithClient creates an Archiver around an existing client.
func NewS3ArchiverWithClient(client S3Client, bucket, prefix string) Archiver {
	return &s3Archiver{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

func (a *s3Archiver) Archive(ctx context.Context, localPath, key string) error {
	key = a.objectKey(key)

	sum, err := fileMD5(localPath)
	if err != nil {
		return fmt.Errorf("failed to hash %s: %w", localPath, err)
	}
	localHash := hex.EncodeToString(sum)

	same, err := a.matches(ctx, key, localHash)
	if err != nil {
		return err
	}
	if same {
		logger.Info("Original already archived with matching hash, skipping upload", "key", key, "hash", localHash)
		return nil
	}

	if a.exists(ctx, key) {
		ext := path.Ext(key)
		key = fmt.Sprintf("%s-%s%s", strings.TrimSuffix(key, ext), localHash[:8], ext)
		logger.Warn("Archive key holds different content, using content-suffixed key", "key", key)
		if same, err := a.matches(ctx, key, localHash); err != nil {
			return err
		} else if same {
			return nil
		}
	}

	logger.Debug("Uploading original to S3", "bucket", a.bucket, "key", key, "hash", localHash)
	if err := a.upload(ctx, localPath, key, sum); err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	logger.Info("Archived original", "file", localPath, "key", key)
	return nil
}

// matches reports whether key exists with the given MD5 hash.
func (a *s3Archiver) matches(ctx context.Context, key, localHash string) (bool, error) {
	head, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check S3 object existence: %w", err)
	}
	remoteETag := ""
	if head.ETag != nil {
		remoteETag = strings.Trim(*head.ETag, "\"")
	}
	return remoteETag == localHash, nil
}

func (a *s3Archiver) exists(ctx context.Context, key string) bool {
	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	return err == nil
}

func (a *s3Archiver) upload(ctx context.Context, localPath, key string, sum []byte) error {
	file, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:     aws.String(a.bucket),
		Key:        aws.String(key),
		Body:       file,
		ContentMD5: aws.String(base64.StdEncoding.EncodeToString(sum)),
	})
	return err
}

func (a *s3Archiver) objectKey(key string) string {
	key = strings.TrimLeft(key, "/")
	if a.prefix == "" {
		return key
	}
	return a.prefix + "/" + key
}

// fileMD5 returns the raw MD5 digest of a file.
func fileMD5(filePath string) ([]byte, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, file); err != nil {
		return nil, err
	}
	return hash.Sum(nil), nil
}

// isNotFoundError checks if the error is a NotFound error
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}

	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey" {
			return true
		}
	}

	errMsg := err.Error()
	return strings.Contains(errMsg, "NotFound") || strings.Contains(errMsg, "StatusCode: 404")
}
