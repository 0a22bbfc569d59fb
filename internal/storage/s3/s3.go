package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/instagrid/instagrid/internal/storage"
)

// Backend stores blobs in an S3 bucket. PublicURL hands out presigned GET
// URLs; the Graph API fetches images through them during publication.
type Backend struct {
	client    *awss3.Client
	presigner *awss3.PresignClient
	bucket    string
}

type Config struct {
	AccessKey  string
	SecretKey  string
	Region     string
	BucketName string
}

func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("bucket name is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg)
	return &Backend{
		client:    client,
		presigner: awss3.NewPresignClient(client),
		bucket:    cfg.BucketName,
	}, nil
}

func (b *Backend) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := b.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		slog.Info(err.Error())
		return &storage.StorageError{Op: "put", Key: key, Err: err}
	}
	return nil
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%q: %w", key, storage.ErrNotFound)
		}
		slog.Info(err.Error())
		return nil, &storage.StorageError{Op: "get", Key: key, Err: err}
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, &storage.StorageError{Op: "get", Key: key, Err: err}
	}
	return data, nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		slog.Info(err.Error())
		return &storage.StorageError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

func (b *Backend) PublicURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := b.presigner.PresignGetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	}, awss3.WithPresignExpires(ttl))
	if err != nil {
		slog.Info(err.Error())
		return "", &storage.StorageError{Op: "presign", Key: key, Err: err}
	}
	return req.URL, nil
}
