package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/bilgisen/kova/internal/logger"
)

const objectPrefix = "images/"

type R2Options struct {
	Endpoint    string
	AccessKey   string
	SecretKey   string
	Bucket      string
	MaxFileSize int64
}

// R2Store keeps images in a Cloudflare R2 (S3-compatible) bucket
type R2Store struct {
	client  *s3.Client
	bucket  string
	maxSize int64
}

func NewR2Store(ctx context.Context, opts R2Options) (*R2Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(opts.Endpoint)
		o.UsePathStyle = true
	})

	logger.With("media").Info().
		Str("endpoint", opts.Endpoint).
		Str("bucket", opts.Bucket).
		Msg("Using R2 image storage")

	return &R2Store{client: client, bucket: opts.Bucket, maxSize: opts.MaxFileSize}, nil
}

func (s *R2Store) Put(ctx context.Context, contentType string, data []byte) (string, error) {
	detected, err := sniff(contentType, data, s.maxSize)
	if err != nil {
		return "", err
	}

	id := newID()
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectPrefix + id),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(detected),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return id, nil
}

func (s *R2Store) Get(ctx context.Context, id string) (*Image, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectPrefix + id),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch image %s: %w", id, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", id, err)
	}

	return &Image{
		ID:          id,
		ContentType: aws.ToString(out.ContentType),
		Data:        data,
	}, nil
}
