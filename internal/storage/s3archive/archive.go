package s3archive

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"virtual_trader/pkg/logger"
)

type Config struct {
	Bucket   string
	Region   string
	Endpoint string // пусто — AWS S3
	Prefix   string

	// без ключей используется стандартная цепочка AWS (env, профиль, роль)
	AccessKey string
	SecretKey string
}

type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archive складывает итоговые артефакты сессии в бакет.
type Archive struct {
	s3     putter
	bucket string
	prefix string
	log    *logger.Logger
}

func New(ctx context.Context, cfg Config, log *logger.Logger) (*Archive, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3archive.New: bucket is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3archive.New: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newArchive(client, cfg, log), nil
}

func newArchive(p putter, cfg Config, log *logger.Logger) *Archive {
	return &Archive{s3: p, bucket: cfg.Bucket, prefix: cfg.Prefix, log: log}
}

// Put: ключ объекта — prefix/key.
func (a *Archive) Put(ctx context.Context, key string, data []byte, contentType string) error {
	full := path.Join(a.prefix, key)
	_, err := a.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(full),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("Archive.Put %s: %w", full, err)
	}
	a.log.Debug("[S3] %s/%s (%d bytes)", a.bucket, full, len(data))
	return nil
}
