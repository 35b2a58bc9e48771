package sfapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config configures an S3ReadService
type S3Config struct {
	Endpoint     string
	Region       string
	Bucket       string
	Prefix       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

type s3Getter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3ReadService reads metadata bodies from a retrieved snapshot stored as one JSON
// document per component under {prefix}/{kind}/{fullName}.json
type S3ReadService struct {
	client s3Getter
	bucket string
	prefix string
}

// NewS3ReadService builds an S3 client from cfg
func NewS3ReadService(ctx context.Context, cfg S3Config) (*S3ReadService, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	var awsConfig aws.Config
	var err error
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsConfig, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKey,
				cfg.SecretKey,
				"",
			)),
		)
	} else {
		awsConfig, err = config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return newS3ReadService(client, cfg.Bucket, cfg.Prefix), nil
}

func newS3ReadService(client s3Getter, bucket, prefix string) *S3ReadService {
	return &S3ReadService{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3ReadService) objectKey(kind, name string) string {
	return path.Join(s.prefix, kind, url.PathEscape(name)+".json")
}

// Read fetches each body; missing objects are skipped
func (s *S3ReadService) Read(ctx context.Context, kind string, names []string) ([]MetadataBody, error) {
	bodies := make([]MetadataBody, 0, len(names))

	for _, name := range names {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.objectKey(kind, name)),
		})
		if err != nil {
			var noSuchKey *types.NoSuchKey
			if errors.As(err, &noSuchKey) {
				continue
			}
			return nil, fmt.Errorf("failed to get %s %s from s3: %w", kind, name, err)
		}

		data, err := io.ReadAll(out.Body)
		out.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s %s from s3: %w", kind, name, err)
		}

		body := MetadataBody{Kind: kind, FullName: name}
		if err := json.Unmarshal(data, &body.Body); err != nil {
			return nil, fmt.Errorf("failed to decode %s %s: %w", kind, name, err)
		}
		bodies = append(bodies, body)
	}

	return bodies, nil
}
