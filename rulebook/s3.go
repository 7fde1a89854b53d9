package rulebook

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/liamcoop/shelflife/shelflife"
)

// S3Config locates a rule book artifact in an S3-compatible bucket
type S3Config struct {
	Bucket    string
	Key       string
	Region    string // default us-east-1
	Endpoint  string // optional, e.g. MinIO
	PathStyle bool
}

// S3GetObjectAPI is the subset of the S3 client used by S3Source
type S3GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads a TOML artifact from S3
type S3Source struct {
	client S3GetObjectAPI
	bucket string
	key    string
}

// NewS3Source builds a client from the default AWS credential chain
func NewS3Source(ctx context.Context, cfg S3Config) (*S3Source, error) {
	if cfg.Bucket == "" || cfg.Key == "" {
		return nil, fmt.Errorf("s3 bucket and key required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewS3SourceWithClient(client, cfg.Bucket, cfg.Key), nil
}

// NewS3SourceWithClient uses an existing client
func NewS3SourceWithClient(client S3GetObjectAPI, bucket, key string) *S3Source {
	return &S3Source{client: client, bucket: bucket, key: key}
}

func (s *S3Source) Fetch(ctx context.Context) (shelflife.RuleBook, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return shelflife.RuleBook{}, fmt.Errorf("failed to get %s: %w", s, err)
	}
	defer out.Body.Close()

	book, err := DecodeTOML(out.Body)
	if err != nil {
		return shelflife.RuleBook{}, fmt.Errorf("%s: %w", s, err)
	}
	return book, nil
}

func (s *S3Source) String() string {
	return "s3://" + s.bucket + "/" + s.key
}
