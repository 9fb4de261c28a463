package reviews

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectGetter is the subset of the S3 API the source needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads the review TSV from an S3 object.
type S3Source struct {
	client ObjectGetter
	bucket string
	key    string
	column string
}

// NewS3Source builds an S3 client from the default AWS credential chain.
func NewS3Source(ctx context.Context, region, bucket, key, column string) (*S3Source, error) {
	if bucket == "" || key == "" {
		return nil, errors.New("s3 bucket and key are required")
	}
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewS3SourceWithClient(s3.NewFromConfig(cfg), bucket, key, column), nil
}

// NewS3SourceWithClient wires an existing client.
func NewS3SourceWithClient(client ObjectGetter, bucket, key, column string) *S3Source {
	return &S3Source{client: client, bucket: bucket, key: key, column: column}
}

// Name identifies the source in logs.
func (s *S3Source) Name() string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.key)
}

// Load downloads and parses the object.
func (s *S3Source) Load(ctx context.Context) ([]string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, fmt.Errorf("get reviews object: %w", err)
	}
	defer out.Body.Close()
	return ParseTSV(out.Body, s.column)
}
