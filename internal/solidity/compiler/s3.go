package compiler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Settings configures the bucket fetch strategy. At least one of Region or
// Endpoint must be set; both credentials fields are optional (the default AWS
// credential chain applies when absent).
type S3Settings struct {
	AccessKey string
	SecretKey string
	Region    string
	Endpoint  string
	Bucket    string
}

// Validate enforces the per-strategy configuration rules at load time.
func (s S3Settings) Validate() error {
	if s.Bucket == "" {
		return fmt.Errorf("s3 fetcher requires a bucket name")
	}
	if s.Region == "" && s.Endpoint == "" {
		return fmt.Errorf("s3 fetcher requires at least one of region or endpoint")
	}
	return nil
}

// s3API is the subset of the S3 client the fetcher needs, kept narrow so
// tests can run against a fake.
type s3API interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Fetcher resolves versions against an object-storage bucket laid out as
// "<version>/solc" keys.
type S3Fetcher struct {
	client s3API
	bucket string
}

// NewS3Fetcher builds a fetcher from validated settings.
func NewS3Fetcher(ctx context.Context, settings S3Settings) (*S3Fetcher, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if settings.Region != "" {
		opts = append(opts, awsconfig.WithRegion(settings.Region))
	}
	if settings.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(settings.AccessKey, settings.SecretKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if settings.Endpoint != "" {
			o.BaseEndpoint = aws.String(settings.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Fetcher{client: client, bucket: settings.Bucket}, nil
}

// newS3FetcherWithClient is the test seam.
func newS3FetcherWithClient(client s3API, bucket string) *S3Fetcher {
	return &S3Fetcher{client: client, bucket: bucket}
}

// Fetch downloads the "<version>/solc" object.
func (f *S3Fetcher) Fetch(ctx context.Context, v Version) ([]byte, error) {
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(v.String() + "/solc"),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: %s", ErrVersionNotFound, v)
		}
		return nil, fmt.Errorf("%w: fetching compiler object: %v", ErrFetchUnavailable, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading compiler object: %v", ErrFetchUnavailable, err)
	}
	return data, nil
}

// ListAvailable lists the bucket's top-level version prefixes.
func (f *S3Fetcher) ListAvailable(ctx context.Context) ([]Version, error) {
	var versions []Version
	var token *string
	for {
		out, err := f.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(f.bucket),
			Delimiter:         aws.String("/"),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: listing compiler bucket: %v", ErrFetchUnavailable, err)
		}
		for _, prefix := range out.CommonPrefixes {
			if prefix.Prefix == nil {
				continue
			}
			v, err := ParseVersion(strings.TrimSuffix(*prefix.Prefix, "/"))
			if err != nil {
				continue // keys not named after versions are ignored
			}
			versions = append(versions, v)
		}
		if out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}
	return versions, nil
}
