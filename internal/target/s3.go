package target

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/runway-sync/runway/internal/state"
	"github.com/runway-sync/runway/internal/utils"
)

// s3API is the part of the S3 client the adapter uses.
type s3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3ClientConfig struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// NewS3Client builds an S3 client. Without static keys the default AWS
// credential chain is used. A custom endpoint switches to path-style
// addressing for S3-compatible stores.
func NewS3Client(ctx context.Context, cfg S3ClientConfig) (*s3.Client, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          64,
			MaxIdleConnsPerHost:   16,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ForceAttemptHTTP2:     true,
		},
		Timeout: 2 * time.Minute,
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithHTTPClient(httpClient),
	}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

type S3Options struct {
	Bucket string
	Prefix string
	// PublicURL, when set, is the base of returned identifiers. Otherwise
	// identifiers are s3://bucket/key.
	PublicURL string
}

// S3Adapter stores assets as content-addressed objects in a bucket.
type S3Adapter struct {
	client s3API
	opts   S3Options
}

func NewS3Adapter(client s3API, opts S3Options) *S3Adapter {
	return &S3Adapter{client: client, opts: opts}
}

func (a *S3Adapter) key(in *Input) string {
	name := in.Fingerprint.String() + in.Ident.Ext()
	if a.opts.Prefix == "" {
		return name
	}
	return path.Join(a.opts.Prefix, name)
}

func (a *S3Adapter) url(key string) string {
	if a.opts.PublicURL != "" {
		return a.opts.PublicURL + "/" + key
	}
	return "s3://" + a.opts.Bucket + "/" + key
}

func (a *S3Adapter) SyncOne(ctx context.Context, in *Input, _ *state.Record) (*state.Record, error) {
	key := a.key(in)

	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.opts.Bucket),
		Key:    aws.String(key),
	})
	switch {
	case err == nil:
		slog.Debug("s3 object exists", "path", in.Ident, "key", key)
	case isS3NotFound(err):
		_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(a.opts.Bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(in.Data),
			ContentLength: aws.Int64(int64(len(in.Data))),
			ContentType:   aws.String(utils.DetectContentType(key)),
		})
		if err != nil {
			return nil, classifyS3Error(fmt.Errorf("put '%s': %w", key, err))
		}
	default:
		return nil, classifyS3Error(fmt.Errorf("head '%s': %w", key, err))
	}

	return &state.Record{
		Fingerprint: in.Fingerprint,
		ID:          a.url(key),
		SyncedAt:    now(),
	}, nil
}

func isS3NotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

func classifyS3Error(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "Forbidden", "ExpiredToken":
			return wrap(ErrAuth, err)
		case "NoSuchBucket", "InvalidBucketName":
			return wrap(ErrRejected, err)
		}
	}
	return wrap(ErrTransient, err)
}
