package storage

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Options configures the SigV4 presigner.
type S3Options struct {
	Endpoint  string // absolute URL; empty uses the AWS regional endpoint
	Region    string
	AccessKey string
	SecretKey string
	PathStyle bool
}

// S3Presigner presigns object-store requests with the AWS SDK. Presigning is
// a local computation; no request reaches the object store.
type S3Presigner struct {
	client *s3.PresignClient
}

// NewS3Presigner builds an S3 client for opts and wraps its presign client.
func NewS3Presigner(ctx context.Context, opts S3Options) (*S3Presigner, error) {
	cfgFuncs := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		cfgFuncs = append(cfgFuncs, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, cfgFuncs...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.PathStyle
		// Browsers upload the body as-is; a checksum header would pin an empty payload.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	return &S3Presigner{client: s3.NewPresignClient(client)}, nil
}

// PresignPut implements Presigner.
func (p *S3Presigner) PresignPut(ctx context.Context, cmd PutCommand, ttl time.Duration) (*PresignedRequest, error) {
	req, err := p.client.PresignPutObject(ctx, putObjectInput(cmd), s3.WithPresignExpires(ttl))
	if err != nil {
		return nil, fmt.Errorf("presign put %q: %w", cmd.Key, err)
	}

	headers := http.Header{}
	for name, values := range req.SignedHeader {
		headers[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
	}
	return &PresignedRequest{URL: req.URL, Method: req.Method, Headers: headers}, nil
}

// putObjectInput maps cmd onto the SDK input, leaving unset optional fields nil.
func putObjectInput(cmd PutCommand) *s3.PutObjectInput {
	in := &s3.PutObjectInput{
		Bucket:       aws.String(cmd.Bucket),
		Key:          aws.String(cmd.Key),
		CacheControl: cmd.CacheControl,
		Expires:      cmd.Expires,
	}
	if cmd.ACL != "" {
		in.ACL = s3types.ObjectCannedACL(cmd.ACL)
	}
	if cmd.ContentType != "" {
		in.ContentType = aws.String(cmd.ContentType)
	}
	return in
}
