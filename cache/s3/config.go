package s3

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
)

type clientOptions struct {
	profile   string
	region    string
	endpoint  string
	pathStyle bool
}

// ClientOption customizes how the S3 client is built.
// With no options the shell's AWS setup is inherited (AWS_PROFILE, shared
// config, env, IMDS).
type ClientOption func(*clientOptions)

// WithProfile sets the shared config profile.
func WithProfile(profile string) ClientOption {
	return func(o *clientOptions) { o.profile = profile }
}

// WithRegion overrides the region chain.
func WithRegion(region string) ClientOption {
	return func(o *clientOptions) { o.region = region }
}

// WithEndpoint points the client at an S3-compatible service such as MinIO.
// Path-style addressing is enabled along with it.
func WithEndpoint(endpoint string) ClientOption {
	return func(o *clientOptions) {
		o.endpoint = endpoint
		o.pathStyle = endpoint != ""
	}
}

// NewClient loads AWS config and constructs an S3 client from it.
func NewClient(ctx context.Context, opts ...ClientOption) (*awss3.Client, error) {
	var o clientOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	var loadOpts []func(*config.LoadOptions) error
	if o.profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(o.profile))
	}
	if o.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(o.region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}

	return awss3.NewFromConfig(cfg, func(so *awss3.Options) {
		if o.endpoint != "" {
			so.BaseEndpoint = aws.String(o.endpoint)
		}
		so.UsePathStyle = o.pathStyle
	}), nil
}

// Open builds a client with opts and wraps it in a Store.
func Open(ctx context.Context, storeOpts Options, opts ...ClientOption) (*Store, error) {
	client, err := NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return New(client, storeOpts)
}
