package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/adeilh/go-lsbible/cache"
)

// ObjectAPI is the subset of the S3 client used by Store.
type ObjectAPI interface {
	GetObject(ctx context.Context, in *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *awss3.DeleteObjectInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, in *awss3.DeleteObjectsInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectsOutput, error)
	ListObjectsV2(ctx context.Context, in *awss3.ListObjectsV2Input, optFns ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error)
}

// Options selects the bucket and key prefix the store writes under.
type Options struct {
	Bucket string
	// Prefix is prepended verbatim to every object key, e.g. "lsbible/".
	Prefix string
	// Now overrides the clock used for expiry. Defaults to time.Now.
	Now func() time.Time
}

// Store keeps one JSON envelope object per key. S3 has no per-object TTL
// that is precise enough for caching, so expiry is checked on read.
type Store struct {
	api    ObjectAPI
	bucket string
	prefix string
	now    func() time.Time
}

var _ cache.ClearableStore = (*Store)(nil)

// New wraps an S3 client (or anything satisfying ObjectAPI).
func New(api ObjectAPI, opts Options) (*Store, error) {
	if api == nil {
		return nil, errors.New("s3: client is nil")
	}
	if opts.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{api: api, bucket: opts.Bucket, prefix: opts.Prefix, now: now}, nil
}

func (s *Store) objectKey(key string) string {
	return s.prefix + cache.EncodeKey(key) + ".json"
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	objKey := s.objectKey(key)
	out, err := s.api.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, cache.ErrNotFound
		}
		return nil, fmt.Errorf("s3: get %s: %w", objKey, err)
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3: read %s: %w", objKey, err)
	}
	var env cache.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("s3: decode %s: %w", objKey, err)
	}

	if env.Expired(s.now()) {
		// IfMatch leaves an object rewritten since this read in place.
		if _, err := s.api.DeleteObject(ctx, &awss3.DeleteObjectInput{
			Bucket:  aws.String(s.bucket),
			Key:     aws.String(objKey),
			IfMatch: out.ETag,
		}); err != nil && !isPreconditionFailed(err) {
			return nil, fmt.Errorf("s3: delete expired %s: %w", objKey, err)
		}
		return nil, cache.ErrNotFound
	}
	return env.Payload(), nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	raw, err := json.Marshal(cache.NewEnvelope(value, s.now(), ttl))
	if err != nil {
		return fmt.Errorf("s3: encode: %w", err)
	}
	objKey := s.objectKey(key)
	_, err = s.api.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objKey),
		Body:        bytes.NewReader(raw),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3: put %s: %w", objKey, err)
	}
	return nil
}

// Delete removes the object for key. S3 does not report whether the object
// existed, so a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	objKey := s.objectKey(key)
	_, err := s.api.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		return fmt.Errorf("s3: delete %s: %w", objKey, err)
	}
	return nil
}

// Clear deletes every entry object under the prefix, one batch per listing
// page.
func (s *Store) Clear(ctx context.Context) error {
	return s.eachPage(ctx, func(keys []string) error {
		ids := make([]types.ObjectIdentifier, 0, len(keys))
		for _, k := range keys {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(k)})
		}
		out, err := s.api.DeleteObjects(ctx, &awss3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("s3: delete objects: %w", err)
		}
		if len(out.Errors) > 0 {
			first := out.Errors[0]
			return fmt.Errorf("s3: delete objects: %d failed, first %s: %s",
				len(out.Errors), aws.ToString(first.Key), aws.ToString(first.Message))
		}
		return nil
	})
}

// Len counts entry objects under the prefix, expired or not.
func (s *Store) Len(ctx context.Context) (int, error) {
	n := 0
	err := s.eachPage(ctx, func(keys []string) error {
		n += len(keys)
		return nil
	})
	return n, err
}

func (s *Store) eachPage(ctx context.Context, fn func(keys []string) error) error {
	pager := awss3.NewListObjectsV2Paginator(s.api, &awss3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("s3: list %s: %w", s.prefix, err)
		}
		keys := make([]string, 0, len(page.Contents))
		for _, obj := range page.Contents {
			k := aws.ToString(obj.Key)
			if isEntryKey(strings.TrimPrefix(k, s.prefix)) {
				keys = append(keys, k)
			}
		}
		if len(keys) == 0 {
			continue
		}
		if err := fn(keys); err != nil {
			return err
		}
	}
	return nil
}

// isEntryKey skips objects under the prefix that this store did not write,
// including anything in nested "directories".
func isEntryKey(name string) bool {
	return len(name) == 64+len(".json") && strings.HasSuffix(name, ".json") && !strings.Contains(name, "/")
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed"
}
