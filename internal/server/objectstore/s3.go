// Package objectstore wraps an S3-compatible object store with the small
// surface the Manifest Service needs: conditional-aware get/put, bulk
// delete, and presigned URL issuance. Grounded on the reference
// architecture's S3 blob backend, trimmed to the operations the
// manifest/files routes actually use (no multipart upload, no
// server-side copy — neither has a place in this protocol) and retuned
// to the protocol's own constants (900s presigned expiry rather than
// the reference's 5 minutes).
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/vaultsync/vaultsync/internal/utils"
)

// PresignedURLExpiry is PRESIGNED_URL_EXPIRY: the hard expiry on every
// issued upload/download URL.
const PresignedURLExpiry = 900 * time.Second

// ErrNotExist is returned by Get when the key has no object.
var ErrNotExist = errors.New("object does not exist")

// Config describes how to reach the backing S3-compatible bucket.
type Config struct {
	BucketName    string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	UseAccelerate bool
}

// Object is a stored object's bytes plus its revision metadata.
type Object struct {
	Body         []byte
	ETag         string
	Size         int64
	LastModified time.Time
}

// Info is object metadata without the body, as returned by List.
type Info struct {
	Key          string
	ETag         string
	Size         int64
	LastModified time.Time
}

// Store is the object-store client used by the Manifest Service.
type Store struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
}

// New builds a Store from Config, configuring a path-style endpoint when
// Endpoint is set (required for most S3-compatible providers that are
// not AWS itself).
func New(ctx context.Context, cfg Config) (*Store, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          200,
			MaxIdleConnsPerHost:   100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ForceAttemptHTTP2:     true,
		},
		Timeout: 30 * time.Second,
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
		config.WithRegion(cfg.Region),
		config.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.UseAccelerate {
			o.UseAccelerate = true
		}
	})

	return &Store{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.BucketName,
	}, nil
}

// Get fetches an object's current bytes, size, and ETag (quotes
// stripped). Returns ErrNotExist if the key has no object.
func (s *Store) Get(ctx context.Context, key string) (*Object, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotExist
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Object{
		Body:         body,
		ETag:         stripQuotes(aws.ToString(resp.ETag)),
		Size:         aws.ToInt64(resp.ContentLength),
		LastModified: aws.ToTime(resp.LastModified),
	}, nil
}

// HeadETag fetches only the current ETag of a key, without downloading
// its body. Returns ErrNotExist if the key has no object. Used by the
// manifest store's conditional-write compare-and-swap.
func (s *Store) HeadETag(ctx context.Context, key string) (string, error) {
	resp, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		if isNotFound(err) {
			return "", ErrNotExist
		}
		return "", err
	}
	return stripQuotes(aws.ToString(resp.ETag)), nil
}

// Put writes an object unconditionally and returns its new ETag.
func (s *Store) Put(ctx context.Context, key string, body []byte) (string, error) {
	contentType := utils.DetectContentType(key)
	resp, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &key,
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   &contentType,
	})
	if err != nil {
		return "", err
	}
	return stripQuotes(aws.ToString(resp.ETag)), nil
}

// Delete removes a single key. Not an error if the key did not exist.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	return err
}

// PresignPut returns a short-lived PUT URL for key, expiring after
// PresignedURLExpiry.
func (s *Store) PresignPut(ctx context.Context, key string) (string, time.Time, error) {
	expiresAt := time.Now().Add(PresignedURLExpiry)
	url, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	}, func(opts *s3.PresignOptions) {
		opts.Expires = PresignedURLExpiry
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return url.URL, expiresAt, nil
}

// PresignGet returns a short-lived GET URL for key, expiring after
// PresignedURLExpiry.
func (s *Store) PresignGet(ctx context.Context, key string) (string, time.Time, error) {
	expiresAt := time.Now().Add(PresignedURLExpiry)
	url, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	}, func(opts *s3.PresignOptions) {
		opts.Expires = PresignedURLExpiry
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return url.URL, expiresAt, nil
}

// List enumerates every object in the bucket, paginating internally.
func (s *Store) List(ctx context.Context) ([]Info, error) {
	var out []Info

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: &s.bucket,
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			out = append(out, Info{
				Key:          aws.ToString(obj.Key),
				ETag:         stripQuotes(aws.ToString(obj.ETag)),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}

	return out, nil
}

func isNotFound(err error) bool {
	var nf *types.NoSuchKey
	if errors.As(err, &nf) {
		return true
	}
	var notFound *types.NotFound
	return errors.As(err, &notFound)
}

func stripQuotes(etag string) string {
	return strings.ReplaceAll(etag, "\"", "")
}
