// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3 stores images in a public S3-compatible bucket, configured for
// path-style access (required by CEPH/Hetzner and MinIO).
type S3 struct {
	s3        *s3.Client
	bucket    string
	prefix    string // key prefix inside the bucket, e.g. "uploads"
	endpoint  string
	publicURL string // optional CDN/direct URL for public files
	now       func() time.Time
}

// NewS3 creates an S3 asset store. The endpoint, credentials and bucket
// are all required.
func NewS3(endpoint, region, accessKey, secretKey, bucket, publicURL, keyPrefix string) (*S3, error) {
	if endpoint == "" || accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("s3 asset store: endpoint and credentials are required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("s3 asset store: bucket is required")
	}

	endpoint = strings.TrimRight(endpoint, "/")

	client := s3.New(s3.Options{
		Region:       region,
		BaseEndpoint: aws.String(endpoint),
		Credentials:  credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		UsePathStyle: true,
	})

	return &S3{
		s3:        client,
		bucket:    bucket,
		prefix:    strings.Trim(keyPrefix, "/"),
		endpoint:  endpoint,
		publicURL: strings.TrimRight(publicURL, "/"),
		now:       time.Now,
	}, nil
}

// Save uploads the image with public-read ACL and returns its public URL.
// Keys are checked with HEAD first so an existing object is never replaced.
func (c *S3) Save(ctx context.Context, u Upload) (string, error) {
	if err := Validate(u); err != nil {
		return "", err
	}

	data, err := io.ReadAll(io.LimitReader(u.Body, MaxUploadSize+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxUploadSize {
		return "", fmt.Errorf("image exceeds %d bytes", MaxUploadSize)
	}

	now := c.now()
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		key := c.key(objectName(u, now, attempt))
		taken, err := c.head(ctx, key)
		if err != nil {
			return "", err
		}
		if taken {
			continue
		}

		_, err = c.s3.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(c.bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(data),
			ContentLength: aws.Int64(int64(len(data))),
			ContentType:   aws.String(contentTypeFor(key)),
			ACL:           s3types.ObjectCannedACLPublicRead,
		})
		if err != nil {
			return "", fmt.Errorf("s3 upload %s/%s: %w", c.bucket, key, err)
		}
		return c.FileURL(key), nil
	}
	return "", fmt.Errorf("s3 upload: no free key after %d attempts", maxNameAttempts)
}

// Exists reports whether the object behind a public URL is present.
func (c *S3) Exists(ctx context.Context, rawURL string) (bool, error) {
	key, ok := c.ExtractKey(rawURL)
	if !ok {
		return false, nil
	}
	return c.head(ctx, key)
}

// Delete removes the object behind a public URL.
func (c *S3) Delete(ctx context.Context, rawURL string) error {
	key, ok := c.ExtractKey(rawURL)
	if !ok {
		return nil
	}
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s/%s: %w", c.bucket, key, err)
	}
	return nil
}

// FileURL returns the public URL for a key.
// Uses the configured public URL if set, otherwise builds a path-style URL.
func (c *S3) FileURL(key string) string {
	if c.publicURL != "" {
		return c.publicURL + "/" + key
	}
	return c.endpoint + "/" + c.bucket + "/" + key
}

// ExtractKey extracts the object key from a public file URL.
// Returns ("", false) if the URL doesn't belong to this store.
func (c *S3) ExtractKey(rawURL string) (string, bool) {
	if c.publicURL != "" {
		prefix := c.publicURL + "/"
		if strings.HasPrefix(rawURL, prefix) {
			return rawURL[len(prefix):], true
		}
	}

	prefix := c.endpoint + "/" + c.bucket + "/"
	if strings.HasPrefix(rawURL, prefix) {
		return rawURL[len(prefix):], true
	}

	return "", false
}

func (c *S3) key(name string) string {
	if c.prefix == "" {
		return name
	}
	return c.prefix + "/" + name
}

// head reports whether key exists in the bucket.
func (c *S3) head(ctx context.Context, key string) (bool, error) {
	_, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("s3 head %s/%s: %w", c.bucket, key, err)
}

func isNotFound(err error) bool {
	var nf *s3types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}
