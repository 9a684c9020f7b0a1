// Package media stores lesson audio, video, and images in S3.
package media

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/frenchline/adminapi/internal/log"
	"github.com/frenchline/adminapi/internal/xerrors"
)

// ErrNotFound means no object exists under the key.
var ErrNotFound = errors.New("media not found")

// s3API is the slice of the S3 client the store needs. Narrow so tests can
// fake it without an AWS account.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type Options struct {
	Bucket string
	Prefix string
	Logger log.Logger
}

// Store reads and writes media objects under a bucket prefix.
type Store struct {
	client s3API
	opts   Options

	newID func() string
}

// New builds a Store over an already-configured AWS config.
func New(awsCfg aws.Config, opts Options) (*Store, error) {
	return newStore(s3.NewFromConfig(awsCfg), opts)
}

func newStore(client s3API, opts Options) (*Store, error) {
	if opts.Bucket == "" {
		return nil, xerrors.New("Bucket is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	return &Store{
		client: client,
		opts:   opts,
		newID:  func() string { return uuid.NewString() },
	}, nil
}

// objectKey namespaces a media key under the configured prefix.
func (s *Store) objectKey(key string) string {
	if s.opts.Prefix == "" {
		return key
	}
	return path.Join(s.opts.Prefix, key)
}

// Object is one stored media item.
type Object struct {
	Key         string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// Put uploads body and returns the generated media key. The original
// filename survives only as the extension.
func (s *Store) Put(ctx context.Context, filename, contentType string, body io.Reader) (string, error) {
	key := s.newID()
	if ext := path.Ext(filename); ext != "" {
		key += strings.ToLower(ext)
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.opts.Bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", xerrors.Wrapf(err, "put s3://%s/%s", s.opts.Bucket, s.objectKey(key))
	}

	s.opts.Logger.Info(ctx, "stored media object",
		"bucket", s.opts.Bucket,
		"key", key,
		"content_type", contentType,
	)
	return key, nil
}

// Get streams the object under key. The caller owns Body and must close it.
func (s *Store) Get(ctx context.Context, key string) (*Object, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotFound
		}
		return nil, xerrors.Wrapf(err, "get s3://%s/%s", s.opts.Bucket, s.objectKey(key))
	}

	obj := &Object{Key: key, Body: out.Body}
	if out.ContentType != nil {
		obj.ContentType = *out.ContentType
	}
	if out.ContentLength != nil {
		obj.Size = *out.ContentLength
	}
	return obj, nil
}

// Delete removes the object under key. S3 treats deleting a missing object
// as success, and so do we.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return xerrors.Wrapf(err, "delete s3://%s/%s", s.opts.Bucket, s.objectKey(key))
	}
	return nil
}
