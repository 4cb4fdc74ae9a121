package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	awstrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/aws/aws-sdk-go/aws"
	ddTracer "gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

// Cache keeps composited renders at S3 so the same document page and annotation payload is only drawn once.
type Cache struct {
	HTTPClient *http.Client
	Bucket     string
	Region     string
	Prefix     string

	svc s3iface.S3API
}

// Init cache internal state.
func (c *Cache) Init() error {
	if c.HTTPClient == nil {
		return errors.New("internal/service/Cache.HTTPClient can't be nil")
	}
	if c.Bucket == "" {
		return errors.New("internal/service/Cache.Bucket can't be empty")
	}
	if c.svc != nil {
		return nil
	}

	cfg := &aws.Config{HTTPClient: c.HTTPClient}
	if c.Region != "" {
		cfg.Region = aws.String(c.Region)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return fmt.Errorf("fail to start a session: %w", err)
	}
	sess = awstrace.WrapSession(sess)
	c.svc = s3.New(sess)
	return nil
}

// Get object. A missing object results in a nil reader.
func (c Cache) Get(ctx context.Context, key string) (_ io.ReadCloser, err error) {
	span, ctx := startSpan(ctx, "Cache.Get")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	object, err := c.svc.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: &c.Bucket,
		Key:    aws.String(c.key(key)),
	})
	if err != nil {
		if awsErr, ok := err.(awserr.Error); ok && (awsErr.Code() == s3.ErrCodeNoSuchKey) {
			return nil, nil
		}
		return nil, fmt.Errorf("fail to fetch the object at the key '%s': %w", key, err)
	}
	return object.Body, nil
}

// Put a object at the cache layer.
func (c Cache) Put(ctx context.Context, key string, rawPayload io.Reader) (err error) {
	span, ctx := startSpan(ctx, "Cache.Put")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	payload, err := io.ReadAll(rawPayload)
	if err != nil {
		return fmt.Errorf("fail to read the payload: %w", err)
	}

	_, err = c.svc.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: &c.Bucket,
		Key:    aws.String(c.key(key)),
		Body:   bytes.NewReader(payload),
	})
	if err != nil {
		return fmt.Errorf("fail to put the object at the key '%s': %w", key, err)
	}
	return nil
}

func (c Cache) key(key string) string {
	if c.Prefix == "" {
		return key
	}
	return path.Join(c.Prefix, key)
}
