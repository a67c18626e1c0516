// Package objectstore implements store B on an S3-compatible bucket.
// Each document is one JSON object at <prefix>/<collection>/<id>.json.
package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"mandoub-backend/internal/store"
)

// API is the subset of the S3 client the store uses.
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Options configures the bucket connection.
type Options struct {
	Endpoint  string
	Region    string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
}

type DocumentStore struct {
	client API
	bucket string
	prefix string
}

// New builds an S3 client with static credentials, pointed at Endpoint when set.
func New(ctx context.Context, opts Options) (*DocumentStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKey,
			opts.SecretKey,
			"",
		)),
		awsconfig.WithRegion(opts.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("configure bucket client: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithClient(client, opts.Bucket, opts.Prefix), nil
}

func NewWithClient(client API, bucket, prefix string) *DocumentStore {
	return &DocumentStore{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *DocumentStore) Create(ctx context.Context, collection, id string, data map[string]any) (*store.Document, error) {
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	doc := &store.Document{ID: id, CreatedAt: now, UpdatedAt: now, Data: data}
	if err := s.put(ctx, collection, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// List reads every object under the collection prefix and filters in process.
// Results are newest first.
func (s *DocumentStore) List(ctx context.Context, collection string, filter store.Filter) ([]*store.Document, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.collectionPrefix(collection)),
	})

	var docs []*store.Document
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, mapError(err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, ".json") {
				continue
			}
			doc, err := s.getKey(ctx, key)
			if errors.Is(err, store.ErrNotFound) {
				// deleted between list and get
				continue
			}
			if err != nil {
				return nil, err
			}
			if filter.Matches(doc.Data) {
				docs = append(docs, doc)
			}
		}
	}

	sort.SliceStable(docs, func(i, j int) bool { return docs[i].CreatedAt.After(docs[j].CreatedAt) })
	return docs, nil
}

func (s *DocumentStore) Update(ctx context.Context, collection, id string, patch map[string]any) (*store.Document, error) {
	doc, err := s.getKey(ctx, s.key(collection, id))
	if err != nil {
		return nil, err
	}
	doc.Data = store.Merge(doc.Data, patch)
	doc.UpdatedAt = time.Now().UTC()
	if err := s.put(ctx, collection, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Delete reports ErrNotFound for a missing object; the bucket itself would not.
func (s *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	key := s.key(collection, id)
	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return mapError(err)
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *DocumentStore) put(ctx context.Context, collection string, doc *store.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(collection, doc.ID)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	return mapError(err)
}

func (s *DocumentStore) getKey(ctx context.Context, key string) (*store.Document, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError(err)
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, mapError(err)
	}
	doc := &store.Document{}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return doc, nil
}

func (s *DocumentStore) collectionPrefix(collection string) string {
	if s.prefix == "" {
		return collection + "/"
	}
	return s.prefix + "/" + collection + "/"
}

func (s *DocumentStore) key(collection, id string) string {
	return s.collectionPrefix(collection) + id + ".json"
}

// mapError folds bucket errors into the store sentinels so the proxy can
// choose a status code.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: %v", store.ErrNotFound, err)
		case "SlowDown", "TooManyRequests", "Throttling", "ThrottlingException", "RequestLimitExceeded":
			return fmt.Errorf("%w: %v", store.ErrRateLimited, err)
		}
		if strings.Contains(strings.ToLower(apiErr.ErrorMessage()), "rate limit") {
			return fmt.Errorf("%w: %v", store.ErrRateLimited, err)
		}
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", store.ErrNetwork, err)
	}
	return err
}
