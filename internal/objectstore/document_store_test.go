package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mandoub-backend/internal/store"
)

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: make(map[string][]byte)}
}

func (f *fakeBucket) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.objects[aws.ToString(in.Key)] = body
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeBucket) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (f *fakeBucket) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeBucket) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeBucket) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func TestDocumentStoreRoundTrip(t *testing.T) {
	bucket := newFakeBucket()
	s := NewWithClient(bucket, "data", "/mandoub-db/")
	ctx := context.Background()

	doc, err := s.Create(ctx, "representatives", "", map[string]any{"name": "Rep 1", "role": "مندوب"})
	require.NoError(t, err)
	assert.Contains(t, bucket.objects, "mandoub-db/representatives/"+doc.ID+".json")

	_, err = s.Create(ctx, "representatives", "", map[string]any{"name": "Rep 2", "role": "مشرف"})
	require.NoError(t, err)

	docs, err := s.List(ctx, "representatives", store.Filter{"role": "مندوب"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Rep 1", docs[0].Data["name"])

	updated, err := s.Update(ctx, "representatives", doc.ID, map[string]any{"location": "Aswan"})
	require.NoError(t, err)
	assert.Equal(t, "Aswan", updated.Data["location"])
	assert.Equal(t, "Rep 1", updated.Data["name"])

	require.NoError(t, s.Delete(ctx, "representatives", doc.ID))
	assert.ErrorIs(t, s.Delete(ctx, "representatives", doc.ID), store.ErrNotFound)

	_, err = s.Update(ctx, "representatives", doc.ID, nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDocumentStoreMapsErrors(t *testing.T) {
	bucket := newFakeBucket()
	s := NewWithClient(bucket, "data", "")
	ctx := context.Background()

	bucket.err = &smithy.GenericAPIError{Code: "SlowDown", Message: "reduce your request rate"}
	_, err := s.Create(ctx, "submissions", "", map[string]any{})
	assert.ErrorIs(t, err, store.ErrRateLimited)

	bucket.err = &smithy.GenericAPIError{Code: "ServiceUnavailable", Message: "Rate limit exceeded for bucket"}
	_, err = s.Update(ctx, "submissions", "x", map[string]any{"a": 1})
	assert.ErrorIs(t, err, store.ErrRateLimited)

	bucket.err = &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	_, err = s.List(ctx, "submissions", nil)
	assert.ErrorIs(t, err, store.ErrNetwork)

	bucket.err = errors.New("boom")
	err = s.Delete(ctx, "submissions", "x")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, store.ErrNotFound))
}
