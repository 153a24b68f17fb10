package repository

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is an in-memory bucket with two-key pages.
type fakeS3 struct {
	mu        sync.Mutex
	objects   map[string][]byte
	putErrors int
	puts      int
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string][]byte{}} }

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	if f.putErrors > 0 {
		f.putErrors--
		return nil, errors.New("slow down")
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) && k > aws.ToString(in.ContinuationToken) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{}
	if len(keys) > 2 {
		keys = keys[:2]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[1])
	}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func TestS3Store_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	store := NewS3StoreWithClient(fake, "letters",
		WithClock(stepClock(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC))),
		WithIDFunc(seqIDs()))

	var written []string
	for i := 0; i < 5; i++ {
		name, err := store.Write(ctx, Letter{Payload: RawPayload([]byte(`{"i":1}`)), Error: "crm down"})
		require.NoError(t, err)
		written = append(written, name)
	}
	_, err := store.WriteEvent(ctx, "success", map[string]int{"n": 1})
	require.NoError(t, err)

	names, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, names, 5)
	assert.Equal(t, written[4], names[0])
	assert.Equal(t, written[0], names[4])

	names, err = store.List(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{written[4]}, names)

	got, err := store.Get(ctx, written[0])
	require.NoError(t, err)
	assert.Equal(t, "crm down", got.Error)
	assert.JSONEq(t, `{"i":1}`, string(got.Payload))
}

func TestS3Store_Errors(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	store := NewS3StoreWithClient(fake, "letters")

	_, err := store.Get(ctx, "deadletter-nope.json")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(ctx, "../deadletter-x.json")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = store.List(ctx, -3)
	assert.ErrorIs(t, err, ErrInvalidLimit)

	// Transient put failures are retried.
	fake.putErrors = 2
	_, err = store.Write(ctx, Letter{Error: "x"})
	require.NoError(t, err)
	assert.Equal(t, 3, fake.puts)
}
