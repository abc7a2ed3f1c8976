package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/istqb-chatbot/syllabus-core/internal/core/domain"
)

// fakeS3 serves a fixed set of objects, two keys per listing page
type fakeS3 struct {
	objects map[string][]byte
	keys    []string
	listErr error
	lists   int
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}

	start := 0
	if in.ContinuationToken != nil {
		for i, k := range f.keys {
			if k == *in.ContinuationToken {
				start = i
			}
		}
	}
	end := min(start+2, len(f.keys))

	out := &s3.ListObjectsV2Output{}
	for _, k := range f.keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(f.keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(f.keys[end])
	}
	return out, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3Source_ListPaginates(t *testing.T) {
	fake := &fakeS3{keys: []string{
		"syllabus/foundation.pdf",
		"syllabus/readme.md",
		"syllabus/agile.pdf",
		"syllabus/advanced/test-manager.PDF",
	}}
	src := newS3Source(fake, "bucket", "syllabus/")
	assert.Equal(t, "s3", src.Name())

	keys, err := src.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"syllabus/advanced/test-manager.PDF",
		"syllabus/agile.pdf",
		"syllabus/foundation.pdf",
	}, keys)
	assert.Equal(t, 2, fake.lists)
}

func TestS3Source_ListError(t *testing.T) {
	src := newS3Source(&fakeS3{listErr: errors.New("access denied")}, "bucket", "")

	_, err := src.List(context.Background())
	assert.ErrorContains(t, err, "access denied")
}

func TestS3Source_Open(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{"syllabus/foundation.pdf": []byte("%PDF-1.7")}}
	src := newS3Source(fake, "bucket", "syllabus/")

	r, size, err := src.Open(context.Background(), "syllabus/foundation.pdf")
	require.NoError(t, err)
	assert.Equal(t, int64(8), size)

	buf := make([]byte, 3)
	_, err = r.ReadAt(buf, 5)
	require.NoError(t, err)
	assert.Equal(t, "1.7", string(buf))

	_, _, err = src.Open(context.Background(), "syllabus/missing.pdf")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNewS3Source_RequiresBucket(t *testing.T) {
	_, err := NewS3Source(context.Background(), S3Config{Region: "eu-west-1"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
