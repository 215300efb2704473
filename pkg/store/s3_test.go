package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-graphview/pkg/document"
	"github.com/dd0wney/cluso-graphview/pkg/logging"
)

// fakeS3 serves objects from a map, two keys per page
type fakeS3 struct {
	objects  map[string][]byte
	getErr   error
	pageSize int
	listed   int
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.listed++
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	start := 0
	if in.ContinuationToken != nil {
		start, _ = strconv.Atoi(*in.ContinuationToken)
	}
	end := min(start+f.pageSize, len(keys))

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("no such key")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, nil
}

func TestS3Store_ListDocuments(t *testing.T) {
	fake := &fakeS3{
		pageSize: 2,
		objects: map[string][]byte{
			"graphs/ws/b.json":          document.EncodePayload(sampleGraph, true),
			"graphs/ws/a.json":          []byte(sampleGraph),
			"graphs/ws/c":               document.EncodePayload(sampleGraph, false),
			"graphs/ws/assets/img.json": []byte("not a document"),
			"graphs/ws/d.json":          {'?', 'x'},
			"graphs/other/e.json":       []byte(sampleGraph),
		},
	}
	s := NewS3StoreWithClient(fake, "bucket", "/graphs/", logging.NewNopLogger())

	docs, err := s.ListDocuments(context.Background(), "ws")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(docs))
	assert.Equal(t, sampleGraph, docs[0].SerializedGraph)
	assert.Equal(t, sampleGraph, docs[1].SerializedGraph)
	assert.Equal(t, sampleGraph, docs[2].SerializedGraph)
	assert.Empty(t, docs[3].SerializedGraph, "unknown codec becomes an empty graph")
	assert.Greater(t, fake.listed, 1, "paginator did not follow continuation tokens")
	assert.NoError(t, s.Ping(context.Background()))
}

func TestS3Store_FetchErrorFailsListing(t *testing.T) {
	fake := &fakeS3{
		pageSize: 10,
		objects:  map[string][]byte{"ws/a.json": []byte(sampleGraph)},
		getErr:   errors.New("access denied"),
	}
	s := NewS3StoreWithClient(fake, "bucket", "", logging.NewNopLogger())

	_, err := s.ListDocuments(context.Background(), "ws")
	assert.ErrorContains(t, err, "access denied")
}
