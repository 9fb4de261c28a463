package reviews

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTSV = "id\ttext\trating\n" +
	"1\tGreat blender, works perfectly.\t5\n" +
	"2\t   \t3\n" +
	"3\t  Stopped working after a week.  \t1\n" +
	"4\n" +
	"\n" +
	"5\tOkay for the price.\t3\n"

func TestParseTSV(t *testing.T) {
	got, err := ParseTSV(strings.NewReader(sampleTSV), "text")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Great blender, works perfectly.",
		"Stopped working after a week.",
		"Okay for the price.",
	}, got)
}

func TestParseTSVDefaultsColumnAndStripsBOM(t *testing.T) {
	input := "\ufeffText\n\"quoted \"\"review\"\"\"\nplain review\n"
	got, err := ParseTSV(strings.NewReader(input), "")
	require.NoError(t, err)
	assert.Equal(t, []string{`quoted "review"`, "plain review"}, got)
}

func TestParseTSVErrors(t *testing.T) {
	_, err := ParseTSV(strings.NewReader(""), "text")
	assert.ErrorIs(t, err, ErrNoReviews)

	_, err = ParseTSV(strings.NewReader("text\n \n\t\n"), "text")
	assert.ErrorIs(t, err, ErrNoReviews)

	_, err = ParseTSV(strings.NewReader("id\tbody\n1\thello\n"), "text")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoReviews))
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviews_test.tsv")
	require.NoError(t, os.WriteFile(path, []byte(sampleTSV), 0o644))

	got, err := NewFileSource(path, "text").Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 3)

	_, err = NewFileSource(filepath.Join(t.TempDir(), "missing.tsv"), "text").Load(context.Background())
	assert.Error(t, err)
}

func TestWithFallback(t *testing.T) {
	missing := NewFileSource(filepath.Join(t.TempDir(), "missing.tsv"), "text")
	src := WithFallback(missing, NewStaticSource([]string{"fallback one", " ", "fallback two"}))

	got, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"fallback one", "fallback two"}, got)
}

func TestWithFallbackBothEmpty(t *testing.T) {
	src := WithFallback(NewStaticSource(nil), NewStaticSource(nil))
	_, err := src.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoReviews)
}

func TestWithFallbackNilPrimary(t *testing.T) {
	fb := DefaultFallback()
	assert.Same(t, fb, WithFallback(nil, fb))
}

type fakeS3 struct {
	body   string
	err    error
	bucket string
	key    string
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.bucket = *params.Bucket
	f.key = *params.Key
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func TestS3Source(t *testing.T) {
	client := &fakeS3{body: sampleTSV}
	src := NewS3SourceWithClient(client, "review-data", "exports/reviews.tsv", "text")

	got, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, "review-data", client.bucket)
	assert.Equal(t, "exports/reviews.tsv", client.key)
	assert.Equal(t, "s3://review-data/exports/reviews.tsv", src.Name())

	client.err = errors.New("access denied")
	_, err = src.Load(context.Background())
	assert.Error(t, err)
}
