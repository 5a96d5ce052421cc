package objectclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/contexta-ingest/internal/config"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = body
		f.types[r.URL.Path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		delete(f.objects, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestClient(t *testing.T) (*S3Client, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := NewS3Client(context.Background(), &config.Config{
		AwsRegion: "us-east-1", AwsAccessKey: "AKID", AwsSecretKey: "SECRET",
		BucketName: "raw", AwsEndpoint: srv.URL,
	}, nil)
	require.NoError(t, err)
	return c, fake
}

func TestS3Client_UploadAndDelete(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	url, err := c.UploadFile(ctx, "raw", "sources/abc.txt", []byte("hello world"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, c.endpoint+"/raw/sources/abc.txt", url)

	fake.mu.Lock()
	assert.Contains(t, fake.objects, "/raw/sources/abc.txt")
	assert.Equal(t, "text/plain", fake.types["/raw/sources/abc.txt"])
	fake.mu.Unlock()

	require.NoError(t, c.DeleteFile(ctx, "raw", "sources/abc.txt"))
	fake.mu.Lock()
	assert.NotContains(t, fake.objects, "/raw/sources/abc.txt")
	fake.mu.Unlock()
}

func TestNewS3Client_RequiresCredentials(t *testing.T) {
	_, err := NewS3Client(context.Background(), &config.Config{AwsRegion: "us-east-1"}, nil)
	assert.Error(t, err)

	_, err = NewS3Client(context.Background(), &config.Config{AwsAccessKey: "a", AwsSecretKey: "b"}, nil)
	assert.Error(t, err)
}

func TestSourceKey(t *testing.T) {
	assert.Equal(t, "sources/abc/doc-1.txt", SourceKey("abc", "doc-1", "text/plain"))
	assert.Equal(t, "sources/abc/doc-1.html", SourceKey("abc", "doc-1", "text/html"))
	assert.Equal(t, "sources/abc/doc-1.pdf", SourceKey("abc", "doc-1", "application/pdf"))
	assert.Equal(t, "sources/abc/doc-1.bin", SourceKey("abc", "doc-1", ""))
	assert.NotEqual(t, SourceKey("abc", "doc-1", "text/plain"), SourceKey("abc", "doc-2", "text/plain"))
}

func TestObjectURL_AWS(t *testing.T) {
	c := &S3Client{region: "eu-west-1"}
	assert.Equal(t, "https://raw.s3.eu-west-1.amazonaws.com/k", c.objectURL("raw", "k"))
}
