package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is a path-style object store good enough for Put/Get/Head/Delete.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[path] = body
		f.types[path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet, http.MethodHead:
		body, ok := f.objects[path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			if r.Method == http.MethodGet {
				_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			}
			return
		}
		w.Header().Set("Content-Type", f.types[path])
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(body)
		}
	case http.MethodDelete:
		delete(f.objects, path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestS3(t *testing.T, publicURL string) (*S3Storage, *fakeS3) {
	t.Helper()
	fake := newFakeS3()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := NewS3Storage(context.Background(), S3Config{
		Endpoint:        srv.URL,
		Region:          "us-east-1",
		Bucket:          "media",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		UsePathStyle:    true,
		PublicURL:       publicURL,
	})
	require.NoError(t, err)
	return s, fake
}

func TestS3Storage_WriteReadDelete(t *testing.T) {
	s, fake := newTestS3(t, "")
	ctx := context.Background()

	payload := []byte("webp bytes")
	require.NoError(t, s.Write(ctx, "posts/x.webp", bytes.NewReader(payload), int64(len(payload)), "image/webp"))

	fake.mu.Lock()
	assert.Equal(t, payload, fake.objects["media/posts/x.webp"])
	assert.Equal(t, "image/webp", fake.types["media/posts/x.webp"])
	fake.mu.Unlock()

	ok, err := s.Exists(ctx, "posts/x.webp")
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := s.Read(ctx, "posts/x.webp")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	_ = rc.Close()
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	require.NoError(t, s.Delete(ctx, "posts/x.webp"))

	ok, err = s.Exists(ctx, "posts/x.webp")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Read(ctx, "posts/x.webp")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3Storage_GetURL(t *testing.T) {
	s, _ := newTestS3(t, "https://cdn.example.com")
	url, err := s.GetURL(context.Background(), "avatars/a.jpg", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/avatars/a.jpg", url)

	presigning, _ := newTestS3(t, "")
	url, err = presigning.GetURL(context.Background(), "avatars/a.jpg", time.Hour)
	require.NoError(t, err)
	assert.Contains(t, url, "/media/avatars/a.jpg")
	assert.Contains(t, url, "X-Amz-Signature=")
}
