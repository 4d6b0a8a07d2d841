package service

import (
	"bytes"
	"context"
	"image"
	"path/filepath"
	"strings"
	"testing"

	"snapshare/internal/config"
	"snapshare/internal/models"
	"snapshare/internal/storage"
	"snapshare/internal/testutil"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocalImageService(t *testing.T, cfg *config.Config) (*ImageService, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir(), PublicURL: "/media"})
	require.NoError(t, err)
	return NewImageService(store, cfg), store
}

func readStored(t *testing.T, store *storage.LocalStorage, url string) image.Image {
	t.Helper()
	key := strings.TrimPrefix(url, "/media/")
	rc, err := store.Read(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	img, err := imaging.Decode(rc)
	require.NoError(t, err)
	return img
}

func TestImageService_DownsizesToJPEG(t *testing.T) {
	svc, store := newLocalImageService(t, nil)

	url, err := svc.Process(context.Background(), UploadInput{
		Kind:    ImageKindPost,
		Content: testutil.TinyPNG(t, 1600, 1000),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/media/posts/"), url)
	assert.Equal(t, ".jpg", filepath.Ext(url))

	img := readStored(t, store, url)
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Equal(t, 500, img.Bounds().Dy())

	rc, err := store.Read(context.Background(), strings.TrimPrefix(url, "/media/"))
	require.NoError(t, err)
	defer rc.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(rc)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8}, buf.Bytes()[:2])
}

func TestImageService_DoesNotEnlarge(t *testing.T) {
	svc, store := newLocalImageService(t, nil)

	url, err := svc.Process(context.Background(), UploadInput{
		Kind:    ImageKindAvatar,
		Content: testutil.TinyPNG(t, 120, 90),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/media/avatars/"), url)

	img := readStored(t, store, url)
	assert.Equal(t, 120, img.Bounds().Dx())
	assert.Equal(t, 90, img.Bounds().Dy())
}

func TestImageService_WebPOutput(t *testing.T) {
	svc, store := newLocalImageService(t, &config.Config{ImageFormat: "webp", ImageQuality: 70})

	url, err := svc.Process(context.Background(), UploadInput{Content: testutil.TinyPNG(t, 900, 900)})
	require.NoError(t, err)
	assert.Equal(t, ".webp", filepath.Ext(url))

	img := readStored(t, store, url)
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Equal(t, 800, img.Bounds().Dy())
}

func TestImageService_Rejects(t *testing.T) {
	svc, _ := newLocalImageService(t, &config.Config{ImageMaxUploadMB: 1})

	tests := []struct {
		name    string
		content []byte
	}{
		{"empty", nil},
		{"not an image", []byte("just some text, not pixels")},
		{"too large", bytes.Repeat([]byte{0}, 2*1024*1024)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Process(context.Background(), UploadInput{Content: tt.content})
			require.Error(t, err)
			assert.True(t, models.IsCode(err, models.CodeValidation), "got %v", err)
		})
	}
}

func TestImageService_DiscardRemovesStoredImage(t *testing.T) {
	svc, store := newLocalImageService(t, nil)
	ctx := context.Background()

	url, err := svc.Process(ctx, UploadInput{Kind: ImageKindAvatar, Content: testutil.TinyPNG(t, 20, 20)})
	require.NoError(t, err)
	key := strings.TrimPrefix(url, "/media/")
	exists, err := store.Exists(ctx, key)
	require.NoError(t, err)
	require.True(t, exists)

	svc.Discard(ctx, url)

	exists, err = store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestKeyFromURL(t *testing.T) {
	tests := []struct {
		url  string
		key  string
		want bool
	}{
		{"/media/posts/abc.jpg", "posts/abc.jpg", true},
		{"https://cdn.example.com/avatars/x.webp", "avatars/x.webp", true},
		{"http://minio:9000/snapshare/posts/p.jpg?X-Amz-Signature=1", "posts/p.jpg", true},
		{"https://picsum.photos/id/10/800/800", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		key, ok := keyFromURL(tt.url)
		assert.Equal(t, tt.want, ok, tt.url)
		assert.Equal(t, tt.key, key, tt.url)
	}
}
