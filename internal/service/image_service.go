package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"snapshare/internal/config"
	"snapshare/internal/middleware"
	"snapshare/internal/models"
	"snapshare/internal/observability"
	"snapshare/internal/storage"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultImageMaxUploadSizeMB = 10
	MaxImageDimension           = 800
	DefaultImageQuality         = 80
	imageURLExpiry              = 7 * 24 * time.Hour
)

// ImageKind selects the storage prefix of a processed upload.
type ImageKind string

const (
	ImageKindPost   ImageKind = "posts"
	ImageKindAvatar ImageKind = "avatars"
)

type UploadInput struct {
	Kind        ImageKind
	Filename    string
	ContentType string
	Content     []byte
}

// ImageService normalises uploads and writes them to object storage.
type ImageService struct {
	store              storage.Storage
	maxUploadSizeBytes int64
	format             string
	quality            int
}

func NewImageService(store storage.Storage, cfg *config.Config) *ImageService {
	maxUploadSizeMB := DefaultImageMaxUploadSizeMB
	format := "jpeg"
	quality := DefaultImageQuality

	if cfg != nil {
		if cfg.ImageMaxUploadMB > 0 {
			maxUploadSizeMB = cfg.ImageMaxUploadMB
		}
		if f := strings.ToLower(cfg.ImageFormat); f == "webp" {
			format = f
		}
		if cfg.ImageQuality > 0 && cfg.ImageQuality <= 100 {
			quality = cfg.ImageQuality
		}
	}

	return &ImageService{
		store:              store,
		maxUploadSizeBytes: int64(maxUploadSizeMB) * 1024 * 1024,
		format:             format,
		quality:            quality,
	}
}

// Discard deletes an image written by Process whose owner was never saved.
// Failures are logged; the upload is already orphaned either way.
func (s *ImageService) Discard(ctx context.Context, imageURL string) {
	key, ok := keyFromURL(imageURL)
	if !ok {
		return
	}
	if err := s.store.Delete(ctx, key); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to discard image",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

// keyFromURL recovers "<kind>/<name>" from a local or S3 image URL.
func keyFromURL(imageURL string) (string, bool) {
	u, err := url.Parse(imageURL)
	if err != nil {
		return "", false
	}
	name := path.Base(u.Path)
	kind := ImageKind(path.Base(path.Dir(u.Path)))
	if (kind != ImageKindPost && kind != ImageKindAvatar) || name == "." || name == "/" {
		return "", false
	}
	return string(kind) + "/" + name, true
}

// Process validates, downsizes and stores an image and returns its URL.
func (s *ImageService) Process(ctx context.Context, in UploadInput) (imageURL string, err error) {
	ctx, span := observability.StartSpan(ctx, "ImageService.Process")
	defer func() { observability.EndSpan(span, err) }()

	if len(in.Content) == 0 {
		return "", models.NewValidationError("Image required")
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return "", models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}

	detected := http.DetectContentType(in.Content)
	if !isAllowedImageMIME(detected) {
		return "", models.NewValidationError("Invalid image type")
	}

	decoded, err := imaging.Decode(bytes.NewReader(in.Content), imaging.AutoOrientation(true))
	if err != nil {
		return "", models.NewValidationError("Invalid image file")
	}

	resized := resizeToFit(decoded, MaxImageDimension)

	encoded, ext, contentType, err := s.encode(resized)
	if err != nil {
		return "", models.NewInternalError(err)
	}

	kind := in.Kind
	if kind == "" {
		kind = ImageKindPost
	}
	key := fmt.Sprintf("%s/%s.%s", kind, uuid.NewString(), ext)

	if err := s.store.Write(ctx, key, bytes.NewReader(encoded), int64(len(encoded)), contentType); err != nil {
		return "", models.NewInternalError(fmt.Errorf("store image: %w", err))
	}
	observability.ImageUploadBytes.Observe(float64(len(encoded)))

	imageURL, err = s.store.GetURL(ctx, key, imageURLExpiry)
	if err != nil {
		return "", models.NewInternalError(fmt.Errorf("image url: %w", err))
	}

	middleware.Logger.DebugContext(ctx, "image stored",
		slog.String("key", key),
		slog.String("source_type", detected),
		slog.Int("bytes", len(encoded)),
	)
	return imageURL, nil
}

func (s *ImageService) encode(img image.Image) ([]byte, string, string, error) {
	var buf bytes.Buffer
	if s.format == "webp" {
		if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(s.quality)}); err != nil {
			return nil, "", "", err
		}
		return buf.Bytes(), "webp", "image/webp", nil
	}
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(s.quality)); err != nil {
		return nil, "", "", err
	}
	return buf.Bytes(), "jpg", "image/jpeg", nil
}

// resizeToFit scales img down to fit a limit×limit box. Smaller images are left alone.
func resizeToFit(img image.Image, limit int) image.Image {
	b := img.Bounds()
	if b.Dx() <= limit && b.Dy() <= limit {
		return img
	}
	return imaging.Fit(img, limit, limit, imaging.Lanczos)
}

func isAllowedImageMIME(mimeType string) bool {
	switch mimeType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}
