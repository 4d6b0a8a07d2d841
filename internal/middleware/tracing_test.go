package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"snapshare/internal/models"
	"snapshare/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := observability.Tracer
	observability.Tracer = tp.Tracer("test")
	t.Cleanup(func() {
		observability.Tracer = prev
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func attr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracingMiddleware(t *testing.T) {
	rec := recordSpans(t)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return models.RespondWithError(c, err)
		},
	})
	app.Use(TracingMiddleware())
	app.Get("/post/:id/like", func(c *fiber.Ctx) error {
		c.Locals("userID", uint(7))
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/broken", func(c *fiber.Ctx) error {
		return models.NewInternalError(assert.AnError)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/post/12/like", nil), -1)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/broken", nil), -1)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	spans := rec.Ended()
	require.Len(t, spans, 2)

	liked := spans[0]
	assert.Equal(t, "GET /post/:id/like", liked.Name())
	userID, ok := attr(liked, "user.id")
	require.True(t, ok)
	assert.Equal(t, int64(7), userID.AsInt64())
	status, _ := attr(liked, "http.status_code")
	assert.Equal(t, int64(200), status.AsInt64())

	broken := spans[1]
	assert.Equal(t, codes.Error, broken.Status().Code)
	status, _ = attr(broken, "http.status_code")
	assert.Equal(t, int64(500), status.AsInt64())
}
