package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"snapshare/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHumanizeParam(t *testing.T) {
	assert.Equal(t, "ID", humanizeParam("id"))
	assert.Equal(t, "post ID", humanizeParam("postId"))
	assert.Equal(t, "slug", humanizeParam("slug"))
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, "NOT_FOUND", statusCode(fiber.StatusNotFound))
	assert.Equal(t, "METHOD_NOT_ALLOWED", statusCode(fiber.StatusMethodNotAllowed))
	assert.Equal(t, "REQUEST_ENTITY_TOO_LARGE", statusCode(fiber.StatusRequestEntityTooLarge))
}

func TestParseIDAndPage(t *testing.T) {
	app := fiber.New()
	app.Get("/items/:id", func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).SendString(err.Error())
		}
		page := parsePage(c)
		return c.JSON(fiber.Map{"id": id, "limit": page.Limit, "offset": page.Offset})
	})

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"valid", "/items/7", http.StatusOK},
		{"zero", "/items/0", http.StatusBadRequest},
		{"negative", "/items/-3", http.StatusBadRequest},
		{"not a number", "/items/abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil), -1)
			require.NoError(t, err)
			_ = resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}

	var page service.Page
	app.Get("/page", func(c *fiber.Ctx) error {
		page = parsePage(c)
		return nil
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/page", nil), -1)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, service.Page{}, page)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/page?limit=5&offset=10", nil), -1)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, service.Page{Limit: 5, Offset: 10}, page)
}
