package server

import (
	"io"
	"strings"

	"snapshare/internal/models"
	"snapshare/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

// parseID extracts a route parameter by name as a positive uint.
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		return 0, models.NewValidationError("Invalid " + humanizeParam(param))
	}
	return uint(id), nil
}

func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		return strings.ToLower(param[:len(param)-2]) + " ID"
	}
	return param
}

// parsePage reads limit/offset query parameters. Bounds are applied by the service.
func parsePage(c *fiber.Ctx) service.Page {
	return service.Page{
		Limit:  c.QueryInt("limit", 0),
		Offset: c.QueryInt("offset", 0),
	}
}

// currentUserID returns the id AuthRequired stored in locals.
func currentUserID(c *fiber.Ctx) (uint, error) {
	id, ok := c.Locals("userID").(uint)
	if !ok || id == 0 {
		return 0, models.NewUnauthorizedError("Authorization required")
	}
	return id, nil
}

// respond writes the success envelope {success, message, ...data}.
func respond(c *fiber.Ctx, status int, message string, data fiber.Map) error {
	body := fiber.Map{"success": true}
	if message != "" {
		body["message"] = message
	}
	for k, v := range data {
		body[k] = v
	}
	return c.Status(status).JSON(body)
}

// readUpload returns the multipart file under field, or nil when none was sent.
func readUpload(c *fiber.Ctx, field string, kind service.ImageKind) (*service.UploadInput, error) {
	file, err := c.FormFile(field)
	if err != nil {
		return nil, nil
	}

	src, err := file.Open()
	if err != nil {
		return nil, models.NewValidationError("Unable to read uploaded file")
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(src)
	if err != nil {
		return nil, models.NewValidationError("Unable to read uploaded file")
	}

	return &service.UploadInput{
		Kind:        kind,
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Content:     content,
	}, nil
}

// statusCode turns an HTTP status into an error code such as NOT_FOUND.
func statusCode(status int) string {
	return strings.ToUpper(strings.ReplaceAll(utils.StatusMessage(status), " ", "_"))
}
