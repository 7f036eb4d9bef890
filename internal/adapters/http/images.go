package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/melih/lighthouse-notebooks/internal/core/ports"
)

type ImageHandler struct {
	builder ports.BuilderService
}

func NewImageHandler(builder ports.BuilderService) *ImageHandler {
	return &ImageHandler{builder: builder}
}

type BuildImageRequest struct {
	RepoURL string `json:"repo_url"`
	Image   string `json:"image"`
}

// BuildImage builds a notebook image from a git repository so it can be launched by tag.
// This is a blocking operation and may take minutes.
func (h *ImageHandler) BuildImage(c *fiber.Ctx) error {
	var req BuildImageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	image, err := h.builder.BuildImage(c.UserContext(), req.RepoURL, req.Image)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"image":   image,
		"message": "Image built successfully.",
	})
}
