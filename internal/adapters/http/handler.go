package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/melih/lighthouse-notebooks/internal/core/domain"
	"github.com/melih/lighthouse-notebooks/internal/core/ports"
)

type ContainerHandler struct {
	service ports.ContainerService
}

func NewContainerHandler(service ports.ContainerService) *ContainerHandler {
	return &ContainerHandler{service: service}
}

// LaunchContainer starts a notebook container for the caller.
func (h *ContainerHandler) LaunchContainer(c *fiber.Ctx) error {
	var req domain.ContainerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	// Rejected here so nothing reaches the runtime.
	if err := req.Validate(); err != nil {
		return errorResponse(c, err)
	}

	user := currentUser(c)
	res, err := h.service.Launch(c.UserContext(), user.ID, req)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"container_name": res.ContainerName,
		"container_id":   res.ContainerID,
		"host_port":      res.HostPort,
		"jupyter_url":    res.URL,
		"message":        "Container launched successfully.",
	})
}

// ContainerStatus reports the live runtime status of a container.
func (h *ContainerHandler) ContainerStatus(c *fiber.Ctx) error {
	id := c.Params("id")
	status, err := h.service.Status(c.UserContext(), id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"container_id": id,
		"status":       status,
	})
}

func (h *ContainerHandler) StopContainer(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.service.Stop(c.UserContext(), currentUser(c).ID, id); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Container stopped successfully.",
	})
}

// ListContainers returns the caller's launch records.
func (h *ContainerHandler) ListContainers(c *fiber.Ctx) error {
	recs, err := h.service.List(c.UserContext(), currentUser(c).ID)
	if err != nil {
		return errorResponse(c, err)
	}
	if recs == nil {
		recs = []*domain.ContainerRecord{}
	}
	return c.JSON(recs)
}
