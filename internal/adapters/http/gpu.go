package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/melih/lighthouse-notebooks/internal/core/ports"
)

type GPUHandler struct {
	remote  ports.RemoteExecutor
	command string
}

func NewGPUHandler(remote ports.RemoteExecutor, command string) *GPUHandler {
	return &GPUHandler{remote: remote, command: command}
}

// Status runs the GPU listing command on the GPU host.
func (h *GPUHandler) Status(c *fiber.Ctx) error {
	if h.remote == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "GPU host is not configured",
		})
	}
	stdout, stderr, err := h.remote.Exec(c.UserContext(), h.command)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"stdout": strings.TrimSpace(stdout),
		"stderr": strings.TrimSpace(stderr),
	})
}
