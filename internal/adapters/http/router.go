package http

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/melih/lighthouse-notebooks/internal/core/ports"
	"github.com/melih/lighthouse-notebooks/internal/log"
	"github.com/melih/lighthouse-notebooks/internal/metrics"
)

// Dependencies are the services the HTTP surface delegates to.
// Builder and GPU are optional; their routes answer 503 when unset.
type Dependencies struct {
	Containers  ports.ContainerService
	Accounts    ports.AccountService
	Builder     ports.BuilderService
	GPU         ports.RemoteExecutor
	GPUCommand  string
	Cookie      CookieConfig
	ProxyDomain string
}

// NewApp builds the Fiber application with every route registered.
func NewApp(deps Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(accessLog())

	if deps.ProxyDomain != "" {
		app.Use(NewProxyHandler(deps.Containers, deps.ProxyDomain).ProxyRequest)
	}

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "Server is running"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	requireAuth := RequireAuth(deps.Accounts, deps.Cookie.Name)

	authHandler := NewAuthHandler(deps.Accounts, deps.Cookie)
	auth := app.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/logout", authHandler.Logout)
	auth.Get("/me", requireAuth, authHandler.Me)

	reset := app.Group("/reset-password")
	reset.Post("/request", authHandler.RequestPasswordReset)
	reset.Post("/verify", authHandler.VerifyPasswordReset)

	containerHandler := NewContainerHandler(deps.Containers)
	containers := app.Group("/containers", requireAuth)
	containers.Get("/", containerHandler.ListContainers)
	containers.Post("/launch", containerHandler.LaunchContainer)
	containers.Get("/status/:id", containerHandler.ContainerStatus)
	containers.Post("/stop/:id", containerHandler.StopContainer)

	images := app.Group("/images", requireAuth)
	if deps.Builder != nil {
		images.Post("/build", NewImageHandler(deps.Builder).BuildImage)
	} else {
		images.Post("/build", unavailable("Image builds are not configured"))
	}

	gpu := app.Group("/gpu", requireAuth)
	gpu.Get("/status", NewGPUHandler(deps.GPU, deps.GPUCommand).Status)

	return app
}

func unavailable(msg string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": msg})
	}
}

// accessLog writes one line per request and counts it.
func accessLog() fiber.Handler {
	logger := log.WithComponent("http")
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if err != nil {
			// Let the app's error handler write the response before reading the status.
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
			err = nil
		}
		status := c.Response().StatusCode()

		metrics.HTTPRequestsTotal.WithLabelValues(c.Method(), strconv.Itoa(status)).Inc()
		logger.Info().
			Str("request_id", c.GetRespHeader(fiber.HeaderXRequestID)).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
		return err
	}
}
