package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/melih/lighthouse-notebooks/internal/core/domain"
	"github.com/melih/lighthouse-notebooks/internal/core/ports"
)

// ProxyHandler forwards <container-name>.<domain> to the notebook's published port.
type ProxyHandler struct {
	service ports.ContainerService
	domain  string
}

// NewProxyHandler creates a new proxy handler.
func NewProxyHandler(service ports.ContainerService, domain string) *ProxyHandler {
	return &ProxyHandler{service: service, domain: strings.ToLower(domain)}
}

// ProxyRequest intercepts requests for notebook subdomains and passes everything else on.
// Only labels shaped like a notebook name are captured, so the API itself may be
// served from a sibling host such as api.<domain>.
func (h *ProxyHandler) ProxyRequest(c *fiber.Ctx) error {
	host := strings.ToLower(c.Hostname())
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}

	suffix := "." + h.domain
	if !strings.HasSuffix(host, suffix) {
		return c.Next()
	}
	name := strings.TrimSuffix(host, suffix)
	if !strings.HasPrefix(name, domain.ContainerNamePrefix) || strings.Contains(name, ".") {
		return c.Next()
	}

	endpoint, err := h.service.Endpoint(c.UserContext(), name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).SendString(fmt.Sprintf("Notebook '%s' not found or not running", name))
		}
		return errorResponse(c, err)
	}

	remote, err := url.Parse("http://" + endpoint)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Invalid target URL")
	}

	proxy := httputil.NewSingleHostReverseProxy(remote)

	// The notebook server checks the Host header, so present the target's own.
	originalDirector := proxy.Director
	proxy.Director = func(req *http.Request) {
		originalDirector(req)
		req.Host = remote.Host
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprintf(w, "Proxy error: target=%s error=%v", endpoint, err)
	}

	return adaptor.HTTPHandler(proxy)(c)
}
