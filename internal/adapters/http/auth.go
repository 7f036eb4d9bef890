package http

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/melih/lighthouse-notebooks/internal/core/domain"
	"github.com/melih/lighthouse-notebooks/internal/core/ports"
)

const userLocalsKey = "user"

// CookieConfig controls the session cookie set at login.
type CookieConfig struct {
	Name     string
	Secure   bool
	HTTPOnly bool
	SameSite string
	MaxAge   time.Duration
}

// RequireAuth resolves the session cookie (or a bearer token) to a user.
func RequireAuth(auth ports.Authenticator, cookieName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(cookieName)
		if token == "" {
			if h := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(h, "Bearer ") {
				token = strings.TrimPrefix(h, "Bearer ")
			}
		}
		user, err := auth.Authenticate(c.UserContext(), token)
		if err != nil {
			return errorResponse(c, err)
		}
		c.Locals(userLocalsKey, user)
		return c.Next()
	}
}

func currentUser(c *fiber.Ctx) *domain.User {
	user, _ := c.Locals(userLocalsKey).(*domain.User)
	if user == nil {
		return &domain.User{}
	}
	return user
}

type AuthHandler struct {
	accounts ports.AccountService
	cookie   CookieConfig
}

func NewAuthHandler(accounts ports.AccountService, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{accounts: accounts, cookie: cookie}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var reg domain.Registration
	if err := c.BodyParser(&reg); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	id, err := h.accounts.Register(c.UserContext(), reg)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully.",
		"user_id": id,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	token, err := h.accounts.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return errorResponse(c, err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		Path:     "/",
		HTTPOnly: h.cookie.HTTPOnly,
		Secure:   h.cookie.Secure,
		SameSite: h.cookie.SameSite,
		MaxAge:   int(h.cookie.MaxAge.Seconds()),
	})
	return c.JSON(fiber.Map{"message": "Logged in successfully."})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.ClearCookie(h.cookie.Name)
	return c.JSON(fiber.Map{"message": "Logged out."})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user := currentUser(c)
	return c.JSON(fiber.Map{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
		"fullname": user.Fullname,
		"roles":    user.Roles,
	})
}

type resetRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password"`
}

func (h *AuthHandler) RequestPasswordReset(c *fiber.Ctx) error {
	var req resetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := h.accounts.RequestPasswordReset(c.UserContext(), req.Email); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"message": "OTP code sent"})
}

func (h *AuthHandler) VerifyPasswordReset(c *fiber.Ctx) error {
	var req resetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := h.accounts.VerifyPasswordReset(c.UserContext(), req.Email, req.OTP, req.NewPassword); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"message": "Password updated"})
}
