package domain

import "time"

// User is an account that can launch containers.
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	Fullname       string    `json:"fullname,omitempty"`
	HashedPassword string    `json:"hashed_password"`
	Roles          []string  `json:"roles"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`

	OTP          string    `json:"otp,omitempty"`
	OTPExpiresAt time.Time `json:"otp_expires_at,omitempty"`
}

// Registration is the input for creating a new account.
type Registration struct {
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Fullname string   `json:"fullname"`
	Password string   `json:"password"`
	Roles    []string `json:"roles"`
}
