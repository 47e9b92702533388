package models

import "time"

// AuthChallenge — одна запись на каждую отправку кода входа.
// Храним только bcrypt-хэш кода (CodeHash), TTL и счётчик попыток.
// SessionToken появляется только после успешной проверки кода.
type AuthChallenge struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	CodeHash         string     `json:"-"`
	SessionToken     *string    `json:"-"`
	Verified         bool       `json:"verified"`
	Attempts         int        `json:"attempts"`
	CreatedAt        time.Time  `json:"created_at"`
	ExpiresAt        time.Time  `json:"expires_at"`
	SessionExpiresAt *time.Time `json:"session_expires_at,omitempty"`
}

type RequestCodeRequest struct {
	Email string `json:"email" binding:"required"`
}

type VerifyCodeRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}
