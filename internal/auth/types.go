package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Principal identifies an authenticated API client.
type Principal struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	IssuedAt time.Time `json:"issuedAt"`
}

// Claims is the JWT claim set issued by the token endpoint.
type Claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// contextKey is a private type for context values to avoid collisions
type contextKey string

const principalContextKey contextKey = "principal"

const sessionName = "codeguardian-session"
