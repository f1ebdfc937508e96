package auth

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"codeguardian/internal/config"
	"codeguardian/internal/errors"
)

// Service issues and validates API tokens. With no JWT secret configured the
// service is disabled and every request passes through unauthenticated.
type Service struct {
	jwtSecret    []byte
	sessionStore *sessions.CookieStore
	tokenTTL     time.Duration
}

// NewService creates an authentication service from configuration
func NewService(cfg config.AuthConfig) *Service {
	s := &Service{
		tokenTTL: 24 * time.Hour,
	}
	if cfg.JWTSecret != "" {
		s.jwtSecret = []byte(cfg.JWTSecret)
	}

	sessionKey := cfg.SessionKey
	if sessionKey == "" {
		sessionKey = cfg.JWTSecret
	}
	if sessionKey != "" {
		s.sessionStore = sessions.NewCookieStore([]byte(sessionKey))
	}

	if s.Enabled() {
		log.Printf("🔐 Authentication enabled (token TTL %s)", s.tokenTTL)
	} else {
		log.Printf("⚠️  No JWT secret configured, API is open")
	}
	return s
}

// Enabled reports whether the service enforces authentication
func (s *Service) Enabled() bool {
	return len(s.jwtSecret) > 0
}

// IssueToken mints a signed JWT for the named client
func (s *Service) IssueToken(name string) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("authentication is not configured")
	}

	now := time.Now()
	claims := &Claims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   name,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateToken parses and verifies a JWT, returning the principal it names
func (s *Service) ValidateToken(tokenString string) (*Principal, error) {
	if !s.Enabled() {
		return nil, fmt.Errorf("authentication is not configured")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return &Principal{
		ID:       claims.ID,
		Name:     claims.Name,
		IssuedAt: claims.IssuedAt.Time,
	}, nil
}

// HandleToken exchanges a client name for a signed token and opens a session.
// POST body: {"name": "..."}
func (s *Service) HandleToken(w http.ResponseWriter, r *http.Request) {
	if !s.Enabled() {
		errors.SendError(w, errors.NewAuthenticationError("Authentication is not configured"))
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		errors.SendError(w, errors.NewValidationError("name is required", nil))
		return
	}

	tokenString, err := s.IssueToken(req.Name)
	if err != nil {
		errors.SendError(w, errors.NewInternalError("Failed to issue token", err))
		return
	}

	if s.sessionStore != nil {
		session, _ := s.sessionStore.Get(r, sessionName)
		session.Values["token"] = tokenString
		session.Options.HttpOnly = true
		session.Options.MaxAge = int(s.tokenTTL.Seconds())
		if err := session.Save(r, w); err != nil {
			log.Printf("⚠️  Failed to save session: %v", err)
		}
	}

	errors.SendSuccess(w, map[string]interface{}{
		"token":     tokenString,
		"expiresIn": int(s.tokenTTL.Seconds()),
	})
}

// HandleLogout clears the session cookie
func (s *Service) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if s.sessionStore != nil {
		session, _ := s.sessionStore.Get(r, sessionName)
		session.Options.MaxAge = -1
		if err := session.Save(r, w); err != nil {
			log.Printf("⚠️  Failed to clear session: %v", err)
		}
	}
	errors.SendSuccess(w, map[string]interface{}{"loggedOut": true})
}

// sessionToken pulls a previously issued token out of the session cookie
func (s *Service) sessionToken(r *http.Request) (string, bool) {
	if s.sessionStore == nil {
		return "", false
	}
	session, err := s.sessionStore.Get(r, sessionName)
	if err != nil {
		return "", false
	}
	token, ok := session.Values["token"].(string)
	return token, ok && token != ""
}
