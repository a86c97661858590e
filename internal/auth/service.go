// Package auth provides password hashing and JWT handling.
package auth

import (
	"errors"
	"time"

	"sentinela/internal/config"
	"sentinela/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidToken indicates the token is invalid
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired indicates the token has expired
	ErrTokenExpired = errors.New("token expired")
)

// Claims carries the identity and session pointer of an access token.
type Claims struct {
	UserID    uuid.UUID
	SessionID string
}

// Service provides authentication functionality
type Service struct {
	config *config.Config
}

// NewService creates a new authentication service
func NewService(config *config.Config) *Service {
	return &Service{config: config}
}

// GenerateToken mints an access token bound to the user's current session.
// The sid claim is compared against users.current_session_id on every
// authenticated request, so rotating that column invalidates the token.
func (s *Service) GenerateToken(user *models.User, sessionID string) (string, error) {
	expiration := time.Duration(s.config.Auth.JWTExpiration) * time.Hour

	claims := jwt.MapClaims{
		"user_id": user.ID.String(),
		"sid":     sessionID,
		"exp":     time.Now().Add(expiration).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.Auth.JWTSecret))
}

// ValidateToken validates a JWT token and returns its claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.config.Auth.JWTSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	rawID, ok := mapClaims["user_id"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	sid, ok := mapClaims["sid"].(string)
	if !ok || sid == "" {
		return nil, ErrInvalidToken
	}

	return &Claims{UserID: userID, SessionID: sid}, nil
}

// HashPassword hashes a password using bcrypt
func (s *Service) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// ComparePasswords compares a hashed password with a plain text password
func (s *Service) ComparePasswords(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// GetUserFromContext retrieves the authenticated user from the gin context
func GetUserFromContext(c *gin.Context) *models.User {
	user, exists := c.Get("user")
	if !exists {
		return nil
	}
	if u, ok := user.(*models.User); ok {
		return u
	}
	return nil
}
