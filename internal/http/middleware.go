package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "bearer"
	subjectKey          = "subject"
)

// AuthMiddleware checks HS256 bearer tokens. With an empty secret every
// request is let through.
type AuthMiddleware struct {
	secret []byte
	log    zerolog.Logger
}

func NewAuthMiddleware(secret string, log zerolog.Logger) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(secret), log: log}
}

func (m *AuthMiddleware) Enabled() bool {
	return len(m.secret) > 0
}

func (m *AuthMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.Enabled() {
			c.Next()
			return
		}

		header := c.GetHeader(authorizationHeader)
		fields := strings.Fields(header)
		if len(fields) != 2 || !strings.EqualFold(fields[0], bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("missing or malformed authorization header"))
			return
		}

		subject, err := m.validate(fields[1])
		if err != nil {
			m.log.Debug().Err(err).Str("path", c.FullPath()).Msg("rejected token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("invalid or expired token"))
			return
		}

		c.Set(subjectKey, subject)
		c.Next()
	}
}

func (m *AuthMiddleware) validate(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("token is not valid")
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("read subject: %w", err)
	}
	return subject, nil
}
