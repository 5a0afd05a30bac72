package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// NewRouter builds the gin engine with CORS, recovery and request logging.
func NewRouter(h *Handler, auth *AuthMiddleware, allowedOrigins []string, log zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))
	r.Use(cors.New(corsConfig(allowedOrigins)))

	h.Register(r, auth.Handler())
	return r
}

// corsConfig allows every origin when the list is empty or contains "*".
func corsConfig(allowedOrigins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       12 * time.Hour,
	}

	for _, o := range allowedOrigins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(allowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}

	cfg.AllowOrigins = allowedOrigins
	cfg.AllowCredentials = true
	return cfg
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}
