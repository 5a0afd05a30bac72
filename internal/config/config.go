package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string
	HTTP        HTTPConfig
	Log         LogConfig
	Backend     BackendConfig
	Gemini      GeminiConfig
	Database    DatabaseConfig
	Gallery     GalleryConfig
	Stats       StatsConfig
	Auth        AuthConfig
}

type HTTPConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

type LogConfig struct {
	Level string
}

type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
	OCRLang string
}

type GeminiConfig struct {
	APIKey        string
	Model         string
	FallbackModel string
}

type DatabaseConfig struct {
	DSN string
}

type GalleryConfig struct {
	Namespace string
	Seed      bool
}

type StatsConfig struct {
	Fallback     bool
	PollInterval time.Duration
}

type AuthConfig struct {
	JWTSecret string
}

// Addr returns host:port for the HTTP listener.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads the optional config file at path, then environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Names kept from the web client's environment.
	_ = v.BindEnv("backend.url", "BACKEND_URL", "NEXT_PUBLIC_API_URL")
	_ = v.BindEnv("gemini.api_key", "GEMINI_API_KEY", "NEXT_PUBLIC_GEMINI_API_KEY")
	_ = v.BindEnv("database.dsn", "DATABASE_DSN", "DB_DSN")
	_ = v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	_ = v.BindEnv("http.port", "HTTP_PORT", "PORT")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{
		Environment: v.GetString("environment"),
		HTTP: HTTPConfig{
			Host:           v.GetString("http.host"),
			Port:           v.GetInt("http.port"),
			AllowedOrigins: v.GetStringSlice("http.allowed_origins"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
		},
		Backend: BackendConfig{
			BaseURL: strings.TrimRight(v.GetString("backend.url"), "/"),
			Timeout: v.GetDuration("backend.timeout"),
			OCRLang: v.GetString("backend.ocr_lang"),
		},
		Gemini: GeminiConfig{
			APIKey:        v.GetString("gemini.api_key"),
			Model:         v.GetString("gemini.model"),
			FallbackModel: v.GetString("gemini.fallback_model"),
		},
		Database: DatabaseConfig{
			DSN: v.GetString("database.dsn"),
		},
		Gallery: GalleryConfig{
			Namespace: v.GetString("gallery.namespace"),
			Seed:      v.GetBool("gallery.seed"),
		},
		Stats: StatsConfig{
			Fallback:     v.GetBool("stats.fallback"),
			PollInterval: v.GetDuration("stats.poll_interval"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("log.level", "info")
	v.SetDefault("backend.url", "http://localhost:5000")
	v.SetDefault("backend.timeout", 60*time.Second)
	v.SetDefault("backend.ocr_lang", "eng")
	v.SetDefault("gemini.model", "gemini-1.5-flash")
	v.SetDefault("gemini.fallback_model", "gemini-pro")
	v.SetDefault("gallery.namespace", "gallery-storage")
	v.SetDefault("gallery.seed", true)
	v.SetDefault("stats.fallback", true)
	v.SetDefault("stats.poll_interval", 30*time.Second)
}

func (c *Config) validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http port %d", c.HTTP.Port)
	}
	if c.Backend.BaseURL == "" {
		return errors.New("backend url is required")
	}
	if c.Stats.PollInterval <= 0 {
		return fmt.Errorf("invalid stats poll interval %s", c.Stats.PollInterval)
	}
	if c.Gallery.Namespace == "" {
		return errors.New("gallery namespace is required")
	}
	return nil
}
