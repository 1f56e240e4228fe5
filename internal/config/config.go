package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `json:"server"`
	Database     DatabaseConfig     `json:"database"`
	Security     SecurityConfig     `json:"security"`
	Dialogue     DialogueConfig     `json:"dialogue"`
	Verification VerificationConfig `json:"verification"`
	Logging      LoggingConfig      `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
	// ShareLinkBase is prepended to store ids when the dialogue engine
	// hands out a shareable link after a successful submission.
	ShareLinkBase string `json:"share_link_base"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	User         string        `json:"user"`
	Password     string        `json:"password"`
	DBName       string        `json:"db_name"`
	SSLMode      string        `json:"ssl_mode"`
	MaxConns     int           `json:"max_conns"`
	MaxIdleConns int           `json:"max_idle_conns"`
	MaxLifetime  time.Duration `json:"max_lifetime"`
}

// SecurityConfig holds the JWT verification secret. Token issuance is the
// identity provider's job; this service only validates bearer tokens.
type SecurityConfig struct {
	JWTSecret string `json:"jwt_secret"`
}

// DialogueConfig tunes the slot-filling dialogue engine.
type DialogueConfig struct {
	IdleTimeout time.Duration `json:"idle_timeout"`
	GCInterval  time.Duration `json:"gc_interval"`
	// OracleURL is the external intent-extraction endpoint.
	OracleURL string `json:"oracle_url"`
}

// VerificationConfig tunes the crowd-verification quorum engine.
type VerificationConfig struct {
	QuorumThreshold int `json:"quorum_threshold"`
	RetryAttempts   int `json:"retry_attempts"`
	// DuplicateRadiusMeters bounds the geodistance duplicate heuristic
	// applied at store creation.
	DuplicateRadiusMeters float64 `json:"duplicate_radius_meters"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

// LoadConfig loads configuration from an optional JSON file, a .env file if
// present, and environment variable overrides, in that order.
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Host:          "0.0.0.0",
			Port:          8080,
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   60 * time.Second,
			ShareLinkBase: "https://amalajoint.app/stores",
		},
		Database: DatabaseConfig{
			Host:         "localhost",
			Port:         5432,
			User:         os.Getenv("USER"),
			DBName:       "amala_portal",
			SSLMode:      "disable",
			MaxConns:     25,
			MaxIdleConns: 5,
		},
		Dialogue: DialogueConfig{
			IdleTimeout: 15 * time.Minute,
			GCInterval:  time.Minute,
		},
		Verification: VerificationConfig{
			QuorumThreshold:       3,
			RetryAttempts:         3,
			DuplicateRadiusMeters: 150,
		},
		Logging: LoggingConfig{Level: "info"},
	}

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	overrideWithEnv(config)

	return config, nil
}

func overrideWithEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if base := os.Getenv("SHARE_LINK_BASE"); base != "" {
		config.Server.ShareLinkBase = base
	}
	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if dbPort := os.Getenv("DATABASE_PORT"); dbPort != "" {
		if p, err := strconv.Atoi(dbPort); err == nil {
			config.Database.Port = p
		}
	}
	if dbUser := os.Getenv("DATABASE_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass := os.Getenv("DATABASE_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}
	if dbName := os.Getenv("DATABASE_DBNAME"); dbName != "" {
		config.Database.DBName = dbName
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Security.JWTSecret = secret
	}
	if url := os.Getenv("DIALOGUE_ORACLE_URL"); url != "" {
		config.Dialogue.OracleURL = url
	}
	if idle := os.Getenv("DIALOGUE_IDLE_TIMEOUT"); idle != "" {
		if d, err := time.ParseDuration(idle); err == nil {
			config.Dialogue.IdleTimeout = d
		}
	}
	if q := os.Getenv("VERIFICATION_QUORUM_THRESHOLD"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			config.Verification.QuorumThreshold = n
		}
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		config.Logging.Level = lvl
	}
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
