package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v6"
)

// Storage backends.
const (
	BackendMemory  = "memory"
	BackendMongoDB = "mongodb"
)

// ServerConfig holds configuration for the reference document store server.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" envDefault:"localhost"`
	Port string `env:"SERVER_PORT" envDefault:"3000"`

	Backend         string `env:"DOCSTORE_BACKEND" envDefault:"memory"`
	IDField         string `env:"DOCSTORE_ID_FIELD" envDefault:"id"`
	MongoDBURI      string `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017"`
	MongoDBDatabase string `env:"MONGODB_DATABASE" envDefault:"rtdb_bridge"`

	// RedisAddr enables publishing changes to Redis when set.
	RedisAddr    string `env:"REDIS_ADDR"`
	RedisChannel string `env:"REDIS_CHANNEL" envDefault:"rtdb:changes"`
}

// LoadConfig loads the server configuration from environment variables.
func LoadConfig() (*ServerConfig, error) {
	cfg := &ServerConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.New("failed to load docstore configuration from environment: " + err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultServerConfig returns an in-memory configuration for local use and tests.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:            "localhost",
		Port:            "3000",
		Backend:         BackendMemory,
		IDField:         "id",
		MongoDBURI:      "mongodb://localhost:27017",
		MongoDBDatabase: "rtdb_bridge",
		RedisChannel:    "rtdb:changes",
	}
}

func (c *ServerConfig) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendMongoDB:
		if c.MongoDBURI == "" || c.MongoDBDatabase == "" {
			return errors.New("MONGODB_URI and MONGODB_DATABASE are required for the mongodb backend")
		}
	default:
		return fmt.Errorf("unsupported DOCSTORE_BACKEND %q", c.Backend)
	}
	if c.IDField == "" {
		return errors.New("DOCSTORE_ID_FIELD must not be empty")
	}
	return nil
}

// Addr returns the listen address.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}
