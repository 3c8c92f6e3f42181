// Copyright 2025 MCPGate
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads gateway configuration from environment variables.
//
// Every option has a working default so the gateway can start with no
// environment at all (standalone mode, no Redis, no audit database).
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds all runtime configuration for the gateway.
type Config struct {
	// Server settings
	Host    string
	Port    int
	Debug   bool
	Workers int

	// Security settings
	EnableAuth         bool
	JWTSecretKey       string
	JWTAlgorithm       string
	JWTExpirationHours int

	// Rate limiting
	RateLimitPerMinute int
	// Standalone selects the in-memory counter store instead of Redis.
	// Unsuitable for multi-instance deployments: each replica counts
	// independently, so the effective limit becomes limit * replicas.
	Standalone bool

	// Redis settings (shared counter store and response cache)
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Features
	EnableCaching      bool
	CacheTTLSeconds    int
	EnableMetrics      bool
	EnableAuditLogging bool

	// Audit sink database (optional; log-based sink when empty)
	AuditDatabaseURL string

	// Azure settings
	AzureStorageConnectionString string
	AzureStorageContainerName    string
}

// Load reads configuration from the environment, applying defaults for
// anything unset.
func Load() *Config {
	return &Config{
		Host:    getEnv("MCP_HOST", "0.0.0.0"),
		Port:    getEnvInt("MCP_PORT", 8080),
		Debug:   getEnvBool("MCP_DEBUG", false),
		Workers: getEnvInt("MCP_WORKERS", 4),

		EnableAuth:         getEnvBool("ENABLE_AUTH", false),
		JWTSecretKey:       os.Getenv("JWT_SECRET_KEY"),
		JWTAlgorithm:       getEnv("JWT_ALGORITHM", "HS256"),
		JWTExpirationHours: getEnvInt("JWT_EXPIRATION_HOURS", 24),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		Standalone:         getEnvBool("STANDALONE_MODE", false),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnvInt("REDIS_PORT", 6379),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		EnableCaching:      getEnvBool("ENABLE_CACHING", true),
		CacheTTLSeconds:    getEnvInt("CACHE_TTL_SECONDS", 300),
		EnableMetrics:      getEnvBool("ENABLE_METRICS", true),
		EnableAuditLogging: getEnvBool("ENABLE_AUDIT_LOGGING", true),

		AuditDatabaseURL: os.Getenv("AUDIT_DATABASE_URL"),

		AzureStorageConnectionString: os.Getenv("AZURE_STORAGE_CONNECTION_STRING"),
		AzureStorageContainerName:    getEnv("AZURE_STORAGE_CONTAINER_NAME", "copilot-resources"),
	}
}

// RedisAddr returns the host:port address of the shared Redis store.
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + strconv.Itoa(c.RedisPort)
}

// ListenAddr returns the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return strings.EqualFold(value, "true") || value == "1"
}
