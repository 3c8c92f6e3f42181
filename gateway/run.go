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

package gateway

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/cors"

	"mcpgate/platform/azure"
	"mcpgate/platform/config"
	"mcpgate/platform/gateway/agents"
	"mcpgate/platform/gateway/audit"
	"mcpgate/platform/gateway/auth"
	"mcpgate/platform/gateway/cache"
	"mcpgate/platform/gateway/ratelimit"
	"mcpgate/platform/shared/logger"
)

// Run loads configuration, wires the collaborators, and serves HTTP
// until the process exits.
func Run() {
	cfg := config.Load()
	appLog := logger.New("mcp-gateway")

	redisClient, redisConnected := connectRedis(cfg, appLog)

	verifier := auth.NewVerifier(cfg.JWTSecretKey, cfg.JWTAlgorithm, cfg.JWTExpirationHours)

	var limiter *ratelimit.Limiter
	if redisClient != nil {
		limiter = ratelimit.New(redisClient, cfg.RateLimitPerMinute)
	} else {
		// Single-instance counters only; documented as unsuitable for
		// horizontally scaled deployments.
		limiter = ratelimit.NewStandalone(cfg.RateLimitPerMinute)
	}

	respCache := cache.New(nil)
	if cfg.EnableCaching && redisClient != nil {
		respCache = cache.New(redisClient)
	}

	storage, storageConnected := connectStorage(cfg, appLog)

	registry := agents.NewBuiltinRegistry(azure.StaticMetricsProvider{}, storage, cfg.AzureStorageContainerName)
	metrics := NewMetrics()

	auditURL := ""
	if cfg.EnableAuditLogging {
		auditURL = cfg.AuditDatabaseURL
	}
	recorder := audit.NewRecorder(auditURL, appLog)
	defer recorder.Close()

	pipeline := NewPipeline(cfg, verifier, limiter, respCache, registry, metrics, recorder, appLog)
	server := NewServer(cfg, pipeline, registry, verifier, respCache, metrics, recorder, appLog, redisConnected, storageConnected)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	appLog.Info("", "", "MCP Gateway starting", map[string]interface{}{
		"listen_addr":       cfg.ListenAddr(),
		"agents":            registry.Count(),
		"standalone":        cfg.Standalone,
		"auth_enabled":      cfg.EnableAuth,
		"caching_enabled":   cfg.EnableCaching && redisConnected,
		"metrics_enabled":   cfg.EnableMetrics,
		"audit_enabled":     cfg.EnableAuditLogging,
		"audit_persistent":  recorder.Persistent(),
		"rate_limit_per_min": limiter.Limit(),
	})

	if err := http.ListenAndServe(cfg.ListenAddr(), corsHandler.Handler(server.Router())); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// connectRedis dials Redis unless standalone mode is configured. A
// failed connection degrades to in-memory limiting and no caching
// rather than refusing to start.
func connectRedis(cfg *config.Config, appLog *logger.Logger) (*redis.Client, bool) {
	if cfg.Standalone {
		appLog.Info("", "", "Standalone mode: skipping Redis", nil)
		return nil, false
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		appLog.Warn("", "", "Redis unavailable, falling back to in-memory rate limiting without caching", map[string]interface{}{
			"addr":  cfg.RedisAddr(),
			"error": err.Error(),
		})
		return nil, false
	}

	appLog.Info("", "", "Redis connected", map[string]interface{}{"addr": cfg.RedisAddr()})
	return client, true
}

// connectStorage builds the Blob storage collaborator when configured.
func connectStorage(cfg *config.Config, appLog *logger.Logger) (azure.StorageProvider, bool) {
	if cfg.AzureStorageConnectionString == "" {
		return nil, false
	}

	provider, err := azure.NewBlobStorageProvider(cfg.AzureStorageConnectionString)
	if err != nil {
		appLog.Warn("", "", "Azure Storage unavailable, storage agent degraded", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, false
	}

	appLog.Info("", "", "Azure Storage connected", map[string]interface{}{
		"container": cfg.AzureStorageContainerName,
	})
	return provider, true
}
