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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"mcpgate/platform/config"
	"mcpgate/platform/gateway/agents"
	"mcpgate/platform/gateway/audit"
	"mcpgate/platform/gateway/auth"
	"mcpgate/platform/gateway/cache"
	"mcpgate/platform/shared/logger"
)

const serverVersion = "2.0.0"

// listingCacheKey stores the serialized GET /agents payload.
const listingCacheKey = "agents_listing"

// Server holds the HTTP surface around the pipeline.
type Server struct {
	cfg      *config.Config
	pipeline *Pipeline
	registry *agents.Registry
	verifier *auth.Verifier
	cache    *cache.Cache
	metrics  *Metrics
	recorder *audit.Recorder
	log      *logger.Logger

	redisConnected   bool
	storageConnected bool
}

// NewServer wires the HTTP handlers. redisConnected and
// storageConnected feed the health report only.
func NewServer(cfg *config.Config, pipeline *Pipeline, registry *agents.Registry,
	verifier *auth.Verifier, respCache *cache.Cache, metrics *Metrics,
	recorder *audit.Recorder, log *logger.Logger, redisConnected, storageConnected bool) *Server {

	return &Server{
		cfg:              cfg,
		pipeline:         pipeline,
		registry:         registry,
		verifier:         verifier,
		cache:            respCache,
		metrics:          metrics,
		recorder:         recorder,
		log:              log,
		redisConnected:   redisConnected,
		storageConnected: storageConnected,
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/agent/{agent_name}", s.runAgentHandler).Methods("POST")
	r.HandleFunc("/agents", s.listAgentsHandler).Methods("GET")
	r.HandleFunc("/health", s.healthHandler).Methods("GET")
	r.HandleFunc("/metrics", s.metricsHandler).Methods("GET")
	r.HandleFunc("/auth/token", s.tokenHandler).Methods("POST")
	r.HandleFunc("/admin/cache/clear", s.cacheClearHandler).Methods("POST")

	r.NotFoundHandler = http.HandlerFunc(s.notFoundHandler)

	r.Use(s.recoverMiddleware)

	return r
}

// recoverMiddleware converts panics into a 500 with the standard error
// body instead of killing the connection.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("", "", "Panic while handling request", map[string]interface{}{
					"path":  r.URL.Path,
					"panic": fmt.Sprint(rec),
				})
				s.writeError(w, internalError(fmt.Errorf("panic: %v", rec)))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) runAgentHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	agentName := mux.Vars(r)["agent_name"]
	endpoint := "/agent/" + agentName

	var req AgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.observe("POST", endpoint, StatusError, start)
		s.writeError(w, validationError(map[string]string{"body": "request body must be valid JSON"}))
		return
	}

	meta := CallMeta{
		RawCredential: r.Header.Get("Authorization"),
		RemoteAddr:    remoteIP(r),
		UserAgent:     r.UserAgent(),
	}

	response, perr := s.pipeline.Execute(r.Context(), agentName, &req, meta)
	if perr != nil {
		s.observe("POST", endpoint, StatusError, start)
		s.writeError(w, perr)
		return
	}

	s.observe("POST", endpoint, StatusSuccess, start)
	s.writeJSON(w, http.StatusOK, response)
}

// listAgentsHandler serves the descriptor listing, cached at the
// listing TTL since it only changes on restart.
func (s *Server) listAgentsHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if cached, hit := s.cache.Get(r.Context(), listingCacheKey); hit {
		s.observe("GET", "/agents", StatusSuccess, start)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(cached))
		return
	}

	descriptors := s.registry.List()
	listing := AgentListing{Agents: descriptors, Count: len(descriptors)}

	payload, err := json.Marshal(listing)
	if err != nil {
		s.observe("GET", "/agents", StatusError, start)
		s.writeError(w, internalError(err))
		return
	}

	if s.cfg.EnableCaching {
		s.cache.Put(r.Context(), listingCacheKey, string(payload), cache.ListingTTL)
	}

	s.observe("GET", "/agents", StatusSuccess, start)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	auditStatus := "disabled"
	if s.recorder.Persistent() {
		auditStatus = "disconnected"
		if s.recorder.Healthy() {
			auditStatus = "connected"
		}
	} else if s.cfg.EnableAuditLogging {
		auditStatus = "log-only"
	}

	status := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   serverVersion,
		"services": map[string]string{
			"redis":          connState(s.redisConnected),
			"azure_storage":  connState(s.storageConnected),
			"audit_database": auditStatus,
		},
		"features": map[string]bool{
			"caching":       s.cfg.EnableCaching,
			"monitoring":    s.cfg.EnableMetrics,
			"audit_logging": s.cfg.EnableAuditLogging,
		},
	}

	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.EnableMetrics {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "Metrics disabled"})
		return
	}
	s.metrics.Handler().ServeHTTP(w, r)
}

func (s *Server) tokenHandler(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, validationError(map[string]string{"body": "request body must be valid JSON"}))
		return
	}

	token, expiresIn, err := s.verifier.Issue(req.UserID, req.TenantID)
	if err != nil {
		s.writeError(w, internalError(err))
		return
	}

	s.writeJSON(w, http.StatusOK, TokenResponse{Token: token, ExpiresIn: expiresIn})
}

func (s *Server) cacheClearHandler(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.EnableCaching || !s.cache.Available() {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "Cache not available"})
		return
	}

	if err := s.cache.Clear(r.Context()); err != nil {
		s.writeError(w, internalError(err))
		return
	}

	s.log.Info("", "", "Response cache cleared", nil)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "Cache cleared successfully"})
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusNotFound, map[string]interface{}{
		"error": "Endpoint not found",
		"available_endpoints": []string{
			"POST /agent/{agent_name}",
			"GET /agents",
			"GET /health",
			"GET /metrics",
			"POST /auth/token",
			"POST /admin/cache/clear",
		},
	})
}

// observe records the HTTP-level counter and latency for one request.
func (s *Server) observe(method, endpoint, status string, start time.Time) {
	s.metrics.RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	s.metrics.RequestDuration.Observe(time.Since(start).Seconds())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("", "", "Failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Server) writeError(w http.ResponseWriter, perr *PipelineError) {
	if perr.Kind == KindInternal {
		s.log.ErrorWithErr("", "", "Pipeline internal error", perr.Err, nil)
	}

	if perr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(perr.RetryAfter))
	}

	body := map[string]interface{}{
		"error": perr.Message,
		"kind":  string(perr.Kind),
	}
	if len(perr.Fields) > 0 {
		body["details"] = perr.Fields
	}
	if perr.RetryAfter > 0 {
		body["retry_after"] = perr.RetryAfter
	}

	s.writeJSON(w, perr.HTTPStatus, body)
}

// remoteIP extracts the caller address without the port.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func connState(connected bool) string {
	if connected {
		return "connected"
	}
	return "disconnected"
}
