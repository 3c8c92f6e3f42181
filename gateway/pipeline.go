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
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mcpgate/platform/config"
	"mcpgate/platform/gateway/agents"
	"mcpgate/platform/gateway/audit"
	"mcpgate/platform/gateway/auth"
	"mcpgate/platform/gateway/cache"
	"mcpgate/platform/gateway/ratelimit"
	"mcpgate/platform/shared/logger"
)

// dispatchTimeout bounds one agent handler invocation.
const dispatchTimeout = 30 * time.Second

// Pipeline runs one request through the ordered stage chain:
// Received, Authenticated, RateChecked, CacheChecked, Dispatched,
// Recorded, Responded. A stage failure short-circuits to Responded
// with a PipelineError; handler faults are shaped into an error-status
// response instead.
type Pipeline struct {
	enableAuth  bool
	enableAudit bool
	cacheTTL    time.Duration

	verifier *auth.Verifier
	limiter  *ratelimit.Limiter
	cache    *cache.Cache
	registry *agents.Registry
	metrics  *Metrics
	recorder *audit.Recorder
	log      *logger.Logger
}

// CallMeta carries transport-level request attributes into the pipeline.
type CallMeta struct {
	RawCredential string
	RemoteAddr    string
	UserAgent     string
}

// requestState is the mutable context one request accumulates while
// moving through the stages.
type requestState struct {
	agentName string
	req       *AgentRequest
	meta      CallMeta

	requestID   string
	start       time.Time
	identity    *auth.Identity
	clientKey   string
	fingerprint string
	cacheHit    bool
	response    *AgentResponse
}

// NewPipeline wires the pipeline from its collaborators. The cache may
// be disabled (nil client) and the recorder log-only; both degrade
// rather than fail.
func NewPipeline(cfg *config.Config, verifier *auth.Verifier, limiter *ratelimit.Limiter,
	respCache *cache.Cache, registry *agents.Registry, metrics *Metrics,
	recorder *audit.Recorder, log *logger.Logger) *Pipeline {

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = cache.DefaultTTL
	}

	p := &Pipeline{
		enableAuth:  cfg.EnableAuth,
		enableAudit: cfg.EnableAuditLogging,
		cacheTTL:    cacheTTL,
		verifier:    verifier,
		limiter:     limiter,
		cache:       respCache,
		registry:    registry,
		metrics:     metrics,
		recorder:    recorder,
		log:         log,
	}

	if !cfg.EnableCaching {
		p.cache = cache.New(nil)
	}

	return p
}

// Execute runs agentName's handler for req. It returns either a shaped
// AgentResponse (including handler faults, which carry status "error")
// or a PipelineError for contract violations.
func (p *Pipeline) Execute(ctx context.Context, agentName string, req *AgentRequest, meta CallMeta) (*AgentResponse, *PipelineError) {
	state := &requestState{
		agentName: agentName,
		req:       req,
		meta:      meta,
		requestID: uuid.NewString(),
		start:     time.Now(),
	}

	stages := []func(context.Context, *requestState) *PipelineError{
		p.received,
		p.authenticated,
		p.rateChecked,
		p.cacheChecked,
		p.dispatched,
	}

	for _, stage := range stages {
		if perr := stage(ctx, state); perr != nil {
			return nil, perr
		}
	}

	p.recorded(state)
	p.responded(ctx, state)

	return state.response, nil
}

// received validates the request and applies defaults.
func (p *Pipeline) received(ctx context.Context, s *requestState) *PipelineError {
	if s.agentName == "" {
		return validationError(map[string]string{"agent_name": "agent name is required"})
	}

	if problems := s.req.Validate(); len(problems) > 0 {
		return validationError(problems)
	}
	s.req.Normalize()

	return nil
}

// authenticated verifies the bearer credential when auth is enabled and
// derives the client key used for rate limiting.
func (p *Pipeline) authenticated(ctx context.Context, s *requestState) *PipelineError {
	if !p.enableAuth {
		s.clientKey = s.meta.RemoteAddr
		return nil
	}

	identity, err := p.verifier.Verify(s.meta.RawCredential)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			return unauthenticatedError()
		}
		return invalidCredentialError(err)
	}

	s.identity = identity
	s.clientKey = identity.UserID
	if s.req.TenantID == "default" && identity.TenantID != "" {
		s.req.TenantID = identity.TenantID
	}

	return nil
}

// rateChecked consults the limiter. Denial never increments downstream
// counters; limiter outages fail open inside the limiter itself.
func (p *Pipeline) rateChecked(ctx context.Context, s *requestState) *PipelineError {
	if p.limiter.Allow(ctx, s.clientKey) {
		return nil
	}

	_, reset := p.limiter.Status(ctx, s.clientKey)
	retryAfter := int(time.Until(reset).Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}

	p.log.Warn(s.requestID, s.req.TenantID, "Rate limit exceeded", map[string]interface{}{
		"client_key": s.clientKey,
		"agent_name": s.agentName,
	})

	return rateLimitedError(retryAfter)
}

// cacheChecked looks up the request fingerprint. A hit reuses only the
// cached result body; request_id and timestamp are fresh per request.
func (p *Pipeline) cacheChecked(ctx context.Context, s *requestState) *PipelineError {
	s.fingerprint = cache.Fingerprint(s.agentName, s.req.Prompt, s.req.Context, s.req.Parameters)

	result, hit := p.cache.Get(ctx, s.fingerprint)
	if !hit {
		return nil
	}

	s.cacheHit = true
	s.response = &AgentResponse{
		Agent:           s.agentName,
		Prompt:          s.req.Prompt,
		Result:          result,
		Status:          StatusSuccess,
		ExecutionTimeMs: durationMs(s.start),
		Timestamp:       time.Now().UTC(),
		RequestID:       s.requestID,
	}

	return nil
}

// dispatched resolves the handler and invokes it under a timeout. Any
// handler fault, including cancellation, becomes a status "error"
// response rather than a transport failure.
func (p *Pipeline) dispatched(ctx context.Context, s *requestState) *PipelineError {
	if s.cacheHit {
		return nil
	}

	handler := p.registry.Resolve(s.agentName)

	handlerCtx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()

	result, err := handler(handlerCtx, s.agentName, agents.Request{
		Prompt:     s.req.Prompt,
		Context:    s.req.Context,
		Parameters: s.req.Parameters,
	})

	response := &AgentResponse{
		Agent:           s.agentName,
		Prompt:          s.req.Prompt,
		Status:          StatusSuccess,
		Result:          result,
		ExecutionTimeMs: durationMs(s.start),
		Timestamp:       time.Now().UTC(),
		RequestID:       s.requestID,
	}

	if err != nil {
		p.log.ErrorWithErr(s.requestID, s.req.TenantID, "Agent processing failed", err, map[string]interface{}{
			"agent_name": s.agentName,
		})
		response.Status = StatusError
		response.Result = fmt.Sprintf("Error processing request: %v", err)
	}

	s.response = response
	return nil
}

// recorded emits the agent outcome counter and the audit event. It runs
// unconditionally once a response exists, cancelled dispatches included.
func (p *Pipeline) recorded(s *requestState) {
	p.metrics.AgentRequestsTotal.WithLabelValues(s.agentName, s.response.Status).Inc()

	if !p.enableAudit {
		return
	}

	userID := "anonymous"
	tenantID := s.req.TenantID
	if s.identity != nil {
		userID = s.identity.UserID
		tenantID = s.identity.TenantID
	}

	p.recorder.Record(&audit.Event{
		RequestID:       s.requestID,
		AgentName:       s.agentName,
		UserID:          userID,
		TenantID:        tenantID,
		Status:          s.response.Status,
		CacheHit:        s.cacheHit,
		PromptLength:    len(s.req.Prompt),
		ResultLength:    len(s.response.Result),
		ExecutionTimeMs: s.response.ExecutionTimeMs,
		IPAddress:       s.meta.RemoteAddr,
		UserAgent:       s.meta.UserAgent,
	})
}

// responded populates the cache for successful fresh dispatches.
func (p *Pipeline) responded(ctx context.Context, s *requestState) {
	if s.cacheHit || s.response.Status != StatusSuccess {
		return
	}
	p.cache.Put(ctx, s.fingerprint, s.response.Result, p.cacheTTL)
}

func durationMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
