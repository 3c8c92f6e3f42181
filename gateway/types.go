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

// Package gateway implements the request-processing pipeline: credential
// verification, rate limiting, response caching, dispatch to agent
// handlers, and metrics/audit recording, plus the HTTP server around it.
package gateway

import "time"

// MaxPromptLength is the upper bound on prompt size accepted by the
// pipeline. Longer prompts are a validation failure, not a handler error.
const MaxPromptLength = 10000

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// AgentRequest is the body of POST /agent/{agent_name}.
type AgentRequest struct {
	Prompt     string                 `json:"prompt"`
	Context    map[string]interface{} `json:"context"`
	Parameters map[string]interface{} `json:"parameters"`
	TenantID   string                 `json:"tenant_id"`
}

// Normalize applies the documented defaults in place.
func (r *AgentRequest) Normalize() {
	if r.Context == nil {
		r.Context = map[string]interface{}{}
	}
	if r.Parameters == nil {
		r.Parameters = map[string]interface{}{}
	}
	if r.TenantID == "" {
		r.TenantID = "default"
	}
}

// Validate returns field-level problems, or an empty map when valid.
func (r *AgentRequest) Validate() map[string]string {
	problems := map[string]string{}

	if r.Prompt == "" {
		problems["prompt"] = "prompt is required"
	} else if len([]rune(r.Prompt)) > MaxPromptLength {
		problems["prompt"] = "prompt exceeds maximum length of 10000 characters"
	}

	return problems
}

// AgentResponse is the shaped result of one pipeline run. request_id is
// generated fresh per request, including cache hits.
type AgentResponse struct {
	Agent           string    `json:"agent"`
	Prompt          string    `json:"prompt"`
	Result          string    `json:"result"`
	Status          string    `json:"status"`
	ExecutionTimeMs float64   `json:"execution_time_ms"`
	Timestamp       time.Time `json:"timestamp"`
	RequestID       string    `json:"request_id"`
}

// TokenRequest is the body of POST /auth/token.
type TokenRequest struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
}

// TokenResponse is the body returned by POST /auth/token.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// AgentListing is the body returned by GET /agents.
type AgentListing struct {
	Agents interface{} `json:"agents"`
	Count  int         `json:"count"`
}
