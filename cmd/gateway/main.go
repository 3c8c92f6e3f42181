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

// Package main is the entry point for the MCP Gateway service.
//
// The gateway authenticates callers, enforces per-client rate limits,
// caches idempotent agent responses, and dispatches requests to named
// agent handlers with metrics and audit logging on every call.
//
// Usage:
//
//	./gateway
//
// Environment Variables:
//
//	MCP_HOST / MCP_PORT - listen address (default: 0.0.0.0:8080)
//	REDIS_HOST / REDIS_PORT - shared counter and cache store
//	JWT_SECRET_KEY - secret for credential verification
//	ENABLE_AUTH - require bearer credentials on agent calls
//	AUDIT_DATABASE_URL - optional PostgreSQL audit sink
package main

import (
	"mcpgate/platform/gateway"
)

func main() {
	gateway.Run()
}
