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

// Package agents holds the agent handler registry and the built-in
// agent implementations. Resolution never fails: unknown names route
// to a generic fallback handler so every request gets a response.
package agents

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Request carries the validated inputs an agent handler works with.
type Request struct {
	Prompt     string
	Context    map[string]interface{}
	Parameters map[string]interface{}
}

// Handler produces a result for one agent invocation. agentName is the
// name the caller addressed, which matters for the fallback handler.
type Handler func(ctx context.Context, agentName string, req Request) (string, error)

// Descriptor describes a registered agent for the listing endpoint.
type Descriptor struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Capabilities    []string `json:"capabilities"`
	RequiredContext []string `json:"required_context"`
	ExampleUsage    string   `json:"example_usage"`
}

// Registry maps agent names to handlers with thread-safe access.
type Registry struct {
	mu          sync.RWMutex
	handlers    map[string]Handler
	descriptors map[string]Descriptor
	fallback    Handler
}

// NewRegistry creates a registry whose fallback is the generic agent.
func NewRegistry() *Registry {
	return &Registry{
		handlers:    make(map[string]Handler),
		descriptors: make(map[string]Descriptor),
		fallback:    genericHandler,
	}
}

// Register adds or replaces an agent handler and its descriptor.
func (r *Registry) Register(desc Descriptor, handler Handler) error {
	if desc.Name == "" {
		return fmt.Errorf("agent name cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("handler cannot be nil for agent %s", desc.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[desc.Name] = handler
	r.descriptors[desc.Name] = desc
	return nil
}

// Resolve returns the handler for name. Unknown names get the generic
// fallback, so the returned handler is never nil.
func (r *Registry) Resolve(name string) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if handler, exists := r.handlers[name]; exists {
		return handler
	}
	return r.fallback
}

// Has reports whether name is a registered agent (not the fallback).
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.handlers[name]
	return exists
}

// List returns descriptors for all registered agents sorted by name.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptors := make([]Descriptor, 0, len(r.descriptors))
	for _, desc := range r.descriptors {
		descriptors = append(descriptors, desc)
	}

	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].Name < descriptors[j].Name
	})
	return descriptors
}

// Count returns the number of registered agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
