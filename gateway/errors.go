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
	"fmt"
	"net/http"
)

// ErrorKind is the machine-readable error classification surfaced to
// callers on pipeline-level failures.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation_error"
	KindUnauthenticated   ErrorKind = "unauthenticated"
	KindInvalidCredential ErrorKind = "invalid_credential"
	KindRateLimited       ErrorKind = "rate_limited"
	KindInternal          ErrorKind = "internal_error"
)

// PipelineError is a pipeline-level contract violation: bad input, auth
// failure, rate limiting, or an unexpected internal fault. Handler
// faults never become a PipelineError; they are shaped into an
// AgentResponse with status "error".
type PipelineError struct {
	Kind       ErrorKind
	HTTPStatus int
	Message    string
	Fields     map[string]string
	RetryAfter int
	Err        error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func validationError(fields map[string]string) *PipelineError {
	return &PipelineError{
		Kind:       KindValidation,
		HTTPStatus: http.StatusBadRequest,
		Message:    "Invalid request",
		Fields:     fields,
	}
}

func unauthenticatedError() *PipelineError {
	return &PipelineError{
		Kind:       KindUnauthenticated,
		HTTPStatus: http.StatusUnauthorized,
		Message:    "Authentication required",
	}
}

func invalidCredentialError(err error) *PipelineError {
	return &PipelineError{
		Kind:       KindInvalidCredential,
		HTTPStatus: http.StatusUnauthorized,
		Message:    "Invalid or expired credential",
		Err:        err,
	}
}

func rateLimitedError(retryAfter int) *PipelineError {
	return &PipelineError{
		Kind:       KindRateLimited,
		HTTPStatus: http.StatusTooManyRequests,
		Message:    "Rate limit exceeded",
		RetryAfter: retryAfter,
	}
}

func internalError(err error) *PipelineError {
	return &PipelineError{
		Kind:       KindInternal,
		HTTPStatus: http.StatusInternalServerError,
		Message:    "Internal server error",
		Err:        err,
	}
}
