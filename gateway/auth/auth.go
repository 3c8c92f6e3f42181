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

// Package auth verifies bearer credentials and issues signed tokens.
//
// Verification is stateless: a verified token yields a request-scoped
// Identity and nothing is persisted. The verifier must run before rate
// limiting and dispatch when authentication is enabled.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrUnauthenticated is returned when no credential is supplied.
	ErrUnauthenticated = errors.New("no credential provided")

	// ErrInvalidCredential is returned when the credential fails signature
	// verification, is expired, or is malformed.
	ErrInvalidCredential = errors.New("invalid credential")
)

// Identity is the caller identity extracted from a verified credential.
type Identity struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
}

// Verifier validates bearer tokens and mints new ones.
type Verifier struct {
	secret     []byte
	algorithm  string
	expiration time.Duration
}

// NewVerifier creates a Verifier for the given signing secret.
// algorithm is the JWT signing method name (HS256 unless configured
// otherwise); expirationHours bounds the lifetime of issued tokens.
func NewVerifier(secret string, algorithm string, expirationHours int) *Verifier {
	if algorithm == "" {
		algorithm = "HS256"
	}
	return &Verifier{
		secret:     []byte(secret),
		algorithm:  algorithm,
		expiration: time.Duration(expirationHours) * time.Hour,
	}
}

// Verify validates a raw bearer credential and extracts the caller
// identity. The "Bearer " prefix is accepted and stripped. tenant_id
// defaults to "default" when absent from the claims.
func (v *Verifier) Verify(rawCredential string) (*Identity, error) {
	if rawCredential == "" {
		return nil, ErrUnauthenticated
	}

	tokenString := strings.TrimPrefix(rawCredential, "Bearer ")

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != v.algorithm {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims type", ErrInvalidCredential)
	}

	userID := getClaimString(claims, "user_id")
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user_id claim", ErrInvalidCredential)
	}

	tenantID := getClaimString(claims, "tenant_id")
	if tenantID == "" {
		tenantID = "default"
	}

	return &Identity{
		UserID:   userID,
		TenantID: tenantID,
	}, nil
}

// Issue mints a signed token for the given user and tenant. It returns
// the token string and its lifetime in seconds.
func (v *Verifier) Issue(userID, tenantID string) (string, int, error) {
	if userID == "" {
		userID = "demo-user"
	}
	if tenantID == "" {
		tenantID = "default"
	}

	method := jwt.GetSigningMethod(v.algorithm)
	if method == nil {
		return "", 0, fmt.Errorf("unknown signing method: %s", v.algorithm)
	}

	token := jwt.NewWithClaims(method, jwt.MapClaims{
		"user_id":   userID,
		"tenant_id": tenantID,
		"exp":       time.Now().Add(v.expiration).Unix(),
	})

	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, int(v.expiration.Seconds()), nil
}

func getClaimString(claims jwt.MapClaims, key string) string {
	if val, ok := claims[key].(string); ok {
		return val
	}
	return ""
}
