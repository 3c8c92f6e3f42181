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

package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	v := NewVerifier("test-secret", "HS256", 24)

	token, expiresIn, err := v.Issue("u1", "t1")
	require.NoError(t, err)
	assert.Equal(t, 24*3600, expiresIn)

	identity, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", identity.UserID)
	assert.Equal(t, "t1", identity.TenantID)
}

func TestVerifyBearerPrefix(t *testing.T) {
	v := NewVerifier("test-secret", "HS256", 1)

	token, _, err := v.Issue("u1", "t1")
	require.NoError(t, err)

	identity, err := v.Verify("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "u1", identity.UserID)
}

func TestVerifyMissingCredential(t *testing.T) {
	v := NewVerifier("test-secret", "HS256", 1)

	_, err := v.Verify("")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestVerifyTamperedToken(t *testing.T) {
	v := NewVerifier("test-secret", "HS256", 1)

	token, _, err := v.Issue("u1", "t1")
	require.NoError(t, err)

	tampered := token[:len(token)-4] + "xxxx"
	_, err = v.Verify(tampered)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestVerifyWrongSecret(t *testing.T) {
	issuer := NewVerifier("secret-a", "HS256", 1)
	verifier := NewVerifier("secret-b", "HS256", 1)

	token, _, err := issuer.Issue("u1", "t1")
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestVerifyExpiredToken(t *testing.T) {
	v := NewVerifier("test-secret", "HS256", 1)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":   "u1",
		"tenant_id": "t1",
		"exp":       time.Now().Add(-time.Hour).Unix(),
	})
	token, err := expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestVerifyMalformedToken(t *testing.T) {
	v := NewVerifier("test-secret", "HS256", 1)

	_, err := v.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	v := NewVerifier("test-secret", "HS256", 1)

	// Token signed with HS512 must be rejected even with the right secret.
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"user_id": "u1",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = v.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestVerifyTenantDefaults(t *testing.T) {
	v := NewVerifier("test-secret", "HS256", 1)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "u1",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	identity, err := v.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "default", identity.TenantID)
}

func TestVerifyMissingUserID(t *testing.T) {
	v := NewVerifier("test-secret", "HS256", 1)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"tenant_id": "t1",
		"exp":       time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = v.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestIssueDefaults(t *testing.T) {
	v := NewVerifier("test-secret", "HS256", 2)

	token, _, err := v.Issue("", "")
	require.NoError(t, err)

	identity, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "demo-user", identity.UserID)
	assert.Equal(t, "default", identity.TenantID)
}
