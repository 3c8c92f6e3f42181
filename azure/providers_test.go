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

package azure

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticMetricsProvider(t *testing.T) {
	provider := StaticMetricsProvider{}

	metrics, err := provider.VMMetrics(context.Background(), "prod-rg", "vm-001")
	require.NoError(t, err)
	require.NotNil(t, metrics)

	assert.Equal(t, 45.2, metrics.CPUPercent)
	assert.Equal(t, 62.1, metrics.MemoryPercent)
	assert.Equal(t, int64(1024000), metrics.DiskReadBytes)
	assert.Equal(t, int64(512000), metrics.DiskWriteBytes)
	assert.Equal(t, int64(2048000), metrics.NetworkInBytes)
	assert.Equal(t, int64(1536000), metrics.NetworkOutBytes)
	assert.WithinDuration(t, time.Now().UTC(), metrics.Timestamp, 5*time.Second)
}

func TestNewBlobStorageProviderInvalidConnectionString(t *testing.T) {
	_, err := NewBlobStorageProvider("not-a-connection-string")
	assert.Error(t, err)
}

func TestNewBlobStorageProviderValidConnectionString(t *testing.T) {
	connStr := "DefaultEndpointsProtocol=https;AccountName=testaccount;AccountKey=dGVzdGtleQ==;EndpointSuffix=core.windows.net"

	provider, err := NewBlobStorageProvider(connStr)
	require.NoError(t, err)
	assert.NotNil(t, provider)
}
