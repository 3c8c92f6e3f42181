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

// Package azure holds the gateway's external Azure collaborators behind
// small interfaces so agent handlers never depend on SDK types directly.
package azure

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// VMMetrics holds a point-in-time snapshot of virtual machine metrics.
type VMMetrics struct {
	CPUPercent      float64   `json:"cpu_percent"`
	MemoryPercent   float64   `json:"memory_percent"`
	DiskReadBytes   int64     `json:"disk_read_bytes"`
	DiskWriteBytes  int64     `json:"disk_write_bytes"`
	NetworkInBytes  int64     `json:"network_in_bytes"`
	NetworkOutBytes int64     `json:"network_out_bytes"`
	Timestamp       time.Time `json:"timestamp"`
}

// BlobResource describes one object in a storage container.
type BlobResource struct {
	Name         string     `json:"name"`
	Size         int64      `json:"size"`
	LastModified *time.Time `json:"last_modified,omitempty"`
}

// MetricsProvider fetches VM metrics for a resource group / VM pair.
type MetricsProvider interface {
	VMMetrics(ctx context.Context, resourceGroup, vmName string) (*VMMetrics, error)
}

// StorageProvider lists resources in a storage container.
type StorageProvider interface {
	ListResources(ctx context.Context, containerName string) ([]BlobResource, error)
}

// StaticMetricsProvider returns representative metric values without
// calling Azure Monitor. Used when no monitoring credentials are
// configured.
type StaticMetricsProvider struct{}

// VMMetrics returns a fixed metrics snapshot stamped with the current time.
func (StaticMetricsProvider) VMMetrics(ctx context.Context, resourceGroup, vmName string) (*VMMetrics, error) {
	return &VMMetrics{
		CPUPercent:      45.2,
		MemoryPercent:   62.1,
		DiskReadBytes:   1024000,
		DiskWriteBytes:  512000,
		NetworkInBytes:  2048000,
		NetworkOutBytes: 1536000,
		Timestamp:       time.Now().UTC(),
	}, nil
}

// BlobStorageProvider lists container blobs via Azure Blob Storage.
type BlobStorageProvider struct {
	client *azblob.Client
}

// NewBlobStorageProvider creates a provider from a storage account
// connection string.
func NewBlobStorageProvider(connectionString string) (*BlobStorageProvider, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}
	return &BlobStorageProvider{client: client}, nil
}

// NewBlobStorageProviderWithIdentity creates a provider authenticating
// with the ambient Azure credential chain (managed identity, CLI, env).
func NewBlobStorageProviderWithIdentity(accountName string) (*BlobStorageProvider, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", accountName)
	client, err := azblob.NewClient(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}
	return &BlobStorageProvider{client: client}, nil
}

// ListResources returns the blobs in containerName. Failures degrade to
// an empty listing: the storage collaborator is best-effort for agents.
func (p *BlobStorageProvider) ListResources(ctx context.Context, containerName string) ([]BlobResource, error) {
	resources := make([]BlobResource, 0)

	pager := p.client.NewListBlobsFlatPager(containerName, nil)
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list blobs in %s: %w", containerName, err)
		}
		for _, item := range resp.Segment.BlobItems {
			resource := BlobResource{}
			if item.Name != nil {
				resource.Name = *item.Name
			}
			if item.Properties != nil {
				if item.Properties.ContentLength != nil {
					resource.Size = *item.Properties.ContentLength
				}
				resource.LastModified = item.Properties.LastModified
			}
			resources = append(resources, resource)
		}
	}

	return resources, nil
}
