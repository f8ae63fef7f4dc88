// Package storage talks to the Walrus decentralized blob store over its
// publisher/aggregator HTTP API.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// StoreResult identifies a blob persisted to the storage network.
type StoreResult struct {
	// BlobID is the content-derived identifier of the blob.
	BlobID string
	// ObjectID is the on-chain object backing the blob, empty when the
	// blob was already certified by an earlier upload.
	ObjectID string
	// EndEpoch is the storage epoch after which the blob may be dropped.
	EndEpoch uint64
	// AlreadyCertified is true when the network deduplicated the write.
	AlreadyCertified bool
}

// BlobStore is the narrow interface the upload pipeline depends on.
type BlobStore interface {
	// Store persists data remotely and returns its identifiers.
	Store(ctx context.Context, data []byte) (*StoreResult, error)
	// Read streams a blob back by its content identifier.
	Read(ctx context.Context, blobID string) (io.ReadCloser, error)
}

// WalrusClient implements BlobStore against a Walrus publisher (writes)
// and aggregator (reads).
type WalrusClient struct {
	publisherURL  string
	aggregatorURL string
	epochs        int
	client        *http.Client
}

// NewWalrusClient creates a client for the given publisher and aggregator
// endpoints. epochs is how many storage epochs each blob is paid for.
func NewWalrusClient(publisherURL, aggregatorURL string, epochs int) *WalrusClient {
	if epochs <= 0 {
		epochs = 1
	}
	return &WalrusClient{
		publisherURL:  strings.TrimSuffix(publisherURL, "/"),
		aggregatorURL: strings.TrimSuffix(aggregatorURL, "/"),
		epochs:        epochs,
		client: &http.Client{
			Timeout: 5 * time.Minute, // blob writes fan out across the storage network
		},
	}
}

// storeResponse mirrors the publisher's PUT /v1/blobs response. Exactly
// one of the two branches is present.
type storeResponse struct {
	NewlyCreated *struct {
		BlobObject struct {
			ID     string `json:"id"`
			BlobID string `json:"blobId"`
			Storage struct {
				EndEpoch uint64 `json:"endEpoch"`
			} `json:"storage"`
		} `json:"blobObject"`
		Cost uint64 `json:"cost"`
	} `json:"newlyCreated"`
	AlreadyCertified *struct {
		BlobID   string `json:"blobId"`
		EndEpoch uint64 `json:"endEpoch"`
	} `json:"alreadyCertified"`
}

func (c *WalrusClient) Store(ctx context.Context, data []byte) (*StoreResult, error) {
	url := fmt.Sprintf("%s/v1/blobs?epochs=%d", c.publisherURL, c.epochs)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to build store request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("publisher request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("publisher returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed storeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse publisher response: %w", err)
	}

	switch {
	case parsed.NewlyCreated != nil:
		return &StoreResult{
			BlobID:   parsed.NewlyCreated.BlobObject.BlobID,
			ObjectID: parsed.NewlyCreated.BlobObject.ID,
			EndEpoch: parsed.NewlyCreated.BlobObject.Storage.EndEpoch,
		}, nil
	case parsed.AlreadyCertified != nil:
		return &StoreResult{
			BlobID:           parsed.AlreadyCertified.BlobID,
			EndEpoch:         parsed.AlreadyCertified.EndEpoch,
			AlreadyCertified: true,
		}, nil
	default:
		return nil, fmt.Errorf("publisher response carried no blob identifiers")
	}
}

func (c *WalrusClient) Read(ctx context.Context, blobID string) (io.ReadCloser, error) {
	url := fmt.Sprintf("%s/v1/blobs/%s", c.aggregatorURL, blobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build read request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("aggregator request failed: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, fmt.Errorf("blob %s not found", blobID)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("aggregator returned %d", resp.StatusCode)
	}
	return resp.Body, nil
}
