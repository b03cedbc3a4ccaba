// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package enrich

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/hearthlib/hearth/internal/models"
)

const (
	defaultFetchTimeout = 10 * time.Second

	// maxResponseBytes caps how much of a provider response is read.
	maxResponseBytes = 1 << 20
)

// lookupRequest is the wire form of an enrichment query.
type lookupRequest struct {
	EntityID   uuid.UUID         `json:"entity_id"`
	EntityType string            `json:"entity_type"`
	MediaType  string            `json:"media_type"`
	Canonical  map[string]string `json:"canonical"`
}

// lookupResponse carries the provider's claims back.
type lookupResponse struct {
	Claims []struct {
		Key        string  `json:"key"`
		Value      string  `json:"value"`
		Confidence float64 `json:"confidence"`
	} `json:"claims"`
}

// HTTPClient queries a remote metadata provider over its lookup
// endpoint. It is registered with the dispatcher, which supplies the
// breaker and rate limiter.
type HTTPClient struct {
	provider string
	endpoint string
	http     *http.Client
}

// NewHTTPClient builds a client for one configured provider endpoint.
// A non-positive timeout defaults to 10s.
func NewHTTPClient(provider, endpoint string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &HTTPClient{
		provider: provider,
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

// Provider implements Client.
func (c *HTTPClient) Provider() string { return c.provider }

// Fetch implements Client. It POSTs the entity's canonical values to
// the endpoint and maps the returned claims onto the entity. Claims
// with confidence outside [0,1] are clamped.
func (c *HTTPClient) Fetch(ctx context.Context, req Request) ([]models.MetadataClaim, error) {
	body, err := json.Marshal(lookupRequest{
		EntityID:   req.EntityID,
		EntityType: string(req.EntityType),
		MediaType:  req.MediaType.String(),
		Canonical:  req.Canonical,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding lookup request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building lookup request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", c.provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider %s returned %s", c.provider, resp.Status)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", c.provider, err)
	}

	var decoded lookupResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", c.provider, err)
	}

	now := time.Now().UTC()
	claims := make([]models.MetadataClaim, 0, len(decoded.Claims))
	for _, cl := range decoded.Claims {
		if cl.Key == "" || cl.Value == "" {
			continue
		}
		conf := cl.Confidence
		if conf < 0 {
			conf = 0
		}
		if conf > 1 {
			conf = 1
		}
		claims = append(claims, models.MetadataClaim{
			ID:         uuid.New(),
			EntityID:   req.EntityID,
			EntityType: req.EntityType,
			ProviderID: c.provider,
			Key:        cl.Key,
			Value:      cl.Value,
			Confidence: conf,
			ClaimedAt:  now,
		})
	}
	return claims, nil
}
