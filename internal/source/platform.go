package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/truthsource/syncwatch/internal/models"
)

// PlatformConfig configures the client for the sync platform's internal
// API, which serves record pairs and accepts sync requests.
type PlatformConfig struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
}

// Validate checks the platform configuration.
func (c *PlatformConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("platform base URL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid platform base URL %q", c.BaseURL)
	}
	return nil
}

// PlatformClient implements DiffSource, SyncTrigger, and FieldStore over
// the platform's internal REST API.
type PlatformClient struct {
	config *PlatformConfig
	client *http.Client
}

// NewPlatformClient creates a platform API client.
func NewPlatformClient(cfg *PlatformConfig) (*PlatformClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &PlatformClient{
		config: cfg,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Wire shapes of the internal API.

type integrationPayload struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

type recordPayload struct {
	EntityID     string         `json:"entity_id"`
	EntityType   string         `json:"entity_type"`
	Fields       map[string]any `json:"fields"`
	UpdatedAt    time.Time      `json:"updated_at"`
	LastSyncedAt time.Time      `json:"last_synced_at"`
}

type pairPayload struct {
	Source *recordPayload `json:"source"`
	Synced *recordPayload `json:"synced"`
}

func (p *recordPayload) toRecord() *Record {
	if p == nil {
		return nil
	}
	return &Record{
		EntityID:     p.EntityID,
		EntityType:   models.EntityType(p.EntityType),
		Fields:       p.Fields,
		UpdatedAt:    p.UpdatedAt,
		LastSyncedAt: p.LastSyncedAt,
	}
}

// ActiveIntegrations lists active integrations for an organization.
func (c *PlatformClient) ActiveIntegrations(ctx context.Context, organizationID string) ([]Integration, error) {
	var payload []integrationPayload
	path := fmt.Sprintf("/internal/v1/organizations/%s/integrations", url.PathEscape(organizationID))
	if err := c.get(ctx, path, nil, &payload); err != nil {
		return nil, err
	}

	var out []Integration
	for _, in := range payload {
		if !in.IsActive {
			continue
		}
		out = append(out, Integration{ID: in.ID, Name: in.Name, IsActive: true})
	}
	return out, nil
}

// Pairs returns up to limit paired records for the integration and entity
// family.
func (c *PlatformClient) Pairs(ctx context.Context, integrationID string, entityType models.EntityType, limit int) ([]Pair, error) {
	var payload []pairPayload
	path := fmt.Sprintf("/internal/v1/integrations/%s/pairs", url.PathEscape(integrationID))
	q := url.Values{
		"entity_type": {string(entityType)},
		"limit":       {fmt.Sprint(limit)},
	}
	if err := c.get(ctx, path, q, &payload); err != nil {
		return nil, err
	}

	pairs := make([]Pair, 0, len(payload))
	for _, p := range payload {
		if p.Source == nil {
			continue
		}
		pairs = append(pairs, Pair{Source: p.Source.toRecord(), Synced: p.Synced.toRecord()})
	}
	return pairs, nil
}

// ExpectedRecords estimates the record count for progress reporting.
func (c *PlatformClient) ExpectedRecords(ctx context.Context, integrationID string, entityType models.EntityType) (int, error) {
	var payload struct {
		Count int `json:"count"`
	}
	path := fmt.Sprintf("/internal/v1/integrations/%s/record-count", url.PathEscape(integrationID))
	q := url.Values{"entity_type": {string(entityType)}}
	if err := c.get(ctx, path, q, &payload); err != nil {
		return 0, err
	}
	return payload.Count, nil
}

// RecentTransactionDelta sums transaction-driven quantity changes for the
// entity field since the given time.
func (c *PlatformClient) RecentTransactionDelta(ctx context.Context, integrationID, entityID, fieldName string, since time.Time) (float64, error) {
	var payload struct {
		Delta float64 `json:"delta"`
	}
	path := fmt.Sprintf("/internal/v1/integrations/%s/transaction-delta", url.PathEscape(integrationID))
	q := url.Values{
		"entity_id": {entityID},
		"field":     {fieldName},
		"since":     {since.UTC().Format(time.RFC3339)},
	}
	if err := c.get(ctx, path, q, &payload); err != nil {
		return 0, err
	}
	return payload.Delta, nil
}

// RequestSync asks the platform to resync one entity.
func (c *PlatformClient) RequestSync(ctx context.Context, integrationID string, entityType models.EntityType, entityID string, forceRefresh bool) (string, error) {
	body := map[string]any{
		"entity_type":   string(entityType),
		"entity_id":     entityID,
		"force_refresh": forceRefresh,
	}
	var payload struct {
		JobID string `json:"job_id"`
	}
	path := fmt.Sprintf("/internal/v1/integrations/%s/sync", url.PathEscape(integrationID))
	if err := c.do(ctx, http.MethodPost, path, nil, body, &payload); err != nil {
		return "", err
	}
	if payload.JobID == "" {
		return "", fmt.Errorf("platform returned no job id")
	}
	return payload.JobID, nil
}

// SyncJobStatus reports the state of a requested sync job.
func (c *PlatformClient) SyncJobStatus(ctx context.Context, jobID string) (SyncJobStatus, error) {
	var payload struct {
		Status string `json:"status"`
	}
	path := fmt.Sprintf("/internal/v1/sync-jobs/%s", url.PathEscape(jobID))
	if err := c.get(ctx, path, nil, &payload); err != nil {
		return "", err
	}

	switch s := SyncJobStatus(payload.Status); s {
	case SyncJobPending, SyncJobCompleted, SyncJobFailed:
		return s, nil
	default:
		return "", fmt.Errorf("unknown sync job status %q", payload.Status)
	}
}

// ReadField reads one entity field from the downstream system.
func (c *PlatformClient) ReadField(ctx context.Context, integrationID string, entityType models.EntityType, entityID, fieldName string) (any, error) {
	var payload struct {
		Value any `json:"value"`
	}
	if err := c.get(ctx, c.fieldPath(integrationID, entityType, entityID, fieldName), nil, &payload); err != nil {
		return nil, err
	}
	return payload.Value, nil
}

// WriteField writes one entity field in the downstream system.
func (c *PlatformClient) WriteField(ctx context.Context, integrationID string, entityType models.EntityType, entityID, fieldName string, value any) error {
	body := map[string]any{"value": value}
	return c.do(ctx, http.MethodPut, c.fieldPath(integrationID, entityType, entityID, fieldName), nil, body, nil)
}

// ClearCache invalidates derived caches for the entity.
func (c *PlatformClient) ClearCache(ctx context.Context, integrationID string, entityType models.EntityType, entityID string) error {
	path := fmt.Sprintf("/internal/v1/integrations/%s/entities/%s/%s/cache",
		url.PathEscape(integrationID), url.PathEscape(string(entityType)), url.PathEscape(entityID))
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

func (c *PlatformClient) fieldPath(integrationID string, entityType models.EntityType, entityID, fieldName string) string {
	return fmt.Sprintf("/internal/v1/integrations/%s/entities/%s/%s/fields/%s",
		url.PathEscape(integrationID), url.PathEscape(string(entityType)),
		url.PathEscape(entityID), url.PathEscape(fieldName))
}

func (c *PlatformClient) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *PlatformClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := strings.TrimRight(c.config.BaseURL, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("platform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("platform returned %d for %s %s: %s", resp.StatusCode, method, path, strings.TrimSpace(string(snippet)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
