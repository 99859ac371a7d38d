package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/truthsource/syncwatch/internal/models"
)

func newPlatformServer(t *testing.T, handler http.HandlerFunc) *PlatformClient {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	client, err := NewPlatformClient(&PlatformConfig{BaseURL: ts.URL, APIToken: "tok-1"})
	if err != nil {
		t.Fatalf("new platform client: %v", err)
	}
	return client
}

func TestPlatformConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{"valid https", "https://platform.internal", false},
		{"valid http", "http://localhost:9000", false},
		{"empty", "", true},
		{"bad scheme", "ftp://platform.internal", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &PlatformConfig{BaseURL: tt.baseURL}
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestActiveIntegrationsFiltersInactive(t *testing.T) {
	client := newPlatformServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/internal/v1/organizations/org-1/integrations" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("authorization = %q", got)
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "int-1", "name": "shopfront", "is_active": true},
			{"id": "int-2", "name": "legacy", "is_active": false},
		})
	})

	ints, err := client.ActiveIntegrations(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("active integrations: %v", err)
	}
	if len(ints) != 1 || ints[0].ID != "int-1" {
		t.Errorf("integrations = %+v, want only int-1", ints)
	}
}

func TestPairsDecodesMissingSynced(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	client := newPlatformServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("entity_type"); got != "product" {
			t.Errorf("entity_type = %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "100" {
			t.Errorf("limit = %q", got)
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{
				"source": map[string]any{
					"entity_id":   "p1",
					"entity_type": "product",
					"fields":      map[string]any{"name": "widget"},
					"updated_at":  now,
				},
				"synced": nil,
			},
		})
	})

	pairs, err := client.Pairs(context.Background(), "int-1", models.EntityProduct, 100)
	if err != nil {
		t.Fatalf("pairs: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("got %d pairs, want 1", len(pairs))
	}
	if pairs[0].Source.EntityID != "p1" || pairs[0].Source.Fields["name"] != "widget" {
		t.Errorf("source = %+v", pairs[0].Source)
	}
	if pairs[0].Synced != nil {
		t.Errorf("synced = %+v, want nil", pairs[0].Synced)
	}
}

func TestRequestSyncAndJobStatus(t *testing.T) {
	client := newPlatformServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/internal/v1/integrations/int-1/sync":
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			if body["entity_id"] != "p1" || body["force_refresh"] != true {
				t.Errorf("sync body = %v", body)
			}
			json.NewEncoder(w).Encode(map[string]string{"job_id": "job-9"})
		case r.Method == http.MethodGet && r.URL.Path == "/internal/v1/sync-jobs/job-9":
			json.NewEncoder(w).Encode(map[string]string{"status": "completed"})
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	jobID, err := client.RequestSync(context.Background(), "int-1", models.EntityInventory, "p1", true)
	if err != nil {
		t.Fatalf("request sync: %v", err)
	}
	if jobID != "job-9" {
		t.Errorf("job id = %q, want job-9", jobID)
	}

	status, err := client.SyncJobStatus(context.Background(), jobID)
	if err != nil {
		t.Fatalf("job status: %v", err)
	}
	if status != SyncJobCompleted {
		t.Errorf("status = %q, want completed", status)
	}
}

func TestSyncJobStatusRejectsUnknown(t *testing.T) {
	client := newPlatformServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "queued"})
	})

	if _, err := client.SyncJobStatus(context.Background(), "job-1"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestFieldReadWrite(t *testing.T) {
	var wrote any
	client := newPlatformServer(t, func(w http.ResponseWriter, r *http.Request) {
		path := "/internal/v1/integrations/int-1/entities/pricing/p1/fields/price"
		if r.URL.Path != path {
			t.Errorf("path = %s", r.URL.Path)
		}
		switch r.Method {
		case http.MethodPut:
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			wrote = body["value"]
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			json.NewEncoder(w).Encode(map[string]any{"value": 19.99})
		}
	})

	ctx := context.Background()
	if err := client.WriteField(ctx, "int-1", models.EntityPricing, "p1", "price", 19.99); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if wrote != 19.99 {
		t.Errorf("wrote = %v, want 19.99", wrote)
	}

	val, err := client.ReadField(ctx, "int-1", models.EntityPricing, "p1", "price")
	if err != nil {
		t.Fatalf("read field: %v", err)
	}
	if val != 19.99 {
		t.Errorf("value = %v, want 19.99", val)
	}
}

func TestPlatformErrorIncludesBody(t *testing.T) {
	client := newPlatformServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "integration suspended", http.StatusForbidden)
	})

	_, err := client.ExpectedRecords(context.Background(), "int-1", models.EntityProduct)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"403", "integration suspended"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}
