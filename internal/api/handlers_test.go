// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hearthlib/hearth/internal/catalog"
	"github.com/hearthlib/hearth/internal/config"
	"github.com/hearthlib/hearth/internal/events"
	"github.com/hearthlib/hearth/internal/ingest"
	"github.com/hearthlib/hearth/internal/logging"
	"github.com/hearthlib/hearth/internal/models"
	"github.com/hearthlib/hearth/internal/organize"
	"github.com/hearthlib/hearth/internal/processor"
)

type fixture struct {
	server  *Server
	store   *catalog.Store
	ts      *httptest.Server
	cfgPath string
	bus     *capturePublisher
}

// capturePublisher records published events for assertions.
type capturePublisher struct {
	events []events.Event
}

func (p *capturePublisher) Publish(ev events.Event) {
	p.events = append(p.events, ev)
}

func newFixture(t *testing.T, authSecret string) *fixture {
	t.Helper()

	ctx := context.Background()
	store, err := catalog.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	root := t.TempDir()
	cfg := &config.Config{
		DatabasePath: ":memory:",
		DataRoot:     root,
		Providers: []config.ProviderConfig{
			{Name: "local-filesystem", Enabled: true, Weight: 1.0},
		},
		Scoring: config.ScoringConfig{
			AutoLinkThreshold: 0.85,
			ConflictThreshold: 0.60,
			ConflictEpsilon:   0.05,
		},
		Watch: config.WatchConfig{Root: filepath.Join(root, "inbox")},
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            0,
			Timeout:         5 * time.Second,
			AuthSecret:      authSecret,
			RateLimitReqs:   0, // disabled in tests
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Organize: config.OrganizeConfig{Template: config.DefaultTemplate, MaxRenameTry: 3},
		Maintenance: config.MaintenanceConfig{
			MaxTransactionLogEntries: 1000,
		},
	}
	if err := os.MkdirAll(cfg.Watch.Root, 0o755); err != nil {
		t.Fatalf("creating inbox: %v", err)
	}

	log := logging.NewTestLogger(io.Discard)
	organizer := organize.New(root, cfg.Organize, log)
	orch := ingest.New(cfg, store, processor.NewRegistry(1), organizer, nil, events.Nop{}, nil, log)

	srv := NewServer(cfg, store, orch, nil, log)
	bus := &capturePublisher{}
	cfgPath := filepath.Join(root, "hearth.json")
	srv.ConfigPath = cfgPath
	srv.Publisher = bus
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	return &fixture{server: srv, store: store, ts: ts, cfgPath: cfgPath, bus: bus}
}

// seedHub creates one hub with one work and a title canonical value.
func (f *fixture) seedHub(t *testing.T, name, title string) *models.Hub {
	t.Helper()

	ctx := context.Background()
	hub := &models.Hub{ID: uuid.New(), DisplayName: name, CreatedAt: time.Now().UTC()}
	if err := f.store.CreateHub(ctx, hub); err != nil {
		t.Fatalf("creating hub: %v", err)
	}

	hid := hub.ID
	work := &models.Work{ID: uuid.New(), HubID: &hid, MediaType: models.MediaTypeEpub, CreatedAt: time.Now().UTC()}
	if err := f.store.CreateWork(ctx, work); err != nil {
		t.Fatalf("creating work: %v", err)
	}
	if err := f.store.UpsertCanonical(ctx, work.ID, "title", title, time.Now().UTC()); err != nil {
		t.Fatalf("upserting canonical: %v", err)
	}
	hub.Works = append(hub.Works, work)
	return hub
}

func decodeResponse(t *testing.T, resp *http.Response) APIResponse {
	t.Helper()
	defer resp.Body.Close()

	var out APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return out
}

func TestSystemStatusPublic(t *testing.T) {
	f := newFixture(t, "topsecret") // auth enabled, status must stay public

	resp, err := http.Get(f.ts.URL + "/api/v1/system/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d, want 200", resp.StatusCode)
	}

	out := decodeResponse(t, resp)
	data, ok := out.Data.(map[string]any)
	if !ok {
		t.Fatalf("data type = %T, want map", out.Data)
	}
	if data["status"] != "ok" {
		t.Fatalf("status = %v, want ok", data["status"])
	}
	if data["version"] == "" {
		t.Fatal("version missing from status")
	}
}

func TestListHubs(t *testing.T) {
	f := newFixture(t, "")
	f.seedHub(t, "Dune", "Dune")
	f.seedHub(t, "Hyperion", "Hyperion")

	resp, err := http.Get(f.ts.URL + "/api/v1/hubs")
	if err != nil {
		t.Fatalf("GET hubs: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d, want 200", resp.StatusCode)
	}
	defer resp.Body.Close()

	var out struct {
		Success bool     `json:"success"`
		Data    []hubDTO `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(out.Data) != 2 {
		t.Fatalf("hub count = %d, want 2", len(out.Data))
	}

	dune := out.Data[0]
	if dune.DisplayName != "Dune" {
		t.Fatalf("first hub = %q, want Dune (creation order)", dune.DisplayName)
	}
	if len(dune.Works) != 1 {
		t.Fatalf("work count = %d, want 1", len(dune.Works))
	}
	if dune.Works[0].MediaType != "Epub" {
		t.Fatalf("media type = %q, want Epub", dune.Works[0].MediaType)
	}
	if len(dune.Works[0].CanonicalValues) != 1 || dune.Works[0].CanonicalValues[0].Value != "Dune" {
		t.Fatalf("canonical values = %+v, want title=Dune", dune.Works[0].CanonicalValues)
	}
}

func TestSearchHubs(t *testing.T) {
	f := newFixture(t, "")
	f.seedHub(t, "Dune", "Dune")
	f.seedHub(t, "Dune Messiah", "Dune Messiah")
	f.seedHub(t, "Hyperion", "Hyperion")

	resp, err := http.Get(f.ts.URL + "/api/v1/hubs/search?q=dune")
	if err != nil {
		t.Fatalf("GET search: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d, want 200", resp.StatusCode)
	}
	defer resp.Body.Close()

	var out struct {
		Data []hubDTO `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(out.Data) != 2 {
		t.Fatalf("result count = %d, want 2", len(out.Data))
	}
	// Shortest match first.
	if out.Data[0].DisplayName != "Dune" {
		t.Fatalf("first result = %q, want Dune", out.Data[0].DisplayName)
	}
}

func TestSearchHubsRejectsShortQuery(t *testing.T) {
	f := newFixture(t, "")

	resp, err := http.Get(f.ts.URL + "/api/v1/hubs/search?q=d")
	if err != nil {
		t.Fatalf("GET search: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status code = %d, want 400", resp.StatusCode)
	}
	out := decodeResponse(t, resp)
	if out.Success || out.Error == nil || out.Error.Code != ErrCodeBadRequest {
		t.Fatalf("error = %+v, want BAD_REQUEST", out.Error)
	}
}

func TestScanDryRunReportsNewPaths(t *testing.T) {
	f := newFixture(t, "")

	inbox := f.server.cfg.Watch.Root
	if err := os.WriteFile(filepath.Join(inbox, "fresh.epub"), []byte("fresh content"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	resp, err := http.Post(f.ts.URL+"/api/v1/ingestion/scan", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST scan: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d, want 200", resp.StatusCode)
	}
	defer resp.Body.Close()

	var out struct {
		Data ingest.ScanStats `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if out.Data.FilesSeen != 1 || len(out.Data.NewPaths) != 1 {
		t.Fatalf("stats = %+v, want 1 seen, 1 new", out.Data)
	}
}

func TestResolveMetadataUpsertsCanonical(t *testing.T) {
	f := newFixture(t, "")
	hub := f.seedHub(t, "Dune", "Dnue")
	workID := hub.Works[0].ID

	body, _ := json.Marshal(resolveRequest{
		EntityID: workID.String(),
		Key:      "title",
		Value:    "Dune",
	})
	req, _ := http.NewRequest(http.MethodPatch, f.ts.URL+"/api/v1/metadata/resolve", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PATCH resolve: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()

	values, err := f.store.ListCanonical(context.Background(), workID)
	if err != nil {
		t.Fatalf("listing canonical: %v", err)
	}
	if len(values) != 1 || values[0].Value != "Dune" {
		t.Fatalf("canonical = %+v, want title=Dune", values)
	}
}

func TestResolveMetadataValidation(t *testing.T) {
	f := newFixture(t, "")

	for _, body := range []string{
		`{"entity_id":"not-a-uuid","key":"title","value":"x"}`,
		`{"entity_id":"` + uuid.NewString() + `","key":"","value":"x"}`,
		`{not json`,
	} {
		req, _ := http.NewRequest(http.MethodPatch, f.ts.URL+"/api/v1/metadata/resolve", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("PATCH resolve: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestLockClaimWinsRescore(t *testing.T) {
	f := newFixture(t, "")
	hub := f.seedHub(t, "Dune", "Dune")
	workID := hub.Works[0].ID

	// A pre-existing provider claim that would otherwise win.
	err := f.store.AppendClaim(context.Background(), &models.MetadataClaim{
		ID:         uuid.New(),
		EntityID:   workID,
		EntityType: models.EntityTypeWork,
		ProviderID: "local-filesystem",
		Key:        "title",
		Value:      "Dune",
		Confidence: 1.0,
		ClaimedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("appending claim: %v", err)
	}

	body, _ := json.Marshal(lockClaimRequest{
		EntityID:   workID.String(),
		EntityType: "work",
		Key:        "title",
		Value:      "Dune (Special Edition)",
	})
	req, _ := http.NewRequest(http.MethodPatch, f.ts.URL+"/api/v1/metadata/lock-claim", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PATCH lock-claim: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()

	claims, err := f.store.ListClaims(context.Background(), workID)
	if err != nil {
		t.Fatalf("listing claims: %v", err)
	}
	var locked *models.MetadataClaim
	for i := range claims {
		if claims[i].IsUserLocked {
			locked = &claims[i]
		}
	}
	if locked == nil {
		t.Fatal("no user-locked claim recorded")
	}
	if locked.Confidence != 1.0 || locked.ProviderID != "user" {
		t.Fatalf("locked claim = %+v, want confidence 1.0 from user", locked)
	}

	values, err := f.store.ListCanonical(context.Background(), workID)
	if err != nil {
		t.Fatalf("listing canonical: %v", err)
	}
	var title string
	for _, cv := range values {
		if cv.Key == "title" {
			title = cv.Value
		}
	}
	if title != "Dune (Special Edition)" {
		t.Fatalf("canonical title = %q, want locked value", title)
	}
}

func TestAuthRequiredWhenSecretSet(t *testing.T) {
	const secret = "unit-test-secret"
	f := newFixture(t, secret)

	// No token: rejected.
	resp, err := http.Get(f.ts.URL + "/api/v1/hubs")
	if err != nil {
		t.Fatalf("GET hubs: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want 401", resp.StatusCode)
	}

	// Garbage token: rejected.
	req, _ := http.NewRequest(http.MethodGet, f.ts.URL+"/api/v1/hubs", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET hubs: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status with bad token = %d, want 401", resp.StatusCode)
	}

	// Signed token: accepted.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "hearth",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	req, _ = http.NewRequest(http.MethodGet, f.ts.URL+"/api/v1/hubs", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET hubs: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status with valid token = %d, want 200", resp.StatusCode)
	}
}

func TestMetricsEndpointPublic(t *testing.T) {
	f := newFixture(t, "secret")

	resp, err := http.Get(f.ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "hearth_") {
		t.Fatal("metrics output missing hearth collectors")
	}
}

// validConfigDoc builds a document that passes config validation.
func validConfigDoc(root string) *config.Config {
	return &config.Config{
		SchemaVersion: 1,
		DatabasePath:  filepath.Join(root, "hearth.db"),
		DataRoot:      filepath.Join(root, "library"),
		Providers: []config.ProviderConfig{
			{Name: "local-filesystem", Enabled: true, Weight: 1.0},
		},
		Scoring: config.ScoringConfig{
			AutoLinkThreshold: 0.85,
			ConflictThreshold: 0.60,
			ConflictEpsilon:   0.05,
		},
		Watch: config.WatchConfig{
			Root:             filepath.Join(root, "inbox"),
			SettleDelay:      time.Second,
			ProbeInterval:    100 * time.Millisecond,
			MaxProbeDelay:    time.Second,
			MaxProbeAttempts: 3,
			QueueCapacity:    16,
		},
		Worker: config.WorkerConfig{Concurrency: 1, QueueCapacity: 16},
		Server: config.ServerConfig{
			Host:    "127.0.0.1",
			Port:    4130,
			Timeout: 5 * time.Second,
		},
		Organize:    config.OrganizeConfig{Template: config.DefaultTemplate, MaxRenameTry: 3},
		Maintenance: config.MaintenanceConfig{MaxTransactionLogEntries: 1000},
	}
}

func TestUpdateConfigPersistsAndBroadcasts(t *testing.T) {
	f := newFixture(t, "")

	doc := validConfigDoc(t.TempDir())
	body, _ := json.Marshal(doc)

	req, _ := http.NewRequest(http.MethodPut, f.ts.URL+"/api/v1/system/config", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT config: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d, want 200", resp.StatusCode)
	}

	raw, err := os.ReadFile(f.cfgPath)
	if err != nil {
		t.Fatalf("reading persisted config: %v", err)
	}
	var persisted config.Config
	if err := json.Unmarshal(raw, &persisted); err != nil {
		t.Fatalf("persisted config is not JSON: %v", err)
	}
	if persisted.DataRoot != doc.DataRoot {
		t.Errorf("data_root = %q, want %q", persisted.DataRoot, doc.DataRoot)
	}

	if len(f.bus.events) != 1 || f.bus.events[0].Name != models.EventConfigChanged {
		t.Fatalf("published events = %+v, want one CONFIG_CHANGED", f.bus.events)
	}
}

func TestUpdateConfigRotatesBackup(t *testing.T) {
	f := newFixture(t, "")
	doc := validConfigDoc(t.TempDir())

	for i := 0; i < 2; i++ {
		body, _ := json.Marshal(doc)
		req, _ := http.NewRequest(http.MethodPut, f.ts.URL+"/api/v1/system/config", strings.NewReader(string(body)))
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("PUT config: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status code = %d, want 200", resp.StatusCode)
		}
	}

	if _, err := os.Stat(f.cfgPath + ".bak"); err != nil {
		t.Fatalf("backup not rotated: %v", err)
	}
}

func TestUpdateConfigRejectsInvalidDocument(t *testing.T) {
	f := newFixture(t, "")

	doc := validConfigDoc(t.TempDir())
	doc.Scoring.ConflictThreshold = 0.9 // above auto-link threshold
	body, _ := json.Marshal(doc)

	req, _ := http.NewRequest(http.MethodPut, f.ts.URL+"/api/v1/system/config", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT config: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status code = %d, want 400", resp.StatusCode)
	}
	if _, err := os.Stat(f.cfgPath); !os.IsNotExist(err) {
		t.Fatal("invalid config was persisted")
	}
}
