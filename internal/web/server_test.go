package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/zone-monitor/internal/parse"
	"github.com/sweeney/zone-monitor/internal/status"
	"github.com/sweeney/zone-monitor/internal/zones"
)

func fptr(v float64) *float64 {
	return &v
}

type testFixture struct {
	ts      *httptest.Server
	tracker *status.Tracker
	store   *zones.Store
	views   *Views
	cleared []int
	loaded  []string
}

func newTestFixture(t *testing.T) *testFixture {
	t.Helper()
	fx := &testFixture{}

	fx.store = zones.New()
	fx.views = NewViews(fx.store)
	fx.store.OnCreate(fx.views.Ensure)
	fx.store.Seed(1, 2)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fx.tracker = status.NewTracker(start, status.Config{
		PollMs:       800,
		LogDir:       "./logs",
		DefaultZones: []int{1, 2},
		Broker:       "tcp://192.168.1.200:1883",
		HTTPAddr:     ":8617",
	})

	ops := Ops{
		ClearTrace: func(zone int) error {
			fx.cleared = append(fx.cleared, zone)
			return nil
		},
		LoadLog: func(path string) error {
			fx.loaded = append(fx.loaded, path)
			return nil
		},
	}
	srv := New(":0", fx.tracker, fx.views, ops)
	fx.ts = httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(fx.ts.Close)
	return fx
}

// feedZone1 applies two samples and refreshes the zone 1 view the way
// the poll loop would.
func (fx *testFixture) feedZone1() {
	t0 := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	fx.store.ApplyTelemetry(parse.Telemetry{
		Zone: 1, When: t0, HasTime: true,
		PV: fptr(72.5), SPAbs: fptr(75.0), OutputPct: fptr(40.0),
		Method: "PID", Mode: "AUTO",
	})
	fx.store.ApplyTelemetry(parse.Telemetry{
		Zone: 1, When: t0.Add(10 * time.Second), HasTime: true,
		PV: fptr(73.1), SPAbs: fptr(75.0), OutputPct: fptr(38.0),
		Method: "PID", Mode: "AUTO",
	})
	if v, ok := fx.views.Get(1); ok {
		v.Refresh()
	}
}

func TestStatusJSONEndpoint(t *testing.T) {
	fx := newTestFixture(t)
	fx.tracker.SetLog("/logs/cn616a_log_001.jsonl", 40, 36)
	fx.tracker.SetMessage("Opened: cn616a_log_001.jsonl | lines=40 telemetry=36")
	fx.tracker.SetZoneCount(2)
	fx.tracker.TickOK()
	fx.tracker.TickError()

	resp, err := http.Get(fx.ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if sj.Status.Log != "/logs/cn616a_log_001.jsonl" {
		t.Errorf("Log: got %q", sj.Status.Log)
	}
	if !sj.Status.Loaded {
		t.Error("expected Loaded=true")
	}
	if sj.Status.Lines != 40 || sj.Status.Telemetry != 36 {
		t.Errorf("counts: got lines=%d telemetry=%d, want 40/36", sj.Status.Lines, sj.Status.Telemetry)
	}
	if sj.Status.Zones != 2 {
		t.Errorf("Zones: got %d, want 2", sj.Status.Zones)
	}
	if sj.Status.Ticks != 2 || sj.Status.TickErrors != 1 {
		t.Errorf("ticks: got %d/%d, want 2/1", sj.Status.Ticks, sj.Status.TickErrors)
	}
	if sj.Status.Config.PollMs != 800 {
		t.Errorf("Config.PollMs: got %d, want 800", sj.Status.Config.PollMs)
	}
}

func TestZoneListEndpoint(t *testing.T) {
	fx := newTestFixture(t)
	fx.feedZone1()

	resp, err := http.Get(fx.ts.URL + "/zones.json")
	if err != nil {
		t.Fatalf("GET /zones.json: %v", err)
	}
	defer resp.Body.Close()

	var list ZoneListJSON
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if len(list.Zones) != 2 {
		t.Fatalf("zones: got %d, want 2", len(list.Zones))
	}
	if list.Zones[0].Zone != 1 || list.Zones[1].Zone != 2 {
		t.Errorf("zone order: got %d,%d, want 1,2", list.Zones[0].Zone, list.Zones[1].Zone)
	}
	if list.Zones[0].Points != 2 {
		t.Errorf("zone 1 points: got %d, want 2", list.Zones[0].Points)
	}
	if list.Zones[0].PV == nil || *list.Zones[0].PV != 73.1 {
		t.Errorf("zone 1 pv: got %v, want 73.1", list.Zones[0].PV)
	}
	// Zone 2 never saw data; its readings stay null.
	if list.Zones[1].PV != nil {
		t.Errorf("zone 2 pv: got %v, want null", *list.Zones[1].PV)
	}
}

func TestSeriesEndpoint(t *testing.T) {
	fx := newTestFixture(t)
	fx.feedZone1()

	resp, err := http.Get(fx.ts.URL + "/zones/1/series.json")
	if err != nil {
		t.Fatalf("GET series: %v", err)
	}
	defer resp.Body.Close()

	var sj SeriesJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if sj.Zone != 1 {
		t.Errorf("zone: got %d, want 1", sj.Zone)
	}
	if len(sj.Points) != 2 {
		t.Fatalf("points: got %d, want 2", len(sj.Points))
	}
	if sj.Points[0].PV != 72.5 || sj.Points[1].PV != 73.1 {
		t.Errorf("pv order: got %.1f,%.1f, want 72.5,73.1", sj.Points[0].PV, sj.Points[1].PV)
	}
	if sj.Points[0].EpochS >= sj.Points[1].EpochS {
		t.Errorf("epoch order: %v then %v", sj.Points[0].EpochS, sj.Points[1].EpochS)
	}
}

func TestSeriesEmptyForSeededZone(t *testing.T) {
	fx := newTestFixture(t)

	resp, err := http.Get(fx.ts.URL + "/zones/2/series.json")
	if err != nil {
		t.Fatalf("GET series: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	var sj SeriesJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if len(sj.Points) != 0 {
		t.Errorf("points: got %d, want 0", len(sj.Points))
	}
}

func TestSnapshotEndpoint(t *testing.T) {
	fx := newTestFixture(t)
	fx.feedZone1()

	resp, err := http.Get(fx.ts.URL + "/zones/1/status.json")
	if err != nil {
		t.Fatalf("GET snapshot: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var sj SnapshotJSON
	if err := json.Unmarshal(body, &sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if sj.PV == nil || *sj.PV != 73.1 {
		t.Errorf("pv: got %v, want 73.1", sj.PV)
	}
	if sj.Method != "PID" || sj.Mode != "AUTO" {
		t.Errorf("method/mode: got %q/%q", sj.Method, sj.Mode)
	}
	if sj.Points != 2 {
		t.Errorf("points: got %d, want 2", sj.Points)
	}
	// The autotune setpoint was never reported; the wire shows null.
	if !strings.Contains(string(body), `"autotune_sp_c": null`) {
		t.Errorf("expected null autotune_sp_c, body: %s", body)
	}
}

func TestUnknownZoneIs404(t *testing.T) {
	fx := newTestFixture(t)

	for _, path := range []string{"/zones/9/series.json", "/zones/9/status.json"} {
		resp, err := http.Get(fx.ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != 404 {
			t.Errorf("%s: status got %d, want 404", path, resp.StatusCode)
		}
	}

	resp, err := http.Post(fx.ts.URL+"/zones/9/clear", "", nil)
	if err != nil {
		t.Fatalf("POST clear: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Errorf("clear unknown zone: status got %d, want 404", resp.StatusCode)
	}
	if len(fx.cleared) != 0 {
		t.Errorf("clear callback ran for unknown zone: %v", fx.cleared)
	}
}

func TestClearTraceEndpoint(t *testing.T) {
	fx := newTestFixture(t)
	fx.feedZone1()

	req, _ := http.NewRequest(http.MethodPost, fx.ts.URL+"/zones/1/clear", nil)
	req.Header.Set("Accept", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST clear: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if len(fx.cleared) != 1 || fx.cleared[0] != 1 {
		t.Errorf("cleared zones: got %v, want [1]", fx.cleared)
	}
}

func TestLoadEndpoint(t *testing.T) {
	fx := newTestFixture(t)

	form := url.Values{"path": {"/logs/cn616a_log_002.jsonl"}}
	req, _ := http.NewRequest(http.MethodPost, fx.ts.URL+"/load",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST load: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if len(fx.loaded) != 1 || fx.loaded[0] != "/logs/cn616a_log_002.jsonl" {
		t.Errorf("loaded paths: got %v", fx.loaded)
	}
}

func TestLoadEndpointMissingPath(t *testing.T) {
	fx := newTestFixture(t)

	resp, err := http.Post(fx.ts.URL+"/load", "application/x-www-form-urlencoded", strings.NewReader(""))
	if err != nil {
		t.Fatalf("POST load: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 400 {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
	if len(fx.loaded) != 0 {
		t.Errorf("load callback ran without a path: %v", fx.loaded)
	}
}

func TestMutationsUnavailableWithoutOps(t *testing.T) {
	store := zones.New()
	views := NewViews(store)
	store.OnCreate(views.Ensure)
	store.Seed(1)
	tracker := status.NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), status.Config{})
	srv := New(":0", tracker, views, Ops{})
	ts := httptest.NewServer(srv.httpServer.Handler)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/zones/1/clear", "", nil)
	if err != nil {
		t.Fatalf("POST clear: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 503 {
		t.Errorf("clear: status got %d, want 503", resp.StatusCode)
	}

	resp, err = http.Post(ts.URL+"/load", "", nil)
	if err != nil {
		t.Fatalf("POST load: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 503 {
		t.Errorf("load: status got %d, want 503", resp.StatusCode)
	}
}

func TestIndexHTML(t *testing.T) {
	fx := newTestFixture(t)
	fx.feedZone1()
	fx.tracker.SetLog("/logs/cn616a_log_001.jsonl", 2, 2)

	resp, err := http.Get(fx.ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	html := string(body)

	if !strings.Contains(html, "Zone Monitor") {
		t.Error("missing page title")
	}
	if !strings.Contains(html, "cn616a_log_001.jsonl") {
		t.Error("missing loaded log path")
	}
	if !strings.Contains(html, "73.1") {
		t.Error("missing zone 1 pv")
	}
	// Zone 2 has no data yet; its readings render as the placeholder.
	if !strings.Contains(html, parse.Placeholder) {
		t.Error("missing placeholder for unreported readings")
	}
	if !strings.Contains(html, `action="/zones/1/clear"`) {
		t.Error("missing clear-plot form")
	}
	if !strings.Contains(html, `action="/load"`) {
		t.Error("missing open-log form")
	}
}

func TestHealthEndpoint(t *testing.T) {
	fx := newTestFixture(t)

	resp, err := http.Get(fx.ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if strings.TrimSpace(string(body)) != "ok" {
		t.Errorf("body: got %q, want ok", body)
	}
}

func TestViewRefreshCopiesState(t *testing.T) {
	store := zones.New()
	views := NewViews(store)
	store.OnCreate(views.Ensure)

	t0 := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	store.ApplyTelemetry(parse.Telemetry{
		Zone: 3, When: t0, HasTime: true, PV: fptr(50.0),
		Method: "PID", Mode: "AUTO",
	})

	v, ok := views.Get(3)
	if !ok {
		t.Fatal("view for zone 3 was not created")
	}
	// Before the first refresh the view is empty even though the store
	// has data; the copy happens only on Refresh.
	if len(v.Series()) != 0 {
		t.Errorf("series before refresh: got %d points, want 0", len(v.Series()))
	}

	v.Refresh()
	if len(v.Series()) != 1 {
		t.Fatalf("series after refresh: got %d points, want 1", len(v.Series()))
	}
	if snap := v.Snapshot(); snap.PV == nil || *snap.PV != 50.0 {
		t.Errorf("snapshot pv: got %v, want 50.0", snap.PV)
	}

	// Later store mutations are invisible until the next refresh.
	store.ApplyTelemetry(parse.Telemetry{
		Zone: 3, When: t0.Add(time.Second), HasTime: true, PV: fptr(51.0),
		Method: "PID", Mode: "AUTO",
	})
	if len(v.Series()) != 1 {
		t.Errorf("series without refresh: got %d points, want 1", len(v.Series()))
	}
	v.Refresh()
	if len(v.Series()) != 2 {
		t.Errorf("series after second refresh: got %d points, want 2", len(v.Series()))
	}
}
