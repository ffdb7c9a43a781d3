package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/audit-sync-monitor/internal/ledger"
	"github.com/PratikDhanave/audit-sync-monitor/internal/models"
	"github.com/PratikDhanave/audit-sync-monitor/internal/remote"
	"github.com/PratikDhanave/audit-sync-monitor/internal/scheduler"
	"github.com/PratikDhanave/audit-sync-monitor/internal/store"
)

////////////////////////////////////////////////////////////////////////////////
// FAKES
////////////////////////////////////////////////////////////////////////////////

type memStore struct {
	entries []models.SyncEntry
	err     error
}

func (m *memStore) Append(_ context.Context, e models.SyncEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *memStore) Entries(context.Context) ([]models.SyncEntry, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.entries, nil
}

func (m *memStore) Ping(context.Context) error { return nil }
func (m *memStore) Close() error               { return nil }

type fakeCollector struct {
	periodic []scheduler.CycleResult
	all      []scheduler.CycleResult
	calls    int
}

func (f *fakeCollector) RunPeriodic(context.Context) []scheduler.CycleResult {
	f.calls++
	return f.periodic
}

func (f *fakeCollector) CollectNow(context.Context) []scheduler.CycleResult {
	f.calls++
	return f.all
}

type fakeProvider struct {
	body    json.RawMessage
	err     error
	cleared []json.RawMessage
	resync  json.RawMessage
	status  models.Status
}

func (f *fakeProvider) Records(_ context.Context, s models.Status) (json.RawMessage, error) {
	f.status = s
	return f.body, f.err
}

func (f *fakeProvider) QueueSize(context.Context) (json.RawMessage, error) { return f.body, f.err }

func (f *fakeProvider) ClearQueue(_ context.Context, ids []json.RawMessage) (json.RawMessage, error) {
	f.cleared = ids
	return f.body, f.err
}

func (f *fakeProvider) Resync(_ context.Context, id json.RawMessage) (json.RawMessage, error) {
	f.resync = id
	return f.body, f.err
}

////////////////////////////////////////////////////////////////////////////////
// HELPERS
////////////////////////////////////////////////////////////////////////////////

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func do(t *testing.T, r http.Handler, method, path string, payload any) (int, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatal(err)
		}
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec.Code, rec.Body.Bytes()
}

func entryAt(ts time.Time, status models.Status, ops map[string]int) models.SyncEntry {
	n := 0
	for _, c := range ops {
		n += c
	}
	return models.SyncEntry{
		Timestamp:      models.FormatTimestamp(ts),
		Status:         status,
		NewCount:       n,
		OperatorCounts: ops,
	}
}

////////////////////////////////////////////////////////////////////////////////
// METRICS
////////////////////////////////////////////////////////////////////////////////

func TestMetrics_FiltersInclusiveRange(t *testing.T) {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	st := &memStore{entries: []models.SyncEntry{
		entryAt(base, models.StatusFailed, map[string]int{"A": 1}),
		entryAt(base.Add(time.Hour), models.StatusNotProcessed, map[string]int{"B": 2}),
		entryAt(base.Add(48*time.Hour), models.StatusFailed, map[string]int{"C": 3}),
	}}
	r := newEngine()
	RegisterMetricRoutes(r, st, time.UTC, quietLogger())

	s, b := do(t, r, http.MethodGet, "/api/metrics?from=2024-01-01T10:00:00Z&to=2024-01-01T11:00:00Z", nil)
	if s != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", s, b)
	}
	var resp struct {
		Metrics []models.SyncEntry `json:"metrics"`
		Summary models.Summary     `json:"summary"`
	}
	if err := json.Unmarshal(b, &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Metrics) != 2 {
		t.Fatalf("expected 2 entries got %d", len(resp.Metrics))
	}
	if resp.Summary.TotalProcessedItems != 3 || resp.Summary.UniqueOperatorCount != 2 {
		t.Fatalf("unexpected summary %+v", resp.Summary)
	}
}

func TestMetrics_DateOnlyToCoversWholeDay(t *testing.T) {
	st := &memStore{entries: []models.SyncEntry{
		entryAt(time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC), models.StatusFailed, map[string]int{"A": 1}),
		entryAt(time.Date(2024, 1, 2, 0, 0, 1, 0, time.UTC), models.StatusFailed, map[string]int{"A": 1}),
	}}
	r := newEngine()
	RegisterMetricRoutes(r, st, time.UTC, quietLogger())

	_, b := do(t, r, http.MethodGet, "/api/metrics?from=2024-01-01&to=2024-01-01", nil)
	var resp struct {
		Metrics []models.SyncEntry `json:"metrics"`
	}
	if err := json.Unmarshal(b, &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Metrics) != 1 {
		t.Fatalf("expected 1 entry got %d", len(resp.Metrics))
	}
}

func TestMetrics_BadRequest(t *testing.T) {
	r := newEngine()
	RegisterMetricRoutes(r, &memStore{}, time.UTC, quietLogger())

	cases := []string{
		"/api/metrics?from=yesterday",
		"/api/metrics?to=2024-13-01",
		"/api/metrics?from=2024-02-01&to=2024-01-01",
	}
	for _, path := range cases {
		if s, _ := do(t, r, http.MethodGet, path, nil); s != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", path, s)
		}
	}
}

func TestMetrics_CorruptStoreServesEmpty(t *testing.T) {
	st := &memStore{err: fmt.Errorf("%w: bad json", store.ErrCorrupt)}
	r := newEngine()
	RegisterMetricRoutes(r, st, time.UTC, quietLogger())

	s, b := do(t, r, http.MethodGet, "/api/metrics", nil)
	if s != http.StatusOK {
		t.Fatalf("expected 200 got %d", s)
	}
	var resp struct {
		Metrics []models.SyncEntry `json:"metrics"`
		Summary models.Summary     `json:"summary"`
	}
	if err := json.Unmarshal(b, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Metrics == nil || len(resp.Metrics) != 0 || resp.Summary.TotalEntries != 0 {
		t.Fatalf("expected empty result, got %s", b)
	}
}

func TestMetrics_StoreErrorIs500(t *testing.T) {
	r := newEngine()
	RegisterMetricRoutes(r, &memStore{err: errors.New("disk gone")}, time.UTC, quietLogger())

	if s, _ := do(t, r, http.MethodGet, "/api/metrics", nil); s != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", s)
	}
}

////////////////////////////////////////////////////////////////////////////////
// DASHBOARD & COLLECT
////////////////////////////////////////////////////////////////////////////////

func TestDashboard_CurrentAndHistory(t *testing.T) {
	now := time.Now()
	np := entryAt(now, models.StatusNotProcessed, map[string]int{"A": 2, "B": 1})
	fl := entryAt(now, models.StatusFailed, map[string]int{"A": 4})
	col := &fakeCollector{periodic: []scheduler.CycleResult{
		{Status: models.StatusNotProcessed, Entry: &np},
		{Status: models.StatusFailed, Entry: &fl},
	}}
	st := &memStore{entries: []models.SyncEntry{
		entryAt(now.Add(-72*time.Hour), models.StatusFailed, map[string]int{"Z": 1}),
		np, fl,
	}}

	r := newEngine()
	RegisterDashboardRoutes(r, col, st, quietLogger())

	s, b := do(t, r, http.MethodGet, "/api/dashboard", nil)
	if s != http.StatusOK {
		t.Fatalf("expected 200 got %d", s)
	}
	var resp struct {
		Current      currentView        `json:"current"`
		Historical   []models.SyncEntry `json:"historical"`
		TotalRecords int                `json:"totalRecords"`
	}
	if err := json.Unmarshal(b, &resp); err != nil {
		t.Fatal(err)
	}
	if col.calls != 1 {
		t.Fatalf("expected one periodic firing, got %d", col.calls)
	}
	if resp.Current.NotProcessed != 3 || resp.Current.Failed != 4 {
		t.Fatalf("unexpected current counts %+v", resp.Current)
	}
	if resp.Current.Operators["A"] != 6 || resp.Current.Operators["B"] != 1 {
		t.Fatalf("operators must be summed across statuses: %v", resp.Current.Operators)
	}
	if len(resp.Historical) != 2 || resp.TotalRecords != 3 {
		t.Fatalf("expected 2 recent of 3 total, got %d of %d", len(resp.Historical), resp.TotalRecords)
	}
}

func TestDashboard_ReportsCycleErrors(t *testing.T) {
	col := &fakeCollector{periodic: []scheduler.CycleResult{
		{Status: models.StatusNotProcessed, Err: errors.New("timeout")},
		{Status: models.StatusFailed},
	}}
	r := newEngine()
	RegisterDashboardRoutes(r, col, &memStore{}, quietLogger())

	_, b := do(t, r, http.MethodGet, "/api/dashboard", nil)
	var resp struct {
		Current currentView `json:"current"`
	}
	if err := json.Unmarshal(b, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Current.Errors["not_processed"] != "timeout" {
		t.Fatalf("expected not_processed error, got %v", resp.Current.Errors)
	}
}

func TestCollect_ReturnsPerStatusResults(t *testing.T) {
	e := entryAt(time.Now(), models.StatusSynced, map[string]int{"A": 1})
	col := &fakeCollector{all: []scheduler.CycleResult{
		{Status: models.StatusNotProcessed},
		{Status: models.StatusFailed, Err: errors.New("boom")},
		{Status: models.StatusSynced, Entry: &e},
	}}
	r := newEngine()
	RegisterCollectRoutes(r, col, quietLogger())

	s, b := do(t, r, http.MethodPost, "/api/collect-data", nil)
	if s != http.StatusOK {
		t.Fatalf("expected 200 got %d", s)
	}
	var resp struct {
		Success bool        `json:"success"`
		Results []cycleView `json:"results"`
	}
	if err := json.Unmarshal(b, &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || len(resp.Results) != 3 {
		t.Fatalf("unexpected response %s", b)
	}
	if resp.Results[1].Error != "boom" || resp.Results[2].NewCount != 1 {
		t.Fatalf("unexpected results %+v", resp.Results)
	}
}

func TestCollect_AllFailedIs502(t *testing.T) {
	col := &fakeCollector{all: []scheduler.CycleResult{
		{Status: models.StatusNotProcessed, Err: errors.New("down")},
		{Status: models.StatusFailed, Err: errors.New("down")},
	}}
	r := newEngine()
	RegisterCollectRoutes(r, col, quietLogger())

	if s, _ := do(t, r, http.MethodPost, "/api/collect-data", nil); s != http.StatusBadGateway {
		t.Fatalf("expected 502 got %d", s)
	}
}

////////////////////////////////////////////////////////////////////////////////
// PROVIDER PASSTHROUGH
////////////////////////////////////////////////////////////////////////////////

func TestRecords_UnknownStatusIs400(t *testing.T) {
	p := &fakeProvider{body: json.RawMessage(`{}`)}
	r := newEngine()
	RegisterRecordRoutes(r, p)

	if s, _ := do(t, r, http.MethodGet, "/api/records/deleted", nil); s != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", s)
	}
	s, b := do(t, r, http.MethodGet, "/api/records/synced", nil)
	if s != http.StatusOK || string(b) != `{}` {
		t.Fatalf("expected passthrough, got %d %s", s, b)
	}
	if p.status != models.StatusSynced {
		t.Fatalf("provider queried for %q", p.status)
	}
}

func TestQueue_Validation(t *testing.T) {
	p := &fakeProvider{body: json.RawMessage(`{"ok":true}`)}
	r := newEngine()
	RegisterQueueRoutes(r, p)

	cases := []struct {
		name    string
		path    string
		payload any
		want    int
	}{
		{"clear without ids", "/api/queue/clear", map[string]any{}, http.StatusBadRequest},
		{"clear with empty ids", "/api/queue/clear", map[string]any{"ids": []int{}}, http.StatusBadRequest},
		{"clear", "/api/queue/clear", map[string]any{"ids": []int{7, 8}}, http.StatusOK},
		{"resync without id", "/api/resync", map[string]any{}, http.StatusBadRequest},
		{"resync with empty id", "/api/resync", map[string]any{"id": ""}, http.StatusBadRequest},
		{"resync", "/api/resync", map[string]any{"id": 42}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if s, b := do(t, r, http.MethodPost, tc.path, tc.payload); s != tc.want {
				t.Fatalf("expected %d got %d: %s", tc.want, s, b)
			}
		})
	}
	if len(p.cleared) != 2 || string(p.resync) != "42" {
		t.Fatalf("provider got ids=%s id=%s", p.cleared, p.resync)
	}
}

func TestQueue_ResponseShapes(t *testing.T) {
	p := &fakeProvider{body: json.RawMessage(`{"size":3,"pending":[1,2,3]}`)}
	r := newEngine()
	RegisterQueueRoutes(r, p)

	s, b := do(t, r, http.MethodGet, "/api/queue/status", nil)
	if s != http.StatusOK || string(b) != `{"size":3,"pending":[1,2,3]}` {
		t.Fatalf("queue status must pass the provider body through, got %d %s", s, b)
	}

	_, b = do(t, r, http.MethodPost, "/api/queue/clear", map[string]any{"ids": []int{1}})
	if string(b) != `{"result":{"size":3,"pending":[1,2,3]},"success":true}` {
		t.Fatalf("unexpected clear body %s", b)
	}
	_, b = do(t, r, http.MethodPost, "/api/resync", map[string]any{"id": 1})
	if string(b) != `{"result":{"size":3,"pending":[1,2,3]},"success":true}` {
		t.Fatalf("unexpected resync body %s", b)
	}
}

func TestQueue_ProviderFailureIs502WithBody(t *testing.T) {
	p := &fakeProvider{err: &remote.StatusError{Code: http.StatusForbidden, Body: "session expired"}}
	r := newEngine()
	RegisterQueueRoutes(r, p)

	s, b := do(t, r, http.MethodGet, "/api/queue/status", nil)
	if s != http.StatusBadGateway {
		t.Fatalf("expected 502 got %d", s)
	}
	var resp map[string]any
	if err := json.Unmarshal(b, &resp); err != nil {
		t.Fatal(err)
	}
	if resp["details"] != "session expired" {
		t.Fatalf("expected provider body as details, got %v", resp["details"])
	}
}

////////////////////////////////////////////////////////////////////////////////
// LEDGER
////////////////////////////////////////////////////////////////////////////////

func TestLedger_SizeAndIDs(t *testing.T) {
	l := ledger.New()
	l.CheckAndMark(models.NumericID("2"))
	l.CheckAndMark(models.NumericID("1"))

	r := newEngine()
	RegisterLedgerRoutes(r, l)

	_, b := do(t, r, http.MethodGet, "/api/ledger", nil)
	if string(b) != `{"size":2}` {
		t.Fatalf("unexpected body %s", b)
	}
	_, b = do(t, r, http.MethodGet, "/api/ledger?ids=true", nil)
	if string(b) != `{"ids":["1","2"],"size":2}` {
		t.Fatalf("unexpected body %s", b)
	}
}
