package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"body-metrics/internal/models"
)

type fakeDirectory struct {
	entries     []models.ScaleEntry
	profiles    map[string][]models.PersonProfile
	snapshots   map[string]map[string]*models.MetricsSnapshot
	history     map[string][]models.HistoryEntry
	reassignErr error
	reassigned  []string
}

func (f *fakeDirectory) Entries() []models.ScaleEntry {
	return f.entries
}

func (f *fakeDirectory) find(entryID string) error {
	for _, entry := range f.entries {
		if entry.EntryID == entryID {
			return nil
		}
	}
	return models.ErrEntryNotFound
}

func (f *fakeDirectory) Profiles(entryID string) ([]models.PersonProfile, error) {
	if err := f.find(entryID); err != nil {
		return nil, err
	}
	return f.profiles[entryID], nil
}

func (f *fakeDirectory) Snapshots(entryID string) (map[string]*models.MetricsSnapshot, error) {
	if err := f.find(entryID); err != nil {
		return nil, err
	}
	return f.snapshots[entryID], nil
}

func (f *fakeDirectory) History(entryID, slug string) ([]models.HistoryEntry, error) {
	if err := f.find(entryID); err != nil {
		return nil, err
	}
	return f.history[slug], nil
}

func (f *fakeDirectory) ReassignGuest(ctx context.Context, person, entryID string) error {
	if f.reassignErr != nil {
		return f.reassignErr
	}
	f.reassigned = append(f.reassigned, person)
	return nil
}

func newTestDirectory() *fakeDirectory {
	return &fakeDirectory{
		entries: []models.ScaleEntry{
			{EntryID: "bathroom", Name: "Bathroom Scale", WeightTopic: "scale/bathroom/weight"},
		},
		profiles: map[string][]models.PersonProfile{
			"bathroom": {
				{Name: "Alex", Slug: "alex"},
				{Name: "Sam", Slug: "sam"},
			},
		},
		snapshots: map[string]map[string]*models.MetricsSnapshot{
			"bathroom": {
				"alex": {Weight: 70.2},
			},
		},
		history: map[string][]models.HistoryEntry{
			"alex": {
				{Timestamp: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), Weight: 70.2},
				{Timestamp: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), Weight: 70.5},
			},
		},
	}
}

func newTestRouter(dir Directory) *Router {
	router := NewRouter(zap.NewNop())
	router.RegisterScaleRoutes(NewScaleHandler(dir, zap.NewNop()))
	return router
}

func TestGetEntries_ListsEntriesWithPeople(t *testing.T) {
	router := newTestRouter(newTestDirectory())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/scale/entries", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"code":2000`) {
		t.Fatalf("expected wrapper code=2000, got: %s", body)
	}
	if !strings.Contains(body, `"entry_id":"bathroom"`) {
		t.Fatalf("expected bathroom entry, got: %s", body)
	}
	if !strings.Contains(body, `"people":["Alex","Sam"]`) {
		t.Fatalf("expected people names, got: %s", body)
	}
}

func TestGetSnapshots_ReturnsSnapshotMap(t *testing.T) {
	router := newTestRouter(newTestDirectory())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/scale/entries/bathroom/snapshots", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"weight":70.2`) {
		t.Fatalf("expected alex snapshot, got: %s", w.Body.String())
	}
}

func TestGetSnapshots_UnknownEntry(t *testing.T) {
	router := newTestRouter(newTestDirectory())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/scale/entries/garage/snapshots", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "scale entry not found") {
		t.Fatalf("expected named error message, got: %s", w.Body.String())
	}
}

func TestGetHistory_ReturnsEntries(t *testing.T) {
	router := newTestRouter(newTestDirectory())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/scale/entries/bathroom/people/alex/history", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"person":"alex"`) {
		t.Fatalf("expected person in response, got: %s", body)
	}
	if !strings.Contains(body, `"weight":70.5`) {
		t.Fatalf("expected history entries, got: %s", body)
	}
}

func TestExportHistory_ReturnsWorkbook(t *testing.T) {
	router := newTestRouter(newTestDirectory())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/scale/entries/bathroom/people/alex/history/export", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Fatalf("expected xlsx content type, got: %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "weight-history-alex") {
		t.Fatalf("expected attachment filename, got: %s", cd)
	}
	if w.Body.Len() == 0 {
		t.Fatal("expected non-empty workbook body")
	}
}

func TestReassignGuest_Success(t *testing.T) {
	dir := newTestDirectory()
	router := newTestRouter(dir)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scale/guest/reassign",
		strings.NewReader(`{"person":"Alex","entry_id":"bathroom"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"code":2000`) {
		t.Fatalf("expected success wrapper, got: %s", w.Body.String())
	}
	if len(dir.reassigned) != 1 || dir.reassigned[0] != "Alex" {
		t.Fatalf("expected reassign forwarded, got: %v", dir.reassigned)
	}
}

func TestReassignGuest_MissingPerson(t *testing.T) {
	router := newTestRouter(newTestDirectory())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scale/guest/reassign",
		strings.NewReader(`{"entry_id":"bathroom"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestReassignGuest_NamedErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"no entries", models.ErrNoEntries, http.StatusBadRequest},
		{"entry not found", models.ErrEntryNotFound, http.StatusNotFound},
		{"person not found", models.ErrPersonNotFound, http.StatusNotFound},
		{"no guest sample", models.ErrNoGuestSample, http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := newTestDirectory()
			dir.reassignErr = tc.err
			router := newTestRouter(dir)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/scale/guest/reassign",
				strings.NewReader(`{"person":"Alex"}`))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tc.wantStatus, w.Code, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), tc.err.Error()) {
				t.Fatalf("expected error message %q, got: %s", tc.err.Error(), w.Body.String())
			}
		})
	}
}

func TestRouter_MethodChecks(t *testing.T) {
	router := newTestRouter(newTestDirectory())

	// entries 只接受 GET
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scale/entries", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for POST entries, got %d", w.Code)
	}

	// reassign 只接受 POST
	req = httptest.NewRequest(http.MethodGet, "/api/v1/scale/guest/reassign", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET reassign, got %d", w.Code)
	}

	// 未知子路径 404
	req = httptest.NewRequest(http.MethodGet, "/api/v1/scale/entries/bathroom/unknown", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown subpath, got %d", w.Code)
	}
}

func TestHealth_ReportsEntryCount(t *testing.T) {
	router := newTestRouter(newTestDirectory())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"status":"ok"`) || !strings.Contains(body, `"entries":1`) {
		t.Fatalf("expected health payload, got: %s", body)
	}
}
