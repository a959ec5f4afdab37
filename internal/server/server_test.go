package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fridgely/pantry-scan-service/internal/detect"
	"github.com/fridgely/pantry-scan-service/internal/feedback"
	"github.com/fridgely/pantry-scan-service/internal/inventory"
	"github.com/fridgely/pantry-scan-service/internal/modelver"
)

type fakeScanner struct {
	result detect.Result
}

func (f *fakeScanner) Scan(_ context.Context, _ [][]byte) detect.Result {
	return f.result
}

type fakeSyncer struct {
	result feedback.SyncResult
}

func (f *fakeSyncer) Sync(_ context.Context) feedback.SyncResult {
	return f.result
}

type fakeUpdater struct {
	result  modelver.UpdateResult
	version int
}

func (f *fakeUpdater) CheckForUpdate(_ context.Context) modelver.UpdateResult {
	return f.result
}

func (f *fakeUpdater) Version() int { return f.version }

func newTestServer(t *testing.T, scan detect.Result) (*Server, *inventory.Reconciler) {
	t.Helper()
	inv := inventory.NewReconciler(nil, nil, nil)
	srv := New(
		&fakeScanner{result: scan},
		inv,
		&fakeSyncer{result: feedback.SyncResult{Success: true, Count: 2}},
		&fakeUpdater{result: modelver.UpdateResult{Updated: true, Version: 3}, version: 3},
		nil,
	)
	return srv, inv
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestScanEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, detect.Result{
		{ID: "a", Name: "Broccoli", Category: detect.CategoryVegetable, Confidence: 0.97},
	})
	router := srv.Router()

	w := doJSON(t, router, http.MethodPost, "/scan", map[string]any{
		"photos": []string{"aGVsbG8="},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp scanResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Detections, 1)
	assert.Equal(t, "Broccoli", resp.Detections[0].Name)
	require.Len(t, resp.Inventory, 1)
	assert.True(t, resp.Inventory[0].Confirmed, "0.97 >= auto-confirm threshold")
}

func TestScanRejectsEmptyBatch(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	w := doJSON(t, srv.Router(), http.MethodPost, "/scan", map[string]any{"photos": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp errorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "invalid_request", resp.Code)
}

func TestScanAcceptsJSONWithCharset(t *testing.T) {
	srv, _ := newTestServer(t, detect.Result{
		{ID: "a", Name: "Carrot", Category: detect.CategoryVegetable, Confidence: 0.8},
	})

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(map[string]any{"photos": []string{"aGVsbG8="}}))
	req := httptest.NewRequest(http.MethodPost, "/scan", &buf)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp scanResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Detections, 1)
	assert.Equal(t, "Carrot", resp.Detections[0].Name)
}

func TestScanRejectsBadBase64(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	w := doJSON(t, srv.Router(), http.MethodPost, "/scan", map[string]any{"photos": []string{"%%%"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInventoryLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	router := srv.Router()

	w := doJSON(t, router, http.MethodPost, "/inventory", map[string]string{"name": "Oat Milk"})
	require.Equal(t, http.StatusOK, w.Code)
	var entry inventory.Entry
	require.NoError(t, json.NewDecoder(w.Body).Decode(&entry))
	assert.Equal(t, "Oat Milk", entry.Name)
	assert.True(t, entry.Confirmed)

	w = doJSON(t, router, http.MethodGet, "/inventory", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []inventory.Entry
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	require.Len(t, list, 1)

	w = doJSON(t, router, http.MethodPost, "/inventory/"+entry.ID+"/rename", map[string]string{"name": "Soy Milk"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&entry))
	assert.Equal(t, "Soy Milk", entry.Name)

	w = doJSON(t, router, http.MethodDelete, "/inventory/"+entry.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, router, http.MethodGet, "/inventory", nil)
	list = nil
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	assert.Empty(t, list)
}

func TestConfirmUnknownEntry(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	w := doJSON(t, srv.Router(), http.MethodPost, "/inventory/nope/confirm", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp errorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "not_found", resp.Code)
}

func TestAddManualRejectsEmptyName(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	w := doJSON(t, srv.Router(), http.MethodPost, "/inventory", map[string]string{"name": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestModelCheckUpdateEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	w := doJSON(t, srv.Router(), http.MethodPost, "/model/check-update", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp modelver.UpdateResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Updated)
	assert.Equal(t, 3, resp.Version)
}

func TestFeedbackSyncEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	w := doJSON(t, srv.Router(), http.MethodPost, "/feedback/sync", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp feedback.SyncResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Count)
}

func TestMetricsCountScans(t *testing.T) {
	srv, _ := newTestServer(t, detect.Result{
		{ID: "a", Name: "Apple", Category: detect.CategoryFruit, Confidence: 0.9},
	})
	router := srv.Router()

	for i := 0; i < 3; i++ {
		w := doJSON(t, router, http.MethodPost, "/scan", map[string]any{"photos": []string{"aGVsbG8="}})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := doJSON(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.EqualValues(t, 3, resp["scans_total"])
	assert.EqualValues(t, 3, resp["photos_total"])
	assert.EqualValues(t, 3, resp["model_version"])
	assert.EqualValues(t, 1, resp["inventory_size"])
}
