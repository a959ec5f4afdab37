// Package server exposes the scan, inventory, feedback and model-update
// operations over HTTP.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/mux"

	"github.com/fridgely/pantry-scan-service/internal/detect"
	"github.com/fridgely/pantry-scan-service/internal/feedback"
	"github.com/fridgely/pantry-scan-service/internal/inventory"
	"github.com/fridgely/pantry-scan-service/internal/modelver"
)

// PhotoScanner is the scan entry point. Satisfied by *scanner.Scanner.
type PhotoScanner interface {
	Scan(ctx context.Context, photos [][]byte) detect.Result
}

// FeedbackSyncer triggers one feedback sync. Satisfied by *feedback.Syncer.
type FeedbackSyncer interface {
	Sync(ctx context.Context) feedback.SyncResult
}

// ModelUpdater triggers one model update check. Satisfied by
// *modelver.Manager.
type ModelUpdater interface {
	CheckForUpdate(ctx context.Context) modelver.UpdateResult
	Version() int
}

type metrics struct {
	scans      atomic.Int64
	photos     atomic.Int64
	detections atomic.Int64
}

// Server holds the wired core components behind the HTTP surface.
type Server struct {
	scanner PhotoScanner
	inv     *inventory.Reconciler
	syncer  FeedbackSyncer
	models  ModelUpdater
	logger  *slog.Logger
	metrics metrics
}

func New(scanner PhotoScanner, inv *inventory.Reconciler, syncer FeedbackSyncer, models ModelUpdater, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{scanner: scanner, inv: inv, syncer: syncer, models: models, logger: logger}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/scan", s.handleScan).Methods(http.MethodPost)
	r.HandleFunc("/inventory", s.handleListInventory).Methods(http.MethodGet)
	r.HandleFunc("/inventory", s.handleAddManual).Methods(http.MethodPost)
	r.HandleFunc("/inventory/{id}/confirm", s.handleConfirm).Methods(http.MethodPost)
	r.HandleFunc("/inventory/{id}/rename", s.handleRename).Methods(http.MethodPost)
	r.HandleFunc("/inventory/{id}", s.handleDelete).Methods(http.MethodDelete)
	r.HandleFunc("/model/check-update", s.handleCheckUpdate).Methods(http.MethodPost)
	r.HandleFunc("/feedback/sync", s.handleSyncFeedback).Methods(http.MethodPost)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) sendError(w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Code: code, Message: message})
}

func (s *Server) sendJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

type scanResponse struct {
	Detections detect.Result     `json:"detections"`
	Inventory  []inventory.Entry `json:"inventory"`
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	photos, err := readPhotos(r)
	if err != nil {
		s.sendError(w, "invalid_request", err.Error(), http.StatusBadRequest)
		return
	}
	if len(photos) == 0 {
		s.sendError(w, "invalid_request", "no photos supplied", http.StatusBadRequest)
		return
	}

	result := s.scanner.Scan(r.Context(), photos)
	entries := s.inv.ApplyScan(result)

	s.metrics.scans.Add(1)
	s.metrics.photos.Add(int64(len(photos)))
	s.metrics.detections.Add(int64(len(result)))

	s.sendJSON(w, scanResponse{Detections: result, Inventory: entries})
}

func readPhotos(r *http.Request) ([][]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "application/json" {
		var req struct {
			Photos []string `json:"photos"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, err
		}
		photos := make([][]byte, 0, len(req.Photos))
		for _, p := range req.Photos {
			decoded, err := base64.StdEncoding.DecodeString(p)
			if err != nil {
				return nil, err
			}
			photos = append(photos, decoded)
		}
		return photos, nil
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, err
	}
	var photos [][]byte
	if r.MultipartForm != nil {
		for _, headers := range r.MultipartForm.File {
			for _, h := range headers {
				f, err := h.Open()
				if err != nil {
					return nil, err
				}
				data, err := io.ReadAll(f)
				f.Close()
				if err != nil {
					return nil, err
				}
				photos = append(photos, data)
			}
		}
	}
	return photos, nil
}

func (s *Server) handleListInventory(w http.ResponseWriter, _ *http.Request) {
	s.sendJSON(w, s.inv.Entries())
}

func (s *Server) handleAddManual(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Glyph string `json:"glyph"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "invalid_request", err.Error(), http.StatusBadRequest)
		return
	}
	entry, err := s.inv.AddManual(req.Name, req.Glyph)
	if err != nil {
		s.sendError(w, "invalid_item", err.Error(), http.StatusBadRequest)
		return
	}
	s.sendJSON(w, entry)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	entry, err := s.inv.Confirm(id)
	if err != nil {
		s.writeInventoryError(w, err)
		return
	}
	s.sendJSON(w, entry)
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "invalid_request", err.Error(), http.StatusBadRequest)
		return
	}
	entry, err := s.inv.Rename(id, req.Name)
	if err != nil {
		s.writeInventoryError(w, err)
		return
	}
	s.sendJSON(w, entry)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.inv.Delete(id); err != nil {
		s.writeInventoryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeInventoryError(w http.ResponseWriter, err error) {
	if errors.Is(err, inventory.ErrNotFound) {
		s.sendError(w, "not_found", err.Error(), http.StatusNotFound)
		return
	}
	s.sendError(w, "invalid_item", err.Error(), http.StatusBadRequest)
}

func (s *Server) handleCheckUpdate(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, s.models.CheckForUpdate(r.Context()))
}

func (s *Server) handleSyncFeedback(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, s.syncer.Sync(r.Context()))
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	s.sendJSON(w, map[string]any{
		"scans_total":      s.metrics.scans.Load(),
		"photos_total":     s.metrics.photos.Load(),
		"detections_total": s.metrics.detections.Load(),
		"model_version":    s.models.Version(),
		"inventory_size":   len(s.inv.Entries()),
	})
}
