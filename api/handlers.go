package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/telnovia-org/analytics/analysis"
	"github.com/telnovia-org/analytics/dataset"
	"github.com/telnovia-org/analytics/store"
)

// maxUploadBytes caps dataset uploads at 50 MiB.
const maxUploadBytes = 50 << 20

type queryRequest struct {
	NotebookID string `json:"notebook_id"`
	Query      string `json:"query"`
}

type queryResponse struct {
	Reply string `json:"reply"`
}

type shareResponse struct {
	ShareToken string `json:"shareable_token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ============================================================================
// UPLOAD
// ============================================================================

// handleUpload receives a dataset file, stores it under a generated name,
// profiles it, and registers a notebook for the caller.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "a 'file' form field is required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".csv" && ext != ".json" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported file format %q (want .csv or .json)", ext))
		return
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		s.internalError(w, "preparing upload directory", err)
		return
	}
	storedPath := filepath.Join(s.uploadDir, uuid.NewString()+ext)
	dst, err := os.Create(storedPath)
	if err != nil {
		s.internalError(w, "storing upload", err)
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(storedPath)
		s.internalError(w, "storing upload", err)
		return
	}
	if err := dst.Close(); err != nil {
		os.Remove(storedPath)
		s.internalError(w, "storing upload", err)
		return
	}

	table, err := dataset.LoadFile(storedPath)
	if err != nil {
		os.Remove(storedPath)
		writeError(w, http.StatusBadRequest, fmt.Sprintf("could not parse dataset: %v", err))
		return
	}

	report := dataset.GenerateHealthReport(table)
	rawReport, err := json.Marshal(report)
	if err != nil {
		s.internalError(w, "encoding health report", err)
		return
	}

	nb := &store.Notebook{
		OwnerID:      ownerID(r),
		Filename:     header.Filename,
		Filepath:     storedPath,
		HealthReport: rawReport,
	}
	if err := s.notebooks.Create(r.Context(), nb); err != nil {
		s.internalError(w, "creating notebook", err)
		return
	}

	s.log.Info("dataset uploaded",
		"notebook", nb.ID,
		"filename", nb.Filename,
		"rows", table.NumRows(),
		"columns", table.NumCols())

	writeJSON(w, http.StatusCreated, nb)
}

// ============================================================================
// ANALYSIS
// ============================================================================

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := s.router.HandleQuery(r.Context(), req.NotebookID, ownerID(r), req.Query)
	if err != nil {
		switch {
		case errors.Is(err, analysis.ErrBadRequest):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, analysis.ErrNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			s.internalError(w, "handling query", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{Reply: reply})
}

// ============================================================================
// NOTEBOOKS
// ============================================================================

func (s *Server) handleListNotebooks(w http.ResponseWriter, r *http.Request) {
	nbs, err := s.notebooks.ListByOwner(r.Context(), ownerID(r))
	if err != nil {
		s.internalError(w, "listing notebooks", err)
		return
	}
	writeJSON(w, http.StatusOK, nbs)
}

func (s *Server) handleGetNotebook(w http.ResponseWriter, r *http.Request) {
	nb, err := s.notebooks.Get(r.Context(), chi.URLParam(r, "notebookID"), ownerID(r))
	if err != nil {
		s.notebookError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nb)
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	token, err := s.notebooks.EnableSharing(r.Context(), chi.URLParam(r, "notebookID"), ownerID(r))
	if err != nil {
		s.notebookError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shareResponse{ShareToken: token})
}

// handleShared serves a public notebook by its share token. No owner check:
// the token is the capability.
func (s *Server) handleShared(w http.ResponseWriter, r *http.Request) {
	nb, err := s.notebooks.GetByToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		s.notebookError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nb)
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "notebookID")
	// Resolve first so a foreign notebook reads as missing, not empty.
	if _, err := s.notebooks.Get(r.Context(), id, ownerID(r)); err != nil {
		s.notebookError(w, err)
		return
	}

	turns, err := s.turns.ListByNotebook(r.Context(), id)
	if err != nil {
		s.internalError(w, "listing conversations", err)
		return
	}
	writeJSON(w, http.StatusOK, turns)
}

// ============================================================================
// RESPONSES
// ============================================================================

func (s *Server) notebookError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "notebook not found")
		return
	}
	s.internalError(w, "resolving notebook", err)
}

func (s *Server) internalError(w http.ResponseWriter, msg string, err error) {
	s.log.Error(msg, "error", err)
	writeError(w, http.StatusInternalServerError, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
