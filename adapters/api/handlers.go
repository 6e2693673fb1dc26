package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"phenotab/internal/errors"
	"phenotab/models"
	"phenotab/ports"
)

// runDetail is the /api/runs/{id} payload: the run plus its per-sheet
// reports.
type runDetail struct {
	models.Run
	Sheets []models.SheetReport `json:"sheets"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	runs, err := s.archive.ListRuns(r.Context(), limit, offset)
	if err != nil {
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []models.Run{}
	}

	s.writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid run id", http.StatusBadRequest)
		return
	}

	run, err := s.archive.GetRun(r.Context(), id)
	if err != nil {
		if errors.GetCode(err) == errors.CodeNotFound {
			http.Error(w, "Run not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load run", http.StatusInternalServerError)
		return
	}

	reports, err := s.archive.ListSheetReports(r.Context(), id)
	if err != nil {
		http.Error(w, "Failed to load sheet reports", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, runDetail{Run: *run, Sheets: reports})
}

func (s *Server) handleListDiagnostics(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid run id", http.StatusBadRequest)
		return
	}

	filters := ports.DiagnosticFilters{
		Sheet:  r.URL.Query().Get("sheet"),
		Column: r.URL.Query().Get("column"),
		Kind:   r.URL.Query().Get("kind"),
		Limit:  queryInt(r, "limit", 500),
		Offset: queryInt(r, "offset", 0),
	}

	records, err := s.archive.ListDiagnostics(r.Context(), id, filters)
	if err != nil {
		http.Error(w, "Failed to list diagnostics", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []models.DiagnosticRecord{}
	}

	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Response encoding error: %v", err)
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
