package tasks

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/yieldgap-ma/yg-backend/internal/middleware"
	"golang.org/x/time/rate"
)

var errOutsideDataDir = errors.New("path outside data directory")

// SetupRoutes serves job submission and lookup. Submitted paths are resolved
// against dataDir and must stay inside it.
func SetupRoutes(runner *Runner, dataDir string, limiter *rate.Limiter) http.Handler {
	r := chi.NewRouter()
	h := handlers{runner: runner, dataDir: dataDir}

	r.With(middleware.RateLimit(limiter)).Post("/yield-csv", h.SubmitYieldCSV)
	r.Get("/{id}", h.GetJob)

	return r
}

type handlers struct {
	runner  *Runner
	dataDir string
}

func (h handlers) SubmitYieldCSV(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if input.Path == "" {
		http.Error(w, "Path is required", http.StatusBadRequest)
		return
	}

	path, err := resolveInside(h.dataDir, input.Path)
	if err != nil {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}
	if st, err := os.Stat(path); err != nil || st.IsDir() {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	job := h.runner.Enqueue(path)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Location", "/api/tasks/"+job.ID)
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(job)
}

func (h handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.runner.Get(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job)
}

// resolveInside joins relative paths to base and rejects results outside it.
func resolveInside(base, p string) (string, error) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(absBase, p)
	}
	p = filepath.Clean(p)

	rel, err := filepath.Rel(absBase, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errOutsideDataDir
	}
	return p, nil
}
