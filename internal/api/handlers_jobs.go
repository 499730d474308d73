package api

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/booknest/internal/pipeline"
	"github.com/dgallion1/booknest/internal/store"
	"github.com/go-chi/chi/v5"
)

// storedJob is how a persisted result looks once its job has left memory.
type storedJob struct {
	store.Result
	Status    pipeline.JobStatus `json:"status"`
	HasOutput bool               `json:"has_output"`
}

func fromResult(r store.Result) storedJob {
	return storedJob{Result: r, Status: pipeline.StatusCompleted, HasOutput: r.OutputPath != ""}
}

// handleGetJob returns live job state, falling back to the result store.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if job := s.orchestrator.GetJob(jobID); job != nil {
		writeJSON(w, http.StatusOK, job.Snapshot())
		return
	}

	res, err := s.results.Get(r.Context(), jobID)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, "failed to load job: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, fromResult(res))
}

// handleDownload streams the translated PDF of a finished job.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	var path, filename string
	if job := s.orchestrator.GetJob(jobID); job != nil {
		snap := job.Snapshot()
		if !snap.Status.Terminal() {
			jsonError(w, "job is still "+string(snap.Status), http.StatusConflict)
			return
		}
		path, filename = job.OutputPath(), snap.Filename
	} else {
		res, err := s.results.Get(r.Context(), jobID)
		if errors.Is(err, store.ErrNotFound) {
			jsonError(w, "job not found", http.StatusNotFound)
			return
		}
		if err != nil {
			jsonError(w, "failed to load job: "+err.Error(), http.StatusInternalServerError)
			return
		}
		path, filename = res.OutputPath, res.Filename
	}
	if path == "" {
		jsonError(w, "job has no output", http.StatusNotFound)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		s.log.Error("open output failed", "job_id", jobID, "path", path, "error", err)
		jsonError(w, "output file missing", http.StatusNotFound)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		jsonError(w, "output file unreadable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+downloadName(filename)+`"`)
	http.ServeContent(w, r, "", info.ModTime(), f)
}

func downloadName(filename string) string {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	base = strings.ReplaceAll(base, `"`, "_")
	if base == "" {
		base = "document"
	}
	return "translated_" + base + ".pdf"
}

// handleListJobs returns jobs still in memory plus persisted results.
// Optional query params: kind (translate|summarize), limit.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	if kind != "" && kind != store.KindTranslate && kind != store.KindSummarize {
		jsonError(w, "kind must be translate or summarize", http.StatusBadRequest)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, 500)
	}

	stored, err := s.results.List(r.Context(), kind, limit)
	if err != nil {
		jsonError(w, "failed to list results: "+err.Error(), http.StatusInternalServerError)
		return
	}
	results := make([]storedJob, len(stored))
	for i, res := range stored {
		results[i] = fromResult(res)
	}

	active := []pipeline.JobSnapshot{}
	for _, snap := range s.orchestrator.Jobs() {
		if kind == "" || string(snap.Kind) == kind {
			active = append(active, snap)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"active":  active,
		"results": results,
	})
}

// handleDeleteJob removes a finished job, its stored result and its output
// file. Running jobs cannot be deleted.
func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	var outputs []string
	inMemory := false
	if job := s.orchestrator.GetJob(jobID); job != nil {
		if st := job.Snapshot().Status; !st.Terminal() {
			jsonError(w, "job is still "+string(st), http.StatusConflict)
			return
		}
		inMemory = true
		outputs = append(outputs, job.OutputPath())
		s.orchestrator.ForgetJob(jobID)
	}

	res, err := s.results.Delete(r.Context(), jobID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if !inMemory {
			jsonError(w, "job not found", http.StatusNotFound)
			return
		}
	case err != nil:
		jsonError(w, "failed to delete result: "+err.Error(), http.StatusInternalServerError)
		return
	default:
		outputs = append(outputs, res.OutputPath)
	}

	removed := 0
	for _, p := range outputs {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err == nil {
			removed++
		} else if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("remove output failed", "job_id", jobID, "path", p, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":        jobID,
		"deleted":       true,
		"files_removed": removed,
	})
}
