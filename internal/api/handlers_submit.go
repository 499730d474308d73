package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/booknest/internal/document"
	"github.com/dgallion1/booknest/internal/parser"
	"github.com/dgallion1/booknest/internal/pipeline"
	"github.com/dgallion1/booknest/internal/transform"
	"github.com/google/uuid"
)

// handleTranslate queues a translation of an uploaded document.
func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	filename, data, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	lang := strings.TrimSpace(r.FormValue("language"))
	if lang == "" {
		lang = transform.DefaultTargetLanguage
	}

	job := pipeline.NewJob(uuid.NewString(), pipeline.KindTranslate, filename)
	job.Language = lang
	job.SetFileData(data)
	s.submit(w, job)
}

type summarizeRequest struct {
	Text  string `json:"text"`
	Title string `json:"title"`
}

// handleSummarize accepts either a JSON body with text or a multipart upload.
// Empty text is answered immediately without queuing a job.
func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		filename, data, ok := s.readUpload(w, r)
		if !ok {
			return
		}
		job := pipeline.NewJob(uuid.NewString(), pipeline.KindSummarize, filename)
		job.SetFileData(data)
		s.submit(w, job)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	var req summarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if document.IsBlank(req.Text) {
		writeJSON(w, http.StatusOK, map[string]string{"summary": ""})
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "text"
	}
	job := pipeline.NewJob(uuid.NewString(), pipeline.KindSummarize, title)
	job.Title = title
	job.SetText(req.Text)
	s.submit(w, job)
}

// readUpload reads the multipart "file" field. On failure it has already
// written the error response.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	// Extra 1MB for form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return "", nil, false
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return "", nil, false
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return "", nil, false
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return "", nil, false
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return "", nil, false
	}
	return filename, data, true
}

func (s *Server) submit(w http.ResponseWriter, job *pipeline.Job) {
	if err := s.orchestrator.Submit(job); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrQueueFull) || errors.Is(err, pipeline.ErrStopped) {
			status = http.StatusServiceUnavailable
		}
		jsonError(w, err.Error(), status)
		return
	}

	s.log.Info("job queued", "job_id", job.ID, "kind", job.Kind, "filename", job.Filename)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   job.ID,
		"kind":     job.Kind,
		"status":   pipeline.StatusQueued,
		"poll_url": "/api/jobs/" + job.ID,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Browsers on Windows may send the full client path.
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
