package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/thedmsonlineschool/edugen-backend/internal/config"
	"github.com/thedmsonlineschool/edugen-backend/internal/extractor"
	"github.com/thedmsonlineschool/edugen-backend/internal/generate"
	"github.com/thedmsonlineschool/edugen-backend/internal/parser"
	"github.com/thedmsonlineschool/edugen-backend/internal/pipeline"
	"github.com/thedmsonlineschool/edugen-backend/internal/retriever"
	"github.com/thedmsonlineschool/edugen-backend/internal/store"
	"github.com/thedmsonlineschool/edugen-backend/internal/syllabus"
)

// Server holds all shared state.
type Server struct {
	cfg       *config.Config
	log       *zap.Logger
	pipeline  *pipeline.Pipeline
	retriever *retriever.Retriever
	generator *generate.Generator

	mu           sync.Mutex
	ingestStatus *IngestStatus
	ingestCancel context.CancelFunc // cancels the active batch

	upgrader websocket.Upgrader
}

// IngestStatus is polled (or streamed over a websocket) to show batch progress.
type IngestStatus struct {
	mu          sync.RWMutex
	JobID       string                `json:"job_id,omitempty"`
	Phase       string                `json:"phase"` // idle, processing, done, error, cancelled
	FilesTotal  int                   `json:"files_total"`
	FilesDone   int                   `json:"files_done"`
	Error       string                `json:"error,omitempty"`
	FileResults []pipeline.FileResult `json:"file_results,omitempty"`

	changed chan struct{} // closed and replaced on every update
}

func newIngestStatus() *IngestStatus {
	return &IngestStatus{Phase: "idle", changed: make(chan struct{})}
}

func (s *IngestStatus) snapshot() IngestStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return IngestStatus{
		JobID:       s.JobID,
		Phase:       s.Phase,
		FilesTotal:  s.FilesTotal,
		FilesDone:   s.FilesDone,
		Error:       s.Error,
		FileResults: append([]pipeline.FileResult(nil), s.FileResults...),
	}
}

// watch returns a channel that is closed on the next update.
func (s *IngestStatus) watch() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.changed
}

// update applies fn under the lock and wakes watchers.
func (s *IngestStatus) update(fn func(*IngestStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
	close(s.changed)
	s.changed = make(chan struct{})
}

// begin claims the status for a new job in one locked step. It reports
// false while another job is processing.
func (s *IngestStatus) begin(jobID string, files int) bool {
	started := false
	s.update(func(st *IngestStatus) {
		if st.Phase == "processing" {
			return
		}
		st.JobID = jobID
		st.Phase = "processing"
		st.FilesTotal = files
		st.FilesDone = 0
		st.Error = ""
		st.FileResults = nil
		started = true
	})
	return started
}

func (s *IngestStatus) reset() {
	s.update(func(st *IngestStatus) {
		st.JobID = ""
		st.Phase = "idle"
		st.FilesTotal = 0
		st.FilesDone = 0
		st.Error = ""
		st.FileResults = nil
	})
}

// ----- Request / Response types -----

type SearchResponse struct {
	Query   string             `json:"query"`
	Results []retriever.Result `json:"results"`
}

type GenerateRequest struct {
	SyllabusID string `json:"syllabus_id"`
	Subtopic   string `json:"subtopic"`
	Type       string `json:"type"`
	Grade      string `json:"grade,omitempty"`
	Minutes    int    `json:"minutes,omitempty"`
	Weeks      int    `json:"weeks,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

type IngestRequest struct {
	Subject    string `json:"subject"`
	Kind       string `json:"curriculum_kind"`
	Category   string `json:"category,omitempty"`
	GradeRange string `json:"grade_range,omitempty"`
	// Files are names under the uploads directory; empty means all of them.
	Files []string `json:"files,omitempty"`
}

// ========== Middleware ==========

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ========== Helpers ==========

// parseOptions validates the syllabus descriptors shared by upload and ingest.
func parseOptions(subject, kind, category, grades string) (pipeline.Options, error) {
	k, err := syllabus.ParseCurriculumKind(kind)
	if err != nil {
		return pipeline.Options{}, err
	}
	c, err := syllabus.ParseCategory(category)
	if err != nil {
		return pipeline.Options{}, err
	}
	if subject == "" {
		return pipeline.Options{}, syllabus.ErrMissingSubject
	}
	return pipeline.Options{Subject: subject, Kind: k, Category: c, GradeRange: grades}, nil
}

// errStatus maps domain errors onto HTTP status codes.
func errStatus(err error) int {
	switch {
	case errors.Is(err, syllabus.ErrMissingSubject),
		errors.Is(err, syllabus.ErrInvalidKind),
		errors.Is(err, syllabus.ErrInvalidCategory),
		errors.Is(err, parser.ErrMissingContent),
		errors.Is(err, extractor.ErrUnsupportedFormat),
		errors.Is(err, generate.ErrUnknownType),
		errors.Is(err, retriever.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, generate.ErrSubtopicNotFound):
		return http.StatusNotFound
	case errors.Is(err, parser.ErrNoTopics),
		errors.Is(err, extractor.ErrNoText),
		errors.Is(err, parser.ErrFallbackUnreachable),
		errors.Is(err, parser.ErrFallbackRejected),
		errors.Is(err, parser.ErrFallbackNoJSON),
		errors.Is(err, parser.ErrFallbackSchema),
		errors.Is(err, parser.ErrFallbackEmpty):
		return http.StatusUnprocessableEntity
	case errors.Is(err, generate.ErrNoProvider):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// fail writes err with its mapped status and logs server-side failures.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := errStatus(err)
	if code >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	jsonErr(w, err.Error(), code)
}

func jsonResp(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func jsonErr(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
