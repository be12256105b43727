package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/thedmsonlineschool/edugen-backend/internal/extractor"
	"github.com/thedmsonlineschool/edugen-backend/internal/pipeline"
)

// ========== Batch Upload & Ingestion Endpoints ==========

func (s *Server) uploadsDir() string {
	return filepath.Join(s.cfg.DataDir, "uploads")
}

// handleUploadFiles stores files for a later batch run.
func (s *Server) handleUploadFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Parse multipart (max 100MB)
	if err := r.ParseMultipartForm(100 << 20); err != nil {
		jsonErr(w, "Failed to parse upload: "+err.Error(), http.StatusBadRequest)
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		files = r.MultipartForm.File["file"]
	}
	if len(files) == 0 {
		jsonErr(w, "No files uploaded", http.StatusBadRequest)
		return
	}

	dir := s.uploadsDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		s.fail(w, r, err)
		return
	}

	saved := []string{}
	var skipped []string
	for _, fh := range files {
		name := filepath.Base(fh.Filename)
		if _, err := extractor.FormatFromName(name); err != nil || name == "." || name == ".." {
			skipped = append(skipped, fh.Filename)
			continue
		}
		src, err := fh.Open()
		if err != nil {
			skipped = append(skipped, fh.Filename)
			continue
		}
		dst, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			src.Close()
			skipped = append(skipped, fh.Filename)
			continue
		}
		_, err = io.Copy(dst, src)
		src.Close()
		dst.Close()
		if err != nil {
			skipped = append(skipped, fh.Filename)
			continue
		}
		saved = append(saved, name)
	}

	jsonResp(w, map[string]interface{}{
		"uploaded": saved,
		"skipped":  skipped,
		"count":    len(saved),
	})
}

// handleIngest starts a background batch over uploaded files.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	opts, err := parseOptions(req.Subject, req.Kind, req.Category, req.GradeRange)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	files, err := s.batchFiles(req.Files, opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if len(files) == 0 {
		jsonErr(w, "No files to process", http.StatusBadRequest)
		return
	}

	jobID := uuid.NewString()
	if !s.ingestStatus.begin(jobID, len(files)) {
		jsonErr(w, "Ingestion already in progress", http.StatusConflict)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.ingestCancel = cancel
	s.mu.Unlock()

	go s.runIngestion(ctx, jobID, files)

	jsonResp(w, map[string]interface{}{"status": "started", "job_id": jobID, "files": len(files)})
}

// batchFiles resolves requested names (or every supported upload) to paths.
func (s *Server) batchFiles(names []string, opts pipeline.Options) ([]pipeline.File, error) {
	dir := s.uploadsDir()
	if len(names) == 0 {
		entries, err := os.ReadDir(dir)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() {
				names = append(names, e.Name())
			}
		}
	}

	var files []pipeline.File
	for _, name := range names {
		// Prevent path traversal
		clean := filepath.Base(name)
		if clean != name || strings.HasPrefix(clean, ".") {
			continue
		}
		if _, err := extractor.FormatFromName(clean); err != nil {
			continue
		}
		files = append(files, pipeline.File{Path: filepath.Join(dir, clean), Options: opts})
	}
	return files, nil
}

func (s *Server) runIngestion(ctx context.Context, jobID string, files []pipeline.File) {
	// Clear cancel func when done
	defer func() {
		s.mu.Lock()
		s.ingestCancel = nil
		s.mu.Unlock()
	}()

	start := time.Now()
	s.log.Info("batch ingest started", zap.String("job", jobID), zap.Int("files", len(files)))

	results := s.pipeline.Batch(ctx, files, pipeline.DefaultConcurrency, false, func(res pipeline.FileResult) {
		s.ingestStatus.update(func(st *IngestStatus) {
			if st.JobID != jobID {
				return
			}
			st.FilesDone++
			st.FileResults = append(st.FileResults, res)
		})
	})

	ok := 0
	for _, res := range results {
		if res.Status == "ok" {
			ok++
		}
	}
	s.ingestStatus.update(func(st *IngestStatus) {
		if st.JobID != jobID {
			return
		}
		switch {
		case ctx.Err() != nil:
			st.Phase = "cancelled"
		case ok == 0:
			st.Phase = "error"
			st.Error = "no file produced a syllabus"
		default:
			st.Phase = "done"
		}
	})
	s.log.Info("batch ingest finished",
		zap.String("job", jobID),
		zap.Int("ok", ok),
		zap.Int("failed", len(results)-ok),
		zap.Duration("elapsed", time.Since(start)))
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	jsonResp(w, s.ingestStatus.snapshot())
}

// handleIngestWS streams a status snapshot on every change until the
// client disconnects.
func (s *Server) handleIngestWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// Reader loop only to notice the close frame.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()
	for {
		changed := s.ingestStatus.watch()
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(s.ingestStatus.snapshot()); err != nil {
			return
		}
		select {
		case <-changed:
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleCancelIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	cancel := s.ingestCancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		s.log.Info("ingestion cancel requested")
	} else {
		s.ingestStatus.reset()
	}
	jsonResp(w, map[string]string{"status": "cancelled"})
}
