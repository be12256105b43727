package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thedmsonlineschool/edugen-backend/internal/extractor"
	"github.com/thedmsonlineschool/edugen-backend/internal/parser"
	"github.com/thedmsonlineschool/edugen-backend/internal/store"
	"github.com/thedmsonlineschool/edugen-backend/internal/syllabus"
)

const maxUploadBytes = 50 << 20

// ========== Syllabus Endpoints ==========

// handleUpload parses one uploaded document and stores the tree.
// Form fields: file, subject, curriculum_kind, category, grade_range, format.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		jsonErr(w, "Failed to parse upload: "+err.Error(), http.StatusBadRequest)
		return
	}

	opts, err := parseOptions(r.FormValue("subject"), r.FormValue("curriculum_kind"),
		r.FormValue("category"), r.FormValue("grade_range"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	opts.Format = extractor.Format(r.FormValue("format"))

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonErr(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		jsonErr(w, "Failed to read upload: "+err.Error(), http.StatusBadRequest)
		return
	}

	out, err := s.pipeline.Ingest(r.Context(), header.Filename, data, opts)
	if err != nil {
		s.log.Info("upload rejected", zap.String("file", header.Filename), zap.Error(err))
		s.fail(w, r, err)
		return
	}

	doc := out.Result.Document
	topics, subtopics, outcomes := doc.Counts()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	jsonResp(w, map[string]interface{}{
		"id":        out.Record.ID,
		"source":    out.Result.Source,
		"topics":    topics,
		"subtopics": subtopics,
		"outcomes":  outcomes,
		"stats":     out.Result.Stats,
		"indexed":   out.Indexed,
		"syllabus":  doc,
	})
}

// handleParse runs the engine on a JSON body without storing anything.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Subject    string `json:"subject"`
		Kind       string `json:"curriculum_kind"`
		Category   string `json:"category"`
		GradeRange string `json:"grade_range"`
		Text       string `json:"text"`
		HTML       string `json:"html"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	opts, err := parseOptions(req.Subject, req.Kind, req.Category, req.GradeRange)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.pipeline.Engine.Parse(r.Context(), parser.Request{
		Subject:    opts.Subject,
		Kind:       opts.Kind,
		Category:   opts.Category,
		GradeRange: opts.GradeRange,
		Text:       req.Text,
		HTML:       req.HTML,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	jsonResp(w, map[string]interface{}{
		"source":   res.Source,
		"stats":    res.Stats,
		"syllabus": res.Document,
	})
}

func (s *Server) handleSyllabi(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	opts := store.ListOptions{Subject: q.Get("subject")}
	if k := q.Get("curriculum_kind"); k != "" {
		kind, err := syllabus.ParseCurriculumKind(k)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		opts.Kind = kind
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			jsonErr(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		opts.Limit = n
	}

	list, err := s.pipeline.Store.List(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	jsonResp(w, list)
}

func (s *Server) handleGetSyllabus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, err := uuid.Parse(r.URL.Query().Get("id"))
	if err != nil {
		jsonErr(w, "id must be a UUID", http.StatusBadRequest)
		return
	}
	rec, err := s.pipeline.Store.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	jsonResp(w, rec)
}

func (s *Server) handleDeleteSyllabus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	raw := r.URL.Query().Get("id")
	if raw == "" && r.Method == http.MethodPost {
		var req struct {
			ID string `json:"id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		raw = req.ID
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		jsonErr(w, fmt.Sprintf("id must be a UUID, got %q", raw), http.StatusBadRequest)
		return
	}
	if err := s.pipeline.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	jsonResp(w, map[string]string{"status": "deleted", "id": id.String()})
}
