package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/thedmsonlineschool/edugen-backend/internal/generate"
	"github.com/thedmsonlineschool/edugen-backend/internal/retriever"
)

// ========== Search & Generate Endpoints ==========

// handleSearch: GET /api/search?q=&subject=&curriculum_kind=&level=&syllabus_id=&k=
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	topK := retriever.DefaultTopK
	if k := q.Get("k"); k != "" {
		n, err := strconv.Atoi(k)
		if err != nil || n <= 0 {
			jsonErr(w, "k must be a positive integer", http.StatusBadRequest)
			return
		}
		topK = n
	}

	results, err := s.retriever.Search(r.Context(), q.Get("q"), retriever.Filter{
		SyllabusID: q.Get("syllabus_id"),
		Subject:    q.Get("subject"),
		Kind:       q.Get("curriculum_kind"),
		Level:      q.Get("level"),
	}, topK)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	jsonResp(w, SearchResponse{Query: q.Get("q"), Results: results})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	id, err := uuid.Parse(req.SyllabusID)
	if err != nil {
		jsonErr(w, "syllabus_id must be a UUID", http.StatusBadRequest)
		return
	}
	if req.Subtopic == "" {
		jsonErr(w, "subtopic is required", http.StatusBadRequest)
		return
	}

	rec, err := s.pipeline.Store.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	doc, err := rec.Document()
	if err != nil {
		s.fail(w, r, err)
		return
	}

	out, err := s.generator.Generate(r.Context(), doc, generate.Request{
		Type:     generate.DocType(req.Type),
		Subtopic: req.Subtopic,
		Grade:    req.Grade,
		Minutes:  req.Minutes,
		Weeks:    req.Weeks,
		Notes:    req.Notes,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	jsonResp(w, out)
}
