package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/thedmsonlineschool/edugen-backend/internal/config"
	"github.com/thedmsonlineschool/edugen-backend/internal/generate"
	"github.com/thedmsonlineschool/edugen-backend/internal/indexer"
	"github.com/thedmsonlineschool/edugen-backend/internal/parser"
	"github.com/thedmsonlineschool/edugen-backend/internal/pipeline"
	"github.com/thedmsonlineschool/edugen-backend/internal/retriever"
	"github.com/thedmsonlineschool/edugen-backend/internal/store"
	"github.com/thedmsonlineschool/edugen-backend/internal/syllabus"
)

const physicsText = "10.1 General Physics\n10.1.1 Units\n10.1.1.1 Distinguish base and derived units\n• Knows the SI base units\n"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "syllabi.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	idx, err := indexer.Open(filepath.Join(dir, "search.bleve"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })

	return &Server{
		cfg:          &config.Config{DataDir: dir},
		log:          zap.NewNop(),
		pipeline:     pipeline.New(parser.New(), st, idx, nil),
		retriever:    retriever.NewRetriever(idx),
		generator:    generate.New(nil, nil),
		ingestStatus: newIngestStatus(),
	}
}

func uploadRequest(t *testing.T, fields map[string]string, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/syllabi/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

var physicsFields = map[string]string{
	"subject":         "Physics",
	"curriculum_kind": "obc",
	"category":        "secondary",
	"grade_range":     "Grade 10-12",
}

// ========== errStatus ==========

func TestErrStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{syllabus.ErrInvalidKind, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", parser.ErrMissingContent), http.StatusBadRequest},
		{store.ErrNotFound, http.StatusNotFound},
		{generate.ErrSubtopicNotFound, http.StatusNotFound},
		{parser.ErrNoTopics, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w; %w", parser.ErrNoTopics, parser.ErrFallbackSchema), http.StatusUnprocessableEntity},
		{generate.ErrNoProvider, http.StatusServiceUnavailable},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := errStatus(c.err); got != c.want {
			t.Errorf("errStatus(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

// ========== Syllabus endpoints ==========

func TestUpload_StoresAndLists(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.handleUpload(rec, uploadRequest(t, physicsFields, "physics.txt", physicsText))
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d body = %s", rec.Code, rec.Body)
	}
	var created struct {
		ID       string             `json:"id"`
		Source   string             `json:"source"`
		Topics   int                `json:"topics"`
		Syllabus *syllabus.Document `json:"syllabus"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	if created.ID == "" || created.Source != "lines" || created.Topics != 1 {
		t.Errorf("created = %+v", created)
	}
	if created.Syllabus.Kind != syllabus.OutcomeBased {
		t.Errorf("kind = %q", created.Syllabus.Kind)
	}

	rec = httptest.NewRecorder()
	srv.handleSyllabi(rec, httptest.NewRequest(http.MethodGet, "/api/syllabi?subject=physics", nil))
	var list []store.Summary
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID.String() != created.ID {
		t.Errorf("list = %+v", list)
	}

	rec = httptest.NewRecorder()
	srv.handleGetSyllabus(rec, httptest.NewRequest(http.MethodGet, "/api/syllabi/get?id="+created.ID, nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "10.1.1.1 Distinguish base and derived units") {
		t.Errorf("get = %d %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	srv.handleSearch(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=derived+units", nil))
	var found SearchResponse
	if err := json.NewDecoder(rec.Body).Decode(&found); err != nil {
		t.Fatal(err)
	}
	if len(found.Results) == 0 || found.Results[0].SyllabusID != created.ID {
		t.Errorf("search = %+v", found)
	}

	rec = httptest.NewRecorder()
	srv.handleDeleteSyllabus(rec, httptest.NewRequest(http.MethodDelete, "/api/syllabi/delete?id="+created.ID, nil))
	if rec.Code != http.StatusOK {
		t.Errorf("delete = %d %s", rec.Code, rec.Body)
	}
	rec = httptest.NewRecorder()
	srv.handleGetSyllabus(rec, httptest.NewRequest(http.MethodGet, "/api/syllabi/get?id="+created.ID, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", rec.Code)
	}
}

func TestUpload_Rejections(t *testing.T) {
	srv := newTestServer(t)
	cases := []struct {
		name     string
		fields   map[string]string
		filename string
		content  string
		want     int
	}{
		{"bad kind", map[string]string{"subject": "Physics", "curriculum_kind": "mixed"}, "a.txt", physicsText, http.StatusBadRequest},
		{"no subject", map[string]string{"curriculum_kind": "obc"}, "a.txt", physicsText, http.StatusBadRequest},
		{"unsupported", physicsFields, "a.pptx", physicsText, http.StatusBadRequest},
		{"no structure", physicsFields, "a.txt", "An introduction with no numbering.", http.StatusUnprocessableEntity},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		srv.handleUpload(rec, uploadRequest(t, c.fields, c.filename, c.content))
		if rec.Code != c.want {
			t.Errorf("%s: status = %d, want %d (%s)", c.name, rec.Code, c.want, rec.Body)
		}
	}
}

func TestParse_DoesNotStore(t *testing.T) {
	srv := newTestServer(t)
	body := `{"subject":"Physics","curriculum_kind":"outcome-based","category":"secondary","grade_range":"Grade 10-12","text":"10.1 General Physics\n10.1.1 Units"}`
	rec := httptest.NewRecorder()
	srv.handleParse(rec, httptest.NewRequest(http.MethodPost, "/api/syllabi/parse", strings.NewReader(body)))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"10.1.1 Units"`) {
		t.Fatalf("parse = %d %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	srv.handleSyllabi(rec, httptest.NewRequest(http.MethodGet, "/api/syllabi", nil))
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("list = %s", rec.Body)
	}
}

func TestGenerate_WithoutProvider(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.handleUpload(rec, uploadRequest(t, physicsFields, "physics.txt", physicsText))
	var created struct {
		ID string `json:"id"`
	}
	json.NewDecoder(rec.Body).Decode(&created)

	body := fmt.Sprintf(`{"syllabus_id":%q,"subtopic":"10.1.1","type":"lesson-plan"}`, created.ID)
	rec = httptest.NewRecorder()
	srv.handleGenerate(rec, httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(body)))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("generate = %d %s", rec.Code, rec.Body)
	}
}

// ========== IngestStatus ==========

func TestIngestStatus_UpdateWakesWatchers(t *testing.T) {
	st := newIngestStatus()
	changed := st.watch()
	st.update(func(s *IngestStatus) { s.Phase = "processing" })

	select {
	case <-changed:
	default:
		t.Fatal("watch channel not closed after update")
	}
	if got := st.snapshot().Phase; got != "processing" {
		t.Errorf("phase = %q", got)
	}

	st.reset()
	if snap := st.snapshot(); snap.Phase != "idle" || snap.FilesTotal != 0 {
		t.Errorf("after reset = %+v", &snap)
	}
}

func TestIngestStatus_BeginIsExclusive(t *testing.T) {
	st := newIngestStatus()
	const callers = 16
	var wg sync.WaitGroup
	var won atomic.Int32
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if st.begin(fmt.Sprintf("job-%d", i), 1) {
				won.Add(1)
			}
		}(i)
	}
	wg.Wait()
	if got := won.Load(); got != 1 {
		t.Fatalf("%d concurrent begins succeeded, want 1", got)
	}
	if st.snapshot().Phase != "processing" {
		t.Errorf("phase = %q", st.snapshot().Phase)
	}

	st.update(func(s *IngestStatus) { s.Phase = "done" })
	if !st.begin("next", 2) {
		t.Error("begin refused after the previous job finished")
	}
}

func TestIngest_RejectsWhileRunning(t *testing.T) {
	srv := newTestServer(t)
	if !srv.ingestStatus.begin("running", 1) {
		t.Fatal("could not claim status")
	}
	body := `{"subject":"Physics","curriculum_kind":"obc","files":["physics.txt"]}`
	rec := httptest.NewRecorder()
	srv.handleIngest(rec, httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader(body)))
	if rec.Code != http.StatusConflict {
		t.Errorf("ingest = %d %s", rec.Code, rec.Body)
	}
	if got := srv.ingestStatus.snapshot().JobID; got != "running" {
		t.Errorf("job id replaced: %q", got)
	}
}
