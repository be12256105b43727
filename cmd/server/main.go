package main

import (
	"net/http"
	"os"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/thedmsonlineschool/edugen-backend/internal/config"
	"github.com/thedmsonlineschool/edugen-backend/internal/generate"
	"github.com/thedmsonlineschool/edugen-backend/internal/indexer"
	"github.com/thedmsonlineschool/edugen-backend/internal/llm"
	"github.com/thedmsonlineschool/edugen-backend/internal/logger"
	"github.com/thedmsonlineschool/edugen-backend/internal/parser"
	"github.com/thedmsonlineschool/edugen-backend/internal/pipeline"
	"github.com/thedmsonlineschool/edugen-backend/internal/retriever"
	"github.com/thedmsonlineschool/edugen-backend/internal/store"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatal("create data dir", zap.String("dir", cfg.DataDir), zap.Error(err))
	}

	st, err := store.Open(cfg.DBPath, log.Named("store"))
	if err != nil {
		log.Fatal("open store", zap.Error(err))
	}
	defer st.Close()

	idx, err := indexer.Open(cfg.IndexPath, log.Named("index"))
	if err != nil {
		log.Fatal("open search index", zap.Error(err))
	}
	defer idx.Close()

	engineOpts := []parser.Option{parser.WithLogger(log.Named("parser"))}
	var ai llm.Provider
	if cfg.AIConfigured() {
		ai, err = llm.NewProvider(cfg.LLMProvider, cfg.APIKey(), cfg.LLMModel)
		if err != nil {
			log.Fatal("configure AI provider", zap.String("provider", cfg.LLMProvider), zap.Error(err))
		}
		ai = llm.WithTimeout(ai, cfg.AITimeout)
		log.Info("AI provider ready",
			zap.String("provider", cfg.LLMProvider),
			zap.String("key", logger.MaskKey(cfg.APIKey())))
		if cfg.FallbackEnabled {
			engineOpts = append(engineOpts,
				parser.WithFallback(parser.NewFallback(ai, cfg.FallbackMaxChars, log.Named("fallback"))))
		}
	} else {
		log.Warn("no AI provider key configured: AI fallback and document generation are disabled",
			zap.String("provider", cfg.LLMProvider))
	}

	srv := &Server{
		cfg:          cfg,
		log:          log,
		pipeline:     pipeline.New(parser.New(engineOpts...), st, idx, log.Named("pipeline")),
		retriever:    retriever.NewRetriever(idx),
		generator:    generate.New(ai, log.Named("generate")),
		ingestStatus: newIngestStatus(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()

	// Syllabus endpoints
	mux.HandleFunc("/api/syllabi/upload", srv.handleUpload)
	mux.HandleFunc("/api/syllabi/parse", srv.handleParse)
	mux.HandleFunc("/api/syllabi", srv.handleSyllabi)
	mux.HandleFunc("/api/syllabi/get", srv.handleGetSyllabus)
	mux.HandleFunc("/api/syllabi/delete", srv.handleDeleteSyllabus)

	// Search & generation
	mux.HandleFunc("/api/search", srv.handleSearch)
	mux.HandleFunc("/api/generate", srv.handleGenerate)

	// Batch ingestion
	mux.HandleFunc("/api/ingest/files", srv.handleUploadFiles)
	mux.HandleFunc("/api/ingest", srv.handleIngest)
	mux.HandleFunc("/api/ingest/status", srv.handleIngestStatus)
	mux.HandleFunc("/api/ingest/ws", srv.handleIngestWS)
	mux.HandleFunc("/api/ingest/cancel", srv.handleCancelIngest)

	log.Info("server listening", zap.String("addr", ":"+cfg.Port))
	if err := http.ListenAndServe(":"+cfg.Port, corsMiddleware(mux)); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
