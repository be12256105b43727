package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/thedmsonlineschool/edugen-backend/internal/config"
	"github.com/thedmsonlineschool/edugen-backend/internal/extractor"
	"github.com/thedmsonlineschool/edugen-backend/internal/indexer"
	"github.com/thedmsonlineschool/edugen-backend/internal/llm"
	"github.com/thedmsonlineschool/edugen-backend/internal/logger"
	"github.com/thedmsonlineschool/edugen-backend/internal/parser"
	"github.com/thedmsonlineschool/edugen-backend/internal/pipeline"
	"github.com/thedmsonlineschool/edugen-backend/internal/store"
	"github.com/thedmsonlineschool/edugen-backend/internal/syllabus"
)

type flags struct {
	subject     string
	kind        string
	category    string
	grades      string
	dryRun      bool
	noFallback  bool
	concurrency int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "ingest [flags] <file-or-dir>...",
		Short: "Parse curriculum documents into syllabus trees",
		Long: `Ingest converts DOCX, PDF, HTML and text syllabi, extracts their topic tree
and stores it in the syllabus database and search index.

With --dry-run nothing is stored; each extracted tree is printed as JSON.`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f, args, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&f.subject, "subject", "s", "", "Subject name (required)")
	cmd.Flags().StringVarP(&f.kind, "kind", "k", "outcome-based", "Curriculum kind: competency-based (cbc) or outcome-based (obc)")
	cmd.Flags().StringVarP(&f.category, "category", "c", "", "Education level: early-childhood, primary or secondary")
	cmd.Flags().StringVarP(&f.grades, "grades", "g", "", `Grade descriptor, e.g. "Grade 10-12"`)
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Print extracted trees as JSON instead of storing them")
	cmd.Flags().BoolVar(&f.noFallback, "no-fallback", false, "Never call the AI service for unstructured documents")
	cmd.Flags().IntVarP(&f.concurrency, "concurrency", "j", pipeline.DefaultConcurrency, "Files processed in parallel")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func run(ctx context.Context, f flags, args []string, out io.Writer) error {
	kind, err := syllabus.ParseCurriculumKind(f.kind)
	if err != nil {
		return err
	}
	category, err := syllabus.ParseCategory(f.category)
	if err != nil {
		return err
	}
	opts := pipeline.Options{Subject: f.subject, Kind: kind, Category: category, GradeRange: f.grades}

	paths, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no supported documents in %v", args)
	}

	cfg := config.Load()
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return err
	}
	defer log.Sync()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	engine := parser.New(engineOptions(cfg, f, log)...)

	if f.dryRun {
		return dryRun(ctx, pipeline.New(engine, nil, nil, log), paths, opts, out)
	}

	st, err := store.Open(cfg.DBPath, log.Named("store"))
	if err != nil {
		return err
	}
	defer st.Close()
	idx, err := indexer.Open(cfg.IndexPath, log.Named("index"))
	if err != nil {
		return err
	}
	defer idx.Close()

	files := make([]pipeline.File, len(paths))
	for i, p := range paths {
		files[i] = pipeline.File{Path: p, Options: opts}
	}

	start := time.Now()
	p := pipeline.New(engine, st, idx, log.Named("pipeline"))
	results := p.Batch(ctx, files, f.concurrency, false, func(r pipeline.FileResult) {
		if r.Status == "ok" {
			fmt.Fprintf(out, "ok      %s  id=%s source=%s topics=%d\n", r.Name, r.SyllabusID, r.Source, r.Topics)
		} else {
			fmt.Fprintf(out, "failed  %s  %s\n", r.Name, r.Error)
		}
	})

	failed := 0
	for _, r := range results {
		if r.Status != "ok" {
			failed++
		}
	}
	fmt.Fprintf(out, "Finished ingestion of %d file(s) in %v, %d failed.\n", len(results), time.Since(start).Round(time.Millisecond), failed)
	if failed == len(results) {
		return fmt.Errorf("no file produced a syllabus")
	}
	return nil
}

func engineOptions(cfg *config.Config, f flags, log *zap.Logger) []parser.Option {
	opts := []parser.Option{parser.WithLogger(log.Named("parser"))}
	if f.noFallback || !cfg.FallbackEnabled || !cfg.AIConfigured() {
		return opts
	}
	ai, err := llm.NewProvider(cfg.LLMProvider, cfg.APIKey(), cfg.LLMModel)
	if err != nil {
		log.Warn("AI fallback disabled", zap.Error(err))
		return opts
	}
	fb := parser.NewFallback(llm.WithTimeout(ai, cfg.AITimeout), cfg.FallbackMaxChars, log.Named("fallback"))
	return append(opts, parser.WithFallback(fb))
}

// dryRun parses files one at a time and prints each tree.
func dryRun(ctx context.Context, p *pipeline.Pipeline, paths []string, opts pipeline.Options, out io.Writer) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	failed := 0
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err == nil {
			var parsed *pipeline.Parsed
			if parsed, err = p.Parse(ctx, path, data, opts); err == nil {
				err = enc.Encode(map[string]interface{}{
					"file":     filepath.Base(path),
					"source":   parsed.Result.Source,
					"stats":    parsed.Result.Stats,
					"syllabus": parsed.Result.Document,
				})
			}
		}
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "failed  %s  %v\n", filepath.Base(path), err)
		}
	}
	if failed == len(paths) {
		return fmt.Errorf("no file produced a syllabus")
	}
	return nil
}

// collectFiles expands directories (one level) into supported documents.
func collectFiles(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if _, err := extractor.FormatFromName(e.Name()); err != nil {
				continue
			}
			paths = append(paths, filepath.Join(arg, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
