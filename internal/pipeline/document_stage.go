package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kendricksin/feed-scanner/internal/archive"
	"github.com/kendricksin/feed-scanner/internal/egp"
	"github.com/kendricksin/feed-scanner/internal/extract"
	"github.com/kendricksin/feed-scanner/internal/fetch"
	"github.com/kendricksin/feed-scanner/internal/pdftext"
	"github.com/kendricksin/feed-scanner/internal/store"
)

var pdfMagic = []byte("%PDF")

// Analyzer optionally post-processes extracted document text. Its output is
// logged only; it can neither block nor fail the pipeline.
type Analyzer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// DocumentPipeline drains pending announcements for a department: acquire
// the announcement document, extract its text and fields, and persist the
// enrichment.
type DocumentPipeline struct {
	store    *store.Store
	gateway  *egp.Client
	fetcher  *fetch.Fetcher
	dataDir  string
	analyzer Analyzer
	log      *slog.Logger

	// extractText is swappable for tests; defaults to pdftext.File.
	extractText func(path string) (string, error)
}

// NewDocumentPipeline creates the document stage. analyzer may be nil.
func NewDocumentPipeline(st *store.Store, gateway *egp.Client, fetcher *fetch.Fetcher, dataDir string, analyzer Analyzer, log *slog.Logger) *DocumentPipeline {
	if log == nil {
		log = slog.Default()
	}
	return &DocumentPipeline{
		store:       st,
		gateway:     gateway,
		fetcher:     fetcher,
		dataDir:     dataDir,
		analyzer:    analyzer,
		log:         log.With("stage", "documents"),
		extractText: pdftext.File,
	}
}

// WithTextExtractor overrides the PDF text extractor.
func (d *DocumentPipeline) WithTextExtractor(fn func(path string) (string, error)) *DocumentPipeline {
	d.extractText = fn
	return d
}

func (d *DocumentPipeline) Name() string { return "documents" }

// Run processes every pending announcement for the department. A failure on
// one announcement marks that row failed and moves on; the batch never
// aborts. Announcements with no document available stay pending for a later
// run.
func (d *DocumentPipeline) Run(ctx context.Context, deptID string) (*StageResult, error) {
	pending, err := d.store.ListPendingEnrichment(ctx, deptID)
	if err != nil {
		return nil, fmt.Errorf("documents: list pending: %w", err)
	}

	counts := map[string]int{
		"total":      len(pending),
		"downloaded": 0,
		"processed":  0,
		"failed":     0,
		"skipped":    0,
	}

	for _, a := range pending {
		if err := ctx.Err(); err != nil {
			return &StageResult{Status: StageFailed, Counts: counts, Note: err.Error()}, err
		}

		docPath, err := d.acquire(ctx, a)
		if err != nil {
			d.log.Error("document acquisition failed",
				"project_id", a.ProjectID, "dept_id", a.DeptID, "error", err)
			d.markFailed(ctx, a.ProjectID)
			counts["failed"]++
			continue
		}
		if docPath == "" {
			d.log.Info("no document available yet", "project_id", a.ProjectID, "dept_id", a.DeptID)
			counts["skipped"]++
			continue
		}
		counts["downloaded"]++

		text, err := d.extractText(docPath)
		if err != nil {
			d.log.Error("text extraction failed",
				"project_id", a.ProjectID, "dept_id", a.DeptID, "path", docPath, "error", err)
			d.markFailed(ctx, a.ProjectID)
			counts["failed"]++
			continue
		}

		fields := extract.Fields(text)
		fields.DocumentPath = &docPath
		if err := d.store.UpdateEnrichment(ctx, a.ProjectID, fields, store.StatusCompleted); err != nil {
			d.log.Error("enrichment write failed",
				"project_id", a.ProjectID, "dept_id", a.DeptID, "error", err)
			counts["failed"]++
			continue
		}
		counts["processed"]++

		d.analyze(ctx, a.ProjectID, text)
	}

	d.log.Info("documents processed",
		"dept_id", deptID,
		"total", counts["total"],
		"downloaded", counts["downloaded"],
		"processed", counts["processed"],
		"failed", counts["failed"],
		"skipped", counts["skipped"])

	return &StageResult{Status: StageCompleted, Counts: counts}, nil
}

// acquire locates or downloads the announcement PDF and returns its path.
// "" with nil error means the gateway has no document for the project yet.
func (d *DocumentPipeline) acquire(ctx context.Context, a *store.Announcement) (string, error) {
	projectDir := filepath.Join(d.dataDir, "projects", a.ProjectID)
	pdfPath := filepath.Join(projectDir, a.ProjectID+".pdf")

	if _, err := os.Stat(pdfPath); err == nil {
		return pdfPath, nil
	}

	// The announcement link sometimes serves the PDF directly; try it
	// before the two-step info/download exchange.
	if a.Link != "" {
		if res, err := d.fetcher.Get(ctx, a.Link); err == nil && bytes.HasPrefix(res.Body, pdfMagic) {
			if err := os.MkdirAll(projectDir, 0o755); err != nil {
				return "", fmt.Errorf("mkdir %s: %w", projectDir, err)
			}
			if err := os.WriteFile(pdfPath, res.Body, 0o644); err != nil {
				return "", fmt.Errorf("write %s: %w", pdfPath, err)
			}
			return pdfPath, nil
		}
	}

	info, err := d.gateway.FetchDocumentInfo(ctx, a.ProjectID)
	if err != nil {
		return "", err
	}
	if info == nil {
		return "", nil
	}

	zipPath := filepath.Join(projectDir, a.ProjectID+".zip")
	if err := d.gateway.DownloadFile(ctx, info.ZipID, zipPath); err != nil {
		return "", err
	}
	defer os.Remove(zipPath)

	extracted, err := archive.Extract(zipPath, projectDir)
	if err != nil {
		return "", err
	}
	for _, p := range extracted {
		if strings.EqualFold(filepath.Ext(p), ".pdf") {
			return p, nil
		}
	}
	return "", nil
}

func (d *DocumentPipeline) markFailed(ctx context.Context, projectID string) {
	if err := d.store.UpdateStatus(ctx, projectID, store.StatusFailed); err != nil {
		d.log.Error("status update failed", "project_id", projectID, "error", err)
	}
}

func (d *DocumentPipeline) analyze(ctx context.Context, projectID, text string) {
	if d.analyzer == nil {
		return
	}
	summary, err := d.analyzer.Summarize(ctx, text)
	if err != nil {
		d.log.Warn("analyzer failed", "project_id", projectID, "error", err)
		return
	}
	d.log.Info("analyzer summary", "project_id", projectID, "summary", summary)
}
