package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/kendricksin/feed-scanner/internal/feed"
	"github.com/kendricksin/feed-scanner/internal/fetch"
	"github.com/kendricksin/feed-scanner/internal/store"
)

// FeedIngestor polls the announcement feed for one department and upserts
// every item that carries a resolvable project id.
type FeedIngestor struct {
	store   *store.Store
	fetcher *fetch.Fetcher
	feedURL string
	log     *slog.Logger
}

// NewFeedIngestor creates the feed stage. feedURL is the base feed endpoint;
// the department and count parameters are appended per run.
func NewFeedIngestor(st *store.Store, fetcher *fetch.Fetcher, feedURL string, log *slog.Logger) *FeedIngestor {
	if log == nil {
		log = slog.Default()
	}
	return &FeedIngestor{store: st, fetcher: fetcher, feedURL: feedURL, log: log.With("stage", "feed")}
}

func (f *FeedIngestor) Name() string { return "feed" }

// Run polls and ingests the department feed. The feed endpoint is only
// served during published time windows, so an unavailable or empty feed is
// a skipped stage, not an error: the document stage still runs over
// previously discovered work.
func (f *FeedIngestor) Run(ctx context.Context, deptID string) (*StageResult, error) {
	feedURL, err := f.buildURL(deptID)
	if err != nil {
		return nil, fmt.Errorf("feed: build url: %w", err)
	}

	res, err := f.fetcher.Get(ctx, feedURL)
	if err != nil || len(res.Body) == 0 {
		note := "feed unavailable"
		if err != nil {
			note = fmt.Sprintf("feed unavailable: %v", err)
		}
		f.log.Warn("feed unavailable", "dept_id", deptID, "error", err)
		return &StageResult{Status: StageSkipped, Note: note}, nil
	}

	parsed, err := feed.Parse(res.Body)
	if err != nil {
		return nil, fmt.Errorf("feed: dept %s: %w", deptID, err)
	}

	counts := map[string]int{"processed": 0, "new": 0, "updated": 0, "skipped": 0, "failed": 0}
	for _, entry := range parsed.Entries {
		projectID := feed.ProjectID(entry.Description)
		if projectID == "" {
			f.log.Warn("item without project id skipped", "dept_id", deptID, "title", entry.Title)
			counts["skipped"]++
			continue
		}

		// A store failure on one item never aborts its siblings; the item
		// is re-sighted on the next poll.
		existing, err := f.store.GetByProjectID(ctx, projectID)
		if err != nil {
			f.log.Error("item lookup failed", "project_id", projectID, "dept_id", deptID, "error", err)
			counts["failed"]++
			continue
		}

		if _, err := f.store.Upsert(ctx, &store.Announcement{
			ProjectID:   projectID,
			DeptID:      deptID,
			Title:       entry.Title,
			Link:        entry.Link,
			Description: entry.Description,
		}); err != nil {
			f.log.Error("item upsert failed", "project_id", projectID, "dept_id", deptID, "error", err)
			counts["failed"]++
			continue
		}

		counts["processed"]++
		if existing == nil {
			counts["new"]++
		} else {
			counts["updated"]++
		}
	}

	f.log.Info("feed ingested",
		"dept_id", deptID,
		"processed", counts["processed"],
		"new", counts["new"],
		"updated", counts["updated"],
		"skipped", counts["skipped"],
		"failed", counts["failed"])

	return &StageResult{Status: StageCompleted, Counts: counts}, nil
}

func (f *FeedIngestor) buildURL(deptID string) (string, error) {
	u, err := url.Parse(f.feedURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("deptId", deptID)
	q.Set("countbyday", "")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
