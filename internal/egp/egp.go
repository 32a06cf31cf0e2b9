// Package egp is the client for the procurement gateway's document
// services: the announcement-document info endpoint and the file download
// endpoint. Responses arrive in the gateway's envelope format, where a
// responseCode of "0" means success and anything else is an application
// level refusal delivered over HTTP 200.
package egp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/kendricksin/feed-scanner/internal/fetch"
)

// DocumentInfo describes the downloadable archive for a project.
type DocumentInfo struct {
	ZipID string `json:"zipId"`
}

// envelope is the gateway's response wrapper.
type envelope struct {
	Response struct {
		ResponseCode string `json:"responseCode"`
		Description  string `json:"description"`
	} `json:"response"`
	Data DocumentInfo `json:"data"`
}

// Config holds the gateway endpoints.
type Config struct {
	InfoURL     string // document info endpoint, takes ?projectId=
	DownloadURL string // file download endpoint, takes ?fileId=
}

// Client talks to the gateway through a bounded fetcher.
type Client struct {
	fetcher *fetch.Fetcher
	config  Config
	log     *slog.Logger
}

// NewClient creates a gateway client.
func NewClient(fetcher *fetch.Fetcher, cfg Config, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{fetcher: fetcher, config: cfg, log: log}
}

// FetchDocumentInfo asks the gateway whether a project has a document
// archive. Returns (nil, nil) when the gateway answers with a non-zero
// response code or an empty zip id: "no documents" is an expected outcome,
// not a failure.
func (c *Client) FetchDocumentInfo(ctx context.Context, projectID string) (*DocumentInfo, error) {
	u, err := withQuery(c.config.InfoURL, "projectId", projectID)
	if err != nil {
		return nil, fmt.Errorf("egp: info url: %w", err)
	}

	res, err := c.fetcher.Get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("egp: document info %s: %w", projectID, err)
	}

	var env envelope
	if err := json.Unmarshal(res.Body, &env); err != nil {
		return nil, fmt.Errorf("egp: decode document info %s: %w", projectID, err)
	}

	if env.Response.ResponseCode != "0" {
		c.log.Warn("gateway refused document info",
			"project_id", projectID,
			"code", env.Response.ResponseCode,
			"description", env.Response.Description)
		return nil, nil
	}
	if env.Data.ZipID == "" {
		return nil, nil
	}
	return &env.Data, nil
}

// DownloadFile retrieves the archive identified by fileID to dstPath.
func (c *Client) DownloadFile(ctx context.Context, fileID, dstPath string) error {
	u, err := withQuery(c.config.DownloadURL, "fileId", fileID)
	if err != nil {
		return fmt.Errorf("egp: download url: %w", err)
	}
	if err := c.fetcher.Download(ctx, u, dstPath); err != nil {
		return fmt.Errorf("egp: download %s: %w", fileID, err)
	}
	return nil
}

func withQuery(base, key, value string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
