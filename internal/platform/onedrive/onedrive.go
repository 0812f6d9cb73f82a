// Package onedrive implements the OneDrive platform adapter (§4.6, §4.9).
// OneDrive is a sync destination only: it never sources activities for
// this system, so ListActivities/Download are unsupported. Grounded on
// internal/auth.OneDriveEndpoint for the OAuth2 token dance and on
// onedrive-go's Microsoft Graph simple-upload call shape (PUT to an
// item's :/content: path) for the transfer itself.
package onedrive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Dunky-Z/FitSync/internal/platform"
	"github.com/Dunky-Z/FitSync/internal/ratelimit"
)

// graphBaseURL is a var, not a const, so tests can point the adapter at
// an httptest.Server.
var graphBaseURL = "https://graph.microsoft.com/v1.0"

// Client is the OneDrive platform.Adapter implementation. It only
// implements the upload half of the interface; the sync executor is
// expected to never schedule OneDrive as a source platform (§4.9
// "Direction" is (source, destination), and OneDrive only ever appears
// as a destination in SPEC_FULL's supplemented feature list).
type Client struct {
	httpClient *http.Client
	governor   *ratelimit.Governor
	folderPath string // e.g. "/Apps/FitSync/Activities"
}

// NewClient builds a OneDrive adapter from an authenticated HTTP client
// (internal/cli passes oauth2.Config.Client against
// auth.OneDriveEndpoint) and the destination folder configured for this
// platform.
func NewClient(httpClient *http.Client, governor *ratelimit.Governor, folderPath string) *Client {
	if folderPath == "" {
		folderPath = "/Apps/FitSync/Activities"
	}
	return &Client{httpClient: httpClient, governor: governor, folderPath: strings.TrimSuffix(folderPath, "/")}
}

func (c *Client) Info() platform.Info {
	return platform.Info{
		PlatformName:       "onedrive",
		APICostPerList:     0,
		APICostPerDownload: 0,
		APICostPerUpload:   1,
	}
}

// SupportedUploadFormats prefers GPX: per §4.9's supplemented detail,
// OneDrive's consumers (Fog-of-World style route trackers) read GPX, not
// FIT or TCX.
func (c *Client) SupportedUploadFormats() []string {
	return []string{"gpx", "fit", "tcx"}
}

func (c *Client) ListActivities(ctx context.Context, since time.Time, limit int) ([]platform.ActivityRecord, error) {
	return nil, fmt.Errorf("onedrive: %w: not a source platform", platform.ErrNotFound)
}

func (c *Client) Download(ctx context.Context, platformActivityID, preferredFormat string) ([]byte, string, error) {
	return nil, "", fmt.Errorf("onedrive: %w: not a source platform", platform.ErrNotFound)
}

func (c *Client) Upload(ctx context.Context, data []byte, format string, meta platform.UploadMetadata) (platform.UploadOutcome, error) {
	if d := c.governor.Reserve("onedrive", 1); !d.Granted {
		return platform.UploadOutcome{}, fmt.Errorf("%w: retry after %s", platform.ErrRateLimited, d.RetryAfter)
	}

	fileName := fmt.Sprintf("%s.%s", sanitizeFileName(meta.Name, meta.StartTime), format)
	itemPath := fmt.Sprintf("%s/%s", c.folderPath, fileName)
	uploadURL := fmt.Sprintf("%s/me/drive/root:%s:/content", graphBaseURL, itemPath)

	req, err := http.NewRequestWithContext(ctx, "PUT", uploadURL, bytes.NewReader(data))
	if err != nil {
		return platform.UploadOutcome{}, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return platform.UploadOutcome{}, fmt.Errorf("%w: %v", platform.ErrTransport, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return platform.UploadOutcome{}, platform.ErrUnauthorized
	case http.StatusTooManyRequests:
		return platform.UploadOutcome{}, platform.ErrRateLimited
	case http.StatusConflict:
		// Graph returns 409 when an item already exists and the request
		// did not set a @microsoft.graph.conflictBehavior rename/replace
		// header; treat as duplicate rather than a hard failure.
		return platform.UploadOutcome{Status: platform.UploadDuplicate}, nil
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return platform.UploadOutcome{Status: platform.UploadTransient}, fmt.Errorf("onedrive upload failed %d: %s", resp.StatusCode, string(body))
	}

	var item struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return platform.UploadOutcome{}, fmt.Errorf("decoding drive item: %w", err)
	}
	return platform.UploadOutcome{Status: platform.UploadAccepted, RemoteID: item.ID}, nil
}

func sanitizeFileName(name string, start time.Time) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	if clean == "" {
		clean = "activity"
	}
	return fmt.Sprintf("%s_%s", start.UTC().Format("20060102T150405Z"), clean)
}

func (c *Client) HealthCheck(ctx context.Context) platform.HealthStatus {
	req, err := http.NewRequestWithContext(ctx, "GET", graphBaseURL+"/me/drive", nil)
	if err != nil {
		return platform.HealthDown
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return platform.HealthDown
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		return platform.HealthOK
	}
	return platform.HealthDegraded
}
