// Package strava implements the Strava platform adapter (§4.6), grounded
// on the teacher's internal/strava/client.go get() helper pattern and
// internal/auth/{oauth,refresh}.go token management, generalized to the
// platform.Adapter interface and the ratelimit.Governor (replacing the
// teacher's blocking internal rate limiter).
package strava

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Dunky-Z/FitSync/internal/platform"
	"github.com/Dunky-Z/FitSync/internal/ratelimit"
)

// baseURL is a var, not a const, so tests can point the adapter at an
// httptest.Server.
var baseURL = "https://www.strava.com/api/v3"

// Client is the Strava platform.Adapter implementation.
type Client struct {
	httpClient *http.Client
	governor   *ratelimit.Governor
}

// apiActivity mirrors the subset of Strava's activity JSON the adapter
// needs; field names match the teacher's internal/strava/models.go.
type apiActivity struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	SportType   string    `json:"sport_type"`
	StartDate   time.Time `json:"start_date"`
	Distance    float64   `json:"distance"`
	MovingTime  int       `json:"moving_time"`
	DeviceName  string    `json:"device_name"`
	UploadID    *int64    `json:"upload_id"`
	ExternalID  string    `json:"external_id"`
	ManualEntry bool      `json:"manual"`
}

// NewAdapter builds a Strava platform.Adapter from an authenticated HTTP
// client (internal/cli passes oauth2.Config.Client, which refreshes the
// token in memory) and a rate-limit Governor.
func NewAdapter(httpClient *http.Client, governor *ratelimit.Governor) *Client {
	return &Client{httpClient: httpClient, governor: governor}
}

func (c *Client) Info() platform.Info {
	return platform.Info{
		PlatformName:       "strava",
		APICostPerList:     1,
		APICostPerDownload: 1,
		APICostPerUpload:   1,
	}
}

func (c *Client) SupportedUploadFormats() []string {
	return []string{"fit", "tcx", "gpx"}
}

func (c *Client) ListActivities(ctx context.Context, since time.Time, limit int) ([]platform.ActivityRecord, error) {
	if d := c.reserve(ctx, 1); d != nil {
		return nil, d
	}

	params := url.Values{}
	if !since.IsZero() {
		params.Set("after", strconv.FormatInt(since.Unix(), 10))
	}
	params.Set("per_page", strconv.Itoa(limit))

	resp, err := c.get(ctx, "/athlete/activities", params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var raw []apiActivity
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding activities: %w", err)
	}

	out := make([]platform.ActivityRecord, 0, len(raw))
	for _, a := range raw {
		rec := platform.ActivityRecord{
			PlatformActivityID: strconv.FormatInt(a.ID, 10),
			Name:               a.Name,
			SportType:          a.SportType,
			StartTime:          a.StartDate,
			Distance:           a.Distance,
			Duration:           int64(a.MovingTime),
			AvailableFormats:   []string{"fit"},
		}
		if isManual(a) {
			rec.Manual = true
			rec.AvailableFormats = nil
		}
		out = append(out, rec)
	}
	return out, nil
}

// isManual implements §4.7: a record is manual when the device name,
// upload id, and external id are all absent. This inspects the API
// payload's own fields rather than guessing from a download's HTTP
// status, per §4.7's requirement.
func isManual(a apiActivity) bool {
	return a.DeviceName == "" && a.UploadID == nil && a.ExternalID == ""
}

func (c *Client) Download(ctx context.Context, platformActivityID, preferredFormat string) ([]byte, string, error) {
	if d := c.reserve(ctx, 1); d != nil {
		return nil, "", d
	}

	path := fmt.Sprintf("/activities/%s/export_%s", platformActivityID, normalizeExportFormat(preferredFormat))
	resp, err := c.get(ctx, path, nil)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	// Strava serves an HTML error page (not the expected binary export)
	// both for manual activities and for some auth failures. §4.7
	// requires distinguishing the two by landmark, not status code.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading export: %w", err)
	}
	if looksLikeManualActivityPage(body) {
		return nil, "", platform.ErrNoOriginalFile
	}

	return body, preferredFormat, nil
}

func looksLikeManualActivityPage(body []byte) bool {
	return bytes.Contains(body, []byte("This activity does not have a file")) ||
		bytes.Contains(body, []byte("id=\"manual-activity\""))
}

func normalizeExportFormat(format string) string {
	switch format {
	case "tcx":
		return "tcx"
	case "gpx":
		return "gpx"
	default:
		return "original" // Strava's FIT export route
	}
}

func (c *Client) Upload(ctx context.Context, data []byte, format string, meta platform.UploadMetadata) (platform.UploadOutcome, error) {
	if d := c.reserve(ctx, 1); d != nil {
		return platform.UploadOutcome{}, d
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "activity."+format)
	if err != nil {
		return platform.UploadOutcome{}, err
	}
	if _, err := part.Write(data); err != nil {
		return platform.UploadOutcome{}, err
	}
	_ = w.WriteField("data_type", format)
	_ = w.WriteField("name", meta.Name)
	if err := w.Close(); err != nil {
		return platform.UploadOutcome{}, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", baseURL+"/uploads", &buf)
	if err != nil {
		return platform.UploadOutcome{}, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return platform.UploadOutcome{}, fmt.Errorf("%w: %v", platform.ErrTransport, err)
	}
	defer resp.Body.Close()
	c.governor.UpdateFromHeaders("strava", resp.Header)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return platform.UploadOutcome{}, platform.ErrUnauthorized
	case http.StatusTooManyRequests:
		return platform.UploadOutcome{}, platform.ErrRateLimited
	}

	var result struct {
		ID     int64  `json:"id"`
		Error  string `json:"error"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return platform.UploadOutcome{}, fmt.Errorf("decoding upload response: %w", err)
	}

	if strings.Contains(strings.ToLower(result.Error), "duplicate") {
		return platform.UploadOutcome{Status: platform.UploadDuplicate, RemoteID: strconv.FormatInt(result.ID, 10)}, nil
	}
	if result.Error != "" {
		return platform.UploadOutcome{Status: platform.UploadRejected, RejectReason: result.Error}, nil
	}
	return platform.UploadOutcome{Status: platform.UploadAccepted, RemoteID: strconv.FormatInt(result.ID, 10)}, nil
}

func (c *Client) HealthCheck(ctx context.Context) platform.HealthStatus {
	resp, err := c.get(ctx, "/athlete", nil)
	if err != nil {
		return platform.HealthDown
	}
	defer resp.Body.Close()
	return platform.HealthOK
}

// reserve consults the shared Governor before making a call, converting
// a denial into a wrapped platform.ErrRateLimited the executor can match
// with errors.Is.
func (c *Client) reserve(ctx context.Context, cost int) error {
	d := c.governor.Reserve("strava", cost)
	if d.Granted {
		return nil
	}
	return fmt.Errorf("%w: retry after %s", platform.ErrRateLimited, d.RetryAfter)
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	reqURL := baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", platform.ErrTransport, err)
	}

	c.governor.UpdateFromHeaders("strava", resp.Header)

	switch resp.StatusCode {
	case http.StatusOK:
		return resp, nil
	case http.StatusUnauthorized:
		resp.Body.Close()
		return nil, platform.ErrUnauthorized
	case http.StatusTooManyRequests:
		resp.Body.Close()
		return nil, platform.ErrRateLimited
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, platform.ErrNotFound
	default:
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("%w: strava API error %d: %s", platform.ErrTransport, resp.StatusCode, string(body))
	}
}
