// Package intervalsicu implements the intervals.icu platform adapter
// (§4.6). intervals.icu authenticates with HTTP Basic auth using the
// literal string "API_KEY" as the username and a per-athlete API key as
// the password, documented at intervals.icu/api. No pack example covers
// this platform directly; the client follows the same governor-gated
// get() shape as internal/platform/strava.
package intervalsicu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/Dunky-Z/FitSync/internal/platform"
	"github.com/Dunky-Z/FitSync/internal/ratelimit"
)

var baseURL = "https://intervals.icu/api/v1"

// Client is the intervals.icu platform.Adapter implementation.
type Client struct {
	httpClient *http.Client
	governor   *ratelimit.Governor
	athleteID  string
	apiKey     string
}

// NewClient builds an intervals.icu adapter for one athlete.
func NewClient(httpClient *http.Client, governor *ratelimit.Governor, athleteID, apiKey string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{httpClient: httpClient, governor: governor, athleteID: athleteID, apiKey: apiKey}
}

func (c *Client) Info() platform.Info {
	return platform.Info{
		PlatformName:       "intervals_icu",
		APICostPerList:     1,
		APICostPerDownload: 1,
		APICostPerUpload:   1,
	}
}

func (c *Client) SupportedUploadFormats() []string {
	return []string{"fit", "tcx", "gpx"}
}

type apiActivity struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Type          string  `json:"type"`
	StartDateUTC  string  `json:"start_date_local"`
	Distance      float64 `json:"distance"`
	MovingTime    int64   `json:"moving_time"`
	FileType      string  `json:"file_type"`
}

func (c *Client) ListActivities(ctx context.Context, since time.Time, limit int) ([]platform.ActivityRecord, error) {
	if d := c.governor.Reserve("intervals_icu", 1); !d.Granted {
		return nil, fmt.Errorf("%w: retry after %s", platform.ErrRateLimited, d.RetryAfter)
	}

	path := fmt.Sprintf("/athlete/%s/activities?limit=%d", c.athleteID, limit)
	if !since.IsZero() {
		path += "&oldest=" + since.UTC().Format("2006-01-02")
	}

	resp, err := c.get(ctx, path)
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
		start, err := time.Parse(time.RFC3339, a.StartDateUTC)
		if err != nil {
			continue
		}
		if !since.IsZero() && !start.After(since) {
			continue
		}
		formats := []string{}
		if a.FileType != "" {
			formats = []string{a.FileType}
		}
		out = append(out, platform.ActivityRecord{
			PlatformActivityID: a.ID,
			Name:               a.Name,
			SportType:          a.Type,
			StartTime:          start.UTC(),
			Distance:           a.Distance,
			Duration:           a.MovingTime,
			AvailableFormats:   formats,
			Manual:             a.FileType == "",
		})
	}
	return out, nil
}

func (c *Client) Download(ctx context.Context, platformActivityID, preferredFormat string) ([]byte, string, error) {
	if d := c.governor.Reserve("intervals_icu", 1); !d.Granted {
		return nil, "", fmt.Errorf("%w: retry after %s", platform.ErrRateLimited, d.RetryAfter)
	}

	resp, err := c.get(ctx, fmt.Sprintf("/activity/%s/file", platformActivityID))
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading activity file: %w", err)
	}
	return data, preferredFormat, nil
}

func (c *Client) Upload(ctx context.Context, data []byte, format string, meta platform.UploadMetadata) (platform.UploadOutcome, error) {
	if d := c.governor.Reserve("intervals_icu", 1); !d.Granted {
		return platform.UploadOutcome{}, fmt.Errorf("%w: retry after %s", platform.ErrRateLimited, d.RetryAfter)
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
	if err := w.Close(); err != nil {
		return platform.UploadOutcome{}, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", baseURL+"/athlete/"+c.athleteID+"/activities", &buf)
	if err != nil {
		return platform.UploadOutcome{}, err
	}
	req.SetBasicAuth("API_KEY", c.apiKey)
	req.Header.Set("Content-Type", w.FormDataContentType())

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
		return platform.UploadOutcome{Status: platform.UploadDuplicate}, nil
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return platform.UploadOutcome{}, fmt.Errorf("decoding upload response: %w", err)
	}
	if result.ID == "" {
		return platform.UploadOutcome{Status: platform.UploadTransient}, nil
	}
	return platform.UploadOutcome{Status: platform.UploadAccepted, RemoteID: result.ID}, nil
}

func (c *Client) HealthCheck(ctx context.Context) platform.HealthStatus {
	resp, err := c.get(ctx, "/athlete/"+c.athleteID)
	if err != nil {
		return platform.HealthDown
	}
	defer resp.Body.Close()
	return platform.HealthOK
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth("API_KEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", platform.ErrTransport, err)
	}

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
		return nil, fmt.Errorf("%w: intervals.icu API error %d: %s", platform.ErrTransport, resp.StatusCode, string(body))
	}
}
