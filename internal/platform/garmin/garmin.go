// Package garmin implements the Garmin Connect platform adapter (§4.6),
// grounded on Matbe34-aimharder-sync's internal/garmin/client.go: a
// cookiejar-backed session client with a multipart FIT/TCX upload and a
// persisted session token instead of OAuth2 (Garmin Connect has no public
// OAuth2 flow for personal automation).
package garmin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Dunky-Z/FitSync/internal/platform"
	"github.com/Dunky-Z/FitSync/internal/ratelimit"
)

const (
	ssoURL          = "https://sso.garmin.com/sso/signin"
	modernURL       = "https://connect.garmin.com/modern"
	uploadURL       = "https://connect.garmin.com/upload-service/upload"
	activityListURL = "https://connect.garmin.com/activitylist-service/activities/search/activities"

	sessionLifetime = 24 * time.Hour
)

var csrfPattern = regexp.MustCompile(`name="_csrf"\s+value="([^"]+)"`)
var ticketPattern = regexp.MustCompile(`ticket=([A-Za-z0-9\-]+)`)

// SessionStore persists and restores Garmin's cookie-based session across
// process runs, mirroring the teacher's loadTokens/saveTokens.
type SessionStore interface {
	Load() ([]*http.Cookie, time.Time, error)
	Save(cookies []*http.Cookie, expiresAt time.Time) error
}

// Client is the Garmin Connect platform.Adapter implementation.
type Client struct {
	httpClient *http.Client
	governor   *ratelimit.Governor
	session    SessionStore
	loggedIn   bool
}

// NewClient builds a Garmin adapter with a fresh cookie jar. Login must be
// called (or a prior session restored via SessionStore) before use.
func NewClient(session SessionStore, governor *ratelimit.Governor) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second, Jar: jar},
		governor:   governor,
		session:    session,
	}
	if cookies, expiresAt, err := session.Load(); err == nil && time.Now().Before(expiresAt) {
		connect, _ := url.Parse("https://connect.garmin.com")
		jar.SetCookies(connect, cookies)
		c.loggedIn = true
	}
	return c, nil
}

// Login performs Garmin's SSO embed login dance: fetch a CSRF token,
// submit credentials, exchange the resulting service ticket for a
// session, then persist the cookie jar via SessionStore. Grounded on
// Matbe34-aimharder-sync's getCSRFToken/submitLogin/exchangeTicket
// sequence.
func (c *Client) Login(ctx context.Context, email, password string) error {
	csrfToken, err := c.fetchCSRFToken(ctx)
	if err != nil {
		return fmt.Errorf("fetching csrf token: %w", err)
	}

	ticket, err := c.submitCredentials(ctx, email, password, csrfToken)
	if err != nil {
		return fmt.Errorf("%w: %v", platform.ErrUnauthorized, err)
	}

	if err := c.exchangeTicket(ctx, ticket); err != nil {
		return fmt.Errorf("exchanging service ticket: %w", err)
	}

	c.loggedIn = true
	connect, _ := url.Parse("https://connect.garmin.com")
	expiresAt := time.Now().Add(sessionLifetime)
	return c.session.Save(c.httpClient.Jar.Cookies(connect), expiresAt)
}

func (c *Client) fetchCSRFToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", ssoURL+"?service="+url.QueryEscape(modernURL), nil)
	if err != nil {
		return "", err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	matches := csrfPattern.FindSubmatch(body)
	if len(matches) < 2 {
		return "", fmt.Errorf("csrf token not found in sso page")
	}
	return string(matches[1]), nil
}

func (c *Client) submitCredentials(ctx context.Context, email, password, csrfToken string) (string, error) {
	form := url.Values{
		"username": {email},
		"password": {password},
		"embed":    {"false"},
		"_csrf":    {csrfToken},
	}

	req, err := http.NewRequestWithContext(ctx, "POST", ssoURL+"?service="+url.QueryEscape(modernURL), strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if strings.Contains(string(body), "ACCOUNT_LOCKED") {
		return "", fmt.Errorf("account is locked")
	}
	if strings.Contains(string(body), "INVALID_CREDENTIALS") || strings.Contains(string(body), "Invalid credentials") {
		return "", fmt.Errorf("invalid email or password")
	}

	matches := ticketPattern.FindSubmatch(body)
	if len(matches) < 2 {
		return "", fmt.Errorf("service ticket not found, login may have failed")
	}
	return string(matches[1]), nil
}

func (c *Client) exchangeTicket(ctx context.Context, ticket string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/?ticket=%s", modernURL, ticket), nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("ticket exchange returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) Info() platform.Info {
	return platform.Info{
		PlatformName:       "garmin",
		APICostPerList:     1,
		APICostPerDownload: 1,
		APICostPerUpload:   1,
	}
}

func (c *Client) SupportedUploadFormats() []string {
	return []string{"fit", "tcx"}
}

type apiActivity struct {
	ActivityID   int64   `json:"activityId"`
	ActivityName string  `json:"activityName"`
	ActivityType struct {
		TypeKey string `json:"typeKey"`
	} `json:"activityType"`
	StartTimeGMT string  `json:"startTimeGMT"`
	Distance     float64 `json:"distance"`
	Duration     float64 `json:"duration"`
}

func (c *Client) ListActivities(ctx context.Context, since time.Time, limit int) ([]platform.ActivityRecord, error) {
	if err := c.checkAuth(); err != nil {
		return nil, err
	}
	if d := c.governor.Reserve("garmin", 1); !d.Granted {
		return nil, fmt.Errorf("%w: retry after %s", platform.ErrRateLimited, d.RetryAfter)
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("start", "0")

	req, err := http.NewRequestWithContext(ctx, "GET", activityListURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", platform.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, platform.ErrUnauthorized
	}

	var raw []apiActivity
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding activity list: %w", err)
	}

	out := make([]platform.ActivityRecord, 0, len(raw))
	for _, a := range raw {
		start, err := time.Parse("2006-01-02 15:04:05", a.StartTimeGMT)
		if err != nil {
			continue
		}
		if !since.IsZero() && !start.After(since) {
			continue
		}
		out = append(out, platform.ActivityRecord{
			PlatformActivityID: strconv.FormatInt(a.ActivityID, 10),
			Name:               a.ActivityName,
			SportType:          a.ActivityType.TypeKey,
			StartTime:          start.UTC(),
			Distance:           a.Distance,
			Duration:           int64(a.Duration),
			AvailableFormats:   []string{"fit"},
		})
	}
	return out, nil
}

func (c *Client) Download(ctx context.Context, platformActivityID, preferredFormat string) ([]byte, string, error) {
	if err := c.checkAuth(); err != nil {
		return nil, "", err
	}
	if d := c.governor.Reserve("garmin", 1); !d.Granted {
		return nil, "", fmt.Errorf("%w: retry after %s", platform.ErrRateLimited, d.RetryAfter)
	}

	exportURL := fmt.Sprintf("https://connect.garmin.com/download-service/export/%s/activity/%s", normalizeFormat(preferredFormat), platformActivityID)
	req, err := http.NewRequestWithContext(ctx, "GET", exportURL, nil)
	if err != nil {
		return nil, "", err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", platform.ErrTransport, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return nil, "", platform.ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, "", platform.ErrUnauthorized
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading export: %w", err)
	}
	return data, normalizeFormat(preferredFormat), nil
}

func normalizeFormat(format string) string {
	if format == "tcx" {
		return "tcx"
	}
	return "fit"
}

func (c *Client) Upload(ctx context.Context, data []byte, format string, meta platform.UploadMetadata) (platform.UploadOutcome, error) {
	if err := c.checkAuth(); err != nil {
		return platform.UploadOutcome{}, err
	}
	if d := c.governor.Reserve("garmin", 1); !d.Granted {
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

	req, err := http.NewRequestWithContext(ctx, "POST", uploadURL+"/."+format, &buf)
	if err != nil {
		return platform.UploadOutcome{}, err
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("NK", "NT")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return platform.UploadOutcome{}, fmt.Errorf("%w: %v", platform.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	var result struct {
		DetailedImportResult struct {
			Successes []struct {
				InternalID int64 `json:"internalId"`
			} `json:"successes"`
			Failures []struct {
				Messages []struct {
					Code    int    `json:"code"`
					Content string `json:"content"`
				} `json:"messages"`
			} `json:"failures"`
		} `json:"detailedImportResult"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return platform.UploadOutcome{}, fmt.Errorf("decoding upload response: %w", err)
	}

	if len(result.DetailedImportResult.Failures) > 0 {
		f := result.DetailedImportResult.Failures[0]
		if len(f.Messages) > 0 {
			if f.Messages[0].Code == 202 { // duplicate activity
				return platform.UploadOutcome{Status: platform.UploadDuplicate}, nil
			}
			return platform.UploadOutcome{Status: platform.UploadRejected, RejectReason: f.Messages[0].Content}, nil
		}
		return platform.UploadOutcome{Status: platform.UploadTransient}, nil
	}
	if len(result.DetailedImportResult.Successes) == 0 {
		return platform.UploadOutcome{Status: platform.UploadTransient}, nil
	}
	return platform.UploadOutcome{
		Status:   platform.UploadAccepted,
		RemoteID: strconv.FormatInt(result.DetailedImportResult.Successes[0].InternalID, 10),
	}, nil
}

func (c *Client) HealthCheck(ctx context.Context) platform.HealthStatus {
	if !c.loggedIn {
		return platform.HealthDown
	}
	req, err := http.NewRequestWithContext(ctx, "GET", "https://connect.garmin.com/userprofile-service/userprofile/settings", nil)
	if err != nil {
		return platform.HealthDown
	}
	c.setHeaders(req)
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

func (c *Client) checkAuth() error {
	if !c.loggedIn {
		return fmt.Errorf("%w: no active garmin session, run auth flow first", platform.ErrUnauthorized)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "application/json")
}
