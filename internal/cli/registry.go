package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/Dunky-Z/FitSync/internal/auth"
	"github.com/Dunky-Z/FitSync/internal/platform"
	"github.com/Dunky-Z/FitSync/internal/platform/garmin"
	"github.com/Dunky-Z/FitSync/internal/platform/igpsport"
	"github.com/Dunky-Z/FitSync/internal/platform/intervalsicu"
	"github.com/Dunky-Z/FitSync/internal/platform/onedrive"
	"github.com/Dunky-Z/FitSync/internal/platform/strava"
	"github.com/Dunky-Z/FitSync/internal/ratelimit"
)

// defaultWindow is the rolling window used for platforms whose API docs
// this codebase has no hardcoded caps for. genericCaps uses the same
// 100/15min window cap as StravaDefaults and a larger daily budget.
const defaultWindow = 15 * time.Minute

func genericCaps() ratelimit.Caps {
	return ratelimit.Caps{WindowLimit: 100, WindowMargin: 90, DailyLimit: 2000, DailyMargin: 1800, Window: defaultWindow}
}

// tokenFromJSON decodes an oauth2.Token previously persisted via
// json.Marshal into the Catalog Store's SyncConfig table.
func tokenFromJSON(raw string) *oauth2.Token {
	var tok oauth2.Token
	_ = json.Unmarshal([]byte(raw), &tok)
	return &tok
}

// buildRegistry wires every enabled platform's adapter into a
// platform.Registry, giving each its own ratelimit.Governor so one
// platform's backoff never throttles another. This is the one place in
// the codebase that imports concrete adapter packages; internal/sync
// only ever sees the platform.Adapter interface, per §9's polymorphism
// requirement.
func buildRegistry(app *App) (*platform.Registry, error) {
	reg := platform.NewRegistry()

	if app.Config.Strava.Enabled {
		tok, ok, err := app.Store.GetConfig("oauth_strava")
		if err != nil {
			return nil, fmt.Errorf("loading strava token: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("strava enabled but not authenticated; run 'fitsync sync --auth strava' first")
		}
		httpClient := auth.NewOAuthConfig(auth.StravaEndpoint, auth.Config{
			ClientID:     app.Config.Strava.ClientID,
			ClientSecret: app.Config.Strava.ClientSecret,
		}).Client(context.Background(), tokenFromJSON(tok))
		governor := ratelimit.New(ratelimit.StravaDefaults())
		reg.Register("strava", strava.NewAdapter(httpClient, governor))
	}

	if app.Config.Garmin.Enabled {
		session := newCatalogSessionStore(app.Store, "garmin")
		client, err := garmin.NewClient(session, ratelimit.New(genericCaps()))
		if err != nil {
			return nil, fmt.Errorf("building garmin client: %w", err)
		}
		reg.Register("garmin", client)
	}

	if app.Config.IGPSport.Enabled {
		token, err := loadToken(app.Store, "igpsport")
		if err != nil {
			return nil, fmt.Errorf("loading igpsport token: %w", err)
		}
		if token == "" {
			return nil, fmt.Errorf("igpsport enabled but not authenticated; run 'fitsync sync --auth igpsport' first")
		}
		reg.Register("igpsport", igpsport.NewClient(http.DefaultClient, ratelimit.New(genericCaps()), token))
	}

	if app.Config.OneDrive.Enabled {
		tok, ok, err := app.Store.GetConfig("oauth_onedrive")
		if err != nil {
			return nil, fmt.Errorf("loading onedrive token: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("onedrive enabled but not authenticated; run 'fitsync sync --auth onedrive' first")
		}
		httpClient := auth.NewOAuthConfig(auth.OneDriveEndpoint, auth.Config{
			ClientID:     app.Config.OneDrive.ClientID,
			ClientSecret: app.Config.OneDrive.ClientSecret,
		}).Client(context.Background(), tokenFromJSON(tok))
		reg.Register("onedrive", onedrive.NewClient(httpClient, ratelimit.New(genericCaps()), app.Config.OneDrive.FolderPath))
	}

	if app.Config.IntervalsICU.Enabled {
		reg.Register("intervals_icu", intervalsicu.NewClient(http.DefaultClient, ratelimit.New(genericCaps()), app.Config.IntervalsICU.AthleteID, app.Config.IntervalsICU.APIKey))
	}

	return reg, nil
}
