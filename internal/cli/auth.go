package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Dunky-Z/FitSync/internal/auth"
	"github.com/Dunky-Z/FitSync/internal/platform/garmin"
	"github.com/Dunky-Z/FitSync/internal/platform/igpsport"
	"github.com/Dunky-Z/FitSync/internal/ratelimit"
)

// oneDriveCallbackPort differs from auth.DefaultCallbackPort so running
// Strava and OneDrive logins back-to-back in the same terminal session
// never collides on a still-closing listener.
const oneDriveCallbackPort = 8090

// runAuth performs the named platform's login flow and persists
// whatever credential it produces (an OAuth2 token, a session cookie
// jar, or a bearer token) into the Catalog Store, mirroring the
// teacher's authenticate() helper in main.go generalized to five
// platforms with three distinct auth shapes.
func runAuth(ctx context.Context, app *App, platformName string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	switch platformName {
	case "strava":
		return authOAuth(ctx, app, "strava", auth.StravaEndpoint, auth.Config{
			ClientID:     app.Config.Strava.ClientID,
			ClientSecret: app.Config.Strava.ClientSecret,
			RedirectURL:  fmt.Sprintf("http://localhost:%d/callback", auth.DefaultCallbackPort),
		}, auth.DefaultCallbackPort)

	case "onedrive":
		return authOAuth(ctx, app, "onedrive", auth.OneDriveEndpoint, auth.Config{
			ClientID:     app.Config.OneDrive.ClientID,
			ClientSecret: app.Config.OneDrive.ClientSecret,
			RedirectURL:  fmt.Sprintf("http://localhost:%d/callback", oneDriveCallbackPort),
		}, oneDriveCallbackPort)

	case "garmin":
		session := newCatalogSessionStore(app.Store, "garmin")
		client, err := garmin.NewClient(session, ratelimit.New(genericCaps()))
		if err != nil {
			return err
		}
		if err := client.Login(ctx, app.Config.Garmin.Username, app.Config.Garmin.Password); err != nil {
			return fmt.Errorf("garmin login: %w", err)
		}
		fmt.Println("garmin session established")
		return nil

	case "igpsport":
		client, err := igpsport.Login(ctx, http.DefaultClient, ratelimit.New(genericCaps()), app.Config.IGPSport.Username, app.Config.IGPSport.Password)
		if err != nil {
			return fmt.Errorf("igpsport login: %w", err)
		}
		if err := saveToken(app.Store, "igpsport", client.Token()); err != nil {
			return err
		}
		fmt.Println("igpsport session established")
		return nil

	default:
		return fmt.Errorf("platform %q has no login flow (it authenticates via config credentials only)", platformName)
	}
}

func authOAuth(ctx context.Context, app *App, key string, endpoint auth.Endpoint, cfg auth.Config, port int) error {
	oauthCfg := auth.NewOAuthConfig(endpoint, cfg)
	result, err := auth.Authenticate(ctx, oauthCfg, port)
	if err != nil {
		return fmt.Errorf("%s login: %w", key, err)
	}

	data, err := json.Marshal(result.Token)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	if err := app.Store.SetConfig("oauth_"+key, string(data)); err != nil {
		return fmt.Errorf("persisting token: %w", err)
	}

	fmt.Printf("%s session established\n", key)
	return nil
}
