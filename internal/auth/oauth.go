// Package auth wires OAuth2 credential flows and adapter-internal session
// token persistence (§4.6, §6). Grounded on the teacher's
// internal/auth/{oauth,refresh}.go, generalized from a single hardcoded
// Strava endpoint to any platform with an oauth2.Endpoint.
package auth

import (
	"golang.org/x/oauth2"
)

// Endpoint describes a platform's OAuth2 authorization/token URLs and
// scopes.
type Endpoint struct {
	AuthURL  string
	TokenURL string
	Scopes   []string
}

// StravaEndpoint mirrors the teacher's hardcoded Strava OAuth endpoints
// (Strava uses comma-separated scopes in a single string).
var StravaEndpoint = Endpoint{
	AuthURL:  "https://www.strava.com/oauth/authorize",
	TokenURL: "https://www.strava.com/oauth/token",
	Scopes:   []string{"read,activity:read_all"},
}

// OneDriveEndpoint is Microsoft's v2.0 endpoint, scoped to Graph's
// Files.ReadWrite for OneDrive uploads plus offline_access for refresh.
var OneDriveEndpoint = Endpoint{
	AuthURL:  "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
	TokenURL: "https://login.microsoftonline.com/common/oauth2/v2.0/token",
	Scopes:   []string{"Files.ReadWrite", "offline_access"},
}

// Config holds the OAuth client credentials for one adapter instance.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g., "http://localhost:8089/callback"
}

// NewOAuthConfig creates an oauth2.Config from an endpoint and client
// credentials.
func NewOAuthConfig(ep Endpoint, cfg Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  ep.AuthURL,
			TokenURL: ep.TokenURL,
		},
		RedirectURL: cfg.RedirectURL,
		Scopes:      ep.Scopes,
	}
}

// AuthResult contains the token and athlete info from successful auth
type AuthResult struct {
	Token     *oauth2.Token
	AthleteID int64
}

// ExtractAthleteID extracts the athlete ID from the token extras
// Strava includes athlete info in the token response
func ExtractAthleteID(token *oauth2.Token) int64 {
	if athlete, ok := token.Extra("athlete").(map[string]interface{}); ok {
		if id, ok := athlete["id"].(float64); ok {
			return int64(id)
		}
	}
	return 0
}
