package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Dunky-Z/FitSync/internal/catalog"
)

// catalogSessionStore persists Garmin's cookie jar in the Catalog
// Store's SyncConfig table (a key/value blob store already used for
// cursors and tunables), so a restarted process resumes an existing
// session instead of re-running the SSO login flow every invocation.
type catalogSessionStore struct {
	store *catalog.Store
	key   string
}

func newCatalogSessionStore(store *catalog.Store, platform string) *catalogSessionStore {
	return &catalogSessionStore{store: store, key: "session_" + platform}
}

type storedSession struct {
	Cookies   []*http.Cookie `json:"cookies"`
	ExpiresAt time.Time      `json:"expires_at"`
}

func (c *catalogSessionStore) Load() ([]*http.Cookie, time.Time, error) {
	raw, ok, err := c.store.GetConfig(c.key)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("loading session: %w", err)
	}
	if !ok {
		return nil, time.Time{}, nil
	}

	var sess storedSession
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, time.Time{}, fmt.Errorf("decoding session: %w", err)
	}
	return sess.Cookies, sess.ExpiresAt, nil
}

func (c *catalogSessionStore) Save(cookies []*http.Cookie, expiresAt time.Time) error {
	data, err := json.Marshal(storedSession{Cookies: cookies, ExpiresAt: expiresAt})
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	return c.store.SetConfig(c.key, string(data))
}

// loadToken and saveToken give IGPSport's bearer-token login the same
// restart-resilient persistence as Garmin's cookie jar, keyed
// separately since the shapes differ (a bare string vs. a cookie set).
func loadToken(store *catalog.Store, platform string) (string, error) {
	token, _, err := store.GetConfig("token_" + platform)
	return token, err
}

func saveToken(store *catalog.Store, platform, token string) error {
	return store.SetConfig("token_"+platform, token)
}
