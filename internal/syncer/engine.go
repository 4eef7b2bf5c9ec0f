package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"forky/internal/emt"
	"forky/internal/storage"
)

// ErrSyncInFlight is returned when a sync is requested while one is
// already running. The request is rejected, not queued.
var ErrSyncInFlight = errors.New("sync already in progress")

// TokenStore persists the current API token.
type TokenStore interface {
	SaveToken(ctx context.Context, t storage.Token) error
	GetToken(ctx context.Context) (*storage.Token, error)
	ClearToken(ctx context.Context) error
}

// StopStore persists the stop cache.
type StopStore interface {
	UpsertStops(ctx context.Context, stops []storage.Stop) (int, error)
	CountStops(ctx context.Context) (int, error)
}

// Client is the slice of the EMT API the engine needs.
type Client interface {
	Login(ctx context.Context, email, password string) (emt.Token, error)
	AllStops(ctx context.Context, accessToken string) ([]emt.StopData, error)
}

// Engine runs the full-refresh sync cycle: ensure a token, fetch the
// complete stop list, upsert it in one transaction. At most one cycle
// is in flight at a time.
type Engine struct {
	tokens TokenStore
	stops  StopStore
	client Client
	logger *slog.Logger

	mu       sync.Mutex
	syncing  bool
	email    string
	password string

	statusMu sync.RWMutex
	status   Status

	onSync []func()
}

// New creates an Engine.
func New(tokens TokenStore, stops StopStore, client Client, logger *slog.Logger) *Engine {
	return &Engine{
		tokens: tokens,
		stops:  stops,
		client: client,
		logger: logger,
	}
}

// SetCredentials supplies EMT credentials without logging in, e.g. from
// configuration. They are held in memory only.
func (e *Engine) SetCredentials(email, password string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.email, e.password = email, password
}

// Login authenticates against the API and persists the resulting token,
// replacing any prior one. The credentials are retained in memory so a
// later sync can re-authenticate when the token goes stale.
func (e *Engine) Login(ctx context.Context, email, password string) error {
	token, err := e.client.Login(ctx, email, password)
	if err != nil {
		return err
	}
	if err := e.tokens.SaveToken(ctx, storage.Token{
		AccessToken: token.AccessToken,
		ObtainedAt:  token.ObtainedAt,
	}); err != nil {
		return err
	}
	e.SetCredentials(email, password)
	return nil
}

// OnSyncComplete registers a callback invoked after every successful
// sync. Readers use it to reset their pagination cursors. Not safe to
// call concurrently with Sync; register during setup.
func (e *Engine) OnSyncComplete(fn func()) {
	e.onSync = append(e.onSync, fn)
}

// TriggerSync starts a sync in the background. It returns ErrSyncInFlight
// when one is already running, nil otherwise.
func (e *Engine) TriggerSync(ctx context.Context) error {
	if !e.begin() {
		return ErrSyncInFlight
	}
	go e.run(ctx)
	return nil
}

// Sync runs a full sync cycle and blocks until it finishes. A second
// concurrent call returns ErrSyncInFlight.
func (e *Engine) Sync(ctx context.Context) error {
	if !e.begin() {
		return ErrSyncInFlight
	}
	return e.run(ctx)
}

func (e *Engine) begin() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.syncing {
		return false
	}
	e.syncing = true
	return true
}

func (e *Engine) credentials() (email, password string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.email, e.password
}

// run executes one cycle. The syncing flag is already held.
func (e *Engine) run(ctx context.Context) error {
	syncID := uuid.NewString()[:8]
	start := time.Now()
	logger := e.logger.With("sync_id", syncID)
	logger.Info("sync started")

	err := e.cycle(ctx, logger)

	e.mu.Lock()
	e.syncing = false
	e.mu.Unlock()

	if err != nil {
		e.failStatus(err)
		logger.Error("sync failed", "error", err)
		return err
	}

	for _, fn := range e.onSync {
		fn()
	}
	logger.Info("sync complete", "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

func (e *Engine) cycle(ctx context.Context, logger *slog.Logger) error {
	e.setState(StateAuthenticating)

	token, err := e.tokens.GetToken(ctx)
	if err != nil {
		return err
	}
	if token == nil {
		// No stored token: log in before fetching.
		if token, err = e.relogin(ctx); err != nil {
			return err
		}
	}

	e.setState(StateFetching)
	stops, err := e.client.AllStops(ctx, token.AccessToken)

	var authErr *emt.AuthError
	if errors.As(err, &authErr) {
		// The token went stale. Clear it and retry the cycle once;
		// a second rejection fails the sync outright.
		logger.Warn("stored token rejected, re-authenticating")
		if clearErr := e.tokens.ClearToken(ctx); clearErr != nil {
			return clearErr
		}
		e.setState(StateAuthenticating)
		if token, err = e.relogin(ctx); err != nil {
			return err
		}
		e.setState(StateFetching)
		stops, err = e.client.AllStops(ctx, token.AccessToken)
	}
	if err != nil {
		return err
	}

	e.setState(StateUpserting)
	count, err := e.stops.UpsertStops(ctx, toRecords(stops))
	if err != nil {
		return fmt.Errorf("upsert stops: %w", err)
	}

	total, err := e.stops.CountStops(ctx)
	if err != nil {
		total = count
	}
	e.successStatus(total)
	return nil
}

// relogin authenticates with the retained credentials and persists the
// new token. Without credentials there is nothing to retry with.
func (e *Engine) relogin(ctx context.Context) (*storage.Token, error) {
	email, password := e.credentials()
	if email == "" {
		return nil, emt.ErrNotAuthenticated
	}
	token, err := e.client.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	stored := storage.Token{AccessToken: token.AccessToken, ObtainedAt: token.ObtainedAt}
	if err := e.tokens.SaveToken(ctx, stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

// toRecords maps wire stops to cache records. Wire coordinates are
// [longitude, latitude]; they are stored un-swapped.
func toRecords(stops []emt.StopData) []storage.Stop {
	records := make([]storage.Stop, 0, len(stops))
	for _, s := range stops {
		var lat, lon float64
		if len(s.Geometry.Coordinates) >= 2 {
			lon = s.Geometry.Coordinates[0]
			lat = s.Geometry.Coordinates[1]
		}
		records = append(records, storage.Stop{
			ID:        s.Node,
			Name:      s.Name,
			Lines:     s.Lines,
			Latitude:  lat,
			Longitude: lon,
		})
	}
	return records
}
