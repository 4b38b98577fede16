// Package spotify integrates the Spotify Connect APIs as a playback
// handler: an OAuth-authenticated REST path for transport commands and
// state polling, plus the dealer websocket for low-latency state-change
// notifications.
package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"glancehub/internal/httputil"
	"glancehub/internal/models"
)

const (
	cfgCookie       = "sp_dc"
	cfgClientID     = "client_id"
	cfgClientSecret = "client_secret"
	cfgRefreshToken = "refresh_token"
)

var errNotSetUp = errors.New("spotify handler not set up")

type Handler struct {
	urls endpoints

	// sessMu guards the session and cancel slots. Transport commands run
	// concurrently with Cleanup, which clears both.
	sessMu  sync.Mutex
	session *session
	cancel  context.CancelFunc

	wg sync.WaitGroup

	emitMu sync.Mutex
	closed bool
	events chan models.ProviderEvent

	imageClient *http.Client
}

func New() *Handler {
	return &Handler{
		urls:        defaultEndpoints(),
		imageClient: httputil.NewClient(),
	}
}

func (h *Handler) Name() string { return "spotify" }

func (h *Handler) Events() <-chan models.ProviderEvent {
	h.emitMu.Lock()
	defer h.emitMu.Unlock()
	return h.events
}

// emit delivers an event unless Cleanup has already run. Delivery is
// in-order: one goroutine produces push-derived events, and the lock keeps
// Cleanup from racing a late emission.
func (h *Handler) emit(ctx context.Context, ev models.ProviderEvent) {
	h.emitMu.Lock()
	defer h.emitMu.Unlock()
	if h.closed || h.events == nil {
		return
	}
	select {
	case h.events <- ev:
	case <-ctx.Done():
	}
}

// Setup acquires both session tokens and opens the push channel. It returns
// an error only for unrecoverable configuration problems; once the channel
// loop is running, transient failures surface as error events.
func (h *Handler) Setup(ctx context.Context, cfg models.ProviderConfig) error {
	for _, key := range []string{cfgCookie, cfgClientID, cfgClientSecret, cfgRefreshToken} {
		if cfg[key] == "" {
			return fmt.Errorf("spotify config missing %q", key)
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())

	h.emitMu.Lock()
	h.closed = false
	h.events = make(chan models.ProviderEvent, 16)
	h.emitMu.Unlock()

	sess := newSession(cfg[cfgCookie], cfg[cfgClientID], cfg[cfgClientSecret], cfg[cfgRefreshToken])
	sess.urls = h.urls
	sess.onAuthError = func(err error) {
		h.emit(runCtx, models.ProviderEvent{Type: models.ProviderEventError, Err: err})
	}

	if err := sess.loginWeb(ctx); err != nil {
		cancel()
		return fmt.Errorf("spotify web login: %w", err)
	}
	if err := sess.loginAPI(ctx); err != nil {
		cancel()
		return fmt.Errorf("spotify token refresh: %w", err)
	}

	h.sessMu.Lock()
	h.session = sess
	h.cancel = cancel
	h.sessMu.Unlock()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.run(runCtx)
	}()
	return nil
}

// Cleanup stops the push channel and silences the event stream. It is
// idempotent and safe after a partially failed Setup; once it returns, no
// further events are delivered.
func (h *Handler) Cleanup() error {
	h.sessMu.Lock()
	cancel := h.cancel
	h.cancel = nil
	h.sessMu.Unlock()
	if cancel != nil {
		cancel()
	}
	h.wg.Wait()

	h.emitMu.Lock()
	if !h.closed && h.events != nil {
		close(h.events)
	}
	h.closed = true
	h.emitMu.Unlock()

	h.sessMu.Lock()
	h.session = nil
	h.sessMu.Unlock()
	return nil
}

// currentSession snapshots the session slot. An in-flight request keeps
// using the snapshot it took even if Cleanup clears the slot underneath it;
// the cancelled run context has already made the session inert.
func (h *Handler) currentSession() *session {
	h.sessMu.Lock()
	defer h.sessMu.Unlock()
	return h.session
}

// ValidateConfig attempts a live token exchange without mutating handler
// state. Expected auth failures report (false, nil).
func (h *Handler) ValidateConfig(ctx context.Context, cfg models.ProviderConfig) (bool, error) {
	cookie := cfg[cfgCookie]
	clientID := cfg[cfgClientID]
	clientSecret := cfg[cfgClientSecret]
	refreshToken := cfg[cfgRefreshToken]

	sess := newSession(cookie, clientID, clientSecret, refreshToken)
	sess.urls = h.urls

	switch {
	case clientID != "" && clientSecret != "" && refreshToken != "" && cookie == "":
		if err := sess.loginAPI(ctx); err != nil {
			var retrieveErr *oauth2.RetrieveError
			if errors.As(err, &retrieveErr) {
				return false, nil
			}
			return false, err
		}
		return true, nil
	case cookie != "" && clientID == "" && clientSecret == "":
		if err := sess.loginWeb(ctx); err != nil {
			return false, nil
		}
		return true, nil
	}
	return false, nil
}

func (h *Handler) getCurrent(ctx context.Context) (*playerStateResponse, error) {
	sess := h.currentSession()
	if sess == nil {
		return nil, errNotSetUp
	}

	q := url.Values{}
	q.Set("additional_types", playingTypeEpisode)

	status, body, err := sess.do(ctx, scopeAPI, http.MethodGet, h.urls.apiBase+"/me/player", q, nil, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent || len(body) == 0 {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("player state returned status %d", status)
	}

	var state playerStateResponse
	if err := json.Unmarshal(body, &state); err != nil {
		return nil, fmt.Errorf("parsing player state: %w", err)
	}
	return &state, nil
}

func (h *Handler) GetPlayback(ctx context.Context) (*models.PlaybackData, error) {
	state, err := h.getCurrent(ctx)
	if err != nil {
		return nil, err
	}
	return translate(state), nil
}

func (h *Handler) GetImage(ctx context.Context) ([]byte, error) {
	state, err := h.getCurrent(ctx)
	if err != nil {
		return nil, err
	}
	u := imageURL(state)
	if u == "" {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.imageClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching artwork: %w", err)
	}
	defer httputil.DrainBody(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("artwork fetch returned status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 10<<20))
}

func (h *Handler) Play(ctx context.Context) error {
	return h.command(ctx, http.MethodPut, "/me/player/play", nil)
}

func (h *Handler) Pause(ctx context.Context) error {
	return h.command(ctx, http.MethodPut, "/me/player/pause", nil)
}

func (h *Handler) Next(ctx context.Context) error {
	return h.command(ctx, http.MethodPost, "/me/player/next", nil)
}

func (h *Handler) Previous(ctx context.Context) error {
	return h.command(ctx, http.MethodPost, "/me/player/previous", nil)
}

func (h *Handler) SetVolume(ctx context.Context, percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("volume out of range: %d", percent)
	}
	q := url.Values{}
	q.Set("volume_percent", strconv.Itoa(percent))
	return h.command(ctx, http.MethodPut, "/me/player/volume", q)
}

func (h *Handler) SetShuffle(ctx context.Context, state bool) error {
	q := url.Values{}
	q.Set("state", strconv.FormatBool(state))
	return h.command(ctx, http.MethodPut, "/me/player/shuffle", q)
}

func (h *Handler) SetRepeat(ctx context.Context, mode models.RepeatMode) error {
	providerState, ok := repeatToProvider[mode]
	if !ok {
		return fmt.Errorf("unknown repeat mode %q", mode)
	}
	q := url.Values{}
	q.Set("state", providerState)
	return h.command(ctx, http.MethodPut, "/me/player/repeat", q)
}

func (h *Handler) command(ctx context.Context, method, path string, query url.Values) error {
	sess := h.currentSession()
	if sess == nil {
		return errNotSetUp
	}
	status, body, err := sess.do(ctx, scopeAPI, method, h.urls.apiBase+path, query, nil, nil)
	if err != nil {
		return err
	}
	if status >= http.StatusBadRequest {
		return fmt.Errorf("player command %s returned status %d: %s", path, status, httputil.Truncate(body, 120))
	}
	return nil
}

// randomDeviceID mints the 40-character synthetic device identifier used
// when registering against the state-subscription endpoint.
func randomDeviceID() string {
	id := strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	return id[:40]
}
