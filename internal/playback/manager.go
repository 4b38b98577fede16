package playback

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"glancehub/internal/models"
)

var ErrNoHandler = errors.New("no active playback handler")

// Manager owns the single active handler. It is an explicit handle passed to
// the hub rather than a package-level singleton, so the settings layer can
// swap providers cleanly and tests can inject fakes.
type Manager struct {
	mu      sync.RWMutex
	handler Handler
	current *models.PlaybackData

	subMu       sync.Mutex
	subscribers map[chan models.ProviderEvent]struct{}

	forwardDone chan struct{}
}

func NewManager() *Manager {
	return &Manager{
		subscribers: make(map[chan models.ProviderEvent]struct{}),
	}
}

// Activate tears down any previous handler, runs Setup on the new one and
// starts forwarding its events to subscribers. On setup failure no handler
// is left active.
func (m *Manager) Activate(ctx context.Context, h Handler, cfg models.ProviderConfig) error {
	m.Deactivate()

	if err := h.Setup(ctx, cfg); err != nil {
		// Setup may have partially succeeded before failing.
		if cerr := h.Cleanup(); cerr != nil {
			slog.Warn("cleanup after failed setup", "handler", h.Name(), "error", cerr)
		}
		return err
	}

	done := make(chan struct{})
	m.mu.Lock()
	m.handler = h
	m.current = nil
	m.forwardDone = done
	m.mu.Unlock()

	go m.forward(h.Events(), done)
	return nil
}

// Deactivate cleans up the active handler, if any. It blocks until event
// forwarding has stopped, so no stale events reach subscribers afterwards.
func (m *Manager) Deactivate() {
	m.mu.Lock()
	h := m.handler
	done := m.forwardDone
	m.handler = nil
	m.current = nil
	m.forwardDone = nil
	m.mu.Unlock()

	if h == nil {
		return
	}
	if err := h.Cleanup(); err != nil {
		slog.Warn("handler cleanup", "handler", h.Name(), "error", err)
	}
	if done != nil {
		<-done
	}
}

// Active reports the name of the active handler, or "" when none is set.
func (m *Manager) Active() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.handler == nil {
		return ""
	}
	return m.handler.Name()
}

// Snapshot returns the last canonical playback state seen from the active
// handler. nil means nothing is playing (or no handler is active).
func (m *Manager) Snapshot() *models.PlaybackData {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *Manager) Subscribe() chan models.ProviderEvent {
	ch := make(chan models.ProviderEvent, 8)
	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()
	return ch
}

func (m *Manager) Unsubscribe(ch chan models.ProviderEvent) {
	m.subMu.Lock()
	_, exists := m.subscribers[ch]
	delete(m.subscribers, ch)
	m.subMu.Unlock()
	if exists {
		close(ch)
	}
}

func (m *Manager) forward(events <-chan models.ProviderEvent, done chan struct{}) {
	defer close(done)
	for ev := range events {
		if ev.Type == models.ProviderEventPlayback {
			m.mu.Lock()
			m.current = ev.Playback
			m.mu.Unlock()
		}
		m.publish(ev)
	}
}

func (m *Manager) publish(ev models.ProviderEvent) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for ch := range m.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Command names a transport control invoked from a client action.
type Command struct {
	Action  models.Action
	Volume  int
	Shuffle bool
	Repeat  models.RepeatMode
}

// Do relays a transport command to the active handler. Commands come from
// fire-and-forget UI actions, so failures are logged and surfaced as error
// events instead of propagating to the hub connection.
func (m *Manager) Do(ctx context.Context, cmd Command) {
	m.mu.RLock()
	h := m.handler
	m.mu.RUnlock()
	if h == nil {
		slog.Warn("playback command with no active handler", "action", cmd.Action)
		return
	}

	var err error
	switch cmd.Action {
	case models.ActionPlay:
		err = h.Play(ctx)
	case models.ActionPause:
		err = h.Pause(ctx)
	case models.ActionNext:
		err = h.Next(ctx)
	case models.ActionPrevious:
		err = h.Previous(ctx)
	case models.ActionVolume:
		err = h.SetVolume(ctx, cmd.Volume)
	case models.ActionShuffle:
		err = h.SetShuffle(ctx, cmd.Shuffle)
	case models.ActionRepeat:
		err = h.SetRepeat(ctx, cmd.Repeat)
	default:
		slog.Warn("unknown playback command", "action", cmd.Action)
		return
	}
	if err != nil {
		slog.Warn("playback command failed", "handler", h.Name(), "action", cmd.Action, "error", err)
		m.publish(models.ProviderEvent{Type: models.ProviderEventError, Err: err})
	}
}

// GetPlayback polls the active handler for a fresh snapshot and records it.
func (m *Manager) GetPlayback(ctx context.Context) (*models.PlaybackData, error) {
	m.mu.RLock()
	h := m.handler
	m.mu.RUnlock()
	if h == nil {
		return nil, ErrNoHandler
	}
	data, err := h.GetPlayback(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.current = data
	m.mu.Unlock()
	return data, nil
}

// GetImage fetches artwork for the current item from the active handler.
func (m *Manager) GetImage(ctx context.Context) ([]byte, error) {
	m.mu.RLock()
	h := m.handler
	m.mu.RUnlock()
	if h == nil {
		return nil, ErrNoHandler
	}
	return h.GetImage(ctx)
}
