package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"glancehub/internal/models"
)

const (
	heartbeatInterval = 15 * time.Second
	reconnectDelay    = 2 * time.Second

	harmonyClientVersion = "4.62.1-5dc29b8a7"

	updateDeviceStateChanged  = "DEVICE_STATE_CHANGED"
	updateDeviceVolumeChanged = "DEVICE_VOLUME_CHANGED"
	updateDevicesDisappeared  = "DEVICES_DISAPPEARED"
)

// dealerMessage is the tagged union of push payloads. Messages that match
// neither the connection-id handshake nor a known cluster update are a
// no-op, not an error.
type dealerMessage struct {
	Headers  map[string]string `json:"headers"`
	Payloads []dealerPayload   `json:"payloads"`
}

type dealerPayload struct {
	UpdateReason string `json:"update_reason"`
	Cluster      struct {
		ActiveDeviceID string `json:"active_device_id"`
	} `json:"cluster"`
}

// run drives the push-channel state machine: Subscribing → Connected, and
// on a dropped socket Reauthenticating → Subscribing again. Two consecutive
// reauthentication failures end the adapter; the host must call Setup anew.
func (h *Handler) run(ctx context.Context) {
	reauthFailures := 0

	for {
		err := h.connect(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			slog.Warn("spotify push channel dropped", "error", err)
		}

		// Every retry waits first. A dealer outage must not turn into a
		// tight loop of TOTP fetches and token exchanges.
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}

		if err := h.reauthenticate(ctx); err != nil {
			reauthFailures++
			if reauthFailures >= 2 {
				h.emit(ctx, models.ProviderEvent{Type: models.ProviderEventError, Err: fmt.Errorf("reauthentication failed: %w", err)})
				h.emit(ctx, models.ProviderEvent{Type: models.ProviderEventClosed})
				return
			}
			continue
		}
		reauthFailures = 0
	}
}

func (h *Handler) reauthenticate(ctx context.Context) error {
	if err := h.session.loginWeb(ctx); err != nil {
		return err
	}
	return h.session.loginAPI(ctx)
}

// connect dials the dealer endpoint and pumps push events until the socket
// closes. The heartbeat goroutine is bound to the connection's lifetime, so
// a closed socket cancels it deterministically.
func (h *Handler) connect(ctx context.Context) error {
	wsURL := h.urls.dealer + "?access_token=" + h.session.currentWebToken()

	header := http.Header{}
	header.Set("Origin", webOrigin)
	header.Set("User-Agent", userAgent)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return fmt.Errorf("dialing dealer: %w", err)
	}
	defer conn.Close()

	hbCtx, hbCancel := context.WithCancel(ctx)
	defer hbCancel()
	go heartbeat(hbCtx, conn)

	// Unblock ReadMessage when Cleanup cancels the context.
	go func() {
		<-hbCtx.Done()
		conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if err := h.handleDealerMessage(ctx, msg); err != nil {
			return err
		}
	}
}

func heartbeat(ctx context.Context, conn *websocket.Conn) {
	ping := func() error {
		return conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`))
	}
	if err := ping(); err != nil {
		return
	}
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ping(); err != nil {
				return
			}
		}
	}
}

func (h *Handler) handleDealerMessage(ctx context.Context, raw []byte) error {
	var msg dealerMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil
	}

	// The provider assigns a connection identifier in its first message;
	// registering it against a synthetic device is what turns this socket
	// into a state subscription.
	if connID := msg.Headers["Spotify-Connection-Id"]; connID != "" {
		if err := h.registerDevice(ctx, connID); err != nil {
			h.emit(ctx, models.ProviderEvent{Type: models.ProviderEventError, Err: err})
			return fmt.Errorf("device registration: %w", err)
		}
		h.emit(ctx, models.ProviderEvent{Type: models.ProviderEventOpen})
		return nil
	}

	if len(msg.Payloads) == 0 {
		return nil
	}
	event := msg.Payloads[0]

	switch event.UpdateReason {
	case updateDeviceStateChanged, updateDeviceVolumeChanged:
		if event.Cluster.ActiveDeviceID == "" {
			h.emit(ctx, models.ProviderEvent{Type: models.ProviderEventPlayback, Playback: nil})
			return nil
		}
		data, err := h.GetPlayback(ctx)
		if err != nil {
			slog.Warn("spotify playback poll after push event", "error", err)
			h.emit(ctx, models.ProviderEvent{Type: models.ProviderEventError, Err: err})
			return nil
		}
		h.emit(ctx, models.ProviderEvent{Type: models.ProviderEventPlayback, Playback: data})
	case updateDevicesDisappeared:
		if event.Cluster.ActiveDeviceID == "" {
			h.emit(ctx, models.ProviderEvent{Type: models.ProviderEventPlayback, Playback: nil})
		}
	}
	return nil
}

// registerDevice associates the dealer connection with a synthetic device
// so the provider starts pushing cluster updates: one call creates the
// device, a second enables its connect-state subscription.
func (h *Handler) registerDevice(ctx context.Context, connectionID string) error {
	deviceID := randomDeviceID()

	createPayload := map[string]any{
		"device": map[string]any{
			"brand": "spotify",
			"capabilities": map[string]any{
				"change_volume":                 true,
				"enable_play_token":             true,
				"supports_file_media_type":      true,
				"play_token_lost_behavior":      "pause",
				"disable_connect":               true,
				"audio_podcasts":                true,
				"video_playback":                true,
				"manifest_formats":              []string{"file_ids_mp3", "file_urls_mp3", "manifest_ids_video", "file_urls_external", "file_ids_mp4", "file_ids_mp4_dual"},
				"supports_preferred_media_type": true,
				"supports_playback_offsets":     true,
				"supports_playback_speed":       true,
			},
			"device_id":           deviceID,
			"device_type":         "computer",
			"metadata":            map[string]any{},
			"model":               "web_player",
			"name":                "Web Player (Chrome)",
			"platform_identifier": "web_player windows 10;chrome 142.0.0.0;desktop",
			"is_group":            false,
		},
		"outro_endcontent_snooping": false,
		"connection_id":             connectionID,
		"client_version":            "harmony:" + harmonyClientVersion,
		"volume":                    65535,
	}
	body, err := json.Marshal(createPayload)
	if err != nil {
		return err
	}

	status, _, err := h.session.do(ctx, scopeWeb, http.MethodPost, h.urls.spClientBase+"/track-playback/v1/devices", nil, body, nil)
	if err != nil {
		return fmt.Errorf("creating device: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("device creation returned status %d", status)
	}

	connectPayload := map[string]any{
		"member_type": "CONNECT_STATE",
		"device": map[string]any{
			"device_info": map[string]any{
				"capabilities": map[string]any{
					"can_be_player":           false,
					"hidden":                  true,
					"needs_full_player_state": false,
				},
			},
		},
	}
	body, err = json.Marshal(connectPayload)
	if err != nil {
		return err
	}

	extra := http.Header{}
	extra.Set("X-Spotify-Connection-Id", connectionID)

	status, _, err = h.session.do(ctx, scopeWeb, http.MethodPut, h.urls.spClientBase+"/connect-state/v1/devices/hobs_"+deviceID[:34], nil, body, extra)
	if err != nil {
		return fmt.Errorf("updating connect state: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("connect state update returned status %d", status)
	}

	slog.Info("spotify push subscription registered", "device_id", deviceID)
	return nil
}
