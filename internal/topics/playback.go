package topics

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"

	"glancehub/internal/hub"
	"glancehub/internal/models"
	"glancehub/internal/playback"
)

// Playback bridges the adapter manager and the hub: provider events become
// broadcasts, client actions become transport commands.
func Playback(mgr *playback.Manager) *hub.TopicHandler {
	command := func(action models.Action) hub.ActionFunc {
		return func(ctx context.Context, conn *hub.Conn, data json.RawMessage) error {
			mgr.Do(ctx, playback.Command{Action: action})
			return nil
		}
	}

	return &hub.TopicHandler{
		Name: "playback",
		Snapshot: func(ctx context.Context) (any, error) {
			return mgr.Snapshot(), nil
		},
		Actions: map[string]hub.ActionFunc{
			"play":     command(models.ActionPlay),
			"pause":    command(models.ActionPause),
			"next":     command(models.ActionNext),
			"previous": command(models.ActionPrevious),
			"volume": func(ctx context.Context, conn *hub.Conn, data json.RawMessage) error {
				var req struct {
					Volume int `json:"volume"`
				}
				if err := json.Unmarshal(data, &req); err != nil {
					return fmt.Errorf("volume action: %w", err)
				}
				mgr.Do(ctx, playback.Command{Action: models.ActionVolume, Volume: req.Volume})
				return nil
			},
			"shuffle": func(ctx context.Context, conn *hub.Conn, data json.RawMessage) error {
				var state bool
				if err := json.Unmarshal(data, &state); err != nil {
					return fmt.Errorf("shuffle action: %w", err)
				}
				mgr.Do(ctx, playback.Command{Action: models.ActionShuffle, Shuffle: state})
				return nil
			},
			"repeat": func(ctx context.Context, conn *hub.Conn, data json.RawMessage) error {
				var mode models.RepeatMode
				if err := json.Unmarshal(data, &mode); err != nil {
					return fmt.Errorf("repeat action: %w", err)
				}
				if !mode.Valid() {
					return fmt.Errorf("invalid repeat mode %q", mode)
				}
				mgr.Do(ctx, playback.Command{Action: models.ActionRepeat, Repeat: mode})
				return nil
			},
			// Artwork goes only to the requesting connection; broadcasting
			// megabytes of base64 to every client would starve send queues.
			"image": func(ctx context.Context, conn *hub.Conn, data json.RawMessage) error {
				img, err := mgr.GetImage(ctx)
				if err != nil {
					return err
				}
				if img == nil {
					return nil
				}
				encoded := base64.StdEncoding.EncodeToString(img)
				conn.Send(models.Envelope{Type: "image", Data: marshal(encoded)})
				return nil
			},
		},
		Setup: func(ctx context.Context, h *hub.Hub) (func(), error) {
			events := mgr.Subscribe()
			done := make(chan struct{})

			go func() {
				defer close(done)
				for ev := range events {
					switch ev.Type {
					case models.ProviderEventPlayback:
						h.Broadcast("playback", ev.Playback)
					case models.ProviderEventOpen:
						// Channel just came up; push the current state so
						// clients don't wait for the next provider event.
						if data, err := mgr.GetPlayback(ctx); err == nil {
							h.Broadcast("playback", data)
						}
					case models.ProviderEventClosed:
						h.Broadcast("playback", nil)
					case models.ProviderEventError:
						slog.Warn("playback provider error", "error", ev.Err)
					}
				}
			}()

			return func() {
				mgr.Unsubscribe(events)
				<-done
			}, nil
		},
	}
}
