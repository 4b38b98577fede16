package topics

import (
	"context"
	"encoding/json"
	"fmt"

	"glancehub/internal/hub"
)

// SettingsStore is the slice of the store the settings topic needs.
type SettingsStore interface {
	GetDisplaySettings() (map[string]string, error)
	SetDisplaySetting(key, value string) error
}

// Settings exposes client-facing display preferences. A "set" action
// upserts one key and rebroadcasts the full map so every paired display
// stays in sync.
func Settings(store SettingsStore) *hub.TopicHandler {
	return &hub.TopicHandler{
		Name: "settings",
		Snapshot: func(ctx context.Context) (any, error) {
			return store.GetDisplaySettings()
		},
		Actions: map[string]hub.ActionFunc{
			"set": func(ctx context.Context, conn *hub.Conn, data json.RawMessage) error {
				var req struct {
					Key   string `json:"key"`
					Value string `json:"value"`
				}
				if err := json.Unmarshal(data, &req); err != nil {
					return fmt.Errorf("set action: %w", err)
				}
				if req.Key == "" {
					return fmt.Errorf("set action: empty key")
				}
				if err := store.SetDisplaySetting(req.Key, req.Value); err != nil {
					return err
				}
				all, err := store.GetDisplaySettings()
				if err != nil {
					return err
				}
				conn.Hub().Broadcast("settings", all)
				return nil
			},
		},
	}
}
