package topics

import (
	"context"
	"encoding/json"
	"time"

	"glancehub/internal/hub"
	"glancehub/internal/models"
	"glancehub/internal/scheduler"
)

const weatherRefreshInterval = 30 * time.Minute

// WeatherSource is the slice of the weather client the topic needs.
type WeatherSource interface {
	Cached() *models.WeatherData
	Refresh(ctx context.Context) (*models.WeatherData, error)
}

// Weather serves the cached forecast on subscribe, refreshes it on a fixed
// cadence and exposes a client-triggered refresh action.
func Weather(src WeatherSource, sched *scheduler.Scheduler) *hub.TopicHandler {
	refresh := func(ctx context.Context, h *hub.Hub) {
		data, err := src.Refresh(ctx)
		if err != nil {
			// Stale data beats no data; keep serving the cache.
			return
		}
		h.Broadcast("weather", data)
	}

	return &hub.TopicHandler{
		Name: "weather",
		Snapshot: func(ctx context.Context) (any, error) {
			if cached := src.Cached(); cached != nil {
				return cached, nil
			}
			return src.Refresh(ctx)
		},
		Actions: map[string]hub.ActionFunc{
			"refresh": func(ctx context.Context, conn *hub.Conn, data json.RawMessage) error {
				fresh, err := src.Refresh(ctx)
				if err != nil {
					return err
				}
				conn.Send(models.Envelope{Type: "weather", Data: marshal(fresh)})
				return nil
			},
		},
		Setup: func(ctx context.Context, h *hub.Hub) (func(), error) {
			stop := sched.Add(scheduler.Job{
				Name:     "weather-refresh",
				Interval: weatherRefreshInterval,
				Run: func(ctx context.Context) {
					refresh(ctx, h)
				},
			})
			return stop, nil
		},
	}
}

func marshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return data
}
