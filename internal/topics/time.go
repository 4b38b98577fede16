// Package topics wires the individual realtime topics (time, weather,
// playback, settings) into hub topic handlers.
package topics

import (
	"context"
	"time"

	"glancehub/internal/hub"
	"glancehub/internal/scheduler"
)

type timePayload struct {
	Time string `json:"time"`
	Date string `json:"date"`
}

func formatNow(now time.Time) timePayload {
	return timePayload{
		Time: now.Format("15:04"),
		Date: now.Format("Monday, January 2"),
	}
}

// Time broadcasts the formatted clock once per minute, aligned to the
// minute boundary, and serves it on subscribe.
func Time(sched *scheduler.Scheduler) *hub.TopicHandler {
	return &hub.TopicHandler{
		Name: "time",
		Snapshot: func(ctx context.Context) (any, error) {
			return formatNow(time.Now()), nil
		},
		Setup: func(ctx context.Context, h *hub.Hub) (func(), error) {
			stop := sched.Add(scheduler.Job{
				Name:          "time-broadcast",
				Interval:      time.Minute,
				AlignToMinute: true,
				Run: func(ctx context.Context) {
					h.Broadcast("time", formatNow(time.Now()))
				},
			})
			return stop, nil
		},
	}
}
