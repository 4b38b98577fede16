package models

import (
	"encoding/json"
	"errors"
)

var ErrNotFound = errors.New("not found")

// RepeatMode is the canonical repeat setting shared by all providers.
type RepeatMode string

const (
	RepeatOff RepeatMode = "off"
	RepeatOn  RepeatMode = "on"
	RepeatOne RepeatMode = "one"
)

func (m RepeatMode) Valid() bool {
	switch m {
	case RepeatOff, RepeatOn, RepeatOne:
		return true
	}
	return false
}

// Action is a capability tag advertised to clients in SupportedActions.
type Action string

const (
	ActionPlay     Action = "play"
	ActionPause    Action = "pause"
	ActionNext     Action = "next"
	ActionPrevious Action = "previous"
	ActionImage    Action = "image"
	ActionVolume   Action = "volume"
	ActionRepeat   Action = "repeat"
	ActionShuffle  Action = "shuffle"
)

type Duration struct {
	Current int64 `json:"current"`
	Total   int64 `json:"total"`
}

type Track struct {
	Name     string   `json:"name"`
	Album    string   `json:"album"`
	Artists  []string `json:"artists"`
	Duration Duration `json:"duration"`
}

// PlaybackData is the provider-agnostic snapshot broadcast to clients.
// A nil *PlaybackData means nothing is currently playing on any device.
// Snapshots are produced fresh per provider event and never mutated in place.
type PlaybackData struct {
	IsPlaying        bool       `json:"isPlaying"`
	Repeat           RepeatMode `json:"repeat"`
	Shuffle          bool       `json:"shuffle"`
	Volume           int        `json:"volume"`
	Track            Track      `json:"track"`
	SupportedActions []Action   `json:"supportedActions"`
}

// Supports reports whether the snapshot advertises the given action.
func (p *PlaybackData) Supports(a Action) bool {
	if p == nil {
		return false
	}
	for _, sa := range p.SupportedActions {
		if sa == a {
			return true
		}
	}
	return false
}

// Envelope is the hub wire format: one JSON object per websocket message.
// A message without an action means "(re)subscribe and send the current
// snapshot"; a message with an action invokes it on the topic handler.
type Envelope struct {
	Type   string          `json:"type"`
	Action string          `json:"action,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type CurrentWeather struct {
	TempC float64 `json:"temp_c"`
	HiC   float64 `json:"hi_c"`
	LoC   float64 `json:"lo_c"`
	Desc  string  `json:"desc"`
	Icon  string  `json:"icon"`
}

type ForecastItem struct {
	Hour  string  `json:"hour,omitempty"`
	Day   string  `json:"day,omitempty"`
	TempC float64 `json:"temp_c"`
	Icon  string  `json:"icon"`
}

type WeatherData struct {
	City    string         `json:"city"`
	Current CurrentWeather `json:"current"`
	Hourly  []ForecastItem `json:"hourly"`
	Daily   []ForecastItem `json:"daily"`
}
