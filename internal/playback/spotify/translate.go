package spotify

import (
	"glancehub/internal/models"
)

const (
	playingTypeTrack   = "track"
	playingTypeEpisode = "episode"
)

type imageRef struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type playerDevice struct {
	ID             string `json:"id"`
	IsActive       bool   `json:"is_active"`
	Name           string `json:"name"`
	VolumePercent  int    `json:"volume_percent"`
	SupportsVolume bool   `json:"supports_volume"`
}

// playerItem is the union of track and episode item shapes; the media type
// on the parent response decides which fields are meaningful.
type playerItem struct {
	Name    string     `json:"name"`
	Artists []struct { // track only
		Name string `json:"name"`
	} `json:"artists"`
	Album struct { // track only
		Name   string     `json:"name"`
		Images []imageRef `json:"images"`
	} `json:"album"`
	Show struct { // episode only
		Name      string `json:"name"`
		Publisher string `json:"publisher"`
	} `json:"show"`
	Images     []imageRef `json:"images"` // episode only
	DurationMs int64      `json:"duration_ms"`
}

type playerStateResponse struct {
	Device               playerDevice `json:"device"`
	RepeatState          string       `json:"repeat_state"`
	ShuffleState         bool         `json:"shuffle_state"`
	ProgressMs           int64        `json:"progress_ms"`
	CurrentlyPlayingType string       `json:"currently_playing_type"`
	IsPlaying            bool         `json:"is_playing"`
	Item                 *playerItem  `json:"item"`
}

// repeatFromProvider and repeatToProvider are inverses of each other; the
// reverse map is what SetRepeat sends back to the player endpoint.
var repeatFromProvider = map[string]models.RepeatMode{
	"off":     models.RepeatOff,
	"context": models.RepeatOn,
	"track":   models.RepeatOne,
}

var repeatToProvider = map[models.RepeatMode]string{
	models.RepeatOff: "off",
	models.RepeatOn:  "context",
	models.RepeatOne: "track",
}

var baseActions = []models.Action{
	models.ActionPlay,
	models.ActionPause,
	models.ActionNext,
	models.ActionPrevious,
	models.ActionImage,
}

// translate normalizes a player-state payload into the canonical snapshot.
// Episodes never offer shuffle or repeat; volume is offered only when the
// active device reports volume support. Unknown media types yield nil.
func translate(state *playerStateResponse) *models.PlaybackData {
	if state == nil || state.Item == nil {
		return nil
	}

	data := &models.PlaybackData{
		IsPlaying: state.IsPlaying,
		Repeat:    repeatFromProvider[state.RepeatState],
		Shuffle:   state.ShuffleState,
		Volume:    state.Device.VolumePercent,
		Track: models.Track{
			Name: state.Item.Name,
			Duration: models.Duration{
				Current: state.ProgressMs,
				Total:   state.Item.DurationMs,
			},
		},
	}

	actions := make([]models.Action, 0, len(baseActions)+3)
	actions = append(actions, baseActions...)

	switch state.CurrentlyPlayingType {
	case playingTypeEpisode:
		data.Track.Album = state.Item.Show.Name
		data.Track.Artists = []string{state.Item.Show.Publisher}
	case playingTypeTrack:
		data.Track.Album = state.Item.Album.Name
		data.Track.Artists = make([]string, 0, len(state.Item.Artists))
		for _, a := range state.Item.Artists {
			data.Track.Artists = append(data.Track.Artists, a.Name)
		}
		actions = append(actions, models.ActionRepeat, models.ActionShuffle)
	default:
		return nil
	}

	if state.Device.SupportsVolume {
		actions = append(actions, models.ActionVolume)
	}
	data.SupportedActions = actions
	return data
}

// imageURL picks the artwork for the current item. Providers order image
// lists largest first; tracks deliberately use the second (medium) entry,
// episodes the first.
func imageURL(state *playerStateResponse) string {
	if state == nil || state.Item == nil {
		return ""
	}
	switch state.CurrentlyPlayingType {
	case playingTypeEpisode:
		if len(state.Item.Images) > 0 {
			return state.Item.Images[0].URL
		}
	case playingTypeTrack:
		images := state.Item.Album.Images
		if len(images) > 1 {
			return images[1].URL
		}
		if len(images) == 1 {
			return images[0].URL
		}
	}
	return ""
}
