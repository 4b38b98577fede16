package playback

import (
	"fmt"

	"glancehub/internal/playback/spotify"
)

const ProviderSpotify = "spotify"

// NewHandler constructs the handler for the named provider.
func NewHandler(provider string) (Handler, error) {
	switch provider {
	case ProviderSpotify:
		return spotify.New(), nil
	default:
		return nil, fmt.Errorf("unsupported playback provider: %s", provider)
	}
}
