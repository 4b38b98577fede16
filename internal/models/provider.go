package models

// ProviderConfig is the provider-specific key/value bag supplied by the
// settings layer. The hub only relies on ValidateConfig to accept or reject
// it before calling Setup.
type ProviderConfig map[string]string

type ProviderEventType string

const (
	// ProviderEventOpen fires once the provider push channel is ready.
	ProviderEventOpen ProviderEventType = "open"
	// ProviderEventPlayback carries a fresh canonical snapshot; Playback is
	// nil when nothing is playing on any device.
	ProviderEventPlayback ProviderEventType = "playback"
	// ProviderEventClosed fires when the push channel ends for good.
	ProviderEventClosed ProviderEventType = "closed"
	// ProviderEventError surfaces any recoverable failure worth showing.
	ProviderEventError ProviderEventType = "error"
)

// ProviderEvent is the only channel through which adapters communicate
// upward; nothing crosses the adapter boundary as a raw failure.
type ProviderEvent struct {
	Type     ProviderEventType
	Playback *PlaybackData
	Err      error
}
