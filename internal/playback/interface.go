package playback

import (
	"context"

	"glancehub/internal/models"
)

// Handler is the contract every music-service integration implements.
// Exactly one handler instance is active at a time.
//
// Transport commands issue a single outbound request each; callers invoke
// them from fire-and-forget UI actions, so implementations report failures
// through the returned error (which the manager logs and surfaces as an
// error event) rather than any other side channel.
type Handler interface {
	Name() string

	// ValidateConfig performs a best-effort live check (e.g. attempting a
	// token exchange) without mutating state. Expected auth failures return
	// (false, nil), not an error.
	ValidateConfig(ctx context.Context, cfg models.ProviderConfig) (bool, error)

	// Setup establishes sessions and opens the push channel. It fails only
	// for unrecoverable configuration errors; transient failures are retried
	// internally and surfaced via error events.
	Setup(ctx context.Context, cfg models.ProviderConfig) error

	// Cleanup is idempotent and safe to call after a partially failed Setup.
	// After Cleanup returns, no further events are delivered.
	Cleanup() error

	// Events returns the handler's event stream. Events are delivered in the
	// order the underlying provider events were received.
	Events() <-chan models.ProviderEvent

	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	SetVolume(ctx context.Context, percent int) error
	SetShuffle(ctx context.Context, state bool) error
	SetRepeat(ctx context.Context, mode models.RepeatMode) error

	GetPlayback(ctx context.Context) (*models.PlaybackData, error)
	GetImage(ctx context.Context) ([]byte, error)
}
