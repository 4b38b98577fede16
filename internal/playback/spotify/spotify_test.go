package spotify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"glancehub/internal/models"
)

// Transport commands arrive from fire-and-forget client actions, so they can
// still be in flight when the host deactivates the provider. Cleanup must
// not race them or leave them dereferencing a cleared session.
func TestCommandsDuringCleanup(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer api.Close()

	h := New()
	h.urls.apiBase = api.URL
	h.events = make(chan models.ProviderEvent, 16)
	sess := newSession("", "client-id", "client-secret", "refresh-token")
	sess.urls = h.urls
	h.session = sess

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		<-ctx.Done()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			if err := h.Play(context.Background()); err != nil && !errors.Is(err, errNotSetUp) {
				t.Errorf("play during cleanup: %v", err)
				return
			}
		}
	}()

	time.Sleep(5 * time.Millisecond)
	if err := h.Cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("commands never finished")
	}
}

func TestCommandsAfterCleanupReportNotSetUp(t *testing.T) {
	h := New()
	h.events = make(chan models.ProviderEvent, 16)
	h.session = newSession("", "client-id", "client-secret", "refresh-token")

	if err := h.Cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	if err := h.Play(context.Background()); !errors.Is(err, errNotSetUp) {
		t.Fatalf("Play after cleanup = %v, want errNotSetUp", err)
	}
	if _, err := h.GetPlayback(context.Background()); !errors.Is(err, errNotSetUp) {
		t.Fatalf("GetPlayback after cleanup = %v, want errNotSetUp", err)
	}
	if _, err := h.GetImage(context.Background()); !errors.Is(err, errNotSetUp) {
		t.Fatalf("GetImage after cleanup = %v, want errNotSetUp", err)
	}
}
