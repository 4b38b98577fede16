package spotify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTokenServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"fresh-token","token_type":"Bearer","expires_in":3600}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestSession(t *testing.T, tokenURL string) *session {
	t.Helper()
	s := newSession("", "client-id", "client-secret", "refresh-token")
	s.urls.accountsToken = tokenURL
	return s
}

func TestDoRetriesOnceAfter401(t *testing.T) {
	tokenSrv, tokenCalls := newTokenServer(t)

	var apiCalls atomic.Int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if apiCalls.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer fresh-token" {
			t.Errorf("retry used stale token: %q", got)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer api.Close()

	s := newTestSession(t, tokenSrv.URL)

	status, body, err := s.do(context.Background(), scopeAPI, http.MethodGet, api.URL, nil, nil, nil)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if string(body) != `{"ok":true}` {
		t.Fatalf("body = %s", body)
	}
	if n := apiCalls.Load(); n != 2 {
		t.Errorf("api calls = %d, want 2", n)
	}
	if n := tokenCalls.Load(); n != 1 {
		t.Errorf("token refreshes = %d, want 1", n)
	}
}

func TestDoSurfacesSecondConsecutive401(t *testing.T) {
	tokenSrv, _ := newTokenServer(t)

	var apiCalls atomic.Int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer api.Close()

	var authErrs atomic.Int32
	s := newTestSession(t, tokenSrv.URL)
	s.onAuthError = func(error) { authErrs.Add(1) }

	// First call: 401 → one refresh → one retry → still 401, returned as-is.
	status, _, err := s.do(context.Background(), scopeAPI, http.MethodGet, api.URL, nil, nil, nil)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if status != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", status)
	}
	if n := apiCalls.Load(); n != 2 {
		t.Fatalf("api calls after first do = %d, want 2", n)
	}

	// Second call: retried flag is still set, so no further refresh or
	// retry; the failure is reported upward instead.
	status, _, err = s.do(context.Background(), scopeAPI, http.MethodGet, api.URL, nil, nil, nil)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if status != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", status)
	}
	if n := apiCalls.Load(); n != 3 {
		t.Errorf("api calls after second do = %d, want 3 (no retry)", n)
	}
	if n := authErrs.Load(); n == 0 {
		t.Error("expected onAuthError to be invoked")
	}
}

func TestDoResetsRetriedFlagOnSuccess(t *testing.T) {
	tokenSrv, tokenCalls := newTokenServer(t)

	// 401, 200, 401, 200: both 401s should trigger a refresh because the
	// intervening success resets the retried flag.
	var apiCalls atomic.Int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if apiCalls.Add(1)%2 == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer api.Close()

	s := newTestSession(t, tokenSrv.URL)

	for i := 0; i < 2; i++ {
		status, _, err := s.do(context.Background(), scopeAPI, http.MethodGet, api.URL, nil, nil, nil)
		if err != nil {
			t.Fatalf("do %d: %v", i, err)
		}
		if status != http.StatusOK {
			t.Fatalf("do %d status = %d, want 200", i, status)
		}
	}
	if n := tokenCalls.Load(); n != 2 {
		t.Errorf("token refreshes = %d, want 2", n)
	}
}

func TestRefreshCoalescesConcurrentCallers(t *testing.T) {
	var tokenCalls atomic.Int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		time.Sleep(50 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"fresh-token","token_type":"Bearer","expires_in":3600}`))
	}))
	defer tokenSrv.Close()

	s := newTestSession(t, tokenSrv.URL)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.refresh(context.Background(), scopeAPI); err != nil {
				t.Errorf("refresh: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := tokenCalls.Load(); n != 1 {
		t.Errorf("underlying refreshes = %d, want 1", n)
	}
	s.retryMu.Lock()
	calls := s.refreshCalls[scopeAPI]
	s.retryMu.Unlock()
	if calls != 1 {
		t.Errorf("refreshCalls = %d, want 1", calls)
	}
}
