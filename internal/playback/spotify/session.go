package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"glancehub/internal/httputil"
)

const (
	defaultAPIBaseURL      = "https://api.spotify.com/v1"
	defaultAccountsToken   = "https://accounts.spotify.com/api/token"
	defaultWebTokenURL     = "https://open.spotify.com/api/token"
	defaultClientTokenURL  = "https://clienttoken.spotify.com/v1/clienttoken"
	defaultDealerURL       = "wss://dealer.spotify.com/"
	defaultSPClientBaseURL = "https://gew4-spclient.spotify.com"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36"
	webOrigin = "https://open.spotify.com"

	clientVersion = "1.2.81.13.gc3aea6b0"
)

// endpoints groups every provider URL the adapter talks to, overridable in
// tests the same way the API base URL is.
type endpoints struct {
	apiBase       string
	accountsToken string
	webToken      string
	clientToken   string
	dealer        string
	spClientBase  string
}

func defaultEndpoints() endpoints {
	return endpoints{
		apiBase:       defaultAPIBaseURL,
		accountsToken: defaultAccountsToken,
		webToken:      defaultWebTokenURL,
		clientToken:   defaultClientTokenURL,
		dealer:        defaultDealerURL,
		spClientBase:  defaultSPClientBaseURL,
	}
}

// authScope selects which token slot authenticates an outbound request.
// The API scope uses the OAuth bearer from the refresh-token grant; the web
// scope uses the TOTP-gated web token plus the separately issued client
// token.
type authScope int

const (
	scopeAPI authScope = iota
	scopeWeb
)

// session keeps outbound requests authenticated. Token slots are mutated
// only here, under the coalescing rules below; all other adapter code treats
// them as read-only snapshots per request.
type session struct {
	cookie       string // sp_dc
	clientID     string
	clientSecret string
	refreshToken string

	urls endpoints
	http *http.Client
	totp *totpSource

	// onAuthError is invoked when a refresh cycle gives up, so the handler
	// can surface an error event. May be nil.
	onAuthError func(error)

	mu          sync.RWMutex
	accessToken string
	webToken    string
	clientToken string

	group   singleflight.Group
	retryMu sync.Mutex
	retried map[authScope]bool

	refreshCalls map[authScope]int // test observability
}

func newSession(cookie, clientID, clientSecret, refreshToken string) *session {
	return &session{
		cookie:       cookie,
		clientID:     clientID,
		clientSecret: clientSecret,
		refreshToken: refreshToken,
		urls:         defaultEndpoints(),
		http:         httputil.NewClientWithTimeout(httputil.ExtendedTimeout),
		totp:         newTOTPSource(),
		retried:      make(map[authScope]bool),
		refreshCalls: make(map[authScope]int),
	}
}

// loginAPI exchanges the stored refresh token for a fresh OAuth bearer.
func (s *session) loginAPI(ctx context.Context) error {
	conf := &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: s.urls.accountsToken, AuthStyle: oauth2.AuthStyleInHeader},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.http)

	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: s.refreshToken}).Token()
	if err != nil {
		return fmt.Errorf("refresh token exchange: %w", err)
	}

	s.mu.Lock()
	s.accessToken = tok.AccessToken
	s.mu.Unlock()
	return nil
}

// loginWeb mints the web session: a TOTP-gated cookie exchange for the web
// token, then a client token scoped to the returned client id. A TOTP
// fetch/derive failure is a hard failure; no web session is possible
// without it.
func (s *session) loginWeb(ctx context.Context) error {
	otp, version, err := s.totp.generate(ctx)
	if err != nil {
		return fmt.Errorf("deriving otp: %w", err)
	}

	s.mu.Lock()
	s.webToken = ""
	s.clientToken = ""
	s.mu.Unlock()

	q := url.Values{}
	q.Set("reason", "init")
	q.Set("productType", "web-player")
	q.Set("totp", otp)
	q.Set("totpServer", otp)
	q.Set("totpVer", version)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.urls.webToken+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	s.setWebHeaders(req)
	req.Header.Set("Cookie", "sp_dc="+s.cookie+";")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("web token request: %w", err)
	}
	defer httputil.DrainBody(resp)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("web token endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, httputil.MaxResponseBody))
	if err != nil {
		return err
	}

	var tokenResp struct {
		AccessToken string `json:"accessToken"`
		ClientID    string `json:"clientId"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return fmt.Errorf("parsing web token: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return fmt.Errorf("web token endpoint returned no token (invalid sp_dc cookie?)")
	}

	clientToken, err := s.fetchClientToken(ctx, tokenResp.ClientID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.webToken = tokenResp.AccessToken
	s.clientToken = clientToken
	s.mu.Unlock()
	return nil
}

func (s *session) fetchClientToken(ctx context.Context, clientID string) (string, error) {
	payload := map[string]any{
		"client_data": map[string]any{
			"client_version": clientVersion,
			"client_id":      clientID,
			"js_sdk_data": map[string]any{
				"device_brand": "unknown",
				"device_model": "unknown",
				"os":           "windows",
				"os_version":   "NT 10.0",
				"device_id":    randomDeviceID(),
				"device_type":  "computer",
			},
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.urls.clientToken, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	s.setWebHeaders(req)

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("client token request: %w", err)
	}
	defer httputil.DrainBody(resp)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("client token endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, httputil.MaxResponseBody))
	if err != nil {
		return "", err
	}

	var tokenResp struct {
		GrantedToken struct {
			Token string `json:"token"`
		} `json:"granted_token"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("parsing client token: %w", err)
	}
	if tokenResp.GrantedToken.Token == "" {
		return "", fmt.Errorf("client token endpoint granted no token")
	}
	return tokenResp.GrantedToken.Token, nil
}

// do sends one authenticated request. On a 401 it refreshes the scope's
// credentials exactly once and retries the request exactly once; a second
// consecutive 401 is returned to the caller unchanged and reported through
// onAuthError. Concurrent 401s share a single in-flight refresh.
func (s *session) do(ctx context.Context, scope authScope, method, rawURL string, query url.Values, body []byte, extra http.Header) (int, []byte, error) {
	status, respBody, err := s.send(ctx, scope, method, rawURL, query, body, extra)
	if err != nil {
		return 0, nil, err
	}

	if status == http.StatusUnauthorized {
		s.retryMu.Lock()
		already := s.retried[scope]
		s.retried[scope] = true
		s.retryMu.Unlock()

		if already {
			err := fmt.Errorf("still unauthorized after credential refresh")
			if s.onAuthError != nil {
				s.onAuthError(err)
			}
			return status, respBody, nil
		}

		if err := s.refresh(ctx, scope); err != nil {
			if s.onAuthError != nil {
				s.onAuthError(err)
			}
			return status, respBody, nil
		}

		status, respBody, err = s.send(ctx, scope, method, rawURL, query, body, extra)
		if err != nil {
			return 0, nil, err
		}
	}

	if status < http.StatusBadRequest {
		s.retryMu.Lock()
		s.retried[scope] = false
		s.retryMu.Unlock()
	}
	return status, respBody, nil
}

// refresh coalesces concurrent credential refreshes for one scope: callers
// that hit a 401 while a refresh is in flight await that refresh instead of
// starting a duplicate.
func (s *session) refresh(ctx context.Context, scope authScope) error {
	key := "api"
	if scope == scopeWeb {
		key = "web"
	}
	_, err, _ := s.group.Do(key, func() (any, error) {
		s.retryMu.Lock()
		s.refreshCalls[scope]++
		s.retryMu.Unlock()
		if scope == scopeWeb {
			return nil, s.loginWeb(ctx)
		}
		return nil, s.loginAPI(ctx)
	})
	return err
}

func (s *session) send(ctx context.Context, scope authScope, method, rawURL string, query url.Values, body []byte, extra http.Header) (int, []byte, error) {
	u := rawURL
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return 0, nil, err
	}

	s.mu.RLock()
	switch scope {
	case scopeWeb:
		s.setWebHeaders(req)
		if s.webToken != "" {
			req.Header.Set("Authorization", "Bearer "+s.webToken)
		}
		if s.clientToken != "" {
			req.Header.Set("Client-Token", s.clientToken)
		}
	default:
		if s.accessToken != "" {
			req.Header.Set("Authorization", "Bearer "+s.accessToken)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	s.mu.RUnlock()

	for k, vs := range extra {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer httputil.DrainBody(resp)

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, httputil.MaxResponseBody))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, respBody, nil
}

func (s *session) setWebHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", webOrigin)
	req.Header.Set("Referer", webOrigin+"/")
	req.Header.Set("User-Agent", userAgent)
}

func (s *session) currentWebToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.webToken
}
