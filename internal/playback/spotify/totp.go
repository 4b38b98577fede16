package spotify

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base32"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"glancehub/internal/httputil"
)

// The web token exchange is gated on a time-based OTP whose shared secret
// rotates server-side. The secret and its version are published at a
// remote, versioned source and fetched fresh on every login.
const defaultTOTPSecretURL = "https://gist.github.com/BluDood/1c82e1086a21adfad5e121f255774d57/raw"

const (
	totpStep   = 30 * time.Second
	totpDigits = 6
)

type totpSource struct {
	url    string
	client *http.Client
	now    func() time.Time
}

func newTOTPSource() *totpSource {
	return &totpSource{
		url:    defaultTOTPSecretURL,
		client: httputil.NewClient(),
		now:    time.Now,
	}
}

// generate fetches the current secret material and derives the OTP for now.
// Any failure here is a hard failure for the caller; no web session can be
// minted without a valid OTP.
func (t *totpSource) generate(ctx context.Context) (otp, version string, err error) {
	// Cache-bust the raw endpoint the same way a browser client would.
	u := fmt.Sprintf("%s?%d", t.url, t.now().UnixMilli())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", "", err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetching otp secret: %w", err)
	}
	defer httputil.DrainBody(resp)

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("otp secret source returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, httputil.MaxResponseBody))
	if err != nil {
		return "", "", err
	}

	var payload struct {
		Secret  string          `json:"secret"`
		Version json.RawMessage `json:"version"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", "", fmt.Errorf("parsing otp secret: %w", err)
	}
	if payload.Secret == "" {
		return "", "", fmt.Errorf("otp secret source returned no secret")
	}

	otp, err = computeTOTP(payload.Secret, t.now())
	if err != nil {
		return "", "", err
	}
	return otp, strings.Trim(string(payload.Version), `"`), nil
}

// computeTOTP derives an RFC 6238 HMAC-SHA1 code from a base32 secret.
func computeTOTP(secret string, at time.Time) (string, error) {
	normalized := strings.ToUpper(strings.TrimRight(secret, "="))
	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(normalized)
	if err != nil {
		return "", fmt.Errorf("decoding otp secret: %w", err)
	}

	counter := uint64(at.Unix() / int64(totpStep.Seconds()))
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	code := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	mod := uint32(1)
	for i := 0; i < totpDigits; i++ {
		mod *= 10
	}
	return fmt.Sprintf("%0*d", totpDigits, code%mod), nil
}
