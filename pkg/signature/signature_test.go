package signature

import (
	"crypto/sha1" //nolint:gosec
	"encoding/hex"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixedVerifier(secret string, maxAge time.Duration, now time.Time) *WebhookVerifier {
	v := NewWebhookVerifier(secret, maxAge)
	v.now = func() time.Time { return now }
	return v
}

func TestWebhookVerifierSignAndVerify(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := fixedVerifier("hook-secret", time.Hour, now)
	body := []byte(`{"notification_type":"upload","public_id":"abc123"}`)
	ts := strconv.FormatInt(now.Unix(), 10)

	sum := sha1.Sum(append(append(append([]byte{}, body...), ts...), "hook-secret"...)) //nolint:gosec
	require.Equal(t, hex.EncodeToString(sum[:]), v.Sign(body, ts))

	require.NoError(t, v.Verify(body, ts, v.Sign(body, ts)))
}

func TestWebhookVerifierRejectsTampering(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := fixedVerifier("hook-secret", time.Hour, now)
	ts := strconv.FormatInt(now.Unix(), 10)
	sig := v.Sign([]byte(`{"a":1}`), ts)

	require.ErrorIs(t, v.Verify([]byte(`{"a":2}`), ts, sig), ErrSignatureMismatch)
	require.ErrorIs(t, v.Verify([]byte(`{"a":1}`), "", sig), ErrMissingSignature)
	require.ErrorIs(t, v.Verify([]byte(`{"a":1}`), "yesterday", sig), ErrInvalidTimestamp)
}

func TestWebhookVerifierTimestampWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	stale := strconv.FormatInt(now.Add(-3*time.Hour).Unix(), 10)
	body := []byte(`{}`)

	strict := fixedVerifier("s", 2*time.Hour, now)
	require.ErrorIs(t, strict.Verify(body, stale, strict.Sign(body, stale)), ErrTimestampExpired)

	lenient := fixedVerifier("s", 0, now)
	require.NoError(t, lenient.Verify(body, stale, lenient.Sign(body, stale)))
}

func TestSignParamsSortsAndSkipsExcluded(t *testing.T) {
	got := SignParams(map[string]string{
		"timestamp":     "1315060510",
		"public_id":     "sample_image",
		"eager":         "",
		"api_key":       "1234",
		"resource_type": "image",
	}, "abcd")

	sum := sha1.Sum([]byte("public_id=sample_image&timestamp=1315060510abcd")) //nolint:gosec
	require.Equal(t, hex.EncodeToString(sum[:]), got)
}
