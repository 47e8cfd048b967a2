package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/sakib404-hub/zap-shit-server/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test"

// signPayload builds a Stripe-Signature header: t=<ts>,v1=HMAC-SHA256(secret, "<ts>.<payload>").
func signPayload(payload []byte, secret string, ts time.Time) string {
	unix := ts.Unix()

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(unix, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)

	return fmt.Sprintf("t=%d,v1=%s", unix, hex.EncodeToString(mac.Sum(nil)))
}

func eventPayload(eventType, sessionID string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"object": "event",
		"api_version": "2023-10-16",
		"type": %q,
		"data": {"object": {"id": %q, "object": "checkout.session"}}
	}`, eventType, sessionID))
}

func TestCompletedSessionID(t *testing.T) {
	v, err := NewWebhookVerifier(testWebhookSecret)
	require.NoError(t, err)

	payload := eventPayload("checkout.session.completed", "cs_paid")

	id, ok, err := v.CompletedSessionID(payload, signPayload(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "cs_paid", id)
}

func TestCompletedSessionID_IgnoresOtherEvents(t *testing.T) {
	v, err := NewWebhookVerifier(testWebhookSecret)
	require.NoError(t, err)

	payload := eventPayload("checkout.session.expired", "cs_old")

	_, ok, err := v.CompletedSessionID(payload, signPayload(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompletedSessionID_RejectsBadSignatures(t *testing.T) {
	v, err := NewWebhookVerifier(testWebhookSecret)
	require.NoError(t, err)

	payload := eventPayload("checkout.session.completed", "cs_paid")

	for name, header := range map[string]string{
		"wrong secret": signPayload(payload, "whsec_other", time.Now()),
		"stale":        signPayload(payload, testWebhookSecret, time.Now().Add(-time.Hour)),
		"missing":      "",
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := v.CompletedSessionID(payload, header)
			assert.ErrorIs(t, err, service.ErrValidation)
		})
	}
}
