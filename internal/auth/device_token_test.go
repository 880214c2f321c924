package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerifyDeviceToken(t *testing.T) {
	secret := []byte("shared-secret")
	token := IssueDeviceToken(secret, "device-123")

	deviceID, err := VerifyDeviceToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, "device-123", deviceID)
}

func TestVerifyDeviceToken_MalformedMissingColon(t *testing.T) {
	_, err := VerifyDeviceToken([]byte("s"), "not-a-token")
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestVerifyDeviceToken_WrongSecretRejected(t *testing.T) {
	token := IssueDeviceToken([]byte("secret-a"), "device-123")
	_, err := VerifyDeviceToken([]byte("secret-b"), token)
	assert.ErrorIs(t, err, ErrTokenMismatch)
}

func TestVerifyDeviceToken_TamperedHMACRejected(t *testing.T) {
	token := IssueDeviceToken([]byte("s"), "device-123")
	tampered := token[:len(token)-1] + "0"
	_, err := VerifyDeviceToken([]byte("s"), tampered)
	assert.ErrorIs(t, err, ErrTokenMismatch)
}

// P6: acceptance is exactly the set of tokens produced by the documented
// construction.
func TestVerifyDeviceToken_P6_AcceptsOnlyDocumentedConstruction(t *testing.T) {
	secret := []byte("s")
	for _, id := range []string{"a", "device-with-dashes", "uuid-looking-1234"} {
		token := IssueDeviceToken(secret, id)
		got, err := VerifyDeviceToken(secret, token)
		require.NoError(t, err)
		assert.Equal(t, id, got)
	}

	_, err := VerifyDeviceToken(secret, "device:deadbeef")
	assert.Error(t, err)
}
