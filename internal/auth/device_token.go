// Package auth implements the HMAC device-token scheme that gates every
// Manifest Service route: a token is "<deviceId>:<hmacHex>", where hmacHex
// is HMAC-SHA-256(sharedSecret, deviceId) in lowercase hex. Verification
// runs in time proportional to the token's length regardless of where it
// diverges from the expected value.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrMalformedToken is returned when a token has no ":" separator.
var ErrMalformedToken = errors.New("invalid token format")

// ErrTokenMismatch is returned when the HMAC does not match.
var ErrTokenMismatch = errors.New("token does not match")

// IssueDeviceToken constructs the bearer token for deviceID under secret.
func IssueDeviceToken(secret []byte, deviceID string) string {
	return deviceID + ":" + hmacHex(secret, deviceID)
}

// VerifyDeviceToken splits token on the first ":" and checks the HMAC
// half against a fresh computation over the deviceId half, using the
// server's shared secret. Returns the deviceId on success.
func VerifyDeviceToken(secret []byte, token string) (string, error) {
	idx := strings.IndexByte(token, ':')
	if idx < 0 {
		return "", ErrMalformedToken
	}

	deviceID := token[:idx]
	provided := token[idx+1:]
	expected := hmacHex(secret, deviceID)

	// ConstantTimeCompare requires equal-length inputs; a length
	// mismatch is rejected before the call (itself an immediate
	// failure per the spec, not a timing-sensitive comparison since
	// the lengths alone don't leak the secret).
	if len(provided) != len(expected) {
		return "", ErrTokenMismatch
	}
	if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
		return "", ErrTokenMismatch
	}

	return deviceID, nil
}

func hmacHex(secret []byte, deviceID string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(deviceID))
	return hex.EncodeToString(mac.Sum(nil))
}
