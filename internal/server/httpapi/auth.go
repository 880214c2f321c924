package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vaultsync/vaultsync/internal/auth"
)

const (
	bearerPrefix = "Bearer "
	authHeader   = "Authorization"
	deviceIDKey  = "device_id"
	operatorKey  = "operator"
)

// DeviceAuth validates the HMAC device-token bearer header and attaches
// the verified deviceId to the request context. Every route except
// GET /health passes through this middleware.
func DeviceAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abort(c, http.StatusUnauthorized, CodeAuthInvalidCredentials, "missing or malformed Authorization header")
			return
		}

		deviceID, err := auth.VerifyDeviceToken(secret, token)
		if err != nil {
			abort(c, http.StatusUnauthorized, CodeAuthInvalidCredentials, err.Error())
			return
		}

		c.Set(deviceIDKey, deviceID)
		c.Next()
	}
}

// AdminAuth validates a golang-jwt admin token. Entirely separate from
// DeviceAuth: no device bearer token is ever accepted here, and no admin
// token is ever accepted by DeviceAuth.
func AdminAuth(signingKey []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abort(c, http.StatusUnauthorized, CodeAuthInvalidCredentials, "missing or malformed Authorization header")
			return
		}

		claims, err := auth.VerifyAdminToken(signingKey, token)
		if err != nil {
			abort(c, http.StatusUnauthorized, CodeAuthInvalidCredentials, err.Error())
			return
		}

		c.Set(operatorKey, claims.Operator)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	h := c.GetHeader(authHeader)
	if !strings.HasPrefix(h, bearerPrefix) {
		return "", false
	}
	token := strings.TrimPrefix(h, bearerPrefix)
	if token == "" {
		return "", false
	}
	return token, true
}

func abort(c *gin.Context, status int, code, message string) {
	c.Abort()
	c.PureJSON(status, APIError{Code: code, Message: message})
}
