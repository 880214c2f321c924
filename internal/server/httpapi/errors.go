package httpapi

import "fmt"

// APIError is the JSON body returned for every non-2xx response, matching
// the reference architecture's error envelope.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("manifest service error: code=%s, message=%s", e.Code, e.Message)
}

const (
	CodeInvalidRequest         = "E_INVALID_REQUEST"
	CodeRateLimited            = "E_RATE_LIMITED"
	CodeInternalError          = "E_INTERNAL_ERROR"
	CodeAccessDenied           = "E_ACCESS_DENIED"
	CodeAuthInvalidCredentials = "E_AUTH_INVALID_CREDENTIALS"
	CodeManifestNotFound       = "E_MANIFEST_NOT_FOUND"
	CodePreconditionRequired   = "E_PRECONDITION_REQUIRED"
	CodePreconditionFailed     = "E_PRECONDITION_FAILED"
	CodeInvalidPath            = "E_INVALID_PATH"
	CodeObjectNotFound         = "E_OBJECT_NOT_FOUND"
)
