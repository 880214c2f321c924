package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vaultsync/vaultsync/internal/server/manifeststore"
)

// AdminHandler serves the operator-only introspection route. It is never
// reachable by a device bearer token.
type AdminHandler struct {
	store *manifeststore.Store
}

// NewAdminHandler builds an AdminHandler over store.
func NewAdminHandler(store *manifeststore.Store) *AdminHandler {
	return &AdminHandler{store: store}
}

type adminStatusResponse struct {
	Operator        string `json:"operator"`
	ManifestPresent bool   `json:"manifestPresent"`
	ManifestETag    string `json:"manifestEtag,omitempty"`
	TrackedFiles    int    `json:"trackedFiles"`
	LastUpdated     string `json:"lastUpdated,omitempty"`
	LastUpdatedBy   string `json:"lastUpdatedBy,omitempty"`
}

// Status reports manifest presence and object-store reachability for
// operational visibility.
func (h *AdminHandler) Status(c *gin.Context) {
	manifest, etag, err := h.store.Get(c.Request.Context())
	if err != nil {
		abort(c, http.StatusInternalServerError, CodeInternalError, err.Error())
		return
	}

	operator, _ := c.Get(operatorKey)
	operatorName, _ := operator.(string)

	c.PureJSON(http.StatusOK, adminStatusResponse{
		Operator:        operatorName,
		ManifestPresent: etag != "",
		ManifestETag:    etag,
		TrackedFiles:    len(manifest.Files),
		LastUpdated:     manifest.LastUpdated,
		LastUpdatedBy:   manifest.LastUpdatedBy,
	})
}
