package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vaultsync/vaultsync/internal/server/manifeststore"
	"github.com/vaultsync/vaultsync/internal/vaultmodel"
)

// ManifestHandler serves GET/PUT /manifest.
type ManifestHandler struct {
	store *manifeststore.Store
}

// NewManifestHandler builds a ManifestHandler over store.
func NewManifestHandler(store *manifeststore.Store) *ManifestHandler {
	return &ManifestHandler{store: store}
}

type manifestResponse struct {
	Manifest *vaultmodel.SyncManifest `json:"manifest"`
	ETag     *string                  `json:"etag"`
}

// Get returns the current manifest and its ETag, or an empty manifest
// with a null ETag if none has ever been committed.
func (h *ManifestHandler) Get(c *gin.Context) {
	manifest, etag, err := h.store.Get(c.Request.Context())
	if err != nil {
		abort(c, http.StatusInternalServerError, CodeInternalError, err.Error())
		return
	}

	resp := manifestResponse{Manifest: manifest}
	if etag != "" {
		resp.ETag = &etag
	}
	c.PureJSON(http.StatusOK, resp)
}

// Put commits a new manifest, honoring If-Match optimistic concurrency.
func (h *ManifestHandler) Put(c *gin.Context) {
	var manifest vaultmodel.SyncManifest
	if err := c.ShouldBindJSON(&manifest); err != nil {
		abort(c, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	if err := manifest.Validate(); err != nil {
		abort(c, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	ifMatch := strings.Trim(c.GetHeader("If-Match"), `"`)

	newETag, err := h.store.Put(c.Request.Context(), &manifest, ifMatch)
	switch {
	case err == nil:
		c.PureJSON(http.StatusOK, manifestResponse{Manifest: &manifest, ETag: &newETag})
	case errors.Is(err, manifeststore.ErrPreconditionRequired):
		abort(c, http.StatusPreconditionRequired, CodePreconditionRequired, err.Error())
	case errors.Is(err, manifeststore.ErrPreconditionFailed):
		abort(c, http.StatusPreconditionFailed, CodePreconditionFailed, err.Error())
	default:
		abort(c, http.StatusInternalServerError, CodeInternalError, err.Error())
	}
}
