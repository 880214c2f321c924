package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vaultsync/vaultsync/internal/server/objectstore"
	"github.com/vaultsync/vaultsync/internal/vaultmodel"
)

// FilesHandler serves the presigned-URL issuance and bulk-delete routes
// under /files.
type FilesHandler struct {
	objects *objectstore.Store
}

// NewFilesHandler builds a FilesHandler over objects.
func NewFilesHandler(objects *objectstore.Store) *FilesHandler {
	return &FilesHandler{objects: objects}
}

type uploadURLRequest struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
}

type urlResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// UploadURL issues a presigned PUT URL for a single path.
func (h *FilesHandler) UploadURL(c *gin.Context) {
	var req uploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}
	if err := vaultmodel.ValidatePath(req.Path); err != nil {
		abort(c, http.StatusBadRequest, CodeInvalidPath, err.Error())
		return
	}

	url, expiresAt, err := h.objects.PresignPut(c.Request.Context(), vaultmodel.FilesPrefix+req.Path)
	if err != nil {
		abort(c, http.StatusInternalServerError, CodeInternalError, err.Error())
		return
	}

	c.PureJSON(http.StatusOK, urlResponse{URL: url, ExpiresAt: expiresAt})
}

type downloadURLRequest struct {
	Path string `json:"path"`
}

// DownloadURL issues a presigned GET URL for a single path.
func (h *FilesHandler) DownloadURL(c *gin.Context) {
	var req downloadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}
	if err := vaultmodel.ValidatePath(req.Path); err != nil {
		abort(c, http.StatusBadRequest, CodeInvalidPath, err.Error())
		return
	}

	url, expiresAt, err := h.objects.PresignGet(c.Request.Context(), vaultmodel.FilesPrefix+req.Path)
	if err != nil {
		abort(c, http.StatusInternalServerError, CodeInternalError, err.Error())
		return
	}

	c.PureJSON(http.StatusOK, urlResponse{URL: url, ExpiresAt: expiresAt})
}

type deleteRequest struct {
	Paths []string `json:"paths"`
}

type deleteResponse struct {
	OK      bool     `json:"ok"`
	Deleted []string `json:"deleted"`
}

// Delete removes every listed path. The entire request is rejected if
// the array is empty or any entry fails path validation.
func (h *FilesHandler) Delete(c *gin.Context) {
	var req deleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}
	if len(req.Paths) == 0 {
		abort(c, http.StatusBadRequest, CodeInvalidRequest, "paths must not be empty")
		return
	}
	for _, p := range req.Paths {
		if err := vaultmodel.ValidatePath(p); err != nil {
			abort(c, http.StatusBadRequest, CodeInvalidPath, err.Error())
			return
		}
	}

	deleted := make([]string, 0, len(req.Paths))
	for _, p := range req.Paths {
		if err := h.objects.Delete(c.Request.Context(), vaultmodel.FilesPrefix+p); err != nil {
			abort(c, http.StatusInternalServerError, CodeInternalError, err.Error())
			return
		}
		deleted = append(deleted, p)
	}

	c.PureJSON(http.StatusOK, deleteResponse{OK: true, Deleted: deleted})
}
