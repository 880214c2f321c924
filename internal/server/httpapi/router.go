// Package httpapi wires the Manifest Service's gin routes: the manifest
// GET/PUT, the presigned upload/download/delete routes under /files, the
// JWT-protected admin introspection route, and the shared
// logging/recovery/compression/rate-limiting middleware stack. Grounded
// on the reference architecture's own route table and its gzip/CORS/
// rate-limiter middleware, generalized from blob storage to the
// vault-sync protocol's narrower surface.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	slogGin "github.com/samber/slog-gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/vaultsync/vaultsync/internal/server/manifeststore"
	"github.com/vaultsync/vaultsync/internal/server/objectstore"
	"github.com/vaultsync/vaultsync/internal/version"
)

// Config carries the secrets and rate needed to build the router.
type Config struct {
	// DeviceSecret is the shared HMAC secret used to verify device tokens.
	DeviceSecret []byte
	// AdminSigningKey signs and verifies operator JWTs.
	AdminSigningKey []byte
	// RateLimit is a ulule/limiter formatted rate, e.g. "100-M".
	RateLimit string
	// Development disables the HTTPS-only security headers, so the
	// service can be exercised over plain HTTP on a laptop.
	Development bool
}

// NewRouter builds the complete gin handler for the Manifest Service.
func NewRouter(cfg Config, objects *objectstore.Store, manifests *manifeststore.Store) http.Handler {
	r := gin.New()

	httpLogger := slog.Default().WithGroup("http")
	r.Use(slogGin.NewWithConfig(httpLogger, slogGin.Config{
		DefaultLevel:     slog.LevelInfo,
		ClientErrorLevel: slog.LevelWarn,
		ServerErrorLevel: slog.LevelError,
		WithRequestID:    true,
	}))
	r.Use(gin.Recovery())
	r.Use(gzip.Gzip(gzip.BestSpeed))
	r.Use(cors.Default())
	r.Use(rateLimiter(cfg.RateLimit))
	r.Use(secureHeaders(cfg.Development))

	manifestH := NewManifestHandler(manifests)
	filesH := NewFilesHandler(objects)
	adminH := NewAdminHandler(manifests)

	r.GET("/health", HealthHandler)

	devices := r.Group("/")
	devices.Use(DeviceAuth(cfg.DeviceSecret))
	{
		devices.GET("/manifest", manifestH.Get)
		devices.PUT("/manifest", manifestH.Put)
		devices.POST("/files/upload-url", filesH.UploadURL)
		devices.POST("/files/download-url", filesH.DownloadURL)
		devices.POST("/files/delete", filesH.Delete)
	}

	admin := r.Group("/admin")
	admin.Use(AdminAuth(cfg.AdminSigningKey))
	{
		admin.GET("/status", adminH.Status)
	}

	r.NoRoute(func(c *gin.Context) {
		c.PureJSON(http.StatusNotFound, APIError{Code: CodeInvalidRequest, Message: "not found"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.PureJSON(http.StatusMethodNotAllowed, APIError{Code: CodeInvalidRequest, Message: "method not allowed"})
	})

	return r.Handler()
}

// HealthHandler is the only route reachable without a device token.
func HealthHandler(c *gin.Context) {
	c.PureJSON(http.StatusOK, gin.H{
		"ok":        true,
		"version":   version.Version,
		"timestamp": time.Now(),
	})
}

// secureHeaders enforces HSTS and the usual clickjacking/sniffing
// defenses. Disabled in development, where the service typically runs
// over plain HTTP behind no TLS terminator.
func secureHeaders(development bool) gin.HandlerFunc {
	return secure.New(secure.Config{
		SSLRedirect:          !development,
		IsDevelopment:        development,
		STSSeconds:           315360000,
		STSIncludeSubdomains: true,
		STSPreload:           true,
		FrameDeny:            true,
		ContentTypeNosniff:   true,
		BrowserXssFilter:     true,
		IENoOpen:             true,
		SSLProxyHeaders:      map[string]string{"X-Forwarded-Proto": "https"},
	})
}

func rateLimiter(formattedRate string) gin.HandlerFunc {
	if formattedRate == "" {
		formattedRate = "100-M"
	}
	rate, err := limiter.NewRateFromFormatted(formattedRate)
	if err != nil {
		panic(err)
	}
	store := memory.NewStore()
	lim := limiter.New(store, rate)
	return mgin.NewMiddleware(
		lim,
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			c.PureJSON(http.StatusTooManyRequests, APIError{Code: CodeRateLimited, Message: "rate limit exceeded"})
		}),
	)
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
