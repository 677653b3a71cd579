// Package api serves the JSON API under /api and the single-page client
// under /app/.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/vento/internal/account"
	"github.com/mesh-intelligence/vento/internal/auth"
	"github.com/mesh-intelligence/vento/internal/inventory"
	"github.com/mesh-intelligence/vento/pkg/types"
)

// Pinger reports whether the storage backend is reachable.
type Pinger interface {
	Name() string
	Ping(ctx context.Context) error
}

// Handler serves the JSON endpoints.
type Handler struct {
	inventory *inventory.Service
	accounts  *account.Service
	auth      *auth.Manager
	store     Pinger
	log       *zap.Logger
}

// NewHandler returns a Handler. store backs the diagnostics endpoint.
func NewHandler(inv *inventory.Service, accts *account.Service, am *auth.Manager, store Pinger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{inventory: inv, accounts: accts, auth: am, store: store, log: logger.Named("api")}
}

// Register installs the API and SPA routes on r. r must already run
// auth.Manager.Session.
func (h *Handler) Register(r *gin.Engine) {
	api := r.Group("/api")
	api.POST("/auth/signup", h.signup)
	api.POST("/auth/login", h.login)
	api.POST("/auth/logout", h.logout)
	api.GET("/auth/session", h.session)
	api.GET("/diagnostics", h.diagnostics)

	products := api.Group("/products", auth.RequireUser())
	products.GET("", h.listProducts)
	products.POST("", h.createProduct)
	products.GET("/:id", h.getProduct)
	products.PUT("/:id", h.updateProduct)
	products.DELETE("/:id", h.deleteProduct)
	products.POST("/:id/quantity", h.changeQuantity)

	admin := api.Group("/admin", auth.RequireAdmin())
	admin.GET("/users", h.listUsers)
	admin.DELETE("/users", h.deleteUser)
	admin.PUT("/users/:username", h.editUser)
	admin.GET("/products", h.allProducts)

	registerSPA(r)
}

func fail(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"success": false, "error": msg})
}

// status maps a service error to an HTTP status. Unknown errors map to 500.
func status(err error) int {
	switch {
	case errors.Is(err, types.ErrNotFound), errors.Is(err, types.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrDuplicateID), errors.Is(err, types.ErrUsernameTaken):
		return http.StatusConflict
	case errors.Is(err, account.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, types.ErrInvalidID),
		errors.Is(err, types.ErrInvalidName),
		errors.Is(err, types.ErrInvalidPrice),
		errors.Is(err, types.ErrInvalidQuantity),
		errors.Is(err, types.ErrInvalidUsername),
		errors.Is(err, types.ErrInvalidPassword),
		errors.Is(err, types.ErrInsufficientStock),
		errors.Is(err, inventory.ErrInvalidAmount),
		errors.Is(err, inventory.ErrInvalidAction),
		errors.Is(err, account.ErrMissingFields),
		errors.Is(err, account.ErrPasswordMismatch),
		errors.Is(err, account.ErrSelfDelete):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	code := status(err)
	if code == http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		fail(c, code, "Internal server error")
		return
	}
	fail(c, code, err.Error())
}

func sessionUser(c *gin.Context) types.SessionUser {
	u, _ := auth.CurrentUser(c)
	return u
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 0 {
		fail(c, http.StatusBadRequest, types.ErrInvalidID.Error())
		return 0, false
	}
	return id, true
}
