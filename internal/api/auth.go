package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mesh-intelligence/vento/internal/auth"
	"github.com/mesh-intelligence/vento/pkg/types"
)

type credentials struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (h *Handler) signIn(c *gin.Context, u types.User) {
	s := u.Session()
	if err := h.auth.SignIn(c, s); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": s})
}

func (h *Handler) signup(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	u, err := h.accounts.Signup(c.Request.Context(), req.Username, req.Password, req.ConfirmPassword)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.signIn(c, u)
}

func (h *Handler) login(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	u, err := h.accounts.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.signIn(c, u)
}

func (h *Handler) logout(c *gin.Context) {
	h.auth.ClearCookie(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) session(c *gin.Context) {
	u, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"user": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

func (h *Handler) diagnostics(c *gin.Context) {
	var issues []string
	checks := gin.H{"backend": h.store.Name()}
	if err := h.store.Ping(c.Request.Context()); err != nil {
		checks["backendReachable"] = false
		issues = append(issues, "storage backend unreachable: "+err.Error())
	} else {
		checks["backendReachable"] = true
	}
	checks["defaultSecret"] = h.auth.UsingDefaultSecret()
	if h.auth.UsingDefaultSecret() {
		issues = append(issues, "JWT secret is the built-in development default; set VENTO_JWT_SECRET")
	}
	code := http.StatusOK
	if len(issues) > 0 {
		code = http.StatusInternalServerError
	}
	c.JSON(code, gin.H{"ok": len(issues) == 0, "checks": checks, "issues": issues})
}
