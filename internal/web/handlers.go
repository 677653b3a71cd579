// Package web serves the server-rendered, form-based VENTO interface.
package web

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/vento/internal/account"
	"github.com/mesh-intelligence/vento/internal/auth"
	"github.com/mesh-intelligence/vento/internal/inventory"
	"github.com/mesh-intelligence/vento/pkg/types"
)

// Handler renders the HTML pages.
type Handler struct {
	inventory *inventory.Service
	accounts  *account.Service
	auth      *auth.Manager
	log       *zap.Logger
}

// NewHandler returns a Handler over the services.
func NewHandler(inv *inventory.Service, accts *account.Service, am *auth.Manager, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{inventory: inv, accounts: accts, auth: am, log: logger.Named("web")}
}

// Register installs the page renderer, static assets and routes on r.
// r must already run auth.Manager.Session.
func (h *Handler) Register(r *gin.Engine) error {
	p, err := loadPages()
	if err != nil {
		return err
	}
	r.HTMLRender = p
	r.StaticFS("/static", http.FS(Static()))

	r.GET("/", h.index)
	r.GET("/login", h.loginForm)
	r.POST("/login", h.login)
	r.GET("/signup", h.signupForm)
	r.POST("/signup", h.signup)
	r.GET("/logout", h.logout)

	user := r.Group("/", auth.RequirePageUser())
	user.GET("/menu", h.menu)
	user.GET("/products", h.products)
	user.GET("/products/add", h.addForm)
	user.POST("/products/add", h.add)
	user.GET("/products/update", h.updateForm)
	user.POST("/products/update", h.update)
	user.GET("/products/delete", h.deleteForm)
	user.POST("/products/delete", h.delete)

	admin := r.Group("/admin", auth.RequirePageAdmin())
	admin.GET("", h.adminDashboard)
	admin.POST("", h.adminAction)
	admin.GET("/users/edit", h.editUserForm)
	admin.POST("/users/edit", h.editUser)
	return nil
}

// flashMessages maps the msg query parameter set by redirects to text.
var flashMessages = map[string]string{
	"signed_up":    "Account created. Welcome!",
	"added":        "Product added successfully.",
	"updated":      "Product updated successfully.",
	"deleted":      "Product deleted successfully.",
	"user_deleted": "User deleted successfully.",
	"user_updated": "User updated successfully.",
	"logged_out":   "You have been logged out.",
}

type view struct {
	Title    string
	User     *types.SessionUser
	Flash    string
	Error    string
	Form     map[string]string
	Query    string
	Tab      string
	Products []types.Product
	Product  *types.Product
	Totals   inventory.Totals
	Users    []account.UserInfo
	Stats    account.Stats
}

func (h *Handler) newView(c *gin.Context, title string) *view {
	v := &view{Title: title, Form: map[string]string{}}
	if u, ok := auth.CurrentUser(c); ok {
		v.User = &u
	}
	v.Flash = flashMessages[c.Query("msg")]
	return v
}

func (h *Handler) render(c *gin.Context, code int, page string, v *view) {
	c.HTML(code, page, v)
}

func (h *Handler) fail(c *gin.Context, err error) {
	h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	v := h.newView(c, "Error")
	v.Error = "An unexpected error occurred. Please try again."
	h.render(c, http.StatusInternalServerError, "error", v)
}

func redirect(c *gin.Context, path, msg string) {
	if msg != "" {
		path += "?msg=" + url.QueryEscape(msg)
	}
	c.Redirect(http.StatusSeeOther, path)
}

func homeFor(u types.SessionUser) string {
	if u.IsAdmin {
		return "/admin"
	}
	return "/menu"
}

func (h *Handler) index(c *gin.Context) {
	h.render(c, http.StatusOK, "index", h.newView(c, "Welcome"))
}

func (h *Handler) loginForm(c *gin.Context) {
	if u, ok := auth.CurrentUser(c); ok {
		c.Redirect(http.StatusSeeOther, homeFor(u))
		return
	}
	h.render(c, http.StatusOK, "login", h.newView(c, "Log in"))
}

func (h *Handler) login(c *gin.Context) {
	if u, ok := auth.CurrentUser(c); ok {
		c.Redirect(http.StatusSeeOther, homeFor(u))
		return
	}
	username := c.PostForm("username")
	u, err := h.accounts.Login(c.Request.Context(), username, c.PostForm("password"))
	if err != nil {
		v := h.newView(c, "Log in")
		v.Form["username"] = username
		code := http.StatusUnauthorized
		switch {
		case errors.Is(err, account.ErrMissingFields):
			code = http.StatusBadRequest
			v.Error = "Please enter both username and password."
		case errors.Is(err, account.ErrInvalidCredentials):
			v.Error = "Invalid username or password."
		default:
			h.fail(c, err)
			return
		}
		h.render(c, code, "login", v)
		return
	}
	if err := h.auth.SignIn(c, u.Session()); err != nil {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, homeFor(u.Session()))
}

func (h *Handler) signupForm(c *gin.Context) {
	if u, ok := auth.CurrentUser(c); ok {
		c.Redirect(http.StatusSeeOther, homeFor(u))
		return
	}
	h.render(c, http.StatusOK, "signup", h.newView(c, "Sign up"))
}

func (h *Handler) signup(c *gin.Context) {
	if u, ok := auth.CurrentUser(c); ok {
		c.Redirect(http.StatusSeeOther, homeFor(u))
		return
	}
	username := c.PostForm("username")
	u, err := h.accounts.Signup(c.Request.Context(), username, c.PostForm("password"), c.PostForm("confirm_password"))
	if err != nil {
		msg, code, ok := accountError(err)
		if !ok {
			h.fail(c, err)
			return
		}
		v := h.newView(c, "Sign up")
		v.Form["username"] = username
		v.Error = msg
		h.render(c, code, "signup", v)
		return
	}
	if err := h.auth.SignIn(c, u.Session()); err != nil {
		h.fail(c, err)
		return
	}
	redirect(c, "/menu", "signed_up")
}

func (h *Handler) logout(c *gin.Context) {
	h.auth.ClearCookie(c)
	redirect(c, "/login", "logged_out")
}

func (h *Handler) menu(c *gin.Context) {
	v := h.newView(c, "Menu")
	list, err := h.inventory.List(c.Request.Context(), v.User.Username)
	if err != nil {
		h.fail(c, err)
		return
	}
	v.Totals = inventory.Summary(list)
	h.render(c, http.StatusOK, "menu", v)
}

func (h *Handler) products(c *gin.Context) {
	v := h.newView(c, "Products")
	list, err := h.inventory.List(c.Request.Context(), v.User.Username)
	if err != nil {
		h.fail(c, err)
		return
	}
	v.Query = strings.TrimSpace(c.Query("q"))
	v.Products = inventory.Filter(list, v.Query)
	v.Totals = inventory.Summary(v.Products)
	h.render(c, http.StatusOK, "products", v)
}

func (h *Handler) addForm(c *gin.Context) {
	h.render(c, http.StatusOK, "product_add", h.newView(c, "Add product"))
}

func (h *Handler) add(c *gin.Context) {
	v := h.newView(c, "Add product")
	for _, k := range []string{"id", "name", "price", "quantity"} {
		v.Form[k] = c.PostForm(k)
	}
	p, err := productFromForm(c)
	if err == nil {
		_, err = h.inventory.Add(c.Request.Context(), v.User.Username, p)
	}
	if err != nil {
		msg, code, ok := productError(err)
		if !ok {
			h.fail(c, err)
			return
		}
		v.Error = msg
		h.render(c, code, "product_add", v)
		return
	}
	redirect(c, "/products", "added")
}

// loadProduct fills v.Product from the id parameter, if any. It reports
// false after rendering an error page.
func (h *Handler) loadProduct(c *gin.Context, v *view, page, raw string) bool {
	raw = strings.TrimSpace(raw)
	v.Form["id"] = raw
	if raw == "" {
		return true
	}
	id, err := parseID(raw)
	if err == nil {
		var p types.Product
		p, err = h.inventory.Get(c.Request.Context(), v.User.Username, id)
		if err == nil {
			v.Product = &p
			return true
		}
	}
	msg, code, ok := productError(err)
	if !ok {
		h.fail(c, err)
		return false
	}
	v.Error = msg
	h.render(c, code, page, v)
	return false
}

func tabFor(raw string) string {
	switch raw {
	case inventory.ActionAdd, inventory.ActionSubtract:
		return raw
	default:
		return "info"
	}
}

func (h *Handler) updateForm(c *gin.Context) {
	v := h.newView(c, "Update product")
	v.Tab = tabFor(c.Query("tab"))
	if !h.loadProduct(c, v, "product_update", c.Query("id")) {
		return
	}
	h.render(c, http.StatusOK, "product_update", v)
}

func (h *Handler) update(c *gin.Context) {
	v := h.newView(c, "Update product")
	v.Tab = tabFor(c.PostForm("action"))
	if !h.loadProduct(c, v, "product_update", c.PostForm("id")) {
		return
	}
	if v.Product == nil {
		v.Error = types.ErrInvalidID.Error()
		h.render(c, http.StatusBadRequest, "product_update", v)
		return
	}

	ctx := c.Request.Context()
	var err error
	if v.Tab == "info" {
		var p types.Product
		p, err = productFromForm(c)
		if err == nil {
			_, err = h.inventory.Update(ctx, v.User.Username, p)
		}
	} else {
		var amount int64
		amount, err = strconv.ParseInt(strings.TrimSpace(c.PostForm("amount")), 10, 64)
		if err != nil {
			err = inventory.ErrInvalidAmount
		} else {
			_, err = h.inventory.ChangeQuantity(ctx, v.User.Username, v.Product.ID, v.Tab, amount)
		}
	}
	if err != nil {
		msg, code, ok := productError(err)
		if !ok {
			h.fail(c, err)
			return
		}
		v.Error = msg
		h.render(c, code, "product_update", v)
		return
	}
	redirect(c, "/products", "updated")
}

func (h *Handler) deleteForm(c *gin.Context) {
	v := h.newView(c, "Delete product")
	if !h.loadProduct(c, v, "product_delete", c.Query("id")) {
		return
	}
	h.render(c, http.StatusOK, "product_delete", v)
}

func (h *Handler) delete(c *gin.Context) {
	v := h.newView(c, "Delete product")
	id, err := parseID(c.PostForm("id"))
	if err == nil {
		err = h.inventory.Delete(c.Request.Context(), v.User.Username, id)
	}
	if err != nil {
		msg, code, ok := productError(err)
		if !ok {
			h.fail(c, err)
			return
		}
		v.Form["id"] = c.PostForm("id")
		v.Error = msg
		h.render(c, code, "product_delete", v)
		return
	}
	redirect(c, "/products", "deleted")
}

func (h *Handler) dashboard(c *gin.Context, code int, v *view) {
	users, err := h.accounts.ListUsers(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	v.Users = users
	v.Stats = account.StatsFor(users)
	h.render(c, code, "admin", v)
}

func (h *Handler) adminDashboard(c *gin.Context) {
	h.dashboard(c, http.StatusOK, h.newView(c, "Admin"))
}

func (h *Handler) adminAction(c *gin.Context) {
	v := h.newView(c, "Admin")
	if c.PostForm("action") != "delete" {
		v.Error = "Unknown action."
		h.dashboard(c, http.StatusBadRequest, v)
		return
	}
	err := h.accounts.DeleteUser(c.Request.Context(), v.User.Username, c.PostForm("username"))
	if err != nil {
		msg, code, ok := accountError(err)
		if !ok {
			h.fail(c, err)
			return
		}
		v.Error = msg
		h.dashboard(c, code, v)
		return
	}
	redirect(c, "/admin", "user_deleted")
}

func (h *Handler) editUserForm(c *gin.Context) {
	v := h.newView(c, "Edit user")
	u, err := h.accounts.Lookup(c.Request.Context(), c.Query("username"))
	if err != nil {
		msg, code, ok := accountError(err)
		if !ok {
			h.fail(c, err)
			return
		}
		v.Error = msg
		h.dashboard(c, code, v)
		return
	}
	v.Form["original"] = u.Username
	v.Form["username"] = u.Username
	if u.IsAdmin {
		v.Form["is_admin"] = "1"
	}
	h.render(c, http.StatusOK, "user_edit", v)
}

func (h *Handler) editUser(c *gin.Context) {
	v := h.newView(c, "Edit user")
	original := c.Query("username")
	isAdmin := c.PostForm("is_admin") != ""
	req := account.EditRequest{
		Username: c.PostForm("username"),
		Password: c.PostForm("password"),
		IsAdmin:  &isAdmin,
	}
	if _, err := h.accounts.EditUser(c.Request.Context(), original, req); err != nil {
		msg, code, ok := accountError(err)
		if !ok {
			h.fail(c, err)
			return
		}
		v.Error = msg
		v.Form["original"] = original
		v.Form["username"] = req.Username
		if isAdmin {
			v.Form["is_admin"] = "1"
		}
		h.render(c, code, "user_edit", v)
		return
	}
	redirect(c, "/admin", "user_updated")
}
