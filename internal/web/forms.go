package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mesh-intelligence/vento/internal/account"
	"github.com/mesh-intelligence/vento/internal/inventory"
	"github.com/mesh-intelligence/vento/pkg/types"
)

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id < 0 {
		return 0, types.ErrInvalidID
	}
	return id, nil
}

// productFromForm reads id, name, price and quantity from a POST form.
func productFromForm(c *gin.Context) (types.Product, error) {
	id, err := parseID(c.PostForm("id"))
	if err != nil {
		return types.Product{}, err
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(c.PostForm("price")), 64)
	if err != nil {
		return types.Product{}, types.ErrInvalidPrice
	}
	qty, err := strconv.ParseInt(strings.TrimSpace(c.PostForm("quantity")), 10, 64)
	if err != nil {
		return types.Product{}, types.ErrInvalidQuantity
	}
	return types.Product{ID: id, Name: c.PostForm("name"), Price: price, Quantity: qty}, nil
}

var productValidation = []error{
	types.ErrInvalidID, types.ErrInvalidName, types.ErrInvalidPrice, types.ErrInvalidQuantity,
	inventory.ErrInvalidAmount, inventory.ErrInvalidAction,
}

// productError maps a product failure to a user-facing message and status.
// ok is false for unexpected errors.
func productError(err error) (msg string, code int, ok bool) {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return "Product not found.", http.StatusNotFound, true
	case errors.Is(err, types.ErrDuplicateID):
		return "A product with this ID already exists.", http.StatusConflict, true
	case errors.Is(err, types.ErrInsufficientStock):
		return "Insufficient quantity in stock.", http.StatusBadRequest, true
	}
	for _, v := range productValidation {
		if errors.Is(err, v) {
			return v.Error(), http.StatusBadRequest, true
		}
	}
	return "", 0, false
}

var accountValidation = []error{
	account.ErrMissingFields, account.ErrPasswordMismatch, account.ErrSelfDelete,
	types.ErrInvalidUsername, types.ErrInvalidPassword,
}

func accountError(err error) (msg string, code int, ok bool) {
	switch {
	case errors.Is(err, types.ErrUserNotFound):
		return "User not found.", http.StatusNotFound, true
	case errors.Is(err, types.ErrUsernameTaken):
		return "Username already exists.", http.StatusConflict, true
	}
	for _, v := range accountValidation {
		if errors.Is(err, v) {
			return v.Error(), http.StatusBadRequest, true
		}
	}
	return "", 0, false
}
