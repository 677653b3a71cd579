package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mesh-intelligence/vento/pkg/types"
)

// productRequest uses pointers so that omitted fields are rejected rather
// than read as zero.
type productRequest struct {
	ID       *int64   `json:"id"`
	Name     string   `json:"productName"`
	Price    *float64 `json:"price"`
	Quantity *int64   `json:"quantity"`
}

func (r productRequest) product() (types.Product, error) {
	switch {
	case r.ID == nil:
		return types.Product{}, types.ErrInvalidID
	case r.Price == nil:
		return types.Product{}, types.ErrInvalidPrice
	case r.Quantity == nil:
		return types.Product{}, types.ErrInvalidQuantity
	}
	return types.Product{ID: *r.ID, Name: r.Name, Price: *r.Price, Quantity: *r.Quantity}, nil
}

type quantityRequest struct {
	Action   string `json:"action"`
	Quantity int64  `json:"quantity"`
}

func (h *Handler) listProducts(c *gin.Context) {
	list, err := h.inventory.List(c.Request.Context(), sessionUser(c).Username)
	if err != nil {
		h.fail(c, err)
		return
	}
	if list == nil {
		list = []types.Product{}
	}
	c.JSON(http.StatusOK, gin.H{"products": list})
}

func (h *Handler) createProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	p, err := req.product()
	if err == nil {
		p, err = h.inventory.Add(c.Request.Context(), sessionUser(c).Username, p)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "product": p})
}

func (h *Handler) getProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	p, err := h.inventory.Get(c.Request.Context(), sessionUser(c).Username, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": p})
}

func (h *Handler) updateProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.ID = &id
	p, err := req.product()
	if err == nil {
		p, err = h.inventory.Update(c.Request.Context(), sessionUser(c).Username, p)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "product": p})
}

func (h *Handler) deleteProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.inventory.Delete(c.Request.Context(), sessionUser(c).Username, id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) changeQuantity(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	p, err := h.inventory.ChangeQuantity(c.Request.Context(), sessionUser(c).Username, id, req.Action, req.Quantity)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "product": p})
}
