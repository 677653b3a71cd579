// Package inventory implements the product operations a signed-in user
// performs on their own records.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/vento/pkg/types"
)

// Quantity change actions.
const (
	ActionAdd      = "add"
	ActionSubtract = "subtract"
)

var (
	ErrInvalidAmount = errors.New("quantity must be a positive number")
	ErrInvalidAction = errors.New("invalid action")
)

// Service scopes product operations to a username.
type Service struct {
	products types.ProductStore
	log      *zap.Logger
}

// New returns a Service over products.
func New(products types.ProductStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{products: products, log: logger.Named("inventory")}
}

// List returns the user's products sorted by ID.
func (s *Service) List(ctx context.Context, username string) ([]types.Product, error) {
	return s.products.List(ctx, username)
}

// Get returns one product.
func (s *Service) Get(ctx context.Context, username string, id int64) (types.Product, error) {
	return s.products.Get(ctx, username, id)
}

// Add validates and stores a new product.
func (s *Service) Add(ctx context.Context, username string, p types.Product) (types.Product, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return types.Product{}, err
	}
	if err := s.products.Add(ctx, username, p); err != nil {
		return types.Product{}, err
	}
	s.log.Info("product added", zap.String("user", username), zap.Int64("id", p.ID))
	return p, nil
}

// Update replaces an existing product.
func (s *Service) Update(ctx context.Context, username string, p types.Product) (types.Product, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return types.Product{}, err
	}
	if err := s.products.Update(ctx, username, p); err != nil {
		return types.Product{}, err
	}
	s.log.Info("product updated", zap.String("user", username), zap.Int64("id", p.ID))
	return p, nil
}

// Delete removes a product.
func (s *Service) Delete(ctx context.Context, username string, id int64) error {
	if err := s.products.Delete(ctx, username, id); err != nil {
		return err
	}
	s.log.Info("product deleted", zap.String("user", username), zap.Int64("id", id))
	return nil
}

// ChangeQuantity adds or subtracts amount from a product's stock.
// amount must be positive; subtracting more than is in stock returns
// types.ErrInsufficientStock and leaves the product unchanged.
func (s *Service) ChangeQuantity(ctx context.Context, username string, id int64, action string, amount int64) (types.Product, error) {
	if amount <= 0 {
		return types.Product{}, ErrInvalidAmount
	}
	var delta int64
	switch strings.ToLower(strings.TrimSpace(action)) {
	case ActionAdd:
		delta = amount
	case ActionSubtract:
		delta = -amount
	default:
		return types.Product{}, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	p, err := s.products.AdjustQuantity(ctx, username, id, delta)
	if err != nil {
		return p, err
	}
	s.log.Info("quantity changed",
		zap.String("user", username), zap.Int64("id", id),
		zap.Int64("delta", delta), zap.Int64("quantity", p.Quantity))
	return p, nil
}

// Filter returns the products whose ID, name, price or quantity contains
// query, ignoring case. An empty query returns products unchanged.
func Filter(products []types.Product, query string) []types.Product {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return products
	}
	out := make([]types.Product, 0, len(products))
	for _, p := range products {
		if matches(p, q) {
			out = append(out, p)
		}
	}
	return out
}

func matches(p types.Product, q string) bool {
	fields := []string{
		strconv.FormatInt(p.ID, 10),
		strings.ToLower(p.Name),
		strconv.FormatFloat(p.Price, 'f', -1, 64),
		strconv.FormatFloat(p.Price, 'f', 2, 64),
		strconv.FormatInt(p.Quantity, 10),
	}
	for _, f := range fields {
		if strings.Contains(f, q) {
			return true
		}
	}
	return false
}

// Totals summarizes a product list.
type Totals struct {
	Items int     `json:"items"`
	Units int64   `json:"units"`
	Value float64 `json:"value"`
}

// Summary totals item count, units in stock and stock value.
func Summary(products []types.Product) Totals {
	var t Totals
	for _, p := range products {
		t.Items++
		t.Units += p.Quantity
		t.Value += p.Price * float64(p.Quantity)
	}
	return t
}
