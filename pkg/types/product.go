package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FieldSeparator delimits fields in the text serialization of records.
const FieldSeparator = "|"

// Product is a single inventory line owned by one user.
// The ID is chosen by the user and is unique within that user's records.
type Product struct {
	ID       int64   `json:"id"`
	Name     string  `json:"productName"`
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
}

// Normalize trims surrounding whitespace from the name.
func (p *Product) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
}

// Validate checks the product invariants: non-negative ID, price, and
// quantity, and a non-empty name that survives the text serialization.
func (p Product) Validate() error {
	if p.ID < 0 {
		return ErrInvalidID
	}
	name := strings.TrimSpace(p.Name)
	if name == "" || !serializable(name) {
		return ErrInvalidName
	}
	if p.Price < 0 || math.IsNaN(p.Price) || math.IsInf(p.Price, 0) {
		return ErrInvalidPrice
	}
	if p.Quantity < 0 {
		return ErrInvalidQuantity
	}
	return nil
}

// Adjusted returns a copy of p with delta applied to the quantity.
// Returns ErrInsufficientStock when the result would drop below zero and
// ErrInvalidQuantity when the sum overflows.
func (p Product) Adjusted(delta int64) (Product, error) {
	if delta > 0 && p.Quantity > math.MaxInt64-delta {
		return p, ErrInvalidQuantity
	}
	next := p.Quantity + delta
	if next < 0 {
		return p, ErrInsufficientStock
	}
	p.Quantity = next
	return p, nil
}

// Line renders the product as id|name|price|quantity.
func (p Product) Line() string {
	return strings.Join([]string{
		strconv.FormatInt(p.ID, 10),
		p.Name,
		strconv.FormatFloat(p.Price, 'f', -1, 64),
		strconv.FormatInt(p.Quantity, 10),
	}, FieldSeparator)
}

// ParseProductLine parses a line produced by Product.Line.
// Every field is trimmed; the resulting product must validate.
func ParseProductLine(line string) (Product, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Product{}, ErrEmptyLine
	}
	parts := strings.Split(line, FieldSeparator)
	if len(parts) != 4 {
		return Product{}, fmt.Errorf("%w: want 4 fields, got %d", ErrMalformedLine, len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Product{}, fmt.Errorf("%w: id %q", ErrMalformedLine, parts[0])
	}
	price, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return Product{}, fmt.Errorf("%w: price %q", ErrMalformedLine, parts[2])
	}
	qty, err := parseQuantity(parts[3])
	if err != nil {
		return Product{}, err
	}

	p := Product{ID: id, Name: parts[1], Price: price, Quantity: qty}
	if err := p.Validate(); err != nil {
		return Product{}, err
	}
	return p, nil
}

// parseQuantity accepts integral values, including ones written with a
// trailing ".0" by older writers.
func parseQuantity(s string) (int64, error) {
	if q, err := strconv.ParseInt(s, 10, 64); err == nil {
		return q, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("%w: quantity %q", ErrMalformedLine, s)
	}
	return int64(f), nil
}

// serializable reports whether s can be stored in one delimited field.
func serializable(s string) bool {
	return !strings.ContainsAny(s, FieldSeparator+"\r\n")
}
