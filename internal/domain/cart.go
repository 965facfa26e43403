package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// CartLine is one product in a cart. Lines merge by ProductID only; Size and
// Color do not take part in line identity.
type CartLine struct {
	ProductID string          `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
	Image     string          `json:"image"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size,omitempty"`
	Color     string          `json:"color,omitempty"`
}

// CartLineInput is a line as supplied by a shopper; quantity is implied.
type CartLineInput struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Image     string
	Size      string
	Color     string
}

// Valid reports whether the line could have been produced by the cart reducer.
func (l CartLine) Valid() bool {
	return l.ProductID != "" && ValidQuantity(l.Quantity) && ValidUnitPrice(l.UnitPrice)
}

// Cart is the cart reducer. Subtotal and ItemCount are derived from the lines
// after every transition and cannot be set directly.
type Cart struct {
	lines     []CartLine
	subtotal  int64
	itemCount int
}

func NewCart() *Cart {
	return &Cart{}
}

func (c *Cart) Lines() []CartLine {
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Subtotal() int64 { return c.subtotal }

func (c *Cart) ItemCount() int { return c.itemCount }

func (c *Cart) IsEmpty() bool { return len(c.lines) == 0 }

// AddItem increments the quantity of the line with the same product id or
// appends a new line with quantity 1. Invalid input, an add past MaxQuantity
// and a new line past MaxCartLines are ignored.
func (c *Cart) AddItem(in CartLineInput) {
	if in.ProductID == "" || !ValidUnitPrice(in.UnitPrice) {
		return
	}
	for i := range c.lines {
		if c.lines[i].ProductID == in.ProductID {
			if c.lines[i].Quantity >= MaxQuantity {
				return
			}
			c.lines[i].Quantity++
			c.recompute()
			return
		}
	}
	if len(c.lines) >= MaxCartLines {
		return
	}
	c.lines = append(c.lines, CartLine{
		ProductID: in.ProductID,
		Name:      in.Name,
		UnitPrice: in.UnitPrice,
		Image:     in.Image,
		Quantity:  1,
		Size:      in.Size,
		Color:     in.Color,
	})
	c.recompute()
}

// RemoveItem drops every line for productID.
func (c *Cart) RemoveItem(productID string) {
	kept := c.lines[:0]
	for _, line := range c.lines {
		if line.ProductID != productID {
			kept = append(kept, line)
		}
	}
	c.lines = kept
	c.recompute()
}

// UpdateQuantity overwrites the quantity of productID; quantity <= 0 removes it
// and quantity above MaxQuantity is ignored.
func (c *Cart) UpdateQuantity(productID string, quantity int) {
	if quantity <= 0 {
		c.RemoveItem(productID)
		return
	}
	if quantity > MaxQuantity {
		return
	}
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			c.lines[i].Quantity = quantity
		}
	}
	c.recompute()
}

func (c *Cart) Clear() {
	c.lines = nil
	c.recompute()
}

// Restore replaces the cart with lines. If any line is malformed the whole
// snapshot is discarded and the cart is left empty.
func (c *Cart) Restore(lines []CartLine) {
	c.lines = nil
	if len(lines) > MaxCartLines {
		c.recompute()
		return
	}
	for _, line := range lines {
		if !line.Valid() {
			c.recompute()
			return
		}
	}
	c.lines = append([]CartLine(nil), lines...)
	c.recompute()
}

// RestoreFromJSON rebuilds the cart from a persisted snapshot. A missing,
// corrupt or otherwise malformed snapshot yields an empty cart.
func (c *Cart) RestoreFromJSON(raw []byte) {
	var lines []CartLine
	if len(raw) == 0 || json.Unmarshal(raw, &lines) != nil {
		c.Clear()
		return
	}
	c.Restore(lines)
}

// Snapshot returns the persisted form of the cart: a JSON array of lines.
func (c *Cart) Snapshot() ([]byte, error) {
	lines := c.lines
	if lines == nil {
		lines = []CartLine{}
	}
	return json.Marshal(lines)
}

func (c *Cart) MarshalJSON() ([]byte, error) {
	lines := c.lines
	if lines == nil {
		lines = []CartLine{}
	}
	return json.Marshal(struct {
		Items     []CartLine `json:"items"`
		Subtotal  int64      `json:"subtotal"`
		ItemCount int        `json:"itemCount"`
	}{lines, c.subtotal, c.itemCount})
}

func (c *Cart) recompute() {
	c.subtotal = Subtotal(c.lines)
	c.itemCount = ItemCount(c.lines)
}
