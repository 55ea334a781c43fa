package cart

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/book"
)

// Item is a cart line. Quantity is always at least one; lines that would drop
// to zero are removed instead.
type Item struct {
	BookID   string `json:"book_id"`
	Quantity int    `json:"quantity"`
}

// Cart belongs to exactly one user. Total is denormalized and recomputed after
// every mutation.
type Cart struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Items     []Item          `json:"items"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Quantity returns the line quantity for bookID, 0 when absent.
func (c *Cart) Quantity(bookID string) int {
	for _, it := range c.Items {
		if it.BookID == bookID {
			return it.Quantity
		}
	}
	return 0
}

// SetQuantity upserts a line keeping its position. A quantity <= 0 removes it.
func (c *Cart) SetQuantity(bookID string, quantity int) {
	if quantity <= 0 {
		c.Remove(bookID)
		return
	}
	for i := range c.Items {
		if c.Items[i].BookID == bookID {
			c.Items[i].Quantity = quantity
			return
		}
	}
	c.Items = append(c.Items, Item{BookID: bookID, Quantity: quantity})
}

// Remove drops the line for bookID and reports whether it existed.
func (c *Cart) Remove(bookID string) bool {
	for i, it := range c.Items {
		if it.BookID == bookID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Cart) BookIDs() []string {
	ids := make([]string, 0, len(c.Items))
	for _, it := range c.Items {
		ids = append(ids, it.BookID)
	}
	return ids
}

// Recalculate sets Total from current prices. Lines whose book is missing from
// prices contribute nothing.
func (c *Cart) Recalculate(prices map[string]decimal.Decimal) {
	total := decimal.Zero
	for _, it := range c.Items {
		price, ok := prices[it.BookID]
		if !ok {
			continue
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	c.Total = total
}

// Clone returns a deep copy.
func (c Cart) Clone() Cart {
	c.Items = append([]Item(nil), c.Items...)
	return c
}

// LineView is a cart line resolved against the catalog. Book is nil when the
// book no longer exists.
type LineView struct {
	BookID    string          `json:"book_id"`
	Book      *book.Summary   `json:"book"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// View is the populated cart returned to clients.
type View struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Items     []LineView      `json:"items"`
	Total     decimal.Decimal `json:"total"`
	UpdatedAt time.Time       `json:"updated_at"`
}
