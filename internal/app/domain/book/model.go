package book

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MaxQuantity bounds stock counters and cart lines; the SQL schemas store
// quantity as a 32-bit integer.
const MaxQuantity = math.MaxInt32

// Book is a catalog entry. Quantity is the shared stock counter that cart
// reservations draw from; it never goes below zero.
type Book struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	AuthorIDs   []string        `json:"authors"`
	CategoryIDs []string        `json:"categories"`
	ISBN        string          `json:"isbn"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	CoverURL    string          `json:"cover,omitempty"`
	Description string          `json:"description,omitempty"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Summary is the slice of a book embedded in cart and category views.
type Summary struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	ISBN     string          `json:"isbn"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	CoverURL string          `json:"cover,omitempty"`
}

func (b Book) Summary() Summary {
	return Summary{
		ID:       b.ID,
		Title:    b.Title,
		ISBN:     b.ISBN,
		Price:    b.Price,
		Quantity: b.Quantity,
		CoverURL: b.CoverURL,
	}
}

// Filter narrows book listings. Query and AuthorIDs are alternatives: a book
// matches when its title contains Query (case-insensitively) or when one of
// its authors is listed. With both empty every book matches.
type Filter struct {
	Query     string
	AuthorIDs []string
	Offset    int
	Limit     int
	// NewestFirst orders by creation time descending instead of by title.
	NewestFirst bool
}

// Matches applies the Query/AuthorIDs part of the filter to b.
func (f Filter) Matches(b Book) bool {
	if f.Query == "" && len(f.AuthorIDs) == 0 {
		return true
	}
	if f.Query != "" && strings.Contains(strings.ToLower(b.Title), strings.ToLower(f.Query)) {
		return true
	}
	for _, want := range f.AuthorIDs {
		for _, got := range b.AuthorIDs {
			if want == got {
				return true
			}
		}
	}
	return false
}
