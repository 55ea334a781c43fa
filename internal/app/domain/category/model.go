package category

import "time"

// Category groups books in a tree. ParentID is empty for root categories and
// names are unique among siblings.
//
// BookIDs mirrors Book.CategoryIDs and is only written by the membership
// synchronizer.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ParentID  string    `json:"parent_id,omitempty"`
	Position  int       `json:"position"`
	BookIDs   []string  `json:"books"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c Category) HasBook(bookID string) bool {
	for _, id := range c.BookIDs {
		if id == bookID {
			return true
		}
	}
	return false
}
