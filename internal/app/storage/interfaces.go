package storage

import (
	"context"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/author"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/book"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/cart"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/category"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/user"
)

// BookStore persists books and owns the stock counter.
type BookStore interface {
	CreateBook(ctx context.Context, b book.Book) (book.Book, error)
	// UpdateBook replaces every mutable field except quantity, which only
	// AdjustStock changes.
	UpdateBook(ctx context.Context, b book.Book) (book.Book, error)
	GetBook(ctx context.Context, id string) (book.Book, error)
	// GetBooks returns the books that exist among ids, in no particular order.
	GetBooks(ctx context.Context, ids []string) ([]book.Book, error)
	// ListBooks returns one page of matches and the total match count.
	ListBooks(ctx context.Context, filter book.Filter) ([]book.Book, int, error)
	DeleteBook(ctx context.Context, id string) error
	// AdjustStock atomically adds delta to the book quantity. It fails with a
	// *StockError, leaving the quantity untouched, when the result would be
	// negative.
	AdjustStock(ctx context.Context, id string, delta int) (book.Book, error)
}

// AuthorStore persists authors.
type AuthorStore interface {
	CreateAuthor(ctx context.Context, a author.Author) (author.Author, error)
	UpdateAuthor(ctx context.Context, a author.Author) (author.Author, error)
	GetAuthor(ctx context.Context, id string) (author.Author, error)
	GetAuthors(ctx context.Context, ids []string) ([]author.Author, error)
	ListAuthors(ctx context.Context) ([]author.Author, error)
	// SearchAuthors matches names containing query, case-insensitively.
	SearchAuthors(ctx context.Context, query string) ([]author.Author, error)
	DeleteAuthor(ctx context.Context, id string) error
}

// CategoryStore persists the category tree and its book back-references.
type CategoryStore interface {
	CreateCategory(ctx context.Context, c category.Category) (category.Category, error)
	// UpdateCategory writes name, parent and position. Book references are
	// left alone.
	UpdateCategory(ctx context.Context, c category.Category) (category.Category, error)
	GetCategory(ctx context.Context, id string) (category.Category, error)
	// GetCategories resolves ids in a single round trip. Missing ids are
	// omitted from the result.
	GetCategories(ctx context.Context, ids []string) ([]category.Category, error)
	ListCategories(ctx context.Context) ([]category.Category, error)
	ListChildCategories(ctx context.Context, parentID string) ([]category.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	// AddBookToCategories appends bookID to each category, skipping those
	// that already reference it.
	AddBookToCategories(ctx context.Context, bookID string, categoryIDs []string) error
	RemoveBookFromCategories(ctx context.Context, bookID string, categoryIDs []string) error
}

// CartStore persists one cart per user.
type CartStore interface {
	GetCartByUser(ctx context.Context, userID string) (cart.Cart, error)
	// GetOrCreateCart returns the user's cart, creating an empty one when
	// absent. Concurrent callers observe the same cart.
	GetOrCreateCart(ctx context.Context, userID string) (cart.Cart, error)
	// SaveCart replaces the items and total of an existing cart.
	SaveCart(ctx context.Context, c cart.Cart) (cart.Cart, error)
	ListCarts(ctx context.Context) ([]cart.Cart, error)
	ListCartsWithBook(ctx context.Context, bookID string) ([]cart.Cart, error)
}

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// Resetter wipes every collection. Used by the demo seeder.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Store bundles every aggregate store of one backend.
type Store interface {
	BookStore
	AuthorStore
	CategoryStore
	CartStore
	UserStore
	Resetter
}
