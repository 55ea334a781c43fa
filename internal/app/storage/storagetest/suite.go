// Package storagetest holds a behavioural test suite shared by every storage
// backend.
package storagetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/author"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/book"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/cart"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/category"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/user"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/storage"
)

// Run exercises a storage.Store. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("Books", func(t *testing.T) { testBooks(t, newStore(t)) })
	t.Run("AdjustStock", func(t *testing.T) { testAdjustStock(t, newStore(t)) })
	t.Run("ConcurrentAdjustStock", func(t *testing.T) { testConcurrentAdjustStock(t, newStore(t)) })
	t.Run("ListBooks", func(t *testing.T) { testListBooks(t, newStore(t)) })
	t.Run("Authors", func(t *testing.T) { testAuthors(t, newStore(t)) })
	t.Run("Categories", func(t *testing.T) { testCategories(t, newStore(t)) })
	t.Run("CategoryMembership", func(t *testing.T) { testCategoryMembership(t, newStore(t)) })
	t.Run("Carts", func(t *testing.T) { testCarts(t, newStore(t)) })
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("Reset", func(t *testing.T) { testReset(t, newStore(t)) })
}

// NewBook returns a valid book with a fresh ISBN.
func NewBook(title string, quantity int, price string) book.Book {
	return book.Book{
		Title:     title,
		AuthorIDs: []string{uuid.NewString()},
		ISBN:      uuid.NewString()[:13],
		Price:     decimal.RequireFromString(price),
		Quantity:  quantity,
	}
}

func testBooks(t *testing.T, s storage.Store) {
	ctx := context.Background()

	created, err := s.CreateBook(ctx, NewBook("Dune", 3, "5.54"))
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := s.GetBook(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dune", got.Title)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("5.54")))
	assert.Equal(t, created.AuthorIDs, got.AuthorIDs)

	dup := NewBook("Other", 1, "1")
	dup.ISBN = created.ISBN
	_, err = s.CreateBook(ctx, dup)
	de, ok := storage.AsDuplicate(err)
	require.True(t, ok, "want duplicate error, got %v", err)
	assert.Equal(t, "isbn", de.Field)

	got.Title = "Dune Messiah"
	stock := got.Quantity
	got.Quantity = stock + 40
	updated, err := s.UpdateBook(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, "Dune Messiah", updated.Title)
	assert.Equal(t, stock, updated.Quantity, "quantity only changes through AdjustStock")

	missing := got
	missing.ID = uuid.NewString()
	missing.ISBN = "x"
	_, err = s.UpdateBook(ctx, missing)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	batch, err := s.GetBooks(ctx, []string{created.ID, uuid.NewString()})
	require.NoError(t, err)
	assert.Len(t, batch, 1)

	require.NoError(t, s.DeleteBook(ctx, created.ID))
	_, err = s.GetBook(ctx, created.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.DeleteBook(ctx, created.ID), storage.ErrNotFound)
}

func testAdjustStock(t *testing.T, s storage.Store) {
	ctx := context.Background()
	b, err := s.CreateBook(ctx, NewBook("Fondation", 5, "5.40"))
	require.NoError(t, err)

	after, err := s.AdjustStock(ctx, b.ID, -5)
	require.NoError(t, err)
	assert.Equal(t, 0, after.Quantity)

	_, err = s.AdjustStock(ctx, b.ID, -1)
	se, ok := storage.AsStock(err)
	require.True(t, ok, "want stock error, got %v", err)
	assert.Equal(t, 0, se.Available)

	after, err = s.AdjustStock(ctx, b.ID, 12)
	require.NoError(t, err)
	assert.Equal(t, 12, after.Quantity)

	_, err = s.AdjustStock(ctx, uuid.NewString(), 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testConcurrentAdjustStock(t *testing.T, s storage.Store) {
	ctx := context.Background()
	b, err := s.CreateBook(ctx, NewBook("Ça", 10, "13.40"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	var applied atomic.Int64
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AdjustStock(ctx, b.ID, -1)
			if err == nil {
				applied.Add(1)
				return
			}
			var se *storage.StockError
			if !errors.As(err, &se) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := s.GetBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), applied.Load())
	assert.Equal(t, 0, got.Quantity)
}

func testListBooks(t *testing.T, s storage.Store) {
	ctx := context.Background()
	tolkien := uuid.NewString()
	for _, title := range []string{"Le Hobbit", "Dune", "1984", "Le Seigneur des anneaux"} {
		b := NewBook(title, 1, "1.00")
		if title == "Le Hobbit" {
			b.AuthorIDs = []string{tolkien}
		}
		_, err := s.CreateBook(ctx, b)
		require.NoError(t, err)
	}

	page, total, err := s.ListBooks(ctx, book.Filter{Offset: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, page, 2)
	assert.Equal(t, "Dune", page[0].Title)
	assert.Equal(t, "Le Hobbit", page[1].Title)

	matches, total, err := s.ListBooks(ctx, book.Filter{Query: "SEIGNEUR", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Le Seigneur des anneaux", matches[0].Title)

	matches, total, err = s.ListBooks(ctx, book.Filter{Query: "dune", AuthorIDs: []string{tolkien}, Limit: 10, NewestFirst: true})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, matches, 2)

	empty, total, err := s.ListBooks(ctx, book.Filter{Offset: 40, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Empty(t, empty)
}

func testAuthors(t *testing.T, s storage.Store) {
	ctx := context.Background()

	a, err := s.CreateAuthor(ctx, author.Author{Name: "Isaac Asimov", Biography: "bio"})
	require.NoError(t, err)
	_, err = s.CreateAuthor(ctx, author.Author{Name: "Frank Herbert"})
	require.NoError(t, err)

	_, err = s.CreateAuthor(ctx, author.Author{Name: "Isaac Asimov"})
	de, ok := storage.AsDuplicate(err)
	require.True(t, ok, "want duplicate error, got %v", err)
	assert.Equal(t, "name", de.Field)

	found, err := s.SearchAuthors(ctx, "asim")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, a.ID, found[0].ID)

	all, err := s.ListAuthors(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Frank Herbert", all[0].Name)

	a.Biography = "updated"
	updated, err := s.UpdateAuthor(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, "updated", updated.Biography)

	batch, err := s.GetAuthors(ctx, []string{a.ID, uuid.NewString()})
	require.NoError(t, err)
	assert.Len(t, batch, 1)

	require.NoError(t, s.DeleteAuthor(ctx, a.ID))
	_, err = s.GetAuthor(ctx, a.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testCategories(t *testing.T, s storage.Store) {
	ctx := context.Background()

	root, err := s.CreateCategory(ctx, category.Category{Name: "Imaginaire"})
	require.NoError(t, err)
	assert.Empty(t, root.ParentID)
	assert.NotNil(t, root.BookIDs)

	child, err := s.CreateCategory(ctx, category.Category{Name: "Fantasy", ParentID: root.ID, Position: 1})
	require.NoError(t, err)

	// same name is allowed under another parent
	_, err = s.CreateCategory(ctx, category.Category{Name: "Fantasy"})
	require.NoError(t, err)

	_, err = s.CreateCategory(ctx, category.Category{Name: "Fantasy", ParentID: root.ID})
	_, ok := storage.AsDuplicate(err)
	assert.True(t, ok, "want duplicate error, got %v", err)

	children, err := s.ListChildCategories(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, child.ID, children[0].ID)

	all, err := s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	found, err := s.GetCategories(ctx, []string{child.ID, uuid.NewString(), root.ID})
	require.NoError(t, err)
	assert.Len(t, found, 2)

	require.NoError(t, s.DeleteCategory(ctx, child.ID))
	assert.ErrorIs(t, s.DeleteCategory(ctx, child.ID), storage.ErrNotFound)
}

func testCategoryMembership(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a, err := s.CreateCategory(ctx, category.Category{Name: "A"})
	require.NoError(t, err)
	b, err := s.CreateCategory(ctx, category.Category{Name: "B"})
	require.NoError(t, err)
	bookID := uuid.NewString()

	require.NoError(t, s.AddBookToCategories(ctx, bookID, []string{a.ID, b.ID}))
	require.NoError(t, s.AddBookToCategories(ctx, bookID, []string{a.ID}))

	got, err := s.GetCategory(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{bookID}, got.BookIDs)

	// renaming leaves back-references alone
	got.Name = "A2"
	got.BookIDs = nil
	renamed, err := s.UpdateCategory(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, "A2", renamed.Name)
	assert.Equal(t, []string{bookID}, renamed.BookIDs)

	require.NoError(t, s.RemoveBookFromCategories(ctx, bookID, []string{a.ID, uuid.NewString()}))
	got, err = s.GetCategory(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, got.BookIDs)

	got, err = s.GetCategory(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{bookID}, got.BookIDs)
}

func testCarts(t *testing.T, s storage.Store) {
	ctx := context.Background()
	userID := uuid.NewString()

	_, err := s.GetCartByUser(ctx, userID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	c, err := s.GetOrCreateCart(ctx, userID)
	require.NoError(t, err)
	again, err := s.GetOrCreateCart(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, again.ID)
	assert.Empty(t, c.Items)
	assert.True(t, c.Total.IsZero())

	bookA, bookB := uuid.NewString(), uuid.NewString()
	c.SetQuantity(bookA, 2)
	c.SetQuantity(bookB, 3)
	c.Total = decimal.RequireFromString("12.50")
	saved, err := s.SaveCart(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, []cart.Item{{BookID: bookA, Quantity: 2}, {BookID: bookB, Quantity: 3}}, saved.Items)

	got, err := s.GetCartByUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, saved.Items, got.Items)
	assert.True(t, got.Total.Equal(decimal.RequireFromString("12.50")))

	_, err = s.GetOrCreateCart(ctx, uuid.NewString())
	require.NoError(t, err)

	withA, err := s.ListCartsWithBook(ctx, bookA)
	require.NoError(t, err)
	require.Len(t, withA, 1)
	assert.Equal(t, userID, withA[0].UserID)

	all, err := s.ListCarts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	got.Items = nil
	got.Total = decimal.Zero
	cleared, err := s.SaveCart(ctx, got)
	require.NoError(t, err)
	assert.Empty(t, cleared.Items)

	ghost := cart.Cart{ID: uuid.NewString(), UserID: uuid.NewString()}
	_, err = s.SaveCart(ctx, ghost)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testUsers(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u, err := s.CreateUser(ctx, user.User{Username: "user1", Email: "user1@example.com", PasswordHash: "hash", IsActive: true})
	require.NoError(t, err)

	byMail, err := s.GetUserByEmail(ctx, "user1@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byMail.ID)
	assert.Equal(t, "hash", byMail.PasswordHash)

	_, err = s.CreateUser(ctx, user.User{Username: "user1", Email: "other@example.com", PasswordHash: "h"})
	de, ok := storage.AsDuplicate(err)
	require.True(t, ok, "want duplicate error, got %v", err)
	assert.Equal(t, "username", de.Field)

	_, err = s.CreateUser(ctx, user.User{Username: "user2", Email: "user1@example.com", PasswordHash: "h"})
	de, ok = storage.AsDuplicate(err)
	require.True(t, ok, "want duplicate error, got %v", err)
	assert.Equal(t, "email", de.Field)

	u.Email = "renamed@example.com"
	u.IsAdmin = true
	_, err = s.UpdateUser(ctx, u)
	require.NoError(t, err)
	_, err = s.GetUserByEmail(ctx, "user1@example.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.True(t, users[0].IsAdmin)

	require.NoError(t, s.DeleteUser(ctx, u.ID))
	_, err = s.GetUser(ctx, u.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testReset(t *testing.T, s storage.Store) {
	ctx := context.Background()
	_, err := s.CreateBook(ctx, NewBook("x", 1, "1"))
	require.NoError(t, err)
	_, err = s.CreateAuthor(ctx, author.Author{Name: "x"})
	require.NoError(t, err)
	_, err = s.GetOrCreateCart(ctx, uuid.NewString())
	require.NoError(t, err)

	require.NoError(t, s.Reset(ctx))

	_, total, err := s.ListBooks(ctx, book.Filter{Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	authors, err := s.ListAuthors(ctx)
	require.NoError(t, err)
	assert.Empty(t, authors)
	carts, err := s.ListCarts(ctx)
	require.NoError(t, err)
	assert.Empty(t, carts)
}
