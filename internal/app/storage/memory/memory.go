package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/author"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/book"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/cart"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/category"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/user"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu          sync.RWMutex
	books       map[string]book.Book
	authors     map[string]author.Author
	categories  map[string]category.Category
	carts       map[string]cart.Cart // keyed by user id
	users       map[string]user.User
	usersByMail map[string]string
}

var _ storage.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	s := &Store{}
	s.resetLocked()
	return s
}

func (s *Store) resetLocked() {
	s.books = make(map[string]book.Book)
	s.authors = make(map[string]author.Author)
	s.categories = make(map[string]category.Category)
	s.carts = make(map[string]cart.Cart)
	s.users = make(map[string]user.User)
	s.usersByMail = make(map[string]string)
}

func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	return nil
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

// BookStore implementation ----------------------------------------------------

func (s *Store) CreateBook(_ context.Context, b book.Book) (book.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkISBNLocked(b.ISBN, ""); err != nil {
		return book.Book{}, err
	}
	b.ID = newID(b.ID)
	if _, exists := s.books[b.ID]; exists {
		return book.Book{}, &storage.DuplicateError{Field: "id", Value: b.ID}
	}

	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	b = cloneBook(b)
	s.books[b.ID] = b
	return cloneBook(b), nil
}

func (s *Store) UpdateBook(_ context.Context, b book.Book) (book.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.books[b.ID]
	if !ok {
		return book.Book{}, storage.ErrNotFound
	}
	if err := s.checkISBNLocked(b.ISBN, b.ID); err != nil {
		return book.Book{}, err
	}

	b.Quantity = original.Quantity
	b.CreatedAt = original.CreatedAt
	b.UpdatedAt = time.Now().UTC()
	b = cloneBook(b)
	s.books[b.ID] = b
	return cloneBook(b), nil
}

func (s *Store) checkISBNLocked(isbn, selfID string) error {
	for id, existing := range s.books {
		if id != selfID && existing.ISBN == isbn {
			return &storage.DuplicateError{Field: "isbn", Value: isbn}
		}
	}
	return nil
}

func (s *Store) GetBook(_ context.Context, id string) (book.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.books[id]
	if !ok {
		return book.Book{}, storage.ErrNotFound
	}
	return cloneBook(b), nil
}

func (s *Store) GetBooks(_ context.Context, ids []string) ([]book.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]book.Book, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if b, ok := s.books[id]; ok {
			out = append(out, cloneBook(b))
		}
	}
	return out, nil
}

func (s *Store) ListBooks(_ context.Context, filter book.Filter) ([]book.Book, int, error) {
	s.mu.RLock()
	matches := make([]book.Book, 0, len(s.books))
	for _, b := range s.books {
		if filter.Matches(b) {
			matches = append(matches, cloneBook(b))
		}
	}
	s.mu.RUnlock()

	if filter.NewestFirst {
		sort.Slice(matches, func(i, j int) bool {
			if matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
				return matches[i].ID < matches[j].ID
			}
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		})
	} else {
		sort.Slice(matches, func(i, j int) bool {
			if matches[i].Title == matches[j].Title {
				return matches[i].ID < matches[j].ID
			}
			return matches[i].Title < matches[j].Title
		})
	}

	total := len(matches)
	return paginate(matches, filter.Offset, filter.Limit), total, nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	if offset < 0 {
		offset = 0
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

func (s *Store) DeleteBook(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.books, id)
	return nil
}

func (s *Store) AdjustStock(_ context.Context, id string, delta int) (book.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.books[id]
	if !ok {
		return book.Book{}, storage.ErrNotFound
	}
	if b.Quantity+delta < 0 {
		return book.Book{}, &storage.StockError{BookID: id, Available: b.Quantity}
	}
	b.Quantity += delta
	b.UpdatedAt = time.Now().UTC()
	s.books[id] = b
	return cloneBook(b), nil
}

// AuthorStore implementation --------------------------------------------------

func (s *Store) CreateAuthor(_ context.Context, a author.Author) (author.Author, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkAuthorNameLocked(a.Name, ""); err != nil {
		return author.Author{}, err
	}
	a.ID = newID(a.ID)
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	s.authors[a.ID] = a
	return a, nil
}

func (s *Store) UpdateAuthor(_ context.Context, a author.Author) (author.Author, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.authors[a.ID]
	if !ok {
		return author.Author{}, storage.ErrNotFound
	}
	if err := s.checkAuthorNameLocked(a.Name, a.ID); err != nil {
		return author.Author{}, err
	}
	a.CreatedAt = original.CreatedAt
	a.UpdatedAt = time.Now().UTC()
	s.authors[a.ID] = a
	return a, nil
}

func (s *Store) checkAuthorNameLocked(name, selfID string) error {
	for id, existing := range s.authors {
		if id != selfID && existing.Name == name {
			return &storage.DuplicateError{Field: "name", Value: name}
		}
	}
	return nil
}

func (s *Store) GetAuthor(_ context.Context, id string) (author.Author, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.authors[id]
	if !ok {
		return author.Author{}, storage.ErrNotFound
	}
	return a, nil
}

func (s *Store) GetAuthors(_ context.Context, ids []string) ([]author.Author, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]author.Author, 0, len(ids))
	for _, id := range uniq(ids) {
		if a, ok := s.authors[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) ListAuthors(_ context.Context) ([]author.Author, error) {
	return s.filterAuthors(func(author.Author) bool { return true }), nil
}

func (s *Store) SearchAuthors(_ context.Context, query string) ([]author.Author, error) {
	q := strings.ToLower(query)
	return s.filterAuthors(func(a author.Author) bool {
		return strings.Contains(strings.ToLower(a.Name), q)
	}), nil
}

func (s *Store) filterAuthors(keep func(author.Author) bool) []author.Author {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]author.Author, 0, len(s.authors))
	for _, a := range s.authors {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Store) DeleteAuthor(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.authors[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.authors, id)
	return nil
}

// CategoryStore implementation ------------------------------------------------

func (s *Store) CreateCategory(_ context.Context, c category.Category) (category.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkCategoryNameLocked(c.Name, c.ParentID, ""); err != nil {
		return category.Category{}, err
	}
	c.ID = newID(c.ID)
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	c = cloneCategory(c)
	if c.BookIDs == nil {
		c.BookIDs = []string{}
	}
	s.categories[c.ID] = c
	return cloneCategory(c), nil
}

func (s *Store) UpdateCategory(_ context.Context, c category.Category) (category.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.categories[c.ID]
	if !ok {
		return category.Category{}, storage.ErrNotFound
	}
	if err := s.checkCategoryNameLocked(c.Name, c.ParentID, c.ID); err != nil {
		return category.Category{}, err
	}
	original.Name = c.Name
	original.ParentID = c.ParentID
	original.Position = c.Position
	original.UpdatedAt = time.Now().UTC()
	s.categories[c.ID] = original
	return cloneCategory(original), nil
}

func (s *Store) checkCategoryNameLocked(name, parentID, selfID string) error {
	for id, existing := range s.categories {
		if id != selfID && existing.Name == name && existing.ParentID == parentID {
			return &storage.DuplicateError{Field: "name", Value: name}
		}
	}
	return nil
}

func (s *Store) GetCategory(_ context.Context, id string) (category.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		return category.Category{}, storage.ErrNotFound
	}
	return cloneCategory(c), nil
}

func (s *Store) GetCategories(_ context.Context, ids []string) ([]category.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]category.Category, 0, len(ids))
	for _, id := range uniq(ids) {
		if c, ok := s.categories[id]; ok {
			out = append(out, cloneCategory(c))
		}
	}
	return out, nil
}

func (s *Store) ListCategories(_ context.Context) ([]category.Category, error) {
	return s.filterCategories(func(category.Category) bool { return true }), nil
}

func (s *Store) ListChildCategories(_ context.Context, parentID string) ([]category.Category, error) {
	return s.filterCategories(func(c category.Category) bool { return c.ParentID == parentID }), nil
}

func (s *Store) filterCategories(keep func(category.Category) bool) []category.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]category.Category, 0, len(s.categories))
	for _, c := range s.categories {
		if keep(c) {
			out = append(out, cloneCategory(c))
		}
	}
	sortCategories(out)
	return out
}

func sortCategories(cats []category.Category) {
	sort.Slice(cats, func(i, j int) bool {
		if cats[i].Position != cats[j].Position {
			return cats[i].Position < cats[j].Position
		}
		return cats[i].Name < cats[j].Name
	})
}

func (s *Store) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.categories, id)
	return nil
}

func (s *Store) AddBookToCategories(_ context.Context, bookID string, categoryIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, id := range uniq(categoryIDs) {
		c, ok := s.categories[id]
		if !ok || c.HasBook(bookID) {
			continue
		}
		c.BookIDs = append(append([]string(nil), c.BookIDs...), bookID)
		c.UpdatedAt = now
		s.categories[id] = c
	}
	return nil
}

func (s *Store) RemoveBookFromCategories(_ context.Context, bookID string, categoryIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, id := range uniq(categoryIDs) {
		c, ok := s.categories[id]
		if !ok || !c.HasBook(bookID) {
			continue
		}
		kept := make([]string, 0, len(c.BookIDs))
		for _, b := range c.BookIDs {
			if b != bookID {
				kept = append(kept, b)
			}
		}
		c.BookIDs = kept
		c.UpdatedAt = now
		s.categories[id] = c
	}
	return nil
}

// CartStore implementation ----------------------------------------------------

func (s *Store) GetCartByUser(_ context.Context, userID string) (cart.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.carts[userID]
	if !ok {
		return cart.Cart{}, storage.ErrNotFound
	}
	return c.Clone(), nil
}

func (s *Store) GetOrCreateCart(_ context.Context, userID string) (cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.carts[userID]; ok {
		return c.Clone(), nil
	}
	now := time.Now().UTC()
	c := cart.Cart{
		ID:        uuid.NewString(),
		UserID:    userID,
		Items:     []cart.Item{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.carts[userID] = c
	return c.Clone(), nil
}

func (s *Store) SaveCart(_ context.Context, c cart.Cart) (cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.carts[c.UserID]
	if !ok || original.ID != c.ID {
		return cart.Cart{}, storage.ErrNotFound
	}
	c.CreatedAt = original.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	c = c.Clone()
	if c.Items == nil {
		c.Items = []cart.Item{}
	}
	s.carts[c.UserID] = c
	return c.Clone(), nil
}

func (s *Store) ListCarts(_ context.Context) ([]cart.Cart, error) {
	return s.filterCarts(func(cart.Cart) bool { return true }), nil
}

func (s *Store) ListCartsWithBook(_ context.Context, bookID string) ([]cart.Cart, error) {
	return s.filterCarts(func(c cart.Cart) bool { return c.Quantity(bookID) > 0 }), nil
}

func (s *Store) filterCarts(keep func(cart.Cart) bool) []cart.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]cart.Cart, 0)
	for _, c := range s.carts {
		if keep(c) {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkUserLocked(u, ""); err != nil {
		return user.User{}, err
	}
	u.ID = newID(u.ID)
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	s.users[u.ID] = u
	s.usersByMail[u.Email] = u.ID
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.users[u.ID]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	if err := s.checkUserLocked(u, u.ID); err != nil {
		return user.User{}, err
	}
	u.CreatedAt = original.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	delete(s.usersByMail, original.Email)
	s.users[u.ID] = u
	s.usersByMail[u.Email] = u.ID
	return u, nil
}

func (s *Store) checkUserLocked(u user.User, selfID string) error {
	for id, existing := range s.users {
		if id == selfID {
			continue
		}
		if existing.Username == u.Username {
			return &storage.DuplicateError{Field: "username", Value: u.Username}
		}
		if existing.Email == u.Email {
			return &storage.DuplicateError{Field: "email", Value: u.Email}
		}
	}
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByMail[email]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.users, id)
	delete(s.usersByMail, u.Email)
	return nil
}

// helpers ---------------------------------------------------------------------

func uniq(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func cloneBook(b book.Book) book.Book {
	b.AuthorIDs = append([]string{}, b.AuthorIDs...)
	b.CategoryIDs = append([]string{}, b.CategoryIDs...)
	if b.PublishedAt != nil {
		t := *b.PublishedAt
		b.PublishedAt = &t
	}
	return b
}

func cloneCategory(c category.Category) category.Category {
	c.BookIDs = append([]string{}, c.BookIDs...)
	return c
}
