// Package seed loads the demo catalog and accounts.
package seed

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/core/service"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/services/accounts"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/services/catalog"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/services/categories"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/storage"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/pkg/logger"
)

// Passwords are given to the demo accounts.
type Passwords struct {
	User  string
	Admin string
}

// Stats counts the records of each collection.
type Stats struct {
	Authors    int    `json:"authors"`
	Categories int    `json:"categories"`
	Books      int    `json:"books"`
	Users      int    `json:"users"`
	Message    string `json:"message,omitempty"`
}

// Seeder wipes the store and loads the demo data through the services, so
// category back-references are built the same way as for live writes.
type Seeder struct {
	store      storage.Resetter
	catalog    *catalog.Service
	categories *categories.Service
	accounts   *accounts.Service
	passwords  Passwords
	log        *logger.Logger
}

func New(store storage.Resetter, cat *catalog.Service, cats *categories.Service, accts *accounts.Service, passwords Passwords, log *logger.Logger) *Seeder {
	if log == nil {
		log = logger.NewDefault("seed")
	}
	return &Seeder{
		store:      store,
		catalog:    cat,
		categories: cats,
		accounts:   accts,
		passwords:  passwords,
		log:        log,
	}
}

// Run resets every collection and loads the demo data.
func (s *Seeder) Run(ctx context.Context) (Stats, error) {
	if err := s.store.Reset(ctx); err != nil {
		return Stats{}, fmt.Errorf("reset store: %w", err)
	}
	s.accounts.PurgeCache()

	authorIDs := make(map[string]string, len(demoAuthors))
	for _, a := range demoAuthors {
		name, bio := a.name, a.biography
		created, err := s.catalog.CreateAuthor(ctx, catalog.AuthorInput{Name: &name, Biography: &bio})
		if err != nil {
			return Stats{}, fmt.Errorf("author %q: %w", a.name, err)
		}
		authorIDs[a.name] = created.ID
	}

	categoryIDs := make(map[string]string, len(demoCategories))
	for i, c := range demoCategories {
		created, err := s.categories.Create(ctx, categories.CreateInput{
			Name:     c.name,
			ParentID: categoryIDs[c.parent],
			Position: i,
		})
		if err != nil {
			return Stats{}, fmt.Errorf("category %q: %w", c.name, err)
		}
		categoryIDs[c.name] = created.ID
	}

	for _, b := range demoBooks {
		in, err := b.input(authorIDs, categoryIDs)
		if err != nil {
			return Stats{}, err
		}
		if _, err := s.catalog.CreateBook(ctx, in); err != nil {
			return Stats{}, fmt.Errorf("book %q: %w", b.title, err)
		}
	}

	for _, u := range demoUsers {
		password := s.passwords.User
		if u.admin {
			password = s.passwords.Admin
		}
		_, err := s.accounts.Signup(ctx, accounts.SignupInput{
			Username:  u.username,
			Email:     u.username + "@cegep.ca",
			Password:  password,
			FirstName: u.first,
			LastName:  u.last,
			IsAdmin:   u.admin,
		})
		if err != nil {
			return Stats{}, fmt.Errorf("user %q: %w", u.username, err)
		}
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats.Message = "database seeded"
	s.log.WithField("books", stats.Books).WithField("users", stats.Users).Info("demo data loaded")
	return stats, nil
}

// Stats counts the current records.
func (s *Seeder) Stats(ctx context.Context) (Stats, error) {
	authors, err := s.catalog.ListAuthors(ctx)
	if err != nil {
		return Stats{}, err
	}
	cats, err := s.categories.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	books, err := s.catalog.ListBooks(ctx, service.PageRequest{Page: 1, Limit: 1})
	if err != nil {
		return Stats{}, err
	}
	users, err := s.accounts.ListUsers(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Authors:    len(authors),
		Categories: len(cats),
		Books:      books.Pagination.Total,
		Users:      len(users),
	}, nil
}

type demoBook struct {
	title      string
	authors    []string
	categories []string
	isbn       string
	price      string
	quantity   int
	cover      string
}

func (b demoBook) input(authorIDs, categoryIDs map[string]string) (catalog.BookInput, error) {
	authors := make([]string, 0, len(b.authors))
	for _, name := range b.authors {
		id, ok := authorIDs[name]
		if !ok {
			return catalog.BookInput{}, fmt.Errorf("book %q: unknown author %q", b.title, name)
		}
		authors = append(authors, id)
	}
	cats := make([]string, 0, len(b.categories))
	for _, name := range b.categories {
		id, ok := categoryIDs[name]
		if !ok {
			return catalog.BookInput{}, fmt.Errorf("book %q: unknown category %q", b.title, name)
		}
		cats = append(cats, id)
	}
	price, err := decimal.NewFromString(b.price)
	if err != nil {
		return catalog.BookInput{}, fmt.Errorf("book %q: %w", b.title, err)
	}
	title, isbn, cover, qty := b.title, b.isbn, b.cover, b.quantity
	return catalog.BookInput{
		Title:       &title,
		AuthorIDs:   &authors,
		CategoryIDs: &cats,
		ISBN:        &isbn,
		Price:       &price,
		Quantity:    &qty,
		CoverURL:    &cover,
	}, nil
}
