// Package catalog manages books and authors. Book writes keep category
// membership and cart lines consistent through the categories and cart
// services.
package catalog

import (
	"context"
	"strings"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/core/service"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/book"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/events"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/locks"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/services/categories"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/storage"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/pkg/logger"
)

// CartDetacher drops a deleted book from every cart.
type CartDetacher interface {
	DetachBook(ctx context.Context, bookID string) (int, error)
}

// Service exposes book and author operations.
type Service struct {
	books      storage.BookStore
	authors    storage.AuthorStore
	categories storage.CategoryStore
	membership *categories.Service
	carts      CartDetacher
	events     *events.Emitter
	locker     locks.Locker
	log        *logger.Logger

	defaultPageSize int
	maxPageSize     int
}

// New constructs a catalog service.
func New(books storage.BookStore, authors storage.AuthorStore, cats storage.CategoryStore, membership *categories.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("catalog")
	}
	if membership == nil {
		membership = categories.New(cats, books, log)
	}
	return &Service{
		books:           books,
		authors:         authors,
		categories:      cats,
		membership:      membership,
		events:          events.NewEmitter(events.Noop{}, log),
		locker:          locks.NewLocal(),
		log:             log,
		defaultPageSize: service.DefaultPageSize,
		maxPageSize:     50,
	}
}

// WithCartDetacher wires the cart service so deleted books leave no lines
// behind.
func (s *Service) WithCartDetacher(d CartDetacher) {
	s.carts = d
}

// WithLocker replaces the in-process lock that serializes edits of one book.
func (s *Service) WithLocker(l locks.Locker) {
	if l != nil {
		s.locker = l
	}
}

func bookLockKey(id string) string { return "book:" + id }

func (s *Service) WithEvents(e *events.Emitter) {
	if e != nil {
		s.events = e
	}
}

// WithPageSizes sets the default and maximum page size.
func (s *Service) WithPageSizes(def, maxSize int) {
	if def > 0 {
		s.defaultPageSize = def
	}
	if maxSize > 0 {
		s.maxPageSize = maxSize
	}
}

func (s *Service) Descriptor() service.Descriptor {
	return service.Descriptor{
		Name:         "catalog",
		Domain:       "catalog",
		Capabilities: []string{"books", "authors", "search"},
	}
}

// Ref is a lightweight link to an author or category.
type Ref struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Detail is a book with its authors and categories resolved to names.
type Detail struct {
	book.Book
	Authors    []Ref `json:"authors"`
	Categories []Ref `json:"categories"`
}

// populate resolves names for every book in one round trip per collection.
// References that no longer resolve are left out.
func (s *Service) populate(ctx context.Context, books []book.Book) ([]Detail, error) {
	var authorIDs, categoryIDs []string
	for _, b := range books {
		authorIDs = append(authorIDs, b.AuthorIDs...)
		categoryIDs = append(categoryIDs, b.CategoryIDs...)
	}

	authorNames := make(map[string]string)
	if len(authorIDs) > 0 {
		found, err := s.authors.GetAuthors(ctx, authorIDs)
		if err != nil {
			return nil, err
		}
		for _, a := range found {
			authorNames[a.ID] = a.Name
		}
	}
	categoryNames := make(map[string]string)
	if len(categoryIDs) > 0 {
		found, err := s.categories.GetCategories(ctx, categoryIDs)
		if err != nil {
			return nil, err
		}
		for _, c := range found {
			categoryNames[c.ID] = c.Name
		}
	}

	out := make([]Detail, 0, len(books))
	for _, b := range books {
		d := Detail{Book: b, Authors: refs(b.AuthorIDs, authorNames), Categories: refs(b.CategoryIDs, categoryNames)}
		out = append(out, d)
	}
	return out, nil
}

func (s *Service) populateOne(ctx context.Context, b book.Book) (Detail, error) {
	details, err := s.populate(ctx, []book.Book{b})
	if err != nil {
		return Detail{}, err
	}
	return details[0], nil
}

func refs(ids []string, names map[string]string) []Ref {
	out := make([]Ref, 0, len(ids))
	for _, id := range ids {
		if name, ok := names[id]; ok {
			out = append(out, Ref{ID: id, Name: name})
		}
	}
	return out
}

func trimmed(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

var _ service.Describer = (*Service)(nil)
