package catalog

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/core/service"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/book"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/events"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/storage"
	svcerrors "github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/errors"
)

// BookInput carries book fields. On update nil fields are left unchanged; on
// create Title, ISBN, AuthorIDs and Price are required.
type BookInput struct {
	Title       *string          `json:"title"`
	AuthorIDs   *[]string        `json:"authors"`
	CategoryIDs *[]string        `json:"categories"`
	ISBN        *string          `json:"isbn"`
	Price       *decimal.Decimal `json:"price"`
	Quantity    *int             `json:"quantity"`
	CoverURL    *string          `json:"cover"`
	Description *string          `json:"description"`
	PublishedAt *time.Time       `json:"published_at"`
}

// ListBooks returns one page of books ordered by title.
func (s *Service) ListBooks(ctx context.Context, req service.PageRequest) (service.Page[Detail], error) {
	req = req.Normalize(s.defaultPageSize, s.maxPageSize)
	books, total, err := s.books.ListBooks(ctx, book.Filter{Offset: req.Offset(), Limit: req.Limit})
	if err != nil {
		return service.Page[Detail]{}, err
	}
	details, err := s.populate(ctx, books)
	if err != nil {
		return service.Page[Detail]{}, err
	}
	return service.NewPage(req, details, total), nil
}

// SearchBooks matches titles containing q or books by an author whose name
// contains q, newest first.
func (s *Service) SearchBooks(ctx context.Context, q string) ([]Detail, error) {
	q = trimmed(&q)
	if q == "" {
		return nil, svcerrors.Validation("query parameter q is required")
	}
	matches, err := s.authors.SearchAuthors(ctx, q)
	if err != nil {
		return nil, err
	}
	authorIDs := make([]string, 0, len(matches))
	for _, a := range matches {
		authorIDs = append(authorIDs, a.ID)
	}
	books, _, err := s.books.ListBooks(ctx, book.Filter{Query: q, AuthorIDs: authorIDs, NewestFirst: true})
	if err != nil {
		return nil, err
	}
	return s.populate(ctx, books)
}

func (s *Service) GetBook(ctx context.Context, id string) (Detail, error) {
	id, err := service.RequireID("id", id)
	if err != nil {
		return Detail{}, err
	}
	b, err := s.books.GetBook(ctx, id)
	if err != nil {
		return Detail{}, service.Translate(err, "book", id)
	}
	return s.populateOne(ctx, b)
}

func (s *Service) CreateBook(ctx context.Context, in BookInput) (Detail, error) {
	title, isbn := trimmed(in.Title), trimmed(in.ISBN)
	if title == "" || isbn == "" || in.AuthorIDs == nil || len(*in.AuthorIDs) == 0 {
		return Detail{}, svcerrors.Validation("title, isbn and at least one author are required")
	}
	if in.Price == nil {
		return Detail{}, svcerrors.Validation("price is required").WithDetails("field", "price")
	}
	authorIDs, err := s.requireAuthors(ctx, *in.AuthorIDs)
	if err != nil {
		return Detail{}, err
	}
	categoryIDs := []string{}
	if in.CategoryIDs != nil {
		if categoryIDs, err = s.membership.NormalizeCategoryIDs(ctx, *in.CategoryIDs); err != nil {
			return Detail{}, err
		}
	}

	b := book.Book{
		Title:       title,
		AuthorIDs:   authorIDs,
		CategoryIDs: categoryIDs,
		ISBN:        isbn,
		Price:       *in.Price,
		CoverURL:    trimmed(in.CoverURL),
		Description: trimmed(in.Description),
		PublishedAt: in.PublishedAt,
	}
	if in.Quantity != nil {
		b.Quantity = *in.Quantity
	}
	if err := validateAmounts(b); err != nil {
		return Detail{}, err
	}

	created, err := s.books.CreateBook(ctx, b)
	if err != nil {
		return Detail{}, service.Translate(err, "book", "")
	}
	if err := s.membership.ApplyCategoryDelta(ctx, created.ID, nil, created.CategoryIDs); err != nil {
		return Detail{}, err
	}
	s.log.FromContext(ctx).
		WithField("book_id", created.ID).
		WithField("isbn", created.ISBN).
		Info("book created")
	return s.populateOne(ctx, created)
}

// UpdateBook applies the non-nil fields of in. Edits of one book are
// serialized; stock moves through the store's conditional adjustment by the
// difference between the requested and the current quantity, so concurrent
// cart reservations are kept.
func (s *Service) UpdateBook(ctx context.Context, id string, in BookInput) (Detail, error) {
	id, err := service.RequireID("id", id)
	if err != nil {
		return Detail{}, err
	}
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	defer unlock()

	current, err := s.books.GetBook(ctx, id)
	if err != nil {
		return Detail{}, service.Translate(err, "book", id)
	}
	previousCategories := append([]string(nil), current.CategoryIDs...)

	if in.Title != nil {
		if current.Title = trimmed(in.Title); current.Title == "" {
			return Detail{}, svcerrors.Validation("title cannot be empty")
		}
	}
	if in.ISBN != nil {
		if current.ISBN = trimmed(in.ISBN); current.ISBN == "" {
			return Detail{}, svcerrors.Validation("isbn cannot be empty")
		}
	}
	if in.AuthorIDs != nil {
		if len(*in.AuthorIDs) == 0 {
			return Detail{}, svcerrors.Validation("at least one author is required")
		}
		if current.AuthorIDs, err = s.requireAuthors(ctx, *in.AuthorIDs); err != nil {
			return Detail{}, err
		}
	}
	if in.CategoryIDs != nil {
		if current.CategoryIDs, err = s.membership.NormalizeCategoryIDs(ctx, *in.CategoryIDs); err != nil {
			return Detail{}, err
		}
	}
	if in.Price != nil {
		current.Price = *in.Price
	}
	if in.CoverURL != nil {
		current.CoverURL = trimmed(in.CoverURL)
	}
	if in.Description != nil {
		current.Description = trimmed(in.Description)
	}
	if in.PublishedAt != nil {
		current.PublishedAt = in.PublishedAt
	}
	if err := validateAmounts(current); err != nil {
		return Detail{}, err
	}
	delta := 0
	if in.Quantity != nil {
		if err := validateQuantity(*in.Quantity); err != nil {
			return Detail{}, err
		}
		delta = *in.Quantity - current.Quantity
	}

	if delta != 0 {
		if _, err := s.books.AdjustStock(ctx, id, delta); err != nil {
			if se, ok := storage.AsStock(err); ok {
				return Detail{}, svcerrors.Conflict("stock for book %s changed during the update", id).
					WithDetails("available", se.Available)
			}
			return Detail{}, service.Translate(err, "book", id)
		}
	}
	updated, err := s.books.UpdateBook(ctx, current)
	if err != nil {
		s.revertStock(ctx, id, delta)
		return Detail{}, service.Translate(err, "book", id)
	}
	if in.CategoryIDs != nil {
		if err := s.membership.ApplyCategoryDelta(ctx, id, previousCategories, updated.CategoryIDs); err != nil {
			return Detail{}, err
		}
	}
	s.log.FromContext(ctx).WithField("book_id", id).WithField("stock_delta", delta).Info("book updated")
	return s.populateOne(ctx, updated)
}

// DeleteBook removes the book, its category back-references and every cart
// line pointing at it.
func (s *Service) DeleteBook(ctx context.Context, id string) error {
	id, err := service.RequireID("id", id)
	if err != nil {
		return err
	}
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	b, err := s.books.GetBook(ctx, id)
	if err != nil {
		return service.Translate(err, "book", id)
	}
	if err := s.books.DeleteBook(ctx, id); err != nil {
		return service.Translate(err, "book", id)
	}
	if err := s.membership.ApplyCategoryDelta(ctx, id, b.CategoryIDs, nil); err != nil {
		return err
	}
	detached := 0
	if s.carts != nil {
		if detached, err = s.carts.DetachBook(ctx, id); err != nil {
			return err
		}
	}
	s.events.Emit(ctx, events.TypeBookDeleted, map[string]any{
		"book_id":        id,
		"isbn":           b.ISBN,
		"carts_detached": detached,
	})
	s.log.FromContext(ctx).WithField("book_id", id).WithField("carts", detached).Info("book deleted")
	return nil
}

func (s *Service) lock(ctx context.Context, id string) (func(), error) {
	unlock, err := s.locker.Lock(ctx, bookLockKey(id))
	if err != nil {
		return nil, svcerrors.Internal("could not lock book", err)
	}
	return unlock, nil
}

// revertStock undoes a stock delta applied before a failed field write.
func (s *Service) revertStock(ctx context.Context, id string, delta int) {
	if delta == 0 {
		return
	}
	if _, err := s.books.AdjustStock(context.WithoutCancel(ctx), id, -delta); err != nil {
		s.log.FromContext(ctx).
			WithError(err).
			WithField("book_id", id).
			WithField("delta", -delta).
			Error("stock revert failed")
	}
}

// requireAuthors validates ids and checks that every author exists.
func (s *Service) requireAuthors(ctx context.Context, raw []string) ([]string, error) {
	ids, err := service.RequireIDs("authors", raw)
	if err != nil {
		return nil, err
	}
	found, err := s.authors.GetAuthors(ctx, ids)
	if err != nil {
		return nil, err
	}
	exists := make(map[string]struct{}, len(found))
	for _, a := range found {
		exists[a.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := exists[id]; !ok {
			return nil, svcerrors.NotFound("author", id)
		}
	}
	return ids, nil
}

func validateAmounts(b book.Book) error {
	if b.Price.IsNegative() {
		return svcerrors.Validation("price must be zero or positive").WithDetails("field", "price")
	}
	return validateQuantity(b.Quantity)
}

func validateQuantity(q int) error {
	if q < 0 || q > book.MaxQuantity {
		return svcerrors.Validation("quantity must be between 0 and %d", book.MaxQuantity).
			WithDetails("field", "quantity")
	}
	return nil
}
