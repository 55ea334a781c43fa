package catalog

import (
	"context"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/core/service"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/author"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/book"
	svcerrors "github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/errors"
)

// AuthorInput carries author fields. Nil fields are left unchanged on update.
type AuthorInput struct {
	Name      *string `json:"name"`
	Biography *string `json:"biography"`
}

func (s *Service) ListAuthors(ctx context.Context) ([]author.Author, error) {
	return s.authors.ListAuthors(ctx)
}

func (s *Service) GetAuthor(ctx context.Context, id string) (author.Author, error) {
	id, err := service.RequireID("id", id)
	if err != nil {
		return author.Author{}, err
	}
	a, err := s.authors.GetAuthor(ctx, id)
	return a, service.Translate(err, "author", id)
}

func (s *Service) CreateAuthor(ctx context.Context, in AuthorInput) (author.Author, error) {
	name := trimmed(in.Name)
	if name == "" {
		return author.Author{}, svcerrors.Validation("name is required").WithDetails("field", "name")
	}
	a, err := s.authors.CreateAuthor(ctx, author.Author{Name: name, Biography: trimmed(in.Biography)})
	if err != nil {
		return author.Author{}, service.Translate(err, "author", "")
	}
	s.log.FromContext(ctx).WithField("author_id", a.ID).Info("author created")
	return a, nil
}

func (s *Service) UpdateAuthor(ctx context.Context, id string, in AuthorInput) (author.Author, error) {
	id, err := service.RequireID("id", id)
	if err != nil {
		return author.Author{}, err
	}
	a, err := s.authors.GetAuthor(ctx, id)
	if err != nil {
		return author.Author{}, service.Translate(err, "author", id)
	}
	if in.Name != nil {
		if a.Name = trimmed(in.Name); a.Name == "" {
			return author.Author{}, svcerrors.Validation("name cannot be empty").WithDetails("field", "name")
		}
	}
	if in.Biography != nil {
		a.Biography = trimmed(in.Biography)
	}
	a, err = s.authors.UpdateAuthor(ctx, a)
	if err != nil {
		return author.Author{}, service.Translate(err, "author", id)
	}
	return a, nil
}

// DeleteAuthor refuses while any book still credits the author.
func (s *Service) DeleteAuthor(ctx context.Context, id string) error {
	id, err := service.RequireID("id", id)
	if err != nil {
		return err
	}
	if _, err := s.authors.GetAuthor(ctx, id); err != nil {
		return service.Translate(err, "author", id)
	}
	_, total, err := s.books.ListBooks(ctx, book.Filter{AuthorIDs: []string{id}, Limit: 1})
	if err != nil {
		return err
	}
	if total > 0 {
		return svcerrors.Conflict("author is still credited on %d book(s)", total).WithDetails("books", total)
	}
	if err := s.authors.DeleteAuthor(ctx, id); err != nil {
		return service.Translate(err, "author", id)
	}
	s.log.FromContext(ctx).WithField("author_id", id).Info("author deleted")
	return nil
}
