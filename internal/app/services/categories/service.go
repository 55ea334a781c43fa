// Package categories manages the category tree and keeps each category's book
// list in step with the categories recorded on books.
package categories

import (
	"context"
	"sort"
	"strings"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/core/service"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/book"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/category"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/storage"
	svcerrors "github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/errors"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/pkg/logger"
)

const maxNameLength = 100

// Service implements category CRUD and membership synchronization.
type Service struct {
	store storage.CategoryStore
	books storage.BookStore
	log   *logger.Logger
}

// New constructs a category service.
func New(store storage.CategoryStore, books storage.BookStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("categories")
	}
	return &Service{store: store, books: books, log: log}
}

func (s *Service) Descriptor() service.Descriptor {
	return service.Descriptor{
		Name:         "categories",
		Domain:       "catalog",
		Capabilities: []string{"tree", "membership-sync"},
	}
}

// Detail is a category with its books resolved to summaries.
type Detail struct {
	category.Category
	Books []book.Summary `json:"books"`
}

// CreateInput carries the fields accepted on creation.
type CreateInput struct {
	Name     string `json:"name"`
	ParentID string `json:"parent_id"`
	Position int    `json:"position"`
}

// UpdateInput carries optional changes. An empty ParentID moves the category
// to the root.
type UpdateInput struct {
	Name     *string `json:"name"`
	ParentID *string `json:"parent_id"`
	Position *int    `json:"position"`
}

// NormalizeCategoryIDs validates, dedupes and resolves ids. Every id that does
// not exist is reported together, and nothing is written.
func (s *Service) NormalizeCategoryIDs(ctx context.Context, ids []string) ([]string, error) {
	ids, err := service.RequireIDs("categories", ids)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []string{}, nil
	}
	found, err := s.store.GetCategories(ctx, ids)
	if err != nil {
		return nil, err
	}
	exists := make(map[string]struct{}, len(found))
	for _, c := range found {
		exists[c.ID] = struct{}{}
	}
	var missing []string
	for _, id := range ids {
		if _, ok := exists[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, svcerrors.CategoryNotFound(missing)
	}
	return ids, nil
}

// ApplyCategoryDelta adds bookID to categories in next but not previous and
// removes it from those in previous but not next. Deleting a book is a delta
// to nil.
func (s *Service) ApplyCategoryDelta(ctx context.Context, bookID string, previous, next []string) error {
	toAdd := service.Diff(next, previous)
	toRemove := service.Diff(previous, next)

	if len(toAdd) > 0 {
		if err := s.store.AddBookToCategories(ctx, bookID, toAdd); err != nil {
			return err
		}
	}
	if len(toRemove) > 0 {
		if err := s.store.RemoveBookFromCategories(ctx, bookID, toRemove); err != nil {
			return err
		}
	}
	if len(toAdd)+len(toRemove) > 0 {
		s.log.FromContext(ctx).
			WithField("book_id", bookID).
			WithField("added", len(toAdd)).
			WithField("removed", len(toRemove)).
			Debug("category membership synced")
	}
	return nil
}

func (s *Service) List(ctx context.Context) ([]category.Category, error) {
	return s.store.ListCategories(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (Detail, error) {
	id, err := service.RequireID("id", id)
	if err != nil {
		return Detail{}, err
	}
	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return Detail{}, service.Translate(err, "category", id)
	}
	return s.detail(ctx, c)
}

func (s *Service) detail(ctx context.Context, c category.Category) (Detail, error) {
	d := Detail{Category: c, Books: []book.Summary{}}
	if len(c.BookIDs) == 0 || s.books == nil {
		return d, nil
	}
	books, err := s.books.GetBooks(ctx, c.BookIDs)
	if err != nil {
		return Detail{}, err
	}
	byID := make(map[string]book.Book, len(books))
	for _, b := range books {
		byID[b.ID] = b
	}
	for _, id := range c.BookIDs {
		if b, ok := byID[id]; ok {
			d.Books = append(d.Books, b.Summary())
		}
	}
	return d, nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (category.Category, error) {
	name, err := validateName(in.Name)
	if err != nil {
		return category.Category{}, err
	}
	parentID, err := s.resolveParent(ctx, in.ParentID)
	if err != nil {
		return category.Category{}, err
	}
	c, err := s.store.CreateCategory(ctx, category.Category{Name: name, ParentID: parentID, Position: in.Position})
	if err != nil {
		return category.Category{}, service.Translate(err, "category", "")
	}
	s.log.FromContext(ctx).WithField("category_id", c.ID).WithField("name", c.Name).Info("category created")
	return c, nil
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (category.Category, error) {
	id, err := service.RequireID("id", id)
	if err != nil {
		return category.Category{}, err
	}
	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return category.Category{}, service.Translate(err, "category", id)
	}
	if in.Name != nil {
		if c.Name, err = validateName(*in.Name); err != nil {
			return category.Category{}, err
		}
	}
	if in.Position != nil {
		c.Position = *in.Position
	}
	if in.ParentID != nil {
		parentID, err := s.resolveParent(ctx, *in.ParentID)
		if err != nil {
			return category.Category{}, err
		}
		if err := s.ensureNotAncestor(ctx, id, parentID); err != nil {
			return category.Category{}, err
		}
		c.ParentID = parentID
	}
	c, err = s.store.UpdateCategory(ctx, c)
	if err != nil {
		return category.Category{}, service.Translate(err, "category", id)
	}
	s.log.FromContext(ctx).WithField("category_id", c.ID).Info("category updated")
	return c, nil
}

// Delete refuses while books or child categories still point at the category.
func (s *Service) Delete(ctx context.Context, id string) error {
	id, err := service.RequireID("id", id)
	if err != nil {
		return err
	}
	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return service.Translate(err, "category", id)
	}
	if n := len(c.BookIDs); n > 0 {
		return svcerrors.Conflict("category still holds %d book(s)", n).WithDetails("books", n)
	}
	children, err := s.store.ListChildCategories(ctx, id)
	if err != nil {
		return err
	}
	if n := len(children); n > 0 {
		return svcerrors.Conflict("category still has %d child categories", n).WithDetails("children", n)
	}
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return service.Translate(err, "category", id)
	}
	s.log.FromContext(ctx).WithField("category_id", id).Info("category deleted")
	return nil
}

// Tree returns roots first, then children grouped under their parent, each
// level ordered by position then name.
func (s *Service) Tree(ctx context.Context) ([]category.Category, error) {
	all, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	byParent := make(map[string][]category.Category)
	for _, c := range all {
		byParent[c.ParentID] = append(byParent[c.ParentID], c)
	}
	for _, level := range byParent {
		sort.SliceStable(level, func(i, j int) bool {
			if level[i].Position != level[j].Position {
				return level[i].Position < level[j].Position
			}
			return level[i].Name < level[j].Name
		})
	}
	out := make([]category.Category, 0, len(all))
	var walk func(parent string)
	walk = func(parent string) {
		for _, c := range byParent[parent] {
			out = append(out, c)
			walk(c.ID)
		}
	}
	walk("")
	return out, nil
}

func (s *Service) resolveParent(ctx context.Context, raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	id, err := service.RequireID("parent_id", raw)
	if err != nil {
		return "", err
	}
	if _, err := s.store.GetCategory(ctx, id); err != nil {
		return "", service.Translate(err, "parent category", id)
	}
	return id, nil
}

// ensureNotAncestor walks up from parentID and fails if it reaches id.
func (s *Service) ensureNotAncestor(ctx context.Context, id, parentID string) error {
	seen := map[string]struct{}{}
	for cur := parentID; cur != ""; {
		if cur == id {
			return svcerrors.Validation("a category cannot be moved under itself or its descendants")
		}
		if _, ok := seen[cur]; ok {
			return nil
		}
		seen[cur] = struct{}{}
		c, err := s.store.GetCategory(ctx, cur)
		if err != nil {
			return service.Translate(err, "category", cur)
		}
		cur = c.ParentID
	}
	return nil
}

func validateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", svcerrors.Validation("name is required")
	}
	if len(name) > maxNameLength {
		return "", svcerrors.Validation("name must be at most %d characters", maxNameLength)
	}
	return name, nil
}
