package sqlstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/category"
)

const categoryColumns = `id, name, parent_id, position, created_at, updated_at`

type categoryRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	ParentID  string    `db:"parent_id"`
	Position  int       `db:"position"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r categoryRow) toDomain() category.Category {
	return category.Category{
		ID:        r.ID,
		Name:      r.Name,
		ParentID:  r.ParentID,
		Position:  r.Position,
		BookIDs:   []string{},
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

// --- CategoryStore ----------------------------------------------------------

func (s *Store) CreateCategory(ctx context.Context, c category.Category) (category.Category, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	c.BookIDs = []string{}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO categories (`+categoryColumns+`) VALUES (?, ?, ?, ?, ?, ?)
	`), c.ID, c.Name, c.ParentID, c.Position, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return category.Category{}, mapError(err, map[string]string{"name": c.Name})
	}
	return c, nil
}

func (s *Store) UpdateCategory(ctx context.Context, c category.Category) (category.Category, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE categories SET name = ?, parent_id = ?, position = ?, updated_at = ? WHERE id = ?
	`), c.Name, c.ParentID, c.Position, time.Now().UTC(), c.ID)
	if err != nil {
		return category.Category{}, mapError(err, map[string]string{"name": c.Name})
	}
	if err := requireAffected(res); err != nil {
		return category.Category{}, err
	}
	return s.GetCategory(ctx, c.ID)
}

func (s *Store) GetCategory(ctx context.Context, id string) (category.Category, error) {
	var row categoryRow
	if err := s.db.GetContext(ctx, &row, s.rebind(`SELECT `+categoryColumns+` FROM categories WHERE id = ?`), id); err != nil {
		return category.Category{}, notFound(err)
	}
	cats, err := s.hydrateCategories(ctx, []categoryRow{row})
	if err != nil {
		return category.Category{}, err
	}
	return cats[0], nil
}

func (s *Store) GetCategories(ctx context.Context, ids []string) ([]category.Category, error) {
	ids = uniq(ids)
	if len(ids) == 0 {
		return []category.Category{}, nil
	}
	query, args, err := s.in(`SELECT `+categoryColumns+` FROM categories WHERE id IN (?) ORDER BY position, name`, ids)
	if err != nil {
		return nil, err
	}
	return s.selectCategories(ctx, query, args...)
}

func (s *Store) ListCategories(ctx context.Context) ([]category.Category, error) {
	return s.selectCategories(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY position, name`)
}

func (s *Store) ListChildCategories(ctx context.Context, parentID string) ([]category.Category, error) {
	return s.selectCategories(ctx, s.rebind(`
		SELECT `+categoryColumns+` FROM categories WHERE parent_id = ? ORDER BY position, name
	`), parentID)
}

func (s *Store) selectCategories(ctx context.Context, query string, args ...any) ([]category.Category, error) {
	var rows []categoryRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return s.hydrateCategories(ctx, rows)
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM category_books WHERE category_id = ?`), id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM categories WHERE id = ?`), id)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
}

// AddBookToCategories appends at the end of each category's list. Categories
// that do not exist are skipped by the join on categories.
func (s *Store) AddBookToCategories(ctx context.Context, bookID string, categoryIDs []string) error {
	categoryIDs = uniq(categoryIDs)
	if len(categoryIDs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, categoryID := range categoryIDs {
			_, err := tx.ExecContext(ctx, s.rebind(`
				INSERT INTO category_books (category_id, book_id, position)
				SELECT c.id, ?, (SELECT COALESCE(MAX(cb.position), 0) + 1 FROM category_books cb WHERE cb.category_id = c.id)
				FROM categories c WHERE c.id = ?
				ON CONFLICT (category_id, book_id) DO NOTHING
			`), bookID, categoryID)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, s.rebind(`UPDATE categories SET updated_at = ? WHERE id = ?`), now, categoryID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) RemoveBookFromCategories(ctx context.Context, bookID string, categoryIDs []string) error {
	categoryIDs = uniq(categoryIDs)
	if len(categoryIDs) == 0 {
		return nil
	}
	query, args, err := s.in(`DELETE FROM category_books WHERE book_id = ? AND category_id IN (?)`, bookID, categoryIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *Store) hydrateCategories(ctx context.Context, rows []categoryRow) ([]category.Category, error) {
	out := make([]category.Category, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	query, args, err := s.in(`
		SELECT category_id, book_id FROM category_books
		WHERE category_id IN (?) ORDER BY category_id, position
	`, ids)
	if err != nil {
		return nil, err
	}
	var links []struct {
		CategoryID string `db:"category_id"`
		BookID     string `db:"book_id"`
	}
	if err := s.db.SelectContext(ctx, &links, query, args...); err != nil {
		return nil, err
	}
	books := make(map[string][]string, len(rows))
	for _, l := range links {
		books[l.CategoryID] = append(books[l.CategoryID], l.BookID)
	}
	for _, r := range rows {
		c := r.toDomain()
		if b := books[r.ID]; b != nil {
			c.BookIDs = b
		}
		out = append(out, c)
	}
	return out, nil
}
