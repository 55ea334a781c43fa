package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/book"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/storage"
)

const bookColumns = `id, title, isbn, price, quantity, category_ids, cover_url, description, published_at, created_at, updated_at`

type bookRow struct {
	ID          string          `db:"id"`
	Title       string          `db:"title"`
	ISBN        string          `db:"isbn"`
	Price       decimal.Decimal `db:"price"`
	Quantity    int             `db:"quantity"`
	CategoryIDs string          `db:"category_ids"`
	CoverURL    string          `db:"cover_url"`
	Description string          `db:"description"`
	PublishedAt sql.NullTime    `db:"published_at"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

func (r bookRow) toDomain() (book.Book, error) {
	b := book.Book{
		ID:          r.ID,
		Title:       r.Title,
		ISBN:        r.ISBN,
		Price:       r.Price,
		Quantity:    r.Quantity,
		AuthorIDs:   []string{},
		CategoryIDs: []string{},
		CoverURL:    r.CoverURL,
		Description: r.Description,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if r.PublishedAt.Valid {
		t := r.PublishedAt.Time.UTC()
		b.PublishedAt = &t
	}
	if r.CategoryIDs != "" {
		if err := json.Unmarshal([]byte(r.CategoryIDs), &b.CategoryIDs); err != nil {
			return book.Book{}, fmt.Errorf("decode category_ids of %s: %w", r.ID, err)
		}
	}
	return b, nil
}

func encodeIDs(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	raw, err := json.Marshal(ids)
	return string(raw), err
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// --- BookStore --------------------------------------------------------------

func (s *Store) CreateBook(ctx context.Context, b book.Book) (book.Book, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now

	categories, err := encodeIDs(b.CategoryIDs)
	if err != nil {
		return book.Book{}, err
	}

	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO books (`+bookColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`), b.ID, b.Title, b.ISBN, b.Price, b.Quantity, categories, b.CoverURL, b.Description,
			nullTime(b.PublishedAt), b.CreatedAt, b.UpdatedAt)
		if err != nil {
			return err
		}
		return s.writeBookAuthors(ctx, tx, b.ID, b.AuthorIDs)
	})
	if err != nil {
		return book.Book{}, mapError(err, map[string]string{"isbn": b.ISBN, "id": b.ID})
	}
	return s.GetBook(ctx, b.ID)
}

func (s *Store) UpdateBook(ctx context.Context, b book.Book) (book.Book, error) {
	categories, err := encodeIDs(b.CategoryIDs)
	if err != nil {
		return book.Book{}, err
	}

	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, s.rebind(`
			UPDATE books
			SET title = ?, isbn = ?, price = ?, category_ids = ?, cover_url = ?,
			    description = ?, published_at = ?, updated_at = ?
			WHERE id = ?
		`), b.Title, b.ISBN, b.Price, categories, b.CoverURL, b.Description,
			nullTime(b.PublishedAt), time.Now().UTC(), b.ID)
		if err != nil {
			return err
		}
		if err := requireAffected(res); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM book_authors WHERE book_id = ?`), b.ID); err != nil {
			return err
		}
		return s.writeBookAuthors(ctx, tx, b.ID, b.AuthorIDs)
	})
	if err != nil {
		return book.Book{}, mapError(err, map[string]string{"isbn": b.ISBN})
	}
	return s.GetBook(ctx, b.ID)
}

func (s *Store) writeBookAuthors(ctx context.Context, tx *sqlx.Tx, bookID string, authorIDs []string) error {
	for i, authorID := range uniq(authorIDs) {
		if _, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO book_authors (book_id, author_id, position) VALUES (?, ?, ?)
		`), bookID, authorID, i); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetBook(ctx context.Context, id string) (book.Book, error) {
	var row bookRow
	err := s.db.GetContext(ctx, &row, s.rebind(`SELECT `+bookColumns+` FROM books WHERE id = ?`), id)
	if err != nil {
		return book.Book{}, notFound(err)
	}
	books, err := s.hydrateBooks(ctx, []bookRow{row})
	if err != nil {
		return book.Book{}, err
	}
	return books[0], nil
}

func (s *Store) GetBooks(ctx context.Context, ids []string) ([]book.Book, error) {
	ids = uniq(ids)
	if len(ids) == 0 {
		return []book.Book{}, nil
	}
	query, args, err := s.in(`SELECT `+bookColumns+` FROM books WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var rows []bookRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return s.hydrateBooks(ctx, rows)
}

func (s *Store) ListBooks(ctx context.Context, filter book.Filter) ([]book.Book, int, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Query != "" {
		conds = append(conds, `LOWER(title) LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(filter.Query))
	}
	if len(filter.AuthorIDs) > 0 {
		conds = append(conds, `id IN (SELECT book_id FROM book_authors WHERE author_id IN (?))`)
		args = append(args, uniq(filter.AuthorIDs))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " OR ")
	}

	countQuery, countArgs, err := s.inOrRebind(`SELECT COUNT(*) FROM books`+where, args)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := s.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, err
	}

	order := " ORDER BY title, id"
	if filter.NewestFirst {
		order = " ORDER BY created_at DESC, id"
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = total
	}
	pageArgs := append(append([]any{}, args...), limit, max(filter.Offset, 0))
	pageQuery, pageArgs, err := s.inOrRebind(`SELECT `+bookColumns+` FROM books`+where+order+` LIMIT ? OFFSET ?`, pageArgs)
	if err != nil {
		return nil, 0, err
	}
	var rows []bookRow
	if err := s.db.SelectContext(ctx, &rows, pageQuery, pageArgs...); err != nil {
		return nil, 0, err
	}
	books, err := s.hydrateBooks(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return books, total, nil
}

// inOrRebind expands slice arguments when present.
func (s *Store) inOrRebind(query string, args []any) (string, []any, error) {
	for _, a := range args {
		if _, ok := a.([]string); ok {
			return s.in(query, args...)
		}
	}
	return s.rebind(query), args, nil
}

func (s *Store) DeleteBook(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM book_authors WHERE book_id = ?`), id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM books WHERE id = ?`), id)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
}

// AdjustStock applies the delta with a single conditional UPDATE so concurrent
// callers can never drive the quantity negative.
func (s *Store) AdjustStock(ctx context.Context, id string, delta int) (book.Book, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE books SET quantity = quantity + ?, updated_at = ?
		WHERE id = ? AND quantity + ? >= 0
	`), delta, time.Now().UTC(), id, delta)
	if err != nil {
		return book.Book{}, err
	}
	if err := requireAffected(res); err != nil {
		current, getErr := s.GetBook(ctx, id)
		if getErr != nil {
			return book.Book{}, getErr
		}
		return book.Book{}, &storage.StockError{BookID: id, Available: current.Quantity}
	}
	return s.GetBook(ctx, id)
}

func (s *Store) hydrateBooks(ctx context.Context, rows []bookRow) ([]book.Book, error) {
	out := make([]book.Book, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	query, args, err := s.in(`
		SELECT book_id, author_id FROM book_authors
		WHERE book_id IN (?) ORDER BY book_id, position
	`, ids)
	if err != nil {
		return nil, err
	}
	var links []struct {
		BookID   string `db:"book_id"`
		AuthorID string `db:"author_id"`
	}
	if err := s.db.SelectContext(ctx, &links, query, args...); err != nil {
		return nil, err
	}
	authors := make(map[string][]string, len(rows))
	for _, l := range links {
		authors[l.BookID] = append(authors[l.BookID], l.AuthorID)
	}

	for _, r := range rows {
		b, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		if a := authors[r.ID]; a != nil {
			b.AuthorIDs = a
		}
		out = append(out, b)
	}
	return out, nil
}
