package sqlstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/author"
)

const authorColumns = `id, name, biography, created_at, updated_at`

type authorRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Biography string    `db:"biography"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r authorRow) toDomain() author.Author {
	return author.Author{
		ID:        r.ID,
		Name:      r.Name,
		Biography: r.Biography,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func authorsFromRows(rows []authorRow) []author.Author {
	out := make([]author.Author, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}

// --- AuthorStore ------------------------------------------------------------

func (s *Store) CreateAuthor(ctx context.Context, a author.Author) (author.Author, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO authors (`+authorColumns+`) VALUES (?, ?, ?, ?, ?)
	`), a.ID, a.Name, a.Biography, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return author.Author{}, mapError(err, map[string]string{"name": a.Name})
	}
	return a, nil
}

func (s *Store) UpdateAuthor(ctx context.Context, a author.Author) (author.Author, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE authors SET name = ?, biography = ?, updated_at = ? WHERE id = ?
	`), a.Name, a.Biography, time.Now().UTC(), a.ID)
	if err != nil {
		return author.Author{}, mapError(err, map[string]string{"name": a.Name})
	}
	if err := requireAffected(res); err != nil {
		return author.Author{}, err
	}
	return s.GetAuthor(ctx, a.ID)
}

func (s *Store) GetAuthor(ctx context.Context, id string) (author.Author, error) {
	var row authorRow
	if err := s.db.GetContext(ctx, &row, s.rebind(`SELECT `+authorColumns+` FROM authors WHERE id = ?`), id); err != nil {
		return author.Author{}, notFound(err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetAuthors(ctx context.Context, ids []string) ([]author.Author, error) {
	ids = uniq(ids)
	if len(ids) == 0 {
		return []author.Author{}, nil
	}
	query, args, err := s.in(`SELECT `+authorColumns+` FROM authors WHERE id IN (?) ORDER BY name`, ids)
	if err != nil {
		return nil, err
	}
	var rows []authorRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return authorsFromRows(rows), nil
}

func (s *Store) ListAuthors(ctx context.Context) ([]author.Author, error) {
	var rows []authorRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+authorColumns+` FROM authors ORDER BY name`); err != nil {
		return nil, err
	}
	return authorsFromRows(rows), nil
}

func (s *Store) SearchAuthors(ctx context.Context, query string) ([]author.Author, error) {
	var rows []authorRow
	err := s.db.SelectContext(ctx, &rows, s.rebind(`
		SELECT `+authorColumns+` FROM authors
		WHERE LOWER(name) LIKE ? ESCAPE '\'
		ORDER BY name
	`), likePattern(query))
	if err != nil {
		return nil, err
	}
	return authorsFromRows(rows), nil
}

func (s *Store) DeleteAuthor(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM authors WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}
