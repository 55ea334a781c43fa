package sqlstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/cart"
)

const cartColumns = `id, user_id, total, created_at, updated_at`

type cartRow struct {
	ID        string          `db:"id"`
	UserID    string          `db:"user_id"`
	Total     decimal.Decimal `db:"total"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

type cartItemRow struct {
	CartID   string `db:"cart_id"`
	BookID   string `db:"book_id"`
	Quantity int    `db:"quantity"`
}

// --- CartStore --------------------------------------------------------------

func (s *Store) GetCartByUser(ctx context.Context, userID string) (cart.Cart, error) {
	var row cartRow
	if err := s.db.GetContext(ctx, &row, s.rebind(`SELECT `+cartColumns+` FROM carts WHERE user_id = ?`), userID); err != nil {
		return cart.Cart{}, notFound(err)
	}
	carts, err := s.hydrateCarts(ctx, []cartRow{row})
	if err != nil {
		return cart.Cart{}, err
	}
	return carts[0], nil
}

// GetOrCreateCart relies on the unique user_id constraint: concurrent inserts
// collapse into one row and every caller reads it back.
func (s *Store) GetOrCreateCart(ctx context.Context, userID string) (cart.Cart, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO carts (`+cartColumns+`) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING
	`), uuid.NewString(), userID, decimal.Zero, now, now)
	if err != nil {
		return cart.Cart{}, err
	}
	return s.GetCartByUser(ctx, userID)
}

func (s *Store) SaveCart(ctx context.Context, c cart.Cart) (cart.Cart, error) {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, s.rebind(`
			UPDATE carts SET total = ?, updated_at = ? WHERE id = ? AND user_id = ?
		`), c.Total, time.Now().UTC(), c.ID, c.UserID)
		if err != nil {
			return err
		}
		if err := requireAffected(res); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM cart_items WHERE cart_id = ?`), c.ID); err != nil {
			return err
		}
		for i, it := range c.Items {
			if _, err := tx.ExecContext(ctx, s.rebind(`
				INSERT INTO cart_items (cart_id, book_id, quantity, position) VALUES (?, ?, ?, ?)
			`), c.ID, it.BookID, it.Quantity, i); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return cart.Cart{}, err
	}
	return s.GetCartByUser(ctx, c.UserID)
}

func (s *Store) ListCarts(ctx context.Context) ([]cart.Cart, error) {
	var rows []cartRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+cartColumns+` FROM carts ORDER BY user_id`); err != nil {
		return nil, err
	}
	return s.hydrateCarts(ctx, rows)
}

func (s *Store) ListCartsWithBook(ctx context.Context, bookID string) ([]cart.Cart, error) {
	var rows []cartRow
	err := s.db.SelectContext(ctx, &rows, s.rebind(`
		SELECT `+cartColumns+` FROM carts
		WHERE id IN (SELECT cart_id FROM cart_items WHERE book_id = ?)
		ORDER BY user_id
	`), bookID)
	if err != nil {
		return nil, err
	}
	return s.hydrateCarts(ctx, rows)
}

func (s *Store) hydrateCarts(ctx context.Context, rows []cartRow) ([]cart.Cart, error) {
	out := make([]cart.Cart, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	query, args, err := s.in(`
		SELECT cart_id, book_id, quantity FROM cart_items
		WHERE cart_id IN (?) ORDER BY cart_id, position
	`, ids)
	if err != nil {
		return nil, err
	}
	var items []cartItemRow
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, err
	}
	byCart := make(map[string][]cart.Item, len(rows))
	for _, it := range items {
		byCart[it.CartID] = append(byCart[it.CartID], cart.Item{BookID: it.BookID, Quantity: it.Quantity})
	}
	for _, r := range rows {
		c := cart.Cart{
			ID:        r.ID,
			UserID:    r.UserID,
			Items:     byCart[r.ID],
			Total:     r.Total,
			CreatedAt: r.CreatedAt.UTC(),
			UpdatedAt: r.UpdatedAt.UTC(),
		}
		if c.Items == nil {
			c.Items = []cart.Item{}
		}
		out = append(out, c)
	}
	return out, nil
}
