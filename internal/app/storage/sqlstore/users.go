package sqlstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/user"
)

const userColumns = `id, username, email, password_hash, is_admin, first_name, last_name, avatar, is_active, created_at, updated_at`

type userRow struct {
	ID           string    `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	IsAdmin      bool      `db:"is_admin"`
	FirstName    string    `db:"first_name"`
	LastName     string    `db:"last_name"`
	Avatar       string    `db:"avatar"`
	IsActive     bool      `db:"is_active"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r userRow) toDomain() user.User {
	return user.User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		IsAdmin:      r.IsAdmin,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Avatar:       r.Avatar,
		IsActive:     r.IsActive,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

func userValues(u user.User) map[string]string {
	return map[string]string{"username": u.Username, "email": u.Email}
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), u.ID, u.Username, u.Email, u.PasswordHash, u.IsAdmin, u.FirstName, u.LastName, u.Avatar, u.IsActive,
		u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return user.User{}, mapError(err, userValues(u))
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE users
		SET username = ?, email = ?, password_hash = ?, is_admin = ?, first_name = ?, last_name = ?,
		    avatar = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`), u.Username, u.Email, u.PasswordHash, u.IsAdmin, u.FirstName, u.LastName, u.Avatar, u.IsActive,
		time.Now().UTC(), u.ID)
	if err != nil {
		return user.User{}, mapError(err, userValues(u))
	}
	if err := requireAffected(res); err != nil {
		return user.User{}, err
	}
	return s.GetUser(ctx, u.ID)
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (s *Store) getUser(ctx context.Context, query string, arg string) (user.User, error) {
	var row userRow
	if err := s.db.GetContext(ctx, &row, s.rebind(query), arg); err != nil {
		return user.User{}, notFound(err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+userColumns+` FROM users ORDER BY username`); err != nil {
		return nil, err
	}
	out := make([]user.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}
