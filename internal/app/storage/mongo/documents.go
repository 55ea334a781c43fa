package mongo

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/author"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/book"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/cart"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/category"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/user"
)

type bookDoc struct {
	ID          string               `bson:"_id"`
	Title       string               `bson:"title"`
	AuthorIDs   []string             `bson:"author_ids"`
	CategoryIDs []string             `bson:"category_ids"`
	ISBN        string               `bson:"isbn"`
	Price       primitive.Decimal128 `bson:"price"`
	Quantity    int                  `bson:"quantity"`
	CoverURL    string               `bson:"cover_url,omitempty"`
	Description string               `bson:"description,omitempty"`
	PublishedAt *time.Time           `bson:"published_at,omitempty"`
	CreatedAt   time.Time            `bson:"created_at"`
	UpdatedAt   time.Time            `bson:"updated_at"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("encode decimal %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("decode decimal %s: %w", v, err)
	}
	return d, nil
}

func newBookDoc(b book.Book) (bookDoc, error) {
	price, err := toDecimal128(b.Price)
	if err != nil {
		return bookDoc{}, err
	}
	return bookDoc{
		ID:          b.ID,
		Title:       b.Title,
		AuthorIDs:   nonNil(b.AuthorIDs),
		CategoryIDs: nonNil(b.CategoryIDs),
		ISBN:        b.ISBN,
		Price:       price,
		Quantity:    b.Quantity,
		CoverURL:    b.CoverURL,
		Description: b.Description,
		PublishedAt: b.PublishedAt,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}, nil
}

func (d bookDoc) toDomain() (book.Book, error) {
	price, err := fromDecimal128(d.Price)
	if err != nil {
		return book.Book{}, err
	}
	b := book.Book{
		ID:          d.ID,
		Title:       d.Title,
		AuthorIDs:   nonNil(d.AuthorIDs),
		CategoryIDs: nonNil(d.CategoryIDs),
		ISBN:        d.ISBN,
		Price:       price,
		Quantity:    d.Quantity,
		CoverURL:    d.CoverURL,
		Description: d.Description,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
	if d.PublishedAt != nil {
		t := d.PublishedAt.UTC()
		b.PublishedAt = &t
	}
	return b, nil
}

type authorDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Biography string    `bson:"biography,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (d authorDoc) toDomain() author.Author {
	return author.Author{
		ID:        d.ID,
		Name:      d.Name,
		Biography: d.Biography,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

type categoryDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	ParentID  string    `bson:"parent_id"`
	Position  int       `bson:"position"`
	BookIDs   []string  `bson:"book_ids"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (d categoryDoc) toDomain() category.Category {
	return category.Category{
		ID:        d.ID,
		Name:      d.Name,
		ParentID:  d.ParentID,
		Position:  d.Position,
		BookIDs:   nonNil(d.BookIDs),
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

type cartItemDoc struct {
	BookID   string `bson:"book_id"`
	Quantity int    `bson:"quantity"`
}

type cartDoc struct {
	ID        string               `bson:"_id"`
	UserID    string               `bson:"user_id"`
	Items     []cartItemDoc        `bson:"items"`
	Total     primitive.Decimal128 `bson:"total"`
	CreatedAt time.Time            `bson:"created_at"`
	UpdatedAt time.Time            `bson:"updated_at"`
}

func (d cartDoc) toDomain() (cart.Cart, error) {
	total, err := fromDecimal128(d.Total)
	if err != nil {
		return cart.Cart{}, err
	}
	c := cart.Cart{
		ID:        d.ID,
		UserID:    d.UserID,
		Items:     make([]cart.Item, 0, len(d.Items)),
		Total:     total,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
	for _, it := range d.Items {
		c.Items = append(c.Items, cart.Item{BookID: it.BookID, Quantity: it.Quantity})
	}
	return c, nil
}

func itemDocs(items []cart.Item) []cartItemDoc {
	out := make([]cartItemDoc, 0, len(items))
	for _, it := range items {
		out = append(out, cartItemDoc{BookID: it.BookID, Quantity: it.Quantity})
	}
	return out
}

type userDoc struct {
	ID           string    `bson:"_id"`
	Username     string    `bson:"username"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password_hash"`
	IsAdmin      bool      `bson:"is_admin"`
	FirstName    string    `bson:"first_name,omitempty"`
	LastName     string    `bson:"last_name,omitempty"`
	Avatar       string    `bson:"avatar,omitempty"`
	IsActive     bool      `bson:"is_active"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func newUserDoc(u user.User) userDoc {
	return userDoc{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		IsAdmin:      u.IsAdmin,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Avatar:       u.Avatar,
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (d userDoc) toDomain() user.User {
	return user.User{
		ID:           d.ID,
		Username:     d.Username,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		IsAdmin:      d.IsAdmin,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		Avatar:       d.Avatar,
		IsActive:     d.IsActive,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
