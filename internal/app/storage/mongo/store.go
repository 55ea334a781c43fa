// Package mongo implements the storage interfaces on MongoDB. Records keep
// string UUID identifiers so ids are portable across backends.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/author"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/book"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/cart"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/category"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/user"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/storage"
)

const (
	colBooks      = "books"
	colAuthors    = "authors"
	colCategories = "categories"
	colCarts      = "carts"
	colUsers      = "users"
)

// uniqueIndexes maps index names to the field reported on duplicates.
var uniqueIndexes = map[string]string{
	"books_isbn_key":             "isbn",
	"authors_name_key":           "name",
	"categories_name_parent_key": "name",
	"users_username_key":         "username",
	"users_email_key":            "email",
	"carts_user_id_key":          "user_id",
}

// Store implements storage.Store.
type Store struct {
	db *mongo.Database
}

var _ storage.Store = (*Store)(nil)

// Connect dials uri and pings the primary.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// New creates a Store over db. Call EnsureIndexes before serving traffic.
func New(db *mongo.Database) *Store {
	return &Store{db: db}
}

// EnsureIndexes creates the unique and lookup indexes. It is idempotent.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		colBooks: {
			{Keys: bson.D{{Key: "isbn", Value: 1}}, Options: options.Index().SetUnique(true).SetName("books_isbn_key")},
			{Keys: bson.D{{Key: "title", Value: 1}}, Options: options.Index().SetName("books_title_idx")},
			{Keys: bson.D{{Key: "author_ids", Value: 1}}, Options: options.Index().SetName("books_author_ids_idx")},
		},
		colAuthors: {
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true).SetName("authors_name_key")},
		},
		colCategories: {
			{Keys: bson.D{{Key: "name", Value: 1}, {Key: "parent_id", Value: 1}}, Options: options.Index().SetUnique(true).SetName("categories_name_parent_key")},
		},
		colCarts: {
			{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true).SetName("carts_user_id_key")},
			{Keys: bson.D{{Key: "items.book_id", Value: 1}}, Options: options.Index().SetName("carts_items_book_idx")},
		},
		colUsers: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName("users_username_key")},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("users_email_key")},
		},
	}
	for col, models := range specs {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("ensure %s indexes: %w", col, err)
		}
	}
	return nil
}

func (s *Store) Reset(ctx context.Context) error {
	for _, col := range []string{colBooks, colAuthors, colCategories, colCarts, colUsers} {
		if _, err := s.db.Collection(col).DeleteMany(ctx, bson.D{}); err != nil {
			return fmt.Errorf("reset %s: %w", col, err)
		}
	}
	return nil
}

func mapError(err error, values map[string]string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return storage.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		msg := err.Error()
		for index, field := range uniqueIndexes {
			if strings.Contains(msg, index) {
				return &storage.DuplicateError{Field: field, Value: values[field]}
			}
		}
		return &storage.DuplicateError{Field: "id"}
	}
	return err
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func containsFold(q string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(q), "$options": "i"}
}

// --- BookStore --------------------------------------------------------------

func (s *Store) CreateBook(ctx context.Context, b book.Book) (book.Book, error) {
	b.ID = newID(b.ID)
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now

	doc, err := newBookDoc(b)
	if err != nil {
		return book.Book{}, err
	}
	if _, err := s.db.Collection(colBooks).InsertOne(ctx, doc); err != nil {
		return book.Book{}, mapError(err, map[string]string{"isbn": b.ISBN})
	}
	return doc.toDomain()
}

func (s *Store) UpdateBook(ctx context.Context, b book.Book) (book.Book, error) {
	doc, err := newBookDoc(b)
	if err != nil {
		return book.Book{}, err
	}
	update := bson.M{"$set": bson.M{
		"title":        doc.Title,
		"author_ids":   doc.AuthorIDs,
		"category_ids": doc.CategoryIDs,
		"isbn":         doc.ISBN,
		"price":        doc.Price,
		"cover_url":    doc.CoverURL,
		"description":  doc.Description,
		"published_at": doc.PublishedAt,
		"updated_at":   time.Now().UTC(),
	}}
	var updated bookDoc
	err = s.db.Collection(colBooks).FindOneAndUpdate(ctx, bson.M{"_id": b.ID}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&updated)
	if err != nil {
		return book.Book{}, mapError(err, map[string]string{"isbn": b.ISBN})
	}
	return updated.toDomain()
}

func (s *Store) GetBook(ctx context.Context, id string) (book.Book, error) {
	var doc bookDoc
	if err := s.db.Collection(colBooks).FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return book.Book{}, mapError(err, nil)
	}
	return doc.toDomain()
}

func (s *Store) GetBooks(ctx context.Context, ids []string) ([]book.Book, error) {
	if len(ids) == 0 {
		return []book.Book{}, nil
	}
	return s.findBooks(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (s *Store) findBooks(ctx context.Context, filter any, opts ...*options.FindOptions) ([]book.Book, error) {
	cur, err := s.db.Collection(colBooks).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	var docs []bookDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]book.Book, 0, len(docs))
	for _, d := range docs {
		b, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *Store) ListBooks(ctx context.Context, filter book.Filter) ([]book.Book, int, error) {
	var or bson.A
	if filter.Query != "" {
		or = append(or, bson.M{"title": containsFold(filter.Query)})
	}
	if len(filter.AuthorIDs) > 0 {
		or = append(or, bson.M{"author_ids": bson.M{"$in": filter.AuthorIDs}})
	}
	query := bson.M{}
	if len(or) > 0 {
		query = bson.M{"$or": or}
	}

	total, err := s.db.Collection(colBooks).CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	sort := bson.D{{Key: "title", Value: 1}, {Key: "_id", Value: 1}}
	if filter.NewestFirst {
		sort = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}
	}
	opts := options.Find().SetSort(sort).SetSkip(int64(max(filter.Offset, 0)))
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	books, err := s.findBooks(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	return books, int(total), nil
}

func (s *Store) DeleteBook(ctx context.Context, id string) error {
	res, err := s.db.Collection(colBooks).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// AdjustStock matches only documents that can absorb the delta, so the check
// and the increment happen in one server-side operation.
func (s *Store) AdjustStock(ctx context.Context, id string, delta int) (book.Book, error) {
	filter := bson.M{"_id": id, "quantity": bson.M{"$gte": -delta}}
	update := bson.M{
		"$inc": bson.M{"quantity": delta},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	var doc bookDoc
	err := s.db.Collection(colBooks).FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		current, getErr := s.GetBook(ctx, id)
		if getErr != nil {
			return book.Book{}, getErr
		}
		return book.Book{}, &storage.StockError{BookID: id, Available: current.Quantity}
	}
	if err != nil {
		return book.Book{}, err
	}
	return doc.toDomain()
}

// --- AuthorStore ------------------------------------------------------------

func (s *Store) CreateAuthor(ctx context.Context, a author.Author) (author.Author, error) {
	a.ID = newID(a.ID)
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	doc := authorDoc{ID: a.ID, Name: a.Name, Biography: a.Biography, CreatedAt: now, UpdatedAt: now}
	if _, err := s.db.Collection(colAuthors).InsertOne(ctx, doc); err != nil {
		return author.Author{}, mapError(err, map[string]string{"name": a.Name})
	}
	return doc.toDomain(), nil
}

func (s *Store) UpdateAuthor(ctx context.Context, a author.Author) (author.Author, error) {
	update := bson.M{"$set": bson.M{"name": a.Name, "biography": a.Biography, "updated_at": time.Now().UTC()}}
	var doc authorDoc
	err := s.db.Collection(colAuthors).FindOneAndUpdate(ctx, bson.M{"_id": a.ID}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		return author.Author{}, mapError(err, map[string]string{"name": a.Name})
	}
	return doc.toDomain(), nil
}

func (s *Store) GetAuthor(ctx context.Context, id string) (author.Author, error) {
	var doc authorDoc
	if err := s.db.Collection(colAuthors).FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return author.Author{}, mapError(err, nil)
	}
	return doc.toDomain(), nil
}

func (s *Store) GetAuthors(ctx context.Context, ids []string) ([]author.Author, error) {
	if len(ids) == 0 {
		return []author.Author{}, nil
	}
	return s.findAuthors(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (s *Store) ListAuthors(ctx context.Context) ([]author.Author, error) {
	return s.findAuthors(ctx, bson.M{})
}

func (s *Store) SearchAuthors(ctx context.Context, query string) ([]author.Author, error) {
	return s.findAuthors(ctx, bson.M{"name": containsFold(query)})
}

func (s *Store) findAuthors(ctx context.Context, filter any) ([]author.Author, error) {
	cur, err := s.db.Collection(colAuthors).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []authorDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]author.Author, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (s *Store) DeleteAuthor(ctx context.Context, id string) error {
	res, err := s.db.Collection(colAuthors).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// --- CategoryStore ----------------------------------------------------------

func (s *Store) CreateCategory(ctx context.Context, c category.Category) (category.Category, error) {
	now := time.Now().UTC()
	doc := categoryDoc{
		ID:        newID(c.ID),
		Name:      c.Name,
		ParentID:  c.ParentID,
		Position:  c.Position,
		BookIDs:   []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.db.Collection(colCategories).InsertOne(ctx, doc); err != nil {
		return category.Category{}, mapError(err, map[string]string{"name": c.Name})
	}
	return doc.toDomain(), nil
}

func (s *Store) UpdateCategory(ctx context.Context, c category.Category) (category.Category, error) {
	update := bson.M{"$set": bson.M{
		"name":       c.Name,
		"parent_id":  c.ParentID,
		"position":   c.Position,
		"updated_at": time.Now().UTC(),
	}}
	var doc categoryDoc
	err := s.db.Collection(colCategories).FindOneAndUpdate(ctx, bson.M{"_id": c.ID}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		return category.Category{}, mapError(err, map[string]string{"name": c.Name})
	}
	return doc.toDomain(), nil
}

func (s *Store) GetCategory(ctx context.Context, id string) (category.Category, error) {
	var doc categoryDoc
	if err := s.db.Collection(colCategories).FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return category.Category{}, mapError(err, nil)
	}
	return doc.toDomain(), nil
}

func (s *Store) GetCategories(ctx context.Context, ids []string) ([]category.Category, error) {
	if len(ids) == 0 {
		return []category.Category{}, nil
	}
	return s.findCategories(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (s *Store) ListCategories(ctx context.Context) ([]category.Category, error) {
	return s.findCategories(ctx, bson.M{})
}

func (s *Store) ListChildCategories(ctx context.Context, parentID string) ([]category.Category, error) {
	return s.findCategories(ctx, bson.M{"parent_id": parentID})
}

func (s *Store) findCategories(ctx context.Context, filter any) ([]category.Category, error) {
	sort := bson.D{{Key: "position", Value: 1}, {Key: "name", Value: 1}}
	cur, err := s.db.Collection(colCategories).Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, err
	}
	var docs []categoryDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]category.Category, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	res, err := s.db.Collection(colCategories).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) AddBookToCategories(ctx context.Context, bookID string, categoryIDs []string) error {
	if len(categoryIDs) == 0 {
		return nil
	}
	_, err := s.db.Collection(colCategories).UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": categoryIDs}, "book_ids": bson.M{"$ne": bookID}},
		bson.M{
			"$addToSet": bson.M{"book_ids": bookID},
			"$set":      bson.M{"updated_at": time.Now().UTC()},
		})
	return err
}

func (s *Store) RemoveBookFromCategories(ctx context.Context, bookID string, categoryIDs []string) error {
	if len(categoryIDs) == 0 {
		return nil
	}
	_, err := s.db.Collection(colCategories).UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": categoryIDs}, "book_ids": bookID},
		bson.M{
			"$pull": bson.M{"book_ids": bookID},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		})
	return err
}

// --- CartStore --------------------------------------------------------------

func (s *Store) GetCartByUser(ctx context.Context, userID string) (cart.Cart, error) {
	var doc cartDoc
	if err := s.db.Collection(colCarts).FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc); err != nil {
		return cart.Cart{}, mapError(err, nil)
	}
	return doc.toDomain()
}

// GetOrCreateCart upserts on user_id. Two concurrent upserts can both miss and
// one then trips the unique index; that caller reads the winner's cart.
func (s *Store) GetOrCreateCart(ctx context.Context, userID string) (cart.Cart, error) {
	now := time.Now().UTC()
	zero, err := toDecimal128(decimal.Zero)
	if err != nil {
		return cart.Cart{}, err
	}
	update := bson.M{"$setOnInsert": bson.M{
		"_id":        uuid.NewString(),
		"user_id":    userID,
		"items":      bson.A{},
		"total":      zero,
		"created_at": now,
		"updated_at": now,
	}}
	var doc cartDoc
	err = s.db.Collection(colCarts).FindOneAndUpdate(ctx, bson.M{"user_id": userID}, update,
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		return s.GetCartByUser(ctx, userID)
	}
	if err != nil {
		return cart.Cart{}, err
	}
	return doc.toDomain()
}

func (s *Store) SaveCart(ctx context.Context, c cart.Cart) (cart.Cart, error) {
	total, err := toDecimal128(c.Total)
	if err != nil {
		return cart.Cart{}, err
	}
	update := bson.M{"$set": bson.M{
		"items":      itemDocs(c.Items),
		"total":      total,
		"updated_at": time.Now().UTC(),
	}}
	var doc cartDoc
	err = s.db.Collection(colCarts).FindOneAndUpdate(ctx, bson.M{"_id": c.ID, "user_id": c.UserID}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		return cart.Cart{}, mapError(err, nil)
	}
	return doc.toDomain()
}

func (s *Store) ListCarts(ctx context.Context) ([]cart.Cart, error) {
	return s.findCarts(ctx, bson.M{})
}

func (s *Store) ListCartsWithBook(ctx context.Context, bookID string) ([]cart.Cart, error) {
	return s.findCarts(ctx, bson.M{"items.book_id": bookID})
}

func (s *Store) findCarts(ctx context.Context, filter any) ([]cart.Cart, error) {
	cur, err := s.db.Collection(colCarts).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "user_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []cartDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]cart.Cart, 0, len(docs))
	for _, d := range docs {
		c, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	u.ID = newID(u.ID)
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	if _, err := s.db.Collection(colUsers).InsertOne(ctx, newUserDoc(u)); err != nil {
		return user.User{}, mapError(err, map[string]string{"username": u.Username, "email": u.Email})
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	update := bson.M{"$set": bson.M{
		"username":      u.Username,
		"email":         u.Email,
		"password_hash": u.PasswordHash,
		"is_admin":      u.IsAdmin,
		"first_name":    u.FirstName,
		"last_name":     u.LastName,
		"avatar":        u.Avatar,
		"is_active":     u.IsActive,
		"updated_at":    time.Now().UTC(),
	}}
	var doc userDoc
	err := s.db.Collection(colUsers).FindOneAndUpdate(ctx, bson.M{"_id": u.ID}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		return user.User{}, mapError(err, map[string]string{"username": u.Username, "email": u.Email})
	}
	return doc.toDomain(), nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *Store) findUser(ctx context.Context, filter any) (user.User, error) {
	var doc userDoc
	if err := s.db.Collection(colUsers).FindOne(ctx, filter).Decode(&doc); err != nil {
		return user.User{}, mapError(err, nil)
	}
	return doc.toDomain(), nil
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	cur, err := s.db.Collection(colUsers).Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "username", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]user.User, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.Collection(colUsers).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}
