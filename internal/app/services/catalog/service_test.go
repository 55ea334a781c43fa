package catalog

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/core/service"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/author"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/book"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/events"
	cartsvc "github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/services/cart"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/services/categories"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/storage"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/storage/memory"
	svcerrors "github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/errors"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/pkg/logger"
)

type fixture struct {
	svc   *Service
	cats  *categories.Service
	carts *cartsvc.Service
	store *memory.Store
	rec   *events.Recorder
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.New()
	log := logger.Discard()
	cats := categories.New(store, store, log)
	carts := cartsvc.New(store, store, log)
	rec := &events.Recorder{}

	svc := New(store, store, store, cats, log)
	svc.WithCartDetacher(carts)
	svc.WithEvents(events.NewEmitter(rec, log))
	svc.WithPageSizes(2, 4)
	return fixture{svc: svc, cats: cats, carts: carts, store: store, rec: rec}
}

func (f fixture) author(t *testing.T, name string) author.Author {
	t.Helper()
	a, err := f.svc.CreateAuthor(context.Background(), AuthorInput{Name: &name})
	require.NoError(t, err)
	return a
}

func ptr[T any](v T) *T { return &v }

func (f fixture) createBook(t *testing.T, title string, authorID string, cats ...string) Detail {
	t.Helper()
	in := BookInput{
		Title:     ptr(title),
		ISBN:      ptr(uuid.NewString()[:13]),
		AuthorIDs: ptr([]string{authorID}),
		Price:     ptr(decimal.RequireFromString("9.99")),
		Quantity:  ptr(5),
	}
	if len(cats) > 0 {
		in.CategoryIDs = ptr(cats)
	}
	d, err := f.svc.CreateBook(context.Background(), in)
	require.NoError(t, err)
	return d
}

func TestCreateBookPopulatesAndSyncsCategories(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.author(t, "Frank Herbert")
	sf, err := f.cats.Create(ctx, categories.CreateInput{Name: "SF"})
	require.NoError(t, err)

	d := f.createBook(t, "Dune", a.ID, sf.ID, sf.ID)
	assert.Equal(t, []string{sf.ID}, d.CategoryIDs)
	assert.Equal(t, []Ref{{ID: a.ID, Name: "Frank Herbert"}}, d.Authors)
	assert.Equal(t, []Ref{{ID: sf.ID, Name: "SF"}}, d.Categories)

	cat, err := f.store.GetCategory(ctx, sf.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{d.ID}, cat.BookIDs)
}

func TestCreateBookValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.author(t, "A")

	_, err := f.svc.CreateBook(ctx, BookInput{Title: ptr("x"), ISBN: ptr("1")})
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeValidation))

	_, err = f.svc.CreateBook(ctx, BookInput{Title: ptr("x"), ISBN: ptr("1"), AuthorIDs: ptr([]string{uuid.NewString()}), Price: ptr(decimal.NewFromInt(1))})
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeNotFound))

	_, err = f.svc.CreateBook(ctx, BookInput{Title: ptr("x"), ISBN: ptr("1"), AuthorIDs: ptr([]string{a.ID}), Price: ptr(decimal.NewFromInt(-1))})
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeValidation))

	missing := uuid.NewString()
	_, err = f.svc.CreateBook(ctx, BookInput{
		Title: ptr("x"), ISBN: ptr("1"), AuthorIDs: ptr([]string{a.ID}), Price: ptr(decimal.NewFromInt(1)),
		CategoryIDs: ptr([]string{missing}),
	})
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeCategoryNotFound))

	_, err = f.svc.CreateBook(ctx, BookInput{
		Title: ptr("x"), ISBN: ptr("1"), AuthorIDs: ptr([]string{a.ID}), Price: ptr(decimal.NewFromInt(1)),
		Quantity: ptr(book.MaxQuantity + 1),
	})
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeValidation))

	_, total, err := f.store.ListBooks(ctx, bookFilterAll())
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestCreateBookDuplicateISBN(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.author(t, "A")
	in := BookInput{Title: ptr("x"), ISBN: ptr("978"), AuthorIDs: ptr([]string{a.ID}), Price: ptr(decimal.NewFromInt(1))}
	_, err := f.svc.CreateBook(ctx, in)
	require.NoError(t, err)
	_, err = f.svc.CreateBook(ctx, in)
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeDuplicateKey))
}

func TestUpdateBookMovesCategories(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.author(t, "A")
	ca, _ := f.cats.Create(ctx, categories.CreateInput{Name: "A"})
	cb, _ := f.cats.Create(ctx, categories.CreateInput{Name: "B"})
	cc, _ := f.cats.Create(ctx, categories.CreateInput{Name: "C"})

	d := f.createBook(t, "Book", a.ID, ca.ID, cb.ID)
	updated, err := f.svc.UpdateBook(ctx, d.ID, BookInput{CategoryIDs: ptr([]string{cb.ID, cc.ID}), Quantity: ptr(9)})
	require.NoError(t, err)
	assert.Equal(t, 9, updated.Quantity)
	assert.Equal(t, "Book", updated.Title)

	for id, want := range map[string]bool{ca.ID: false, cb.ID: true, cc.ID: true} {
		cat, err := f.store.GetCategory(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, cat.HasBook(d.ID), cat.Name)
	}

	_, err = f.svc.UpdateBook(ctx, d.ID, BookInput{Quantity: ptr(-1)})
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeValidation))
	_, err = f.svc.UpdateBook(ctx, d.ID, BookInput{Quantity: ptr(book.MaxQuantity + 1)})
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeValidation))

	got, err := f.store.GetBook(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, got.Quantity)
}

// raceBooks runs hook once, right after the first GetBook, to land a
// concurrent write between an update's read and its write.
type raceBooks struct {
	storage.BookStore
	once sync.Once
	hook func()
}

func (r *raceBooks) GetBook(ctx context.Context, id string) (book.Book, error) {
	b, err := r.BookStore.GetBook(ctx, id)
	r.once.Do(r.hook)
	return b, err
}

func (f fixture) racingCatalog(hook func()) *Service {
	log := logger.Discard()
	svc := New(&raceBooks{BookStore: f.store, hook: hook}, f.store, f.store, f.cats, log)
	svc.WithCartDetacher(f.carts)
	return svc
}

func TestUpdateBookKeepsConcurrentReservation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.author(t, "Frank Herbert")
	d := f.createBook(t, "Dune", a.ID)
	user := uuid.NewString()

	svc := f.racingCatalog(func() {
		_, err := f.carts.SetItemQuantity(ctx, user, d.ID, 5)
		require.NoError(t, err)
	})
	updated, err := svc.UpdateBook(ctx, d.ID, BookInput{Title: ptr("Dune (2nd ed.)")})
	require.NoError(t, err)
	assert.Equal(t, "Dune (2nd ed.)", updated.Title)
	assert.Equal(t, 0, updated.Quantity)

	got, err := f.store.GetBook(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity)
	view, err := f.carts.GetCart(ctx, user)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 5, view.Items[0].Quantity)
}

func TestUpdateBookQuantityAppliesDifference(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.author(t, "A")
	d := f.createBook(t, "Book", a.ID)

	svc := f.racingCatalog(func() {
		_, err := f.carts.SetItemQuantity(ctx, uuid.NewString(), d.ID, 2)
		require.NoError(t, err)
	})
	// Read 5, restock to 8 while a cart takes 2: the reservation survives.
	updated, err := svc.UpdateBook(ctx, d.ID, BookInput{Quantity: ptr(8)})
	require.NoError(t, err)
	assert.Equal(t, 6, updated.Quantity)
}

func TestUpdateBookQuantityConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.author(t, "A")
	d := f.createBook(t, "Book", a.ID)

	svc := f.racingCatalog(func() {
		_, err := f.carts.SetItemQuantity(ctx, uuid.NewString(), d.ID, 5)
		require.NoError(t, err)
	})
	_, err := svc.UpdateBook(ctx, d.ID, BookInput{Title: ptr("Renamed"), Quantity: ptr(1)})
	se := svcerrors.GetServiceError(err)
	require.NotNil(t, se)
	assert.Equal(t, svcerrors.CodeConflict, se.Code)
	assert.Equal(t, 0, se.Details["available"])

	got, err := f.store.GetBook(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "Book", got.Title)
	assert.Equal(t, 0, got.Quantity)
}

func TestBookWritesWithMissingCategoryChangeNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.author(t, "A")
	x, err := f.cats.Create(ctx, categories.CreateInput{Name: "X"})
	require.NoError(t, err)
	z, err := f.cats.Create(ctx, categories.CreateInput{Name: "Z"})
	require.NoError(t, err)
	y := uuid.NewString()

	_, err = f.svc.CreateBook(ctx, BookInput{
		Title: ptr("New"), ISBN: ptr("111"), AuthorIDs: ptr([]string{a.ID}), Price: ptr(decimal.NewFromInt(1)),
		CategoryIDs: ptr([]string{x.ID, y}),
	})
	se := svcerrors.GetServiceError(err)
	require.NotNil(t, se)
	assert.Equal(t, svcerrors.CodeCategoryNotFound, se.Code)
	assert.Equal(t, []string{y}, se.Details["missing"])

	d := f.createBook(t, "Existing", a.ID, z.ID)
	_, err = f.svc.UpdateBook(ctx, d.ID, BookInput{CategoryIDs: ptr([]string{x.ID, y})})
	se = svcerrors.GetServiceError(err)
	require.NotNil(t, se)
	assert.Equal(t, svcerrors.CodeCategoryNotFound, se.Code)
	assert.Equal(t, []string{y}, se.Details["missing"])

	_, total, err := f.store.ListBooks(ctx, bookFilterAll())
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	got, err := f.store.GetBook(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{z.ID}, got.CategoryIDs)

	cx, err := f.store.GetCategory(ctx, x.ID)
	require.NoError(t, err)
	assert.Empty(t, cx.BookIDs)
	cz, err := f.store.GetCategory(ctx, z.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{d.ID}, cz.BookIDs)
}

func TestDeleteBookCleansUp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.author(t, "A")
	cat, _ := f.cats.Create(ctx, categories.CreateInput{Name: "A"})
	d := f.createBook(t, "Book", a.ID, cat.ID)
	user := uuid.NewString()
	_, err := f.carts.SetItemQuantity(ctx, user, d.ID, 2)
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteBook(ctx, d.ID))

	_, err = f.svc.GetBook(ctx, d.ID)
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeNotFound))
	c, err := f.store.GetCategory(ctx, cat.ID)
	require.NoError(t, err)
	assert.Empty(t, c.BookIDs)
	view, err := f.carts.GetCart(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.Len(t, f.rec.OfType(events.TypeBookDeleted), 1)

	assert.True(t, svcerrors.IsCode(f.svc.DeleteBook(ctx, d.ID), svcerrors.CodeNotFound))
}

func TestListBooksPaginates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.author(t, "A")
	for i := 0; i < 7; i++ {
		f.createBook(t, fmt.Sprintf("Book %02d", 7-i), a.ID)
	}

	page, err := f.svc.ListBooks(ctx, service.PageRequest{Page: 2, Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, service.Pagination{Page: 2, Limit: 4, Total: 7, TotalPages: 2, Count: 3}, page.Pagination)
	require.Len(t, page.Data, 3)
	assert.Equal(t, "Book 05", page.Data[0].Title)
}

func TestSearchBooksByTitleOrAuthor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	herbert := f.author(t, "Frank Herbert")
	other := f.author(t, "Someone Else")
	f.createBook(t, "Dune", herbert.ID)
	time.Sleep(2 * time.Millisecond)
	f.createBook(t, "Children of Dune", other.ID)
	time.Sleep(2 * time.Millisecond)
	f.createBook(t, "Unrelated", other.ID)

	got, err := f.svc.SearchBooks(ctx, "dune")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Children of Dune", got[0].Title)

	got, err = f.svc.SearchBooks(ctx, "herb")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Dune", got[0].Title)

	_, err = f.svc.SearchBooks(ctx, "  ")
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeValidation))
}

func TestAuthorLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.author(t, "Ursula")

	_, err := f.svc.CreateAuthor(ctx, AuthorInput{Name: ptr("Ursula")})
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeDuplicateKey))

	updated, err := f.svc.UpdateAuthor(ctx, a.ID, AuthorInput{Biography: ptr("Earthsea")})
	require.NoError(t, err)
	assert.Equal(t, "Ursula", updated.Name)
	assert.Equal(t, "Earthsea", updated.Biography)

	d := f.createBook(t, "A Wizard of Earthsea", a.ID)
	err = f.svc.DeleteAuthor(ctx, a.ID)
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeConflict))

	require.NoError(t, f.svc.DeleteBook(ctx, d.ID))
	require.NoError(t, f.svc.DeleteAuthor(ctx, a.ID))

	_, err = f.svc.GetAuthor(ctx, a.ID)
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeNotFound))
	_, err = f.svc.GetAuthor(ctx, "bad")
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeInvalidID))
}

func bookFilterAll() book.Filter { return book.Filter{} }
