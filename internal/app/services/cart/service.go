// Package cart reserves stock for cart lines. Every mutation of a user's cart
// runs under that user's lock, and every stock change goes through the
// store's conditional adjustment so concurrent carts can never oversell.
package cart

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/core/service"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/book"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/cart"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/events"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/locks"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/metrics"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/storage"
	svcerrors "github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/errors"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/pkg/logger"
)

const (
	opSetQuantity = "set_quantity"
	opRemove      = "remove_item"
	opClear       = "clear"
	opDetach      = "detach_book"
)

// Service is the cart mutation engine.
type Service struct {
	carts  storage.CartStore
	books  storage.BookStore
	locker locks.Locker
	events *events.Emitter
	log    *logger.Logger
}

// New constructs a cart service with an in-process locker and no event sink.
func New(carts storage.CartStore, books storage.BookStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("cart")
	}
	return &Service{
		carts:  carts,
		books:  books,
		locker: locks.NewLocal(),
		events: events.NewEmitter(events.Noop{}, log),
		log:    log,
	}
}

// WithLocker replaces the per-user lock. Call before serving requests.
func (s *Service) WithLocker(l locks.Locker) {
	if l != nil {
		s.locker = l
	}
}

// WithEvents replaces the event emitter. Call before serving requests.
func (s *Service) WithEvents(e *events.Emitter) {
	if e != nil {
		s.events = e
	}
}

func (s *Service) Descriptor() service.Descriptor {
	return service.Descriptor{
		Name:         "cart",
		Domain:       "cart",
		Capabilities: []string{"stock-reservation", "dangling-line-pruning"},
	}
}

func lockKey(userID string) string { return "cart:" + userID }

func (s *Service) lock(ctx context.Context, userID string) (func(), error) {
	unlock, err := s.locker.Lock(ctx, lockKey(userID))
	if err != nil {
		return nil, svcerrors.Internal("could not lock cart", err)
	}
	return unlock, nil
}

// GetCart returns the user's cart, creating it on first access.
func (s *Service) GetCart(ctx context.Context, userID string) (cart.View, error) {
	userID, err := service.RequireID("user_id", userID)
	if err != nil {
		return cart.View{}, err
	}
	c, err := s.carts.GetOrCreateCart(ctx, userID)
	if err != nil {
		return cart.View{}, err
	}
	books, err := s.resolve(ctx, c.BookIDs())
	if err != nil {
		return cart.View{}, err
	}
	return buildView(c, books), nil
}

// SetItemQuantity sets the line for bookID to quantity, reserving or releasing
// the difference against stock.
func (s *Service) SetItemQuantity(ctx context.Context, userID, bookID string, quantity int) (view cart.View, err error) {
	start := time.Now()
	defer func() { s.record(opSetQuantity, err, start) }()

	if userID, err = service.RequireID("user_id", userID); err != nil {
		return cart.View{}, err
	}
	if bookID, err = service.RequireID("book_id", bookID); err != nil {
		return cart.View{}, err
	}
	if quantity <= 0 || quantity > book.MaxQuantity {
		return cart.View{}, svcerrors.Validation("quantity must be between 1 and %d", book.MaxQuantity).
			WithDetails("field", "quantity")
	}

	unlock, err := s.lock(ctx, userID)
	if err != nil {
		return cart.View{}, err
	}
	defer unlock()

	if _, err := s.books.GetBook(ctx, bookID); err != nil {
		return cart.View{}, service.Translate(err, "book", bookID)
	}
	c, err := s.carts.GetOrCreateCart(ctx, userID)
	if err != nil {
		return cart.View{}, err
	}

	previous := c.Quantity(bookID)
	delta := quantity - previous
	if delta != 0 {
		if _, err := s.books.AdjustStock(ctx, bookID, -delta); err != nil {
			if _, ok := storage.AsStock(err); ok {
				metrics.RecordInsufficientStock()
			}
			return cart.View{}, service.Translate(err, "book", bookID)
		}
		metrics.RecordStockAdjustment(-delta)
	}

	c.SetQuantity(bookID, quantity)
	saved, books, err := s.save(ctx, c)
	if err != nil {
		s.compensate(ctx, bookID, delta)
		return cart.View{}, err
	}

	if delta != 0 {
		s.events.Emit(ctx, events.TypeStockAdjusted, map[string]any{
			"book_id": bookID,
			"delta":   -delta,
			"user_id": userID,
		})
	}
	s.events.Emit(ctx, events.TypeCartUpdated, map[string]any{
		"user_id":  userID,
		"book_id":  bookID,
		"quantity": quantity,
		"total":    saved.Total.String(),
	})
	s.log.FromContext(ctx).
		WithField("user_id", userID).
		WithField("book_id", bookID).
		WithField("previous", previous).
		WithField("quantity", quantity).
		Info("cart line set")
	return buildView(saved, books), nil
}

// RemoveItem drops the line for bookID and credits its quantity back to stock.
func (s *Service) RemoveItem(ctx context.Context, userID, bookID string) (view cart.View, err error) {
	start := time.Now()
	defer func() { s.record(opRemove, err, start) }()

	if userID, err = service.RequireID("user_id", userID); err != nil {
		return cart.View{}, err
	}
	if bookID, err = service.RequireID("book_id", bookID); err != nil {
		return cart.View{}, err
	}

	unlock, err := s.lock(ctx, userID)
	if err != nil {
		return cart.View{}, err
	}
	defer unlock()

	c, err := s.carts.GetCartByUser(ctx, userID)
	if err != nil {
		return cart.View{}, service.Translate(err, "cart", "")
	}
	quantity := c.Quantity(bookID)
	if quantity == 0 {
		return cart.View{}, svcerrors.NotFound("cart item", bookID)
	}

	credited, err := s.credit(ctx, bookID, quantity)
	if err != nil {
		return cart.View{}, err
	}

	c.Remove(bookID)
	saved, books, err := s.save(ctx, c)
	if err != nil {
		if credited {
			s.compensate(ctx, bookID, -quantity)
		}
		return cart.View{}, err
	}

	if credited {
		s.events.Emit(ctx, events.TypeStockAdjusted, map[string]any{
			"book_id": bookID,
			"delta":   quantity,
			"user_id": userID,
		})
	}
	s.events.Emit(ctx, events.TypeCartUpdated, map[string]any{
		"user_id":  userID,
		"book_id":  bookID,
		"quantity": 0,
		"total":    saved.Total.String(),
	})
	s.log.FromContext(ctx).
		WithField("user_id", userID).
		WithField("book_id", bookID).
		WithField("quantity", quantity).
		Info("cart line removed")
	return buildView(saved, books), nil
}

// ClearCart credits every line back to stock and empties the cart. A missing
// cart is created empty. Credits are persisted one by one; if one fails, the
// lines already credited are dropped from the cart before the error is
// returned so a retry does not credit them twice.
func (s *Service) ClearCart(ctx context.Context, userID string) (view cart.View, err error) {
	start := time.Now()
	defer func() { s.record(opClear, err, start) }()

	if userID, err = service.RequireID("user_id", userID); err != nil {
		return cart.View{}, err
	}

	unlock, err := s.lock(ctx, userID)
	if err != nil {
		return cart.View{}, err
	}
	defer unlock()

	c, err := s.carts.GetOrCreateCart(ctx, userID)
	if err != nil {
		return cart.View{}, err
	}

	lines := append([]cart.Item(nil), c.Items...)
	released := 0
	for _, line := range lines {
		credited, err := s.credit(ctx, line.BookID, line.Quantity)
		if err != nil {
			if _, _, saveErr := s.save(ctx, c); saveErr != nil {
				s.log.FromContext(ctx).WithError(saveErr).WithField("user_id", userID).Error("persist partially cleared cart")
			}
			return cart.View{}, err
		}
		c.Remove(line.BookID)
		if credited {
			released += line.Quantity
			s.events.Emit(ctx, events.TypeStockAdjusted, map[string]any{
				"book_id": line.BookID,
				"delta":   line.Quantity,
				"user_id": userID,
			})
		}
	}

	c.Items = []cart.Item{}
	c.Total = decimal.Zero
	saved, err := s.carts.SaveCart(ctx, c)
	if err != nil {
		return cart.View{}, err
	}

	s.events.Emit(ctx, events.TypeCartCleared, map[string]any{
		"user_id":  userID,
		"lines":    len(lines),
		"released": released,
	})
	s.log.FromContext(ctx).
		WithField("user_id", userID).
		WithField("lines", len(lines)).
		Info("cart cleared")
	return buildView(saved, nil), nil
}

// DetachBook removes bookID from every cart that still holds it. Stock is not
// credited: the book is gone. It returns the number of carts changed.
func (s *Service) DetachBook(ctx context.Context, bookID string) (int, error) {
	start := time.Now()
	holders, err := s.carts.ListCartsWithBook(ctx, bookID)
	if err != nil {
		s.record(opDetach, err, start)
		return 0, err
	}
	changed := 0
	for _, holder := range holders {
		ok, err := s.pruneCart(ctx, holder.UserID, func(c *cart.Cart) []string {
			if c.Quantity(bookID) == 0 {
				return nil
			}
			return []string{bookID}
		})
		if err != nil {
			s.record(opDetach, err, start)
			return changed, err
		}
		if ok {
			changed++
		}
	}
	s.record(opDetach, nil, start)
	if changed > 0 {
		s.log.FromContext(ctx).WithField("book_id", bookID).WithField("carts", changed).Info("book detached from carts")
	}
	return changed, nil
}

// PruneDangling removes lines whose book no longer exists from every cart and
// returns the number of lines removed.
func (s *Service) PruneDangling(ctx context.Context) (int, error) {
	all, err := s.carts.ListCarts(ctx)
	if err != nil {
		return 0, err
	}
	pruned := 0
	for _, c := range all {
		if len(c.Items) == 0 {
			continue
		}
		var (
			removed    int
			resolveErr error
		)
		_, err := s.pruneCart(ctx, c.UserID, func(fresh *cart.Cart) []string {
			books, err := s.resolve(ctx, fresh.BookIDs())
			if err != nil {
				resolveErr = err
				return nil
			}
			var dangling []string
			for _, it := range fresh.Items {
				if _, ok := books[it.BookID]; !ok {
					dangling = append(dangling, it.BookID)
				}
			}
			removed = len(dangling)
			return dangling
		})
		if err == nil {
			err = resolveErr
		}
		if err != nil {
			return pruned, err
		}
		pruned += removed
	}
	return pruned, nil
}

// pruneCart re-reads the user's cart under lock and drops the lines pick
// selects.
func (s *Service) pruneCart(ctx context.Context, userID string, pick func(*cart.Cart) []string) (bool, error) {
	unlock, err := s.lock(ctx, userID)
	if err != nil {
		return false, err
	}
	defer unlock()

	c, err := s.carts.GetCartByUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	drop := pick(&c)
	if len(drop) == 0 {
		return false, nil
	}
	for _, id := range drop {
		c.Remove(id)
	}
	saved, _, err := s.save(ctx, c)
	if err != nil {
		return false, err
	}
	s.events.Emit(ctx, events.TypeCartUpdated, map[string]any{
		"user_id": userID,
		"pruned":  drop,
		"total":   saved.Total.String(),
	})
	return true, nil
}

// credit returns quantity units to stock. A book that no longer exists is
// skipped and reported as not credited.
func (s *Service) credit(ctx context.Context, bookID string, quantity int) (bool, error) {
	if _, err := s.books.AdjustStock(ctx, bookID, quantity); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	metrics.RecordStockAdjustment(quantity)
	return true, nil
}

// compensate reverses a stock delta that was applied before a failed cart
// write.
func (s *Service) compensate(ctx context.Context, bookID string, delta int) {
	if delta == 0 {
		return
	}
	if _, err := s.books.AdjustStock(context.WithoutCancel(ctx), bookID, delta); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.log.FromContext(ctx).
			WithError(err).
			WithField("book_id", bookID).
			WithField("delta", delta).
			Error("stock compensation failed")
		return
	}
	metrics.RecordStockAdjustment(delta)
}

// save recomputes the total from current prices and persists the cart.
func (s *Service) save(ctx context.Context, c cart.Cart) (cart.Cart, map[string]book.Book, error) {
	books, err := s.resolve(ctx, c.BookIDs())
	if err != nil {
		return cart.Cart{}, nil, err
	}
	c.Recalculate(prices(books))
	saved, err := s.carts.SaveCart(ctx, c)
	if err != nil {
		return cart.Cart{}, nil, err
	}
	return saved, books, nil
}

func (s *Service) resolve(ctx context.Context, ids []string) (map[string]book.Book, error) {
	out := make(map[string]book.Book, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	books, err := s.books.GetBooks(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, b := range books {
		out[b.ID] = b
	}
	return out, nil
}

func (s *Service) record(op string, err error, start time.Time) {
	outcome := "ok"
	if err != nil {
		outcome = string(svcerrors.CodeInternal)
		if se := svcerrors.GetServiceError(err); se != nil {
			outcome = string(se.Code)
		}
	}
	metrics.RecordCartMutation(op, outcome, time.Since(start))
}

func prices(books map[string]book.Book) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(books))
	for id, b := range books {
		out[id] = b.Price
	}
	return out
}

// buildView resolves each line against books. The total is recomputed from
// the same prices so the view is always self-consistent.
func buildView(c cart.Cart, books map[string]book.Book) cart.View {
	v := cart.View{
		ID:        c.ID,
		UserID:    c.UserID,
		Items:     make([]cart.LineView, 0, len(c.Items)),
		Total:     decimal.Zero,
		UpdatedAt: c.UpdatedAt,
	}
	for _, it := range c.Items {
		line := cart.LineView{BookID: it.BookID, Quantity: it.Quantity, LineTotal: decimal.Zero}
		if b, ok := books[it.BookID]; ok {
			summary := b.Summary()
			line.Book = &summary
			line.LineTotal = b.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
			v.Total = v.Total.Add(line.LineTotal)
		}
		v.Items = append(v.Items, line)
	}
	return v
}
