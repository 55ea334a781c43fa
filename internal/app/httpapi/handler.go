// Package httpapi exposes the bookstore services over a JSON REST API.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	app "github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/metrics"
	svcerrors "github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/errors"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/httputil"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/middleware"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/pkg/logger"
)

const maxBodyBytes = 1 << 20

// Options configures the HTTP surface.
type Options struct {
	// JWTSecret verifies bearer tokens. It must match the secret the
	// application signs with.
	JWTSecret string
	// RateLimiter is optional. The caller owns its cleanup lifecycle.
	RateLimiter *middleware.RateLimiter
	CORSOrigins []string
	AuditMax    int
	// AuditFile, when set, receives audit entries as JSON lines.
	AuditFile string
	Logger    *logger.Logger
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app   *app.Application
	audit *auditLog
	log   *logger.Logger
}

// NewHandler returns the router exposing the REST API. The returned closer
// releases the audit file, if any.
func NewHandler(application *app.Application, opts Options) (http.Handler, io.Closer, error) {
	log := opts.Logger
	if log == nil {
		log = logger.NewDefault("http")
	}
	file, err := openAuditFile(opts.AuditFile)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit file: %w", err)
	}

	h := &handler{app: application, audit: newAuditLog(opts.AuditMax, file, log.Named("audit")), log: log}
	auth := middleware.NewAuthMiddleware(opts.JWTSecret, application.Accounts, log.Named("auth"), []string{"/healthz", "/metrics"})

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteServiceError(w, r, svcerrors.NotFound("route", ""))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorResponse(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})
	r.Use(metrics.InstrumentHandler)
	r.Use(auth.Handler)
	if opts.RateLimiter != nil {
		r.Use(opts.RateLimiter.Handler)
	}
	r.Use(h.audit.middleware)

	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	authRoutes := r.PathPrefix("/auth").Subrouter()
	authRoutes.HandleFunc("/signup", h.signup).Methods(http.MethodPost)
	authRoutes.HandleFunc("/login", h.login).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/books", h.listBooks).Methods(http.MethodGet)
	api.HandleFunc("/books/search", h.searchBooks).Methods(http.MethodGet)
	api.HandleFunc("/books/{id}", h.getBook).Methods(http.MethodGet)
	api.Handle("/books", admin(h.createBook)).Methods(http.MethodPost)
	api.Handle("/books/{id}", admin(h.updateBook)).Methods(http.MethodPut)
	api.Handle("/books/{id}", admin(h.deleteBook)).Methods(http.MethodDelete)

	api.HandleFunc("/authors", h.listAuthors).Methods(http.MethodGet)
	api.HandleFunc("/authors/{id}", h.getAuthor).Methods(http.MethodGet)
	api.Handle("/authors", admin(h.createAuthor)).Methods(http.MethodPost)
	api.Handle("/authors/{id}", admin(h.updateAuthor)).Methods(http.MethodPut)
	api.Handle("/authors/{id}", admin(h.deleteAuthor)).Methods(http.MethodDelete)

	api.HandleFunc("/categories", h.listCategories).Methods(http.MethodGet)
	api.HandleFunc("/categories/tree", h.categoryTree).Methods(http.MethodGet)
	api.HandleFunc("/categories/{id}", h.getCategory).Methods(http.MethodGet)
	api.Handle("/categories", admin(h.createCategory)).Methods(http.MethodPost)
	api.Handle("/categories/{id}", admin(h.updateCategory)).Methods(http.MethodPut)
	api.Handle("/categories/{id}", admin(h.deleteCategory)).Methods(http.MethodDelete)

	api.Handle("/users/profile", user(h.getProfile)).Methods(http.MethodGet)
	api.Handle("/users/profile", user(h.updateProfile)).Methods(http.MethodPut)
	api.Handle("/users/profile", user(h.deleteProfile)).Methods(http.MethodDelete)
	api.Handle("/users", admin(h.listUsers)).Methods(http.MethodGet)
	api.Handle("/users/{id}", admin(h.getUser)).Methods(http.MethodGet)
	api.Handle("/users/{id}", admin(h.updateUser)).Methods(http.MethodPut)
	api.Handle("/users/{id}", admin(h.deleteUser)).Methods(http.MethodDelete)

	api.Handle("/cart", user(h.getCart)).Methods(http.MethodGet)
	api.Handle("/cart", user(h.setCartItem)).Methods(http.MethodPost)
	api.Handle("/cart", user(h.clearCart)).Methods(http.MethodDelete)
	api.Handle("/cart/items/{bookId}", user(h.removeCartItem)).Methods(http.MethodDelete)

	api.Handle("/admin/seed", admin(h.seed)).Methods(http.MethodPost)
	api.Handle("/admin/stats", admin(h.stats)).Methods(http.MethodGet)
	api.Handle("/admin/audit", admin(h.auditEntries)).Methods(http.MethodGet)

	// CORS and tracing wrap the router so preflights and unmatched routes are
	// handled and logged too.
	tracing := middleware.NewTracingMiddleware(log)
	return middleware.NewCORS(opts.CORSOrigins)(tracing.Handler(r)), file, nil
}

func admin(fn http.HandlerFunc) http.Handler {
	return middleware.RequireAdmin(fn)
}

func user(fn http.HandlerFunc) http.Handler {
	return middleware.RequireUser(fn)
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"services":  h.app.Descriptors(),
		"lifecycle": h.app.Services(),
	})
}

func (h *handler) seed(w http.ResponseWriter, r *http.Request) {
	stats, err := h.app.Seeder.Run(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.app.Seeder.Stats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *handler) auditEntries(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.audit.recent(queryInt(r, "limit")))
}

func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return svcerrors.Validation("request body is required")
		}
		return svcerrors.Validation("invalid request body: %v", err)
	}
	return nil
}

func queryInt(r *http.Request, key string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return v
}
