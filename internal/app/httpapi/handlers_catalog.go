package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/core/service"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/services/catalog"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/services/categories"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/httputil"
)

// Books

func (h *handler) listBooks(w http.ResponseWriter, r *http.Request) {
	page, err := h.app.Catalog.ListBooks(r.Context(), service.PageRequest{
		Page:  queryInt(r, "page"),
		Limit: queryInt(r, "limit"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func (h *handler) searchBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.app.Catalog.SearchBooks(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, books)
}

func (h *handler) getBook(w http.ResponseWriter, r *http.Request) {
	b, err := h.app.Catalog.GetBook(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, b)
}

func (h *handler) createBook(w http.ResponseWriter, r *http.Request) {
	var in catalog.BookInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	b, err := h.app.Catalog.CreateBook(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, b)
}

func (h *handler) updateBook(w http.ResponseWriter, r *http.Request) {
	var in catalog.BookInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	b, err := h.app.Catalog.UpdateBook(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, b)
}

func (h *handler) deleteBook(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Catalog.DeleteBook(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusNoContent, nil)
}

// Authors

func (h *handler) listAuthors(w http.ResponseWriter, r *http.Request) {
	authors, err := h.app.Catalog.ListAuthors(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, authors)
}

func (h *handler) getAuthor(w http.ResponseWriter, r *http.Request) {
	a, err := h.app.Catalog.GetAuthor(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *handler) createAuthor(w http.ResponseWriter, r *http.Request) {
	var in catalog.AuthorInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err := h.app.Catalog.CreateAuthor(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, a)
}

func (h *handler) updateAuthor(w http.ResponseWriter, r *http.Request) {
	var in catalog.AuthorInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err := h.app.Catalog.UpdateAuthor(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *handler) deleteAuthor(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Catalog.DeleteAuthor(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusNoContent, nil)
}

// Categories

func (h *handler) listCategories(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Categories.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *handler) categoryTree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.app.Categories.Tree(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tree)
}

func (h *handler) getCategory(w http.ResponseWriter, r *http.Request) {
	c, err := h.app.Categories.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var in categories.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.app.Categories.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, c)
}

func (h *handler) updateCategory(w http.ResponseWriter, r *http.Request) {
	var in categories.UpdateInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.app.Categories.Update(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Categories.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusNoContent, nil)
}
