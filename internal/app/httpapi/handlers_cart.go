package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/httputil"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/middleware"
)

type cartItemRequest struct {
	BookID   string `json:"book_id"`
	Quantity int    `json:"quantity"`
}

func (h *handler) getCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.app.Cart.GetCart(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *handler) setCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	view, err := h.app.Cart.SetItemQuantity(r.Context(), middleware.GetUserID(r.Context()), req.BookID, req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *handler) clearCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.app.Cart.ClearCart(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	view, err := h.app.Cart.RemoveItem(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["bookId"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}
