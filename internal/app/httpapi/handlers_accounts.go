package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/services/accounts"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/httputil"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/middleware"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *handler) signup(w http.ResponseWriter, r *http.Request) {
	var in accounts.SignupInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	u, err := h.app.Accounts.Signup(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, u)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.app.Accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.log.FromContext(r.Context()).WithField("user_id", res.User.ID).Info("login succeeded")
	httputil.WriteJSON(w, http.StatusOK, res)
}

// Profile routes act on the authenticated caller.

func (h *handler) getProfile(w http.ResponseWriter, r *http.Request) {
	u, err := h.app.Accounts.GetProfile(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var in accounts.Update
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	u, err := h.app.Accounts.UpdateProfile(r.Context(), middleware.GetUserID(r.Context()), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *handler) deleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Accounts.DeleteProfile(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusNoContent, nil)
}

// Administration of other accounts.

func (h *handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.app.Accounts.ListUsers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, users)
}

func (h *handler) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.app.Accounts.GetUser(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *handler) updateUser(w http.ResponseWriter, r *http.Request) {
	var in accounts.Update
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	u, err := h.app.Accounts.UpdateUser(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Accounts.DeleteUser(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusNoContent, nil)
}
