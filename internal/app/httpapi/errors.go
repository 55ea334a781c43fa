package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/storage"
	svcerrors "github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/errors"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/httputil"
)

// classify maps any error reaching a handler to the response it deserves.
// Service errors keep their own status; storage sentinels that slipped past
// a service are mapped here; everything else is a 500.
func classify(err error) *svcerrors.ServiceError {
	if se := svcerrors.GetServiceError(err); se != nil {
		return se
	}
	if errors.Is(err, storage.ErrNotFound) {
		return svcerrors.NotFound("resource", "")
	}
	if dup, ok := storage.AsDuplicate(err); ok {
		return svcerrors.DuplicateKey(dup.Field, dup.Value)
	}
	if se, ok := storage.AsStock(err); ok {
		return svcerrors.InsufficientStock(se.BookID, se.Available)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return svcerrors.Internal("request timed out", err)
	}
	return svcerrors.Internal("internal server error", err)
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	se := classify(err)
	if se.HTTPStatus >= http.StatusInternalServerError {
		h.log.FromContext(r.Context()).WithError(err).
			WithField("path", r.URL.Path).
			Error("request failed")
	}
	httputil.WriteServiceError(w, r, se)
}
