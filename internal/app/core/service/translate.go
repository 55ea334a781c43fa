package service

import (
	"errors"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/storage"
	svcerrors "github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/errors"
)

// Translate turns storage sentinels into service errors. resource and id name
// the record for NotFound. Other errors pass through untouched.
func Translate(err error, resource, id string) error {
	if err == nil {
		return nil
	}
	if svcerrors.GetServiceError(err) != nil {
		return err
	}
	if errors.Is(err, storage.ErrNotFound) {
		return svcerrors.NotFound(resource, id)
	}
	if dup, ok := storage.AsDuplicate(err); ok {
		return svcerrors.DuplicateKey(dup.Field, dup.Value)
	}
	if se, ok := storage.AsStock(err); ok {
		return svcerrors.InsufficientStock(se.BookID, se.Available)
	}
	return err
}
