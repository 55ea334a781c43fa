package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetServiceErrorUnwraps(t *testing.T) {
	wrapped := fmt.Errorf("set quantity: %w", InsufficientStock("b1", 3))

	se := GetServiceError(wrapped)
	require.NotNil(t, se)
	assert.Equal(t, CodeInsufficientStock, se.Code)
	assert.Equal(t, http.StatusBadRequest, se.HTTPStatus)
	assert.Equal(t, 3, se.Details["available"])
	assert.True(t, IsCode(wrapped, CodeInsufficientStock))
	assert.Nil(t, GetServiceError(fmt.Errorf("plain")))
}

func TestCategoryNotFoundListsAllMissing(t *testing.T) {
	err := CategoryNotFound([]string{"x", "y"})
	assert.Equal(t, http.StatusNotFound, err.HTTPStatus)
	assert.Equal(t, []string{"x", "y"}, err.Details["missing"])
	assert.Contains(t, err.Message, "x, y")
}

func TestIsMatchesOnCode(t *testing.T) {
	err := fmt.Errorf("wrap: %w", NotFound("book", "42"))
	assert.ErrorIs(t, err, NotFound("", ""))
	assert.NotErrorIs(t, err, Conflict("x"))
}

func TestStatusMapping(t *testing.T) {
	cases := map[*ServiceError]int{
		Validation("bad"):          http.StatusBadRequest,
		InvalidID("book_id", "zz"): http.StatusUnprocessableEntity,
		DuplicateKey("isbn", "1"):  http.StatusConflict,
		Unauthorized(""):           http.StatusUnauthorized,
		InvalidToken(nil):          http.StatusUnauthorized,
		Forbidden(""):              http.StatusForbidden,
		RateLimitExceeded(5, "1s"): http.StatusTooManyRequests,
		Internal("boom", nil):      http.StatusInternalServerError,
	}
	for err, status := range cases {
		assert.Equal(t, status, err.HTTPStatus, string(err.Code))
	}
}
